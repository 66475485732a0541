package models

import "time"

// TransitionEvent 一次病人变化导致的磁贴状态记录
// From == To 时同样记录（重复推送同一病人也是一次变化通知）
type TransitionEvent struct {
	EventID   string    `json:"event_id"`
	SessionID string    `json:"session_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Source    string    `json:"source"` // "fetch" | "notify" | "push"
	At        time.Time `json:"at"`
}

// 变化来源
const (
	SourceFetch  = "fetch"
	SourceNotify = "notify"
	SourcePush   = "push"
)

// SessionState 会话列表接口的单项
type SessionState struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Color     string `json:"color"`
}
