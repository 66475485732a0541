package bridge

import (
	"context"
	"errors"

	"patient-tile/internal/tile"
)

// ErrUnsupported 当前环境不支持病人变化通知（如本地浏览器联调，没有 MQTT）
var ErrUnsupported = errors.New("patient change notifications not supported")

// Source 病人数据来源
// GetPatient 可能失败；OnPatientChanged 可能返回 ErrUnsupported，调用方需要容忍
type Source interface {
	GetPatient(ctx context.Context) (tile.Patient, error)
	OnPatientChanged(cb func(tile.Patient)) (unregister func(), err error)
}

// SessionSource 将 HTTP 拉取和 MQTT 通知绑定到一个桥接上下文（即会话 ID）
type SessionSource struct {
	contextID string
	client    *HTTPClient
	notifier  *Notifier
}

// NewSessionSource client 或 notifier 为 nil 时对应能力降级
func NewSessionSource(contextID string, client *HTTPClient, notifier *Notifier) *SessionSource {
	return &SessionSource{
		contextID: contextID,
		client:    client,
		notifier:  notifier,
	}
}

// GetPatient 未配置桥接地址时视为“没有病人”
func (s *SessionSource) GetPatient(ctx context.Context) (tile.Patient, error) {
	if s.client == nil {
		return nil, nil
	}
	return s.client.FetchPatient(ctx, s.contextID)
}

func (s *SessionSource) OnPatientChanged(cb func(tile.Patient)) (func(), error) {
	return s.notifier.Watch(s.contextID, cb)
}
