package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrManagerClosed Manager 已关闭
var ErrManagerClosed = errors.New("session manager closed")

// openTimeout 打开会话（恢复 + 拉取病人 + 订阅）的总时长上限
const openTimeout = 10 * time.Second

// Factory 打开一个新会话
type Factory func(ctx context.Context, id string) *Session

// Manager 按会话 ID 管理 Session：懒加载、空闲回收、关闭时统一释放订阅
type Manager struct {
	factory Factory
	idle    time.Duration
	now     func() time.Time
	logger  *zap.Logger
	group   singleflight.Group

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager idle <= 0 表示不回收
func NewManager(factory Factory, idle time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		factory:  factory,
		idle:     idle,
		now:      time.Now,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Get 返回会话，不存在则打开（同一 ID 的并发打开只执行一次）
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if s, err := m.lookup(id); s != nil || err != nil {
		return s, err
	}

	v, err, _ := m.group.Do(id, func() (interface{}, error) {
		if s, err := m.lookup(id); s != nil || err != nil {
			return s, err
		}

		// 会话被所有后续请求共享，不能跟随首个请求的取消
		openCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), openTimeout)
		defer cancel()
		s := m.factory(openCtx, id)

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			s.Close()
			return nil, ErrManagerClosed
		}
		m.sessions[id] = s
		m.logger.Debug("Session opened", zap.String("session_id", id), zap.Int("open_sessions", len(m.sessions)))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Lookup 仅查找已打开的会话
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Len 已打开会话数
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep 关闭空闲超过 idle 的会话，返回关闭数量
func (m *Manager) Sweep() int {
	if m.idle <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idle)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		m.logger.Info("Closed idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run 定时回收空闲会话，直到 ctx 取消
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Close 关闭全部会话，之后 Get 返回 ErrManagerClosed
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.closed = true
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	m.logger.Info("Session manager closed", zap.Int("closed_sessions", len(sessions)))
}

func (m *Manager) lookup(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	if s, ok := m.sessions[id]; ok {
		s.Touch()
		return s, nil
	}
	return nil, nil
}
