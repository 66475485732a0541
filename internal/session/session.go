package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"patient-tile/internal/bridge"
	"patient-tile/internal/models"
	"patient-tile/internal/tile"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// notifyTimeout 变化通知回调中存储/记录操作的超时
const notifyTimeout = 5 * time.Second

// Recorder 状态变化记录（Redis Streams / PostgreSQL）；失败只记日志
type Recorder interface {
	Record(ctx context.Context, ev models.TransitionEvent) error
}

// Deps 打开会话所需依赖
type Deps struct {
	Store     tile.Store
	Source    bridge.Source
	Recorders []Recorder
	Logger    *zap.Logger
	Now       func() time.Time
	NewID     func() string
}

// View 渲染页面所需的会话快照
type View struct {
	Snapshot tile.Snapshot
	Patient  tile.Patient
	FetchErr error
}

// Session 一个浏览器会话：持有 Reactor 和病人变化订阅
type Session struct {
	id        string
	reactor   *tile.Reactor
	recorders []Recorder
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string

	mu       sync.Mutex
	patient  tile.Patient
	fetchErr error
	lastSeen time.Time

	off       func()
	closeOnce sync.Once
}

// Open 初始化会话：从会话存储恢复状态 -> 拉取当前病人 -> 订阅变化
// 拉取失败和订阅失败都不会阻止会话打开
func Open(ctx context.Context, id string, deps Deps) *Session {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	logger := deps.Logger.With(zap.String("session_id", id))

	s := &Session{
		id:        id,
		reactor:   tile.NewReactor(deps.Store, logger),
		recorders: deps.Recorders,
		logger:    logger,
		now:       deps.Now,
		newID:     deps.NewID,
		lastSeen:  deps.Now(),
	}

	state := s.reactor.Initialize(ctx, tile.InitOptions{HydrateFromSession: true})
	logger.Debug("Session initialized", zap.String("state", state.String()))

	patient, err := deps.Source.GetPatient(ctx)
	if err != nil {
		logger.Error("getPatient failed", zap.Error(err))
		s.mu.Lock()
		s.fetchErr = err
		s.mu.Unlock()
	} else {
		s.Apply(ctx, patient, models.SourceFetch)
	}

	off, err := deps.Source.OnPatientChanged(func(p tile.Patient) {
		cctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		s.Apply(cctx, p, models.SourceNotify)
	})
	switch {
	case errors.Is(err, bridge.ErrUnsupported):
		logger.Debug("Patient change notifications unavailable")
	case err != nil:
		logger.Warn("Failed to register patient change listener", zap.Error(err))
	default:
		s.off = off
	}

	return s
}

// ID 会话 ID
func (s *Session) ID() string { return s.id }

// Apply 应用一次病人变化并通知 Recorder
func (s *Session) Apply(ctx context.Context, patient tile.Patient, source string) tile.State {
	s.mu.Lock()
	from := s.reactor.Current().State
	to := s.reactor.Transition(ctx, patient)
	if patient.Present() {
		s.patient = append(tile.Patient(nil), patient...)
	} else {
		s.patient = nil
	}
	s.fetchErr = nil
	at := s.now()
	s.lastSeen = at
	s.mu.Unlock()

	if from != to {
		s.logger.Info("Tile state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.String("source", source),
		)
	}
	s.record(ctx, models.TransitionEvent{
		EventID:   s.newID(),
		SessionID: s.id,
		From:      from.String(),
		To:        to.String(),
		Source:    source,
		At:        at,
	})
	return to
}

// View 当前快照
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		Snapshot: s.reactor.Current(),
		Patient:  s.patient,
		FetchErr: s.fetchErr,
	}
}

// Touch 刷新最近访问时间
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = s.now()
	s.mu.Unlock()
}

// LastSeen 最近访问时间
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Close 释放变化订阅；可重复调用
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.off != nil {
			s.off()
		}
		s.logger.Debug("Session closed")
	})
}

func (s *Session) record(ctx context.Context, ev models.TransitionEvent) {
	for _, r := range s.recorders {
		if err := r.Record(ctx, ev); err != nil {
			s.logger.Warn("Failed to record tile transition",
				zap.String("to", ev.To),
				zap.Error(err),
			)
		}
	}
}
