package tile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"patient-tile/internal/store"

	"go.uber.org/zap"
)

// 会话存储中的键
const (
	KeyPatient = "patient"
	KeyState   = "tileState"
)

// Store 会话级 KV 存储；任何调用都可能失败，Get 未命中返回 store.ErrMiss
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Remove(ctx context.Context, key string) error
}

// InitOptions Initialize 参数
type InitOptions struct {
	// HydrateFromSession 为 true 时根据会话中的 patient 记录恢复状态
	HydrateFromSession bool
}

// Reactor 磁贴状态机
// 状态只由“是否存在病人对象”决定；存储失败只记日志，不影响内存状态
type Reactor struct {
	mu     sync.Mutex
	store  Store
	logger *zap.Logger
	state  State
}

// NewReactor 创建 Reactor，初始状态为 default
func NewReactor(s Store, logger *zap.Logger) *Reactor {
	return &Reactor{
		store:  s,
		logger: logger,
		state:  StateDefault,
	}
}

// Initialize 初始化（可选从会话恢复），并回写 tileState
func (r *Reactor) Initialize(ctx context.Context, opts InitOptions) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	if opts.HydrateFromSession {
		r.state = r.hydrate(ctx)
	}
	r.persistState(ctx)

	return r.state
}

// Transition 响应病人变化：有病人 => patient，nil => default
func (r *Reactor) Transition(ctx context.Context, patient Patient) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := StateFor(patient.Present())
	if err := r.persistPatient(ctx, patient); err != nil {
		r.logger.Warn("Failed to persist patient change, forcing state anyway",
			zap.String("state", next.String()),
			zap.Error(err),
		)
	}
	r.state = next
	r.persistState(ctx)

	return r.state
}

// Current 当前状态及派生颜色
func (r *Reactor) Current() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{State: r.state, Color: r.state.Color()}
}

func (r *Reactor) hydrate(ctx context.Context) State {
	raw, err := r.store.Get(ctx, KeyPatient)
	if err != nil && !errors.Is(err, store.ErrMiss) {
		r.logger.Warn("Failed to read persisted patient, falling back to default", zap.Error(err))
		return StateDefault
	}
	state := StateFor(err == nil && raw != "")

	// patient 记录优先；tileState 仅用于诊断
	if prev, err := r.store.Get(ctx, KeyState); err == nil && ParseState(prev) != state {
		r.logger.Debug("Persisted tile state disagrees with patient record",
			zap.String("persisted", prev),
			zap.String("hydrated", state.String()),
		)
	}
	return state
}

func (r *Reactor) persistPatient(ctx context.Context, patient Patient) error {
	if !patient.Present() {
		if err := r.store.Remove(ctx, KeyPatient); err != nil {
			return fmt.Errorf("failed to remove patient: %w", err)
		}
		return nil
	}

	raw, err := patient.Compact()
	if err != nil {
		// 不能保存，也不能留下上一位病人的记录
		if rmErr := r.store.Remove(ctx, KeyPatient); rmErr != nil {
			return fmt.Errorf("failed to encode patient: %w (remove stale record: %v)", err, rmErr)
		}
		return fmt.Errorf("failed to encode patient: %w", err)
	}
	if err := r.store.Set(ctx, KeyPatient, raw); err != nil {
		return fmt.Errorf("failed to store patient: %w", err)
	}
	return nil
}

func (r *Reactor) persistState(ctx context.Context) {
	if err := r.store.Set(ctx, KeyState, r.state.String()); err != nil {
		r.logger.Warn("Failed to persist tile state",
			zap.String("state", r.state.String()),
			zap.Error(err),
		)
	}
}
