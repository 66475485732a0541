package repository

import (
	"context"
	"database/sql"
	"fmt"

	"patient-tile/internal/models"

	"go.uber.org/zap"
)

const historySchema = `
	CREATE TABLE IF NOT EXISTS tile_transitions (
		event_id    UUID PRIMARY KEY,
		session_id  TEXT NOT NULL,
		from_state  TEXT NOT NULL,
		to_state    TEXT NOT NULL,
		source      TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tile_transitions_session
		ON tile_transitions (session_id, occurred_at DESC);
`

// HistoryRepository 磁贴状态变化历史（PostgreSQL）
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema 建表（幂等）
func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, historySchema); err != nil {
		return fmt.Errorf("failed to create tile_transitions: %w", err)
	}
	return nil
}

// Record 写入一条变化记录
func (r *HistoryRepository) Record(ctx context.Context, ev models.TransitionEvent) error {
	query := `
		INSERT INTO tile_transitions (event_id, session_id, from_state, to_state, source, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query,
		ev.EventID, ev.SessionID, ev.From, ev.To, ev.Source, ev.At,
	); err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}
	return nil
}

// ListBySession 按时间倒序返回会话最近的变化记录
func (r *HistoryRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.TransitionEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT event_id, session_id, from_state, to_state, source, occurred_at
		FROM tile_transitions
		WHERE session_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	events := make([]models.TransitionEvent, 0)
	for rows.Next() {
		var ev models.TransitionEvent
		if err := rows.Scan(&ev.EventID, &ev.SessionID, &ev.From, &ev.To, &ev.Source, &ev.At); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transitions: %w", err)
	}

	return events, nil
}
