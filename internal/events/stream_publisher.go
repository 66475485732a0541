package events

import (
	"context"
	"fmt"

	rediscommon "patient-tile/common/redis"
	"patient-tile/internal/models"

	"go.uber.org/zap"
)

// StreamPublisher 将磁贴状态变化写入 Redis Streams（默认 tile:events）
type StreamPublisher struct {
	client rediscommon.StreamAdder
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewStreamPublisher 创建发布器；maxLen <= 0 表示不裁剪
func NewStreamPublisher(client rediscommon.StreamAdder, stream string, maxLen int64, logger *zap.Logger) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}
}

// Record 发布一条变化事件
func (p *StreamPublisher) Record(ctx context.Context, ev models.TransitionEvent) error {
	id, err := rediscommon.PublishJSONToStream(ctx, p.client, p.stream, p.maxLen, ev)
	if err != nil {
		return fmt.Errorf("failed to publish transition to %s: %w", p.stream, err)
	}

	p.logger.Debug("Published tile transition",
		zap.String("stream", p.stream),
		zap.String("message_id", id),
		zap.String("session_id", ev.SessionID),
		zap.String("to", ev.To),
	)
	return nil
}
