package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"signflow/internal/config"
	"signflow/internal/domain/entity"
)

// Queue is the list subset of *redis.RedisClient used for delivery.
type Queue interface {
	Push(ctx context.Context, key string, values ...interface{}) error
	PopBlocking(ctx context.Context, key string, timeout time.Duration) (string, error)
}

// QueueDispatcher enqueues notifications for the delivery worker.
type QueueDispatcher struct {
	queue  Queue
	key    string
	logger *zap.Logger
}

func NewQueueDispatcher(cfg *config.Config, queue Queue, logger *zap.Logger) *QueueDispatcher {
	return &QueueDispatcher{
		queue:  queue,
		key:    cfg.Notification.QueueKey,
		logger: logger,
	}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, n *entity.Notification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := d.queue.Push(ctx, d.key, raw); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}

	d.logger.Debug("Notification queued",
		zap.String("notification_id", n.ID),
		zap.String("type", n.Type),
		zap.String("related_id", n.RelatedID),
	)
	return nil
}
