package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"signflow/internal/config"
	"signflow/internal/domain/entity"
	"signflow/internal/domain/repository"
	"signflow/internal/infrastructure/metrics"
	"signflow/internal/infrastructure/redis"
)

const popTimeout = 5 * time.Second

// Mailer delivers one notification by email.
type Mailer interface {
	Enabled() bool
	Send(ctx context.Context, n *entity.Notification) error
}

// Worker drains the notification queue into the in-app store and the mail relay.
type Worker struct {
	queue      Queue
	key        string
	store      repository.NotificationRepository
	mailer     Mailer
	maxRetries uint64
	metrics    *metrics.Metrics
	logger     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorker(cfg *config.Config, queue Queue, store repository.NotificationRepository, mailer Mailer, m *metrics.Metrics, logger *zap.Logger) *Worker {
	return &Worker{
		queue:      queue,
		key:        cfg.Notification.QueueKey,
		store:      store,
		mailer:     mailer,
		maxRetries: cfg.Notification.MaxRetries,
		metrics:    m,
		logger:     logger,
	}
}

// Start launches the consume loop.
func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()

	w.logger.Info("Notification worker started", zap.String("queue", w.key))
}

// Stop cancels the loop and waits for the in-flight message.
func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Notification worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		raw, err := w.queue.PopBlocking(ctx, w.key, popTimeout)
		if err != nil {
			if errors.Is(err, redis.ErrNil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("Failed to pop notification", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		w.Handle(ctx, raw)
	}
}

// Handle delivers one queued payload. Failures are logged, never returned.
func (w *Worker) Handle(ctx context.Context, raw string) {
	var n entity.Notification
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		w.logger.Warn("Dropping malformed notification", zap.Error(err))
		w.observe("malformed")
		return
	}

	op := func() error {
		if n.RecipientID != "" {
			if err := w.store.Save(ctx, &n); err != nil {
				return err
			}
		}
		if n.RecipientEmail != "" && w.mailer != nil && w.mailer.Enabled() {
			if err := w.mailer.Send(ctx, &n); err != nil {
				return err
			}
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), w.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		w.logger.Warn("Failed to deliver notification",
			zap.String("notification_id", n.ID),
			zap.String("type", n.Type),
			zap.Error(err),
		)
		w.observe("failed")
		return
	}

	w.logger.Info("Notification delivered",
		zap.String("notification_id", n.ID),
		zap.String("type", n.Type),
		zap.String("related_id", n.RelatedID),
	)
	w.observe("delivered")
}

func (w *Worker) observe(result string) {
	if w.metrics != nil {
		w.metrics.NotificationsHandled.WithLabelValues(result).Inc()
	}
}
