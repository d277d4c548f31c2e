package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Background runs best-effort work after a transition has committed.
// Work never reports back to the caller; failures are logged.
type Background struct {
	wg      sync.WaitGroup
	timeout time.Duration
	logger  *zap.Logger
}

func NewBackground(logger *zap.Logger) *Background {
	return &Background{
		timeout: 2 * time.Minute,
		logger:  logger,
	}
}

// Go runs fn once on its own goroutine.
func (b *Background) Go(name string, fn func(ctx context.Context) error) {
	b.Retry(name, 0, fn)
}

// Retry runs fn on its own goroutine, retrying up to retries times with
// exponential backoff. fn may stop retries with backoff.Permanent.
func (b *Background) Retry(name string, retries uint64, fn func(ctx context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()

		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries), ctx)
		err := backoff.Retry(func() error { return fn(ctx) }, policy)
		if err != nil {
			b.logger.Warn("Background task failed",
				zap.String("task", name),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until all started work has finished or ctx is done.
func (b *Background) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
