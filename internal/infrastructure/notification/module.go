package notification

import (
	"context"

	"go.uber.org/fx"

	"signflow/internal/domain/repository"
	"signflow/internal/infrastructure/redis"
)

var Module = fx.Module("notification",
	fx.Provide(
		func(r *redis.RedisClient) Queue { return r },
		NewRelayClient,
		func(c *RelayClient) Mailer { return c },
		NewQueueDispatcher,
		func(d *QueueDispatcher) repository.NotificationDispatcher { return d },
		NewWorker,
	),
	fx.Invoke(registerWorker),
)

func registerWorker(lc fx.Lifecycle, w *Worker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			w.Start()
			return nil
		},
		OnStop: w.Stop,
	})
}
