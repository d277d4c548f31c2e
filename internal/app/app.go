// Package app assembles the service's fx modules. The console entry point
// and the Windows service host both build their fx.App from Options.
package app

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"signflow/internal/config"
	deliveryhttp "signflow/internal/delivery/http"
	"signflow/internal/infrastructure/database"
	"signflow/internal/infrastructure/document"
	"signflow/internal/infrastructure/httpclient"
	"signflow/internal/infrastructure/identity"
	"signflow/internal/infrastructure/integrity"
	"signflow/internal/infrastructure/logger"
	"signflow/internal/infrastructure/metrics"
	"signflow/internal/infrastructure/notification"
	"signflow/internal/infrastructure/oauth2"
	"signflow/internal/infrastructure/redis"
	"signflow/internal/infrastructure/repository"
	"signflow/internal/infrastructure/scheduler"
	"signflow/internal/server"
	"signflow/internal/usecase"
)

func Options() fx.Option {
	return fx.Options(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		// Configuration
		config.Module,

		// Infrastructure
		logger.Module,
		metrics.Module,
		database.Module,
		redis.Module,
		oauth2.Module,
		httpclient.Module,
		document.Module,
		integrity.Module,
		identity.Module,
		repository.Module,
		notification.Module,

		// Business Logic
		usecase.Module,

		// Background jobs
		scheduler.Module,
		fx.Provide(func(uc usecase.SignatureUsecase) scheduler.Sweeper { return uc }),

		// Delivery
		deliveryhttp.Module,

		// Server
		server.Module,
	)
}
