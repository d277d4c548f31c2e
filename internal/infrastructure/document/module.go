package document

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"signflow/internal/config"
	"signflow/internal/domain/repository"
	"signflow/internal/infrastructure/httpclient"
)

var Module = fx.Module("document",
	fx.Provide(NewDocumentStore),
)

// NewDocumentStore selects the store driver from configuration.
func NewDocumentStore(cfg *config.Config, client httpclient.HTTPClient, logger *zap.Logger) (repository.DocumentStore, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverLocal, "":
		return NewLocalStore(cfg.Storage.BasePath, logger)
	case config.StorageDriverRemote:
		logger.Info("Remote document store initialized",
			zap.String("base_url", cfg.Storage.BaseURL),
		)
		return NewRemoteStore(client, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
