package repository

import (
	"go.uber.org/fx"
)

var Module = fx.Module("repository",
	fx.Provide(NewSignatureRepository),
	fx.Provide(NewActivityRepository),
	fx.Provide(NewNotificationRepository),
)
