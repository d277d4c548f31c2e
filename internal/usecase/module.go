package usecase

import (
	"github.com/go-playground/validator/v10"
	"go.uber.org/fx"

	"signflow/internal/config"
	"signflow/internal/domain/signing"
	"signflow/internal/infrastructure/integrity"
)

var Module = fx.Module("usecase",
	fx.Provide(
		signing.NewValidate,
		newEvidenceValidator,
		func(v *integrity.Verifier) IntegrityVerifier { return v },
		NewBackground,
		NewSignatureUsecase,
	),
	fx.Invoke(registerBackground),
)

func newEvidenceValidator(cfg *config.Config, v *validator.Validate) *signing.EvidenceValidator {
	return signing.NewEvidenceValidator(v, cfg.Signing.MaxEvidenceBytes)
}

// registerBackground drains in-flight side effects on shutdown.
func registerBackground(lc fx.Lifecycle, b *Background) {
	lc.Append(fx.Hook{
		OnStop: b.Wait,
	})
}
