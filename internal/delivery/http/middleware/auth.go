package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"signflow/internal/domain/apperror"
	"signflow/internal/domain/entity"
	"signflow/internal/domain/repository"
)

const principalKey = "principal"

// Authenticate resolves the bearer token to a principal and stores it on the context.
// Requests without a resolvable principal never reach the handlers.
func Authenticate(provider repository.IdentityProvider, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return apperror.AccessDenied("authentication required")
		}

		principal, err := provider.Resolve(c.UserContext(), token)
		if err != nil {
			logger.Error("Failed to resolve session",
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			return apperror.Transient("failed to resolve session", err)
		}
		if principal == nil {
			return apperror.AccessDenied("invalid or expired session")
		}

		c.Locals(principalKey, principal)
		return c.Next()
	}
}

// Principal returns the caller resolved by Authenticate, or nil.
func Principal(c *fiber.Ctx) *entity.Principal {
	p, _ := c.Locals(principalKey).(*entity.Principal)
	return p
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
