package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"signflow/internal/domain/entity"
	"signflow/internal/domain/repository"
	"signflow/internal/infrastructure/redis"
)

const sessionKeyPrefix = "signflow:session:"

var Module = fx.Module("identity",
	fx.Provide(NewSessionProvider),
	fx.Provide(func(p *SessionProvider) repository.IdentityProvider { return p }),
)

// SessionStore is the read side of *redis.RedisClient sessions need.
type SessionStore interface {
	Get(ctx context.Context, key string) (string, error)
}

// SessionProvider resolves bearer tokens to principals stored in Redis.
// Sessions are written by the login service as JSON principals under
// signflow:session:<token>; this service only reads them.
type SessionProvider struct {
	redis  SessionStore
	logger *zap.Logger
}

func NewSessionProvider(redisClient *redis.RedisClient, logger *zap.Logger) *SessionProvider {
	return newSessionProvider(redisClient, logger)
}

func newSessionProvider(store SessionStore, logger *zap.Logger) *SessionProvider {
	return &SessionProvider{
		redis:  store,
		logger: logger,
	}
}

func (p *SessionProvider) Resolve(ctx context.Context, token string) (*entity.Principal, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := p.redis.Get(ctx, sessionKeyPrefix+token)
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var principal entity.Principal
	if err := json.Unmarshal([]byte(raw), &principal); err != nil {
		p.logger.Warn("Discarding malformed session", zap.Error(err))
		return nil, nil
	}
	if principal.ID == "" || principal.OrganizationID == "" {
		return nil, nil
	}

	return &principal, nil
}
