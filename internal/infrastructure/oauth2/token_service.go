package oauth2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"signflow/internal/config"
	"signflow/internal/infrastructure/redis"
)

const accessTokenKeyPrefix = "signflow:storage_token:"

// TokenResponse represents the OAuth2 token response from the storage provider
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}

// TokenService obtains client-credentials tokens for the document store API.
type TokenService interface {
	// GetAccessToken retrieves the access token from Redis, requesting a new one when absent
	GetAccessToken(ctx context.Context) (string, error)

	// RefreshToken requests a new access token and replaces the cached one
	RefreshToken(ctx context.Context) (string, error)

	// InvalidateToken removes the cached token
	InvalidateToken(ctx context.Context) error
}

type tokenService struct {
	config *config.StorageConfig
	redis  *redis.RedisClient
	logger *zap.Logger
	client *http.Client
}

func NewTokenService(cfg *config.Config, redisClient *redis.RedisClient, logger *zap.Logger) TokenService {
	return &tokenService{
		config: &cfg.Storage,
		redis:  redisClient,
		logger: logger,
		client: &http.Client{
			Timeout: cfg.Storage.Timeout,
		},
	}
}

func (s *tokenService) cacheKey() string {
	return accessTokenKeyPrefix + s.config.OAuth2.ClientID
}

func (s *tokenService) GetAccessToken(ctx context.Context) (string, error) {
	accessToken, err := s.redis.Get(ctx, s.cacheKey())
	if err == nil && accessToken != "" {
		s.logger.Debug("Storage access token found in Redis")
		return accessToken, nil
	}

	s.logger.Info("Storage access token not cached, requesting a new one")
	return s.RefreshToken(ctx)
}

func (s *tokenService) RefreshToken(ctx context.Context) (string, error) {
	reqBody := map[string]string{
		"client_id":     s.config.OAuth2.ClientID,
		"client_secret": s.config.OAuth2.ClientSecret,
		"grant_type":    "client_credentials",
	}
	if s.config.OAuth2.Scope != "" {
		reqBody["scope"] = s.config.OAuth2.Scope
	}

	tokenResp, err := s.requestToken(ctx, reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to request token: %w", err)
	}

	if err := s.storeToken(ctx, tokenResp); err != nil {
		// The token is still usable for this call.
		s.logger.Warn("Failed to cache storage access token", zap.Error(err))
	}

	s.logger.Info("Obtained storage access token",
		zap.Int("expires_in", tokenResp.ExpiresIn),
	)

	return tokenResp.AccessToken, nil
}

func (s *tokenService) InvalidateToken(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.cacheKey()); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	s.logger.Info("Storage access token invalidated")
	return nil
}

func (s *tokenService) requestToken(ctx context.Context, reqBody map[string]string) (*TokenResponse, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.TokenURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	s.logger.Info(">>> [OAUTH2-TOKEN-REQ]",
		zap.String("url", s.config.TokenURL),
		zap.String("client_id", reqBody["client_id"]),
		zap.String("grant_type", reqBody["grant_type"]),
	)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	s.logger.Info(">>> [OAUTH2-TOKEN-RESPONSE]",
		zap.Int("status", resp.StatusCode),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token request failed: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(respBody, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response carried no access_token")
	}

	return &tokenResp, nil
}

func (s *tokenService) storeToken(ctx context.Context, tokenResp *TokenResponse) error {
	// Expire 60 seconds early so a cached token is never used at its deadline.
	expiry := time.Duration(tokenResp.ExpiresIn-60) * time.Second
	if expiry <= 0 {
		expiry = time.Duration(tokenResp.ExpiresIn) * time.Second
	}
	if expiry <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, s.cacheKey(), tokenResp.AccessToken, expiry); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}

	s.logger.Debug("Storage access token stored in Redis",
		zap.Duration("expiry", expiry),
	)
	return nil
}
