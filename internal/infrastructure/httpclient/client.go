package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"signflow/internal/config"
	"signflow/internal/infrastructure/oauth2"
)

const (
	maxBodyLogLength = 500 // Maximum characters to log for body
)

// ErrUnauthorized is returned when the token is rejected and refresh failed
var ErrUnauthorized = errors.New("unauthorized: token refresh failed")

var base64Pattern = regexp.MustCompile(`"([A-Za-z0-9+/=]{100,})"`)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: status=%d, body=%s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the remote API.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// HTTPClient talks to the remote document store with the configured auth method.
type HTTPClient interface {
	// Get performs a GET against a path relative to the base URL
	Get(ctx context.Context, path string, result interface{}) error
	// Post performs a JSON POST against a path relative to the base URL
	Post(ctx context.Context, path string, body interface{}, result interface{}) error
	// Stream performs an authenticated GET against an absolute URL and returns the body unread
	Stream(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

type httpClient struct {
	client        *http.Client
	config        *config.StorageConfig
	baseURL       string
	tokenService  oauth2.TokenService
	hmacSignature *HMACSignature
	logger        *zap.Logger
}

func NewHTTPClient(cfg *config.Config, tokenService oauth2.TokenService, logger *zap.Logger) HTTPClient {
	c := &httpClient{
		client: &http.Client{
			Timeout: cfg.Storage.Timeout,
		},
		config:       &cfg.Storage,
		baseURL:      strings.TrimRight(cfg.Storage.BaseURL, "/"),
		tokenService: tokenService,
		logger:       logger,
	}

	if cfg.Storage.IsHMAC() {
		c.hmacSignature = NewHMACSignature(cfg.Storage.HMAC.ClientID, cfg.Storage.HMAC.ClientSecret, logger)
		logger.Info("HTTP Client initialized with HMAC authentication",
			zap.String("client_id", cfg.Storage.HMAC.ClientID),
		)
	} else {
		logger.Info("HTTP Client initialized with OAuth2 authentication")
	}

	return c
}

// truncateString truncates a string if it exceeds maxLength
func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength] + fmt.Sprintf("... [truncated, total %d chars]", len(s))
}

// truncateBase64InJSON truncates base64-like values in JSON string
func truncateBase64InJSON(jsonStr string, maxLength int) string {
	return base64Pattern.ReplaceAllStringFunc(jsonStr, func(match string) string {
		content := match[1 : len(match)-1]
		if len(content) > maxLength {
			return fmt.Sprintf(`"%s... [base64 truncated, total %d chars]"`, content[:maxLength], len(content))
		}
		return match
	})
}

func (c *httpClient) logRequest(method, url string, body []byte) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("url", url),
		zap.String("auth_type", c.config.AuthType),
	}
	if len(body) > 0 {
		bodyStr := truncateBase64InJSON(string(body), 100)
		fields = append(fields, zap.String("body", truncateString(bodyStr, maxBodyLogLength)))
	}
	c.logger.Debug(">>> [WEBCLIENT-REQ]", fields...)
}

func (c *httpClient) logResponse(statusCode int, duration time.Duration, body []byte) {
	c.logger.Debug(">>> [WEBCLIENT-RESPONSE]",
		zap.Int("status", statusCode),
		zap.Duration("duration", duration),
		zap.String("body", truncateString(string(body), maxBodyLogLength)),
	)
}

// setAuthHeaders sets the appropriate authorization headers based on config
func (c *httpClient) setAuthHeaders(ctx context.Context, req *http.Request) error {
	if c.config.IsHMAC() {
		return c.hmacSignature.SignRequest(req)
	}

	accessToken, err := c.tokenService.GetAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	return nil
}

// send executes req, retrying once with a fresh token on 401 under OAuth2.
// newReq must build an equivalent request on each call.
func (c *httpClient) send(ctx context.Context, newReq func() (*http.Request, error)) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if err := c.setAuthHeaders(ctx, req); err != nil {
			return nil, err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}

		if resp.StatusCode != http.StatusUnauthorized || attempt > 0 || !c.config.IsOAuth2() {
			return resp, nil
		}
		resp.Body.Close()

		c.logger.Info("Received 401 Unauthorized, attempting to refresh token")
		if _, err := c.tokenService.RefreshToken(ctx); err != nil {
			c.logger.Error("Failed to refresh token", zap.Error(err))
			return nil, ErrUnauthorized
		}
	}
}

func (c *httpClient) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	fullURL := c.baseURL + path

	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	c.logRequest(method, fullURL, jsonBody)

	startTime := time.Now()
	resp, err := c.send(ctx, func() (*http.Request, error) {
		var bodyReader io.Reader
		if jsonBody != nil {
			bodyReader = bytes.NewReader(jsonBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	c.logResponse(resp.StatusCode, time.Since(startTime), respBody)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: truncateString(string(respBody), maxBodyLogLength)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

func (c *httpClient) Get(ctx context.Context, path string, result interface{}) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, result)
}

func (c *httpClient) Post(ctx context.Context, path string, body interface{}, result interface{}) error {
	return c.doRequest(ctx, http.MethodPost, path, body, result)
}

func (c *httpClient) Stream(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	c.logRequest(http.MethodGet, rawURL, nil)

	resp, err := c.send(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyLogLength))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return resp.Body, nil
}
