package httpclient

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

type HMACSignature struct {
	ClientID     string
	ClientSecret string
	logger       *zap.Logger
}

func NewHMACSignature(clientID, clientSecret string, logger *zap.Logger) *HMACSignature {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HMACSignature{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		logger:       logger,
	}
}

// GenerateSignature generates an HMAC-SHA256 signature over
// "date: {date}\n{method} {path} HTTP/1.1".
func (h *HMACSignature) GenerateSignature(method, fullURL string, date time.Time) (authHeader string, dateHeader string, err error) {
	parsedURL, err := url.Parse(fullURL)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse URL: %w", err)
	}

	requestPath := parsedURL.EscapedPath()
	if parsedURL.RawQuery != "" {
		requestPath = requestPath + "?" + parsedURL.RawQuery
	}
	requestLine := fmt.Sprintf("%s %s HTTP/1.1", method, requestPath)

	// RFC1123 (HTTP Date format)
	dateHeader = date.UTC().Format(http.TimeFormat)

	payload := fmt.Sprintf("date: %s\n%s", dateHeader, requestLine)

	mac := hmac.New(sha256.New, []byte(h.ClientSecret))
	mac.Write([]byte(payload))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	authHeader = fmt.Sprintf(`hmac username="%s", algorithm="hmac-sha256", headers="date request-line", signature="%s"`,
		h.ClientID, signature)

	h.logger.Debug("HMAC signature generated",
		zap.String("date", dateHeader),
		zap.String("request_line", requestLine),
		zap.String("client_id", h.ClientID),
	)

	return authHeader, dateHeader, nil
}

// SignRequest signs an HTTP request with HMAC-SHA256 signature
func (h *HMACSignature) SignRequest(req *http.Request) error {
	authHeader, dateHeader, err := h.GenerateSignature(req.Method, req.URL.String(), time.Now())
	if err != nil {
		return err
	}

	req.Header.Set("Date", dateHeader)
	req.Header.Set("Authorization", authHeader)

	return nil
}
