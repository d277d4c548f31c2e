package document

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"go.uber.org/zap"

	"signflow/internal/domain/entity"
	"signflow/internal/domain/repository"
	"signflow/internal/infrastructure/httpclient"
)

type readURLRequest struct {
	TTLSeconds int `json:"ttl_seconds"`
}

type readURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RemoteStore reads documents from the storage service API.
type RemoteStore struct {
	client httpclient.HTTPClient
	logger *zap.Logger
}

func NewRemoteStore(client httpclient.HTTPClient, logger *zap.Logger) *RemoteStore {
	return &RemoteStore{
		client: client,
		logger: logger,
	}
}

func documentPath(documentID string) string {
	return "/documents/" + url.PathEscape(documentID)
}

func (s *RemoteStore) GetMetadata(ctx context.Context, documentID string) (*entity.DocumentMeta, error) {
	var meta entity.DocumentMeta
	if err := s.client.Get(ctx, documentPath(documentID), &meta); err != nil {
		if httpclient.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document metadata: %w", err)
	}
	if meta.ID == "" {
		meta.ID = documentID
	}
	return &meta, nil
}

func (s *RemoteStore) OpenReadHandle(ctx context.Context, documentID string, ttl time.Duration) (repository.ReadHandle, error) {
	var resp readURLResponse
	req := readURLRequest{TTLSeconds: int(ttl / time.Second)}
	if err := s.client.Post(ctx, documentPath(documentID)+"/read-url", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to issue read url: %w", err)
	}
	if resp.URL == "" {
		return nil, fmt.Errorf("storage returned an empty read url for document %s", documentID)
	}
	if resp.ExpiresAt.IsZero() {
		resp.ExpiresAt = time.Now().Add(ttl)
	}

	s.logger.Debug("Read url issued",
		zap.String("document_id", documentID),
		zap.Time("expires_at", resp.ExpiresAt),
	)

	return &remoteHandle{client: s.client, url: resp.URL, expiresAt: resp.ExpiresAt}, nil
}

type remoteHandle struct {
	client    httpclient.HTTPClient
	url       string
	expiresAt time.Time
}

func (h *remoteHandle) URL() string          { return h.url }
func (h *remoteHandle) ExpiresAt() time.Time { return h.expiresAt }

func (h *remoteHandle) Open(ctx context.Context) (io.ReadCloser, error) {
	return h.client.Stream(ctx, h.url)
}
