package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"signflow/internal/domain/entity"
	"signflow/internal/domain/repository"
)

const (
	metaFilename    = "meta.json"
	contentFilename = "content"
)

// LocalStore keeps documents under BasePath/<document id>/ as a content
// file with a meta.json sidecar.
type LocalStore struct {
	basePath string
	logger   *zap.Logger
}

func NewLocalStore(basePath string, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create document directory %s: %w", basePath, err)
	}

	logger.Info("Local document store initialized",
		zap.String("base_path", basePath),
	)

	return &LocalStore{
		basePath: basePath,
		logger:   logger,
	}, nil
}

func (s *LocalStore) documentPath(documentID string) (string, error) {
	if documentID == "" || documentID == "." || documentID == ".." ||
		strings.ContainsAny(documentID, `/\`) {
		return "", fmt.Errorf("invalid document id %q", documentID)
	}
	return filepath.Join(s.basePath, documentID), nil
}

func (s *LocalStore) GetMetadata(ctx context.Context, documentID string) (*entity.DocumentMeta, error) {
	dir, err := s.documentPath(documentID)
	if err != nil {
		return nil, nil
	}

	raw, err := os.ReadFile(filepath.Join(dir, metaFilename))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document metadata: %w", err)
	}

	var meta entity.DocumentMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse document metadata: %w", err)
	}
	meta.ID = documentID

	if info, err := os.Stat(filepath.Join(dir, contentFilename)); err == nil {
		meta.Size = info.Size()
	}

	return &meta, nil
}

func (s *LocalStore) OpenReadHandle(ctx context.Context, documentID string, ttl time.Duration) (repository.ReadHandle, error) {
	dir, err := s.documentPath(documentID)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, contentFilename)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat document content: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve document path: %w", err)
	}

	return &localHandle{
		path:      path,
		url:       (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(),
		expiresAt: time.Now().Add(ttl),
	}, nil
}

type localHandle struct {
	path      string
	url       string
	expiresAt time.Time
}

func (h *localHandle) URL() string          { return h.url }
func (h *localHandle) ExpiresAt() time.Time { return h.expiresAt }

func (h *localHandle) Open(ctx context.Context) (io.ReadCloser, error) {
	if time.Now().After(h.expiresAt) {
		return nil, fmt.Errorf("read handle expired at %s", h.expiresAt.Format(time.RFC3339))
	}
	f, err := os.Open(h.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document content: %w", err)
	}
	return f, nil
}
