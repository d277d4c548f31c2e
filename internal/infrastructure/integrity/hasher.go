package integrity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"signflow/internal/domain/repository"
	"signflow/internal/infrastructure/metrics"
)

// Hasher computes the content digest behind a read handle.
type Hasher interface {
	Hash(ctx context.Context, handle repository.ReadHandle) (string, error)
}

type sha256Hasher struct {
	metrics *metrics.Metrics
}

// NewHasher returns a SHA-256 hasher producing lowercase hex digests.
func NewHasher(m *metrics.Metrics) Hasher {
	return &sha256Hasher{metrics: m}
}

func (h *sha256Hasher) Hash(ctx context.Context, handle repository.ReadHandle) (string, error) {
	start := time.Now()
	defer func() {
		if h.metrics != nil {
			h.metrics.HashDuration.Observe(time.Since(start).Seconds())
		}
	}()

	body, err := handle.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to open document: %w", err)
	}
	defer body.Close()

	sum := sha256.New()
	if _, err := io.Copy(sum, body); err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}

	return hex.EncodeToString(sum.Sum(nil)), nil
}
