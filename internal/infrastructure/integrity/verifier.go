package integrity

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"signflow/internal/config"
	"signflow/internal/domain/apperror"
	"signflow/internal/domain/repository"
	"signflow/internal/infrastructure/metrics"
)

type Outcome string

const (
	OutcomeMatch      Outcome = "match"
	OutcomeMismatch   Outcome = "mismatch"
	OutcomeNoBaseline Outcome = "no_baseline"
)

// Verification is the result of comparing the current digest to the baseline.
// Current is empty when the document could not be fetched.
type Verification struct {
	Outcome  Outcome
	Baseline string
	Current  string
}

// Compare classifies a baseline against a freshly computed digest.
func Compare(baseline, current string) Outcome {
	if baseline == "" || current == "" {
		return OutcomeNoBaseline
	}
	if strings.EqualFold(baseline, current) {
		return OutcomeMatch
	}
	return OutcomeMismatch
}

// Verifier computes document digests through the document store.
type Verifier struct {
	store   repository.DocumentStore
	hasher  Hasher
	ttl     time.Duration
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewVerifier(cfg *config.Config, store repository.DocumentStore, hasher Hasher, m *metrics.Metrics, logger *zap.Logger) *Verifier {
	ttl := cfg.Storage.ReadURLTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Verifier{
		store:   store,
		hasher:  hasher,
		ttl:     ttl,
		timeout: cfg.Signing.HashTimeout,
		metrics: m,
		logger:  logger,
	}
}

// Compute fetches the document's current bytes and returns their digest.
// Failures are transient: the store crossed a network boundary.
func (v *Verifier) Compute(ctx context.Context, documentID string) (string, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	handle, err := v.store.OpenReadHandle(ctx, documentID, v.ttl)
	if err != nil {
		return "", apperror.Transient("failed to open document read handle", err)
	}

	digest, err := v.hasher.Hash(ctx, handle)
	if err != nil {
		return "", apperror.Transient("failed to hash document", err)
	}
	return digest, nil
}

// Verify recomputes the digest and compares it to baseline. Only a confirmed
// mismatch returns an error; fetch failures degrade to OutcomeNoBaseline.
func (v *Verifier) Verify(ctx context.Context, documentID, baseline string) (*Verification, error) {
	current, err := v.Compute(ctx, documentID)
	if err != nil {
		v.logger.Warn("Integrity check could not fetch document, continuing without baseline",
			zap.String("document_id", documentID),
			zap.Bool("had_baseline", baseline != ""),
			zap.Error(err),
		)
		current = ""
	}

	result := &Verification{
		Outcome:  Compare(baseline, current),
		Baseline: baseline,
		Current:  current,
	}
	v.observe(result.Outcome)

	if result.Outcome == OutcomeMismatch {
		v.logger.Error("Document integrity violation",
			zap.String("document_id", documentID),
			zap.String("baseline_hash", baseline),
			zap.String("current_hash", current),
		)
		return result, apperror.Integrity(baseline, current)
	}

	return result, nil
}

func (v *Verifier) observe(outcome Outcome) {
	if v.metrics != nil {
		v.metrics.IntegrityChecks.WithLabelValues(string(outcome)).Inc()
	}
}
