package repository

import (
	"context"
	"time"

	"signflow/internal/domain/entity"
)

// SignatureRepository persists requests, signers, and evidence.
// Reads outside WithinTx are snapshots and must not drive transitions.
type SignatureRepository interface {
	// WithinTx runs fn in one transaction. fn's error rolls it back.
	WithinTx(ctx context.Context, fn func(tx SignatureTx) error) error

	// GetRequest returns nil without error when the request does not exist.
	GetRequest(ctx context.Context, id string) (*entity.SignatureRequest, error)
	ListRequests(ctx context.Context, organizationID string) ([]entity.SignatureRequest, error)
	ListSigners(ctx context.Context, requestID string) ([]entity.Signer, error)
	ListSignatures(ctx context.Context, requestID string) ([]entity.Signature, error)

	// SetBaselineHash records the baseline digest once. It reports whether a row changed.
	SetBaselineHash(ctx context.Context, requestID, hash string) (bool, error)

	// ListOverdue returns ids of pending requests whose expiresAt is before now.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]string, error)

	MarkSignerNotified(ctx context.Context, signerID string, at time.Time) error
}

// SignatureTx is the transactional view. Lock* methods hold row locks until commit.
type SignatureTx interface {
	// LockPendingForDocument returns the pending request of a document, or nil.
	LockPendingForDocument(ctx context.Context, documentID string) (*entity.SignatureRequest, error)
	InsertRequest(ctx context.Context, req *entity.SignatureRequest) error
	InsertSigners(ctx context.Context, signers []entity.Signer) error

	// LockRequest returns nil without error when the request does not exist.
	LockRequest(ctx context.Context, id string) (*entity.SignatureRequest, error)
	LockSigners(ctx context.Context, requestID string) ([]entity.Signer, error)
	UpdateRequest(ctx context.Context, req *entity.SignatureRequest) error
	UpdateSigner(ctx context.Context, signer *entity.Signer) error
	InsertSignature(ctx context.Context, sig *entity.Signature) error
}
