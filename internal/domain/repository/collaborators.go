package repository

import (
	"context"
	"io"
	"time"

	"signflow/internal/domain/entity"
)

// ReadHandle is a time-bound handle on a document's current bytes.
type ReadHandle interface {
	URL() string
	ExpiresAt() time.Time
	Open(ctx context.Context) (io.ReadCloser, error)
}

// DocumentStore is the document/blob store collaborator.
type DocumentStore interface {
	// GetMetadata returns nil without error when the document does not exist.
	GetMetadata(ctx context.Context, documentID string) (*entity.DocumentMeta, error)
	OpenReadHandle(ctx context.Context, documentID string, ttl time.Duration) (ReadHandle, error)
}

// IdentityProvider resolves a bearer credential to the calling principal.
type IdentityProvider interface {
	// Resolve returns nil without error when the credential is unknown.
	Resolve(ctx context.Context, token string) (*entity.Principal, error)
}

// NotificationDispatcher accepts notifications for asynchronous delivery.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, n *entity.Notification) error
}

// ActivityRepository is the append-only audit log.
type ActivityRepository interface {
	Append(ctx context.Context, activity *entity.Activity) error
	// ListByResource returns a resource's trail, oldest first.
	ListByResource(ctx context.Context, resourceType, resourceID string) ([]entity.Activity, error)
}

// NotificationRepository stores delivered in-app notifications.
type NotificationRepository interface {
	Save(ctx context.Context, n *entity.Notification) error
}
