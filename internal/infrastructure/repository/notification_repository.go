package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"signflow/internal/domain/entity"
	"signflow/internal/domain/repository"
	"signflow/internal/infrastructure/database"
)

type notificationRepository struct {
	db     *database.Database
	logger *zap.Logger
}

// NewNotificationRepository creates the in-app notification repository
func NewNotificationRepository(db *database.Database, logger *zap.Logger) repository.NotificationRepository {
	return &notificationRepository{
		db:     db,
		logger: logger,
	}
}

// Save stores a delivered notification. Redelivery of the same id is ignored.
func (r *notificationRepository) Save(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (id, recipient_id, recipient_email, type, title, message, link, related_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.DB.ExecContext(ctx, query,
		n.ID,
		n.RecipientID,
		n.RecipientEmail,
		n.Type,
		n.Title,
		n.Message,
		n.Link,
		n.RelatedID,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}

	return nil
}
