package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"signflow/internal/domain/entity"
	"signflow/internal/domain/repository"
	"signflow/internal/infrastructure/database"
)

type activityRepository struct {
	db     *database.Database
	logger *zap.Logger
}

// NewActivityRepository creates the append-only audit log repository
func NewActivityRepository(db *database.Database, logger *zap.Logger) repository.ActivityRepository {
	return &activityRepository{
		db:     db,
		logger: logger,
	}
}

// Append saves an audit record to the database
func (r *activityRepository) Append(ctx context.Context, activity *entity.Activity) error {
	query := `
		INSERT INTO activity_logs (organization_id, actor_id, action, resource_type, resource_id, resource_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.DB.QueryRowContext(ctx, query,
		activity.OrganizationID,
		activity.ActorID,
		activity.Action,
		activity.ResourceType,
		activity.ResourceID,
		activity.ResourceName,
		activity.CreatedAt,
	).Scan(&activity.ID)

	if err != nil {
		r.logger.Error("Failed to save activity",
			zap.String("action", activity.Action),
			zap.String("resource_id", activity.ResourceID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to save activity: %w", err)
	}

	return nil
}

// ListByResource returns the audit trail of one resource, oldest first
func (r *activityRepository) ListByResource(ctx context.Context, resourceType, resourceID string) ([]entity.Activity, error) {
	query := `
		SELECT id, organization_id, actor_id, action, resource_type, resource_id, resource_name, created_at
		FROM activity_logs
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.DB.QueryContext(ctx, query, resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var activities []entity.Activity
	for rows.Next() {
		var a entity.Activity
		if err := rows.Scan(
			&a.ID,
			&a.OrganizationID,
			&a.ActorID,
			&a.Action,
			&a.ResourceType,
			&a.ResourceID,
			&a.ResourceName,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activities: %w", err)
	}

	return activities, nil
}
