package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"signflow/internal/config"
)

var Module = fx.Module("database",
	fx.Provide(NewDatabase),
)

type Database struct {
	DB     *sql.DB
	logger *zap.Logger
}

func NewDatabase(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*Database, error) {
	// Build PostgreSQL connection string
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
	)

	db, err := sql.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connected successfully",
		zap.String("driver", cfg.Database.Driver),
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("dbname", cfg.Database.DBName),
	)

	database := &Database{
		DB:     db,
		logger: logger,
	}

	// Run migrations
	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return database.Close()
		},
	})

	return database, nil
}

// migrations run in order; each statement is idempotent.
var migrations = []struct {
	name string
	sql  string
}{
	{"create signature_requests", `
	CREATE TABLE IF NOT EXISTS signature_requests (
		id UUID PRIMARY KEY,
		organization_id VARCHAR(64) NOT NULL,
		document_id VARCHAR(128) NOT NULL,
		title VARCHAR(200) NOT NULL,
		description TEXT DEFAULT '',
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		requested_by VARCHAR(64) NOT NULL,
		requested_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ,
		signed_at TIMESTAMPTZ,
		signed_by VARCHAR(64),
		document_hash VARCHAR(128),
		signed_document_hash VARCHAR(128),
		signer_count INTEGER NOT NULL DEFAULT 1 CHECK (signer_count >= 1),
		completed_count INTEGER NOT NULL DEFAULT 0 CHECK (completed_count >= 0),
		require_all BOOLEAN NOT NULL DEFAULT TRUE,
		require_sequential BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CHECK (completed_count <= signer_count),
		CHECK (status IN ('pending', 'signed', 'declined', 'expired'))
	);
	`},
	// One pending request per document; concurrent creates race on this index.
	{"index pending per document", `
	CREATE UNIQUE INDEX IF NOT EXISTS uq_signature_requests_pending_document
		ON signature_requests(document_id) WHERE status = 'pending';
	`},
	{"index requests by organization", `
	CREATE INDEX IF NOT EXISTS idx_signature_requests_org ON signature_requests(organization_id, requested_at DESC);
	`},
	{"create signature_request_signers", `
	CREATE TABLE IF NOT EXISTS signature_request_signers (
		id UUID PRIMARY KEY,
		request_id UUID NOT NULL REFERENCES signature_requests(id) ON DELETE CASCADE,
		user_id VARCHAR(64),
		email VARCHAR(255) DEFAULT '',
		name VARCHAR(200) DEFAULT '',
		sequence INTEGER NOT NULL CHECK (sequence > 0),
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		implicit BOOLEAN NOT NULL DEFAULT FALSE,
		signed_at TIMESTAMPTZ,
		declined_at TIMESTAMPTZ,
		notified_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (request_id, sequence),
		CHECK (status IN ('pending', 'signed', 'declined'))
	);
	`},
	{"create signatures", `
	CREATE TABLE IF NOT EXISTS signatures (
		id UUID PRIMARY KEY,
		request_id UUID NOT NULL REFERENCES signature_requests(id) ON DELETE CASCADE,
		signer_id UUID NOT NULL REFERENCES signature_request_signers(id) ON DELETE CASCADE,
		user_id VARCHAR(64) NOT NULL,
		type VARCHAR(16) NOT NULL,
		data TEXT NOT NULL,
		ip_address VARCHAR(64) DEFAULT '',
		user_agent TEXT DEFAULT '',
		signed_at TIMESTAMPTZ NOT NULL,
		consent_given BOOLEAN NOT NULL CHECK (consent_given),
		legal_name VARCHAR(200) NOT NULL,
		UNIQUE (request_id, signer_id)
	);
	`},
	{"create activity_logs", `
	CREATE TABLE IF NOT EXISTS activity_logs (
		id BIGSERIAL PRIMARY KEY,
		organization_id VARCHAR(64) NOT NULL,
		actor_id VARCHAR(64) NOT NULL,
		action VARCHAR(64) NOT NULL,
		resource_type VARCHAR(64) NOT NULL,
		resource_id VARCHAR(128) NOT NULL,
		resource_name VARCHAR(255) DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`},
	{"index activity by resource", `
	CREATE INDEX IF NOT EXISTS idx_activity_logs_resource ON activity_logs(resource_type, resource_id);
	`},
	{"create notifications", `
	CREATE TABLE IF NOT EXISTS notifications (
		id UUID PRIMARY KEY,
		recipient_id VARCHAR(64) DEFAULT '',
		recipient_email VARCHAR(255) DEFAULT '',
		type VARCHAR(64) NOT NULL,
		title VARCHAR(255) NOT NULL,
		message TEXT NOT NULL,
		link TEXT DEFAULT '',
		related_id VARCHAR(128) DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		read_at TIMESTAMPTZ
	);
	`},
}

func (d *Database) migrate() error {
	for _, m := range migrations {
		if _, err := d.DB.Exec(m.sql); err != nil {
			return fmt.Errorf("failed to %s: %w", m.name, err)
		}
	}

	d.logger.Info("Database migrations completed successfully",
		zap.Int("migrations", len(migrations)),
	)
	return nil
}

func (d *Database) Close() error {
	return d.DB.Close()
}
