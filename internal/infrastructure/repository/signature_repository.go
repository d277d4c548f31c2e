package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"signflow/internal/domain/apperror"
	"signflow/internal/domain/entity"
	"signflow/internal/domain/repository"
	"signflow/internal/infrastructure/database"
)

const (
	requestColumns = `id, organization_id, document_id, title, description, status, requested_by, requested_at,
		expires_at, signed_at, signed_by, document_hash, signed_document_hash,
		signer_count, completed_count, require_all, require_sequential, updated_at`

	signerColumns = `id, request_id, user_id, email, name, sequence, status, implicit,
		signed_at, declined_at, notified_at, created_at`

	signatureColumns = `id, request_id, signer_id, user_id, type, data, ip_address, user_agent,
		signed_at, consent_given, legal_name`

	// pq error code for unique_violation
	uniqueViolation = "23505"
	pendingIndex    = "uq_signature_requests_pending_document"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type signatureRepository struct {
	db     *database.Database
	logger *zap.Logger
}

func NewSignatureRepository(db *database.Database, logger *zap.Logger) repository.SignatureRepository {
	return &signatureRepository{
		db:     db,
		logger: logger,
	}
}

func (r *signatureRepository) WithinTx(ctx context.Context, fn func(tx repository.SignatureTx) error) error {
	tx, err := r.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&signatureTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *signatureRepository) GetRequest(ctx context.Context, id string) (*entity.SignatureRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM signature_requests WHERE id = $1`
	return scanRequest(r.db.DB.QueryRowContext(ctx, query, id))
}

func (r *signatureRepository) ListRequests(ctx context.Context, organizationID string) ([]entity.SignatureRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM signature_requests
		WHERE organization_id = $1
		ORDER BY requested_at DESC`

	rows, err := r.db.DB.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list signature requests: %w", err)
	}
	defer rows.Close()

	var out []entity.SignatureRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

func (r *signatureRepository) ListSigners(ctx context.Context, requestID string) ([]entity.Signer, error) {
	return listSigners(ctx, r.db.DB, requestID, false)
}

func (r *signatureRepository) ListSignatures(ctx context.Context, requestID string) ([]entity.Signature, error) {
	query := `SELECT ` + signatureColumns + ` FROM signatures WHERE request_id = $1 ORDER BY signed_at`

	rows, err := r.db.DB.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list signatures: %w", err)
	}
	defer rows.Close()

	var out []entity.Signature
	for rows.Next() {
		var s entity.Signature
		if err := rows.Scan(
			&s.ID, &s.RequestID, &s.SignerID, &s.UserID, &s.Type, &s.Data, &s.IPAddress, &s.UserAgent,
			&s.Timestamp, &s.ConsentGiven, &s.LegalName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan signature: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SetBaselineHash only fills an empty baseline on a pending request, so late
// or repeated captures are harmless and terminal records stay untouched.
func (r *signatureRepository) SetBaselineHash(ctx context.Context, requestID, hash string) (bool, error) {
	query := `UPDATE signature_requests SET document_hash = $2
		WHERE id = $1 AND status = 'pending' AND (document_hash IS NULL OR document_hash = '')`

	res, err := r.db.DB.ExecContext(ctx, query, requestID, hash)
	if err != nil {
		return false, fmt.Errorf("failed to set baseline hash: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *signatureRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	query := `SELECT id FROM signature_requests
		WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2`

	rows, err := r.db.DB.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue requests: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan request id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *signatureRepository) MarkSignerNotified(ctx context.Context, signerID string, at time.Time) error {
	_, err := r.db.DB.ExecContext(ctx,
		`UPDATE signature_request_signers SET notified_at = $2 WHERE id = $1`, signerID, at)
	if err != nil {
		return fmt.Errorf("failed to mark signer notified: %w", err)
	}
	return nil
}

// signatureTx implements repository.SignatureTx on top of *sql.Tx.
type signatureTx struct {
	q queryer
}

func (t *signatureTx) LockPendingForDocument(ctx context.Context, documentID string) (*entity.SignatureRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM signature_requests
		WHERE document_id = $1 AND status = 'pending'
		FOR UPDATE`
	return scanRequest(t.q.QueryRowContext(ctx, query, documentID))
}

func (t *signatureTx) InsertRequest(ctx context.Context, req *entity.SignatureRequest) error {
	query := `INSERT INTO signature_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := t.q.ExecContext(ctx, query,
		req.ID, req.OrganizationID, req.DocumentID, req.Title, req.Description, req.Status,
		req.RequestedBy, req.RequestedAt, req.ExpiresAt, req.SignedAt, nullString(req.SignedBy),
		nullString(req.DocumentHash), nullString(req.SignedDocumentHash),
		req.SignerCount, req.CompletedCount, req.RequireAll, req.RequireSequential, req.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, pendingIndex) {
			return apperror.StateConflict("a pending signature request already exists for this document")
		}
		return fmt.Errorf("failed to insert signature request: %w", err)
	}
	return nil
}

func (t *signatureTx) InsertSigners(ctx context.Context, signers []entity.Signer) error {
	query := `INSERT INTO signature_request_signers (` + signerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	for _, s := range signers {
		_, err := t.q.ExecContext(ctx, query,
			s.ID, s.RequestID, nullString(s.UserID), s.Email, s.Name, s.Sequence, s.Status, s.Implicit,
			s.SignedAt, s.DeclinedAt, s.NotifiedAt, s.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert signer %d: %w", s.Sequence, err)
		}
	}
	return nil
}

func (t *signatureTx) LockRequest(ctx context.Context, id string) (*entity.SignatureRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM signature_requests WHERE id = $1 FOR UPDATE`
	return scanRequest(t.q.QueryRowContext(ctx, query, id))
}

func (t *signatureTx) LockSigners(ctx context.Context, requestID string) ([]entity.Signer, error) {
	return listSigners(ctx, t.q, requestID, true)
}

func (t *signatureTx) UpdateRequest(ctx context.Context, req *entity.SignatureRequest) error {
	query := `UPDATE signature_requests SET
			status = $2, signed_at = $3, signed_by = $4, signed_document_hash = $5,
			completed_count = $6, updated_at = $7
		WHERE id = $1`

	_, err := t.q.ExecContext(ctx, query,
		req.ID, req.Status, req.SignedAt, nullString(req.SignedBy), nullString(req.SignedDocumentHash),
		req.CompletedCount, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update signature request: %w", err)
	}
	return nil
}

func (t *signatureTx) UpdateSigner(ctx context.Context, s *entity.Signer) error {
	query := `UPDATE signature_request_signers SET status = $2, signed_at = $3, declined_at = $4
		WHERE id = $1`

	_, err := t.q.ExecContext(ctx, query, s.ID, s.Status, s.SignedAt, s.DeclinedAt)
	if err != nil {
		return fmt.Errorf("failed to update signer: %w", err)
	}
	return nil
}

func (t *signatureTx) InsertSignature(ctx context.Context, s *entity.Signature) error {
	query := `INSERT INTO signatures (` + signatureColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := t.q.ExecContext(ctx, query,
		s.ID, s.RequestID, s.SignerID, s.UserID, s.Type, s.Data, s.IPAddress, s.UserAgent,
		s.Timestamp, s.ConsentGiven, s.LegalName,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return apperror.StateConflict("signer has already signed this request")
		}
		return fmt.Errorf("failed to insert signature: %w", err)
	}
	return nil
}

func listSigners(ctx context.Context, q queryer, requestID string, lock bool) ([]entity.Signer, error) {
	query := `SELECT ` + signerColumns + ` FROM signature_request_signers
		WHERE request_id = $1 ORDER BY sequence`
	if lock {
		query += ` FOR UPDATE`
	}

	rows, err := q.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list signers: %w", err)
	}
	defer rows.Close()

	var out []entity.Signer
	for rows.Next() {
		s, err := scanSigner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSigner(row rowScanner) (entity.Signer, error) {
	var (
		s                                entity.Signer
		userID                           sql.NullString
		signedAt, declinedAt, notifiedAt sql.NullTime
	)
	if err := row.Scan(
		&s.ID, &s.RequestID, &userID, &s.Email, &s.Name, &s.Sequence, &s.Status, &s.Implicit,
		&signedAt, &declinedAt, &notifiedAt, &s.CreatedAt,
	); err != nil {
		return entity.Signer{}, fmt.Errorf("failed to scan signer: %w", err)
	}
	s.UserID = userID.String
	s.SignedAt = timePtr(signedAt)
	s.DeclinedAt = timePtr(declinedAt)
	s.NotifiedAt = timePtr(notifiedAt)
	return s, nil
}

// scanRequest returns nil, nil on sql.ErrNoRows.
func scanRequest(row rowScanner) (*entity.SignatureRequest, error) {
	var (
		req                           entity.SignatureRequest
		expiresAt, signedAt           sql.NullTime
		signedBy, docHash, signedHash sql.NullString
	)

	err := row.Scan(
		&req.ID, &req.OrganizationID, &req.DocumentID, &req.Title, &req.Description, &req.Status,
		&req.RequestedBy, &req.RequestedAt, &expiresAt, &signedAt, &signedBy, &docHash, &signedHash,
		&req.SignerCount, &req.CompletedCount, &req.RequireAll, &req.RequireSequential, &req.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan signature request: %w", err)
	}

	req.ExpiresAt = timePtr(expiresAt)
	req.SignedAt = timePtr(signedAt)
	req.SignedBy = signedBy.String
	req.DocumentHash = docHash.String
	req.SignedDocumentHash = signedHash.String
	return &req, nil
}

// isUniqueViolation reports a pq unique_violation. An empty constraint
// matches any unique index.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
