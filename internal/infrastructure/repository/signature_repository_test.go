package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signflow/internal/domain/apperror"
	"signflow/internal/domain/entity"
)

// fakeRow feeds column values to Scan the way database/sql would.
type fakeRow struct {
	values []interface{}
	err    error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("expected %d destination arguments, got %d", len(r.values), len(dest))
	}
	for i, d := range dest {
		if sc, ok := d.(sql.Scanner); ok {
			if err := sc.Scan(r.values[i]); err != nil {
				return err
			}
			continue
		}
		target := reflect.ValueOf(d).Elem()
		target.Set(reflect.ValueOf(r.values[i]).Convert(target.Type()))
	}
	return nil
}

// execQueryer records the last statement and fails it with err.
type execQueryer struct {
	err   error
	query string
}

func (q *execQueryer) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	q.query = query
	if q.err != nil {
		return nil, q.err
	}
	return driver.RowsAffected(1), nil
}

func (q *execQueryer) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("not supported")
}

func (q *execQueryer) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func TestScanRequestNullColumns(t *testing.T) {
	requestedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	req, err := scanRequest(fakeRow{values: []interface{}{
		"req-1", "org-1", "doc-1", "NDA", "", "pending", "staff-1", requestedAt,
		nil, nil, nil, nil, nil,
		1, 0, true, false, requestedAt,
	}})
	require.NoError(t, err)
	require.NotNil(t, req)

	assert.Equal(t, entity.RequestStatusPending, req.Status)
	assert.Nil(t, req.ExpiresAt)
	assert.Nil(t, req.SignedAt)
	assert.Empty(t, req.SignedBy)
	assert.Empty(t, req.DocumentHash)
	assert.Empty(t, req.SignedDocumentHash)
	assert.Equal(t, 1, req.SignerCount)
	assert.True(t, req.RequireAll)
}

func TestScanRequestPopulatedColumns(t *testing.T) {
	requestedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	expiresAt := requestedAt.Add(72 * time.Hour)
	signedAt := requestedAt.Add(time.Hour)

	req, err := scanRequest(fakeRow{values: []interface{}{
		"req-1", "org-1", "doc-1", "NDA", "mutual", "signed", "staff-1", requestedAt,
		expiresAt, signedAt, "alice", "abc123", "abc123",
		2, 2, true, true, signedAt,
	}})
	require.NoError(t, err)

	assert.Equal(t, entity.RequestStatusSigned, req.Status)
	require.NotNil(t, req.ExpiresAt)
	assert.True(t, expiresAt.Equal(*req.ExpiresAt))
	require.NotNil(t, req.SignedAt)
	assert.True(t, signedAt.Equal(*req.SignedAt))
	assert.Equal(t, "alice", req.SignedBy)
	assert.Equal(t, "abc123", req.DocumentHash)
	assert.Equal(t, "abc123", req.SignedDocumentHash)
}

func TestScanRequestNoRows(t *testing.T) {
	req, err := scanRequest(fakeRow{err: sql.ErrNoRows})
	assert.NoError(t, err)
	assert.Nil(t, req)

	_, err = scanRequest(fakeRow{err: errors.New("conn reset")})
	assert.ErrorContains(t, err, "failed to scan signature request")
}

func TestScanSignerNullColumns(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	external, err := scanSigner(fakeRow{values: []interface{}{
		"sig-1", "req-1", nil, "ext@partner.test", "Ext", 2, "pending", false,
		nil, nil, nil, createdAt,
	}})
	require.NoError(t, err)
	assert.Empty(t, external.UserID)
	assert.Equal(t, entity.SignerStatusPending, external.Status)
	assert.Nil(t, external.SignedAt)
	assert.Nil(t, external.DeclinedAt)
	assert.Nil(t, external.NotifiedAt)

	notifiedAt := createdAt.Add(time.Minute)
	signedAt := createdAt.Add(time.Hour)
	bound, err := scanSigner(fakeRow{values: []interface{}{
		"sig-2", "req-1", "alice", "alice@acme.test", "Alice", 1, "signed", false,
		signedAt, nil, notifiedAt, createdAt,
	}})
	require.NoError(t, err)
	assert.Equal(t, "alice", bound.UserID)
	assert.Equal(t, entity.SignerStatusSigned, bound.Status)
	require.NotNil(t, bound.SignedAt)
	assert.True(t, signedAt.Equal(*bound.SignedAt))
	assert.Nil(t, bound.DeclinedAt)
	require.NotNil(t, bound.NotifiedAt)
}

func TestIsUniqueViolation(t *testing.T) {
	pending := &pq.Error{Code: uniqueViolation, Constraint: pendingIndex}
	other := &pq.Error{Code: uniqueViolation, Constraint: "uq_signatures_signer"}
	fkey := &pq.Error{Code: "23503", Constraint: pendingIndex}

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"pending index", pending, pendingIndex, true},
		{"wrapped", fmt.Errorf("exec: %w", pending), pendingIndex, true},
		{"other index", other, pendingIndex, false},
		{"any index", other, "", true},
		{"foreign key", fkey, pendingIndex, false},
		{"plain error", errors.New("boom"), "", false},
		{"nil", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err, tt.constraint))
		})
	}
}

func TestInsertRequestMapsPendingIndexToStateConflict(t *testing.T) {
	q := &execQueryer{err: &pq.Error{Code: uniqueViolation, Constraint: pendingIndex}}
	tx := &signatureTx{q: q}

	err := tx.InsertRequest(context.Background(), &entity.SignatureRequest{ID: "req-2", DocumentID: "doc-1"})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindStateConflict))
	assert.Contains(t, q.query, "INSERT INTO signature_requests")

	q.err = errors.New("connection refused")
	err = tx.InsertRequest(context.Background(), &entity.SignatureRequest{ID: "req-3"})
	require.Error(t, err)
	assert.Empty(t, apperror.KindOf(err))
	assert.Contains(t, err.Error(), "failed to insert signature request")
}

func TestInsertSignatureMapsDuplicateToStateConflict(t *testing.T) {
	q := &execQueryer{err: &pq.Error{Code: uniqueViolation, Constraint: "uq_signatures_signer"}}
	tx := &signatureTx{q: q}

	err := tx.InsertSignature(context.Background(), &entity.Signature{ID: "s-1", SignerID: "sig-1"})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindStateConflict))

	q.err = nil
	assert.NoError(t, tx.InsertSignature(context.Background(), &entity.Signature{ID: "s-2", SignerID: "sig-2"}))
}
