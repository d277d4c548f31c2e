package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"signflow/internal/config"
	"signflow/internal/domain/apperror"
	"signflow/internal/domain/entity"
	"signflow/internal/domain/repository"
	"signflow/internal/domain/signing"
	"signflow/internal/infrastructure/integrity"
	"signflow/internal/infrastructure/metrics"
)

// memRepo serializes transactions and restores a snapshot when one fails.
type memRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	requests   map[string]entity.SignatureRequest
	signers    map[string][]entity.Signer
	signatures []entity.Signature
	getCalls   int
}

func newMemRepo() *memRepo {
	return &memRepo{
		requests: map[string]entity.SignatureRequest{},
		signers:  map[string][]entity.Signer{},
	}
}

type repoSnapshot struct {
	requests   map[string]entity.SignatureRequest
	signers    map[string][]entity.Signer
	signatures []entity.Signature
}

func (r *memRepo) snapshot() repoSnapshot {
	s := repoSnapshot{
		requests:   make(map[string]entity.SignatureRequest, len(r.requests)),
		signers:    make(map[string][]entity.Signer, len(r.signers)),
		signatures: append([]entity.Signature(nil), r.signatures...),
	}
	for k, v := range r.requests {
		s.requests[k] = v
	}
	for k, v := range r.signers {
		s.signers[k] = append([]entity.Signer(nil), v...)
	}
	return s
}

func (r *memRepo) WithinTx(ctx context.Context, fn func(tx repository.SignatureTx) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snap := r.snapshot()
	r.mu.Unlock()

	if err := fn(&memTx{r: r}); err != nil {
		r.mu.Lock()
		r.requests, r.signers, r.signatures = snap.requests, snap.signers, snap.signatures
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memRepo) GetRequest(ctx context.Context, id string) (*entity.SignatureRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	req, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (r *memRepo) ListRequests(ctx context.Context, organizationID string) ([]entity.SignatureRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.SignatureRequest
	for _, req := range r.requests {
		if req.OrganizationID == organizationID {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (r *memRepo) ListSigners(ctx context.Context, requestID string) ([]entity.Signer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Signer(nil), r.signers[requestID]...), nil
}

func (r *memRepo) ListSignatures(ctx context.Context, requestID string) ([]entity.Signature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Signature
	for _, s := range r.signatures {
		if s.RequestID == requestID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memRepo) SetBaselineHash(ctx context.Context, requestID, hash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[requestID]
	if !ok || req.DocumentHash != "" || req.Status != entity.RequestStatusPending {
		return false, nil
	}
	req.DocumentHash = hash
	r.requests[requestID] = req
	return true, nil
}

func (r *memRepo) ListOverdue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, req := range r.requests {
		if req.Status == entity.RequestStatusPending && req.IsExpiredAt(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *memRepo) MarkSignerNotified(ctx context.Context, signerID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for reqID, list := range r.signers {
		for i := range list {
			if list[i].ID == signerID {
				t := at
				r.signers[reqID][i].NotifiedAt = &t
				return nil
			}
		}
	}
	return nil
}

func (r *memRepo) request(id string) entity.SignatureRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[id]
}

type memTx struct {
	r *memRepo
}

func (t *memTx) LockPendingForDocument(ctx context.Context, documentID string) (*entity.SignatureRequest, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	for _, req := range t.r.requests {
		if req.DocumentID == documentID && req.Status == entity.RequestStatusPending {
			found := req
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memTx) InsertRequest(ctx context.Context, req *entity.SignatureRequest) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	for _, existing := range t.r.requests {
		if existing.DocumentID == req.DocumentID && existing.Status == entity.RequestStatusPending {
			return apperror.StateConflict("a pending signature request already exists for this document")
		}
	}
	t.r.requests[req.ID] = *req
	return nil
}

func (t *memTx) InsertSigners(ctx context.Context, signers []entity.Signer) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	for _, s := range signers {
		t.r.signers[s.RequestID] = append(t.r.signers[s.RequestID], s)
	}
	return nil
}

func (t *memTx) LockRequest(ctx context.Context, id string) (*entity.SignatureRequest, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	req, ok := t.r.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (t *memTx) LockSigners(ctx context.Context, requestID string) ([]entity.Signer, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	return append([]entity.Signer(nil), t.r.signers[requestID]...), nil
}

// UpdateRequest leaves document_hash alone, like the SQL statement.
func (t *memTx) UpdateRequest(ctx context.Context, req *entity.SignatureRequest) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	existing, ok := t.r.requests[req.ID]
	if !ok {
		return errors.New("no such request")
	}
	updated := *req
	updated.DocumentHash = existing.DocumentHash
	updated.DisplayStatus = ""
	t.r.requests[req.ID] = updated
	return nil
}

func (t *memTx) UpdateSigner(ctx context.Context, signer *entity.Signer) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	list := t.r.signers[signer.RequestID]
	for i := range list {
		if list[i].ID == signer.ID {
			list[i].Status = signer.Status
			list[i].SignedAt = signer.SignedAt
			list[i].DeclinedAt = signer.DeclinedAt
			return nil
		}
	}
	return errors.New("no such signer")
}

func (t *memTx) InsertSignature(ctx context.Context, sig *entity.Signature) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	for _, s := range t.r.signatures {
		if s.RequestID == sig.RequestID && s.SignerID == sig.SignerID {
			return apperror.StateConflict("signer has already signed this request")
		}
	}
	t.r.signatures = append(t.r.signatures, *sig)
	return nil
}

type memActivities struct {
	mu   sync.Mutex
	logs []entity.Activity
}

func (a *memActivities) Append(ctx context.Context, activity *entity.Activity) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, *activity)
	return nil
}

func (a *memActivities) ListByResource(ctx context.Context, resourceType, resourceID string) ([]entity.Activity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []entity.Activity
	for _, l := range a.logs {
		if l.ResourceType == resourceType && l.ResourceID == resourceID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (a *memActivities) actions(requestID string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, l := range a.logs {
		if l.ResourceID == requestID {
			out = append(out, l.Action)
		}
	}
	return out
}

type memDispatcher struct {
	mu   sync.Mutex
	sent []entity.Notification
}

func (d *memDispatcher) Dispatch(ctx context.Context, n *entity.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, *n)
	return nil
}

func (d *memDispatcher) ofType(kind string) []entity.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []entity.Notification
	for _, n := range d.sent {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

type memHandle struct {
	id      string
	content []byte
}

func (h *memHandle) URL() string          { return "mem://" + h.id }
func (h *memHandle) ExpiresAt() time.Time { return time.Now().Add(time.Minute) }
func (h *memHandle) Open(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(h.content)), nil
}

type memDocs struct {
	mu      sync.Mutex
	meta    map[string]entity.DocumentMeta
	content map[string][]byte
	down    bool
	calls   int
}

func newMemDocs() *memDocs {
	return &memDocs{
		meta:    map[string]entity.DocumentMeta{},
		content: map[string][]byte{},
	}
}

func (d *memDocs) put(id, orgID, content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.meta[id] = entity.DocumentMeta{ID: id, OrganizationID: orgID, Name: id + ".pdf", MimeType: "application/pdf"}
	d.content[id] = []byte(content)
}

func (d *memDocs) setDown(down bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.down = down
}

func (d *memDocs) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *memDocs) GetMetadata(ctx context.Context, id string) (*entity.DocumentMeta, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	meta, ok := d.meta[id]
	if !ok {
		return nil, nil
	}
	return &meta, nil
}

func (d *memDocs) OpenReadHandle(ctx context.Context, id string, ttl time.Duration) (repository.ReadHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.down {
		return nil, errors.New("storage unavailable")
	}
	content, ok := d.content[id]
	if !ok {
		return nil, errors.New("no such document")
	}
	return &memHandle{id: id, content: append([]byte(nil), content...)}, nil
}

func digestOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

type fixture struct {
	usecase    *signatureUsecase
	repo       *memRepo
	activities *memActivities
	dispatcher *memDispatcher
	docs       *memDocs
	clock      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.App.BaseURL = "https://sign.example.test"
	cfg.Storage.ReadURLTTL = time.Minute
	cfg.Signing.HashTimeout = time.Second
	cfg.Signing.MaxEvidenceBytes = signing.DefaultMaxEvidenceBytes

	logger := zaptest.NewLogger(t)
	m := metrics.New(prometheus.NewRegistry())
	validate, err := signing.NewValidate()
	require.NoError(t, err)

	f := &fixture{
		repo:       newMemRepo(),
		activities: &memActivities{},
		dispatcher: &memDispatcher{},
		docs:       newMemDocs(),
		clock:      time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	f.docs.put("doc-1", "org-1", "original contract")
	f.docs.put("doc-2", "org-1", "second contract")
	f.docs.put("doc-3", "org-1", "third contract")
	f.docs.put("doc-other", "org-2", "foreign contract")

	verifier := integrity.NewVerifier(cfg, f.docs, integrity.NewHasher(m), m, logger)
	uc := NewSignatureUsecase(cfg, f.repo, f.activities, f.dispatcher, f.docs, verifier,
		signing.NewEvidenceValidator(validate, cfg.Signing.MaxEvidenceBytes), validate,
		NewBackground(logger), m, logger)

	f.usecase = uc.(*signatureUsecase)
	f.usecase.now = func() time.Time { return f.clock }

	t.Cleanup(func() { f.wait(t) })
	return f
}

// wait drains background side effects.
func (f *fixture) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, f.usecase.background.Wait(ctx))
}

var (
	staff   = &entity.Principal{ID: "staff-1", Role: entity.RoleStaff, OrganizationID: "org-1", Email: "staff@acme.test"}
	admin   = &entity.Principal{ID: "admin-1", Role: entity.RoleAdmin, OrganizationID: "org-1", Email: "admin@acme.test"}
	alice   = &entity.Principal{ID: "alice", Role: entity.RoleClient, OrganizationID: "org-1", Email: "alice@acme.test"}
	bob     = &entity.Principal{ID: "bob", Role: entity.RoleClient, OrganizationID: "org-1", Email: "bob@acme.test"}
	carol   = &entity.Principal{ID: "carol", Role: entity.RoleClient, OrganizationID: "org-1", Email: "carol@acme.test"}
	mallory = &entity.Principal{ID: "mallory", Role: entity.RoleAdmin, OrganizationID: "org-2", Email: "mallory@other.test"}
)

func typed(name string) *entity.SignInput {
	return &entity.SignInput{
		Type:         entity.SignatureTypeTyped,
		Data:         name,
		LegalName:    name,
		ConsentGiven: true,
	}
}

func threeSigners() []entity.SignerInput {
	return []entity.SignerInput{
		{UserID: "alice", Email: "alice@acme.test", Name: "Alice", Sequence: 1},
		{UserID: "bob", Email: "bob@acme.test", Name: "Bob", Sequence: 2},
		{UserID: "carol", Email: "carol@acme.test", Name: "Carol", Sequence: 3},
	}
}

func boolPtr(b bool) *bool { return &b }
