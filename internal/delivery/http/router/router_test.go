package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"signflow/internal/config"
	"signflow/internal/delivery/http/handler"
	"signflow/internal/domain/apperror"
	"signflow/internal/domain/entity"
	"signflow/internal/infrastructure/metrics"
)

type stubIdentity struct {
	principals map[string]*entity.Principal
	err        error
}

func (s *stubIdentity) Resolve(ctx context.Context, token string) (*entity.Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.principals[token], nil
}

// stubUsecase records what the handlers pass in and returns err when set.
type stubUsecase struct {
	err error

	principal *entity.Principal
	requestID string
	create    *entity.CreateSignatureRequest
	sign      *entity.SignInput
	decline   *entity.DeclineInput
	filter    entity.ListFilter
}

func (s *stubUsecase) request(status entity.RequestStatus) *entity.SignatureRequest {
	return &entity.SignatureRequest{ID: s.requestID, Status: status, DisplayStatus: status}
}

func (s *stubUsecase) Create(ctx context.Context, p *entity.Principal, in *entity.CreateSignatureRequest) (*entity.SignatureRequest, error) {
	s.principal, s.create = p, in
	if s.err != nil {
		return nil, s.err
	}
	return &entity.SignatureRequest{ID: "req-new", DocumentID: in.DocumentID, Status: entity.RequestStatusPending}, nil
}

func (s *stubUsecase) Sign(ctx context.Context, p *entity.Principal, id string, in *entity.SignInput) (*entity.SignResult, error) {
	s.principal, s.requestID, s.sign = p, id, in
	if s.err != nil {
		return nil, s.err
	}
	return &entity.SignResult{
		Request:   s.request(entity.RequestStatusSigned),
		Signature: &entity.Signature{ID: "sig-1", RequestID: id, Type: in.Type},
	}, nil
}

func (s *stubUsecase) Decline(ctx context.Context, p *entity.Principal, id string, in *entity.DeclineInput) (*entity.SignatureRequest, error) {
	s.principal, s.requestID, s.decline = p, id, in
	if s.err != nil {
		return nil, s.err
	}
	return s.request(entity.RequestStatusDeclined), nil
}

func (s *stubUsecase) Cancel(ctx context.Context, p *entity.Principal, id string) (*entity.SignatureRequest, error) {
	s.principal, s.requestID = p, id
	if s.err != nil {
		return nil, s.err
	}
	return s.request(entity.RequestStatusExpired), nil
}

func (s *stubUsecase) Get(ctx context.Context, p *entity.Principal, id string) (*entity.SignatureRequest, error) {
	s.principal, s.requestID = p, id
	if s.err != nil {
		return nil, s.err
	}
	return s.request(entity.RequestStatusPending), nil
}

func (s *stubUsecase) List(ctx context.Context, p *entity.Principal, filter entity.ListFilter) ([]entity.SignatureRequest, error) {
	s.principal, s.filter = p, filter
	if s.err != nil {
		return nil, s.err
	}
	return []entity.SignatureRequest{{ID: "req-1"}, {ID: "req-2"}}, nil
}

func (s *stubUsecase) GetSigners(ctx context.Context, p *entity.Principal, id string) ([]entity.Signer, error) {
	s.principal, s.requestID = p, id
	return []entity.Signer{{ID: "signer-1", Sequence: 1}}, s.err
}

func (s *stubUsecase) GetSignatures(ctx context.Context, p *entity.Principal, id string) ([]entity.Signature, error) {
	s.principal, s.requestID = p, id
	return []entity.Signature{}, s.err
}

func (s *stubUsecase) GetActivity(ctx context.Context, p *entity.Principal, id string) ([]entity.Activity, error) {
	s.principal, s.requestID = p, id
	return []entity.Activity{{Action: entity.ActivityCreate}}, s.err
}

func (s *stubUsecase) CanUserSign(ctx context.Context, p *entity.Principal, id string) (*entity.CanSignResult, error) {
	s.principal, s.requestID = p, id
	if s.err != nil {
		return nil, s.err
	}
	return &entity.CanSignResult{CanSign: false, Reason: "awaiting earlier signer"}, nil
}

func (s *stubUsecase) AcknowledgePreview(ctx context.Context, p *entity.Principal, id string) (*entity.PreviewResult, error) {
	s.principal, s.requestID = p, id
	if s.err != nil {
		return nil, s.err
	}
	return &entity.PreviewResult{DocumentID: "doc-1", URL: "https://files.test/doc-1", ExpiresAt: time.Now().Add(time.Minute)}, nil
}

func (s *stubUsecase) ExpireOverdue(ctx context.Context) (int, error) {
	return 0, nil
}

var alice = &entity.Principal{ID: "alice", Role: entity.RoleClient, OrganizationID: "org-1"}

type testEnv struct {
	app      *fiber.App
	usecase  *stubUsecase
	identity *stubIdentity
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.App.Name = "signflow-test"
	cfg.App.Env = "test"
	logger := zaptest.NewLogger(t)

	uc := &stubUsecase{}
	identity := &stubIdentity{principals: map[string]*entity.Principal{"token-alice": alice}}
	r := NewRouter(cfg, identity, metrics.NewHandler(metrics.NewRegistry()),
		handler.NewSignatureHandler(uc, logger), handler.NewHealthHandler(cfg), logger)

	return &testEnv{app: r.Setup(), usecase: uc, identity: identity}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	req.Header.Set(fiber.HeaderAuthorization, "Bearer token-alice")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, fiber.MethodGet, "/health", "", map[string]string{fiber.HeaderAuthorization: ""})
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, body.Success)

	req := httptest.NewRequest(fiber.MethodGet, "/metrics", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "go_goroutines")
}

func TestAPIRequiresPrincipal(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"unknown token", "Bearer token-nobody"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, fiber.MethodGet, "/api/v1/signature-requests", "",
				map[string]string{fiber.HeaderAuthorization: tt.header})
			assert.Equal(t, fiber.StatusForbidden, status)
			require.NotNil(t, body.Error)
			assert.Equal(t, string(apperror.KindAccessDenied), body.Error.Code)
		})
	}
	assert.Nil(t, env.usecase.principal)
}

func TestAPISessionStoreUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.identity.err = errors.New("dial tcp: connection refused")

	status, body := env.do(t, fiber.MethodGet, "/api/v1/signature-requests", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, string(apperror.KindTransient), body.Error.Code)
	assert.NotContains(t, body.Error.Message, "connection refused")
}

func TestCreate(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, fiber.MethodPost, "/api/v1/signature-requests",
		`{"document_id":"doc-1","title":"NDA","require_all":false,"signers":[{"email":"a@acme.test","name":"A"}]}`, nil)
	assert.Equal(t, fiber.StatusCreated, status)
	assert.True(t, body.Success)

	require.NotNil(t, env.usecase.create)
	assert.Equal(t, "doc-1", env.usecase.create.DocumentID)
	require.NotNil(t, env.usecase.create.RequireAll)
	assert.False(t, *env.usecase.create.RequireAll)
	assert.Len(t, env.usecase.create.Signers, 1)
	assert.Equal(t, alice, env.usecase.principal)
}

func TestCreateRejectsMalformedBody(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, fiber.MethodPost, "/api/v1/signature-requests", `{"title":`, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, string(apperror.KindValidation), body.Error.Code)
	assert.Nil(t, env.usecase.create)
}

func TestListPassesStatusFilter(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, fiber.MethodGet, "/api/v1/signature-requests?status=expired", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, entity.RequestStatusExpired, env.usecase.filter.Status)

	var requests []entity.SignatureRequest
	require.NoError(t, json.Unmarshal(body.Data, &requests))
	assert.Len(t, requests, 2)
}

func TestSignCapturesClientMetadata(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, fiber.MethodPost, "/api/v1/signature-requests/req-1/sign",
		`{"type":"typed","data":"Jane Doe","legal_name":"Jane Doe","consent_given":true,"ip_address":"6.6.6.6"}`,
		map[string]string{fiber.HeaderUserAgent: "signflow-test/1.0"})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Signature request completed", body.Message)

	require.NotNil(t, env.usecase.sign)
	assert.Equal(t, "req-1", env.usecase.requestID)
	assert.Equal(t, entity.SignatureTypeTyped, env.usecase.sign.Type)
	assert.True(t, env.usecase.sign.ConsentGiven)
	assert.Equal(t, "signflow-test/1.0", env.usecase.sign.UserAgent)
	assert.NotEqual(t, "6.6.6.6", env.usecase.sign.IPAddress)
	assert.NotEmpty(t, env.usecase.sign.IPAddress)
}

func TestDeclineBodyIsOptional(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, fiber.MethodPost, "/api/v1/signature-requests/req-1/decline", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, env.usecase.decline)

	status, _ = env.do(t, fiber.MethodPost, "/api/v1/signature-requests/req-1/decline", `{"reason":"Wrong entity"}`, nil)
	assert.Equal(t, fiber.StatusOK, status)
	require.NotNil(t, env.usecase.decline)
	assert.Equal(t, "Wrong entity", env.usecase.decline.Reason)
}

func TestReadRoutes(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{
		"/api/v1/signature-requests/req-9",
		"/api/v1/signature-requests/req-9/signers",
		"/api/v1/signature-requests/req-9/signatures",
		"/api/v1/signature-requests/req-9/activity",
		"/api/v1/signature-requests/req-9/can-sign",
	} {
		env.usecase.requestID = ""
		status, body := env.do(t, fiber.MethodGet, path, "", nil)
		assert.Equal(t, fiber.StatusOK, status, path)
		assert.True(t, body.Success, path)
		assert.Equal(t, "req-9", env.usecase.requestID, path)
	}

	for _, path := range []string{
		"/api/v1/signature-requests/req-9/cancel",
		"/api/v1/signature-requests/req-9/preview",
	} {
		env.usecase.requestID = ""
		status, _ := env.do(t, fiber.MethodPost, path, "", nil)
		assert.Equal(t, fiber.StatusOK, status, path)
		assert.Equal(t, "req-9", env.usecase.requestID, path)
	}
}

func TestErrorKindsMapToStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperror.Validation("legal_name is required"), fiber.StatusBadRequest, "validation"},
		{apperror.AccessDenied("not a signer on this request"), fiber.StatusForbidden, "access_denied"},
		{apperror.NotFound("signature request x not found"), fiber.StatusNotFound, "not_found"},
		{apperror.StateConflict("request expired"), fiber.StatusConflict, "state_conflict"},
		{apperror.Integrity("aa", "bb"), fiber.StatusUnprocessableEntity, "integrity_violation"},
		{apperror.Transient("failed to load signature request", errors.New("pq: too many connections")), fiber.StatusServiceUnavailable, "transient"},
		{errors.New("boom"), fiber.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			env := newTestEnv(t)
			env.usecase.err = tt.err

			status, body := env.do(t, fiber.MethodPost, "/api/v1/signature-requests/req-1/sign",
				`{"type":"typed","data":"Jane","legal_name":"Jane","consent_given":true}`, nil)
			assert.Equal(t, tt.status, status)
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.NotContains(t, body.Error.Message, "too many connections")
		})
	}
}
