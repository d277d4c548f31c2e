package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"signflow/internal/config"
	"signflow/internal/domain/apperror"
	"signflow/internal/domain/entity"
	"signflow/internal/domain/repository"
	"signflow/internal/domain/signing"
	"signflow/internal/infrastructure/integrity"
	"signflow/internal/infrastructure/metrics"
)

const overdueBatchSize = 100

// IntegrityVerifier computes and checks document digests.
type IntegrityVerifier interface {
	Compute(ctx context.Context, documentID string) (string, error)
	Verify(ctx context.Context, documentID, baseline string) (*integrity.Verification, error)
}

type SignatureUsecase interface {
	Create(ctx context.Context, p *entity.Principal, in *entity.CreateSignatureRequest) (*entity.SignatureRequest, error)
	Sign(ctx context.Context, p *entity.Principal, requestID string, in *entity.SignInput) (*entity.SignResult, error)
	Decline(ctx context.Context, p *entity.Principal, requestID string, in *entity.DeclineInput) (*entity.SignatureRequest, error)
	// Cancel is the administrative path; it moves a pending request to expired.
	Cancel(ctx context.Context, p *entity.Principal, requestID string) (*entity.SignatureRequest, error)

	Get(ctx context.Context, p *entity.Principal, requestID string) (*entity.SignatureRequest, error)
	List(ctx context.Context, p *entity.Principal, filter entity.ListFilter) ([]entity.SignatureRequest, error)
	GetSigners(ctx context.Context, p *entity.Principal, requestID string) ([]entity.Signer, error)
	GetSignatures(ctx context.Context, p *entity.Principal, requestID string) ([]entity.Signature, error)
	GetActivity(ctx context.Context, p *entity.Principal, requestID string) ([]entity.Activity, error)
	CanUserSign(ctx context.Context, p *entity.Principal, requestID string) (*entity.CanSignResult, error)
	AcknowledgePreview(ctx context.Context, p *entity.Principal, requestID string) (*entity.PreviewResult, error)

	// ExpireOverdue moves pending requests past their deadline to expired.
	ExpireOverdue(ctx context.Context) (int, error)
}

type signatureUsecase struct {
	config     *config.Config
	repo       repository.SignatureRepository
	activities repository.ActivityRepository
	notifier   repository.NotificationDispatcher
	store      repository.DocumentStore
	verifier   IntegrityVerifier
	evidence   *signing.EvidenceValidator
	validate   *validator.Validate
	background *Background
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewSignatureUsecase(
	cfg *config.Config,
	repo repository.SignatureRepository,
	activities repository.ActivityRepository,
	notifier repository.NotificationDispatcher,
	store repository.DocumentStore,
	verifier IntegrityVerifier,
	evidence *signing.EvidenceValidator,
	validate *validator.Validate,
	background *Background,
	m *metrics.Metrics,
	logger *zap.Logger,
) SignatureUsecase {
	return &signatureUsecase{
		config:     cfg,
		repo:       repo,
		activities: activities,
		notifier:   notifier,
		store:      store,
		verifier:   verifier,
		evidence:   evidence,
		validate:   validate,
		background: background,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

func (u *signatureUsecase) Create(ctx context.Context, p *entity.Principal, in *entity.CreateSignatureRequest) (*entity.SignatureRequest, error) {
	if p == nil {
		return nil, apperror.AccessDenied("authentication required")
	}
	if !p.CanManageRequests() {
		return nil, apperror.AccessDenied("role %s may not create signature requests", p.Role)
	}
	if in == nil {
		return nil, apperror.Validation("request body is required")
	}

	normalizeCreate(in)
	if err := u.validate.Struct(in); err != nil {
		return nil, apperror.Validation("%s", signing.Describe(err))
	}

	now := u.now()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, apperror.Validation("expires_at must be in the future")
	}

	signers, err := buildSigners(in.Signers)
	if err != nil {
		return nil, err
	}

	u.logger.Info("Creating signature request",
		zap.String("organization_id", p.OrganizationID),
		zap.String("document_id", in.DocumentID),
		zap.Int("signers_count", len(signers)),
	)

	meta, err := u.store.GetMetadata(ctx, in.DocumentID)
	if err != nil {
		u.logger.Error("Failed to load document metadata",
			zap.String("document_id", in.DocumentID),
			zap.Error(err),
		)
		return nil, apperror.Transient("failed to load document metadata", err)
	}
	if meta == nil || meta.OrganizationID != p.OrganizationID {
		return nil, apperror.NotFound("document %s not found", in.DocumentID)
	}

	requireAll := true
	if in.RequireAll != nil && len(in.Signers) > 0 {
		requireAll = *in.RequireAll
	}

	req := &entity.SignatureRequest{
		ID:                uuid.NewString(),
		OrganizationID:    p.OrganizationID,
		DocumentID:        in.DocumentID,
		Title:             in.Title,
		Description:       in.Description,
		Status:            entity.RequestStatusPending,
		RequestedBy:       p.ID,
		RequestedAt:       now,
		ExpiresAt:         in.ExpiresAt,
		SignerCount:       len(signers),
		RequireAll:        requireAll,
		RequireSequential: in.RequireSequential && len(in.Signers) > 0,
		UpdatedAt:         now,
	}
	for i := range signers {
		signers[i].ID = uuid.NewString()
		signers[i].RequestID = req.ID
		signers[i].CreatedAt = now
	}

	var stale *entity.SignatureRequest
	err = u.repo.WithinTx(ctx, func(tx repository.SignatureTx) error {
		existing, err := tx.LockPendingForDocument(ctx, req.DocumentID)
		if err != nil {
			return err
		}
		if existing != nil {
			if !existing.IsExpiredAt(now) {
				return apperror.StateConflict("a pending signature request already exists for this document")
			}
			// A pending request past its deadline no longer holds the document.
			expire(existing, now)
			if err := tx.UpdateRequest(ctx, existing); err != nil {
				return err
			}
			stale = existing
		}

		if err := tx.InsertRequest(ctx, req); err != nil {
			return err
		}
		return tx.InsertSigners(ctx, signers)
	})
	if err != nil {
		return nil, u.storeError("create signature request", err)
	}

	u.logger.Info("Signature request created",
		zap.String("request_id", req.ID),
		zap.String("document_id", req.DocumentID),
		zap.Bool("require_all", req.RequireAll),
		zap.Bool("require_sequential", req.RequireSequential),
	)

	if stale != nil {
		u.afterExpire(stale, entity.SystemPrincipalID)
	}
	u.observeTransition(entity.RequestStatusPending)
	u.audit(req, p.ID, entity.ActivityCreate)
	u.captureBaseline(req)
	u.notifySigners(req, signing.ForRequest(req, signers).Eligible())

	return signing.WithDisplayStatus(req, now), nil
}

func (u *signatureUsecase) Sign(ctx context.Context, p *entity.Principal, requestID string, in *entity.SignInput) (*entity.SignResult, error) {
	if p == nil {
		return nil, apperror.AccessDenied("authentication required")
	}

	// Evidence is checked before any storage or hashing I/O.
	if err := u.evidence.Validate(in); err != nil {
		u.logger.Info("Rejected signature evidence",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return nil, err
	}

	req, err := u.loadVisible(ctx, p, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != entity.RequestStatusPending {
		return nil, apperror.StateConflict("request is %s", req.Status)
	}

	if req.IsExpiredAt(u.now()) {
		return nil, u.expireOnAttempt(ctx, requestID)
	}

	signers, err := u.repo.ListSigners(ctx, requestID)
	if err != nil {
		return nil, apperror.Transient("failed to load signers", err)
	}
	if err := checkEligible(signing.ForRequest(req, signers), p, req.OrganizationID); err != nil {
		return nil, err
	}

	u.logger.Info("Verifying document integrity",
		zap.String("request_id", req.ID),
		zap.String("document_id", req.DocumentID),
		zap.Bool("has_baseline", req.DocumentHash != ""),
	)

	// Runs outside the transaction so no row lock is held across the fetch.
	verification, err := u.verifier.Verify(ctx, req.DocumentID, req.DocumentHash)
	if err != nil {
		return nil, err
	}

	var (
		updated   *entity.SignatureRequest
		signature *entity.Signature
		coord     *signing.Coordinator
		expired   bool
	)
	err = u.repo.WithinTx(ctx, func(tx repository.SignatureTx) error {
		current, err := tx.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if current == nil {
			return apperror.NotFound("signature request %s not found", requestID)
		}
		if current.Status != entity.RequestStatusPending {
			return apperror.StateConflict("request is %s", current.Status)
		}

		now := u.now()
		if current.IsExpiredAt(now) {
			expire(current, now)
			if err := tx.UpdateRequest(ctx, current); err != nil {
				return err
			}
			updated, expired = current, true
			return nil
		}

		// A baseline may have landed after verification ran.
		if integrity.Compare(current.DocumentHash, verification.Current) == integrity.OutcomeMismatch {
			return apperror.Integrity(current.DocumentHash, verification.Current)
		}

		signers, err := tx.LockSigners(ctx, requestID)
		if err != nil {
			return err
		}
		coord = signing.ForRequest(current, signers)
		signer := coord.Match(p, current.OrganizationID)
		if signer == nil {
			return apperror.AccessDenied("%s", signing.ReasonNotSigner)
		}
		if ok, reason := coord.CanAct(signer.ID); !ok {
			return apperror.StateConflict("%s", reason)
		}
		if current.CompletedCount >= current.SignerCount {
			return apperror.StateConflict("all signers have already signed")
		}

		signature = &entity.Signature{
			ID:           uuid.NewString(),
			RequestID:    current.ID,
			SignerID:     signer.ID,
			UserID:       p.ID,
			Type:         in.Type,
			Data:         in.Data,
			IPAddress:    in.IPAddress,
			UserAgent:    in.UserAgent,
			Timestamp:    now,
			ConsentGiven: in.ConsentGiven,
			LegalName:    strings.TrimSpace(in.LegalName),
		}
		if in.Type == entity.SignatureTypeTyped {
			signature.Data = strings.TrimSpace(in.Data)
		}
		if err := tx.InsertSignature(ctx, signature); err != nil {
			return err
		}

		acted := *signer
		acted.Status = entity.SignerStatusSigned
		acted.SignedAt = &now
		if err := tx.UpdateSigner(ctx, &acted); err != nil {
			return err
		}
		coord.Record(acted.ID, entity.SignerStatusSigned, now)

		current.CompletedCount++
		current.UpdatedAt = now
		if coord.IsComplete() {
			current.Status = entity.RequestStatusSigned
			current.SignedAt = &now
			current.SignedBy = p.ID
			current.SignedDocumentHash = verification.Current
		}
		if err := tx.UpdateRequest(ctx, current); err != nil {
			return err
		}

		updated = current
		return nil
	})
	if err != nil {
		return nil, u.storeError("sign signature request", err)
	}

	if expired {
		u.afterExpire(updated, p.ID)
		return nil, apperror.StateConflict(signing.ReasonExpired)
	}

	u.logger.Info("Signature recorded",
		zap.String("request_id", updated.ID),
		zap.String("signer_id", signature.SignerID),
		zap.String("status", string(updated.Status)),
		zap.Int("completed_count", updated.CompletedCount),
		zap.Int("signer_count", updated.SignerCount),
		zap.String("integrity", string(verification.Outcome)),
	)

	u.audit(updated, p.ID, entity.ActivitySign)
	if updated.Status == entity.RequestStatusSigned {
		u.observeTransition(entity.RequestStatusSigned)
		u.notifyRequester(updated, entity.NotificationSignatureCompleted,
			"Signature request completed",
			fmt.Sprintf("All required signatures for %q have been collected.", updated.Title))
	} else if updated.RequireSequential {
		u.notifySigners(updated, unnotified(coord.Eligible()))
	}

	return &entity.SignResult{
		Request:   signing.WithDisplayStatus(updated, u.now()),
		Signature: signature,
	}, nil
}

func (u *signatureUsecase) Decline(ctx context.Context, p *entity.Principal, requestID string, in *entity.DeclineInput) (*entity.SignatureRequest, error) {
	if p == nil {
		return nil, apperror.AccessDenied("authentication required")
	}

	reason := ""
	if in != nil {
		reason = strings.TrimSpace(in.Reason)
		if err := u.validate.Struct(&entity.DeclineInput{Reason: reason}); err != nil {
			return nil, apperror.Validation("%s", signing.Describe(err))
		}
	}

	req, err := u.loadVisible(ctx, p, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != entity.RequestStatusPending {
		return nil, apperror.StateConflict("request is %s", req.Status)
	}

	var (
		updated  *entity.SignatureRequest
		signerID string
		expired  bool
	)
	err = u.repo.WithinTx(ctx, func(tx repository.SignatureTx) error {
		current, err := tx.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if current == nil {
			return apperror.NotFound("signature request %s not found", requestID)
		}
		if current.Status != entity.RequestStatusPending {
			return apperror.StateConflict("request is %s", current.Status)
		}

		now := u.now()
		if current.IsExpiredAt(now) {
			expire(current, now)
			if err := tx.UpdateRequest(ctx, current); err != nil {
				return err
			}
			updated, expired = current, true
			return nil
		}

		signers, err := tx.LockSigners(ctx, requestID)
		if err != nil {
			return err
		}
		coord := signing.ForRequest(current, signers)
		if err := checkEligible(coord, p, current.OrganizationID); err != nil {
			return err
		}
		signer := coord.Match(p, current.OrganizationID)

		acted := *signer
		acted.Status = entity.SignerStatusDeclined
		acted.DeclinedAt = &now
		if err := tx.UpdateSigner(ctx, &acted); err != nil {
			return err
		}
		coord.Record(acted.ID, entity.SignerStatusDeclined, now)

		// One veto breaks an AND policy; under OR the request stays open
		// while another signer can still complete it.
		if current.RequireAll || !coord.CanStillComplete() {
			current.Status = entity.RequestStatusDeclined
		}
		current.UpdatedAt = now
		if err := tx.UpdateRequest(ctx, current); err != nil {
			return err
		}

		updated, signerID = current, acted.ID
		return nil
	})
	if err != nil {
		return nil, u.storeError("decline signature request", err)
	}

	if expired {
		u.afterExpire(updated, p.ID)
		return nil, apperror.StateConflict(signing.ReasonExpired)
	}

	u.logger.Info("Signature request declined by signer",
		zap.String("request_id", updated.ID),
		zap.String("signer_id", signerID),
		zap.String("status", string(updated.Status)),
		zap.String("reason", reason),
	)

	u.audit(updated, p.ID, entity.ActivityDecline)
	if updated.Status == entity.RequestStatusDeclined {
		u.observeTransition(entity.RequestStatusDeclined)
		message := fmt.Sprintf("%q was declined.", updated.Title)
		if reason != "" {
			message = fmt.Sprintf("%q was declined: %s", updated.Title, reason)
		}
		u.notifyRequester(updated, entity.NotificationSignatureDeclined, "Signature request declined", message)
	}

	return signing.WithDisplayStatus(updated, u.now()), nil
}

func (u *signatureUsecase) Cancel(ctx context.Context, p *entity.Principal, requestID string) (*entity.SignatureRequest, error) {
	if p == nil {
		return nil, apperror.AccessDenied("authentication required")
	}
	if !p.CanManageRequests() {
		return nil, apperror.AccessDenied("role %s may not cancel signature requests", p.Role)
	}

	if _, err := u.loadVisible(ctx, p, requestID); err != nil {
		return nil, err
	}

	var updated *entity.SignatureRequest
	err := u.repo.WithinTx(ctx, func(tx repository.SignatureTx) error {
		current, err := tx.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if current == nil {
			return apperror.NotFound("signature request %s not found", requestID)
		}
		if current.Status != entity.RequestStatusPending {
			return apperror.StateConflict("request is %s", current.Status)
		}

		expire(current, u.now())
		if err := tx.UpdateRequest(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, u.storeError("cancel signature request", err)
	}

	u.logger.Info("Signature request cancelled",
		zap.String("request_id", updated.ID),
		zap.String("actor_id", p.ID),
	)

	u.observeTransition(entity.RequestStatusExpired)
	u.audit(updated, p.ID, entity.ActivityCancel)
	if updated.RequestedBy != p.ID {
		u.notifyRequester(updated, entity.NotificationSignatureExpired,
			"Signature request cancelled",
			fmt.Sprintf("%q was cancelled.", updated.Title))
	}

	return signing.WithDisplayStatus(updated, u.now()), nil
}

func (u *signatureUsecase) Get(ctx context.Context, p *entity.Principal, requestID string) (*entity.SignatureRequest, error) {
	req, err := u.loadVisible(ctx, p, requestID)
	if err != nil {
		return nil, err
	}
	return signing.WithDisplayStatus(req, u.now()), nil
}

func (u *signatureUsecase) List(ctx context.Context, p *entity.Principal, filter entity.ListFilter) ([]entity.SignatureRequest, error) {
	if p == nil {
		return nil, apperror.AccessDenied("authentication required")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperror.Validation("status must be one of: pending, signed, declined, expired")
	}

	requests, err := u.repo.ListRequests(ctx, p.OrganizationID)
	if err != nil {
		u.logger.Error("Failed to list signature requests", zap.Error(err))
		return nil, apperror.Transient("failed to list signature requests", err)
	}

	now := u.now()
	out := make([]entity.SignatureRequest, 0, len(requests))
	for i := range requests {
		req := signing.WithDisplayStatus(&requests[i], now)
		if filter.Status != "" && req.DisplayStatus != filter.Status {
			continue
		}
		out = append(out, *req)
	}

	u.logger.Debug("Listed signature requests",
		zap.String("organization_id", p.OrganizationID),
		zap.String("status", string(filter.Status)),
		zap.Int("count", len(out)),
	)
	return out, nil
}

func (u *signatureUsecase) GetSigners(ctx context.Context, p *entity.Principal, requestID string) ([]entity.Signer, error) {
	if _, err := u.loadVisible(ctx, p, requestID); err != nil {
		return nil, err
	}

	signers, err := u.repo.ListSigners(ctx, requestID)
	if err != nil {
		return nil, apperror.Transient("failed to load signers", err)
	}
	return signing.NewCoordinator(signers, false, false).Signers(), nil
}

func (u *signatureUsecase) GetSignatures(ctx context.Context, p *entity.Principal, requestID string) ([]entity.Signature, error) {
	if _, err := u.loadVisible(ctx, p, requestID); err != nil {
		return nil, err
	}

	signatures, err := u.repo.ListSignatures(ctx, requestID)
	if err != nil {
		return nil, apperror.Transient("failed to load signatures", err)
	}
	return signatures, nil
}

func (u *signatureUsecase) GetActivity(ctx context.Context, p *entity.Principal, requestID string) ([]entity.Activity, error) {
	if _, err := u.loadVisible(ctx, p, requestID); err != nil {
		return nil, err
	}

	activities, err := u.activities.ListByResource(ctx, entity.ResourceSignatureRequest, requestID)
	if err != nil {
		return nil, apperror.Transient("failed to load activity", err)
	}
	return activities, nil
}

func (u *signatureUsecase) CanUserSign(ctx context.Context, p *entity.Principal, requestID string) (*entity.CanSignResult, error) {
	req, err := u.loadVisible(ctx, p, requestID)
	if err != nil {
		return nil, err
	}

	if req.Status != entity.RequestStatusPending {
		return &entity.CanSignResult{Reason: signing.ReasonNotPending}, nil
	}
	if req.IsExpiredAt(u.now()) {
		return &entity.CanSignResult{Reason: signing.ReasonExpired}, nil
	}

	signers, err := u.repo.ListSigners(ctx, requestID)
	if err != nil {
		return nil, apperror.Transient("failed to load signers", err)
	}

	coord := signing.ForRequest(req, signers)
	signer := coord.Match(p, req.OrganizationID)
	if signer == nil {
		return &entity.CanSignResult{Reason: signing.ReasonNotSigner}, nil
	}

	ok, reason := coord.CanAct(signer.ID)
	return &entity.CanSignResult{CanSign: ok, Reason: reason, SignerID: signer.ID}, nil
}

func (u *signatureUsecase) AcknowledgePreview(ctx context.Context, p *entity.Principal, requestID string) (*entity.PreviewResult, error) {
	req, err := u.loadVisible(ctx, p, requestID)
	if err != nil {
		return nil, err
	}

	meta, err := u.store.GetMetadata(ctx, req.DocumentID)
	if err != nil {
		return nil, apperror.Transient("failed to load document metadata", err)
	}
	if meta == nil {
		return nil, apperror.NotFound("document %s not found", req.DocumentID)
	}

	handle, err := u.store.OpenReadHandle(ctx, req.DocumentID, u.config.Storage.ReadURLTTL)
	if err != nil {
		return nil, apperror.Transient("failed to open document for preview", err)
	}

	u.audit(req, p.ID, entity.ActivityPreview)

	return &entity.PreviewResult{
		DocumentID: req.DocumentID,
		Name:       meta.Name,
		MimeType:   meta.MimeType,
		URL:        handle.URL(),
		ExpiresAt:  handle.ExpiresAt(),
	}, nil
}

func (u *signatureUsecase) ExpireOverdue(ctx context.Context) (int, error) {
	ids, err := u.repo.ListOverdue(ctx, u.now(), overdueBatchSize)
	if err != nil {
		return 0, apperror.Transient("failed to list overdue requests", err)
	}

	expired := 0
	for _, id := range ids {
		var updated *entity.SignatureRequest
		err := u.repo.WithinTx(ctx, func(tx repository.SignatureTx) error {
			current, err := tx.LockRequest(ctx, id)
			if err != nil || current == nil {
				return err
			}
			now := u.now()
			// Another transition may have won the race since the scan.
			if current.Status != entity.RequestStatusPending || !current.IsExpiredAt(now) {
				return nil
			}
			expire(current, now)
			if err := tx.UpdateRequest(ctx, current); err != nil {
				return err
			}
			updated = current
			return nil
		})
		if err != nil {
			u.logger.Warn("Failed to expire overdue request",
				zap.String("request_id", id),
				zap.Error(err),
			)
			continue
		}
		if updated != nil {
			u.afterExpire(updated, entity.SystemPrincipalID)
			expired++
		}
	}

	if expired > 0 {
		u.logger.Info("Expired overdue signature requests", zap.Int("count", expired))
	}
	return expired, nil
}

// expireOnAttempt commits the expired transition for a sign or decline
// attempt that found the deadline passed.
func (u *signatureUsecase) expireOnAttempt(ctx context.Context, requestID string) error {
	var updated *entity.SignatureRequest
	err := u.repo.WithinTx(ctx, func(tx repository.SignatureTx) error {
		current, err := tx.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if current == nil {
			return apperror.NotFound("signature request %s not found", requestID)
		}
		if current.Status != entity.RequestStatusPending {
			return apperror.StateConflict("request is %s", current.Status)
		}
		now := u.now()
		if !current.IsExpiredAt(now) {
			return nil
		}
		expire(current, now)
		if err := tx.UpdateRequest(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return u.storeError("expire signature request", err)
	}
	if updated != nil {
		u.afterExpire(updated, entity.SystemPrincipalID)
	}
	return apperror.StateConflict(signing.ReasonExpired)
}

func (u *signatureUsecase) afterExpire(req *entity.SignatureRequest, actorID string) {
	u.logger.Info("Signature request expired",
		zap.String("request_id", req.ID),
		zap.String("document_id", req.DocumentID),
	)
	u.observeTransition(entity.RequestStatusExpired)
	u.audit(req, actorID, entity.ActivityExpire)
	u.notifyRequester(req, entity.NotificationSignatureExpired,
		"Signature request expired",
		fmt.Sprintf("%q expired before it was completed.", req.Title))
}

// loadVisible returns the request when p belongs to its organization.
func (u *signatureUsecase) loadVisible(ctx context.Context, p *entity.Principal, requestID string) (*entity.SignatureRequest, error) {
	if p == nil {
		return nil, apperror.AccessDenied("authentication required")
	}

	req, err := u.repo.GetRequest(ctx, requestID)
	if err != nil {
		u.logger.Error("Failed to load signature request",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return nil, apperror.Transient("failed to load signature request", err)
	}
	if req == nil {
		return nil, apperror.NotFound("signature request %s not found", requestID)
	}
	if req.OrganizationID != p.OrganizationID {
		return nil, apperror.AccessDenied("signature request belongs to another organization")
	}
	return req, nil
}

// storeError passes domain errors through and classifies the rest as transient.
func (u *signatureUsecase) storeError(op string, err error) error {
	if apperror.KindOf(err) != "" {
		return err
	}
	u.logger.Error("Failed to "+op, zap.Error(err))
	return apperror.Transient("failed to "+op, err)
}

func (u *signatureUsecase) observeTransition(status entity.RequestStatus) {
	if u.metrics != nil {
		u.metrics.Transitions.WithLabelValues(string(status)).Inc()
	}
}

func checkEligible(coord *signing.Coordinator, p *entity.Principal, organizationID string) error {
	signer := coord.Match(p, organizationID)
	if signer == nil {
		return apperror.AccessDenied("%s", signing.ReasonNotSigner)
	}
	if ok, reason := coord.CanAct(signer.ID); !ok {
		return apperror.StateConflict("%s", reason)
	}
	return nil
}

func expire(req *entity.SignatureRequest, now time.Time) {
	req.Status = entity.RequestStatusExpired
	req.UpdatedAt = now
}

func normalizeCreate(in *entity.CreateSignatureRequest) {
	in.DocumentID = strings.TrimSpace(in.DocumentID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	for i := range in.Signers {
		in.Signers[i].UserID = strings.TrimSpace(in.Signers[i].UserID)
		in.Signers[i].Email = strings.TrimSpace(in.Signers[i].Email)
		in.Signers[i].Name = strings.TrimSpace(in.Signers[i].Name)
	}
}

// buildSigners turns the party list into signer rows. An empty list yields
// the implicit signer. A zero sequence takes the party's position.
func buildSigners(inputs []entity.SignerInput) ([]entity.Signer, error) {
	if len(inputs) == 0 {
		return []entity.Signer{{
			Sequence: 1,
			Status:   entity.SignerStatusPending,
			Implicit: true,
		}}, nil
	}

	seenSequence := make(map[int]bool, len(inputs))
	seenEmail := make(map[string]bool, len(inputs))
	seenUser := make(map[string]bool, len(inputs))
	out := make([]entity.Signer, 0, len(inputs))
	for i, in := range inputs {
		sequence := in.Sequence
		if sequence == 0 {
			sequence = i + 1
		}
		if seenSequence[sequence] {
			return nil, apperror.Validation("signers[%d]: duplicate sequence %d", i, sequence)
		}
		seenSequence[sequence] = true

		email := strings.ToLower(in.Email)
		if seenEmail[email] {
			return nil, apperror.Validation("signers[%d]: duplicate email %s", i, in.Email)
		}
		seenEmail[email] = true

		// Match binds a user to its first row, so a second row could never be signed.
		if in.UserID != "" {
			if seenUser[in.UserID] {
				return nil, apperror.Validation("signers[%d]: duplicate user_id %s", i, in.UserID)
			}
			seenUser[in.UserID] = true
		}

		out = append(out, entity.Signer{
			UserID:   in.UserID,
			Email:    in.Email,
			Name:     in.Name,
			Sequence: sequence,
			Status:   entity.SignerStatusPending,
		})
	}
	return out, nil
}

func unnotified(signers []entity.Signer) []entity.Signer {
	var out []entity.Signer
	for _, s := range signers {
		if s.NotifiedAt == nil {
			out = append(out, s)
		}
	}
	return out
}
