package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"signflow/internal/domain/entity"
)

// Side effects below run after commit on the background runner. They never
// change the outcome of the operation that scheduled them.

func (u *signatureUsecase) audit(req *entity.SignatureRequest, actorID, action string) {
	activity := &entity.Activity{
		OrganizationID: req.OrganizationID,
		ActorID:        actorID,
		Action:         action,
		ResourceType:   entity.ResourceSignatureRequest,
		ResourceID:     req.ID,
		ResourceName:   req.Title,
		CreatedAt:      u.now(),
	}

	u.background.Go("audit "+action, func(ctx context.Context) error {
		return u.activities.Append(ctx, activity)
	})
}

// captureBaseline records the document digest the request will be checked against.
func (u *signatureUsecase) captureBaseline(req *entity.SignatureRequest) {
	requestID, documentID := req.ID, req.DocumentID
	retries := u.config.Signing.BaselineRetries
	attempts := uint64(0)

	u.background.Retry("baseline "+requestID, retries, func(ctx context.Context) error {
		attempts++
		err := u.recordBaseline(ctx, requestID, documentID)
		if err != nil && attempts > retries {
			u.observeBaseline("failed")
			u.logger.Warn("Baseline hash not recorded, request proceeds without integrity protection",
				zap.String("request_id", requestID),
				zap.String("document_id", documentID),
				zap.Error(err),
			)
		}
		return err
	})
}

func (u *signatureUsecase) recordBaseline(ctx context.Context, requestID, documentID string) error {
	digest, err := u.verifier.Compute(ctx, documentID)
	if err != nil {
		return err
	}

	changed, err := u.repo.SetBaselineHash(ctx, requestID, digest)
	if err != nil {
		return fmt.Errorf("failed to store baseline hash: %w", err)
	}

	if !changed {
		u.observeBaseline("skipped")
		return nil
	}
	u.observeBaseline("recorded")
	u.logger.Info("Baseline hash recorded",
		zap.String("request_id", requestID),
		zap.String("document_id", documentID),
		zap.String("document_hash", digest),
	)
	return nil
}

func (u *signatureUsecase) observeBaseline(result string) {
	if u.metrics != nil {
		u.metrics.BaselineCaptures.WithLabelValues(result).Inc()
	}
}

// notifySigners tells each reachable signer that their signature is requested.
func (u *signatureUsecase) notifySigners(req *entity.SignatureRequest, signers []entity.Signer) {
	for _, s := range signers {
		if s.UserID == "" && s.Email == "" {
			continue
		}
		u.dispatch(&entity.Notification{
			RecipientID:    s.UserID,
			RecipientEmail: s.Email,
			Type:           entity.NotificationSignatureRequested,
			Title:          "Signature requested",
			Message:        fmt.Sprintf("You have been asked to sign %q.", req.Title),
			Link:           u.requestLink(req.ID),
			RelatedID:      req.ID,
		}, s.ID)
	}
}

func (u *signatureUsecase) notifyRequester(req *entity.SignatureRequest, kind, title, message string) {
	u.dispatch(&entity.Notification{
		RecipientID: req.RequestedBy,
		Type:        kind,
		Title:       title,
		Message:     message,
		Link:        u.requestLink(req.ID),
		RelatedID:   req.ID,
	}, "")
}

func (u *signatureUsecase) dispatch(n *entity.Notification, signerID string) {
	n.ID = uuid.NewString()
	n.CreatedAt = u.now()

	u.background.Retry("notify "+n.Type, u.config.Notification.MaxRetries, func(ctx context.Context) error {
		if err := u.notifier.Dispatch(ctx, n); err != nil {
			return err
		}
		if signerID == "" {
			return nil
		}
		if err := u.repo.MarkSignerNotified(ctx, signerID, n.CreatedAt); err != nil {
			u.logger.Warn("Failed to stamp signer notification",
				zap.String("signer_id", signerID),
				zap.Error(err),
			)
		}
		return nil
	})
}

func (u *signatureUsecase) requestLink(requestID string) string {
	return strings.TrimRight(u.config.App.BaseURL, "/") + "/signature-requests/" + requestID
}
