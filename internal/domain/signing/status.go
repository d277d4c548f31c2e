package signing

import (
	"time"

	"signflow/internal/domain/entity"
)

// DisplayStatus derives the status shown to readers: a pending request whose
// expiresAt has passed reads as expired. Stored status is left untouched.
func DisplayStatus(req *entity.SignatureRequest, now time.Time) entity.RequestStatus {
	if req.Status == entity.RequestStatusPending && req.IsExpiredAt(now) {
		return entity.RequestStatusExpired
	}
	return req.Status
}

// WithDisplayStatus returns the request with DisplayStatus filled in.
func WithDisplayStatus(req *entity.SignatureRequest, now time.Time) *entity.SignatureRequest {
	req.DisplayStatus = DisplayStatus(req, now)
	return req
}
