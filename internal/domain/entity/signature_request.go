package entity

import "time"

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusSigned   RequestStatus = "signed"
	RequestStatusDeclined RequestStatus = "declined"
	RequestStatusExpired  RequestStatus = "expired"
)

// IsTerminal reports whether no further transition is allowed.
func (s RequestStatus) IsTerminal() bool {
	return s != RequestStatusPending
}

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusSigned, RequestStatusDeclined, RequestStatusExpired:
		return true
	}
	return false
}

// SignatureRequest is one document-signing episode.
type SignatureRequest struct {
	ID                 string        `json:"id"`
	OrganizationID     string        `json:"organization_id"`
	DocumentID         string        `json:"document_id"`
	Title              string        `json:"title"`
	Description        string        `json:"description,omitempty"`
	Status             RequestStatus `json:"status"`
	DisplayStatus      RequestStatus `json:"display_status"`
	RequestedBy        string        `json:"requested_by"`
	RequestedAt        time.Time     `json:"requested_at"`
	ExpiresAt          *time.Time    `json:"expires_at,omitempty"`
	SignedAt           *time.Time    `json:"signed_at,omitempty"`
	SignedBy           string        `json:"signed_by,omitempty"`
	DocumentHash       string        `json:"document_hash,omitempty"`
	SignedDocumentHash string        `json:"signed_document_hash,omitempty"`
	SignerCount        int           `json:"signer_count"`
	CompletedCount     int           `json:"completed_count"`
	RequireAll         bool          `json:"require_all"`
	RequireSequential  bool          `json:"require_sequential"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// IsExpiredAt reports whether expiresAt is strictly before now.
func (r *SignatureRequest) IsExpiredAt(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// CreateSignatureRequest is the input of the create operation.
type CreateSignatureRequest struct {
	DocumentID        string        `json:"document_id" validate:"required"`
	Title             string        `json:"title" validate:"required,max=200"`
	Description       string        `json:"description" validate:"max=1000"`
	ExpiresAt         *time.Time    `json:"expires_at"`
	RequireAll        *bool         `json:"require_all"`
	RequireSequential bool          `json:"require_sequential"`
	Signers           []SignerInput `json:"signers" validate:"omitempty,max=50,dive"`
}

// SignerInput describes one party of a multi-party request.
type SignerInput struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"required,max=200"`
	Sequence int    `json:"sequence" validate:"gte=0"`
}

// ListFilter narrows the list operation. An empty Status returns everything.
type ListFilter struct {
	Status RequestStatus `json:"status"`
}

// CanSignResult answers canUserSign.
type CanSignResult struct {
	CanSign  bool   `json:"can_sign"`
	Reason   string `json:"reason,omitempty"`
	SignerID string `json:"signer_id,omitempty"`
}

// SignResult is returned by a successful sign attempt.
type SignResult struct {
	Request   *SignatureRequest `json:"request"`
	Signature *Signature        `json:"signature"`
}

// PreviewResult carries a time-bound read URL for the request's document.
type PreviewResult struct {
	DocumentID string    `json:"document_id"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mime_type"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}
