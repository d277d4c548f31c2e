package entity

import "time"

type SignerStatus string

const (
	SignerStatusPending  SignerStatus = "pending"
	SignerStatusSigned   SignerStatus = "signed"
	SignerStatusDeclined SignerStatus = "declined"
)

// Signer is one party of a request. Requests created without a party list
// carry a single implicit signer that any member of the organization may act as.
type Signer struct {
	ID         string       `json:"id"`
	RequestID  string       `json:"request_id"`
	UserID     string       `json:"user_id,omitempty"`
	Email      string       `json:"email,omitempty"`
	Name       string       `json:"name,omitempty"`
	Sequence   int          `json:"sequence"`
	Status     SignerStatus `json:"status"`
	Implicit   bool         `json:"implicit"`
	SignedAt   *time.Time   `json:"signed_at,omitempty"`
	DeclinedAt *time.Time   `json:"declined_at,omitempty"`
	NotifiedAt *time.Time   `json:"notified_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

func (s *Signer) IsTerminal() bool {
	return s.Status != SignerStatusPending
}
