package entity

import "time"

type SignatureType string

const (
	SignatureTypeDrawn    SignatureType = "drawn"
	SignatureTypeTyped    SignatureType = "typed"
	SignatureTypeUploaded SignatureType = "uploaded"
)

// Signature is the immutable evidence of one completed signer action.
type Signature struct {
	ID           string        `json:"id"`
	RequestID    string        `json:"request_id"`
	SignerID     string        `json:"signer_id"`
	UserID       string        `json:"user_id"`
	Type         SignatureType `json:"type"`
	Data         string        `json:"data"`
	IPAddress    string        `json:"ip_address,omitempty"`
	UserAgent    string        `json:"user_agent,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
	ConsentGiven bool          `json:"consent_given"`
	LegalName    string        `json:"legal_name"`
}

// SignInput is the evidence submitted with a sign attempt.
type SignInput struct {
	Type         SignatureType `json:"type"`
	Data         string        `json:"data"`
	LegalName    string        `json:"legal_name"`
	ConsentGiven bool          `json:"consent_given"`
	IPAddress    string        `json:"-"`
	UserAgent    string        `json:"-"`
}

// DeclineInput is the optional reason attached to a decline.
type DeclineInput struct {
	Reason string `json:"reason" validate:"max=1000"`
}
