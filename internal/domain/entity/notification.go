package entity

import "time"

const (
	NotificationSignatureRequested = "signature_requested"
	NotificationSignatureCompleted = "signature_completed"
	NotificationSignatureDeclined  = "signature_declined"
	NotificationSignatureExpired   = "signature_expired"
)

// Notification is queued for asynchronous in-app and email delivery.
type Notification struct {
	ID             string    `json:"id"`
	RecipientID    string    `json:"recipient_id,omitempty"`
	RecipientEmail string    `json:"recipient_email,omitempty"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Link           string    `json:"link"`
	RelatedID      string    `json:"related_id"`
	CreatedAt      time.Time `json:"created_at"`
}
