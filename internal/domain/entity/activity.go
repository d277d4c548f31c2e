package entity

import "time"

// Activity actions recorded for signature requests
const (
	ActivityCreate  = "signature_request.create"
	ActivitySign    = "signature_request.sign"
	ActivityDecline = "signature_request.decline"
	ActivityCancel  = "signature_request.cancel"
	ActivityExpire  = "signature_request.expire"
	ActivityPreview = "signature_request.preview"

	ResourceSignatureRequest = "signature_request"
)

// Activity is an append-only audit record.
type Activity struct {
	ID             int64     `json:"id"`
	OrganizationID string    `json:"organization_id"`
	ActorID        string    `json:"actor_id"`
	Action         string    `json:"action"`
	ResourceType   string    `json:"resource_type"`
	ResourceID     string    `json:"resource_id"`
	ResourceName   string    `json:"resource_name"`
	CreatedAt      time.Time `json:"created_at"`
}
