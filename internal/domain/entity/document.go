package entity

// DocumentMeta is the descriptive metadata returned by the document store.
type DocumentMeta struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	MimeType       string `json:"mime_type"`
	Size           int64  `json:"size,omitempty"`
}
