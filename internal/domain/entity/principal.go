package entity

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleStaff  Role = "staff"
	RoleClient Role = "client"
)

// Principal is the calling identity as resolved by the identity provider.
type Principal struct {
	ID             string `json:"id"`
	Role           Role   `json:"role"`
	OrganizationID string `json:"organization_id"`
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
}

// CanManageRequests reports whether the principal may create or cancel requests.
func (p *Principal) CanManageRequests() bool {
	return p.Role == RoleAdmin || p.Role == RoleStaff
}

// SystemPrincipalID is the actor recorded for transitions made by the expiry sweep.
const SystemPrincipalID = "system"
