package signing

import (
	"sort"
	"strings"
	"time"

	"signflow/internal/domain/entity"
)

// Reasons reported when a signer cannot act.
const (
	ReasonNotPending      = "request is not pending"
	ReasonExpired         = "request expired"
	ReasonNotSigner       = "not a signer on this request"
	ReasonAlreadySigned   = "already signed"
	ReasonAlreadyDeclined = "already declined"
	ReasonAwaitingEarlier = "awaiting earlier signer"
	ReasonEarlierDeclined = "earlier signer declined"
)

// Coordinator evaluates eligibility and completion over a request's signers.
// It works on its own copy ordered by sequence.
type Coordinator struct {
	signers           []entity.Signer
	requireAll        bool
	requireSequential bool
}

func NewCoordinator(signers []entity.Signer, requireAll, requireSequential bool) *Coordinator {
	ordered := make([]entity.Signer, len(signers))
	copy(ordered, signers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Sequence < ordered[j].Sequence
	})

	return &Coordinator{
		signers:           ordered,
		requireAll:        requireAll,
		requireSequential: requireSequential,
	}
}

// ForRequest builds a coordinator with the request's policy flags.
func ForRequest(req *entity.SignatureRequest, signers []entity.Signer) *Coordinator {
	return NewCoordinator(signers, req.RequireAll, req.RequireSequential)
}

func (c *Coordinator) Signers() []entity.Signer {
	out := make([]entity.Signer, len(c.signers))
	copy(out, c.signers)
	return out
}

// Match returns the signer row the principal acts as, or nil.
// Rows bound to a user match by id; unbound rows match by email; the
// implicit row matches any member of the organization.
func (c *Coordinator) Match(p *entity.Principal, organizationID string) *entity.Signer {
	if p == nil {
		return nil
	}

	for i := range c.signers {
		s := &c.signers[i]
		if s.UserID != "" && s.UserID == p.ID {
			return s
		}
	}
	for i := range c.signers {
		s := &c.signers[i]
		if s.UserID == "" && s.Email != "" && p.Email != "" && strings.EqualFold(s.Email, p.Email) {
			return s
		}
	}
	for i := range c.signers {
		s := &c.signers[i]
		if s.Implicit && p.OrganizationID == organizationID {
			return s
		}
	}
	return nil
}

func (c *Coordinator) find(signerID string) *entity.Signer {
	for i := range c.signers {
		if c.signers[i].ID == signerID {
			return &c.signers[i]
		}
	}
	return nil
}

// CanAct reports whether the signer may sign or decline now.
func (c *Coordinator) CanAct(signerID string) (bool, string) {
	s := c.find(signerID)
	if s == nil {
		return false, ReasonNotSigner
	}

	switch s.Status {
	case entity.SignerStatusSigned:
		return false, ReasonAlreadySigned
	case entity.SignerStatusDeclined:
		return false, ReasonAlreadyDeclined
	}

	if !c.requireSequential {
		return true, ""
	}

	for _, other := range c.signers {
		if other.Sequence >= s.Sequence {
			break
		}
		switch other.Status {
		case entity.SignerStatusDeclined:
			return false, ReasonEarlierDeclined
		case entity.SignerStatusPending:
			return false, ReasonAwaitingEarlier
		}
	}
	return true, ""
}

// Eligible returns the pending signers that may act now.
func (c *Coordinator) Eligible() []entity.Signer {
	var out []entity.Signer
	for _, s := range c.signers {
		if ok, _ := c.CanAct(s.ID); ok {
			out = append(out, s)
		}
	}
	return out
}

// IsComplete reports whether the aggregate request has reached its policy.
func (c *Coordinator) IsComplete() bool {
	if len(c.signers) == 0 {
		return false
	}

	signed := 0
	for _, s := range c.signers {
		if s.Status == entity.SignerStatusSigned {
			signed++
		}
	}

	if c.requireAll {
		return signed == len(c.signers)
	}
	return signed > 0
}

// CanStillComplete reports whether some sequence of future actions can
// still satisfy the policy.
func (c *Coordinator) CanStillComplete() bool {
	if c.IsComplete() {
		return true
	}

	for _, s := range c.signers {
		if s.Status == entity.SignerStatusDeclined {
			if c.requireAll || c.requireSequential {
				return false
			}
		}
	}

	for _, s := range c.signers {
		if s.Status == entity.SignerStatusPending {
			return true
		}
	}
	return false
}

// Record applies a terminal signer status to the coordinator's copy.
func (c *Coordinator) Record(signerID string, status entity.SignerStatus, at time.Time) {
	s := c.find(signerID)
	if s == nil {
		return
	}
	s.Status = status
	switch status {
	case entity.SignerStatusSigned:
		s.SignedAt = &at
	case entity.SignerStatusDeclined:
		s.DeclinedAt = &at
	}
}
