package types

import "time"

// PropertyKind is the catalog a proposed value targets
type PropertyKind string

// Recognized property kinds
const (
	KindInstrument PropertyKind = "instrument"
	KindMethod     PropertyKind = "method"
	KindReagent    PropertyKind = "reagent"
	KindUnit       PropertyKind = "unit"
)

// Valid reports whether the kind maps to a catalog
func (k PropertyKind) Valid() bool {
	switch k {
	case KindInstrument, KindMethod, KindReagent, KindUnit:
		return true
	default:
		return false
	}
}

// ProposalStatus is the moderation state of a proposal
type ProposalStatus int

// Proposal statuses. Pending is the only non-terminal status.
const (
	ProposalPending  ProposalStatus = 0
	ProposalApproved ProposalStatus = 1
	ProposalRejected ProposalStatus = 2
)

// Valid reports whether the status is one of the three known values
func (s ProposalStatus) Valid() bool {
	return s >= ProposalPending && s <= ProposalRejected
}

// String implements fmt.Stringer
func (s ProposalStatus) String() string {
	switch s {
	case ProposalPending:
		return "pending"
	case ProposalApproved:
		return "approved"
	case ProposalRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Decision is a moderator's verdict carried on an action link
type Decision string

// Moderation decisions
const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Valid reports whether the decision is recognized
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// Status returns the terminal proposal status the decision leads to
func (d Decision) Status() ProposalStatus {
	if d == DecisionApprove {
		return ProposalApproved
	}
	return ProposalRejected
}

// Proposal is a candidate catalog value awaiting moderation. The
// moderation nonce is non-nil exactly while the proposal is pending;
// it is cleared atomically with resolution so each emailed link works
// exactly once.
type Proposal struct {
	ID              string         `json:"id"`
	Kind            PropertyKind   `json:"kind"`
	Value           string         `json:"value"`
	Description     string         `json:"description,omitempty"`
	Status          ProposalStatus `json:"status"`
	ProposedBy      string         `json:"proposed_by"`
	ModerationNonce *string        `json:"-"`
	ResolvedBy      *string        `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// CatalogEntry is a row in one of the four structurally identical
// catalogs (instruments, methods, reagents, units).
type CatalogEntry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
