package interfaces

import (
	"context"

	"github.com/luisjglz/evaluat/pkg/types"
)

// ModerationService runs the two-state approval flow for proposed
// catalog values. Resolution is possible from an emailed link (signed
// token, no session) or from a direct administrative edit.
type ModerationService interface {
	Propose(ctx context.Context, kind types.PropertyKind, value, description, author string) (string, error)

	// ResolveToken verifies the signed token before touching storage
	// and fails closed with an expired-token error on any signature,
	// expiry, nonce or status mismatch.
	ResolveToken(ctx context.Context, token string, decision types.Decision, moderator string) error

	// ResolveDirect is the administrative form path; it materializes
	// only when the status transitions into Approved.
	ResolveDirect(ctx context.Context, proposalID string, status types.ProposalStatus, admin string) error

	GetProposal(ctx context.Context, id string) (*types.Proposal, error)
	ListProposals(ctx context.Context, status *types.ProposalStatus) ([]*types.Proposal, error)
}

// ModerationStore is the transaction-scoped persistence surface of the
// moderation component.
type ModerationStore interface {
	CreateProposal(ctx context.Context, p *types.Proposal) error
	GetProposal(ctx context.Context, id string) (*types.Proposal, error)
	ListProposals(ctx context.Context, status *types.ProposalStatus) ([]*types.Proposal, error)

	// LockProposal reads the proposal under FOR UPDATE; the caller
	// re-checks status and nonce before mutating.
	LockProposal(ctx context.Context, id string) (*types.Proposal, error)

	// ResolveProposal atomically sets the terminal status, the audit
	// fields and clears the moderation nonce.
	ResolveProposal(ctx context.Context, id string, status types.ProposalStatus, resolvedBy string) error

	// Catalog access used by materialization; lookup is
	// case-insensitive on name.
	FindCatalogEntryByName(ctx context.Context, kind types.PropertyKind, name string) (*types.CatalogEntry, error)
	CreateCatalogEntry(ctx context.Context, kind types.PropertyKind, entry *types.CatalogEntry) error
}

// ModerationRepository is the moderation persistence port
type ModerationRepository interface {
	ModerationStore

	// Transact runs fn inside one transaction, committing on nil and
	// rolling back on error.
	Transact(ctx context.Context, fn func(store ModerationStore) error) error
}

// Notifier is the outbound notification port. Delivery is best effort:
// implementations may fail, callers log and move on, and sends always
// happen after the surrounding transaction has committed.
type Notifier interface {
	Send(to, subject, body string) error
}
