package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/luisjglz/evaluat/pkg/config"
	"github.com/luisjglz/evaluat/pkg/interfaces"
	"github.com/luisjglz/evaluat/pkg/logger"
	"github.com/luisjglz/evaluat/pkg/monitoring"
	"github.com/luisjglz/evaluat/pkg/types"
)

// Resolution channels recorded in metrics
const (
	channelLink   = "link"
	channelDirect = "direct"
)

// Service implements the ModerationService interface
type Service struct {
	config     *config.Config
	logger     *logger.Logger
	repository interfaces.ModerationRepository
	notifier   interfaces.Notifier
	signer     *TokenSigner
}

// New creates a new moderation service
func New(cfg *config.Config, log *logger.Logger, repo interfaces.ModerationRepository, notifier interfaces.Notifier) interfaces.ModerationService {
	return &Service{
		config:     cfg,
		logger:     log,
		repository: repo,
		notifier:   notifier,
		signer:     NewTokenSigner(cfg.Moderation.TokenSecret, time.Duration(cfg.Moderation.TokenTTLHours)*time.Hour),
	}
}

// Propose creates a pending proposal for a new catalog value and, once
// it is committed, emails the author an acknowledgment and every
// moderator a pair of signed action links.
func (s *Service) Propose(ctx context.Context, kind types.PropertyKind, value, description, author string) (string, error) {
	if !kind.Valid() {
		return "", types.NewValidationError(types.ErrCodeUnknownKind, "unknown property kind", map[string]interface{}{
			"kind": string(kind),
		})
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", types.NewValidationError(types.ErrCodeEmptyValue, "proposed value is empty", nil)
	}

	nonce := uuid.New().String()
	proposal := &types.Proposal{
		Kind:            kind,
		Value:           value,
		Description:     description,
		Status:          types.ProposalPending,
		ProposedBy:      author,
		ModerationNonce: &nonce,
	}

	if err := s.repository.CreateProposal(ctx, proposal); err != nil {
		return "", err
	}

	monitoring.RecordProposal(string(kind))
	s.logger.WithProposal(proposal.ID).WithFields(map[string]interface{}{
		"kind":  string(kind),
		"value": value,
	}).Info("Proposal created")

	// Notifications go out after the proposal row is committed and
	// never affect the outcome of the request.
	s.notifyProposalCreated(proposal, nonce)

	return proposal.ID, nil
}

// ResolveToken resolves a proposal from an emailed action link. The
// token is verified before storage is touched; then, under a row lock,
// status and nonce are re-checked so that the link works exactly once
// even when clicked concurrently or forwarded.
func (s *Service) ResolveToken(ctx context.Context, token string, decision types.Decision, moderator string) error {
	if !decision.Valid() {
		return types.NewValidationError(types.ErrCodeInvalidInput, "unknown moderation decision", nil)
	}

	claims, err := s.signer.Verify(token)
	if err != nil {
		monitoring.RecordRejectedToken()
		return err
	}

	var resolved *types.Proposal
	err = s.repository.Transact(ctx, func(store interfaces.ModerationStore) error {
		proposal, err := store.LockProposal(ctx, claims.ProposalID)
		if err != nil {
			if types.IsType(err, types.ErrorTypeNotFound) {
				return types.NewExpiredTokenError()
			}
			return err
		}

		// Re-check after acquiring the lock: the stored nonce must
		// still match and the proposal must still be pending.
		if proposal.Status != types.ProposalPending ||
			proposal.ModerationNonce == nil ||
			*proposal.ModerationNonce != claims.Nonce {
			return types.NewExpiredTokenError()
		}

		status := decision.Status()
		if err := store.ResolveProposal(ctx, proposal.ID, status, moderator); err != nil {
			return err
		}
		proposal.Status = status

		if status == types.ProposalApproved {
			if _, err := Materialize(ctx, store, proposal); err != nil {
				return err
			}
		}

		resolved = proposal
		return nil
	})
	if err != nil {
		if types.IsType(err, types.ErrorTypeExpiredToken) {
			monitoring.RecordRejectedToken()
		}
		return err
	}

	monitoring.RecordProposalResolution(resolved.Status.String(), channelLink)
	s.logger.WithProposal(resolved.ID).WithField("status", resolved.Status.String()).Info("Proposal resolved via link")

	s.notifyProposalResolved(resolved, moderator)
	return nil
}

// ResolveDirect resolves a proposal from the administrative form. The
// previous status is compared to the new one under the row lock, so
// repeated saves of an already-approved row never materialize twice.
func (s *Service) ResolveDirect(ctx context.Context, proposalID string, status types.ProposalStatus, admin string) error {
	if !status.Valid() || status == types.ProposalPending {
		return types.NewValidationError(types.ErrCodeInvalidInput, "resolution status must be approved or rejected", nil)
	}

	var resolved *types.Proposal
	err := s.repository.Transact(ctx, func(store interfaces.ModerationStore) error {
		proposal, err := store.LockProposal(ctx, proposalID)
		if err != nil {
			return err
		}

		previous := proposal.Status
		if previous == status {
			// Repeated save of an already-resolved row: nothing to do
			return nil
		}

		if err := store.ResolveProposal(ctx, proposal.ID, status, admin); err != nil {
			return err
		}
		proposal.Status = status

		// Materialize only on the transition into Approved
		if status == types.ProposalApproved && previous != types.ProposalApproved {
			if _, err := Materialize(ctx, store, proposal); err != nil {
				return err
			}
		}

		resolved = proposal
		return nil
	})
	if err != nil {
		return err
	}
	if resolved == nil {
		return nil
	}

	monitoring.RecordProposalResolution(resolved.Status.String(), channelDirect)
	s.logger.WithProposal(resolved.ID).WithField("status", resolved.Status.String()).Info("Proposal resolved via direct edit")

	s.notifyProposalResolved(resolved, admin)
	return nil
}

// GetProposal retrieves a proposal by ID
func (s *Service) GetProposal(ctx context.Context, id string) (*types.Proposal, error) {
	return s.repository.GetProposal(ctx, id)
}

// ListProposals retrieves proposals, optionally filtered by status
func (s *Service) ListProposals(ctx context.Context, status *types.ProposalStatus) ([]*types.Proposal, error) {
	return s.repository.ListProposals(ctx, status)
}

// notifyProposalCreated sends the acknowledgment and the moderator
// action links. Failures are logged and swallowed.
func (s *Service) notifyProposalCreated(p *types.Proposal, nonce string) {
	if p.ProposedBy != "" {
		subject := "Proposal received"
		body := fmt.Sprintf(
			"Your proposal has been received and is awaiting moderation.\n\nKind: %s\nValue: %s\n\nProposal ID: %s",
			p.Kind, p.Value, p.ID,
		)
		s.logger.Notification(p.ProposedBy, subject, s.notifier.Send(p.ProposedBy, subject, body))
	}

	token, err := s.signer.Sign(p.ID, nonce)
	if err != nil {
		// Moderators can still resolve from the admin form
		s.logger.WithProposal(p.ID).WithError(err).Warn("Failed to sign moderation token; action links not sent")
		return
	}

	approveURL := s.actionURL(token, types.DecisionApprove)
	rejectURL := s.actionURL(token, types.DecisionReject)
	subject := fmt.Sprintf("New %s proposal: %s", p.Kind, p.Value)
	body := fmt.Sprintf(
		"A new catalog value has been proposed by %s.\n\nKind: %s\nValue: %s\nDescription: %s\n\nApprove: %s\nReject: %s\n\nThe links expire in %d hours and work exactly once.",
		p.ProposedBy, p.Kind, p.Value, p.Description, approveURL, rejectURL, s.config.Moderation.TokenTTLHours,
	)

	for _, moderator := range s.config.Moderation.Moderators {
		s.logger.Notification(moderator, subject, s.notifier.Send(moderator, subject, body))
	}
}

// notifyProposalResolved reports the outcome to the author and the
// moderators. Failures are logged and swallowed.
func (s *Service) notifyProposalResolved(p *types.Proposal, resolvedBy string) {
	subject := fmt.Sprintf("Proposal %s: %s", p.Status, p.Value)
	body := fmt.Sprintf(
		"The %s proposal %q has been %s by %s.\n\nProposal ID: %s",
		p.Kind, p.Value, p.Status, resolvedBy, p.ID,
	)

	if p.ProposedBy != "" {
		s.logger.Notification(p.ProposedBy, subject, s.notifier.Send(p.ProposedBy, subject, body))
	}
	for _, moderator := range s.config.Moderation.Moderators {
		s.logger.Notification(moderator, subject, s.notifier.Send(moderator, subject, body))
	}
}

// actionURL builds the moderation link for a decision
func (s *Service) actionURL(token string, decision types.Decision) string {
	return fmt.Sprintf("%s/api/v1/proposals/resolve?token=%s&decision=%s",
		strings.TrimRight(s.config.Moderation.BaseURL, "/"), token, decision)
}
