package moderation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/luisjglz/evaluat/pkg/config"
	"github.com/luisjglz/evaluat/pkg/interfaces"
	"github.com/luisjglz/evaluat/pkg/logger"
	"github.com/luisjglz/evaluat/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockModerationStore is a mock implementation of the ModerationStore
// interface
type mockModerationStore struct {
	mock.Mock
}

func (m *mockModerationStore) CreateProposal(ctx context.Context, p *types.Proposal) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockModerationStore) GetProposal(ctx context.Context, id string) (*types.Proposal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Proposal), args.Error(1)
}

func (m *mockModerationStore) ListProposals(ctx context.Context, status *types.ProposalStatus) ([]*types.Proposal, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.Proposal), args.Error(1)
}

func (m *mockModerationStore) LockProposal(ctx context.Context, id string) (*types.Proposal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Proposal), args.Error(1)
}

func (m *mockModerationStore) ResolveProposal(ctx context.Context, id string, status types.ProposalStatus, resolvedBy string) error {
	args := m.Called(ctx, id, status, resolvedBy)
	return args.Error(0)
}

func (m *mockModerationStore) FindCatalogEntryByName(ctx context.Context, kind types.PropertyKind, name string) (*types.CatalogEntry, error) {
	args := m.Called(ctx, kind, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.CatalogEntry), args.Error(1)
}

func (m *mockModerationStore) CreateCatalogEntry(ctx context.Context, kind types.PropertyKind, entry *types.CatalogEntry) error {
	args := m.Called(ctx, kind, entry)
	return args.Error(0)
}

// mockModerationRepo runs Transact callbacks against the embedded mock
// store
type mockModerationRepo struct {
	mockModerationStore
}

func (m *mockModerationRepo) Transact(ctx context.Context, fn func(store interfaces.ModerationStore) error) error {
	return fn(&m.mockModerationStore)
}

// stubNotifier records outbound mail for assertions
type stubNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (n *stubNotifier) Send(to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, to)
	return n.err
}

func (n *stubNotifier) recipients() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

func testConfig() *config.Config {
	return &config.Config{
		Moderation: config.ModerationConfig{
			TokenSecret:   "test-secret",
			TokenTTLHours: 72,
			Moderators:    []string{"mod1@example.com", "mod2@example.com"},
			BaseURL:       "http://localhost:8080",
		},
	}
}

func newTestModeration(repo *mockModerationRepo, notifier interfaces.Notifier) interfaces.ModerationService {
	return New(testConfig(), logger.New("debug"), repo, notifier)
}

func TestPropose_RejectsUnknownKind(t *testing.T) {
	repo := &mockModerationRepo{}
	service := newTestModeration(repo, &stubNotifier{})

	_, err := service.Propose(context.Background(), "gadget", "Thing", "", "user@example.com")
	assert.True(t, types.IsType(err, types.ErrorTypeValidation))
	repo.AssertNotCalled(t, "CreateProposal", mock.Anything, mock.Anything)
}

func TestPropose_RejectsEmptyValue(t *testing.T) {
	repo := &mockModerationRepo{}
	service := newTestModeration(repo, &stubNotifier{})

	_, err := service.Propose(context.Background(), types.KindInstrument, "   ", "", "user@example.com")
	assert.True(t, types.IsType(err, types.ErrorTypeValidation))
}

func TestPropose_CreatesPendingProposalAndNotifies(t *testing.T) {
	repo := &mockModerationRepo{}
	notifier := &stubNotifier{}

	var created *types.Proposal
	repo.On("CreateProposal", mock.Anything, mock.MatchedBy(func(p *types.Proposal) bool {
		created = p
		return p.Kind == types.KindInstrument &&
			p.Value == "Spectrometer X" &&
			p.Status == types.ProposalPending &&
			p.ModerationNonce != nil
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*types.Proposal).ID = "prop-1"
	}).Return(nil)

	service := newTestModeration(repo, notifier)
	id, err := service.Propose(context.Background(), types.KindInstrument, "  Spectrometer X  ", "desc", "user@example.com")
	require.NoError(t, err)

	assert.Equal(t, "prop-1", id)
	require.NotNil(t, created)
	assert.NotEmpty(t, *created.ModerationNonce)

	// Author acknowledgment plus one action mail per moderator
	assert.ElementsMatch(t, []string{"user@example.com", "mod1@example.com", "mod2@example.com"}, notifier.recipients())
}

func TestPropose_NotificationFailureDoesNotFailRequest(t *testing.T) {
	repo := &mockModerationRepo{}
	notifier := &stubNotifier{err: assert.AnError}

	repo.On("CreateProposal", mock.Anything, mock.Anything).Return(nil)

	service := newTestModeration(repo, notifier)
	_, err := service.Propose(context.Background(), types.KindUnit, "mg/dL", "", "user@example.com")
	assert.NoError(t, err)
}

func signTestToken(t *testing.T, proposalID, nonce string) string {
	t.Helper()
	signer := NewTokenSigner("test-secret", 72*time.Hour)
	token, err := signer.Sign(proposalID, nonce)
	require.NoError(t, err)
	return token
}

func pendingProposal(nonce string) *types.Proposal {
	return &types.Proposal{
		ID:              "prop-1",
		Kind:            types.KindMethod,
		Value:           "Immunoassay",
		Status:          types.ProposalPending,
		ProposedBy:      "user@example.com",
		ModerationNonce: &nonce,
	}
}

func TestResolveToken_ApproveMaterializes(t *testing.T) {
	repo := &mockModerationRepo{}
	notifier := &stubNotifier{}
	token := signTestToken(t, "prop-1", "nonce-1")

	repo.On("LockProposal", mock.Anything, "prop-1").Return(pendingProposal("nonce-1"), nil)
	repo.On("ResolveProposal", mock.Anything, "prop-1", types.ProposalApproved, "mod1@example.com").Return(nil)
	repo.On("FindCatalogEntryByName", mock.Anything, types.KindMethod, "Immunoassay").
		Return(nil, types.NewNotFoundError(types.ErrCodeNotFound, "missing"))
	repo.On("CreateCatalogEntry", mock.Anything, types.KindMethod, mock.MatchedBy(func(e *types.CatalogEntry) bool {
		return e.Name == "Immunoassay"
	})).Return(nil)

	service := newTestModeration(repo, notifier)
	err := service.ResolveToken(context.Background(), token, types.DecisionApprove, "mod1@example.com")
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestResolveToken_RejectDoesNotMaterialize(t *testing.T) {
	repo := &mockModerationRepo{}
	token := signTestToken(t, "prop-1", "nonce-1")

	repo.On("LockProposal", mock.Anything, "prop-1").Return(pendingProposal("nonce-1"), nil)
	repo.On("ResolveProposal", mock.Anything, "prop-1", types.ProposalRejected, "mod1@example.com").Return(nil)

	service := newTestModeration(repo, &stubNotifier{})
	err := service.ResolveToken(context.Background(), token, types.DecisionReject, "mod1@example.com")
	require.NoError(t, err)

	repo.AssertNotCalled(t, "CreateCatalogEntry", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "FindCatalogEntryByName", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveToken_ReplayFailsClosed(t *testing.T) {
	repo := &mockModerationRepo{}
	token := signTestToken(t, "prop-1", "nonce-1")

	// The nonce has been cleared by the first resolution
	resolved := pendingProposal("nonce-1")
	resolved.Status = types.ProposalApproved
	resolved.ModerationNonce = nil

	repo.On("LockProposal", mock.Anything, "prop-1").Return(resolved, nil)

	service := newTestModeration(repo, &stubNotifier{})
	err := service.ResolveToken(context.Background(), token, types.DecisionApprove, "mod1@example.com")

	assert.True(t, types.IsType(err, types.ErrorTypeExpiredToken))
	repo.AssertNotCalled(t, "ResolveProposal", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveToken_NonceMismatchFailsClosed(t *testing.T) {
	repo := &mockModerationRepo{}
	token := signTestToken(t, "prop-1", "stale-nonce")

	repo.On("LockProposal", mock.Anything, "prop-1").Return(pendingProposal("current-nonce"), nil)

	service := newTestModeration(repo, &stubNotifier{})
	err := service.ResolveToken(context.Background(), token, types.DecisionApprove, "mod1@example.com")

	assert.True(t, types.IsType(err, types.ErrorTypeExpiredToken))
	repo.AssertNotCalled(t, "ResolveProposal", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveToken_TamperedTokenNeverTouchesStorage(t *testing.T) {
	repo := &mockModerationRepo{}

	service := newTestModeration(repo, &stubNotifier{})
	err := service.ResolveToken(context.Background(), "garbage-token", types.DecisionApprove, "mod1@example.com")

	assert.True(t, types.IsType(err, types.ErrorTypeExpiredToken))
	repo.AssertNotCalled(t, "LockProposal", mock.Anything, mock.Anything)
}

func TestResolveToken_MissingProposalReportsExpired(t *testing.T) {
	repo := &mockModerationRepo{}
	token := signTestToken(t, "prop-9", "nonce-9")

	repo.On("LockProposal", mock.Anything, "prop-9").
		Return(nil, types.NewNotFoundError(types.ErrCodeNotFound, "missing"))

	service := newTestModeration(repo, &stubNotifier{})
	err := service.ResolveToken(context.Background(), token, types.DecisionApprove, "mod1@example.com")

	// A deleted proposal is indistinguishable from an expired link
	assert.True(t, types.IsType(err, types.ErrorTypeExpiredToken))
}

func TestResolveToken_RejectsUnknownDecision(t *testing.T) {
	repo := &mockModerationRepo{}
	token := signTestToken(t, "prop-1", "nonce-1")

	service := newTestModeration(repo, &stubNotifier{})
	err := service.ResolveToken(context.Background(), token, types.Decision("maybe"), "mod1@example.com")

	assert.True(t, types.IsType(err, types.ErrorTypeValidation))
	repo.AssertNotCalled(t, "LockProposal", mock.Anything, mock.Anything)
}

func TestResolveDirect_MaterializesOnTransitionIntoApproved(t *testing.T) {
	repo := &mockModerationRepo{}

	repo.On("LockProposal", mock.Anything, "prop-1").Return(pendingProposal("nonce-1"), nil)
	repo.On("ResolveProposal", mock.Anything, "prop-1", types.ProposalApproved, "admin-1").Return(nil)
	repo.On("FindCatalogEntryByName", mock.Anything, types.KindMethod, "Immunoassay").
		Return(nil, types.NewNotFoundError(types.ErrCodeNotFound, "missing"))
	repo.On("CreateCatalogEntry", mock.Anything, types.KindMethod, mock.Anything).Return(nil)

	service := newTestModeration(repo, &stubNotifier{})
	err := service.ResolveDirect(context.Background(), "prop-1", types.ProposalApproved, "admin-1")
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestResolveDirect_RepeatedSaveIsNoop(t *testing.T) {
	repo := &mockModerationRepo{}
	notifier := &stubNotifier{}

	approved := pendingProposal("nonce-1")
	approved.Status = types.ProposalApproved
	approved.ModerationNonce = nil

	repo.On("LockProposal", mock.Anything, "prop-1").Return(approved, nil)

	service := newTestModeration(repo, notifier)
	err := service.ResolveDirect(context.Background(), "prop-1", types.ProposalApproved, "admin-1")
	require.NoError(t, err)

	repo.AssertNotCalled(t, "ResolveProposal", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "CreateCatalogEntry", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, notifier.recipients())
}

func TestResolveDirect_RejectingApprovedDoesNotMaterialize(t *testing.T) {
	repo := &mockModerationRepo{}

	approved := pendingProposal("nonce-1")
	approved.Status = types.ProposalApproved
	approved.ModerationNonce = nil

	repo.On("LockProposal", mock.Anything, "prop-1").Return(approved, nil)
	repo.On("ResolveProposal", mock.Anything, "prop-1", types.ProposalRejected, "admin-1").Return(nil)

	service := newTestModeration(repo, &stubNotifier{})
	err := service.ResolveDirect(context.Background(), "prop-1", types.ProposalRejected, "admin-1")
	require.NoError(t, err)

	repo.AssertNotCalled(t, "FindCatalogEntryByName", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveDirect_RejectsPendingTarget(t *testing.T) {
	repo := &mockModerationRepo{}

	service := newTestModeration(repo, &stubNotifier{})
	err := service.ResolveDirect(context.Background(), "prop-1", types.ProposalPending, "admin-1")

	assert.True(t, types.IsType(err, types.ErrorTypeValidation))
	repo.AssertNotCalled(t, "LockProposal", mock.Anything, mock.Anything)
}

func TestMaterialize_ExistingEntryIsReusedCaseInsensitively(t *testing.T) {
	store := &mockModerationStore{}
	existing := &types.CatalogEntry{ID: "cat-1", Name: "immunoassay"}

	store.On("FindCatalogEntryByName", mock.Anything, types.KindMethod, "Immunoassay").Return(existing, nil)

	entry, err := Materialize(context.Background(), store, pendingProposal("nonce-1"))
	require.NoError(t, err)

	assert.Equal(t, "cat-1", entry.ID)
	store.AssertNotCalled(t, "CreateCatalogEntry", mock.Anything, mock.Anything, mock.Anything)
}

func TestMaterialize_RecoversFromInsertRace(t *testing.T) {
	store := &mockModerationStore{}
	winner := &types.CatalogEntry{ID: "cat-1", Name: "Immunoassay"}

	store.On("FindCatalogEntryByName", mock.Anything, types.KindMethod, "Immunoassay").
		Return(nil, types.NewNotFoundError(types.ErrCodeNotFound, "missing")).Once()
	store.On("CreateCatalogEntry", mock.Anything, types.KindMethod, mock.Anything).
		Return(types.NewConflictError(types.ErrCodeAlreadyExists, "catalog entry already exists", nil))
	store.On("FindCatalogEntryByName", mock.Anything, types.KindMethod, "Immunoassay").
		Return(winner, nil).Once()

	entry, err := Materialize(context.Background(), store, pendingProposal("nonce-1"))
	require.NoError(t, err)
	assert.Equal(t, "cat-1", entry.ID)
	store.AssertExpectations(t)
}
