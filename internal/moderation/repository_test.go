package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/luisjglz/evaluat/pkg/logger"
	"github.com/luisjglz/evaluat/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (*store, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	s := &store{q: db, logger: logger.New("debug")}
	cleanup := func() { db.Close() }
	return s, mock, cleanup
}

func proposalRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "kind", "value", "description", "status", "proposed_by",
		"moderation_nonce", "resolved_by", "resolved_at", "created_at", "updated_at",
	})
}

func TestStore_GetProposal_Pending(t *testing.T) {
	s, mock, cleanup := setupTestStore(t)
	defer cleanup()

	now := time.Now()
	rows := proposalRows().AddRow(
		"prop-1", "instrument", "Spectrometer X", "desc", 0, "user@example.com",
		"nonce-1", nil, nil, now, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM proposals WHERE id = \\$1").
		WithArgs("prop-1").
		WillReturnRows(rows)

	p, err := s.GetProposal(context.Background(), "prop-1")
	require.NoError(t, err)

	assert.Equal(t, types.KindInstrument, p.Kind)
	assert.Equal(t, types.ProposalPending, p.Status)
	require.NotNil(t, p.ModerationNonce)
	assert.Equal(t, "nonce-1", *p.ModerationNonce)
	assert.Nil(t, p.ResolvedBy)
	assert.Nil(t, p.ResolvedAt)
}

func TestStore_GetProposal_Resolved(t *testing.T) {
	s, mock, cleanup := setupTestStore(t)
	defer cleanup()

	now := time.Now()
	rows := proposalRows().AddRow(
		"prop-1", "unit", "mg/dL", nil, 1, "user@example.com",
		nil, "mod@example.com", now, now, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM proposals WHERE id = \\$1").
		WithArgs("prop-1").
		WillReturnRows(rows)

	p, err := s.GetProposal(context.Background(), "prop-1")
	require.NoError(t, err)

	assert.Equal(t, types.ProposalApproved, p.Status)
	assert.Nil(t, p.ModerationNonce)
	require.NotNil(t, p.ResolvedBy)
	assert.Equal(t, "mod@example.com", *p.ResolvedBy)
	assert.NotNil(t, p.ResolvedAt)
}

func TestStore_GetProposal_NotFound(t *testing.T) {
	s, mock, cleanup := setupTestStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM proposals WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(proposalRows())

	_, err := s.GetProposal(context.Background(), "missing")
	assert.True(t, types.IsType(err, types.ErrorTypeNotFound))
}

func TestStore_LockProposal_UsesForUpdate(t *testing.T) {
	s, mock, cleanup := setupTestStore(t)
	defer cleanup()

	now := time.Now()
	rows := proposalRows().AddRow(
		"prop-1", "method", "Immunoassay", nil, 0, "user@example.com",
		"nonce-1", nil, nil, now, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM proposals WHERE id = \\$1 FOR UPDATE").
		WithArgs("prop-1").
		WillReturnRows(rows)

	p, err := s.LockProposal(context.Background(), "prop-1")
	require.NoError(t, err)
	assert.Equal(t, "prop-1", p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateProposal_AssignsID(t *testing.T) {
	s, mock, cleanup := setupTestStore(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO proposals").
		WillReturnResult(sqlmock.NewResult(0, 1))

	nonce := "nonce-1"
	p := &types.Proposal{
		Kind:            types.KindReagent,
		Value:           "Reagent Z",
		Status:          types.ProposalPending,
		ProposedBy:      "user@example.com",
		ModerationNonce: &nonce,
	}
	err := s.CreateProposal(context.Background(), p)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
}

func TestStore_ResolveProposal_ClearsNonce(t *testing.T) {
	s, mock, cleanup := setupTestStore(t)
	defer cleanup()

	mock.ExpectExec("UPDATE proposals\\s+SET status = \\$1, resolved_by = \\$2, resolved_at = NOW\\(\\), moderation_nonce = NULL").
		WithArgs(types.ProposalApproved, "mod@example.com", "prop-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.ResolveProposal(context.Background(), "prop-1", types.ProposalApproved, "mod@example.com")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ResolveProposal_MissingRow(t *testing.T) {
	s, mock, cleanup := setupTestStore(t)
	defer cleanup()

	mock.ExpectExec("UPDATE proposals").
		WithArgs(types.ProposalRejected, "mod@example.com", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.ResolveProposal(context.Background(), "missing", types.ProposalRejected, "mod@example.com")
	assert.True(t, types.IsType(err, types.ErrorTypeNotFound))
}

func TestStore_FindCatalogEntryByName_CaseInsensitive(t *testing.T) {
	s, mock, cleanup := setupTestStore(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "description", "created_at"}).
		AddRow("cat-1", "Immunoassay", "", now)

	mock.ExpectQuery("SELECT id, name, (.+) FROM methods WHERE LOWER\\(name\\) = LOWER\\(\\$1\\)").
		WithArgs("IMMUNOASSAY").
		WillReturnRows(rows)

	entry, err := s.FindCatalogEntryByName(context.Background(), types.KindMethod, "IMMUNOASSAY")
	require.NoError(t, err)
	assert.Equal(t, "cat-1", entry.ID)
	assert.Equal(t, "Immunoassay", entry.Name)
}

func TestStore_FindCatalogEntryByName_UnknownKind(t *testing.T) {
	s, _, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := s.FindCatalogEntryByName(context.Background(), "gadget", "anything")
	assert.True(t, types.IsType(err, types.ErrorTypeValidation))
}

func TestStore_CreateCatalogEntry_UniqueViolation(t *testing.T) {
	s, mock, cleanup := setupTestStore(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO units").
		WillReturnError(&pq.Error{Code: "23505"})

	err := s.CreateCatalogEntry(context.Background(), types.KindUnit, &types.CatalogEntry{Name: "mg/dL"})
	assert.True(t, types.IsType(err, types.ErrorTypeConflict))
}

func TestStore_CreateCatalogEntry_TargetsKindTable(t *testing.T) {
	s, mock, cleanup := setupTestStore(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO instruments").
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &types.CatalogEntry{Name: "Spectrometer X"}
	err := s.CreateCatalogEntry(context.Background(), types.KindInstrument, entry)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
