package moderation

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/luisjglz/evaluat/pkg/database"
	"github.com/luisjglz/evaluat/pkg/interfaces"
	"github.com/luisjglz/evaluat/pkg/logger"
	"github.com/luisjglz/evaluat/pkg/types"
)

// uniqueViolation is the PostgreSQL error code for unique_violation
const uniqueViolation = "23505"

// kindTables maps a property kind to its catalog table. The four
// catalogs are structurally identical.
var kindTables = map[types.PropertyKind]string{
	types.KindInstrument: "instruments",
	types.KindMethod:     "methods",
	types.KindReagent:    "reagents",
	types.KindUnit:       "units",
}

// queryer abstracts *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Repository implements the ModerationRepository interface on Postgres
type Repository struct {
	store
	db *database.DB
}

// store implements ModerationStore against a queryer
type store struct {
	q      queryer
	logger *logger.Logger
}

// NewRepository creates a new moderation repository
func NewRepository(db *database.DB, log *logger.Logger) interfaces.ModerationRepository {
	return &Repository{
		store: store{q: db.DB, logger: log},
		db:    db,
	}
}

// Transact runs fn inside one transaction, committing on nil and
// rolling back on error.
func (r *Repository) Transact(ctx context.Context, fn func(s interfaces.ModerationStore) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&store{q: tx, logger: r.logger}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.WithError(rbErr).Error("Failed to roll back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const proposalColumns = `
	id, kind, value, description, status, proposed_by, moderation_nonce, resolved_by, resolved_at, created_at, updated_at`

// CreateProposal inserts a new pending proposal
func (s *store) CreateProposal(ctx context.Context, p *types.Proposal) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	query := `
		INSERT INTO proposals (id, kind, value, description, status, proposed_by, moderation_nonce)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.q.ExecContext(ctx, query,
		p.ID,
		string(p.Kind),
		p.Value,
		p.Description,
		p.Status,
		p.ProposedBy,
		p.ModerationNonce,
	)
	if err != nil {
		s.logger.WithError(err).Error("Failed to create proposal")
		return fmt.Errorf("failed to create proposal: %w", err)
	}
	return nil
}

// GetProposal retrieves a proposal by ID
func (s *store) GetProposal(ctx context.Context, id string) (*types.Proposal, error) {
	query := `SELECT` + proposalColumns + ` FROM proposals WHERE id = $1`
	return s.scanProposal(s.q.QueryRowContext(ctx, query, id), id)
}

// LockProposal retrieves a proposal under FOR UPDATE. Resolution
// re-checks status and nonce after this lock is held.
func (s *store) LockProposal(ctx context.Context, id string) (*types.Proposal, error) {
	query := `SELECT` + proposalColumns + ` FROM proposals WHERE id = $1 FOR UPDATE`
	return s.scanProposal(s.q.QueryRowContext(ctx, query, id), id)
}

func (s *store) scanProposal(row *sql.Row, id string) (*types.Proposal, error) {
	p := &types.Proposal{}
	var description, nonce, resolvedBy sql.NullString
	var resolvedAt sql.NullTime
	var kind string

	err := row.Scan(
		&p.ID,
		&kind,
		&p.Value,
		&description,
		&p.Status,
		&p.ProposedBy,
		&nonce,
		&resolvedBy,
		&resolvedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("proposal not found: %s", id))
		}
		s.logger.WithProposal(id).WithError(err).Error("Failed to get proposal")
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}

	p.Kind = types.PropertyKind(kind)
	if description.Valid {
		p.Description = description.String
	}
	if nonce.Valid {
		n := nonce.String
		p.ModerationNonce = &n
	}
	if resolvedBy.Valid {
		rb := resolvedBy.String
		p.ResolvedBy = &rb
	}
	if resolvedAt.Valid {
		ra := resolvedAt.Time
		p.ResolvedAt = &ra
	}
	return p, nil
}

// ListProposals retrieves proposals, optionally filtered by status
func (s *store) ListProposals(ctx context.Context, status *types.ProposalStatus) ([]*types.Proposal, error) {
	query := `SELECT` + proposalColumns + ` FROM proposals`
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list proposals")
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	var proposals []*types.Proposal
	for rows.Next() {
		p := &types.Proposal{}
		var description, nonce, resolvedBy sql.NullString
		var resolvedAt sql.NullTime
		var kind string

		err := rows.Scan(
			&p.ID,
			&kind,
			&p.Value,
			&description,
			&p.Status,
			&p.ProposedBy,
			&nonce,
			&resolvedBy,
			&resolvedAt,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}

		p.Kind = types.PropertyKind(kind)
		if description.Valid {
			p.Description = description.String
		}
		if nonce.Valid {
			n := nonce.String
			p.ModerationNonce = &n
		}
		if resolvedBy.Valid {
			rb := resolvedBy.String
			p.ResolvedBy = &rb
		}
		if resolvedAt.Valid {
			ra := resolvedAt.Time
			p.ResolvedAt = &ra
		}
		proposals = append(proposals, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating proposals: %w", err)
	}
	return proposals, nil
}

// ResolveProposal atomically sets the terminal status and the audit
// fields and clears the moderation nonce. Callers hold the row lock
// and have re-checked status and nonce before issuing this write.
func (s *store) ResolveProposal(ctx context.Context, id string, status types.ProposalStatus, resolvedBy string) error {
	query := `
		UPDATE proposals
		SET status = $1, resolved_by = $2, resolved_at = NOW(), moderation_nonce = NULL, updated_at = NOW()
		WHERE id = $3`

	result, err := s.q.ExecContext(ctx, query, status, resolvedBy, id)
	if err != nil {
		s.logger.WithProposal(id).WithError(err).Error("Failed to resolve proposal")
		return fmt.Errorf("failed to resolve proposal: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("proposal not found: %s", id))
	}
	return nil
}

// FindCatalogEntryByName looks up a catalog entry case-insensitively
func (s *store) FindCatalogEntryByName(ctx context.Context, kind types.PropertyKind, name string) (*types.CatalogEntry, error) {
	table, ok := kindTables[kind]
	if !ok {
		return nil, types.NewValidationError(types.ErrCodeUnknownKind, "unknown property kind", nil)
	}

	query := fmt.Sprintf(`SELECT id, name, COALESCE(description, ''), created_at FROM %s WHERE LOWER(name) = LOWER($1)`, table)

	entry := &types.CatalogEntry{}
	err := s.q.QueryRowContext(ctx, query, name).Scan(
		&entry.ID,
		&entry.Name,
		&entry.Description,
		&entry.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("catalog entry not found: %s", name))
		}
		s.logger.WithError(err).Error("Failed to find catalog entry")
		return nil, fmt.Errorf("failed to find catalog entry: %w", err)
	}
	return entry, nil
}

// CreateCatalogEntry inserts a catalog entry. The unique lower(name)
// index turns a concurrent duplicate into a conflict error.
func (s *store) CreateCatalogEntry(ctx context.Context, kind types.PropertyKind, entry *types.CatalogEntry) error {
	table, ok := kindTables[kind]
	if !ok {
		return types.NewValidationError(types.ErrCodeUnknownKind, "unknown property kind", nil)
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, name, description) VALUES ($1, $2, $3)`, table)

	_, err := s.q.ExecContext(ctx, query, entry.ID, entry.Name, entry.Description)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return types.NewConflictError(types.ErrCodeAlreadyExists, "catalog entry already exists", err)
		}
		s.logger.WithError(err).Error("Failed to create catalog entry")
		return fmt.Errorf("failed to create catalog entry: %w", err)
	}
	return nil
}
