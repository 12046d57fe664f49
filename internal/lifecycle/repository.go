package lifecycle

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/luisjglz/evaluat/pkg/database"
	"github.com/luisjglz/evaluat/pkg/interfaces"
	"github.com/luisjglz/evaluat/pkg/logger"
	"github.com/luisjglz/evaluat/pkg/types"
)

// uniqueViolation is the PostgreSQL error code for unique_violation
const uniqueViolation = "23505"

// queryer abstracts *sql.DB and *sql.Tx so every query can run either
// auto-committed or inside the request transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Repository implements the LifecycleRepository interface on Postgres
type Repository struct {
	store
	db *database.DB
}

// store implements LifecycleStore against a queryer
type store struct {
	q      queryer
	logger *logger.Logger
}

// NewRepository creates a new lifecycle repository
func NewRepository(db *database.DB, log *logger.Logger) interfaces.LifecycleRepository {
	return &Repository{
		store: store{q: db.DB, logger: log},
		db:    db,
	}
}

// Transact runs fn inside one transaction, committing on nil and
// rolling back on error.
func (r *Repository) Transact(ctx context.Context, fn func(s interfaces.LifecycleStore) error) error {
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

const laboratoryColumns = `
	id, name, state, contact_email,
	edit_deadline_day, edit_override_active, edit_override_until,
	capture_cutoff_day, capture_override_active, capture_override_until,
	created_at, updated_at`

// GetLaboratory retrieves a laboratory by ID
func (s *store) GetLaboratory(ctx context.Context, id string) (*types.Laboratory, error) {
	query := `SELECT` + laboratoryColumns + ` FROM laboratories WHERE id = $1`
	return s.scanLaboratory(s.q.QueryRowContext(ctx, query, id), id)
}

// LockLaboratory retrieves a laboratory under FOR UPDATE so that a
// state transition and its precondition check are atomic. Only
// meaningful inside a transaction.
func (s *store) LockLaboratory(ctx context.Context, id string) (*types.Laboratory, error) {
	query := `SELECT` + laboratoryColumns + ` FROM laboratories WHERE id = $1 FOR UPDATE`
	return s.scanLaboratory(s.q.QueryRowContext(ctx, query, id), id)
}

func (s *store) scanLaboratory(row *sql.Row, id string) (*types.Laboratory, error) {
	lab := &types.Laboratory{}
	var contactEmail sql.NullString
	var editUntil, captureUntil sql.NullTime

	err := row.Scan(
		&lab.ID,
		&lab.Name,
		&lab.State,
		&contactEmail,
		&lab.EditDeadlineDay,
		&lab.EditOverrideActive,
		&editUntil,
		&lab.CaptureCutoffDay,
		&lab.CaptureOverrideActive,
		&captureUntil,
		&lab.CreatedAt,
		&lab.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("laboratory not found: %s", id))
		}
		s.logger.WithLab(id).WithError(err).Error("Failed to get laboratory")
		return nil, fmt.Errorf("failed to get laboratory: %w", err)
	}

	if contactEmail.Valid {
		lab.ContactEmail = contactEmail.String
	}
	if editUntil.Valid {
		t := editUntil.Time
		lab.EditOverrideUntil = &t
	}
	if captureUntil.Valid {
		t := captureUntil.Time
		lab.CaptureOverrideUntil = &t
	}
	return lab, nil
}

// UpdateLaboratoryState persists a lifecycle state change
func (s *store) UpdateLaboratoryState(ctx context.Context, id string, state types.LifecycleState) error {
	query := `UPDATE laboratories SET state = $1, updated_at = NOW() WHERE id = $2`

	result, err := s.q.ExecContext(ctx, query, state, id)
	if err != nil {
		s.logger.WithLab(id).WithError(err).Error("Failed to update laboratory state")
		return fmt.Errorf("failed to update laboratory state: %w", err)
	}
	return s.requireRow(result, "laboratory", id)
}

// SetEditOverride updates the edit override fields
func (s *store) SetEditOverride(ctx context.Context, id string, active bool, until *time.Time) error {
	query := `UPDATE laboratories SET edit_override_active = $1, edit_override_until = $2, updated_at = NOW() WHERE id = $3`

	result, err := s.q.ExecContext(ctx, query, active, nullTime(until), id)
	if err != nil {
		s.logger.WithLab(id).WithError(err).Error("Failed to set edit override")
		return fmt.Errorf("failed to set edit override: %w", err)
	}
	return s.requireRow(result, "laboratory", id)
}

// SetCaptureOverride updates the capture override fields
func (s *store) SetCaptureOverride(ctx context.Context, id string, active bool, until *time.Time) error {
	query := `UPDATE laboratories SET capture_override_active = $1, capture_override_until = $2, updated_at = NOW() WHERE id = $3`

	result, err := s.q.ExecContext(ctx, query, active, nullTime(until), id)
	if err != nil {
		s.logger.WithLab(id).WithError(err).Error("Failed to set capture override")
		return fmt.Errorf("failed to set capture override: %w", err)
	}
	return s.requireRow(result, "laboratory", id)
}

// CountConfiguredTests counts the distinct tests configured for the
// laboratory.
func (s *store) CountConfiguredTests(ctx context.Context, labID string) (int, error) {
	query := `SELECT COUNT(DISTINCT test_id) FROM test_configurations WHERE laboratory_id = $1`

	var count int
	if err := s.q.QueryRowContext(ctx, query, labID).Scan(&count); err != nil {
		s.logger.WithLab(labID).WithError(err).Error("Failed to count configured tests")
		return 0, fmt.Errorf("failed to count configured tests: %w", err)
	}
	return count, nil
}

// CountCapturedForPeriod counts captured values for the period,
// restricted to configured tests, in a single query.
func (s *store) CountCapturedForPeriod(ctx context.Context, labID string, period time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM captured_values cv
		JOIN test_configurations tc
		  ON tc.laboratory_id = cv.laboratory_id AND tc.test_id = cv.test_id
		WHERE cv.laboratory_id = $1 AND cv.period = $2`

	var count int
	if err := s.q.QueryRowContext(ctx, query, labID, period).Scan(&count); err != nil {
		s.logger.WithLab(labID).WithError(err).Error("Failed to count captured values")
		return 0, fmt.Errorf("failed to count captured values: %w", err)
	}
	return count, nil
}

const configurationColumns = `
	id, laboratory_id, test_id, instrument_id, method_id, reagent_id, unit_id, locked, created_at, updated_at`

// GetConfiguration retrieves the configuration for a (laboratory,
// test) pair.
func (s *store) GetConfiguration(ctx context.Context, labID, testID string) (*types.TestConfiguration, error) {
	query := `SELECT` + configurationColumns + ` FROM test_configurations WHERE laboratory_id = $1 AND test_id = $2`

	cfg := &types.TestConfiguration{}
	err := s.q.QueryRowContext(ctx, query, labID, testID).Scan(
		&cfg.ID,
		&cfg.LaboratoryID,
		&cfg.TestID,
		&cfg.InstrumentID,
		&cfg.MethodID,
		&cfg.ReagentID,
		&cfg.UnitID,
		&cfg.Locked,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("configuration not found for test: %s", testID))
		}
		s.logger.WithLab(labID).WithError(err).Error("Failed to get configuration")
		return nil, fmt.Errorf("failed to get configuration: %w", err)
	}
	return cfg, nil
}

// ListConfigurations retrieves all configurations for a laboratory
func (s *store) ListConfigurations(ctx context.Context, labID string) ([]*types.TestConfiguration, error) {
	query := `SELECT` + configurationColumns + ` FROM test_configurations WHERE laboratory_id = $1 ORDER BY created_at ASC`

	rows, err := s.q.QueryContext(ctx, query, labID)
	if err != nil {
		s.logger.WithLab(labID).WithError(err).Error("Failed to list configurations")
		return nil, fmt.Errorf("failed to list configurations: %w", err)
	}
	defer rows.Close()

	var configs []*types.TestConfiguration
	for rows.Next() {
		cfg := &types.TestConfiguration{}
		err := rows.Scan(
			&cfg.ID,
			&cfg.LaboratoryID,
			&cfg.TestID,
			&cfg.InstrumentID,
			&cfg.MethodID,
			&cfg.ReagentID,
			&cfg.UnitID,
			&cfg.Locked,
			&cfg.CreatedAt,
			&cfg.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan configuration: %w", err)
		}
		configs = append(configs, cfg)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating configurations: %w", err)
	}
	return configs, nil
}

// CreateConfiguration inserts a configuration row. A unique violation
// on (laboratory, test) surfaces as a conflict error the caller treats
// as "already exists".
func (s *store) CreateConfiguration(ctx context.Context, cfg *types.TestConfiguration) error {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}

	query := `
		INSERT INTO test_configurations (
			id, laboratory_id, test_id, instrument_id, method_id, reagent_id, unit_id, locked
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.q.ExecContext(ctx, query,
		cfg.ID,
		cfg.LaboratoryID,
		cfg.TestID,
		cfg.InstrumentID,
		cfg.MethodID,
		cfg.ReagentID,
		cfg.UnitID,
		cfg.Locked,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return types.NewConflictError(types.ErrCodeAlreadyExists, "configuration already exists", err)
		}
		s.logger.WithLab(cfg.LaboratoryID).WithError(err).Error("Failed to create configuration")
		return fmt.Errorf("failed to create configuration: %w", err)
	}
	return nil
}

// UpdateConfiguration updates the selection of an existing row
func (s *store) UpdateConfiguration(ctx context.Context, cfg *types.TestConfiguration) error {
	query := `
		UPDATE test_configurations
		SET instrument_id = $1, method_id = $2, reagent_id = $3, unit_id = $4, updated_at = NOW()
		WHERE id = $5`

	result, err := s.q.ExecContext(ctx, query,
		cfg.InstrumentID,
		cfg.MethodID,
		cfg.ReagentID,
		cfg.UnitID,
		cfg.ID,
	)
	if err != nil {
		s.logger.WithLab(cfg.LaboratoryID).WithError(err).Error("Failed to update configuration")
		return fmt.Errorf("failed to update configuration: %w", err)
	}
	return s.requireRow(result, "configuration", cfg.ID)
}

// SetConfigLock sets the manual lock flag for a configuration row
func (s *store) SetConfigLock(ctx context.Context, labID, testID string, locked bool) error {
	query := `UPDATE test_configurations SET locked = $1, updated_at = NOW() WHERE laboratory_id = $2 AND test_id = $3`

	result, err := s.q.ExecContext(ctx, query, locked, labID, testID)
	if err != nil {
		s.logger.WithLab(labID).WithError(err).Error("Failed to set configuration lock")
		return fmt.Errorf("failed to set configuration lock: %w", err)
	}
	return s.requireRow(result, "configuration", testID)
}

// GetCapturedValue retrieves the value for a (laboratory, test,
// period) key.
func (s *store) GetCapturedValue(ctx context.Context, labID, testID string, period time.Time) (*types.CapturedValue, error) {
	query := `
		SELECT id, laboratory_id, test_id, period, value, created_at, updated_at
		FROM captured_values
		WHERE laboratory_id = $1 AND test_id = $2 AND period = $3`

	value := &types.CapturedValue{}
	err := s.q.QueryRowContext(ctx, query, labID, testID, period).Scan(
		&value.ID,
		&value.LaboratoryID,
		&value.TestID,
		&value.Period,
		&value.Value,
		&value.CreatedAt,
		&value.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("captured value not found for test: %s", testID))
		}
		s.logger.WithLab(labID).WithError(err).Error("Failed to get captured value")
		return nil, fmt.Errorf("failed to get captured value: %w", err)
	}
	return value, nil
}

// CreateCapturedValue inserts a value row. A unique violation on
// (laboratory, test, period) surfaces as a conflict error.
func (s *store) CreateCapturedValue(ctx context.Context, value *types.CapturedValue) error {
	if value.ID == "" {
		value.ID = uuid.New().String()
	}

	query := `
		INSERT INTO captured_values (id, laboratory_id, test_id, period, value)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.q.ExecContext(ctx, query,
		value.ID,
		value.LaboratoryID,
		value.TestID,
		value.Period,
		value.Value,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return types.NewConflictError(types.ErrCodeAlreadyExists, "captured value already exists", err)
		}
		s.logger.WithLab(value.LaboratoryID).WithError(err).Error("Failed to create captured value")
		return fmt.Errorf("failed to create captured value: %w", err)
	}
	return nil
}

// UpdateCapturedValue rewrites the numeric value of an existing row
func (s *store) UpdateCapturedValue(ctx context.Context, id string, value float64) error {
	query := `UPDATE captured_values SET value = $1, updated_at = NOW() WHERE id = $2`

	result, err := s.q.ExecContext(ctx, query, value, id)
	if err != nil {
		s.logger.WithError(err).Error("Failed to update captured value")
		return fmt.Errorf("failed to update captured value: %w", err)
	}
	return s.requireRow(result, "captured value", id)
}

// requireRow converts a zero-row update into a not-found error
func (s *store) requireRow(result sql.Result, entity, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("%s not found: %s", entity, id))
	}
	return nil
}

// nullTime maps an optional date to its SQL representation
func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
