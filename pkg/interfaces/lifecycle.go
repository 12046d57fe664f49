package interfaces

import (
	"context"
	"time"

	"github.com/luisjglz/evaluat/pkg/types"
)

// LifecycleService drives the monthly reporting cycle: it owns state
// advancement, capture submission, configuration acceptance and the
// administrative overrides. Every read re-evaluates advancement; there
// is no background scheduler.
type LifecycleService interface {
	// Read path; advances the laboratory as a side effect
	GetLifecycleView(ctx context.Context, labID string) (*types.LifecycleView, error)

	// Capture path
	SubmitCapture(ctx context.Context, labID, testID string, period time.Time, rawValue string) (*types.CaptureResult, error)
	SubmitCaptures(ctx context.Context, labID string, period time.Time, fields []types.CaptureField) (*types.CaptureBatchResult, error)

	// Configuration path
	AcceptConfiguration(ctx context.Context, labID, testID string, sel types.ConfigSelection) (*types.TestConfiguration, error)
	ListConfigurations(ctx context.Context, labID string) ([]*ConfigView, error)
	SetConfigLock(ctx context.Context, labID, testID string, locked bool) error

	// Administrative overrides; re-evaluated by advancement on next read
	SetEditOverride(ctx context.Context, labID string, active bool, until *time.Time) error
	SetCaptureOverride(ctx context.Context, labID string, active bool, until *time.Time) error
	SetState(ctx context.Context, labID string, state types.LifecycleState, adminID string) error
}

// ConfigView decorates a configuration row with its editability for
// the rendering layer.
type ConfigView struct {
	Config  *types.TestConfiguration `json:"config"`
	CanEdit bool                     `json:"can_edit"`
}

// LifecycleStore is the transaction-scoped persistence surface of the
// lifecycle component. Outside Transact the same operations run
// auto-committed.
type LifecycleStore interface {
	GetLaboratory(ctx context.Context, id string) (*types.Laboratory, error)

	// LockLaboratory reads the laboratory under FOR UPDATE so that a
	// state transition and its precondition check are atomic. Only
	// meaningful inside Transact.
	LockLaboratory(ctx context.Context, id string) (*types.Laboratory, error)

	UpdateLaboratoryState(ctx context.Context, id string, state types.LifecycleState) error
	SetEditOverride(ctx context.Context, id string, active bool, until *time.Time) error
	SetCaptureOverride(ctx context.Context, id string, active bool, until *time.Time) error

	// Completeness inputs: one count of configured tests, one count of
	// period values joined on configured tests.
	CountConfiguredTests(ctx context.Context, labID string) (int, error)
	CountCapturedForPeriod(ctx context.Context, labID string, period time.Time) (int, error)

	GetConfiguration(ctx context.Context, labID, testID string) (*types.TestConfiguration, error)
	ListConfigurations(ctx context.Context, labID string) ([]*types.TestConfiguration, error)
	CreateConfiguration(ctx context.Context, cfg *types.TestConfiguration) error
	UpdateConfiguration(ctx context.Context, cfg *types.TestConfiguration) error
	SetConfigLock(ctx context.Context, labID, testID string, locked bool) error

	GetCapturedValue(ctx context.Context, labID, testID string, period time.Time) (*types.CapturedValue, error)
	CreateCapturedValue(ctx context.Context, value *types.CapturedValue) error
	UpdateCapturedValue(ctx context.Context, id string, value float64) error
}

// LifecycleRepository is the full persistence port: the auto-commit
// store plus the single-transaction boundary every mutating request
// runs inside.
type LifecycleRepository interface {
	LifecycleStore

	// Transact runs fn inside one transaction, committing on nil and
	// rolling back on error.
	Transact(ctx context.Context, fn func(store LifecycleStore) error) error
}
