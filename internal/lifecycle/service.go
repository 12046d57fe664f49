package lifecycle

import (
	"context"
	"time"

	"github.com/luisjglz/evaluat/pkg/clock"
	"github.com/luisjglz/evaluat/pkg/config"
	"github.com/luisjglz/evaluat/pkg/interfaces"
	"github.com/luisjglz/evaluat/pkg/logger"
	"github.com/luisjglz/evaluat/pkg/monitoring"
	"github.com/luisjglz/evaluat/pkg/types"
)

// Service implements the LifecycleService interface
type Service struct {
	config     *config.Config
	logger     *logger.Logger
	repository interfaces.LifecycleRepository
	clock      clock.Clock
}

// New creates a new lifecycle service
func New(cfg *config.Config, log *logger.Logger, repo interfaces.LifecycleRepository, clk clock.Clock) interfaces.LifecycleService {
	return &Service{
		config:     cfg,
		logger:     log,
		repository: repo,
		clock:      clk,
	}
}

// GetLifecycleView returns the laboratory's current phase and window
// flags, advancing the state machine first. Advancement is lazy: it
// happens on reads and capture writes, never on a timer.
func (s *Service) GetLifecycleView(ctx context.Context, labID string) (*types.LifecycleView, error) {
	today := s.clock.Today()
	period := clock.FirstOfMonth(today)

	var view *types.LifecycleView
	err := s.repository.Transact(ctx, func(store interfaces.LifecycleStore) error {
		lab, err := store.LockLaboratory(ctx, labID)
		if err != nil {
			return err
		}
		s.applyWindowDefaults(lab)

		lab, err = Advance(ctx, store, s.logger, lab, today, period)
		if err != nil {
			return err
		}

		complete, err := IsPeriodComplete(ctx, store, lab.ID, period)
		if err != nil {
			return err
		}

		view = &types.LifecycleView{
			LaboratoryID:      lab.ID,
			State:             lab.State,
			EditWindowOpen:    EditWindowOpen(lab, today),
			CaptureWindowOpen: CaptureWindowOpen(lab, today),
			PeriodComplete:    complete,
			Period:            period,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// SubmitCapture submits a single numeric result for a (laboratory,
// test, period) key.
func (s *Service) SubmitCapture(ctx context.Context, labID, testID string, period time.Time, rawValue string) (*types.CaptureResult, error) {
	batch, err := s.SubmitCaptures(ctx, labID, period, []types.CaptureField{{TestID: testID, RawValue: rawValue}})
	if err != nil {
		return nil, err
	}
	return &batch.Results[0], nil
}

// SubmitCaptures submits a data-entry batch. The valid subset commits;
// malformed or rejected fields are reported individually and never
// abort the batch. The state machine is re-evaluated after the writes.
func (s *Service) SubmitCaptures(ctx context.Context, labID string, period time.Time, fields []types.CaptureField) (*types.CaptureBatchResult, error) {
	today := s.clock.Today()
	period = clock.FirstOfMonth(period)

	// Advancement always evaluates the current reporting period. The
	// submitted period only scopes the value reads and writes, so a
	// batch for a past month can never close the running one.
	current := clock.FirstOfMonth(today)

	results := make([]types.CaptureResult, 0, len(fields))
	err := s.repository.Transact(ctx, func(store interfaces.LifecycleStore) error {
		lab, err := store.LockLaboratory(ctx, labID)
		if err != nil {
			return err
		}
		s.applyWindowDefaults(lab)

		lab, err = Advance(ctx, store, s.logger, lab, today, current)
		if err != nil {
			return err
		}

		allowed, reason := captureAllowed(lab, today)
		for _, field := range fields {
			if !allowed {
				results = append(results, types.CaptureResult{
					TestID:  field.TestID,
					Outcome: types.CaptureRejected,
					Reason:  reason,
				})
				continue
			}
			result, err := s.submitField(ctx, store, lab, field, period)
			if err != nil {
				return err
			}
			results = append(results, *result)
		}

		// A capture write can complete the current period; re-evaluate.
		_, err = Advance(ctx, store, s.logger, lab, today, current)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		monitoring.RecordCapture(string(r.Outcome))
	}

	return &types.CaptureBatchResult{
		LaboratoryID: labID,
		Period:       period,
		Results:      results,
	}, nil
}

// submitField writes one field of a batch. Uniqueness violations from
// a concurrent creator are recovered by re-reading the row.
func (s *Service) submitField(ctx context.Context, store interfaces.LifecycleStore, lab *types.Laboratory, field types.CaptureField, period time.Time) (*types.CaptureResult, error) {
	value, err := ParseResultValue(field.RawValue)
	if err != nil {
		return &types.CaptureResult{
			TestID:  field.TestID,
			Outcome: types.CaptureRejected,
			Reason:  err.Error(),
		}, nil
	}

	// Only configured tests accept values
	if _, err := store.GetConfiguration(ctx, lab.ID, field.TestID); err != nil {
		if types.IsType(err, types.ErrorTypeNotFound) {
			return &types.CaptureResult{
				TestID:  field.TestID,
				Outcome: types.CaptureRejected,
				Reason:  "test is not configured for this laboratory",
			}, nil
		}
		return nil, err
	}

	existing, err := store.GetCapturedValue(ctx, lab.ID, field.TestID, period)
	switch {
	case err == nil:
		if existing.Value == value {
			// No-op writes are detected and skipped
			return &types.CaptureResult{TestID: field.TestID, Outcome: types.CaptureUnchanged}, nil
		}
		if err := store.UpdateCapturedValue(ctx, existing.ID, value); err != nil {
			return nil, err
		}
		return &types.CaptureResult{TestID: field.TestID, Outcome: types.CaptureUpdated}, nil

	case types.IsType(err, types.ErrorTypeNotFound):
		createErr := store.CreateCapturedValue(ctx, &types.CapturedValue{
			LaboratoryID: lab.ID,
			TestID:       field.TestID,
			Period:       period,
			Value:        value,
		})
		if createErr == nil {
			return &types.CaptureResult{TestID: field.TestID, Outcome: types.CaptureCreated}, nil
		}
		if !types.IsType(createErr, types.ErrorTypeConflict) {
			return nil, createErr
		}
		// Lost the race to a concurrent creator: the row exists now
		current, err := store.GetCapturedValue(ctx, lab.ID, field.TestID, period)
		if err != nil {
			return nil, err
		}
		if current.Value == value {
			return &types.CaptureResult{TestID: field.TestID, Outcome: types.CaptureUnchanged}, nil
		}
		if err := store.UpdateCapturedValue(ctx, current.ID, value); err != nil {
			return nil, err
		}
		return &types.CaptureResult{TestID: field.TestID, Outcome: types.CaptureUpdated}, nil

	default:
		return nil, err
	}
}

// AcceptConfiguration creates or updates the unique (laboratory, test)
// configuration with the given selection. Denied when the edit window
// is closed or the row carries a manual lock.
func (s *Service) AcceptConfiguration(ctx context.Context, labID, testID string, sel types.ConfigSelection) (*types.TestConfiguration, error) {
	if !sel.Complete() {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "all selection fields are required to accept a configuration", nil)
	}

	today := s.clock.Today()

	var result *types.TestConfiguration
	err := s.repository.Transact(ctx, func(store interfaces.LifecycleStore) error {
		lab, err := store.LockLaboratory(ctx, labID)
		if err != nil {
			return err
		}
		s.applyWindowDefaults(lab)

		existing, err := store.GetConfiguration(ctx, labID, testID)
		switch {
		case err == nil:
			if !CanEditConfig(lab, existing, today) {
				if existing.Locked {
					return types.NewAuthorizationError(types.ErrCodeConfigLocked, "configuration is locked")
				}
				return types.NewAuthorizationError(types.ErrCodeWindowClosed, "edit window is closed")
			}
			existing.InstrumentID = sel.InstrumentID
			existing.MethodID = sel.MethodID
			existing.ReagentID = sel.ReagentID
			existing.UnitID = sel.UnitID
			if err := store.UpdateConfiguration(ctx, existing); err != nil {
				return err
			}
			result = existing
			return nil

		case types.IsType(err, types.ErrorTypeNotFound):
			if !EditWindowOpen(lab, today) {
				return types.NewAuthorizationError(types.ErrCodeWindowClosed, "edit window is closed")
			}
			cfg := &types.TestConfiguration{
				LaboratoryID: labID,
				TestID:       testID,
				InstrumentID: sel.InstrumentID,
				MethodID:     sel.MethodID,
				ReagentID:    sel.ReagentID,
				UnitID:       sel.UnitID,
			}
			createErr := store.CreateConfiguration(ctx, cfg)
			if createErr == nil {
				result = cfg
				return nil
			}
			if !types.IsType(createErr, types.ErrorTypeConflict) {
				return createErr
			}
			// Concurrent creators converge on the single row
			current, err := store.GetConfiguration(ctx, labID, testID)
			if err != nil {
				return err
			}
			result = current
			return nil

		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithLab(labID).WithField("test_id", testID).Info("Configuration accepted")
	return result, nil
}

// ListConfigurations returns the laboratory's configurations decorated
// with their editability for the rendering layer.
func (s *Service) ListConfigurations(ctx context.Context, labID string) ([]*interfaces.ConfigView, error) {
	today := s.clock.Today()

	lab, err := s.repository.GetLaboratory(ctx, labID)
	if err != nil {
		return nil, err
	}
	s.applyWindowDefaults(lab)

	configs, err := s.repository.ListConfigurations(ctx, labID)
	if err != nil {
		return nil, err
	}

	views := make([]*interfaces.ConfigView, 0, len(configs))
	for _, cfg := range configs {
		views = append(views, &interfaces.ConfigView{
			Config:  cfg,
			CanEdit: CanEditConfig(lab, cfg, today),
		})
	}
	return views, nil
}

// SetConfigLock sets the manual per-row lock flag
func (s *Service) SetConfigLock(ctx context.Context, labID, testID string, locked bool) error {
	if err := s.repository.SetConfigLock(ctx, labID, testID, locked); err != nil {
		return err
	}
	s.logger.WithLab(labID).WithFields(map[string]interface{}{
		"test_id": testID,
		"locked":  locked,
	}).Info("Configuration lock updated")
	return nil
}

// SetEditOverride forces the edit window open, optionally bounded by
// an expiry date. The state machine re-evaluates on the next read.
func (s *Service) SetEditOverride(ctx context.Context, labID string, active bool, until *time.Time) error {
	until = normalizeUntil(until)
	if err := s.repository.SetEditOverride(ctx, labID, active, until); err != nil {
		return err
	}
	s.logger.WithLab(labID).WithField("active", active).Info("Edit override updated")
	return nil
}

// SetCaptureOverride forces the capture window open, optionally
// bounded by an expiry date.
func (s *Service) SetCaptureOverride(ctx context.Context, labID string, active bool, until *time.Time) error {
	until = normalizeUntil(until)
	if err := s.repository.SetCaptureOverride(ctx, labID, active, until); err != nil {
		return err
	}
	s.logger.WithLab(labID).WithField("active", active).Info("Capture override updated")
	return nil
}

// SetState assigns the laboratory state directly. This is the only
// path that moves a laboratory backwards; the machine itself never
// auto-regresses.
func (s *Service) SetState(ctx context.Context, labID string, state types.LifecycleState, adminID string) error {
	if !state.Valid() {
		return types.NewValidationError(types.ErrCodeInvalidInput, "unknown lifecycle state", map[string]interface{}{
			"state": int(state),
		})
	}

	err := s.repository.Transact(ctx, func(store interfaces.LifecycleStore) error {
		lab, err := store.LockLaboratory(ctx, labID)
		if err != nil {
			return err
		}
		if lab.State == state {
			return nil
		}
		return store.UpdateLaboratoryState(ctx, labID, state)
	})
	if err != nil {
		return err
	}

	s.logger.Audit(adminID, "set_state", "laboratory:"+labID, true, map[string]interface{}{
		"state": state.String(),
	})
	return nil
}

// applyWindowDefaults fills missing per-laboratory window thresholds
// from the configured defaults before any window rule is evaluated.
// Laboratories provisioned with explicit day columns are untouched.
func (s *Service) applyWindowDefaults(lab *types.Laboratory) {
	if lab.EditDeadlineDay <= 0 {
		lab.EditDeadlineDay = s.config.Windows.EditDeadlineDay
	}
	if lab.CaptureCutoffDay <= 0 {
		lab.CaptureCutoffDay = s.config.Windows.CaptureCutoffDay
	}
}

// normalizeUntil truncates an override expiry to a date
func normalizeUntil(until *time.Time) *time.Time {
	if until == nil {
		return nil
	}
	d := clock.DateOf(*until)
	return &d
}
