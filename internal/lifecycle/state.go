package lifecycle

import (
	"context"
	"time"

	"github.com/luisjglz/evaluat/pkg/interfaces"
	"github.com/luisjglz/evaluat/pkg/logger"
	"github.com/luisjglz/evaluat/pkg/monitoring"
	"github.com/luisjglz/evaluat/pkg/types"
)

// IsPeriodComplete reports whether every configured test of the
// laboratory has a captured value for the period. An unconfigured
// laboratory is never complete, which keeps empty laboratories from
// advancing spuriously. Cost is two count queries regardless of how
// many tests are configured.
func IsPeriodComplete(ctx context.Context, store interfaces.LifecycleStore, labID string, period time.Time) (bool, error) {
	configured, err := store.CountConfiguredTests(ctx, labID)
	if err != nil {
		return false, err
	}
	if configured == 0 {
		return false, nil
	}

	captured, err := store.CountCapturedForPeriod(ctx, labID, period)
	if err != nil {
		return false, err
	}
	return captured >= configured, nil
}

// Advance applies the automatic lifecycle transitions that are due
// today, persisting each one immediately, and returns the updated
// laboratory. It must run with the laboratory row locked inside the
// caller's transaction.
//
// Configuring -> Capturing: fires once the edit window is closed, i.e.
// the month-day is past the edit deadline and no edit override holds
// the window open. An active override suppresses the transition
// regardless of the day count.
//
// Capturing -> Reviewing: fires only when the capture window is closed
// AND the period is complete. Completeness alone does not close a
// period an override still permits entries for; a closed window alone
// leaves an incomplete laboratory parked in Capturing.
//
// Reviewing is terminal for automation. Re-invoking Advance when no
// transition applies is a no-op, so redundant and concurrent calls are
// safe: each transition re-checks its own precondition before writing.
func Advance(ctx context.Context, store interfaces.LifecycleStore, log *logger.Logger, lab *types.Laboratory, today, period time.Time) (*types.Laboratory, error) {
	if lab.State == types.StateConfiguring && !EditWindowOpen(lab, today) {
		if err := store.UpdateLaboratoryState(ctx, lab.ID, types.StateCapturing); err != nil {
			return nil, err
		}
		log.StateTransition(lab.ID, int(lab.State), int(types.StateCapturing), "edit_window_closed")
		monitoring.RecordStateTransition(lab.State.String(), types.StateCapturing.String())
		lab.State = types.StateCapturing
	}

	if lab.State == types.StateCapturing && !CaptureWindowOpen(lab, today) {
		complete, err := IsPeriodComplete(ctx, store, lab.ID, period)
		if err != nil {
			return nil, err
		}
		if complete {
			if err := store.UpdateLaboratoryState(ctx, lab.ID, types.StateReviewing); err != nil {
				return nil, err
			}
			log.StateTransition(lab.ID, int(lab.State), int(types.StateReviewing), "period_complete")
			monitoring.RecordStateTransition(lab.State.String(), types.StateReviewing.String())
			lab.State = types.StateReviewing
		}
	}

	return lab, nil
}
