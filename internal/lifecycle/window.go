package lifecycle

import (
	"time"

	"github.com/luisjglz/evaluat/pkg/types"
)

// Fallback thresholds for laboratories persisted before the day
// columns existed.
const (
	defaultEditDeadlineDay  = 15
	defaultCaptureCutoffDay = 25
)

// EditWindowOpen reports whether the configuration phase is editable
// today: either the month-day has not passed the laboratory's edit
// deadline, or an edit override is in effect. This is the sole source
// of truth for the edit window; no other component re-derives the rule.
func EditWindowOpen(lab *types.Laboratory, today time.Time) bool {
	if lab == nil {
		return false
	}
	deadline := lab.EditDeadlineDay
	if deadline <= 0 {
		deadline = defaultEditDeadlineDay
	}
	return today.Day() <= deadline || editOverrideInEffect(lab, today)
}

// CaptureWindowOpen reports whether data entry is permitted today,
// symmetric to EditWindowOpen using the capture cutoff and override.
func CaptureWindowOpen(lab *types.Laboratory, today time.Time) bool {
	if lab == nil {
		return false
	}
	cutoff := lab.CaptureCutoffDay
	if cutoff <= 0 {
		cutoff = defaultCaptureCutoffDay
	}
	return today.Day() <= cutoff || CaptureOverrideInEffect(lab, today)
}

// editOverrideInEffect: override active and, when bounded, not yet
// past its expiry date. A nil expiry means no expiry.
func editOverrideInEffect(lab *types.Laboratory, today time.Time) bool {
	return lab.EditOverrideActive &&
		(lab.EditOverrideUntil == nil || !today.After(*lab.EditOverrideUntil))
}

// CaptureOverrideInEffect reports whether an in-effect capture
// override currently forces the capture window open. Exported because
// the capture path also consults it to re-admit late entries after the
// laboratory has advanced past Capturing.
func CaptureOverrideInEffect(lab *types.Laboratory, today time.Time) bool {
	return lab.CaptureOverrideActive &&
		(lab.CaptureOverrideUntil == nil || !today.After(*lab.CaptureOverrideUntil))
}

// CanEditConfig decides whether a single configuration row may be
// edited: the edit window must be open and the row must not carry a
// manual lock. A locked row is never editable, whatever the window.
func CanEditConfig(lab *types.Laboratory, cfg *types.TestConfiguration, today time.Time) bool {
	if cfg == nil {
		return false
	}
	return EditWindowOpen(lab, today) && !cfg.Locked
}
