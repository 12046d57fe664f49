package types

import "time"

// CaptureOutcome classifies the result of submitting one value
type CaptureOutcome string

// Capture outcomes. Unchanged means the stored value already equals
// the submitted one and no write was performed.
const (
	CaptureCreated   CaptureOutcome = "created"
	CaptureUpdated   CaptureOutcome = "updated"
	CaptureUnchanged CaptureOutcome = "unchanged"
	CaptureRejected  CaptureOutcome = "rejected"
)

// CaptureResult is the per-field outcome of a capture submission
type CaptureResult struct {
	TestID  string         `json:"test_id"`
	Outcome CaptureOutcome `json:"outcome"`
	Reason  string         `json:"reason,omitempty"`
}

// CaptureField is one raw field of a data-entry batch. RawValue
// accepts a decimal point or comma separator and an optional exponent.
type CaptureField struct {
	TestID   string `json:"test_id"`
	RawValue string `json:"raw_value"`
}

// CaptureBatchResult reports per-field outcomes; the valid subset of a
// batch commits even when other fields are malformed.
type CaptureBatchResult struct {
	LaboratoryID string          `json:"laboratory_id"`
	Period       time.Time       `json:"period"`
	Results      []CaptureResult `json:"results"`
}

// ConfigSelection is the instrument/method/reagent/unit choice a
// laboratory accepts for a test.
type ConfigSelection struct {
	InstrumentID string `json:"instrument_id"`
	MethodID     string `json:"method_id"`
	ReagentID    string `json:"reagent_id"`
	UnitID       string `json:"unit_id"`
}

// Complete reports whether every field of the selection is set
func (s ConfigSelection) Complete() bool {
	return s.InstrumentID != "" && s.MethodID != "" && s.ReagentID != "" && s.UnitID != ""
}
