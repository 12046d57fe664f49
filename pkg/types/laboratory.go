package types

import "time"

// LifecycleState is the phase of a laboratory's monthly reporting
// cycle. States only ever advance automatically; moving backwards is
// an explicit administrative action.
type LifecycleState int

// Lifecycle states, stored as small integers. The UI labels these
// Configuración, Registro and Consulta.
const (
	StateConfiguring LifecycleState = 1
	StateCapturing   LifecycleState = 2
	StateReviewing   LifecycleState = 3
)

// Valid reports whether the state is one of the three known phases
func (s LifecycleState) Valid() bool {
	return s >= StateConfiguring && s <= StateReviewing
}

// String implements fmt.Stringer
func (s LifecycleState) String() string {
	switch s {
	case StateConfiguring:
		return "configuring"
	case StateCapturing:
		return "capturing"
	case StateReviewing:
		return "reviewing"
	default:
		return "unknown"
	}
}

// Laboratory is a reporting laboratory together with its window
// thresholds and overrides. Override "until" dates are optional: a nil
// date means the override has no expiry.
type Laboratory struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	State        LifecycleState `json:"state"`
	ContactEmail string         `json:"contact_email,omitempty"`

	EditDeadlineDay    int        `json:"edit_deadline_day"`
	EditOverrideActive bool       `json:"edit_override_active"`
	EditOverrideUntil  *time.Time `json:"edit_override_until,omitempty"`

	CaptureCutoffDay      int        `json:"capture_cutoff_day"`
	CaptureOverrideActive bool       `json:"capture_override_active"`
	CaptureOverrideUntil  *time.Time `json:"capture_override_until,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TestConfiguration binds a laboratory to a test with the selected
// instrument, analytical method, reagent and measurement unit. At most
// one configuration exists per (laboratory, test).
type TestConfiguration struct {
	ID           string    `json:"id"`
	LaboratoryID string    `json:"laboratory_id"`
	TestID       string    `json:"test_id"`
	InstrumentID string    `json:"instrument_id"`
	MethodID     string    `json:"method_id"`
	ReagentID    string    `json:"reagent_id"`
	UnitID       string    `json:"unit_id"`
	Locked       bool      `json:"locked"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CapturedValue is one numeric result for a (laboratory, test, period)
// key. Period is always the first day of a calendar month.
type CapturedValue struct {
	ID           string    `json:"id"`
	LaboratoryID string    `json:"laboratory_id"`
	TestID       string    `json:"test_id"`
	Period       time.Time `json:"period"`
	Value        float64   `json:"value"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LifecycleView is the read-model handed to rendering collaborators
type LifecycleView struct {
	LaboratoryID      string         `json:"laboratory_id"`
	State             LifecycleState `json:"state"`
	EditWindowOpen    bool           `json:"edit_window_open"`
	CaptureWindowOpen bool           `json:"capture_window_open"`
	PeriodComplete    bool           `json:"period_complete"`
	Period            time.Time      `json:"period"`
}
