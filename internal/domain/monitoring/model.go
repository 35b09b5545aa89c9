package monitoring

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState is returned for state filters other than stable or risk.
	ErrInvalidState = errors.New("invalid state")
)

// State is the patient's monitoring state.
type State string

const (
	StateStable State = "stable"
	StateRisk   State = "risk"
)

// Dashboard colors keyed by state.
const (
	ThemeStable = "hsl(178 100% 25%)"
	ThemeRisk   = "hsl(43 96% 56%)"
)

func ParseState(s string) (State, error) {
	switch State(s) {
	case StateStable, StateRisk:
		return State(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
}

// Toggle returns the other state. Sync flips unconditionally.
func (s State) Toggle() State {
	if s == StateRisk {
		return StateStable
	}
	return StateRisk
}

func (s State) ThemeColor() string {
	if s == StateRisk {
		return ThemeRisk
	}
	return ThemeStable
}

// Period types for metric samples and summaries.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
)

type Patient struct {
	ID                    uuid.UUID `json:"id" yaml:"-"`
	Name                  string    `json:"name" yaml:"name"`
	Age                   int       `json:"age" yaml:"age"`
	Address               string    `json:"address" yaml:"address"`
	DeviceName            string    `json:"device_name" yaml:"device_name"`
	DeviceStatus          string    `json:"device_status" yaml:"device_status"`
	DeviceBattery         string    `json:"device_battery" yaml:"device_battery"`
	CaregiverName         string    `json:"caregiver_name" yaml:"caregiver_name"`
	CaregiverRelationship string    `json:"caregiver_relationship" yaml:"caregiver_relationship"`
	CaregiverPhone        string    `json:"caregiver_phone" yaml:"caregiver_phone"`
	CaregiverEmail        string    `json:"caregiver_email" yaml:"caregiver_email"`
	CurrentState          State     `json:"current_state" yaml:"current_state"`
}

// VitalsSnapshot is the fixed reading shown while the patient is in State.
// Only LastUpdated on the risk snapshot ever changes.
type VitalsSnapshot struct {
	ID             uuid.UUID  `json:"id" yaml:"-"`
	PatientID      uuid.UUID  `json:"patient_id" yaml:"-"`
	State          State      `json:"state" yaml:"state"`
	HR             int        `json:"hr" yaml:"hr"`
	SleepHours     float64    `json:"sleep_hours" yaml:"sleep_hours"`
	Steps          int        `json:"steps" yaml:"steps"`
	Fatigue        string     `json:"fatigue" yaml:"fatigue"`
	StabilityScore int        `json:"stability_score" yaml:"stability_score"`
	Status         string     `json:"status" yaml:"status"`
	BPSys          int        `json:"bp_sys" yaml:"bp_sys"`
	BPDia          int        `json:"bp_dia" yaml:"bp_dia"`
	RestingHR      int        `json:"resting_hr" yaml:"resting_hr"`
	ActivityMin    int        `json:"activity_min" yaml:"activity_min"`
	LastUpdated    *time.Time `json:"last_updated" yaml:"last_updated"`
}

type TrendPoint struct {
	Name      string `json:"name" yaml:"name"`
	Score     int    `json:"score" yaml:"score"`
	SortOrder int    `json:"-" yaml:"-"`
}

type MetricSample struct {
	ID          uuid.UUID `json:"id" yaml:"-"`
	PatientID   uuid.UUID `json:"patient_id" yaml:"-"`
	PeriodType  string    `json:"period_type" yaml:"-"`
	Label       string    `json:"label" yaml:"label"`
	SortOrder   int       `json:"-" yaml:"-"`
	HR          int       `json:"hr" yaml:"hr"`
	RestingHR   int       `json:"resting_hr" yaml:"resting_hr"`
	BPSys       int       `json:"bp_sys" yaml:"bp_sys"`
	BPDia       int       `json:"bp_dia" yaml:"bp_dia"`
	Steps       int       `json:"steps" yaml:"steps"`
	Sleep       float64   `json:"sleep" yaml:"sleep"`
	ActivityMin int       `json:"activity_min" yaml:"activity_min"`
}

// PeriodSummary aggregates the samples of one period.
type PeriodSummary struct {
	HRCurrent     int     `json:"hr_current" yaml:"hr_current"`
	HRResting     int     `json:"hr_resting" yaml:"hr_resting"`
	HRBaseline    int     `json:"hr_baseline" yaml:"hr_baseline"`
	SleepTotal    float64 `json:"sleep_total" yaml:"sleep_total"`
	SleepBaseline float64 `json:"sleep_baseline" yaml:"sleep_baseline"`
	Steps         int64   `json:"steps" yaml:"steps"`
	StepChange    int     `json:"step_change" yaml:"step_change"`
	BPSys         int     `json:"bp_sys" yaml:"bp_sys"`
	BPDia         int     `json:"bp_dia" yaml:"bp_dia"`
	ActivityMin   int     `json:"activity_min" yaml:"activity_min"`
}

// Insight is one entry of the append-only insight log. The newest entry for
// a (patient, state) pair is the current insight.
type Insight struct {
	ID        uuid.UUID `json:"id" yaml:"-"`
	PatientID uuid.UUID `json:"patient_id" yaml:"-"`
	Text      string    `json:"insight_text" yaml:"text"`
	State     State     `json:"state" yaml:"state"`
	Source    string    `json:"source" yaml:"-"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// VitalsView is the dashboard payload for the current state.
type VitalsView struct {
	VitalsSnapshot
	Insight    string `json:"insight"`
	ThemeColor string `json:"theme_color"`
}

// SyncView is returned by a state toggle and also carries the new trend.
type SyncView struct {
	VitalsView
	Trend []TrendPoint `json:"trend"`
}

type Stats struct {
	RiskEventsPrevented int    `json:"risk_events_prevented"`
	AvgEarlyDetection   string `json:"avg_early_detection"`
	ActiveCaregivers    int    `json:"active_caregivers"`
}
