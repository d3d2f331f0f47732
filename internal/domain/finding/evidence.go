package finding

import (
	"time"

	"github.com/google/uuid"
)

// Evidence is the check-specific payload attached to a finding. Each check
// type has its own small struct so the data stays typed end to end; it is
// serialized as JSON for storage and API responses.
type Evidence interface {
	EvidenceKind() string
}

// OverlapEvidence documents two events that occupy the same time.
type OverlapEvidence struct {
	EventA         uuid.UUID `json:"event_a"`
	EventB         uuid.UUID `json:"event_b"`
	ClientA        string    `json:"client_a"`
	ClientB        string    `json:"client_b"`
	OverlapMinutes int       `json:"overlap_minutes"`
}

func (OverlapEvidence) EvidenceKind() string { return "overlap" }

// MissingMatchEvidence documents an event in one source with no counterpart
// in another.
type MissingMatchEvidence struct {
	EventID uuid.UUID `json:"event_id"`
	Client  string    `json:"client"`
	Start   time.Time `json:"start"`
	Minutes int       `json:"minutes"`
	Checked string    `json:"checked_source"`
}

func (MissingMatchEvidence) EvidenceKind() string { return "missing_match" }

// TravelTimeEvidence compares a recorded trip against the distance estimate.
type TravelTimeEvidence struct {
	Destination       string  `json:"destination"`
	DistanceKm        float64 `json:"distance_km"`
	ExpectedMinutes   int     `json:"expected_minutes"`
	ActualMinutes     int     `json:"actual_minutes"`
	DifferenceMinutes int     `json:"difference_minutes"`
}

func (TravelTimeEvidence) EvidenceKind() string { return "travel_time" }

// DurationMismatchEvidence compares reported against observed duration for
// matched events.
type DurationMismatchEvidence struct {
	EventID         uuid.UUID `json:"event_id"`
	Client          string    `json:"client"`
	ReportedMinutes int       `json:"reported_minutes"`
	ObservedMinutes int       `json:"observed_minutes"`
	DeltaPercent    float64   `json:"delta_percent"`
}

func (DurationMismatchEvidence) EvidenceKind() string { return "duration_mismatch" }

// WorkingHoursEvidence documents activity outside the configured workday.
type WorkingHoursEvidence struct {
	EventID      uuid.UUID `json:"event_id"`
	Client       string    `json:"client"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	WorkdayOpen  string    `json:"workday_open"`
	WorkdayClose string    `json:"workday_close"`
}

func (WorkingHoursEvidence) EvidenceKind() string { return "working_hours" }

// TotalHoursEvidence documents a day whose summed activity exceeds the
// plausible maximum.
type TotalHoursEvidence struct {
	TotalMinutes int     `json:"total_minutes"`
	MaxMinutes   int     `json:"max_minutes"`
	TotalHours   float64 `json:"total_hours"`
}

func (TotalHoursEvidence) EvidenceKind() string { return "total_hours" }

// PunchEvidence documents activity outside the clock-in/clock-out bounds.
type PunchEvidence struct {
	EventID  uuid.UUID `json:"event_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	ClockIn  time.Time `json:"clock_in"`
	ClockOut time.Time `json:"clock_out"`
}

func (PunchEvidence) EvidenceKind() string { return "punch_bounds" }

// BreakEvidence documents an unusually long or missing midday break.
type BreakEvidence struct {
	BreakMinutes    int    `json:"break_minutes"`
	ExpectedMinutes int    `json:"expected_minutes"`
	Kind            string `json:"kind"`
}

func (BreakEvidence) EvidenceKind() string { return "break_pattern" }

// ImpossibleTravelEvidence documents back-to-back onsite events whose gap is
// shorter than the minimum travel time between the two clients.
type ImpossibleTravelEvidence struct {
	FromClient      string `json:"from_client"`
	ToClient        string `json:"to_client"`
	GapMinutes      int    `json:"gap_minutes"`
	RequiredMinutes int    `json:"required_minutes"`
}

func (ImpossibleTravelEvidence) EvidenceKind() string { return "impossible_travel" }

// RecurringPatternEvidence documents a behavior observed repeatedly inside
// the history window.
type RecurringPatternEvidence struct {
	Pattern     string      `json:"pattern"`
	Occurrences int         `json:"occurrences"`
	WindowDays  int         `json:"window_days"`
	Dates       []time.Time `json:"dates,omitempty"`
}

func (RecurringPatternEvidence) EvidenceKind() string { return "recurring_pattern" }

// MicroGapEvidence documents many small unexplained gaps in one day.
type MicroGapEvidence struct {
	GapCount     int `json:"gap_count"`
	TotalMinutes int `json:"total_minutes"`
}

func (MicroGapEvidence) EvidenceKind() string { return "micro_gaps" }

// ClientDeviationEvidence documents a visit whose duration deviates sharply
// from the historical average for that client.
type ClientDeviationEvidence struct {
	Client         string  `json:"client"`
	ActualMinutes  int     `json:"actual_minutes"`
	AverageMinutes float64 `json:"average_minutes"`
	DeviationRatio float64 `json:"deviation_ratio"`
	SampleSize     int     `json:"sample_size"`
}

func (ClientDeviationEvidence) EvidenceKind() string { return "client_deviation" }

// ClientFrequencyEvidence documents an unusual visit cadence for a client.
type ClientFrequencyEvidence struct {
	Client          string  `json:"client"`
	VisitsInWindow  int     `json:"visits_in_window"`
	AveragePerWeek  float64 `json:"average_per_week"`
	ObservedPerWeek float64 `json:"observed_per_week"`
}

func (ClientFrequencyEvidence) EvidenceKind() string { return "client_frequency" }

// ProductivityEvidence documents a sustained drop in coverage or quality.
type ProductivityEvidence struct {
	CurrentCoverage float64 `json:"current_coverage"`
	AverageCoverage float64 `json:"average_coverage"`
	WindowDays      int     `json:"window_days"`
}

func (ProductivityEvidence) EvidenceKind() string { return "productivity" }

// CoherenceEvidence documents reported totals that disagree across sources.
type CoherenceEvidence struct {
	SourceTotals map[string]int `json:"source_totals"`
	MaxDeltaMin  int            `json:"max_delta_minutes"`
}

func (CoherenceEvidence) EvidenceKind() string { return "reporting_coherence" }
