package timeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Fiore0312/controlli-sub000/internal/domain/values"
)

// Event is a canonical, time-bounded activity record normalized from one data
// source. A merged daily timeline is an ordered sequence of Events.
type Event struct {
	ID          uuid.UUID               `json:"id"`
	Source      Source                  `json:"source"`
	Kind        Kind                    `json:"kind"`
	Start       time.Time               `json:"start"`
	End         *time.Time              `json:"end,omitempty"`
	Client      string                  `json:"client,omitempty"`
	Description string                  `json:"description"`
	Location    LocationType            `json:"location"`
	Confidence  values.Confidence       `json:"confidence"`
	Status      ValidationStatus        `json:"status"`

	// durationMinutes is authoritative only for duration-sourced records
	// (vehicle usage reported in hours without exact timestamps). Everywhere
	// else it is re-derived from Start/End.
	durationMinutes int

	// Supporting lists the sources that corroborated this event during the
	// near-duplicate merge. Used for the cross-source confidence bonus.
	Supporting []Source `json:"supporting_sources,omitempty"`

	// InferenceReason documents why a synthetic event was inserted
	// (travel between clients, lunch break, ...). Empty for observed events.
	InferenceReason string `json:"inference_reason,omitempty"`
}

type Source int

const (
	SourceTicketing Source = iota
	SourceVehicle
	SourceRemoteSession
	SourceCalendar
	SourceTimeClock
	SourceInferred
)

func (s Source) String() string {
	switch s {
	case SourceTicketing:
		return "ticketing"
	case SourceVehicle:
		return "vehicle"
	case SourceRemoteSession:
		return "remote_session"
	case SourceCalendar:
		return "calendar"
	case SourceTimeClock:
		return "time_clock"
	case SourceInferred:
		return "inferred"
	default:
		return "unknown"
	}
}

// BaseConfidence is the source-specific trust assigned before scoring bonuses.
// Ticketing is the primary system of record.
func (s Source) BaseConfidence() values.Confidence {
	switch s {
	case SourceTicketing:
		return 95
	case SourceRemoteSession:
		return 90
	case SourceVehicle, SourceTimeClock:
		return 85
	case SourceCalendar:
		return 80
	default:
		return 50
	}
}

type Kind int

const (
	KindActivity Kind = iota
	KindTravel
	KindSession
	KindBreak
)

func (k Kind) String() string {
	switch k {
	case KindActivity:
		return "activity"
	case KindTravel:
		return "travel"
	case KindSession:
		return "session"
	case KindBreak:
		return "break"
	default:
		return "unknown"
	}
}

type LocationType int

const (
	LocationOnsite LocationType = iota
	LocationRemote
	LocationTravel
	LocationOffice
)

func (l LocationType) String() string {
	switch l {
	case LocationOnsite:
		return "onsite"
	case LocationRemote:
		return "remote"
	case LocationTravel:
		return "travel"
	case LocationOffice:
		return "office"
	default:
		return "unknown"
	}
}

// ParseLocationType maps source-record labels onto the enum. Unrecognized
// labels default to remote, matching how the ticketing export behaves when
// the field is blank.
func ParseLocationType(s string) LocationType {
	switch s {
	case "onsite", "on-site", "on_site":
		return LocationOnsite
	case "travel":
		return LocationTravel
	case "office":
		return LocationOffice
	default:
		return LocationRemote
	}
}

type ValidationStatus int

const (
	StatusPrimary ValidationStatus = iota
	StatusSupporting
	StatusInferred
	StatusCorrected
)

func (v ValidationStatus) String() string {
	switch v {
	case StatusPrimary:
		return "primary"
	case StatusSupporting:
		return "supporting"
	case StatusInferred:
		return "inferred"
	case StatusCorrected:
		return "corrected"
	default:
		return "unknown"
	}
}

// NewEvent creates an Event from explicit start/end timestamps.
func NewEvent(source Source, kind Kind, start time.Time, end *time.Time) (*Event, error) {
	if start.IsZero() {
		return nil, fmt.Errorf("event start time is required")
	}
	if end != nil && end.Before(start) {
		return nil, fmt.Errorf("event end %s before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return &Event{
		ID:         uuid.New(),
		Source:     source,
		Kind:       kind,
		Start:      start,
		End:        end,
		Confidence: source.BaseConfidence(),
		Status:     StatusSupporting,
	}, nil
}

// NewDurationEvent creates an Event whose duration, not its end timestamp, is
// the source of truth. The end is still materialized for interval math.
func NewDurationEvent(source Source, kind Kind, start time.Time, durationMinutes int) (*Event, error) {
	if start.IsZero() {
		return nil, fmt.Errorf("event start time is required")
	}
	if durationMinutes < 0 {
		return nil, fmt.Errorf("event duration cannot be negative: %d", durationMinutes)
	}
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	return &Event{
		ID:              uuid.New(),
		Source:          source,
		Kind:            kind,
		Start:           start,
		End:             &end,
		durationMinutes: durationMinutes,
		Confidence:      source.BaseConfidence(),
		Status:          StatusSupporting,
	}, nil
}

// DurationMinutes returns the event's length in minutes. Derived from
// start/end when both are present, otherwise the stored duration.
func (e *Event) DurationMinutes() int {
	if e.End != nil {
		d := int(e.End.Sub(e.Start).Minutes())
		if d > 0 {
			return d
		}
		return e.durationMinutes
	}
	return e.durationMinutes
}

// EndOrStart returns the end time, falling back to the start for open events.
func (e *Event) EndOrStart() time.Time {
	if e.End != nil {
		return *e.End
	}
	return e.Start
}

// Overlaps reports whether two half-open [start, end) intervals intersect.
// A positive tolerance widens this event's interval, which turns the check
// into "overlapping or within tolerance of each other" for source matching.
// Violation checks use OverlapMinutes against the tolerance instead.
func (e *Event) Overlaps(other *Event, tolerance time.Duration) bool {
	if e.End == nil || other.End == nil {
		return false
	}
	start1 := e.Start.Add(-tolerance)
	end1 := e.End.Add(tolerance)
	return start1.Before(*other.End) && other.Start.Before(end1)
}

// OverlapMinutes returns the size of the intersection of two events.
func (e *Event) OverlapMinutes(other *Event) int {
	if e.End == nil || other.End == nil {
		return 0
	}
	start := e.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := *e.End
	if other.End.Before(end) {
		end = *other.End
	}
	if !start.Before(end) {
		return 0
	}
	return int(end.Sub(start).Minutes())
}

// GapMinutes returns the minutes between this event's end and the next
// event's start. Negative when they overlap.
func (e *Event) GapMinutes(next *Event) int {
	return int(next.Start.Sub(e.EndOrStart()).Minutes())
}

// Corroborate records another source confirming this event.
func (e *Event) Corroborate(source Source) {
	for _, s := range e.Supporting {
		if s == source {
			return
		}
	}
	e.Supporting = append(e.Supporting, source)
}

// MarkCorrected flags the event as auto-corrected and floors its confidence.
func (e *Event) MarkCorrected(reason string) {
	e.Status = StatusCorrected
	e.InferenceReason = reason
	if e.Confidence > 60 {
		e.Confidence = 60
	}
}
