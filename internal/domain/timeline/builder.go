package timeline

import (
	"sort"
	"time"

	"github.com/Fiore0312/controlli-sub000/internal/domain/values"
)

// Config carries the tunables of timeline reconstruction. Zero values are not
// usable; start from DefaultConfig and override.
type Config struct {
	// Workday bounds, minutes from midnight in Location.
	WorkdayStartMinute int
	WorkdayEndMinute   int

	// ExpectedWorkMinutes is the denominator of the coverage metric.
	ExpectedWorkMinutes int

	// OverlapToleranceMinutes is how much two events may intersect before
	// they are treated as contradictory.
	OverlapToleranceMinutes int

	// ProximityWindowMinutes bounds the near-duplicate merge: same-client
	// events from different sources within this gap collapse into one.
	ProximityWindowMinutes int

	// MinSessionMinutes drops remote-session noise below this duration.
	MinSessionMinutes int

	// MaxEventMinutes truncates events that claim more than a full workday.
	MaxEventMinutes int

	// MaxDailyMinutes caps plausible total reported time across a day.
	MaxDailyMinutes int

	// Midday break classification window, minutes from midnight.
	MiddayStartMinute int
	MiddayEndMinute   int

	// Travel estimation: distance table in km by destination substring,
	// converted at MinutesPerKm, falling back to DefaultDistanceKm.
	MinutesPerKm      float64
	DefaultDistanceKm float64
	DistancesKm       map[string]float64

	Location *time.Location
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		WorkdayStartMinute:      9 * 60,
		WorkdayEndMinute:        18 * 60,
		ExpectedWorkMinutes:     8 * 60,
		OverlapToleranceMinutes: 5,
		ProximityWindowMinutes:  10,
		MinSessionMinutes:       15,
		MaxEventMinutes:         8 * 60,
		MaxDailyMinutes:         8 * 60,
		MiddayStartMinute:       12 * 60,
		MiddayEndMinute:         15 * 60,
		MinutesPerKm:            2,
		DefaultDistanceKm:       20,
		DistancesKm:             map[string]float64{},
		Location:                time.UTC,
	}
}

// EstimateTravelMinutes estimates the drive to a destination from the
// distance table. Substring matching mirrors how destinations are written in
// the vehicle log ("Milano - Cliente X").
func (c Config) EstimateTravelMinutes(destination string) int {
	km := c.DefaultDistanceKm
	for name, d := range c.DistancesKm {
		if name != "" && containsFold(destination, name) {
			km = d
			break
		}
	}
	return int(km * c.MinutesPerKm)
}

// Builder reconstructs a coherent daily timeline from multi-source records.
// It is a pure computation: safe to share across goroutines.
type Builder struct {
	cfg Config
}

// BuildResult is the outcome of one reconstruction run.
type BuildResult struct {
	// Events is the merged timeline, ordered by start time. The conflict
	// pass guarantees no two events overlap beyond the tolerance.
	Events []*Event

	// Superseded holds conflict losers, kept as audit evidence only.
	Superseded []*Event

	QualityScore    values.Score
	CoveragePercent float64

	// SkippedRecords counts raw rows dropped during normalization.
	// Malformed rows never abort a run.
	SkippedRecords int

	// Clock punches, when present, bound the observed working day.
	ClockIn  *time.Time
	ClockOut *time.Time
}

// ConfidenceDistribution buckets the merged events by confidence level.
func (r *BuildResult) ConfidenceDistribution() map[string]int {
	dist := map[string]int{"high": 0, "medium": 0, "low": 0}
	for _, e := range r.Events {
		dist[e.Confidence.Level()]++
	}
	return dist
}

// TotalMinutes sums the duration of all merged events.
func (r *BuildResult) TotalMinutes() int {
	total := 0
	for _, e := range r.Events {
		total += e.DurationMinutes()
	}
	return total
}

func NewBuilder(cfg Config) *Builder {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Builder{cfg: cfg}
}

// Build runs the reconstruction pipeline for one technician day:
// normalize, extract, resolve conflicts, merge duplicates, infer gaps,
// validate, score. Empty input yields an empty timeline with score 0.
func (b *Builder) Build(day time.Time, records SourceRecords) *BuildResult {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, b.cfg.Location)

	candidates, skipped := b.extractCandidates(day, records)
	sortEvents(candidates)

	kept, superseded := b.resolveConflicts(candidates)
	merged := b.mergeNearDuplicates(kept)
	merged = b.inferTravel(merged)
	sortEvents(merged)
	merged = b.inferBreaks(merged)
	sortEvents(merged)
	merged, dropped := b.validateCoherence(merged)
	superseded = append(superseded, dropped...)
	b.scoreConfidence(merged)

	result := &BuildResult{
		Events:         merged,
		Superseded:     superseded,
		SkippedRecords: skipped,
	}
	result.ClockIn, result.ClockOut = b.clockBounds(day, records.TimeClock)
	result.QualityScore = b.qualityScore(merged)
	result.CoveragePercent = b.coverage(merged)
	return result
}

func (b *Builder) qualityScore(events []*Event) values.Score {
	if len(events) == 0 {
		return 0
	}
	total := 0
	for _, e := range events {
		total += e.Confidence.Int()
	}
	return values.ClampScore(float64(total) / float64(len(events)))
}

func (b *Builder) coverage(events []*Event) float64 {
	if len(events) == 0 || b.cfg.ExpectedWorkMinutes <= 0 {
		return 0
	}
	total := 0
	for _, e := range events {
		total += e.DurationMinutes()
	}
	pct := float64(total) / float64(b.cfg.ExpectedWorkMinutes) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// validateCoherence re-checks the completed timeline. Events claiming more
// than a workday are truncated and penalized; residual overlaps beyond the
// tolerance, which the conflict pass should have removed, drop the weaker
// event.
func (b *Builder) validateCoherence(events []*Event) (valid, dropped []*Event) {
	valid = make([]*Event, 0, len(events))
	for _, e := range events {
		if e.End != nil && e.End.Before(e.Start) {
			dropped = append(dropped, e)
			continue
		}
		if b.cfg.MaxEventMinutes > 0 && e.DurationMinutes() > b.cfg.MaxEventMinutes {
			end := e.Start.Add(time.Duration(b.cfg.MaxEventMinutes) * time.Minute)
			e.End = &end
			e.MarkCorrected("duration_truncated")
		}
		conflict := false
		for _, prev := range valid {
			if prev.OverlapMinutes(e) > b.cfg.OverlapToleranceMinutes {
				conflict = true
				break
			}
		}
		if conflict {
			dropped = append(dropped, e)
			continue
		}
		valid = append(valid, e)
	}
	return valid, dropped
}

// scoreConfidence applies the final per-event confidence formula: base plus
// primary-source, validation, duration and corroboration bonuses, minus
// inference and correction penalties, clamped to [0,100].
func (b *Builder) scoreConfidence(events []*Event) {
	for _, e := range events {
		score := e.Confidence.Int()
		if e.Source == SourceTicketing {
			score += 10
		}
		switch e.Status {
		case StatusInferred:
			score -= 15
		case StatusCorrected:
			score -= 10
		default:
			// Survived coherence validation untouched.
			score += 10
		}
		if e.DurationMinutes() >= 30 {
			score += 5
		}
		score += 5 * len(e.Supporting)
		e.Confidence = values.ClampConfidence(score)

		// A retained observed event is the record for its interval.
		if e.Status == StatusSupporting {
			e.Status = StatusPrimary
		}
	}
}

func (b *Builder) clockBounds(day time.Time, punches []PunchRecord) (in, out *time.Time) {
	for _, p := range punches {
		at, err := parseTimestamp(p.At, b.cfg.Location)
		if err != nil || !sameDay(at, day) {
			continue
		}
		switch p.Direction {
		case "in":
			if in == nil || at.Before(*in) {
				t := at
				in = &t
			}
		case "out":
			if out == nil || at.After(*out) {
				t := at
				out = &t
			}
		}
	}
	return in, out
}

func sortEvents(events []*Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		if events[i].DurationMinutes() != events[j].DurationMinutes() {
			return events[i].DurationMinutes() > events[j].DurationMinutes()
		}
		return events[i].Source < events[j].Source
	})
}

func sameDay(t, day time.Time) bool {
	y1, m1, d1 := t.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
