package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Fiore0312/controlli-sub000/internal/domain/finding"
	"github.com/Fiore0312/controlli-sub000/internal/domain/timeline"
	"github.com/Fiore0312/controlli-sub000/internal/domain/values"
)

// DailyAnalysis is the aggregate root for one technician on one date. It owns
// its events and findings: a re-run replaces both wholesale under the same
// (technician, date) key.
type DailyAnalysis struct {
	ID           uuid.UUID `json:"id"`
	TechnicianID uuid.UUID `json:"technician_id"`
	Technician   string    `json:"technician"`
	Date         time.Time `json:"date"`

	Events     []*timeline.Event  `json:"events"`
	Superseded []*timeline.Event  `json:"superseded,omitempty"`
	Findings   []*finding.Finding `json:"findings"`

	TimelineQuality values.Score `json:"timeline_quality"`
	CoveragePercent float64      `json:"coverage_percent"`
	RiskScore       float64      `json:"risk_score"`
	FinalQuality    values.Score `json:"final_quality"`

	SkippedRecords int        `json:"skipped_records"`
	ClockIn        *time.Time `json:"clock_in,omitempty"`
	ClockOut       *time.Time `json:"clock_out,omitempty"`

	// Minutes between the expected morning/afternoon block start and the
	// first observed activity in that block.
	MorningGapMinutes   int `json:"morning_gap_minutes"`
	AfternoonGapMinutes int `json:"afternoon_gap_minutes"`

	Recommendations []string `json:"recommendations,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a DailyAnalysis shell for a technician and date. The date is
// truncated to midnight in its own location so the storage key is stable.
func New(technicianID uuid.UUID, technician string, date time.Time) *DailyAnalysis {
	now := time.Now().UTC()
	y, m, d := date.Date()
	return &DailyAnalysis{
		ID:           uuid.New(),
		TechnicianID: technicianID,
		Technician:   technician,
		Date:         time.Date(y, m, d, 0, 0, 0, 0, date.Location()),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// AttachTimeline stores the reconciliation result on the aggregate.
func (a *DailyAnalysis) AttachTimeline(res *timeline.BuildResult) {
	a.Events = res.Events
	a.Superseded = res.Superseded
	a.TimelineQuality = res.QualityScore
	a.CoveragePercent = res.CoveragePercent
	a.SkippedRecords = res.SkippedRecords
	a.ClockIn = res.ClockIn
	a.ClockOut = res.ClockOut
	a.UpdatedAt = time.Now().UTC()
}

// AttachFindings stores the consolidated, ranked finding list and the scores
// derived from it.
func (a *DailyAnalysis) AttachFindings(findings []*finding.Finding, riskScore float64, finalQuality values.Score) {
	a.Findings = findings
	a.RiskScore = riskScore
	a.FinalQuality = finalQuality
	a.UpdatedAt = time.Now().UTC()
}

// AttachAssessment stores the block gap metrics and the recommendations
// derived from the consolidated findings.
func (a *DailyAnalysis) AttachAssessment(morningGap, afternoonGap int, recommendations []string) {
	a.MorningGapMinutes = morningGap
	a.AfternoonGapMinutes = afternoonGap
	a.Recommendations = recommendations
	a.UpdatedAt = time.Now().UTC()
}

// FailedCount returns the number of hard-failed validator checks.
func (a *DailyAnalysis) FailedCount() int {
	n := 0
	for _, f := range a.Findings {
		if f.Origin == finding.OriginValidator && f.Status == finding.StatusFailed {
			n++
		}
	}
	return n
}

// FindingsBySeverity counts findings per severity label.
func (a *DailyAnalysis) FindingsBySeverity() map[string]int {
	out := make(map[string]int, 4)
	for _, f := range a.Findings {
		out[f.Severity.String()]++
	}
	return out
}

// TotalMinutes sums the duration of all retained events.
func (a *DailyAnalysis) TotalMinutes() int {
	total := 0
	for _, e := range a.Events {
		total += e.DurationMinutes()
	}
	return total
}

// QualityLevel buckets the final quality score for dashboards.
func (a *DailyAnalysis) QualityLevel() string {
	return a.FinalQuality.QualityLevel()
}

// Repository persists Daily Analyses with replace-on-write semantics: saving
// an analysis for a (technician, date) key that already exists replaces the
// prior row, its events and its findings.
type Repository interface {
	Save(ctx context.Context, a *DailyAnalysis) error
	GetByKey(ctx context.Context, technicianID uuid.UUID, date time.Time) (*DailyAnalysis, error)
	// History returns up to windowDays of prior analyses for the technician,
	// strictly before the given date, ordered oldest first.
	History(ctx context.Context, technicianID uuid.UUID, before time.Time, windowDays int) ([]*DailyAnalysis, error)
	Delete(ctx context.Context, technicianID uuid.UUID, date time.Time) error
}

// TechnicianDirectory resolves technician identity. A technician id with no
// registered name is a hard failure for that unit of work.
type TechnicianDirectory interface {
	Lookup(ctx context.Context, technicianID uuid.UUID) (string, error)
}
