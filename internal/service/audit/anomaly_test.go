package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fiore0312/controlli-sub000/internal/domain/analysis"
	"github.com/Fiore0312/controlli-sub000/internal/domain/finding"
	"github.com/Fiore0312/controlli-sub000/internal/domain/timeline"
)

func dayAt(date time.Time, events ...*timeline.Event) *analysis.DailyAnalysis {
	a := analysis.New(uuid.New(), "Mario Rossi", date)
	a.Events = events
	total := 0
	for _, e := range events {
		total += e.DurationMinutes()
	}
	a.CoveragePercent = float64(total) / 480 * 100
	if a.CoveragePercent > 100 {
		a.CoveragePercent = 100
	}
	return a
}

func activityAt(date time.Time, startHour, startMin, durMinutes int, client string, loc timeline.LocationType) *timeline.Event {
	start := time.Date(date.Year(), date.Month(), date.Day(), startHour, startMin, 0, 0, time.UTC)
	end := start.Add(time.Duration(durMinutes) * time.Minute)
	e, err := timeline.NewEvent(timeline.SourceTicketing, timeline.KindActivity, start, &end)
	if err != nil {
		panic(err)
	}
	e.Client = client
	e.Location = loc
	return e
}

func breakAt(date time.Time, startHour, durMinutes int) *timeline.Event {
	start := time.Date(date.Year(), date.Month(), date.Day(), startHour, 0, 0, 0, time.UTC)
	end := start.Add(time.Duration(durMinutes) * time.Minute)
	e, err := timeline.NewEvent(timeline.SourceInferred, timeline.KindBreak, start, &end)
	if err != nil {
		panic(err)
	}
	return e
}

func newScorer() *AnomalyScorer {
	return NewAnomalyScorer(DefaultAnomalyConfig(), timeline.DefaultConfig())
}

func TestScoreEmptyHistoryProducesNoPatternFindings(t *testing.T) {
	// Three days of history is the minimum; with none, every
	// history-driven rule is suppressed.
	current := dayAt(testDay, activityAt(testDay, 11, 0, 60, "ClientA", timeline.LocationOnsite))

	findings, risk := newScorer().Score(current, nil, nil)
	assert.Empty(t, findingsByType(findings, "systematic_late_start"))
	assert.Empty(t, findingsByType(findings, "client_duration_deviation"))
	assert.Equal(t, 0.0, risk)
}

func TestScoreSystematicLateStart(t *testing.T) {
	var history []*analysis.DailyAnalysis
	for i := 5; i >= 1; i-- {
		d := testDay.AddDate(0, 0, -i)
		history = append(history, dayAt(d, activityAt(d, 10, 30, 120, "ClientA", timeline.LocationOnsite)))
	}
	current := dayAt(testDay, activityAt(testDay, 10, 45, 120, "ClientA", timeline.LocationOnsite))

	findings, risk := newScorer().Score(current, nil, history)

	late := findingsByType(findings, "systematic_late_start")
	require.Len(t, late, 1)
	assert.Equal(t, finding.CategoryBehavioral, late[0].Category)
	assert.Equal(t, finding.OriginScorer, late[0].Origin)
	assert.Greater(t, risk, 0.0)

	ev, ok := late[0].Evidence.(finding.RecurringPatternEvidence)
	require.True(t, ok)
	assert.Equal(t, 6, ev.Occurrences)
}

func TestScoreFrequentLongBreaks(t *testing.T) {
	var history []*analysis.DailyAnalysis
	for i := 4; i >= 1; i-- {
		d := testDay.AddDate(0, 0, -i)
		history = append(history, dayAt(d,
			activityAt(d, 9, 0, 120, "ClientA", timeline.LocationOnsite),
			breakAt(d, 12, 100)))
	}
	current := dayAt(testDay, activityAt(testDay, 9, 0, 120, "ClientA", timeline.LocationOnsite))

	findings, _ := newScorer().Score(current, nil, history)
	require.Len(t, findingsByType(findings, "frequent_long_breaks"), 1)
}

func TestScoreWeekendActivity(t *testing.T) {
	sat := time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)
	sun := sat.AddDate(0, 0, 1)
	history := []*analysis.DailyAnalysis{
		dayAt(sat, activityAt(sat, 10, 0, 60, "ClientA", timeline.LocationOnsite)),
		dayAt(sun, activityAt(sun, 10, 0, 60, "ClientA", timeline.LocationOnsite)),
	}
	current := dayAt(testDay, activityAt(testDay, 9, 0, 60, "ClientA", timeline.LocationOnsite))

	findings, _ := newScorer().Score(current, nil, history)
	weekend := findingsByType(findings, "weekend_activity")
	require.Len(t, weekend, 1)
	assert.Equal(t, finding.SeverityLow, weekend[0].Severity)
}

func TestScoreImpossibleTravel(t *testing.T) {
	cfg := timeline.DefaultConfig()
	cfg.DistancesKm = map[string]float64{"ClientB": 30} // needs 60 minutes
	scorer := NewAnomalyScorer(DefaultAnomalyConfig(), cfg)

	current := dayAt(testDay,
		activityAt(testDay, 9, 0, 60, "ClientA", timeline.LocationOnsite),
		activityAt(testDay, 10, 10, 60, "ClientB", timeline.LocationOnsite))

	findings, _ := scorer.Score(current, nil, nil)
	travel := findingsByType(findings, "impossible_travel")
	require.Len(t, travel, 1)
	assert.Equal(t, finding.CategoryTemporal, travel[0].Category)
	assert.True(t, travel[0].RequiresReview)

	ev, ok := travel[0].Evidence.(finding.ImpossibleTravelEvidence)
	require.True(t, ok)
	assert.Equal(t, 10, ev.GapMinutes)
	assert.Equal(t, 60, ev.RequiredMinutes)
}

func TestScoreRecurringOverlaps(t *testing.T) {
	overlapFinding := func() *finding.Finding {
		return finding.New(finding.OriginValidator, "overlapping_events",
			finding.CategoryOverlap, finding.SeverityHigh, finding.StatusFailed, "overlap")
	}
	var history []*analysis.DailyAnalysis
	for i := 3; i >= 1; i-- {
		d := testDay.AddDate(0, 0, -i)
		day := dayAt(d, activityAt(d, 9, 0, 60, "ClientA", timeline.LocationOnsite))
		day.Findings = []*finding.Finding{overlapFinding()}
		history = append(history, day)
	}
	current := dayAt(testDay, activityAt(testDay, 9, 0, 60, "ClientA", timeline.LocationOnsite))

	// Three historical days plus today's validator output reach the
	// recurrence threshold.
	findings, _ := newScorer().Score(current, []*finding.Finding{overlapFinding()}, history)
	recurring := findingsByType(findings, "recurring_overlaps")
	require.Len(t, recurring, 1)

	ev, ok := recurring[0].Evidence.(finding.RecurringPatternEvidence)
	require.True(t, ok)
	assert.Equal(t, 4, ev.Occurrences)
}

func TestScoreMicroGapPattern(t *testing.T) {
	events := make([]*timeline.Event, 0, 12)
	for i := 0; i < 12; i++ {
		events = append(events, activityAt(testDay, 8, i*40, 30, "ClientA", timeline.LocationRemote))
	}
	current := dayAt(testDay, events...)

	findings, _ := newScorer().Score(current, nil, nil)
	require.Len(t, findingsByType(findings, "micro_gap_pattern"), 1)
}

func TestScoreClientDurationDeviation(t *testing.T) {
	var history []*analysis.DailyAnalysis
	durations := []int{58, 60, 62, 60}
	for i, d := range durations {
		date := testDay.AddDate(0, 0, -(len(durations) - i))
		history = append(history, dayAt(date, activityAt(date, 9, 0, d, "ClientA", timeline.LocationOnsite)))
	}
	current := dayAt(testDay, activityAt(testDay, 9, 0, 240, "ClientA", timeline.LocationOnsite))

	findings, _ := newScorer().Score(current, nil, history)
	deviation := findingsByType(findings, "client_duration_deviation")
	require.Len(t, deviation, 1)

	ev, ok := deviation[0].Evidence.(finding.ClientDeviationEvidence)
	require.True(t, ok)
	assert.Equal(t, "ClientA", ev.Client)
	assert.Equal(t, 240, ev.ActualMinutes)
	assert.Greater(t, ev.DeviationRatio, 2.0)
}

func TestScoreDecliningEfficiency(t *testing.T) {
	var history []*analysis.DailyAnalysis
	// Four weeks of coverage sliding from 90% down to 30%.
	coverages := []float64{90, 70, 50, 30}
	for week, cov := range coverages {
		for d := 0; d < 5; d++ {
			date := testDay.AddDate(0, 0, -(len(coverages)-week)*7+d)
			day := dayAt(date, activityAt(date, 9, 0, int(cov/100*480), "ClientA", timeline.LocationOnsite))
			day.CoveragePercent = cov
			history = append(history, day)
		}
	}
	current := dayAt(testDay, activityAt(testDay, 9, 0, 120, "ClientA", timeline.LocationOnsite))
	current.CoveragePercent = 25

	findings, _ := newScorer().Score(current, nil, history)
	require.Len(t, findingsByType(findings, "declining_efficiency"), 1)
}

func TestScoreReportingIncoherence(t *testing.T) {
	// Most of the reconstructed day comes from sessions, not from reported
	// ticketing activity.
	session := func(startHour, dur int) *timeline.Event {
		start := time.Date(2025, 3, 10, startHour, 0, 0, 0, time.UTC)
		e, err := timeline.NewDurationEvent(timeline.SourceRemoteSession, timeline.KindSession, start, dur)
		if err != nil {
			panic(err)
		}
		return e
	}
	current := dayAt(testDay,
		activityAt(testDay, 9, 0, 60, "ClientA", timeline.LocationRemote),
		session(10, 120), session(13, 120))

	findings, _ := newScorer().Score(current, nil, nil)
	incoherence := findingsByType(findings, "reporting_incoherence")
	require.Len(t, incoherence, 1)
	assert.Equal(t, finding.CategoryProductivity, incoherence[0].Category)
}

func TestRiskScore(t *testing.T) {
	t.Run("zero findings means zero risk", func(t *testing.T) {
		assert.Equal(t, 0.0, RiskScore(nil))
	})

	t.Run("average plus volume surcharge", func(t *testing.T) {
		findings := []*finding.Finding{
			finding.New(finding.OriginScorer, "a", finding.CategoryTemporal, finding.SeverityHigh, finding.StatusWarning, "d"),
			finding.New(finding.OriginScorer, "b", finding.CategoryBehavioral, finding.SeverityMedium, finding.StatusWarning, "d"),
		}
		// Composites: 80*0.6+75*0.4=78 and 60*0.6+75*0.4=66; average 72
		// plus 2 findings * 2 = 4.
		assert.InDelta(t, 76.0, RiskScore(findings), 0.001)
	})

	t.Run("clamped to 100", func(t *testing.T) {
		var findings []*finding.Finding
		for i := 0; i < 15; i++ {
			f := finding.New(finding.OriginScorer, "x", finding.CategoryTemporal, finding.SeverityCritical, finding.StatusWarning, "d")
			f.Confidence = 100
			findings = append(findings, f)
		}
		assert.Equal(t, 100.0, RiskScore(findings))
	})

	t.Run("disabled categories emit nothing", func(t *testing.T) {
		cfg := DefaultAnomalyConfig()
		cfg.Temporal = false
		scorer := NewAnomalyScorer(cfg, timeline.DefaultConfig())

		current := dayAt(testDay,
			activityAt(testDay, 9, 0, 60, "ClientA", timeline.LocationOnsite),
			activityAt(testDay, 10, 5, 60, "ClientB", timeline.LocationOnsite))

		findings, _ := scorer.Score(current, nil, nil)
		assert.Empty(t, findingsByType(findings, "impossible_travel"))
	})
}
