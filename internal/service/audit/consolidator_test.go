package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fiore0312/controlli-sub000/internal/domain/finding"
	"github.com/Fiore0312/controlli-sub000/internal/domain/values"
)

func TestConsolidateRanking(t *testing.T) {
	validator := []*finding.Finding{
		finding.New(finding.OriginValidator, "overlapping_events", finding.CategoryOverlap,
			finding.SeverityHigh, finding.StatusFailed, "overlap"),
		finding.New(finding.OriginValidator, "vehicle_without_calendar", finding.CategoryMissingData,
			finding.SeverityLow, finding.StatusWarning, "no appointment"),
	}
	scorer := []*finding.Finding{
		finding.New(finding.OriginScorer, "recurring_overlaps", finding.CategoryTemporal,
			finding.SeverityCritical, finding.StatusWarning, "recurrence"),
	}

	ranked, final := Consolidate(validator, scorer, values.ClampScore(90), 40)

	require.Len(t, ranked, 3)
	// Critical 100*0.6+75*0.4=90, high 78, low 54.
	assert.Equal(t, "recurring_overlaps", ranked[0].CheckType)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, finding.ImpactCritical, ranked[0].ImpactLevel)
	assert.Equal(t, "overlapping_events", ranked[1].CheckType)
	assert.Equal(t, finding.ImpactHigh, ranked[1].ImpactLevel)
	assert.Equal(t, "vehicle_without_calendar", ranked[2].CheckType)
	assert.Equal(t, finding.ImpactLow, ranked[2].ImpactLevel)

	// 90 - 10 (one failed high check) - 0.3*40 = 68.
	assert.InDelta(t, 68.0, final.Float(), 0.001)
}

func TestConsolidateTieBreakByDetectionOrder(t *testing.T) {
	a := finding.New(finding.OriginValidator, "first", finding.CategoryMissingData,
		finding.SeverityMedium, finding.StatusWarning, "a")
	b := finding.New(finding.OriginValidator, "second", finding.CategoryMissingData,
		finding.SeverityMedium, finding.StatusWarning, "b")

	ranked, _ := Consolidate([]*finding.Finding{a, b}, nil, values.ClampScore(80), 0)
	require.Len(t, ranked, 2)
	assert.Equal(t, "first", ranked[0].CheckType)
	assert.Equal(t, "second", ranked[1].CheckType)
}

func TestConsolidateDeduplicatesAcrossOrigins(t *testing.T) {
	// The validator and the scorer can both flag the same impossible
	// transition; only the stronger one survives.
	ev := finding.ImpossibleTravelEvidence{FromClient: "ClientA", ToClient: "ClientB", GapMinutes: 10, RequiredMinutes: 60}
	v := finding.New(finding.OriginValidator, "insufficient_travel_time", finding.CategoryTemporal,
		finding.SeverityMedium, finding.StatusFailed, "too fast").WithEvidence(ev)
	sc := finding.New(finding.OriginScorer, "impossible_travel", finding.CategoryTemporal,
		finding.SeverityHigh, finding.StatusWarning, "too fast").
		WithConfidence(values.MustNewConfidence(85)).WithEvidence(ev)

	ranked, final := Consolidate([]*finding.Finding{v}, []*finding.Finding{sc}, values.ClampScore(100), 0)

	require.Len(t, ranked, 1)
	assert.Equal(t, "impossible_travel", ranked[0].CheckType)

	// The failed validator check still penalizes quality even when the
	// scorer's version of the finding wins the display slot.
	assert.InDelta(t, 95.0, final.Float(), 0.001)
}

func TestConsolidateScoreClamping(t *testing.T) {
	var validator []*finding.Finding
	for i := 0; i < 10; i++ {
		validator = append(validator, finding.New(finding.OriginValidator, "remote_with_vehicle",
			finding.CategoryLogicError, finding.SeverityCritical, finding.StatusFailed, "contradiction").
			WithEvidence(finding.OverlapEvidence{OverlapMinutes: i + 1}))
	}

	ranked, final := Consolidate(validator, nil, values.ClampScore(50), 100)
	assert.Equal(t, 0.0, final.Float())
	for _, f := range ranked {
		assert.GreaterOrEqual(t, f.CompositeScore(), 0.0)
		assert.LessOrEqual(t, f.CompositeScore(), 100.0)
	}
}

func TestConsolidateEmpty(t *testing.T) {
	ranked, final := Consolidate(nil, nil, values.ClampScore(0), 0)
	assert.Empty(t, ranked)
	assert.Equal(t, 0.0, final.Float())
}
