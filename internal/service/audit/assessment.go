package audit

import (
	"sort"
	"time"

	"github.com/Fiore0312/controlli-sub000/internal/domain/finding"
	"github.com/Fiore0312/controlli-sub000/internal/domain/timeline"
)

// The afternoon block is anchored at 14:00 regardless of the midday window;
// it marks the expected restart after lunch.
const afternoonBlockStartMinute = 14 * 60

// blockGaps measures how late activity starts in the morning and afternoon
// blocks: minutes between the expected block start and the first event
// touching the block. An empty block counts as fully missed.
func blockGaps(events []*timeline.Event, cfg timeline.Config, day time.Time) (morning, afternoon int) {
	morningStart := day.Add(time.Duration(cfg.WorkdayStartMinute) * time.Minute)
	morningEnd := day.Add(time.Duration(cfg.MiddayStartMinute) * time.Minute)
	afternoonStart := day.Add(afternoonBlockStartMinute * time.Minute)
	afternoonEnd := day.Add(time.Duration(cfg.WorkdayEndMinute) * time.Minute)

	return blockGap(events, morningStart, morningEnd),
		blockGap(events, afternoonStart, afternoonEnd)
}

func blockGap(events []*timeline.Event, blockStart, blockEnd time.Time) int {
	gap := int(blockEnd.Sub(blockStart).Minutes())
	for _, e := range events {
		if e.Kind == timeline.KindBreak {
			continue
		}
		if !e.EndOrStart().After(blockStart) || !e.Start.Before(blockEnd) {
			continue
		}
		if !e.Start.After(blockStart) {
			return 0
		}
		if d := int(e.Start.Sub(blockStart).Minutes()); d < gap {
			gap = d
		}
	}
	return gap
}

var categoryRecommendations = map[finding.Category]string{
	finding.CategoryOverlap:        "Review overlapping time entries and keep a single record per interval",
	finding.CategoryMissingData:    "Backfill the entries missing from the source that did not report activity",
	finding.CategoryLogicError:     "Reconcile reported locations and durations across sources",
	finding.CategoryTemporal:       "Verify travel times and transitions between consecutive clients",
	finding.CategoryBehavioral:     "Discuss the recurring schedule deviations with the technician",
	finding.CategoryClientSpecific: "Check contract terms and typical durations for the flagged clients",
	finding.CategoryProductivity:   "Review workload distribution and reported coverage for the period",
}

// recommendationsFor returns one actionable recommendation per finding
// category present, in category order.
func recommendationsFor(findings []*finding.Finding) []string {
	seen := make(map[finding.Category]bool)
	var categories []finding.Category
	for _, f := range findings {
		if !seen[f.Category] {
			seen[f.Category] = true
			categories = append(categories, f.Category)
		}
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	out := make([]string, 0, len(categories))
	for _, c := range categories {
		if rec, ok := categoryRecommendations[c]; ok {
			out = append(out, rec)
		}
	}
	return out
}
