package audit

import (
	"fmt"
	"sort"

	"github.com/Fiore0312/controlli-sub000/internal/domain/finding"
	"github.com/Fiore0312/controlli-sub000/internal/domain/values"
)

// Consolidate merges the validator and scorer finding lists into a single
// ranked alert list and computes the final daily quality score.
//
// Ranking is by descending composite score with detection order breaking
// ties. Near-duplicates across origins (the validator and the scorer can both
// flag the same impossible transition) are collapsed, keeping the
// higher-scored one.
//
// Final quality = timeline quality minus a severity-weighted penalty for each
// hard-failed validator check minus 0.3 times the risk score, clamped to
// [0,100].
func Consolidate(validatorFindings, scorerFindings []*finding.Finding, timelineQuality values.Score, riskScore float64) ([]*finding.Finding, values.Score) {
	merged := make([]*finding.Finding, 0, len(validatorFindings)+len(scorerFindings))
	merged = append(merged, validatorFindings...)
	merged = append(merged, scorerFindings...)

	merged = dedupe(merged)

	order := make(map[*finding.Finding]int, len(merged))
	for i, f := range merged {
		order[f] = i
	}
	sort.SliceStable(merged, func(i, j int) bool {
		si, sj := merged[i].CompositeScore(), merged[j].CompositeScore()
		if si != sj {
			return si > sj
		}
		return order[merged[i]] < order[merged[j]]
	})
	for i, f := range merged {
		f.Rank = i + 1
		f.ImpactLevel = finding.ImpactLevelForScore(f.CompositeScore())
	}

	penalty := 0.0
	for _, f := range validatorFindings {
		if f.Status == finding.StatusFailed {
			penalty += f.Severity.PenaltyPoints()
		}
	}
	final := values.ClampScore(timelineQuality.Float() - penalty - 0.3*riskScore)
	return merged, final
}

// dedupe collapses findings that describe the same fact. Two findings match
// when their category and evidence point at the same subject; the one with
// the higher composite score survives, first-seen order winning ties.
func dedupe(findings []*finding.Finding) []*finding.Finding {
	seen := make(map[string]int)
	out := make([]*finding.Finding, 0, len(findings))
	for _, f := range findings {
		key := fingerprint(f)
		if prev, ok := seen[key]; ok {
			if f.CompositeScore() > out[prev].CompositeScore() {
				out[prev] = f
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, f)
	}
	return out
}

func fingerprint(f *finding.Finding) string {
	subject := f.CheckType
	switch e := f.Evidence.(type) {
	case finding.OverlapEvidence:
		subject = fmt.Sprintf("overlap|%s|%s", e.EventA, e.EventB)
	case finding.ImpossibleTravelEvidence:
		subject = fmt.Sprintf("travel|%s|%s", e.FromClient, e.ToClient)
	case finding.MissingMatchEvidence:
		subject = fmt.Sprintf("missing|%s|%s|%s", f.CheckType, e.EventID, e.Checked)
	case finding.ClientDeviationEvidence:
		subject = fmt.Sprintf("deviation|%s", e.Client)
	case finding.ClientFrequencyEvidence:
		subject = fmt.Sprintf("frequency|%s", e.Client)
	}
	return f.Category.String() + "|" + subject
}
