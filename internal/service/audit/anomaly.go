package audit

import (
	"fmt"
	"math"
	"time"

	"github.com/Fiore0312/controlli-sub000/internal/domain/analysis"
	"github.com/Fiore0312/controlli-sub000/internal/domain/finding"
	"github.com/Fiore0312/controlli-sub000/internal/domain/timeline"
	"github.com/Fiore0312/controlli-sub000/internal/domain/values"
)

// AnomalyConfig carries the scorer tunables. Rule categories can be toggled
// off individually; a disabled category emits nothing.
type AnomalyConfig struct {
	WindowDays            int
	PatternMinOccurrences int

	Behavioral     bool
	Temporal       bool
	ClientSpecific bool
	Productivity   bool

	LateStartGraceMinutes int
	LateStartRatio        float64
	LongBreakMinutes      int
	MicroGapMaxMinutes    int
	MicroGapMinCount      int
	FrequencyChangeRatio  float64
	EfficiencyDropPercent float64
	CoherenceThreshold    float64
}

// DefaultAnomalyConfig returns the production defaults.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		WindowDays:            30,
		PatternMinOccurrences: 3,
		Behavioral:            true,
		Temporal:              true,
		ClientSpecific:        true,
		Productivity:          true,
		LateStartGraceMinutes: 15,
		LateStartRatio:        0.7,
		LongBreakMinutes:      90,
		MicroGapMaxMinutes:    14,
		MicroGapMinCount:      10,
		FrequencyChangeRatio:  0.5,
		EfficiencyDropPercent: 15,
		CoherenceThreshold:    0.6,
	}
}

// AnomalyScorer evaluates a day against a trailing window of prior analyses
// for the same technician. All rules are deterministic threshold checks;
// insufficient history suppresses a rule instead of erroring.
type AnomalyScorer struct {
	cfg      AnomalyConfig
	timeline timeline.Config
}

func NewAnomalyScorer(cfg AnomalyConfig, tl timeline.Config) *AnomalyScorer {
	return &AnomalyScorer{cfg: cfg, timeline: tl}
}

// Score evaluates the current day against its history and returns the
// triggered findings plus the aggregate risk score. History is expected
// oldest first; a day with no findings has risk 0. The current day's
// validator findings are passed separately because they are not yet attached
// to the aggregate at scoring time.
func (s *AnomalyScorer) Score(current *analysis.DailyAnalysis, validatorFindings []*finding.Finding, history []*analysis.DailyAnalysis) ([]*finding.Finding, float64) {
	var findings []*finding.Finding
	if s.cfg.Behavioral {
		findings = append(findings, s.behavioralRules(current, history)...)
	}
	if s.cfg.Temporal {
		findings = append(findings, s.temporalRules(current, validatorFindings, history)...)
	}
	if s.cfg.ClientSpecific {
		findings = append(findings, s.clientRules(current, history)...)
	}
	if s.cfg.Productivity {
		findings = append(findings, s.productivityRules(current, history)...)
	}
	return findings, RiskScore(findings)
}

// RiskScore aggregates finding composite scores: their average plus a volume
// surcharge of 2 points per finding capped at 20, clamped to [0,100].
func RiskScore(findings []*finding.Finding) float64 {
	if len(findings) == 0 {
		return 0
	}
	sum := 0.0
	for _, f := range findings {
		sum += f.CompositeScore()
	}
	risk := sum/float64(len(findings)) + math.Min(20, 2*float64(len(findings)))
	return math.Min(100, math.Max(0, risk))
}

func firstActivityStart(a *analysis.DailyAnalysis) (time.Time, bool) {
	for _, e := range a.Events {
		if e.Kind == timeline.KindBreak {
			continue
		}
		return e.Start, true
	}
	return time.Time{}, false
}

func (s *AnomalyScorer) startsLate(a *analysis.DailyAnalysis) bool {
	start, ok := firstActivityStart(a)
	if !ok {
		return false
	}
	minutes := start.Hour()*60 + start.Minute()
	return minutes > s.timeline.WorkdayStartMinute+s.cfg.LateStartGraceMinutes
}

func (s *AnomalyScorer) behavioralRules(current *analysis.DailyAnalysis, history []*analysis.DailyAnalysis) []*finding.Finding {
	var findings []*finding.Finding
	window := append(append([]*analysis.DailyAnalysis{}, history...), current)

	// Systematic late start.
	if len(history) >= s.cfg.PatternMinOccurrences {
		late, dates := 0, []time.Time{}
		for _, day := range window {
			if s.startsLate(day) {
				late++
				dates = append(dates, day.Date)
			}
		}
		ratio := float64(late) / float64(len(window))
		if ratio >= s.cfg.LateStartRatio {
			conf := values.ClampConfidence(int(ratio * 100))
			findings = append(findings, finding.New(
				finding.OriginScorer, "systematic_late_start",
				finding.CategoryBehavioral, finding.SeverityMedium, finding.StatusWarning,
				fmt.Sprintf("started late on %d of the last %d analyzed days", late, len(window))).
				WithSources("timeline", "history").
				WithComparison(
					fmt.Sprintf("first activity near %02d:%02d", s.timeline.WorkdayStartMinute/60, s.timeline.WorkdayStartMinute%60),
					fmt.Sprintf("late on %.0f%% of days", ratio*100)).
				WithConfidence(conf).
				WithEvidence(finding.RecurringPatternEvidence{
					Pattern: "late_start", Occurrences: late,
					WindowDays: s.cfg.WindowDays, Dates: dates,
				}).
				WithRecommendation("review morning scheduling with the technician"))
		}
	}

	// Frequent long breaks.
	if len(history) >= s.cfg.PatternMinOccurrences {
		days := 0
		for _, day := range window {
			for _, e := range day.Events {
				if e.Kind == timeline.KindBreak && e.DurationMinutes() > s.cfg.LongBreakMinutes {
					days++
					break
				}
			}
		}
		if days >= s.cfg.PatternMinOccurrences {
			findings = append(findings, finding.New(
				finding.OriginScorer, "frequent_long_breaks",
				finding.CategoryBehavioral, finding.SeverityMedium, finding.StatusWarning,
				fmt.Sprintf("breaks over %d minutes on %d days in the window", s.cfg.LongBreakMinutes, days)).
				WithSources("timeline", "history").
				WithComparison(fmt.Sprintf("breaks under %d minutes", s.cfg.LongBreakMinutes),
					fmt.Sprintf("%d days with longer breaks", days)).
				WithEvidence(finding.RecurringPatternEvidence{
					Pattern: "long_breaks", Occurrences: days, WindowDays: s.cfg.WindowDays,
				}).
				WithRecommendation("check for unreported personal errands during work hours"))
		}
	}

	// Consecutive weekend days with activity.
	streak, best := 0, 0
	var lastWeekend time.Time
	for _, day := range window {
		wd := day.Date.Weekday()
		if (wd != time.Saturday && wd != time.Sunday) || len(day.Events) == 0 {
			continue
		}
		if !lastWeekend.IsZero() && day.Date.Sub(lastWeekend) <= 24*time.Hour {
			streak++
		} else {
			streak = 1
		}
		lastWeekend = day.Date
		if streak > best {
			best = streak
		}
	}
	if best >= 2 {
		findings = append(findings, finding.New(
			finding.OriginScorer, "weekend_activity",
			finding.CategoryBehavioral, finding.SeverityLow, finding.StatusWarning,
			fmt.Sprintf("%d consecutive weekend days with recorded activity", best)).
			WithSources("timeline", "history").
			WithComparison("no systematic weekend work", fmt.Sprintf("%d-day weekend streak", best)).
			WithEvidence(finding.RecurringPatternEvidence{
				Pattern: "weekend_activity", Occurrences: best, WindowDays: s.cfg.WindowDays,
			}).
			WithRecommendation("verify weekend call-outs were authorized and compensated"))
	}
	return findings
}

func (s *AnomalyScorer) temporalRules(current *analysis.DailyAnalysis, validatorFindings []*finding.Finding, history []*analysis.DailyAnalysis) []*finding.Finding {
	var findings []*finding.Finding

	// Impossible travel between today's onsite events.
	for i := 0; i+1 < len(current.Events); i++ {
		a, c := current.Events[i], current.Events[i+1]
		if a.Location != timeline.LocationOnsite || c.Location != timeline.LocationOnsite {
			continue
		}
		if a.Client == "" || c.Client == "" || clientsMatch(a.Client, c.Client) {
			continue
		}
		gap := a.GapMinutes(c)
		required := s.timeline.EstimateTravelMinutes(c.Client)
		if gap >= 0 && gap < required {
			findings = append(findings, finding.New(
				finding.OriginScorer, "impossible_travel",
				finding.CategoryTemporal, finding.SeverityHigh, finding.StatusWarning,
				fmt.Sprintf("transition %q to %q in %d minutes needs about %d", a.Client, c.Client, gap, required)).
				WithSources("timeline", "distance_table").
				WithComparison(fmt.Sprintf("at least %d minutes", required), fmt.Sprintf("%d minutes", gap)).
				WithConfidence(values.MustNewConfidence(85)).
				WithEvidence(finding.ImpossibleTravelEvidence{
					FromClient: a.Client, ToClient: c.Client,
					GapMinutes: gap, RequiredMinutes: required,
				}).
				WithRecommendation("one of the two visit times is wrong; ask for a correction"))
		}
	}

	// Recurring overlaps across the window.
	occurrences := 0
	for _, day := range history {
		for _, f := range day.Findings {
			if f.Category == finding.CategoryOverlap {
				occurrences++
				break
			}
		}
	}
	for _, f := range validatorFindings {
		if f.Category == finding.CategoryOverlap {
			occurrences++
			break
		}
	}
	if occurrences >= s.cfg.PatternMinOccurrences {
		findings = append(findings, finding.New(
			finding.OriginScorer, "recurring_overlaps",
			finding.CategoryTemporal, finding.SeverityHigh, finding.StatusWarning,
			fmt.Sprintf("overlapping events found on %d days in the window", occurrences)).
			WithSources("history", "timeline").
			WithComparison("isolated reporting mistakes", fmt.Sprintf("%d recurrences", occurrences)).
			WithEvidence(finding.RecurringPatternEvidence{
				Pattern: "overlaps", Occurrences: occurrences, WindowDays: s.cfg.WindowDays,
			}).
			WithRecommendation("review how this technician records start and end times"))
	}

	// Micro-gap fragmentation in the current day.
	gaps, gapMinutes := 0, 0
	for i := 0; i+1 < len(current.Events); i++ {
		g := current.Events[i].GapMinutes(current.Events[i+1])
		if g > 0 && g <= s.cfg.MicroGapMaxMinutes {
			gaps++
			gapMinutes += g
		}
	}
	if gaps >= s.cfg.MicroGapMinCount {
		findings = append(findings, finding.New(
			finding.OriginScorer, "micro_gap_pattern",
			finding.CategoryTemporal, finding.SeverityMedium, finding.StatusWarning,
			fmt.Sprintf("%d short unexplained gaps totalling %d minutes", gaps, gapMinutes)).
			WithSources("timeline", "timeline").
			WithComparison("a handful of natural transitions", fmt.Sprintf("%d gaps under %d minutes", gaps, s.cfg.MicroGapMaxMinutes)).
			WithEvidence(finding.MicroGapEvidence{GapCount: gaps, TotalMinutes: gapMinutes}).
			WithRecommendation("fragmented reporting may hide idle time; ask for consolidated entries"))
	}
	return findings
}

// clientMinutes sums per-client activity minutes for one day.
func clientMinutes(a *analysis.DailyAnalysis) map[string]int {
	out := make(map[string]int)
	for _, e := range a.Events {
		if e.Client == "" || e.Kind == timeline.KindBreak || e.Kind == timeline.KindTravel {
			continue
		}
		out[e.Client] += e.DurationMinutes()
	}
	return out
}

func (s *AnomalyScorer) clientRules(current *analysis.DailyAnalysis, history []*analysis.DailyAnalysis) []*finding.Finding {
	var findings []*finding.Finding
	today := clientMinutes(current)

	// Historical per-day minutes per client.
	samples := make(map[string][]float64)
	for _, day := range history {
		for client, minutes := range clientMinutes(day) {
			samples[client] = append(samples[client], float64(minutes))
		}
	}

	for client, minutes := range today {
		hist := samples[client]
		if len(hist) < s.cfg.PatternMinOccurrences {
			continue
		}
		mean, stddev := meanStddev(hist)
		if stddev <= 0 {
			continue
		}
		deviation := math.Abs(float64(minutes)-mean) / stddev
		if deviation > 2 {
			findings = append(findings, finding.New(
				finding.OriginScorer, "client_duration_deviation",
				finding.CategoryClientSpecific, finding.SeverityMedium, finding.StatusWarning,
				fmt.Sprintf("time at %q deviates %.1f standard deviations from its history", client, deviation)).
				WithSources("timeline", "history").
				WithComparison(fmt.Sprintf("about %.0f minutes", mean), fmt.Sprintf("%d minutes", minutes)).
				WithEvidence(finding.ClientDeviationEvidence{
					Client: client, ActualMinutes: minutes,
					AverageMinutes: mean, DeviationRatio: deviation,
					SampleSize: len(hist),
				}).
				WithRecommendation("ask what changed at this client or verify the reported duration"))
		}
	}

	// Intervention frequency change: last seven days versus the window rate.
	if len(history) > 0 {
		weeks := float64(s.cfg.WindowDays) / 7
		cutoff := current.Date.AddDate(0, 0, -7)
		for client := range today {
			totalVisits, recentVisits := 1, 1 // today counts in both
			for _, day := range history {
				if _, ok := clientMinutes(day)[client]; !ok {
					continue
				}
				totalVisits++
				if day.Date.After(cutoff) {
					recentVisits++
				}
			}
			if totalVisits < s.cfg.PatternMinOccurrences {
				continue
			}
			avgPerWeek := float64(totalVisits) / weeks
			if avgPerWeek <= 0 {
				continue
			}
			change := math.Abs(float64(recentVisits)-avgPerWeek) / avgPerWeek
			if change > s.cfg.FrequencyChangeRatio {
				findings = append(findings, finding.New(
					finding.OriginScorer, "client_frequency_change",
					finding.CategoryClientSpecific, finding.SeverityLow, finding.StatusWarning,
					fmt.Sprintf("visit frequency for %q changed %.0f%% against its average", client, change*100)).
					WithSources("timeline", "history").
					WithComparison(fmt.Sprintf("about %.1f visits per week", avgPerWeek),
						fmt.Sprintf("%d visits in the last week", recentVisits)).
					WithEvidence(finding.ClientFrequencyEvidence{
						Client: client, VisitsInWindow: totalVisits,
						AveragePerWeek: avgPerWeek, ObservedPerWeek: float64(recentVisits),
					}).
					WithRecommendation("confirm the contract or workload for this client changed"))
			}
		}
	}
	return findings
}

func (s *AnomalyScorer) productivityRules(current *analysis.DailyAnalysis, history []*analysis.DailyAnalysis) []*finding.Finding {
	var findings []*finding.Finding

	// Efficiency trend over weekly coverage aggregates.
	weekly := weeklyCoverage(append(append([]*analysis.DailyAnalysis{}, history...), current))
	if len(weekly) >= s.cfg.PatternMinOccurrences {
		slope, intercept := linearFit(weekly)
		first := intercept
		last := intercept + slope*float64(len(weekly)-1)
		if first > 0 {
			drop := (first - last) / first * 100
			if drop >= s.cfg.EfficiencyDropPercent {
				findings = append(findings, finding.New(
					finding.OriginScorer, "declining_efficiency",
					finding.CategoryProductivity, finding.SeverityMedium, finding.StatusWarning,
					fmt.Sprintf("coverage trend dropped %.0f%% over the window", drop)).
					WithSources("history", "timeline").
					WithComparison("stable weekly coverage", fmt.Sprintf("%.0f%% decline across %d weeks", drop, len(weekly))).
					WithEvidence(finding.ProductivityEvidence{
						CurrentCoverage: current.CoveragePercent,
						AverageCoverage: first,
						WindowDays:      s.cfg.WindowDays,
					}).
					WithRecommendation("discuss workload and blockers before it becomes an HR matter"))
			}
		}
	}

	// Reporting coherence: described versus reconstructed durations.
	reported, observed := 0, 0
	for _, e := range current.Events {
		if e.Kind == timeline.KindBreak {
			continue
		}
		observed += e.DurationMinutes()
		if e.Source == timeline.SourceTicketing {
			reported += e.DurationMinutes()
		}
	}
	if reported > 0 && observed > 0 {
		coherence := float64(reported) / float64(observed)
		if coherence > 1 {
			coherence = 1 / coherence
		}
		if coherence < s.cfg.CoherenceThreshold {
			totals := map[string]int{"reported": reported, "reconstructed": observed}
			findings = append(findings, finding.New(
				finding.OriginScorer, "reporting_incoherence",
				finding.CategoryProductivity, finding.SeverityMedium, finding.StatusWarning,
				fmt.Sprintf("reported time explains only %.0f%% of the reconstructed day", coherence*100)).
				WithSources(timeline.SourceTicketing.String(), "timeline").
				WithComparison(fmt.Sprintf("coherence above %.0f%%", s.cfg.CoherenceThreshold*100),
					fmt.Sprintf("%.0f%%", coherence*100)).
				WithEvidence(finding.CoherenceEvidence{
					SourceTotals: totals, MaxDeltaMin: observed - reported,
				}).
				WithRecommendation("large untracked blocks of time; ask for complete reporting"))
		}
	}
	return findings
}

func meanStddev(xs []float64) (mean, stddev float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		stddev += (x - mean) * (x - mean)
	}
	stddev = math.Sqrt(stddev / float64(len(xs)))
	return mean, stddev
}

// weeklyCoverage averages coverage per ISO week, ordered oldest first.
func weeklyCoverage(days []*analysis.DailyAnalysis) []float64 {
	type bucket struct {
		sum float64
		n   int
	}
	var order []string
	buckets := make(map[string]*bucket)
	for _, day := range days {
		year, week := day.Date.ISOWeek()
		key := fmt.Sprintf("%d-%02d", year, week)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
			order = append(order, key)
		}
		b.sum += day.CoveragePercent
		b.n++
	}
	out := make([]float64, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		out = append(out, b.sum/float64(b.n))
	}
	return out
}

// linearFit is an ordinary least-squares fit over y indexed by position.
func linearFit(ys []float64) (slope, intercept float64) {
	n := float64(len(ys))
	if n < 2 {
		if n == 1 {
			return 0, ys[0]
		}
		return 0, 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / den
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}
