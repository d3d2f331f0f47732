package finding

import (
	"time"

	"github.com/google/uuid"

	"github.com/Fiore0312/controlli-sub000/internal/domain/values"
)

// Finding is a structured anomaly or inconsistency record. Findings are
// immutable once created: a new analysis run supersedes them wholesale, it
// never mutates them in place.
type Finding struct {
	ID          uuid.UUID         `json:"id"`
	Origin      Origin            `json:"origin"`
	CheckType   string            `json:"check_type"`
	Category    Category          `json:"category"`
	Severity    Severity          `json:"severity"`
	Status      CheckStatus       `json:"status"`
	Description string            `json:"description"`
	SourceA     string            `json:"source_a"`
	SourceB     string            `json:"source_b"`
	Expected    string            `json:"expected"`
	Actual      string            `json:"actual"`
	Confidence  values.Confidence `json:"confidence"`
	Evidence    Evidence          `json:"evidence,omitempty"`

	Recommendation string    `json:"recommendation"`
	DetectedAt     time.Time `json:"detected_at"`

	// RequiresReview flags findings a human must look at: very high
	// confidence or anything temporal.
	RequiresReview bool `json:"requires_review"`

	// Assigned by the consolidator.
	Rank        int         `json:"rank,omitempty"`
	ImpactLevel ImpactLevel `json:"impact_level,omitempty"`
}

type Origin int

const (
	OriginValidator Origin = iota
	OriginScorer
)

func (o Origin) String() string {
	switch o {
	case OriginValidator:
		return "cross_validation"
	case OriginScorer:
		return "anomaly_detection"
	default:
		return "unknown"
	}
}

type Category int

const (
	CategoryOverlap Category = iota
	CategoryMissingData
	CategoryLogicError
	CategoryTemporal
	CategoryBehavioral
	CategoryClientSpecific
	CategoryProductivity
)

func (c Category) String() string {
	switch c {
	case CategoryOverlap:
		return "overlap"
	case CategoryMissingData:
		return "missing_data"
	case CategoryLogicError:
		return "logic_error"
	case CategoryTemporal:
		return "temporal"
	case CategoryBehavioral:
		return "behavioral"
	case CategoryClientSpecific:
		return "client_specific"
	case CategoryProductivity:
		return "productivity"
	default:
		return "unknown"
	}
}

type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Weight maps severity onto the composite-score scale.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 100
	case SeverityHigh:
		return 80
	case SeverityMedium:
		return 60
	default:
		return 40
	}
}

// PenaltyPoints is the quality-score cost of one failed check of this
// severity. A critical contradiction costs four times a medium one.
func (s Severity) PenaltyPoints() float64 {
	switch s {
	case SeverityCritical:
		return 20
	case SeverityHigh:
		return 10
	case SeverityMedium:
		return 5
	default:
		return 2
	}
}

// CheckStatus distinguishes hard contradictions from advisories. Only failed
// checks penalize the final quality score.
type CheckStatus int

const (
	StatusWarning CheckStatus = iota
	StatusFailed
)

func (s CheckStatus) String() string {
	switch s {
	case StatusFailed:
		return "failed"
	default:
		return "warning"
	}
}

type ImpactLevel int

const (
	ImpactLow ImpactLevel = iota
	ImpactMedium
	ImpactHigh
	ImpactCritical
)

func (l ImpactLevel) String() string {
	switch l {
	case ImpactCritical:
		return "critical"
	case ImpactHigh:
		return "high"
	case ImpactMedium:
		return "medium"
	default:
		return "low"
	}
}

// ImpactLevelForScore buckets a composite score into impact levels.
func ImpactLevelForScore(score float64) ImpactLevel {
	switch {
	case score >= 90:
		return ImpactCritical
	case score >= 75:
		return ImpactHigh
	case score >= 60:
		return ImpactMedium
	default:
		return ImpactLow
	}
}

// New creates an immutable finding.
func New(origin Origin, checkType string, category Category, severity Severity, status CheckStatus, description string) *Finding {
	f := &Finding{
		ID:          uuid.New(),
		Origin:      origin,
		CheckType:   checkType,
		Category:    category,
		Severity:    severity,
		Status:      status,
		Description: description,
		Confidence:  75,
		DetectedAt:  time.Now().UTC(),
	}
	f.RequiresReview = f.Confidence >= 90 || category == CategoryTemporal
	return f
}

// WithSources sets the two sources being compared.
func (f *Finding) WithSources(a, b string) *Finding {
	f.SourceA, f.SourceB = a, b
	return f
}

// WithComparison sets the expected-versus-actual narrative.
func (f *Finding) WithComparison(expected, actual string) *Finding {
	f.Expected, f.Actual = expected, actual
	return f
}

// WithEvidence attaches the check-specific evidence payload.
func (f *Finding) WithEvidence(e Evidence) *Finding {
	f.Evidence = e
	return f
}

// WithRecommendation sets the suggested follow-up action.
func (f *Finding) WithRecommendation(r string) *Finding {
	f.Recommendation = r
	return f
}

// WithConfidence overrides the baseline confidence and refreshes the
// review flag.
func (f *Finding) WithConfidence(c values.Confidence) *Finding {
	f.Confidence = c
	f.RequiresReview = f.Confidence >= 90 || f.Category == CategoryTemporal
	return f
}

// CompositeScore blends severity and confidence into the ranking score.
func (f *Finding) CompositeScore() float64 {
	return f.Severity.Weight()*0.6 + float64(f.Confidence.Int())*0.4
}
