package values

import (
	"database/sql/driver"
	"fmt"
	"math"
)

// Score is a 0-100 quality or risk score. Quality scores reward coherent
// timelines; risk scores accumulate from findings. Both share the same
// bounds and clamping rules.
type Score float64

const (
	MinScore Score = 0
	MaxScore Score = 100
)

// NewScore creates a Score with validation
func NewScore(v float64) (Score, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("score must be a finite number")
	}
	if v < float64(MinScore) || v > float64(MaxScore) {
		return 0, fmt.Errorf("score must be between 0 and 100, got %.2f", v)
	}
	return Score(v), nil
}

// ClampScore forces an arbitrary value into the valid range
func ClampScore(v float64) Score {
	if math.IsNaN(v) {
		return MinScore
	}
	if v < float64(MinScore) {
		return MinScore
	}
	if v > float64(MaxScore) {
		return MaxScore
	}
	return Score(v)
}

// Float returns the raw numeric value
func (s Score) Float() float64 {
	return float64(s)
}

// QualityLevel labels the score for reporting
func (s Score) QualityLevel() string {
	switch {
	case s >= 90:
		return "excellent"
	case s >= 75:
		return "good"
	case s >= 60:
		return "acceptable"
	case s >= 40:
		return "poor"
	default:
		return "critical"
	}
}

func (s Score) String() string {
	return fmt.Sprintf("%.1f", float64(s))
}

// Value implements driver.Valuer for database storage
func (s Score) Value() (driver.Value, error) {
	return float64(s), nil
}

// Scan implements sql.Scanner for database retrieval
func (s *Score) Scan(value interface{}) error {
	if value == nil {
		*s = MinScore
		return nil
	}
	switch v := value.(type) {
	case float64:
		*s = ClampScore(v)
	case int64:
		*s = ClampScore(float64(v))
	default:
		return fmt.Errorf("cannot scan %T into Score", value)
	}
	return nil
}
