package values

import (
	"database/sql/driver"
	"fmt"
)

// Confidence represents a 0-100 trust estimate for an event or finding as a
// value object. Arithmetic on it always clamps back into range, so a stored
// Confidence is valid by construction.
type Confidence int

const (
	MinConfidence Confidence = 0
	MaxConfidence Confidence = 100

	// Level thresholds
	confidenceHighThreshold   = 90
	confidenceMediumThreshold = 70
)

// NewConfidence creates a Confidence with validation
func NewConfidence(v int) (Confidence, error) {
	if v < int(MinConfidence) || v > int(MaxConfidence) {
		return 0, fmt.Errorf("confidence must be between 0 and 100, got %d", v)
	}
	return Confidence(v), nil
}

// MustNewConfidence creates a Confidence and panics on error (for constants/tests)
func MustNewConfidence(v int) Confidence {
	c, err := NewConfidence(v)
	if err != nil {
		panic(err)
	}
	return c
}

// ClampConfidence forces an arbitrary value into the valid range
func ClampConfidence(v int) Confidence {
	if v < int(MinConfidence) {
		return MinConfidence
	}
	if v > int(MaxConfidence) {
		return MaxConfidence
	}
	return Confidence(v)
}

// Add returns the confidence raised by delta, clamped to the valid range
func (c Confidence) Add(delta int) Confidence {
	return ClampConfidence(int(c) + delta)
}

// Penalize returns the confidence lowered by delta, clamped to the valid range
func (c Confidence) Penalize(delta int) Confidence {
	return ClampConfidence(int(c) - delta)
}

// Int returns the raw numeric value
func (c Confidence) Int() int {
	return int(c)
}

// Level buckets the confidence the way the dashboards group it
func (c Confidence) Level() string {
	switch {
	case c >= confidenceHighThreshold:
		return "high"
	case c >= confidenceMediumThreshold:
		return "medium"
	default:
		return "low"
	}
}

func (c Confidence) String() string {
	return fmt.Sprintf("%d", int(c))
}

// Value implements driver.Valuer for database storage
func (c Confidence) Value() (driver.Value, error) {
	return int64(c), nil
}

// Scan implements sql.Scanner for database retrieval
func (c *Confidence) Scan(value interface{}) error {
	if value == nil {
		*c = MinConfidence
		return nil
	}
	switch v := value.(type) {
	case int64:
		*c = ClampConfidence(int(v))
	case int:
		*c = ClampConfidence(v)
	case float64:
		*c = ClampConfidence(int(v))
	default:
		return fmt.Errorf("cannot scan %T into Confidence", value)
	}
	return nil
}
