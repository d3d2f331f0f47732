package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEvent(t *testing.T, source Source, kind Kind, start, end string) *Event {
	t.Helper()
	s, err := time.Parse("2006-01-02 15:04", start)
	require.NoError(t, err)
	e2, err := time.Parse("2006-01-02 15:04", end)
	require.NoError(t, err)
	e, err := NewEvent(source, kind, s, &e2)
	require.NoError(t, err)
	return e
}

func TestNewEventValidation(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)

	t.Run("end before start rejected", func(t *testing.T) {
		_, err := NewEvent(SourceTicketing, KindActivity, start, &before)
		assert.Error(t, err)
	})

	t.Run("zero start rejected", func(t *testing.T) {
		_, err := NewEvent(SourceTicketing, KindActivity, time.Time{}, nil)
		assert.Error(t, err)
	})

	t.Run("open event allowed", func(t *testing.T) {
		e, err := NewEvent(SourceTicketing, KindActivity, start, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, e.DurationMinutes())
		assert.Equal(t, start, e.EndOrStart())
	})

	t.Run("negative duration rejected", func(t *testing.T) {
		_, err := NewDurationEvent(SourceVehicle, KindTravel, start, -5)
		assert.Error(t, err)
	})
}

func TestBaseConfidence(t *testing.T) {
	tests := []struct {
		source Source
		want   int
	}{
		{SourceTicketing, 95},
		{SourceRemoteSession, 90},
		{SourceVehicle, 85},
		{SourceTimeClock, 85},
		{SourceCalendar, 80},
		{SourceInferred, 50},
	}
	for _, tt := range tests {
		t.Run(tt.source.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.source.BaseConfidence().Int())
		})
	}
}

func TestOverlapMath(t *testing.T) {
	a := mustEvent(t, SourceTicketing, KindActivity, "2025-03-10 09:00", "2025-03-10 10:00")
	b := mustEvent(t, SourceCalendar, KindActivity, "2025-03-10 09:30", "2025-03-10 10:30")
	c := mustEvent(t, SourceVehicle, KindTravel, "2025-03-10 10:05", "2025-03-10 10:35")

	assert.Equal(t, 30, a.OverlapMinutes(b))
	assert.Equal(t, 30, b.OverlapMinutes(a))
	assert.Equal(t, 0, a.OverlapMinutes(c))

	assert.True(t, a.Overlaps(b, 0))
	assert.False(t, a.Overlaps(c, 0))
	// Tolerance widens the interval for source matching.
	assert.True(t, a.Overlaps(c, 10*time.Minute))

	assert.Equal(t, 5, a.GapMinutes(c))
	assert.Equal(t, -30, a.GapMinutes(b))
}

func TestCorroborateIsIdempotent(t *testing.T) {
	e := mustEvent(t, SourceTicketing, KindActivity, "2025-03-10 09:00", "2025-03-10 10:00")
	e.Corroborate(SourceCalendar)
	e.Corroborate(SourceCalendar)
	e.Corroborate(SourceVehicle)
	assert.Equal(t, []Source{SourceCalendar, SourceVehicle}, e.Supporting)
}

func TestMarkCorrected(t *testing.T) {
	e := mustEvent(t, SourceTicketing, KindActivity, "2025-03-10 09:00", "2025-03-10 10:00")
	e.MarkCorrected("duration_truncated")

	assert.Equal(t, StatusCorrected, e.Status)
	assert.Equal(t, "duration_truncated", e.InferenceReason)
	assert.Equal(t, 60, e.Confidence.Int())

	// An already low confidence is not raised.
	e.Confidence = 40
	e.MarkCorrected("again")
	assert.Equal(t, 40, e.Confidence.Int())
}

func TestParseLocationType(t *testing.T) {
	tests := []struct {
		in   string
		want LocationType
	}{
		{"onsite", LocationOnsite},
		{"on-site", LocationOnsite},
		{"travel", LocationTravel},
		{"office", LocationOffice},
		{"remote", LocationRemote},
		{"", LocationRemote},
		{"whatever", LocationRemote},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLocationType(tt.in), "label %q", tt.in)
	}
}
