package correction

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fiore0312/controlli-sub000/internal/domain/finding"
)

func makeFindings(severities ...finding.Severity) []*finding.Finding {
	out := make([]*finding.Finding, 0, len(severities))
	for _, s := range severities {
		out = append(out, finding.New(finding.OriginValidator, "check", finding.CategoryOverlap, s, finding.StatusFailed, "d"))
	}
	return out
}

func TestDerivePriority(t *testing.T) {
	tests := []struct {
		name       string
		severities []finding.Severity
		want       Priority
	}{
		{
			name:       "any critical is urgent",
			severities: []finding.Severity{finding.SeverityLow, finding.SeverityCritical},
			want:       PriorityUrgent,
		},
		{
			name:       "three highs is high",
			severities: []finding.Severity{finding.SeverityHigh, finding.SeverityHigh, finding.SeverityHigh},
			want:       PriorityHigh,
		},
		{
			name:       "two highs is not enough",
			severities: []finding.Severity{finding.SeverityHigh, finding.SeverityHigh},
			want:       PriorityLow,
		},
		{
			name: "six findings is medium",
			severities: []finding.Severity{
				finding.SeverityLow, finding.SeverityLow, finding.SeverityLow,
				finding.SeverityMedium, finding.SeverityMedium, finding.SeverityMedium,
			},
			want: PriorityMedium,
		},
		{
			name:       "few minor findings is low",
			severities: []finding.Severity{finding.SeverityLow, finding.SeverityMedium},
			want:       PriorityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivePriority(makeFindings(tt.severities...)))
		})
	}
}

func TestNewRequestDeadlines(t *testing.T) {
	tests := []struct {
		priority Priority
		days     int
	}{
		{PriorityUrgent, 1},
		{PriorityHigh, 2},
		{PriorityMedium, 3},
		{PriorityLow, 5},
	}

	for _, tt := range tests {
		t.Run(tt.priority.String(), func(t *testing.T) {
			assert.Equal(t, tt.days, tt.priority.DeadlineDays())
		})
	}

	t.Run("deadline derived from priority", func(t *testing.T) {
		req, err := NewRequest(uuid.New(), uuid.New(), time.Now(), makeFindings(finding.SeverityCritical))
		require.NoError(t, err)
		assert.Equal(t, PriorityUrgent, req.Priority)
		assert.Equal(t, StatusSent, req.Status)
		assert.WithinDuration(t, req.CreatedAt.AddDate(0, 0, 1), req.Deadline, time.Second)
	})

	t.Run("no findings is a validation error", func(t *testing.T) {
		_, err := NewRequest(uuid.New(), uuid.New(), time.Now(), nil)
		require.Error(t, err)
	})
}

func TestScoreResponse(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want int
	}{
		{
			name: "bare comment",
			resp: Response{Message: "ok", Type: ResponseTypeComment},
			want: 50,
		},
		{
			name: "long message",
			resp: Response{Message: strings.Repeat("x", 101)},
			want: 60,
		},
		{
			name: "correction with everything",
			resp: Response{
				Message:        strings.Repeat("x", 150),
				Type:           ResponseTypeCorrection,
				HasCorrections: true,
				HasAttachments: true,
			},
			want: 100,
		},
		{
			name: "corrections attached",
			resp: Response{Message: "fixed", HasCorrections: true},
			want: 70,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreResponse(&tt.resp))
		})
	}
}

func TestApplyResponse(t *testing.T) {
	newReq := func(t *testing.T) *Request {
		req, err := NewRequest(uuid.New(), uuid.New(), time.Now(), makeFindings(finding.SeverityHigh))
		require.NoError(t, err)
		return req
	}

	t.Run("accepted response closes the request", func(t *testing.T) {
		req := newReq(t)
		resp := &Response{Message: "done", Type: ResponseTypeCorrection, HasCorrections: true}
		require.NoError(t, req.ApplyResponse(resp))
		assert.Equal(t, StatusCorrected, req.Status)
		assert.GreaterOrEqual(t, resp.QualityScore, 70)
		assert.Nil(t, req.FollowUpAt)
	})

	t.Run("weak response schedules follow-up", func(t *testing.T) {
		req := newReq(t)
		resp := &Response{Message: "will look into it", Type: ResponseTypeComment}
		require.NoError(t, req.ApplyResponse(resp))
		assert.Equal(t, StatusInProgress, req.Status)
		require.NotNil(t, req.FollowUpAt)
		assert.WithinDuration(t, resp.ReceivedAt.AddDate(0, 0, 2), *req.FollowUpAt, time.Second)
	})

	t.Run("empty message rejected", func(t *testing.T) {
		req := newReq(t)
		assert.Error(t, req.ApplyResponse(&Response{}))
		assert.Equal(t, StatusSent, req.Status)
	})

	t.Run("closed request rejects further responses", func(t *testing.T) {
		req := newReq(t)
		require.NoError(t, req.ApplyResponse(&Response{Message: "m", Type: ResponseTypeCorrection, HasCorrections: true}))
		err := req.ApplyResponse(&Response{Message: "again"})
		assert.Error(t, err)
	})
}

func TestOverdue(t *testing.T) {
	req, err := NewRequest(uuid.New(), uuid.New(), time.Now(), makeFindings(finding.SeverityLow))
	require.NoError(t, err)

	assert.False(t, req.Overdue(req.Deadline.Add(-time.Hour)))
	assert.True(t, req.Overdue(req.Deadline.Add(time.Hour)))

	req.Status = StatusCorrected
	assert.False(t, req.Overdue(req.Deadline.Add(time.Hour)))
}

func TestNewRequestSchedule(t *testing.T) {
	t.Run("reminders run at the priority cadence until the deadline", func(t *testing.T) {
		req, err := NewRequest(uuid.New(), uuid.New(), time.Now(), makeFindings(
			finding.SeverityHigh, finding.SeverityHigh, finding.SeverityHigh))
		require.NoError(t, err)
		require.Equal(t, PriorityHigh, req.Priority)

		require.Len(t, req.Reminders, 2)
		assert.WithinDuration(t, req.CreatedAt.AddDate(0, 0, 1), req.Reminders[0], time.Second)
		assert.WithinDuration(t, req.Deadline, req.Reminders[1], time.Second)
	})

	t.Run("low priority gets a single reminder", func(t *testing.T) {
		req, err := NewRequest(uuid.New(), uuid.New(), time.Now(), makeFindings(finding.SeverityLow))
		require.NoError(t, err)

		require.Len(t, req.Reminders, 1)
		assert.WithinDuration(t, req.CreatedAt.AddDate(0, 0, 3), req.Reminders[0], time.Second)
	})

	t.Run("escalation ladder is fixed at 3, 7 and 14 days", func(t *testing.T) {
		req, err := NewRequest(uuid.New(), uuid.New(), time.Now(), makeFindings(finding.SeverityCritical))
		require.NoError(t, err)

		require.Len(t, req.Escalations, 3)
		assert.Equal(t, EscalationSupervisor, req.Escalations[0].Level)
		assert.Equal(t, EscalationManager, req.Escalations[1].Level)
		assert.Equal(t, EscalationDirector, req.Escalations[2].Level)
		assert.WithinDuration(t, req.CreatedAt.AddDate(0, 0, 3), req.Escalations[0].At, time.Second)
		assert.WithinDuration(t, req.CreatedAt.AddDate(0, 0, 7), req.Escalations[1].At, time.Second)
		assert.WithinDuration(t, req.CreatedAt.AddDate(0, 0, 14), req.Escalations[2].At, time.Second)
	})
}
