package correction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Fiore0312/controlli-sub000/internal/domain/errors"
	"github.com/Fiore0312/controlli-sub000/internal/domain/finding"
)

// Request tracks a correction cycle opened against a daily analysis. It
// references the analysis by id but lives independently: re-analysis does not
// delete an open request.
type Request struct {
	ID           uuid.UUID `json:"id"`
	AnalysisID   uuid.UUID `json:"analysis_id"`
	TechnicianID uuid.UUID `json:"technician_id"`
	AnalysisDate time.Time `json:"analysis_date"`

	Priority     Priority   `json:"priority"`
	Status       Status     `json:"status"`
	FindingCount int        `json:"finding_count"`
	Deadline     time.Time  `json:"deadline"`
	FollowUpAt   *time.Time `json:"follow_up_at,omitempty"`

	// Delivery schedule, computed at creation. Sending reminders and
	// escalation notices is a collaborator concern; the request only
	// carries the timetable.
	Reminders   []time.Time  `json:"reminders,omitempty"`
	Escalations []Escalation `json:"escalations,omitempty"`

	Response *Response `json:"response,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Escalation is one rung of the unanswered-request ladder.
type Escalation struct {
	Level EscalationLevel `json:"level"`
	At    time.Time       `json:"at"`
}

type EscalationLevel int

const (
	EscalationSupervisor EscalationLevel = iota
	EscalationManager
	EscalationDirector
)

func (l EscalationLevel) String() string {
	switch l {
	case EscalationSupervisor:
		return "supervisor"
	case EscalationManager:
		return "manager"
	case EscalationDirector:
		return "director"
	default:
		return "unknown"
	}
}

// Days after creation at which an unanswered request climbs the ladder.
var escalationOffsets = []struct {
	level EscalationLevel
	days  int
}{
	{EscalationSupervisor, 3},
	{EscalationManager, 7},
	{EscalationDirector, 14},
}

// Response is the technician's answer to a correction request. At most one
// accepted response exists per request.
type Response struct {
	ID             uuid.UUID    `json:"id"`
	Message        string       `json:"message"`
	Type           ResponseType `json:"type"`
	HasCorrections bool         `json:"has_corrections"`
	HasAttachments bool         `json:"has_attachments"`
	QualityScore   int          `json:"quality_score"`
	ReceivedAt     time.Time    `json:"received_at"`
}

type Status int

const (
	StatusSent Status = iota
	StatusInProgress
	StatusCorrected
)

func (s Status) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusInProgress:
		return "in_progress"
	case StatusCorrected:
		return "corrected"
	default:
		return "unknown"
	}
}

type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityUrgent:
		return "urgent"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// DeadlineDays is the response window granted for this priority.
func (p Priority) DeadlineDays() int {
	switch p {
	case PriorityUrgent:
		return 1
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 3
	default:
		return 5
	}
}

// ReminderIntervalDays is the cadence of reminders before the deadline.
func (p Priority) ReminderIntervalDays() int {
	switch p {
	case PriorityUrgent, PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

type ResponseType int

const (
	ResponseTypeComment ResponseType = iota
	ResponseTypeJustification
	ResponseTypeCorrection
)

func (t ResponseType) String() string {
	switch t {
	case ResponseTypeCorrection:
		return "correction"
	case ResponseTypeJustification:
		return "justification"
	default:
		return "comment"
	}
}

// ParseResponseType maps an inbound label to a ResponseType. Unknown labels
// fall back to comment.
func ParseResponseType(s string) ResponseType {
	switch s {
	case "correction":
		return ResponseTypeCorrection
	case "justification":
		return ResponseTypeJustification
	default:
		return ResponseTypeComment
	}
}

const (
	acceptanceThreshold = 70
	followUpDays        = 2
)

// DerivePriority maps a finding set onto a request priority. Any critical
// finding makes the request urgent; more than two highs make it high; more
// than five findings in total make it medium.
func DerivePriority(findings []*finding.Finding) Priority {
	highs := 0
	for _, f := range findings {
		if f.Severity == finding.SeverityCritical {
			return PriorityUrgent
		}
		if f.Severity == finding.SeverityHigh {
			highs++
		}
	}
	if highs > 2 {
		return PriorityHigh
	}
	if len(findings) > 5 {
		return PriorityMedium
	}
	return PriorityLow
}

// NewRequest opens a correction request for an analysis with findings. The
// analysis date is the stable key: re-analysis regenerates the analysis id,
// so open requests are looked up by (technician, date) instead.
func NewRequest(analysisID, technicianID uuid.UUID, analysisDate time.Time, findings []*finding.Finding) (*Request, error) {
	if len(findings) == 0 {
		return nil, errors.NewValidationError("NO_FINDINGS",
			"cannot open a correction request without findings")
	}
	now := time.Now().UTC()
	p := DerivePriority(findings)
	deadline := now.AddDate(0, 0, p.DeadlineDays())
	return &Request{
		ID:           uuid.New(),
		AnalysisID:   analysisID,
		TechnicianID: technicianID,
		AnalysisDate: analysisDate,
		Priority:     p,
		Status:       StatusSent,
		FindingCount: len(findings),
		Deadline:     deadline,
		Reminders:    reminderSchedule(p, now, deadline),
		Escalations:  escalationLadder(now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// reminderSchedule spaces reminders at the priority's cadence from creation
// up to and including the deadline day.
func reminderSchedule(p Priority, from, deadline time.Time) []time.Time {
	var out []time.Time
	step := p.ReminderIntervalDays()
	for at := from.AddDate(0, 0, step); !at.After(deadline); at = at.AddDate(0, 0, step) {
		out = append(out, at)
	}
	return out
}

func escalationLadder(from time.Time) []Escalation {
	out := make([]Escalation, 0, len(escalationOffsets))
	for _, o := range escalationOffsets {
		out = append(out, Escalation{Level: o.level, At: from.AddDate(0, 0, o.days)})
	}
	return out
}

// ScoreResponse computes the response quality score. Base 50, plus 10 for a
// substantive message, 20 for attached corrections, 10 for attachments, 20
// for an explicit correction type. Clamped to [0,100].
func ScoreResponse(r *Response) int {
	score := 50
	if len(r.Message) > 100 {
		score += 10
	}
	if r.HasCorrections {
		score += 20
	}
	if r.HasAttachments {
		score += 10
	}
	if r.Type == ResponseTypeCorrection {
		score += 20
	}
	if score > 100 {
		score = 100
	}
	return score
}

// ApplyResponse scores an inbound response and advances the state machine.
// A score at or above the acceptance threshold closes the request as
// corrected; anything lower moves it to in_progress with a follow-up
// scheduled two days out. Responses on a corrected request are rejected.
func (r *Request) ApplyResponse(resp *Response) error {
	if r.Status == StatusCorrected {
		return errors.NewBusinessError("ALREADY_CORRECTED",
			"correction request is already closed").WithDetails(map[string]interface{}{
			"request_id": r.ID.String(),
		})
	}
	if resp.Message == "" {
		return errors.ErrEmptyResponseMessage
	}

	resp.QualityScore = ScoreResponse(resp)
	if resp.ReceivedAt.IsZero() {
		resp.ReceivedAt = time.Now().UTC()
	}
	r.Response = resp
	r.UpdatedAt = time.Now().UTC()

	if resp.QualityScore >= acceptanceThreshold {
		r.Status = StatusCorrected
		r.FollowUpAt = nil
		return nil
	}
	r.Status = StatusInProgress
	followUp := resp.ReceivedAt.AddDate(0, 0, followUpDays)
	r.FollowUpAt = &followUp
	return nil
}

// Overdue reports whether the deadline has passed without a closing response.
func (r *Request) Overdue(now time.Time) bool {
	return r.Status != StatusCorrected && now.After(r.Deadline)
}

// Repository persists correction requests.
type Repository interface {
	Save(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	// GetOpenByKey finds the open request for a technician's analysis date,
	// or returns a not-found error.
	GetOpenByKey(ctx context.Context, technicianID uuid.UUID, analysisDate time.Time) (*Request, error)
	ListOpenByTechnician(ctx context.Context, technicianID uuid.UUID) ([]*Request, error)
	ListOpen(ctx context.Context) ([]*Request, error)
	ListOverdue(ctx context.Context, now time.Time) ([]*Request, error)
}
