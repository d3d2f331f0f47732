package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Fiore0312/controlli-sub000/internal/domain/correction"
	domainerrors "github.com/Fiore0312/controlli-sub000/internal/domain/errors"
)

// CorrectionRepository persists correction requests in PostgreSQL. The
// technician's response, when present, is stored as a JSONB document.
type CorrectionRepository struct {
	db *pgxpool.Pool
}

func NewCorrectionRepository(db *pgxpool.Pool) *CorrectionRepository {
	return &CorrectionRepository{db: db}
}

func (r *CorrectionRepository) Save(ctx context.Context, req *correction.Request) error {
	var response []byte
	if req.Response != nil {
		var err error
		response, err = json.Marshal(req.Response)
		if err != nil {
			return fmt.Errorf("marshaling correction response: %w", err)
		}
	}
	reminders, err := json.Marshal(req.Reminders)
	if err != nil {
		return fmt.Errorf("marshaling reminder schedule: %w", err)
	}
	escalations, err := json.Marshal(req.Escalations)
	if err != nil {
		return fmt.Errorf("marshaling escalation ladder: %w", err)
	}

	query := `
		INSERT INTO correction_requests (
			id, analysis_id, technician_id, analysis_date,
			priority, status, finding_count, deadline, follow_up_at,
			reminders, escalations, response, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			analysis_id = EXCLUDED.analysis_id,
			priority = EXCLUDED.priority,
			status = EXCLUDED.status,
			finding_count = EXCLUDED.finding_count,
			deadline = EXCLUDED.deadline,
			follow_up_at = EXCLUDED.follow_up_at,
			reminders = EXCLUDED.reminders,
			escalations = EXCLUDED.escalations,
			response = EXCLUDED.response,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(ctx, query,
		req.ID, req.AnalysisID, req.TechnicianID, req.AnalysisDate,
		int(req.Priority), int(req.Status), req.FindingCount, req.Deadline, req.FollowUpAt,
		reminders, escalations, response, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving correction request: %w", err)
	}
	return nil
}

func (r *CorrectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*correction.Request, error) {
	query := selectCorrection + ` WHERE id = $1`
	req, err := scanCorrection(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerrors.ErrCorrectionNotFound
	}
	return req, err
}

// GetOpenByKey finds the not-yet-corrected request for a technician's
// analysis date. The analysis date is the stable key: analysis ids change
// on every re-run.
func (r *CorrectionRepository) GetOpenByKey(ctx context.Context, technicianID uuid.UUID, analysisDate time.Time) (*correction.Request, error) {
	query := selectCorrection + `
		WHERE technician_id = $1 AND analysis_date = $2 AND status != $3
		ORDER BY created_at DESC
		LIMIT 1`
	req, err := scanCorrection(r.db.QueryRow(ctx, query,
		technicianID, analysisDate, int(correction.StatusCorrected)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerrors.ErrCorrectionNotFound
	}
	return req, err
}

func (r *CorrectionRepository) ListOpenByTechnician(ctx context.Context, technicianID uuid.UUID) ([]*correction.Request, error) {
	query := selectCorrection + `
		WHERE technician_id = $1 AND status != $2
		ORDER BY deadline ASC`
	return r.queryCorrections(ctx, query, technicianID, int(correction.StatusCorrected))
}

func (r *CorrectionRepository) ListOpen(ctx context.Context) ([]*correction.Request, error) {
	query := selectCorrection + `
		WHERE status != $1
		ORDER BY deadline ASC`
	return r.queryCorrections(ctx, query, int(correction.StatusCorrected))
}

func (r *CorrectionRepository) ListOverdue(ctx context.Context, now time.Time) ([]*correction.Request, error) {
	query := selectCorrection + `
		WHERE status != $1 AND deadline < $2
		ORDER BY deadline ASC`
	return r.queryCorrections(ctx, query, int(correction.StatusCorrected), now)
}

func (r *CorrectionRepository) queryCorrections(ctx context.Context, query string, args ...any) ([]*correction.Request, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying correction requests: %w", err)
	}
	defer rows.Close()

	var requests []*correction.Request
	for rows.Next() {
		req, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

const selectCorrection = `
	SELECT id, analysis_id, technician_id, analysis_date,
		priority, status, finding_count, deadline, follow_up_at,
		reminders, escalations, response, created_at, updated_at
	FROM correction_requests`

func scanCorrection(row pgx.Row) (*correction.Request, error) {
	var req correction.Request
	var priority, status int
	var reminders, escalations, response []byte

	err := row.Scan(
		&req.ID, &req.AnalysisID, &req.TechnicianID, &req.AnalysisDate,
		&priority, &status, &req.FindingCount, &req.Deadline, &req.FollowUpAt,
		&reminders, &escalations, &response, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}

	req.Priority = correction.Priority(priority)
	req.Status = correction.Status(status)
	if len(reminders) > 0 {
		if err := json.Unmarshal(reminders, &req.Reminders); err != nil {
			return nil, fmt.Errorf("unmarshaling reminder schedule: %w", err)
		}
	}
	if len(escalations) > 0 {
		if err := json.Unmarshal(escalations, &req.Escalations); err != nil {
			return nil, fmt.Errorf("unmarshaling escalation ladder: %w", err)
		}
	}
	if len(response) > 0 {
		req.Response = &correction.Response{}
		if err := json.Unmarshal(response, req.Response); err != nil {
			return nil, fmt.Errorf("unmarshaling correction response: %w", err)
		}
	}
	return &req, nil
}
