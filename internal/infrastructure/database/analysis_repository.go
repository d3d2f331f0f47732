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

	"github.com/Fiore0312/controlli-sub000/internal/domain/analysis"
	domainerrors "github.com/Fiore0312/controlli-sub000/internal/domain/errors"
)

// AnalysisRepository persists daily analyses in PostgreSQL. Events and
// findings are stored as JSONB documents owned by their analysis row.
type AnalysisRepository struct {
	db *pgxpool.Pool
}

func NewAnalysisRepository(db *pgxpool.Pool) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Save writes the analysis with replace-on-write semantics: an existing row
// for the same (technician, date) key is replaced wholesale, new id included.
func (r *AnalysisRepository) Save(ctx context.Context, a *analysis.DailyAnalysis) error {
	events, err := json.Marshal(a.Events)
	if err != nil {
		return fmt.Errorf("marshaling events: %w", err)
	}
	superseded, err := json.Marshal(a.Superseded)
	if err != nil {
		return fmt.Errorf("marshaling superseded events: %w", err)
	}
	findings, err := json.Marshal(a.Findings)
	if err != nil {
		return fmt.Errorf("marshaling findings: %w", err)
	}
	recommendations, err := json.Marshal(a.Recommendations)
	if err != nil {
		return fmt.Errorf("marshaling recommendations: %w", err)
	}

	query := `
		INSERT INTO daily_analyses (
			id, technician_id, technician, date,
			events, superseded, findings,
			timeline_quality, coverage_percent, risk_score, final_quality,
			skipped_records, clock_in, clock_out,
			morning_gap_minutes, afternoon_gap_minutes, recommendations,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (technician_id, date) DO UPDATE SET
			id = EXCLUDED.id,
			technician = EXCLUDED.technician,
			events = EXCLUDED.events,
			superseded = EXCLUDED.superseded,
			findings = EXCLUDED.findings,
			timeline_quality = EXCLUDED.timeline_quality,
			coverage_percent = EXCLUDED.coverage_percent,
			risk_score = EXCLUDED.risk_score,
			final_quality = EXCLUDED.final_quality,
			skipped_records = EXCLUDED.skipped_records,
			clock_in = EXCLUDED.clock_in,
			clock_out = EXCLUDED.clock_out,
			morning_gap_minutes = EXCLUDED.morning_gap_minutes,
			afternoon_gap_minutes = EXCLUDED.afternoon_gap_minutes,
			recommendations = EXCLUDED.recommendations,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(ctx, query,
		a.ID, a.TechnicianID, a.Technician, a.Date,
		events, superseded, findings,
		a.TimelineQuality, a.CoveragePercent, a.RiskScore, a.FinalQuality,
		a.SkippedRecords, a.ClockIn, a.ClockOut,
		a.MorningGapMinutes, a.AfternoonGapMinutes, recommendations,
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving daily analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) GetByKey(ctx context.Context, technicianID uuid.UUID, date time.Time) (*analysis.DailyAnalysis, error) {
	query := selectAnalysis + ` WHERE technician_id = $1 AND date = $2`
	row := r.db.QueryRow(ctx, query, technicianID, date)
	a, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerrors.ErrAnalysisNotFound
	}
	return a, err
}

func (r *AnalysisRepository) History(ctx context.Context, technicianID uuid.UUID, before time.Time, windowDays int) ([]*analysis.DailyAnalysis, error) {
	query := selectAnalysis + `
		WHERE technician_id = $1 AND date < $2 AND date >= $3
		ORDER BY date ASC`
	from := before.AddDate(0, 0, -windowDays)

	rows, err := r.db.Query(ctx, query, technicianID, before, from)
	if err != nil {
		return nil, fmt.Errorf("querying analysis history: %w", err)
	}
	defer rows.Close()

	var history []*analysis.DailyAnalysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, a)
	}
	return history, rows.Err()
}

func (r *AnalysisRepository) Delete(ctx context.Context, technicianID uuid.UUID, date time.Time) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM daily_analyses WHERE technician_id = $1 AND date = $2`,
		technicianID, date)
	if err != nil {
		return fmt.Errorf("deleting daily analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainerrors.ErrAnalysisNotFound
	}
	return nil
}

const selectAnalysis = `
	SELECT id, technician_id, technician, date,
		events, superseded, findings,
		timeline_quality, coverage_percent, risk_score, final_quality,
		skipped_records, clock_in, clock_out,
		morning_gap_minutes, afternoon_gap_minutes, recommendations,
		created_at, updated_at
	FROM daily_analyses`

func scanAnalysis(row pgx.Row) (*analysis.DailyAnalysis, error) {
	var a analysis.DailyAnalysis
	var events, superseded, findings, recommendations []byte

	err := row.Scan(
		&a.ID, &a.TechnicianID, &a.Technician, &a.Date,
		&events, &superseded, &findings,
		&a.TimelineQuality, &a.CoveragePercent, &a.RiskScore, &a.FinalQuality,
		&a.SkippedRecords, &a.ClockIn, &a.ClockOut,
		&a.MorningGapMinutes, &a.AfternoonGapMinutes, &recommendations,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(recommendations) > 0 {
		if err := json.Unmarshal(recommendations, &a.Recommendations); err != nil {
			return nil, fmt.Errorf("unmarshaling recommendations: %w", err)
		}
	}

	if err := json.Unmarshal(events, &a.Events); err != nil {
		return nil, fmt.Errorf("unmarshaling events: %w", err)
	}
	if len(superseded) > 0 {
		if err := json.Unmarshal(superseded, &a.Superseded); err != nil {
			return nil, fmt.Errorf("unmarshaling superseded events: %w", err)
		}
	}
	if err := json.Unmarshal(findings, &a.Findings); err != nil {
		return nil, fmt.Errorf("unmarshaling findings: %w", err)
	}
	return &a, nil
}
