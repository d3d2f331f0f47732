package audit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fiore0312/controlli-sub000/internal/domain/analysis"
	"github.com/Fiore0312/controlli-sub000/internal/domain/correction"
	"github.com/Fiore0312/controlli-sub000/internal/domain/errors"
	"github.com/Fiore0312/controlli-sub000/internal/domain/timeline"
)

type memAnalysisRepo struct {
	mu   sync.Mutex
	rows map[string]*analysis.DailyAnalysis
}

func newMemAnalysisRepo() *memAnalysisRepo {
	return &memAnalysisRepo{rows: make(map[string]*analysis.DailyAnalysis)}
}

func analysisKey(technicianID uuid.UUID, date time.Time) string {
	return technicianID.String() + "/" + date.Format("2006-01-02")
}

func (r *memAnalysisRepo) Save(_ context.Context, a *analysis.DailyAnalysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[analysisKey(a.TechnicianID, a.Date)] = a
	return nil
}

func (r *memAnalysisRepo) GetByKey(_ context.Context, technicianID uuid.UUID, date time.Time) (*analysis.DailyAnalysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[analysisKey(technicianID, date)]
	if !ok {
		return nil, errors.ErrAnalysisNotFound
	}
	return a, nil
}

func (r *memAnalysisRepo) History(_ context.Context, technicianID uuid.UUID, before time.Time, windowDays int) ([]*analysis.DailyAnalysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := before.AddDate(0, 0, -windowDays)
	var out []*analysis.DailyAnalysis
	for _, a := range r.rows {
		if a.TechnicianID == technicianID && a.Date.Before(before) && !a.Date.Before(cutoff) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *memAnalysisRepo) Delete(_ context.Context, technicianID uuid.UUID, date time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, analysisKey(technicianID, date))
	return nil
}

type memCorrectionRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*correction.Request
}

func newMemCorrectionRepo() *memCorrectionRepo {
	return &memCorrectionRepo{rows: make(map[uuid.UUID]*correction.Request)}
}

func (r *memCorrectionRepo) Save(_ context.Context, req *correction.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[req.ID] = req
	return nil
}

func (r *memCorrectionRepo) GetByID(_ context.Context, id uuid.UUID) (*correction.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.rows[id]
	if !ok {
		return nil, errors.ErrCorrectionNotFound
	}
	return req, nil
}

func (r *memCorrectionRepo) GetOpenByKey(_ context.Context, technicianID uuid.UUID, date time.Time) (*correction.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.rows {
		if req.TechnicianID == technicianID && req.AnalysisDate.Equal(date) && req.Status != correction.StatusCorrected {
			return req, nil
		}
	}
	return nil, errors.ErrCorrectionNotFound
}

func (r *memCorrectionRepo) ListOpenByTechnician(_ context.Context, technicianID uuid.UUID) ([]*correction.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*correction.Request
	for _, req := range r.rows {
		if req.TechnicianID == technicianID && req.Status != correction.StatusCorrected {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *memCorrectionRepo) ListOpen(_ context.Context) ([]*correction.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*correction.Request
	for _, req := range r.rows {
		if req.Status != correction.StatusCorrected {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *memCorrectionRepo) ListOverdue(_ context.Context, now time.Time) ([]*correction.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*correction.Request
	for _, req := range r.rows {
		if req.Overdue(now) {
			out = append(out, req)
		}
	}
	return out, nil
}

type memDirectory struct {
	names map[uuid.UUID]string
}

func (d *memDirectory) Lookup(_ context.Context, id uuid.UUID) (string, error) {
	name, ok := d.names[id]
	if !ok {
		return "", errors.ErrTechnicianNotFound
	}
	return name, nil
}

type memRecordProvider struct {
	records map[string]timeline.SourceRecords
}

func (p *memRecordProvider) Records(_ context.Context, technicianID uuid.UUID, date time.Time) (timeline.SourceRecords, error) {
	return p.records[analysisKey(technicianID, date)], nil
}

type serviceFixture struct {
	svc         *Service
	analyses    *memAnalysisRepo
	corrections *memCorrectionRepo
	records     *memRecordProvider
	techID      uuid.UUID
}

func newServiceFixture(t *testing.T, autoCorrection bool) *serviceFixture {
	t.Helper()
	techID := uuid.New()
	records := &memRecordProvider{records: make(map[string]timeline.SourceRecords)}
	analyses := newMemAnalysisRepo()
	corrections := newMemCorrectionRepo()

	svc := NewService(Deps{
		TimelineConfig: timeline.DefaultConfig(),
		AnomalyConfig:  DefaultAnomalyConfig(),
		AutoCorrection: autoCorrection,
		Analyses:       analyses,
		Corrections:    corrections,
		Directory:      &memDirectory{names: map[uuid.UUID]string{techID: "Mario Rossi"}},
		Records:        records,
	})
	return &serviceFixture{
		svc: svc, analyses: analyses, corrections: corrections,
		records: records, techID: techID,
	}
}

func consistentDayRecords() timeline.SourceRecords {
	return timeline.SourceRecords{
		Ticketing: []timeline.TicketingRecord{{
			ID: "T1", Client: "ClientX", Description: "maintenance",
			Start: "2025-03-10 09:00:00", End: "2025-03-10 11:00:00",
			LocationType: "onsite",
		}},
		Vehicle: []timeline.VehicleRecord{{
			Destination: "ClientX",
			Start:       "2025-03-10 08:30:00", End: "2025-03-10 09:00:00",
		}},
	}
}

func contradictoryDayRecords() timeline.SourceRecords {
	return timeline.SourceRecords{
		Ticketing: []timeline.TicketingRecord{{
			ID: "T1", Client: "ClientY", Description: "remote support",
			Start: "2025-03-10 09:00:00", End: "2025-03-10 11:00:00",
			LocationType: "remote",
		}},
		Vehicle: []timeline.VehicleRecord{{
			Destination: "ClientZ",
			Start:       "2025-03-10 09:15:00", End: "2025-03-10 09:45:00",
		}},
	}
}

func TestAnalyzeDayConsistent(t *testing.T) {
	fx := newServiceFixture(t, false)
	fx.records.records[analysisKey(fx.techID, testDay)] = consistentDayRecords()

	a, err := fx.svc.AnalyzeDay(context.Background(), fx.techID, testDay)
	require.NoError(t, err)

	assert.Len(t, a.Events, 2)
	assert.Empty(t, a.Findings)
	assert.GreaterOrEqual(t, a.FinalQuality.Float(), 90.0)
	assert.Equal(t, 0.0, a.RiskScore)
	assert.Equal(t, 0, a.SkippedRecords)

	stored, err := fx.analyses.GetByKey(context.Background(), fx.techID, testDay)
	require.NoError(t, err)
	assert.Equal(t, a.ID, stored.ID)
}

func TestAnalyzeDayContradiction(t *testing.T) {
	fx := newServiceFixture(t, false)
	fx.records.records[analysisKey(fx.techID, testDay)] = contradictoryDayRecords()

	a, err := fx.svc.AnalyzeDay(context.Background(), fx.techID, testDay)
	require.NoError(t, err)

	require.NotEmpty(t, a.Findings)
	assert.Equal(t, "remote_with_vehicle", a.Findings[0].CheckType)
	assert.Equal(t, 1, a.Findings[0].Rank)
	assert.LessOrEqual(t, a.FinalQuality.Float(), a.TimelineQuality.Float()-20)
}

func TestAnalyzeDayUnknownTechnician(t *testing.T) {
	fx := newServiceFixture(t, false)

	_, err := fx.svc.AnalyzeDay(context.Background(), uuid.New(), testDay)
	require.Error(t, err)
}

func TestAnalyzeDayIdempotent(t *testing.T) {
	fx := newServiceFixture(t, false)
	fx.records.records[analysisKey(fx.techID, testDay)] = contradictoryDayRecords()

	first, err := fx.svc.AnalyzeDay(context.Background(), fx.techID, testDay)
	require.NoError(t, err)
	second, err := fx.svc.AnalyzeDay(context.Background(), fx.techID, testDay)
	require.NoError(t, err)

	// Replace-on-write: one row per key, identical content on re-run.
	assert.Len(t, fx.analyses.rows, 1)
	require.Equal(t, len(first.Events), len(second.Events))
	require.Equal(t, len(first.Findings), len(second.Findings))
	for i := range first.Findings {
		assert.Equal(t, first.Findings[i].CheckType, second.Findings[i].CheckType)
		assert.Equal(t, first.Findings[i].Rank, second.Findings[i].Rank)
	}
	assert.Equal(t, first.FinalQuality, second.FinalQuality)
	assert.Equal(t, first.RiskScore, second.RiskScore)
}

func TestAnalyzeDayOpensCorrectionRequest(t *testing.T) {
	fx := newServiceFixture(t, true)
	fx.records.records[analysisKey(fx.techID, testDay)] = contradictoryDayRecords()

	_, err := fx.svc.AnalyzeDay(context.Background(), fx.techID, testDay)
	require.NoError(t, err)

	open, err := fx.corrections.ListOpenByTechnician(context.Background(), fx.techID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, correction.PriorityUrgent, open[0].Priority)

	// Re-analysis must not open a second request for the same day.
	_, err = fx.svc.AnalyzeDay(context.Background(), fx.techID, testDay)
	require.NoError(t, err)
	open, err = fx.corrections.ListOpenByTechnician(context.Background(), fx.techID)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestRespondToCorrection(t *testing.T) {
	fx := newServiceFixture(t, true)
	fx.records.records[analysisKey(fx.techID, testDay)] = contradictoryDayRecords()

	_, err := fx.svc.AnalyzeDay(context.Background(), fx.techID, testDay)
	require.NoError(t, err)
	open, err := fx.corrections.ListOpenByTechnician(context.Background(), fx.techID)
	require.NoError(t, err)
	require.Len(t, open, 1)

	req, err := fx.svc.RespondToCorrection(context.Background(), open[0].ID, &correction.Response{
		Message:        "vehicle log was wrong, fixed the destination and times",
		Type:           correction.ResponseTypeCorrection,
		HasCorrections: true,
	})
	require.NoError(t, err)
	assert.Equal(t, correction.StatusCorrected, req.Status)
}

func TestAnalyzeRangeSkipsUnknownTechnicians(t *testing.T) {
	fx := newServiceFixture(t, false)
	unknown := uuid.New()
	from := testDay
	to := testDay.AddDate(0, 0, 1)
	fx.records.records[analysisKey(fx.techID, from)] = consistentDayRecords()

	res, err := fx.svc.AnalyzeRange(context.Background(), []uuid.UUID{fx.techID, unknown}, from, to)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Analyzed)
	assert.Equal(t, 2, res.Skipped)
	assert.Len(t, res.Failures, 2)

	_, err = fx.svc.AnalyzeRange(context.Background(), []uuid.UUID{fx.techID}, to, from)
	assert.Error(t, err)
}

func TestGetAnalysisFallsBackToRepository(t *testing.T) {
	fx := newServiceFixture(t, false)
	fx.records.records[analysisKey(fx.techID, testDay)] = consistentDayRecords()

	_, err := fx.svc.GetAnalysis(context.Background(), fx.techID, testDay)
	require.Error(t, err)

	saved, err := fx.svc.AnalyzeDay(context.Background(), fx.techID, testDay)
	require.NoError(t, err)

	got, err := fx.svc.GetAnalysis(context.Background(), fx.techID, testDay)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
}

func TestCoverageMonotonicity(t *testing.T) {
	fx := newServiceFixture(t, false)
	base := consistentDayRecords()
	fx.records.records[analysisKey(fx.techID, testDay)] = base

	before, err := fx.svc.AnalyzeDay(context.Background(), fx.techID, testDay)
	require.NoError(t, err)

	// Add a non-overlapping afternoon activity.
	extended := consistentDayRecords()
	extended.Ticketing = append(extended.Ticketing, timeline.TicketingRecord{
		ID: "T2", Client: "ClientW", Description: "install",
		Start: "2025-03-10 15:00:00", End: "2025-03-10 16:00:00",
		LocationType: "remote",
	})
	fx.records.records[analysisKey(fx.techID, testDay)] = extended

	after, err := fx.svc.AnalyzeDay(context.Background(), fx.techID, testDay)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, after.CoveragePercent, before.CoveragePercent)
}
