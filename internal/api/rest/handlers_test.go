package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fiore0312/controlli-sub000/internal/domain/analysis"
	"github.com/Fiore0312/controlli-sub000/internal/domain/correction"
	"github.com/Fiore0312/controlli-sub000/internal/domain/errors"
)

type stubService struct {
	analyzeFn func(ctx context.Context, technicianID uuid.UUID, date time.Time) (*analysis.DailyAnalysis, error)
	getFn     func(ctx context.Context, technicianID uuid.UUID, date time.Time) (*analysis.DailyAnalysis, error)
	respondFn func(ctx context.Context, requestID uuid.UUID, resp *correction.Response) (*correction.Request, error)
}

func (s *stubService) AnalyzeDay(ctx context.Context, technicianID uuid.UUID, date time.Time) (*analysis.DailyAnalysis, error) {
	return s.analyzeFn(ctx, technicianID, date)
}

func (s *stubService) GetAnalysis(ctx context.Context, technicianID uuid.UUID, date time.Time) (*analysis.DailyAnalysis, error) {
	return s.getFn(ctx, technicianID, date)
}

func (s *stubService) RespondToCorrection(ctx context.Context, requestID uuid.UUID, resp *correction.Response) (*correction.Request, error) {
	return s.respondFn(ctx, requestID, resp)
}

func TestHandleAnalyzeSuccess(t *testing.T) {
	technicianID := uuid.New()
	var gotDate time.Time
	svc := &stubService{
		analyzeFn: func(_ context.Context, id uuid.UUID, date time.Time) (*analysis.DailyAnalysis, error) {
			assert.Equal(t, technicianID, id)
			gotDate = date
			return analysis.New(id, "Mario Rossi", date), nil
		},
	}
	h := NewHandler(svc, nil)

	body := `{"technician_id":"` + technicianID.String() + `","date":"2025-03-10"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.handleAnalyze(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), gotDate)

	var got analysis.DailyAnalysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, technicianID, got.TechnicianID)
	assert.Equal(t, "Mario Rossi", got.Technician)
}

func TestHandleAnalyzeRejectsBadBody(t *testing.T) {
	h := NewHandler(&stubService{}, nil)

	cases := []struct {
		name string
		body string
	}{
		{"not json", `{{`},
		{"missing fields", `{}`},
		{"bad uuid", `{"technician_id":"nope","date":"2025-03-10"}`},
		{"bad date", `{"technician_id":"` + uuid.NewString() + `","date":"10/03/2025"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.handleAnalyze(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleAnalyzeUnknownTechnician(t *testing.T) {
	svc := &stubService{
		analyzeFn: func(_ context.Context, _ uuid.UUID, _ time.Time) (*analysis.DailyAnalysis, error) {
			return nil, errors.ErrTechnicianNotFound
		},
	}
	h := NewHandler(svc, nil)

	body := `{"technician_id":"` + uuid.NewString() + `","date":"2025-03-10"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.handleAnalyze(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Error.Code)
}

func TestHandleGetAnalysis(t *testing.T) {
	technicianID := uuid.New()
	svc := &stubService{
		getFn: func(_ context.Context, id uuid.UUID, date time.Time) (*analysis.DailyAnalysis, error) {
			return analysis.New(id, "Mario Rossi", date), nil
		},
	}
	h := NewHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/x/y", nil)
	req.SetPathValue("technician", technicianID.String())
	req.SetPathValue("date", "2025-03-10")
	rec := httptest.NewRecorder()
	h.handleGetAnalysis(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleGetAnalysisNotFound(t *testing.T) {
	svc := &stubService{
		getFn: func(_ context.Context, _ uuid.UUID, _ time.Time) (*analysis.DailyAnalysis, error) {
			return nil, errors.ErrAnalysisNotFound
		},
	}
	h := NewHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/x/y", nil)
	req.SetPathValue("technician", uuid.NewString())
	req.SetPathValue("date", "2025-03-10")
	rec := httptest.NewRecorder()
	h.handleGetAnalysis(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetFindings(t *testing.T) {
	technicianID := uuid.New()
	svc := &stubService{
		getFn: func(_ context.Context, id uuid.UUID, date time.Time) (*analysis.DailyAnalysis, error) {
			return analysis.New(id, "Mario Rossi", date), nil
		},
	}
	h := NewHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/x/y/findings", nil)
	req.SetPathValue("technician", technicianID.String())
	req.SetPathValue("date", "2025-03-10")
	rec := httptest.NewRecorder()
	h.handleGetFindings(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "findings")
	assert.Contains(t, body, "technician_id")
}

func TestHandleCorrectionResponse(t *testing.T) {
	requestID := uuid.New()
	var gotResp *correction.Response
	svc := &stubService{
		respondFn: func(_ context.Context, id uuid.UUID, resp *correction.Response) (*correction.Request, error) {
			assert.Equal(t, requestID, id)
			gotResp = resp
			return &correction.Request{ID: id, Status: correction.StatusCorrected}, nil
		},
	}
	h := NewHandler(svc, nil)

	body := `{"message":"timesheet fixed","type":"correction","has_corrections":true,"quality_score":85}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/corrections/x/response", strings.NewReader(body))
	req.SetPathValue("id", requestID.String())
	rec := httptest.NewRecorder()
	h.handleCorrectionResponse(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotResp)
	assert.Equal(t, "timesheet fixed", gotResp.Message)
	assert.Equal(t, correction.ResponseTypeCorrection, gotResp.Type)
	assert.True(t, gotResp.HasCorrections)
	assert.Equal(t, 85, gotResp.QualityScore)
	assert.NotEqual(t, uuid.Nil, gotResp.ID)
	assert.False(t, gotResp.ReceivedAt.IsZero())
}

func TestHandleCorrectionResponseValidation(t *testing.T) {
	h := NewHandler(&stubService{}, nil)

	cases := []struct {
		name string
		id   string
		body string
	}{
		{"bad id", "nope", `{"message":"hi"}`},
		{"empty message", uuid.NewString(), `{"message":""}`},
		{"bad type", uuid.NewString(), `{"message":"hi","type":"shrug"}`},
		{"score out of range", uuid.NewString(), `{"message":"hi","quality_score":120}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/corrections/x/response", strings.NewReader(tc.body))
			req.SetPathValue("id", tc.id)
			rec := httptest.NewRecorder()
			h.handleCorrectionResponse(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
