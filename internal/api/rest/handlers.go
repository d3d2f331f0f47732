package rest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Fiore0312/controlli-sub000/internal/domain/analysis"
	"github.com/Fiore0312/controlli-sub000/internal/domain/correction"
	"github.com/Fiore0312/controlli-sub000/internal/domain/errors"
)

// AuditService is the slice of the audit service the handlers need.
type AuditService interface {
	AnalyzeDay(ctx context.Context, technicianID uuid.UUID, date time.Time) (*analysis.DailyAnalysis, error)
	GetAnalysis(ctx context.Context, technicianID uuid.UUID, date time.Time) (*analysis.DailyAnalysis, error)
	RespondToCorrection(ctx context.Context, requestID uuid.UUID, resp *correction.Response) (*correction.Request, error)
}

// Handler holds the HTTP handlers for the audit API.
type Handler struct {
	service  AuditService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewHandler(service AuditService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// AnalyzeRequest asks for a full audit pass over one technician and date.
type AnalyzeRequest struct {
	TechnicianID string `json:"technician_id" validate:"required,uuid4"`
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
}

// CorrectionResponseRequest carries a technician's answer to an open
// correction request.
type CorrectionResponseRequest struct {
	Message        string `json:"message" validate:"required,min=1,max=4000"`
	Type           string `json:"type" validate:"omitempty,oneof=comment justification correction"`
	HasCorrections bool   `json:"has_corrections"`
	HasAttachments bool   `json:"has_attachments"`
	QualityScore   int    `json:"quality_score" validate:"min=0,max=100"`
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewValidationError("INVALID_BODY", "request body is not valid JSON"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, validationError(err))
		return
	}

	technicianID, err := uuid.Parse(req.TechnicianID)
	if err != nil {
		writeError(w, errors.NewValidationError("INVALID_TECHNICIAN_ID", "technician_id is not a valid UUID"))
		return
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
	if err != nil {
		writeError(w, errors.NewValidationError("INVALID_DATE", "date must be formatted as YYYY-MM-DD"))
		return
	}

	a, err := h.service.AnalyzeDay(r.Context(), technicianID, date)
	if err != nil {
		h.logger.Warn("analysis failed",
			zap.String("technician_id", technicianID.String()),
			zap.String("date", req.Date),
			zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	technicianID, date, err := analysisKey(r)
	if err != nil {
		writeError(w, err)
		return
	}
	a, err := h.service.GetAnalysis(r.Context(), technicianID, date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleGetFindings(w http.ResponseWriter, r *http.Request) {
	technicianID, date, err := analysisKey(r)
	if err != nil {
		writeError(w, err)
		return
	}
	a, err := h.service.GetAnalysis(r.Context(), technicianID, date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"technician_id": a.TechnicianID,
		"date":          a.Date.Format("2006-01-02"),
		"findings":      a.Findings,
	})
}

func (h *Handler) handleCorrectionResponse(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, errors.NewValidationError("INVALID_REQUEST_ID", "correction request id is not a valid UUID"))
		return
	}

	var req CorrectionResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewValidationError("INVALID_BODY", "request body is not valid JSON"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, validationError(err))
		return
	}

	resp := &correction.Response{
		ID:             uuid.New(),
		Message:        req.Message,
		Type:           correction.ParseResponseType(req.Type),
		HasCorrections: req.HasCorrections,
		HasAttachments: req.HasAttachments,
		QualityScore:   req.QualityScore,
		ReceivedAt:     time.Now().UTC(),
	}

	updated, err := h.service.RespondToCorrection(r.Context(), requestID, resp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// analysisKey extracts the (technician, date) pair from the request path.
func analysisKey(r *http.Request) (uuid.UUID, time.Time, error) {
	technicianID, err := uuid.Parse(r.PathValue("technician"))
	if err != nil {
		return uuid.Nil, time.Time{}, errors.NewValidationError("INVALID_TECHNICIAN_ID", "technician id is not a valid UUID")
	}
	date, err := time.ParseInLocation("2006-01-02", r.PathValue("date"), time.UTC)
	if err != nil {
		return uuid.Nil, time.Time{}, errors.NewValidationError("INVALID_DATE", "date must be formatted as YYYY-MM-DD")
	}
	return technicianID, date, nil
}

// validationError flattens validator output into a single field-level message.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return errors.NewValidationError("VALIDATION_FAILED", "field "+first.Field()+" failed rule "+first.Tag())
	}
	return errors.NewValidationError("VALIDATION_FAILED", err.Error())
}
