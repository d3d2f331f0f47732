package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Fiore0312/controlli-sub000/internal/domain/analysis"
	"github.com/Fiore0312/controlli-sub000/internal/domain/correction"
	"github.com/Fiore0312/controlli-sub000/internal/domain/errors"
	"github.com/Fiore0312/controlli-sub000/internal/domain/finding"
	"github.com/Fiore0312/controlli-sub000/internal/domain/timeline"
	"github.com/Fiore0312/controlli-sub000/internal/metrics"
)

// Service orchestrates one full audit pass: timeline reconstruction, the
// cross-source check battery, anomaly scoring against history, consolidation
// and persistence. One (technician, date) pair is one unit of work;
// re-analysis replaces the prior result for that key.
type Service struct {
	cfg       timeline.Config
	builder   *timeline.Builder
	validator *CrossValidator
	scorer    *AnomalyScorer

	analyses    analysis.Repository
	corrections correction.Repository
	directory   analysis.TechnicianDirectory
	records     RecordProvider
	cache       AnalysisCache

	windowDays     int
	autoCorrection bool
	batchWorkers   int

	logger  *zap.Logger
	tracer  trace.Tracer
	metrics *metrics.AuditMetrics
}

// Deps bundles the service dependencies.
type Deps struct {
	TimelineConfig timeline.Config
	AnomalyConfig  AnomalyConfig
	AutoCorrection bool
	// BatchWorkers caps concurrent units in AnalyzeRange; zero means serial.
	BatchWorkers int

	Analyses    analysis.Repository
	Corrections correction.Repository
	Directory   analysis.TechnicianDirectory
	Records     RecordProvider
	Cache       AnalysisCache

	Logger  *zap.Logger
	Tracer  trace.Tracer
	Metrics *metrics.AuditMetrics
}

func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := d.Tracer
	if tracer == nil {
		tracer = trace.NewNoopTracerProvider().Tracer("audit")
	}
	return &Service{
		cfg:            d.TimelineConfig,
		builder:        timeline.NewBuilder(d.TimelineConfig),
		validator:      NewCrossValidator(d.TimelineConfig),
		scorer:         NewAnomalyScorer(d.AnomalyConfig, d.TimelineConfig),
		analyses:       d.Analyses,
		corrections:    d.Corrections,
		directory:      d.Directory,
		records:        d.Records,
		cache:          d.Cache,
		windowDays:     d.AnomalyConfig.WindowDays,
		autoCorrection: d.AutoCorrection,
		batchWorkers:   d.BatchWorkers,
		logger:         logger,
		tracer:         tracer,
		metrics:        d.Metrics,
	}
}

// AnalyzeDay runs the full pipeline for one technician and date. An unknown
// technician is fatal for this unit of work only; malformed records are
// skipped and counted, never fatal.
func (s *Service) AnalyzeDay(ctx context.Context, technicianID uuid.UUID, date time.Time) (*analysis.DailyAnalysis, error) {
	ctx, span := s.tracer.Start(ctx, "audit.AnalyzeDay",
		trace.WithAttributes(
			attribute.String("technician_id", technicianID.String()),
			attribute.String("date", date.Format("2006-01-02")),
		))
	defer span.End()
	started := time.Now()

	name, err := s.directory.Lookup(ctx, technicianID)
	if err != nil {
		s.observeOutcome("unknown_technician", started)
		return nil, errors.Wrap(err, "technician identity could not be resolved")
	}

	records, err := s.records.Records(ctx, technicianID, date)
	if err != nil {
		s.observeOutcome("load_failed", started)
		return nil, errors.Wrap(err, "source records could not be loaded")
	}

	a := analysis.New(technicianID, name, date)
	result := s.builder.Build(a.Date, records)
	a.AttachTimeline(result)

	history, err := s.analyses.History(ctx, technicianID, a.Date, s.windowDays)
	if err != nil {
		s.observeOutcome("history_failed", started)
		return nil, errors.Wrap(err, "historical analyses could not be loaded")
	}

	validatorFindings := s.validator.Validate(result, records)
	scorerFindings, risk := s.scorer.Score(a, validatorFindings, history)
	ranked, final := Consolidate(validatorFindings, scorerFindings, result.QualityScore, risk)
	a.AttachFindings(ranked, risk, final)

	morningGap, afternoonGap := blockGaps(result.Events, s.cfg, a.Date)
	a.AttachAssessment(morningGap, afternoonGap, recommendationsFor(ranked))

	if err := s.analyses.Save(ctx, a); err != nil {
		s.observeOutcome("save_failed", started)
		return nil, errors.Wrap(err, "analysis could not be persisted")
	}
	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, a); cacheErr != nil {
			s.logger.Warn("analysis cache write failed",
				zap.String("technician_id", technicianID.String()),
				zap.Error(cacheErr))
		}
	}

	s.recordMetrics(a, started)
	s.logger.Info("daily analysis completed",
		zap.String("technician", name),
		zap.String("date", a.Date.Format("2006-01-02")),
		zap.Int("events", len(a.Events)),
		zap.Int("findings", len(a.Findings)),
		zap.Int("skipped_records", a.SkippedRecords),
		zap.Float64("final_quality", a.FinalQuality.Float()),
		zap.Float64("risk_score", a.RiskScore))

	if s.autoCorrection && len(ranked) > 0 {
		if err := s.openCorrectionRequest(ctx, a, ranked); err != nil {
			// The analysis itself succeeded; a correction failure is logged,
			// not propagated.
			s.logger.Error("correction request could not be opened",
				zap.String("technician", name),
				zap.Error(err))
		}
	}
	return a, nil
}

// GetAnalysis returns the stored analysis for a key, cache first.
func (s *Service) GetAnalysis(ctx context.Context, technicianID uuid.UUID, date time.Time) (*analysis.DailyAnalysis, error) {
	if s.cache != nil {
		if a, err := s.cache.Get(ctx, technicianID, date); err == nil && a != nil {
			return a, nil
		}
	}
	a, err := s.analyses.GetByKey(ctx, technicianID, date)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, a); cacheErr != nil {
			s.logger.Warn("analysis cache write failed", zap.Error(cacheErr))
		}
	}
	return a, nil
}

// RespondToCorrection applies an inbound response to an open request.
func (s *Service) RespondToCorrection(ctx context.Context, requestID uuid.UUID, resp *correction.Response) (*correction.Request, error) {
	req, err := s.corrections.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := req.ApplyResponse(resp); err != nil {
		return nil, err
	}
	if err := s.corrections.Save(ctx, req); err != nil {
		return nil, errors.Wrap(err, "correction request could not be persisted")
	}
	s.logger.Info("correction response applied",
		zap.String("request_id", req.ID.String()),
		zap.String("status", req.Status.String()),
		zap.Int("quality_score", resp.QualityScore))
	return req, nil
}

// BatchResult summarizes a multi-day, multi-technician run.
type BatchResult struct {
	Analyzed int
	Skipped  int
	Failures map[string]string
}

// AnalyzeRange runs every (technician, date) combination in [from, to].
// Unknown technicians are skipped and reported; they never abort the batch.
func (s *Service) AnalyzeRange(ctx context.Context, technicianIDs []uuid.UUID, from, to time.Time) (*BatchResult, error) {
	if to.Before(from) {
		return nil, errors.NewValidationError("INVALID_RANGE", "end date precedes start date")
	}
	var units []unitOfWork
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		for _, id := range technicianIDs {
			units = append(units, unitOfWork{technicianID: id, date: day})
		}
	}

	pool := newWorkerPool(func(ctx context.Context, id uuid.UUID, day time.Time) error {
		_, err := s.AnalyzeDay(ctx, id, day)
		return err
	}, s.batchWorkers, s.logger)

	res := pool.Run(ctx, units)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Service) openCorrectionRequest(ctx context.Context, a *analysis.DailyAnalysis, findings []*finding.Finding) error {
	if existing, err := s.corrections.GetOpenByKey(ctx, a.TechnicianID, a.Date); err == nil && existing != nil {
		return nil
	}
	req, err := correction.NewRequest(a.ID, a.TechnicianID, a.Date, findings)
	if err != nil {
		return err
	}
	if err := s.corrections.Save(ctx, req); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.CorrectionRequests.Inc()
	}
	s.logger.Info("correction request opened",
		zap.String("request_id", req.ID.String()),
		zap.String("priority", req.Priority.String()),
		zap.Time("deadline", req.Deadline))
	return nil
}

func (s *Service) observeOutcome(outcome string, started time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.AnalysesTotal.WithLabelValues(outcome).Inc()
	s.metrics.AnalysisDuration.Observe(time.Since(started).Seconds())
}

func (s *Service) recordMetrics(a *analysis.DailyAnalysis, started time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.AnalysesTotal.WithLabelValues("ok").Inc()
	s.metrics.AnalysisDuration.Observe(time.Since(started).Seconds())
	s.metrics.RecordsSkipped.Add(float64(a.SkippedRecords))
	s.metrics.QualityScore.Observe(a.FinalQuality.Float())
	for severity, count := range a.FindingsBySeverity() {
		s.metrics.FindingsTotal.WithLabelValues(severity).Add(float64(count))
	}
}
