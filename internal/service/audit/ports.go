package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Fiore0312/controlli-sub000/internal/domain/analysis"
	"github.com/Fiore0312/controlli-sub000/internal/domain/timeline"
)

// RecordProvider loads the raw per-source records for one technician and day.
// Implementations sit in front of the upload/import layer.
type RecordProvider interface {
	Records(ctx context.Context, technicianID uuid.UUID, date time.Time) (timeline.SourceRecords, error)
}

// AnalysisCache is a read-through cache over persisted analyses. A nil cache
// is valid; the service skips it.
type AnalysisCache interface {
	Get(ctx context.Context, technicianID uuid.UUID, date time.Time) (*analysis.DailyAnalysis, error)
	Set(ctx context.Context, a *analysis.DailyAnalysis) error
	Invalidate(ctx context.Context, technicianID uuid.UUID, date time.Time) error
}
