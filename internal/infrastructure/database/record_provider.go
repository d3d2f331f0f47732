package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Fiore0312/controlli-sub000/internal/domain/timeline"
)

// RecordProvider reads raw per-source records from the staging table the
// import pipeline writes to. Each row holds one source's export for one
// technician day as a JSON array; a missing row is an empty source.
type RecordProvider struct {
	db *pgxpool.Pool
}

func NewRecordProvider(db *pgxpool.Pool) *RecordProvider {
	return &RecordProvider{db: db}
}

func (p *RecordProvider) Records(ctx context.Context, technicianID uuid.UUID, date time.Time) (timeline.SourceRecords, error) {
	var records timeline.SourceRecords

	rows, err := p.db.Query(ctx,
		`SELECT source, payload FROM source_records WHERE technician_id = $1 AND date = $2`,
		technicianID, date)
	if err != nil {
		return records, fmt.Errorf("querying source records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var payload []byte
		if err := rows.Scan(&source, &payload); err != nil {
			return records, err
		}

		switch source {
		case "ticketing":
			err = json.Unmarshal(payload, &records.Ticketing)
		case "vehicle":
			err = json.Unmarshal(payload, &records.Vehicle)
		case "remote_sessions":
			err = json.Unmarshal(payload, &records.RemoteSessions)
		case "calendar":
			err = json.Unmarshal(payload, &records.Calendar)
		case "time_clock":
			err = json.Unmarshal(payload, &records.TimeClock)
		default:
			// An unknown source label is an import-side defect; the
			// analysis proceeds on what it understands.
			continue
		}
		if err != nil {
			return records, fmt.Errorf("unmarshaling %s records: %w", source, err)
		}
	}
	return records, rows.Err()
}
