package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainerrors "github.com/Fiore0312/controlli-sub000/internal/domain/errors"
)

// TechnicianDirectory resolves technician identity from the technicians
// table, which is synced from the HR system.
type TechnicianDirectory struct {
	db *pgxpool.Pool
}

func NewTechnicianDirectory(db *pgxpool.Pool) *TechnicianDirectory {
	return &TechnicianDirectory{db: db}
}

func (d *TechnicianDirectory) Lookup(ctx context.Context, technicianID uuid.UUID) (string, error) {
	var name string
	err := d.db.QueryRow(ctx,
		`SELECT name FROM technicians WHERE id = $1 AND active`,
		technicianID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domainerrors.ErrTechnicianNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up technician: %w", err)
	}
	return name, nil
}
