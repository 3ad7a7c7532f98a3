package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository čte koše a měření z Postgresu.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository je konstruktor (Dependency Injection).
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListBins vrací všechny registrované koše.
func (r *Repository) ListBins(ctx context.Context) ([]Bin, error) {
	// COALESCE: metadata koše posílá senzor a mohou chybět.
	query := `
		SELECT id,
		       COALESCE(location_name, ''),
		       COALESCE(latitude, 0)::float8,
		       COALESCE(longitude, 0)::float8
		FROM bins
		ORDER BY id ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("selhal SQL dotaz na koše: %w", err)
	}
	defer rows.Close()

	var bins []Bin
	for rows.Next() {
		var b Bin
		if err := rows.Scan(&b.ID, &b.LocationName, &b.Latitude, &b.Longitude); err != nil {
			return nil, err
		}
		bins = append(bins, b)
	}
	return bins, rows.Err()
}

// ReadingsSince vrací měření od since do teď, vzestupně podle recorded_at.
// Na pořadí závisí LatestByBin.
func (r *Repository) ReadingsSince(ctx context.Context, since time.Time) ([]Reading, error) {
	query := `
		SELECT bin_id,
		       COALESCE(weight_kg, 0)::float8,
		       COALESCE(fullness_percent, 0)::float8,
		       recorded_at
		FROM readings
		WHERE recorded_at >= $1
		ORDER BY recorded_at ASC
	`

	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("chyba načítání měření: %w", err)
	}
	defer rows.Close()

	readings := make([]Reading, 0, 256)
	for rows.Next() {
		var rd Reading
		if err := rows.Scan(&rd.BinID, &rd.Weight, &rd.Fullness, &rd.RecordedAt); err != nil {
			return nil, err
		}
		readings = append(readings, rd)
	}
	return readings, rows.Err()
}
