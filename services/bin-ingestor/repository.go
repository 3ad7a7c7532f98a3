package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Registrace koše je atomický INSERT ... ON CONFLICT DO NOTHING.
// Dvě souběžná první měření téhož koše tak nemůžou založit koš dvakrát
// a metadata existujícího koše se nikdy nepřepíšou.
const (
	registerBinSQL = `
		INSERT INTO bins (id, location_name, latitude, longitude)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`

	insertReadingSQL = `
		INSERT INTO readings (bin_id, weight_kg, fullness_percent)
		VALUES ($1, $2, $3)`
)

// Repository zapouzdřuje zápis do Postgresu. recorded_at doplňuje DB (DEFAULT now()).
type Repository struct {
	pgPool *pgxpool.Pool
}

// NewRepository vytvoří pool a ověří, že je DB dostupná.
func NewRepository(ctx context.Context, postgresURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, postgresURL)
	if err != nil {
		return nil, fmt.Errorf("chyba konfigurace DB: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("DB není dostupná: %w", err)
	}
	return &Repository{pgPool: pool}, nil
}

// Close uzavře pool.
func (r *Repository) Close() {
	r.pgPool.Close()
}

// SaveReading zaregistruje koš (pokud ho DB ještě nezná) a připíše měření.
// Oba příkazy jdou v jednom batchi, pgx je pošle jako jednu implicitní transakci.
func (r *Repository) SaveReading(ctx context.Context, reading Reading) error {
	batch := &pgx.Batch{}
	batch.Queue(registerBinSQL, reading.BinID, reading.LocationName, reading.Latitude, reading.Longitude)
	batch.Queue(insertReadingSQL, reading.BinID, reading.Weight, reading.Fullness)

	res := r.pgPool.SendBatch(ctx, batch)

	if _, err := res.Exec(); err != nil {
		res.Close()
		return fmt.Errorf("registrace koše %s: %w", reading.BinID, err)
	}
	if _, err := res.Exec(); err != nil {
		res.Close()
		return fmt.Errorf("insert měření koše %s: %w", reading.BinID, err)
	}
	return res.Close()
}
