package gold

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/ecodata/plantpulse/internal/kpi"
)

// PostgresConfig holds the gold sink connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
}

// Postgres mirrors gold rows into a kpis_daily table, one row per day.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens the gold sink connection.
func NewPostgres(cfg PostgresConfig) (*Postgres, error) {
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("gold: open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Postgres{db: db}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Ping verifies the connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// CreateTables creates the gold table if it does not exist.
func (p *Postgres) CreateTables(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS kpis_daily (
		date DATE PRIMARY KEY,
		pieces INTEGER NOT NULL,
		scrap INTEGER NOT NULL,
		good_pieces INTEGER NOT NULL,
		energy_kwh DOUBLE PRECISION NOT NULL,
		availability DOUBLE PRECISION NOT NULL,
		performance DOUBLE PRECISION NOT NULL,
		quality DOUBLE PRECISION NOT NULL,
		oee DOUBLE PRECISION NOT NULL,
		kwh_per_piece DOUBLE PRECISION,
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("gold: create table: %w", err)
	}
	return nil
}

// Upsert writes the daily rows, replacing existing days so re-runs of
// the pipeline converge instead of duplicating.
func (p *Postgres) Upsert(ctx context.Context, rows []kpi.DailyKPIs) error {
	query := `INSERT INTO kpis_daily
		(date, pieces, scrap, good_pieces, energy_kwh,
		 availability, performance, quality, oee, kwh_per_piece, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (date) DO UPDATE SET
			pieces = EXCLUDED.pieces,
			scrap = EXCLUDED.scrap,
			good_pieces = EXCLUDED.good_pieces,
			energy_kwh = EXCLUDED.energy_kwh,
			availability = EXCLUDED.availability,
			performance = EXCLUDED.performance,
			quality = EXCLUDED.quality,
			oee = EXCLUDED.oee,
			kwh_per_piece = EXCLUDED.kwh_per_piece,
			updated_at = NOW()`

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("gold: begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("gold: prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx,
			r.Date, r.Pieces, r.Scrap, r.GoodPieces, r.EnergyKWh,
			r.Availability, r.Performance, r.Quality, r.OEE, nullableFloat(r.KWhPerPiece),
		)
		if err != nil {
			return fmt.Errorf("gold: upsert %s: %w", r.Date.Format(dateLayout), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("gold: commit upsert: %w", err)
	}
	return nil
}

// nullableFloat maps NaN to SQL NULL.
func nullableFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
