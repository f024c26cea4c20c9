package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps every table as rows of a single JSONB records table.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

// InitPostgres opens the connection pool and creates the schema.
func InitPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	log.Println("🔌 Connecting to PostgreSQL...")

	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ PostgreSQL connected successfully")

	s := &PostgresStore{Pool: pool}
	if err := s.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Close() {
	if s.Pool != nil {
		log.Println("🔌 Closing PostgreSQL connection...")
		s.Pool.Close()
	}
}

// InitSchema creates the records table if it doesn't exist
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	log.Println("📋 Initializing database schema...")

	recordsSchema := `
	CREATE TABLE IF NOT EXISTS records (
		tbl TEXT NOT NULL,
		key TEXT NOT NULL,
		data JSONB NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
		PRIMARY KEY (tbl, key)
	);

	-- Containment index for equality filters
	CREATE INDEX IF NOT EXISTS idx_records_data ON records USING GIN (data jsonb_path_ops);
	`

	if _, err := s.Pool.Exec(ctx, recordsSchema); err != nil {
		return fmt.Errorf("failed to create records table: %w", err)
	}

	log.Println("✅ Database schema initialized")
	return nil
}

/* =========================
   RECORDS
========================= */

func (s *PostgresStore) Upsert(ctx context.Context, table, key string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", table, err)
	}

	query := `
		INSERT INTO records (tbl, key, data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tbl, key) DO UPDATE
		SET data = EXCLUDED.data, updated_at = NOW()
	`

	if _, err := s.Pool.Exec(ctx, query, table, key, data); err != nil {
		return fmt.Errorf("failed to upsert %s record: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, table, key string, out any) (bool, error) {
	var data []byte
	err := s.Pool.QueryRow(ctx, `SELECT data FROM records WHERE tbl = $1 AND key = $2`, table, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s record: %w", table, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s record: %w", table, err)
	}
	return true, nil
}

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Select filters with JSONB containment, so values compare as JSON.
func (s *PostgresStore) Select(ctx context.Context, table string, filter Filter, opts SelectOptions) ([]json.RawMessage, error) {
	if filter == nil {
		filter = Filter{}
	}
	contains, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal filter: %w", err)
	}

	query := `SELECT data FROM records WHERE tbl = $1 AND data @> $2::jsonb`
	args := []any{table, contains}

	if opts.OrderBy != "" {
		if !fieldName.MatchString(opts.OrderBy) {
			return nil, fmt.Errorf("invalid order field %q", opts.OrderBy)
		}
		dir := "ASC"
		if opts.Desc {
			dir = "DESC"
		}
		query += fmt.Sprintf(` ORDER BY (data->>'%s')::numeric %s, updated_at ASC`, opts.OrderBy, dir)
	} else {
		query += ` ORDER BY updated_at ASC`
	}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	out := []json.RawMessage{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		out = append(out, json.RawMessage(data))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", table, err)
	}
	return out, nil
}

/* =========================
   HEALTH CHECK
========================= */

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	if s.Pool == nil {
		return fmt.Errorf("PostgreSQL connection pool not initialized")
	}
	return s.Pool.Ping(ctx)
}
