package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTable = `CREATE TABLE IF NOT EXISTS gameday_submissions (
	id TEXT PRIMARY KEY,
	division TEXT NOT NULL,
	rowindex INTEGER NOT NULL DEFAULT 0,
	firebaseindex TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	winner TEXT NOT NULL DEFAULT '',
	playersremaining INTEGER NOT NULL DEFAULT 0,
	notes TEXT NOT NULL DEFAULT '',
	"Date" TIMESTAMPTZ NOT NULL,
	firebase_ok BOOLEAN NOT NULL DEFAULT FALSE,
	sheets_ok BOOLEAN NOT NULL DEFAULT FALSE,
	sheets_skipped BOOLEAN NOT NULL DEFAULT FALSE
)`

const createIndex = `CREATE INDEX IF NOT EXISTS gameday_submissions_division
	ON gameday_submissions (division, "Date" DESC)`

const selectColumns = `id, division, rowindex, firebaseindex, name, winner,
	playersremaining, notes, "Date", firebase_ok, sheets_ok, sheets_skipped`

// PostgresLog keeps submissions in the gameday_submissions table.
type PostgresLog struct {
	pool *pgxpool.Pool
}

// NewPostgresLog connects to url and creates the table if it is missing.
func NewPostgresLog(ctx context.Context, url string) (*PostgresLog, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, stmt := range []string{createTable, createIndex} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("prepare submissions table: %w", err)
		}
	}
	return &PostgresLog{pool: pool}, nil
}

func (l *PostgresLog) Close() { l.pool.Close() }

func (l *PostgresLog) Insert(ctx context.Context, r Record) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO gameday_submissions (`+selectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		insertArgs(r)...,
	)
	if err != nil {
		return fmt.Errorf("insert submission %s: %w", r.ID, err)
	}
	return nil
}

// insertArgs and scanTargets follow the order of selectColumns.
func insertArgs(r Record) []interface{} {
	return []interface{}{r.ID, r.Division, r.RowIndex, r.FirebaseIndex, r.Name, r.Winner,
		r.PlayersRemaining, r.Notes, r.CreatedAt, r.FirebaseOK, r.SheetsOK, r.SheetsSkipped}
}

func scanTargets(r *Record) []interface{} {
	return []interface{}{&r.ID, &r.Division, &r.RowIndex, &r.FirebaseIndex, &r.Name, &r.Winner,
		&r.PlayersRemaining, &r.Notes, &r.CreatedAt, &r.FirebaseOK, &r.SheetsOK, &r.SheetsSkipped}
}

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	err := row.Scan(scanTargets(&r)...)
	return r, err
}

func (l *PostgresLog) Get(ctx context.Context, id string) (Record, error) {
	r, err := scanRecord(l.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM gameday_submissions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("read submission %s: %w", id, err)
	}
	return r, nil
}

func (l *PostgresLog) ListByDivision(ctx context.Context, division string, limit int) ([]Record, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM gameday_submissions
		WHERE division = $1 ORDER BY "Date" DESC LIMIT $2`, division, limit)
	if err != nil {
		return nil, fmt.Errorf("list submissions of %s: %w", division, err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
