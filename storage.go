package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// Storage uploads results into a libsql database in addition to the CSV file.
type Storage struct {
	URL       string
	AuthToken string
}

type Measurement struct {
	Limit          int
	Location       string
	Database       string
	ConnectionType string
	Iteration      int
	DurationMs     sql.NullFloat64
	Error          sql.NullString
}

func (s *Storage) ConnectDb() (*sql.DB, error) {
	dsn := s.URL
	if s.AuthToken != "" {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn = dsn + separator + "authToken=" + url.QueryEscape(s.AuthToken)
	}
	return sql.Open("libsql", dsn)
}

func (s *Storage) InitResultsDb(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS parameters (
		run TEXT,
		name TEXT,
		value TEXT,
		PRIMARY KEY (run, name)
	)`)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS measurements (
		run TEXT,
		row_limit INTEGER,
		location TEXT,
		db_name TEXT,
		connection_type TEXT,
		iteration INTEGER,
		duration_ms REAL,
		error TEXT
	)`)
	return err
}

func (s *Storage) AddParameters(ctx context.Context, db *sql.DB, run string, meta map[string]any) error {
	parameters := make([]any, 0)
	parameters = append(parameters, run, "time", time.Now().Format("2006-01-02 15:04:05"))
	keys := make([]string, 0, len(meta))
	for key := range meta {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		parameters = append(parameters, run, key, fmt.Sprintf("%v", meta[key]))
	}
	placeholders := strings.Join(slices.Repeat([]string{"(?, ?, ?)"}, len(parameters)/3), ", ")
	_, err := db.ExecContext(
		ctx,
		fmt.Sprintf("INSERT INTO parameters VALUES %v ON CONFLICT DO NOTHING", placeholders),
		parameters...,
	)
	return err
}

// Measurements mirrors the CSV layout: one row per duration, and a single row
// with the error for failed results.
func Measurements(results Results) []Measurement {
	measurements := make([]Measurement, 0)
	for _, result := range results.Results {
		base := Measurement{
			Limit:          result.Limit,
			Location:       result.Location,
			Database:       result.Database,
			ConnectionType: result.ConnectionType,
		}
		if result.Failed() {
			base.Error = sql.NullString{String: *result.Error, Valid: true}
			measurements = append(measurements, base)
			continue
		}
		for i, duration := range result.Durations {
			measurement := base
			measurement.Iteration = i + 1
			measurement.DurationMs = sql.NullFloat64{Float64: duration, Valid: true}
			measurements = append(measurements, measurement)
		}
	}
	return measurements
}

func (s *Storage) UpdateResultsDb(ctx context.Context, db *sql.DB, run string, results Results) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, m := range Measurements(results) {
		_, err = tx.ExecContext(
			ctx,
			"INSERT INTO measurements VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			run,
			m.Limit,
			m.Location,
			m.Database,
			m.ConnectionType,
			m.Iteration,
			m.DurationMs,
			m.Error,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Upload stores one benchmark run with its host parameters.
func (s *Storage) Upload(ctx context.Context, run string, meta map[string]any, results Results) error {
	db, err := s.ConnectDb()
	if err != nil {
		return fmt.Errorf("unable to connect to results db: %w", err)
	}
	defer db.Close()
	if err := s.InitResultsDb(ctx, db); err != nil {
		return fmt.Errorf("unable to initialize results db: %w", err)
	}
	if err := s.AddParameters(ctx, db, run, meta); err != nil {
		return fmt.Errorf("unable to store parameters for %v: %w", run, err)
	}
	if err := s.UpdateResultsDb(ctx, db, run, results); err != nil {
		return fmt.Errorf("unable to store measurements for %v: %w", run, err)
	}
	return nil
}
