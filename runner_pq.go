package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// RunnerPq is the row-wise baseline: rows are scanned one by one through
// database/sql without any columnar batching.
type RunnerPq struct{}

type InstancePq struct {
	URI string
}

func (r *RunnerPq) Name() string { return "go_pq" }
func (r *RunnerPq) Init(database Database) (Instance, error) {
	if database.DbType != DbTypePostgreSQL {
		return nil, fmt.Errorf("%w: lib/pq for %v", ErrUnsupported, database.DbType)
	}
	return &InstancePq{URI: PostgresURI(database)}, nil
}

func (i *InstancePq) Connect(ctx context.Context) (Connection, error) {
	db, err := sql.Open("postgres", i.URI)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &connPq{db: db, conn: conn}, nil
}

type connPq struct {
	db   *sql.DB
	conn *sql.Conn
}

func (c *connPq) FetchAndDrain(ctx context.Context, query string) (int64, error) {
	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	source, err := newSqlRowSource(rows)
	if err != nil {
		return 0, err
	}
	var total int64
	for source.Next() {
		if _, err := source.Values(); err != nil {
			return total, err
		}
		total++
	}
	return total, source.Err()
}

func (c *connPq) Close() error {
	err := c.conn.Close()
	if dbErr := c.db.Close(); err == nil {
		err = dbErr
	}
	return err
}
