package main

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/jackc/pgx/v5"
)

type InstanceArrowPostgres struct {
	URI       string
	Allocator memory.Allocator
}

func PostgresURI(database Database) string {
	host := database.Host
	if database.Port != "" {
		host = net.JoinHostPort(database.Host, database.Port)
	}
	uri := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(database.User, database.Password),
		Host:   host,
		Path:   "/" + database.DbName,
	}
	return uri.String()
}

func newInstanceArrowPostgres(runner *RunnerArrow, database Database) (Instance, error) {
	return &InstanceArrowPostgres{URI: PostgresURI(database), Allocator: runner.allocator()}, nil
}

func (i *InstanceArrowPostgres) Connect(ctx context.Context) (Connection, error) {
	conn, err := pgx.Connect(ctx, i.URI)
	if err != nil {
		return nil, err
	}
	return &connArrowPostgres{conn: conn, allocator: i.Allocator}, nil
}

type connArrowPostgres struct {
	conn      *pgx.Conn
	allocator memory.Allocator
}

// FetchAndDrain streams the result as binary COPY and decodes it straight
// into typed Arrow batches. The statement is described first to get the
// column types.
func (c *connArrowPostgres) FetchAndDrain(ctx context.Context, query string) (int64, error) {
	description, err := c.conn.PgConn().Prepare(ctx, "", query, nil)
	if err != nil {
		return 0, fmt.Errorf("describe failed: %w", err)
	}
	decoder := newPgCopyDecoder(c.allocator, description.Fields, defaultBatchRows, defaultBatchBytes)
	defer decoder.Release()

	if _, err := c.conn.PgConn().CopyTo(ctx, decoder, CopyQuery(query)); err != nil {
		return decoder.total, fmt.Errorf("copy failed: %w", err)
	}
	return decoder.Finish()
}

func (c *connArrowPostgres) Close() error {
	return c.conn.Close(context.Background())
}
