package main

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
	sf "github.com/snowflakedb/gosnowflake"
)

type InstanceArrowSnowflake struct {
	DSN       string
	Allocator memory.Allocator
}

func SnowflakeDSN(database Database) (string, error) {
	return sf.DSN(&sf.Config{
		Account:   database.Account,
		User:      database.User,
		Password:  database.Password,
		Database:  database.DbName,
		Warehouse: database.Warehouse,
	})
}

func newInstanceArrowSnowflake(runner *RunnerArrow, database Database) (Instance, error) {
	dsn, err := SnowflakeDSN(database)
	if err != nil {
		return nil, fmt.Errorf("invalid snowflake config: %w", err)
	}
	return &InstanceArrowSnowflake{DSN: dsn, Allocator: runner.allocator()}, nil
}

func (i *InstanceArrowSnowflake) Connect(ctx context.Context) (Connection, error) {
	db, err := sql.Open("snowflake", i.DSN)
	if err != nil {
		return nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &connArrowSnowflake{db: db, conn: conn, allocator: i.Allocator}, nil
}

type connArrowSnowflake struct {
	db        *sql.DB
	conn      *sql.Conn
	allocator memory.Allocator
}

func (c *connArrowSnowflake) FetchAndDrain(ctx context.Context, query string) (int64, error) {
	var total int64
	err := c.conn.Raw(func(driverConn any) error {
		queryer, ok := driverConn.(driver.QueryerContext)
		if !ok {
			return fmt.Errorf("snowflake connection does not implement QueryerContext")
		}
		arrowCtx := sf.WithArrowAllocator(sf.WithArrowBatches(ctx), c.allocator)
		rows, err := queryer.QueryContext(arrowCtx, query, nil)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		defer rows.Close()

		batches, err := snowflakeArrowBatches(rows)
		if err != nil {
			return err
		}
		for _, batch := range batches {
			records, err := batch.Fetch()
			if err != nil {
				return err
			}
			for _, record := range *records {
				total += countAndRelease(record)
			}
		}
		return nil
	})
	return total, err
}

func snowflakeArrowBatches(rows driver.Rows) ([]*sf.ArrowBatch, error) {
	sfRows, ok := rows.(sf.SnowflakeRows)
	if !ok {
		return nil, fmt.Errorf("expected snowflake rows, got %T", rows)
	}
	return sfRows.GetArrowBatches()
}

func (c *connArrowSnowflake) Close() error {
	err := c.conn.Close()
	if dbErr := c.db.Close(); err == nil {
		err = dbErr
	}
	return err
}
