package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/alexbrainman/odbc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

const megabyte = 1024 * 1024

type OdbcOptions struct {
	// ReadBufferSize is the payload size in bytes after which a batch is cut.
	ReadBufferSize int64
	// UseAsyncIO decodes the next batch while the previous one is consumed.
	UseAsyncIO bool
	Autocommit bool
}

var defaultOdbcOptions = OdbcOptions{
	ReadBufferSize: 20 * megabyte,
	UseAsyncIO:     false,
	Autocommit:     true,
}

type odbcProfile struct {
	ConnectionProps string
	Options         OdbcOptions
}

// Driver tuning per backend. These settings are known to crash the Vertica
// driver, so backends without an entry get none of them.
var odbcProfiles = map[DbType]odbcProfile{
	DbTypePostgreSQL: {
		ConnectionProps: ";Protocol=7.4;UseDeclareFetch=1;Fetch=10000;" +
			"UseServerSidePrepare=1;BoolsAsChar=0;USESSL=true;SSLmode=prefer",
		Options: OdbcOptions{
			ReadBufferSize: 1 * megabyte,
			UseAsyncIO:     true,
			Autocommit:     false,
		},
	},
}

func OdbcConnectionString(database Database) (string, OdbcOptions) {
	profile, ok := odbcProfiles[database.DbType]
	if !ok {
		profile = odbcProfile{Options: defaultOdbcOptions}
	}
	parts := []string{"Driver=" + database.OdbcDriverPath, "Server=" + database.Host}
	if database.Port != "" {
		parts = append(parts, "Port="+database.Port)
	}
	parts = append(parts,
		"Database="+database.DbName,
		"UID="+odbcValue(database.User),
		"PWD="+odbcValue(database.Password),
	)
	return strings.Join(parts, ";") + profile.ConnectionProps, profile.Options
}

// odbcValue braces a connection string value so that ';' and '=' are taken
// literally. A closing brace inside the value is doubled.
func odbcValue(value string) string {
	return "{" + strings.ReplaceAll(value, "}", "}}") + "}"
}

type RunnerOdbc struct {
	Allocator memory.Allocator
}

type InstanceOdbc struct {
	ConnectionString string
	Options          OdbcOptions
	Allocator        memory.Allocator
}

func (r *RunnerOdbc) Name() string { return "go_odbc" }
func (r *RunnerOdbc) Init(database Database) (Instance, error) {
	if database.OdbcDriverPath == "" {
		return nil, fmt.Errorf("odbc_driver_path is not configured for %v", database.Name)
	}
	connectionString, options := OdbcConnectionString(database)
	allocator := r.Allocator
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}
	return &InstanceOdbc{ConnectionString: connectionString, Options: options, Allocator: allocator}, nil
}

func (i *InstanceOdbc) Connect(ctx context.Context) (Connection, error) {
	db, err := sql.Open("odbc", i.ConnectionString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &connOdbc{db: db, conn: conn, options: i.Options, allocator: i.Allocator}, nil
}

type connOdbc struct {
	db        *sql.DB
	conn      *sql.Conn
	options   OdbcOptions
	allocator memory.Allocator
}

type sqlQueryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (c *connOdbc) FetchAndDrain(ctx context.Context, query string) (int64, error) {
	var queryer sqlQueryer = c.conn
	if !c.options.Autocommit {
		tx, err := c.conn.BeginTx(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()
		queryer = tx
	}

	rows, err := queryer.QueryContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	source, err := newSqlRowSource(rows)
	if err != nil {
		return 0, err
	}
	columns, _ := rows.Columns()
	batcher := newRecordBatcher(c.allocator, columns, defaultBatchRows, c.options.ReadBufferSize)
	defer batcher.Release()

	if c.options.UseAsyncIO {
		return drainBatchesAsync(source, batcher)
	}
	return drainBatches(source, batcher)
}

func (c *connOdbc) Close() error {
	err := c.conn.Close()
	if dbErr := c.db.Close(); err == nil {
		err = dbErr
	}
	return err
}
