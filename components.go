package main

import (
	"context"
	"errors"
)

var ErrUnsupported = errors.New(UnsupportedMsg)

// Runner is a driver family. Init only builds connection parameters for the
// database and must not perform any I/O.
type Runner interface {
	Name() string
	Init(database Database) (Instance, error)
}

type Instance interface {
	Connect(ctx context.Context) (Connection, error)
}

// Connection is a single open driver connection. FetchAndDrain executes the
// query, reads every row and returns the row count; fetched data is dropped.
type Connection interface {
	FetchAndDrain(ctx context.Context, query string) (int64, error)
	Close() error
}
