package main

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

type arrowBackend func(runner *RunnerArrow, database Database) (Instance, error)

// Vertica has no Arrow-native client.
var arrowBackends = map[DbType]arrowBackend{
	DbTypePostgreSQL: newInstanceArrowPostgres,
	DbTypeSnowflake:  newInstanceArrowSnowflake,
}

type RunnerArrow struct {
	Allocator memory.Allocator
}

func (r *RunnerArrow) Name() string { return "go_arrow" }
func (r *RunnerArrow) Init(database Database) (Instance, error) {
	backend, ok := arrowBackends[database.DbType]
	if !ok {
		return nil, fmt.Errorf("%w: arrow client for %v", ErrUnsupported, database.DbType)
	}
	return backend(r, database)
}

func (r *RunnerArrow) allocator() memory.Allocator {
	if r.Allocator == nil {
		return memory.DefaultAllocator
	}
	return r.Allocator
}
