package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type Benchmark struct {
	Iterations int
	Logger     *zap.SugaredLogger
}

type UseCase struct {
	ConnectionType string
	Limit          int
	Location       string
	Database       string
	Query          string
}

func (u UseCase) Name() string {
	return UseCaseName(u.ConnectionType, u.Location, u.Database)
}

func (u UseCase) result(durations []float64, err error) Result {
	result := Result{
		Limit:          u.Limit,
		Location:       u.Location,
		Database:       u.Database,
		ConnectionType: u.ConnectionType,
		Durations:      durations,
		AvgDuration:    Average(durations),
	}
	if err != nil {
		result.Error = errorString(err)
	}
	return result
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// RunUseCase initializes runner for the database and executes the use case.
// Unsupported combinations produce a sentinel result without any connection
// attempt.
func (b *Benchmark) RunUseCase(ctx context.Context, runner Runner, database Database, useCase UseCase) Result {
	instance, err := runner.Init(database)
	if errors.Is(err, ErrUnsupported) {
		b.Logger.Infof("%v - %v is not supported for %v", useCase.Name(), runner.Name(), database.DbType)
		result := useCase.result([]float64{}, ErrUnsupported)
		result.AvgDuration = -1
		return result
	}
	if err != nil {
		b.Logger.Errorf("Error initializing use case %v: %v", useCase.Name(), err)
		return useCase.result([]float64{}, err)
	}
	return b.Execute(ctx, useCase, instance)
}

// Execute opens one connection and runs the query Iterations times. Failures
// are never returned: they end the run and are recorded in the result together
// with the durations measured before the failure.
func (b *Benchmark) Execute(ctx context.Context, useCase UseCase, instance Instance) Result {
	name := useCase.Name()
	b.Logger.Debugf("Running use case %v", name)
	durations := make([]float64, 0, b.Iterations)
	err := b.iterate(ctx, name, useCase.Query, instance, &durations)
	if err != nil {
		b.Logger.Errorf("Error running use case %v: %v", name, err)
	}
	return useCase.result(durations, err)
}

func (b *Benchmark) iterate(ctx context.Context, name string, query string, instance Instance, durations *[]float64) error {
	connection, err := instance.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if err := connection.Close(); err != nil {
			b.Logger.Warnf("%v - failed to close connection: %v", name, err)
		}
	}()

	for i := 1; i <= b.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.Logger.Infof("%v(iteration=%v) - START", name, i)
		start := time.Now()
		rows, err := connection.FetchAndDrain(ctx, query)
		elapsed := durationMs(time.Since(start))
		if err != nil {
			return err
		}
		b.Logger.Infof("%v(iteration=%v) - Cursor fetch finished in %v ms rows=%v", name, i, elapsed, rows)
		*durations = append(*durations, elapsed)
	}
	return nil
}
