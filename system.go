package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
	"go.uber.org/zap"
)

const (
	defaultBottomLimit = 1_000
	defaultTopLimit    = 5_000_000
)

var Limits = []int{1_000, 10_000, 100_000, 1_000_000, 5_000_000}

type System struct {
	config     Config
	runners    map[string]Runner
	defaults   []Runner
	benchmark  Benchmark
	resultsDir string
	logger     *zap.SugaredLogger
}

// NewSystem validates that every connection type referenced by the
// configuration has a runner. defaults are the runners used for databases
// without an explicit connection_types list, in execution order.
func NewSystem(config Config, resultsDir string, logger *zap.SugaredLogger, runners []Runner, defaults ...string) (*System, error) {
	s := &System{
		config:     config,
		runners:    make(map[string]Runner, len(runners)),
		benchmark:  Benchmark{Iterations: config.Config.MeasurementIterations, Logger: logger},
		resultsDir: resultsDir,
		logger:     logger,
	}
	for _, runner := range runners {
		s.runners[runner.Name()] = runner
	}
	for _, name := range defaults {
		runner, ok := s.runners[name]
		if !ok {
			return nil, fmt.Errorf("unknown default connection type %v", name)
		}
		s.defaults = append(s.defaults, runner)
	}
	for _, location := range config.Locations {
		for _, database := range location.Databases {
			for _, name := range database.ConnectionTypes {
				if _, ok := s.runners[name]; !ok {
					return nil, fmt.Errorf("database %v/%v: unknown connection type %v", location.Name, database.Name, name)
				}
			}
		}
	}
	return s, nil
}

func CalculateLimits(database Database) []int {
	bottom, top := defaultBottomLimit, defaultTopLimit
	if database.BottomLimit != nil {
		bottom = *database.BottomLimit
	}
	if database.TopLimit != nil {
		top = *database.TopLimit
	}
	limits := make([]int, 0, len(Limits))
	for _, limit := range Limits {
		if bottom <= limit && limit <= top {
			limits = append(limits, limit)
		}
	}
	return limits
}

func BuildQuery(query string, limit int) string {
	return fmt.Sprintf("%v LIMIT %v", query, limit)
}

func (s *System) runnersFor(database Database) []Runner {
	if len(database.ConnectionTypes) == 0 {
		return s.defaults
	}
	runners := make([]Runner, 0, len(database.ConnectionTypes))
	for _, name := range database.ConnectionTypes {
		runners = append(runners, s.runners[name])
	}
	return runners
}

// Run executes the whole matrix sequentially (location, database, limit,
// runner) and merges the JVM suite results afterwards.
func (s *System) Run(ctx context.Context) Results {
	results := Results{Results: make([]Result, 0)}
	if err := s.runMatrix(ctx, &results); err != nil {
		s.logger.Warnf("benchmark interrupted, %v results collected: %v", len(results.Results), err)
	}
	if err := MergeJavaResults(&results, s.resultsDir, s.logger); err != nil {
		s.logger.Errorf("failed to merge java results: %v", err)
	}
	return results
}

func (s *System) runMatrix(ctx context.Context, results *Results) error {
	for _, location := range s.config.Locations {
		s.logger.Infof("Running with location %v", location.Name)
		for _, database := range location.Databases {
			s.logger.Infof("Running with database %v", database.Name)
			runners := s.runnersFor(database)
			for _, limit := range CalculateLimits(database) {
				s.logger.Infof("Running with limit %v", limit)
				query := BuildQuery(s.config.Config.Query, limit)
				for _, runner := range runners {
					if err := ctx.Err(); err != nil {
						return err
					}
					results.Append(s.benchmark.RunUseCase(ctx, runner, database, UseCase{
						ConnectionType: runner.Name(),
						Limit:          limit,
						Location:       location.Name,
						Database:       database.Name,
						Query:          query,
					}))
				}
			}
		}
	}
	return nil
}

type SysInfo struct {
	Arch     string
	Hostname string
	Platform string
	CPUCount int
	CPUFreq  float64
	RAM      float64
}

func HostStat() SysInfo {
	hostStat, _ := host.Info()
	cpuStat, _ := cpu.Info()
	vmStat, _ := mem.VirtualMemory()
	info := SysInfo{Arch: runtime.GOARCH, CPUCount: len(cpuStat)}
	if hostStat != nil {
		info.Hostname = hostStat.Hostname
		info.Platform = hostStat.Platform
	}
	if len(cpuStat) > 0 {
		totalFreq := 0.0
		for _, cpu := range cpuStat {
			totalFreq += cpu.Mhz
		}
		info.CPUFreq = totalFreq / float64(len(cpuStat))
	}
	if vmStat != nil {
		info.RAM = float64(vmStat.Total) / 1024 / 1024 / 1024
	}
	return info
}

func (i SysInfo) Meta() map[string]any {
	return map[string]any{
		"arch":     i.Arch,
		"hostname": i.Hostname,
		"platform": i.Platform,
		"ram":      i.RAM,
		"cpu":      i.CPUCount,
		"freq":     i.CPUFreq,
	}
}
