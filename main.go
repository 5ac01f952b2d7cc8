package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	envErr := godotenv.Load()
	logger := NewLogger(StringEnv("LOG_LEVEL", "INFO"))
	if envErr != nil {
		logger.Infof(".env file not loaded, using process environment: %v", envErr)
	}
	os.Exit(execute(logger, os.Args[1:]))
}

// execute runs the root command and returns the process exit code. Deferred
// cleanup runs here because os.Exit skips it.
func execute(logger *zap.SugaredLogger, args []string) int {
	defer logger.Sync()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCmd(logger)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		logger.Errorf("benchmark failed: %v", err)
		return 1
	}
	return 0
}

func newRootCmd(logger *zap.SugaredLogger) *cobra.Command {
	var resultFile string
	cmd := &cobra.Command{
		Use:   "driver-benchmark",
		Short: "Compare DB connection types (Arrow, ODBC)",
		Long: `Runs the configured query against every database at several row limits
with each driver family, merges the JVM suite results and reports the fetch
latencies as a table and a CSV file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), logger, resultFile)
		},
	}
	cmd.Flags().StringVarP(&resultFile, "result-file", "r", "all_results.csv", "Result CSV file name")
	return cmd
}

func run(ctx context.Context, logger *zap.SugaredLogger, resultFile string) error {
	start := time.Now()
	configPath := StringEnv("CONFIG_PATH", "config.yaml")
	resultsDir := StringEnv("RESULTS_DIR", "results")

	config, err := LoadConfig(configPath, os.LookupEnv)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create results directory %v: %w", resultsDir, err)
	}

	info := HostStat()
	logger.Infof("host stat: %+v", info)

	runners := []Runner{
		&RunnerArrow{Allocator: memory.DefaultAllocator},
		&RunnerOdbc{Allocator: memory.DefaultAllocator},
		&RunnerPq{},
	}
	system, err := NewSystem(config, resultsDir, logger, runners, "go_arrow", "go_odbc")
	if err != nil {
		return err
	}

	results := system.Run(ctx)
	if err := ReportResults(os.Stdout, results); err != nil {
		return fmt.Errorf("failed to report results: %w", err)
	}
	resultPath := filepath.Join(resultsDir, resultFile)
	if err := WriteResultsFile(resultPath, results); err != nil {
		return fmt.Errorf("failed to write results to %v: %w", resultPath, err)
	}
	logger.Infof("results written to %v", resultPath)

	if dbURL := StringEnv("RESULTS_DB_URL", ""); dbURL != "" {
		storage := Storage{URL: dbURL, AuthToken: StringEnv("RESULTS_DB_AUTH_TOKEN", "")}
		runID := fmt.Sprintf("benchmark-%v", start.Unix())
		if err := storage.Upload(context.WithoutCancel(ctx), runID, info.Meta(), results); err != nil {
			logger.Errorf("failed to upload results: %v", err)
		} else {
			logger.Infof("uploaded results as %v", runID)
		}
	}

	logger.Infof("All use cases - Use case finished in %v ms", time.Since(start).Milliseconds())
	return nil
}
