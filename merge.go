package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var javaResultsFile = regexp.MustCompile(`^java_results_([^_]+)_([^_]+)\.json$`)

// MergeJavaResults appends the results written by the JVM benchmark suite to
// results. Location and database come from the file name. A missing directory
// or no matching files is not an error; a matching file that cannot be parsed
// is skipped and reported in the returned error.
func MergeJavaResults(results *Results, dir string, logger *zap.SugaredLogger) error {
	files, err := filepath.Glob(filepath.Join(dir, "java_results_*.json"))
	if err != nil {
		return err
	}
	var errs []error
	merged := 0
	for _, file := range files {
		match := javaResultsFile.FindStringSubmatch(filepath.Base(file))
		if match == nil {
			logger.Debugf("skip file %v: name does not match java results pattern", file)
			continue
		}
		location, database := match[1], match[2]
		javaResults, err := ReadJavaResults(file, location, database)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to read java results %v: %w", file, err))
			continue
		}
		results.Append(javaResults...)
		merged++
	}
	if merged == 0 {
		logger.Infof("no java results found in %v", dir)
	} else {
		logger.Infof("merged java results from %v files", merged)
	}
	return errors.Join(errs...)
}

func ReadJavaResults(file string, location string, database string) ([]Result, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var javaResults []JavaResult
	if err := json.Unmarshal(data, &javaResults); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(javaResults))
	for _, javaResult := range javaResults {
		limit, err := strconv.Atoi(javaResult.Params.Limit)
		if err != nil {
			return nil, fmt.Errorf("invalid limit %q: %w", javaResult.Params.Limit, err)
		}
		durations := []float64{}
		if len(javaResult.PrimaryMetric.RawData) > 0 {
			durations = javaResult.PrimaryMetric.RawData[0]
		}
		results = append(results, Result{
			Limit:          limit,
			Location:       location,
			Database:       database,
			ConnectionType: "java_" + strings.ToLower(javaResult.Params.ConnectionType),
			Durations:      durations,
			AvgDuration:    Average(durations),
		})
	}
	return results, nil
}
