package main

import "fmt"

const UnsupportedMsg = "Unsupported"

type Result struct {
	Limit          int
	Location       string
	Database       string
	ConnectionType string
	// Durations are per-iteration fetch times in milliseconds. A failed run
	// keeps the iterations that completed before the failure.
	Durations   []float64
	AvgDuration float64
	Error       *string
}

func (r Result) Failed() bool { return r.Error != nil }

type Results struct {
	Results []Result
}

func (r *Results) Append(results ...Result) {
	r.Results = append(r.Results, results...)
}

type JavaResultParams struct {
	ConnectionType string `json:"connectionType"`
	DbType         string `json:"dbType"`
	Limit          string `json:"limit"`
}

type JavaResultMetric struct {
	RawData [][]float64 `json:"rawData"`
}

// JavaResult is one entry of the JSON array written by the JVM benchmark suite.
type JavaResult struct {
	Params        JavaResultParams `json:"params"`
	PrimaryMetric JavaResultMetric `json:"primaryMetric"`
}

func Average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values))
}

func UseCaseName(connectionType, location, database string) string {
	return fmt.Sprintf("%v_%v_%v", connectionType, location, database)
}

func errorString(err error) *string {
	msg := err.Error()
	return &msg
}
