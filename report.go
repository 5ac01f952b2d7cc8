package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var reportHeader = []string{"Limit", "Location", "Database", "Connection type", "Duration"}

// ReportRows flattens results into table rows. With perDuration every measured
// duration becomes its own row; otherwise one row per result holds the average.
// Failed results always produce a single row carrying the error.
func ReportRows(results Results, perDuration bool) [][]string {
	rows := make([][]string, 0, len(results.Results))
	for _, result := range results.Results {
		prefix := []string{
			strconv.Itoa(result.Limit),
			result.Location,
			result.Database,
			result.ConnectionType,
		}
		switch {
		case result.Failed():
			rows = append(rows, append(prefix, *result.Error))
		case perDuration:
			for _, duration := range result.Durations {
				row := append([]string{}, prefix...)
				rows = append(rows, append(row, strconv.FormatFloat(duration, 'f', -1, 64)))
			}
		default:
			rows = append(rows, append(prefix, fmt.Sprintf("%.2f", result.AvgDuration)))
		}
	}
	return rows
}

// ReportResults prints a psql-style table with the average duration (or the
// error) of every result.
func ReportResults(w io.Writer, results Results) error {
	rows := ReportRows(results, false)
	widths := make([]int, len(reportHeader))
	for i, name := range reportHeader {
		widths[i] = len(name)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	border := func(edge, cross string) string {
		parts := make([]string, len(widths))
		for i, width := range widths {
			parts[i] = strings.Repeat("-", width+2)
		}
		return edge + strings.Join(parts, cross) + edge
	}
	line := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = fmt.Sprintf(" %-*s ", widths[i], cell)
		}
		return "|" + strings.Join(parts, "|") + "|"
	}

	lines := []string{border("+", "+"), line(reportHeader), border("|", "+")}
	for _, row := range rows {
		lines = append(lines, line(row))
	}
	lines = append(lines, border("+", "+"))
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

func WriteResultsCSV(w io.Writer, results Results) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(reportHeader); err != nil {
		return err
	}
	if err := writer.WriteAll(ReportRows(results, true)); err != nil {
		return err
	}
	return writer.Error()
}

func WriteResultsFile(path string, results Results) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteResultsCSV(file, results); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
