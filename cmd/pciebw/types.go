package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jszwec/csvutil"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"pcie-bw/pkg/eth"
	"pcie-bw/pkg/sweep"
)

// Output formats accepted by --format
var outputFormats = []string{"table", "json", "csv", "simple", "detailed"}

func validateFormat(format string) error {
	for _, f := range outputFormats {
		if strings.EqualFold(format, f) {
			return nil
		}
	}
	return fmt.Errorf("invalid format: %s (valid formats: %s)", format, strings.Join(outputFormats, ", "))
}

// formatRows renders rows in one of outputFormats
func formatRows(format string, rows []sweep.Row, rate eth.LineRate) (string, error) {
	switch strings.ToLower(format) {
	case "json":
		return formatRowsJSON(rows)
	case "csv":
		return formatRowsCSV(rows)
	case "simple":
		return formatRowsSimple(rows), nil
	case "detailed":
		return formatRowsDetailed(rows, rate), nil
	case "table", "":
		return formatRowsTable(rows, rate), nil
	}
	return "", validateFormat(format)
}

func formatRowsJSON(rows []sweep.Row) (string, error) {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode rows: %w", err)
	}
	return string(data) + "\n", nil
}

func formatRowsCSV(rows []sweep.Row) (string, error) {
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("failed to encode rows: %w", err)
	}
	return string(data), nil
}

func formatRowsSimple(rows []sweep.Row) string {
	var builder strings.Builder
	for _, r := range rows {
		builder.WriteString(fmt.Sprintf("%d", r.Size))
		for _, v := range r.Series() {
			builder.WriteString(fmt.Sprintf("\t%.3f", v))
		}
		builder.WriteString("\n")
	}
	return builder.String()
}

func formatRowsDetailed(rows []sweep.Row, rate eth.LineRate) string {
	names := sweep.SeriesNames(rate)
	var builder strings.Builder
	for _, r := range rows {
		builder.WriteString(fmt.Sprintf("Size: %d bytes (payload %d)\n", r.Size, r.Payload))
		for i, v := range r.Series() {
			builder.WriteString(fmt.Sprintf("  %-20s %8.3f Gb/s\n", names[i]+":", v))
		}
		builder.WriteString("\n")
	}
	return builder.String()
}

const cellWidth = 12

func tableRule(left, mid, right string, columns int) string {
	cells := make([]string, columns)
	for i := range cells {
		cells[i] = strings.Repeat("─", cellWidth+2)
	}
	return left + strings.Join(cells, mid) + right + "\n"
}

func formatRowsTable(rows []sweep.Row, rate eth.LineRate) string {
	headers := []string{"Size", "PCIe Write", "PCIe Read", "PCIe R/W", rate.String(), "Simple NIC", "Kernel NIC", "PMD NIC"}

	var builder strings.Builder
	builder.WriteString(tableRule("┌", "┬", "┐", len(headers)))
	for _, h := range headers {
		builder.WriteString(fmt.Sprintf("│ %-*s ", cellWidth, truncateString(h, cellWidth)))
	}
	builder.WriteString("│\n")
	builder.WriteString(tableRule("├", "┼", "┤", len(headers)))

	for _, r := range rows {
		builder.WriteString(fmt.Sprintf("│ %*d ", cellWidth, r.Size))
		for _, v := range r.Series() {
			builder.WriteString(fmt.Sprintf("│ %*.3f ", cellWidth, v))
		}
		builder.WriteString("│\n")
	}

	builder.WriteString(tableRule("└", "┴", "┘", len(headers)))
	return builder.String()
}

// newPrinter formats large counts with thousands separators
func newPrinter() *message.Printer {
	return message.NewPrinter(language.English)
}

// truncateString truncates a string to the specified length, adding "..." if needed
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
