package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVExporter writes tables as delimited text
type CSVExporter struct {
	writer  *csv.Writer
	options CSVOptions
}

// CSVOptions configures CSV export behavior
type CSVOptions struct {
	Delimiter      rune   `json:"delimiter"`       // Field delimiter (default: comma)
	UseCRLF        bool   `json:"use_crlf"`        // Use \r\n for line terminator
	IncludeHeader  bool   `json:"include_header"`  // Include column labels
	IncludeSummary bool   `json:"include_summary"` // Prefix label/value summary rows
	DateFormat     string `json:"date_format"`     // Format for time values
}

// DefaultCSVOptions returns default CSV export options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:     ',',
		IncludeHeader: true,
		DateFormat:    "2006-01-02",
	}
}

// NewCSVExporter creates a new CSV exporter
func NewCSVExporter(w io.Writer, options CSVOptions) *CSVExporter {
	writer := csv.NewWriter(w)
	if options.Delimiter != 0 {
		writer.Comma = options.Delimiter
	}
	writer.UseCRLF = options.UseCRLF

	return &CSVExporter{
		writer:  writer,
		options: options,
	}
}

// WriteTable writes the optional summary block, the header and every row,
// then flushes.
func (e *CSVExporter) WriteTable(t *Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if e.options.IncludeSummary && len(t.Summary) > 0 {
		for _, item := range t.Summary {
			if err := e.writer.Write([]string{item.Label, formatText(item.Value, -1, e.options.DateFormat)}); err != nil {
				return fmt.Errorf("failed to write summary: %w", err)
			}
		}
		if err := e.WriteBlank(); err != nil {
			return err
		}
	}
	if e.options.IncludeHeader {
		if err := e.writer.Write(t.Labels()); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	for _, row := range t.Rows {
		if err := e.WriteRow(t.Columns, row); err != nil {
			return err
		}
	}
	return e.Flush()
}

// WriteRow writes one row in column order; missing keys are empty
func (e *CSVExporter) WriteRow(columns []Column, row map[string]any) error {
	record := make([]string, len(columns))
	for i, col := range columns {
		record[i] = formatText(row[col.Key], col.decimals(), e.options.DateFormat)
	}
	if err := e.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return nil
}

// WriteBlank writes an empty separator line
func (e *CSVExporter) WriteBlank() error {
	if err := e.writer.Write([]string{""}); err != nil {
		return fmt.Errorf("failed to write separator: %w", err)
	}
	return nil
}

// Flush writes any buffered data to the underlying writer
func (e *CSVExporter) Flush() error {
	e.writer.Flush()
	return e.writer.Error()
}
