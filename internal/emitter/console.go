package emitter

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"

	"github.com/yairfalse/tagaudit/pkg/resource"
)

// EmptyReportMessage is printed in table mode when the audit found nothing.
const EmptyReportMessage = "No untagged resources found."

// Format is a console output format.
type Format string

// Supported console formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatCSV   Format = "csv"
)

// Formats lists the supported console formats.
func Formats() []string {
	return []string{string(FormatTable), string(FormatJSON), string(FormatYAML), string(FormatCSV)}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatJSON, FormatYAML, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("invalid output format: %s (must be one of: table, json, yaml, csv)", s)
}

var tableHeader = []string{"Resource Type", "Resource ID", "Resource Name"}

var csvHeader = []string{"resource_type", "resource_id", "resource_name", "tag_count", "region"}

// ConsoleEmitter renders the report to a writer, normally stdout.
type ConsoleEmitter struct {
	w      io.Writer
	format Format
}

// NewConsoleEmitter creates a console emitter.
func NewConsoleEmitter(w io.Writer, format Format) *ConsoleEmitter {
	return &ConsoleEmitter{w: w, format: format}
}

// Emit renders the report records. Failed audits produce no output here;
// the caller reports the error.
func (e *ConsoleEmitter) Emit(_ context.Context, result resource.ScanResult) error {
	if result.Error != nil {
		return nil
	}

	if result.Report.Empty() && e.format == FormatTable {
		_, err := fmt.Fprintln(e.w, EmptyReportMessage)
		return err
	}

	records := result.Report.Records
	if records == nil {
		records = []resource.Record{}
	}

	switch e.format {
	case FormatJSON:
		return e.writeJSON(records)
	case FormatYAML:
		return e.writeYAML(records)
	case FormatCSV:
		return e.writeCSV(records)
	default:
		return e.writeTable(records)
	}
}

func (e *ConsoleEmitter) writeTable(records []resource.Record) error {
	data := pterm.TableData{tableHeader}
	for _, r := range records {
		data = append(data, []string{string(r.Type), r.ID, r.Name})
	}

	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	_, err = fmt.Fprintln(e.w, out)
	return err
}

func (e *ConsoleEmitter) writeJSON(records []resource.Record) error {
	enc := json.NewEncoder(e.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func (e *ConsoleEmitter) writeYAML(records []resource.Record) error {
	enc := yaml.NewEncoder(e.w)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func (e *ConsoleEmitter) writeCSV(records []resource.Record) error {
	cw := csv.NewWriter(e.w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for _, r := range records {
		row := []string{string(r.Type), r.ID, r.Name, strconv.Itoa(r.TagCount), r.Region}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Close is a no-op for the console emitter.
func (e *ConsoleEmitter) Close() error {
	return nil
}
