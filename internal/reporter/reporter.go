// Package reporter renders statement summaries for people and spreadsheets.
//
// Supported output formats:
//   - Console: human-readable sections for terminal display
//   - JSON: the summary document as served by the API
//   - CSV: one row per pending item followed by the totals
//   - XLSX: a workbook with a summary sheet and a pending items sheet
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatXLSX})
//	err = generator.GenerateReport(summary, w)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"statement-reconciliation-service/internal/models"
	"statement-reconciliation-service/internal/reconciler"
	"statement-reconciliation-service/pkg/errors"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatXLSX    OutputFormat = "xlsx"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatXLSX:
		return true
	default:
		return false
	}
}

// ContentType is the media type served for the format.
func (f OutputFormat) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension is the file extension for the format, without the dot.
func (f OutputFormat) Extension() string {
	if f == FormatConsole {
		return "txt"
	}
	return string(f)
}

// ParseFormat parses a format name, defaulting to console when empty.
func ParseFormat(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatConsole, nil
	}
	if !f.IsValid() {
		return "", errors.ValidationError(errors.CodeOutOfRange, "format", s, nil).
			WithSuggestion("use one of: console, json, csv, xlsx")
	}
	return f, nil
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	IncludePendingItems bool `json:"include_pending_items"`
	// MaxConsoleItems caps the pending items listed on the console. Zero
	// lists them all.
	MaxConsoleItems int `json:"max_console_items"`

	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:              FormatConsole,
		IncludePendingItems: true,
		MaxConsoleItems:     20,
		CSVDelimiter:        ',',
		CSVHeaders:          true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxConsoleItems < 0 {
		return fmt.Errorf("max console items must not be negative, got %d", c.MaxConsoleItems)
	}
	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n') {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}
	return nil
}

// ReportGenerator generates summary reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport renders summary and writes it to writer
func (rg *ReportGenerator) GenerateReport(summary *reconciler.Summary, writer io.Writer) error {
	if summary == nil {
		return fmt.Errorf("summary cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(summary, writer)
	case FormatJSON:
		return rg.generateJSONReport(summary, writer)
	case FormatCSV:
		return rg.generateCSVReport(summary, writer)
	case FormatXLSX:
		return rg.generateXLSXReport(summary, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(summary *reconciler.Summary, writer io.Writer) error {
	fmt.Fprintf(writer, "STATEMENT RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "Statement: %d  Account: %d  Periodo: %s  Estado: %s\n\n",
		summary.StatementID, summary.BankAccountID, summary.Periodo, summary.Estado)

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	fmt.Fprintf(writer, "Items:\n")
	fmt.Fprintf(writer, "  Total:     %d\n", summary.TotalItems)
	fmt.Fprintf(writer, "  Matched:   %d (%.1f%%)\n",
		summary.Matched, calculatePercentage(summary.Matched, summary.TotalItems))
	fmt.Fprintf(writer, "  Pending:   %d (%.1f%%)\n\n",
		summary.Pending, calculatePercentage(summary.Pending, summary.TotalItems))

	fmt.Fprintf(writer, "=== AMOUNTS ===\n")
	fmt.Fprintf(writer, "Total Matched: %s\n", summary.TotalMatched.StringFixed(2))
	fmt.Fprintf(writer, "Total Pending: %s\n\n", summary.TotalPending.StringFixed(2))

	fmt.Fprintf(writer, "=== MATCH TYPES ===\n")
	for _, mt := range []models.MatchType{models.MatchExact, models.MatchTolerance, models.MatchManual} {
		fmt.Fprintf(writer, "%-10s %d\n", mt.String()+":", summary.ByMatchType[mt])
	}

	if len(summary.ByReason) > 0 {
		fmt.Fprintf(writer, "\n=== PENDING REASONS ===\n")
		for _, reason := range sortedReasons(summary.ByReason) {
			fmt.Fprintf(writer, "%-31s %d\n", string(reason)+":", summary.ByReason[reason])
		}
	}

	if rg.config.IncludePendingItems && len(summary.PendingItems) > 0 {
		fmt.Fprintf(writer, "\n=== PENDING ITEMS ===\n")
		rg.printPendingItems(summary.PendingItems, writer)
	}

	return nil
}

func (rg *ReportGenerator) printPendingItems(items []reconciler.PendingItem, writer io.Writer) {
	limit := rg.config.MaxConsoleItems
	for i, it := range items {
		if limit > 0 && i >= limit {
			fmt.Fprintf(writer, "  ... and %d more\n", len(items)-limit)
			break
		}
		fmt.Fprintf(writer, "  %d. Line %d, Fecha: %s, Monto: %s, Reason: %s",
			i+1, it.LineNumber, it.Fecha.String(), it.Monto.StringFixed(2), it.Reason)
		if it.Descripcion != "" {
			fmt.Fprintf(writer, ", %s", it.Descripcion)
		}
		fmt.Fprintf(writer, "\n")
	}
}

func (rg *ReportGenerator) generateJSONReport(summary *reconciler.Summary, writer io.Writer) error {
	out := *summary
	if !rg.config.IncludePendingItems {
		out.PendingItems = nil
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(&out)
}

var csvHeaders = []string{"Record", "Item_ID", "Line", "Fecha", "Monto", "Reason", "Descripcion"}

func (rg *ReportGenerator) generateCSVReport(summary *reconciler.Summary, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(csvHeaders); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	if rg.config.IncludePendingItems {
		for _, it := range summary.PendingItems {
			record := []string{
				"Pending Item",
				fmt.Sprintf("%d", it.ItemID),
				fmt.Sprintf("%d", it.LineNumber),
				it.Fecha.String(),
				it.Monto.StringFixed(2),
				string(it.Reason),
				it.Descripcion,
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write pending item record: %w", err)
			}
		}
	}

	totals := [][]string{
		{"Total Matched", "", fmt.Sprintf("%d", summary.Matched), "", summary.TotalMatched.StringFixed(2), "", ""},
		{"Total Pending", "", fmt.Sprintf("%d", summary.Pending), "", summary.TotalPending.StringFixed(2), "", ""},
	}
	if err := csvWriter.WriteAll(totals); err != nil {
		return fmt.Errorf("failed to write totals: %w", err)
	}
	return csvWriter.Error()
}

const (
	summarySheet = "Resumen"
	pendingSheet = "Pendientes"
)

func (rg *ReportGenerator) generateXLSXReport(summary *reconciler.Summary, writer io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	rows := [][]interface{}{
		{"Statement", summary.StatementID},
		{"Bank account", summary.BankAccountID},
		{"Periodo", summary.Periodo},
		{"Estado", summary.Estado.String()},
		{"Total items", summary.TotalItems},
		{"Matched", summary.Matched},
		{"Pending", summary.Pending},
		{"Total matched", summary.TotalMatched.InexactFloat64()},
		{"Total pending", summary.TotalPending.InexactFloat64()},
	}
	for _, mt := range []models.MatchType{models.MatchExact, models.MatchTolerance, models.MatchManual} {
		rows = append(rows, []interface{}{"Matched " + mt.String(), summary.ByMatchType[mt]})
	}
	for _, reason := range sortedReasons(summary.ByReason) {
		rows = append(rows, []interface{}{"Pending " + string(reason), summary.ByReason[reason]})
	}
	for i, row := range rows {
		if err := setRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(rows)), bold); err != nil {
		return fmt.Errorf("failed to style summary sheet: %w", err)
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 34); err != nil {
		return fmt.Errorf("failed to size summary sheet: %w", err)
	}

	if rg.config.IncludePendingItems {
		if _, err := f.NewSheet(pendingSheet); err != nil {
			return fmt.Errorf("failed to add pending sheet: %w", err)
		}
		header := make([]interface{}, 0, len(csvHeaders)-1)
		for _, h := range csvHeaders[1:] {
			header = append(header, h)
		}
		if err := setRow(f, pendingSheet, 1, header); err != nil {
			return err
		}
		last, _ := excelize.ColumnNumberToName(len(header))
		if err := f.SetCellStyle(pendingSheet, "A1", last+"1", bold); err != nil {
			return fmt.Errorf("failed to style pending sheet: %w", err)
		}
		for i, it := range summary.PendingItems {
			row := []interface{}{it.ItemID, it.LineNumber, it.Fecha.String(), it.Monto.InexactFloat64(), string(it.Reason), it.Descripcion}
			if err := setRow(f, pendingSheet, i+2, row); err != nil {
				return err
			}
		}
	}

	if err := f.Write(writer); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func sortedReasons(byReason map[models.PendingReason]int) []models.PendingReason {
	reasons := make([]models.PendingReason, 0, len(byReason))
	for r := range byReason {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	return reasons
}

func calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}
