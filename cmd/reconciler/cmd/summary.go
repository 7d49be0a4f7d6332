package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"statement-reconciliation-service/internal/reconciler"
	"statement-reconciliation-service/internal/reporter"
	"statement-reconciliation-service/pkg/errors"
	"statement-reconciliation-service/pkg/logger"
)

var (
	summaryFormat   string
	summaryOutput   string
	summaryMaxItems int
)

var summaryCmd = &cobra.Command{
	Use:   "summary <statementID>",
	Short: "Report matched and pending lines of a statement",
	Long: `Summary reports how many lines of a statement are matched, by match
type, and why every other line is still pending.

Examples:
  reconciler summary 12 --company 7
  reconciler summary 12 --company 7 --format json
  reconciler summary 12 --company 7 --format xlsx --output january.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePositiveID(args[0])
		if err != nil {
			return err
		}
		caller, err := callerFrom(cmd)
		if err != nil {
			return err
		}
		format, err := reporter.ParseFormat(summaryFormat)
		if err != nil {
			return err
		}
		if format == reporter.FormatXLSX && summaryOutput == "" {
			return errors.ValidationError(errors.CodeMissingField, "output", nil, nil).
				WithSuggestion("xlsx reports must be written to a file with --output")
		}

		log := logger.WithComponent("summary")
		svc, st, err := newService(cmd.Context(), current, log)
		if err != nil {
			return err
		}
		defer st.Close()

		w := cmd.OutOrStdout()
		if summaryOutput != "" {
			f, err := createOutputFile(summaryOutput)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return writeSummary(cmd.Context(), svc, caller, id, format, summaryMaxItems, w, log)
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	callerFlags(summaryCmd)
	summaryCmd.Flags().StringVarP(&summaryFormat, "format", "f", "console", "output format: console, json, csv, xlsx")
	summaryCmd.Flags().StringVarP(&summaryOutput, "output", "o", "", "output file path (default: stdout)")
	summaryCmd.Flags().IntVar(&summaryMaxItems, "max-items", 20, "pending lines listed on the console, 0 for all")
}

// summarizer is the part of the service used by the summary command.
type summarizer interface {
	Summary(ctx context.Context, caller reconciler.Caller, statementID int64) (*reconciler.Summary, error)
}

func writeSummary(ctx context.Context, svc summarizer, caller reconciler.Caller, id int64, format reporter.OutputFormat, maxItems int, w io.Writer, log logger.Logger) error {
	summary, err := svc.Summary(ctx, caller, id)
	if err != nil {
		return err
	}

	config := reporter.DefaultReportConfig()
	config.Format = format
	config.MaxConsoleItems = maxItems
	generator, err := reporter.NewSafeReportGenerator(config, log)
	if err != nil {
		return err
	}
	return generator.GenerateReportSafely(summary, w)
}

func createOutputFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, errors.ValidationError(errors.CodeOutOfRange, "output", path, err).
			WithSuggestion("the output directory " + strconv.Quote(dir) + " must exist")
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "create "+path, err)
	}
	return f, nil
}
