package reporter

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"statement-reconciliation-service/internal/reconciler"
	"statement-reconciliation-service/pkg/errors"
	"statement-reconciliation-service/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with logging, input checks and a
// console fallback for the text formats.
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator with error handling
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"report_config",
			fmt.Sprintf("%+v", config),
			err,
		).WithSuggestion("Check the report configuration values")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely renders the report into a buffer first so that a
// failed render never leaves partial output behind. If a JSON or CSV render
// fails, the console format is written instead, prefixed by a notice.
func (srg *SafeReportGenerator) GenerateReportSafely(summary *reconciler.Summary, writer io.Writer) error {
	log := srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
	})
	log.Debug("Starting report generation")

	if err := srg.validateInputs(summary, writer); err != nil {
		log.WithError(err).Error("Report generation failed: input validation")
		return err
	}

	var buf bytes.Buffer
	err := srg.GenerateReport(summary, &buf)
	if err != nil {
		log.WithError(err).Warn("Primary report generation failed")
		if !srg.shouldAttemptFormatFallback() {
			return srg.wrapGenerationError(err)
		}
		buf.Reset()
		if fbErr := srg.generateWithFormatFallback(summary, &buf, err); fbErr != nil {
			return fbErr
		}
	}

	if _, err := buf.WriteTo(writer); err != nil {
		return srg.wrapGenerationError(err)
	}

	log.WithField("statement_id", summary.StatementID).Debug("Report generation completed")
	return nil
}

func (srg *SafeReportGenerator) validateInputs(summary *reconciler.Summary, writer io.Writer) error {
	if summary == nil {
		return errors.ValidationError(errors.CodeMissingField, "summary", nil, nil).
			WithSuggestion("Provide a statement summary")
	}
	if writer == nil {
		return errors.ValidationError(errors.CodeMissingField, "writer", nil, nil).
			WithSuggestion("Provide a valid output writer")
	}
	if summary.Matched+summary.Pending != summary.TotalItems {
		return errors.InternalError(errors.CodeUnexpectedError, "report_generation",
			fmt.Errorf("summary counts do not add up: %d matched + %d pending != %d items",
				summary.Matched, summary.Pending, summary.TotalItems))
	}
	return nil
}

// shouldAttemptFormatFallback is false for the console format, which is the
// fallback, and for XLSX, whose consumers expect a workbook.
func (srg *SafeReportGenerator) shouldAttemptFormatFallback() bool {
	return srg.config.Format == FormatJSON || srg.config.Format == FormatCSV
}

func (srg *SafeReportGenerator) generateWithFormatFallback(summary *reconciler.Summary, writer io.Writer, originalErr error) error {
	fallbackConfig := *srg.config
	fallbackConfig.Format = FormatConsole

	srg.logger.WithField("fallback_format", FormatConsole).Info("Attempting format fallback")

	fallbackGenerator, err := NewReportGenerator(&fallbackConfig)
	if err != nil {
		return srg.wrapGenerationError(originalErr)
	}

	fmt.Fprintf(writer, "NOTE: Report generated in fallback format due to error with requested format\n")
	fmt.Fprintf(writer, "Original error: %v\n\n", originalErr)

	if err := fallbackGenerator.GenerateReport(summary, writer); err != nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", originalErr, err),
		)
	}
	return nil
}

func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return errors.InternalError(
		errors.CodeUnexpectedError,
		"report_generation",
		err,
	).WithSuggestion("Check the output destination and report format settings")
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}
