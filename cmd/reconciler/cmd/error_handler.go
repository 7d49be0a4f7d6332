package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/viper"

	"statement-reconciliation-service/pkg/errors"
	"statement-reconciliation-service/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	out     io.Writer
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		out:     os.Stderr,
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints err and returns the process exit code.
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if stderrors.Is(err, context.Canceled) {
		fmt.Fprintln(h.out, "Interrupted")
		return 130
	}
	var summary *errors.ErrorSummary
	if stderrors.As(err, &summary) {
		fmt.Fprintf(h.out, "Error: %v\n", summary)
		for _, e := range summary.Errors {
			fmt.Fprintf(h.out, "  - %s\n", e.Message)
		}
		return summary.GetExitCode()
	}
	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return h.handleReconcilerError(err, reconcilerErr)
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	return 1
}

// handleReconcilerError prints the message, context and suggestion of err.
// top is the error as returned, which may wrap err with more detail.
func (h *CLIErrorHandler) handleReconcilerError(top error, err *errors.ReconcilerError) int {
	if top != error(err) {
		fmt.Fprintf(h.out, "Error: %v\n", top)
	} else {
		fmt.Fprintf(h.out, "Error: %s\n", err.Message)
	}

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for k := range err.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(h.out, "\nContext:\n")
		for _, k := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", k, err.Context[k])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}
	if help := categoryHelp(err.Category); help != "" {
		fmt.Fprintf(h.out, "\n%s\n", help)
	}
	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

func categoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check the --config file and RECONCILER_* environment variables
• Run 'reconciler config show' to see the effective configuration
• Use --store memory to run without a database`
	case errors.CategoryStorage:
		return `Storage error help:
• Check that the database is reachable at database.url
• Run 'reconciler migrate' if the schema has not been applied`
	case errors.CategoryInvalidState:
		return `State error help:
• Closed statements must be reopened before they can be matched or edited
• Only COMPLETADA and CON_DIFERENCIAS statements can be approved`
	case errors.CategoryConflict:
		return `Conflict help:
• Another operator changed the same statement; retry the command`
	default:
		return ""
	}
}
