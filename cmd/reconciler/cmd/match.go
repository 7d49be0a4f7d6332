package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"statement-reconciliation-service/internal/reconciler"
	"statement-reconciliation-service/pkg/errors"
	"statement-reconciliation-service/pkg/logger"
)

var matchConcurrency int

var matchCmd = &cobra.Command{
	Use:   "match <statementID>...",
	Short: "Run the auto-match pass on one or more statements",
	Long: `Match links every unmatched line of each statement to its best still
available treasury movement. Statements are processed in parallel; lines of
a single statement are always processed in line order.

Examples:
  reconciler match 12 --company 7
  reconciler match 12 13 14 --company 7 --concurrency 2`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseStatementIDs(args)
		if err != nil {
			return err
		}
		caller, err := callerFrom(cmd)
		if err != nil {
			return err
		}

		log := logger.WithComponent("match")
		svc, st, err := newService(cmd.Context(), current, log)
		if err != nil {
			return err
		}
		defer st.Close()

		outcomes, err := runMatch(cmd.Context(), svc, caller, ids, matchConcurrency, log)
		printOutcomes(cmd.OutOrStdout(), outcomes)
		return err
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
	callerFlags(matchCmd)
	matchCmd.Flags().IntVarP(&matchConcurrency, "concurrency", "c", 4, "statements processed at the same time")
}

// matchOutcome is the result of matching one statement.
type matchOutcome struct {
	StatementID int64
	Result      *reconciler.MatchResult
	Err         error
}

// autoMatcher is the part of the service used by the match command.
type autoMatcher interface {
	AutoMatch(ctx context.Context, caller reconciler.Caller, statementID int64) (*reconciler.MatchResult, error)
}

// runMatch matches the statements with at most concurrency in flight. A
// failed statement does not stop the others; failures are returned together
// as an *errors.ErrorSummary. Outcomes keep the order of ids.
func runMatch(ctx context.Context, svc autoMatcher, caller reconciler.Caller, ids []int64, concurrency int, log logger.Logger) ([]matchOutcome, error) {
	if concurrency < 1 {
		return nil, errors.ValidationError(errors.CodeOutOfRange, "concurrency", concurrency, nil)
	}

	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation:   "auto-match",
		Total:       int64(len(ids)),
		LogInterval: 2 * time.Second,
		Logger:      log,
	})

	outcomes := make([]matchOutcome, len(ids))
	p := pool.New().WithMaxGoroutines(concurrency).WithErrors().WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		p.Go(func(ctx context.Context) error {
			result, err := svc.AutoMatch(ctx, caller, id)
			outcomes[i] = matchOutcome{StatementID: id, Result: result, Err: err}
			tracker.Increment(err != nil)
			return err
		})
	}
	err := p.Wait()
	tracker.Complete()
	if err == nil {
		return outcomes, nil
	}

	var failed []*errors.ReconcilerError
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, errors.WrapIfNeeded(o.Err, errors.CategoryInternal, errors.CodeUnexpectedError,
				fmt.Sprintf("match statement %d", o.StatementID)))
		}
	}
	return outcomes, errors.NewErrorSummary(failed)
}

func printOutcomes(w io.Writer, outcomes []matchOutcome) {
	fmt.Fprintf(w, "%-10s %-8s %-8s %s\n", "STATEMENT", "LINKED", "PENDING", "STATUS")
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(w, "%-10d %-8s %-8s %s\n", o.StatementID, "-", "-", errorLine(o.Err))
			continue
		}
		if o.Result == nil {
			continue
		}
		fmt.Fprintf(w, "%-10d %-8d %-8d %s\n", o.StatementID, o.Result.Linked, o.Result.StillPending, "ok")
	}
}

func errorLine(err error) string {
	if rerr, ok := errors.AsReconcilerError(err); ok {
		return fmt.Sprintf("%s: %s", rerr.Code, rerr.Message)
	}
	return err.Error()
}
