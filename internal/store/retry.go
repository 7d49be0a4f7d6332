package store

import (
	"context"
	"fmt"
	"math"
	"time"

	"statement-reconciliation-service/pkg/errors"
	"statement-reconciliation-service/pkg/logger"
)

const maxShift = 62

// RetryPolicy bounds how often a transaction is re-run after losing a race.
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay" yaml:"base_delay" mapstructure:"base_delay"`
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 20 * time.Millisecond}
}

// Validate checks the retry policy bounds.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "retry.max_attempts", p.MaxAttempts, nil)
	}
	if p.BaseDelay < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "retry.base_delay", p.BaseDelay.String(), nil)
	}
	return nil
}

// Retryable reports whether err is a lost race that a fresh read may resolve.
func Retryable(err error) bool {
	return errors.IsCode(err, errors.CodeConcurrentWrite)
}

// RunInTx runs fn inside a transaction and commits it. Any error or panic
// rolls the transaction back. When the transaction loses a race (see
// Retryable) fn runs again in a new transaction after an exponential delay,
// up to MaxAttempts times in total, so fn must re-read whatever it decides on.
func RunInTx(ctx context.Context, s Store, policy RetryPolicy, fn func(ctx context.Context, tx Tx) error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	var err error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if sleepErr := sleepWithContext(ctx, exponential(policy.BaseDelay, attempt-1)); sleepErr != nil {
				return errors.WrapIfNeeded(sleepErr, errors.CategoryInternal, errors.CodeUnexpectedError, "transaction retry interrupted")
			}
		}

		err = runOnce(ctx, s, fn)
		if err == nil || !Retryable(err) {
			return err
		}

		logger.WithComponent("store").WithFields(logger.Fields{
			"attempt":      attempt + 1,
			"max_attempts": policy.MaxAttempts,
		}).WithError(err).Debug("Transaction lost a race, retrying")
	}

	return errors.ConflictError(errors.CodeRetryExhausted, "transaction", err).
		WithContext("attempts", policy.MaxAttempts)
}

func runOnce(ctx context.Context, s Store, fn func(ctx context.Context, tx Tx) error) (err error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeConnectionFailed, "begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				logger.WithComponent("store").WithError(rbErr).Warn("Rollback failed")
			}
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeQueryFailed, "commit transaction")
	}
	return nil
}

// exponential returns base * 2^attempt, saturating instead of overflowing.
func exponential(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	} else if attempt > maxShift {
		attempt = maxShift
	}

	multiplier := int64(1) << attempt
	if int64(base) > math.MaxInt64/multiplier {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(int64(base) * multiplier)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context done: %w", ctx.Err())
	}
}
