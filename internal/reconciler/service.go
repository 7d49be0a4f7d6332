// Package reconciler implements the bank statement reconciliation core: the
// auto-match pass, manual linking, the statement lifecycle and the summary.
//
// Every mutation runs in a store transaction through store.RunInTx. Statement
// rows are read for update so that competing transitions on the same
// statement serialise; the one-link-per-movement rule is enforced by the
// store and a lost race is retried after a fresh read.
//
// Example usage:
//
//	svc, err := reconciler.NewService(pgStore, reconciler.DefaultConfig(), nil)
//	caller := reconciler.Caller{CompanyID: 7, UserID: 42}
//	result, err := svc.AutoMatch(ctx, caller, statementID)
//	summary, err := svc.Summary(ctx, caller, statementID)
package reconciler

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"statement-reconciliation-service/internal/matcher"
	"statement-reconciliation-service/internal/models"
	"statement-reconciliation-service/internal/store"
	"statement-reconciliation-service/pkg/errors"
	"statement-reconciliation-service/pkg/logger"
)

// Caller identifies who is acting and on behalf of which company. Both are
// resolved by the authentication layer before the core runs.
type Caller struct {
	CompanyID int64
	UserID    int64
}

// Validate rejects a caller without a company.
func (c Caller) Validate() error {
	if c.CompanyID <= 0 {
		return errors.ValidationError(errors.CodeInvalidID, "companyId", c.CompanyID, nil)
	}
	if c.UserID < 0 {
		return errors.ValidationError(errors.CodeInvalidID, "userId", c.UserID, nil)
	}
	return nil
}

func (c Caller) user() *int64 {
	if c.UserID == 0 {
		return nil
	}
	return models.Int64Ptr(c.UserID)
}

// Config holds configuration options for the reconciliation service
type Config struct {
	Matching *matcher.MatchingConfig `json:"matching" yaml:"matching" mapstructure:"matching"`
	Retry    store.RetryPolicy       `json:"retry" yaml:"retry" mapstructure:"retry"`
}

// DefaultConfig returns a default configuration for the reconciliation service
func DefaultConfig() *Config {
	return &Config{
		Matching: matcher.DefaultMatchingConfig(),
		Retry:    store.DefaultRetryPolicy(),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Matching == nil {
		return errors.ConfigurationError(errors.CodeMissingConfig, "matching", nil, nil)
	}
	if err := c.Matching.Validate(); err != nil {
		return err
	}
	return c.Retry.Validate()
}

// Service is the reconciliation core. It is safe for concurrent use.
type Service struct {
	store  store.Store
	config *Config
	logger logger.Logger
	now    func() time.Time
}

// NewService creates a new reconciliation service
func NewService(s store.Store, config *Config, log logger.Logger) (*Service, error) {
	if s == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "store", nil, nil)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Service{
		store:  s,
		config: config,
		logger: log.WithComponent("reconciler"),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return store.RunInTx(ctx, s.store, s.config.Retry, fn)
}

// StatementView is a statement together with its items and the movements
// those items link to.
type StatementView struct {
	*models.BankStatement
	Items []*models.StatementItem `json:"items"`
	// Movements holds the linked movements ordered by id.
	Movements []*models.TreasuryMovement `json:"movements"`
}

// Get returns the statement, its items in line order and the movements they
// link to.
func (s *Service) Get(ctx context.Context, caller Caller, statementID int64) (*StatementView, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}

	var view *StatementView
	err := s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		stmt, err := tx.GetStatement(ctx, caller.CompanyID, statementID, false)
		if err != nil {
			return err
		}
		items, err := tx.ListItems(ctx, stmt.ID)
		if err != nil {
			return err
		}

		var linked []int64
		for _, it := range items {
			if it.IsLinked() {
				linked = append(linked, *it.TreasuryMovementID)
			}
		}
		movements := []*models.TreasuryMovement{}
		if len(linked) > 0 {
			if movements, err = tx.GetMovements(ctx, caller.CompanyID, linked); err != nil {
				return err
			}
		}

		view = &StatementView{BankStatement: stmt, Items: items, Movements: movements}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// UnmatchedQuery narrows the unmatched movement listing of a statement.
type UnmatchedQuery struct {
	FechaDesde *models.Date
	FechaHasta *models.Date
	Tipo       *models.MovementType
	MontoMin   *decimal.Decimal
	MontoMax   *decimal.Decimal
}

// Unmatched lists the movements of the statement's bank account that no item
// links to, ordered by fecha.
func (s *Service) Unmatched(ctx context.Context, caller Caller, statementID int64, q UnmatchedQuery) ([]*models.TreasuryMovement, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}

	var movements []*models.TreasuryMovement
	err := s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		stmt, err := tx.GetStatement(ctx, caller.CompanyID, statementID, false)
		if err != nil {
			return err
		}
		movements, err = listUnmatched(ctx, tx, store.MovementFilter{
			CompanyID:     caller.CompanyID,
			BankAccountID: stmt.BankAccountID,
			FechaDesde:    q.FechaDesde,
			FechaHasta:    q.FechaHasta,
			Tipo:          q.Tipo,
			MontoMin:      q.MontoMin,
			MontoMax:      q.MontoMax,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return movements, nil
}

// UnmatchedByAccount lists the unlinked movements of a bank account directly.
func (s *Service) UnmatchedByAccount(ctx context.Context, filter store.MovementFilter) ([]*models.TreasuryMovement, error) {
	if err := (Caller{CompanyID: filter.CompanyID}).Validate(); err != nil {
		return nil, err
	}

	var movements []*models.TreasuryMovement
	err := s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		movements, err = listUnmatched(ctx, tx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return movements, nil
}

func listUnmatched(ctx context.Context, tx store.Tx, filter store.MovementFilter) ([]*models.TreasuryMovement, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	movements, err := tx.ListUnlinkedMovements(ctx, filter)
	if err != nil {
		return nil, err
	}
	if movements == nil {
		movements = []*models.TreasuryMovement{}
	}
	return movements, nil
}

// Candidates previews the ranked candidates of one item against the
// movements currently available.
func (s *Service) Candidates(ctx context.Context, caller Caller, statementID, itemID int64) ([]matcher.Candidate, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}

	var candidates []matcher.Candidate
	err := s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		stmt, err := tx.GetStatement(ctx, caller.CompanyID, statementID, false)
		if err != nil {
			return err
		}
		item, err := tx.GetItem(ctx, stmt.ID, itemID)
		if err != nil {
			return err
		}
		engine, err := s.engineFor(ctx, tx, stmt, []*models.StatementItem{item})
		if err != nil {
			return err
		}
		candidates = engine.Preview(stmt, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if candidates == nil {
		candidates = []matcher.Candidate{}
	}
	return candidates, nil
}

// engineFor builds a matching engine over the unlinked movements that can
// reach any of items under the statement's tolerance.
func (s *Service) engineFor(ctx context.Context, tx store.Tx, stmt *models.BankStatement, items []*models.StatementItem) (*matcher.Engine, error) {
	if len(items) == 0 {
		return matcher.NewEngine(s.config.Matching, nil), nil
	}

	days := stmt.ToleranciaDias
	if days < 0 {
		days = 0
	}
	from, to := items[0].Fecha, items[0].Fecha
	for _, it := range items[1:] {
		if it.Fecha.Before(from) {
			from = it.Fecha
		}
		if it.Fecha.After(to) {
			to = it.Fecha
		}
	}
	from, to = from.AddDays(-days), to.AddDays(days)

	movements, err := tx.ListUnlinkedMovements(ctx, store.MovementFilter{
		CompanyID:     stmt.CompanyID,
		BankAccountID: stmt.BankAccountID,
		FechaDesde:    &from,
		FechaHasta:    &to,
	})
	if err != nil {
		return nil, err
	}
	return matcher.NewEngine(s.config.Matching, movements), nil
}
