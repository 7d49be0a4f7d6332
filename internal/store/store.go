// Package store defines the transactional persistence contract of the
// reconciliation core and the single retry wrapper every mutation runs in.
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"statement-reconciliation-service/internal/models"
	"statement-reconciliation-service/pkg/errors"
)

// Store opens transactions against the backing database.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Tx is a unit of work. Reads see the transaction's own writes. A Tx must be
// finished with exactly one of Commit or Rollback.
//
// Lookups scoped by companyID report a row owned by another company exactly
// like a missing row.
type Tx interface {
	// GetStatement loads a statement. forUpdate locks the row until the
	// transaction ends so that competing transitions serialise.
	GetStatement(ctx context.Context, companyID, id int64, forUpdate bool) (*models.BankStatement, error)
	UpdateStatement(ctx context.Context, statement *models.BankStatement) error
	// DeleteStatement removes the statement and its items.
	DeleteStatement(ctx context.Context, id int64) error

	// ListItems returns the statement's items ordered by line number.
	ListItems(ctx context.Context, statementID int64) ([]*models.StatementItem, error)
	GetItem(ctx context.Context, statementID, itemID int64) (*models.StatementItem, error)
	// LinkItem persists the item's link fields. It fails with a
	// CodeConcurrentWrite conflict when another item already holds the movement.
	LinkItem(ctx context.Context, item *models.StatementItem) error
	// UnlinkItem persists the item's cleared link and skip fields.
	UnlinkItem(ctx context.Context, item *models.StatementItem) error
	// FindItemByMovement returns the item currently holding the movement.
	FindItemByMovement(ctx context.Context, movementID int64) (*models.StatementItem, error)

	GetMovement(ctx context.Context, companyID, id int64) (*models.TreasuryMovement, error)
	GetMovements(ctx context.Context, companyID int64, ids []int64) ([]*models.TreasuryMovement, error)
	SetMovementReconciled(ctx context.Context, id int64, reconciled bool) error
	// ListUnlinkedMovements returns movements no item links to, ordered by
	// fecha then id.
	ListUnlinkedMovements(ctx context.Context, filter MovementFilter) ([]*models.TreasuryMovement, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// MovementFilter narrows an unlinked movement query. Nil fields are ignored.
type MovementFilter struct {
	CompanyID     int64
	BankAccountID int64
	FechaDesde    *models.Date
	FechaHasta    *models.Date
	Tipo          *models.MovementType
	MontoMin      *decimal.Decimal
	MontoMax      *decimal.Decimal
}

// Validate rejects inverted ranges and unknown movement types.
func (f MovementFilter) Validate() error {
	if f.FechaDesde != nil && f.FechaHasta != nil && f.FechaDesde.After(*f.FechaHasta) {
		return errors.ValidationError(errors.CodeOutOfRange, "fechaDesde", f.FechaDesde.String(), nil).
			WithSuggestion("fechaDesde must not be after fechaHasta")
	}
	if f.MontoMin != nil && f.MontoMax != nil && f.MontoMin.GreaterThan(*f.MontoMax) {
		return errors.ValidationError(errors.CodeOutOfRange, "montoMin", f.MontoMin.String(), nil).
			WithSuggestion("montoMin must not be greater than montoMax")
	}
	if f.Tipo != nil && !f.Tipo.IsValid() {
		return errors.ValidationError(errors.CodeOutOfRange, "tipo", *f.Tipo, nil).
			WithSuggestion("tipo must be INGRESO or EGRESO")
	}
	return nil
}

// Matches reports whether m passes the filter. Link state is not considered.
func (f MovementFilter) Matches(m *models.TreasuryMovement) bool {
	if m.CompanyID != f.CompanyID || m.BankAccountID != f.BankAccountID {
		return false
	}
	if f.FechaDesde != nil && m.Fecha.Before(*f.FechaDesde) {
		return false
	}
	if f.FechaHasta != nil && m.Fecha.After(*f.FechaHasta) {
		return false
	}
	if f.Tipo != nil && m.Tipo != *f.Tipo {
		return false
	}
	if f.MontoMin != nil && m.Monto.LessThan(*f.MontoMin) {
		return false
	}
	if f.MontoMax != nil && m.Monto.GreaterThan(*f.MontoMax) {
		return false
	}
	return true
}
