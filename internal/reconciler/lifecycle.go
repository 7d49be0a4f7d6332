package reconciler

import (
	"context"

	"github.com/shopspring/decimal"

	"statement-reconciliation-service/internal/models"
	"statement-reconciliation-service/internal/store"
	"statement-reconciliation-service/pkg/errors"
	"statement-reconciliation-service/pkg/logger"
)

// Close freezes the statement. It lands in COMPLETADA when every item is
// linked and in CON_DIFERENCIAS otherwise. Closing a closed statement fails
// with an already_closed error; of two concurrent closes the second one sees
// the first one's commit and fails the same way.
func (s *Service) Close(ctx context.Context, caller Caller, statementID int64) (*models.BankStatement, error) {
	return s.transition(ctx, caller, statementID, models.ActionClose, func(ctx context.Context, tx store.Tx, stmt *models.BankStatement) error {
		if err := models.CheckAction(stmt, models.ActionClose); err != nil {
			return err
		}
		items, err := tx.ListItems(ctx, stmt.ID)
		if err != nil {
			return err
		}
		pending := 0
		for _, it := range items {
			if !it.IsLinked() {
				pending++
			}
		}
		return stmt.Close(pending, caller.user(), s.now())
	})
}

// Reopen returns a closed statement to EN_PROCESO. Links are kept.
func (s *Service) Reopen(ctx context.Context, caller Caller, statementID int64) (*models.BankStatement, error) {
	return s.transition(ctx, caller, statementID, models.ActionReopen, func(ctx context.Context, tx store.Tx, stmt *models.BankStatement) error {
		return stmt.Reopen()
	})
}

// Approve finalises a COMPLETADA or CON_DIFERENCIAS statement into CERRADA.
func (s *Service) Approve(ctx context.Context, caller Caller, statementID int64) (*models.BankStatement, error) {
	return s.transition(ctx, caller, statementID, models.ActionApprove, func(ctx context.Context, tx store.Tx, stmt *models.BankStatement) error {
		return stmt.Approve(caller.user(), s.now())
	})
}

// TolerancePatch carries the tolerances to change. Nil fields keep their
// current value.
type TolerancePatch struct {
	Amount *decimal.Decimal `json:"toleranciaMonto,omitempty"`
	Days   *int             `json:"toleranciaDias,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TolerancePatch) IsEmpty() bool {
	return p.Amount == nil && p.Days == nil
}

// UpdateTolerances changes the statement's matching tolerances. Existing
// links are left as they are; the new tolerances apply to the next pass.
func (s *Service) UpdateTolerances(ctx context.Context, caller Caller, statementID int64, patch TolerancePatch) (*models.BankStatement, error) {
	if patch.IsEmpty() {
		return nil, errors.ValidationError(errors.CodeMissingField, "toleranciaMonto", nil, nil).
			WithSuggestion("provide toleranciaMonto, toleranciaDias or both")
	}

	return s.transition(ctx, caller, statementID, models.ActionUpdateTolerances, func(ctx context.Context, tx store.Tx, stmt *models.BankStatement) error {
		tol := stmt.Tolerance()
		if patch.Amount != nil {
			tol.Amount = *patch.Amount
		}
		if patch.Days != nil {
			tol.Days = *patch.Days
		}
		return stmt.SetTolerances(tol)
	})
}

// Delete removes a statement that is still EN_PROCESO together with its
// items. Movements it held are released, never deleted.
func (s *Service) Delete(ctx context.Context, caller Caller, statementID int64) error {
	if err := caller.Validate(); err != nil {
		return err
	}

	released := 0
	err := s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		released = 0

		stmt, err := tx.GetStatement(ctx, caller.CompanyID, statementID, true)
		if err != nil {
			return err
		}
		if err := models.CheckAction(stmt, models.ActionDelete); err != nil {
			return err
		}

		items, err := tx.ListItems(ctx, stmt.ID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if !it.IsLinked() {
				continue
			}
			if err := tx.SetMovementReconciled(ctx, *it.TreasuryMovementID, false); err != nil {
				return err
			}
			released++
		}
		return tx.DeleteStatement(ctx, stmt.ID)
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logger.Fields{
		"statement_id": statementID,
		"released":     released,
		"user_id":      caller.UserID,
	}).Info("Statement deleted")

	return nil
}

// transition loads the statement for update, applies fn and persists the
// result, all in one transaction.
func (s *Service) transition(ctx context.Context, caller Caller, statementID int64, action models.Action,
	fn func(ctx context.Context, tx store.Tx, stmt *models.BankStatement) error) (*models.BankStatement, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}

	var result *models.BankStatement
	err := s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		stmt, err := tx.GetStatement(ctx, caller.CompanyID, statementID, true)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, stmt); err != nil {
			return err
		}
		if err := tx.UpdateStatement(ctx, stmt); err != nil {
			return err
		}
		result = stmt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logger.Fields{
		"statement_id": statementID,
		"action":       string(action),
		"estado":       result.Estado.String(),
		"user_id":      caller.UserID,
	}).Info("Statement updated")

	return result, nil
}
