package reconciler

import (
	"context"
	"fmt"

	"statement-reconciliation-service/internal/models"
	"statement-reconciliation-service/internal/store"
	"statement-reconciliation-service/pkg/errors"
	"statement-reconciliation-service/pkg/logger"
)

// MatchResult reports what an auto-match pass did.
type MatchResult struct {
	StatementID  int64 `json:"statementId"`
	Linked       int   `json:"linked"`
	StillPending int   `json:"stillPending"`
	Rounds       int   `json:"rounds"`
}

// AutoMatch links every unmatched item of the statement, in line order, to
// its best still available candidate. Each link is committed in its own
// transaction, so an interrupted pass keeps what it linked and a re-run picks
// up where it stopped. Running it again with no data change links nothing.
//
// A link can take one side of an earlier item's tie away, so while a round
// both links something and leaves an ambiguous item, another round runs.
func (s *Service) AutoMatch(ctx context.Context, caller Caller, statementID int64) (*MatchResult, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}

	var itemIDs []int64
	err := s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		stmt, err := tx.GetStatement(ctx, caller.CompanyID, statementID, false)
		if err != nil {
			return err
		}
		if err := models.CheckAction(stmt, models.ActionAutoMatch); err != nil {
			return err
		}
		items, err := tx.ListItems(ctx, stmt.ID)
		if err != nil {
			return err
		}
		itemIDs = itemIDs[:0]
		for _, it := range items {
			itemIDs = append(itemIDs, it.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logger.Fields{
		"statement_id": statementID,
		"company_id":   caller.CompanyID,
		"items":        len(itemIDs),
	})
	log.Debug("Starting auto-match")

	result := &MatchResult{StatementID: statementID}
	pending := make(map[int64]models.PendingReason)
	for {
		result.Rounds++
		linked, ambiguous := 0, false
		for _, itemID := range itemIDs {
			if err := ctx.Err(); err != nil {
				return nil, errors.WrapIfNeeded(err, errors.CategoryInternal, errors.CodeUnexpectedError, "auto-match interrupted")
			}

			reason, ok, err := s.matchItem(ctx, caller, statementID, itemID)
			if err != nil {
				log.WithError(err).WithField("item_id", itemID).Warn("Auto-match stopped")
				return nil, err
			}
			switch {
			case ok:
				linked++
				delete(pending, itemID)
			case reason == "":
				delete(pending, itemID)
			default:
				pending[itemID] = reason
				ambiguous = ambiguous || reason == models.ReasonAmbiguous
			}
		}
		result.Linked += linked
		if linked == 0 || !ambiguous {
			break
		}
	}
	result.StillPending = len(pending)

	log.WithFields(logger.Fields{
		"linked":        result.Linked,
		"still_pending": result.StillPending,
		"rounds":        result.Rounds,
	}).Info("Auto-match completed")

	return result, nil
}

// matchItem decides and persists a single item. It returns ok when a link
// was written and the pending reason otherwise; an item that was already
// linked yields neither.
func (s *Service) matchItem(ctx context.Context, caller Caller, statementID, itemID int64) (models.PendingReason, bool, error) {
	var reason models.PendingReason
	var linked bool

	err := s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		reason, linked = "", false

		stmt, err := tx.GetStatement(ctx, caller.CompanyID, statementID, true)
		if err != nil {
			return err
		}
		if err := models.CheckAction(stmt, models.ActionAutoMatch); err != nil {
			return err
		}

		item, err := tx.GetItem(ctx, stmt.ID, itemID)
		if err != nil {
			return err
		}
		if item.IsLinked() {
			return nil
		}
		if item.IsSkipped() {
			reason = models.ReasonManuallySkipped
			return nil
		}

		engine, err := s.engineFor(ctx, tx, stmt, []*models.StatementItem{item})
		if err != nil {
			return err
		}
		decision := engine.Decide(stmt, item, nil)
		if decision.Best == nil {
			reason = decision.Reason
			return nil
		}

		item.Link(decision.Best.Movement.ID, decision.Best.MatchType(), caller.user(), s.now())
		if err := tx.LinkItem(ctx, item); err != nil {
			return err
		}
		if err := tx.SetMovementReconciled(ctx, decision.Best.Movement.ID, true); err != nil {
			return err
		}
		linked = true
		return nil
	})
	return reason, linked, err
}

// LinkRequest is an operator's choice of movement for an item.
type LinkRequest struct {
	MovementID int64 `json:"movementId"`
	// Release takes the movement away from the item currently holding it.
	// Without it a movement linked elsewhere is a conflict.
	Release bool `json:"release"`
}

// ForceLink links the item to the movement chosen by an operator, releasing
// any different movement the item held before. Linking an item to the
// movement it already holds succeeds without further changes.
func (s *Service) ForceLink(ctx context.Context, caller Caller, statementID, itemID int64, req LinkRequest) (*models.StatementItem, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	if req.MovementID <= 0 {
		return nil, errors.ValidationError(errors.CodeInvalidID, "movementId", req.MovementID, nil)
	}
	movementID := req.MovementID

	var result *models.StatementItem
	err := s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		stmt, err := tx.GetStatement(ctx, caller.CompanyID, statementID, true)
		if err != nil {
			return err
		}
		if err := models.CheckAction(stmt, models.ActionForceLink); err != nil {
			return err
		}

		item, err := tx.GetItem(ctx, stmt.ID, itemID)
		if err != nil {
			return err
		}
		movement, err := tx.GetMovement(ctx, caller.CompanyID, movementID)
		if err != nil {
			return err
		}
		if !movement.SameScope(stmt) {
			return errors.ValidationError(errors.CodeScopeMismatch, "movementId", movementID, nil).
				WithContext("bank_account_id", stmt.BankAccountID)
		}

		holds := item.IsLinked() && *item.TreasuryMovementID == movementID
		if holds && item.MatchType != nil && *item.MatchType == models.MatchManual {
			result = item
			return nil
		}
		if !holds && movement.Reconciled {
			if !req.Release {
				return errors.ConflictError(errors.CodeMovementLinked, fmt.Sprintf("treasury movement %d", movementID), nil)
			}
			if err := s.releaseHolder(ctx, tx, caller, movementID); err != nil {
				return err
			}
		}

		previous := item.TreasuryMovementID
		item.Link(movementID, models.MatchManual, caller.user(), s.now())
		if err := tx.LinkItem(ctx, item); err != nil {
			return err
		}
		if previous != nil && *previous != movementID {
			if err := tx.SetMovementReconciled(ctx, *previous, false); err != nil {
				return err
			}
		}
		if err := tx.SetMovementReconciled(ctx, movementID, true); err != nil {
			return err
		}

		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logger.Fields{
		"statement_id": statementID,
		"item_id":      itemID,
		"movement_id":  movementID,
		"released":     req.Release,
		"user_id":      caller.UserID,
	}).Info("Item linked manually")

	return result, nil
}

// releaseHolder clears the link of whichever item holds movementID. The
// holder's statement must still be open to edits. The holder is left pending,
// not skipped.
func (s *Service) releaseHolder(ctx context.Context, tx store.Tx, caller Caller, movementID int64) error {
	holder, err := tx.FindItemByMovement(ctx, movementID)
	if errors.IsCategory(err, errors.CategoryNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	owner, err := tx.GetStatement(ctx, caller.CompanyID, holder.StatementID, true)
	if err != nil {
		return err
	}
	if err := models.CheckAction(owner, models.ActionUnlink); err != nil {
		return err
	}

	holder.Unlink(false, nil, s.now())
	return tx.UnlinkItem(ctx, holder)
}

// Unlink clears the item's link and marks it as manually skipped, which keeps
// later auto-match passes from linking it again until an operator does.
func (s *Service) Unlink(ctx context.Context, caller Caller, statementID, itemID int64) (*models.StatementItem, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}

	var result *models.StatementItem
	err := s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		stmt, err := tx.GetStatement(ctx, caller.CompanyID, statementID, true)
		if err != nil {
			return err
		}
		if err := models.CheckAction(stmt, models.ActionUnlink); err != nil {
			return err
		}

		item, err := tx.GetItem(ctx, stmt.ID, itemID)
		if err != nil {
			return err
		}
		if item.IsSkipped() {
			result = item
			return nil
		}

		previous := item.TreasuryMovementID
		item.Unlink(true, caller.user(), s.now())
		if err := tx.UnlinkItem(ctx, item); err != nil {
			return err
		}
		if previous != nil {
			if err := tx.SetMovementReconciled(ctx, *previous, false); err != nil {
				return err
			}
		}

		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logger.Fields{
		"statement_id": statementID,
		"item_id":      itemID,
		"user_id":      caller.UserID,
	}).Info("Item unlinked")

	return result, nil
}
