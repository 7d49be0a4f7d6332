package reconciler

import (
	"context"

	"github.com/shopspring/decimal"

	"statement-reconciliation-service/internal/matcher"
	"statement-reconciliation-service/internal/models"
	"statement-reconciliation-service/internal/store"
)

// Summary is the match state of a statement, derived on every request.
type Summary struct {
	StatementID   int64                        `json:"statementId"`
	BankAccountID int64                        `json:"bankAccountId"`
	Periodo       string                       `json:"periodo"`
	Estado        models.Estado                `json:"estado"`
	TotalItems    int                          `json:"totalItems"`
	Matched       int                          `json:"matched"`
	Pending       int                          `json:"pending"`
	TotalMatched  decimal.Decimal              `json:"totalMatched"`
	TotalPending  decimal.Decimal              `json:"totalPending"`
	ByMatchType   map[models.MatchType]int     `json:"byMatchType"`
	ByReason      map[models.PendingReason]int `json:"byReason"`
	PendingItems  []PendingItem                `json:"items"`
}

// PendingItem is an unlinked item and why it is still unlinked.
type PendingItem struct {
	ItemID      int64                `json:"itemId"`
	LineNumber  int                  `json:"lineNumber"`
	Fecha       models.Date          `json:"fecha"`
	Monto       decimal.Decimal      `json:"monto"`
	Descripcion string               `json:"descripcion"`
	Reason      models.PendingReason `json:"reason"`
}

// Summary computes the statement summary. It never writes, so two calls
// without writes in between return the same result.
func (s *Service) Summary(ctx context.Context, caller Caller, statementID int64) (*Summary, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}

	var summary *Summary
	err := s.inTx(ctx, func(ctx context.Context, tx store.Tx) error {
		stmt, err := tx.GetStatement(ctx, caller.CompanyID, statementID, false)
		if err != nil {
			return err
		}
		items, err := tx.ListItems(ctx, stmt.ID)
		if err != nil {
			return err
		}

		var unlinked []*models.StatementItem
		for _, it := range items {
			if !it.IsLinked() {
				unlinked = append(unlinked, it)
			}
		}
		engine, err := s.engineFor(ctx, tx, stmt, unlinked)
		if err != nil {
			return err
		}

		summary = Summarize(stmt, items, engine)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Summarize builds the summary of stmt from its items. engine classifies the
// pending items; it should index the movements currently unlinked.
func Summarize(stmt *models.BankStatement, items []*models.StatementItem, engine *matcher.Engine) *Summary {
	summary := &Summary{
		StatementID:   stmt.ID,
		BankAccountID: stmt.BankAccountID,
		Periodo:       stmt.Periodo,
		Estado:        stmt.Estado,
		TotalItems:    len(items),
		TotalMatched:  decimal.Zero,
		TotalPending:  decimal.Zero,
		ByMatchType:   make(map[models.MatchType]int),
		ByReason:      make(map[models.PendingReason]int),
		PendingItems:  []PendingItem{},
	}

	for _, it := range matcher.SortByLine(items) {
		if it.IsLinked() {
			summary.Matched++
			summary.TotalMatched = summary.TotalMatched.Add(it.AbsAmount())
			if it.MatchType != nil {
				summary.ByMatchType[*it.MatchType]++
			}
			continue
		}

		reason := engine.PendingReason(stmt, it)
		summary.Pending++
		summary.TotalPending = summary.TotalPending.Add(it.AbsAmount())
		summary.ByReason[reason]++
		summary.PendingItems = append(summary.PendingItems, PendingItem{
			ItemID:      it.ID,
			LineNumber:  it.LineNumber,
			Fecha:       it.Fecha,
			Monto:       it.Monto,
			Descripcion: it.Descripcion,
			Reason:      reason,
		})
	}

	return summary
}
