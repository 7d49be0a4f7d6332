package api

import (
	"context"

	"statement-reconciliation-service/internal/matcher"
	"statement-reconciliation-service/internal/models"
	"statement-reconciliation-service/internal/reconciler"
	"statement-reconciliation-service/internal/store"
)

// Service is the reconciliation core as seen by the HTTP handlers.
// *reconciler.Service implements it.
//
//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=interface.go Service
type Service interface {
	Ping(ctx context.Context) error

	Get(ctx context.Context, caller reconciler.Caller, statementID int64) (*reconciler.StatementView, error)
	Summary(ctx context.Context, caller reconciler.Caller, statementID int64) (*reconciler.Summary, error)
	Unmatched(ctx context.Context, caller reconciler.Caller, statementID int64, q reconciler.UnmatchedQuery) ([]*models.TreasuryMovement, error)
	UnmatchedByAccount(ctx context.Context, filter store.MovementFilter) ([]*models.TreasuryMovement, error)
	Candidates(ctx context.Context, caller reconciler.Caller, statementID, itemID int64) ([]matcher.Candidate, error)

	AutoMatch(ctx context.Context, caller reconciler.Caller, statementID int64) (*reconciler.MatchResult, error)
	ForceLink(ctx context.Context, caller reconciler.Caller, statementID, itemID int64, req reconciler.LinkRequest) (*models.StatementItem, error)
	Unlink(ctx context.Context, caller reconciler.Caller, statementID, itemID int64) (*models.StatementItem, error)

	Close(ctx context.Context, caller reconciler.Caller, statementID int64) (*models.BankStatement, error)
	Reopen(ctx context.Context, caller reconciler.Caller, statementID int64) (*models.BankStatement, error)
	Approve(ctx context.Context, caller reconciler.Caller, statementID int64) (*models.BankStatement, error)
	UpdateTolerances(ctx context.Context, caller reconciler.Caller, statementID int64, patch reconciler.TolerancePatch) (*models.BankStatement, error)
	Delete(ctx context.Context, caller reconciler.Caller, statementID int64) error
}

var _ Service = (*reconciler.Service)(nil)
