package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statement-reconciliation-service/internal/models"
	"statement-reconciliation-service/internal/store"
	"statement-reconciliation-service/internal/store/memory"
	"statement-reconciliation-service/pkg/logger"
)

const (
	testCompany = int64(7)
	testAccount = int64(70)
	testUser    = int64(42)
)

var testCaller = Caller{CompanyID: testCompany, UserID: testUser}

type fixture struct {
	statements []*models.BankStatement
	items      []*models.StatementItem
	movements  []*models.TreasuryMovement
}

func (f *fixture) statement(id int64, toleranceAmount string, toleranceDays int) *fixture {
	f.statements = append(f.statements, &models.BankStatement{
		ID:              id,
		BankAccountID:   testAccount,
		CompanyID:       testCompany,
		DocType:         "EXTRACTO",
		Periodo:         "2024-01",
		Estado:          models.EstadoEnProceso,
		ToleranciaMonto: decimal.RequireFromString(toleranceAmount),
		ToleranciaDias:  toleranceDays,
	})
	return f
}

func (f *fixture) item(id, statementID int64, line int, fecha models.Date, monto string) *fixture {
	f.items = append(f.items, &models.StatementItem{
		ID:          id,
		StatementID: statementID,
		LineNumber:  line,
		Fecha:       fecha,
		Monto:       decimal.RequireFromString(monto),
	})
	return f
}

func (f *fixture) movement(id int64, fecha models.Date, tipo models.MovementType, monto string) *fixture {
	f.movements = append(f.movements, &models.TreasuryMovement{
		ID:            id,
		BankAccountID: testAccount,
		CompanyID:     testCompany,
		Fecha:         fecha,
		Tipo:          tipo,
		Medio:         "TRANSFERENCIA",
		Monto:         decimal.RequireFromString(monto),
	})
	return f
}

func (f *fixture) service(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	s := f.storeOnly(t)

	svc, err := NewService(s, DefaultConfig(), logger.Discard())
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC) }
	return svc, s
}

func (f *fixture) storeOnly(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	require.NoError(t, s.Seed(f.statements, f.items, f.movements))
	return s
}

func storeFilter(companyID, bankAccountID int64) store.MovementFilter {
	return store.MovementFilter{CompanyID: companyID, BankAccountID: bankAccountID}
}

func jan(day int) models.Date {
	return models.NewDate(2024, time.January, day)
}

// depositAndPayment holds a deposit and a payment; the payment posts one day
// after the bank saw it.
func depositAndPayment(toleranceDays int) *fixture {
	return new(fixture).
		statement(1, "0", toleranceDays).
		item(11, 1, 1, jan(5), "1000.00").
		item(12, 1, 2, jan(7), "-250.00").
		movement(101, jan(5), models.MovementIngreso, "1000.00").
		movement(102, jan(8), models.MovementEgreso, "250.00")
}

// assertOneHolderPerMovement checks the one-link-per-movement rule across the
// whole store.
func assertOneHolderPerMovement(t *testing.T, s store.Store, statementIDs ...int64) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	holders := make(map[int64]int64)
	for _, sid := range statementIDs {
		items, err := tx.ListItems(ctx, sid)
		require.NoError(t, err)
		for _, it := range items {
			if !it.IsLinked() {
				continue
			}
			prev, dup := holders[*it.TreasuryMovementID]
			assert.False(t, dup, "movement %d held by items %d and %d", *it.TreasuryMovementID, prev, it.ID)
			holders[*it.TreasuryMovementID] = it.ID
		}
	}
}

func pendingReasonOf(summary *Summary, itemID int64) models.PendingReason {
	for _, p := range summary.PendingItems {
		if p.ItemID == itemID {
			return p.Reason
		}
	}
	return ""
}

func TestAutoMatchToleranceMatchesBoth(t *testing.T) {
	ctx := context.Background()
	svc, _ := depositAndPayment(2).service(t)

	result, err := svc.AutoMatch(ctx, testCaller, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Linked)
	assert.Equal(t, 0, result.StillPending)

	summary, err := svc.Summary(ctx, testCaller, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, 0, summary.Pending)
	assert.Equal(t, 1, summary.ByMatchType[models.MatchExact])
	assert.Equal(t, 1, summary.ByMatchType[models.MatchTolerance])
	assert.True(t, decimal.RequireFromString("1250").Equal(summary.TotalMatched))

	stmt, err := svc.Close(ctx, testCaller, 1)
	require.NoError(t, err)
	assert.Equal(t, models.EstadoCompletada, stmt.Estado)
	require.NotNil(t, stmt.CerradoPor)
	assert.Equal(t, testUser, *stmt.CerradoPor)
	assert.NotNil(t, stmt.CerradoAt)
}

func TestAutoMatchZeroDayToleranceLeavesPaymentPending(t *testing.T) {
	ctx := context.Background()
	svc, _ := depositAndPayment(0).service(t)

	result, err := svc.AutoMatch(ctx, testCaller, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Linked)
	assert.Equal(t, 1, result.StillPending)

	summary, err := svc.Summary(ctx, testCaller, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pending)
	require.Len(t, summary.PendingItems, 1)
	assert.Equal(t, int64(12), summary.PendingItems[0].ItemID)
	assert.Equal(t, models.ReasonNoCandidate, summary.PendingItems[0].Reason)
	assert.True(t, decimal.RequireFromString("250").Equal(summary.TotalPending))

	stmt, err := svc.Close(ctx, testCaller, 1)
	require.NoError(t, err)
	assert.Equal(t, models.EstadoConDiferencias, stmt.Estado)
}

func TestAutoMatchTwoItemsOneMovement(t *testing.T) {
	build := func() *fixture {
		return new(fixture).
			statement(1, "0", 1).
			item(11, 1, 1, jan(10), "300.00").
			item(12, 1, 2, jan(10), "300.00").
			movement(101, jan(10), models.MovementIngreso, "300.00")
	}

	for run := 0; run < 3; run++ {
		ctx := context.Background()
		svc, s := build().service(t)

		result, err := svc.AutoMatch(ctx, testCaller, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Linked)
		assert.Equal(t, 1, result.StillPending)

		view, err := svc.Get(ctx, testCaller, 1)
		require.NoError(t, err)
		require.Len(t, view.Items, 2)
		require.True(t, view.Items[0].IsLinked(), "the lower line number wins")
		assert.Equal(t, int64(101), *view.Items[0].TreasuryMovementID)
		assert.False(t, view.Items[1].IsLinked())

		summary, err := svc.Summary(ctx, testCaller, 1)
		require.NoError(t, err)
		require.Len(t, summary.PendingItems, 1)
		assert.Equal(t, models.ReasonNoCandidate, summary.PendingItems[0].Reason)

		assertOneHolderPerMovement(t, s, 1)
	}
}

func TestForceLinkReleasesPriorHolder(t *testing.T) {
	ctx := context.Background()
	svc, s := new(fixture).
		statement(1, "0", 0).
		item(11, 1, 1, jan(10), "300.00").
		item(12, 1, 2, jan(11), "300.00").
		movement(101, jan(10), models.MovementIngreso, "300.00").
		service(t)

	_, err := svc.AutoMatch(ctx, testCaller, 1)
	require.NoError(t, err)

	item, err := svc.ForceLink(ctx, testCaller, 1, 12, LinkRequest{MovementID: 101, Release: true})
	require.NoError(t, err)
	assert.Equal(t, int64(101), *item.TreasuryMovementID)
	assert.Equal(t, models.MatchManual, *item.MatchType)
	assert.Equal(t, testUser, *item.MatchedBy)

	view, err := svc.Get(ctx, testCaller, 1)
	require.NoError(t, err)
	assert.False(t, view.Items[0].IsLinked())
	assert.False(t, view.Items[0].IsSkipped())
	assert.True(t, view.Items[1].IsLinked())

	assertOneHolderPerMovement(t, s, 1)

	unmatched, err := svc.Unmatched(ctx, testCaller, 1, UnmatchedQuery{})
	require.NoError(t, err)
	assert.Empty(t, unmatched)
}

func TestAutoMatchFollowsLineNumbers(t *testing.T) {
	ctx := context.Background()
	svc, s := new(fixture).
		statement(1, "0.05", 1).
		item(13, 1, 3, jan(16), "75.25").
		item(11, 1, 1, jan(15), "100.50").
		item(12, 1, 2, jan(15), "-250.00").
		item(14, 1, 4, jan(20), "999.00").
		item(15, 1, 5, jan(15), "100.50").
		movement(1, jan(15), models.MovementIngreso, "100.50").
		movement(2, jan(15), models.MovementEgreso, "250.00").
		movement(3, jan(16), models.MovementIngreso, "75.30").
		movement(4, jan(18), models.MovementIngreso, "500.00").
		service(t)

	result, err := svc.AutoMatch(ctx, testCaller, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Linked)
	assert.Equal(t, 2, result.StillPending)
	assert.Equal(t, 1, result.Rounds)

	view, err := svc.Get(ctx, testCaller, 1)
	require.NoError(t, err)
	want := map[int64]int64{11: 1, 12: 2, 13: 3}
	for _, it := range view.Items {
		movementID, ok := want[it.ID]
		if !ok {
			assert.False(t, it.IsLinked(), "item %d", it.ID)
			continue
		}
		require.True(t, it.IsLinked(), "item %d", it.ID)
		assert.Equal(t, movementID, *it.TreasuryMovementID, "item %d", it.ID)
	}
	assert.Equal(t, models.MatchTolerance, *view.Items[2].MatchType)
	assert.Equal(t, models.MatchExact, *view.Items[0].MatchType)

	summary, err := svc.Summary(ctx, testCaller, 1)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonNoCandidate, pendingReasonOf(summary, 14))
	assert.Equal(t, models.ReasonNoCandidate, pendingReasonOf(summary, 15), "line 5 loses movement 1 to line 1")

	assertOneHolderPerMovement(t, s, 1)
}

func TestAutoMatchResolvesTieAfterLaterLineClaims(t *testing.T) {
	// Line 1 ties between movements 101 and 102 until line 2 claims 101 with
	// an exact match; the next round links line 1 to 102.
	ctx := context.Background()
	svc, s := new(fixture).
		statement(1, "0", 1).
		item(31, 1, 1, jan(10), "60.00").
		item(32, 1, 2, jan(11), "60.00").
		movement(101, jan(11), models.MovementIngreso, "60.00").
		movement(102, jan(9), models.MovementIngreso, "60.00").
		service(t)

	result, err := svc.AutoMatch(ctx, testCaller, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Linked)
	assert.Equal(t, 0, result.StillPending)
	assert.Equal(t, 2, result.Rounds)

	view, err := svc.Get(ctx, testCaller, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(102), *view.Items[0].TreasuryMovementID)
	assert.Equal(t, models.MatchTolerance, *view.Items[0].MatchType)
	assert.Equal(t, int64(101), *view.Items[1].TreasuryMovementID)
	assert.Equal(t, models.MatchExact, *view.Items[1].MatchType)

	again, err := svc.AutoMatch(ctx, testCaller, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Linked)
	assert.Equal(t, 1, again.Rounds)

	assertOneHolderPerMovement(t, s, 1)
}
