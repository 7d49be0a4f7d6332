package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statement-reconciliation-service/internal/api/mocks"
	"statement-reconciliation-service/internal/matcher"
	"statement-reconciliation-service/internal/models"
	"statement-reconciliation-service/internal/reconciler"
	"statement-reconciliation-service/internal/store"
	"statement-reconciliation-service/pkg/errors"
	"statement-reconciliation-service/pkg/logger"
)

var caller = reconciler.Caller{CompanyID: 7, UserID: 42}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
}

func newTestServer(t *testing.T) (*mocks.MockService, http.Handler) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	return svc, NewServer(svc, logger.Discard()).Router()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(CompanyIDHeader, "7")
	req.Header.Set(UserIDHeader, "42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var out response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func openStatement() *models.BankStatement {
	return &models.BankStatement{
		ID:              1,
		BankAccountID:   70,
		CompanyID:       7,
		Periodo:         "2024-01",
		Estado:          models.EstadoEnProceso,
		ToleranciaMonto: decimal.RequireFromString("0.50"),
		ToleranciaDias:  2,
	}
}

func TestHealth(t *testing.T) {
	svc, h := newTestServer(t)

	svc.EXPECT().Ping(gomock.Any()).Return(nil)
	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode(t, rec).Success)

	svc.EXPECT().Ping(gomock.Any()).Return(errors.StorageError(errors.CodeConnectionFailed, "ping", io.EOF))
	rec = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, errors.CodeConnectionFailed, decode(t, rec).Error.Code)
}

func TestRequestID(t *testing.T) {
	svc, h := newTestServer(t)
	svc.EXPECT().Ping(gomock.Any()).Return(nil).Times(2)

	rec := do(t, h, http.MethodGet, "/healthz", "")
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, incoming)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, incoming, rec.Header().Get(RequestIDHeader))
}

func TestCallerHeaders(t *testing.T) {
	_, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/statements/1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.False(t, body.Success)
	assert.Equal(t, errors.CodeMissingField, body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)

	req = httptest.NewRequest(http.MethodGet, "/statements/1", nil)
	req.Header.Set(CompanyIDHeader, "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.CodeInvalidID, decode(t, rec).Error.Code)
}

func TestGetStatement(t *testing.T) {
	svc, h := newTestServer(t)

	linked := &models.StatementItem{ID: 11, StatementID: 1, LineNumber: 1,
		Fecha: models.NewDate(2024, time.January, 3), Monto: decimal.RequireFromString("120")}
	linked.Link(101, models.MatchExact, nil, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	view := &reconciler.StatementView{
		BankStatement: openStatement(),
		Items:         []*models.StatementItem{linked},
		Movements: []*models.TreasuryMovement{{ID: 101, BankAccountID: 70, CompanyID: 7,
			Fecha: models.NewDate(2024, time.January, 3), Tipo: models.MovementIngreso,
			Monto: decimal.RequireFromString("120"), Reconciled: true}},
	}
	svc.EXPECT().Get(gomock.Any(), caller, int64(1)).Return(view, nil)

	rec := do(t, h, http.MethodGet, "/statements/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec).Data

	var got models.BankStatement
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "2024-01", got.Periodo)
	assert.Equal(t, models.EstadoEnProceso, got.Estado)

	var body struct {
		Items     []models.StatementItem    `json:"items"`
		Movements []models.TreasuryMovement `json:"movements"`
	}
	require.NoError(t, json.Unmarshal(data, &body))
	require.Len(t, body.Items, 1)
	require.Len(t, body.Movements, 1)
	assert.Equal(t, *body.Items[0].TreasuryMovementID, body.Movements[0].ID)
	assert.Equal(t, models.MovementIngreso, body.Movements[0].Tipo)
	assert.True(t, body.Movements[0].Monto.Equal(decimal.NewFromInt(120)))
}

func TestGetStatementErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		status int
		code   errors.ErrorCode
	}{
		{"bad id", "/statements/x", nil, http.StatusBadRequest, errors.CodeInvalidID},
		{"zero id", "/statements/0", nil, http.StatusBadRequest, errors.CodeInvalidID},
		{"unknown action", "/statements/1?action=explode", nil, http.StatusBadRequest, errors.CodeUnknownAction},
		{"not found", "/statements/9", errors.NotFoundError(errors.CodeStatementNotFound, "statement", 9), http.StatusNotFound, errors.CodeStatementNotFound},
		{"unexpected", "/statements/9", io.ErrUnexpectedEOF, http.StatusInternalServerError, errors.CodeUnexpectedError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, h := newTestServer(t)
			if tt.err != nil {
				svc.EXPECT().Get(gomock.Any(), caller, int64(9)).Return(nil, tt.err)
			}
			rec := do(t, h, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode(t, rec).Error.Code)
		})
	}
}

func TestSummaryFormats(t *testing.T) {
	summary := &reconciler.Summary{
		StatementID:  1,
		Periodo:      "2024-01",
		Estado:       models.EstadoEnProceso,
		TotalItems:   2,
		Matched:      1,
		Pending:      1,
		TotalMatched: decimal.RequireFromString("120"),
		TotalPending: decimal.RequireFromString("45.10"),
		ByMatchType:  map[models.MatchType]int{models.MatchExact: 1},
		ByReason:     map[models.PendingReason]int{models.ReasonNoCandidate: 1},
		PendingItems: []reconciler.PendingItem{{
			ItemID:     12,
			LineNumber: 2,
			Fecha:      models.NewDate(2024, 1, 4),
			Monto:      decimal.RequireFromString("-45.10"),
			Reason:     models.ReasonNoCandidate,
		}},
	}

	t.Run("json envelope by default", func(t *testing.T) {
		svc, h := newTestServer(t)
		svc.EXPECT().Summary(gomock.Any(), caller, int64(1)).Return(summary, nil)

		rec := do(t, h, http.MethodGet, "/statements/1?action=summary", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var got reconciler.Summary
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
		assert.Equal(t, 1, got.Pending)
		assert.True(t, got.TotalPending.Equal(decimal.RequireFromString("45.10")))

		var wire map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &wire))
		for _, key := range []string{"matched", "pending", "totalMatched", "totalPending", "items"} {
			assert.Contains(t, wire, key)
		}
		require.Len(t, got.PendingItems, 1)
		assert.Equal(t, int64(12), got.PendingItems[0].ItemID)
	})

	t.Run("csv attachment", func(t *testing.T) {
		svc, h := newTestServer(t)
		svc.EXPECT().Summary(gomock.Any(), caller, int64(1)).Return(summary, nil)

		rec := do(t, h, http.MethodGet, "/statements/1?action=summary&format=csv", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="statement-1-summary.csv"`, rec.Header().Get("Content-Disposition"))
		assert.Contains(t, rec.Body.String(), "Pending Item,12,2,2024-01-04,-45.10,NO_CANDIDATE")
	})

	t.Run("xlsx attachment", func(t *testing.T) {
		svc, h := newTestServer(t)
		svc.EXPECT().Summary(gomock.Any(), caller, int64(1)).Return(summary, nil)

		rec := do(t, h, http.MethodGet, "/statements/1?action=summary&format=xlsx", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `attachment; filename="statement-1-summary.xlsx"`, rec.Header().Get("Content-Disposition"))
		assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"))
	})

	t.Run("unknown format", func(t *testing.T) {
		_, h := newTestServer(t)
		rec := do(t, h, http.MethodGet, "/statements/1?action=summary&format=pdf", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errors.CodeOutOfRange, decode(t, rec).Error.Code)
	})
}

func TestUnmatchedMovements(t *testing.T) {
	svc, h := newTestServer(t)

	movements := []*models.TreasuryMovement{{ID: 103, Tipo: models.MovementIngreso, Monto: decimal.RequireFromString("80")}}
	svc.EXPECT().Unmatched(gomock.Any(), caller, int64(1), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ reconciler.Caller, _ int64, q reconciler.UnmatchedQuery) ([]*models.TreasuryMovement, error) {
			require.NotNil(t, q.FechaDesde)
			assert.Equal(t, "2024-01-05", q.FechaDesde.String())
			assert.Nil(t, q.FechaHasta)
			require.NotNil(t, q.Tipo)
			assert.Equal(t, models.MovementIngreso, *q.Tipo)
			require.NotNil(t, q.MontoMin)
			assert.True(t, q.MontoMin.Equal(decimal.NewFromInt(50)))
			return movements, nil
		})

	rec := do(t, h, http.MethodGet, "/statements/1?action=unmatched-movements&fechaDesde=2024-01-05&tipo=ingreso&montoMin=50", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.TreasuryMovement
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, int64(103), got[0].ID)
}

func TestUnmatchedMovementsBadQuery(t *testing.T) {
	_, h := newTestServer(t)

	for target, code := range map[string]errors.ErrorCode{
		"/statements/1?action=unmatched-movements&fechaDesde=05/01/2024": errors.CodeInvalidDate,
		"/statements/1?action=unmatched-movements&tipo=TRANSFER":        errors.CodeOutOfRange,
		"/statements/1?action=unmatched-movements&montoMax=lots":        errors.CodeInvalidAmount,
	} {
		rec := do(t, h, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, code, decode(t, rec).Error.Code, target)
	}
}

func TestUnmatchedByAccount(t *testing.T) {
	svc, h := newTestServer(t)

	svc.EXPECT().UnmatchedByAccount(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, f store.MovementFilter) ([]*models.TreasuryMovement, error) {
			assert.Equal(t, int64(7), f.CompanyID)
			assert.Equal(t, int64(70), f.BankAccountID)
			require.NotNil(t, f.FechaHasta)
			assert.Equal(t, "2024-01-31", f.FechaHasta.String())
			return []*models.TreasuryMovement{}, nil
		})

	rec := do(t, h, http.MethodGet, "/bank-accounts/70/unmatched-movements?fechaHasta=2024-01-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(decode(t, rec).Data))
}

func TestAutoMatch(t *testing.T) {
	svc, h := newTestServer(t)

	svc.EXPECT().AutoMatch(gomock.Any(), caller, int64(1)).
		Return(&reconciler.MatchResult{StatementID: 1, Linked: 3, StillPending: 1, Rounds: 1}, nil)

	rec := do(t, h, http.MethodPost, "/statements/1/match", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"statementId":1,"linked":3,"stillPending":1,"rounds":1}`, string(decode(t, rec).Data))
}

func TestAutoMatchClosedStatement(t *testing.T) {
	svc, h := newTestServer(t)

	svc.EXPECT().AutoMatch(gomock.Any(), caller, int64(1)).
		Return(nil, errors.InvalidStateError("match", string(models.EstadoCerrada)))

	rec := do(t, h, http.MethodPost, "/statements/1/match", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, errors.CodeIllegalTransition, decode(t, rec).Error.Code)
}

func TestCandidates(t *testing.T) {
	svc, h := newTestServer(t)

	svc.EXPECT().Candidates(gomock.Any(), caller, int64(1), int64(13)).Return([]matcher.Candidate{
		{Movement: &models.TreasuryMovement{ID: 103}, Tier: matcher.TierExact},
		{Movement: &models.TreasuryMovement{ID: 104}, Tier: matcher.TierAmountExact, DayDelta: 1},
	}, nil)

	rec := do(t, h, http.MethodGet, "/statements/1/items/13/candidates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []matcher.Candidate
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, int64(104), got[1].Movement.ID)
	assert.Equal(t, 1, got[1].DayDelta)
}

func TestForceLink(t *testing.T) {
	t.Run("links with release", func(t *testing.T) {
		svc, h := newTestServer(t)
		item := &models.StatementItem{ID: 13, StatementID: 1}
		item.Link(104, models.MatchManual, models.Int64Ptr(42), time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))

		svc.EXPECT().ForceLink(gomock.Any(), caller, int64(1), int64(13),
			reconciler.LinkRequest{MovementID: 104, Release: true}).Return(item, nil)

		rec := do(t, h, http.MethodPut, "/statements/1/items/13/link", `{"movementId":104,"release":true}`)
		require.Equal(t, http.StatusOK, rec.Code)
		var got models.StatementItem
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
		require.NotNil(t, got.TreasuryMovementID)
		assert.Equal(t, int64(104), *got.TreasuryMovementID)
	})

	t.Run("movement linked elsewhere", func(t *testing.T) {
		svc, h := newTestServer(t)
		svc.EXPECT().ForceLink(gomock.Any(), caller, int64(1), int64(13), reconciler.LinkRequest{MovementID: 104}).
			Return(nil, errors.ConflictError(errors.CodeMovementLinked, "movement 104", nil))

		rec := do(t, h, http.MethodPut, "/statements/1/items/13/link", `{"movementId":104}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, errors.CodeMovementLinked, decode(t, rec).Error.Code)
	})

	t.Run("body validation", func(t *testing.T) {
		_, h := newTestServer(t)

		rec := do(t, h, http.MethodPut, "/statements/1/items/13/link", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errors.CodeMissingField, decode(t, rec).Error.Code)

		rec = do(t, h, http.MethodPut, "/statements/1/items/13/link", `{"movementId":104,"force":true}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errors.CodeInvalidBody, decode(t, rec).Error.Code)

		rec = do(t, h, http.MethodPut, "/statements/1/items/13/link", `not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errors.CodeInvalidBody, decode(t, rec).Error.Code)
	})
}

func TestUnlink(t *testing.T) {
	svc, h := newTestServer(t)

	skippedAt := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	item := &models.StatementItem{ID: 13, StatementID: 1, SkippedAt: &skippedAt, SkippedBy: models.Int64Ptr(42)}
	svc.EXPECT().Unlink(gomock.Any(), caller, int64(1), int64(13)).Return(item, nil)

	rec := do(t, h, http.MethodDelete, "/statements/1/items/13/link", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.StatementItem
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
	assert.True(t, got.IsSkipped())
	assert.Nil(t, got.TreasuryMovementID)
}

func TestPatchStatement(t *testing.T) {
	closed := openStatement()
	closed.Estado = models.EstadoConDiferencias

	t.Run("close", func(t *testing.T) {
		svc, h := newTestServer(t)
		svc.EXPECT().Close(gomock.Any(), caller, int64(1)).Return(closed, nil)

		rec := do(t, h, http.MethodPatch, "/statements/1", `{"action":"close"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		var got models.BankStatement
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &got))
		assert.Equal(t, models.EstadoConDiferencias, got.Estado)
	})

	t.Run("close twice", func(t *testing.T) {
		svc, h := newTestServer(t)
		svc.EXPECT().Close(gomock.Any(), caller, int64(1)).
			Return(nil, errors.AlreadyClosedError(1, string(models.EstadoConDiferencias)))

		rec := do(t, h, http.MethodPatch, "/statements/1", `{"action":"close"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, errors.CodeAlreadyClosed, decode(t, rec).Error.Code)
	})

	t.Run("reopen and approve", func(t *testing.T) {
		svc, h := newTestServer(t)
		svc.EXPECT().Reopen(gomock.Any(), caller, int64(1)).Return(openStatement(), nil)
		svc.EXPECT().Approve(gomock.Any(), caller, int64(1)).Return(closed, nil)

		assert.Equal(t, http.StatusOK, do(t, h, http.MethodPatch, "/statements/1", `{"action":"reopen"}`).Code)
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodPatch, "/statements/1", `{"action":"approve"}`).Code)
	})

	t.Run("update tolerances", func(t *testing.T) {
		svc, h := newTestServer(t)
		svc.EXPECT().UpdateTolerances(gomock.Any(), caller, int64(1), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ reconciler.Caller, _ int64, p reconciler.TolerancePatch) (*models.BankStatement, error) {
				require.NotNil(t, p.Amount)
				require.NotNil(t, p.Days)
				assert.True(t, p.Amount.Equal(decimal.RequireFromString("1.25")))
				assert.Equal(t, 3, *p.Days)
				return openStatement(), nil
			})

		rec := do(t, h, http.MethodPatch, "/statements/1",
			`{"action":"updateTolerances","toleranciaMonto":"1.25","toleranciaDias":3}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejected actions", func(t *testing.T) {
		_, h := newTestServer(t)

		for body, code := range map[string]errors.ErrorCode{
			`{}`:                   errors.CodeMissingField,
			`{"action":"explode"}`: errors.CodeUnknownAction,
			`{"action":"match"}`:   errors.CodeUnknownAction,
		} {
			rec := do(t, h, http.MethodPatch, "/statements/1", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
			assert.Equal(t, code, decode(t, rec).Error.Code, body)
		}
	})
}

func TestDeleteStatement(t *testing.T) {
	svc, h := newTestServer(t)
	svc.EXPECT().Delete(gomock.Any(), caller, int64(1)).Return(nil)

	rec := do(t, h, http.MethodDelete, "/statements/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1,"deleted":true}`, string(decode(t, rec).Data))
}

func TestUnknownRouteAndMethod(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/ledgers/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decode(t, rec).Success)

	rec = do(t, h, http.MethodPost, "/statements/1", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRecovery(t *testing.T) {
	svc, h := newTestServer(t)
	svc.EXPECT().Get(gomock.Any(), caller, int64(1)).DoAndReturn(
		func(context.Context, reconciler.Caller, int64) (*reconciler.StatementView, error) {
			panic("boom")
		})

	rec := do(t, h, http.MethodGet, "/statements/1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, errors.CodeUnexpectedError, body.Error.Code)
	assert.Equal(t, rec.Header().Get(RequestIDHeader), body.Error.RequestID)
}
