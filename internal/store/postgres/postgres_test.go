package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statement-reconciliation-service/internal/models"
	"statement-reconciliation-service/internal/store"
	"statement-reconciliation-service/pkg/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category errors.ErrorCategory
		code     errors.ErrorCode
	}{
		{"unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "statement_items_movement_uniq"}, errors.CategoryConflict, errors.CodeConcurrentWrite},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, errors.CategoryConflict, errors.CodeConcurrentWrite},
		{"wrapped deadlock", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40P01"}), errors.CategoryConflict, errors.CodeConcurrentWrite},
		{"check violation", &pgconn.PgError{Code: "23514"}, errors.CategoryValidation, errors.CodeOutOfRange},
		{"other", fmt.Errorf("broken pipe"), errors.CategoryStorage, errors.CodeQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(tt.err, "op")
			assert.True(t, errors.IsCategory(err, tt.category), "got %v", err)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}

	assert.NoError(t, mapError(nil, "op"))

	already := errors.NotFoundError(errors.CodeItemNotFound, "statement item", 1)
	assert.Same(t, already, mapError(already, "op"))
}

func TestMapError_UniqueViolationIsRetryable(t *testing.T) {
	assert.True(t, store.Retryable(mapError(&pgconn.PgError{Code: "23505"}, "link item 1")))
}

func TestUnlinkedQuery(t *testing.T) {
	query, args := unlinkedQuery(store.MovementFilter{CompanyID: 1, BankAccountID: 2})
	assert.Len(t, args, 2)
	assert.Contains(t, query, "NOT EXISTS")
	assert.True(t, strings.HasSuffix(query, "ORDER BY m.fecha, m.id"))

	from := models.NewDate(2024, 1, 1)
	tipo := models.MovementEgreso
	hi := decimal.NewFromInt(500)
	query, args = unlinkedQuery(store.MovementFilter{
		CompanyID: 1, BankAccountID: 2, FechaDesde: &from, Tipo: &tipo, MontoMax: &hi,
	})
	require.Len(t, args, 5)
	assert.Contains(t, query, "m.fecha >= $3")
	assert.Contains(t, query, "m.tipo = $4")
	assert.Contains(t, query, "m.monto <= $5")
	assert.Equal(t, "EGRESO", args[3])
}

func TestSchema(t *testing.T) {
	assert.Contains(t, Schema(), "statement_items_movement_uniq")
	assert.Contains(t, Schema(), "ON DELETE CASCADE")
	assert.Contains(t, Schema(), "tolerancia_dias BETWEEN 0 AND 366")
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.True(t, errors.IsCode(err, errors.CodeMissingConfig))
}

// The tests below need a disposable database.
func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("RECONCILER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("RECONCILER_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := New(ctx, Config{URL: url, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestStore_Integration_UniqueLink(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	var statementID, movementID int64
	var itemIDs [2]int64
	err := s.pool.QueryRow(ctx, `INSERT INTO bank_statements (bank_account_id, company_id) VALUES (1, 1) RETURNING id`).Scan(&statementID)
	require.NoError(t, err)
	err = s.pool.QueryRow(ctx, `INSERT INTO treasury_movements (bank_account_id, company_id, fecha, tipo, monto)
		VALUES (1, 1, '2024-01-10', 'INGRESO', 10) RETURNING id`).Scan(&movementID)
	require.NoError(t, err)
	for i := range itemIDs {
		err = s.pool.QueryRow(ctx, `INSERT INTO statement_items (statement_id, line_number, fecha, monto)
			VALUES ($1, $2, '2024-01-10', 10) RETURNING id`, statementID, i+1).Scan(&itemIDs[i])
		require.NoError(t, err)
	}
	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, `DELETE FROM bank_statements WHERE id = $1`, statementID)
		_, _ = s.pool.Exec(ctx, `DELETE FROM treasury_movements WHERE id = $1`, movementID)
	})

	link := func(itemID int64) error {
		return store.RunInTx(ctx, s, store.RetryPolicy{MaxAttempts: 1}, func(ctx context.Context, tx store.Tx) error {
			it, err := tx.GetItem(ctx, statementID, itemID)
			if err != nil {
				return err
			}
			it.Link(movementID, models.MatchExact, nil, time.Now())
			return tx.LinkItem(ctx, it)
		})
	}

	require.NoError(t, link(itemIDs[0]))
	err = link(itemIDs[1])
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict), "got %v", err)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	unlinked, err := tx.ListUnlinkedMovements(ctx, store.MovementFilter{CompanyID: 1, BankAccountID: 1})
	require.NoError(t, err)
	for _, m := range unlinked {
		assert.NotEqual(t, movementID, m.ID)
	}

	st, err := tx.GetStatement(ctx, 1, statementID, true)
	require.NoError(t, err)
	assert.Equal(t, models.EstadoEnProceso, st.Estado)
	assert.True(t, st.ToleranciaMonto.IsZero())
}
