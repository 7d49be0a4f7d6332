// Package postgres implements store.Store on PostgreSQL through a pgx
// connection pool.
package postgres

import (
	"context"
	_ "embed"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"statement-reconciliation-service/internal/models"
	"statement-reconciliation-service/internal/store"
	"statement-reconciliation-service/pkg/errors"
	"statement-reconciliation-service/pkg/logger"
)

//go:embed schema.sql
var schema string

// Schema returns the DDL applied by Migrate.
func Schema() string {
	return schema
}

// Config holds the connection settings.
type Config struct {
	URL      string
	MaxConns int32
}

// Store is a PostgreSQL backed store.Store.
type Store struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// New opens a connection pool and verifies it with a ping.
func New(ctx context.Context, config Config) (*Store, error) {
	if strings.TrimSpace(config.URL) == "" {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "database.url", "", nil)
	}

	poolConfig, err := pgxpool.ParseConfig(config.URL)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "database.url", "<redacted>", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.StorageError(errors.CodeConnectionFailed, "connect", err)
	}

	s := &Store{pool: pool, logger: logger.WithComponent("postgres")}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s.logger.WithField("max_conns", poolConfig.MaxConns).Info("Connected to database")
	return s, nil
}

// Migrate applies the embedded schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return errors.StorageError(errors.CodeQueryFailed, "migrate", err)
	}
	s.logger.Info("Schema applied")
	return nil
}

// Begin starts a read-committed transaction.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errors.StorageError(errors.CodeConnectionFailed, "begin transaction", err)
	}
	return &pgTx{tx: tx}, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return errors.StorageError(errors.CodeConnectionFailed, "ping", err)
	}
	return nil
}

// Close releases every pooled connection.
func (s *Store) Close() {
	s.pool.Close()
}

// mapError turns driver errors into the service error taxonomy. Unique
// violations, serialisation failures and deadlocks are lost races.
func mapError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsReconcilerError(err); ok {
		return err
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01":
			return errors.ConflictError(errors.CodeConcurrentWrite, operation, err).
				WithContext("constraint", pgErr.ConstraintName)
		case "23503", "23514":
			return errors.ValidationError(errors.CodeOutOfRange, operation, pgErr.ConstraintName, err)
		}
	}

	return errors.StorageError(errors.CodeQueryFailed, operation, err)
}

const statementColumns = `id, bank_account_id, company_id, doc_type, periodo, estado,
	tolerancia_monto, tolerancia_dias, cerrado_at, cerrado_por`

const itemColumns = `id, statement_id, line_number, fecha, monto, tipo, descripcion,
	treasury_movement_id, match_type, matched_at, matched_by, skipped_at, skipped_by`

const movementColumns = `m.id, m.bank_account_id, m.company_id, m.fecha, m.tipo, m.medio, m.monto,
	m.descripcion, m.reference_type, m.reconciled`

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Commit(ctx context.Context) error {
	return mapError(t.tx.Commit(ctx), "commit")
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if stderrors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return mapError(err, "rollback")
}

func (t *pgTx) GetStatement(ctx context.Context, companyID, id int64, forUpdate bool) (*models.BankStatement, error) {
	query := `SELECT ` + statementColumns + ` FROM bank_statements WHERE id = $1 AND company_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var s models.BankStatement
	var estado string
	err := t.tx.QueryRow(ctx, query, id, companyID).Scan(
		&s.ID, &s.BankAccountID, &s.CompanyID, &s.DocType, &s.Periodo, &estado,
		&s.ToleranciaMonto, &s.ToleranciaDias, &s.CerradoAt, &s.CerradoPor,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFoundError(errors.CodeStatementNotFound, "statement", id)
	}
	if err != nil {
		return nil, mapError(err, "get statement")
	}
	s.Estado = models.Estado(estado)
	return &s, nil
}

func (t *pgTx) UpdateStatement(ctx context.Context, s *models.BankStatement) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bank_statements
		   SET estado = $2, tolerancia_monto = $3, tolerancia_dias = $4, cerrado_at = $5, cerrado_por = $6
		 WHERE id = $1`,
		s.ID, string(s.Estado), s.ToleranciaMonto, s.ToleranciaDias, s.CerradoAt, s.CerradoPor,
	)
	if err != nil {
		return mapError(err, "update statement")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFoundError(errors.CodeStatementNotFound, "statement", s.ID)
	}
	return nil
}

func (t *pgTx) DeleteStatement(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM bank_statements WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete statement")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFoundError(errors.CodeStatementNotFound, "statement", id)
	}
	return nil
}

func scanItem(row pgx.Row) (*models.StatementItem, error) {
	var it models.StatementItem
	var matchType *string
	if err := row.Scan(
		&it.ID, &it.StatementID, &it.LineNumber, &it.Fecha, &it.Monto, &it.Tipo, &it.Descripcion,
		&it.TreasuryMovementID, &matchType, &it.MatchedAt, &it.MatchedBy, &it.SkippedAt, &it.SkippedBy,
	); err != nil {
		return nil, err
	}
	if matchType != nil {
		mt := models.MatchType(*matchType)
		it.MatchType = &mt
	}
	return &it, nil
}

func (t *pgTx) ListItems(ctx context.Context, statementID int64) ([]*models.StatementItem, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+itemColumns+` FROM statement_items WHERE statement_id = $1 ORDER BY line_number, id`,
		statementID)
	if err != nil {
		return nil, mapError(err, "list items")
	}
	defer rows.Close()

	var items []*models.StatementItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, mapError(err, "scan item")
		}
		items = append(items, it)
	}
	return items, mapError(rows.Err(), "list items")
}

func (t *pgTx) GetItem(ctx context.Context, statementID, itemID int64) (*models.StatementItem, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM statement_items WHERE id = $1 AND statement_id = $2`,
		itemID, statementID)
	it, err := scanItem(row)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFoundError(errors.CodeItemNotFound, "statement item", itemID)
	}
	if err != nil {
		return nil, mapError(err, "get item")
	}
	return it, nil
}

func (t *pgTx) writeItemLink(ctx context.Context, it *models.StatementItem, operation string) error {
	var matchType *string
	if it.MatchType != nil {
		mt := string(*it.MatchType)
		matchType = &mt
	}

	tag, err := t.tx.Exec(ctx, `
		UPDATE statement_items
		   SET treasury_movement_id = $2, match_type = $3, matched_at = $4, matched_by = $5,
		       skipped_at = $6, skipped_by = $7
		 WHERE id = $1`,
		it.ID, it.TreasuryMovementID, matchType, it.MatchedAt, it.MatchedBy, it.SkippedAt, it.SkippedBy,
	)
	if err != nil {
		return mapError(err, fmt.Sprintf("%s %d", operation, it.ID))
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFoundError(errors.CodeItemNotFound, "statement item", it.ID)
	}
	return nil
}

func (t *pgTx) LinkItem(ctx context.Context, it *models.StatementItem) error {
	if it.TreasuryMovementID == nil {
		return errors.InternalError(errors.CodeUnexpectedError, "link item", fmt.Errorf("item %d has no movement", it.ID))
	}
	return t.writeItemLink(ctx, it, "link item")
}

func (t *pgTx) UnlinkItem(ctx context.Context, it *models.StatementItem) error {
	return t.writeItemLink(ctx, it, "unlink item")
}

func (t *pgTx) FindItemByMovement(ctx context.Context, movementID int64) (*models.StatementItem, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM statement_items WHERE treasury_movement_id = $1 FOR UPDATE`,
		movementID)
	it, err := scanItem(row)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFoundError(errors.CodeItemNotFound, "statement item for movement", movementID)
	}
	if err != nil {
		return nil, mapError(err, "find item by movement")
	}
	return it, nil
}

func scanMovement(row pgx.Row) (*models.TreasuryMovement, error) {
	var m models.TreasuryMovement
	var tipo string
	if err := row.Scan(
		&m.ID, &m.BankAccountID, &m.CompanyID, &m.Fecha, &tipo, &m.Medio, &m.Monto,
		&m.Descripcion, &m.ReferenceType, &m.Reconciled,
	); err != nil {
		return nil, err
	}
	m.Tipo = models.MovementType(tipo)
	return &m, nil
}

func (t *pgTx) GetMovement(ctx context.Context, companyID, id int64) (*models.TreasuryMovement, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+movementColumns+` FROM treasury_movements m WHERE m.id = $1 AND m.company_id = $2`,
		id, companyID)
	m, err := scanMovement(row)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFoundError(errors.CodeMovementNotFound, "treasury movement", id)
	}
	if err != nil {
		return nil, mapError(err, "get movement")
	}
	return m, nil
}

func (t *pgTx) queryMovements(ctx context.Context, operation, query string, args ...interface{}) ([]*models.TreasuryMovement, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, operation)
	}
	defer rows.Close()

	var out []*models.TreasuryMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, mapError(err, operation)
		}
		out = append(out, m)
	}
	return out, mapError(rows.Err(), operation)
}

func (t *pgTx) GetMovements(ctx context.Context, companyID int64, ids []int64) ([]*models.TreasuryMovement, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return t.queryMovements(ctx, "get movements",
		`SELECT `+movementColumns+` FROM treasury_movements m
		  WHERE m.company_id = $1 AND m.id = ANY($2) ORDER BY m.id`,
		companyID, ids)
}

func (t *pgTx) SetMovementReconciled(ctx context.Context, id int64, reconciled bool) error {
	tag, err := t.tx.Exec(ctx, `UPDATE treasury_movements SET reconciled = $2 WHERE id = $1`, id, reconciled)
	if err != nil {
		return mapError(err, "mark movement")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFoundError(errors.CodeMovementNotFound, "treasury movement", id)
	}
	return nil
}

func (t *pgTx) ListUnlinkedMovements(ctx context.Context, f store.MovementFilter) ([]*models.TreasuryMovement, error) {
	query, args := unlinkedQuery(f)
	return t.queryMovements(ctx, "list unlinked movements", query, args...)
}

// unlinkedQuery builds the filtered unlinked movement query.
func unlinkedQuery(f store.MovementFilter) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + movementColumns + ` FROM treasury_movements m
		WHERE m.company_id = $1 AND m.bank_account_id = $2
		  AND NOT EXISTS (SELECT 1 FROM statement_items i WHERE i.treasury_movement_id = m.id)`)
	args := []interface{}{f.CompanyID, f.BankAccountID}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		fmt.Fprintf(&sb, " AND "+clause, len(args))
	}
	if f.FechaDesde != nil {
		add("m.fecha >= $%d", *f.FechaDesde)
	}
	if f.FechaHasta != nil {
		add("m.fecha <= $%d", *f.FechaHasta)
	}
	if f.Tipo != nil {
		add("m.tipo = $%d", string(*f.Tipo))
	}
	if f.MontoMin != nil {
		add("m.monto >= $%d", *f.MontoMin)
	}
	if f.MontoMax != nil {
		add("m.monto <= $%d", *f.MontoMax)
	}
	sb.WriteString(" ORDER BY m.fecha, m.id")
	return sb.String(), args
}
