// Package memory is an in-process Store. Transactions are serialised and work
// on a private copy of the data that replaces the shared copy on commit.
package memory

import (
	"context"
	"fmt"
	"sort"

	"statement-reconciliation-service/internal/models"
	"statement-reconciliation-service/internal/store"
	"statement-reconciliation-service/pkg/errors"
)

// Store is an in-memory store.Store.
type Store struct {
	sem  chan struct{}
	data *dataset
}

type dataset struct {
	statements map[int64]*models.BankStatement
	items      map[int64]*models.StatementItem
	movements  map[int64]*models.TreasuryMovement
	// links is the unique index movement id -> item id.
	links map[int64]int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		sem:  make(chan struct{}, 1),
		data: newDataset(),
	}
}

func newDataset() *dataset {
	return &dataset{
		statements: make(map[int64]*models.BankStatement),
		items:      make(map[int64]*models.StatementItem),
		movements:  make(map[int64]*models.TreasuryMovement),
		links:      make(map[int64]int64),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for id, s := range d.statements {
		c.statements[id] = s.Clone()
	}
	for id, it := range d.items {
		c.items[id] = it.Clone()
	}
	for id, m := range d.movements {
		mv := *m
		c.movements[id] = &mv
	}
	for mid, iid := range d.links {
		c.links[mid] = iid
	}
	return c
}

// Seed loads fixtures. Items that already carry a link are indexed and
// their movement is marked reconciled.
func (s *Store) Seed(statements []*models.BankStatement, items []*models.StatementItem, movements []*models.TreasuryMovement) error {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	next := s.data.clone()
	for _, st := range statements {
		next.statements[st.ID] = st.Clone()
	}
	for _, m := range movements {
		mv := *m
		next.movements[m.ID] = &mv
	}
	for _, it := range items {
		if _, ok := next.statements[it.StatementID]; !ok {
			return fmt.Errorf("item %d references unknown statement %d", it.ID, it.StatementID)
		}
		next.items[it.ID] = it.Clone()
		if it.TreasuryMovementID != nil {
			mid := *it.TreasuryMovementID
			if holder, taken := next.links[mid]; taken && holder != it.ID {
				return fmt.Errorf("movement %d linked by items %d and %d", mid, holder, it.ID)
			}
			next.links[mid] = it.ID
			if m, ok := next.movements[mid]; ok {
				m.Reconciled = true
			}
		}
	}
	s.data = next
	return nil
}

// Begin starts a transaction, waiting for any running one to finish.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, errors.StorageError(errors.CodeConnectionFailed, "begin transaction", ctx.Err())
	}
	return &tx{store: s, data: s.data.clone()}, nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (s *Store) Close() {}

type tx struct {
	store *Store
	data  *dataset
	done  bool
}

func (t *tx) finish() error {
	if t.done {
		return errors.InternalError(errors.CodeUnexpectedError, "finish transaction", fmt.Errorf("transaction already finished"))
	}
	t.done = true
	<-t.store.sem
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return t.finish()
	}
	t.store.data = t.data
	return t.finish()
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	return t.finish()
}

func (t *tx) GetStatement(ctx context.Context, companyID, id int64, forUpdate bool) (*models.BankStatement, error) {
	st, ok := t.data.statements[id]
	if !ok || st.CompanyID != companyID {
		return nil, errors.NotFoundError(errors.CodeStatementNotFound, "statement", id)
	}
	return st.Clone(), nil
}

func (t *tx) UpdateStatement(ctx context.Context, statement *models.BankStatement) error {
	if _, ok := t.data.statements[statement.ID]; !ok {
		return errors.NotFoundError(errors.CodeStatementNotFound, "statement", statement.ID)
	}
	t.data.statements[statement.ID] = statement.Clone()
	return nil
}

func (t *tx) DeleteStatement(ctx context.Context, id int64) error {
	if _, ok := t.data.statements[id]; !ok {
		return errors.NotFoundError(errors.CodeStatementNotFound, "statement", id)
	}
	for iid, it := range t.data.items {
		if it.StatementID != id {
			continue
		}
		if it.TreasuryMovementID != nil {
			delete(t.data.links, *it.TreasuryMovementID)
		}
		delete(t.data.items, iid)
	}
	delete(t.data.statements, id)
	return nil
}

func (t *tx) ListItems(ctx context.Context, statementID int64) ([]*models.StatementItem, error) {
	var items []*models.StatementItem
	for _, it := range t.data.items {
		if it.StatementID == statementID {
			items = append(items, it.Clone())
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].LineNumber != items[j].LineNumber {
			return items[i].LineNumber < items[j].LineNumber
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (t *tx) GetItem(ctx context.Context, statementID, itemID int64) (*models.StatementItem, error) {
	it, ok := t.data.items[itemID]
	if !ok || it.StatementID != statementID {
		return nil, errors.NotFoundError(errors.CodeItemNotFound, "statement item", itemID)
	}
	return it.Clone(), nil
}

func (t *tx) LinkItem(ctx context.Context, item *models.StatementItem) error {
	current, ok := t.data.items[item.ID]
	if !ok {
		return errors.NotFoundError(errors.CodeItemNotFound, "statement item", item.ID)
	}
	if item.TreasuryMovementID == nil {
		return errors.InternalError(errors.CodeUnexpectedError, "link item", fmt.Errorf("item %d has no movement", item.ID))
	}

	mid := *item.TreasuryMovementID
	if holder, taken := t.data.links[mid]; taken && holder != item.ID {
		return errors.ConflictError(errors.CodeConcurrentWrite, fmt.Sprintf("treasury movement %d", mid), nil)
	}
	if current.TreasuryMovementID != nil && *current.TreasuryMovementID != mid {
		delete(t.data.links, *current.TreasuryMovementID)
	}

	t.data.links[mid] = item.ID
	t.data.items[item.ID] = item.Clone()
	return nil
}

func (t *tx) UnlinkItem(ctx context.Context, item *models.StatementItem) error {
	current, ok := t.data.items[item.ID]
	if !ok {
		return errors.NotFoundError(errors.CodeItemNotFound, "statement item", item.ID)
	}
	if current.TreasuryMovementID != nil {
		delete(t.data.links, *current.TreasuryMovementID)
	}
	t.data.items[item.ID] = item.Clone()
	return nil
}

func (t *tx) FindItemByMovement(ctx context.Context, movementID int64) (*models.StatementItem, error) {
	itemID, ok := t.data.links[movementID]
	if !ok {
		return nil, errors.NotFoundError(errors.CodeItemNotFound, "statement item for movement", movementID)
	}
	return t.data.items[itemID].Clone(), nil
}

func (t *tx) GetMovement(ctx context.Context, companyID, id int64) (*models.TreasuryMovement, error) {
	m, ok := t.data.movements[id]
	if !ok || m.CompanyID != companyID {
		return nil, errors.NotFoundError(errors.CodeMovementNotFound, "treasury movement", id)
	}
	mv := *m
	return &mv, nil
}

func (t *tx) GetMovements(ctx context.Context, companyID int64, ids []int64) ([]*models.TreasuryMovement, error) {
	var out []*models.TreasuryMovement
	for _, id := range ids {
		m, ok := t.data.movements[id]
		if !ok || m.CompanyID != companyID {
			continue
		}
		mv := *m
		out = append(out, &mv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) SetMovementReconciled(ctx context.Context, id int64, reconciled bool) error {
	m, ok := t.data.movements[id]
	if !ok {
		return errors.NotFoundError(errors.CodeMovementNotFound, "treasury movement", id)
	}
	m.Reconciled = reconciled
	return nil
}

func (t *tx) ListUnlinkedMovements(ctx context.Context, filter store.MovementFilter) ([]*models.TreasuryMovement, error) {
	var out []*models.TreasuryMovement
	for id, m := range t.data.movements {
		if _, linked := t.data.links[id]; linked || !filter.Matches(m) {
			continue
		}
		mv := *m
		out = append(out, &mv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Fecha.Equal(out[j].Fecha) {
			return out[i].Fecha.Before(out[j].Fecha)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
