package matcher

import (
	"sort"

	"statement-reconciliation-service/internal/models"
)

// MovementIndex indexes treasury movements by date and type so that the
// candidate lookup for an item only touches its tolerance window.
type MovementIndex struct {
	// DateIndex maps date strings (YYYY-MM-DD) to movement slices
	DateIndex map[string][]*models.TreasuryMovement

	// AllMovements holds all indexed movements, ordered by id
	AllMovements []*models.TreasuryMovement

	// dates holds the DateIndex keys in ascending order
	dates []string
}

// NewMovementIndex creates a new index from a slice of movements
func NewMovementIndex(movements []*models.TreasuryMovement) *MovementIndex {
	index := &MovementIndex{
		DateIndex: make(map[string][]*models.TreasuryMovement),
	}

	for _, m := range movements {
		index.Add(m)
	}
	return index
}

// Add inserts a movement into the index.
func (mi *MovementIndex) Add(m *models.TreasuryMovement) {
	var replaced bool
	mi.AllMovements, replaced = insertByID(mi.AllMovements, m)
	if replaced {
		// already indexed
		return
	}
	dateKey := m.Fecha.String()
	if _, exists := mi.DateIndex[dateKey]; !exists {
		i := sort.SearchStrings(mi.dates, dateKey)
		mi.dates = append(mi.dates, "")
		copy(mi.dates[i+1:], mi.dates[i:])
		mi.dates[i] = dateKey
	}
	mi.DateIndex[dateKey], _ = insertByID(mi.DateIndex[dateKey], m)
}

// GetByDateRange returns movements dated within [start, end], inclusive.
// Results are ordered by date, then id. Only dates that hold movements are
// visited, so the cost does not grow with the width of the range.
func (mi *MovementIndex) GetByDateRange(start, end models.Date) []*models.TreasuryMovement {
	var result []*models.TreasuryMovement

	last := end.String()
	for i := sort.SearchStrings(mi.dates, start.String()); i < len(mi.dates) && mi.dates[i] <= last; i++ {
		result = append(result, mi.DateIndex[mi.dates[i]]...)
	}

	return result
}

// GetWindow returns the movements of the given type inside the day window
// around date that are in scope for statement and not reconciled.
func (mi *MovementIndex) GetWindow(statement *models.BankStatement, date models.Date, days int, tipo models.MovementType) []*models.TreasuryMovement {
	var result []*models.TreasuryMovement
	for _, m := range mi.GetByDateRange(date.AddDays(-days), date.AddDays(days)) {
		if m.Reconciled || m.Tipo != tipo || !m.SameScope(statement) {
			continue
		}
		result = append(result, m)
	}
	return result
}

func insertByID(list []*models.TreasuryMovement, m *models.TreasuryMovement) ([]*models.TreasuryMovement, bool) {
	i := sort.Search(len(list), func(i int) bool { return list[i].ID >= m.ID })
	if i < len(list) && list[i].ID == m.ID {
		return list, true
	}
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = m
	return list, false
}
