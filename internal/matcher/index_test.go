package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"statement-reconciliation-service/internal/models"
)

func TestMovementIndex(t *testing.T) {
	index := NewMovementIndex(createTestMatchingData())

	assert.Len(t, index.AllMovements, 4)
	assert.Len(t, index.DateIndex, 3)

	got := index.GetByDateRange(day(15), day(16))
	assert.Equal(t, []int64{1, 2, 3}, movementIDs(got))

	assert.Empty(t, index.GetByDateRange(day(1), day(14)))
}

func TestMovementIndex_AddIgnoresDuplicates(t *testing.T) {
	index := NewMovementIndex(nil)
	m := movement(5, models.MovementIngreso, "10.00", 3)

	index.Add(m)
	index.Add(m)
	index.Add(movement(2, models.MovementIngreso, "11.00", 3))

	assert.Len(t, index.AllMovements, 2)
	assert.Equal(t, []int64{2, 5}, movementIDs(index.DateIndex[day(3).String()]))
}

func TestMovementIndex_GetByDateRangeWideWindow(t *testing.T) {
	index := NewMovementIndex([]*models.TreasuryMovement{
		movement(3, models.MovementIngreso, "1.00", 20),
		movement(1, models.MovementIngreso, "1.00", 2),
		movement(2, models.MovementEgreso, "1.00", 9),
	})

	got := index.GetByDateRange(day(1).AddDays(-models.MaxToleranceDays), day(31).AddDays(models.MaxToleranceDays))
	assert.Equal(t, []int64{1, 2, 3}, movementIDs(got))

	assert.Equal(t, []int64{2}, movementIDs(index.GetByDateRange(day(9), day(9))))
	assert.Empty(t, index.GetByDateRange(day(21), day(31)))
}

func TestMovementIndex_GetWindow(t *testing.T) {
	index := NewMovementIndex(createTestMatchingData())
	stmt := statement("0", 0)

	got := index.GetWindow(stmt, day(16), 1, models.MovementIngreso)
	assert.Equal(t, []int64{1, 3}, movementIDs(got))

	got = index.GetWindow(stmt, day(16), 1, models.MovementEgreso)
	assert.Equal(t, []int64{2}, movementIDs(got))

	got = index.GetWindow(stmt, day(16), 0, models.MovementEgreso)
	assert.Empty(t, got)
}

func movementIDs(movements []*models.TreasuryMovement) []int64 {
	out := make([]int64, 0, len(movements))
	for _, m := range movements {
		out = append(out, m.ID)
	}
	return out
}
