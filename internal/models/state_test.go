package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statement-reconciliation-service/pkg/errors"
)

func newStatement(estado Estado) *BankStatement {
	return &BankStatement{ID: 1, BankAccountID: 10, CompanyID: 100, Estado: estado}
}

func TestEstado_Allows(t *testing.T) {
	open := []Action{ActionAutoMatch, ActionForceLink, ActionUnlink, ActionUpdateTolerances, ActionDelete, ActionClose}

	for _, a := range open {
		assert.True(t, EstadoEnProceso.Allows(a), "EN_PROCESO should allow %s", a)
		for _, closed := range []Estado{EstadoCompletada, EstadoConDiferencias, EstadoCerrada} {
			assert.False(t, closed.Allows(a), "%s should not allow %s", closed, a)
		}
	}

	assert.False(t, EstadoEnProceso.Allows(ActionReopen))
	assert.False(t, EstadoEnProceso.Allows(ActionApprove))
	assert.True(t, EstadoCerrada.Allows(ActionReopen))
	assert.False(t, EstadoCerrada.Allows(ActionApprove))
	assert.False(t, EstadoEnProceso.Allows("launch"))
}

func TestCheckAction_Errors(t *testing.T) {
	err := CheckAction(newStatement(EstadoCompletada), ActionClose)
	assert.True(t, errors.IsCode(err, errors.CodeAlreadyClosed))

	err = CheckAction(newStatement(EstadoCerrada), ActionDelete)
	assert.True(t, errors.IsCode(err, errors.CodeIllegalTransition))

	err = CheckAction(newStatement(EstadoEnProceso), ActionReopen)
	assert.True(t, errors.IsCategory(err, errors.CategoryInvalidState))
}

func TestBankStatement_Close(t *testing.T) {
	at := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

	s := newStatement(EstadoEnProceso)
	require.NoError(t, s.Close(0, Int64Ptr(7), at))
	assert.Equal(t, EstadoCompletada, s.Estado)
	require.NotNil(t, s.CerradoAt)
	assert.True(t, at.Equal(*s.CerradoAt))
	assert.Equal(t, int64(7), *s.CerradoPor)

	s = newStatement(EstadoEnProceso)
	require.NoError(t, s.Close(2, Int64Ptr(7), at))
	assert.Equal(t, EstadoConDiferencias, s.Estado)

	err := s.Close(0, Int64Ptr(8), at)
	assert.True(t, errors.IsCode(err, errors.CodeAlreadyClosed))
	assert.Equal(t, int64(7), *s.CerradoPor, "failed close must not restamp")
}

func TestBankStatement_CloseWithoutUser(t *testing.T) {
	at := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	s := newStatement(EstadoEnProceso)

	require.NoError(t, s.Close(0, nil, at))
	require.NotNil(t, s.CerradoAt)
	assert.Nil(t, s.CerradoPor)

	require.NoError(t, s.Approve(nil, at))
	assert.Equal(t, EstadoCerrada, s.Estado)
	assert.Nil(t, s.CerradoPor)
}

func TestBankStatement_StampCopiesUser(t *testing.T) {
	by := int64(7)
	s := newStatement(EstadoEnProceso)
	require.NoError(t, s.Close(0, &by, time.Now()))

	by = 8
	assert.Equal(t, int64(7), *s.CerradoPor)
}

func TestBankStatement_ApproveAndReopen(t *testing.T) {
	at := time.Now()
	s := newStatement(EstadoEnProceso)

	assert.Error(t, s.Approve(Int64Ptr(1), at))
	require.NoError(t, s.Close(1, Int64Ptr(1), at))
	require.NoError(t, s.Approve(Int64Ptr(2), at))
	assert.Equal(t, EstadoCerrada, s.Estado)
	assert.Equal(t, int64(2), *s.CerradoPor)

	require.NoError(t, s.Reopen())
	assert.Equal(t, EstadoEnProceso, s.Estado)
	assert.Nil(t, s.CerradoAt)
	assert.Nil(t, s.CerradoPor)

	assert.Error(t, s.Reopen())
}

func TestBankStatement_SetTolerances(t *testing.T) {
	s := newStatement(EstadoEnProceso)
	require.NoError(t, s.SetTolerances(Tolerance{Amount: decimal.RequireFromString("1.50"), Days: 2}))
	assert.True(t, s.ToleranciaMonto.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, 2, s.ToleranciaDias)

	err := s.SetTolerances(Tolerance{Days: -3})
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.Equal(t, 2, s.ToleranciaDias)

	s.Estado = EstadoConDiferencias
	err = s.SetTolerances(Tolerance{Days: 5})
	assert.True(t, errors.IsCategory(err, errors.CategoryInvalidState))
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("updateTolerances")
	require.NoError(t, err)
	assert.Equal(t, ActionUpdateTolerances, a)

	_, err = ParseAction("explode")
	assert.Error(t, err)
}

func TestCloseOutcome(t *testing.T) {
	assert.Equal(t, EstadoCompletada, CloseOutcome(0))
	assert.Equal(t, EstadoConDiferencias, CloseOutcome(3))
}
