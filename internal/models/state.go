package models

import (
	"fmt"
	"strings"
	"time"

	"statement-reconciliation-service/pkg/errors"
)

// Estado is the lifecycle state of a bank statement.
type Estado string

const (
	EstadoEnProceso      Estado = "EN_PROCESO"
	EstadoCompletada     Estado = "COMPLETADA"
	EstadoConDiferencias Estado = "CON_DIFERENCIAS"
	EstadoCerrada        Estado = "CERRADA"
)

// String returns the string representation of Estado
func (e Estado) String() string {
	return string(e)
}

// IsValid checks if the estado is one of the known states
func (e Estado) IsValid() bool {
	switch e {
	case EstadoEnProceso, EstadoCompletada, EstadoConDiferencias, EstadoCerrada:
		return true
	}
	return false
}

// IsClosed reports whether the statement is frozen against edits.
func (e Estado) IsClosed() bool {
	return e == EstadoCompletada || e == EstadoConDiferencias || e == EstadoCerrada
}

// Action is an operation that reads or changes a statement.
type Action string

const (
	ActionAutoMatch        Action = "match"
	ActionForceLink        Action = "forceLink"
	ActionUnlink           Action = "unlink"
	ActionClose            Action = "close"
	ActionReopen           Action = "reopen"
	ActionApprove          Action = "approve"
	ActionUpdateTolerances Action = "updateTolerances"
	ActionDelete           Action = "delete"
)

// ParseAction parses the action name used by the PATCH endpoint.
func ParseAction(s string) (Action, error) {
	a := Action(strings.TrimSpace(s))
	if _, ok := transitions[a]; !ok {
		return "", fmt.Errorf("unknown action: %s", s)
	}
	return a, nil
}

// transition lists the states an action may start from. Close has two
// possible targets and is resolved by CloseOutcome; actions with an empty
// target leave estado untouched.
type transition struct {
	from []Estado
	to   Estado
}

var transitions = map[Action]transition{
	ActionAutoMatch:        {from: []Estado{EstadoEnProceso}},
	ActionForceLink:        {from: []Estado{EstadoEnProceso}},
	ActionUnlink:           {from: []Estado{EstadoEnProceso}},
	ActionUpdateTolerances: {from: []Estado{EstadoEnProceso}},
	ActionDelete:           {from: []Estado{EstadoEnProceso}},
	ActionClose:            {from: []Estado{EstadoEnProceso}},
	ActionApprove:          {from: []Estado{EstadoCompletada, EstadoConDiferencias}, to: EstadoCerrada},
	ActionReopen:           {from: []Estado{EstadoCompletada, EstadoConDiferencias, EstadoCerrada}, to: EstadoEnProceso},
}

// Allows reports whether action may run while the statement is in estado.
func (e Estado) Allows(action Action) bool {
	tr, ok := transitions[action]
	if !ok {
		return false
	}
	for _, from := range tr.from {
		if from == e {
			return true
		}
	}
	return false
}

// CheckAction returns the error a caller gets for running action on s, or nil.
func CheckAction(s *BankStatement, action Action) error {
	if s.Estado.Allows(action) {
		return nil
	}
	if action == ActionClose && s.Estado.IsClosed() {
		return errors.AlreadyClosedError(s.ID, s.Estado.String())
	}
	return errors.InvalidStateError(string(action), s.Estado.String())
}

// CloseOutcome is the state a statement closes into given its pending count.
func CloseOutcome(pending int) Estado {
	if pending == 0 {
		return EstadoCompletada
	}
	return EstadoConDiferencias
}

// Close moves the statement out of EN_PROCESO and stamps when and by whom it
// was closed. A nil by leaves cerradoPor null.
func (s *BankStatement) Close(pending int, by *int64, at time.Time) error {
	if err := CheckAction(s, ActionClose); err != nil {
		return err
	}
	s.Estado = CloseOutcome(pending)
	s.stamp(by, at)
	return nil
}

// Approve finalises a closed statement into CERRADA.
func (s *BankStatement) Approve(by *int64, at time.Time) error {
	if err := CheckAction(s, ActionApprove); err != nil {
		return err
	}
	s.Estado = transitions[ActionApprove].to
	s.stamp(by, at)
	return nil
}

// Reopen puts a closed statement back in EN_PROCESO. Links are kept.
func (s *BankStatement) Reopen() error {
	if err := CheckAction(s, ActionReopen); err != nil {
		return err
	}
	s.Estado = transitions[ActionReopen].to
	s.CerradoAt = nil
	s.CerradoPor = nil
	return nil
}

// SetTolerances replaces the matching tolerances. It does not re-run matching.
func (s *BankStatement) SetTolerances(t Tolerance) error {
	if err := CheckAction(s, ActionUpdateTolerances); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}
	s.ToleranciaMonto = t.Amount
	s.ToleranciaDias = t.Days
	return nil
}

// Clone returns a deep copy of the statement.
func (s *BankStatement) Clone() *BankStatement {
	c := *s
	c.CerradoAt = cloneTime(s.CerradoAt)
	c.CerradoPor = cloneInt64(s.CerradoPor)
	return &c
}

func (s *BankStatement) stamp(by *int64, at time.Time) {
	ts := at.UTC()
	s.CerradoAt = &ts
	s.CerradoPor = cloneInt64(by)
}
