// Package models holds the reconciliation domain types: bank statements, their
// items, treasury movements and the statement lifecycle.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"statement-reconciliation-service/pkg/errors"
)

// MovementType is the direction of a treasury movement.
type MovementType string

const (
	// MovementIngreso is money coming into the account
	MovementIngreso MovementType = "INGRESO"
	// MovementEgreso is money leaving the account
	MovementEgreso MovementType = "EGRESO"
)

// String returns the string representation of MovementType
func (t MovementType) String() string {
	return string(t)
}

// IsValid checks if the movement type is valid
func (t MovementType) IsValid() bool {
	return t == MovementIngreso || t == MovementEgreso
}

// ParseMovementType parses a movement type, case-insensitively.
func ParseMovementType(s string) (MovementType, error) {
	t := MovementType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid movement type: %s", s)
	}
	return t, nil
}

// MatchType records how an item got linked to its movement.
type MatchType string

const (
	MatchExact     MatchType = "EXACT"
	MatchTolerance MatchType = "TOLERANCE"
	MatchManual    MatchType = "MANUAL"
)

// String returns the string representation of MatchType
func (m MatchType) String() string {
	return string(m)
}

// PendingReason explains why an item is still unmatched.
type PendingReason string

const (
	ReasonNoCandidate        PendingReason = "NO_CANDIDATE"
	ReasonAmbiguous          PendingReason = "AMBIGUOUS_MULTIPLE_CANDIDATES"
	ReasonManuallySkipped    PendingReason = "MANUALLY_SKIPPED"
	ReasonCandidateAvailable PendingReason = "CANDIDATE_AVAILABLE"
)

// MaxToleranceDays is the widest day window a statement may match within.
const MaxToleranceDays = 366

// Tolerance bounds how far a movement may be from an item and still match.
type Tolerance struct {
	Amount decimal.Decimal `json:"toleranciaMonto"`
	Days   int             `json:"toleranciaDias"`
}

// Validate rejects negative tolerances and day windows above MaxToleranceDays.
func (t Tolerance) Validate() error {
	if t.Amount.IsNegative() {
		return errors.ConfigurationError(errors.CodeInvalidTolerance, "toleranciaMonto", t.Amount.String(), nil)
	}
	if t.Days < 0 || t.Days > MaxToleranceDays {
		return errors.ConfigurationError(errors.CodeInvalidTolerance, "toleranciaDias", t.Days, nil).
			WithSuggestion(fmt.Sprintf("toleranciaDias must be between 0 and %d", MaxToleranceDays))
	}
	return nil
}

// BankStatement is an imported statement for one bank account and period.
type BankStatement struct {
	ID              int64           `json:"id"`
	BankAccountID   int64           `json:"bankAccountId"`
	CompanyID       int64           `json:"companyId"`
	DocType         string          `json:"docType"`
	Periodo         string          `json:"periodo"`
	Estado          Estado          `json:"estado"`
	ToleranciaMonto decimal.Decimal `json:"toleranciaMonto"`
	ToleranciaDias  int             `json:"toleranciaDias"`
	CerradoAt       *time.Time      `json:"cerradoAt"`
	CerradoPor      *int64          `json:"cerradoPor"`
}

// Tolerance returns the statement's matching tolerance. Unset values are zero.
func (s *BankStatement) Tolerance() Tolerance {
	return Tolerance{Amount: s.ToleranciaMonto, Days: s.ToleranciaDias}
}

// Validate performs basic validation on the BankStatement
func (s *BankStatement) Validate() error {
	if s.BankAccountID <= 0 {
		return errors.ValidationError(errors.CodeInvalidID, "bankAccountId", s.BankAccountID, nil)
	}
	if s.CompanyID <= 0 {
		return errors.ValidationError(errors.CodeInvalidID, "companyId", s.CompanyID, nil)
	}
	if !s.Estado.IsValid() {
		return errors.ValidationError(errors.CodeOutOfRange, "estado", s.Estado, nil)
	}
	return s.Tolerance().Validate()
}

// String returns a string representation of the BankStatement
func (s *BankStatement) String() string {
	return fmt.Sprintf("BankStatement{ID: %d, Account: %d, Periodo: %s, Estado: %s}",
		s.ID, s.BankAccountID, s.Periodo, s.Estado)
}

// StatementItem is one line of a bank statement.
type StatementItem struct {
	ID                 int64           `json:"id"`
	StatementID        int64           `json:"statementId"`
	LineNumber         int             `json:"lineNumber"`
	Fecha              Date            `json:"fecha"`
	Monto              decimal.Decimal `json:"monto"`
	Tipo               string          `json:"tipo"`
	Descripcion        string          `json:"descripcion"`
	TreasuryMovementID *int64          `json:"treasuryMovementId"`
	MatchType          *MatchType      `json:"matchType"`
	MatchedAt          *time.Time      `json:"matchedAt"`
	MatchedBy          *int64          `json:"matchedBy"`
	SkippedAt          *time.Time      `json:"skippedAt,omitempty"`
	SkippedBy          *int64          `json:"skippedBy,omitempty"`
}

// IsLinked reports whether the item holds a movement.
func (i *StatementItem) IsLinked() bool {
	return i.TreasuryMovementID != nil
}

// IsSkipped reports whether an operator explicitly unlinked the item.
func (i *StatementItem) IsSkipped() bool {
	return !i.IsLinked() && i.SkippedAt != nil
}

// Polarity maps the sign of the amount to the movement type it can match.
func (i *StatementItem) Polarity() MovementType {
	if i.Monto.IsNegative() {
		return MovementEgreso
	}
	return MovementIngreso
}

// AbsAmount returns the absolute value of the item amount
func (i *StatementItem) AbsAmount() decimal.Decimal {
	return i.Monto.Abs()
}

// Link records a link to movementID. Any skip marker is cleared.
func (i *StatementItem) Link(movementID int64, matchType MatchType, by *int64, at time.Time) {
	id := movementID
	mt := matchType
	ts := at
	i.TreasuryMovementID = &id
	i.MatchType = &mt
	i.MatchedAt = &ts
	i.MatchedBy = by
	i.SkippedAt = nil
	i.SkippedBy = nil
}

// Unlink clears the link. When skip is set the item is marked as manually
// skipped so that automatic passes leave it alone.
func (i *StatementItem) Unlink(skip bool, by *int64, at time.Time) {
	i.TreasuryMovementID = nil
	i.MatchType = nil
	i.MatchedAt = nil
	i.MatchedBy = nil
	if skip {
		ts := at
		i.SkippedAt = &ts
		i.SkippedBy = by
	}
}

// Clone returns a deep copy of the item.
func (i *StatementItem) Clone() *StatementItem {
	c := *i
	c.TreasuryMovementID = cloneInt64(i.TreasuryMovementID)
	c.MatchedBy = cloneInt64(i.MatchedBy)
	c.SkippedBy = cloneInt64(i.SkippedBy)
	c.MatchedAt = cloneTime(i.MatchedAt)
	c.SkippedAt = cloneTime(i.SkippedAt)
	if i.MatchType != nil {
		mt := *i.MatchType
		c.MatchType = &mt
	}
	return &c
}

// TreasuryMovement is a ledger entry owned by the treasury module. The
// reconciliation core only ever flips Reconciled.
type TreasuryMovement struct {
	ID            int64           `json:"id"`
	BankAccountID int64           `json:"bankAccountId"`
	CompanyID     int64           `json:"companyId"`
	Fecha         Date            `json:"fecha"`
	Tipo          MovementType    `json:"tipo"`
	Medio         string          `json:"medio"`
	Monto         decimal.Decimal `json:"monto"`
	Descripcion   string          `json:"descripcion"`
	ReferenceType string          `json:"referenceType"`
	Reconciled    bool            `json:"reconciled"`
}

// SameScope reports whether the movement belongs to the statement's account and company.
func (m *TreasuryMovement) SameScope(s *BankStatement) bool {
	return m.BankAccountID == s.BankAccountID && m.CompanyID == s.CompanyID
}

// String returns a string representation of the TreasuryMovement
func (m *TreasuryMovement) String() string {
	return fmt.Sprintf("TreasuryMovement{ID: %d, Tipo: %s, Monto: %s, Fecha: %s}",
		m.ID, m.Tipo, m.Monto.String(), m.Fecha)
}

// Cents rounds an amount to two decimal places.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// SameCent reports whether a and b are equal once rounded to the cent.
func SameCent(a, b decimal.Decimal) bool {
	return Cents(a).Equal(Cents(b))
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
