package matcher

import (
	"sort"

	"github.com/shopspring/decimal"

	"statement-reconciliation-service/internal/models"
)

// Engine ranks candidates for statement items against an index of
// unreconciled movements.
type Engine struct {
	Config *MatchingConfig
	Index  *MovementIndex
}

// Candidate is a movement that may be linked to an item, with the
// measurements used to rank it.
type Candidate struct {
	Movement    *models.TreasuryMovement `json:"movement"`
	Tier        Tier                     `json:"tier"`
	AmountDelta decimal.Decimal          `json:"amountDelta"`
	DayDelta    int                      `json:"dayDelta"`
}

// MatchType is the match type to record if this candidate is linked.
func (c Candidate) MatchType() models.MatchType {
	return c.Tier.MatchType()
}

// Decision is the outcome of ranking the candidates of a single item.
type Decision struct {
	Item *models.StatementItem
	// Best is nil when the item should stay pending.
	Best       *Candidate
	Reason     models.PendingReason
	Candidates int
}

// NewEngine creates a new matching engine over the given movements
func NewEngine(config *MatchingConfig, movements []*models.TreasuryMovement) *Engine {
	if config == nil {
		config = DefaultMatchingConfig()
	}

	return &Engine{
		Config: config,
		Index:  NewMovementIndex(movements),
	}
}

// Evaluate measures a single movement against an item. ok is false when the
// movement is not an acceptable candidate under tol.
func Evaluate(item *models.StatementItem, m *models.TreasuryMovement, tol models.Tolerance) (Candidate, bool) {
	if m.Tipo != item.Polarity() {
		return Candidate{}, false
	}

	dayDelta := models.AbsDaysBetween(item.Fecha, m.Fecha)
	if dayDelta > tol.Days {
		return Candidate{}, false
	}

	amountDelta := models.Cents(m.Monto.Abs()).Sub(models.Cents(item.AbsAmount())).Abs()
	if amountDelta.GreaterThan(tol.Amount) {
		return Candidate{}, false
	}

	return Candidate{
		Movement:    m,
		Tier:        tierOf(amountDelta.IsZero(), dayDelta == 0),
		AmountDelta: amountDelta,
		DayDelta:    dayDelta,
	}, true
}

func tierOf(amountExact, dateExact bool) Tier {
	switch {
	case amountExact && dateExact:
		return TierExact
	case amountExact:
		return TierAmountExact
	case dateExact:
		return TierDateExact
	default:
		return TierBothTolerant
	}
}

// Candidates returns every acceptable candidate for item, best first.
// Movements whose id is in exclude are skipped.
func (e *Engine) Candidates(statement *models.BankStatement, item *models.StatementItem, exclude map[int64]bool) []Candidate {
	tol := statement.Tolerance()
	if tol.Amount.IsNegative() {
		tol.Amount = decimal.Zero
	}
	if tol.Days < 0 {
		tol.Days = 0
	}
	if tol.Days > models.MaxToleranceDays {
		tol.Days = models.MaxToleranceDays
	}

	var candidates []Candidate
	for _, m := range e.Index.GetWindow(statement, item.Fecha, tol.Days, item.Polarity()) {
		if exclude[m.ID] {
			continue
		}
		if c, ok := Evaluate(item, m, tol); ok {
			candidates = append(candidates, c)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return e.less(candidates[i], candidates[j])
	})
	return candidates
}

// Preview is Candidates truncated to MaxCandidatesPerItem.
func (e *Engine) Preview(statement *models.BankStatement, item *models.StatementItem) []Candidate {
	candidates := e.Candidates(statement, item, nil)
	if limit := e.Config.MaxCandidatesPerItem; limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// Decide picks the candidate the auto-match pass would link to item.
func (e *Engine) Decide(statement *models.BankStatement, item *models.StatementItem, exclude map[int64]bool) Decision {
	decision := Decision{Item: item}

	if item.IsSkipped() {
		decision.Reason = models.ReasonManuallySkipped
		return decision
	}

	candidates := e.Candidates(statement, item, exclude)
	decision.Candidates = len(candidates)
	if len(candidates) == 0 {
		decision.Reason = models.ReasonNoCandidate
		return decision
	}

	if e.Config.AmbiguityPolicy != AmbiguityLowestID && IsAmbiguous(e.Config, candidates) {
		decision.Reason = models.ReasonAmbiguous
		return decision
	}

	best := candidates[0]
	decision.Best = &best
	return decision
}

// less orders candidates by tier rank, then amount delta, then day delta,
// then movement id.
func (e *Engine) less(a, b Candidate) bool {
	if ra, rb := e.Config.rank(a.Tier), e.Config.rank(b.Tier); ra != rb {
		return ra < rb
	}
	if cmp := a.AmountDelta.Cmp(b.AmountDelta); cmp != 0 {
		return cmp < 0
	}
	if a.DayDelta != b.DayDelta {
		return a.DayDelta < b.DayDelta
	}
	return a.Movement.ID < b.Movement.ID
}

// SortByLine returns the items ordered by line number, then id.
func SortByLine(items []*models.StatementItem) []*models.StatementItem {
	sorted := make([]*models.StatementItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].LineNumber != sorted[j].LineNumber {
			return sorted[i].LineNumber < sorted[j].LineNumber
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}
