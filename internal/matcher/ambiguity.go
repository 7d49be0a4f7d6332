package matcher

import (
	"statement-reconciliation-service/internal/models"
)

// IsAmbiguous reports whether the two best ranked candidates cannot be told
// apart without falling back to the movement id. candidates must already be
// sorted best first.
func IsAmbiguous(config *MatchingConfig, candidates []Candidate) bool {
	if len(candidates) < 2 {
		return false
	}
	return tied(config, candidates[0], candidates[1])
}

func tied(config *MatchingConfig, a, b Candidate) bool {
	return config.rank(a.Tier) == config.rank(b.Tier) &&
		a.AmountDelta.Equal(b.AmountDelta) &&
		a.DayDelta == b.DayDelta
}

// PendingReason classifies an unlinked item against the movements that are
// currently available. It is what the summary reports; it does not claim
// anything, so several pending items may point at the same movement.
func (e *Engine) PendingReason(statement *models.BankStatement, item *models.StatementItem) models.PendingReason {
	decision := e.Decide(statement, item, nil)
	if decision.Best != nil {
		return models.ReasonCandidateAvailable
	}
	return decision.Reason
}
