// Package matcher ranks treasury movements against bank statement items and
// decides, one item at a time, which movement the auto-match pass links.
//
// Matching is strictly numeric and temporal. A movement is a candidate for an
// item when it has the same bank account and company, the movement type that
// matches the sign of the item amount, is not yet reconciled, falls within the
// statement's day tolerance and differs in amount by no more than the
// statement's amount tolerance.
//
// Candidates are ranked by tier:
//  1. Exact: same cent, same date
//  2. Amount exact, date within tolerance
//  3. Date exact, amount within tolerance
//  4. Both within tolerance
//
// The two partial tiers swap places under RankingDateFirst. Ties inside a
// tier are broken by the smaller amount difference, then the smaller day
// difference, then the lower movement id.
//
// Example usage:
//
//	engine := matcher.NewEngine(matcher.DefaultMatchingConfig(), movements)
//	decision := engine.Decide(statement, item, nil)
//	if decision.Best != nil {
//		// link item -> decision.Best.Movement.ID
//	}
package matcher

import (
	"fmt"

	"statement-reconciliation-service/internal/models"
	"statement-reconciliation-service/pkg/errors"
)

// RankingOrder decides which partial match tier ranks higher.
type RankingOrder string

const (
	// RankingAmountFirst prefers an exact amount over an exact date.
	RankingAmountFirst RankingOrder = "amount-first"
	// RankingDateFirst prefers an exact date over an exact amount.
	RankingDateFirst RankingOrder = "date-first"
)

// AmbiguityPolicy decides what happens when the two best candidates cannot
// be told apart by tier and deltas.
type AmbiguityPolicy string

const (
	// AmbiguityFlag leaves the item pending for manual review.
	AmbiguityFlag AmbiguityPolicy = "flag"
	// AmbiguityLowestID picks the candidate with the lowest movement id.
	AmbiguityLowestID AmbiguityPolicy = "lowest-id"
)

// Tier is the quality class of a candidate.
type Tier int

const (
	TierExact Tier = iota
	TierAmountExact
	TierDateExact
	TierBothTolerant
)

// String returns the string representation of Tier
func (t Tier) String() string {
	switch t {
	case TierExact:
		return "EXACT"
	case TierAmountExact:
		return "AMOUNT_EXACT"
	case TierDateExact:
		return "DATE_EXACT"
	case TierBothTolerant:
		return "BOTH_TOLERANT"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the tier by name in JSON.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a tier name.
func (t *Tier) UnmarshalText(b []byte) error {
	for _, candidate := range []Tier{TierExact, TierAmountExact, TierDateExact, TierBothTolerant} {
		if candidate.String() == string(b) {
			*t = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown tier %q", string(b))
}

// MatchType is the match type recorded on the item when this tier wins.
func (t Tier) MatchType() models.MatchType {
	if t == TierExact {
		return models.MatchExact
	}
	return models.MatchTolerance
}

// MatchingConfig holds the engine-wide matching options. Per-statement
// tolerances live on the statement itself.
type MatchingConfig struct {
	RankingOrder    RankingOrder    `json:"ranking_order" yaml:"ranking_order" mapstructure:"ranking_order"`
	AmbiguityPolicy AmbiguityPolicy `json:"ambiguity_policy" yaml:"ambiguity_policy" mapstructure:"ambiguity_policy"`

	// MaxCandidatesPerItem caps the candidate list returned for preview.
	// Zero means no limit. It never affects which candidate wins.
	MaxCandidatesPerItem int `json:"max_candidates_per_item" yaml:"max_candidates_per_item" mapstructure:"max_candidates_per_item"`
}

// DefaultMatchingConfig returns a configuration with sensible defaults
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		RankingOrder:         RankingAmountFirst,
		AmbiguityPolicy:      AmbiguityFlag,
		MaxCandidatesPerItem: 20,
	}
}

// Validate checks if the matching configuration is valid
func (mc *MatchingConfig) Validate() error {
	switch mc.RankingOrder {
	case RankingAmountFirst, RankingDateFirst:
	default:
		return errors.ConfigurationError(errors.CodeInvalidConfig, "matching.ranking_order", mc.RankingOrder, nil)
	}

	switch mc.AmbiguityPolicy {
	case AmbiguityFlag, AmbiguityLowestID:
	default:
		return errors.ConfigurationError(errors.CodeInvalidConfig, "matching.ambiguity_policy", mc.AmbiguityPolicy, nil)
	}

	if mc.MaxCandidatesPerItem < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "matching.max_candidates_per_item", mc.MaxCandidatesPerItem, nil)
	}

	return nil
}

// Clone creates a copy of the matching configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	clone := *mc
	return &clone
}

// rank maps a tier to its priority position. Lower ranks win.
func (mc *MatchingConfig) rank(t Tier) int {
	if mc.RankingOrder == RankingDateFirst {
		switch t {
		case TierAmountExact:
			return int(TierDateExact)
		case TierDateExact:
			return int(TierAmountExact)
		}
	}
	return int(t)
}

// String returns a human-readable description of the configuration
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{RankingOrder: %s, AmbiguityPolicy: %s, MaxCandidatesPerItem: %d}",
		mc.RankingOrder, mc.AmbiguityPolicy, mc.MaxCandidatesPerItem)
}
