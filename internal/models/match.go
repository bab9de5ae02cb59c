package models

import "errors"

// MatchMethod tags which strategy resolved an outcome index.
type MatchMethod string

const (
	MatchExact        MatchMethod = "exact"
	MatchTokenOverlap MatchMethod = "token-overlap"
	MatchNickname     MatchMethod = "nickname"
	MatchFuzzy        MatchMethod = "fuzzy"
	MatchAI           MatchMethod = "ai"
)

// OutcomeMatch is one resolved bookmaker outcome with its provenance.
type OutcomeMatch struct {
	Index  int         `json:"index"`
	Name   string      `json:"name"`
	Method MatchMethod `json:"method"`
	Score  float64     `json:"score"`
}

// MatchResult resolves a prediction-market event to a bookmaker game plus
// both outcome indices: the side the event title implies "yes", and its
// complement. The two indices must differ; a result that cannot resolve
// both sides is never produced.
type MatchResult struct {
	Game      *Game        `json:"game"`
	MarketKey string       `json:"market_key"`
	Yes       OutcomeMatch `json:"yes"`
	No        OutcomeMatch `json:"no"`
}

// Validate enforces the two-index invariant.
func (r *MatchResult) Validate() error {
	if r.Game == nil {
		return errors.New("match result must reference a game")
	}
	if r.MarketKey == "" {
		return errors.New("market key must not be empty")
	}
	if r.Yes.Index == r.No.Index {
		return errors.New("yes and no outcome indices must differ")
	}
	if r.Yes.Name == "" || r.No.Name == "" {
		return errors.New("both outcome names must be resolved")
	}
	return nil
}

// FairProbability is the de-vigged, sharp-weighted probability for one
// outcome, with the raw unweighted consensus kept for diagnostics.
type FairProbability struct {
	Value      float64 `json:"value"`
	Complement float64 `json:"complement"`
	Raw        float64 `json:"raw"`
	Books      int     `json:"books"`
}
