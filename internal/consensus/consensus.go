// Package consensus removes bookmaker margin and produces a sharp-weighted
// fair probability per outcome.
package consensus

import (
	"math"
	"strings"

	"github.com/edgescout/edgescout/internal/models"
)

// Config holds the probability-engine constants.
type Config struct {
	SharpWeight float64
	SoftWeight  float64
	MinBookFair float64
	MaxBookFair float64
}

// DefaultConfig returns the standard weighting and guard constants.
func DefaultConfig() Config {
	return Config{
		SharpWeight: 1.5,
		SoftWeight:  1.0,
		MinBookFair: 0.08,
		MaxBookFair: 0.92,
	}
}

// Engine computes de-vigged consensus probabilities.
type Engine struct {
	cfg     Config
	isSharp func(bookKey string) bool
}

// New creates a consensus engine. isSharp classifies bookmaker keys.
func New(isSharp func(string) bool, cfg Config) *Engine {
	return &Engine{cfg: cfg, isSharp: isSharp}
}

type bookFair struct {
	book  string
	yes   float64
	no    float64
	sharp bool
}

// twoWayOutcomes reduces a market's outcome list to the two target sides.
// For three-outcome markets (ice hockey with a draw) whose target is a
// two-way question, this drops the draw before any probability math runs;
// the per-book normalization below then renormalizes the remainder.
func twoWayOutcomes(market *models.BookMarket, yesName, noName string) (yes, no *models.BookOutcome) {
	for i := range market.Outcomes {
		o := &market.Outcomes[i]
		switch {
		case strings.EqualFold(o.Name, yesName):
			yes = o
		case strings.EqualFold(o.Name, noName):
			no = o
		}
	}
	return yes, no
}

// perBook collects each contributing bookmaker's de-vigged two-way
// probabilities. Books with malformed prices or artifact favorites are
// dropped here.
func (e *Engine) perBook(game *models.Game, marketKey, yesName, noName string) []bookFair {
	var fairs []bookFair
	for i := range game.Bookmakers {
		book := &game.Bookmakers[i]
		market := book.Market(marketKey)
		if market == nil {
			continue
		}
		yes, no := twoWayOutcomes(market, yesName, noName)
		if yes == nil || no == nil {
			continue
		}
		// Decimal odds below 1.0 imply a probability above certainty;
		// they are stale-quote artifacts and would divide by ~zero.
		if yes.Price <= 1.0 || no.Price <= 1.0 {
			continue
		}

		impliedYes := 1.0 / yes.Price
		impliedNo := 1.0 / no.Price
		total := impliedYes + impliedNo
		if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
			continue
		}

		fairYes := impliedYes / total
		if fairYes < e.cfg.MinBookFair || fairYes > e.cfg.MaxBookFair {
			// One book far from the field is a stale or erroneous quote,
			// not information.
			continue
		}

		fairs = append(fairs, bookFair{
			book:  book.Key,
			yes:   fairYes,
			no:    impliedNo / total,
			sharp: e.isSharp(book.Key),
		})
	}
	return fairs
}

// Fair returns the weighted fair probability for the yes outcome, or nil
// when no bookmaker contributes. Each book's de-vig normalizes yes+no to
// exactly 1 and the weighted average preserves that sum, so value and
// complement always add to 1; no runtime tolerance check is needed.
func (e *Engine) Fair(game *models.Game, marketKey, yesName, noName string) *models.FairProbability {
	fairs := e.perBook(game, marketKey, yesName, noName)
	if len(fairs) == 0 {
		return nil
	}

	var wYes, wNo, wTotal, rawYes float64
	for _, f := range fairs {
		w := e.cfg.SoftWeight
		if f.sharp {
			w = e.cfg.SharpWeight
		}
		wYes += w * f.yes
		wNo += w * f.no
		wTotal += w
		rawYes += f.yes
	}

	return &models.FairProbability{
		Value:      wYes / wTotal,
		Complement: wNo / wTotal,
		Raw:        rawYes / float64(len(fairs)),
		Books:      len(fairs),
	}
}

// SharpBookProbs returns each sharp bookmaker's de-vigged probability for
// the yes outcome, for snapshot persistence.
func (e *Engine) SharpBookProbs(game *models.Game, marketKey, yesName, noName string) map[string]float64 {
	probs := make(map[string]float64)
	for _, f := range e.perBook(game, marketKey, yesName, noName) {
		if f.sharp {
			probs[f.book] = f.yes
		}
	}
	return probs
}
