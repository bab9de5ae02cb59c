// Package edge converts the gap between a de-vigged fair probability
// and a prediction-market price into a net expected edge after fees,
// spread, and slippage.
package edge

import (
	"math"
	"time"

	"github.com/edgescout/edgescout/internal/movement"
)

type Config struct {
	// FeeRate is the platform fee applied to positive raw edge.
	FeeRate float64
	// StakeUSD sizes the slippage model.
	StakeUSD float64
	// MinOverrideEdge is the smallest edge on the movement side that
	// lets movement direction flip the recommendation.
	MinOverrideEdge float64
	// StaleFairFloor and StaleAfter gate the staleness discard: a
	// fair probability at or above the floor combined with a price
	// older than StaleAfter is treated as an artifact.
	StaleFairFloor float64
	StaleAfter     time.Duration
	// CapFairFloor and RawEdgeCap bound extreme-favorite edges.
	CapFairFloor float64
	RawEdgeCap   float64
}

func DefaultConfig() Config {
	return Config{
		FeeRate:         0.01,
		StakeUSD:        100,
		MinOverrideEdge: 0.01,
		StaleFairFloor:  0.85,
		StaleAfter:      3 * time.Minute,
		CapFairFloor:    0.90,
		RawEdgeCap:      0.40,
	}
}

// Input is one market's pricing state for a single evaluation.
type Input struct {
	// FairYes is the de-vigged consensus probability of the yes side.
	FairYes float64
	// YesPrice and NoPrice are the cost of entering each side.
	YesPrice float64
	NoPrice  float64
	// Spread is the live order-book spread, 0 when unknown.
	Spread float64
	// Volume24hr is the market's trailing volume in USD.
	Volume24hr float64
	// PriceUpdatedAt is when the order-book quote was last refreshed.
	PriceUpdatedAt time.Time
	// Movement is the detector's verdict for this outcome.
	Movement movement.Result
}

// Assessment is a priced recommendation for one side of a market.
type Assessment struct {
	Side    string // yes | no
	Fair    float64
	Price   float64
	RawEdge float64
	NetEdge float64

	FeeCost      float64
	SpreadCost   float64
	SlippageCost float64
	// Capped records that the raw edge was clamped by the
	// extreme-favorite bound.
	Capped bool
}

type Model struct {
	cfg Config
}

func New(cfg Config) *Model {
	def := DefaultConfig()
	if cfg.FeeRate <= 0 {
		cfg.FeeRate = def.FeeRate
	}
	if cfg.StakeUSD <= 0 {
		cfg.StakeUSD = def.StakeUSD
	}
	if cfg.MinOverrideEdge <= 0 {
		cfg.MinOverrideEdge = def.MinOverrideEdge
	}
	if cfg.StaleFairFloor <= 0 {
		cfg.StaleFairFloor = def.StaleFairFloor
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}
	if cfg.CapFairFloor <= 0 {
		cfg.CapFairFloor = def.CapFairFloor
	}
	if cfg.RawEdgeCap <= 0 {
		cfg.RawEdgeCap = def.RawEdgeCap
	}
	return &Model{cfg: cfg}
}

// Evaluate prices both sides of the binary outcome and returns the
// recommended one, or nil when no positive edge survives the guards.
func (m *Model) Evaluate(in Input, now time.Time) *Assessment {
	if in.YesPrice <= 0 || in.YesPrice >= 1 || in.NoPrice <= 0 || in.NoPrice >= 1 {
		return nil
	}
	if math.IsNaN(in.FairYes) || in.FairYes <= 0 || in.FairYes >= 1 {
		return nil
	}

	yesEdge := in.FairYes - in.YesPrice
	noEdge := (1 - in.FairYes) - in.NoPrice

	side, raw := "yes", yesEdge
	if noEdge > yesEdge {
		side, raw = "no", noEdge
	}

	// Movement override: a confirmed sharp move toward one side wins
	// the recommendation if that side still carries a real edge.
	if in.Movement.Triggered {
		movedSide, movedEdge := "yes", yesEdge
		if in.Movement.Direction == movement.Drifting {
			movedSide, movedEdge = "no", noEdge
		}
		if movedSide != side && movedEdge >= m.cfg.MinOverrideEdge {
			side, raw = movedSide, movedEdge
		}
	}
	if raw <= 0 {
		return nil
	}

	fair := in.FairYes
	price := in.YesPrice
	if side == "no" {
		fair = 1 - in.FairYes
		price = in.NoPrice
	}

	// Extreme favorites priced long ago are staleness artifacts, not
	// edges.
	if fair >= m.cfg.StaleFairFloor && !in.PriceUpdatedAt.IsZero() &&
		now.Sub(in.PriceUpdatedAt) > m.cfg.StaleAfter {
		return nil
	}

	capped := false
	if fair >= m.cfg.CapFairFloor && raw > m.cfg.RawEdgeCap {
		raw = m.cfg.RawEdgeCap
		capped = true
	}

	fee := m.cfg.FeeRate * raw
	spread := m.spreadCost(in.Spread, in.Volume24hr)
	slip := m.slippageCost(in.Volume24hr)

	net := raw - fee - spread - slip
	return &Assessment{
		Side:         side,
		Fair:         fair,
		Price:        price,
		RawEdge:      raw,
		NetEdge:      net,
		FeeCost:      fee,
		SpreadCost:   spread,
		SlippageCost: slip,
		Capped:       capped,
	}
}

// spreadCost prefers the live order-book spread and falls back to a
// volume-tiered estimate.
func (m *Model) spreadCost(liveSpread, volume float64) float64 {
	if liveSpread > 0 {
		return liveSpread
	}
	switch {
	case volume >= 500_000:
		return 0.005
	case volume >= 250_000:
		return 0.01
	case volume >= 100_000:
		return 0.015
	case volume >= 50_000:
		return 0.02
	default:
		return 0.03
	}
}

// slippageCost tiers by the stake's share of trailing volume.
func (m *Model) slippageCost(volume float64) float64 {
	if volume <= 0 {
		return 0.03
	}
	ratio := m.cfg.StakeUSD / volume
	switch {
	case ratio < 0.001:
		return 0.002
	case ratio < 0.005:
		return 0.005
	case ratio < 0.01:
		return 0.01
	case ratio < 0.05:
		return 0.02
	default:
		return 0.03
	}
}
