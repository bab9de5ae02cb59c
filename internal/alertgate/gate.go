// Package alertgate decides whether a signal warrants an outbound
// alert.
package alertgate

import (
	"time"

	"github.com/edgescout/edgescout/internal/models"
)

// BlockReason explains a suppressed alert.
type BlockReason string

const (
	// BlockNone means the alert should fire.
	BlockNone BlockReason = ""
	// BlockNotNew suppresses updates to existing signals.
	BlockNotNew BlockReason = "not_new"
	// BlockStarted suppresses events already underway.
	BlockStarted BlockReason = "started"
	// BlockTooFarOut suppresses start times more than the horizon
	// away, which in practice means a corrupted timestamp.
	BlockTooFarOut BlockReason = "too_far_out"
)

type Gate struct {
	horizon time.Duration
}

// New builds a gate with the given maximum lead time. Zero or negative
// values fall back to 24 hours.
func New(horizon time.Duration) *Gate {
	if horizon <= 0 {
		horizon = 24 * time.Hour
	}
	return &Gate{horizon: horizon}
}

// Check reports whether an alert should fire for a signal. Only newly
// created signals alert; in-place updates never do.
func (g *Gate) Check(sig *models.SignalOpportunity, created bool, now time.Time) BlockReason {
	if !created {
		return BlockNotNew
	}
	if !sig.StartTime.After(now) {
		return BlockStarted
	}
	if sig.StartTime.Sub(now) > g.horizon {
		return BlockTooFarOut
	}
	return BlockNone
}

// ShouldAlert is the boolean form of Check.
func (g *Gate) ShouldAlert(sig *models.SignalOpportunity, created bool, now time.Time) bool {
	return g.Check(sig, created, now) == BlockNone
}
