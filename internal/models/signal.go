package models

import (
	"errors"
	"time"
)

// SignalStatus is the lifecycle state of a signal opportunity.
type SignalStatus string

const (
	SignalActive    SignalStatus = "active"
	SignalExecuted  SignalStatus = "executed"
	SignalDismissed SignalStatus = "dismissed"
	SignalExpired   SignalStatus = "expired"
)

// Terminal reports whether the status is sticky: executed and dismissed
// signals block re-creation for their event+outcome.
func (s SignalStatus) Terminal() bool {
	return s == SignalExecuted || s == SignalDismissed
}

// SignalTier is the coarse quality bucket of a signal.
type SignalTier string

const (
	TierElite  SignalTier = "elite"
	TierStrong SignalTier = "strong"
	TierStatic SignalTier = "static"
)

// TriggerReason records what fired the signal.
type TriggerReason string

const (
	TriggerEdge     TriggerReason = "edge"
	TriggerMovement TriggerReason = "movement"
	TriggerBoth     TriggerReason = "both"
)

// Urgency buckets time-to-start.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

// UrgencyFor derives urgency from the time remaining until the event starts.
func UrgencyFor(startTime, now time.Time) Urgency {
	lead := startTime.Sub(now)
	switch {
	case lead < time.Hour:
		return UrgencyCritical
	case lead < 6*time.Hour:
		return UrgencyHigh
	case lead < 24*time.Hour:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// SignalOpportunity is the persisted unit of work: one recommendation for
// one event+outcome. At most one active signal exists per event at a time.
type SignalOpportunity struct {
	ID            string        `json:"id"`
	MarketID      string        `json:"market_id"`
	EventTitle    string        `json:"event_title"`
	Sport         string        `json:"sport"`
	StartTime     time.Time     `json:"start_time"`
	Outcome       string        `json:"outcome"`
	Side          string        `json:"side"` // yes | no
	MarketPrice   float64       `json:"market_price"`
	FairProb      float64       `json:"fair_prob"`
	RawEdge       float64       `json:"raw_edge"`
	NetEdge       float64       `json:"net_edge"`
	Confidence    int           `json:"confidence"`
	Urgency       Urgency       `json:"urgency"`
	Tier          SignalTier    `json:"tier"`
	Trigger       TriggerReason `json:"trigger"`
	Status        SignalStatus  `json:"status"`
	StakeFraction float64       `json:"stake_fraction"`
	Volume24hr    float64       `json:"volume_24hr"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Validate checks signal field constraints.
func (s *SignalOpportunity) Validate() error {
	if s.ID == "" {
		return errors.New("signal ID must not be empty")
	}
	if s.MarketID == "" {
		return errors.New("market ID must not be empty")
	}
	if s.Outcome == "" {
		return errors.New("outcome must not be empty")
	}
	if s.Side != "yes" && s.Side != "no" {
		return errors.New("side must be yes or no")
	}
	if s.FairProb < 0 || s.FairProb > 1 {
		return errors.New("fair probability must be between 0.0 and 1.0")
	}
	switch s.Status {
	case SignalActive, SignalExecuted, SignalDismissed, SignalExpired:
	default:
		return errors.New("invalid signal status")
	}
	switch s.Tier {
	case TierElite, TierStrong, TierStatic:
	default:
		return errors.New("invalid signal tier")
	}
	return nil
}

// RunSummary is the structured result of one poll cycle.
type RunSummary struct {
	EventsPolled      int           `json:"events_polled"`
	Matched           int           `json:"matched"`
	EdgesFound        int           `json:"edges_found"`
	MovementConfirmed int           `json:"movement_confirmed"`
	SignalsCreated    int           `json:"signals_created"`
	SignalsUpdated    int           `json:"signals_updated"`
	AlertsSent        int           `json:"alerts_sent"`
	Duration          time.Duration `json:"duration"`
}
