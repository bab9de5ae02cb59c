// Package models defines the core domain entities: monitored markets,
// bookmaker games, snapshots, match results, and signal opportunities.
package models

import (
	"errors"
	"time"
)

// MarketStatus is the monitoring lifecycle of a prediction-market token pair.
type MarketStatus string

const (
	MarketWatching  MarketStatus = "watching"
	MarketTriggered MarketStatus = "triggered"
	MarketExpired   MarketStatus = "expired"
)

// MonitoredMarket is a prediction-market token pair tracked for a single
// real-world event. Discovery happens elsewhere; the engine refreshes
// prices and volume every poll and retires the market once it starts.
type MonitoredMarket struct {
	ID             string       `json:"id"`
	EventTitle     string       `json:"event_title"`
	Question       string       `json:"question"`
	Sport          string       `json:"sport"`
	League         string       `json:"league"`
	StartTime      time.Time    `json:"start_time"`
	YesTokenID     string       `json:"yes_token_id"`
	NoTokenID      string       `json:"no_token_id"`
	BestBid        float64      `json:"best_bid"`
	BestAsk        float64      `json:"best_ask"`
	Spread         float64      `json:"spread"`
	Volume24hr     float64      `json:"volume_24hr"`
	Status         MarketStatus `json:"status"`
	Source         string       `json:"source"`
	PriceUpdatedAt time.Time    `json:"price_updated_at"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Validate checks monitored market field constraints.
func (m *MonitoredMarket) Validate() error {
	if m.ID == "" {
		return errors.New("market ID must not be empty")
	}
	if m.EventTitle == "" {
		return errors.New("event title must not be empty")
	}
	if m.Sport == "" {
		return errors.New("sport must not be empty")
	}
	if m.YesTokenID == "" || m.NoTokenID == "" {
		return errors.New("both token IDs must not be empty")
	}
	if m.BestBid < 0 || m.BestBid > 1 {
		return errors.New("best bid must be between 0.0 and 1.0")
	}
	if m.BestAsk < 0 || m.BestAsk > 1 {
		return errors.New("best ask must be between 0.0 and 1.0")
	}
	if m.Volume24hr < 0 {
		return errors.New("volume 24hr must not be negative")
	}
	switch m.Status {
	case MarketWatching, MarketTriggered, MarketExpired:
	default:
		return errors.New("status must be watching, triggered, or expired")
	}
	if m.StartTime.IsZero() {
		return errors.New("start time must be set")
	}
	return nil
}

// YesPrice returns the cost of buying the yes side, preferring the live ask.
func (m *MonitoredMarket) YesPrice() float64 {
	if m.BestAsk > 0 {
		return m.BestAsk
	}
	return m.BestBid
}

// NoPrice returns the cost of buying the no side implied by the yes book:
// a no buy fills against yes bids, so the no ask is 1 minus the yes bid.
func (m *MonitoredMarket) NoPrice() float64 {
	if m.BestBid > 0 && m.BestBid < 1 {
		return 1 - m.BestBid
	}
	if m.BestAsk > 0 && m.BestAsk < 1 {
		return 1 - m.BestAsk
	}
	return 0
}
