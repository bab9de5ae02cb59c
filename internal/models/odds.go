package models

import "time"

// Market keys offered by the bookmaker odds provider.
const (
	MarketH2H     = "h2h"
	MarketTotals  = "totals"
	MarketSpreads = "spreads"
)

// BookOutcome is one priced outcome of one bookmaker market.
type BookOutcome struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"` // decimal odds
	Point float64 `json:"point,omitempty"`
}

// BookMarket is one market (h2h, totals, spreads) quoted by one bookmaker.
type BookMarket struct {
	Key      string        `json:"key"`
	Outcomes []BookOutcome `json:"outcomes"`
}

// Bookmaker is one book's quotes for a game.
type Bookmaker struct {
	Key        string       `json:"key"`
	Title      string       `json:"title"`
	LastUpdate time.Time    `json:"last_update"`
	Markets    []BookMarket `json:"markets"`
}

// Game is a bookmaker-side fixture with per-book per-market outcome arrays.
type Game struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	CommenceTime time.Time   `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []Bookmaker `json:"bookmakers"`
}

// Market returns the named market from a bookmaker, or nil.
func (b *Bookmaker) Market(key string) *BookMarket {
	for i := range b.Markets {
		if b.Markets[i].Key == key {
			return &b.Markets[i]
		}
	}
	return nil
}

// SharpBookSnapshot is one sharp bookmaker's implied probability for one
// outcome at one point in time, persisted for the movement window only.
type SharpBookSnapshot struct {
	ID          string    `json:"id"`
	EventKey    string    `json:"event_key"` // bookmaker game ID
	Outcome     string    `json:"outcome"`
	Bookmaker   string    `json:"bookmaker"`
	ImpliedProb float64   `json:"implied_prob"`
	CapturedAt  time.Time `json:"captured_at"`
}
