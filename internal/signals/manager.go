// Package signals owns the signal lifecycle: qualification, tiering,
// deduplication, and the one-active-signal-per-event invariant.
package signals

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgescout/edgescout/internal/edge"
	"github.com/edgescout/edgescout/internal/models"
	"github.com/edgescout/edgescout/internal/movement"
)

// Store is the persistence surface the manager needs.
type Store interface {
	InsertSignal(sig *models.SignalOpportunity) error
	UpdateSignal(sig *models.SignalOpportunity) error
	ActiveSignalForMarket(marketID string) (*models.SignalOpportunity, error)
	ListActiveSignals() ([]*models.SignalOpportunity, error)
	HasTerminalSignal(marketID, outcome string) (bool, error)
	ExpireSignalsPastStart(now time.Time) (int, error)
}

type Config struct {
	// MinNetEdge is the qualification floor for net edge.
	MinNetEdge float64
	// EdgeTrigger is the raw edge that qualifies without movement.
	EdgeTrigger float64
	// MinMovementBooks is how many confirming books the movement
	// trigger requires.
	MinMovementBooks int

	EliteNetEdge  float64
	EliteRawEdge  float64
	StrongNetEdge float64

	// Confidence = min(cap, base + floor(netEdge*slope)). Tuned
	// constants carried as configuration.
	ConfidenceBase  int
	ConfidenceSlope float64
	ConfidenceCap   int

	// StakeFraction is the baseline bankroll fraction per signal,
	// scaled up by tier and capped by MaxStakePerEvent.
	StakeFraction    float64
	MaxStakePerEvent float64
}

func DefaultConfig() Config {
	return Config{
		MinNetEdge:       0.02,
		EdgeTrigger:      0.05,
		MinMovementBooks: 2,
		EliteNetEdge:     0.05,
		EliteRawEdge:     0.10,
		StrongNetEdge:    0.03,
		ConfidenceBase:   50,
		ConfidenceSlope:  500,
		ConfidenceCap:    85,
		StakeFraction:    0.01,
		MaxStakePerEvent: 0.05,
	}
}

// Outcome reports what one evaluation did to the signal table.
type Outcome struct {
	Signal  *models.SignalOpportunity
	Created bool
	Updated bool
}

// Manager serializes read-modify-write cycles per event key so
// concurrent market processing cannot race the active-signal invariant.
type Manager struct {
	store Store
	cfg   Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(store Store, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.MinNetEdge <= 0 {
		cfg.MinNetEdge = def.MinNetEdge
	}
	if cfg.EdgeTrigger <= 0 {
		cfg.EdgeTrigger = def.EdgeTrigger
	}
	if cfg.MinMovementBooks <= 0 {
		cfg.MinMovementBooks = def.MinMovementBooks
	}
	if cfg.EliteNetEdge <= 0 {
		cfg.EliteNetEdge = def.EliteNetEdge
	}
	if cfg.EliteRawEdge <= 0 {
		cfg.EliteRawEdge = def.EliteRawEdge
	}
	if cfg.StrongNetEdge <= 0 {
		cfg.StrongNetEdge = def.StrongNetEdge
	}
	if cfg.ConfidenceBase <= 0 {
		cfg.ConfidenceBase = def.ConfidenceBase
	}
	if cfg.ConfidenceSlope <= 0 {
		cfg.ConfidenceSlope = def.ConfidenceSlope
	}
	if cfg.ConfidenceCap <= 0 {
		cfg.ConfidenceCap = def.ConfidenceCap
	}
	if cfg.StakeFraction <= 0 {
		cfg.StakeFraction = def.StakeFraction
	}
	if cfg.MaxStakePerEvent <= 0 {
		cfg.MaxStakePerEvent = def.MaxStakePerEvent
	}
	return &Manager{
		store: store,
		cfg:   cfg,
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *Manager) eventLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// PruneLocks drops per-event mutexes for markets no longer monitored.
// Only call between cycles, while no evaluation holds or is about to
// take an event lock.
func (m *Manager) PruneLocks(active map[string]bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.locks {
		if !active[key] {
			delete(m.locks, key)
			n++
		}
	}
	return n
}

// Evaluate applies the qualification rules to one priced market and
// creates or updates its signal. A nil Outcome means nothing qualified.
func (m *Manager) Evaluate(market *models.MonitoredMarket, outcome string, a *edge.Assessment, mov movement.Result, now time.Time) (*Outcome, error) {
	if a == nil {
		return nil, nil
	}
	movementTrigger := mov.Triggered && mov.BooksConfirming >= m.cfg.MinMovementBooks
	if a.NetEdge < m.cfg.MinNetEdge {
		return nil, nil
	}
	edgeTrigger := a.RawEdge >= m.cfg.EdgeTrigger
	if !edgeTrigger && !movementTrigger {
		return nil, nil
	}

	lock := m.eventLock(market.ID)
	lock.Lock()
	defer lock.Unlock()

	terminal, err := m.store.HasTerminalSignal(market.ID, outcome)
	if err != nil {
		return nil, fmt.Errorf("terminal lookup for %s: %w", market.ID, err)
	}
	if terminal {
		return nil, nil
	}

	tier := m.tierFor(a, movementTrigger)
	reason := triggerReason(edgeTrigger, movementTrigger)

	existing, err := m.store.ActiveSignalForMarket(market.ID)
	if err != nil {
		return nil, fmt.Errorf("active lookup for %s: %w", market.ID, err)
	}

	if existing != nil && existing.Outcome == outcome {
		m.applyAssessment(existing, market, a, tier, reason, now)
		if err := m.store.UpdateSignal(existing); err != nil {
			return nil, fmt.Errorf("update signal %s: %w", existing.ID, err)
		}
		return &Outcome{Signal: existing, Updated: true}, nil
	}

	// Opposing side: retire the prior recommendation before creating
	// the new one so the event never carries two active signals.
	if existing != nil {
		existing.Status = models.SignalExpired
		existing.UpdatedAt = now
		if err := m.store.UpdateSignal(existing); err != nil {
			return nil, fmt.Errorf("expire opposing signal %s: %w", existing.ID, err)
		}
	}

	sig := &models.SignalOpportunity{
		ID:         uuid.NewString(),
		MarketID:   market.ID,
		EventTitle: market.EventTitle,
		Sport:      market.Sport,
		StartTime:  market.StartTime,
		Outcome:    outcome,
		Side:       a.Side,
		Status:     models.SignalActive,
		CreatedAt:  now,
	}
	m.applyAssessment(sig, market, a, tier, reason, now)
	if err := m.store.InsertSignal(sig); err != nil {
		return nil, fmt.Errorf("insert signal for %s: %w", market.ID, err)
	}
	return &Outcome{Signal: sig, Created: true}, nil
}

func (m *Manager) applyAssessment(sig *models.SignalOpportunity, market *models.MonitoredMarket, a *edge.Assessment, tier models.SignalTier, reason models.TriggerReason, now time.Time) {
	sig.MarketPrice = a.Price
	sig.FairProb = a.Fair
	sig.RawEdge = a.RawEdge
	sig.NetEdge = a.NetEdge
	sig.Tier = tier
	sig.Trigger = reason
	sig.Confidence = m.confidence(a.NetEdge)
	sig.Urgency = models.UrgencyFor(market.StartTime, now)
	sig.StakeFraction = m.stakeFraction(tier)
	sig.Volume24hr = market.Volume24hr
	sig.UpdatedAt = now
}

func (m *Manager) tierFor(a *edge.Assessment, movement bool) models.SignalTier {
	switch {
	case (a.NetEdge >= m.cfg.EliteNetEdge && movement) || a.RawEdge >= m.cfg.EliteRawEdge:
		return models.TierElite
	case a.NetEdge >= m.cfg.StrongNetEdge && movement:
		return models.TierStrong
	default:
		return models.TierStatic
	}
}

func triggerReason(edgeTrigger, movementTrigger bool) models.TriggerReason {
	switch {
	case edgeTrigger && movementTrigger:
		return models.TriggerBoth
	case movementTrigger:
		return models.TriggerMovement
	default:
		return models.TriggerEdge
	}
}

func (m *Manager) confidence(netEdge float64) int {
	c := m.cfg.ConfidenceBase + int(math.Floor(netEdge*m.cfg.ConfidenceSlope))
	if c > m.cfg.ConfidenceCap {
		c = m.cfg.ConfidenceCap
	}
	if c < 0 {
		c = 0
	}
	return c
}

func (m *Manager) stakeFraction(tier models.SignalTier) float64 {
	f := m.cfg.StakeFraction
	switch tier {
	case models.TierElite:
		f *= 3
	case models.TierStrong:
		f *= 2
	}
	if f > m.cfg.MaxStakePerEvent {
		f = m.cfg.MaxStakePerEvent
	}
	return f
}

// RefreshActive updates price and volume on every active signal before
// trigger evaluation so displayed fields stay current even when the
// edge is decaying. lookup resolves a market by ID, returning false
// when the market is no longer tracked.
func (m *Manager) RefreshActive(lookup func(marketID string) (*models.MonitoredMarket, bool), now time.Time) (int, error) {
	active, err := m.store.ListActiveSignals()
	if err != nil {
		return 0, fmt.Errorf("list active signals: %w", err)
	}
	refreshed := 0
	for _, sig := range active {
		market, ok := lookup(sig.MarketID)
		if !ok {
			continue
		}
		lock := m.eventLock(sig.MarketID)
		lock.Lock()
		if sig.Side == "yes" {
			sig.MarketPrice = market.YesPrice()
		} else {
			sig.MarketPrice = market.NoPrice()
		}
		sig.Volume24hr = market.Volume24hr
		sig.UpdatedAt = now
		err := m.store.UpdateSignal(sig)
		lock.Unlock()
		if err != nil {
			return refreshed, fmt.Errorf("refresh signal %s: %w", sig.ID, err)
		}
		refreshed++
	}
	return refreshed, nil
}

// ExpireStarted retires active signals whose event has started.
func (m *Manager) ExpireStarted(now time.Time) (int, error) {
	return m.store.ExpireSignalsPastStart(now)
}
