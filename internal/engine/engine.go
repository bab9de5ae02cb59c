// Package engine runs one poll cycle: fetch odds and order-book
// prices, match events across the two naming schemes, compute fair
// probabilities and movement, and drive the signal lifecycle.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgescout/edgescout/internal/alertgate"
	"github.com/edgescout/edgescout/internal/config"
	"github.com/edgescout/edgescout/internal/consensus"
	"github.com/edgescout/edgescout/internal/edge"
	"github.com/edgescout/edgescout/internal/logger"
	"github.com/edgescout/edgescout/internal/marketprice"
	"github.com/edgescout/edgescout/internal/matcher"
	"github.com/edgescout/edgescout/internal/models"
	"github.com/edgescout/edgescout/internal/movement"
	"github.com/edgescout/edgescout/internal/oddsfeed"
	"github.com/edgescout/edgescout/internal/signals"
	"github.com/edgescout/edgescout/internal/storage"
)

// Notifier delivers alerts for newly created signals.
type Notifier interface {
	SendSignal(sig *models.SignalOpportunity) error
}

// Engine wires the poll-cycle pipeline together. Construct once; each
// Run call is one logical poll cycle and builds its own matcher so AI
// budgets and caches never leak between runs.
type Engine struct {
	cfg       *config.Config
	store     *storage.Storage
	odds      *oddsfeed.Client
	prices    *marketprice.Client
	resolver  *matcher.Resolver
	consensus *consensus.Engine
	detector  *movement.Detector
	edges     *edge.Model
	signals   *signals.Manager
	gate      *alertgate.Gate
	notifier  Notifier
}

func New(cfg *config.Config, store *storage.Storage, odds *oddsfeed.Client, prices *marketprice.Client, notifier Notifier) *Engine {
	var resolver *matcher.Resolver
	if cfg.Resolver.Enabled {
		resolver = matcher.NewResolver(
			cfg.Resolver.BaseURL,
			cfg.Resolver.APIKey,
			cfg.Resolver.CallTimeout,
			cfg.Resolver.RatePerSecond,
			cfg.Resolver.MinConfidence,
		)
	}

	detectorCfg := movement.DefaultConfig()
	detectorCfg.Window = cfg.Engine.SnapshotWindow
	detectorCfg.RecentWindow = cfg.Engine.RecentWindow

	edgeCfg := edge.DefaultConfig()
	edgeCfg.StakeUSD = cfg.Engine.StakeUSD

	return &Engine{
		cfg:       cfg,
		store:     store,
		odds:      odds,
		prices:    prices,
		resolver:  resolver,
		consensus: consensus.New(odds.IsSharp, consensus.DefaultConfig()),
		detector:  movement.New(detectorCfg),
		edges:     edge.New(edgeCfg),
		signals: signals.New(store, signals.Config{
			MinNetEdge:       cfg.Engine.MinNetEdge,
			EdgeTrigger:      cfg.Engine.EdgeTrigger,
			EliteNetEdge:     cfg.Engine.EliteNetEdge,
			EliteRawEdge:     cfg.Engine.EliteRawEdge,
			StrongNetEdge:    cfg.Engine.StrongNetEdge,
			ConfidenceBase:   cfg.Engine.ConfidenceBase,
			ConfidenceSlope:  cfg.Engine.ConfidenceSlope,
			ConfidenceCap:    cfg.Engine.ConfidenceCap,
			StakeFraction:    cfg.Engine.StakeFraction,
			MaxStakePerEvent: cfg.Engine.MaxStakePerEvent,
		}),
		gate:     alertgate.New(24 * time.Hour),
		notifier: notifier,
	}
}

// runState collects counters across concurrent market processing.
type runState struct {
	mu      sync.Mutex
	summary models.RunSummary
}

func (s *runState) add(fn func(*models.RunSummary)) {
	s.mu.Lock()
	fn(&s.summary)
	s.mu.Unlock()
}

// Run executes one poll cycle and returns its summary. Per-event
// failures are logged and skipped; only cycle-level failures (store
// unreachable, every price chunk failing) surface as errors.
func (e *Engine) Run(ctx context.Context) (models.RunSummary, error) {
	start := time.Now()
	state := &runState{}

	if n, err := e.store.ExpireStartedMarkets(start); err != nil {
		return state.summary, fmt.Errorf("expire started markets: %w", err)
	} else if n > 0 {
		logger.Info("expired %d started markets", n)
	}
	if n, err := e.signals.ExpireStarted(start); err != nil {
		return state.summary, fmt.Errorf("expire started signals: %w", err)
	} else if n > 0 {
		logger.Info("expired %d started signals", n)
	}

	markets, err := e.store.ListMarketsByStatus(models.MarketWatching)
	if err != nil {
		return state.summary, fmt.Errorf("list watching markets: %w", err)
	}
	triggered, err := e.store.ListMarketsByStatus(models.MarketTriggered)
	if err != nil {
		return state.summary, fmt.Errorf("list triggered markets: %w", err)
	}
	markets = append(markets, triggered...)
	state.summary.EventsPolled = len(markets)

	// No evaluation is in flight between cycles, so retired markets can
	// give their per-event mutexes back.
	active := make(map[string]bool, len(markets))
	for _, m := range markets {
		active[m.ID] = true
	}
	e.signals.PruneLocks(active)

	if len(markets) == 0 {
		state.summary.Duration = time.Since(start)
		return state.summary, nil
	}

	gamesBySport, quotes := e.fetch(ctx, markets)

	e.applyQuotes(markets, quotes, start)

	byID := make(map[string]*models.MonitoredMarket, len(markets))
	for _, m := range markets {
		byID[m.ID] = m
	}
	if _, err := e.signals.RefreshActive(func(id string) (*models.MonitoredMarket, bool) {
		m, ok := byID[id]
		return m, ok
	}, start); err != nil {
		logger.Error("refreshing active signals: %v", err)
	}

	e.processMarkets(ctx, markets, gamesBySport, state, start)

	if n, err := e.store.PruneSnapshots(start.Add(-e.cfg.Engine.SnapshotWindow)); err != nil {
		logger.Error("pruning snapshots: %v", err)
	} else if n > 0 {
		logger.Debug("pruned %d stale snapshots", n)
	}

	state.summary.Duration = time.Since(start)
	return state.summary, nil
}

// fetch pulls bookmaker games per sport and order-book quotes for all
// tracked tokens concurrently. A sport that fails yields no games this
// cycle; a total quote failure leaves the stored prices in place.
func (e *Engine) fetch(ctx context.Context, markets []*models.MonitoredMarket) (map[string][]models.Game, map[string]marketprice.Quote) {
	sports := make(map[string]bool)
	tokenIDs := make([]string, 0, len(markets)*2)
	for _, m := range markets {
		sports[m.Sport] = true
		if m.YesTokenID != "" {
			tokenIDs = append(tokenIDs, m.YesTokenID)
		}
		if m.NoTokenID != "" {
			tokenIDs = append(tokenIDs, m.NoTokenID)
		}
	}

	var mu sync.Mutex
	gamesBySport := make(map[string][]models.Game, len(sports))
	var quotes map[string]marketprice.Quote

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(sports) + 1)

	for sport := range sports {
		sport := sport
		g.Go(func() error {
			games, err := e.odds.FetchGames(gctx, sport, e.cfg.OddsFeed.Markets)
			if err != nil {
				logger.Warn("odds fetch for %s failed: %v", sport, err)
				return nil
			}
			mu.Lock()
			gamesBySport[sport] = games
			mu.Unlock()
			return nil
		})
	}

	g.Go(func() error {
		q, failedChunks, err := e.prices.FetchQuotes(gctx, tokenIDs)
		if err != nil {
			logger.Warn("price fetch failed, keeping cached prices: %v", err)
			return nil
		}
		if failedChunks > 0 {
			logger.Warn("%d price chunks failed, partial refresh", failedChunks)
		}
		mu.Lock()
		quotes = q
		mu.Unlock()
		return nil
	})

	g.Wait() //nolint:errcheck
	return gamesBySport, quotes
}

// applyQuotes refreshes stored bid/ask/spread from the yes-token quote.
func (e *Engine) applyQuotes(markets []*models.MonitoredMarket, quotes map[string]marketprice.Quote, now time.Time) {
	if quotes == nil {
		return
	}
	for _, m := range markets {
		q, ok := quotes[m.YesTokenID]
		if !ok {
			continue
		}
		m.BestBid = q.BestBid
		m.BestAsk = q.BestAsk
		m.Spread = q.Spread
		m.PriceUpdatedAt = q.FetchedAt
		m.UpdatedAt = now
		if err := e.store.UpsertMarket(m); err != nil {
			logger.Error("persisting quote for %s: %v", m.ID, err)
		}
	}
}

func (e *Engine) processMarkets(ctx context.Context, markets []*models.MonitoredMarket, gamesBySport map[string][]models.Game, state *runState, now time.Time) {
	// Fresh matcher per run: AI budget and cache reset every cycle.
	m := matcher.New(e.resolver, e.cfg.Resolver.CallsPerRun)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Engine.Workers)
	for _, market := range markets {
		market := market
		g.Go(func() error {
			if err := e.processMarket(gctx, m, market, gamesBySport, state, now); err != nil {
				logger.Warn("market %s skipped: %v", market.ID, err)
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck
}

// processMarket runs the match → consensus → movement → edge → signal
// pipeline for one monitored market.
func (e *Engine) processMarket(ctx context.Context, m *matcher.Matcher, market *models.MonitoredMarket, gamesBySport map[string][]models.Game, state *runState, now time.Time) error {
	games := gamesBySport[market.Sport]
	if len(games) == 0 {
		return nil
	}

	req := matcher.Request{
		Title:     market.EventTitle,
		Question:  market.Question,
		Sport:     market.Sport,
		StartTime: market.StartTime,
		MarketKey: models.MarketH2H,
	}
	res := m.Match(ctx, req, games)
	if res == nil {
		return nil
	}
	state.add(func(s *models.RunSummary) { s.Matched++ })

	// Persist this cycle's sharp-book probabilities so future cycles
	// can see movement.
	for book, prob := range e.consensus.SharpBookProbs(res.Game, res.MarketKey, res.Yes.Name, res.No.Name) {
		snap := &models.SharpBookSnapshot{
			EventKey:    res.Game.ID,
			Outcome:     res.Yes.Name,
			Bookmaker:   book,
			ImpliedProb: prob,
			CapturedAt:  now,
		}
		if err := e.store.AddSnapshot(snap); err != nil {
			logger.Error("persisting snapshot for %s: %v", market.ID, err)
		}
	}

	fair := e.consensus.Fair(res.Game, res.MarketKey, res.Yes.Name, res.No.Name)
	if fair == nil {
		return nil
	}

	snaps, err := e.store.SnapshotsSince(res.Game.ID, res.Yes.Name, now.Add(-e.cfg.Engine.SnapshotWindow))
	if err != nil {
		return fmt.Errorf("loading snapshots: %w", err)
	}
	mov := e.detector.Detect(snaps, now)
	if mov.Triggered {
		state.add(func(s *models.RunSummary) { s.MovementConfirmed++ })
	}

	assessment := e.edges.Evaluate(edge.Input{
		FairYes:        fair.Value,
		YesPrice:       market.YesPrice(),
		NoPrice:        market.NoPrice(),
		Spread:         market.Spread,
		Volume24hr:     market.Volume24hr,
		PriceUpdatedAt: market.PriceUpdatedAt,
		Movement:       mov,
	}, now)
	if assessment == nil {
		return nil
	}
	state.add(func(s *models.RunSummary) { s.EdgesFound++ })

	outcome := res.Yes.Name
	if assessment.Side == "no" {
		outcome = res.No.Name
	}

	out, err := e.signals.Evaluate(market, outcome, assessment, mov, now)
	if err != nil {
		return fmt.Errorf("evaluating signal: %w", err)
	}
	if out == nil {
		return nil
	}

	if out.Created {
		state.add(func(s *models.RunSummary) { s.SignalsCreated++ })
		if market.Status != models.MarketTriggered {
			market.Status = models.MarketTriggered
			if err := e.store.UpsertMarket(market); err != nil {
				logger.Error("marking market %s triggered: %v", market.ID, err)
			}
		}
	} else if out.Updated {
		state.add(func(s *models.RunSummary) { s.SignalsUpdated++ })
	}

	if e.notifier != nil && e.gate.ShouldAlert(out.Signal, out.Created, now) {
		if err := e.notifier.SendSignal(out.Signal); err != nil {
			logger.Error("alert for %s failed: %v", market.ID, err)
		} else {
			state.add(func(s *models.RunSummary) { s.AlertsSent++ })
		}
	}
	return nil
}
