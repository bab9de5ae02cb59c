// Package storage provides SQLite-backed persistence for monitored markets,
// sharp-book snapshots, and signal opportunities.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/edgescout/edgescout/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db         *sql.DB
	maxMarkets int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/edgescout/data.db.
func New(maxMarkets int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "edgescout", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxMarkets: maxMarkets}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS monitored_markets (
			id               TEXT PRIMARY KEY,
			event_title      TEXT NOT NULL,
			question         TEXT,
			sport            TEXT NOT NULL,
			league           TEXT,
			start_time       INTEGER NOT NULL,
			yes_token_id     TEXT NOT NULL,
			no_token_id      TEXT NOT NULL,
			best_bid         REAL NOT NULL DEFAULT 0,
			best_ask         REAL NOT NULL DEFAULT 0,
			spread           REAL NOT NULL DEFAULT 0,
			volume_24hr      REAL NOT NULL DEFAULT 0,
			status           TEXT NOT NULL,
			source           TEXT,
			price_updated_at INTEGER NOT NULL DEFAULT 0,
			created_at       INTEGER NOT NULL,
			updated_at       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_markets_status ON monitored_markets(status)`,
		`CREATE INDEX IF NOT EXISTS idx_markets_start ON monitored_markets(start_time)`,
		`CREATE TABLE IF NOT EXISTS sharp_snapshots (
			id           TEXT PRIMARY KEY,
			event_key    TEXT NOT NULL,
			outcome      TEXT NOT NULL,
			bookmaker    TEXT NOT NULL,
			implied_prob REAL NOT NULL,
			captured_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_lookup
			ON sharp_snapshots(event_key, outcome, captured_at)`,
		`CREATE TABLE IF NOT EXISTS signals (
			id             TEXT PRIMARY KEY,
			market_id      TEXT NOT NULL,
			event_title    TEXT NOT NULL,
			sport          TEXT,
			start_time     INTEGER NOT NULL,
			outcome        TEXT NOT NULL,
			side           TEXT NOT NULL,
			market_price   REAL NOT NULL,
			fair_prob      REAL NOT NULL,
			raw_edge       REAL NOT NULL,
			net_edge       REAL NOT NULL,
			confidence     INTEGER NOT NULL,
			urgency        TEXT NOT NULL,
			tier           TEXT NOT NULL,
			trigger_reason TEXT NOT NULL,
			status         TEXT NOT NULL,
			stake_fraction REAL NOT NULL DEFAULT 0,
			volume_24hr    REAL NOT NULL DEFAULT 0,
			created_at     INTEGER NOT NULL,
			updated_at     INTEGER NOT NULL,
			UNIQUE(market_id, outcome, created_at)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_market ON signals(market_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_status ON signals(status)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const marketCols = `id, event_title, question, sport, league, start_time,
	yes_token_id, no_token_id, best_bid, best_ask, spread, volume_24hr,
	status, source, price_updated_at, created_at, updated_at`

// UpsertMarket inserts or replaces a monitored market by ID.
func (s *Storage) UpsertMarket(m *models.MonitoredMarket) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid market: %w", err)
	}
	_, err := s.db.Exec(`
		INSERT INTO monitored_markets (`+marketCols+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			event_title=excluded.event_title, question=excluded.question,
			sport=excluded.sport, league=excluded.league, start_time=excluded.start_time,
			yes_token_id=excluded.yes_token_id, no_token_id=excluded.no_token_id,
			best_bid=excluded.best_bid, best_ask=excluded.best_ask,
			spread=excluded.spread, volume_24hr=excluded.volume_24hr,
			status=excluded.status, source=excluded.source,
			price_updated_at=excluded.price_updated_at, updated_at=excluded.updated_at`,
		m.ID, m.EventTitle, m.Question, m.Sport, m.League, m.StartTime.UnixNano(),
		m.YesTokenID, m.NoTokenID, m.BestBid, m.BestAsk, m.Spread, m.Volume24hr,
		string(m.Status), m.Source, m.PriceUpdatedAt.UnixNano(),
		m.CreatedAt.UnixNano(), m.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert market: %w", err)
	}
	return nil
}

// GetMarket returns one monitored market by ID.
func (s *Storage) GetMarket(id string) (*models.MonitoredMarket, error) {
	row := s.db.QueryRow(`SELECT `+marketCols+` FROM monitored_markets WHERE id = ?`, id)
	m, err := scanMarket(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("market not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	return m, nil
}

// ListMarketsByStatus returns all monitored markets in the given status.
func (s *Storage) ListMarketsByStatus(status models.MarketStatus) ([]*models.MonitoredMarket, error) {
	rows, err := s.db.Query(`SELECT `+marketCols+` FROM monitored_markets WHERE status = ?`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query markets: %w", err)
	}
	defer rows.Close()
	var markets []*models.MonitoredMarket
	for rows.Next() {
		m, err := scanMarket(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// ExpireStartedMarkets retires every non-expired market whose start time has
// passed. Returns the number of rows affected.
func (s *Storage) ExpireStartedMarkets(now time.Time) (int, error) {
	res, err := s.db.Exec(`
		UPDATE monitored_markets SET status = ?, updated_at = ?
		WHERE status != ? AND start_time <= ?`,
		string(models.MarketExpired), now.UnixNano(),
		string(models.MarketExpired), now.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire markets: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// RotateMarkets keeps at most maxMarkets newest markets by updated_at.
func (s *Storage) RotateMarkets() error {
	_, err := s.db.Exec(`
		DELETE FROM monitored_markets WHERE id NOT IN (
			SELECT id FROM monitored_markets ORDER BY updated_at DESC LIMIT ?
		)`, s.maxMarkets)
	if err != nil {
		return fmt.Errorf("failed to rotate markets: %w", err)
	}
	return nil
}

func scanMarket(scan func(...any) error) (*models.MonitoredMarket, error) {
	var m models.MonitoredMarket
	var status string
	var startNano, priceNano, createdNano, updatedNano int64
	err := scan(
		&m.ID, &m.EventTitle, &m.Question, &m.Sport, &m.League, &startNano,
		&m.YesTokenID, &m.NoTokenID, &m.BestBid, &m.BestAsk, &m.Spread, &m.Volume24hr,
		&status, &m.Source, &priceNano, &createdNano, &updatedNano,
	)
	if err != nil {
		return nil, err
	}
	m.Status = models.MarketStatus(status)
	m.StartTime = time.Unix(0, startNano)
	m.PriceUpdatedAt = time.Unix(0, priceNano)
	m.CreatedAt = time.Unix(0, createdNano)
	m.UpdatedAt = time.Unix(0, updatedNano)
	return &m, nil
}

// AddSnapshot persists one sharp-book implied-probability observation. An
// empty ID is assigned on insert.
func (s *Storage) AddSnapshot(snap *models.SharpBookSnapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	_, err := s.db.Exec(`
		INSERT INTO sharp_snapshots (id, event_key, outcome, bookmaker, implied_prob, captured_at)
		VALUES (?,?,?,?,?,?)`,
		snap.ID, snap.EventKey, snap.Outcome, snap.Bookmaker,
		snap.ImpliedProb, snap.CapturedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// SnapshotsSince returns snapshots for one (event, outcome) captured at or
// after the cutoff, oldest first.
func (s *Storage) SnapshotsSince(eventKey, outcome string, since time.Time) ([]models.SharpBookSnapshot, error) {
	rows, err := s.db.Query(`
		SELECT id, event_key, outcome, bookmaker, implied_prob, captured_at
		FROM sharp_snapshots
		WHERE event_key = ? AND outcome = ? AND captured_at >= ?
		ORDER BY captured_at ASC`,
		eventKey, outcome, since.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []models.SharpBookSnapshot
	for rows.Next() {
		var snap models.SharpBookSnapshot
		var capturedNano int64
		if err := rows.Scan(&snap.ID, &snap.EventKey, &snap.Outcome, &snap.Bookmaker,
			&snap.ImpliedProb, &capturedNano); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.CapturedAt = time.Unix(0, capturedNano)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// PruneSnapshots deletes snapshots captured before the cutoff. Snapshots
// older than the movement window are never read again.
func (s *Storage) PruneSnapshots(before time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM sharp_snapshots WHERE captured_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

const signalCols = `id, market_id, event_title, sport, start_time, outcome, side,
	market_price, fair_prob, raw_edge, net_edge, confidence, urgency, tier,
	trigger_reason, status, stake_fraction, volume_24hr, created_at, updated_at`

// InsertSignal persists a new signal opportunity.
func (s *Storage) InsertSignal(sig *models.SignalOpportunity) error {
	if err := sig.Validate(); err != nil {
		return fmt.Errorf("invalid signal: %w", err)
	}
	_, err := s.db.Exec(`
		INSERT INTO signals (`+signalCols+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		sig.ID, sig.MarketID, sig.EventTitle, sig.Sport, sig.StartTime.UnixNano(),
		sig.Outcome, sig.Side, sig.MarketPrice, sig.FairProb, sig.RawEdge, sig.NetEdge,
		sig.Confidence, string(sig.Urgency), string(sig.Tier), string(sig.Trigger),
		string(sig.Status), sig.StakeFraction, sig.Volume24hr,
		sig.CreatedAt.UnixNano(), sig.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}
	return nil
}

// UpdateSignal rewrites a signal row in place by ID.
func (s *Storage) UpdateSignal(sig *models.SignalOpportunity) error {
	if err := sig.Validate(); err != nil {
		return fmt.Errorf("invalid signal: %w", err)
	}
	res, err := s.db.Exec(`
		UPDATE signals SET
			market_price=?, fair_prob=?, raw_edge=?, net_edge=?, confidence=?,
			urgency=?, tier=?, trigger_reason=?, status=?, stake_fraction=?,
			volume_24hr=?, updated_at=?
		WHERE id=?`,
		sig.MarketPrice, sig.FairProb, sig.RawEdge, sig.NetEdge, sig.Confidence,
		string(sig.Urgency), string(sig.Tier), string(sig.Trigger), string(sig.Status),
		sig.StakeFraction, sig.Volume24hr, sig.UpdatedAt.UnixNano(), sig.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update signal: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("signal not found: %s", sig.ID)
	}
	return nil
}

// ActiveSignalForMarket returns the single active signal for an event, or
// nil if none exists.
func (s *Storage) ActiveSignalForMarket(marketID string) (*models.SignalOpportunity, error) {
	row := s.db.QueryRow(`SELECT `+signalCols+` FROM signals
		WHERE market_id = ? AND status = ?`, marketID, string(models.SignalActive))
	sig, err := scanSignal(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active signal: %w", err)
	}
	return sig, nil
}

// ListActiveSignals returns every active signal.
func (s *Storage) ListActiveSignals() ([]*models.SignalOpportunity, error) {
	rows, err := s.db.Query(`SELECT `+signalCols+` FROM signals WHERE status = ?`,
		string(models.SignalActive))
	if err != nil {
		return nil, fmt.Errorf("failed to query active signals: %w", err)
	}
	defer rows.Close()
	var sigs []*models.SignalOpportunity
	for rows.Next() {
		sig, err := scanSignal(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		sigs = append(sigs, sig)
	}
	return sigs, rows.Err()
}

// HasTerminalSignal reports whether an executed or dismissed signal exists
// for the event+outcome, which blocks re-creation.
func (s *Storage) HasTerminalSignal(marketID, outcome string) (bool, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(1) FROM signals
		WHERE market_id = ? AND outcome = ? AND status IN (?, ?)`,
		marketID, outcome, string(models.SignalExecuted), string(models.SignalDismissed),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check terminal signals: %w", err)
	}
	return n > 0, nil
}

// CountSignalsForOutcome returns the number of signal rows for an
// event+outcome regardless of status.
func (s *Storage) CountSignalsForOutcome(marketID, outcome string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM signals WHERE market_id = ? AND outcome = ?`,
		marketID, outcome).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count signals: %w", err)
	}
	return n, nil
}

// ExpireSignalsPastStart marks active signals whose event has started as
// expired. Returns the number of rows affected.
func (s *Storage) ExpireSignalsPastStart(now time.Time) (int, error) {
	res, err := s.db.Exec(`
		UPDATE signals SET status = ?, updated_at = ?
		WHERE status = ? AND start_time <= ?`,
		string(models.SignalExpired), now.UnixNano(),
		string(models.SignalActive), now.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire signals: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func scanSignal(scan func(...any) error) (*models.SignalOpportunity, error) {
	var sig models.SignalOpportunity
	var urgency, tier, trigger, status string
	var startNano, createdNano, updatedNano int64
	err := scan(
		&sig.ID, &sig.MarketID, &sig.EventTitle, &sig.Sport, &startNano,
		&sig.Outcome, &sig.Side, &sig.MarketPrice, &sig.FairProb, &sig.RawEdge,
		&sig.NetEdge, &sig.Confidence, &urgency, &tier, &trigger, &status,
		&sig.StakeFraction, &sig.Volume24hr, &createdNano, &updatedNano,
	)
	if err != nil {
		return nil, err
	}
	sig.Urgency = models.Urgency(urgency)
	sig.Tier = models.SignalTier(tier)
	sig.Trigger = models.TriggerReason(trigger)
	sig.Status = models.SignalStatus(status)
	sig.StartTime = time.Unix(0, startNano)
	sig.CreatedAt = time.Unix(0, createdNano)
	sig.UpdatedAt = time.Unix(0, updatedNano)
	return &sig, nil
}
