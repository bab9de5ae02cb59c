// Package movement decides whether sharp bookmakers have coordinated a
// price move on an outcome, based on a rolling window of implied
// probability snapshots.
package movement

import (
	"math"
	"sort"
	"time"

	"github.com/edgescout/edgescout/internal/models"
)

// Direction of a confirmed move in implied probability terms.
type Direction string

const (
	// Shortening means the outcome's implied probability is rising.
	Shortening Direction = "shortening"
	// Drifting means the outcome's implied probability is falling.
	Drifting Direction = "drifting"
)

// Config holds the detection thresholds. Zero values are replaced by
// DefaultConfig in New.
type Config struct {
	// Window is the lookback over which deltas are computed.
	Window time.Duration
	// RecentWindow is the tail of the lookback that must carry most
	// of the movement.
	RecentWindow time.Duration
	// BaseThreshold is the minimum absolute probability delta.
	BaseThreshold float64
	// RelativeFactor scales the threshold with the starting
	// probability: threshold = max(BaseThreshold, RelativeFactor*start).
	RelativeFactor float64
	// RecencyFraction is the share of a book's windowed movement that
	// must fall inside RecentWindow for the book to count.
	RecencyFraction float64
	// MinBooks is how many books must move the same direction.
	MinBooks int
	// CounterThreshold is the opposite-direction delta that vetoes a
	// confirmation.
	CounterThreshold float64
}

func DefaultConfig() Config {
	return Config{
		Window:           30 * time.Minute,
		RecentWindow:     10 * time.Minute,
		BaseThreshold:    0.02,
		RelativeFactor:   0.12,
		RecencyFraction:  0.70,
		MinBooks:         2,
		CounterThreshold: 0.02,
	}
}

// Result summarizes one detection pass over a single (event, outcome).
type Result struct {
	Triggered       bool
	Direction       Direction
	BooksConfirming int
	// Velocity is the mean absolute probability change per minute
	// across confirming books.
	Velocity float64
}

type Detector struct {
	cfg Config
}

func New(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = def.RecentWindow
	}
	if cfg.BaseThreshold <= 0 {
		cfg.BaseThreshold = def.BaseThreshold
	}
	if cfg.RelativeFactor <= 0 {
		cfg.RelativeFactor = def.RelativeFactor
	}
	if cfg.RecencyFraction <= 0 {
		cfg.RecencyFraction = def.RecencyFraction
	}
	if cfg.MinBooks <= 0 {
		cfg.MinBooks = def.MinBooks
	}
	if cfg.CounterThreshold <= 0 {
		cfg.CounterThreshold = def.CounterThreshold
	}
	return &Detector{cfg: cfg}
}

// bookSeries is one bookmaker's windowed snapshot history, oldest first.
type bookSeries struct {
	book  string
	probs []float64
	times []time.Time
}

func (s *bookSeries) delta() float64 {
	return s.probs[len(s.probs)-1] - s.probs[0]
}

// probAt returns the series value in effect at t: the latest snapshot
// captured at or before t, or the first snapshot if none precede it.
func (s *bookSeries) probAt(t time.Time) float64 {
	p := s.probs[0]
	for i, ts := range s.times {
		if ts.After(t) {
			break
		}
		p = s.probs[i]
	}
	return p
}

// Detect inspects the snapshots for one (event, outcome), assumed to
// already be restricted to the rolling window, and reports whether the
// sharp books confirm a coordinated move as of now.
func (d *Detector) Detect(snapshots []models.SharpBookSnapshot, now time.Time) Result {
	series := groupByBook(snapshots)

	var counting []*bookSeries
	for _, s := range series {
		if d.counts(s, now) {
			counting = append(counting, s)
		}
	}
	if len(counting) == 0 {
		return Result{}
	}

	var up, down []*bookSeries
	for _, s := range counting {
		if s.delta() > 0 {
			up = append(up, s)
		} else {
			down = append(down, s)
		}
	}

	confirming := up
	direction := Shortening
	if len(down) > len(up) {
		confirming = down
		direction = Drifting
	}
	if len(confirming) < d.cfg.MinBooks {
		return Result{}
	}

	// Counter-move veto: any book moving meaningfully against the
	// majority, counting or not, kills the confirmation.
	for _, s := range series {
		delta := s.delta()
		against := (direction == Shortening && delta < 0) || (direction == Drifting && delta > 0)
		if against && math.Abs(delta) >= d.cfg.CounterThreshold {
			return Result{}
		}
	}

	return Result{
		Triggered:       true,
		Direction:       direction,
		BooksConfirming: len(confirming),
		Velocity:        meanVelocity(confirming),
	}
}

// counts applies the per-book significance and recency filters.
func (d *Detector) counts(s *bookSeries, now time.Time) bool {
	delta := s.delta()
	start := s.probs[0]
	threshold := math.Max(d.cfg.BaseThreshold, d.cfg.RelativeFactor*start)
	if math.Abs(delta) < threshold {
		return false
	}

	// Recency filter: the bulk of the move must sit in the tail of
	// the window, rejecting slow drift.
	cutoff := now.Add(-d.cfg.RecentWindow)
	recent := s.probs[len(s.probs)-1] - s.probAt(cutoff)
	return recent/delta >= d.cfg.RecencyFraction
}

func groupByBook(snapshots []models.SharpBookSnapshot) []*bookSeries {
	byBook := make(map[string]*bookSeries)
	for _, snap := range snapshots {
		s, ok := byBook[snap.Bookmaker]
		if !ok {
			s = &bookSeries{book: snap.Bookmaker}
			byBook[snap.Bookmaker] = s
		}
		s.probs = append(s.probs, snap.ImpliedProb)
		s.times = append(s.times, snap.CapturedAt)
	}

	series := make([]*bookSeries, 0, len(byBook))
	for _, s := range byBook {
		if len(s.probs) < 2 {
			continue
		}
		sortSeries(s)
		series = append(series, s)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].book < series[j].book })
	return series
}

func sortSeries(s *bookSeries) {
	idx := make([]int, len(s.times))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return s.times[idx[a]].Before(s.times[idx[b]]) })

	probs := make([]float64, len(idx))
	times := make([]time.Time, len(idx))
	for i, j := range idx {
		probs[i] = s.probs[j]
		times[i] = s.times[j]
	}
	s.probs = probs
	s.times = times
}

func meanVelocity(series []*bookSeries) float64 {
	var sum float64
	var n int
	for _, s := range series {
		span := s.times[len(s.times)-1].Sub(s.times[0]).Minutes()
		if span <= 0 {
			continue
		}
		sum += math.Abs(s.delta()) / span
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
