// Package matcher resolves a prediction-market event title to a specific
// bookmaker game and outcome pair, using four escalating strategies.
package matcher

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/edgescout/edgescout/internal/logger"
	"github.com/edgescout/edgescout/internal/models"
)

const (
	// A bookmaker game starting more than this far from the event's own
	// start time is the right teams on the wrong date.
	maxStartSkew = 24 * time.Hour

	fuzzySimilarityFloor = 0.5
	minSharedTokens      = 2
)

// Request carries one prediction-market event into matching.
type Request struct {
	Title     string
	Question  string
	Sport     string
	StartTime time.Time
	MarketKey string
}

func (r Request) eventText() string {
	if r.Question == "" {
		return r.Title
	}
	return r.Title + " " + r.Question
}

// Matcher owns per-run mutable state: the AI resolution cache (negative
// results included) and the per-run call budget. Construct one per poll
// cycle. It is safe for concurrent use: the cache and budget are guarded
// internally and no lock is held across the resolver's network call.
type Matcher struct {
	resolver *Resolver
	aiBudget int

	mu      sync.Mutex
	aiCalls int
	aiCache map[string]*Resolution // nil entry = negative result

	flight singleflight.Group
}

// New creates a matcher for one run. resolver may be nil to disable the AI
// fallback; budget caps AI calls for the run.
func New(resolver *Resolver, budget int) *Matcher {
	return &Matcher{
		resolver: resolver,
		aiBudget: budget,
		aiCache:  make(map[string]*Resolution),
	}
}

type strategyFunc func(ctx context.Context, req Request, games []models.Game) *models.MatchResult

// Match tries each strategy in order and returns the first result that
// survives the nickname-presence validation. A nil result means no match;
// matching fails closed rather than guessing.
func (m *Matcher) Match(ctx context.Context, req Request, games []models.Game) *models.MatchResult {
	strategies := []strategyFunc{
		m.matchStructural,
		m.matchNicknameExpansion,
		m.matchFuzzy,
		m.matchAI,
	}
	for _, strat := range strategies {
		result := strat(ctx, req, games)
		if result == nil {
			continue
		}
		if err := result.Validate(); err != nil {
			logger.Warn("Discarding invalid match for %q: %v", req.Title, err)
			continue
		}
		// Both final outcome labels must be verifiable against the event
		// text, whichever strategy produced them.
		if !containsNickname(req.eventText(), result.Yes.Name) ||
			!containsNickname(req.eventText(), result.No.Name) {
			logger.Debug("Match for %q failed nickname validation (%s / %s)",
				req.Title, result.Yes.Name, result.No.Name)
			continue
		}
		return result
	}
	return nil
}

// matchStructural parses the title as "Team A vs Team B" and compares
// normalized names against bookmaker outcomes.
func (m *Matcher) matchStructural(_ context.Context, req Request, games []models.Game) *models.MatchResult {
	yesName, noName, ok := splitVersus(req.Title)
	if !ok {
		return nil
	}
	return m.matchTeams(req, games, yesName, noName, models.MatchExact)
}

// matchNicknameExpansion re-attempts the structural match with
// abbreviation/nickname/city aliases expanded to canonical names.
func (m *Matcher) matchNicknameExpansion(_ context.Context, req Request, games []models.Game) *models.MatchResult {
	yesName, noName, ok := splitVersus(req.Title)
	if !ok {
		return nil
	}
	expandedYes := expandAlias(req.Sport, yesName)
	expandedNo := expandAlias(req.Sport, noName)
	if expandedYes == yesName && expandedNo == noName {
		return nil // nothing new to try
	}
	return m.matchTeams(req, games, expandedYes, expandedNo, models.MatchNickname)
}

// matchFuzzy scores the whole title against each game's "home vs away"
// string and re-attempts the structural match with the best game's names.
func (m *Matcher) matchFuzzy(_ context.Context, req Request, games []models.Game) *models.MatchResult {
	var best *models.Game
	var bestScore float64
	for i := range games {
		game := &games[i]
		if !startTimesCompatible(req.StartTime, game.CommenceTime) {
			continue
		}
		score := tokenOverlapSimilarity(req.Title, game.HomeTeam+" vs "+game.AwayTeam)
		if score > bestScore {
			best, bestScore = game, score
		}
	}
	if best == nil || bestScore < fuzzySimilarityFloor {
		return nil
	}
	// Accept the fuzzy candidate only if it is literally anchored in the
	// event text by at least one team's nickname.
	if !containsNickname(req.eventText(), best.HomeTeam) &&
		!containsNickname(req.eventText(), best.AwayTeam) {
		return nil
	}
	yesName, noName, ok := orderBySide(req.eventText(), best.HomeTeam, best.AwayTeam)
	if !ok {
		return nil
	}
	result := m.matchTeams(req, games, yesName, noName, models.MatchFuzzy)
	if result != nil {
		result.Yes.Score = bestScore
		result.No.Score = bestScore
	}
	return result
}

// matchAI asks the text-resolution service for the two full team names,
// under a hard per-run budget. Failures of any kind are "no match".
func (m *Matcher) matchAI(ctx context.Context, req Request, games []models.Game) *models.MatchResult {
	if m.resolver == nil {
		return nil
	}

	res := m.resolveWithBudget(ctx, req)
	if res == nil {
		return nil
	}

	// The service's answer is only trusted if it is anchored in the text
	// it claims to have read.
	if !containsNickname(req.eventText(), res.HomeTeam) &&
		!containsNickname(req.eventText(), res.AwayTeam) {
		logger.Debug("AI resolution for %q rejected: no nickname present", req.Title)
		return nil
	}

	yesName, noName, ok := orderBySide(req.eventText(), res.HomeTeam, res.AwayTeam)
	if !ok {
		return nil
	}
	result := m.matchTeams(req, games, yesName, noName, models.MatchAI)
	if result != nil {
		result.Yes.Score = res.Confidence
		result.No.Score = res.Confidence
	}
	return result
}

// resolveWithBudget returns the cached or freshly fetched AI resolution for
// an event title. The mutex covers only the cache and the budget counter and
// is released before the HTTP call; the in-flight group collapses a burst of
// identical titles into one service call.
func (m *Matcher) resolveWithBudget(ctx context.Context, req Request) *Resolution {
	cacheKey := req.Title + "|" + req.Sport

	m.mu.Lock()
	if res, cached := m.aiCache[cacheKey]; cached {
		m.mu.Unlock()
		return res
	}
	m.mu.Unlock()

	v, _, _ := m.flight.Do(cacheKey, func() (interface{}, error) {
		m.mu.Lock()
		if res, cached := m.aiCache[cacheKey]; cached {
			// Filled while this caller waited on the flight group.
			m.mu.Unlock()
			return res, nil
		}
		if m.aiCalls >= m.aiBudget {
			m.mu.Unlock()
			logger.Debug("AI resolution budget exhausted for this run")
			return (*Resolution)(nil), nil
		}
		m.aiCalls++
		m.mu.Unlock()

		res, err := m.resolver.Resolve(ctx, req.Title, req.Sport)
		if err != nil {
			logger.Warn("AI resolution failed for %q: %v", req.Title, err)
			res = nil
		}
		m.mu.Lock()
		m.aiCache[cacheKey] = res // negative results cached too
		m.mu.Unlock()
		return res, nil
	})
	res, _ := v.(*Resolution)
	return res
}

// matchTeams finds a game whose outcomes resolve both team names, yes side
// first. Tier 1 is exact normalized equality; tier 2 requires at least two
// shared tokens.
func (m *Matcher) matchTeams(req Request, games []models.Game, yesName, noName string, method models.MatchMethod) *models.MatchResult {
	for i := range games {
		game := &games[i]
		if !startTimesCompatible(req.StartTime, game.CommenceTime) {
			continue
		}
		outcomes := outcomeNames(game, req.MarketKey)
		if len(outcomes) < 2 {
			continue
		}

		yes := resolveOutcome(outcomes, yesName, method)
		no := resolveOutcome(outcomes, noName, method)
		if yes == nil || no == nil {
			continue
		}
		if yes.Index == no.Index {
			// Both sides resolving to one outcome means the parse is
			// wrong; never guess the complement.
			continue
		}
		return &models.MatchResult{
			Game:      game,
			MarketKey: req.MarketKey,
			Yes:       *yes,
			No:        *no,
		}
	}
	return nil
}

// resolveOutcome matches one team name against a market's outcome labels.
func resolveOutcome(outcomes []string, team string, method models.MatchMethod) *models.OutcomeMatch {
	normTeam := normalizeName(team)
	for i, name := range outcomes {
		if normalizeName(name) == normTeam {
			return &models.OutcomeMatch{Index: i, Name: name, Method: method, Score: 1.0}
		}
	}
	bestIdx, bestShared := -1, 0
	for i, name := range outcomes {
		if shared := sharedTokenCount(name, team); shared >= minSharedTokens && shared > bestShared {
			bestIdx, bestShared = i, shared
		}
	}
	if bestIdx < 0 {
		return nil
	}
	tierMethod := method
	if method == models.MatchExact {
		tierMethod = models.MatchTokenOverlap
	}
	return &models.OutcomeMatch{
		Index:  bestIdx,
		Name:   outcomes[bestIdx],
		Method: tierMethod,
		Score:  tokenOverlapSimilarity(outcomes[bestIdx], team),
	}
}

// outcomeNames returns the outcome labels of the first bookmaker offering
// the market; books quote outcomes under consistent names.
func outcomeNames(game *models.Game, marketKey string) []string {
	for i := range game.Bookmakers {
		if market := game.Bookmakers[i].Market(marketKey); market != nil {
			names := make([]string, len(market.Outcomes))
			for j, o := range market.Outcomes {
				names[j] = o.Name
			}
			return names
		}
	}
	return nil
}

// orderBySide decides which of two teams the event title implies "yes":
// the one named earliest in the text.
func orderBySide(eventText, home, away string) (string, string, bool) {
	homePos := nicknamePosition(eventText, home)
	awayPos := nicknamePosition(eventText, away)
	switch {
	case homePos >= 0 && (awayPos < 0 || homePos <= awayPos):
		return home, away, true
	case awayPos >= 0:
		return away, home, true
	default:
		return "", "", false
	}
}

func startTimesCompatible(eventStart, gameStart time.Time) bool {
	if eventStart.IsZero() || gameStart.IsZero() {
		return false
	}
	skew := eventStart.Sub(gameStart)
	if skew < 0 {
		skew = -skew
	}
	return skew <= maxStartSkew
}

// AICallsUsed reports how many AI resolutions this run consumed.
func (m *Matcher) AICallsUsed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aiCalls
}
