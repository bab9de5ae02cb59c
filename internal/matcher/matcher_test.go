package matcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgescout/edgescout/internal/models"
)

func h2hGame(id, home, away string, start time.Time) models.Game {
	return models.Game{
		ID:           id,
		SportKey:     "icehockey_nhl",
		CommenceTime: start,
		HomeTeam:     home,
		AwayTeam:     away,
		Bookmakers: []models.Bookmaker{
			{
				Key:        "pinnacle",
				LastUpdate: start.Add(-time.Hour),
				Markets: []models.BookMarket{
					{
						Key: models.MarketH2H,
						Outcomes: []models.BookOutcome{
							{Name: home, Price: 1.9},
							{Name: away, Price: 2.0},
						},
					},
				},
			},
		},
	}
}

func request(title string, start time.Time) Request {
	return Request{
		Title:     title,
		Sport:     "icehockey_nhl",
		StartTime: start,
		MarketKey: models.MarketH2H,
	}
}

func TestStructuralMatch(t *testing.T) {
	start := time.Now().Add(6 * time.Hour)
	games := []models.Game{
		h2hGame("g1", "Boston Bruins", "Toronto Maple Leafs", start),
		h2hGame("g2", "Edmonton Oilers", "Calgary Flames", start),
	}

	m := New(nil, 0)
	result := m.Match(context.Background(), request("Toronto Maple Leafs vs Boston Bruins", start), games)
	if result == nil {
		t.Fatal("expected a match")
	}
	if result.Game.ID != "g1" {
		t.Errorf("matched game %s, want g1", result.Game.ID)
	}
	if result.Yes.Name != "Toronto Maple Leafs" {
		t.Errorf("yes side = %s, want Toronto Maple Leafs", result.Yes.Name)
	}
	if result.No.Name != "Boston Bruins" {
		t.Errorf("no side = %s, want Boston Bruins", result.No.Name)
	}
	if result.Yes.Index == result.No.Index {
		t.Error("outcome indices must differ")
	}
	if result.Yes.Method != models.MatchExact {
		t.Errorf("method = %s, want exact", result.Yes.Method)
	}
}

func TestStructuralMatchSharedTokens(t *testing.T) {
	start := time.Now().Add(6 * time.Hour)
	games := []models.Game{h2hGame("g1", "Boston Bruins", "Toronto Maple Leafs", start)}

	m := New(nil, 0)
	result := m.Match(context.Background(), request("Maple Leafs vs Boston Bruins", start), games)
	if result == nil {
		t.Fatal("expected a token-overlap match")
	}
	if result.Yes.Method != models.MatchTokenOverlap {
		t.Errorf("yes method = %s, want token-overlap", result.Yes.Method)
	}
	if result.Yes.Name != "Toronto Maple Leafs" {
		t.Errorf("yes side = %s, want Toronto Maple Leafs", result.Yes.Name)
	}
}

func TestStartTimeWindowRejectsWrongDate(t *testing.T) {
	eventStart := time.Now().Add(6 * time.Hour)
	// Same teams, but the bookmaker game is two days out.
	games := []models.Game{h2hGame("g1", "Boston Bruins", "Toronto Maple Leafs", eventStart.Add(48*time.Hour))}

	m := New(nil, 0)
	if result := m.Match(context.Background(), request("Toronto Maple Leafs vs Boston Bruins", eventStart), games); result != nil {
		t.Errorf("expected no match across a 48h start-time skew, got game %s", result.Game.ID)
	}
}

func TestNicknameExpansion(t *testing.T) {
	start := time.Now().Add(6 * time.Hour)
	games := []models.Game{h2hGame("g1", "Boston Bruins", "Toronto Maple Leafs", start)}

	m := New(nil, 0)
	// "Bruins" alone shares only one token with "Boston Bruins", so the
	// structural pass fails; the alias index expands it to the full name.
	result := m.Match(context.Background(), request("Maple Leafs vs Bruins", start), games)
	if result == nil {
		t.Fatal("expected a match via nickname expansion")
	}
	if result.Yes.Name != "Toronto Maple Leafs" || result.No.Name != "Boston Bruins" {
		t.Errorf("resolved %s / %s", result.Yes.Name, result.No.Name)
	}
}

func TestIndexCollisionFailsClosed(t *testing.T) {
	start := time.Now().Add(6 * time.Hour)
	game := h2hGame("g1", "New York Rangers", "New York Islanders", start)

	m := New(nil, 0)
	// "New York vs New York Rangers" would resolve both sides onto the
	// Rangers outcome; the matcher must refuse rather than guess.
	result := m.matchTeams(request("x", start), []models.Game{game}, "New York Rangers", "New York Rangers", models.MatchExact)
	if result != nil {
		t.Error("expected nil result when both sides resolve to one index")
	}
}

func TestFuzzyMatchRequiresNicknameAnchor(t *testing.T) {
	start := time.Now().Add(6 * time.Hour)
	games := []models.Game{h2hGame("g1", "Boston Bruins", "Toronto Maple Leafs", start)}

	m := New(nil, 0)

	// Anchored: one nickname literally appears.
	req := request("NHL tonight: Maple Leafs at Boston Bruins", start)
	if result := m.matchFuzzy(context.Background(), req, games); result == nil {
		t.Error("expected fuzzy match with nickname anchor")
	}

	// Unanchored: similar token shape, neither nickname present.
	req = request("NHL tonight: Toronto at Boston", start)
	if result := m.matchFuzzy(context.Background(), req, games); result != nil {
		t.Error("expected fuzzy match to fail without a literal nickname")
	}
}

func TestAIMatchBudgetAndCache(t *testing.T) {
	start := time.Now().Add(6 * time.Hour)
	games := []models.Game{h2hGame("g1", "Boston Bruins", "Toronto Maple Leafs", start)}

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(Resolution{
			HomeTeam:   "Boston Bruins",
			AwayTeam:   "Toronto Maple Leafs",
			Confidence: 0.95,
		})
	}))
	defer srv.Close()

	resolver := NewResolver(srv.URL, "test-key", 2*time.Second, 100, 0.7)
	m := New(resolver, 2)

	// Title that defeats strategies 1-3 for the yes side but still carries
	// both nicknames for validation.
	req := request("Can the Leafs upset the Bruins tonight?", start)

	result := m.Match(context.Background(), req, games)
	if result == nil {
		t.Fatal("expected AI-assisted match")
	}
	if result.Yes.Method != models.MatchAI && result.No.Method != models.MatchAI {
		// matchTeams may downgrade to token matches against outcome
		// labels, but at least the strategy path must have been AI.
		t.Logf("methods: yes=%s no=%s", result.Yes.Method, result.No.Method)
	}
	if calls != 1 {
		t.Fatalf("resolver called %d times, want 1", calls)
	}

	// Same title again: served from cache, no second call.
	if result := m.Match(context.Background(), req, games); result == nil {
		t.Fatal("expected cached AI match")
	}
	if calls != 1 {
		t.Errorf("resolver called %d times after cache hit, want 1", calls)
	}

	// Budget exhaustion: two fresh titles beyond the remaining budget.
	m.Match(context.Background(), request("Leafs and Bruins meet again", start), games)
	m.Match(context.Background(), request("Bruins host the Leafs", start), games)
	if calls > 2 {
		t.Errorf("resolver called %d times, budget is 2", calls)
	}
	if m.AICallsUsed() > 2 {
		t.Errorf("AICallsUsed = %d, want <= 2", m.AICallsUsed())
	}
}

func TestAIResolutionsRunConcurrently(t *testing.T) {
	start := time.Now().Add(6 * time.Hour)
	games := []models.Game{
		h2hGame("g1", "Boston Bruins", "Toronto Maple Leafs", start),
		h2hGame("g2", "Edmonton Oilers", "Calgary Flames", start),
	}

	const delay = 300 * time.Millisecond
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var req resolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode resolve request: %v", err)
			return
		}
		time.Sleep(delay)
		res := Resolution{HomeTeam: "Boston Bruins", AwayTeam: "Toronto Maple Leafs", Confidence: 0.95}
		if strings.Contains(req.Title, "Flames") {
			res = Resolution{HomeTeam: "Edmonton Oilers", AwayTeam: "Calgary Flames", Confidence: 0.95}
		}
		json.NewEncoder(w).Encode(res)
	}))
	defer srv.Close()

	resolver := NewResolver(srv.URL, "test-key", 2*time.Second, 100, 0.7)
	m := New(resolver, 5)

	// Both titles defeat the cheaper strategies, so each goroutine blocks
	// on one resolver call. No lock may be held across those calls: two
	// distinct titles must resolve in roughly one delay, not two.
	titles := []string{
		"Can the Leafs upset the Bruins tonight?",
		"Can the Flames upset the Oilers tonight?",
	}
	results := make([]*models.MatchResult, len(titles))
	began := time.Now()
	var wg sync.WaitGroup
	for i, title := range titles {
		i, title := i, title
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = m.Match(context.Background(), request(title, start), games)
		}()
	}
	wg.Wait()
	elapsed := time.Since(began)

	for i, res := range results {
		if res == nil {
			t.Fatalf("title %d did not match", i)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("resolver called %d times, want 2", n)
	}
	if elapsed >= 2*delay {
		t.Errorf("resolutions took %v, want under %v (calls serialized?)", elapsed, 2*delay)
	}
}

func TestConcurrentIdenticalTitlesShareOneCall(t *testing.T) {
	start := time.Now().Add(6 * time.Hour)
	games := []models.Game{h2hGame("g1", "Boston Bruins", "Toronto Maple Leafs", start)}

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(100 * time.Millisecond)
		json.NewEncoder(w).Encode(Resolution{
			HomeTeam:   "Boston Bruins",
			AwayTeam:   "Toronto Maple Leafs",
			Confidence: 0.95,
		})
	}))
	defer srv.Close()

	resolver := NewResolver(srv.URL, "test-key", 2*time.Second, 100, 0.7)
	// Budget of one: a burst of the same title must still succeed for
	// every caller off a single in-flight call.
	m := New(resolver, 1)

	req := request("Can the Leafs upset the Bruins tonight?", start)
	var wg sync.WaitGroup
	var matched int32
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Match(context.Background(), req, games) != nil {
				atomic.AddInt32(&matched, 1)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("resolver called %d times, want 1", n)
	}
	if matched != 4 {
		t.Errorf("%d of 4 concurrent matches succeeded", matched)
	}
	if m.AICallsUsed() != 1 {
		t.Errorf("AICallsUsed = %d, want 1", m.AICallsUsed())
	}
}

func TestAIMatchRejectsUnanchoredAnswer(t *testing.T) {
	start := time.Now().Add(6 * time.Hour)
	games := []models.Game{h2hGame("g1", "Boston Bruins", "Toronto Maple Leafs", start)}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Resolution{
			HomeTeam:   "Boston Bruins",
			AwayTeam:   "Toronto Maple Leafs",
			Confidence: 0.99,
		})
	}))
	defer srv.Close()

	resolver := NewResolver(srv.URL, "test-key", 2*time.Second, 100, 0.7)
	m := New(resolver, 5)

	// The service names teams that do not appear in the event text at all.
	if result := m.Match(context.Background(), request("Will the home side win tonight?", start), games); result != nil {
		t.Error("expected unanchored AI resolution to be rejected")
	}
}

func TestAIMatchLowConfidenceIsNoMatch(t *testing.T) {
	start := time.Now().Add(6 * time.Hour)
	games := []models.Game{h2hGame("g1", "Boston Bruins", "Toronto Maple Leafs", start)}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Resolution{
			HomeTeam:   "Boston Bruins",
			AwayTeam:   "Toronto Maple Leafs",
			Confidence: 0.2,
		})
	}))
	defer srv.Close()

	resolver := NewResolver(srv.URL, "test-key", 2*time.Second, 100, 0.7)
	m := New(resolver, 5)

	if result := m.Match(context.Background(), request("Can the Leafs upset the Bruins tonight?", start), games); result != nil {
		t.Error("expected low-confidence resolution to be treated as no match")
	}
}

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Arsenal FC", "arsenal"},
		{"St. Louis Blues", "st louis blues"},
		{"Montréal Canadiens", "montreal canadiens"},
		{"TORONTO Maple-Leafs", "toronto maple leafs"},
	}
	for _, tc := range cases {
		if got := normalizeName(tc.in); got != tc.want {
			t.Errorf("normalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSplitVersus(t *testing.T) {
	a, b, ok := splitVersus("Maple Leafs vs. Bruins")
	if !ok || a != "Maple Leafs" || b != "Bruins" {
		t.Errorf("splitVersus = %q, %q, %v", a, b, ok)
	}
	if _, _, ok := splitVersus("Will it rain tomorrow?"); ok {
		t.Error("expected non-versus title to fail parsing")
	}
}
