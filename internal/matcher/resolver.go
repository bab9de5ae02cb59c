package matcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Resolution is the strict schema the text-resolution service must return.
type Resolution struct {
	HomeTeam   string  `json:"home_team"`
	AwayTeam   string  `json:"away_team"`
	Confidence float64 `json:"confidence"`
}

// Resolver calls an external text-resolution service to extract the two
// full team names from an ambiguous event title. It is the only
// unbounded-latency dependency of matching, so every call is rate-limited
// and carries a short timeout.
type Resolver struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	limiter       *rate.Limiter
	callTimeout   time.Duration
	minConfidence float64
}

// NewResolver creates a resolver client.
func NewResolver(baseURL, apiKey string, callTimeout time.Duration, ratePerSecond, minConfidence float64) *Resolver {
	if callTimeout <= 0 {
		callTimeout = 4 * time.Second
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	burst := int(ratePerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Resolver{
		baseURL:       baseURL,
		apiKey:        apiKey,
		httpClient:    &http.Client{Timeout: callTimeout},
		limiter:       rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		callTimeout:   callTimeout,
		minConfidence: minConfidence,
	}
}

type resolveRequest struct {
	Title string `json:"title"`
	Sport string `json:"sport"`
}

// Resolve asks the service for the two team names in an event title. A nil
// result with a nil error means the service answered but the resolution is
// unusable (low confidence or malformed); matching treats both the same as
// "no match".
func (r *Resolver) Resolve(ctx context.Context, title, sport string) (*Resolution, error) {
	if !r.limiter.Allow() {
		return nil, fmt.Errorf("resolver rate limit exceeded")
	}

	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	body, err := json.Marshal(resolveRequest{Title: title, Sport: sport})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resolve request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/resolve", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve call failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resolve call returned status %d", resp.StatusCode)
	}

	var res Resolution
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("failed to decode resolution: %w", err)
	}
	if res.HomeTeam == "" || res.AwayTeam == "" {
		return nil, nil
	}
	if res.Confidence < r.minConfidence {
		return nil, nil
	}
	return &res, nil
}
