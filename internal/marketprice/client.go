// Package marketprice batch-fetches best bid/ask and spread for
// prediction-market tokens from the order-book provider.
package marketprice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Quote is the best bid/ask for one token.
type Quote struct {
	TokenID   string
	BestBid   float64
	BestAsk   float64
	Spread    float64
	FetchedAt time.Time
}

// Client provides access to the order-book price API.
type Client struct {
	baseURL       string
	chunkSize     int
	maxConcurrent int
	httpClient    *http.Client
}

// NewClient creates a new market price client. chunkSize is the provider's
// request-size ceiling for the batch price endpoint.
func NewClient(baseURL string, chunkSize, maxConcurrent int, timeout time.Duration) *Client {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Client{
		baseURL:       baseURL,
		chunkSize:     chunkSize,
		maxConcurrent: maxConcurrent,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

type bookParam struct {
	TokenID string `json:"token_id"`
}

type bookResponse struct {
	AssetID string `json:"asset_id"`
	Bids    []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	} `json:"bids"`
	Asks []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	} `json:"asks"`
}

// FetchQuotes batch-fetches quotes for the given token IDs, chunked to the
// provider ceiling with a bounded number of chunk requests in flight. A
// failed chunk is reported through the returned error map entry count but
// never fails the whole call: quotes from healthy chunks are still returned
// so stale cached prices are only replaced where fresh data exists.
func (c *Client) FetchQuotes(ctx context.Context, tokenIDs []string) (map[string]Quote, int, error) {
	if len(tokenIDs) == 0 {
		return map[string]Quote{}, 0, nil
	}

	chunks := chunk(tokenIDs, c.chunkSize)

	var mu sync.Mutex
	quotes := make(map[string]Quote, len(tokenIDs))
	failedChunks := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)
	for _, ids := range chunks {
		ids := ids
		g.Go(func() error {
			got, err := c.fetchChunk(gctx, ids)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failedChunks++
				return nil // degrade, don't abort sibling chunks
			}
			for id, q := range got {
				quotes[id] = q
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return quotes, failedChunks, err
	}
	if failedChunks == len(chunks) {
		return quotes, failedChunks, fmt.Errorf("all %d price chunks failed", failedChunks)
	}
	return quotes, failedChunks, nil
}

func (c *Client) fetchChunk(ctx context.Context, tokenIDs []string) (map[string]Quote, error) {
	params := make([]bookParam, len(tokenIDs))
	for i, id := range tokenIDs {
		params[i] = bookParam{TokenID: id}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal book params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/books", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch books: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var books []bookResponse
	if err := json.NewDecoder(resp.Body).Decode(&books); err != nil {
		return nil, fmt.Errorf("failed to decode books: %w", err)
	}

	now := time.Now()
	quotes := make(map[string]Quote, len(books))
	for _, b := range books {
		q := Quote{TokenID: b.AssetID, FetchedAt: now}
		// Bids arrive ascending and asks descending; the inside of the
		// book is the last element on each side.
		if n := len(b.Bids); n > 0 {
			q.BestBid = parsePrice(b.Bids[n-1].Price)
		}
		if n := len(b.Asks); n > 0 {
			q.BestAsk = parsePrice(b.Asks[n-1].Price)
		}
		if q.BestBid > 0 && q.BestAsk > 0 {
			q.Spread = q.BestAsk - q.BestBid
		}
		quotes[b.AssetID] = q
	}
	return quotes, nil
}

func parsePrice(s string) float64 {
	p, err := strconv.ParseFloat(s, 64)
	if err != nil || p < 0 || p > 1 {
		return 0
	}
	return p
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
