// Package oddsfeed fetches per-sport bookmaker quotes from the odds provider.
package oddsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/edgescout/edgescout/internal/models"
)

// Client provides access to the bookmaker odds API.
type Client struct {
	baseURL    string
	apiKey     string
	regions    string
	httpClient *http.Client
	maxRetries int
	sharpBooks map[string]bool
}

// NewClient creates a new odds feed client. sharpBooks is the fixed lookup
// set of bookmakers whose prices are treated as informationally efficient.
func NewClient(baseURL, apiKey, regions string, timeout time.Duration, maxRetries int, sharpBooks []string) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	sharp := make(map[string]bool, len(sharpBooks))
	for _, key := range sharpBooks {
		sharp[strings.ToLower(key)] = true
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		regions:    regions,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		sharpBooks: sharp,
	}
}

// IsSharp reports whether a bookmaker key is part of the sharp set.
func (c *Client) IsSharp(bookKey string) bool {
	return c.sharpBooks[strings.ToLower(bookKey)]
}

// apiGame mirrors the provider's per-game response shape.
type apiGame struct {
	ID           string    `json:"id"`
	SportKey     string    `json:"sport_key"`
	CommenceTime time.Time `json:"commence_time"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	Bookmakers   []struct {
		Key        string    `json:"key"`
		Title      string    `json:"title"`
		LastUpdate time.Time `json:"last_update"`
		Markets    []struct {
			Key      string `json:"key"`
			Outcomes []struct {
				Name  string  `json:"name"`
				Price float64 `json:"price"`
				Point float64 `json:"point"`
			} `json:"outcomes"`
		} `json:"markets"`
	} `json:"bookmakers"`
}

// FetchGames retrieves all upcoming games with bookmaker odds for one sport.
func (c *Client) FetchGames(ctx context.Context, sportKey string, marketKeys []string) ([]models.Game, error) {
	u, err := url.Parse(fmt.Sprintf("%s/sports/%s/odds", c.baseURL, sportKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	q := u.Query()
	q.Set("apiKey", c.apiKey)
	q.Set("regions", c.regions)
	q.Set("markets", strings.Join(marketKeys, ","))
	q.Set("oddsFormat", "decimal")
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch odds for %s: %w", sportKey, err)
	}
	defer resp.Body.Close()

	var apiGames []apiGame
	if err := json.NewDecoder(resp.Body).Decode(&apiGames); err != nil {
		return nil, fmt.Errorf("failed to decode odds response: %w", err)
	}

	games := make([]models.Game, 0, len(apiGames))
	for _, ag := range apiGames {
		game := models.Game{
			ID:           ag.ID,
			SportKey:     ag.SportKey,
			CommenceTime: ag.CommenceTime,
			HomeTeam:     ag.HomeTeam,
			AwayTeam:     ag.AwayTeam,
		}
		for _, ab := range ag.Bookmakers {
			book := models.Bookmaker{
				Key:        ab.Key,
				Title:      ab.Title,
				LastUpdate: ab.LastUpdate,
			}
			for _, am := range ab.Markets {
				market := models.BookMarket{Key: am.Key}
				for _, ao := range am.Outcomes {
					// A zero or negative decimal price is a provider
					// artifact and would poison the probability math.
					if ao.Price < 1.0 {
						continue
					}
					market.Outcomes = append(market.Outcomes, models.BookOutcome{
						Name:  ao.Name,
						Price: ao.Price,
						Point: ao.Point,
					})
				}
				if len(market.Outcomes) > 0 {
					book.Markets = append(book.Markets, market)
				}
			}
			if len(book.Markets) > 0 {
				game.Bookmakers = append(game.Bookmakers, book)
			}
		}
		games = append(games, game)
	}

	return games, nil
}

// doRequest performs an HTTP GET with linear-backoff retry on 5xx.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
		} else if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		} else {
			return resp, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * time.Second):
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
