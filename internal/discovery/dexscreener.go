// Package discovery sources token candidates from the Dexscreener
// public API. Profiles and boosts mark promoted tokens; pair lookups
// supply price, liquidity, and volume. The same client doubles as the
// tracker's price source.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Public API endpoints.
const (
	DefaultBaseURL = "https://api.dexscreener.com"

	profilesPath = "/token-profiles/latest/v1"
	boostsPath   = "/token-boosts/latest/v1"
	tokensPath   = "/latest/dex/tokens/"
	pairsPath    = "/latest/dex/pairs/solana/"
)

// tokensPerLookup is the API's limit on comma-joined addresses.
const tokensPerLookup = 30

// ErrNoPairData is returned when the API has no pair for a token.
var ErrNoPairData = errors.New("no pair data")

// Client is a rate-limited Dexscreener API client.
type Client struct {
	baseURL string
	client  *http.Client

	mu          sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL, for tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// WithMinInterval sets the minimum spacing between requests. The public
// API allows 300 requests per minute; the default 250ms stays under it.
func WithMinInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.minInterval = d
	}
}

// NewClient creates a Dexscreener client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		client:      &http.Client{Timeout: 10 * time.Second},
		minInterval: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// tokenEntry is one row of the profiles or boosts feed.
type tokenEntry struct {
	ChainID      string `json:"chainId"`
	TokenAddress string `json:"tokenAddress"`
}

// pairData is one pair of a token lookup response.
type pairData struct {
	ChainID     string `json:"chainId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUsd string `json:"priceUsd"`
	Volume   struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Liquidity struct {
		Usd float64 `json:"usd"`
	} `json:"liquidity"`
	PairCreatedAt int64 `json:"pairCreatedAt"`
}

// priceUsdFloat parses the string-typed price field, 0 when absent.
func (p *pairData) priceUsdFloat() float64 {
	v, err := strconv.ParseFloat(p.PriceUsd, 64)
	if err != nil {
		return 0
	}
	return v
}

// LatestProfiles returns the token addresses with a verified profile on
// the Solana chain.
func (c *Client) LatestProfiles(ctx context.Context) ([]string, error) {
	return c.fetchTokenFeed(ctx, profilesPath)
}

// LatestBoosts returns the token addresses with an active paid boost on
// the Solana chain.
func (c *Client) LatestBoosts(ctx context.Context) ([]string, error) {
	return c.fetchTokenFeed(ctx, boostsPath)
}

func (c *Client) fetchTokenFeed(ctx context.Context, path string) ([]string, error) {
	var entries []tokenEntry
	if err := c.get(ctx, path, &entries); err != nil {
		return nil, err
	}

	var mints []string
	for _, e := range entries {
		if e.ChainID == "solana" && e.TokenAddress != "" {
			mints = append(mints, e.TokenAddress)
		}
	}
	return mints, nil
}

// lookupTokens fetches pair data for up to 30 mints in one request.
// Mints without pairs are absent from the result.
func (c *Client) lookupTokens(ctx context.Context, mints []string) (map[string]*pairData, error) {
	result := make(map[string]*pairData)

	for start := 0; start < len(mints); start += tokensPerLookup {
		end := start + tokensPerLookup
		if end > len(mints) {
			end = len(mints)
		}

		var resp struct {
			Pairs []*pairData `json:"pairs"`
		}
		if err := c.get(ctx, tokensPath+joinMints(mints[start:end]), &resp); err != nil {
			return nil, err
		}

		// Tokens trade on several pairs; keep the deepest one.
		for _, p := range resp.Pairs {
			if p.ChainID != "solana" {
				continue
			}
			mint := p.BaseToken.Address
			if best, ok := result[mint]; !ok || p.Liquidity.Usd > best.Liquidity.Usd {
				result[mint] = p
			}
		}
	}

	return result, nil
}

// PairPrice returns the current USD price of a pair.
func (c *Client) PairPrice(ctx context.Context, pairAddress string) (float64, error) {
	var resp struct {
		Pairs []*pairData `json:"pairs"`
	}
	if err := c.get(ctx, pairsPath+pairAddress, &resp); err != nil {
		return 0, err
	}
	if len(resp.Pairs) == 0 {
		return 0, ErrNoPairData
	}
	return resp.Pairs[0].priceUsdFloat(), nil
}

// CurrentPrice implements the tracker's price source. The pair lookup
// is authoritative; a token lookup covers positions recorded without a
// pair address.
func (c *Client) CurrentPrice(ctx context.Context, mint, pair string) (float64, error) {
	if pair != "" {
		return c.PairPrice(ctx, pair)
	}

	pairs, err := c.lookupTokens(ctx, []string{mint})
	if err != nil {
		return 0, err
	}
	p, ok := pairs[mint]
	if !ok {
		return 0, ErrNoPairData
	}
	return p.priceUsdFloat(), nil
}

// get performs one rate-limited GET and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, out any) error {
	c.throttle(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: status %d: %s", path, resp.StatusCode, truncate(body, 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// throttle enforces the minimum request spacing.
func (c *Client) throttle(ctx context.Context) {
	c.mu.Lock()
	now := time.Now()
	wait := c.lastRequest.Add(c.minInterval).Sub(now)
	if wait < 0 {
		wait = 0
	}
	c.lastRequest = now.Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func joinMints(mints []string) string {
	out := mints[0]
	for _, m := range mints[1:] {
		out += "," + m
	}
	return out
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
