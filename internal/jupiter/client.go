// Package jupiter is the swap-aggregator collaborator: it quotes a route
// between two mints and builds the swap transaction for that quote. The
// routing itself is opaque to this service.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Well-known mints.
const (
	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	SOLMint  = "So11111111111111111111111111111111111111112"
)

// USDCDecimals converts USD amounts to USDC base units.
const USDCDecimals = 6

// Default API endpoints (v6).
const (
	DefaultQuoteURL = "https://quote-api.jup.ag/v6/quote"
	DefaultSwapURL  = "https://quote-api.jup.ag/v6/swap"
)

// ErrNoRoute is returned when the aggregator cannot quote the pair.
var ErrNoRoute = errors.New("no route for swap")

// Quote is an aggregator route quote. RouteJSON carries the raw quote
// response, passed back verbatim when building the swap transaction.
type Quote struct {
	InputMint  string
	OutputMint string
	InAmount   int64 // base units
	OutAmount  int64 // base units
	RouteJSON  json.RawMessage
}

// Client calls the Jupiter quote/swap HTTP API.
type Client struct {
	quoteURL    string
	swapURL     string
	client      *http.Client
	slippageBps int
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoints overrides the quote and swap URLs, for tests.
func WithEndpoints(quoteURL, swapURL string) Option {
	return func(c *Client) {
		c.quoteURL = quoteURL
		c.swapURL = swapURL
	}
}

// WithSlippageBps sets max slippage in basis points. Default 100 (1%).
func WithSlippageBps(bps int) Option {
	return func(c *Client) {
		c.slippageBps = bps
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a Jupiter API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		quoteURL:    DefaultQuoteURL,
		swapURL:     DefaultSwapURL,
		client:      &http.Client{Timeout: 30 * time.Second},
		slippageBps: 100,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// quoteResponse mirrors the fields of the quote API we consume.
type quoteResponse struct {
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
}

// GetQuote requests a route for swapping amount base units of inputMint
// into outputMint. Returns ErrNoRoute when the aggregator has none.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount int64) (*Quote, error) {
	params := url.Values{}
	params.Set("inputMint", inputMint)
	params.Set("outputMint", outputMint)
	params.Set("amount", strconv.FormatInt(amount, 10))
	params.Set("slippageBps", strconv.Itoa(c.slippageBps))
	params.Set("swapMode", "ExactIn")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.quoteURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create quote request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read quote response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote API status %d: %s", resp.StatusCode, string(body))
	}

	var qr quoteResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, fmt.Errorf("unmarshal quote: %w", err)
	}

	inAmount, err := strconv.ParseInt(qr.InAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse inAmount %q: %w", qr.InAmount, err)
	}
	outAmount, err := strconv.ParseInt(qr.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse outAmount %q: %w", qr.OutAmount, err)
	}

	return &Quote{
		InputMint:  qr.InputMint,
		OutputMint: qr.OutputMint,
		InAmount:   inAmount,
		OutAmount:  outAmount,
		RouteJSON:  json.RawMessage(body),
	}, nil
}

// swapRequest is the swap API payload.
type swapRequest struct {
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	UserPublicKey    string          `json:"userPublicKey"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

// swapResponse carries the unsigned transaction.
type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// BuildSwapTransaction exchanges a quote for a base64-encoded
// transaction ready to be signed by userPublicKey.
func (c *Client) BuildSwapTransaction(ctx context.Context, quote *Quote, userPublicKey string) (string, error) {
	payload, err := json.Marshal(swapRequest{
		QuoteResponse:    quote.RouteJSON,
		UserPublicKey:    userPublicKey,
		WrapAndUnwrapSol: true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.swapURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("swap request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read swap response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("swap API status %d: %s", resp.StatusCode, string(body))
	}

	var sr swapResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("unmarshal swap response: %w", err)
	}
	if sr.SwapTransaction == "" {
		return "", fmt.Errorf("swap response missing transaction")
	}

	return sr.SwapTransaction, nil
}

// UsdToBaseUnits converts a USD amount to USDC base units.
func UsdToBaseUnits(usd float64) int64 {
	return int64(usd * 1e6)
}
