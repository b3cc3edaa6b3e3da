package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// ErrNoEndpoints is returned when the selector has no endpoints configured.
var ErrNoEndpoints = errors.New("no RPC endpoints configured")

// EndpointStatus is the health probe result for one endpoint.
type EndpointStatus struct {
	Endpoint string
	Latency  time.Duration
	Healthy  bool
}

// Selector resolves a currently healthy RPC endpoint. It probes all
// configured endpoints with getHealth, picks the lowest-latency healthy
// one, and caches the choice for a TTL. When nothing is healthy it falls
// back to the first configured endpoint so submission can still be tried.
type Selector struct {
	endpoints []string
	client    *http.Client
	ttl       time.Duration

	mu        sync.Mutex
	best      string
	refreshed time.Time
	now       func() time.Time
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithProbeTTL sets how long a selection is cached. Default 60s.
func WithProbeTTL(ttl time.Duration) SelectorOption {
	return func(s *Selector) {
		s.ttl = ttl
	}
}

// WithProbeClient sets the HTTP client used for health probes.
func WithProbeClient(client *http.Client) SelectorOption {
	return func(s *Selector) {
		s.client = client
	}
}

// NewSelector creates a selector over the given endpoints.
func NewSelector(endpoints []string, opts ...SelectorOption) *Selector {
	s := &Selector{
		endpoints: endpoints,
		client:    &http.Client{Timeout: 5 * time.Second},
		ttl:       60 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Best returns the cached best endpoint, refreshing when the TTL expired.
func (s *Selector) Best(ctx context.Context) (string, error) {
	if len(s.endpoints) == 0 {
		return "", ErrNoEndpoints
	}
	if len(s.endpoints) == 1 {
		return s.endpoints[0], nil
	}

	s.mu.Lock()
	if s.best != "" && s.now().Sub(s.refreshed) < s.ttl {
		best := s.best
		s.mu.Unlock()
		return best, nil
	}
	s.mu.Unlock()

	return s.Refresh(ctx)
}

// Refresh probes every endpoint concurrently and re-selects the best one.
func (s *Selector) Refresh(ctx context.Context) (string, error) {
	if len(s.endpoints) == 0 {
		return "", ErrNoEndpoints
	}

	statuses := s.probeAll(ctx)

	best := ""
	bestLatency := time.Duration(1<<63 - 1)
	for _, st := range statuses {
		if st.Healthy && st.Latency < bestLatency {
			best = st.Endpoint
			bestLatency = st.Latency
		}
	}

	// Fall back to the first endpoint when nothing answered healthy;
	// the sender's retry policy decides what to do with the failure.
	if best == "" {
		best = s.endpoints[0]
	}

	s.mu.Lock()
	s.best = best
	s.refreshed = s.now()
	s.mu.Unlock()

	return best, nil
}

// Statuses probes all endpoints and returns their health, for the
// operator surface.
func (s *Selector) Statuses(ctx context.Context) []EndpointStatus {
	return s.probeAll(ctx)
}

func (s *Selector) probeAll(ctx context.Context) []EndpointStatus {
	statuses := make([]EndpointStatus, len(s.endpoints))

	var wg sync.WaitGroup
	for i, endpoint := range s.endpoints {
		wg.Add(1)
		go func(i int, endpoint string) {
			defer wg.Done()
			statuses[i] = s.probe(ctx, endpoint)
		}(i, endpoint)
	}
	wg.Wait()

	return statuses
}

// probe measures getHealth latency for one endpoint.
func (s *Selector) probe(ctx context.Context, endpoint string) EndpointStatus {
	status := EndpointStatus{Endpoint: endpoint}

	body, _ := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: "getHealth"})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return status
	}
	req.Header.Set("Content-Type", "application/json")

	start := s.now()
	resp, err := s.client.Do(req)
	if err != nil {
		return status
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		return status
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil || rpcResp.Error != nil {
		return status
	}

	var health string
	if err := json.Unmarshal(rpcResp.Result, &health); err != nil {
		return status
	}

	status.Latency = s.now().Sub(start)
	status.Healthy = health == "ok"
	return status
}

// String lists the configured endpoints, for logs.
func (s *Selector) String() string {
	return fmt.Sprintf("Selector(%d endpoints)", len(s.endpoints))
}
