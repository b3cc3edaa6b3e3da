package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"solana-trading-engine/internal/domain"
)

// Source assembles one candidate batch per cycle from the promoted
// token feeds.
type Source struct {
	client *Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewSource creates a candidate source over a Dexscreener client.
func NewSource(client *Client, logger zerolog.Logger) *Source {
	return &Source{
		client: client,
		logger: logger.With().Str("component", "discovery").Logger(),
		now:    time.Now,
	}
}

// Discover fetches the profile and boost feeds, merges them per mint,
// and resolves market data for every promoted token. Tokens without a
// tradable pair are dropped.
func (s *Source) Discover(ctx context.Context) ([]*domain.TokenCandidate, error) {
	profiled, err := s.client.LatestProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch profiles: %w", err)
	}
	boosted, err := s.client.LatestBoosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch boosts: %w", err)
	}

	profileSet := make(map[string]bool, len(profiled))
	for _, m := range profiled {
		profileSet[m] = true
	}
	boostSet := make(map[string]bool, len(boosted))
	for _, m := range boosted {
		boostSet[m] = true
	}

	mints := make([]string, 0, len(profileSet)+len(boostSet))
	seen := make(map[string]bool)
	for _, m := range append(profiled, boosted...) {
		if !seen[m] {
			seen[m] = true
			mints = append(mints, m)
		}
	}
	if len(mints) == 0 {
		return nil, nil
	}

	pairs, err := s.client.lookupTokens(ctx, mints)
	if err != nil {
		return nil, fmt.Errorf("resolve pairs: %w", err)
	}

	nowMs := s.now().UnixMilli()
	candidates := make([]*domain.TokenCandidate, 0, len(pairs))
	for _, mint := range mints {
		p, ok := pairs[mint]
		if !ok {
			continue
		}
		candidates = append(candidates, &domain.TokenCandidate{
			Mint:         mint,
			Pair:         p.PairAddress,
			Name:         p.BaseToken.Name,
			Symbol:       p.BaseToken.Symbol,
			PriceUsd:     p.priceUsdFloat(),
			LiquidityUsd: p.Liquidity.Usd,
			Volume24hUsd: p.Volume.H24,
			HasProfile:   profileSet[mint],
			HasBooster:   boostSet[mint],
			PairCreated:  p.PairCreatedAt,
			DiscoveredAt: nowMs,
		})
	}

	s.logger.Debug().Int("promoted", len(mints)).Int("candidates", len(candidates)).
		Msg("discovery batch assembled")
	return candidates, nil
}
