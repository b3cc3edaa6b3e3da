package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// apiServer serves canned Dexscreener responses.
func apiServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc(profilesPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[
			{"chainId":"solana","tokenAddress":"mintProfiled"},
			{"chainId":"solana","tokenAddress":"mintBoth"},
			{"chainId":"ethereum","tokenAddress":"0xignored"},
			{"chainId":"solana","tokenAddress":"mintNoPair"}
		]`))
	})

	mux.HandleFunc(boostsPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[
			{"chainId":"solana","tokenAddress":"mintBoth"},
			{"chainId":"solana","tokenAddress":"mintBoosted"}
		]`))
	})

	mux.HandleFunc(tokensPath, func(w http.ResponseWriter, _ *http.Request) {
		// mintBoth trades on two pairs; the deeper one must win.
		// mintNoPair is absent.
		w.Write([]byte(`{"pairs":[
			{"chainId":"solana","pairAddress":"pairP","baseToken":{"address":"mintProfiled","name":"Profiled","symbol":"PRF"},
			 "priceUsd":"0.5","volume":{"h24":12000},"liquidity":{"usd":40000},"pairCreatedAt":1700000000000},
			{"chainId":"solana","pairAddress":"pairB-shallow","baseToken":{"address":"mintBoth","name":"Both","symbol":"BTH"},
			 "priceUsd":"1.1","volume":{"h24":500},"liquidity":{"usd":2000},"pairCreatedAt":1700000000000},
			{"chainId":"solana","pairAddress":"pairB-deep","baseToken":{"address":"mintBoth","name":"Both","symbol":"BTH"},
			 "priceUsd":"1.0","volume":{"h24":9000},"liquidity":{"usd":80000},"pairCreatedAt":1700000000000},
			{"chainId":"solana","pairAddress":"pairX","baseToken":{"address":"mintBoosted","name":"Boosted","symbol":"BST"},
			 "priceUsd":"0.01","volume":{"h24":3000},"liquidity":{"usd":5000},"pairCreatedAt":1700000000000}
		]}`))
	})

	mux.HandleFunc(pairsPath+"pairP", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"pairs":[
			{"chainId":"solana","pairAddress":"pairP","baseToken":{"address":"mintProfiled"},"priceUsd":"0.75"}
		]}`))
	})
	mux.HandleFunc(pairsPath+"pairEmpty", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"pairs":[]}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testClient(t *testing.T) *Client {
	return NewClient(WithBaseURL(apiServer(t).URL), WithMinInterval(0))
}

func TestDiscoverAssemblesBatch(t *testing.T) {
	source := NewSource(testClient(t), zerolog.Nop())

	candidates, err := source.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	byMint := map[string]int{}
	for i, c := range candidates {
		byMint[c.Mint] = i
	}
	if len(candidates) != 3 {
		t.Fatalf("got %d candidates, want 3 (pairless token dropped)", len(candidates))
	}
	if _, ok := byMint["mintNoPair"]; ok {
		t.Error("token without a pair should be dropped")
	}

	profiled := candidates[byMint["mintProfiled"]]
	if !profiled.HasProfile || profiled.HasBooster {
		t.Errorf("mintProfiled flags = profile %v booster %v, want true/false",
			profiled.HasProfile, profiled.HasBooster)
	}
	if profiled.PriceUsd != 0.5 || profiled.LiquidityUsd != 40000 || profiled.Volume24hUsd != 12000 {
		t.Errorf("mintProfiled market data = %+v", profiled)
	}
	if profiled.PairCreated != 1700000000000 {
		t.Errorf("pair created = %d", profiled.PairCreated)
	}

	both := candidates[byMint["mintBoth"]]
	if !both.HasProfile || !both.HasBooster {
		t.Error("mintBoth should carry both flags")
	}
	if both.Pair != "pairB-deep" {
		t.Errorf("pair = %s, want the deepest pair", both.Pair)
	}

	boosted := candidates[byMint["mintBoosted"]]
	if boosted.HasProfile || !boosted.HasBooster {
		t.Errorf("mintBoosted flags = profile %v booster %v, want false/true",
			boosted.HasProfile, boosted.HasBooster)
	}
}

func TestCurrentPriceByPair(t *testing.T) {
	c := testClient(t)

	price, err := c.CurrentPrice(context.Background(), "mintProfiled", "pairP")
	if err != nil {
		t.Fatalf("CurrentPrice: %v", err)
	}
	if price != 0.75 {
		t.Errorf("price = %f, want 0.75", price)
	}
}

func TestCurrentPriceNoPairData(t *testing.T) {
	c := testClient(t)

	if _, err := c.CurrentPrice(context.Background(), "mint", "pairEmpty"); err == nil {
		t.Fatal("expected an error for an empty pair response")
	}
}

func TestCurrentPriceFallsBackToTokenLookup(t *testing.T) {
	c := testClient(t)

	price, err := c.CurrentPrice(context.Background(), "mintBoth", "")
	if err != nil {
		t.Fatalf("CurrentPrice: %v", err)
	}
	if price != 1.0 {
		t.Errorf("price = %f, want the deepest pair's 1.0", price)
	}
}

func TestThrottleSpacesRequests(t *testing.T) {
	srv := apiServer(t)
	c := NewClient(WithBaseURL(srv.URL), WithMinInterval(30*time.Millisecond))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.LatestProfiles(context.Background()); err != nil {
			t.Fatalf("LatestProfiles: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("3 requests in %v, want at least 60ms spacing", elapsed)
	}
}
