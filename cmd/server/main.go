// Package main runs the trading engine service: scheduled trading
// cycles, position tracking ticks, and an HTTP operator surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"solana-trading-engine/internal/budget"
	"solana-trading-engine/internal/config"
	"solana-trading-engine/internal/discovery"
	"solana-trading-engine/internal/domain"
	"solana-trading-engine/internal/engine"
	"solana-trading-engine/internal/evaluator"
	"solana-trading-engine/internal/executor"
	"solana-trading-engine/internal/jupiter"
	"solana-trading-engine/internal/observability"
	"solana-trading-engine/internal/solana"
	"solana-trading-engine/internal/storage"
	chstore "solana-trading-engine/internal/storage/clickhouse"
	"solana-trading-engine/internal/storage/memory"
	"solana-trading-engine/internal/storage/migrations"
	pgstore "solana-trading-engine/internal/storage/postgres"
	"solana-trading-engine/internal/tracker"
	"solana-trading-engine/internal/wallet"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	logger.Info().Str("mode", cfg.Executor.Mode).Str("backend", cfg.Storage.Backend).
		Msg("starting trading engine")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("fatal")
	}
	logger.Info().Msg("shutdown complete")
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// stores bundles the three persistence interfaces behind one backend.
type stores struct {
	trades       storage.TradeStore
	positions    storage.PositionStore
	observations storage.PriceObservationStore
	close        func()
}

func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores, error) {
	if cfg.Storage.Backend == "memory" {
		return &stores{
			trades:       memory.NewTradeStore(),
			positions:    memory.NewPositionStore(),
			observations: memory.NewPriceObservationStore(),
			close:        func() {},
		}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}
	logger.Info().Msg("postgres ready")

	s := &stores{
		trades:    pgstore.NewTradeStore(pool),
		positions: pgstore.NewPositionStore(pool),
		close:     pool.Close,
	}

	// ClickHouse is optional; without it the observation trail stays
	// in memory.
	if cfg.Storage.ClickHouse.Addr != "" {
		dsn := clickhouseDSN(cfg.Storage.ClickHouse)
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		s.observations = chstore.NewPriceObservationStore(conn)
		s.close = func() {
			conn.Close()
			pool.Close()
		}
		logger.Info().Msg("clickhouse ready")
	} else {
		s.observations = memory.NewPriceObservationStore()
	}

	return s, nil
}

func clickhouseDSN(cfg config.ClickHouseConfig) string {
	auth := cfg.Username
	if cfg.Password != "" {
		auth += ":" + cfg.Password
	}
	if auth != "" {
		auth += "@"
	}
	return fmt.Sprintf("clickhouse://%s%s/%s", auth, cfg.Addr, cfg.Database)
}

func buildExecutor(cfg *config.Config, st *stores, logger zerolog.Logger) (executor.Executor, error) {
	if cfg.Executor.Mode == "simulated" {
		return executor.NewSimulated(st.trades, logger), nil
	}

	keypair, err := wallet.Load(cfg.Solana.WalletSecret)
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}

	selector := solana.NewSelector(cfg.Solana.RPCEndpoints)
	sender := solana.NewHTTPClient(selector)

	var confirmer executor.Confirmer
	if cfg.Solana.WSEndpoint != "" {
		confirmer = solana.NewWSConfirmer(cfg.Solana.WSEndpoint)
	}

	quoter := jupiter.NewClient(
		jupiter.WithEndpoints(cfg.Jupiter.QuoteURL, cfg.Jupiter.SwapURL),
		jupiter.WithSlippageBps(cfg.Jupiter.SlippageBps),
	)

	execCfg := executor.Config{
		MaxAttempts:     cfg.Executor.MaxAttempts,
		InitialBackoff:  cfg.Executor.InitialBackoff,
		MaxBackoff:      cfg.Executor.MaxBackoff,
		ConfirmTimeout:  cfg.Executor.ConfirmTimeout,
		ConfirmInterval: cfg.Executor.ConfirmInterval,
	}
	return executor.NewLive(quoter, sender, confirmer, keypair, st.trades, execCfg, logger), nil
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	exec, err := buildExecutor(cfg, st, logger)
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(cfg.Engine.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Engine.Timezone, err)
	}
	ledger := budget.NewLedger(cfg.Engine.DailyCapUsd, budget.WithLocation(loc))

	eval := evaluator.New(evaluator.Config{
		MinLiquidityUsd: cfg.Evaluator.MinLiquidityUsd,
		MinVolumeUsd:    cfg.Evaluator.MinVolumeUsd,
		MaxListingAge:   cfg.Evaluator.MaxListingAge,
		TierDAmountUsd:  cfg.Evaluator.TierDAmountUsd,
		TierCAmountUsd:  cfg.Evaluator.TierCAmountUsd,
		TierAAmountUsd:  cfg.Evaluator.TierAAmountUsd,
	})

	dex := discovery.NewClient()
	source := discovery.NewSource(dex, logger)

	eng := engine.New(source, eval, ledger, exec, st.positions, logger)
	trk := tracker.New(st.positions, st.observations, dex, exec, tracker.Config{
		TakeProfitMultiple: cfg.Engine.TakeProfitMultiple,
		OpeningGrace:       cfg.Engine.OpeningGrace,
	}, logger)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: newRouter(eng, trk, st, ledger, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go runCycles(ctx, eng, ledger, cfg.Engine.CycleInterval, logger)
	go runTicks(ctx, trk, cfg.Engine.TrackingInterval, logger)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runCycles runs the trading cycle on its interval until ctx ends.
func runCycles(ctx context.Context, eng *engine.Engine, ledger *budget.Ledger, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			report, err := eng.RunCycle(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("cycle failed")
				observability.RecordAPIError("discovery")
				continue
			}
			observability.RecordCycle(time.Since(start).Seconds(), report.Candidates)
			for _, item := range report.Items {
				observability.RecordCandidateOutcome(item.Outcome)
			}
			observability.UpdateBudget(ledger.CommittedToday(), ledger.PendingToday())
		}
	}
}

// runTicks runs the position tracker on its interval until ctx ends.
func runTicks(ctx context.Context, trk *tracker.Tracker, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			report, err := trk.Tick(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("tick failed")
				continue
			}
			observability.RecordTick(time.Since(start).Seconds(), report.Open, report.Closed)
		}
	}
}

// newRouter builds the operator HTTP surface.
func newRouter(eng *engine.Engine, trk *tracker.Tracker, st *stores, ledger *budget.Ledger, logger zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug().Str("method", c.Request.Method).Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).Dur("elapsed", time.Since(start)).
			Msg("http request")
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(observability.Handler()))

	// Manual triggers, mostly for operations and debugging. The engine
	// serializes overlapping cycles itself.
	router.POST("/cycle", func(c *gin.Context) {
		report, err := eng.RunCycle(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	})

	router.POST("/track", func(c *gin.Context) {
		report, err := trk.Tick(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	})

	router.GET("/positions", func(c *gin.Context) {
		positions, err := st.positions.GetAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, positions)
	})

	router.GET("/positions/open", func(c *gin.Context) {
		open, err := st.positions.GetByState(c.Request.Context(), domain.PositionOpen)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, open)
	})

	router.GET("/budget", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"committed_usd": ledger.CommittedToday(),
			"pending_usd":   ledger.PendingToday(),
		})
	})

	return router
}
