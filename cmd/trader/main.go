package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Chintiw/stonks/internal/api"
	"github.com/Chintiw/stonks/internal/config"
	"github.com/Chintiw/stonks/internal/engine"
	"github.com/Chintiw/stonks/internal/ledger"
	"github.com/Chintiw/stonks/internal/pricefeed"
	"github.com/Chintiw/stonks/internal/scheduler"
	"github.com/Chintiw/stonks/internal/snapshot"
	"github.com/Chintiw/stonks/internal/strategy"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "err", err)
		os.Exit(1)
	}

	// --- Snapshot store ---
	var store snapshot.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		store = snapshot.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			store = snapshot.NewCachedStore(store, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		store = snapshot.NewFileStore(cfg.OutputDir)
		slog.Info("using file snapshot store", "dir", cfg.OutputDir)
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Ledger: resume from the latest snapshot if one exists ---
	var led *ledger.Ledger
	if snap, err := store.LoadLatest(context.Background()); err != nil {
		slog.Error("snapshot restore failed", "err", err)
		os.Exit(1)
	} else if snap != nil {
		led = ledger.NewFromSnapshot(snap)
		slog.Info("resumed from snapshot",
			"timestamp", snap.Timestamp.Format(time.RFC3339),
			"cash", snap.Cash.String(),
			"trades", len(snap.Trades),
		)
	} else {
		led = ledger.New(cfg.InitialCash)
		slog.Info("starting fresh portfolio", "cash", cfg.InitialCash.String())
	}

	// --- Strategy ---
	strat, err := strategy.New(cfg.Strategy, strategy.Params{
		MAShort:      cfg.MAShort,
		MALong:       cfg.MALong,
		MRPeriod:     cfg.MRPeriod,
		MRThreshold:  cfg.MRThreshold,
		MRCloseBand:  cfg.MRCloseBand,
		MomLookback:  cfg.MomLookback,
		MomTopN:      cfg.MomTopN,
		MomRebalance: cfg.MomRebalance,
		Universe:     cfg.Instruments,
	})
	if err != nil {
		slog.Error("strategy setup failed", "strategy", cfg.Strategy, "err", err)
		os.Exit(1)
	}

	// --- Execution engine ---
	eng, err := engine.New(engine.Policy{
		FeeRate:             cfg.FeeRate,
		Slippage:            cfg.Slippage,
		MaxPositionFraction: cfg.MaxPositionFraction,
		StopLossPct:         cfg.StopLossPct,
	})
	if err != nil {
		slog.Error("execution policy invalid", "err", err)
		os.Exit(1)
	}

	// --- Price feed ---
	if cfg.PriceURL == "" {
		slog.Error("STONKS_PRICE_URL is required")
		os.Exit(1)
	}
	feed := pricefeed.NewHTTPFeed(cfg.PriceURL, 10*time.Second)

	// --- WebSocket hub ---
	wsHub := api.NewWSHub()
	go wsHub.Run()

	// --- Scheduler ---
	sched := scheduler.New(scheduler.Options{
		Interval:    cfg.CycleInterval,
		Window:      cfg.Window,
		Location:    cfg.Location,
		Instruments: cfg.Instruments,
		HistoryMax:  cfg.HistoryWindow,
		Feed:        feed,
		Strategy:    strat,
		Engine:      eng,
		Ledger:      led,
		Store:       store,
		Publisher:   wsHub,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	// --- Dashboard server ---
	svc := api.NewService(led, sched, store)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(svc, wsHub),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("stonks listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel() // stop the trading loop before closing the server

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	slog.Info("shutting down stonks...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("stonks stopped")
}
