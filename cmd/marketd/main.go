package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kallestrom/nftmarket/internal/clock"
	"github.com/kallestrom/nftmarket/internal/config"
	"github.com/kallestrom/nftmarket/internal/event"
	"github.com/kallestrom/nftmarket/internal/health"
	"github.com/kallestrom/nftmarket/internal/leader"
	"github.com/kallestrom/nftmarket/internal/market"
	"github.com/kallestrom/nftmarket/internal/nft"
	"github.com/kallestrom/nftmarket/internal/server"
	"github.com/kallestrom/nftmarket/internal/store"
	"github.com/kallestrom/nftmarket/internal/telemetry"
	"github.com/kallestrom/nftmarket/internal/token"

	// Register store drivers so they are available via store.Open.
	_ "github.com/kallestrom/nftmarket/internal/store/memstore"
	_ "github.com/kallestrom/nftmarket/internal/store/postgres"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration.
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup telemetry.
	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	// Open store using the configured driver (postgres or memory).
	repos, err := store.Open(ctx, cfg.Database, clk)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer repos.Closer.Close()

	logger.InfoContext(ctx, "connected to store", slog.String("driver", cfg.Database.Driver))

	// Reference collaborators. Production deployments swap these for
	// adapters over the real item registry and payment ledger.
	registry := nft.NewMemRegistry()
	registry.GrantMinter(cfg.Market.MarketAccount)
	ledger := token.NewMemLedger()
	for account, amount := range cfg.Market.SeedBalances {
		if mintErr := ledger.Mint(ctx, account, amount); mintErr != nil {
			return fmt.Errorf("seeding balance for %s: %w", account, mintErr)
		}
		if approveErr := ledger.Approve(ctx, account, cfg.Market.MarketAccount, amount); approveErr != nil {
			return fmt.Errorf("approving marketplace for %s: %w", account, approveErr)
		}
	}

	// Event publishing.
	var pub event.Publisher = event.NopPublisher{}
	if cfg.Redis.Enabled {
		redisPub, pubErr := event.NewRedisPublisher(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
		if pubErr != nil {
			return fmt.Errorf("connecting to redis: %w", pubErr)
		}
		defer redisPub.Close()
		pub = redisPub
		logger.InfoContext(ctx, "publishing events to redis", slog.String("addr", cfg.Redis.Addr))
	}

	m := market.New(registry, ledger, repos, pub, market.Config{
		Account: cfg.Market.MarketAccount,
		Admin:   cfg.Market.AdminAccount,
		Policy: market.Policy{
			AuctionPeriod:   cfg.Market.AuctionPeriod,
			MinParticipants: cfg.Market.MinParticipants,
		},
	}, logger, tp.TracerProvider, clk)

	// Rebuild the in-memory book from the event log so that listings and
	// auctions survive restarts.
	if n, recoverErr := m.Recover(ctx); recoverErr != nil {
		return fmt.Errorf("recovering market state: %w", recoverErr)
	} else if n > 0 {
		logger.InfoContext(ctx, "recovered market state", slog.Int("items", n))
	}

	// Setup health checks.
	healthHandler := health.NewHandler(clk,
		health.Checker{
			Name:  "database",
			Check: repos.Ping,
		},
	)

	api := server.New(m, registry, ledger, repos, logger)
	router := api.Router(func(r chi.Router) {
		r.Get("/healthz", healthHandler.LivenessHandler())
		r.Get("/readyz", healthHandler.ReadinessHandler())
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "starting http server", slog.Int("port", cfg.Server.Port))
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
			logger.ErrorContext(ctx, "http server error", slog.Any("error", listenErr))
		}
	}()

	healthHandler.SetReady(true)
	logger.InfoContext(ctx, "marketd is running", slog.String("version", version))

	// The settlement sweeper finalizes expired auctions. With leader
	// election enabled only one replica runs it.
	if cfg.Market.SweepInterval > 0 {
		finalizer := market.NewFinalizer(m, cfg.Market.SweepInterval, logger)

		if cfg.LeaderElection.Enabled {
			logger.InfoContext(ctx, "leader election enabled, waiting for leadership...")

			if leaderErr := leader.Run(ctx, cfg.LeaderElection, logger, func(leaderCtx context.Context) {
				logger.InfoContext(leaderCtx, "acquired leadership, starting sweeper")
				finalizer.Run(leaderCtx)
			}, func() {
				logger.Info("lost leadership, shutting down...")
				cancel()
			}); leaderErr != nil {
				return fmt.Errorf("leader election: %w", leaderErr)
			}
		} else {
			go finalizer.Run(ctx)
			<-ctx.Done()
		}
	} else {
		<-ctx.Done()
	}

	logger.Info("shutting down...")
	healthHandler.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}
