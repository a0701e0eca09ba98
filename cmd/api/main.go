package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atharvakonge/paper-trader/internal/auth"
	"github.com/atharvakonge/paper-trader/internal/config"
	"github.com/atharvakonge/paper-trader/internal/db"
	"github.com/atharvakonge/paper-trader/internal/handlers"
	"github.com/atharvakonge/paper-trader/internal/ledger"
	"github.com/atharvakonge/paper-trader/internal/logger"
	"github.com/atharvakonge/paper-trader/internal/quote"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	production := cfg.Environment == config.Production
	if production {
		gin.SetMode(gin.ReleaseMode)
	}

	appLogger := logger.NewZapLogger(production, cfg.Logger.Level, cfg.Logger.Format)
	defer appLogger.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, cfg.Database, appLogger)
	if err != nil {
		appLogger.Error("Failed to open store", map[string]any{
			"error":       err.Error(),
			"access_mode": cfg.Database.AccessMode,
		})
		os.Exit(1)
	}
	defer store.Close()

	// The simulator always runs so the price stream has ticks, even when trades are
	// priced by IEX.
	sim := quote.NewSimulator(cfg.Quote.Symbols, time.Now().UnixNano(), appLogger)
	go sim.Run(ctx, cfg.Quote.TickInterval)

	var provider quote.Provider = sim
	if cfg.Quote.Provider == config.ProviderIEX {
		provider = quote.NewIEXClient(cfg.Quote.BaseURL, cfg.Quote.APIKey, cfg.Quote.Timeout)
	}
	appLogger.Info("Quote provider selected", map[string]any{"provider": cfg.Quote.Provider})

	accounts := auth.NewService(store, auth.NewBcryptHasher(bcrypt.DefaultCost), cfg.Trading.InitialCashAmount(), appLogger)
	sessions := auth.NewSessions(store, cfg.Session.TTL)
	ledgerSvc := ledger.NewService(store, provider, cfg.Trading.HistoryLimit, appLogger)

	trades := ledger.NewProcessor(ledgerSvc, cfg.Trading.Workers, cfg.Trading.QueueSize, appLogger)
	trades.Start()

	h := handlers.NewHandler(accounts, sessions, ledgerSvc, trades, cfg.Session, appLogger)
	router := handlers.SetupRouter(h, handlers.NewPriceStream(sim, appLogger), appLogger)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("Starting server", map[string]any{
			"addr": server.Addr,
			"env":  cfg.Environment,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		appLogger.Error("Server failed", map[string]any{"error": err.Error()})
	}

	appLogger.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", map[string]any{"error": err.Error()})
	}
	trades.Stop()
	stop()

	appLogger.Info("Server exited gracefully", nil)
}
