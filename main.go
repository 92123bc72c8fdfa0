package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pharmapos/m/internal/api"
	"pharmapos/m/internal/auth"
	"pharmapos/m/internal/cart"
	"pharmapos/m/internal/checkout"
	"pharmapos/m/internal/config"
	"pharmapos/m/internal/database"
	"pharmapos/m/internal/jobs"
	"pharmapos/m/internal/logging"
	"pharmapos/m/internal/metrics"
	"pharmapos/m/internal/migrations"
	"pharmapos/m/internal/report"
	"pharmapos/m/internal/seed"
	"pharmapos/m/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.LogMode, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	for _, w := range cfg.Warnings {
		zap.S().Warn(w)
	}

	if err := run(cfg, logger); err != nil {
		zap.S().Fatalf("server error: %v", err)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return err
	}
	if _, err := seed.LoadCatalog(ctx, db, cfg.CatalogCSV); err != nil {
		zap.S().Warnf("catalog seed skipped: %v", err)
	}
	if _, err := seed.BootstrapAdmin(ctx, db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return err
	}

	users := store.NewUsers(db)
	authService := auth.NewService(users, cfg.Secret, cfg.TokenTTL)
	checkoutMetrics := metrics.NewCheckout()
	workflow, err := checkout.New(store.NewTxManager(db), db, cfg.ReceiptNode, logger.Named("checkout"), checkoutMetrics)
	if err != nil {
		return err
	}

	scheduler, err := jobs.New(db, authService, jobs.Config{
		AlertSchedule:   cfg.AlertSchedule,
		ExpiryAlertDays: cfg.ExpiryAlertDays,
		Location:        cfg.Location,
	}, logger.Named("jobs"))
	if err != nil {
		return err
	}

	handler := api.New(db, api.Services{
		Auth:     authService,
		Carts:    cart.NewRegistry(cfg.TaxRate),
		Checkout: workflow,
		Reports:  report.New(db, cfg.Location),
		Metrics:  checkoutMetrics.Handler(),
		Location: cfg.Location,
		Logger:   logger.Named("api"),
	})
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.S().Infof("pharmacy POS server starting on :%s (driver %s, tax rate %s)", cfg.HTTPPort, cfg.DatabaseDriver, cfg.TaxRate)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		scheduler.Stop(shutdownCtx)
		zap.S().Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
