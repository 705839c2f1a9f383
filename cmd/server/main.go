package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/promoserve/promoserve/internal/analytics"
	"github.com/promoserve/promoserve/internal/api"
	"github.com/promoserve/promoserve/internal/config"
	"github.com/promoserve/promoserve/internal/db"
	"github.com/promoserve/promoserve/internal/geoip"
	"github.com/promoserve/promoserve/internal/logic"
	"github.com/promoserve/promoserve/internal/logic/selectors"
	"github.com/promoserve/promoserve/internal/middleware"
	"github.com/promoserve/promoserve/internal/models"
	"github.com/promoserve/promoserve/internal/observability"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdownTracing, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.OTLPEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdownTracing()
	}

	evaluator, err := logic.NewScheduleEvaluator(cfg.SiteTimezone)
	if err != nil {
		return fmt.Errorf("site timezone: %w", err)
	}

	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)
	if err != nil {
		return fmt.Errorf("failed to connect postgres: %w", err)
	}
	defer pg.Close()

	dataStore := models.NewInMemoryCampaignDataStore()

	campaigns, err := pg.LoadCampaigns(ctx)
	if err != nil {
		return fmt.Errorf("load campaigns: %w", err)
	}
	if err := dataStore.ReloadAll(campaigns); err != nil {
		return fmt.Errorf("populate campaign data store: %w", err)
	}

	store, err := db.InitRedis(cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}
	defer store.Close()

	metricsRegistry := observability.NewPrometheusRegistry()

	ch, err := analytics.InitClickHouse(cfg.ClickHouseDSN, cfg.CHMaxOpenConns)
	if err != nil {
		return fmt.Errorf("failed to connect clickhouse: %w", err)
	}
	defer func() { _ = ch.Close() }()

	recorder := analytics.NewService(pg, store, ch, metricsRegistry, logger, cfg.RecordMaxAttempts, cfg.RecordRetryBackoff)

	geoSvc, err := geoip.Init(cfg.GeoIPDB)
	if err != nil {
		return fmt.Errorf("failed to load geoip db: %w", err)
	}
	defer func() { _ = geoSvc.Close() }()

	selector := selectors.NewPrioritySelector(evaluator)
	selector.SetLogger(logger)
	selector.SetMetrics(metricsRegistry)

	r := mux.NewRouter()
	r.Use(middleware.WithRequestLogger(logger))
	srvDeps := api.NewServer(logger, store, pg, recorder, geoSvc, selector, evaluator, dataStore, metricsRegistry, cfg)
	r.HandleFunc("/select", srvDeps.SelectHandler).Methods("POST")
	r.HandleFunc("/impression", srvDeps.ImpressionHandler).Methods("GET")
	r.HandleFunc("/click", srvDeps.ClickHandler).Methods("GET")
	r.HandleFunc("/conversion", srvDeps.ConversionHandler).Methods("GET")
	r.HandleFunc("/analytics/{id}", srvDeps.AnalyticsHandler).Methods("GET")
	r.HandleFunc("/health", srvDeps.HealthHandler).Methods("GET")
	r.HandleFunc("/reload", srvDeps.ReloadHandler).Methods("POST")

	// CRUD routes for admin UI
	crud := r.PathPrefix("/api").Subrouter()
	crud.HandleFunc("/campaigns", srvDeps.ListCampaignsHandler).Methods("GET")
	crud.HandleFunc("/campaigns", srvDeps.CreateCampaignHandler).Methods("POST")
	crud.HandleFunc("/campaigns/{id}", srvDeps.GetCampaignHandler).Methods("GET")
	crud.HandleFunc("/campaigns/{id}", srvDeps.UpdateCampaignHandler).Methods("PUT")
	crud.HandleFunc("/campaigns/{id}", srvDeps.DeleteCampaignHandler).Methods("DELETE")
	crud.HandleFunc("/campaigns/{id}/status", srvDeps.CampaignStatusHandler).Methods("GET")
	crud.HandleFunc("/campaigns/{id}/activate", srvDeps.SetActiveHandler(true)).Methods("POST")
	crud.HandleFunc("/campaigns/{id}/deactivate", srvDeps.SetActiveHandler(false)).Methods("POST")
	crud.HandleFunc("/campaigns/{id}/reset", srvDeps.ResetAnalyticsHandler).Methods("POST")

	r.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.Port

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Campaign engine running", zap.String("addr", addr), zap.String("timezone", evaluator.Location().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	if cfg.ReloadInterval > 0 {
		ticker := time.NewTicker(cfg.ReloadInterval)
		go func() {
			for {
				select {
				case <-ticker.C:
					if err := srvDeps.Reload(ctx); err != nil {
						logger.Error("auto reload", zap.Error(err))
					}
				case <-ctx.Done():
					ticker.Stop()
					return
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
