package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/promoserve/promoserve/internal/analytics"
	"github.com/promoserve/promoserve/internal/config"
	"github.com/promoserve/promoserve/internal/db"
	"github.com/promoserve/promoserve/internal/geoip"
	"github.com/promoserve/promoserve/internal/logic"
	"github.com/promoserve/promoserve/internal/logic/selectors"
	"github.com/promoserve/promoserve/internal/models"
	"github.com/promoserve/promoserve/internal/observability"
)

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger     *zap.Logger
	Store      *db.RedisStore
	PG         *db.Postgres
	Analytics  analytics.Recorder
	GeoIP      *geoip.GeoIP
	Selector   selectors.Selector
	Evaluator  *logic.ScheduleEvaluator
	DataStore  models.CampaignDataStore
	Metrics    observability.MetricsRegistry
	Config     config.Config
	DebugTrace bool

	// Now lets tests pin the clock. Defaults to time.Now.
	Now func() time.Time

	reloadMu sync.Mutex
}

// NewServer constructs a Server.
func NewServer(logger *zap.Logger, store *db.RedisStore, pg *db.Postgres, recorder analytics.Recorder, geo *geoip.GeoIP, selector selectors.Selector, evaluator *logic.ScheduleEvaluator, dataStore models.CampaignDataStore, metrics observability.MetricsRegistry, cfg config.Config) *Server {
	if selector == nil {
		ps := selectors.NewPrioritySelector(evaluator)
		ps.SetLogger(logger)
		ps.SetMetrics(metrics)
		selector = ps
	}

	return &Server{
		Logger:     logger,
		Store:      store,
		PG:         pg,
		Analytics:  recorder,
		GeoIP:      geo,
		Selector:   selector,
		Evaluator:  evaluator,
		DataStore:  dataStore,
		Metrics:    metrics,
		Config:     cfg,
		DebugTrace: cfg.DebugTrace,
		Now:        time.Now,
	}
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Reload replaces the in-memory campaign snapshot with the current Postgres
// contents. Safe to call concurrently; reloads are serialized.
func (s *Server) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if s.PG == nil {
		return fmt.Errorf("postgres unavailable")
	}

	campaigns, err := s.PG.LoadCampaigns(ctx)
	if err != nil {
		s.Metrics.IncrementReloads("error")
		return fmt.Errorf("load campaigns: %w", err)
	}

	if err := s.DataStore.ReloadAll(campaigns); err != nil {
		s.Metrics.IncrementReloads("error")
		return fmt.Errorf("reload campaign data: %w", err)
	}

	s.Metrics.IncrementReloads("success")
	return nil
}
