package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promoserve/promoserve/internal/db"
	"github.com/promoserve/promoserve/internal/models"
	"github.com/promoserve/promoserve/internal/observability"
)

// ErrUnavailable is returned when the analytics recorder is not configured.
var ErrUnavailable = errors.New("analytics unavailable")

// Recorder is the single write path for campaign engagement counters and the
// event stream. Selection never records anything; the page-rendering
// collaborator reports back explicitly once content is actually shown,
// clicked or converted.
//
// RecordClick carries a documented precondition: the caller must have
// recorded an impression for the campaign earlier in the same visit. The
// recorder does not validate causality.
type Recorder interface {
	RecordImpression(ctx context.Context, campaignID, visitorID string, visitor models.VisitorContext) error
	RecordClick(ctx context.Context, campaignID string, visitor models.VisitorContext) error
	RecordConversion(ctx context.Context, campaignID string, revenue float64, visitor models.VisitorContext) error
	// RecordSelection appends a selection outcome to the event stream only;
	// it touches no counters.
	RecordSelection(ctx context.Context, eventType, placement, campaignID string, visitor models.VisitorContext) error
	GetAnalytics(ctx context.Context, campaignID string) (Report, error)
}

// Report is the reporting view of a campaign: durable counters plus rates
// derived on read. Rates are never stored, so they cannot drift from the
// counters they are computed from.
type Report struct {
	CampaignID     string  `json:"campaign_id"`
	Impressions    int64   `json:"impressions"`
	Clicks         int64   `json:"clicks"`
	Conversions    int64   `json:"conversions"`
	Revenue        float64 `json:"revenue"`
	CTR            float64 `json:"ctr"`
	ConversionRate float64 `json:"conversion_rate"`
}

// DerivedRates computes the click-through and conversion rates as
// percentages rounded half-up to two decimals. Zero denominators yield zero.
func DerivedRates(a models.Analytics) (ctr, conversionRate float64) {
	if a.Impressions > 0 {
		ctr = round2(float64(a.Clicks) / float64(a.Impressions) * 100)
	}
	if a.Clicks > 0 {
		conversionRate = round2(float64(a.Conversions) / float64(a.Clicks) * 100)
	}
	return ctr, conversionRate
}

// round2 rounds half-up to two decimal places. Counters are non-negative so
// half-up and half-away-from-zero agree.
func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// Service implements Recorder against Postgres (durable counters), Redis
// (live counters and the per-visitor last-seen store) and ClickHouse (the
// append-only event stream).
type Service struct {
	PG      *db.Postgres
	Store   *db.RedisStore
	CH      *sql.DB
	Metrics observability.MetricsRegistry
	Logger  *zap.Logger

	MaxAttempts  int
	RetryBackoff time.Duration
}

var _ Recorder = (*Service)(nil)

// InitClickHouse connects to ClickHouse and ensures the events table exists.
func InitClickHouse(dsn string, maxOpenConns int) (*sql.DB, error) {
	ch, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	ch.SetMaxOpenConns(maxOpenConns)
	if err := ch.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	create := `CREATE TABLE IF NOT EXISTS promo_events (
       timestamp   DateTime,
       event_id    String,
       event_type  String,
       campaign_id String,
       visitor_id  String,
       placement   Nullable(String),
       page        Nullable(String),
       device      Nullable(String),
       country     Nullable(String),
       revenue     Float64
   ) ENGINE=MergeTree() ORDER BY (event_type, timestamp)`
	if _, err := ch.ExecContext(context.Background(), create); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("Connected to ClickHouse")
	return ch, nil
}

// NewService constructs a recorder. ch may be nil when the event stream is
// not configured; counter recording still works.
func NewService(pg *db.Postgres, store *db.RedisStore, ch *sql.DB, metrics observability.MetricsRegistry, logger *zap.Logger, maxAttempts int, backoff time.Duration) *Service {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Service{
		PG:           pg,
		Store:        store,
		CH:           ch,
		Metrics:      metrics,
		Logger:       logger,
		MaxAttempts:  maxAttempts,
		RetryBackoff: backoff,
	}
}

// withRetry runs fn up to MaxAttempts times with linear backoff. ErrNotFound
// is never retried: a missing campaign will still be missing next attempt.
// On exhaustion the event is dropped rather than blocking the caller; the
// loss is logged and counted, and nil is returned.
func (s *Service) withRetry(ctx context.Context, eventType string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		if attempt < s.MaxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * s.RetryBackoff):
			case <-ctx.Done():
				err = ctx.Err()
				attempt = s.MaxAttempts
			}
		}
	}
	s.Logger.Error("dropping event after retries",
		zap.String("event_type", eventType),
		zap.Int("attempts", s.MaxAttempts),
		zap.Error(err))
	if s.Metrics != nil {
		s.Metrics.IncrementEventDrops(eventType)
	}
	return nil
}

// RecordImpression bumps the impression counter and marks the campaign seen
// by the visitor. The durable increment is a single UPDATE; the live Redis
// counter and the last-seen record are best effort, since a stale cadence
// check only over-shows by one while a lost durable count would undercount.
func (s *Service) RecordImpression(ctx context.Context, campaignID, visitorID string, visitor models.VisitorContext) error {
	if s == nil || s.PG == nil {
		return ErrUnavailable
	}
	if err := s.withRetry(ctx, "impression", func() error {
		return s.PG.IncrementImpressions(ctx, campaignID)
	}); err != nil {
		return err
	}

	if s.Store != nil && s.Store.Client != nil {
		if _, err := s.Store.IncrementImpressions(campaignID); err != nil {
			s.Logger.Warn("live impression counter", zap.String("campaign_id", campaignID), zap.Error(err))
		}
		if visitorID != "" {
			if err := s.Store.SetLastSeen(visitorID, campaignID, time.Now().UTC()); err != nil {
				s.Logger.Warn("last-seen write", zap.String("campaign_id", campaignID), zap.Error(err))
			}
		}
	}

	s.appendEvent(ctx, "impression", campaignID, visitor, 0)
	if s.Metrics != nil {
		s.Metrics.IncrementEvent("impression")
	}
	return nil
}

// RecordClick bumps the click counter. See the Recorder contract for the
// impression-first precondition.
func (s *Service) RecordClick(ctx context.Context, campaignID string, visitor models.VisitorContext) error {
	if s == nil || s.PG == nil {
		return ErrUnavailable
	}
	if err := s.withRetry(ctx, "click", func() error {
		return s.PG.IncrementClicks(ctx, campaignID)
	}); err != nil {
		return err
	}

	if s.Store != nil && s.Store.Client != nil {
		if _, err := s.Store.IncrementClicks(campaignID); err != nil {
			s.Logger.Warn("live click counter", zap.String("campaign_id", campaignID), zap.Error(err))
		}
	}

	s.appendEvent(ctx, "click", campaignID, visitor, 0)
	if s.Metrics != nil {
		s.Metrics.IncrementEvent("click")
	}
	return nil
}

// RecordConversion bumps the conversion counter and adds the attributed
// revenue delta.
func (s *Service) RecordConversion(ctx context.Context, campaignID string, revenue float64, visitor models.VisitorContext) error {
	if s == nil || s.PG == nil {
		return ErrUnavailable
	}
	if err := s.withRetry(ctx, "conversion", func() error {
		return s.PG.IncrementConversions(ctx, campaignID, revenue)
	}); err != nil {
		return err
	}

	s.appendEvent(ctx, "conversion", campaignID, visitor, revenue)
	if s.Metrics != nil {
		s.Metrics.IncrementEvent("conversion")
	}
	return nil
}

// RecordSelection appends a selection outcome (selected / no_fill) to the
// event stream for fill-rate reporting. No counters are touched: selection
// is not display.
func (s *Service) RecordSelection(ctx context.Context, eventType, placement, campaignID string, visitor models.VisitorContext) error {
	if s == nil {
		return ErrUnavailable
	}
	s.appendEventRow(ctx, eventType, campaignID, placement, visitor, 0)
	if s.Metrics != nil {
		s.Metrics.IncrementEvent(eventType)
	}
	return nil
}

// GetAnalytics returns the durable counters with derived rates attached.
func (s *Service) GetAnalytics(ctx context.Context, campaignID string) (Report, error) {
	if s == nil || s.PG == nil {
		return Report{}, ErrUnavailable
	}
	counters, err := s.PG.GetCounters(ctx, campaignID)
	if err != nil {
		return Report{}, err
	}
	ctr, conversionRate := DerivedRates(counters)
	return Report{
		CampaignID:     campaignID,
		Impressions:    counters.Impressions,
		Clicks:         counters.Clicks,
		Conversions:    counters.Conversions,
		Revenue:        counters.Revenue,
		CTR:            ctr,
		ConversionRate: conversionRate,
	}, nil
}

func (s *Service) appendEvent(ctx context.Context, eventType, campaignID string, visitor models.VisitorContext, revenue float64) {
	s.appendEventRow(ctx, eventType, campaignID, "", visitor, revenue)
}

// appendEventRow writes one row to the ClickHouse stream. Best effort with
// the same bounded retry; counters are already durable when this runs.
func (s *Service) appendEventRow(ctx context.Context, eventType, campaignID, placement string, visitor models.VisitorContext, revenue float64) {
	if s.CH == nil {
		return
	}
	nullable := func(v string) any {
		if v == "" {
			return nil
		}
		return v
	}
	_ = s.withRetry(ctx, eventType+"_stream", func() error {
		_, err := s.CH.ExecContext(ctx, `INSERT INTO promo_events
			(timestamp, event_id, event_type, campaign_id, visitor_id, placement, page, device, country, revenue)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			time.Now().UTC(), uuid.NewString(), eventType, campaignID, visitor.ID,
			nullable(placement), nullable(visitor.Page), nullable(visitor.Device), nullable(visitor.Country), revenue)
		return err
	})
}
