package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/promoserve/promoserve/internal/logic"
	"github.com/promoserve/promoserve/internal/middleware"
	"github.com/promoserve/promoserve/internal/models"
	"github.com/promoserve/promoserve/internal/observability"
)

// pixelGIF is a 1x1 transparent GIF served by the impression pixel.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// ImpressionHandler handles GET /impression pixel requests. The page fires
// it once the campaign content is actually rendered.
func (s *Server) ImpressionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "ImpressionHandler",
		trace.WithAttributes(
			attribute.String("http.method", "GET"),
			attribute.String("http.route", "/impression"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "impression"
	const method = "GET"

	if s.Analytics == nil {
		span.SetStatus(codes.Error, "analytics unavailable")
		logger.Error("analytics unavailable")
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "analytics unavailable", http.StatusInternalServerError)
		return
	}

	campaignID := r.URL.Query().Get("cid")
	if campaignID == "" {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "cid required", http.StatusBadRequest)
		return
	}
	visitorID := r.URL.Query().Get("vid")

	span.SetAttributes(
		attribute.String("campaign_id", campaignID),
		attribute.String("visitor_id", visitorID),
	)

	visitor := models.VisitorContext{ID: visitorID}
	logic.ResolveVisitor(&visitor, s.GeoIP, r)

	if err := s.Analytics.RecordImpression(ctx, campaignID, visitorID, visitor); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.Metrics.IncrementRequests(endpoint, method, "404")
			s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
			http.Error(w, "unknown campaign", http.StatusNotFound)
			return
		}
		span.RecordError(err)
		logger.Error("record impression", zap.Error(err), zap.String("campaign_id", campaignID))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "analytics error", http.StatusInternalServerError)
		return
	}

	if observability.ShouldSample(observability.GetSamplingRate()) {
		logger.Info("impression",
			zap.String("campaign_id", campaignID),
			zap.String("visitor_id", visitorID),
			zap.String("event_type", "impression"))
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	w.Header().Set("Content-Type", "image/gif")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pixelGIF)
}

// ClickHandler handles GET /click requests. Callers are expected to have
// fired the impression pixel for the campaign first.
func (s *Server) ClickHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "ClickHandler",
		trace.WithAttributes(
			attribute.String("http.method", "GET"),
			attribute.String("http.route", "/click"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "click"
	const method = "GET"

	if s.Analytics == nil {
		span.SetStatus(codes.Error, "analytics unavailable")
		logger.Error("analytics unavailable")
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "analytics unavailable", http.StatusInternalServerError)
		return
	}

	campaignID := r.URL.Query().Get("cid")
	if campaignID == "" {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "cid required", http.StatusBadRequest)
		return
	}

	span.SetAttributes(attribute.String("campaign_id", campaignID))

	visitor := models.VisitorContext{ID: r.URL.Query().Get("vid")}
	logic.ResolveVisitor(&visitor, s.GeoIP, r)

	if err := s.Analytics.RecordClick(ctx, campaignID, visitor); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.Metrics.IncrementRequests(endpoint, method, "404")
			s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
			http.Error(w, "unknown campaign", http.StatusNotFound)
			return
		}
		span.RecordError(err)
		logger.Error("record click", zap.Error(err), zap.String("campaign_id", campaignID))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "analytics error", http.StatusInternalServerError)
		return
	}

	if observability.ShouldSample(observability.GetSamplingRate()) {
		logger.Info("click",
			zap.String("campaign_id", campaignID),
			zap.String("event_type", "click"))
	}

	// Clicked-through campaigns usually navigate; redirect when the page
	// supplied a destination, otherwise acknowledge with no content.
	if dest := r.URL.Query().Get("redirect"); dest != "" {
		s.Metrics.IncrementRequests(endpoint, method, "302")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Redirect(w, r, dest, http.StatusFound)
		return
	}

	s.Metrics.IncrementRequests(endpoint, method, "204")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	w.WriteHeader(http.StatusNoContent)
}

// ConversionHandler handles GET /conversion requests with an optional
// revenue query parameter.
func (s *Server) ConversionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "ConversionHandler",
		trace.WithAttributes(
			attribute.String("http.method", "GET"),
			attribute.String("http.route", "/conversion"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "conversion"
	const method = "GET"

	if s.Analytics == nil {
		span.SetStatus(codes.Error, "analytics unavailable")
		logger.Error("analytics unavailable")
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "analytics unavailable", http.StatusInternalServerError)
		return
	}

	campaignID := r.URL.Query().Get("cid")
	if campaignID == "" {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "cid required", http.StatusBadRequest)
		return
	}

	var revenue float64
	if v := r.URL.Query().Get("revenue"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			s.Metrics.IncrementRequests(endpoint, method, "400")
			s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
			http.Error(w, "invalid revenue", http.StatusBadRequest)
			return
		}
		revenue = f
	}

	span.SetAttributes(
		attribute.String("campaign_id", campaignID),
		attribute.Float64("revenue", revenue),
	)

	visitor := models.VisitorContext{ID: r.URL.Query().Get("vid")}
	logic.ResolveVisitor(&visitor, s.GeoIP, r)

	if err := s.Analytics.RecordConversion(ctx, campaignID, revenue, visitor); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.Metrics.IncrementRequests(endpoint, method, "404")
			s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
			http.Error(w, "unknown campaign", http.StatusNotFound)
			return
		}
		span.RecordError(err)
		logger.Error("record conversion", zap.Error(err), zap.String("campaign_id", campaignID))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "analytics error", http.StatusInternalServerError)
		return
	}

	if observability.ShouldSample(observability.GetSamplingRate()) {
		logger.Info("conversion",
			zap.String("campaign_id", campaignID),
			zap.Float64("revenue", revenue),
			zap.String("event_type", "conversion"))
	}

	s.Metrics.IncrementRequests(endpoint, method, "204")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	w.WriteHeader(http.StatusNoContent)
}
