package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/promoserve/promoserve/internal/middleware"
	"github.com/promoserve/promoserve/internal/models"
)

// AnalyticsHandler handles GET /analytics/{id}: durable counters plus
// derived rates for one campaign.
func (s *Server) AnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "analytics"
	const method = "GET"

	if s.Analytics == nil {
		logger.Error("analytics unavailable")
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "analytics unavailable", http.StatusInternalServerError)
		return
	}

	id := mux.Vars(r)["id"]
	report, err := s.Analytics.GetAnalytics(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.Metrics.IncrementRequests(endpoint, method, "404")
			s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
			http.Error(w, "unknown campaign", http.StatusNotFound)
			return
		}
		logger.Error("get analytics", zap.Error(err), zap.String("campaign_id", id))
		s.Metrics.IncrementRequests(endpoint, method, "500")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "analytics error", http.StatusInternalServerError)
		return
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	writeJSON(w, report)
}
