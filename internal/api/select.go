package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/promoserve/promoserve/internal/logic"
	"github.com/promoserve/promoserve/internal/logic/selectors"
	"github.com/promoserve/promoserve/internal/middleware"
	"github.com/promoserve/promoserve/internal/models"
	"github.com/promoserve/promoserve/internal/observability"
)

var tracer = otel.Tracer("promoserve")

// SelectRequest is the body of POST /select.
type SelectRequest struct {
	Placement string                `json:"placement"`
	Visitor   models.VisitorContext `json:"visitor"`
}

// SelectedCampaign is one entry of a selection response. Analytics counters
// are never echoed back to the page; engagement flows through the report
// URLs instead.
type SelectedCampaign struct {
	ID            string          `json:"id"`
	Kind          string          `json:"kind"`
	Placement     string          `json:"placement"`
	Content       models.Content  `json:"content"`
	Style         json.RawMessage `json:"style,omitempty"`
	Featured      bool            `json:"featured"`
	Order         int             `json:"order"`
	ImpressionURL string          `json:"impression_url"`
	ClickURL      string          `json:"click_url"`
	ConversionURL string          `json:"conversion_url"`
}

// SelectResponse carries the winners for a placement, best ranked first. An
// empty list is the normal no-fill answer, not an error.
type SelectResponse struct {
	Campaigns []SelectedCampaign `json:"campaigns"`
	Debug     interface{}        `json:"debug,omitempty"`
}

func reportURLs(campaignID, visitorID string) (imp, clk, conv string) {
	cid := url.QueryEscape(campaignID)
	vid := url.QueryEscape(visitorID)
	imp = fmt.Sprintf("/impression?cid=%s&vid=%s", cid, vid)
	clk = fmt.Sprintf("/click?cid=%s&vid=%s", cid, vid)
	conv = fmt.Sprintf("/conversion?cid=%s", cid)
	return imp, clk, conv
}

// SelectHandler handles POST /select requests from the page renderer.
func (s *Server) SelectHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "SelectHandler",
		trace.WithAttributes(
			attribute.String("http.method", "POST"),
			attribute.String("http.route", "/select"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "select"
	const method = "POST"

	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("decode request", zap.Error(err), zap.String("event_type", "select_request"))
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Placement == "" {
		s.Metrics.IncrementRequests(endpoint, method, "400")
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
		http.Error(w, "placement required", http.StatusBadRequest)
		return
	}

	logic.ResolveVisitor(&req.Visitor, s.GeoIP, r)

	span.SetAttributes(
		attribute.String("placement", req.Placement),
		attribute.String("visitor_id", req.Visitor.ID),
		attribute.String("page", req.Visitor.Page),
		attribute.String("device", req.Visitor.Device),
		attribute.String("country", req.Visitor.Country),
	)

	debugEnabled := s.DebugTrace || r.URL.Query().Get("debug") == "1"
	var selTrace logic.SelectionTrace

	now := s.now()
	var winners []models.Campaign
	var err error
	if ts, ok := s.Selector.(selectors.TraceSelector); ok && debugEnabled {
		winners, err = ts.SelectWithTrace(s.Store, s.DataStore, req.Placement, now, req.Visitor, &selTrace)
	} else {
		winners, err = s.Selector.Select(s.Store, s.DataStore, req.Placement, now, req.Visitor)
	}
	if err != nil {
		if errors.Is(err, selectors.ErrUnknownPlacement) {
			s.Metrics.IncrementRequests(endpoint, method, "400")
			s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
			http.Error(w, "unknown placement", http.StatusBadRequest)
			return
		}
		// A transient selection failure answers like a no-fill. The page
		// renders without promotions rather than breaking.
		logger.Error("selection failed", zap.Error(err), zap.String("placement", req.Placement))
		winners = nil
	}

	if len(winners) == 0 {
		span.SetAttributes(attribute.String("selection.result", "no_fill"))
		if s.Analytics != nil {
			_ = s.Analytics.RecordSelection(ctx, "no_fill", req.Placement, "", req.Visitor)
		}
		s.Metrics.IncrementSelections(req.Placement, "no_fill")
	} else {
		span.SetAttributes(
			attribute.String("selection.result", "filled"),
			attribute.Int("selection.count", len(winners)),
		)
		s.Metrics.IncrementSelections(req.Placement, "filled")
	}

	resp := SelectResponse{Campaigns: make([]SelectedCampaign, 0, len(winners))}
	for _, c := range winners {
		imp, clk, conv := reportURLs(c.ID, req.Visitor.ID)
		resp.Campaigns = append(resp.Campaigns, SelectedCampaign{
			ID:            c.ID,
			Kind:          c.Kind,
			Placement:     c.Placement,
			Content:       c.Content,
			Style:         c.Style,
			Featured:      c.Featured,
			Order:         c.Order,
			ImpressionURL: imp,
			ClickURL:      clk,
			ConversionURL: conv,
		})
		if s.Analytics != nil {
			_ = s.Analytics.RecordSelection(ctx, "selected", req.Placement, c.ID, req.Visitor)
		}
	}
	if debugEnabled {
		resp.Debug = map[string]interface{}{"trace": selTrace}
	}

	if observability.ShouldSample(observability.GetSamplingRate()) {
		logger.Info("selection",
			zap.String("placement", req.Placement),
			zap.String("visitor_id", req.Visitor.ID),
			zap.Int("winners", len(resp.Campaigns)),
			zap.String("event_type", "selection"))
	}

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	writeJSON(w, resp)
}
