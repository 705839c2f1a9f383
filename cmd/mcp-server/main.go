package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/promoserve/promoserve/internal/analytics"
	"github.com/promoserve/promoserve/internal/config"
	"github.com/promoserve/promoserve/internal/db"
	"github.com/promoserve/promoserve/internal/logic"
	"github.com/promoserve/promoserve/internal/models"
	"github.com/promoserve/promoserve/internal/observability"
)

type ListCampaignsInput struct {
	Placement string `json:"placement,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

type CampaignSummary struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Placement string `json:"placement"`
	Title     string `json:"title"`
	Active    bool   `json:"active"`
	Featured  bool   `json:"featured"`
	Order     int    `json:"order"`
	Status    string `json:"status"`
}

type ListCampaignsOutput struct {
	Campaigns []CampaignSummary `json:"campaigns"`
}

type GetAnalyticsInput struct {
	CampaignID string `json:"campaign_id"`
}

type SetActiveInput struct {
	CampaignID string `json:"campaign_id"`
	Active     bool   `json:"active"`
}

type SetActiveOutput struct {
	CampaignID string `json:"campaign_id"`
	Active     bool   `json:"active"`
	Status     string `json:"status"`
}

// engineServer holds the dependencies behind the MCP tools.
type engineServer struct {
	pg        *db.Postgres
	dataStore models.CampaignDataStore
	recorder  analytics.Recorder
	evaluator *logic.ScheduleEvaluator
	logger    *zap.Logger
}

// ListCampaigns returns campaign summaries with their lifecycle status at
// the current instant, optionally filtered by placement and kind.
func (s *engineServer) ListCampaigns(ctx context.Context, req *mcp.CallToolRequest, input ListCampaignsInput) (*mcp.CallToolResult, ListCampaignsOutput, error) {
	now := time.Now()

	campaigns := s.dataStore.GetAllCampaigns()
	summaries := []CampaignSummary{}
	for i := range campaigns {
		c := &campaigns[i]
		if input.Placement != "" && c.Placement != input.Placement {
			continue
		}
		if input.Kind != "" && c.Kind != input.Kind {
			continue
		}
		summaries = append(summaries, CampaignSummary{
			ID:        c.ID,
			Kind:      c.Kind,
			Placement: c.Placement,
			Title:     c.Content.Title,
			Active:    c.Active,
			Featured:  c.Featured,
			Order:     c.Order,
			Status:    s.evaluator.Status(c, now),
		})
	}

	return nil, ListCampaignsOutput{Campaigns: summaries}, nil
}

// GetCampaignAnalytics returns durable counters plus derived rates.
func (s *engineServer) GetCampaignAnalytics(ctx context.Context, req *mcp.CallToolRequest, input GetAnalyticsInput) (*mcp.CallToolResult, analytics.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	report, err := s.recorder.GetAnalytics(ctx, input.CampaignID)
	if err != nil {
		return nil, analytics.Report{}, fmt.Errorf("get analytics: %w", err)
	}
	return nil, report, nil
}

// SetCampaignActive flips the kill switch on a campaign.
func (s *engineServer) SetCampaignActive(ctx context.Context, req *mcp.CallToolRequest, input SetActiveInput) (*mcp.CallToolResult, SetActiveOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.pg.SetActive(ctx, input.CampaignID, input.Active, "mcp"); err != nil {
		return nil, SetActiveOutput{}, fmt.Errorf("set active: %w", err)
	}

	c, err := s.pg.GetCampaign(ctx, input.CampaignID)
	if err != nil {
		return nil, SetActiveOutput{}, fmt.Errorf("reload campaign: %w", err)
	}
	if err := s.dataStore.UpdateCampaign(c); err != nil {
		s.logger.Warn("refresh campaign in data store", zap.Error(err), zap.String("campaign_id", c.ID))
	}

	return nil, SetActiveOutput{
		CampaignID: c.ID,
		Active:     c.Active,
		Status:     s.evaluator.Status(&c, time.Now()),
	}, nil
}

func main() {
	// Log to stderr only; stdout carries the MCP stdio protocol.
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("promoserve-mcp").With(zap.String("service", "promoserve-mcp"))

	cfg := config.Load()

	evaluator, err := logic.NewScheduleEvaluator(cfg.SiteTimezone)
	if err != nil {
		logger.Fatal("Invalid site timezone", zap.Error(err))
	}

	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pg.Close()

	dataStore := models.NewInMemoryCampaignDataStore()
	campaigns, err := pg.LoadCampaigns(context.Background())
	if err != nil {
		logger.Fatal("Failed to load campaigns", zap.Error(err))
	}
	if err := dataStore.ReloadAll(campaigns); err != nil {
		logger.Fatal("Failed to populate campaign data store", zap.Error(err))
	}
	logger.Info("Campaign data store populated", zap.Int("campaigns", len(campaigns)))

	recorder := analytics.NewService(pg, nil, nil, &observability.MockMetricsRegistry{}, logger, cfg.RecordMaxAttempts, cfg.RecordRetryBackoff)

	es := &engineServer{
		pg:        pg,
		dataStore: dataStore,
		recorder:  recorder,
		evaluator: evaluator,
		logger:    logger,
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "promoserve",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_campaigns",
		Description: "List marketing campaigns with their current lifecycle status",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"placement": map[string]interface{}{
					"type":        "string",
					"description": "Filter by placement (top, middle, bottom, left, right, center)",
				},
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Filter by campaign kind (banner, announcement, popup, countdown, subscriber_capture)",
				},
			},
		},
	}, es.ListCampaigns)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_campaign_analytics",
		Description: "Get impression, click, conversion counters and derived rates for a campaign",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"campaign_id": map[string]interface{}{
					"type":        "string",
					"description": "Campaign ID",
				},
			},
			"required": []string{"campaign_id"},
		},
	}, es.GetCampaignAnalytics)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_campaign_active",
		Description: "Activate or deactivate a campaign (kill switch)",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"campaign_id": map[string]interface{}{
					"type":        "string",
					"description": "Campaign ID",
				},
				"active": map[string]interface{}{
					"type":        "boolean",
					"description": "Desired active state",
				},
			},
			"required": []string{"campaign_id", "active"},
		},
	}, es.SetCampaignActive)

	logger.Info("MCP Server running via stdio")

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
