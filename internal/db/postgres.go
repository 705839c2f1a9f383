package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/promoserve/promoserve/internal/models"
)

// Postgres wraps a postgres DB connection.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the campaigns table if it doesn't exist. Structured
// sub-documents (content, targeting, schedule, style) live in JSONB; the
// engagement counters are plain columns so they can be bumped with a single
// atomic UPDATE.
const schemaSQL = `CREATE TABLE IF NOT EXISTS campaigns (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    placement TEXT NOT NULL,
    content JSONB NOT NULL DEFAULT '{}',
    style JSONB,
    targeting JSONB NOT NULL DEFAULT '{}',
    schedule JSONB NOT NULL DEFAULT '{}',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    featured BOOLEAN NOT NULL DEFAULT FALSE,
    display_order INT NOT NULL DEFAULT 0,
    impressions BIGINT NOT NULL DEFAULT 0,
    clicks BIGINT NOT NULL DEFAULT 0,
    conversions BIGINT NOT NULL DEFAULT 0,
    revenue DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_by TEXT,
    updated_by TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_campaigns_placement_active ON campaigns (placement, active) WHERE active = true;
CREATE INDEX IF NOT EXISTS idx_campaigns_kind ON campaigns (kind);
`

// InitPostgres connects to Postgres with connection pooling configuration.
func InitPostgres(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime time.Duration) (*Postgres, error) {
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	zap.L().Info("Connected to Postgres")
	return &Postgres{DB: db}, nil
}

// Close shuts down the database connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

const campaignColumns = `id, kind, placement, content, style, targeting, schedule,
	active, featured, display_order, impressions, clicks, conversions, revenue,
	created_by, updated_by, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (models.Campaign, error) {
	var c models.Campaign
	var content, targeting, schedule []byte
	var style, createdBy, updatedBy sql.NullString
	err := row.Scan(&c.ID, &c.Kind, &c.Placement, &content, &style, &targeting, &schedule,
		&c.Active, &c.Featured, &c.Order,
		&c.Analytics.Impressions, &c.Analytics.Clicks, &c.Analytics.Conversions, &c.Analytics.Revenue,
		&createdBy, &updatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(content, &c.Content); err != nil {
		return c, fmt.Errorf("campaign %s content: %w", c.ID, err)
	}
	if err := json.Unmarshal(targeting, &c.Targeting); err != nil {
		return c, fmt.Errorf("campaign %s targeting: %w", c.ID, err)
	}
	if err := json.Unmarshal(schedule, &c.Schedule); err != nil {
		return c, fmt.Errorf("campaign %s schedule: %w", c.ID, err)
	}
	if style.Valid {
		c.Style = json.RawMessage(style.String)
	}
	c.CreatedBy = createdBy.String
	c.UpdatedBy = updatedBy.String
	return c, nil
}

// LoadCampaigns returns every campaign definition. Rows that fail to decode
// or validate are skipped and logged so one corrupt write cannot keep the
// snapshot from loading.
func (p *Postgres) LoadCampaigns(ctx context.Context) ([]models.Campaign, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT `+campaignColumns+` FROM campaigns ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("load campaigns: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var campaigns []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			zap.L().Warn("skipping undecodable campaign row", zap.Error(err))
			continue
		}
		if err := c.Validate(); err != nil {
			zap.L().Warn("skipping invalid campaign", zap.String("campaign_id", c.ID), zap.Error(err))
			continue
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// GetCampaign returns a single campaign by ID.
func (p *Postgres) GetCampaign(ctx context.Context, id string) (models.Campaign, error) {
	row := p.DB.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return c, models.ErrNotFound
	}
	return c, err
}

// InsertCampaign persists a new campaign definition.
func (p *Postgres) InsertCampaign(ctx context.Context, c models.Campaign) error {
	content, err := json.Marshal(c.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	targeting, err := json.Marshal(c.Targeting)
	if err != nil {
		return fmt.Errorf("marshal targeting: %w", err)
	}
	schedule, err := json.Marshal(c.Schedule)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}
	var style any
	if len(c.Style) > 0 {
		style = string(c.Style)
	}
	_, err = p.DB.ExecContext(ctx, `INSERT INTO campaigns
		(id, kind, placement, content, style, targeting, schedule, active, featured, display_order, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID, c.Kind, c.Placement, content, style, targeting, schedule,
		c.Active, c.Featured, c.Order, c.CreatedBy, c.UpdatedBy, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

// UpdateCampaign replaces the definition fields of a campaign. The counters
// are deliberately untouched; only the analytics recorder and the reset
// operation mutate them.
func (p *Postgres) UpdateCampaign(ctx context.Context, c models.Campaign) error {
	content, err := json.Marshal(c.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	targeting, err := json.Marshal(c.Targeting)
	if err != nil {
		return fmt.Errorf("marshal targeting: %w", err)
	}
	schedule, err := json.Marshal(c.Schedule)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}
	var style any
	if len(c.Style) > 0 {
		style = string(c.Style)
	}
	res, err := p.DB.ExecContext(ctx, `UPDATE campaigns SET
		kind = $2, placement = $3, content = $4, style = $5, targeting = $6, schedule = $7,
		active = $8, featured = $9, display_order = $10, updated_by = $11, updated_at = now()
		WHERE id = $1`,
		c.ID, c.Kind, c.Placement, content, style, targeting, schedule,
		c.Active, c.Featured, c.Order, c.UpdatedBy)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	return requireRow(res)
}

// SetActive flips the master kill-switch for a campaign.
func (p *Postgres) SetActive(ctx context.Context, id string, active bool, updatedBy string) error {
	res, err := p.DB.ExecContext(ctx,
		`UPDATE campaigns SET active = $2, updated_by = $3, updated_at = now() WHERE id = $1`,
		id, active, updatedBy)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return requireRow(res)
}

// DeleteCampaign removes a campaign definition.
func (p *Postgres) DeleteCampaign(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return requireRow(res)
}

// IncrementImpressions atomically bumps the impression counter. A single
// UPDATE statement so concurrent events for a popular campaign never lose
// updates.
func (p *Postgres) IncrementImpressions(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx,
		`UPDATE campaigns SET impressions = impressions + 1, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment impressions: %w", err)
	}
	return requireRow(res)
}

// IncrementClicks atomically bumps the click counter.
func (p *Postgres) IncrementClicks(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx,
		`UPDATE campaigns SET clicks = clicks + 1, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment clicks: %w", err)
	}
	return requireRow(res)
}

// IncrementConversions atomically bumps the conversion counter and adds the
// attributed revenue.
func (p *Postgres) IncrementConversions(ctx context.Context, id string, revenue float64) error {
	res, err := p.DB.ExecContext(ctx,
		`UPDATE campaigns SET conversions = conversions + 1, revenue = revenue + $2, updated_at = now() WHERE id = $1`,
		id, revenue)
	if err != nil {
		return fmt.Errorf("increment conversions: %w", err)
	}
	return requireRow(res)
}

// GetCounters reads the durable engagement counters for a campaign.
func (p *Postgres) GetCounters(ctx context.Context, id string) (models.Analytics, error) {
	var a models.Analytics
	err := p.DB.QueryRowContext(ctx,
		`SELECT impressions, clicks, conversions, revenue FROM campaigns WHERE id = $1`, id).
		Scan(&a.Impressions, &a.Clicks, &a.Conversions, &a.Revenue)
	if err == sql.ErrNoRows {
		return a, models.ErrNotFound
	}
	if err != nil {
		return a, fmt.Errorf("get counters: %w", err)
	}
	return a, nil
}

// ResetCounters zeroes the engagement counters for a campaign. This is the
// one sanctioned exception to counters being non-decreasing, and is audited
// via updated_by.
func (p *Postgres) ResetCounters(ctx context.Context, id string, updatedBy string) error {
	res, err := p.DB.ExecContext(ctx,
		`UPDATE campaigns SET impressions = 0, clicks = 0, conversions = 0, revenue = 0,
			updated_by = $2, updated_at = now() WHERE id = $1`,
		id, updatedBy)
	if err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
