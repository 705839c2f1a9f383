package selectors

import (
	"time"

	"github.com/promoserve/promoserve/internal/db"
	"github.com/promoserve/promoserve/internal/logic"
	"github.com/promoserve/promoserve/internal/models"
)

// Selector defines a pluggable interface for campaign selection. A selector
// decides which campaigns render for a placement at a given instant; it only
// reads, and never mutates counters as a side effect of selection.
type Selector interface {
	Select(store *db.RedisStore, dataStore models.CampaignDataStore,
		placement string, now time.Time,
		visitor models.VisitorContext) ([]models.Campaign, error)
}

// TraceSelector is implemented by selectors that can additionally explain a
// decision by recording the candidate list after each filtering stage.
type TraceSelector interface {
	Selector
	SelectWithTrace(store *db.RedisStore, dataStore models.CampaignDataStore,
		placement string, now time.Time, visitor models.VisitorContext,
		trace *logic.SelectionTrace) ([]models.Campaign, error)
}
