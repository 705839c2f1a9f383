package selectors

import (
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/promoserve/promoserve/internal/db"
	"github.com/promoserve/promoserve/internal/logic"
	"github.com/promoserve/promoserve/internal/models"
	"github.com/promoserve/promoserve/internal/observability"
)

var (
	// ErrUnknownPlacement is returned when the requested placement is not a
	// recognized page region. An empty result for a valid placement is not
	// an error.
	ErrUnknownPlacement = errors.New("unknown placement")
)

var knownPlacements = map[string]bool{
	models.PlacementTop:    true,
	models.PlacementMiddle: true,
	models.PlacementBottom: true,
	models.PlacementLeft:   true,
	models.PlacementRight:  true,
	models.PlacementCenter: true,
}

// PrioritySelector is the default Selector. It filters candidates through
// the schedule evaluator, the targeting matcher and the frequency guard,
// then ranks survivors deterministically: order ascending, featured before
// non-featured, most recently created first, campaign ID as the final
// tie-break so repeated calls with unchanged state return identical results.
//
// Each campaign kind is an independent slot: the selector returns at most
// one winner per kind for the requested placement, plus the single
// top-ranked announcement, which has a dedicated slot regardless of the
// requested region.
type PrioritySelector struct {
	evaluator *logic.ScheduleEvaluator
	logger    *zap.Logger
	metrics   observability.MetricsRegistry
}

var _ TraceSelector = (*PrioritySelector)(nil)

// NewPrioritySelector constructs a PrioritySelector around a schedule
// evaluator carrying the site timezone.
func NewPrioritySelector(evaluator *logic.ScheduleEvaluator) *PrioritySelector {
	return &PrioritySelector{evaluator: evaluator}
}

// SetLogger configures the logger for this selector.
func (s *PrioritySelector) SetLogger(logger *zap.Logger) {
	s.logger = logger
}

// SetMetrics configures the metrics registry for this selector.
// Metrics are optional - if not set, none are recorded.
func (s *PrioritySelector) SetMetrics(metrics observability.MetricsRegistry) {
	s.metrics = metrics
}

// Select delegates to performSelection without tracing.
func (s *PrioritySelector) Select(store *db.RedisStore, dataStore models.CampaignDataStore,
	placement string, now time.Time, visitor models.VisitorContext) ([]models.Campaign, error) {
	return s.performSelection(store, dataStore, placement, now, visitor, nil)
}

// SelectWithTrace behaves like Select but records intermediate candidate
// lists in the provided SelectionTrace.
func (s *PrioritySelector) SelectWithTrace(store *db.RedisStore, dataStore models.CampaignDataStore,
	placement string, now time.Time, visitor models.VisitorContext,
	trace *logic.SelectionTrace) ([]models.Campaign, error) {
	return s.performSelection(store, dataStore, placement, now, visitor, trace)
}

func (s *PrioritySelector) performSelection(store *db.RedisStore, dataStore models.CampaignDataStore,
	placement string, now time.Time, visitor models.VisitorContext,
	trace *logic.SelectionTrace) ([]models.Campaign, error) {
	if !knownPlacements[placement] {
		return nil, ErrUnknownPlacement
	}

	candidates := dataStore.GetCampaignsByPlacement(placement)
	announcements := dataStore.GetAnnouncements()
	trace.AddStep("start", append(append([]models.Campaign{}, candidates...), announcements...))

	candidates = s.filterEligible(store, candidates, now, visitor, trace)
	announcements = s.filterEligible(store, announcements, now, visitor, nil)

	// One winner per kind slot for the placement, plus the announcement slot.
	winners := topPerKind(candidates)
	if top := topRanked(announcements); top != nil {
		winners = append(winners, *top)
	}
	sort.SliceStable(winners, func(i, j int) bool { return rankLess(winners[i], winners[j]) })

	trace.AddStep("winners", winners)
	return winners, nil
}

// filterEligible runs the schedule, targeting and frequency checks in cost
// order. Campaigns that fail validation are skipped and logged rather than
// failing the request; one corrupt definition must not blank the page.
func (s *PrioritySelector) filterEligible(store *db.RedisStore, candidates []models.Campaign,
	now time.Time, visitor models.VisitorContext, trace *logic.SelectionTrace) []models.Campaign {
	var survivors []models.Campaign
	for i := range candidates {
		c := &candidates[i]
		if err := c.Validate(); err != nil {
			if s.logger != nil {
				s.logger.Warn("skipping invalid campaign", zap.String("campaign_id", c.ID), zap.Error(err))
			}
			if s.metrics != nil {
				s.metrics.IncrementCampaignSkips("invalid")
			}
			continue
		}
		if !s.evaluator.Eligible(c, now) {
			continue
		}
		survivors = append(survivors, *c)
	}
	trace.AddStep("schedule", survivors)

	n := 0
	for i := range survivors {
		if logic.MatchesTargeting(survivors[i].Targeting, visitor) {
			survivors[n] = survivors[i]
			n++
		}
	}
	survivors = survivors[:n]
	trace.AddStep("targeting", survivors)

	// Frequency last: it is the only check that may touch Redis.
	n = 0
	for i := range survivors {
		if logic.FrequencyAllowed(store, &survivors[i], visitor.ID, now, s.evaluator.Location()) {
			survivors[n] = survivors[i]
			n++
		}
	}
	survivors = survivors[:n]
	trace.AddStep("frequency", survivors)

	return survivors
}

// rankLess is the total, deterministic ordering used everywhere a winner is
// picked: priority order ascending, featured campaigns first among equals,
// then most recently created, then ID.
func rankLess(a, b models.Campaign) bool {
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	if a.Featured != b.Featured {
		return a.Featured
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

func topRanked(campaigns []models.Campaign) *models.Campaign {
	var top *models.Campaign
	for i := range campaigns {
		if top == nil || rankLess(campaigns[i], *top) {
			top = &campaigns[i]
		}
	}
	return top
}

func topPerKind(campaigns []models.Campaign) []models.Campaign {
	byKind := make(map[string][]models.Campaign)
	for _, c := range campaigns {
		byKind[c.Kind] = append(byKind[c.Kind], c)
	}
	var winners []models.Campaign
	for _, bucket := range byKind {
		if top := topRanked(bucket); top != nil {
			winners = append(winners, *top)
		}
	}
	return winners
}
