package logic

import (
	"time"

	"go.uber.org/zap"

	"github.com/promoserve/promoserve/internal/db"
	"github.com/promoserve/promoserve/internal/models"
)

// UnderGlobalCaps reports whether a campaign is still below its hard
// impression and click caps. The check uses the freshest counter available:
// the live Redis counter when it is ahead of the snapshot loaded from
// Postgres, the snapshot otherwise. Redis trouble fails open to the snapshot
// value so a counter outage never blanks the whole page.
func UnderGlobalCaps(store *db.RedisStore, c *models.Campaign) bool {
	impressions := c.Analytics.Impressions
	clicks := c.Analytics.Clicks

	if store != nil && store.Client != nil {
		if live, liveClicks, err := store.GetLiveCounters(c.ID); err == nil {
			if live > impressions {
				impressions = live
			}
			if liveClicks > clicks {
				clicks = liveClicks
			}
		} else {
			zap.L().Warn("live counters unavailable, using snapshot", zap.String("campaign_id", c.ID), zap.Error(err))
		}
	}

	if c.Schedule.MaxImpressions > 0 && impressions >= c.Schedule.MaxImpressions {
		return false
	}
	if c.Schedule.MaxClicks > 0 && clicks >= c.Schedule.MaxClicks {
		return false
	}
	return true
}

// CadenceAllows reports whether the campaign's per-visitor frequency rule
// permits another display to this visitor. No record means never seen, which
// always allows. Redis errors fail open: showing a campaign one extra time
// is the documented lesser evil against showing none at all.
func CadenceAllows(store *db.RedisStore, c *models.Campaign, visitorID string, now time.Time, loc *time.Location) bool {
	if c.Schedule.Frequency == "" || visitorID == "" {
		return true
	}
	if store == nil || store.Client == nil {
		return true
	}
	last, seen, err := store.GetLastSeen(visitorID, c.ID)
	if err != nil {
		zap.L().Warn("last-seen lookup failed, allowing", zap.String("campaign_id", c.ID), zap.Error(err))
		return true
	}
	if !seen {
		return true
	}

	switch c.Schedule.Frequency {
	case models.FrequencyOnce:
		return false
	case models.FrequencyDaily:
		a, b := last.In(loc), now.In(loc)
		return a.Year() != b.Year() || a.YearDay() != b.YearDay()
	case models.FrequencyWeekly:
		ay, aw := last.In(loc).ISOWeek()
		by, bw := now.In(loc).ISOWeek()
		return ay != by || aw != bw
	case models.FrequencyMonthly:
		a, b := last.In(loc), now.In(loc)
		return a.Year() != b.Year() || a.Month() != b.Month()
	default:
		return true
	}
}

// FrequencyAllowed combines the global cap and per-visitor cadence checks.
// Both must pass for the campaign to remain a selection candidate.
func FrequencyAllowed(store *db.RedisStore, c *models.Campaign, visitorID string, now time.Time, loc *time.Location) bool {
	return UnderGlobalCaps(store, c) && CadenceAllows(store, c, visitorID, now, loc)
}
