package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Campaign kinds. Each kind occupies its own slot on the page; banners,
// popups, countdowns and subscriber capture widgets compete for the
// placement they are configured on, announcements have a dedicated slot.
const (
	KindBanner            = "banner"
	KindAnnouncement      = "announcement"
	KindPopup             = "popup"
	KindCountdown         = "countdown"
	KindSubscriberCapture = "subscriber_capture"
)

// Page regions a campaign can occupy.
const (
	PlacementTop    = "top"
	PlacementMiddle = "middle"
	PlacementBottom = "bottom"
	PlacementLeft   = "left"
	PlacementRight  = "right"
	PlacementCenter = "center"
)

// Per-visitor re-display cadence values. Empty means no cadence limit.
const (
	FrequencyOnce    = "once"
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// Device classes recognized by targeting rules.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

// Visitor types recognized by targeting rules.
const (
	UserTypeNew       = "new"
	UserTypeReturning = "returning"
)

var validKinds = map[string]bool{
	KindBanner:            true,
	KindAnnouncement:      true,
	KindPopup:             true,
	KindCountdown:         true,
	KindSubscriberCapture: true,
}

var validPlacements = map[string]bool{
	PlacementTop:    true,
	PlacementMiddle: true,
	PlacementBottom: true,
	PlacementLeft:   true,
	PlacementRight:  true,
	PlacementCenter: true,
}

var validFrequencies = map[string]bool{
	"":               true,
	FrequencyOnce:    true,
	FrequencyDaily:   true,
	FrequencyWeekly:  true,
	FrequencyMonthly: true,
}

// Image is a display asset attached to a campaign. At most one image per
// campaign may be flagged primary.
type Image struct {
	URL       string `json:"url"`
	Alt       string `json:"alt,omitempty"`
	IsPrimary bool   `json:"is_primary"`
}

// Video is a display asset attached to a campaign.
type Video struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Link is a click-through destination. At most one link per campaign may be
// flagged primary.
type Link struct {
	URL       string `json:"url"`
	Label     string `json:"label,omitempty"`
	IsPrimary bool   `json:"is_primary"`
}

// Content is the display payload of a campaign. The engine never interprets
// it; it is handed to the rendering collaborator as-is.
type Content struct {
	Title  string  `json:"title"`
	Body   string  `json:"body,omitempty"`
	Images []Image `json:"images,omitempty"`
	Videos []Video `json:"videos,omitempty"`
	Links  []Link  `json:"links,omitempty"`
}

// Conditions are the behavioral constraints of a targeting rule. Min/max
// order value bounds are inclusive and only tested when defined.
type Conditions struct {
	MinOrderValue     *float64 `json:"min_order_value,omitempty"`
	MaxOrderValue     *float64 `json:"max_order_value,omitempty"`
	ProductCategories []string `json:"product_categories,omitempty"`
	UserSegments      []string `json:"user_segments,omitempty"`
}

// Targeting is the predicate set restricting which visitors a campaign may be
// shown to. Dimensions are ANDed together; values within a dimension are ORed.
// An empty or absent dimension matches every visitor.
type Targeting struct {
	Pages      []string   `json:"pages,omitempty"`     // exact paths or trailing-wildcard patterns like /shop/*
	Devices    []string   `json:"devices,omitempty"`   // subset of desktop/mobile/tablet
	Countries  []string   `json:"countries,omitempty"` // ISO 3166-1 alpha-2 codes
	UserTypes  []string   `json:"user_types,omitempty"`
	Conditions Conditions `json:"conditions,omitempty"`
}

// TimeSlot is a half-open [Start, End) time-of-day range in site-local time,
// formatted HH:MM. Slots never wrap past midnight; End <= Start is invalid.
type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Schedule controls when a campaign may serve. Start/end dates are inclusive
// and compared in UTC; days of week and time slots are evaluated in the
// site's configured timezone.
type Schedule struct {
	Enabled    bool           `json:"enabled"`
	StartDate  *time.Time     `json:"start_date,omitempty"`
	EndDate    *time.Time     `json:"end_date,omitempty"`
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty"` // empty = every day
	TimeSlots  []TimeSlot     `json:"time_slots,omitempty"`   // empty = all day
	// Frequency governs per-visitor re-display cadence; empty = unlimited.
	Frequency string `json:"frequency,omitempty"`
	// Hard global caps. Zero means unlimited.
	MaxImpressions int64 `json:"max_impressions,omitempty"`
	MaxClicks      int64 `json:"max_clicks,omitempty"`
}

// Analytics holds the engagement counters for a campaign. Counters only grow
// except on explicit administrative reset. Derived rates (CTR, conversion
// rate) are never stored; see analytics.DerivedRates.
type Analytics struct {
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	Revenue     float64 `json:"revenue"`
}

// Campaign is a single piece of schedulable, targetable promotional content.
// The engine reads campaigns but never creates or deletes them; definitions
// are owned by the authoring collaborator, counters by the analytics recorder.
type Campaign struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	Content   Content `json:"content"`
	Placement string  `json:"placement"`
	// Style carries presentation attributes (colors, animation, duration).
	// Opaque to the engine and passed through unmodified.
	Style     json.RawMessage `json:"style,omitempty"`
	Targeting Targeting       `json:"targeting,omitempty"`
	Schedule  Schedule        `json:"schedule"`
	Analytics Analytics       `json:"analytics"`
	// Active is the master kill-switch, independent of Schedule.Enabled.
	Active   bool `json:"active"`
	Featured bool `json:"featured"`
	// Order is the selection priority; lower is shown first.
	Order     int       `json:"order"`
	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the structural invariants of a campaign definition.
// The authoring write path rejects invalid campaigns; the read path skips
// them so one corrupt row cannot fail a whole selection request.
func (c *Campaign) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("campaign id is required")
	}
	if !validKinds[c.Kind] {
		return fmt.Errorf("campaign %s: unknown kind %q", c.ID, c.Kind)
	}
	if !validPlacements[c.Placement] {
		return fmt.Errorf("campaign %s: unknown placement %q", c.ID, c.Placement)
	}
	if !validFrequencies[c.Schedule.Frequency] {
		return fmt.Errorf("campaign %s: unknown frequency %q", c.ID, c.Schedule.Frequency)
	}
	if c.Schedule.StartDate != nil && c.Schedule.EndDate != nil && c.Schedule.EndDate.Before(*c.Schedule.StartDate) {
		return fmt.Errorf("campaign %s: end date before start date", c.ID)
	}
	for _, d := range c.Schedule.DaysOfWeek {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("campaign %s: day of week %d out of range", c.ID, d)
		}
	}
	for _, s := range c.Schedule.TimeSlots {
		start, err := ParseClock(s.Start)
		if err != nil {
			return fmt.Errorf("campaign %s: bad slot start %q: %w", c.ID, s.Start, err)
		}
		end, err := ParseClock(s.End)
		if err != nil {
			return fmt.Errorf("campaign %s: bad slot end %q: %w", c.ID, s.End, err)
		}
		if end <= start {
			return fmt.Errorf("campaign %s: slot %s-%s does not end after it starts", c.ID, s.Start, s.End)
		}
	}
	primaries := 0
	for _, img := range c.Content.Images {
		if img.IsPrimary {
			primaries++
		}
	}
	if primaries > 1 {
		return fmt.Errorf("campaign %s: more than one primary image", c.ID)
	}
	primaries = 0
	for _, l := range c.Content.Links {
		if l.IsPrimary {
			primaries++
		}
	}
	if primaries > 1 {
		return fmt.Errorf("campaign %s: more than one primary link", c.ID)
	}
	if min, max := c.Targeting.Conditions.MinOrderValue, c.Targeting.Conditions.MaxOrderValue; min != nil && max != nil && *max < *min {
		return fmt.Errorf("campaign %s: max order value below min", c.ID)
	}
	return nil
}

// ParseClock parses an HH:MM string into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// PrimaryImage returns the primary image, or the first one when none is
// flagged, or nil when the campaign has no images.
func (c *Campaign) PrimaryImage() *Image {
	for i := range c.Content.Images {
		if c.Content.Images[i].IsPrimary {
			return &c.Content.Images[i]
		}
	}
	if len(c.Content.Images) > 0 {
		return &c.Content.Images[0]
	}
	return nil
}

// PrimaryLink returns the primary link, or the first one when none is
// flagged, or nil when the campaign has no links.
func (c *Campaign) PrimaryLink() *Link {
	for i := range c.Content.Links {
		if c.Content.Links[i].IsPrimary {
			return &c.Content.Links[i]
		}
	}
	if len(c.Content.Links) > 0 {
		return &c.Content.Links[0]
	}
	return nil
}
