package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCampaign() Campaign {
	return Campaign{
		ID:        "c1",
		Kind:      KindBanner,
		Placement: PlacementTop,
		Content:   Content{Title: "Summer Sale"},
		Schedule:  Schedule{Enabled: true},
		Active:    true,
	}
}

func TestValidate(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	min, max := 100.0, 50.0

	testCases := []struct {
		name    string
		mutate  func(*Campaign)
		wantErr bool
	}{
		{"valid", func(c *Campaign) {}, false},
		{"missing id", func(c *Campaign) { c.ID = "" }, true},
		{"unknown kind", func(c *Campaign) { c.Kind = "interstitial" }, true},
		{"unknown placement", func(c *Campaign) { c.Placement = "sidebar" }, true},
		{"unknown frequency", func(c *Campaign) { c.Schedule.Frequency = "hourly" }, true},
		{"empty frequency ok", func(c *Campaign) { c.Schedule.Frequency = "" }, false},
		{"end before start", func(c *Campaign) {
			c.Schedule.StartDate = &start
			c.Schedule.EndDate = &end
		}, true},
		{"bad slot start", func(c *Campaign) {
			c.Schedule.TimeSlots = []TimeSlot{{Start: "9am", End: "10:00"}}
		}, true},
		{"inverted slot", func(c *Campaign) {
			c.Schedule.TimeSlots = []TimeSlot{{Start: "18:00", End: "09:00"}}
		}, true},
		{"zero length slot", func(c *Campaign) {
			c.Schedule.TimeSlots = []TimeSlot{{Start: "09:00", End: "09:00"}}
		}, true},
		{"good slot", func(c *Campaign) {
			c.Schedule.TimeSlots = []TimeSlot{{Start: "09:00", End: "17:30"}}
		}, false},
		{"day of week out of range", func(c *Campaign) {
			c.Schedule.DaysOfWeek = []time.Weekday{time.Weekday(7)}
		}, true},
		{"two primary images", func(c *Campaign) {
			c.Content.Images = []Image{{URL: "/a.png", IsPrimary: true}, {URL: "/b.png", IsPrimary: true}}
		}, true},
		{"two primary links", func(c *Campaign) {
			c.Content.Links = []Link{{URL: "/a", IsPrimary: true}, {URL: "/b", IsPrimary: true}}
		}, true},
		{"max order value below min", func(c *Campaign) {
			c.Targeting.Conditions.MinOrderValue = &min
			c.Targeting.Conditions.MaxOrderValue = &max
		}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := validCampaign()
			tc.mutate(&c)
			err := c.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9*60+30, m)

	m, err = ParseClock("00:00")
	require.NoError(t, err)
	assert.Equal(t, 0, m)

	m, err = ParseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, 23*60+59, m)

	_, err = ParseClock("24:00")
	assert.Error(t, err)
	_, err = ParseClock("9:3")
	assert.Error(t, err)
}

func TestPrimaryImageAndLink(t *testing.T) {
	c := validCampaign()
	assert.Nil(t, c.PrimaryImage())
	assert.Nil(t, c.PrimaryLink())

	c.Content.Images = []Image{{URL: "/first.png"}, {URL: "/flagged.png", IsPrimary: true}}
	require.NotNil(t, c.PrimaryImage())
	assert.Equal(t, "/flagged.png", c.PrimaryImage().URL)

	c.Content.Links = []Link{{URL: "/first"}, {URL: "/second"}}
	require.NotNil(t, c.PrimaryLink())
	assert.Equal(t, "/first", c.PrimaryLink().URL, "no flag falls back to the first link")
}
