package logic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promoserve/promoserve/internal/models"
)

func mustEvaluator(t *testing.T, tz string) *ScheduleEvaluator {
	t.Helper()
	e, err := NewScheduleEvaluator(tz)
	require.NoError(t, err)
	return e
}

func datePtr(t time.Time) *time.Time { return &t }

func TestStatusLifecycle(t *testing.T) {
	e := mustEvaluator(t, "")
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)

	testCases := []struct {
		name     string
		campaign models.Campaign
		expected string
	}{
		{
			name:     "kill switch off overrides everything",
			campaign: models.Campaign{Active: false, Schedule: models.Schedule{Enabled: true, StartDate: &start, EndDate: &end}},
			expected: StatusInactive,
		},
		{
			name:     "disabled schedule reads as scheduled",
			campaign: models.Campaign{Active: true, Schedule: models.Schedule{Enabled: false}},
			expected: StatusScheduled,
		},
		{
			name:     "before flight start",
			campaign: models.Campaign{Active: true, Schedule: models.Schedule{Enabled: true, StartDate: datePtr(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))}},
			expected: StatusScheduled,
		},
		{
			name:     "past flight end",
			campaign: models.Campaign{Active: true, Schedule: models.Schedule{Enabled: true, EndDate: datePtr(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))}},
			expected: StatusExpired,
		},
		{
			name:     "inside flight",
			campaign: models.Campaign{Active: true, Schedule: models.Schedule{Enabled: true, StartDate: &start, EndDate: &end}},
			expected: StatusActive,
		},
		{
			name:     "no dates at all",
			campaign: models.Campaign{Active: true, Schedule: models.Schedule{Enabled: true}},
			expected: StatusActive,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, e.Status(&tc.campaign, now))
		})
	}
}

func TestStatusDateBoundsInclusive(t *testing.T) {
	e := mustEvaluator(t, "")

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	c := models.Campaign{Active: true, Schedule: models.Schedule{Enabled: true, StartDate: &start, EndDate: &end}}

	assert.Equal(t, StatusActive, e.Status(&c, start), "start instant is in flight")
	assert.Equal(t, StatusActive, e.Status(&c, end), "end instant is in flight")
	assert.Equal(t, StatusScheduled, e.Status(&c, start.Add(-time.Second)))
	assert.Equal(t, StatusExpired, e.Status(&c, end.Add(time.Second)))
}

func TestInRecurrenceWindowDays(t *testing.T) {
	e := mustEvaluator(t, "")

	c := models.Campaign{Schedule: models.Schedule{
		Enabled:    true,
		DaysOfWeek: []time.Weekday{time.Saturday, time.Sunday},
	}}

	saturday := time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	monday := time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)

	assert.True(t, e.InRecurrenceWindow(&c, saturday))
	assert.False(t, e.InRecurrenceWindow(&c, monday))

	c.Schedule.DaysOfWeek = nil
	assert.True(t, e.InRecurrenceWindow(&c, monday), "empty day set means every day")
}

func TestInRecurrenceWindowSlotsHalfOpen(t *testing.T) {
	e := mustEvaluator(t, "")

	c := models.Campaign{Schedule: models.Schedule{
		Enabled:   true,
		TimeSlots: []models.TimeSlot{{Start: "09:00", End: "10:00"}},
	}}

	day := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	assert.False(t, e.InRecurrenceWindow(&c, at(8, 59)))
	assert.True(t, e.InRecurrenceWindow(&c, at(9, 0)), "start minute is included")
	assert.True(t, e.InRecurrenceWindow(&c, at(9, 59)))
	assert.False(t, e.InRecurrenceWindow(&c, at(10, 0)), "end minute is excluded")
}

func TestInRecurrenceWindowMultipleSlots(t *testing.T) {
	e := mustEvaluator(t, "")

	c := models.Campaign{Schedule: models.Schedule{
		Enabled: true,
		TimeSlots: []models.TimeSlot{
			{Start: "09:00", End: "12:00"},
			{Start: "14:00", End: "18:00"},
		},
	}}

	day := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	assert.True(t, e.InRecurrenceWindow(&c, day.Add(10*time.Hour)))
	assert.False(t, e.InRecurrenceWindow(&c, day.Add(13*time.Hour)), "between slots")
	assert.True(t, e.InRecurrenceWindow(&c, day.Add(15*time.Hour)))
}

func TestInRecurrenceWindowInvertedSlotNeverMatches(t *testing.T) {
	e := mustEvaluator(t, "")

	c := models.Campaign{Schedule: models.Schedule{
		Enabled:   true,
		TimeSlots: []models.TimeSlot{{Start: "18:00", End: "09:00"}},
	}}

	day := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	for h := 0; h < 24; h++ {
		assert.False(t, e.InRecurrenceWindow(&c, day.Add(time.Duration(h)*time.Hour)), "hour %d", h)
	}
}

func TestInRecurrenceWindowSiteTimezone(t *testing.T) {
	e := mustEvaluator(t, "America/New_York")

	c := models.Campaign{Schedule: models.Schedule{
		Enabled:   true,
		TimeSlots: []models.TimeSlot{{Start: "09:00", End: "17:00"}},
	}}

	// 14:00 UTC in June is 10:00 in New York, inside the slot.
	assert.True(t, e.InRecurrenceWindow(&c, time.Date(2025, 6, 16, 14, 0, 0, 0, time.UTC)))
	// 02:00 UTC is 22:00 the previous evening in New York, outside.
	assert.False(t, e.InRecurrenceWindow(&c, time.Date(2025, 6, 16, 2, 0, 0, 0, time.UTC)))
}

func TestNewScheduleEvaluatorBadTimezone(t *testing.T) {
	_, err := NewScheduleEvaluator("Not/AZone")
	assert.Error(t, err)
}

func TestEligible(t *testing.T) {
	e := mustEvaluator(t, "")
	now := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC) // Monday

	c := models.Campaign{
		Active: true,
		Schedule: models.Schedule{
			Enabled:    true,
			DaysOfWeek: []time.Weekday{time.Monday},
			TimeSlots:  []models.TimeSlot{{Start: "09:00", End: "12:00"}},
		},
	}
	assert.True(t, e.Eligible(&c, now))

	c.Active = false
	assert.False(t, e.Eligible(&c, now), "kill switch beats open window")

	c.Active = true
	assert.False(t, e.Eligible(&c, now.Add(5*time.Hour)), "outside slot")
}
