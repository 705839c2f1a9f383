// Package logic contains the runtime decision making used by the promotion
// engine: campaign lifecycle status, recurrence windows, audience targeting
// and frequency capping. The selection orchestration built on top of these
// pieces lives in the selectors subpackage.
package logic

import (
	"fmt"
	"time"

	"github.com/promoserve/promoserve/internal/models"
)

// Campaign lifecycle statuses derived from the kill-switch, the schedule
// enabled flag and the flight dates. Statuses are computed on read, never
// stored, so they cannot go stale.
const (
	StatusInactive  = "inactive"  // master kill-switch off
	StatusScheduled = "scheduled" // held back or before flight start
	StatusActive    = "active"
	StatusExpired   = "expired" // past flight end
)

// ScheduleEvaluator computes campaign lifecycle status and recurrence-window
// membership. Flight dates are compared in UTC; days of week and time slots
// are evaluated in the site's local timezone.
type ScheduleEvaluator struct {
	loc *time.Location
}

// NewScheduleEvaluator builds an evaluator for the given IANA timezone name.
// An empty name means UTC.
func NewScheduleEvaluator(timezone string) (*ScheduleEvaluator, error) {
	if timezone == "" {
		return &ScheduleEvaluator{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load site timezone %q: %w", timezone, err)
	}
	return &ScheduleEvaluator{loc: loc}, nil
}

// Location returns the site timezone the evaluator was built with.
func (e *ScheduleEvaluator) Location() *time.Location {
	return e.loc
}

// Status returns the lifecycle status of a campaign at the given instant.
// The kill-switch overrides everything; a disabled schedule reads as
// "scheduled" (configured but deliberately held back). Flight date bounds
// are inclusive on both ends.
func (e *ScheduleEvaluator) Status(c *models.Campaign, now time.Time) string {
	if !c.Active {
		return StatusInactive
	}
	if !c.Schedule.Enabled {
		return StatusScheduled
	}
	if c.Schedule.StartDate != nil && now.Before(*c.Schedule.StartDate) {
		return StatusScheduled
	}
	if c.Schedule.EndDate != nil && now.After(*c.Schedule.EndDate) {
		return StatusExpired
	}
	return StatusActive
}

// InRecurrenceWindow reports whether "now" falls inside the campaign's
// day-of-week and time-of-day rules, evaluated in site-local time. An empty
// day set means every day; an empty slot list means all day. Slots are
// half-open [start, end) so the boundary minute is never double-counted, and
// a slot that does not end after it starts never matches.
func (e *ScheduleEvaluator) InRecurrenceWindow(c *models.Campaign, now time.Time) bool {
	local := now.In(e.loc)

	if len(c.Schedule.DaysOfWeek) > 0 {
		match := false
		for _, d := range c.Schedule.DaysOfWeek {
			if local.Weekday() == d {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	if len(c.Schedule.TimeSlots) == 0 {
		return true
	}
	minute := local.Hour()*60 + local.Minute()
	for _, slot := range c.Schedule.TimeSlots {
		start, err := models.ParseClock(slot.Start)
		if err != nil {
			continue
		}
		end, err := models.ParseClock(slot.End)
		if err != nil {
			continue
		}
		if end <= start {
			continue
		}
		if start <= minute && minute < end {
			return true
		}
	}
	return false
}

// Eligible reports whether a campaign may serve at all at the given instant:
// lifecycle status active and inside the recurrence window.
func (e *ScheduleEvaluator) Eligible(c *models.Campaign, now time.Time) bool {
	return e.Status(c, now) == StatusActive && e.InRecurrenceWindow(c, now)
}
