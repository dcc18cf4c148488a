package utils

import (
	"errors"
	"time"
)

// ErrBadSlotPlan is returned when the generation parameters cannot produce
// a single slot.
var ErrBadSlotPlan = errors.New("invalid slot plan parameters")

// BuildSlotPlan lays out consecutive slots of slotMin minutes separated by
// breakMin minutes of gap inside the window [dayStart, dayEnd).  A candidate
// whose end would pass dayEnd is discarded, so the last slot always fits
// entirely inside the window.
func BuildSlotPlan(dayStart, dayEnd time.Time, slotMin, breakMin int) ([]TimeRange, error) {
	if slotMin <= 0 || breakMin < 0 || !dayStart.Before(dayEnd) {
		return nil, ErrBadSlotPlan
	}
	slotDur := time.Duration(slotMin) * time.Minute
	breakDur := time.Duration(breakMin) * time.Minute

	var plan []TimeRange
	cursor := dayStart
	for {
		end := cursor.Add(slotDur)
		if end.After(dayEnd) {
			break
		}
		plan = append(plan, TimeRange{Start: cursor, End: end})
		cursor = end.Add(breakDur)
	}
	if len(plan) == 0 {
		return nil, ErrBadSlotPlan
	}
	return plan, nil
}
