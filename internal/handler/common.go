package handler // handler defines the HTTP handlers for the scheduling API

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mkhosravi/venue-scheduler/internal/middleware"
	"github.com/mkhosravi/venue-scheduler/internal/repository"
	"github.com/mkhosravi/venue-scheduler/internal/utils"
)

// ScheduleHandler bundles the repositories for organizer-facing resources:
// venues, events, slots, assignments and tickets.
type ScheduleHandler struct {
	Venues      *repository.VenueRepo
	Events      *repository.EventRepo
	Slots       *repository.SlotRepo
	Assignments *repository.AssignmentRepo
	Tickets     *repository.TicketRepo
}

// NewScheduleHandler constructs a ScheduleHandler and panics on a missing
// dependency; wiring errors should fail at startup, not at request time.
func NewScheduleHandler(v *repository.VenueRepo, e *repository.EventRepo, s *repository.SlotRepo, a *repository.AssignmentRepo, t *repository.TicketRepo) *ScheduleHandler {
	if v == nil || e == nil || s == nil || a == nil || t == nil {
		panic("nil repository passed to NewScheduleHandler")
	}
	return &ScheduleHandler{Venues: v, Events: e, Slots: s, Assignments: a, Tickets: t}
}

// getUserID extracts the authenticated user ID placed in context by JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get(middleware.CtxUserID).(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// paramID parses a numeric path parameter.
func paramID(c echo.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

// parseTimePair validates and parses a starts_at/ends_at pair into a
// TimeRange.  Both must be DB-format UTC strings and the range must have
// positive length.
func parseTimePair(startsAt, endsAt string) (utils.TimeRange, bool) {
	start, err := utils.ParseDB(strings.TrimSpace(startsAt))
	if err != nil {
		return utils.TimeRange{}, false
	}
	end, err := utils.ParseDB(strings.TrimSpace(endsAt))
	if err != nil {
		return utils.TimeRange{}, false
	}
	tr := utils.TimeRange{Start: start, End: end}
	return tr, tr.Valid()
}

// validCategory reports whether a ticket category string is one of the
// supported values.
func validCategory(cat string) bool {
	switch cat {
	case repository.CategoryRegular, repository.CategoryVIP, repository.CategoryPremium:
		return true
	}
	return false
}
