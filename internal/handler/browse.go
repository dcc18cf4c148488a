package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mkhosravi/venue-scheduler/internal/repository"
)

// Public browse endpoints.  These run without authentication behind the
// response cache, so they expose only read-only schedule data.

// BrowseVenueSlots lists the slots of a venue.  ?vacant=true narrows the
// result to active vacant slots, the view a booking front-end needs.
func (h *ScheduleHandler) BrowseVenueSlots(c echo.Context) error {
	venueID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Venues.GetByID(ctx, venueID); err != nil {
		if errors.Is(err, repository.ErrVenueNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load venue failed"})
	}

	slots, err := h.Slots.ListByVenue(ctx, venueID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list slots failed"})
	}

	vacantOnly := c.QueryParam("vacant") == "true"
	out := make([]slotResp, 0, len(slots))
	for i := range slots {
		s := &slots[i]
		if vacantOnly && !(s.IsActive && s.IsVacant) {
			continue
		}
		out = append(out, toSlotResp(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": out})
}

// BrowseSlot returns one slot with its vacancy state.
func (h *ScheduleHandler) BrowseSlot(c echo.Context) error {
	slotID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Slots.GetByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrSlotNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load slot failed"})
	}
	return c.JSON(http.StatusOK, toSlotResp(s))
}

// BrowseAssignmentTickets returns the seat map of an assignment: every
// ticket in reading order, with vacancy and pricing.
func (h *ScheduleHandler) BrowseAssignmentTickets(c echo.Context) error {
	assignmentID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assignment id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Assignments.GetByID(ctx, assignmentID); err != nil {
		if errors.Is(err, repository.ErrAssignmentNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "assignment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load assignment failed"})
	}

	tickets, err := h.Tickets.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list tickets failed"})
	}
	out := make([]ticketResp, 0, len(tickets))
	for i := range tickets {
		out = append(out, toTicketResp(&tickets[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": out})
}
