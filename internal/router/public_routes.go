package router

import (
	"github.com/labstack/echo/v4"

	"github.com/mkhosravi/venue-scheduler/internal/handler"
)

// RegisterPublic registers the unauthenticated browse endpoints.  These
// carry the response-cache middleware (and any other extras passed in) but
// no JWT, so guests can inspect schedules and seat maps.  Group middleware
// in Echo only applies to routes registered through the group, so sharing
// the /v1 prefix with the authenticated groups is safe.
func RegisterPublic(e *echo.Echo, h *handler.ScheduleHandler, extra ...echo.MiddlewareFunc) {
	g := e.Group("/v1", extra...)
	g.GET("/venues/:id/slots", h.BrowseVenueSlots)
	g.GET("/slots/:id", h.BrowseSlot)
	g.GET("/assignments/:id/tickets", h.BrowseAssignmentTickets)
}
