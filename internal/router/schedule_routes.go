package router

import (
	"github.com/labstack/echo/v4"

	"github.com/mkhosravi/venue-scheduler/internal/handler"
	"github.com/mkhosravi/venue-scheduler/internal/middleware"
	"github.com/mkhosravi/venue-scheduler/internal/repository"
)

// RegisterSchedule registers the ORGANIZER-scoped scheduling endpoints
// under /v1.  Every route requires a valid JWT with the ORGANIZER role.
func RegisterSchedule(e *echo.Echo, h *handler.ScheduleHandler, jwtSecret string, extra ...echo.MiddlewareFunc) {
	mw := append([]echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(repository.RoleOrganizer),
	}, extra...)
	g := e.Group("/v1", mw...)

	// ---- Venues ----
	g.POST("/venues", h.CreateVenue)
	g.GET("/venues", h.ListVenues)
	g.GET("/venues/:id", h.GetVenue)
	g.DELETE("/venues/:id", h.DeleteVenue)

	// ---- Events ----
	g.POST("/events", h.CreateEvent)
	g.GET("/events", h.ListEvents)
	g.PUT("/events/:id", h.UpdateEvent)
	g.PATCH("/events/:id", h.UpdateEvent)
	g.DELETE("/events/:id", h.DeleteEvent)

	// ---- Slots ----
	g.POST("/venues/:id/slots", h.CreateSlot)
	g.POST("/venues/:id/slots/generate", h.BulkGenerateSlots)
	g.GET("/venues/:id/availability", h.CheckAvailability)
	g.PUT("/slots/:id", h.UpdateSlot)
	g.PATCH("/slots/:id", h.UpdateSlot)
	g.PATCH("/slots/status", h.SetSlotStatus)
	g.DELETE("/slots", h.DeleteSlots)

	// ---- Assignments ----
	g.POST("/assignments", h.Assign)
	g.GET("/assignments", h.GetAssignment)
	g.DELETE("/assignments", h.Unassign)
	g.GET("/events/:id/assignments", h.ListEventAssignments)
	g.GET("/venues/:id/assignments", h.ListVenueAssignments)
	g.POST("/assignments/bulk", h.BulkAssign)
	g.DELETE("/assignments/bulk", h.BulkUnassign)

	// ---- Tickets ----
	g.POST("/tickets", h.CreateTicket)
	g.POST("/tickets/generate", h.BulkCreateTickets)
	g.PATCH("/tickets", h.UpdateTickets)
	g.DELETE("/tickets", h.DeleteTickets)
}
