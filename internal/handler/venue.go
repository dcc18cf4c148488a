package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mkhosravi/venue-scheduler/internal/repository"
)

// ----- DTOs -----

type createVenueReq struct {
	City     string `json:"city"`
	Name     string `json:"name"`
	Capacity uint32 `json:"capacity"`
}

type venueResp struct {
	ID        uint64 `json:"id"`
	City      string `json:"city"`
	Name      string `json:"name"`
	Capacity  uint32 `json:"capacity"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toVenueResp(v *repository.Venue) venueResp {
	return venueResp{
		ID: v.ID, City: v.City, Name: v.Name, Capacity: v.Capacity,
		IsActive: v.IsActive, CreatedAt: v.CreatedAt, UpdatedAt: v.UpdatedAt,
	}
}

// CreateVenue registers a venue for the calling organizer.  Capacity is
// fixed at creation and bounds ticket generation for every assignment in
// this venue.
func (h *ScheduleHandler) CreateVenue(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createVenueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.City = strings.TrimSpace(req.City)
	req.Name = strings.TrimSpace(req.Name)
	if req.City == "" || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "city and name required"})
	}
	if req.Capacity < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be positive"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v := repository.Venue{OwnerID: uid, City: req.City, Name: req.Name, Capacity: req.Capacity}
	if err := h.Venues.Create(ctx, &v); err != nil {
		if strings.Contains(err.Error(), "1062") { // duplicate (owner_id, name)
			return c.JSON(http.StatusConflict, echo.Map{"error": "venue name already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create venue failed"})
	}
	return c.JSON(http.StatusCreated, toVenueResp(&v))
}

// ListVenues returns the caller's venues.
func (h *ScheduleHandler) ListVenues(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	venues, err := h.Venues.ListByOwner(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list venues failed"})
	}
	out := make([]venueResp, 0, len(venues))
	for i := range venues {
		out = append(out, toVenueResp(&venues[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"venues": out})
}

// GetVenue returns one of the caller's venues by id.
func (h *ScheduleHandler) GetVenue(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v, err := h.Venues.GetByIDAndOwner(ctx, id, uid)
	if err != nil {
		if errors.Is(err, repository.ErrVenueNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load venue failed"})
	}
	return c.JSON(http.StatusOK, toVenueResp(v))
}

// DeleteVenue removes a venue and its slots when nothing is assigned.
func (h *ScheduleHandler) DeleteVenue(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	switch err := h.Venues.DeleteByIDAndOwner(ctx, id, uid); {
	case err == nil:
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrSlotInUse):
		return c.JSON(http.StatusConflict, echo.Map{"error": "venue has active assignments"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete venue failed"})
	}
}
