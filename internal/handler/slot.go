package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mkhosravi/venue-scheduler/internal/repository"
	"github.com/mkhosravi/venue-scheduler/internal/utils"
)

// ----- DTOs -----

// is_active is optional: create defaults to active, update keeps the
// current flag when absent.
type createSlotReq struct {
	StartsAt string `json:"starts_at"` // "2006-01-02 15:04:05" UTC
	EndsAt   string `json:"ends_at"`
	IsActive *bool  `json:"is_active"`
}

type generateSlotsReq struct {
	DayStart     string `json:"day_start"`
	DayEnd       string `json:"day_end"`
	SlotMinutes  int    `json:"slot_minutes"`
	BreakMinutes int    `json:"break_minutes"`
}

type slotIDsReq struct {
	SlotIDs []uint64 `json:"slot_ids"`
}

type slotStatusReq struct {
	SlotIDs  []uint64 `json:"slot_ids"`
	IsActive *bool    `json:"is_active"`
}

type slotResp struct {
	ID        uint64 `json:"id"`
	VenueID   uint64 `json:"venue_id"`
	StartsAt  string `json:"starts_at"`
	EndsAt    string `json:"ends_at"`
	IsActive  bool   `json:"is_active"`
	IsVacant  bool   `json:"is_vacant"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func toSlotResp(s *repository.VenueSlot) slotResp {
	return slotResp{
		ID: s.ID, VenueID: s.VenueID, StartsAt: s.StartsAt, EndsAt: s.EndsAt,
		IsActive: s.IsActive, IsVacant: s.IsVacant, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt,
	}
}

// ownedVenue loads the venue and enforces ownership for mutating slot calls.
func (h *ScheduleHandler) ownedVenue(ctx context.Context, c echo.Context, venueID uint64) (*repository.Venue, error) {
	uid, err := getUserID(c)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	v, err := h.Venues.GetByID(ctx, venueID)
	if err != nil {
		if errors.Is(err, repository.ErrVenueNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "venue not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "load venue failed")
	}
	if v.OwnerID != uid {
		return nil, echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	return v, nil
}

// CreateSlot adds one slot to a venue.  The time range is half-open: a slot
// ending exactly when another starts does not conflict.
func (h *ScheduleHandler) CreateSlot(c echo.Context) error {
	venueID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
	}
	var req createSlotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	tr, ok := parseTimePair(req.StartsAt, req.EndsAt)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must precede ends_at (format: 2006-01-02 15:04:05 UTC)"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.ownedVenue(ctx, c, venueID); err != nil {
		return err
	}
	uid, _ := getUserID(c)

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	s := repository.VenueSlot{
		VenueID:   venueID,
		StartsAt:  utils.FormatDB(tr.Start),
		EndsAt:    utils.FormatDB(tr.End),
		IsActive:  active,
		CreatedBy: uid,
	}
	switch err := h.Slots.Create(ctx, &s); {
	case err == nil:
		return c.JSON(http.StatusCreated, toSlotResp(&s))
	case errors.Is(err, repository.ErrSlotConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "slot overlaps an existing slot"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create slot failed"})
	}
}

// UpdateSlot reschedules a slot in place and optionally flips its active
// flag.  The overlap check ignores the slot's own current range;
// deactivating a slot with an active assignment is refused.
func (h *ScheduleHandler) UpdateSlot(c echo.Context) error {
	slotID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	var req createSlotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	tr, ok := parseTimePair(req.StartsAt, req.EndsAt)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must precede ends_at (format: 2006-01-02 15:04:05 UTC)"})
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
	if _, err := h.ownedVenue(ctx, c, s.VenueID); err != nil {
		return err
	}

	active := s.IsActive
	if req.IsActive != nil {
		active = *req.IsActive
	}
	updated, err := h.Slots.UpdateTimes(ctx, slotID, utils.FormatDB(tr.Start), utils.FormatDB(tr.End), active)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, toSlotResp(updated))
	case errors.Is(err, repository.ErrSlotNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
	case errors.Is(err, repository.ErrSlotInUse):
		return c.JSON(http.StatusConflict, echo.Map{"error": "slot has an active assignment"})
	case errors.Is(err, repository.ErrSlotConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "slot overlaps an existing slot"})
	case errors.Is(err, repository.ErrNoChange):
		return c.JSON(http.StatusOK, toSlotResp(s))
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update slot failed"})
	}
}

// BulkGenerateSlots lays out back-to-back slots inside a day window and
// inserts them in one transaction.  Ranges colliding with existing slots
// are skipped and counted; a storage error aborts the whole batch.
func (h *ScheduleHandler) BulkGenerateSlots(c echo.Context) error {
	venueID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
	}
	var req generateSlotsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	window, ok := parseTimePair(req.DayStart, req.DayEnd)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "day_start must precede day_end (format: 2006-01-02 15:04:05 UTC)"})
	}

	plan, err := utils.BuildSlotPlan(window.Start, window.End, req.SlotMinutes, req.BreakMinutes)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slot plan produces no slots"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if _, err := h.ownedVenue(ctx, c, venueID); err != nil {
		return err
	}
	uid, _ := getUserID(c)

	created, skipped, err := h.Slots.BulkGenerate(ctx, venueID, uid, plan)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "generate slots failed"})
	}
	out := make([]slotResp, 0, len(created))
	for i := range created {
		out = append(out, toSlotResp(&created[i]))
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"created": out,
		"skipped": skipped,
	})
}

// DeleteSlots removes the listed slots with their assignment history.
func (h *ScheduleHandler) DeleteSlots(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req slotIDsReq
	if err := c.Bind(&req); err != nil || len(req.SlotIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slot_ids required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	deleted, skipped, err := h.Slots.BulkDelete(ctx, uid, req.SlotIDs)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete slots failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"deleted": deleted,
		"skipped": skipped,
	})
}

// SetSlotStatus activates or deactivates the listed slots.  Deactivation is
// refused per slot while an active assignment references it.
func (h *ScheduleHandler) SetSlotStatus(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req slotStatusReq
	if err := c.Bind(&req); err != nil || len(req.SlotIDs) == 0 || req.IsActive == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slot_ids and is_active required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	updated, skipped, err := h.Slots.BulkSetStatus(ctx, uid, req.SlotIDs, *req.IsActive)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update slot status failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"updated": updated,
		"skipped": skipped,
	})
}
