package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mkhosravi/venue-scheduler/internal/repository"
	"github.com/mkhosravi/venue-scheduler/internal/utils"
)

// ----- DTOs -----

// Prices bind as signed ints so a negative value fails validation instead
// of wrapping around.
type createTicketReq struct {
	AssignmentID uint64 `json:"assignment_id"`
	RowLabel     string `json:"row_label"`
	SeatColumn   uint32 `json:"seat_column"`
	Category     string `json:"category"`
	PriceCents   int64  `json:"price_cents"`
}

// Row bounds are labels ("B".."D"), decoded to ordinals before hitting the
// repository; columns are plain numbers.
type generateTicketsReq struct {
	AssignmentID uint64 `json:"assignment_id"`
	RowStart     string `json:"row_start"`
	RowEnd       string `json:"row_end"`
	ColumnStart  uint32 `json:"column_start"`
	ColumnEnd    uint32 `json:"column_end"`
	Category     string `json:"category"`
	PriceCents   int64  `json:"price_cents"`
}

type updateTicketsReq struct {
	AssignmentID uint64   `json:"assignment_id"`
	TicketIDs    []uint64 `json:"ticket_ids"`
	Category     *string  `json:"category"`
	PriceCents   *int64   `json:"price_cents"`
	IsVacant     *bool    `json:"is_vacant"`
	IsActive     *bool    `json:"is_active"`
	BookingRef   *string  `json:"booking_ref"`
}

type deleteTicketsReq struct {
	AssignmentID uint64   `json:"assignment_id"`
	TicketIDs    []uint64 `json:"ticket_ids"`
}

type ticketResp struct {
	ID           uint64  `json:"id"`
	AssignmentID uint64  `json:"assignment_id"`
	RowLabel     string  `json:"row_label"`
	SeatColumn   uint32  `json:"seat_column"`
	Location     string  `json:"location"`
	Category     string  `json:"category"`
	PriceCents   uint32  `json:"price_cents"`
	IsVacant     bool    `json:"is_vacant"`
	IsActive     bool    `json:"is_active"`
	BookingRef   *string `json:"booking_ref,omitempty"`
}

func toTicketResp(t *repository.Ticket) ticketResp {
	return ticketResp{
		ID: t.ID, AssignmentID: t.AssignmentID, RowLabel: t.RowLabel, SeatColumn: t.SeatColumn,
		Location: t.Location, Category: t.Category, PriceCents: t.PriceCents,
		IsVacant: t.IsVacant, IsActive: t.IsActive, BookingRef: t.BookingRef,
	}
}

// ownedAssignmentTx locks the assignment row, verifies the caller owns the
// venue behind it, and returns the assignment together with the venue (for
// its capacity).
func (h *ScheduleHandler) ownedAssignmentTx(ctx context.Context, tx *stdTx, uid, assignmentID uint64) (*repository.Assignment, *repository.Venue, error) {
	if err := h.Tickets.LockAssignmentTx(ctx, tx.tx, assignmentID); err != nil {
		return nil, nil, err
	}
	a, err := h.Assignments.GetByIDTx(ctx, tx.tx, assignmentID)
	if err != nil {
		return nil, nil, err
	}
	venue, err := h.Venues.GetByID(ctx, a.VenueID)
	if err != nil {
		return nil, nil, err
	}
	if venue.OwnerID != uid {
		return nil, nil, repository.ErrForbidden
	}
	return a, venue, nil
}

func ticketStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrAssignmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrDuplicateLocation),
		errors.Is(err, repository.ErrInactiveAtLocation),
		errors.Is(err, repository.ErrCapacityExceeded):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// CreateTicket adds one addressable ticket under an assignment, bounded by
// the venue capacity.
func (h *ScheduleHandler) CreateTicket(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createTicketReq
	if err := c.Bind(&req); err != nil || req.AssignmentID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "assignment_id required"})
	}
	rowLabel, ok := utils.NormalizeRowLabel(strings.TrimSpace(req.RowLabel))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "row_label must be 1-3 letters"})
	}
	if req.SeatColumn < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_column must be positive"})
	}
	cat := strings.ToUpper(strings.TrimSpace(req.Category))
	if !validCategory(cat) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "category must be REGULAR, VIP or PREMIUM"})
	}
	if req.PriceCents < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price_cents must be non-negative"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := beginTx(ctx, h.Tickets.DB())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin tx failed"})
	}
	defer tx.rollbackUnlessCommitted()

	_, venue, err := h.ownedAssignmentTx(ctx, tx, uid, req.AssignmentID)
	if err != nil {
		return c.JSON(ticketStatus(err), echo.Map{"error": err.Error()})
	}

	t := repository.Ticket{
		AssignmentID: req.AssignmentID,
		RowLabel:     rowLabel,
		SeatColumn:   req.SeatColumn,
		Category:     cat,
		PriceCents:   uint32(req.PriceCents),
	}
	if err := h.Tickets.CreateTx(ctx, tx.tx, &t, venue.Capacity); err != nil {
		return c.JSON(ticketStatus(err), echo.Map{"error": err.Error()})
	}
	if err := tx.commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	return c.JSON(http.StatusCreated, toTicketResp(&t))
}

// BulkCreateTickets generates a rectangular block of tickets spanning a
// row-label range and a column range (e.g. B..D x 5..10).  Occupied
// locations are skipped; breaching the venue capacity aborts the whole
// batch.
func (h *ScheduleHandler) BulkCreateTickets(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req generateTicketsReq
	if err := c.Bind(&req); err != nil || req.AssignmentID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "assignment_id required"})
	}
	rowFrom, ok := utils.DecodeRowLabel(strings.TrimSpace(req.RowStart))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "row_start must be 1-3 letters"})
	}
	rowTo, ok := utils.DecodeRowLabel(strings.TrimSpace(req.RowEnd))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "row_end must be 1-3 letters"})
	}
	if rowFrom > rowTo {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "row_start must not come after row_end"})
	}
	if req.ColumnStart < 1 || req.ColumnStart > req.ColumnEnd {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "column range must be positive and ordered"})
	}
	cat := strings.ToUpper(strings.TrimSpace(req.Category))
	if !validCategory(cat) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "category must be REGULAR, VIP or PREMIUM"})
	}
	if req.PriceCents < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price_cents must be non-negative"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	tx, err := beginTx(ctx, h.Tickets.DB())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin tx failed"})
	}
	defer tx.rollbackUnlessCommitted()

	_, venue, err := h.ownedAssignmentTx(ctx, tx, uid, req.AssignmentID)
	if err != nil {
		return c.JSON(ticketStatus(err), echo.Map{"error": err.Error()})
	}

	created, skipped, err := h.Tickets.GenerateBlockTx(ctx, tx.tx, req.AssignmentID, rowFrom, rowTo, int(req.ColumnStart), int(req.ColumnEnd), cat, uint32(req.PriceCents), venue.Capacity)
	if err != nil {
		if errors.Is(err, repository.ErrCapacityExceeded) {
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "generate tickets failed"})
	}
	if err := tx.commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}

	out := make([]ticketResp, 0, len(created))
	for i := range created {
		out = append(out, toTicketResp(&created[i]))
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"created": out,
		"skipped": skipped,
	})
}

// UpdateTickets applies one change set to many tickets of an assignment.
// Setting is_active=false also clears is_vacant and booking_ref; the other
// fields in the request cannot override that.
func (h *ScheduleHandler) UpdateTickets(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req updateTicketsReq
	if err := c.Bind(&req); err != nil || req.AssignmentID == 0 || len(req.TicketIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "assignment_id and ticket_ids required"})
	}
	upd := repository.TicketUpdate{IsVacant: req.IsVacant, IsActive: req.IsActive, BookingRef: req.BookingRef}
	if req.Category != nil {
		cat := strings.ToUpper(strings.TrimSpace(*req.Category))
		if !validCategory(cat) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "category must be REGULAR, VIP or PREMIUM"})
		}
		upd.Category = &cat
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "price_cents must be non-negative"})
		}
		p := uint32(*req.PriceCents)
		upd.PriceCents = &p
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	tx, err := beginTx(ctx, h.Tickets.DB())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin tx failed"})
	}
	defer tx.rollbackUnlessCommitted()

	_, venue, err := h.ownedAssignmentTx(ctx, tx, uid, req.AssignmentID)
	if err != nil {
		return c.JSON(ticketStatus(err), echo.Map{"error": err.Error()})
	}

	updated, skipped, err := h.Tickets.BulkUpdateTx(ctx, tx.tx, req.AssignmentID, req.TicketIDs, upd, venue.Capacity)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update tickets failed"})
	}
	if err := tx.commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"updated": updated,
		"skipped": skipped,
	})
}

// DeleteTickets hard-deletes tickets of an assignment.
func (h *ScheduleHandler) DeleteTickets(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req deleteTicketsReq
	if err := c.Bind(&req); err != nil || req.AssignmentID == 0 || len(req.TicketIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "assignment_id and ticket_ids required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	tx, err := beginTx(ctx, h.Tickets.DB())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin tx failed"})
	}
	defer tx.rollbackUnlessCommitted()

	if _, _, err := h.ownedAssignmentTx(ctx, tx, uid, req.AssignmentID); err != nil {
		return c.JSON(ticketStatus(err), echo.Map{"error": err.Error()})
	}

	deleted, skipped, err := h.Tickets.BulkDeleteTx(ctx, tx.tx, req.AssignmentID, req.TicketIDs)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete tickets failed"})
	}
	if err := tx.commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"deleted": deleted,
		"skipped": skipped,
	})
}
