package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mkhosravi/venue-scheduler/internal/queue"
	"github.com/mkhosravi/venue-scheduler/internal/repository"
	queue_publisher "github.com/mkhosravi/venue-scheduler/internal/service"
	"github.com/mkhosravi/venue-scheduler/internal/utils"
)

// ----- DTOs -----

type assignReq struct {
	EventID uint64 `json:"event_id"`
	SlotID  uint64 `json:"slot_id"`
}

// Unassign names the binding explicitly: the assignment id must match the
// (event, slot) pair it claims to remove.
type unassignReq struct {
	AssignmentID uint64 `json:"assignment_id"`
	EventID      uint64 `json:"event_id"`
	SlotID       uint64 `json:"slot_id"`
}

type bulkAssignReq struct {
	Items []assignReq `json:"items"`
}

type bulkUnassignReq struct {
	Items []unassignReq `json:"items"`
}

type assignmentResp struct {
	ID        uint64 `json:"id"`
	EventID   uint64 `json:"event_id"`
	SlotID    uint64 `json:"slot_id"`
	VenueID   uint64 `json:"venue_id"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

func toAssignmentResp(a *repository.Assignment) assignmentResp {
	return assignmentResp{
		ID: a.ID, EventID: a.EventID, SlotID: a.SlotID, VenueID: a.VenueID,
		IsActive: a.IsActive, CreatedAt: a.CreatedAt,
	}
}

// assignPrecondition reports whether err is a per-item precondition failure
// in assignment flows.  Everything else is a storage error and aborts the
// batch.
func assignPrecondition(err error) bool {
	return errors.Is(err, repository.ErrSlotNotFound) ||
		errors.Is(err, repository.ErrEventNotFound) ||
		errors.Is(err, repository.ErrAssignmentNotFound) ||
		errors.Is(err, repository.ErrForbidden) ||
		errors.Is(err, repository.ErrSlotInactive) ||
		errors.Is(err, repository.ErrSlotAlreadyAssigned) ||
		errors.Is(err, repository.ErrSlotExpired) ||
		errors.Is(err, repository.ErrSlotEnded) ||
		errors.Is(err, repository.ErrDuplicateAssignment)
}

func assignStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrSlotNotFound),
		errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, repository.ErrAssignmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden
	case assignPrecondition(err):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// assignOneTx runs the full precondition chain for one (event, slot) pair
// inside tx: slot lock, venue ownership, event ownership and state, then
// the insert and the vacancy recomputation.
func (h *ScheduleHandler) assignOneTx(ctx context.Context, tx *stdTx, uid uint64, item assignReq, now time.Time) (*repository.Assignment, *repository.VenueSlot, error) {
	slot, err := h.Slots.GetByIDForUpdateTx(ctx, tx.tx, item.SlotID)
	if err != nil {
		return nil, nil, err
	}
	venue, err := h.Venues.GetByID(ctx, slot.VenueID)
	if err != nil {
		return nil, nil, err
	}
	if venue.OwnerID != uid {
		return nil, nil, repository.ErrForbidden
	}
	ev, err := h.Events.GetByIDTx(ctx, tx.tx, item.EventID)
	if err != nil {
		return nil, nil, err
	}
	if ev.OwnerID != uid {
		return nil, nil, repository.ErrForbidden
	}
	if !ev.IsActive {
		return nil, nil, repository.ErrEventNotFound
	}

	a, err := h.Assignments.AssignTx(ctx, tx.tx, item.EventID, slot, uid, now)
	if err != nil {
		return nil, nil, err
	}
	if err := h.Slots.SetVacancyTx(ctx, tx.tx, slot.ID); err != nil {
		return nil, nil, err
	}
	return a, slot, nil
}

// unassignOneTx removes one binding inside tx and recomputes vacancy.
func (h *ScheduleHandler) unassignOneTx(ctx context.Context, tx *stdTx, uid uint64, item unassignReq, now time.Time) error {
	slot, err := h.Slots.GetByIDForUpdateTx(ctx, tx.tx, item.SlotID)
	if err != nil {
		return err
	}
	venue, err := h.Venues.GetByID(ctx, slot.VenueID)
	if err != nil {
		return err
	}
	if venue.OwnerID != uid {
		return repository.ErrForbidden
	}
	if err := h.Assignments.UnassignTx(ctx, tx.tx, item.AssignmentID, item.EventID, slot, now); err != nil {
		return err
	}
	return h.Slots.SetVacancyTx(ctx, tx.tx, slot.ID)
}

// publishCreated emits the broker event for a committed assignment.  Runs
// detached: a broker outage must not fail the request.
func (h *ScheduleHandler) publishCreated(a *repository.Assignment, slot *repository.VenueSlot, eventTitle, venueName string) {
	ev := queue.AssignmentCreatedEvent{
		AssignmentID: a.ID,
		EventID:      a.EventID,
		EventTitle:   eventTitle,
		SlotID:       a.SlotID,
		VenueID:      a.VenueID,
		VenueName:    venueName,
		StartsAt:     slot.StartsAt,
		EndsAt:       slot.EndsAt,
		CreatedBy:    a.CreatedBy,
		CreatedAt:    a.CreatedAt,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = queue_publisher.PublishAssignmentCreated(ctx, ev)
	}()
}

// Assign binds one event to one slot.
func (h *ScheduleHandler) Assign(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req assignReq
	if err := c.Bind(&req); err != nil || req.EventID == 0 || req.SlotID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id and slot_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := beginTx(ctx, h.Slots.DB())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin tx failed"})
	}
	defer tx.rollbackUnlessCommitted()

	now := time.Now().UTC()
	a, slot, err := h.assignOneTx(ctx, tx, uid, req, now)
	if err != nil {
		return c.JSON(assignStatus(err), echo.Map{"error": err.Error()})
	}
	ev, _ := h.Events.GetByIDTx(ctx, tx.tx, req.EventID)
	venue, _ := h.Venues.GetByID(ctx, slot.VenueID)
	if err := tx.commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}

	if ev != nil && venue != nil {
		h.publishCreated(a, slot, ev.Title, venue.Name)
	}
	return c.JSON(http.StatusCreated, toAssignmentResp(a))
}

// Unassign removes the binding between an event and a slot.  The row is
// hard-deleted; once a slot's end time has passed its history is frozen.
func (h *ScheduleHandler) Unassign(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req unassignReq
	if err := c.Bind(&req); err != nil || req.AssignmentID == 0 || req.EventID == 0 || req.SlotID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "assignment_id, event_id and slot_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := beginTx(ctx, h.Slots.DB())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin tx failed"})
	}
	defer tx.rollbackUnlessCommitted()

	if err := h.unassignOneTx(ctx, tx, uid, req, time.Now().UTC()); err != nil {
		return c.JSON(assignStatus(err), echo.Map{"error": err.Error()})
	}
	if err := tx.commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// BulkAssign binds many (event, slot) pairs in one transaction.  A pair
// failing a precondition is reported and skipped; the rest still commit.
// Storage errors roll back everything.
func (h *ScheduleHandler) BulkAssign(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req bulkAssignReq
	if err := c.Bind(&req); err != nil || len(req.Items) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "items required"})
	}
	for _, it := range req.Items {
		if it.EventID == 0 || it.SlotID == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "every item needs event_id and slot_id"})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	tx, err := beginTx(ctx, h.Slots.DB())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin tx failed"})
	}
	defer tx.rollbackUnlessCommitted()

	now := time.Now().UTC()
	type published struct {
		a          *repository.Assignment
		slot       *repository.VenueSlot
		eventTitle string
		venueName  string
	}
	var (
		created []assignmentResp
		skipped []repository.SkippedAssignment
		toSend  []published
	)
	for _, item := range req.Items {
		a, slot, err := h.assignOneTx(ctx, tx, uid, item, now)
		if err != nil {
			if assignPrecondition(err) {
				skipped = append(skipped, repository.SkippedAssignment{
					EventID: item.EventID, SlotID: item.SlotID, Reason: err.Error(),
				})
				continue
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "bulk assign failed"})
		}
		created = append(created, toAssignmentResp(a))
		ev, _ := h.Events.GetByIDTx(ctx, tx.tx, item.EventID)
		venue, _ := h.Venues.GetByID(ctx, slot.VenueID)
		if ev != nil && venue != nil {
			toSend = append(toSend, published{a: a, slot: slot, eventTitle: ev.Title, venueName: venue.Name})
		}
	}
	if err := tx.commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}

	for _, p := range toSend {
		h.publishCreated(p.a, p.slot, p.eventTitle, p.venueName)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"created": created,
		"skipped": skipped,
	})
}

// BulkUnassign removes many bindings in one transaction with the same
// partial-success contract as BulkAssign.
func (h *ScheduleHandler) BulkUnassign(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req bulkUnassignReq
	if err := c.Bind(&req); err != nil || len(req.Items) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "items required"})
	}
	for _, it := range req.Items {
		if it.AssignmentID == 0 || it.EventID == 0 || it.SlotID == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "every item needs assignment_id, event_id and slot_id"})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	tx, err := beginTx(ctx, h.Slots.DB())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin tx failed"})
	}
	defer tx.rollbackUnlessCommitted()

	now := time.Now().UTC()
	var (
		removed []unassignReq
		skipped []repository.SkippedAssignment
	)
	for _, item := range req.Items {
		if err := h.unassignOneTx(ctx, tx, uid, item, now); err != nil {
			if assignPrecondition(err) {
				skipped = append(skipped, repository.SkippedAssignment{
					EventID: item.EventID, SlotID: item.SlotID, Reason: err.Error(),
				})
				continue
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "bulk unassign failed"})
		}
		removed = append(removed, item)
	}
	if err := tx.commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"removed": removed,
		"skipped": skipped,
	})
}

// GetAssignment looks up one binding by the (event, slot) pair.
func (h *ScheduleHandler) GetAssignment(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, err1 := strconv.ParseUint(c.QueryParam("event_id"), 10, 64)
	slotID, err2 := strconv.ParseUint(c.QueryParam("slot_id"), 10, 64)
	if err1 != nil || err2 != nil || eventID == 0 || slotID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id and slot_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Assignments.GetByPair(ctx, eventID, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrAssignmentNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "assignment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load assignment failed"})
	}
	venue, err := h.Venues.GetByID(ctx, a.VenueID)
	if err != nil || venue.OwnerID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, toAssignmentResp(a))
}

// ListEventAssignments returns the schedule of one owned event.
func (h *ScheduleHandler) ListEventAssignments(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev, err := h.Events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event failed"})
	}
	if ev.OwnerID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	list, err := h.Assignments.ListByEvent(ctx, eventID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list assignments failed"})
	}
	out := make([]assignmentResp, 0, len(list))
	for i := range list {
		out = append(out, toAssignmentResp(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"assignments": out})
}

// ListVenueAssignments returns every binding in one owned venue.
func (h *ScheduleHandler) ListVenueAssignments(c echo.Context) error {
	venueID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.ownedVenue(ctx, c, venueID); err != nil {
		return err
	}

	list, err := h.Assignments.ListByVenue(ctx, venueID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list assignments failed"})
	}
	out := make([]assignmentResp, 0, len(list))
	for i := range list {
		out = append(out, toAssignmentResp(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"assignments": out})
}

// CheckAvailability probes whether a time range is free on a venue without
// writing anything.  Any storage error is reported as unavailable rather
// than guessed at.
func (h *ScheduleHandler) CheckAvailability(c echo.Context) error {
	venueID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
	}
	tr, ok := parseTimePair(c.QueryParam("starts_at"), c.QueryParam("ends_at"))
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must precede ends_at (format: 2006-01-02 15:04:05 UTC)"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	overlap, err := h.Slots.HasOverlap(ctx, venueID, utils.FormatDB(tr.Start), utils.FormatDB(tr.End))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "availability check failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"available": !overlap})
}
