package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mkhosravi/venue-scheduler/internal/utils"
)

// Assignment mirrors the `assignments` table: one row binds an event to a
// venue slot.  venue_id is denormalized from the slot so capacity and
// ownership checks avoid a join.
type Assignment struct {
	ID        uint64
	EventID   uint64
	SlotID    uint64
	VenueID   uint64
	IsActive  bool
	CreatedBy uint64
	CreatedAt string
}

// SkippedAssignment records one item a bulk assign/unassign declined, with
// the failed precondition as reason.
type SkippedAssignment struct {
	EventID uint64 `json:"event_id"`
	SlotID  uint64 `json:"slot_id"`
	Reason  string `json:"reason"`
}

// AssignmentRepo manages persistence for event-to-slot assignments.  All
// mutating methods are *Tx variants: the handler owns the transaction, takes
// the slot row lock first, and calls SetVacancyTx before committing so the
// vacancy flag never drifts from the live assignment count.
type AssignmentRepo struct {
	db *sql.DB
}

// NewAssignmentRepo constructs an AssignmentRepo with the given DB handle.
func NewAssignmentRepo(db *sql.DB) *AssignmentRepo {
	return &AssignmentRepo{db: db}
}

// DB exposes the underlying handle for cross-repository transactions.
func (r *AssignmentRepo) DB() *sql.DB {
	return r.db
}

// AssignTx binds eventID to the given slot after walking the precondition
// chain.  The caller must already hold the slot row lock (FOR UPDATE) so the
// counts read here cannot change before commit.
//
// Chain, in order: slot active, slot not held by another event, slot start
// not in the past, pair not already bound.
func (r *AssignmentRepo) AssignTx(ctx context.Context, tx *sql.Tx, eventID uint64, slot *VenueSlot, createdBy uint64, now time.Time) (*Assignment, error) {
	if !slot.IsActive {
		return nil, ErrSlotInactive
	}

	var holder uint64
	err := tx.QueryRowContext(ctx,
		`SELECT event_id FROM assignments WHERE slot_id = ? AND is_active = TRUE LIMIT 1`, slot.ID,
	).Scan(&holder)
	switch {
	case err == nil:
		// "already assigned" means held by a different event; when the
		// requester itself holds the slot the expiry check still runs
		// first, then the pair check reports the duplicate.
		if holder != eventID {
			return nil, ErrSlotAlreadyAssigned
		}
	case errors.Is(err, sql.ErrNoRows):
		// slot is free, keep going
	default:
		return nil, err
	}

	startsAt, err := utils.ParseDB(slot.StartsAt)
	if err != nil {
		return nil, err
	}
	if !startsAt.After(now) {
		return nil, ErrSlotExpired
	}

	var dup int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assignments WHERE event_id = ? AND slot_id = ?`, eventID, slot.ID,
	).Scan(&dup); err != nil {
		return nil, err
	}
	if dup > 0 {
		return nil, ErrDuplicateAssignment
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO assignments (event_id, slot_id, venue_id, created_by) VALUES (?, ?, ?, ?)`,
		eventID, slot.ID, slot.VenueID, createdBy,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	a := &Assignment{
		ID:        uint64(id),
		EventID:   eventID,
		SlotID:    slot.ID,
		VenueID:   slot.VenueID,
		IsActive:  true,
		CreatedBy: createdBy,
		CreatedAt: utils.FormatDB(now),
	}
	return a, nil
}

// UnassignTx removes the binding identified by assignmentID between eventID
// and the given slot.  All three identifiers must match the same row; a
// stale or mismatched assignment id deletes nothing.  The row is
// hard-deleted: an unassigned pair leaves no trace and the pair may be
// re-bound later.  Slots whose end time has passed are immutable history.
func (r *AssignmentRepo) UnassignTx(ctx context.Context, tx *sql.Tx, assignmentID, eventID uint64, slot *VenueSlot, now time.Time) error {
	endsAt, err := utils.ParseDB(slot.EndsAt)
	if err != nil {
		return err
	}
	if !endsAt.After(now) {
		return ErrSlotEnded
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM assignments WHERE id = ? AND event_id = ? AND slot_id = ?`,
		assignmentID, eventID, slot.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

// GetByID retrieves an assignment by primary key.
func (r *AssignmentRepo) GetByID(ctx context.Context, id uint64) (*Assignment, error) {
	const q = `SELECT id, event_id, slot_id, venue_id, is_active, created_by, created_at
	           FROM assignments WHERE id = ?`
	var a Assignment
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&a.ID, &a.EventID, &a.SlotID, &a.VenueID, &a.IsActive, &a.CreatedBy, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

// GetByIDTx is the transactional variant of GetByID, used by ticket flows
// so the assignment state read participates in the caller's transaction.
func (r *AssignmentRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*Assignment, error) {
	const q = `SELECT id, event_id, slot_id, venue_id, is_active, created_by, created_at
	           FROM assignments WHERE id = ?`
	var a Assignment
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&a.ID, &a.EventID, &a.SlotID, &a.VenueID, &a.IsActive, &a.CreatedBy, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

// GetByPair retrieves the assignment binding an event to a slot.
func (r *AssignmentRepo) GetByPair(ctx context.Context, eventID, slotID uint64) (*Assignment, error) {
	const q = `SELECT id, event_id, slot_id, venue_id, is_active, created_by, created_at
	           FROM assignments WHERE event_id = ? AND slot_id = ?`
	var a Assignment
	err := r.db.QueryRowContext(ctx, q, eventID, slotID).Scan(
		&a.ID, &a.EventID, &a.SlotID, &a.VenueID, &a.IsActive, &a.CreatedBy, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListByEvent returns all assignments of an event ordered by slot start.
func (r *AssignmentRepo) ListByEvent(ctx context.Context, eventID uint64) ([]Assignment, error) {
	const q = `SELECT a.id, a.event_id, a.slot_id, a.venue_id, a.is_active, a.created_by, a.created_at
	           FROM assignments a JOIN venue_slots s ON s.id = a.slot_id
	           WHERE a.event_id = ? ORDER BY s.starts_at`
	return r.list(ctx, q, eventID)
}

// ListByVenue returns all assignments in a venue ordered by slot start.
func (r *AssignmentRepo) ListByVenue(ctx context.Context, venueID uint64) ([]Assignment, error) {
	const q = `SELECT a.id, a.event_id, a.slot_id, a.venue_id, a.is_active, a.created_by, a.created_at
	           FROM assignments a JOIN venue_slots s ON s.id = a.slot_id
	           WHERE a.venue_id = ? ORDER BY s.starts_at`
	return r.list(ctx, q, venueID)
}

func (r *AssignmentRepo) list(ctx context.Context, q string, arg any) ([]Assignment, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(
			&a.ID, &a.EventID, &a.SlotID, &a.VenueID, &a.IsActive, &a.CreatedBy, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
