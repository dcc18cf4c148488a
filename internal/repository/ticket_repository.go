package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mkhosravi/venue-scheduler/internal/utils"
)

// Ticket categories.  Stored as VARCHAR in MySQL; handlers validate before
// insert so the repository never sees other values.
const (
	CategoryRegular = "REGULAR"
	CategoryVIP     = "VIP"
	CategoryPremium = "PREMIUM"
)

// Ticket mirrors the `tickets` table.  location is always the concatenation
// of row_label and seat_column ("A1", "ZZ14") and is unique per assignment
// together with them.  is_vacant means purchasable; an inactive ticket is
// never vacant.
type Ticket struct {
	ID           uint64
	AssignmentID uint64
	RowLabel     string
	SeatColumn   uint32
	Location     string
	Category     string
	PriceCents   uint32
	IsVacant     bool
	IsActive     bool
	BookingRef   *string // nullable, set when a seat is taken
	CreatedAt    string
	UpdatedAt    string
}

// SkippedTicket records one ticket a bulk update declined, with reason.
type SkippedTicket struct {
	ID     uint64 `json:"id"`
	Reason string `json:"reason"`
}

// TicketUpdate carries the optional fields of a bulk ticket update.  Nil
// means leave unchanged.  Deactivation wins over everything else: when
// IsActive is set false, the ticket is also marked non-vacant and its
// booking reference is cleared regardless of the other fields.
type TicketUpdate struct {
	Category   *string
	PriceCents *uint32
	IsVacant   *bool
	IsActive   *bool
	BookingRef *string
}

// TicketRepo manages persistence for tickets.  Creation paths are *Tx
// variants because the capacity check and the insert must share the caller's
// transaction, with the assignment row locked as the serialization point.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo constructs a TicketRepo with the given DB handle.
func NewTicketRepo(db *sql.DB) *TicketRepo {
	return &TicketRepo{db: db}
}

// DB exposes the underlying handle for cross-repository transactions.
func (r *TicketRepo) DB() *sql.DB {
	return r.db
}

// LockAssignmentTx takes a row lock on the assignment so concurrent ticket
// writes under the same assignment serialize.
func (r *TicketRepo) LockAssignmentTx(ctx context.Context, tx *sql.Tx, assignmentID uint64) error {
	var id uint64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM assignments WHERE id = ? FOR UPDATE`, assignmentID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAssignmentNotFound
	}
	return err
}

// probeLocationTx looks for a ticket at (rowLabel, seatColumn) under the
// assignment.  Returns the occupant's active flag, or found=false.
func (r *TicketRepo) probeLocationTx(ctx context.Context, tx *sql.Tx, assignmentID uint64, rowLabel string, seatColumn uint32) (found, active bool, err error) {
	err = tx.QueryRowContext(ctx,
		`SELECT is_active FROM tickets WHERE assignment_id = ? AND row_label = ? AND seat_column = ?`,
		assignmentID, rowLabel, seatColumn,
	).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, active, nil
}

// countActiveTx returns the live active-ticket count for an assignment.
func (r *TicketRepo) countActiveTx(ctx context.Context, tx *sql.Tx, assignmentID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE assignment_id = ? AND is_active = TRUE`, assignmentID,
	).Scan(&n)
	return n, err
}

// CreateTx inserts one ticket after checking the location is free and the
// venue capacity allows one more active ticket.  The caller must have locked
// the assignment row first.
func (r *TicketRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *Ticket, capacity uint32) error {
	found, active, err := r.probeLocationTx(ctx, tx, t.AssignmentID, t.RowLabel, t.SeatColumn)
	if err != nil {
		return err
	}
	if found {
		if active {
			return ErrDuplicateLocation
		}
		return ErrInactiveAtLocation
	}

	n, err := r.countActiveTx(ctx, tx, t.AssignmentID)
	if err != nil {
		return err
	}
	if uint32(n)+1 > capacity {
		return ErrCapacityExceeded
	}

	t.Location = t.RowLabel + utils.FormatSeatColumn(t.SeatColumn)
	const q = `INSERT INTO tickets (assignment_id, row_label, seat_column, location, category, price_cents)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, t.AssignmentID, t.RowLabel, t.SeatColumn, t.Location, t.Category, t.PriceCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	t.IsVacant = true
	t.IsActive = true
	return nil
}

// GenerateBlockTx inserts a rectangular block of tickets spanning the row
// ordinals rowFrom..rowTo and columns colFrom..colTo under the assignment.
// Locations already holding a ticket (active or not) are skipped and
// reported.  If the surviving inserts would push the active count past the
// venue capacity the whole batch is refused with ErrCapacityExceeded; the
// caller rolls back.
func (r *TicketRepo) GenerateBlockTx(ctx context.Context, tx *sql.Tx, assignmentID uint64, rowFrom, rowTo, colFrom, colTo int, category string, priceCents, capacity uint32) (created []Ticket, skippedLocs []string, err error) {
	activeCount, err := r.countActiveTx(ctx, tx, assignmentID)
	if err != nil {
		return nil, nil, err
	}

	const ins = `INSERT INTO tickets (assignment_id, row_label, seat_column, location, category, price_cents)
	             VALUES (?, ?, ?, ?, ?, ?)`
	for ri := rowFrom; ri <= rowTo; ri++ {
		rowLabel := utils.EncodeRowLabel(ri)
		for ci := colFrom; ci <= colTo; ci++ {
			col := uint32(ci)
			found, _, perr := r.probeLocationTx(ctx, tx, assignmentID, rowLabel, col)
			if perr != nil {
				return nil, nil, perr
			}
			loc := rowLabel + utils.FormatSeatColumn(col)
			if found {
				skippedLocs = append(skippedLocs, loc)
				continue
			}
			activeCount++
			if uint32(activeCount) > capacity {
				return nil, nil, ErrCapacityExceeded
			}
			res, ierr := tx.ExecContext(ctx, ins, assignmentID, rowLabel, col, loc, category, priceCents)
			if ierr != nil {
				return nil, nil, ierr
			}
			id, ierr := res.LastInsertId()
			if ierr != nil {
				return nil, nil, ierr
			}
			created = append(created, Ticket{
				ID:           uint64(id),
				AssignmentID: assignmentID,
				RowLabel:     rowLabel,
				SeatColumn:   col,
				Location:     loc,
				Category:     category,
				PriceCents:   priceCents,
				IsVacant:     true,
				IsActive:     true,
			})
		}
	}
	return created, skippedLocs, nil
}

// GetByID retrieves a ticket by primary key.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (*Ticket, error) {
	const q = `SELECT id, assignment_id, row_label, seat_column, location, category, price_cents,
	                  is_vacant, is_active, booking_ref, created_at, updated_at
	           FROM tickets WHERE id = ?`
	var t Ticket
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&t.ID, &t.AssignmentID, &t.RowLabel, &t.SeatColumn, &t.Location, &t.Category, &t.PriceCents,
		&t.IsVacant, &t.IsActive, &t.BookingRef, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByAssignment returns all tickets of an assignment ordered by row then
// column, the natural reading order of a seat map.
func (r *TicketRepo) ListByAssignment(ctx context.Context, assignmentID uint64) ([]Ticket, error) {
	const q = `SELECT id, assignment_id, row_label, seat_column, location, category, price_cents,
	                  is_vacant, is_active, booking_ref, created_at, updated_at
	           FROM tickets WHERE assignment_id = ?
	           ORDER BY CHAR_LENGTH(row_label), row_label, seat_column`
	rows, err := r.db.QueryContext(ctx, q, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Ticket
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(
			&t.ID, &t.AssignmentID, &t.RowLabel, &t.SeatColumn, &t.Location, &t.Category, &t.PriceCents,
			&t.IsVacant, &t.IsActive, &t.BookingRef, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// BulkUpdateTx applies upd to the listed tickets of one assignment.  Items
// failing a precondition are reported in skipped and the rest commit; only
// storage errors abort.  Reactivating a ticket re-checks venue capacity.
func (r *TicketRepo) BulkUpdateTx(ctx context.Context, tx *sql.Tx, assignmentID uint64, ids []uint64, upd TicketUpdate, capacity uint32) (updated []uint64, skipped []SkippedTicket, err error) {
	for _, id := range ids {
		var curActive bool
		var curAssignment uint64
		qerr := tx.QueryRowContext(ctx,
			`SELECT assignment_id, is_active FROM tickets WHERE id = ? FOR UPDATE`, id,
		).Scan(&curAssignment, &curActive)
		if errors.Is(qerr, sql.ErrNoRows) {
			skipped = append(skipped, SkippedTicket{ID: id, Reason: "ticket not found"})
			continue
		}
		if qerr != nil {
			return nil, nil, qerr
		}
		if curAssignment != assignmentID {
			skipped = append(skipped, SkippedTicket{ID: id, Reason: ErrForbidden.Error()})
			continue
		}

		if upd.IsActive != nil && *upd.IsActive && !curActive {
			n, cerr := r.countActiveTx(ctx, tx, assignmentID)
			if cerr != nil {
				return nil, nil, cerr
			}
			if uint32(n)+1 > capacity {
				skipped = append(skipped, SkippedTicket{ID: id, Reason: ErrCapacityExceeded.Error()})
				continue
			}
		}

		set := ""
		args := []any{}
		add := func(col string, v any) {
			if set != "" {
				set += ", "
			}
			set += col + " = ?"
			args = append(args, v)
		}
		if upd.Category != nil {
			add("category", *upd.Category)
		}
		if upd.PriceCents != nil {
			add("price_cents", *upd.PriceCents)
		}
		if upd.IsActive != nil && !*upd.IsActive {
			// Deactivation clears everything purchase-related.
			add("is_active", false)
			add("is_vacant", false)
			add("booking_ref", nil)
		} else {
			// Effective active state after this update; an inactive ticket
			// must never be marked vacant.
			willBeActive := curActive || (upd.IsActive != nil && *upd.IsActive)
			if upd.IsVacant != nil && *upd.IsVacant && !willBeActive {
				skipped = append(skipped, SkippedTicket{ID: id, Reason: "inactive ticket cannot be vacant"})
				continue
			}
			if upd.IsActive != nil {
				add("is_active", *upd.IsActive)
			}
			if upd.IsVacant != nil {
				add("is_vacant", *upd.IsVacant)
			}
			if upd.BookingRef != nil {
				add("booking_ref", *upd.BookingRef)
			}
		}
		if set == "" {
			skipped = append(skipped, SkippedTicket{ID: id, Reason: ErrNoChange.Error()})
			continue
		}
		args = append(args, id)
		if _, qerr := tx.ExecContext(ctx, `UPDATE tickets SET `+set+` WHERE id = ?`, args...); qerr != nil {
			return nil, nil, qerr
		}
		updated = append(updated, id)
	}
	return updated, skipped, nil
}

// BulkDeleteTx hard-deletes the listed tickets of one assignment.  Missing
// or foreign tickets are reported in skipped.
func (r *TicketRepo) BulkDeleteTx(ctx context.Context, tx *sql.Tx, assignmentID uint64, ids []uint64) (deleted []uint64, skipped []SkippedTicket, err error) {
	for _, id := range ids {
		var curAssignment uint64
		qerr := tx.QueryRowContext(ctx,
			`SELECT assignment_id FROM tickets WHERE id = ? FOR UPDATE`, id,
		).Scan(&curAssignment)
		if errors.Is(qerr, sql.ErrNoRows) {
			skipped = append(skipped, SkippedTicket{ID: id, Reason: "ticket not found"})
			continue
		}
		if qerr != nil {
			return nil, nil, qerr
		}
		if curAssignment != assignmentID {
			skipped = append(skipped, SkippedTicket{ID: id, Reason: ErrForbidden.Error()})
			continue
		}
		if _, qerr := tx.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id); qerr != nil {
			return nil, nil, qerr
		}
		deleted = append(deleted, id)
	}
	return deleted, skipped, nil
}
