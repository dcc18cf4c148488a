package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mkhosravi/venue-scheduler/internal/utils"
)

// VenueSlot mirrors the `venue_slots` table.  A slot is a half-open time
// range [starts_at, ends_at) on a venue.  is_vacant is derived state: it is
// TRUE exactly when no active assignment references the slot, and every
// write that touches assignments recomputes it inside the same transaction.
type VenueSlot struct {
	ID        uint64
	VenueID   uint64
	StartsAt  string // DB format "2006-01-02 15:04:05" (UTC)
	EndsAt    string
	IsActive  bool
	IsVacant  bool
	CreatedBy uint64
	CreatedAt string
	UpdatedAt string
}

// SkippedSlot records one slot a bulk operation declined to touch, with the
// reason why.  The containing operation still commits.
type SkippedSlot struct {
	ID     uint64 `json:"id"`
	Reason string `json:"reason"`
}

// SlotRepo manages persistence for venue slots.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo constructs a SlotRepo with the given DB handle.
func NewSlotRepo(db *sql.DB) *SlotRepo {
	return &SlotRepo{db: db}
}

// DB exposes the underlying handle for cross-repository transactions.
func (r *SlotRepo) DB() *sql.DB {
	return r.db
}

// hasOverlapTx reports whether any active slot on the venue intersects the
// half-open range [startsAt, endsAt).  excludeID skips one slot (the slot
// being updated); pass 0 to check against all slots.  Errors propagate so
// callers reject the write rather than assume the range is free.
func (r *SlotRepo) hasOverlapTx(ctx context.Context, tx *sql.Tx, venueID uint64, startsAt, endsAt string, excludeID uint64) (bool, error) {
	const q = `SELECT COUNT(*) FROM venue_slots
	           WHERE venue_id = ? AND is_active = TRUE AND id <> ?
	             AND NOT (ends_at <= ? OR starts_at >= ?)`
	var n int
	if err := tx.QueryRowContext(ctx, q, venueID, excludeID, startsAt, endsAt).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// HasOverlap is the standalone overlap probe used by the availability
// endpoint.  Same predicate as hasOverlapTx, outside any transaction.
func (r *SlotRepo) HasOverlap(ctx context.Context, venueID uint64, startsAt, endsAt string) (bool, error) {
	const q = `SELECT COUNT(*) FROM venue_slots
	           WHERE venue_id = ? AND is_active = TRUE
	             AND NOT (ends_at <= ? OR starts_at >= ?)`
	var n int
	if err := r.db.QueryRowContext(ctx, q, venueID, startsAt, endsAt).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Create inserts one slot after verifying its range does not overlap any
// active slot on the venue.  Check and insert share a transaction so a
// concurrent create cannot slip between them.  A slot created inactive
// stays out of the active set and skips the overlap check; it is validated
// when activated.
func (r *SlotRepo) Create(ctx context.Context, s *VenueSlot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if s.IsActive {
		overlap, err := r.hasOverlapTx(ctx, tx, s.VenueID, s.StartsAt, s.EndsAt, 0)
		if err != nil {
			return err
		}
		if overlap {
			return ErrSlotConflict
		}
	}

	const q = `INSERT INTO venue_slots (venue_id, starts_at, ends_at, is_active, created_by)
	           VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, s.VenueID, s.StartsAt, s.EndsAt, s.IsActive, s.CreatedBy)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)

	const sel = `SELECT id, venue_id, starts_at, ends_at, is_active, is_vacant, created_by, created_at, updated_at
	             FROM venue_slots WHERE id = ?`
	if err := tx.QueryRowContext(ctx, sel, s.ID).Scan(
		&s.ID, &s.VenueID, &s.StartsAt, &s.EndsAt, &s.IsActive, &s.IsVacant, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID retrieves a slot by primary key.
func (r *SlotRepo) GetByID(ctx context.Context, id uint64) (*VenueSlot, error) {
	const q = `SELECT id, venue_id, starts_at, ends_at, is_active, is_vacant, created_by, created_at, updated_at
	           FROM venue_slots WHERE id = ?`
	var s VenueSlot
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.VenueID, &s.StartsAt, &s.EndsAt, &s.IsActive, &s.IsVacant, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetByIDForUpdateTx loads a slot with a row lock (SELECT ... FOR UPDATE).
// Assignment flows take this lock first so concurrent assigns on the same
// slot serialize and the vacancy recomputation stays consistent.
func (r *SlotRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*VenueSlot, error) {
	const q = `SELECT id, venue_id, starts_at, ends_at, is_active, is_vacant, created_by, created_at, updated_at
	           FROM venue_slots WHERE id = ? FOR UPDATE`
	var s VenueSlot
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.VenueID, &s.StartsAt, &s.EndsAt, &s.IsActive, &s.IsVacant, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListByVenue returns all slots of a venue ordered by start time.
func (r *SlotRepo) ListByVenue(ctx context.Context, venueID uint64) ([]VenueSlot, error) {
	const q = `SELECT id, venue_id, starts_at, ends_at, is_active, is_vacant, created_by, created_at, updated_at
	           FROM venue_slots WHERE venue_id = ? ORDER BY starts_at`
	rows, err := r.db.QueryContext(ctx, q, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []VenueSlot
	for rows.Next() {
		var s VenueSlot
		if err := rows.Scan(
			&s.ID, &s.VenueID, &s.StartsAt, &s.EndsAt, &s.IsActive, &s.IsVacant, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateTimes rewrites a slot's time range and active flag.  The overlap
// check excludes the slot itself so an in-place shrink or shift of a lone
// slot always passes, and only runs when the slot ends up active (an
// inactive slot is outside the no-overlap set until reactivated).
// Deactivating a slot that still holds an active assignment is refused;
// retiming such a slot is allowed.
func (r *SlotRepo) UpdateTimes(ctx context.Context, id uint64, startsAt, endsAt string, isActive bool) (*VenueSlot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	s, err := r.GetByIDForUpdateTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if s.IsActive && !isActive {
		var live int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM assignments WHERE slot_id = ? AND is_active = TRUE`, id,
		).Scan(&live); err != nil {
			return nil, err
		}
		if live > 0 {
			return nil, ErrSlotInUse
		}
	}
	if isActive {
		overlap, err := r.hasOverlapTx(ctx, tx, s.VenueID, startsAt, endsAt, id)
		if err != nil {
			return nil, err
		}
		if overlap {
			return nil, ErrSlotConflict
		}
	}
	if s.StartsAt == startsAt && s.EndsAt == endsAt && s.IsActive == isActive {
		return nil, ErrNoChange
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE venue_slots SET starts_at = ?, ends_at = ?, is_active = ? WHERE id = ?`,
		startsAt, endsAt, isActive, id,
	); err != nil {
		return nil, err
	}
	s.StartsAt = startsAt
	s.EndsAt = endsAt
	s.IsActive = isActive
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return s, nil
}

// BulkGenerate inserts the precomputed plan of ranges for a venue in one
// transaction.  Ranges overlapping an existing active slot are skipped and
// counted; any storage error rolls the whole batch back.
func (r *SlotRepo) BulkGenerate(ctx context.Context, venueID, createdBy uint64, plan []utils.TimeRange) (created []VenueSlot, skipped int, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const ins = `INSERT INTO venue_slots (venue_id, starts_at, ends_at, created_by) VALUES (?, ?, ?, ?)`
	for _, tr := range plan {
		startsAt := utils.FormatDB(tr.Start)
		endsAt := utils.FormatDB(tr.End)
		// Check against both pre-existing slots and slots inserted earlier
		// in this same batch.
		overlap, oerr := r.hasOverlapTx(ctx, tx, venueID, startsAt, endsAt, 0)
		if oerr != nil {
			return nil, 0, oerr
		}
		if overlap {
			skipped++
			continue
		}
		res, ierr := tx.ExecContext(ctx, ins, venueID, startsAt, endsAt, createdBy)
		if ierr != nil {
			return nil, 0, ierr
		}
		id, ierr := res.LastInsertId()
		if ierr != nil {
			return nil, 0, ierr
		}
		created = append(created, VenueSlot{
			ID:        uint64(id),
			VenueID:   venueID,
			StartsAt:  startsAt,
			EndsAt:    endsAt,
			IsActive:  true,
			IsVacant:  true,
			CreatedBy: createdBy,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	committed = true
	return created, skipped, nil
}

// BulkSetStatus flips is_active for the listed slots of one owner's venues.
// Deactivating a slot with an active assignment is refused per slot and
// reported in skipped; other slots in the batch still commit.  Storage
// errors roll everything back.
func (r *SlotRepo) BulkSetStatus(ctx context.Context, ownerID uint64, ids []uint64, isActive bool) (updated []uint64, skipped []SkippedSlot, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, id := range ids {
		var venueOwner uint64
		var cur bool
		qerr := tx.QueryRowContext(ctx,
			`SELECT v.owner_id, s.is_active FROM venue_slots s
			 JOIN venues v ON v.id = s.venue_id
			 WHERE s.id = ? FOR UPDATE`, id,
		).Scan(&venueOwner, &cur)
		if errors.Is(qerr, sql.ErrNoRows) {
			skipped = append(skipped, SkippedSlot{ID: id, Reason: ErrSlotNotFound.Error()})
			continue
		}
		if qerr != nil {
			return nil, nil, qerr
		}
		if venueOwner != ownerID {
			skipped = append(skipped, SkippedSlot{ID: id, Reason: ErrForbidden.Error()})
			continue
		}
		if cur == isActive {
			skipped = append(skipped, SkippedSlot{ID: id, Reason: ErrNoChange.Error()})
			continue
		}
		if !isActive {
			var live int
			if qerr := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM assignments WHERE slot_id = ? AND is_active = TRUE`, id,
			).Scan(&live); qerr != nil {
				return nil, nil, qerr
			}
			if live > 0 {
				skipped = append(skipped, SkippedSlot{ID: id, Reason: ErrSlotInUse.Error()})
				continue
			}
		}
		if _, qerr := tx.ExecContext(ctx,
			`UPDATE venue_slots SET is_active = ? WHERE id = ?`, isActive, id,
		); qerr != nil {
			return nil, nil, qerr
		}
		updated = append(updated, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	committed = true
	return updated, skipped, nil
}

// BulkDelete removes the listed slots of one owner's venues together with
// their assignment history.  Deletion is unconditional once ownership is
// established; missing or foreign slots are reported in skipped.
func (r *SlotRepo) BulkDelete(ctx context.Context, ownerID uint64, ids []uint64) (deleted []uint64, skipped []SkippedSlot, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, id := range ids {
		var venueOwner uint64
		qerr := tx.QueryRowContext(ctx,
			`SELECT v.owner_id FROM venue_slots s
			 JOIN venues v ON v.id = s.venue_id
			 WHERE s.id = ? FOR UPDATE`, id,
		).Scan(&venueOwner)
		if errors.Is(qerr, sql.ErrNoRows) {
			skipped = append(skipped, SkippedSlot{ID: id, Reason: ErrSlotNotFound.Error()})
			continue
		}
		if qerr != nil {
			return nil, nil, qerr
		}
		if venueOwner != ownerID {
			skipped = append(skipped, SkippedSlot{ID: id, Reason: ErrForbidden.Error()})
			continue
		}
		// Tickets hang off assignments; clear them first so FK order holds.
		if _, qerr := tx.ExecContext(ctx,
			`DELETE t FROM tickets t JOIN assignments a ON a.id = t.assignment_id WHERE a.slot_id = ?`, id,
		); qerr != nil {
			return nil, nil, qerr
		}
		if _, qerr := tx.ExecContext(ctx, `DELETE FROM assignments WHERE slot_id = ?`, id); qerr != nil {
			return nil, nil, qerr
		}
		if _, qerr := tx.ExecContext(ctx, `DELETE FROM venue_slots WHERE id = ?`, id); qerr != nil {
			return nil, nil, qerr
		}
		deleted = append(deleted, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	committed = true
	return deleted, skipped, nil
}

// SetVacancyTx recomputes is_vacant for a slot from the live assignment
// count.  Must run inside the transaction that changed the assignments.
func (r *SlotRepo) SetVacancyTx(ctx context.Context, tx *sql.Tx, slotID uint64) error {
	const q = `UPDATE venue_slots SET is_vacant = NOT EXISTS (
	             SELECT 1 FROM assignments WHERE slot_id = venue_slots.id AND is_active = TRUE
	           ) WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, slotID)
	return err
}
