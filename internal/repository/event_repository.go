package repository

import (
	"context"
	"database/sql"
	"errors"
)

// Event mirrors the `events` table.  An event is the schedulable subject:
// it gets bound to venue slots through assignments.
type Event struct {
	ID          uint64
	OwnerID     uint64
	Title       string
	Description *string // nullable
	IsActive    bool
	CreatedAt   string
	UpdatedAt   string
}

// EventRepo manages persistence for events.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo constructs an EventRepo with the given DB handle.
func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{db: db}
}

// Create inserts a new event and fills the generated ID and DB defaults.
func (r *EventRepo) Create(ctx context.Context, e *Event) error {
	const q = `INSERT INTO events (owner_id, title, description) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, e.OwnerID, e.Title, e.Description)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	const sel = `SELECT id, owner_id, title, description, is_active, created_at, updated_at
	             FROM events WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, e.ID).Scan(
		&e.ID, &e.OwnerID, &e.Title, &e.Description, &e.IsActive, &e.CreatedAt, &e.UpdatedAt,
	)
}

// GetByID retrieves an event by primary key.  Returns ErrEventNotFound when
// no row matches.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*Event, error) {
	const q = `SELECT id, owner_id, title, description, is_active, created_at, updated_at
	           FROM events WHERE id = ?`
	var e Event
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&e.ID, &e.OwnerID, &e.Title, &e.Description, &e.IsActive, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &e, nil
}

// GetByIDTx is the transactional variant of GetByID used inside assignment
// flows so the event state read participates in the caller's transaction.
func (r *EventRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*Event, error) {
	const q = `SELECT id, owner_id, title, description, is_active, created_at, updated_at
	           FROM events WHERE id = ?`
	var e Event
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&e.ID, &e.OwnerID, &e.Title, &e.Description, &e.IsActive, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListByOwner returns all events of an owner ordered by id.
func (r *EventRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]Event, error) {
	const q = `SELECT id, owner_id, title, description, is_active, created_at, updated_at
	           FROM events WHERE owner_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID, &e.OwnerID, &e.Title, &e.Description, &e.IsActive, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update modifies title, description and active flag of an owned event.
// Returns ErrEventNotFound, ErrForbidden, or ErrNoChange as appropriate.
func (r *EventRepo) Update(ctx context.Context, id, ownerID uint64, title string, description *string, isActive bool) error {
	var dbOwnerID uint64
	err := r.db.QueryRowContext(ctx, `SELECT owner_id FROM events WHERE id = ?`, id).Scan(&dbOwnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		return err
	}
	if dbOwnerID != ownerID {
		return ErrForbidden
	}
	const q = `UPDATE events SET title = ?, description = ?, is_active = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, title, description, isActive, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoChange
	}
	return nil
}

// DeleteByIDAndOwner removes an owned event when no active assignment
// references it.
func (r *EventRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			_ = tx.Commit()
		}
	}()
	var dbOwnerID uint64
	err = tx.QueryRowContext(ctx, `SELECT owner_id FROM events WHERE id = ?`, id).Scan(&dbOwnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrEventNotFound
		}
		return err
	}
	if dbOwnerID != ownerID {
		err = ErrForbidden
		return err
	}
	var live int
	if err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assignments WHERE event_id = ? AND is_active = TRUE`, id,
	).Scan(&live); err != nil {
		return err
	}
	if live > 0 {
		err = ErrSlotInUse
		return err
	}
	// Inactive assignment history goes with the event; tickets first for FK
	// order.
	if _, err = tx.ExecContext(ctx,
		`DELETE t FROM tickets t JOIN assignments a ON a.id = t.assignment_id WHERE a.event_id = ?`, id,
	); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM assignments WHERE event_id = ?`, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return err
	}
	return nil
}
