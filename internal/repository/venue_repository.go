// Package repository contains data access logic for the scheduling domain.
// This file defines the Venue record and its repository.  Venues are mostly
// read by the engine: the capacity column bounds ticket generation and the
// owner_id column anchors every ownership check, but the engine never
// mutates capacity.
package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"       // errors for sentinel comparisons
)

// Venue mirrors the `venues` table.
// NOTE: Time strings are stored in DB format "2006-01-02 15:04:05" (UTC).
type Venue struct {
	ID        uint64 // primary key
	OwnerID   uint64 // owning organizer's user ID
	City      string // free-text city name
	Name      string // venue name, unique per owner
	Capacity  uint32 // fixed max active tickets per assignment
	IsActive  bool   // venue open for scheduling
	CreatedAt string
	UpdatedAt string
}

// VenueRepo manages persistence for venues.
type VenueRepo struct {
	db *sql.DB
}

// NewVenueRepo constructs a VenueRepo with the given DB handle.
func NewVenueRepo(db *sql.DB) *VenueRepo {
	return &VenueRepo{db: db}
}

// DB exposes the underlying sql.DB so callers can begin transactions
// spanning multiple repositories.
func (r *VenueRepo) DB() *sql.DB {
	return r.db
}

// Create inserts a new venue and assigns the generated ID back to the
// struct.  Capacity must be positive; the handler validates that before
// calling.
func (r *VenueRepo) Create(ctx context.Context, v *Venue) error {
	const q = `INSERT INTO venues (owner_id, city, name, capacity) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, v.OwnerID, v.City, v.Name, v.Capacity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	// Read the row back to populate DB defaults (is_active, timestamps).
	const sel = `SELECT id, owner_id, city, name, capacity, is_active, created_at, updated_at
	             FROM venues WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, v.ID).Scan(
		&v.ID, &v.OwnerID, &v.City, &v.Name, &v.Capacity, &v.IsActive, &v.CreatedAt, &v.UpdatedAt,
	)
}

// GetByID retrieves a venue regardless of owner.  Returns ErrVenueNotFound
// when no row matches.
func (r *VenueRepo) GetByID(ctx context.Context, id uint64) (*Venue, error) {
	const q = `SELECT id, owner_id, city, name, capacity, is_active, created_at, updated_at
	           FROM venues WHERE id = ?`
	var v Venue
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&v.ID, &v.OwnerID, &v.City, &v.Name, &v.Capacity, &v.IsActive, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVenueNotFound
		}
		return nil, err
	}
	return &v, nil
}

// GetByIDAndOwner retrieves a venue only if it belongs to the given owner.
// Used to enforce resource ownership on every mutating schedule call.
func (r *VenueRepo) GetByIDAndOwner(ctx context.Context, id, ownerID uint64) (*Venue, error) {
	const q = `SELECT id, owner_id, city, name, capacity, is_active, created_at, updated_at
	           FROM venues WHERE id = ? AND owner_id = ?`
	var v Venue
	err := r.db.QueryRowContext(ctx, q, id, ownerID).Scan(
		&v.ID, &v.OwnerID, &v.City, &v.Name, &v.Capacity, &v.IsActive, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVenueNotFound
		}
		return nil, err
	}
	return &v, nil
}

// ListByOwner returns all venues of an owner ordered by id.
func (r *VenueRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]Venue, error) {
	const q = `SELECT id, owner_id, city, name, capacity, is_active, created_at, updated_at
	           FROM venues WHERE owner_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Venue
	for rows.Next() {
		var v Venue
		if err := rows.Scan(
			&v.ID, &v.OwnerID, &v.City, &v.Name, &v.Capacity, &v.IsActive, &v.CreatedAt, &v.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteByIDAndOwner removes a venue owned by the caller.  Returns
// sql.ErrNoRows when the venue is missing, ErrForbidden when it belongs to
// another owner, and ErrSlotInUse when any of its slots still has an
// active assignment.
func (r *VenueRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) error {
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
	err = tx.QueryRowContext(ctx, `SELECT owner_id FROM venues WHERE id = ?`, id).Scan(&dbOwnerID)
	if err != nil {
		return err
	}
	if dbOwnerID != ownerID {
		err = ErrForbidden
		return err
	}
	var live int
	if err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assignments WHERE venue_id = ? AND is_active = TRUE`, id,
	).Scan(&live); err != nil {
		return err
	}
	if live > 0 {
		err = ErrSlotInUse
		return err
	}
	// FK order: tickets hang off assignments, assignments off slots.
	if _, err = tx.ExecContext(ctx,
		`DELETE t FROM tickets t JOIN assignments a ON a.id = t.assignment_id WHERE a.venue_id = ?`, id,
	); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM assignments WHERE venue_id = ?`, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM venue_slots WHERE venue_id = ?`, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM venues WHERE id = ?`, id); err != nil {
		return err
	}
	return nil
}
