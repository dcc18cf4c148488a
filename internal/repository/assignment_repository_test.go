package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assignInTx runs one assign attempt in its own transaction, mirroring the
// handler flow: lock slot, assign, recompute vacancy, commit.
func assignInTx(t *testing.T, db *sql.DB, slots *SlotRepo, assignments *AssignmentRepo, eventID, slotID, actor uint64, now time.Time) (*Assignment, error) {
	t.Helper()
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	slot, err := slots.GetByIDForUpdateTx(ctx, tx, slotID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	a, err := assignments.AssignTx(ctx, tx, eventID, slot, actor, now)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	require.NoError(t, slots.SetVacancyTx(ctx, tx, slotID))
	require.NoError(t, tx.Commit())
	return a, nil
}

func unassignInTx(t *testing.T, db *sql.DB, slots *SlotRepo, assignments *AssignmentRepo, assignmentID, eventID, slotID uint64, now time.Time) error {
	t.Helper()
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	slot, err := slots.GetByIDForUpdateTx(ctx, tx, slotID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := assignments.UnassignTx(ctx, tx, assignmentID, eventID, slot, now); err != nil {
		_ = tx.Rollback()
		return err
	}
	require.NoError(t, slots.SetVacancyTx(ctx, tx, slotID))
	require.NoError(t, tx.Commit())
	return nil
}

func TestAssignUnassignKeepsVacancyConsistent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := seedOwner(t, db, "assign@test.local")
	venueID := seedVenue(t, db, owner, "Main Hall", 100)
	eventA := seedEvent(t, db, owner, "Concert A")
	eventB := seedEvent(t, db, owner, "Concert B")

	slots := NewSlotRepo(db)
	assignments := NewAssignmentRepo(db)

	s := VenueSlot{
		VenueID: venueID, CreatedBy: owner, IsActive: true,
		StartsAt: "2030-06-01 20:00:00", EndsAt: "2030-06-01 22:00:00",
	}
	require.NoError(t, slots.Create(ctx, &s))
	now := time.Date(2029, 1, 1, 12, 0, 0, 0, time.UTC)

	a, err := assignInTx(t, db, slots, assignments, eventA, s.ID, owner, now)
	require.NoError(t, err)
	assert.True(t, a.IsActive)

	got, err := slots.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, got.IsVacant, "assigned slot is not vacant")

	// A second event cannot take the same slot.
	_, err = assignInTx(t, db, slots, assignments, eventB, s.ID, owner, now)
	assert.ErrorIs(t, err, ErrSlotAlreadyAssigned)

	// The same pair cannot be bound twice.
	_, err = assignInTx(t, db, slots, assignments, eventA, s.ID, owner, now)
	assert.ErrorIs(t, err, ErrDuplicateAssignment)

	// A stale assignment id deletes nothing even when event and slot match.
	err = unassignInTx(t, db, slots, assignments, a.ID+1000, eventA, s.ID, now)
	assert.ErrorIs(t, err, ErrAssignmentNotFound)

	// Unassigning hard-deletes the row and frees the slot.
	require.NoError(t, unassignInTx(t, db, slots, assignments, a.ID, eventA, s.ID, now))
	got, err = slots.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.IsVacant)

	_, err = assignments.GetByPair(ctx, eventA, s.ID)
	assert.ErrorIs(t, err, ErrAssignmentNotFound)

	// After the hard delete the pair may be bound again.
	_, err = assignInTx(t, db, slots, assignments, eventA, s.ID, owner, now)
	assert.NoError(t, err)
}

func TestBulkAssignPartialSuccess(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := seedOwner(t, db, "bulk@test.local")
	venueID := seedVenue(t, db, owner, "Main Hall", 100)
	eventA := seedEvent(t, db, owner, "Concert A")
	eventB := seedEvent(t, db, owner, "Concert B")

	slots := NewSlotRepo(db)
	assignments := NewAssignmentRepo(db)

	s1 := VenueSlot{
		VenueID: venueID, CreatedBy: owner, IsActive: true,
		StartsAt: "2030-06-01 18:00:00", EndsAt: "2030-06-01 19:00:00",
	}
	s2 := VenueSlot{
		VenueID: venueID, CreatedBy: owner, IsActive: true,
		StartsAt: "2030-06-01 20:00:00", EndsAt: "2030-06-01 21:00:00",
	}
	require.NoError(t, slots.Create(ctx, &s1))
	require.NoError(t, slots.Create(ctx, &s2))
	now := time.Date(2029, 1, 1, 12, 0, 0, 0, time.UTC)

	// s1 already taken by event A.
	_, err := assignInTx(t, db, slots, assignments, eventA, s1.ID, owner, now)
	require.NoError(t, err)

	// Batch of three in one transaction, mirroring the bulk handler loop:
	// the conflicting item is skipped, the other two land.
	type item struct{ event, slot uint64 }
	batch := []item{
		{eventB, s1.ID}, // held by event A -> skip
		{eventB, s2.ID},
		{eventA, s2.ID}, // s2 now held by event B -> skip
	}
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	var assigned, skipped int
	for _, it := range batch {
		slot, serr := slots.GetByIDForUpdateTx(ctx, tx, it.slot)
		require.NoError(t, serr)
		if _, aerr := assignments.AssignTx(ctx, tx, it.event, slot, owner, now); aerr != nil {
			assert.ErrorIs(t, aerr, ErrSlotAlreadyAssigned)
			skipped++
			continue
		}
		require.NoError(t, slots.SetVacancyTx(ctx, tx, it.slot))
		assigned++
	}
	require.NoError(t, tx.Commit())
	assert.Equal(t, 1, assigned)
	assert.Equal(t, 2, skipped)

	got, err := slots.GetByID(ctx, s2.ID)
	require.NoError(t, err)
	assert.False(t, got.IsVacant, "the surviving item committed")
}

func TestAssignRejectsPastAndInactiveSlots(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := seedOwner(t, db, "past@test.local")
	venueID := seedVenue(t, db, owner, "Main Hall", 100)
	eventID := seedEvent(t, db, owner, "Concert")

	slots := NewSlotRepo(db)
	assignments := NewAssignmentRepo(db)

	s := VenueSlot{
		VenueID: venueID, CreatedBy: owner, IsActive: true,
		StartsAt: "2030-06-01 20:00:00", EndsAt: "2030-06-01 22:00:00",
	}
	require.NoError(t, slots.Create(ctx, &s))

	// "now" past the start time: assignment refused.
	late := time.Date(2030, 6, 1, 20, 0, 0, 0, time.UTC)
	_, err := assignInTx(t, db, slots, assignments, eventID, s.ID, owner, late)
	assert.ErrorIs(t, err, ErrSlotExpired)

	// Deactivated slot: refused regardless of time.
	_, serr := db.Exec(`UPDATE venue_slots SET is_active = FALSE WHERE id = ?`, s.ID)
	require.NoError(t, serr)
	early := time.Date(2029, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = assignInTx(t, db, slots, assignments, eventID, s.ID, owner, early)
	assert.ErrorIs(t, err, ErrSlotInactive)
}

func TestAssignHeldSlotReportsExpiryBeforeDuplicate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := seedOwner(t, db, "expired@test.local")
	venueID := seedVenue(t, db, owner, "Main Hall", 100)
	eventA := seedEvent(t, db, owner, "Concert A")
	eventB := seedEvent(t, db, owner, "Concert B")

	slots := NewSlotRepo(db)
	assignments := NewAssignmentRepo(db)

	s := VenueSlot{
		VenueID: venueID, CreatedBy: owner, IsActive: true,
		StartsAt: "2030-06-01 20:00:00", EndsAt: "2030-06-01 22:00:00",
	}
	require.NoError(t, slots.Create(ctx, &s))
	early := time.Date(2029, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := assignInTx(t, db, slots, assignments, eventA, s.ID, owner, early)
	require.NoError(t, err)

	// Once the slot start has passed, the holder re-requesting its own slot
	// hears about the expiry, not the existing binding.
	late := time.Date(2030, 6, 1, 21, 0, 0, 0, time.UTC)
	_, err = assignInTx(t, db, slots, assignments, eventA, s.ID, owner, late)
	assert.ErrorIs(t, err, ErrSlotExpired)

	// A different event is turned away because another event holds the slot.
	_, err = assignInTx(t, db, slots, assignments, eventB, s.ID, owner, late)
	assert.ErrorIs(t, err, ErrSlotAlreadyAssigned)
}

func TestUnassignRefusesEndedSlots(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := seedOwner(t, db, "ended@test.local")
	venueID := seedVenue(t, db, owner, "Main Hall", 100)
	eventID := seedEvent(t, db, owner, "Concert")

	slots := NewSlotRepo(db)
	assignments := NewAssignmentRepo(db)

	s := VenueSlot{
		VenueID: venueID, CreatedBy: owner, IsActive: true,
		StartsAt: "2030-06-01 20:00:00", EndsAt: "2030-06-01 22:00:00",
	}
	require.NoError(t, slots.Create(ctx, &s))
	early := time.Date(2029, 1, 1, 0, 0, 0, 0, time.UTC)
	a, err := assignInTx(t, db, slots, assignments, eventID, s.ID, owner, early)
	require.NoError(t, err)

	// Past bindings are immutable history.
	after := time.Date(2030, 6, 1, 22, 0, 0, 0, time.UTC)
	err = unassignInTx(t, db, slots, assignments, a.ID, eventID, s.ID, after)
	assert.ErrorIs(t, err, ErrSlotEnded)

	_, err = assignments.GetByPair(ctx, eventID, s.ID)
	assert.NoError(t, err, "binding survives the refused unassign")
}
