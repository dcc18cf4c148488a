package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkhosravi/venue-scheduler/internal/utils"
)

func TestSlotCreateRejectsOverlap(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := seedOwner(t, db, "slots@test.local")
	venueID := seedVenue(t, db, owner, "Main Hall", 100)
	repo := NewSlotRepo(db)

	first := VenueSlot{
		VenueID: venueID, CreatedBy: owner, IsActive: true,
		StartsAt: "2030-01-01 09:00:00", EndsAt: "2030-01-01 10:00:00",
	}
	require.NoError(t, repo.Create(ctx, &first))
	assert.True(t, first.IsVacant)

	// Strict overlap is refused.
	overlapping := VenueSlot{
		VenueID: venueID, CreatedBy: owner, IsActive: true,
		StartsAt: "2030-01-01 09:30:00", EndsAt: "2030-01-01 10:30:00",
	}
	assert.ErrorIs(t, repo.Create(ctx, &overlapping), ErrSlotConflict)

	// Touching boundary is allowed: ranges are half-open.
	adjacent := VenueSlot{
		VenueID: venueID, CreatedBy: owner, IsActive: true,
		StartsAt: "2030-01-01 10:00:00", EndsAt: "2030-01-01 11:00:00",
	}
	assert.NoError(t, repo.Create(ctx, &adjacent))

	// Another venue is an independent timeline.
	otherVenue := seedVenue(t, db, owner, "Annex", 50)
	elsewhere := VenueSlot{
		VenueID: otherVenue, CreatedBy: owner, IsActive: true,
		StartsAt: "2030-01-01 09:30:00", EndsAt: "2030-01-01 10:30:00",
	}
	assert.NoError(t, repo.Create(ctx, &elsewhere))
}

func TestSlotUpdateTimesExcludesSelf(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := seedOwner(t, db, "slots2@test.local")
	venueID := seedVenue(t, db, owner, "Main Hall", 100)
	repo := NewSlotRepo(db)

	s := VenueSlot{
		VenueID: venueID, CreatedBy: owner, IsActive: true,
		StartsAt: "2030-01-01 09:00:00", EndsAt: "2030-01-01 10:00:00",
	}
	require.NoError(t, repo.Create(ctx, &s))

	// Shrinking within its own range must not conflict with itself.
	updated, err := repo.UpdateTimes(ctx, s.ID, "2030-01-01 09:15:00", "2030-01-01 09:45:00", true)
	require.NoError(t, err)
	assert.Equal(t, "2030-01-01 09:15:00", updated.StartsAt)

	other := VenueSlot{
		VenueID: venueID, CreatedBy: owner, IsActive: true,
		StartsAt: "2030-01-01 11:00:00", EndsAt: "2030-01-01 12:00:00",
	}
	require.NoError(t, repo.Create(ctx, &other))

	// Moving onto the other slot conflicts.
	_, err = repo.UpdateTimes(ctx, s.ID, "2030-01-01 11:30:00", "2030-01-01 12:30:00", true)
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestInactiveSlotSkipsOverlapUntilActivated(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := seedOwner(t, db, "inactive@test.local")
	venueID := seedVenue(t, db, owner, "Main Hall", 100)
	repo := NewSlotRepo(db)

	active := VenueSlot{
		VenueID: venueID, CreatedBy: owner, IsActive: true,
		StartsAt: "2030-01-01 09:00:00", EndsAt: "2030-01-01 10:00:00",
	}
	require.NoError(t, repo.Create(ctx, &active))

	// An inactive slot may be parked on an occupied range; it is outside
	// the no-overlap set.
	draft := VenueSlot{
		VenueID: venueID, CreatedBy: owner, IsActive: false,
		StartsAt: "2030-01-01 09:00:00", EndsAt: "2030-01-01 10:00:00",
	}
	require.NoError(t, repo.Create(ctx, &draft))
	assert.False(t, draft.IsActive)

	// Activating it on the occupied range is refused.
	_, err := repo.UpdateTimes(ctx, draft.ID, draft.StartsAt, draft.EndsAt, true)
	assert.ErrorIs(t, err, ErrSlotConflict)

	// Moved to a free range, activation passes.
	got, err := repo.UpdateTimes(ctx, draft.ID, "2030-01-01 10:00:00", "2030-01-01 11:00:00", true)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestUpdateTimesGuardsDeactivationOnly(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := seedOwner(t, db, "retime@test.local")
	venueID := seedVenue(t, db, owner, "Main Hall", 100)
	eventID := seedEvent(t, db, owner, "Concert")
	repo := NewSlotRepo(db)

	s := VenueSlot{
		VenueID: venueID, CreatedBy: owner, IsActive: true,
		StartsAt: "2030-01-01 09:00:00", EndsAt: "2030-01-01 10:00:00",
	}
	require.NoError(t, repo.Create(ctx, &s))
	_, err := db.Exec(
		`INSERT INTO assignments (event_id, slot_id, venue_id, created_by) VALUES (?, ?, ?, ?)`,
		eventID, s.ID, venueID, owner)
	require.NoError(t, err)

	// Retiming a slot with an active assignment is fine.
	got, err := repo.UpdateTimes(ctx, s.ID, "2030-01-01 09:30:00", "2030-01-01 10:30:00", true)
	require.NoError(t, err)
	assert.Equal(t, "2030-01-01 09:30:00", got.StartsAt)

	// Deactivating it is not: the caller must unassign first.
	_, err = repo.UpdateTimes(ctx, s.ID, got.StartsAt, got.EndsAt, false)
	assert.ErrorIs(t, err, ErrSlotInUse)
}

func TestBulkGenerateSkipsCollisions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := seedOwner(t, db, "gen@test.local")
	venueID := seedVenue(t, db, owner, "Main Hall", 100)
	repo := NewSlotRepo(db)

	blocker := VenueSlot{
		VenueID: venueID, CreatedBy: owner, IsActive: true,
		StartsAt: "2030-01-01 10:00:00", EndsAt: "2030-01-01 11:00:00",
	}
	require.NoError(t, repo.Create(ctx, &blocker))

	day := utils.TimeRange{
		Start: time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	plan, err := utils.BuildSlotPlan(day.Start, day.End, 60, 0)
	require.NoError(t, err)
	require.Len(t, plan, 3)

	created, skipped, err := repo.BulkGenerate(ctx, venueID, owner, plan)
	require.NoError(t, err)
	assert.Len(t, created, 2, "09-10 and 11-12 fit")
	assert.Equal(t, 1, skipped, "10-11 collides with the existing slot")

	slots, err := repo.ListByVenue(ctx, venueID)
	require.NoError(t, err)
	assert.Len(t, slots, 3)
}

func TestBulkSetStatusGuardsActiveAssignments(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := seedOwner(t, db, "status@test.local")
	venueID := seedVenue(t, db, owner, "Main Hall", 100)
	eventID := seedEvent(t, db, owner, "Concert")
	repo := NewSlotRepo(db)

	busy := VenueSlot{
		VenueID: venueID, CreatedBy: owner, IsActive: true,
		StartsAt: "2030-01-01 09:00:00", EndsAt: "2030-01-01 10:00:00",
	}
	idle := VenueSlot{
		VenueID: venueID, CreatedBy: owner, IsActive: true,
		StartsAt: "2030-01-01 11:00:00", EndsAt: "2030-01-01 12:00:00",
	}
	require.NoError(t, repo.Create(ctx, &busy))
	require.NoError(t, repo.Create(ctx, &idle))

	_, err := db.Exec(
		`INSERT INTO assignments (event_id, slot_id, venue_id, created_by) VALUES (?, ?, ?, ?)`,
		eventID, busy.ID, venueID, owner)
	require.NoError(t, err)

	updated, skipped, err := repo.BulkSetStatus(ctx, owner, []uint64{busy.ID, idle.ID}, false)
	require.NoError(t, err)
	assert.Equal(t, []uint64{idle.ID}, updated)
	require.Len(t, skipped, 1)
	assert.Equal(t, busy.ID, skipped[0].ID)
	assert.Equal(t, ErrSlotInUse.Error(), skipped[0].Reason)

	// A foreign owner cannot touch the slots at all.
	stranger := seedOwner(t, db, "stranger@test.local")
	updated, skipped, err = repo.BulkSetStatus(ctx, stranger, []uint64{idle.ID}, true)
	require.NoError(t, err)
	assert.Empty(t, updated)
	require.Len(t, skipped, 1)
	assert.Equal(t, ErrForbidden.Error(), skipped[0].Reason)
}

func TestBulkDeleteRemovesHistory(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := seedOwner(t, db, "del@test.local")
	venueID := seedVenue(t, db, owner, "Main Hall", 100)
	eventID := seedEvent(t, db, owner, "Concert")
	repo := NewSlotRepo(db)

	s := VenueSlot{
		VenueID: venueID, CreatedBy: owner, IsActive: true,
		StartsAt: "2030-01-01 09:00:00", EndsAt: "2030-01-01 10:00:00",
	}
	require.NoError(t, repo.Create(ctx, &s))
	_, err := db.Exec(
		`INSERT INTO assignments (event_id, slot_id, venue_id, created_by) VALUES (?, ?, ?, ?)`,
		eventID, s.ID, venueID, owner)
	require.NoError(t, err)

	deleted, skipped, err := repo.BulkDelete(ctx, owner, []uint64{s.ID, 9999})
	require.NoError(t, err)
	assert.Equal(t, []uint64{s.ID}, deleted)
	require.Len(t, skipped, 1)
	assert.Equal(t, uint64(9999), skipped[0].ID)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM assignments WHERE slot_id = ?`, s.ID).Scan(&n))
	assert.Zero(t, n, "assignments of a deleted slot go with it")
}
