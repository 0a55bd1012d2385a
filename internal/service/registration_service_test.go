package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AdamBeresnev/heat-scheduler/internal/heat"
	"github.com/AdamBeresnev/heat-scheduler/internal/schedule"
	"github.com/AdamBeresnev/heat-scheduler/internal/store"
	"github.com/AdamBeresnev/heat-scheduler/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFillsOpenHeat(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := newServices(db)
	ctx := context.Background()

	s := seed(t, db, seedOptions{
		tickets: []ticketSeed{{name: "RX", entries: 13}},
		setting: entriesSetting(6, 30),
	})
	_, err := svc.regeneration.Regenerate(ctx, s.competition.ID, heat.SettingsUpdate{})
	require.NoError(t, err)

	late := s.addEntry(t, db, s.tickets[0].ID)
	placement, err := svc.registration.Register(ctx, RegisterInput{EntryID: late.ID})
	require.NoError(t, err)
	require.Len(t, placement.Lanes, 1)
	assert.Empty(t, placement.Created)
	assert.Equal(t, 2, placement.Lanes[0].Number)

	sched := getSchedule(t, svc, s.competition.ID)
	assert.Equal(t, []int{6, 6, 2}, laneCounts(sched.Workouts[0].Heats))
	assertContiguous(t, sched)
}

func TestRegisterOpensHeatWhenFull(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := newServices(db)
	ctx := context.Background()

	s := seed(t, db, seedOptions{
		workouts: 2,
		tickets:  []ticketSeed{{name: "RX", entries: 6}},
		setting:  entriesSetting(6, 30),
	})
	_, err := svc.regeneration.Regenerate(ctx, s.competition.ID, heat.SettingsUpdate{})
	require.NoError(t, err)

	late := s.addEntry(t, db, s.tickets[0].ID)
	placement, err := svc.registration.Register(ctx, RegisterInput{EntryID: late.ID})
	require.NoError(t, err)
	svc.tasks.Wait()

	assert.Len(t, placement.Lanes, 2, "one lane per workout")
	require.Len(t, placement.Created, 2, "one new heat per workout")
	for _, h := range placement.Created {
		assert.True(t, at(30).Equal(h.StartTime))
	}

	sched := getSchedule(t, svc, s.competition.ID)
	for _, w := range sched.Workouts {
		require.Len(t, w.Heats, 2)
		assert.Equal(t, []int{6, 1}, laneCounts(w.Heats))
		assert.Equal(t, []uuid.UUID{s.tickets[0].ID}, w.Heats[1].Allowed)
		assert.True(t, at(30).Equal(w.Heats[1].StartTime))
	}

	// Registering the same entry again is a no-op in workouts that already hold it.
	again, err := svc.registration.Register(ctx, RegisterInput{EntryID: late.ID})
	require.NoError(t, err)
	assert.Empty(t, again.Lanes)
}

func TestRegisterKeepsEarlierBreak(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := newServices(db)
	ctx := context.Background()

	s := seed(t, db, seedOptions{
		tickets: []ticketSeed{{name: "RX", entries: 12}},
		setting: entriesSetting(6, 30),
	})
	_, err := svc.regeneration.Regenerate(ctx, s.competition.ID, heat.SettingsUpdate{})
	require.NoError(t, err)

	_, err = svc.cascades.InsertBreak(ctx, s.competition.ID, at(30), 60)
	require.NoError(t, err)
	sched := getSchedule(t, svc, s.competition.ID)
	require.Equal(t, []time.Time{at(0), at(90)}, startTimes(sched.Workouts[0].Heats))

	late := s.addEntry(t, db, s.tickets[0].ID)
	placement, err := svc.registration.Register(ctx, RegisterInput{EntryID: late.ID})
	require.NoError(t, err)
	svc.tasks.Wait()
	require.Len(t, placement.Created, 1)

	sched = getSchedule(t, svc, s.competition.ID)
	assert.Equal(t, []time.Time{at(0), at(90), at(120)}, startTimes(sched.Workouts[0].Heats))
	assert.Equal(t, []int{6, 6, 1}, laneCounts(sched.Workouts[0].Heats))
}

func TestRegisterMatchesBulkHeatCount(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := newServices(db)
	ctx := context.Background()

	s := seed(t, db, seedOptions{
		tickets: []ticketSeed{{name: "RX", entries: 0}},
		setting: entriesSetting(4, 10),
	})
	_, err := svc.regeneration.Regenerate(ctx, s.competition.ID, heat.SettingsUpdate{})
	require.NoError(t, err)

	for range 10 {
		e := s.addEntry(t, db, s.tickets[0].ID)
		_, err := svc.registration.Register(ctx, RegisterInput{EntryID: e.ID})
		require.NoError(t, err)
	}
	svc.tasks.Wait()
	incremental := laneCounts(getSchedule(t, svc, s.competition.ID).Workouts[0].Heats)

	_, err = svc.regeneration.Regenerate(ctx, s.competition.ID, heat.SettingsUpdate{})
	require.NoError(t, err)
	bulk := laneCounts(getSchedule(t, svc, s.competition.ID).Workouts[0].Heats)

	assert.Equal(t, []int{4, 4, 2}, incremental)
	assert.Equal(t, bulk, incremental)
}

func TestRegisterVolunteerIsNoop(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := newServices(db)
	ctx := context.Background()

	s := seed(t, db, seedOptions{
		tickets: []ticketSeed{{name: "RX", entries: 1}, {name: "Judges", volunteer: true}},
		setting: entriesSetting(6, 30),
	})
	_, err := svc.regeneration.Regenerate(ctx, s.competition.ID, heat.SettingsUpdate{})
	require.NoError(t, err)

	judge := s.addEntry(t, db, s.tickets[1].ID)
	placement, err := svc.registration.Register(ctx, RegisterInput{EntryID: judge.ID})
	require.NoError(t, err)
	assert.Empty(t, placement.Lanes)
	assert.Equal(t, []int{1}, laneCounts(getSchedule(t, svc, s.competition.ID).Workouts[0].Heats))
}

func TestRegisterSelectedHeat(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := newServices(db)
	ctx := context.Background()

	s := seed(t, db, seedOptions{
		tickets: []ticketSeed{{name: "Open", entries: 6, selection: true}, {name: "RX", entries: 1}},
		setting: entriesSetting(6, 30),
	})
	open, rx := s.tickets[0], s.tickets[1]
	_, err := svc.regeneration.Regenerate(ctx, s.competition.ID, heat.SettingsUpdate{
		OneTicketPerHeat: utils.Ptr(true),
	})
	require.NoError(t, err)

	sched := getSchedule(t, svc, s.competition.ID)
	require.Len(t, sched.Workouts[0].Heats, 2)
	openHeat, rxHeat := sched.Workouts[0].Heats[0], sched.Workouts[0].Heats[1]
	require.Equal(t, []uuid.UUID{open.ID}, openHeat.Allowed)

	late := s.addEntry(t, db, open.ID)

	_, err = svc.registration.Register(ctx, RegisterInput{EntryID: late.ID, HeatID: &openHeat.ID})
	require.ErrorIs(t, err, ErrHeatFull)
	assert.True(t, IsValidation(err))
	assert.Equal(t, "selected heat is full", err.Error())

	_, err = svc.registration.Register(ctx, RegisterInput{EntryID: late.ID, HeatID: &rxHeat.ID})
	require.ErrorIs(t, err, ErrTicketTypeNotAllowed)

	_, err = svc.registration.Register(ctx, RegisterInput{EntryID: s.entries[open.ID][0].ID, HeatID: &openHeat.ID})
	require.ErrorIs(t, err, ErrEntryAlreadyPlaced)

	rxLate := s.addEntry(t, db, rx.ID)
	_, err = svc.registration.Register(ctx, RegisterInput{EntryID: rxLate.ID, HeatID: &rxHeat.ID})
	require.ErrorIs(t, err, ErrHeatSelectionDisabled)

	_, err = svc.lanes.AdjustLaneSpace(ctx, openHeat.ID, 1)
	require.NoError(t, err)

	placement, err := svc.registration.Register(ctx, RegisterInput{EntryID: late.ID, HeatID: &openHeat.ID})
	require.NoError(t, err)
	require.Len(t, placement.Lanes, 1)
	assert.Equal(t, 7, placement.Lanes[0].Number)
	assert.Equal(t, openHeat.ID, placement.Lanes[0].HeatID)
}

func TestRegisterReportsFailedWorkouts(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := newServices(db)
	ctx := context.Background()

	s := seed(t, db, seedOptions{
		workouts: 2,
		tickets:  []ticketSeed{{name: "Pairs", teamSize: 2}},
		setting:  &heat.ScoreSetting{HeatsEveryXMinutes: 10, MaxLimitPerHeat: 4, HeatLimitType: heat.LimitAthletes},
	})
	_, err := svc.regeneration.Regenerate(ctx, s.competition.ID, heat.SettingsUpdate{})
	require.NoError(t, err)

	// Shrink the second workout's only heat and the setting below one pair, so the
	// second workout has no heat with room and cannot open one either.
	sched := getSchedule(t, svc, s.competition.ID)
	_, err = svc.lanes.AdjustLaneSpace(ctx, sched.Workouts[1].Heats[0].ID, -3)
	require.NoError(t, err)

	competitions := store.NewCompetitionStore(db)
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	setting, err := competitions.GetScoreSettingTx(ctx, tx, s.competition.ID)
	require.NoError(t, err)
	setting.MaxLimitPerHeat = 1
	require.NoError(t, competitions.UpdateScoreSettingTx(ctx, tx, setting))
	require.NoError(t, tx.Commit())

	pair := s.addEntry(t, db, s.tickets[0].ID)
	_, err = svc.registration.Register(ctx, RegisterInput{EntryID: pair.ID})
	require.Error(t, err)

	var perr *PlacementError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, pair.ID, perr.EntryID)
	require.Len(t, perr.Failed, 1)
	assert.ErrorIs(t, perr.Failed[s.workouts[1].ID], schedule.ErrEntryTooLarge)
	assert.ErrorIs(t, err, schedule.ErrEntryTooLarge)
	assert.Contains(t, err.Error(), s.workouts[1].ID.String())

	// Nothing was written for the workout that had room.
	for _, w := range getSchedule(t, svc, s.competition.ID).Workouts {
		assert.Equal(t, []int{0}, laneCounts(w.Heats))
	}
}

func TestRegisterUnknownEntry(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := newServices(db)

	_, err := svc.registration.Register(context.Background(), RegisterInput{EntryID: uuid.New()})
	require.ErrorIs(t, err, ErrEntryNotFound)
	assert.True(t, IsNotFound(err))
}
