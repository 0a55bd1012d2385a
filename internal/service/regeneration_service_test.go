package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/AdamBeresnev/heat-scheduler/internal/heat"
	"github.com/AdamBeresnev/heat-scheduler/internal/schedule"
	"github.com/AdamBeresnev/heat-scheduler/internal/store"
	"github.com/AdamBeresnev/heat-scheduler/internal/utils"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return start.Add(time.Duration(minutes) * time.Minute)
}

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	database.SetMaxOpenConns(1)

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"sqlite3",
		driver,
	)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	return database
}

type ticketSeed struct {
	name      string
	teamSize  int
	entries   int
	volunteer bool
	selection bool
}

type seedOptions struct {
	workouts int
	tickets  []ticketSeed
	// setting is stored as given; nil skips the score setting row.
	setting *heat.ScoreSetting
}

type seeded struct {
	competition heat.Competition
	workouts    []heat.Workout
	tickets     []heat.TicketType
	entries     map[uuid.UUID][]heat.Entry
	setting     *heat.ScoreSetting
}

func seed(t *testing.T, db *sqlx.DB, opts seedOptions) *seeded {
	t.Helper()
	ctx := context.Background()
	competitions := store.NewCompetitionStore(db)

	s := &seeded{
		competition: heat.Competition{ID: uuid.New(), Name: "Summer Throwdown", StartTime: start, Timezone: "UTC"},
		entries:     make(map[uuid.UUID][]heat.Entry),
	}
	for i := range max(opts.workouts, 1) {
		s.workouts = append(s.workouts, heat.Workout{
			ID:            uuid.New(),
			CompetitionID: s.competition.ID,
			Name:          fmt.Sprintf("Workout %d", i+1),
			CreatedAt:     start.Add(-time.Duration(100-i) * time.Hour),
		})
	}

	var entries []heat.Entry
	created := start.Add(-48 * time.Hour)
	for _, ts := range opts.tickets {
		tt := heat.TicketType{
			ID:                 uuid.New(),
			CompetitionID:      s.competition.ID,
			Name:               ts.name,
			TeamSize:           max(ts.teamSize, 1),
			IsVolunteer:        ts.volunteer,
			AllowHeatSelection: ts.selection,
		}
		s.tickets = append(s.tickets, tt)
		for i := range ts.entries {
			created = created.Add(time.Minute)
			e := heat.Entry{
				ID:            uuid.New(),
				CompetitionID: s.competition.ID,
				TicketTypeID:  tt.ID,
				Name:          fmt.Sprintf("%s %d", ts.name, i+1),
				CreatedAt:     created,
			}
			entries = append(entries, e)
			s.entries[tt.ID] = append(s.entries[tt.ID], e)
		}
	}

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, competitions.CreateCompetition(ctx, tx, &s.competition))
	require.NoError(t, competitions.CreateWorkouts(ctx, tx, s.workouts))
	require.NoError(t, competitions.CreateTicketTypes(ctx, tx, s.tickets))
	require.NoError(t, competitions.CreateEntries(ctx, tx, entries))
	if opts.setting != nil {
		s.setting = opts.setting
		s.setting.ID = uuid.New()
		s.setting.CompetitionID = s.competition.ID
		require.NoError(t, competitions.CreateScoreSetting(ctx, tx, s.setting))
	}
	require.NoError(t, tx.Commit())
	return s
}

// addEntry registers one more entry of the ticket type after everything seeded so far.
func (s *seeded) addEntry(t *testing.T, db *sqlx.DB, ticketTypeID uuid.UUID) heat.Entry {
	t.Helper()
	ctx := context.Background()
	e := heat.Entry{
		ID:            uuid.New(),
		CompetitionID: s.competition.ID,
		TicketTypeID:  ticketTypeID,
		Name:          "Late entry",
		CreatedAt:     start.Add(-time.Hour),
	}
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.NewCompetitionStore(db).CreateEntries(ctx, tx, []heat.Entry{e}))
	require.NoError(t, tx.Commit())
	s.entries[ticketTypeID] = append(s.entries[ticketTypeID], e)
	return e
}

type services struct {
	regeneration *RegenerationService
	registration *RegistrationService
	cascades     *CascadeService
	lanes        *LaneService
	schedules    *ScheduleService
	tasks        *Tasks
}

func newServices(db *sqlx.DB) services {
	competitions := store.NewCompetitionStore(db)
	heats := store.NewHeatStore(db)
	tasks := NewTasks(nil)
	cascades := NewCascadeService(db, competitions, heats)
	return services{
		regeneration: NewRegenerationService(db, competitions, heats, nil),
		registration: NewRegistrationService(db, competitions, heats, cascades, tasks, nil),
		cascades:     cascades,
		lanes:        NewLaneService(db, competitions, heats),
		schedules:    NewScheduleService(competitions, heats),
		tasks:        tasks,
	}
}

func entriesSetting(limit, spacing int) *heat.ScoreSetting {
	return &heat.ScoreSetting{HeatsEveryXMinutes: spacing, MaxLimitPerHeat: limit, HeatLimitType: heat.LimitEntries}
}

func getSchedule(t *testing.T, svc services, competitionID uuid.UUID) *Schedule {
	t.Helper()
	sched, err := svc.schedules.GetSchedule(context.Background(), competitionID)
	require.NoError(t, err)
	return sched
}

func laneCounts(heats []HeatView) []int {
	counts := make([]int, len(heats))
	for i, h := range heats {
		counts[i] = len(h.Lanes)
	}
	return counts
}

// assertContiguous checks lane numbers are exactly 1..N in every heat.
func assertContiguous(t *testing.T, sched *Schedule) {
	t.Helper()
	for _, w := range sched.Workouts {
		for _, h := range w.Heats {
			for i, l := range h.Lanes {
				assert.Equal(t, i+1, l.Number, "heat %s", h.ID)
			}
		}
	}
}

func TestRegenerateThirteenEntries(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := newServices(db)

	s := seed(t, db, seedOptions{
		tickets: []ticketSeed{{name: "RX", entries: 13}},
		setting: entriesSetting(6, 30),
	})

	heats, err := svc.regeneration.Regenerate(context.Background(), s.competition.ID, heat.SettingsUpdate{})
	require.NoError(t, err)
	require.Len(t, heats, 3)
	for i, h := range heats {
		assert.True(t, at(30*i).Equal(h.StartTime), "heat %d starts at %s", i, h.StartTime)
		assert.Equal(t, 6, h.MaxLimitPerHeat)
	}

	sched := getSchedule(t, svc, s.competition.ID)
	require.Len(t, sched.Workouts, 1)
	assert.Equal(t, []int{6, 6, 1}, laneCounts(sched.Workouts[0].Heats))
	assertContiguous(t, sched)

	// Entries land in registration order.
	rx := s.entries[s.tickets[0].ID]
	assert.Equal(t, rx[0].ID, sched.Workouts[0].Heats[0].Lanes[0].EntryID)
	assert.Equal(t, rx[12].ID, sched.Workouts[0].Heats[2].Lanes[0].EntryID)
}

func TestRegenerateRoundRobin(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := newServices(db)

	s := seed(t, db, seedOptions{
		tickets: []ticketSeed{{name: "A", entries: 6}, {name: "B", entries: 3}},
		setting: entriesSetting(3, 10),
	})
	a, b := s.tickets[0].ID, s.tickets[1].ID

	_, err := svc.regeneration.Regenerate(context.Background(), s.competition.ID, heat.SettingsUpdate{
		TicketTypeOrderIDs: &[]uuid.UUID{a, b},
	})
	require.NoError(t, err)

	sched := getSchedule(t, svc, s.competition.ID)
	first := sched.Workouts[0].Heats[0]
	require.Len(t, first.Lanes, 3)
	assert.Equal(t, []uuid.UUID{a, b, a}, []uuid.UUID{
		first.Lanes[0].TicketTypeID, first.Lanes[1].TicketTypeID, first.Lanes[2].TicketTypeID,
	})
	assert.ElementsMatch(t, []uuid.UUID{a, b}, first.Allowed)
}

func TestRegenerateOneTicketPerHeat(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := newServices(db)

	s := seed(t, db, seedOptions{
		workouts: 2,
		tickets: []ticketSeed{
			{name: "RX", entries: 5},
			{name: "Pairs", teamSize: 2, entries: 3},
			{name: "Judges", entries: 4, volunteer: true},
		},
		setting: &heat.ScoreSetting{HeatsEveryXMinutes: 15, MaxLimitPerHeat: 4, HeatLimitType: heat.LimitAthletes},
	})

	heats, err := svc.regeneration.Regenerate(context.Background(), s.competition.ID, heat.SettingsUpdate{
		OneTicketPerHeat: utils.Ptr(true),
	})
	require.NoError(t, err)
	// RX: ceil(5/4) = 2, Pairs: ceil(6/4) = 2, per workout.
	assert.Len(t, heats, 8)

	sched := getSchedule(t, svc, s.competition.ID)
	assertContiguous(t, sched)
	for _, w := range sched.Workouts {
		placed := 0
		for _, h := range w.Heats {
			require.Len(t, h.Allowed, 1)
			athletes := 0
			for _, l := range h.Lanes {
				assert.Equal(t, h.Allowed[0], l.TicketTypeID)
				athletes += l.TeamSize
			}
			assert.LessOrEqual(t, athletes, h.MaxLimitPerHeat)
			placed += len(h.Lanes)
		}
		assert.Equal(t, 8, placed, "volunteers are never scheduled")
	}
}

func TestRegenerateIsRepeatable(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := newServices(db)
	ctx := context.Background()

	s := seed(t, db, seedOptions{
		workouts: 2,
		tickets:  []ticketSeed{{name: "A", entries: 7}, {name: "B", teamSize: 2, entries: 4}},
		setting:  &heat.ScoreSetting{HeatsEveryXMinutes: 20, MaxLimitPerHeat: 5, HeatLimitType: heat.LimitAthletes},
	})

	shape := func() [][]string {
		var out [][]string
		for _, w := range getSchedule(t, svc, s.competition.ID).Workouts {
			for _, h := range w.Heats {
				row := []string{h.StartTime.UTC().Format(time.RFC3339)}
				for _, l := range h.Lanes {
					row = append(row, l.EntryID.String())
				}
				out = append(out, row)
			}
		}
		return out
	}

	_, err := svc.regeneration.Regenerate(ctx, s.competition.ID, heat.SettingsUpdate{})
	require.NoError(t, err)
	first := shape()

	_, err = svc.regeneration.Regenerate(ctx, s.competition.ID, heat.SettingsUpdate{})
	require.NoError(t, err)
	assert.Equal(t, first, shape())
}

func TestRegenerateAppliesSettings(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := newServices(db)

	s := seed(t, db, seedOptions{
		tickets: []ticketSeed{{name: "RX", entries: 8}},
		setting: entriesSetting(10, 10),
	})

	firstHeat := at(90)
	heats, err := svc.regeneration.Regenerate(context.Background(), s.competition.ID, heat.SettingsUpdate{
		Lanes:              utils.Ptr(4),
		HeatsEveryXMinutes: utils.Ptr(12),
		FirstHeatStartTime: &firstHeat,
	})
	require.NoError(t, err)
	require.Len(t, heats, 2)
	assert.True(t, at(90).Equal(heats[0].StartTime))
	assert.True(t, at(102).Equal(heats[1].StartTime))
	assert.Equal(t, 4, heats[0].MaxLimitPerHeat)
}

func TestRegenerateRollsBackOnInvalidSettings(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := newServices(db)
	ctx := context.Background()

	s := seed(t, db, seedOptions{
		tickets: []ticketSeed{{name: "RX", entries: 3}},
		setting: entriesSetting(2, 10),
	})

	_, err := svc.regeneration.Regenerate(ctx, s.competition.ID, heat.SettingsUpdate{})
	require.NoError(t, err)

	_, err = svc.regeneration.Regenerate(ctx, s.competition.ID, heat.SettingsUpdate{MaxLimitPerHeat: utils.Ptr(0)})
	require.ErrorIs(t, err, ErrInvalidSettings)
	assert.True(t, IsValidation(err))

	sched := getSchedule(t, svc, s.competition.ID)
	assert.Equal(t, []int{2, 1}, laneCounts(sched.Workouts[0].Heats))
}

func TestRegenerateWithoutScoreSetting(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := newServices(db)

	s := seed(t, db, seedOptions{tickets: []ticketSeed{{name: "RX", entries: 3}}})

	_, err := svc.regeneration.Regenerate(context.Background(), s.competition.ID, heat.SettingsUpdate{})
	require.ErrorIs(t, err, ErrScoreSettingMissing)
	assert.False(t, IsValidation(err))
}

func TestRegenerateOverflowsFragmentedTeams(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := newServices(db)

	// 3 pairs need ceil(6/3) = 2 heats of 3 athletes, but only one pair fits in each.
	s := seed(t, db, seedOptions{
		tickets: []ticketSeed{{name: "Pairs", teamSize: 2, entries: 3}},
		setting: &heat.ScoreSetting{HeatsEveryXMinutes: 10, MaxLimitPerHeat: 3, HeatLimitType: heat.LimitAthletes},
	})

	heats, err := svc.regeneration.Regenerate(context.Background(), s.competition.ID, heat.SettingsUpdate{})
	require.NoError(t, err)
	require.Len(t, heats, 3)
	assert.True(t, at(20).Equal(heats[2].StartTime))

	sched := getSchedule(t, svc, s.competition.ID)
	assert.Equal(t, []int{1, 1, 1}, laneCounts(sched.Workouts[0].Heats))
	assertContiguous(t, sched)
}

func TestRegenerateRejectsOversizedTeams(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := newServices(db)

	s := seed(t, db, seedOptions{
		tickets: []ticketSeed{{name: "RX", entries: 2}, {name: "Squads", teamSize: 4, entries: 1}},
		setting: &heat.ScoreSetting{HeatsEveryXMinutes: 10, MaxLimitPerHeat: 3, HeatLimitType: heat.LimitAthletes},
	})

	_, err := svc.regeneration.Regenerate(context.Background(), s.competition.ID, heat.SettingsUpdate{})
	require.ErrorIs(t, err, schedule.ErrEntryTooLarge)

	sched := getSchedule(t, svc, s.competition.ID)
	assert.Empty(t, sched.Workouts[0].Heats)
}

func TestRegenerateKeepsScheduleWhenReplacementFails(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := newServices(db)
	ctx := context.Background()

	s := seed(t, db, seedOptions{
		tickets: []ticketSeed{{name: "Pairs", teamSize: 2, entries: 2}},
		setting: &heat.ScoreSetting{HeatsEveryXMinutes: 10, MaxLimitPerHeat: 4, HeatLimitType: heat.LimitAthletes},
	})
	_, err := svc.regeneration.Regenerate(ctx, s.competition.ID, heat.SettingsUpdate{})
	require.NoError(t, err)
	before := getSchedule(t, svc, s.competition.ID)
	require.Equal(t, []int{2}, laneCounts(before.Workouts[0].Heats))

	// The new limit passes validation but no pair fits a heat of one athlete, so the
	// placement fails after the old heats were deleted.
	_, err = svc.regeneration.Regenerate(ctx, s.competition.ID, heat.SettingsUpdate{MaxLimitPerHeat: utils.Ptr(1)})
	require.ErrorIs(t, err, schedule.ErrEntryTooLarge)

	after := getSchedule(t, svc, s.competition.ID)
	require.Len(t, after.Workouts[0].Heats, 1)
	assert.Equal(t, before.Workouts[0].Heats[0].ID, after.Workouts[0].Heats[0].ID)
	assert.Equal(t, 4, after.Workouts[0].Heats[0].MaxLimitPerHeat)
	assert.Equal(t, before.Workouts[0].Heats[0].Lanes, after.Workouts[0].Heats[0].Lanes)

	setting, err := store.NewCompetitionStore(db).GetScoreSetting(ctx, s.competition.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, setting.MaxLimitPerHeat)
}
