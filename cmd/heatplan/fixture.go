package main

import (
	"fmt"
	"os"
	"time"

	"github.com/AdamBeresnev/heat-scheduler/internal/heat"
	"github.com/AdamBeresnev/heat-scheduler/internal/schedule"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Fixture describes a competition to plan without a database.
type Fixture struct {
	Name        string          `yaml:"name"`
	Start       time.Time       `yaml:"start"`
	Timezone    string          `yaml:"timezone"`
	Settings    FixtureSettings `yaml:"settings"`
	Workouts    []string        `yaml:"workouts"`
	TicketTypes []FixtureTicket `yaml:"ticket_types"`
}

type FixtureSettings struct {
	HeatsEveryXMinutes   int    `yaml:"heats_every_x_minutes"`
	MaxLimitPerHeat      int    `yaml:"max_limit_per_heat"`
	HeatLimitType        string `yaml:"heat_limit_type"` // ATHLETES or ENTRIES
	OneTicketPerHeat     bool   `yaml:"one_ticket_per_heat"`
	TotalHeatsPerWorkout int    `yaml:"total_heats_per_workout"`
}

type FixtureTicket struct {
	Name      string `yaml:"name"`
	TeamSize  int    `yaml:"team_size"`
	Entries   int    `yaml:"entries"`
	Volunteer bool   `yaml:"volunteer"`
}

func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &f, nil
}

// PlannedHeat is one heat of a dry run.
type PlannedHeat struct {
	Workout string
	Start   time.Time
	Limit   int
	Tickets []string
	Lanes   []string
}

// DryRun is the schedule a regeneration would produce for the fixture.
type DryRun struct {
	Heats    []PlannedHeat
	Location *time.Location
	OverCap  []string
}

// Plan runs the planner, time cascade and placers over the fixture in memory.
func (f *Fixture) Plan() (*DryRun, error) {
	mode, err := heat.ParseLimitType(f.Settings.HeatLimitType)
	if err != nil {
		return nil, err
	}
	competition := heat.Competition{ID: uuid.New(), Name: f.Name, StartTime: f.Start, Timezone: f.Timezone}
	loc, err := competition.Location()
	if err != nil {
		return nil, err
	}

	setting := heat.ScoreSetting{
		CompetitionID:      competition.ID,
		HeatsEveryXMinutes: f.Settings.HeatsEveryXMinutes,
		MaxLimitPerHeat:    f.Settings.MaxLimitPerHeat,
		HeatLimitType:      mode,
		OneTicketPerHeat:   f.Settings.OneTicketPerHeat,
	}
	if f.Settings.TotalHeatsPerWorkout > 0 {
		total := f.Settings.TotalHeatsPerWorkout
		setting.TotalHeatsPerWorkout = &total
	}
	if err := setting.Validate(); err != nil {
		return nil, err
	}

	names := make(map[uuid.UUID]string)
	workouts := make([]heat.Workout, len(f.Workouts))
	for i, name := range f.Workouts {
		workouts[i] = heat.Workout{ID: uuid.New(), CompetitionID: competition.ID, Name: name}
		names[workouts[i].ID] = name
	}

	var types []heat.TicketType
	var candidates []schedule.Candidate
	counts := make(map[uuid.UUID]int)
	for _, ft := range f.TicketTypes {
		tt := heat.TicketType{ID: uuid.New(), CompetitionID: competition.ID, Name: ft.Name, TeamSize: ft.TeamSize, IsVolunteer: ft.Volunteer}
		types = append(types, tt)
		names[tt.ID] = tt.Name
		if tt.IsVolunteer {
			continue
		}
		counts[tt.ID] = ft.Entries
		for i := range ft.Entries {
			id := uuid.New()
			names[id] = fmt.Sprintf("%s %d", ft.Name, i+1)
			candidates = append(candidates, schedule.Candidate{EntryID: id, TicketTypeID: tt.ID, TeamSize: tt.Size()})
		}
	}

	ordered := schedule.OrderTicketTypes(types, nil)
	plan, err := schedule.PlanHeatCounts(workouts, ordered, setting, counts)
	if err != nil {
		return nil, err
	}
	rules := schedule.NewRules(setting, schedule.TicketTypeIDs(ordered), f.Start, loc)

	out := &DryRun{Location: loc}
	for _, w := range workouts {
		layout := schedule.Layout(plan.ForWorkout(w.ID), rules.OneTicketPerHeat)
		times := schedule.ScheduleStartTimes(nil, len(layout), rules.Anchor, rules.SpacingMinutes, loc)

		var heats []heat.Heat
		var allowed []heat.HeatTicketType
		for i, set := range layout {
			h := heat.Heat{ID: uuid.New(), WorkoutID: w.ID, StartTime: times[i], MaxLimitPerHeat: rules.MaxLimitPerHeat}
			heats = append(heats, h)
			for _, id := range set {
				allowed = append(allowed, heat.HeatTicketType{HeatID: h.ID, TicketTypeID: id})
			}
		}
		board := schedule.NewBoard(w.ID, rules, heats, allowed, nil)

		res, err := schedule.Bulk{}.Place(board, candidates)
		if err != nil {
			return nil, err
		}
		if len(res.Unplaced) > 0 {
			if _, err := (schedule.Incremental{}).Place(board, res.Unplaced); err != nil {
				return nil, fmt.Errorf("workout %s: %w", w.Name, err)
			}
		}
		if rules.HeatCap > 0 && len(board.Slots) > rules.HeatCap {
			out.OverCap = append(out.OverCap, w.Name)
		}

		for _, slot := range board.Slots {
			ph := PlannedHeat{Workout: w.Name, Start: slot.Heat.StartTime, Limit: slot.Heat.MaxLimitPerHeat}
			for _, id := range slot.Allowed {
				ph.Tickets = append(ph.Tickets, names[id])
			}
			for _, l := range slot.Lanes {
				ph.Lanes = append(ph.Lanes, names[l.EntryID])
			}
			out.Heats = append(out.Heats, ph)
		}
	}
	return out, nil
}
