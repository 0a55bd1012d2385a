package schedule

import (
	"errors"
	"fmt"

	"github.com/AdamBeresnev/heat-scheduler/internal/heat"
	"github.com/google/uuid"
)

var ErrInvalidLimit = errors.New("max limit per heat must be at least 1")

type HeatCount struct {
	WorkoutID    uuid.UUID
	TicketTypeID uuid.UUID
	Heats        int
}

// Plan holds heats needed per (workout, ticket type) in ticket type order. HeatCap is
// advisory and never reduces the counts.
type Plan struct {
	Counts  []HeatCount
	HeatCap int
}

func (p Plan) ForWorkout(workoutID uuid.UUID) []HeatCount {
	var out []HeatCount
	for _, c := range p.Counts {
		if c.WorkoutID == workoutID {
			out = append(out, c)
		}
	}
	return out
}

// OrderTicketTypes returns the schedulable ticket types in order: ids from order first,
// skipping ids without an active ticket type, then active types missing from order in
// their given sequence. Volunteers are dropped.
func OrderTicketTypes(types []heat.TicketType, order []uuid.UUID) []heat.TicketType {
	byID := make(map[uuid.UUID]heat.TicketType, len(types))
	for _, t := range types {
		if !t.IsVolunteer {
			byID[t.ID] = t
		}
	}

	out := make([]heat.TicketType, 0, len(byID))
	seen := make(map[uuid.UUID]bool, len(byID))
	for _, id := range order {
		t, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, t)
	}
	for _, t := range types {
		if t.IsVolunteer || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}

func TicketTypeIDs(types []heat.TicketType) []uuid.UUID {
	ids := make([]uuid.UUID, len(types))
	for i, t := range types {
		ids[i] = t.ID
	}
	return ids
}

// PlanHeatCounts computes heats needed per workout and ticket type. ordered must already
// be in scheduling order (see OrderTicketTypes). Every ticket type gets at least one heat
// so late registrants have somewhere to land.
func PlanHeatCounts(workouts []heat.Workout, ordered []heat.TicketType, setting heat.ScoreSetting, entryCounts map[uuid.UUID]int) (Plan, error) {
	if setting.MaxLimitPerHeat < 1 {
		return Plan{}, ErrInvalidLimit
	}
	if _, err := heat.ParseLimitType(string(setting.HeatLimitType)); err != nil {
		return Plan{}, fmt.Errorf("plan heat counts: %w", err)
	}

	plan := Plan{HeatCap: setting.HeatCap()}
	for _, w := range workouts {
		for _, t := range ordered {
			needed := setting.HeatLimitType.HeatsNeeded(entryCounts[t.ID], t.Size(), setting.MaxLimitPerHeat)
			plan.Counts = append(plan.Counts, HeatCount{
				WorkoutID:    w.ID,
				TicketTypeID: t.ID,
				Heats:        max(needed, 1),
			})
		}
	}
	return plan, nil
}

// Layout turns a workout's heat counts into allowed ticket type sets, one per heat, in
// start time order. Dedicated heats follow ticket type order; mixed heats allow every
// ticket type in the plan.
func Layout(counts []HeatCount, oneTicketPerHeat bool) [][]uuid.UUID {
	var layout [][]uuid.UUID
	if oneTicketPerHeat {
		for _, c := range counts {
			for range c.Heats {
				layout = append(layout, []uuid.UUID{c.TicketTypeID})
			}
		}
		return layout
	}

	all := make([]uuid.UUID, 0, len(counts))
	total := 0
	for _, c := range counts {
		all = append(all, c.TicketTypeID)
		total += c.Heats
	}
	for range total {
		layout = append(layout, append([]uuid.UUID(nil), all...))
	}
	return layout
}
