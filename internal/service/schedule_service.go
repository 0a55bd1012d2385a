package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/heat-scheduler/internal/heat"
	"github.com/AdamBeresnev/heat-scheduler/internal/store"
	"github.com/google/uuid"
)

// ScheduleService serves the read side of the schedule.
type ScheduleService struct {
	competitions *store.CompetitionStore
	heats        *store.HeatStore
}

func NewScheduleService(competitions *store.CompetitionStore, heats *store.HeatStore) *ScheduleService {
	return &ScheduleService{competitions: competitions, heats: heats}
}

type HeatView struct {
	heat.Heat
	Allowed []uuid.UUID       `json:"allowedTicketTypeIds"`
	Lanes   []heat.PlacedLane `json:"lanes"`
	Load    heat.Load         `json:"load"`
}

type WorkoutSchedule struct {
	Workout heat.Workout `json:"workout"`
	Heats   []HeatView   `json:"heats"`
}

type Schedule struct {
	Competition *heat.Competition `json:"competition"`
	// LimitType is the unit heat capacity is counted in. ENTRIES until a score setting exists.
	LimitType heat.LimitType    `json:"heatLimitType"`
	Workouts  []WorkoutSchedule `json:"workouts"`
}

// Used is the capacity the heat's lanes consume under limitType.
func (h HeatView) Used(limitType heat.LimitType) int {
	return limitType.Units(h.Load)
}

// GetSchedule returns every workout of the competition with its heats in time order.
func (s *ScheduleService) GetSchedule(ctx context.Context, competitionID uuid.UUID) (*Schedule, error) {
	competition, err := s.competitions.GetCompetition(ctx, competitionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCompetitionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get competition: %w", err)
	}

	limitType := heat.LimitEntries
	setting, err := s.competitions.GetScoreSetting(ctx, competitionID)
	switch {
	case err == nil:
		limitType = setting.HeatLimitType
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to get score setting: %w", err)
	}

	workouts, err := s.competitions.GetWorkouts(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workouts: %w", err)
	}
	heats, err := s.heats.GetHeats(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get heats: %w", err)
	}
	allowed, err := s.heats.GetHeatTicketTypes(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get heat ticket types: %w", err)
	}
	lanes, err := s.heats.GetPlacedLanes(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lanes: %w", err)
	}

	allowedByHeat := make(map[uuid.UUID][]uuid.UUID)
	for _, a := range allowed {
		allowedByHeat[a.HeatID] = append(allowedByHeat[a.HeatID], a.TicketTypeID)
	}
	lanesByHeat := make(map[uuid.UUID][]heat.PlacedLane)
	loads := make(map[uuid.UUID]heat.Load)
	for _, l := range lanes {
		lanesByHeat[l.HeatID] = append(lanesByHeat[l.HeatID], l)
		loads[l.HeatID] = loads[l.HeatID].Add(l.TeamSize)
	}

	index := make(map[uuid.UUID]int, len(workouts))
	out := &Schedule{Competition: competition, LimitType: limitType, Workouts: make([]WorkoutSchedule, len(workouts))}
	for i, w := range workouts {
		index[w.ID] = i
		out.Workouts[i] = WorkoutSchedule{Workout: w, Heats: []HeatView{}}
	}
	for _, h := range heats {
		i, ok := index[h.WorkoutID]
		if !ok {
			continue
		}
		out.Workouts[i].Heats = append(out.Workouts[i].Heats, HeatView{
			Heat:    h,
			Allowed: allowedByHeat[h.ID],
			Lanes:   lanesByHeat[h.ID],
			Load:    loads[h.ID],
		})
	}
	return out, nil
}
