package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/heat-scheduler/internal/heat"
	"github.com/AdamBeresnev/heat-scheduler/internal/schedule"
	"github.com/AdamBeresnev/heat-scheduler/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// scheduling is everything a placement needs to know about one competition, read in
// the caller's transaction.
type scheduling struct {
	competition *heat.Competition
	setting     *heat.ScoreSetting
	location    *time.Location
	workouts    []heat.Workout
	ticketTypes []heat.TicketType
	order       []uuid.UUID
	teamSizes   map[uuid.UUID]int
}

func loadScheduling(ctx context.Context, tx *sqlx.Tx, competitions *store.CompetitionStore, competitionID uuid.UUID) (*scheduling, error) {
	setting, err := competitions.GetScoreSettingTx(ctx, tx, competitionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScoreSettingMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get score setting: %w", err)
	}
	return loadSchedulingWith(ctx, tx, competitions, setting)
}

func loadSchedulingWith(ctx context.Context, tx *sqlx.Tx, competitions *store.CompetitionStore, setting *heat.ScoreSetting) (*scheduling, error) {
	competition, err := competitions.GetCompetitionTx(ctx, tx, setting.CompetitionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCompetitionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get competition: %w", err)
	}

	loc, err := competition.Location()
	if err != nil {
		return nil, fmt.Errorf("competition timezone: %w", err)
	}

	workouts, err := competitions.GetWorkoutsTx(ctx, tx, competition.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workouts: %w", err)
	}

	ticketTypes, err := competitions.GetTicketTypesTx(ctx, tx, competition.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket types: %w", err)
	}

	ordered := schedule.OrderTicketTypes(ticketTypes, setting.TicketTypeOrderIDs)
	teamSizes := make(map[uuid.UUID]int, len(ordered))
	for _, t := range ordered {
		teamSizes[t.ID] = t.Size()
	}

	return &scheduling{
		competition: competition,
		setting:     setting,
		location:    loc,
		workouts:    workouts,
		ticketTypes: ordered,
		order:       schedule.TicketTypeIDs(ordered),
		teamSizes:   teamSizes,
	}, nil
}

// anchor is where the first heat of an empty workout starts.
func (s *scheduling) anchor() time.Time {
	if s.setting.FirstHeatStartTime != nil {
		return *s.setting.FirstHeatStartTime
	}
	return s.competition.StartTime
}

func (s *scheduling) rules() schedule.Rules {
	return schedule.NewRules(*s.setting, s.order, s.anchor(), s.location)
}

// candidates skips entries whose ticket type is not scheduled (volunteers).
func (s *scheduling) candidates(entries []heat.Entry) []schedule.Candidate {
	out := make([]schedule.Candidate, 0, len(entries))
	for _, e := range entries {
		size, ok := s.teamSizes[e.TicketTypeID]
		if !ok {
			continue
		}
		out = append(out, schedule.Candidate{EntryID: e.ID, TicketTypeID: e.TicketTypeID, TeamSize: size})
	}
	return out
}

// loadBoards builds one board per workout from the persisted heats and lanes.
func (s *scheduling) loadBoards(ctx context.Context, tx *sqlx.Tx, heats *store.HeatStore) ([]*schedule.Board, error) {
	existing, err := heats.GetHeatsTx(ctx, tx, s.competition.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get heats: %w", err)
	}
	allowed, err := heats.GetHeatTicketTypesTx(ctx, tx, s.competition.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get heat ticket types: %w", err)
	}
	lanes, err := heats.GetPlacedLanesTx(ctx, tx, s.competition.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lanes: %w", err)
	}

	rules := s.rules()
	boards := make([]*schedule.Board, len(s.workouts))
	for i, w := range s.workouts {
		boards[i] = schedule.NewBoard(w.ID, rules, existing, allowed, lanes)
	}
	return boards, nil
}

// createSlotsTx persists heats together with their allowed ticket type sets.
func createSlotsTx(ctx context.Context, tx *sqlx.Tx, heats *store.HeatStore, slots []*schedule.Slot) error {
	rows := make([]heat.Heat, 0, len(slots))
	var allowed []heat.HeatTicketType
	for _, s := range slots {
		rows = append(rows, s.Heat)
		for _, id := range s.Allowed {
			allowed = append(allowed, heat.HeatTicketType{HeatID: s.Heat.ID, TicketTypeID: id})
		}
	}
	if err := heats.CreateHeatsTx(ctx, tx, rows); err != nil {
		return fmt.Errorf("failed to create heats: %w", err)
	}
	if err := heats.CreateHeatTicketTypesTx(ctx, tx, allowed); err != nil {
		return fmt.Errorf("failed to create heat ticket types: %w", err)
	}
	return nil
}
