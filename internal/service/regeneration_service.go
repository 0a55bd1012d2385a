package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/AdamBeresnev/heat-scheduler/internal/heat"
	"github.com/AdamBeresnev/heat-scheduler/internal/metrics"
	"github.com/AdamBeresnev/heat-scheduler/internal/schedule"
	"github.com/AdamBeresnev/heat-scheduler/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

type RegenerationService struct {
	db           *sqlx.DB
	competitions *store.CompetitionStore
	heats        *store.HeatStore
	metrics      metrics.Recorder
}

func NewRegenerationService(db *sqlx.DB, competitions *store.CompetitionStore, heats *store.HeatStore, recorder metrics.Recorder) *RegenerationService {
	return &RegenerationService{db: db, competitions: competitions, heats: heats, metrics: metrics.OrNop(recorder)}
}

// Regenerate replaces every heat and lane of the competition with a fresh schedule built
// from the updated settings. Old heats are only gone if the new ones replace them.
func (s *RegenerationService) Regenerate(ctx context.Context, competitionID uuid.UUID, update heat.SettingsUpdate) (_ []heat.Heat, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveRegeneration(time.Since(started), err) }()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	setting, err := s.competitions.GetScoreSettingTx(ctx, tx, competitionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScoreSettingMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get score setting: %w", err)
	}

	update.Apply(setting)
	if err := setting.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.competitions.UpdateScoreSettingTx(ctx, tx, setting); err != nil {
		return nil, fmt.Errorf("failed to update score setting: %w", err)
	}

	sched, err := loadSchedulingWith(ctx, tx, s.competitions, setting)
	if err != nil {
		return nil, err
	}

	counts, err := s.competitions.CountEntriesByTicketTypeTx(ctx, tx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}
	entries, err := s.competitions.GetEntriesTx(ctx, tx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}

	if err := s.heats.DeleteForCompetitionTx(ctx, tx, competitionID); err != nil {
		return nil, err
	}

	plan, err := schedule.PlanHeatCounts(sched.workouts, sched.ticketTypes, *setting, counts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	boards := s.layoutBoards(sched, plan)
	candidates := sched.candidates(entries)

	results := make([]schedule.Result, len(boards))
	var g errgroup.Group
	for i, board := range boards {
		g.Go(func() error {
			res, err := placeAll(board, candidates)
			if err != nil {
				return fmt.Errorf("workout %s: %w", board.WorkoutID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var slots []*schedule.Slot
	var lanes []heat.Lane
	overflow, overflowLanes := 0, 0
	for i, board := range boards {
		slots = append(slots, board.Slots...)
		lanes = append(lanes, results[i].Lanes...)
		overflow += len(results[i].Created)
		for _, slot := range results[i].Created {
			overflowLanes += len(slot.Lanes)
		}
		if results[i].OverCap {
			slog.Warn("workout exceeds advisory heat cap",
				"workout_id", board.WorkoutID, "heats", len(board.Slots), "cap", board.Rules.HeatCap)
		}
	}

	if err := createSlotsTx(ctx, tx, s.heats, slots); err != nil {
		return nil, err
	}
	if err := s.heats.CreateLanesTx(ctx, tx, lanes); err != nil {
		return nil, fmt.Errorf("failed to create lanes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.metrics.HeatsCreated("regeneration", len(slots)-overflow)
	s.metrics.HeatsCreated("overflow", overflow)
	s.metrics.LanesPlaced("bulk", len(lanes)-overflowLanes)
	s.metrics.LanesPlaced("incremental", overflowLanes)
	slog.Info("schedule regenerated", "competition_id", competitionID, "heats", len(slots), "lanes", len(lanes))

	out := make([]heat.Heat, len(slots))
	for i, slot := range slots {
		out[i] = slot.Heat
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// layoutBoards creates the fresh, empty heats of every workout with cascaded start times.
func (s *RegenerationService) layoutBoards(sched *scheduling, plan schedule.Plan) []*schedule.Board {
	rules := sched.rules()
	boards := make([]*schedule.Board, len(sched.workouts))
	for i, w := range sched.workouts {
		layout := schedule.Layout(plan.ForWorkout(w.ID), rules.OneTicketPerHeat)
		times := schedule.ScheduleStartTimes(nil, len(layout), rules.Anchor, rules.SpacingMinutes, rules.Location)

		var heats []heat.Heat
		var allowed []heat.HeatTicketType
		for j, set := range layout {
			h := heat.Heat{ID: uuid.New(), WorkoutID: w.ID, StartTime: times[j], MaxLimitPerHeat: rules.MaxLimitPerHeat}
			heats = append(heats, h)
			for _, id := range set {
				allowed = append(allowed, heat.HeatTicketType{HeatID: h.ID, TicketTypeID: id})
			}
		}
		boards[i] = schedule.NewBoard(w.ID, rules, heats, allowed, nil)
	}
	return boards
}

// placeAll runs the bulk placer and hands whatever it could not place to the
// incremental placer, which opens overflow heats at the end of the workout.
func placeAll(board *schedule.Board, candidates []schedule.Candidate) (schedule.Result, error) {
	res, err := schedule.Bulk{}.Place(board, candidates)
	if err != nil || len(res.Unplaced) == 0 {
		return res, err
	}

	overflow, err := schedule.Incremental{}.Place(board, res.Unplaced)
	if err != nil {
		return res, err
	}
	res.Lanes = append(res.Lanes, overflow.Lanes...)
	res.Created = overflow.Created
	res.Unplaced = overflow.Unplaced
	res.OverCap = res.OverCap || overflow.OverCap
	return res, nil
}
