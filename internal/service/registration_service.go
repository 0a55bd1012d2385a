package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/heat-scheduler/internal/heat"
	"github.com/AdamBeresnev/heat-scheduler/internal/metrics"
	"github.com/AdamBeresnev/heat-scheduler/internal/schedule"
	"github.com/AdamBeresnev/heat-scheduler/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

type RegistrationService struct {
	db           *sqlx.DB
	competitions *store.CompetitionStore
	heats        *store.HeatStore
	cascades     *CascadeService
	tasks        *Tasks
	metrics      metrics.Recorder
}

func NewRegistrationService(db *sqlx.DB, competitions *store.CompetitionStore, heats *store.HeatStore, cascades *CascadeService, tasks *Tasks, recorder metrics.Recorder) *RegistrationService {
	return &RegistrationService{
		db:           db,
		competitions: competitions,
		heats:        heats,
		cascades:     cascades,
		tasks:        tasks,
		metrics:      metrics.OrNop(recorder),
	}
}

type RegisterInput struct {
	EntryID uuid.UUID  `json:"entryId"`
	HeatID  *uuid.UUID `json:"heatId,omitempty"`
}

// Placement lists the lanes created for one entry and the heats opened to hold them.
type Placement struct {
	EntryID uuid.UUID   `json:"entryId"`
	Lanes   []heat.Lane `json:"lanes"`
	Created []heat.Heat `json:"createdHeats"`
}

// Register gives a newly registered entry its lanes. With a selected heat the entry is
// placed there or rejected; otherwise it is placed once in every workout.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput) (*Placement, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entry, err := s.competitions.GetEntryTx(ctx, tx, in.EntryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	ticketType, err := s.competitions.GetTicketTypeTx(ctx, tx, entry.TicketTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket type: %w", err)
	}
	if ticketType.IsVolunteer {
		return &Placement{EntryID: entry.ID}, nil
	}

	if in.HeatID != nil {
		return s.placeInHeat(ctx, tx, entry, ticketType, *in.HeatID)
	}
	return s.placeEverywhere(ctx, tx, entry, ticketType)
}

func (s *RegistrationService) placeInHeat(ctx context.Context, tx *sqlx.Tx, entry *heat.Entry, ticketType *heat.TicketType, heatID uuid.UUID) (*Placement, error) {
	if !ticketType.AllowHeatSelection {
		return nil, ErrHeatSelectionDisabled
	}

	h, err := s.heats.GetHeatTx(ctx, tx, heatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHeatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get heat: %w", err)
	}

	workout, err := s.competitions.GetWorkoutTx(ctx, tx, h.WorkoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workout: %w", err)
	}
	if workout.CompetitionID != entry.CompetitionID {
		return nil, ErrHeatNotFound
	}

	setting, err := s.competitions.GetScoreSettingTx(ctx, tx, entry.CompetitionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScoreSettingMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get score setting: %w", err)
	}

	allowed, err := s.heats.IsAllowedTx(ctx, tx, h.ID, ticketType.ID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrTicketTypeNotAllowed
	}

	placed, err := s.heats.EntryInWorkoutTx(ctx, tx, entry.ID, h.WorkoutID)
	if err != nil {
		return nil, err
	}
	if placed {
		return nil, ErrEntryAlreadyPlaced
	}

	load, err := s.heats.HeatLoadTx(ctx, tx, h.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load heat: %w", err)
	}
	if schedule.IsHeatFull(*h, setting.HeatLimitType, load, ticketType.Size()) {
		return nil, ErrHeatFull
	}

	lane := heat.Lane{ID: uuid.New(), HeatID: h.ID, EntryID: entry.ID, Number: load.Entries + 1}
	if err := s.heats.CreateLanesTx(ctx, tx, []heat.Lane{lane}); err != nil {
		return nil, fmt.Errorf("failed to create lane: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.metrics.LanesPlaced("selected", 1)
	return &Placement{EntryID: entry.ID, Lanes: []heat.Lane{lane}}, nil
}

// placeEverywhere decides the entry's lane in every workout before writing anything. A
// failure in any workout rolls back all of them and is reported per workout.
func (s *RegistrationService) placeEverywhere(ctx context.Context, tx *sqlx.Tx, entry *heat.Entry, ticketType *heat.TicketType) (*Placement, error) {
	sched, err := loadScheduling(ctx, tx, s.competitions, entry.CompetitionID)
	if err != nil {
		return nil, err
	}
	boards, err := sched.loadBoards(ctx, tx, s.heats)
	if err != nil {
		return nil, err
	}

	candidate := schedule.Candidate{EntryID: entry.ID, TicketTypeID: ticketType.ID, TeamSize: ticketType.Size()}
	results := make([]schedule.Result, len(boards))
	failures := make([]error, len(boards))

	var g errgroup.Group
	for i, board := range boards {
		if board.Holds(entry.ID) {
			continue
		}
		g.Go(func() error {
			results[i], failures[i] = schedule.Incremental{}.Place(board, []schedule.Candidate{candidate})
			return nil
		})
	}
	g.Wait()

	perr := &PlacementError{EntryID: entry.ID, Failed: make(map[uuid.UUID]error)}
	for i, err := range failures {
		if err != nil {
			perr.Failed[boards[i].WorkoutID] = err
		}
	}
	if len(perr.Failed) > 0 {
		return nil, perr
	}

	placement := &Placement{EntryID: entry.ID}
	var created []*schedule.Slot
	// Workouts that gained a heat re-space from their earliest new heat onward.
	cascade := make(map[uuid.UUID]time.Time)
	for i, res := range results {
		placement.Lanes = append(placement.Lanes, res.Lanes...)
		created = append(created, res.Created...)
		for _, slot := range res.Created {
			from, ok := cascade[boards[i].WorkoutID]
			if !ok || slot.Heat.StartTime.Before(from) {
				cascade[boards[i].WorkoutID] = slot.Heat.StartTime
			}
		}
	}
	for _, slot := range created {
		placement.Created = append(placement.Created, slot.Heat)
	}

	if err := createSlotsTx(ctx, tx, s.heats, created); err != nil {
		return nil, err
	}
	if err := s.heats.CreateLanesTx(ctx, tx, placement.Lanes); err != nil {
		return nil, fmt.Errorf("failed to create lanes: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.metrics.LanesPlaced("incremental", len(placement.Lanes))
	s.metrics.HeatsCreated("registration", len(created))
	slog.Info("entry placed", "entry_id", entry.ID, "lanes", len(placement.Lanes), "heats_created", len(created))

	for workoutID, from := range cascade {
		s.tasks.Go(ctx, "cascade", s.cascades.CascadeFromTask(workoutID, from))
	}
	return placement, nil
}
