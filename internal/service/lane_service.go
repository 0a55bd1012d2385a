package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AdamBeresnev/heat-scheduler/internal/heat"
	"github.com/AdamBeresnev/heat-scheduler/internal/schedule"
	"github.com/AdamBeresnev/heat-scheduler/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// LaneService handles manual edits organizers make to an existing schedule.
type LaneService struct {
	db           *sqlx.DB
	competitions *store.CompetitionStore
	heats        *store.HeatStore
}

func NewLaneService(db *sqlx.DB, competitions *store.CompetitionStore, heats *store.HeatStore) *LaneService {
	return &LaneService{db: db, competitions: competitions, heats: heats}
}

// MoveLane moves a lane to the end of another heat of the same workout. A nil target
// unassigns the entry. The source heat is renumbered either way.
func (s *LaneService) MoveLane(ctx context.Context, laneID uuid.UUID, target *uuid.UUID) (*heat.Lane, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	lane, err := s.heats.GetLaneTx(ctx, tx, laneID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLaneNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lane: %w", err)
	}

	if target == nil {
		if err := s.heats.DeleteLaneTx(ctx, tx, lane.ID); err != nil {
			return nil, fmt.Errorf("failed to delete lane: %w", err)
		}
		if err := s.heats.CompactLanesTx(ctx, tx, lane.HeatID); err != nil {
			return nil, err
		}
		slog.Info("lane unassigned", "lane_id", lane.ID, "heat_id", lane.HeatID)
		return nil, tx.Commit()
	}
	if *target == lane.HeatID {
		return lane, tx.Commit()
	}

	src, err := s.getHeat(ctx, tx, lane.HeatID)
	if err != nil {
		return nil, err
	}
	dst, err := s.getHeat(ctx, tx, *target)
	if err != nil {
		return nil, err
	}
	if src.WorkoutID != dst.WorkoutID {
		return nil, ErrWorkoutMismatch
	}

	entry, err := s.competitions.GetEntryTx(ctx, tx, lane.EntryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	ticketType, err := s.competitions.GetTicketTypeTx(ctx, tx, entry.TicketTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket type: %w", err)
	}

	allowed, err := s.heats.IsAllowedTx(ctx, tx, dst.ID, ticketType.ID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrTicketTypeNotAllowed
	}

	mode, err := s.limitType(ctx, tx, entry.CompetitionID)
	if err != nil {
		return nil, err
	}
	load, err := s.heats.HeatLoadTx(ctx, tx, dst.ID)
	if err != nil {
		return nil, err
	}
	if schedule.IsHeatFull(*dst, mode, load, ticketType.Size()) {
		return nil, ErrHeatFull
	}

	if err := s.heats.MoveLaneTx(ctx, tx, lane.ID, dst.ID, load.Entries+1); err != nil {
		return nil, fmt.Errorf("failed to move lane: %w", err)
	}
	if err := s.heats.CompactLanesTx(ctx, tx, src.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	lane.HeatID = dst.ID
	lane.Number = load.Entries + 1
	return lane, nil
}

// ReorderLanes renumbers a heat's lanes 1..N in the given order. laneIDs must be a
// permutation of the heat's lanes.
func (s *LaneService) ReorderLanes(ctx context.Context, heatID uuid.UUID, laneIDs []uuid.UUID) ([]heat.Lane, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := s.getHeat(ctx, tx, heatID); err != nil {
		return nil, err
	}
	lanes, err := s.heats.GetHeatLanesTx(ctx, tx, heatID)
	if err != nil {
		return nil, err
	}
	if len(lanes) != len(laneIDs) {
		return nil, ErrInvalidLaneOrder
	}

	byID := make(map[uuid.UUID]heat.Lane, len(lanes))
	for _, l := range lanes {
		byID[l.ID] = l
	}
	ordered := make([]heat.Lane, 0, len(laneIDs))
	for i, id := range laneIDs {
		l, ok := byID[id]
		if !ok {
			return nil, ErrInvalidLaneOrder
		}
		delete(byID, id)
		l.Number = i + 1
		ordered = append(ordered, l)
	}

	if err := s.heats.RenumberLanesTx(ctx, tx, heatID, laneIDs); err != nil {
		return nil, err
	}
	return ordered, tx.Commit()
}

// AdjustLaneSpace changes a heat's capacity by delta. Capacity never drops below what
// the heat already holds, nor below one.
func (s *LaneService) AdjustLaneSpace(ctx context.Context, heatID uuid.UUID, delta int) (*heat.Heat, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	h, err := s.getHeat(ctx, tx, heatID)
	if err != nil {
		return nil, err
	}
	workout, err := s.competitions.GetWorkoutTx(ctx, tx, h.WorkoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workout: %w", err)
	}
	mode, err := s.limitType(ctx, tx, workout.CompetitionID)
	if err != nil {
		return nil, err
	}
	load, err := s.heats.HeatLoadTx(ctx, tx, h.ID)
	if err != nil {
		return nil, err
	}

	limit := h.MaxLimitPerHeat + delta
	if limit < max(mode.Units(load), 1) {
		return nil, ErrLanesInUse
	}
	if err := s.heats.UpdateLimitTx(ctx, tx, h.ID, limit); err != nil {
		return nil, fmt.Errorf("failed to update heat limit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	h.MaxLimitPerHeat = limit
	return h, nil
}

// UnregisterEntry removes every lane of the entry and closes the gaps it leaves.
func (s *LaneService) UnregisterEntry(ctx context.Context, entryID uuid.UUID) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := s.competitions.GetEntryTx(ctx, tx, entryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrEntryNotFound
		}
		return 0, fmt.Errorf("failed to get entry: %w", err)
	}

	lanes, err := s.heats.GetEntryLanesTx(ctx, tx, entryID)
	if err != nil {
		return 0, err
	}
	for _, l := range lanes {
		if err := s.heats.DeleteLaneTx(ctx, tx, l.ID); err != nil {
			return 0, fmt.Errorf("failed to delete lane: %w", err)
		}
		if err := s.heats.CompactLanesTx(ctx, tx, l.HeatID); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	slog.Info("entry unregistered", "entry_id", entryID, "lanes_removed", len(lanes))
	return len(lanes), nil
}

func (s *LaneService) getHeat(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*heat.Heat, error) {
	h, err := s.heats.GetHeatTx(ctx, tx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHeatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get heat: %w", err)
	}
	return h, nil
}

func (s *LaneService) limitType(ctx context.Context, tx *sqlx.Tx, competitionID uuid.UUID) (heat.LimitType, error) {
	setting, err := s.competitions.GetScoreSettingTx(ctx, tx, competitionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrScoreSettingMissing
	}
	if err != nil {
		return "", fmt.Errorf("failed to get score setting: %w", err)
	}
	return setting.HeatLimitType, nil
}
