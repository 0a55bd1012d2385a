package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/heat-scheduler/internal/heat"
	"github.com/AdamBeresnev/heat-scheduler/internal/schedule"
	"github.com/AdamBeresnev/heat-scheduler/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type CascadeService struct {
	db           *sqlx.DB
	competitions *store.CompetitionStore
	heats        *store.HeatStore
}

func NewCascadeService(db *sqlx.DB, competitions *store.CompetitionStore, heats *store.HeatStore) *CascadeService {
	return &CascadeService{db: db, competitions: competitions, heats: heats}
}

// CascadeWorkout re-spaces the heats of a workout so they follow each other at the
// configured interval, starting from the earliest heat.
func (s *CascadeService) CascadeWorkout(ctx context.Context, workoutID uuid.UUID) ([]heat.Heat, error) {
	return s.cascade(ctx, workoutID, nil)
}

// CascadeWorkoutFrom re-spaces only the heats of a workout starting at or after from,
// anchored at from. Breaks and gaps before from survive.
func (s *CascadeService) CascadeWorkoutFrom(ctx context.Context, workoutID uuid.UUID, from time.Time) ([]heat.Heat, error) {
	return s.cascade(ctx, workoutID, &from)
}

func (s *CascadeService) cascade(ctx context.Context, workoutID uuid.UUID, from *time.Time) ([]heat.Heat, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	workout, err := s.competitions.GetWorkoutTx(ctx, tx, workoutID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorkoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workout: %w", err)
	}

	sched, err := loadScheduling(ctx, tx, s.competitions, workout.CompetitionID)
	if err != nil {
		return nil, err
	}

	heats, err := s.heats.GetWorkoutHeatsTx(ctx, tx, workoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to get heats: %w", err)
	}
	if len(heats) == 0 {
		return nil, tx.Commit()
	}

	var shifted []heat.Heat
	if from != nil {
		shifted = schedule.CascadeFrom(heats, *from, sched.setting.HeatsEveryXMinutes, sched.location)
	} else {
		anchor := heats[0].StartTime
		for _, h := range heats[1:] {
			if h.StartTime.Before(anchor) {
				anchor = h.StartTime
			}
		}
		shifted = schedule.CascadeShift(heats, anchor, sched.setting.HeatsEveryXMinutes, sched.location)
	}
	if err := s.heats.UpdateStartTimesTx(ctx, tx, shifted); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("workout heats cascaded", "workout_id", workoutID, "heats", len(shifted))
	return shifted, nil
}

// CascadeFromTask adapts CascadeWorkoutFrom to the post-commit task runner.
func (s *CascadeService) CascadeFromTask(workoutID uuid.UUID, from time.Time) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.CascadeWorkoutFrom(ctx, workoutID, from)
		return err
	}
}

// InsertBreak pushes every heat of the competition starting at or after breakStart back
// by exactly durationMinutes of elapsed time. Heats before the break keep their times.
func (s *CascadeService) InsertBreak(ctx context.Context, competitionID uuid.UUID, breakStart time.Time, durationMinutes int) ([]heat.Heat, error) {
	if durationMinutes <= 0 {
		return nil, ErrInvalidBreak
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := s.competitions.GetCompetitionTx(ctx, tx, competitionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to get competition: %w", err)
	}

	heats, err := s.heats.GetHeatsTx(ctx, tx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get heats: %w", err)
	}

	moved := schedule.ShiftAfter(heats, breakStart, durationMinutes)
	if err := s.heats.UpdateStartTimesTx(ctx, tx, moved); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("break inserted", "competition_id", competitionID, "start", breakStart, "minutes", durationMinutes, "moved", len(moved))
	return moved, nil
}
