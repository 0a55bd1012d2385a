package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Validation errors are returned to the caller and shown to the end user.
var (
	// ErrHeatFull is returned when the heat has no room for the entry.
	ErrHeatFull = errors.New("selected heat is full")

	ErrHeatNotFound  = errors.New("heat not found")
	ErrLaneNotFound  = errors.New("lane not found")
	ErrEntryNotFound = errors.New("entry not found")

	ErrWorkoutNotFound = errors.New("workout not found")

	// ErrTicketTypeNotAllowed is returned when a heat's allowed set excludes the entry's ticket type.
	ErrTicketTypeNotAllowed = errors.New("ticket type is not allowed in this heat")

	ErrHeatSelectionDisabled = errors.New("ticket type does not allow choosing a heat")

	// ErrEntryAlreadyPlaced is returned when the entry already holds a lane in the workout.
	ErrEntryAlreadyPlaced = errors.New("entry already has a lane in this workout")

	// ErrLanesInUse is returned when removing lane space would drop below the current load.
	ErrLanesInUse = errors.New("cannot remove lanes that are in use")

	ErrInvalidLaneOrder = errors.New("lane order must list every lane of the heat exactly once")
	ErrInvalidSettings  = errors.New("invalid scheduling settings")
	ErrInvalidBreak     = errors.New("break duration must be positive")
	ErrWorkoutMismatch  = errors.New("lanes can only move between heats of the same workout")
)

// Consistency errors abort the whole operation.
var (
	ErrScoreSettingMissing = errors.New("score setting missing for competition")
	ErrCompetitionNotFound = errors.New("competition not found")
)

var validationErrors = []error{
	ErrHeatFull,
	ErrTicketTypeNotAllowed,
	ErrHeatSelectionDisabled,
	ErrEntryAlreadyPlaced,
	ErrLanesInUse,
	ErrInvalidLaneOrder,
	ErrInvalidSettings,
	ErrInvalidBreak,
	ErrWorkoutMismatch,
}

func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrHeatNotFound) ||
		errors.Is(err, ErrLaneNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrWorkoutNotFound) ||
		errors.Is(err, ErrCompetitionNotFound)
}

// PlacementError reports the workouts an entry could not be placed in. Nothing was
// written for any workout when it is returned.
type PlacementError struct {
	EntryID uuid.UUID
	Failed  map[uuid.UUID]error
}

func (e *PlacementError) Error() string {
	ids := make([]uuid.UUID, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("workout %s: %v", id, e.Failed[id])
	}
	return fmt.Sprintf("entry %s not placed: %s", e.EntryID, strings.Join(parts, "; "))
}

func (e *PlacementError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}
