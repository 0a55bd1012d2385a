package heat

import (
	"time"

	"github.com/google/uuid"
)

type Heat struct {
	ID              uuid.UUID `db:"id" json:"id"`
	WorkoutID       uuid.UUID `db:"workout_id" json:"workoutId"`
	StartTime       time.Time `db:"start_time" json:"startTime"`
	MaxLimitPerHeat int       `db:"max_limit_per_heat" json:"maxLimitPerHeat"`
}

// HeatTicketType is one row of the allowed ticket type set of a heat.
type HeatTicketType struct {
	HeatID       uuid.UUID `db:"heat_id" json:"heatId"`
	TicketTypeID uuid.UUID `db:"ticket_type_id" json:"ticketTypeId"`
}

type Lane struct {
	ID      uuid.UUID `db:"id" json:"id"`
	HeatID  uuid.UUID `db:"heat_id" json:"heatId"`
	EntryID uuid.UUID `db:"entry_id" json:"entryId"`
	Number  int       `db:"number" json:"number"`
}

// PlacedLane is a lane joined with the ticket type, team size and name of its entry.
type PlacedLane struct {
	Lane
	TicketTypeID uuid.UUID `db:"ticket_type_id" json:"ticketTypeId"`
	TeamSize     int       `db:"team_size" json:"teamSize"`
	EntryName    string    `db:"entry_name" json:"entryName"`
}
