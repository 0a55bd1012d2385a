package heat

import (
	"time"

	"github.com/google/uuid"
)

type Competition struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartTime time.Time `db:"start_time" json:"startTime"`
	Timezone  string    `db:"timezone" json:"timezone"`
}

// Location resolves the competition timezone, falling back to UTC when unset.
func (c *Competition) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

type Workout struct {
	ID            uuid.UUID `db:"id" json:"id"`
	CompetitionID uuid.UUID `db:"competition_id" json:"competitionId"`
	Name          string    `db:"name" json:"name"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

type TicketType struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	CompetitionID      uuid.UUID `db:"competition_id" json:"competitionId"`
	Name               string    `db:"name" json:"name"`
	TeamSize           int       `db:"team_size" json:"teamSize"`
	IsVolunteer        bool      `db:"is_volunteer" json:"isVolunteer"`
	AllowHeatSelection bool      `db:"allow_heat_selection" json:"allowHeatSelection"`
}

// Size never reports less than one athlete per entry.
func (t *TicketType) Size() int {
	if t.TeamSize < 1 {
		return 1
	}
	return t.TeamSize
}

type Entry struct {
	ID            uuid.UUID `db:"id" json:"id"`
	CompetitionID uuid.UUID `db:"competition_id" json:"competitionId"`
	TicketTypeID  uuid.UUID `db:"ticket_type_id" json:"ticketTypeId"`
	Name          string    `db:"name" json:"name"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}
