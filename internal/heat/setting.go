package heat

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxHeatsPerWorkout bounds the advisory totalHeatsPerWorkout cap.
const MaxHeatsPerWorkout = 100

type ScoreSetting struct {
	ID                   uuid.UUID  `db:"id"`
	CompetitionID        uuid.UUID  `db:"competition_id"`
	HeatsEveryXMinutes   int        `db:"heats_every_x_minutes"`
	MaxLimitPerHeat      int        `db:"max_limit_per_heat"`
	HeatLimitType        LimitType  `db:"heat_limit_type"`
	OneTicketPerHeat     bool       `db:"one_ticket_per_heat"`
	TicketTypeOrderIDs   IDList     `db:"ticket_type_order_ids"`
	TotalHeatsPerWorkout *int       `db:"total_heats_per_workout"`
	FirstHeatStartTime   *time.Time `db:"first_heat_start_time"`
	Lanes                int        `db:"lanes"`
}

// HeatCap is the clamped advisory cap, zero when unset.
func (s *ScoreSetting) HeatCap() int {
	if s.TotalHeatsPerWorkout == nil || *s.TotalHeatsPerWorkout <= 0 {
		return 0
	}
	return min(*s.TotalHeatsPerWorkout, MaxHeatsPerWorkout)
}

func (s *ScoreSetting) Validate() error {
	if s.MaxLimitPerHeat < 1 {
		return fmt.Errorf("max limit per heat must be at least 1, got %d", s.MaxLimitPerHeat)
	}
	if s.HeatsEveryXMinutes < 0 {
		return fmt.Errorf("heat spacing must not be negative, got %d", s.HeatsEveryXMinutes)
	}
	if _, err := ParseLimitType(string(s.HeatLimitType)); err != nil {
		return err
	}
	return nil
}

// SettingsUpdate carries the optional fields of a regenerate request. Only non-nil
// fields overwrite the stored setting.
type SettingsUpdate struct {
	OneTicketPerHeat     *bool        `json:"oneTicketPerHeat,omitempty"`
	FirstHeatStartTime   *time.Time   `json:"firstHeatStartTime,omitempty"`
	HeatsEveryXMinutes   *int         `json:"heatsEveryXMinutes,omitempty"`
	Lanes                *int         `json:"lanes,omitempty"`
	TotalHeatsPerWorkout *int         `json:"totalHeatsPerWorkout,omitempty"`
	MaxLimitPerHeat      *int         `json:"maxLimitPerHeat,omitempty"`
	HeatLimitType        *LimitType   `json:"heatLimitType,omitempty"`
	TicketTypeOrderIDs   *[]uuid.UUID `json:"ticketTypeOrderIds,omitempty"`
}

func (u SettingsUpdate) Apply(s *ScoreSetting) {
	if u.OneTicketPerHeat != nil {
		s.OneTicketPerHeat = *u.OneTicketPerHeat
	}
	if u.FirstHeatStartTime != nil {
		t := u.FirstHeatStartTime.UTC()
		s.FirstHeatStartTime = &t
	}
	if u.HeatsEveryXMinutes != nil {
		s.HeatsEveryXMinutes = *u.HeatsEveryXMinutes
	}
	if u.Lanes != nil {
		s.Lanes = *u.Lanes
		if u.MaxLimitPerHeat == nil {
			s.MaxLimitPerHeat = *u.Lanes
		}
	}
	if u.TotalHeatsPerWorkout != nil {
		capped := min(*u.TotalHeatsPerWorkout, MaxHeatsPerWorkout)
		s.TotalHeatsPerWorkout = &capped
	}
	if u.MaxLimitPerHeat != nil {
		s.MaxLimitPerHeat = *u.MaxLimitPerHeat
	}
	if u.HeatLimitType != nil {
		s.HeatLimitType = *u.HeatLimitType
	}
	if u.TicketTypeOrderIDs != nil {
		s.TicketTypeOrderIDs = IDList(*u.TicketTypeOrderIDs)
	}
}

// IDList is an ordered id list stored as a JSON array.
type IDList []uuid.UUID

func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]uuid.UUID(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *IDList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return errors.New("unsupported type for id list")
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("decode id list: %w", err)
	}
	*l = ids
	return nil
}
