package schedule

import (
	"slices"
	"sort"
	"time"

	"github.com/AdamBeresnev/heat-scheduler/internal/heat"
	"github.com/google/uuid"
)

// Candidate is one entry waiting for a lane.
type Candidate struct {
	EntryID      uuid.UUID
	TicketTypeID uuid.UUID
	TeamSize     int
}

// Rules are the scheduling settings a placer works under. Order is passed in explicitly
// by the caller and is never read from the stored setting.
type Rules struct {
	Mode             heat.LimitType
	OneTicketPerHeat bool
	Order            []uuid.UUID
	MaxLimitPerHeat  int
	SpacingMinutes   int
	Anchor           time.Time
	Location         *time.Location
	HeatCap          int
}

func NewRules(setting heat.ScoreSetting, order []uuid.UUID, anchor time.Time, loc *time.Location) Rules {
	return Rules{
		Mode:             setting.HeatLimitType,
		OneTicketPerHeat: setting.OneTicketPerHeat,
		Order:            order,
		MaxLimitPerHeat:  setting.MaxLimitPerHeat,
		SpacingMinutes:   setting.HeatsEveryXMinutes,
		Anchor:           anchor,
		Location:         loc,
		HeatCap:          setting.HeatCap(),
	}
}

// Slot is a heat together with its allowed ticket types and current lanes.
type Slot struct {
	Heat    heat.Heat
	Allowed []uuid.UUID
	Lanes   []heat.Lane
	Load    heat.Load
	Created bool
}

func (s *Slot) Allows(ticketTypeID uuid.UUID) bool {
	return slices.Contains(s.Allowed, ticketTypeID)
}

// Full asks the capacity oracle whether an entry of teamSize can still join.
func (s *Slot) Full(mode heat.LimitType, teamSize int) bool {
	return IsHeatFull(s.Heat, mode, s.Load, teamSize)
}

func (s *Slot) place(c Candidate) heat.Lane {
	next := 1
	for _, l := range s.Lanes {
		if l.Number >= next {
			next = l.Number + 1
		}
	}
	lane := heat.Lane{ID: uuid.New(), HeatID: s.Heat.ID, EntryID: c.EntryID, Number: next}
	s.Lanes = append(s.Lanes, lane)
	s.Load = s.Load.Add(c.TeamSize)
	return lane
}

// Board is the schedule of one workout as seen by a placer.
type Board struct {
	WorkoutID uuid.UUID
	Rules     Rules
	Slots     []*Slot
}

// NewBoard assembles a board from persisted rows. Rows of other workouts are ignored.
func NewBoard(workoutID uuid.UUID, rules Rules, heats []heat.Heat, allowed []heat.HeatTicketType, lanes []heat.PlacedLane) *Board {
	b := &Board{WorkoutID: workoutID, Rules: rules}
	byID := make(map[uuid.UUID]*Slot)
	for _, h := range heats {
		if h.WorkoutID != workoutID {
			continue
		}
		s := &Slot{Heat: h}
		byID[h.ID] = s
		b.Slots = append(b.Slots, s)
	}
	for _, a := range allowed {
		if s, ok := byID[a.HeatID]; ok {
			s.Allowed = append(s.Allowed, a.TicketTypeID)
		}
	}
	for _, l := range lanes {
		if s, ok := byID[l.HeatID]; ok {
			s.Lanes = append(s.Lanes, l.Lane)
			s.Load = s.Load.Add(max(l.TeamSize, 1))
		}
	}
	for _, s := range b.Slots {
		rules.sortByOrder(s.Allowed)
		sort.Slice(s.Lanes, func(i, j int) bool { return s.Lanes[i].Number < s.Lanes[j].Number })
	}
	b.sortSlots()
	return b
}

// Holds reports whether the entry already has a lane on this board.
func (b *Board) Holds(entryID uuid.UUID) bool {
	for _, s := range b.Slots {
		for _, l := range s.Lanes {
			if l.EntryID == entryID {
				return true
			}
		}
	}
	return false
}

func (b *Board) sortSlots() {
	sort.SliceStable(b.Slots, func(i, j int) bool {
		return b.Slots[i].Heat.StartTime.Before(b.Slots[j].Heat.StartTime)
	})
}

func (b *Board) latestStart() (time.Time, bool) {
	var latest time.Time
	for i, s := range b.Slots {
		if i == 0 || s.Heat.StartTime.After(latest) {
			latest = s.Heat.StartTime
		}
	}
	return latest, len(b.Slots) > 0
}

// sortByOrder orders ids by their position in the rules order; unknown ids go last.
func (r Rules) sortByOrder(ids []uuid.UUID) {
	rank := func(id uuid.UUID) int {
		if i := slices.Index(r.Order, id); i >= 0 {
			return i
		}
		return len(r.Order)
	}
	sort.SliceStable(ids, func(i, j int) bool { return rank(ids[i]) < rank(ids[j]) })
}

// Result is what a placer changed on a board.
type Result struct {
	Lanes    []heat.Lane
	Created  []*Slot
	Unplaced []Candidate
	OverCap  bool
}
