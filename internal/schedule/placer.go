package schedule

import (
	"errors"
	"time"

	"github.com/AdamBeresnev/heat-scheduler/internal/heat"
	"github.com/google/uuid"
)

// ErrEntryTooLarge means an entry does not fit even an empty heat.
var ErrEntryTooLarge = errors.New("entry does not fit an empty heat")

// Placer puts candidates into lanes on a board. Bulk regeneration and single registrant
// placement are both placers and must agree on the capacity, numbering and eligibility
// rules.
type Placer interface {
	Place(board *Board, candidates []Candidate) (Result, error)
}

// Bulk fills the existing heats of a board in start time order and never creates heats.
// Candidates it cannot place are returned as unplaced.
type Bulk struct{}

var _ Placer = Bulk{}

func (Bulk) Place(board *Board, candidates []Candidate) (Result, error) {
	board.sortSlots()
	queues := newQueues(candidates)

	var res Result
	for _, slot := range board.Slots {
		if len(slot.Allowed) == 0 {
			continue
		}
		if board.Rules.OneTicketPerHeat {
			res.Lanes = append(res.Lanes, fillDedicated(board.Rules.Mode, slot, queues)...)
		} else {
			res.Lanes = append(res.Lanes, fillMixed(board.Rules.Mode, slot, queues)...)
		}
	}

	res.Unplaced = queues.remaining(board.Rules.Order)
	res.OverCap = board.Rules.HeatCap > 0 && len(board.Slots) > board.Rules.HeatCap
	return res, nil
}

// fillDedicated gives the heat to the first ticket type of its allowed set.
func fillDedicated(mode heat.LimitType, slot *Slot, q *queues) []heat.Lane {
	ticketTypeID := slot.Allowed[0]
	var lanes []heat.Lane
	for {
		c, ok := q.peek(ticketTypeID)
		if !ok || slot.Full(mode, c.TeamSize) {
			return lanes
		}
		q.pop(ticketTypeID)
		lanes = append(lanes, slot.place(c))
	}
}

// fillMixed walks the allowed ticket types cyclically, taking one entry per type per
// turn. A type whose next entry does not fit is blocked for the rest of this heat.
func fillMixed(mode heat.LimitType, slot *Slot, q *queues) []heat.Lane {
	blocked := make(map[uuid.UUID]bool)
	var lanes []heat.Lane
	for {
		progressed := false
		for _, ticketTypeID := range slot.Allowed {
			if blocked[ticketTypeID] {
				continue
			}
			c, ok := q.peek(ticketTypeID)
			if !ok {
				continue
			}
			if slot.Full(mode, c.TeamSize) {
				blocked[ticketTypeID] = true
				continue
			}
			q.pop(ticketTypeID)
			lanes = append(lanes, slot.place(c))
			progressed = true
		}
		if !progressed {
			return lanes
		}
	}
}

// Incremental places each candidate into the first heat in time order that allows its
// ticket type and has room, creating one heat at the end of the board when none does.
type Incremental struct{}

var _ Placer = Incremental{}

func (Incremental) Place(board *Board, candidates []Candidate) (Result, error) {
	board.sortSlots()

	var res Result
	for _, c := range candidates {
		c.TeamSize = max(c.TeamSize, 1)
		slot := firstOpen(board, c)
		if slot == nil {
			var err error
			slot, err = openSlot(board, c)
			if err != nil {
				res.Unplaced = append(res.Unplaced, c)
				return res, err
			}
			res.Created = append(res.Created, slot)
		}
		res.Lanes = append(res.Lanes, slot.place(c))
	}
	res.OverCap = board.Rules.HeatCap > 0 && len(board.Slots) > board.Rules.HeatCap
	return res, nil
}

func firstOpen(board *Board, c Candidate) *Slot {
	for _, s := range board.Slots {
		if s.Allows(c.TicketTypeID) && !s.Full(board.Rules.Mode, c.TeamSize) {
			return s
		}
	}
	return nil
}

func openSlot(board *Board, c Candidate) (*Slot, error) {
	rules := board.Rules
	if rules.MaxLimitPerHeat < 1 {
		return nil, ErrInvalidLimit
	}

	var existing []time.Time
	if latest, ok := board.latestStart(); ok {
		existing = append(existing, latest)
	}
	start := ScheduleStartTimes(existing, 1, rules.Anchor, rules.SpacingMinutes, rules.Location)[0]

	slot := &Slot{
		Heat: heat.Heat{
			ID:              uuid.New(),
			WorkoutID:       board.WorkoutID,
			StartTime:       start,
			MaxLimitPerHeat: rules.MaxLimitPerHeat,
		},
		Allowed: []uuid.UUID{c.TicketTypeID},
		Created: true,
	}
	if slot.Full(rules.Mode, c.TeamSize) {
		return nil, ErrEntryTooLarge
	}
	board.Slots = append(board.Slots, slot)
	return slot, nil
}

// queues are FIFO entry queues per ticket type, in arrival order.
type queues struct {
	byType map[uuid.UUID][]Candidate
	types  []uuid.UUID
}

func newQueues(candidates []Candidate) *queues {
	q := &queues{byType: make(map[uuid.UUID][]Candidate)}
	for _, c := range candidates {
		c.TeamSize = max(c.TeamSize, 1)
		if _, ok := q.byType[c.TicketTypeID]; !ok {
			q.types = append(q.types, c.TicketTypeID)
		}
		q.byType[c.TicketTypeID] = append(q.byType[c.TicketTypeID], c)
	}
	return q
}

func (q *queues) peek(ticketTypeID uuid.UUID) (Candidate, bool) {
	list := q.byType[ticketTypeID]
	if len(list) == 0 {
		return Candidate{}, false
	}
	return list[0], true
}

func (q *queues) pop(ticketTypeID uuid.UUID) {
	q.byType[ticketTypeID] = q.byType[ticketTypeID][1:]
}

// remaining lists what is left, ticket types in order first.
func (q *queues) remaining(order []uuid.UUID) []Candidate {
	types := append([]uuid.UUID(nil), q.types...)
	Rules{Order: order}.sortByOrder(types)

	var out []Candidate
	for _, id := range types {
		out = append(out, q.byType[id]...)
	}
	return out
}
