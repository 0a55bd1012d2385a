package schedule

import (
	"sort"
	"time"

	"github.com/AdamBeresnev/heat-scheduler/internal/heat"
)

// AddMinutes adds minutes on the wall clock of loc, so a heat at 09:00 stays at 09:00
// local time across a DST change.
func AddMinutes(t time.Time, minutes int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute()+minutes, l.Second(), l.Nanosecond(), loc)
}

// ScheduleStartTimes returns start times for count new heats. With existing heats the
// first new heat starts one interval after the latest of them, otherwise at anchor.
func ScheduleStartTimes(existing []time.Time, count int, anchor time.Time, spacingMinutes int, loc *time.Location) []time.Time {
	if count <= 0 {
		return nil
	}

	next := anchor
	if len(existing) > 0 {
		latest := existing[0]
		for _, t := range existing[1:] {
			if t.After(latest) {
				latest = t
			}
		}
		next = AddMinutes(latest, spacingMinutes, loc)
	} else if loc != nil {
		next = anchor.In(loc)
	}

	times := make([]time.Time, count)
	for i := range times {
		times[i] = next
		next = AddMinutes(next, spacingMinutes, loc)
	}
	return times
}

func sortedByStart(heats []heat.Heat) []heat.Heat {
	out := append([]heat.Heat(nil), heats...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// CascadeShift rewrites every heat to anchor + index*spacing in time order. Original
// times only decide the order.
func CascadeShift(heats []heat.Heat, anchor time.Time, spacingMinutes int, loc *time.Location) []heat.Heat {
	out := sortedByStart(heats)
	times := ScheduleStartTimes(nil, len(out), anchor, spacingMinutes, loc)
	for i := range out {
		out[i].StartTime = times[i]
	}
	return out
}

// CascadeFrom re-spaces the heats starting at or after from so they follow each other
// at the interval, anchored at from. Earlier heats and the gaps between them are left
// alone. Only the re-spaced heats are returned.
func CascadeFrom(heats []heat.Heat, from time.Time, spacingMinutes int, loc *time.Location) []heat.Heat {
	var tail []heat.Heat
	for _, h := range heats {
		if !h.StartTime.Before(from) {
			tail = append(tail, h)
		}
	}
	if len(tail) == 0 {
		return nil
	}
	return CascadeShift(tail, from, spacingMinutes, loc)
}

// ShiftAfter moves heats starting at or after breakStart later by exactly
// durationMinutes of elapsed time and returns only the heats it moved. Earlier heats
// are untouched.
func ShiftAfter(heats []heat.Heat, breakStart time.Time, durationMinutes int) []heat.Heat {
	shift := time.Duration(durationMinutes) * time.Minute
	var moved []heat.Heat
	for _, h := range sortedByStart(heats) {
		if h.StartTime.Before(breakStart) {
			continue
		}
		h.StartTime = h.StartTime.Add(shift)
		moved = append(moved, h)
	}
	return moved
}
