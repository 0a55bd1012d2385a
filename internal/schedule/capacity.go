package schedule

import "github.com/AdamBeresnev/heat-scheduler/internal/heat"

// IsHeatFull is the capacity oracle. The load must come from the same snapshot as the
// write that follows it.
func IsHeatFull(h heat.Heat, mode heat.LimitType, load heat.Load, candidateTeamSize int) bool {
	return mode.Full(h.MaxLimitPerHeat, load, max(candidateTeamSize, 1))
}
