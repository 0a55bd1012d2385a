package heat

import "fmt"

// LimitType decides what one unit of heat capacity is.
type LimitType string

const (
	LimitAthletes LimitType = "ATHLETES"
	LimitEntries  LimitType = "ENTRIES"
)

func ParseLimitType(s string) (LimitType, error) {
	switch LimitType(s) {
	case LimitAthletes, LimitEntries:
		return LimitType(s), nil
	}
	return "", fmt.Errorf("unknown heat limit type %q", s)
}

// Load is what a heat currently holds.
type Load struct {
	Entries  int `db:"entries"`
	Athletes int `db:"athletes"`
}

// Add returns the load after placing one entry of the given team size.
func (l Load) Add(teamSize int) Load {
	return Load{Entries: l.Entries + 1, Athletes: l.Athletes + teamSize}
}

// Units is the capacity consumed by the load under this limit type.
func (t LimitType) Units(l Load) int {
	if t == LimitAthletes {
		return l.Athletes
	}
	return l.Entries
}

// Full reports whether a heat with the given limit and load cannot take an entry of
// teamSize athletes. Entry counting ignores the candidate, athlete counting adds it.
func (t LimitType) Full(limit int, l Load, teamSize int) bool {
	if t == LimitAthletes {
		return l.Athletes+teamSize > limit
	}
	return l.Entries >= limit
}

// HeatsNeeded is ceil(demand / limit) where demand is counted in this limit type's units.
func (t LimitType) HeatsNeeded(entryCount, teamSize, limit int) int {
	demand := entryCount
	if t == LimitAthletes {
		demand = entryCount * teamSize
	}
	if limit <= 0 || demand <= 0 {
		return 0
	}
	return (demand + limit - 1) / limit
}
