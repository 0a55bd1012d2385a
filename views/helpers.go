package views

import (
	"time"

	"github.com/AdamBeresnev/heat-scheduler/internal/heat"
)

// location falls back to UTC when the competition's timezone cannot be loaded.
func location(c *heat.Competition) *time.Location {
	loc, err := c.Location()
	if err != nil {
		return time.UTC
	}
	return loc
}
