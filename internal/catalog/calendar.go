package catalog

import (
	"fmt"
	"time"
)

// Calendar answers "is the shop open right now" from a fixed daily hour
// range. Hours are evaluated in the shop's own timezone.
type Calendar struct {
	openHour  int
	closeHour int
	loc       *time.Location
}

func NewCalendar(openHour, closeHour int, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if openHour < 0 || openHour > 23 {
		openHour = 0
	}
	if closeHour < 0 || closeHour > 23 {
		closeHour = 0
	}
	return &Calendar{openHour: openHour, closeHour: closeHour, loc: loc}
}

func (c *Calendar) IsOpen(now time.Time) bool {
	h := now.In(c.loc).Hour()
	if c.openHour == c.closeHour {
		return false
	}
	if c.openHour < c.closeHour {
		return h >= c.openHour && h < c.closeHour
	}
	// overnight range, e.g. 18:00-02:00
	return h >= c.openHour || h < c.closeHour
}

func (c *Calendar) StatusText(now time.Time) string {
	if c.IsOpen(now) {
		h := now.In(c.loc).Hour()
		remaining := c.closeHour - h
		if remaining < 0 {
			remaining += 24
		}
		return fmt.Sprintf("Open (%d h left today)", remaining)
	}
	return fmt.Sprintf("Closed. We open at %02d:00", c.openHour)
}

func (c *Calendar) Hours() (open, close int) {
	return c.openHour, c.closeHour
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}
