package bars

import (
	"fmt"
	"time"
	_ "time/tzdata"

	drepo "ZoneDesk/internal/domain/repository"
)

const exchangeTZ = "America/New_York"

const (
	rthOpenMinute  = 9*60 + 30
	rthCloseMinute = 16 * 60
	secondsPerDay  = 24 * 60 * 60
)

// Calendar maps unix-second timestamps to session-aligned bucket starts.
type Calendar struct {
	loc *time.Location
}

func NewCalendar() *Calendar {
	return &Calendar{loc: mustTZ(exchangeTZ)}
}

func mustTZ(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("bars: load location %s: %v", name, err))
	}
	return loc
}

// Location returns the exchange time zone.
func (c *Calendar) Location() *time.Location { return c.loc }

// Bucket returns the start of the bucket containing t, or false when the
// timestamp falls outside the session for mode.
func (c *Calendar) Bucket(t int64, tf drepo.Timeframe, mode drepo.SessionMode) (int64, bool) {
	mins := tf.Minutes()
	if mins <= 0 || t <= 0 {
		return 0, false
	}
	if mins >= 1440 {
		return c.DayStart(t), true
	}

	width := int64(mins) * 60
	if mode != drepo.ModeRTH {
		return t - t%width, true
	}

	open, close := c.Session(t)
	if t < open || t >= close {
		return 0, false
	}
	start := open + (t-open)/width*width
	if start >= close {
		return 0, false
	}
	return start, true
}

// DayStart is New York midnight of the calendar day containing t.
func (c *Calendar) DayStart(t int64) int64 {
	y, m, d := time.Unix(t, 0).In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc).Unix()
}

// Session returns the 09:30 and 16:00 anchors of the New York day containing t.
func (c *Calendar) Session(t int64) (open, close int64) {
	y, m, d := time.Unix(t, 0).In(c.loc).Date()
	open = time.Date(y, m, d, rthOpenMinute/60, rthOpenMinute%60, 0, 0, c.loc).Unix()
	close = time.Date(y, m, d, rthCloseMinute/60, rthCloseMinute%60, 0, 0, c.loc).Unix()
	return open, close
}

// InRTH reports whether t lies in [09:30, 16:00) New York time.
func (c *Calendar) InRTH(t int64) bool {
	open, close := c.Session(t)
	return t >= open && t < close
}
