package rating

import (
	"fmt"
	"time"

	"github.com/rtm-python/est/internal/domain"
)

// Periods offered by leaderboards, in display order.
var Periods = []string{"today", "7-days", "30-days", "all-days"}

// ChartDays is the length of trend chart windows.
const ChartDays = 30

// PeriodWindow returns the window of a named period ending at the start of the
// viewer's next calendar day.
func PeriodWindow(period string, now time.Time, loc *time.Location) (Window, error) {
	until := Tomorrow(now, loc)
	switch period {
	case "today":
		return Window{Since: until.AddDate(0, 0, -1), Until: until}, nil
	case "7-days":
		return Window{Since: until.AddDate(0, 0, -7), Until: until}, nil
	case "30-days":
		return Window{Since: until.AddDate(0, 0, -30), Until: until}, nil
	case "all-days":
		return Window{Until: until}, nil
	}
	return Window{}, fmt.Errorf("unknown period %q", period)
}

// ChartWindow is the trailing ChartDays window ending with the viewer's today.
func ChartWindow(now time.Time, loc *time.Location) Window {
	until := Tomorrow(now, loc)
	return Window{Since: until.AddDate(0, 0, -ChartDays), Until: until}
}

// Tomorrow is midnight starting the viewer's next day, as a wall clock reading.
func Tomorrow(now time.Time, loc *time.Location) time.Time {
	local := domain.WallClock(now, loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, time.UTC)
}

// Days lists the day keys covered by a bounded window.
func (w Window) Days() []string {
	if w.Since.IsZero() || w.Until.IsZero() {
		return nil
	}
	var days []string
	for d := w.Since; d.Before(w.Until); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DayLayout))
	}
	return days
}
