package markethours

import (
	"fmt"
	"time"
)

// WIB is Western Indonesia Time (UTC+7), the IDX trading timezone.
var WIB = time.FixedZone("WIB", 7*3600)

// Market hours in WIB
const (
	OpenHour    = 9
	OpenMinute  = 0
	CloseHour   = 15
	CloseMinute = 50
)

// IsMarketOpen returns true if t falls within IDX trading hours
// (9:00 AM – 3:50 PM WIB, Mon–Fri, excluding holidays).
func IsMarketOpen(t time.Time) bool {
	wib := t.In(WIB)
	wd := wib.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if IsHoliday(wib) {
		return false
	}
	hm := wib.Hour()*60 + wib.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// IsWeekday returns true if t is Mon–Fri.
func IsWeekday(t time.Time) bool {
	wd := t.In(WIB).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func IsTradingDay(t time.Time) bool {
	wib := t.In(WIB)
	return IsWeekday(wib) && !IsHoliday(wib)
}

// NextOpen returns the next market open time (9:00 AM WIB on next trading day).
// If t is before today's open on a trading day, returns today's open.
func NextOpen(t time.Time) time.Time {
	wib := t.In(WIB)

	// Try today first
	todayOpen := time.Date(wib.Year(), wib.Month(), wib.Day(), OpenHour, OpenMinute, 0, 0, WIB)
	if wib.Before(todayOpen) && IsTradingDay(wib) {
		return todayOpen
	}

	// Otherwise find the next trading day
	d := wib.AddDate(0, 0, 1)
	for i := 0; i < 10; i++ { // max 10 days ahead (holidays + weekends)
		if IsTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), OpenHour, OpenMinute, 0, 0, WIB)
		}
		d = d.AddDate(0, 0, 1)
	}
	// Fallback: next day
	return time.Date(wib.Year(), wib.Month(), wib.Day()+1, OpenHour, OpenMinute, 0, 0, WIB)
}

// TodayClose returns today's market close time (3:50 PM WIB).
func TodayClose(t time.Time) time.Time {
	wib := t.In(WIB)
	return time.Date(wib.Year(), wib.Month(), wib.Day(), CloseHour, CloseMinute, 0, 0, WIB)
}

// TimeUntilClose returns the duration until today's close.
// Returns 0 if market is already closed.
func TimeUntilClose(t time.Time) time.Duration {
	cl := TodayClose(t)
	d := cl.Sub(t.In(WIB))
	if d < 0 {
		return 0
	}
	return d
}

// TimeUntilOpen returns the duration until the next market open.
func TimeUntilOpen(t time.Time) time.Duration {
	return NextOpen(t).Sub(t.In(WIB))
}

// StatusString returns a human-readable market status.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		d := TimeUntilClose(t)
		return fmt.Sprintf("Market Open, closes in %s", fmtDur(d))
	}
	wib := NextOpen(t).In(WIB)
	return fmt.Sprintf("Market Closed, opens %s %s (%s)",
		wib.Weekday().String()[:3], wib.Format("15:04"), fmtDur(TimeUntilOpen(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
