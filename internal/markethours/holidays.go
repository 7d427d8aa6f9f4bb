package markethours

import "time"

// IDX trading holidays for 2026.
// Source: IDX trading calendar.
// Format: month, day pairs.
var idxHolidays2026 = []struct {
	month time.Month
	day   int
}{
	{time.January, 1},   // New Year's Day
	{time.January, 16},  // Isra Mi'raj (tentative)
	{time.February, 17}, // Chinese New Year
	{time.February, 18}, // Joint holiday (tentative)
	{time.March, 19},    // Nyepi / Saka New Year
	{time.March, 20},    // Joint holiday (tentative)
	{time.March, 23},    // Idul Fitri (tentative)
	{time.March, 24},    // Idul Fitri (tentative)
	{time.March, 25},    // Joint holiday (tentative)
	{time.March, 26},    // Joint holiday (tentative)
	{time.March, 27},    // Joint holiday (tentative)
	{time.April, 3},     // Good Friday
	{time.May, 1},       // Labour Day
	{time.May, 14},      // Ascension Day
	{time.May, 27},      // Idul Adha (tentative)
	{time.May, 31},      // Waisak (falls on Sunday)
	{time.June, 1},      // Pancasila Day
	{time.June, 2},      // Joint holiday (tentative)
	{time.June, 16},     // Islamic New Year (tentative)
	{time.August, 17},   // Independence Day
	{time.August, 25},   // Maulid Nabi (tentative)
	{time.December, 24}, // Joint holiday (tentative)
	{time.December, 25}, // Christmas Day
	{time.December, 31}, // Joint holiday (tentative)
}

// pre-compute for fast lookup
var holidaySet map[string]bool

func init() {
	holidaySet = make(map[string]bool, len(idxHolidays2026))
	for _, h := range idxHolidays2026 {
		key := dateKey(2026, h.month, h.day)
		holidaySet[key] = true
	}
}

// IsHoliday returns true if the date (in WIB) is an IDX trading holiday.
func IsHoliday(t time.Time) bool {
	wib := t.In(WIB)
	return holidaySet[dateKey(wib.Year(), wib.Month(), wib.Day())]
}

func dateKey(year int, month time.Month, day int) string {
	return time.Date(year, month, day, 0, 0, 0, 0, WIB).Format("2006-01-02")
}
