package quota

import "time"

// DailyBounds returns the UTC calendar-day window containing now.
func DailyBounds(now time.Time) (time.Time, time.Time) {
	n := now.UTC()
	start := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// MonthlyBounds returns the billing-cycle window containing now, anchored on
// the account's billing-period start. Without an anchor (free accounts) the
// window is the UTC calendar month. Anchor days past the end of a month clamp
// to the month's last day, so a Jan 31 anchor yields Feb 28 boundaries.
func MonthlyBounds(now time.Time, anchor *time.Time) (time.Time, time.Time) {
	n := now.UTC()
	if anchor == nil || anchor.After(n) {
		start := time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	}

	a := anchor.UTC()
	months := (n.Year()-a.Year())*12 + int(n.Month()) - int(a.Month())
	start := addMonthsClamped(a, months)
	if start.After(n) {
		months--
		start = addMonthsClamped(a, months)
	}
	return start, addMonthsClamped(a, months+1)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	firstOfMonth := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	shifted := firstOfMonth.AddDate(0, months, 0)
	day := t.Day()
	if last := daysIn(shifted.Year(), shifted.Month()); day > last {
		day = last
	}
	return time.Date(shifted.Year(), shifted.Month(), day, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
