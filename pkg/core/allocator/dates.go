package allocator

import "time"

const dateLayout = "2006-01-02"

// addDays shifts a YYYY-MM-DD date by n calendar days
func addDays(date string, n int) string {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, n).Format(dateLayout)
}

// weekdayOf returns the weekday of a YYYY-MM-DD date
func weekdayOf(date string) time.Weekday {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Sunday
	}
	return t.Weekday()
}

// daysBetween returns b - a in calendar days
func daysBetween(a, b string) int {
	ta, errA := time.Parse(dateLayout, a)
	tb, errB := time.Parse(dateLayout, b)
	if errA != nil || errB != nil {
		return 0
	}
	return int(tb.Sub(ta).Hours() / 24)
}
