package expense

import "time"

// DateOnly truncates t to midnight UTC of its calendar day
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}

// StartOfMonth returns the first day of t's month
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// EndOfMonth returns the last day of t's month
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, -1)
}

// CheckDateRange fails when the range ends before it starts
func CheckDateRange(since, up *time.Time) error {
	if since == nil || up == nil {
		return nil
	}
	if DateOnly(*up).Before(DateOnly(*since)) {
		return Validationf("Incorrect date range.")
	}
	return nil
}

// NumberOfDays returns the inclusive day count of a trip, 0 when a bound is missing
func NumberOfDays(since, up *time.Time) (int, error) {
	if since == nil || up == nil {
		return 0, nil
	}
	if err := CheckDateRange(since, up); err != nil {
		return 0, err
	}
	const secondsPerDay = 24 * 60 * 60
	days := (DateOnly(*up).Unix() - DateOnly(*since).Unix()) / secondsPerDay
	return int(days) + 1, nil
}

// DefaultAccountingDate picks the accounting date of an employee-paid bill.
// The most recent expense date is used when it falls in or after the current month;
// older expenses are booked at the end of their month, never inside a locked period
// and never after today.
func DefaultAccountingDate(today time.Time, expenseDates []time.Time, lockDate *time.Time) time.Time {
	today = DateOnly(today)
	mostRecent := today
	if len(expenseDates) > 0 {
		mostRecent = DateOnly(expenseDates[0])
		for _, d := range expenseDates[1:] {
			if d = DateOnly(d); d.After(mostRecent) {
				mostRecent = d
			}
		}
	}

	if !mostRecent.Before(StartOfMonth(today)) {
		return mostRecent
	}

	candidate := EndOfMonth(mostRecent)
	if lockDate != nil {
		afterLock := EndOfMonth(StartOfMonth(*lockDate).AddDate(0, 1, 0))
		if afterLock.After(candidate) {
			candidate = afterLock
		}
	}
	if candidate.After(today) {
		return today
	}
	return candidate
}
