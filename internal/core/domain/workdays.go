package domain

import "time"

const DateLayout = "2006-01-02"

// HolidaySet answers whether a calendar day is a public holiday in one jurisdiction.
type HolidaySet interface {
	IsHoliday(day time.Time) bool
}

type NoHolidays struct{}

func (NoHolidays) IsHoliday(time.Time) bool { return false }

// DateOf drops the clock part of t, keeping its calendar day in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}

func IsWorkingDay(day time.Time, holidays HolidaySet) bool {
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if holidays == nil {
		return true
	}
	return !holidays.IsHoliday(DateOf(day))
}

// WorkingDaysUntil counts working days in (today, target]. A target before today
// yields -1 regardless of how far in the past it is.
func WorkingDaysUntil(target, today time.Time, holidays HolidaySet) int {
	target = DateOf(target)
	today = DateOf(today)
	if target.Before(today) {
		return -1
	}

	count := 0
	for day := today.AddDate(0, 0, 1); !day.After(target); day = day.AddDate(0, 0, 1) {
		if IsWorkingDay(day, holidays) {
			count++
		}
	}
	return count
}

func RiskForWorkingDays(days int) RiskLevel {
	switch {
	case days < 0:
		return RiskOverdue
	case days <= 2:
		return RiskCritical
	case days <= 5:
		return RiskHigh
	case days <= 10:
		return RiskMedium
	default:
		return RiskLow
	}
}

// AssessDeadline returns the working-day count and the risk tier derived from it.
func AssessDeadline(target, today time.Time, holidays HolidaySet) (int, RiskLevel) {
	days := WorkingDaysUntil(target, today, holidays)
	return days, RiskForWorkingDays(days)
}
