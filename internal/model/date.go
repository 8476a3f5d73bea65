package model

import "time"

// DateLayout формат календарной даты в документах
const DateLayout = "2006-01-02"

// ClockLayout формат времени начала/окончания занятия
const ClockLayout = "15:04"

// FormatDate форматирует календарную дату
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate разбирает календарную дату в полночь UTC
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// Day отбрасывает время и зону, оставляя календарный день в UTC
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
