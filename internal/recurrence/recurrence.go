// Package recurrence разворачивает шаблон занятия и правило повторения
// в занятия на конкретные даты.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/timetutor/internal/model"
)

type Frequency string

const (
	None     Frequency = "none"
	Daily    Frequency = "daily"
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
	Custom   Frequency = "custom"
)

func (f Frequency) IsValid() bool {
	switch f {
	case None, Daily, Weekly, Biweekly, Monthly, Custom:
		return true
	}
	return false
}

// Rule правило повторения занятия. Дни недели в нумерации ISO
// (1 = понедельник ... 7 = воскресенье), учитываются только для Custom
type Rule struct {
	Frequency Frequency
	EndDate   time.Time
	Weekdays  []int
}

var (
	ErrUnknownFrequency = errors.New("unknown recurrence frequency")
	ErrMissingEndDate   = errors.New("recurrence end date is required")
	ErrEndBeforeStart   = errors.New("recurrence end date is before start date")
	ErrNoWeekdays       = errors.New("custom recurrence needs at least one weekday")
	ErrBadWeekday       = errors.New("weekday must be between 1 and 7")
)

// Validate сообщает о правилах, которые стоит отклонить заранее. Expand сам
// не падает: некорректное правило просто не даёт занятий
func (r Rule) Validate(start time.Time) error {
	if !r.Frequency.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownFrequency, r.Frequency)
	}
	if r.Frequency == None {
		return nil
	}
	if r.EndDate.IsZero() {
		return ErrMissingEndDate
	}
	if model.Day(r.EndDate).Before(model.Day(start)) {
		return ErrEndBeforeStart
	}
	if r.Frequency == Custom {
		if len(r.Weekdays) == 0 {
			return ErrNoWeekdays
		}
		for _, d := range r.Weekdays {
			if d < 1 || d > 7 {
				return fmt.Errorf("%w: %d", ErrBadWeekday, d)
			}
		}
	}
	return nil
}

// Dates возвращает даты (полночь UTC), которые правило даёт начиная со start
func Dates(start time.Time, rule Rule) []time.Time {
	start = model.Day(start)
	if rule.Frequency == None {
		return []time.Time{start}
	}

	end := model.Day(rule.EndDate)
	if rule.EndDate.IsZero() || start.After(end) {
		return nil
	}

	var dates []time.Time
	switch rule.Frequency {
	case Daily:
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d)
		}
	case Weekly:
		for d := start; !d.After(end); d = d.AddDate(0, 0, 7) {
			dates = append(dates, d)
		}
	case Biweekly:
		for d := start; !d.After(end); d = d.AddDate(0, 0, 14) {
			dates = append(dates, d)
		}
	case Monthly:
		for k := 0; ; k++ {
			d := addMonthsClamped(start, k)
			if d.After(end) {
				break
			}
			dates = append(dates, d)
		}
	case Custom:
		days := weekdaySet(rule.Weekdays)
		if len(days) == 0 {
			return nil
		}
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			if days[isoWeekday(d)] {
				dates = append(dates, d)
			}
		}
	}
	return dates
}

// Expand создаёт по занятию на дату. Занятия создаются в статусе scheduled,
// не выставленными в счёт и с параметрами правила
func Expand(tpl model.LessonTemplate, start time.Time, rule Rule) []*model.Lesson {
	dates := Dates(start, rule)
	if len(dates) == 0 {
		return nil
	}

	var endDate *string
	var weekdays []int
	if rule.Frequency != None {
		s := model.FormatDate(rule.EndDate)
		endDate = &s
	}
	if rule.Frequency == Custom {
		weekdays = append(weekdays, rule.Weekdays...)
	}

	lessons := make([]*model.Lesson, 0, len(dates))
	for _, d := range dates {
		lessons = append(lessons, &model.Lesson{
			LessonTemplate:    tpl,
			Date:              model.FormatDate(d),
			Status:            model.LessonStatusScheduled,
			RecurrenceType:    string(rule.Frequency),
			RecurrenceEndDate: endDate,
			RecurrenceDays:    weekdays,
		})
	}
	return lessons
}

// ExcludeDates убирает занятия с датами из dates ("2006-01-02")
func ExcludeDates(lessons []*model.Lesson, dates ...string) []*model.Lesson {
	if len(dates) == 0 {
		return lessons
	}
	skip := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		skip[d] = struct{}{}
	}

	out := lessons[:0:0]
	for _, l := range lessons {
		if _, ok := skip[l.Date]; ok {
			continue
		}
		out = append(out, l)
	}
	return out
}

// addMonthsClamped отсчитывает месяцы от исходной даты: 31 января даёт 28/29 февраля,
// а затем 31 марта
func addMonthsClamped(anchor time.Time, months int) time.Time {
	first := time.Date(anchor.Year(), anchor.Month()+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	day := anchor.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func weekdaySet(days []int) map[int]bool {
	set := make(map[int]bool, len(days))
	for _, d := range days {
		if d >= 1 && d <= 7 {
			set[d] = true
		}
	}
	return set
}
