// Package billing правила выставления счетов: какие занятия можно выставить
// и сколько они стоят.
package billing

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Freeeeeet/timetutor/internal/model"
)

var minutesPerHour = decimal.NewFromInt(60)

// CanBill сообщает, что у всех занятий отмечена посещаемость и ни одно
// ещё не в счёте. Пустой набор считается допустимым
func CanBill(lessons []*model.Lesson) bool {
	for _, l := range lessons {
		if !l.Status.IsResolved() || l.IsBilled {
			return false
		}
	}
	return true
}

// ParseClock переводит "HH:MM" в минуты от полуночи
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return h*60 + m, nil
}

// LessonMinutes возвращает длительность в минутах; 0, если время не разбирается
// или конец не позже начала
func LessonMinutes(l *model.Lesson) int {
	start, err := ParseClock(l.StartTime)
	if err != nil {
		return 0
	}
	end, err := ParseClock(l.EndTime)
	if err != nil {
		return 0
	}
	if end <= start {
		return 0
	}
	return end - start
}

// ComputeAmount суммирует длительность, умноженную на часовую ставку. Категория
// без ставки считается нулевой
func ComputeAmount(lessons []*model.Lesson, rates map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lessons {
		rate, ok := rates[l.CategoryID]
		if !ok {
			continue
		}
		minutes := decimal.NewFromInt(int64(LessonMinutes(l)))
		total = total.Add(minutes.Mul(rate).Div(minutesPerHour))
	}
	return total.Round(2)
}

// MissingRates перечисляет категории без ставки, без повторов
func MissingRates(lessons []*model.Lesson, rates map[string]decimal.Decimal) []string {
	seen := make(map[string]struct{})
	var missing []string
	for _, l := range lessons {
		if _, ok := rates[l.CategoryID]; ok {
			continue
		}
		if _, dup := seen[l.CategoryID]; dup {
			continue
		}
		seen[l.CategoryID] = struct{}{}
		missing = append(missing, l.CategoryID)
	}
	sort.Strings(missing)
	return missing
}

// CategoryIDs возвращает категории занятий без повторов
func CategoryIDs(lessons []*model.Lesson) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, l := range lessons {
		if _, ok := seen[l.CategoryID]; ok {
			continue
		}
		seen[l.CategoryID] = struct{}{}
		ids = append(ids, l.CategoryID)
	}
	return ids
}
