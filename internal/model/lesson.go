package model

import "time"

type LessonStatus string

const (
	LessonStatusScheduled LessonStatus = "scheduled" // Посещаемость ещё не отмечена
	LessonStatusDelivered LessonStatus = "delivered" // Занятие проведено
	LessonStatusAbsent    LessonStatus = "absent"    // Ученик отсутствовал
)

// IsValid проверяет что статус известен
func (s LessonStatus) IsValid() bool {
	switch s {
	case LessonStatusScheduled, LessonStatusDelivered, LessonStatusAbsent:
		return true
	}
	return false
}

// IsResolved сообщает, отмечена ли посещаемость
func (s LessonStatus) IsResolved() bool {
	return s == LessonStatusDelivered || s == LessonStatusAbsent
}

// LessonTemplate неизменяемая форма занятия без даты
type LessonTemplate struct {
	StartTime  string `json:"startTime"` // "15:04"
	EndTime    string `json:"endTime"`   // "15:04"
	TeacherID  string `json:"teacherId"`
	StudentID  string `json:"studentId"`
	CategoryID string `json:"categoryId"`
	Color      string `json:"color"`
}

// Lesson конкретное занятие на дату
type Lesson struct {
	ID string `json:"id,omitempty"`
	LessonTemplate

	TeacherName  string `json:"teacherName,omitempty"`
	StudentName  string `json:"studentName,omitempty"`
	CategoryName string `json:"categoryName,omitempty"`

	Date      string       `json:"date"` // "2006-01-02"
	Status    LessonStatus `json:"status"`
	IsBilled  bool         `json:"isBilled"`
	InvoiceID *string      `json:"invoiceId"`

	// Параметры повторения, из которых занятие было создано
	RecurrenceType    string  `json:"recurrenceType"`
	RecurrenceEndDate *string `json:"recurrenceEndDate,omitempty"`
	RecurrenceDays    []int   `json:"recurrenceDays,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
