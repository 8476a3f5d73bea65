package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice счёт за набор занятий одного ученика
type Invoice struct {
	ID          string          `json:"id,omitempty"`
	TeacherID   string          `json:"teacherId"`
	StudentID   string          `json:"studentId"`
	StudentName string          `json:"studentName,omitempty"`
	Date        string          `json:"date"` // дата создания, "2006-01-02"
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Paid        bool            `json:"paid"`
	PaidAt      *time.Time      `json:"paidAt,omitempty"`
	LessonIDs   []string        `json:"lessonIds"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Covers проверяет, входит ли занятие в счёт
func (i *Invoice) Covers(lessonID string) bool {
	for _, id := range i.LessonIDs {
		if id == lessonID {
			return true
		}
	}
	return false
}
