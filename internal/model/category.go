package model

import "github.com/shopspring/decimal"

// Category ценовая категория учителя
type Category struct {
	ID         string          `json:"id,omitempty"`
	TeacherID  string          `json:"teacherId"`
	Name       string          `json:"name"`
	HourlyRate decimal.Decimal `json:"hourlyRate"` // за час
}
