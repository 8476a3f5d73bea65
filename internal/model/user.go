package model

// User профиль пользователя, нужный для доставки уведомлений
type User struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	Role           string `json:"role"`                     // "teacher" или "student"
	TelegramChatID int64  `json:"telegramChatId,omitempty"` // 0 = не привязан
}

const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)
