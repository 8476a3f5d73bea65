package model

import "time"

// DefaultNotificationTTL срок жизни уведомления до очистки
const DefaultNotificationTTL = 30 * 24 * time.Hour

// Notification уведомление пользователю; удаляется после ExpiresAt
type Notification struct {
	ID           string `json:"id,omitempty"`
	TargetUserID string `json:"targetUserId"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	Timestamp    int64  `json:"timestamp"` // unix ms
	Read         bool   `json:"read"`
	ExpiresAt    int64  `json:"expiresAt"` // unix ms
}

// IsExpired проверяет истёк ли срок уведомления
func (n *Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt <= now.UnixMilli()
}
