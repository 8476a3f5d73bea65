package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Freeeeeet/timetutor/internal/model"
)

// MessageSender часть *bot.Bot, нужная каналу
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// UserLookup находит профиль пользователя
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// TelegramChannel пушит уведомления в личный чат пользователя
type TelegramChannel struct {
	sender MessageSender
	users  UserLookup
}

func NewTelegramChannel(sender MessageSender, users UserLookup) *TelegramChannel {
	return &TelegramChannel{sender: sender, users: users}
}

func (c *TelegramChannel) Name() string {
	return "telegram"
}

// Send отправляет сообщение; пользователи без привязанного чата пропускаются
func (c *TelegramChannel) Send(ctx context.Context, n *model.Notification) error {
	user, err := c.users.GetByID(ctx, n.TargetUserID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil || user.TelegramChatID == 0 {
		return nil
	}

	_, err = c.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: user.TelegramChatID,
		Text:   n.Title + "\n\n" + n.Message,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
