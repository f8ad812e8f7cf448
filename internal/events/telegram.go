package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier tells managers about booking changes in their chats.
type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64
}

func NewTelegramNotifier(token string, chatIDs []int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return newTelegramNotifier(bot, chatIDs), nil
}

func newTelegramNotifier(bot *tgbotapi.BotAPI, chatIDs []int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs}
}

// BotName is the username the token belongs to.
func (n *TelegramNotifier) BotName() string {
	return n.bot.Self.UserName
}

func (n *TelegramNotifier) Deliver(_ context.Context, eventType string, payload []byte) error {
	var p BookingEventPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode %s payload: %w", eventType, err)
	}

	text := formatBookingMessage(eventType, p)

	var errs []error
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := n.bot.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("send to chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

var eventTitles = map[string]string{
	EventBookingCreated:   "🆕 Новая заявка",
	EventBookingApproved:  "✅ Заявка подтверждена",
	EventBookingRejected:  "❌ Заявка отклонена",
	EventBookingCancelled: "🚫 Заявка отменена",
}

func formatBookingMessage(eventType string, p BookingEventPayload) string {
	title, ok := eventTitles[eventType]
	if !ok {
		title = eventType
	}

	esc := func(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s) }

	var b strings.Builder
	fmt.Fprintf(&b, "*%s #%d*\n\n", title, p.BookingID)
	fmt.Fprintf(&b, "🏟 Площадка: %d\n", p.VenueID)
	fmt.Fprintf(&b, "📅 Дата: %s\n", esc(p.Date))
	fmt.Fprintf(&b, "⏰ Время: %s-%s\n", esc(p.StartTime), esc(p.EndTime))
	fmt.Fprintf(&b, "👤 Заявитель: %s\n", esc(p.RequesterID))
	if p.ChangedBy != "" {
		fmt.Fprintf(&b, "✍️ Изменил: %s\n", esc(p.ChangedBy))
	}
	return b.String()
}
