package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"manga-bookmark-bot/internal/domain"
	"manga-bookmark-bot/internal/infra/metrics"
)

// Sender отправляет сообщения через Bot API. *tgbotapi.BotAPI удовлетворяет интерфейсу.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier доставляет пользователю свежие главы.
type Notifier struct {
	sender Sender
}

var _ domain.Notifier = (*Notifier)(nil)

// NewNotifier создаёт отправителя уведомлений.
func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// NotifyRecent отправляет список свежих обновлений. Пустой список не отправляется.
func (n *Notifier) NotifyRecent(ctx context.Context, chatID int64, bookmarks []domain.Bookmark) error {
	if len(bookmarks) == 0 {
		return nil
	}
	text := FormatBookmarks("New chapters", bookmarks)
	err := SendHTML(ctx, n.sender, chatID, text)
	metrics.IncNotification(err)
	return err
}

// SendHTML отправляет текст частями, не превышая лимит сообщения.
func SendHTML(ctx context.Context, sender Sender, chatID int64, text string) error {
	for _, part := range SplitMessage(text) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		start := time.Now()
		_, err := sender.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			return fmt.Errorf("send message to %d: %w", chatID, err)
		}
	}
	return nil
}
