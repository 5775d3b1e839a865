package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rembes-go/internal/conversation"
	"rembes-go/internal/report"
)

// GroupNotifier posts every new record, with its receipt, to one chat.
type GroupNotifier struct {
	api    API
	chatID int64
}

var _ conversation.Notifier = (*GroupNotifier)(nil)

// NewGroupNotifier returns a notifier posting to chatID.
func NewGroupNotifier(api API, chatID int64) *GroupNotifier {
	return &GroupNotifier{api: api, chatID: chatID}
}

// Announce sends the receipt image captioned with the record details.
func (n *GroupNotifier) Announce(_ context.Context, a conversation.Announcement) error {
	photo := tgbotapi.NewPhoto(n.chatID, tgbotapi.FileBytes{Name: a.Record.Key, Bytes: a.Image})
	photo.Caption = announcementCaption(a)
	if _, err := n.api.Send(photo); err != nil {
		return fmt.Errorf("sending announcement to %d: %w", n.chatID, err)
	}
	return nil
}

func announcementCaption(a conversation.Announcement) string {
	return fmt.Sprintf("New %s record from %s\n%s - %s\nPeriod: %s",
		strings.ToUpper(a.Record.Category), a.User,
		a.Record.DisplayNote(), report.FormatAmount(a.Record.Amount),
		a.Record.Period.Label())
}
