package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rembes-go/internal/conversation"
)

// eventFromUpdate translates an update into an engine event. ok is false
// for updates the bot ignores (edits, channel posts, service messages).
func eventFromUpdate(u tgbotapi.Update) (ev conversation.Event, chatID int64, ok bool) {
	switch {
	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		if q.From == nil || q.Message == nil || q.Message.Chat == nil {
			return ev, 0, false
		}
		return conversation.Event{
			Session: conversation.SessionID{Chat: q.Message.Chat.ID, User: q.From.ID},
			User:    displayName(q.From),
			Kind:    conversation.InputButton,
			Data:    q.Data,
		}, q.Message.Chat.ID, true

	case u.Message != nil:
		m := u.Message
		if m.From == nil || m.Chat == nil {
			return ev, 0, false
		}
		ev = conversation.Event{
			Session: conversation.SessionID{Chat: m.Chat.ID, User: m.From.ID},
			User:    displayName(m.From),
		}
		switch {
		case m.IsCommand():
			ev.Kind = conversation.InputCommand
			ev.Command = strings.ToLower(m.Command())
			ev.Text = strings.TrimSpace(m.CommandArguments())
		case len(m.Photo) > 0:
			// Sizes are ordered smallest first.
			ev.Kind = conversation.InputPhoto
			ev.PhotoRef = m.Photo[len(m.Photo)-1].FileID
		case m.Text != "":
			ev.Kind = conversation.InputText
			ev.Text = m.Text
		default:
			return ev, 0, false
		}
		return ev, m.Chat.ID, true
	}
	return ev, 0, false
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	switch {
	case name != "":
		return name
	case u.UserName != "":
		return "@" + u.UserName
	default:
		return "someone"
	}
}

// messageFor renders a reply with its inline keyboard, if any.
func messageFor(chatID int64, r conversation.Reply) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, r.Text)
	if len(r.Buttons) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(r.Buttons))
		for _, row := range r.Buttons {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	return msg
}
