package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rembes-go/internal/config"
	"rembes-go/internal/rembes"
	"rembes-go/internal/report"
)

// nextReminder returns the first reminder instant strictly after now.
func nextReminder(now time.Time, cfg config.ReminderConfig, loc *time.Location) time.Time {
	now = now.In(loc)
	t := time.Date(now.Year(), now.Month(), cfg.Day, cfg.Hour, cfg.Minute, 0, 0, loc)
	if !t.After(now) {
		t = time.Date(now.Year(), now.Month()+1, cfg.Day, cfg.Hour, cfg.Minute, 0, 0, loc)
	}
	return t
}

// remind posts the monthly reminder to the group until ctx is done.
func (b *Bot) remind(ctx context.Context) error {
	for {
		next := nextReminder(b.clock.Now(), b.reminder, b.location)
		b.logger.Info("next reminder scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		b.sendReminder(rembes.PeriodOf(next))
	}
}

func (b *Bot) sendReminder(period rembes.Period) {
	msg := tgbotapi.NewMessage(b.groupChatID, report.ReminderText(period))
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("sending reminder", "chat", b.groupChatID, "error", err)
		return
	}
	b.logger.Info("reminder sent", "period", period.String())
}
