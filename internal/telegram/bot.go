package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"rembes-go/internal/config"
	"rembes-go/internal/conversation"
	"rembes-go/internal/rembes"
	"rembes-go/internal/report"
)

// DefaultMaxConcurrent bounds the sessions handled at once.
const DefaultMaxConcurrent = 16

// Records is the repository surface used by reporting commands.
type Records interface {
	report.Source
	CurrentPeriod() rembes.Period
	Ping(ctx context.Context) error
}

// Categories is the mutable category list.
type Categories interface {
	Names() []string
	Add(name string) (string, error)
	Remove(name string) (string, error)
}

// Options configures a Bot.
type Options struct {
	API         API
	Engine      *conversation.Engine
	Records     Records
	Categories  Categories
	GroupChatID int64 // 0 disables reminders
	Reminder    config.ReminderConfig
	Location    *time.Location
	Clock       rembes.Clock
	Logger      rembes.Logger

	MaxConcurrent int
}

// Bot polls Telegram for updates and dispatches them.
type Bot struct {
	api         API
	engine      *conversation.Engine
	records     Records
	categories  Categories
	groupChatID int64
	reminder    config.ReminderConfig
	location    *time.Location
	clock       rembes.Clock
	logger      rembes.Logger
	limit       int
	started     time.Time
}

// NewBot builds a Bot. API, Engine, Records and Categories are required.
func NewBot(opts Options) (*Bot, error) {
	if opts.API == nil || opts.Engine == nil || opts.Records == nil || opts.Categories == nil {
		return nil, fmt.Errorf("telegram bot requires api, engine, records and categories")
	}
	b := &Bot{
		api:         opts.API,
		engine:      opts.Engine,
		records:     opts.Records,
		categories:  opts.Categories,
		groupChatID: opts.GroupChatID,
		reminder:    opts.Reminder,
		location:    opts.Location,
		clock:       opts.Clock,
		logger:      opts.Logger,
		limit:       opts.MaxConcurrent,
	}
	if b.location == nil {
		b.location = time.Local
	}
	if b.clock == nil {
		b.clock = rembes.RealClock{Location: b.location}
	}
	if b.logger == nil {
		b.logger = rembes.NewNopLogger()
	}
	if b.limit <= 0 {
		b.limit = DefaultMaxConcurrent
	}
	b.started = b.clock.Now()
	return b, nil
}

// Run polls for updates, and posts reminders when enabled, until ctx is
// cancelled. Updates already being handled are allowed to finish.
func (b *Bot) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.poll(ctx) })
	if b.reminder.Enabled && b.groupChatID != 0 {
		g.Go(func() error { return b.remind(ctx) })
	}
	return g.Wait()
}

func (b *Bot) poll(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 60
	updates := b.api.GetUpdatesChan(cfg)
	b.logger.Info("polling for updates")

	// In-flight updates must not be cut off halfway through a store edit.
	work := context.WithoutCancel(ctx)
	d := newDispatcher(b.limit, func(u tgbotapi.Update) { b.HandleUpdate(work, u) })
	defer d.wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("stopped polling")
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			ev, _, ok := eventFromUpdate(u)
			if !ok {
				continue
			}
			d.dispatch(ev.Session, u)
		}
	}
}

// HandleUpdate processes a single update and sends the replies. Updates of
// one session must be passed in arrival order, one at a time.
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	ev, chatID, ok := eventFromUpdate(u)
	if !ok {
		return
	}
	if q := u.CallbackQuery; q != nil {
		b.acknowledge(q)
	}

	var out []tgbotapi.Chattable
	switch {
	case ev.Kind == conversation.InputCommand && !b.engine.IsFlowCommand(ev.Command):
		out = b.command(ctx, chatID, ev)
	case (ev.Kind == conversation.InputText || ev.Kind == conversation.InputPhoto) &&
		b.engine.State(ev.Session) == conversation.StateIdle:
		// Ordinary group chatter.
		return
	default:
		resp := b.engine.Handle(ctx, ev)
		for _, r := range resp.Replies {
			out = append(out, messageFor(chatID, r))
		}
	}

	for _, c := range out {
		if _, err := b.api.Send(c); err != nil {
			b.logger.Error("sending reply", "chat", chatID, "error", err)
		}
	}
}

// acknowledge stops the client spinner and removes the pressed keyboard so
// a choice cannot be made twice.
func (b *Bot) acknowledge(q *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.logger.Warn("answering callback", "error", err)
	}
	if q.Message == nil || q.Message.Chat == nil {
		return
	}
	strip := tgbotapi.NewEditMessageReplyMarkup(q.Message.Chat.ID, q.Message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := b.api.Request(strip); err != nil {
		b.logger.Debug("clearing keyboard", "error", err)
	}
}
