// Package conversation runs the per-user chat flows that add, delete and
// edit records. It knows nothing about the chat transport: events come in,
// replies go out.
package conversation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"rembes-go/internal/rembes"
	"rembes-go/internal/report"
)

const (
	msgIdleHint      = "Nothing in progress. Send /help to see the available commands."
	msgCancelled     = "Cancelled."
	msgNothingActive = "Nothing to cancel."
	msgStoreFailure  = "Storage is not reachable right now. Nothing was changed; please try again later."
	msgStale         = "The record list changed in the meantime. Please start again."
	msgExpired       = "That button is no longer active. Start again with /delete or /edit."
	msgNoChange      = "Nothing changed."
	msgDone          = "Done."
)

// Options configures an Engine.
type Options struct {
	// Categories are the names that start the add flow. They are fixed for
	// the lifetime of the engine.
	Categories []string
	// NoPhotoCategory skips the photo step and stores a rendered placeholder.
	NoPhotoCategory string

	Registry    CategorySource // live list for delete and edit menus
	Records     Records
	Photos      PhotoFetcher
	Placeholder Placeholder
	Notifier    Notifier // optional
	Logger      rembes.Logger
}

// Engine holds one conversation per session. Events of the same session
// are handled one at a time; different sessions proceed in parallel.
type Engine struct {
	records     Records
	registry    CategorySource
	photos      PhotoFetcher
	placeholder Placeholder
	notifier    Notifier
	logger      rembes.Logger

	entries map[string]bool
	noPhoto string

	mu       sync.Mutex
	sessions map[SessionID]*session
}

type session struct {
	mu    sync.Mutex
	state state
	dead  bool // removed from the table, acquire must retry
}

// NewEngine builds an engine. The category snapshot is taken here.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = rembes.NewNopLogger()
	}
	entries := make(map[string]bool, len(opts.Categories))
	for _, c := range opts.Categories {
		entries[c] = true
	}
	return &Engine{
		records:     opts.Records,
		registry:    opts.Registry,
		photos:      opts.Photos,
		placeholder: opts.Placeholder,
		notifier:    opts.Notifier,
		logger:      logger,
		entries:     entries,
		noPhoto:     opts.NoPhotoCategory,
		sessions:    make(map[SessionID]*session),
	}
}

// IsFlowCommand reports whether cmd is handled by Handle rather than by
// the caller.
func (e *Engine) IsFlowCommand(cmd string) bool {
	switch cmd {
	case "cancel", "batal", "delete", "hapus", "edit":
		return true
	}
	return e.entries[cmd]
}

// EntryCategories returns the categories that start the add flow.
func (e *Engine) EntryCategories() []string {
	out := make([]string, 0, len(e.entries))
	for c := range e.entries {
		out = append(out, c)
	}
	return out
}

// Handle advances the session addressed by ev and returns what to send back.
func (e *Engine) Handle(ctx context.Context, ev Event) Response {
	s := e.acquire(ev.Session)
	defer s.mu.Unlock()

	from := s.state.name()
	next, replies := e.step(ctx, s.state, ev)
	s.state = next
	if next.name() != from {
		e.logger.Debug("conversation transition", "session", ev.Session, "from", from, "to", next.name(), "input", ev.Kind.String())
	}
	if _, ok := next.(idle); ok {
		e.drop(ev.Session, s)
	}
	return Response{Replies: replies, State: next.name(), Accepts: next.accepts()}
}

// State returns the current state of a session.
func (e *Engine) State(id SessionID) StateName {
	return e.peek(id).name()
}

// Accepts returns the input kinds the session currently reacts to.
func (e *Engine) Accepts(id SessionID) []InputKind {
	return e.peek(id).accepts()
}

// ActiveSessions counts sessions that are not idle.
func (e *Engine) ActiveSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

func (e *Engine) peek(id SessionID) state {
	e.mu.Lock()
	s, ok := e.sessions[id]
	e.mu.Unlock()
	if !ok {
		return idle{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return idle{}
	}
	return s.state
}

// acquire returns the locked session for id, creating it when needed.
func (e *Engine) acquire(id SessionID) *session {
	for {
		e.mu.Lock()
		s, ok := e.sessions[id]
		if !ok {
			s = &session{state: idle{}}
			e.sessions[id] = s
		}
		e.mu.Unlock()

		s.mu.Lock()
		if !s.dead {
			return s
		}
		s.mu.Unlock()
	}
}

// drop removes an idle session. The caller holds s.mu.
func (e *Engine) drop(id SessionID, s *session) {
	e.mu.Lock()
	if e.sessions[id] == s {
		delete(e.sessions, id)
	}
	e.mu.Unlock()
	s.dead = true
}

func (e *Engine) step(ctx context.Context, st state, ev Event) (state, []Reply) {
	if ev.Kind == InputCommand {
		switch ev.Command {
		case "cancel", "batal":
			if _, ok := st.(idle); ok {
				return idle{}, reply(msgNothingActive)
			}
			return idle{}, reply(msgCancelled)
		case "delete", "hapus":
			return e.startChoose(opDelete)
		case "edit":
			return e.startChoose(opEdit)
		}
		if e.entries[ev.Command] {
			return e.startAdd(ev.Command)
		}
	}

	switch s := st.(type) {
	case idle:
		if ev.Kind == InputButton {
			return idle{}, reply(msgExpired)
		}
		return idle{}, []Reply{s.prompt()}
	case awaitingPhoto:
		return e.onPhoto(s, ev)
	case awaitingNote:
		return e.onNote(s, ev)
	case awaitingAmount:
		return e.onAmount(ctx, s, ev)
	case awaitingContinue:
		return e.onContinue(s, ev)
	case choosingCategory:
		return e.onCategory(ctx, s, ev)
	case choosingFile:
		return e.onFile(ctx, s, ev)
	case choosingField:
		return e.onField(s, ev)
	case awaitingNewValue:
		return e.onNewValue(ctx, s, ev)
	}
	return idle{}, reply(msgIdleHint)
}

func (e *Engine) startAdd(category string) (state, []Reply) {
	var next state = awaitingPhoto{category: category}
	if category == e.noPhoto {
		next = awaitingNote{category: category}
	}
	return next, []Reply{next.prompt()}
}

func (e *Engine) startChoose(o op) (state, []Reply) {
	names := e.registry.Names()
	if len(names) == 0 {
		return idle{}, reply("No categories are registered.")
	}
	next := choosingCategory{op: o, names: names}
	return next, []Reply{next.prompt()}
}

func (e *Engine) onPhoto(s awaitingPhoto, ev Event) (state, []Reply) {
	if ev.Kind != InputPhoto || ev.PhotoRef == "" {
		return s, []Reply{{Text: "Please send a photo of the receipt, or /cancel."}}
	}
	next := awaitingNote{category: s.category, photo: ev.PhotoRef}
	return next, []Reply{next.prompt()}
}

func (e *Engine) onNote(s awaitingNote, ev Event) (state, []Reply) {
	note := strings.TrimSpace(ev.Text)
	if ev.Kind != InputText || note == "" {
		return s, []Reply{{Text: "Please send the note as text."}}
	}
	next := awaitingAmount{category: s.category, photo: s.photo, note: note}
	return next, []Reply{next.prompt()}
}

func (e *Engine) onAmount(ctx context.Context, s awaitingAmount, ev Event) (state, []Reply) {
	if ev.Kind != InputText {
		return s, []Reply{s.prompt()}
	}
	amount, err := rembes.ParseAmount(strings.TrimSpace(ev.Text))
	if err != nil {
		return s, []Reply{{Text: "The amount must contain digits only, e.g. 45000. Try again."}}
	}

	image, placeholder, err := e.receipt(ctx, s, amount)
	if err != nil {
		e.logger.Error("preparing receipt image", "category", s.category, "error", err)
		return idle{}, reply("Could not get the receipt image. Nothing was saved; please start again.")
	}

	rec, err := e.records.Create(ctx, s.category, s.note, amount, bytes.NewReader(image))
	if err != nil {
		var verr *rembes.ValidationError
		if errors.As(err, &verr) {
			return s, []Reply{{Text: fmt.Sprintf("That %s is not valid: %s. Try again.", verr.Field, verr.Reason)}}
		}
		return e.fail("create", err)
	}
	e.logger.Info("record created", "path", rec.Path(), "user", ev.User)

	if e.notifier != nil {
		a := Announcement{Record: rec, User: ev.User, Image: image, Placeholder: placeholder}
		if err := e.notifier.Announce(ctx, a); err != nil {
			e.logger.Warn("announcing record", "path", rec.Path(), "error", err)
		}
	}

	text := fmt.Sprintf("Saved to %s (%s): %s - %s", strings.ToUpper(rec.Category), rec.Period.Label(), rec.DisplayNote(), report.FormatAmount(rec.Amount))
	if total, err := e.records.TotalFor(ctx, rec.Category, rec.Period); err == nil {
		text += fmt.Sprintf("\nTotal this period: %s", report.FormatAmount(total))
	} else {
		e.logger.Warn("computing total", "category", rec.Category, "error", err)
	}

	next := awaitingContinue{category: s.category}
	return next, []Reply{{Text: text}, next.prompt()}
}

// receipt returns the image to store: the user's photo, or a rendered
// placeholder for no-photo categories.
func (e *Engine) receipt(ctx context.Context, s awaitingAmount, amount int64) ([]byte, bool, error) {
	if s.photo == "" {
		b, err := e.placeholder.Render(s.note, report.FormatAmount(amount))
		return b, true, err
	}
	b, err := e.photos.FetchPhoto(ctx, s.photo)
	return b, false, err
}

func (e *Engine) onContinue(s awaitingContinue, ev Event) (state, []Reply) {
	var answer string
	switch ev.Kind {
	case InputButton:
		answer = strings.TrimPrefix(ev.Data, "continue:")
	case InputText:
		answer = strings.ToLower(strings.TrimSpace(ev.Text))
	}
	switch answer {
	case "yes", "y", "ya":
		return e.startAdd(s.category)
	case "no", "n", "tidak":
		return idle{}, reply(msgDone)
	}
	return s, []Reply{s.prompt()}
}

func (e *Engine) onCategory(ctx context.Context, s choosingCategory, ev Event) (state, []Reply) {
	cat, ok := s.choice(ev.Data)
	if ev.Kind != InputButton || !ok {
		return s, []Reply{s.prompt()}
	}
	period := e.records.CurrentPeriod()
	records, err := e.records.ListRecords(ctx, cat, period)
	if err != nil {
		return e.fail("list", err)
	}
	if len(records) == 0 {
		return idle{}, reply(fmt.Sprintf("No %s records for period %s.", strings.ToUpper(cat), period))
	}
	next := choosingFile{op: s.op, category: cat, period: period, records: records}
	return next, []Reply{next.prompt()}
}

func (e *Engine) onFile(ctx context.Context, s choosingFile, ev Event) (state, []Reply) {
	index, err := strconv.Atoi(strings.TrimSpace(ev.Text))
	if ev.Kind != InputText || err != nil || index < 1 || index > len(s.records) {
		return s, []Reply{{Text: fmt.Sprintf("Please reply with a number between 1 and %d.", len(s.records))}}
	}
	sel := s.selection(index)

	if s.op == opEdit {
		next := choosingField{sel: sel, record: s.records[index-1]}
		return next, []Reply{next.prompt()}
	}

	res, err := e.records.DeleteAt(ctx, sel)
	if err != nil {
		return e.fail("delete", err)
	}
	e.logger.Info("record deleted", "path", res.Record.Path(), "existed", res.Existed, "user", ev.User)
	text := fmt.Sprintf("Deleted: %s - %s", res.Record.DisplayNote(), report.FormatAmount(res.Record.Amount))
	if !res.Existed {
		text = fmt.Sprintf("%s - %s was already gone.", res.Record.DisplayNote(), report.FormatAmount(res.Record.Amount))
	}
	return idle{}, reply(text)
}

func (e *Engine) onField(s choosingField, ev Event) (state, []Reply) {
	var raw string
	switch ev.Kind {
	case InputButton:
		raw = strings.TrimPrefix(ev.Data, "field:")
	case InputText:
		raw = ev.Text
	}
	field, err := rembes.ParseField(raw)
	if err != nil {
		return s, []Reply{s.prompt()}
	}
	next := awaitingNewValue{sel: s.sel, record: s.record, field: field}
	return next, []Reply{next.prompt()}
}

func (e *Engine) onNewValue(ctx context.Context, s awaitingNewValue, ev Event) (state, []Reply) {
	if ev.Kind != InputText {
		return s, []Reply{s.prompt()}
	}
	res, err := e.records.EditAt(ctx, s.sel, s.field, ev.Text)
	var verr *rembes.ValidationError
	switch {
	case errors.As(err, &verr):
		return s, []Reply{{Text: fmt.Sprintf("That %s is not valid: %s. Try again.", verr.Field, verr.Reason)}}
	case errors.Is(err, rembes.ErrNoChange):
		return idle{}, reply(msgNoChange)
	case err != nil:
		return e.fail("edit", err)
	}
	e.logger.Info("record edited", "old", res.Old.Path(), "new", res.New.Path(), "user", ev.User)
	return idle{}, reply(fmt.Sprintf("Updated: %s - %s", res.New.DisplayNote(), report.FormatAmount(res.New.Amount)))
}

// fail ends the flow after a repository error.
func (e *Engine) fail(op string, err error) (state, []Reply) {
	var lost *rembes.LostRecordError
	switch {
	case errors.As(err, &lost):
		e.logger.Error("record lost during edit", "old", lost.OldPath, "new", lost.NewPath, "recovery", lost.Recovery, "error", lost.Err)
		text := "The old record was removed but the updated one could not be uploaded."
		if lost.Recovery != "" {
			text += fmt.Sprintf(" A local copy was kept; ask the operator to run: rembes recover --from %s %s", lost.Recovery, lost.NewPath)
		}
		return idle{}, reply(text)
	case errors.Is(err, rembes.ErrStaleSelection), errors.Is(err, rembes.ErrIndexOutOfRange):
		e.logger.Info("selection no longer valid", "op", op, "error", err)
		return idle{}, reply(msgStale)
	default:
		e.logger.Error("store operation failed", "op", op, "error", err)
		return idle{}, reply(msgStoreFailure)
	}
}

func reply(text string) []Reply {
	return []Reply{{Text: text}}
}
