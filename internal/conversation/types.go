package conversation

import (
	"context"
	"io"
	"strconv"

	"rembes-go/internal/rembes"
)

// SessionID identifies one user's conversation within one chat. The same
// user talking in a group and in a private chat holds two sessions.
type SessionID struct {
	Chat int64
	User int64
}

func (id SessionID) String() string {
	return strconv.FormatInt(id.Chat, 10) + ":" + strconv.FormatInt(id.User, 10)
}

// InputKind classifies what a user sent.
type InputKind int

const (
	InputCommand InputKind = iota + 1
	InputText
	InputPhoto
	InputButton
)

func (k InputKind) String() string {
	switch k {
	case InputCommand:
		return "command"
	case InputText:
		return "text"
	case InputPhoto:
		return "photo"
	case InputButton:
		return "button"
	default:
		return "unknown"
	}
}

// Event is one inbound user action.
type Event struct {
	Session SessionID
	User    string // display name, used in announcements
	Kind    InputKind

	Command  string // lower-case, without the leading slash
	Text     string // message text, or the arguments of a command
	PhotoRef string // transport handle for the largest photo size
	Data     string // button payload
}

// Button is an inline choice attached to a reply.
type Button struct {
	Label string
	Data  string
}

// Reply is one outbound message.
type Reply struct {
	Text    string
	Buttons [][]Button
}

// Response is the engine's answer to one event.
type Response struct {
	Replies []Reply
	State   StateName
	Accepts []InputKind
}

// Records is the part of the repository the engine drives.
type Records interface {
	CurrentPeriod() rembes.Period
	ListRecords(ctx context.Context, category string, period rembes.Period) ([]rembes.Record, error)
	TotalFor(ctx context.Context, category string, period rembes.Period) (int64, error)
	Create(ctx context.Context, category, note string, amount int64, blob io.Reader) (rembes.Record, error)
	DeleteAt(ctx context.Context, sel rembes.Selection) (rembes.DeleteResult, error)
	EditAt(ctx context.Context, sel rembes.Selection, field rembes.Field, value string) (rembes.EditResult, error)
}

// CategorySource lists the categories currently registered.
type CategorySource interface {
	Names() []string
}

// PhotoFetcher downloads a photo the user sent.
type PhotoFetcher interface {
	FetchPhoto(ctx context.Context, ref string) ([]byte, error)
}

// Placeholder draws the image stored for records without a photo.
type Placeholder interface {
	Render(note, amount string) ([]byte, error)
}

// Announcement describes a newly created record.
type Announcement struct {
	Record      rembes.Record
	User        string
	Image       []byte
	Placeholder bool
}

// Notifier tells the group about new records.
type Notifier interface {
	Announce(ctx context.Context, a Announcement) error
}
