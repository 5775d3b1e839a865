package rembes

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// TimestampLayout is the createdAt segment of a key. It contains one underscore
// itself, so the timestamp always occupies the first two "_" fields.
const TimestampLayout = "20060102_150405"

// DefaultExt is appended to every key; receipts are stored as images.
const DefaultExt = ".jpg"

// Record is one reimbursement entry, decoded from its object key.
type Record struct {
	Key       string
	CreatedAt time.Time
	Note      string // sanitized form, as embedded in the key
	Amount    int64

	// Category and Period locate the key in the store. Decode leaves them
	// zero; the repository fills them in.
	Category string
	Period   Period
}

// Path returns the record's full store path.
func (r Record) Path() string {
	return ObjectPath(r.Category, r.Period, r.Key)
}

// DisplayNote renders the note for humans: underscores become spaces and
// the first letter is upper-cased.
func (r Record) DisplayNote() string {
	s := strings.ReplaceAll(r.Note, "_", " ")
	first, size := utf8.DecodeRuneInString(s)
	if first == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(first)) + s[size:]
}

// Codec maps records to object keys and back.
// The zero value uses time.Local and DefaultExt.
type Codec struct {
	Location *time.Location
	Ext      string
}

// NewCodec returns a Codec that reads and writes timestamps in loc.
func NewCodec(loc *time.Location) Codec {
	return Codec{Location: loc, Ext: DefaultExt}
}

func (c Codec) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

func (c Codec) ext() string {
	if c.Ext == "" {
		return DefaultExt
	}
	return c.Ext
}

// Encode builds the key {YYYYMMDD_HHMMSS}_{note}_{amount}{ext}.
func (c Codec) Encode(createdAt time.Time, note string, amount int64) (string, error) {
	if amount < 0 {
		return "", &ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	ts := createdAt.In(c.location()).Format(TimestampLayout)
	return ts + "_" + SanitizeNote(note) + "_" + strconv.FormatInt(amount, 10) + c.ext(), nil
}

// Decode parses a key produced by Encode.
func (c Codec) Decode(key string) (Record, error) {
	base := strings.TrimSuffix(key, path.Ext(key))

	if len(base) <= len(TimestampLayout) || base[len(TimestampLayout)] != '_' {
		return Record{}, &DecodeError{Key: key, Reason: "missing timestamp, note or amount segment"}
	}
	createdAt, err := time.ParseInLocation(TimestampLayout, base[:len(TimestampLayout)], c.location())
	if err != nil {
		return Record{}, &DecodeError{Key: key, Reason: "bad timestamp"}
	}

	rest := base[len(TimestampLayout)+1:]
	cut := strings.LastIndexByte(rest, '_')
	if cut < 0 {
		return Record{}, &DecodeError{Key: key, Reason: "missing note or amount segment"}
	}
	amount, err := ParseAmount(rest[cut+1:])
	if err != nil {
		return Record{}, &DecodeError{Key: key, Reason: err.Error()}
	}

	return Record{
		Key:       key,
		CreatedAt: createdAt,
		Note:      rest[:cut],
		Amount:    amount,
	}, nil
}

// SanitizeNote replaces every rune outside [A-Za-z0-9._-] with an underscore.
func SanitizeNote(note string) string {
	var b strings.Builder
	b.Grow(len(note))
	for _, r := range note {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ParseAmount accepts plain decimal digits only: no sign, separators or spaces.
func ParseAmount(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("amount %q is not a non-negative integer", s)
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	return n, nil
}

// ScopePrefix is the store prefix holding one category's records for a period.
func ScopePrefix(category string, period Period) string {
	return category + "/" + period.String() + "/"
}

// ObjectPath is the full store path of a record key.
func ObjectPath(category string, period Period, key string) string {
	return ScopePrefix(category, period) + key
}

// SplitObjectPath is the inverse of ObjectPath.
func SplitObjectPath(p string) (category string, period Period, key string, err error) {
	parts := strings.Split(p, "/")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", Period{}, "", fmt.Errorf("path %q is not category/YYYY-MM/key", p)
	}
	period, err = ParsePeriod(parts[1])
	if err != nil {
		return "", Period{}, "", err
	}
	return parts[0], period, parts[2], nil
}
