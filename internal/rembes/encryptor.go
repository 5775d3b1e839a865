package rembes

import (
	"io"
	"time"
)

// Encryptor seals receipt blobs before upload. Sealing needs only public
// keys, so the running bot never holds a passphrase; reading a receipt back
// needs the treasurer's passphrase to unlock a ReceiptOpener.
type Encryptor interface {
	// Setup generates the key pair. Called by `rembes encryption init`.
	Setup(passphrase string) error

	// Seal writes the sealed form of the receipt read from r to w, bound to
	// the record it is stored under.
	Seal(b ReceiptBinding, r io.Reader, w io.Writer) error

	// Unlock opens the private key with passphrase.
	Unlock(passphrase string) (ReceiptOpener, error)

	// IsSealed reports whether header, the first bytes of a blob, marks a
	// receipt sealed by this encryptor.
	IsSealed(header []byte) bool

	// IsConfigured returns true if the keys this encryptor needs exist.
	IsConfigured() bool
}

// ReceiptOpener holds an unlocked private key in memory.
type ReceiptOpener interface {
	// Open writes the plain receipt read from r to w. It fails with
	// ErrReceiptMismatch when the receipt was sealed for another record.
	Open(b ReceiptBinding, r io.Reader, w io.Writer) error
}

// ReceiptBinding names the record a sealed receipt belongs to. It holds only
// what an edit never changes, so a corrected note or amount keeps the
// receipt openable while a blob copied under another record does not open.
type ReceiptBinding struct {
	Category  string
	Period    Period
	CreatedAt time.Time
}

// BindingFor returns the binding of rec.
func BindingFor(rec Record) ReceiptBinding {
	return ReceiptBinding{Category: rec.Category, Period: rec.Period, CreatedAt: rec.CreatedAt}
}

// String renders the binding as category/period/timestamp, with the
// timestamp in UTC so the codec's location does not matter.
func (b ReceiptBinding) String() string {
	return b.Category + "/" + b.Period.String() + "/" + b.CreatedAt.UTC().Format(TimestampLayout) + "Z"
}
