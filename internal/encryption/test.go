package encryption

import (
	"bytes"
	"fmt"
	"io"

	"rembes-go/internal/rembes"
)

// testMagic marks receipts sealed by TestEncryptor.
var testMagic = []byte("RBTEST\x00\n")

// TestEncryptor seals receipts without keys: the output is the magic line,
// the receipt label and the image in the clear. It keeps the binding checks
// of the age encryptor so repository tests exercise them.
type TestEncryptor struct {
	configured bool
}

var _ rembes.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor returns a TestEncryptor that reports itself configured.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{configured: true}
}

func (e *TestEncryptor) Setup(string) error {
	e.configured = true
	return nil
}

func (e *TestEncryptor) Seal(b rembes.ReceiptBinding, r io.Reader, w io.Writer) error {
	if _, err := w.Write(testMagic); err != nil {
		return fmt.Errorf("writing test magic: %w", err)
	}
	if err := writeReceiptLabel(w, b); err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying receipt: %w", err)
	}
	return nil
}

// Unlock accepts any passphrase.
func (e *TestEncryptor) Unlock(string) (rembes.ReceiptOpener, error) {
	return TestReceiptOpener{}, nil
}

func (e *TestEncryptor) IsSealed(header []byte) bool {
	return bytes.HasPrefix(header, testMagic)
}

func (e *TestEncryptor) IsConfigured() bool {
	return e.configured
}

// TestReceiptOpener opens receipts sealed by TestEncryptor.
type TestReceiptOpener struct{}

var _ rembes.ReceiptOpener = TestReceiptOpener{}

func (TestReceiptOpener) Open(b rembes.ReceiptBinding, r io.Reader, w io.Writer) error {
	magic := make([]byte, len(testMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("reading test magic: %w", err)
	}
	if !bytes.Equal(magic, testMagic) {
		return fmt.Errorf("not a test-sealed receipt")
	}
	return openReceipt(r, b, w)
}
