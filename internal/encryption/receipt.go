package encryption

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"rembes-go/internal/rembes"
)

// receiptLabel opens the plaintext of every sealed receipt. The rest of the
// line is the binding; the image bytes follow it.
const receiptLabel = "rembes-receipt "

func writeReceiptLabel(w io.Writer, b rembes.ReceiptBinding) error {
	if _, err := io.WriteString(w, receiptLabel+b.String()+"\n"); err != nil {
		return fmt.Errorf("writing receipt label: %w", err)
	}
	return nil
}

// readReceiptLabel consumes the label line from r and checks it names want.
func readReceiptLabel(r *bufio.Reader, want rembes.ReceiptBinding) error {
	line, err := r.ReadSlice('\n')
	if err != nil {
		return fmt.Errorf("reading receipt label: %w", err)
	}
	got, ok := strings.CutPrefix(strings.TrimSuffix(string(line), "\n"), receiptLabel)
	if !ok {
		return fmt.Errorf("sealed blob has no receipt label")
	}
	if got != want.String() {
		return fmt.Errorf("%w: sealed for %s, opened as %s", rembes.ErrReceiptMismatch, got, want)
	}
	return nil
}

// openReceipt checks the label of a plain receipt stream and copies the
// image that follows it to w.
func openReceipt(plain io.Reader, want rembes.ReceiptBinding, w io.Writer) error {
	br := bufio.NewReader(plain)
	if err := readReceiptLabel(br, want); err != nil {
		return err
	}
	if _, err := io.Copy(w, br); err != nil {
		return fmt.Errorf("copying receipt: %w", err)
	}
	return nil
}
