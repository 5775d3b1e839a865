package encryption

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"filippo.io/age"

	"rembes-go/internal/config"
	"rembes-go/internal/rembes"
)

// ageHeader starts every age stream.
var ageHeader = []byte("age-encryption.org/v1\n")

// AgeEncryptor seals receipts with age X25519 keys.
//
// The public key file holds one treasurer key per line. Setup writes the
// first; AddTreasurer appends more, and every receipt sealed afterwards can
// be opened by any of them. The generated private key is itself sealed with
// the passphrase (age scrypt), so the running bot can seal receipts but
// never read one back.
type AgeEncryptor struct {
	publicKeyPath  string
	privateKeyPath string
}

var _ rembes.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates an AgeEncryptor for the configured key paths.
func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{
		publicKeyPath:  cfg.PublicKeyPath,
		privateKeyPath: cfg.PrivateKeyPath,
	}
}

// Setup generates the first treasurer key pair.
func (e *AgeEncryptor) Setup(passphrase string) error {
	if e.IsConfigured() {
		return fmt.Errorf("keys already exist at %s; existing receipts would become unreadable", e.publicKeyPath)
	}
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}
	locked, err := lockIdentity(identity, passphrase)
	if err != nil {
		return err
	}

	for _, dir := range []string{filepath.Dir(e.publicKeyPath), filepath.Dir(e.privateKeyPath)} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating key directory: %w", err)
		}
	}
	if err := os.WriteFile(e.privateKeyPath, locked, 0600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	if err := os.WriteFile(e.publicKeyPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}

// lockIdentity seals the private key of identity with passphrase.
func lockIdentity(identity *age.X25519Identity, passphrase string) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, fmt.Errorf("locking private key: %w", err)
	}
	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return nil, fmt.Errorf("locking private key: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("locking private key: %w", err)
	}
	return buf.Bytes(), nil
}

// Treasurers returns the public keys receipts are sealed to, in file order.
func (e *AgeEncryptor) Treasurers() ([]string, error) {
	f, err := os.Open(e.publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading public keys: %w", err)
	}
	defer f.Close()

	var keys []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading public keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no public keys in %s", e.publicKeyPath)
	}
	return keys, nil
}

// AddTreasurer appends an age public key ("age1...") to the key file.
// Receipts sealed before the call stay readable only by the earlier keys.
func (e *AgeEncryptor) AddTreasurer(key string) error {
	key = strings.TrimSpace(key)
	if _, err := age.ParseX25519Recipient(key); err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}
	keys, err := e.Treasurers()
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return fmt.Errorf("public key is already listed")
	}

	f, err := os.OpenFile(e.publicKeyPath, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening public keys: %w", err)
	}
	if _, err := io.WriteString(f, key+"\n"); err != nil {
		f.Close()
		return fmt.Errorf("appending public key: %w", err)
	}
	return f.Close()
}

func (e *AgeEncryptor) recipients() ([]age.Recipient, error) {
	keys, err := e.Treasurers()
	if err != nil {
		return nil, err
	}
	out := make([]age.Recipient, 0, len(keys))
	for _, k := range keys {
		r, err := age.ParseX25519Recipient(k)
		if err != nil {
			return nil, fmt.Errorf("parsing public key %q: %w", k, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Seal encrypts the labelled receipt to every treasurer key.
func (e *AgeEncryptor) Seal(b rembes.ReceiptBinding, r io.Reader, w io.Writer) error {
	recipients, err := e.recipients()
	if err != nil {
		return err
	}
	sealed, err := age.Encrypt(w, recipients...)
	if err != nil {
		return fmt.Errorf("creating sealed writer: %w", err)
	}
	if err := writeReceiptLabel(sealed, b); err != nil {
		return err
	}
	if _, err := io.Copy(sealed, r); err != nil {
		return fmt.Errorf("sealing receipt: %w", err)
	}
	if err := sealed.Close(); err != nil {
		return fmt.Errorf("finalizing sealed receipt: %w", err)
	}
	return nil
}

// Unlock opens the private key written by Setup.
func (e *AgeEncryptor) Unlock(passphrase string) (rembes.ReceiptOpener, error) {
	locked, err := os.ReadFile(e.privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	scrypt, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}
	plain, err := age.Decrypt(bytes.NewReader(locked), scrypt)
	if err != nil {
		return nil, fmt.Errorf("unlocking private key: %w", err)
	}
	identities, err := age.ParseIdentities(plain)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("no private key in %s", e.privateKeyPath)
	}
	return &AgeReceiptOpener{identities: identities}, nil
}

func (e *AgeEncryptor) IsSealed(header []byte) bool {
	return bytes.HasPrefix(header, ageHeader)
}

// IsConfigured reports whether both key files exist.
func (e *AgeEncryptor) IsConfigured() bool {
	for _, p := range []string{e.publicKeyPath, e.privateKeyPath} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// AgeReceiptOpener opens receipts with an unlocked private key.
type AgeReceiptOpener struct {
	identities []age.Identity
}

var _ rembes.ReceiptOpener = (*AgeReceiptOpener)(nil)

func (o *AgeReceiptOpener) Open(b rembes.ReceiptBinding, r io.Reader, w io.Writer) error {
	plain, err := age.Decrypt(r, o.identities...)
	if err != nil {
		return fmt.Errorf("decrypting receipt: %w", err)
	}
	return openReceipt(plain, b, w)
}
