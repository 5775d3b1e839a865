package encryption

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"filippo.io/age"

	"rembes-go/internal/config"
	"rembes-go/internal/rembes"
)

var taxi = rembes.ReceiptBinding{
	Category:  "grab",
	Period:    rembes.Period{Year: 2023, Month: time.December},
	CreatedAt: time.Date(2024, 1, 10, 14, 5, 9, 0, time.UTC),
}

func newTestAgeEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	return NewAgeEncryptor(config.EncryptionConfig{
		PublicKeyPath:  filepath.Join(dir, "keys", "rembes.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "rembes.key"),
	})
}

func setupAge(t *testing.T, passphrase string) *AgeEncryptor {
	t.Helper()
	e := newTestAgeEncryptor(t)
	if err := e.Setup(passphrase); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	return e
}

func seal(t *testing.T, e rembes.Encryptor, b rembes.ReceiptBinding, receipt []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := e.Seal(b, bytes.NewReader(receipt), &buf); err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	return buf.Bytes()
}

func TestAgeEncryptor_Setup(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)
	if e.IsConfigured() {
		t.Fatal("IsConfigured() = true before Setup")
	}
	if err := e.Setup(""); err == nil {
		t.Error("Setup() with empty passphrase expected error")
	}
	if err := e.Setup("correct horse"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false after Setup")
	}
	if err := e.Setup("again"); err == nil {
		t.Error("second Setup() should refuse to replace existing keys")
	}
	if _, err := e.Unlock("correct horse"); err != nil {
		t.Errorf("Unlock() with the original passphrase error = %v", err)
	}

	info, err := os.Stat(e.privateKeyPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("private key mode = %o, want 600", perm)
	}
}

func TestAgeEncryptor_SealOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		receipt []byte
	}{
		{name: "jpeg", receipt: []byte("\xff\xd8\xff\xe0 receipt")},
		{name: "empty", receipt: []byte{}},
		{name: "receipt with newlines", receipt: []byte("line one\nline two\n")},
		{name: "large", receipt: bytes.Repeat([]byte("abcdef"), 10000)},
	}
	e := setupAge(t, "pw")
	opener, err := e.Unlock("pw")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed := seal(t, e, taxi, tt.receipt)
			if !e.IsSealed(sealed) {
				t.Fatal("IsSealed(sealed) = false")
			}
			if len(tt.receipt) > 0 && bytes.Contains(sealed, tt.receipt) {
				t.Error("sealed output contains the receipt in the clear")
			}

			var got bytes.Buffer
			if err := opener.Open(taxi, bytes.NewReader(sealed), &got); err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if !bytes.Equal(got.Bytes(), tt.receipt) {
				t.Errorf("Open() = %d bytes, want %d", got.Len(), len(tt.receipt))
			}
		})
	}
}

func TestAgeEncryptor_OpenChecksBinding(t *testing.T) {
	t.Parallel()
	e := setupAge(t, "pw")
	opener, err := e.Unlock("pw")
	if err != nil {
		t.Fatal(err)
	}
	sealed := seal(t, e, taxi, []byte("receipt"))

	// Same record seen through a codec in another zone.
	wib := taxi
	wib.CreatedAt = taxi.CreatedAt.In(time.FixedZone("WIB", 7*60*60))
	if err := opener.Open(wib, bytes.NewReader(sealed), &bytes.Buffer{}); err != nil {
		t.Errorf("Open() under a different zone error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*rembes.ReceiptBinding)
	}{
		{"other category", func(b *rembes.ReceiptBinding) { b.Category = "parkir" }},
		{"other period", func(b *rembes.ReceiptBinding) { b.Period.Month = time.November }},
		{"other record", func(b *rembes.ReceiptBinding) { b.CreatedAt = b.CreatedAt.Add(time.Second) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := taxi
			tt.mutate(&b)
			err := opener.Open(b, bytes.NewReader(sealed), &bytes.Buffer{})
			if !errors.Is(err, rembes.ErrReceiptMismatch) {
				t.Errorf("Open() error = %v, want ErrReceiptMismatch", err)
			}
		})
	}
}

func TestAgeEncryptor_Unlock(t *testing.T) {
	t.Parallel()
	if _, err := newTestAgeEncryptor(t).Unlock("pw"); err == nil {
		t.Error("Unlock() before Setup expected error")
	}
	e := setupAge(t, "correct")
	if _, err := e.Unlock("wrong"); err == nil {
		t.Error("Unlock() with wrong passphrase expected error")
	}
}

func TestAgeEncryptor_SealBeforeSetup(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)
	if err := e.Seal(taxi, strings.NewReader("x"), &bytes.Buffer{}); err == nil {
		t.Error("Seal() before Setup expected error")
	}
}

func TestAgeEncryptor_AddTreasurer(t *testing.T) {
	t.Parallel()
	e := setupAge(t, "pw")

	second, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}
	pub := second.Recipient().String()

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"new key", "  " + pub + "\n", false},
		{"duplicate", pub, true},
		{"not a key", "age1nope", true},
		{"ssh key", "ssh-ed25519 AAAA", true},
	}
	for _, tt := range tests {
		if err := e.AddTreasurer(tt.key); (err != nil) != tt.wantErr {
			t.Errorf("AddTreasurer(%s) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}

	keys, err := e.Treasurers()
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[1] != pub {
		t.Fatalf("Treasurers() = %v", keys)
	}

	// Both treasurers open receipts sealed after the key was added.
	sealed := seal(t, e, taxi, []byte("receipt"))
	first, err := e.Unlock("pw")
	if err != nil {
		t.Fatal(err)
	}
	for name, opener := range map[string]rembes.ReceiptOpener{
		"first":  first,
		"second": &AgeReceiptOpener{identities: []age.Identity{second}},
	} {
		var got bytes.Buffer
		if err := opener.Open(taxi, bytes.NewReader(sealed), &got); err != nil || got.String() != "receipt" {
			t.Errorf("%s treasurer Open() = %q, %v", name, got.String(), err)
		}
	}
}

func TestAgeEncryptor_TreasurersSkipsComments(t *testing.T) {
	t.Parallel()
	e := setupAge(t, "pw")
	keys, err := e.Treasurers()
	if err != nil {
		t.Fatal(err)
	}
	data := "# finance team\n\n" + keys[0] + "\n"
	if err := os.WriteFile(e.publicKeyPath, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	if got, err := e.Treasurers(); err != nil || len(got) != 1 || got[0] != keys[0] {
		t.Errorf("Treasurers() = %v, %v", got, err)
	}

	if err := os.WriteFile(e.publicKeyPath, []byte("# nobody\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Treasurers(); err == nil {
		t.Error("Treasurers() with no keys expected error")
	}
}

func TestAgeEncryptor_IsSealed(t *testing.T) {
	t.Parallel()
	e := setupAge(t, "pw")
	sealed := seal(t, e, taxi, []byte("\xff\xd8\xff jpeg"))

	tests := []struct {
		name   string
		header []byte
		want   bool
	}{
		{"sealed", sealed[:32], true},
		{"jpeg", []byte("\xff\xd8\xff jpeg"), false},
		{"test encryptor output", seal(t, NewTestEncryptor(), taxi, []byte("x")), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		if got := e.IsSealed(tt.header); got != tt.want {
			t.Errorf("IsSealed(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
