package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"

	"rembes-go/internal/config"
	"rembes-go/internal/rembes"
)

func newTestApp(t *testing.T, mutate func(*config.Config)) *App {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.Timezone = "UTC"
	cfg.LogLevel = "error"
	if mutate != nil {
		mutate(cfg)
	}
	a, err := NewApp(context.Background(), cfg, "Test")
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewApp_Defaults(t *testing.T) {
	a := newTestApp(t, nil)

	if err := a.CheckVault(context.Background()); err != nil {
		t.Errorf("CheckVault() error = %v", err)
	}
	if a.Encrypted() {
		t.Error("Encrypted() = true with encryption type none")
	}
	if got := strings.Join(a.Registry().Names(), ","); got != "bensin,grab,lembur,mrt,parkir" {
		t.Errorf("categories = %s", got)
	}
	if _, err := os.Stat(a.Config().CategoriesPath); err != nil {
		t.Errorf("categories file not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(a.Config().LogDir, "rembes.log")); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestNewApp_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown vault", func(c *config.Config) { c.Vault.Type = "ftp" }},
		{"unknown staging", func(c *config.Config) { c.Staging.Type = "tape" }},
		{"unknown encryption", func(c *config.Config) { c.Encryption.Type = "rot13" }},
		{"bad timezone", func(c *config.Config) { c.Timezone = "Mars/Olympus" }},
		{"bad log level", func(c *config.Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig(t.TempDir())
			tt.mutate(cfg)
			if a, err := NewApp(context.Background(), cfg, "Test"); err == nil {
				a.Close()
				t.Error("NewApp() expected error")
			}
		})
	}
}

func TestApp_ReportAndFetch(t *testing.T) {
	a := newTestApp(t, func(c *config.Config) { c.Encryption.Type = "test" })
	ctx := context.Background()

	rec, err := a.Repository().Create(ctx, "grab", "Taxi", 45000, strings.NewReader("receipt"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	period, err := a.ResolvePeriod("")
	if err != nil {
		t.Fatal(err)
	}
	if period != rec.Period {
		t.Errorf("ResolvePeriod(\"\") = %v, want %v", period, rec.Period)
	}
	groups, err := a.Report(ctx, period)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if len(groups) != 5 || groups[1].Category != "grab" || groups[1].Total() != 45000 {
		t.Errorf("Report() = %+v", groups)
	}

	sel := rembes.Selection{Category: "grab", Period: period, Index: 1, Key: rec.Key}
	var buf bytes.Buffer
	if _, err := a.Fetch(ctx, sel, &buf, "secret"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if buf.String() != "receipt" {
		t.Errorf("Fetch() = %q, want decrypted receipt", buf.String())
	}

	if _, err := a.Fetch(ctx, sel, &bytes.Buffer{}, ""); err == nil {
		t.Error("Fetch() of an encrypted blob without passphrase expected error")
	}
}

func TestApp_ResolvePeriod(t *testing.T) {
	a := newTestApp(t, nil)
	if p, err := a.ResolvePeriod("2024-03"); err != nil || p.String() != "2024-03" {
		t.Errorf("ResolvePeriod(2024-03) = %v, %v", p, err)
	}
	if _, err := a.ResolvePeriod("March"); err == nil {
		t.Error("ResolvePeriod(March) expected error")
	}
}

func TestApp_Recover(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()

	local := filepath.Join(t.TempDir(), "copy")
	if err := os.WriteFile(local, []byte("lost receipt"), 0600); err != nil {
		t.Fatal(err)
	}

	target := "grab/2023-12/20240110_140509_Taxi_50000.jpg"
	rec, err := a.Recover(ctx, local, target)
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	if rec.Path() != target || rec.Amount != 50000 {
		t.Errorf("Recover() = %+v", rec)
	}

	records, err := a.Repository().ListRecords(ctx, "grab", rec.Period)
	if err != nil || len(records) != 1 {
		t.Fatalf("ListRecords() = %v, %v", records, err)
	}

	tests := []struct {
		name, from, target string
	}{
		{"memory copy", "memory:abc", target},
		{"missing file", filepath.Join(t.TempDir(), "nope"), target},
		{"bad target", local, "grab/20240110_140509_Taxi_50000.jpg"},
		{"undecodable key", local, "grab/2023-12/receipt.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.Recover(ctx, tt.from, tt.target); err == nil {
				t.Error("Recover() expected error")
			}
		})
	}
}

func TestApp_InitEncryption(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		a := newTestApp(t, nil)
		if err := a.InitEncryption("pw"); err == nil {
			t.Error("InitEncryption() with type none expected error")
		}
	})

	t.Run("age", func(t *testing.T) {
		a := newTestApp(t, func(c *config.Config) { c.Encryption.Type = "age" })
		if err := a.InitEncryption("correct horse"); err != nil {
			t.Fatalf("InitEncryption() error = %v", err)
		}
		if _, err := os.Stat(a.Config().Encryption.PublicKeyPath); err != nil {
			t.Errorf("public key not written: %v", err)
		}
		if err := a.InitEncryption("again"); err == nil {
			t.Error("second InitEncryption() expected error")
		}
	})
}

func TestApp_AddTreasurer(t *testing.T) {
	second, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}
	key := second.Recipient().String()

	t.Run("without age", func(t *testing.T) {
		a := newTestApp(t, func(c *config.Config) { c.Encryption.Type = "test" })
		if _, err := a.AddTreasurer(key); err == nil {
			t.Error("AddTreasurer() with the test encryptor expected error")
		}
	})

	t.Run("before init", func(t *testing.T) {
		a := newTestApp(t, func(c *config.Config) { c.Encryption.Type = "age" })
		if _, err := a.AddTreasurer(key); err == nil {
			t.Error("AddTreasurer() before init expected error")
		}
	})

	t.Run("after init", func(t *testing.T) {
		a := newTestApp(t, func(c *config.Config) { c.Encryption.Type = "age" })
		if err := a.InitEncryption("pw"); err != nil {
			t.Fatal(err)
		}
		n, err := a.AddTreasurer(key)
		if err != nil || n != 2 {
			t.Fatalf("AddTreasurer() = %d, %v", n, err)
		}

		ctx := context.Background()
		rec, err := a.Repository().Create(ctx, "mrt", "Commute", 3500, strings.NewReader("receipt"))
		if err != nil {
			t.Fatal(err)
		}
		sel := rembes.Selection{Category: "mrt", Period: rec.Period, Index: 1}
		var plain bytes.Buffer
		if _, err := a.Fetch(ctx, sel, &plain, "pw"); err != nil || plain.String() != "receipt" {
			t.Errorf("Fetch() with the first treasurer's passphrase = %q, %v", plain.String(), err)
		}

		pub, err := os.ReadFile(a.Config().Encryption.PublicKeyPath)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasSuffix(string(pub), key+"\n") {
			t.Errorf("public key file = %q", pub)
		}
	})
}
