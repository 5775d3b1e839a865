package vault

import (
	"context"
	"testing"

	"rembes-go/internal/config"
)

func TestNewVaultFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.VaultConfig
		wantErr bool
	}{
		{
			name: "memory vault",
			cfg:  config.VaultConfig{Type: "memory", Name: "test-memory"},
		},
		{
			name: "filesystem vault",
			cfg:  config.VaultConfig{Type: "filesystem", Name: "test-fs", FSVaultRoot: t.TempDir()},
		},
		{
			name:    "filesystem vault without root",
			cfg:     config.VaultConfig{Type: "filesystem", Name: "test-fs"},
			wantErr: true,
		},
		{
			name:    "s3 vault without bucket",
			cfg:     config.VaultConfig{Type: "s3", Name: "test-s3"},
			wantErr: true,
		},
		{
			name:    "gcs vault without bucket",
			cfg:     config.VaultConfig{Type: "gcs", Name: "test-gcs"},
			wantErr: true,
		},
		{
			name:    "bunny vault without access key",
			cfg:     config.VaultConfig{Type: "bunny", Name: "test-bunny", BunnyZone: "zone"},
			wantErr: true,
		},
		{
			name:    "unknown vault type",
			cfg:     config.VaultConfig{Type: "unknown", Name: "test-unknown"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewVaultFromConfig(context.Background(), tt.cfg)

			if (err != nil) != tt.wantErr {
				t.Fatalf("NewVaultFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got == nil {
				t.Fatal("NewVaultFromConfig() returned nil")
			}
			if err := got.ValidateSetup(context.Background()); err != nil {
				t.Errorf("ValidateSetup() error = %v", err)
			}
		})
	}
}

func TestNewVaultFromConfig_Bunny(t *testing.T) {
	got, err := NewVaultFromConfig(context.Background(), config.VaultConfig{
		Type:           "bunny",
		BunnyZone:      "receipts",
		BunnyRegion:    "sg",
		BunnyAccessKey: "key",
	})
	if err != nil {
		t.Fatalf("NewVaultFromConfig() error = %v", err)
	}
	bv, ok := got.(*BunnyVault)
	if !ok {
		t.Fatalf("got %T, want *BunnyVault", got)
	}
	if bv.baseURL != "https://sg.storage.bunnycdn.com/receipts" {
		t.Errorf("baseURL = %q", bv.baseURL)
	}
}
