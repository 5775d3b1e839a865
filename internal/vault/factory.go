package vault

import (
	"context"
	"fmt"

	"rembes-go/internal/config"
	"rembes-go/internal/rembes"
)

// NewVaultFromConfig creates a Vault implementation based on the vault config type.
// Backends holding network clients also implement io.Closer.
func NewVaultFromConfig(ctx context.Context, cfg config.VaultConfig) (rembes.Vault, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault(cfg.Name), nil
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		return NewFileSystemVault(cfg.Name, cfg.FSVaultRoot)
	case "s3":
		return NewS3Vault(ctx, cfg.Name, S3Options{
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKeyID:  cfg.S3AccessKeyID,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
	case "gcs":
		return NewGCSVault(ctx, cfg.Name, cfg.GCSBucket, cfg.GCSPrefix, cfg.GCSCredentialsFile)
	case "bunny":
		return NewBunnyVault(cfg.Name, BunnyOptions{
			Zone:      cfg.BunnyZone,
			Region:    cfg.BunnyRegion,
			Endpoint:  cfg.BunnyEndpoint,
			AccessKey: cfg.BunnyAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
