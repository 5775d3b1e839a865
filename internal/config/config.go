package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables that override secrets and IDs from the config file.
const (
	EnvBotToken       = "REMBES_BOT_TOKEN"
	EnvGroupChatID    = "REMBES_GROUP_CHAT_ID"
	EnvBunnyAccessKey = "BUNNY_ACCESS_KEY"
)

// Config represents the main configuration for rembes.
type Config struct {
	BaseDir         string           `toml:"base_dir"`
	LogDir          string           `toml:"log_dir"`
	LogLevel        string           `toml:"log_level"` // debug, info, warn or error
	Timezone        string           `toml:"timezone"`  // IANA name; periods and keys use it
	CategoriesPath  string           `toml:"categories_path"`
	NoPhotoCategory string           `toml:"no_photo_category"`
	Telegram        TelegramConfig   `toml:"telegram"`
	Vault           VaultConfig      `toml:"vault"`
	Staging         StagingConfig    `toml:"staging"`
	Encryption      EncryptionConfig `toml:"encryption"`
	Reminder        ReminderConfig   `toml:"reminder"`
}

// TelegramConfig holds the chat transport settings. The token is usually
// supplied through REMBES_BOT_TOKEN rather than written to disk.
type TelegramConfig struct {
	Token       string `toml:"token,omitempty"`
	GroupChatID int64  `toml:"group_chat_id,omitempty"` // 0 disables announcements and reminders
	Debug       bool   `toml:"debug,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// VaultConfig represents configuration for the object store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "filesystem", "s3", "gcs" or "bunny"
	Name string `toml:"name"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket       string `toml:"s3_bucket,omitempty"`
	S3Prefix       string `toml:"s3_prefix,omitempty"`
	S3Region       string `toml:"s3_region,omitempty"`
	S3Endpoint     string `toml:"s3_endpoint,omitempty"` // for S3-compatible stores
	S3AccessKeyID  string `toml:"s3_access_key_id,omitempty"`
	S3SecretKey    string `toml:"s3_secret_key,omitempty"`
	S3UsePathStyle bool   `toml:"s3_use_path_style,omitempty"`

	// GCS-specific fields (only used when Type == "gcs")
	GCSBucket          string `toml:"gcs_bucket,omitempty"`
	GCSPrefix          string `toml:"gcs_prefix,omitempty"`
	GCSCredentialsFile string `toml:"gcs_credentials_file,omitempty"`

	// Bunny-specific fields (only used when Type == "bunny")
	BunnyZone      string `toml:"bunny_zone,omitempty"`
	BunnyRegion    string `toml:"bunny_region,omitempty"`   // e.g. "sg"; empty or "de" is the main region
	BunnyEndpoint  string `toml:"bunny_endpoint,omitempty"` // overrides the region-derived base URL
	BunnyAccessKey string `toml:"bunny_access_key,omitempty"`
}

// StagingConfig represents configuration for the staging area.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StagingConfig struct {
	Type       string `toml:"type"`                  // "memory" or "filesystem"
	StagingDir string `toml:"staging_dir,omitempty"` // only used for type=filesystem
	MaxSize    int64  `toml:"max_size"`              // max total size in bytes; defaults to 64MB
}

// ReminderConfig schedules the monthly "submit your receipts" message.
type ReminderConfig struct {
	Enabled bool `toml:"enabled"`
	Day     int  `toml:"day"`
	Hour    int  `toml:"hour"`
	Minute  int  `toml:"minute"`
}

// NewConfig creates a new Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:         baseDir,
		LogDir:          filepath.Join(baseDir, "log"),
		LogLevel:        "info",
		Timezone:        "Asia/Jakarta",
		CategoriesPath:  filepath.Join(baseDir, "categories.toml"),
		NoPhotoCategory: "lembur",
		Vault: VaultConfig{
			Type:        "filesystem",
			Name:        "local",
			FSVaultRoot: filepath.Join(baseDir, "vault"),
		},
		Staging: StagingConfig{
			Type:       "filesystem",
			StagingDir: filepath.Join(baseDir, "staging"),
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "rembes.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "rembes.key"),
		},
		Reminder: ReminderConfig{
			Enabled: true,
			Day:     22,
			Hour:    9,
		},
	}
}

// Location returns the configured timezone, or time.Local when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Reminder.Enabled {
		if c.Reminder.Day < 1 || c.Reminder.Day > 28 {
			return fmt.Errorf("reminder day must be between 1 and 28, got %d", c.Reminder.Day)
		}
		if c.Reminder.Hour < 0 || c.Reminder.Hour > 23 || c.Reminder.Minute < 0 || c.Reminder.Minute > 59 {
			return fmt.Errorf("reminder time %02d:%02d is not valid", c.Reminder.Hour, c.Reminder.Minute)
		}
	}
	return nil
}

// ApplyEnv overlays secrets and IDs found in the environment.
// getenv is os.Getenv outside of tests.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvBotToken); v != "" {
		c.Telegram.Token = v
	}
	if v := getenv(EnvGroupChatID); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvGroupChatID, err)
		}
		c.Telegram.GroupChatID = id
	}
	if v := getenv(EnvBunnyAccessKey); v != "" {
		c.Vault.BunnyAccessKey = v
	}
	return nil
}

// LoadEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold a bot token or store credentials.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
