package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"rembes-go/internal/category"
	"rembes-go/internal/config"
	"rembes-go/internal/conversation"
	"rembes-go/internal/encryption"
	"rembes-go/internal/placeholder"
	"rembes-go/internal/rembes"
	"rembes-go/internal/report"
	"rembes-go/internal/staging"
	"rembes-go/internal/telegram"
	"rembes-go/internal/vault"
)

// App is the application layer between the CLI and the repository.
// It constructs all dependencies from config, exposes the operations the
// commands need, and releases resources on Close.
type App struct {
	cfg       *config.Config
	loc       *time.Location
	clock     rembes.Clock
	vault     rembes.Vault
	staging   rembes.StagingArea
	encryptor rembes.Encryptor
	repo      *rembes.Repository
	registry  *category.Registry
	logger    *slog.Logger
	logFile   *os.File
	op        *Operation
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Serve", "Recover").
// The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, operation string) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	clock := rembes.RealClock{Location: loc}

	op := NewOperation(operation, clock.Now())
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &App{cfg: cfg, loc: loc, clock: clock, logger: logger, logFile: logFile, op: op}
	fail := func(err error) (*App, error) {
		a.closeResources()
		return nil, err
	}

	a.vault, err = vault.NewVaultFromConfig(ctx, cfg.Vault)
	if err != nil {
		return fail(fmt.Errorf("creating vault: %w", err))
	}

	a.staging, err = staging.NewStagingAreaFromConfig(cfg.Staging, rembes.UUIDGenerator{})
	if err != nil {
		return fail(fmt.Errorf("creating staging area: %w", err))
	}

	a.encryptor, err = encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fail(fmt.Errorf("creating encryptor: %w", err))
	}

	a.registry, err = category.Load(cfg.CategoriesPath)
	if err != nil {
		return fail(fmt.Errorf("loading categories: %w", err))
	}

	a.repo = rembes.NewRepository(a.vault, a.staging, a.encryptor, rembes.NewCodec(loc), &slogAdapter{l: logger}, clock)

	logger.Info("operation started", "operation", operation, "vault", cfg.Vault.Type, "encryption", cfg.Encryption.Type)
	return a, nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Repository returns the record repository.
func (a *App) Repository() *rembes.Repository { return a.repo }

// Registry returns the category registry.
func (a *App) Registry() *category.Registry { return a.registry }

// Logger returns the app logger behind the rembes.Logger interface.
func (a *App) Logger() rembes.Logger { return &slogAdapter{l: a.logger} }

// Fail marks the running operation as failed in the log.
func (a *App) Fail() { a.op.Fail() }

// Encrypted reports whether new records are encrypted before upload.
func (a *App) Encrypted() bool { return a.encryptor != nil }

// CheckVault verifies the object store is reachable.
func (a *App) CheckVault(ctx context.Context) error {
	return a.repo.Ping(ctx)
}

// ResolvePeriod parses "YYYY-MM", or returns the current period for "".
func (a *App) ResolvePeriod(s string) (rembes.Period, error) {
	if s == "" {
		return a.repo.CurrentPeriod(), nil
	}
	return rembes.ParsePeriod(s)
}

// Report lists every registered category for period.
func (a *App) Report(ctx context.Context, period rembes.Period) ([]report.CategoryRecords, error) {
	return report.Collect(ctx, a.repo, a.registry.Names(), period)
}

// Fetch writes the receipt of a record to w, opening it with passphrase
// when it is sealed.
func (a *App) Fetch(ctx context.Context, sel rembes.Selection, w io.Writer, passphrase string) (rembes.Record, error) {
	var opener rembes.ReceiptOpener
	if a.encryptor != nil && passphrase != "" {
		o, err := a.encryptor.Unlock(passphrase)
		if err != nil {
			return rembes.Record{}, fmt.Errorf("unlocking private key: %w", err)
		}
		opener = o
	}
	return a.repo.Download(ctx, sel, w, opener)
}

// Recover uploads the local copy at from under the store path target,
// typically after an edit lost its record.
func (a *App) Recover(ctx context.Context, from, target string) (rembes.Record, error) {
	if strings.HasPrefix(from, "memory:") {
		return rembes.Record{}, fmt.Errorf("%s was held in memory and did not survive the restart", from)
	}
	cat, period, key, err := rembes.SplitObjectPath(target)
	if err != nil {
		return rembes.Record{}, err
	}

	f, err := os.Open(from)
	if err != nil {
		return rembes.Record{}, fmt.Errorf("opening local copy: %w", err)
	}
	defer f.Close()

	rec, err := a.repo.Reupload(ctx, cat, period, key, f)
	if err != nil {
		return rembes.Record{}, err
	}
	a.logger.Info("record recovered", "path", rec.Path(), "from", from)
	return rec, nil
}

// InitEncryption generates the key pair for the configured encryptor.
func (a *App) InitEncryption(passphrase string) error {
	if a.encryptor == nil {
		return fmt.Errorf("encryption type is %q: set encryption.type to \"age\" first", a.cfg.Encryption.Type)
	}
	if a.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys already exist")
	}
	return a.encryptor.Setup(passphrase)
}

// AddTreasurer lets another age key holder open receipts sealed from now on.
// It returns the number of keys receipts are sealed to.
func (a *App) AddTreasurer(key string) (int, error) {
	ae, ok := a.encryptor.(*encryption.AgeEncryptor)
	if !ok || !ae.IsConfigured() {
		return 0, fmt.Errorf("treasurer keys need age encryption: run `rembes encryption init` first")
	}
	if err := ae.AddTreasurer(key); err != nil {
		return 0, err
	}
	keys, err := ae.Treasurers()
	if err != nil {
		return 0, err
	}
	a.logger.Info("treasurer key added", "keys", len(keys))
	return len(keys), nil
}

// Serve runs the Telegram bot until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if err := a.repo.Ping(ctx); err != nil {
		return fmt.Errorf("vault is not usable: %w", err)
	}

	api, err := telegram.NewAPI(a.cfg.Telegram.Token, a.cfg.Telegram.Debug)
	if err != nil {
		return err
	}
	a.logger.Info("connected to telegram", "bot", api.Self.UserName)

	var notifier conversation.Notifier
	if a.cfg.Telegram.GroupChatID != 0 {
		notifier = telegram.NewGroupNotifier(api, a.cfg.Telegram.GroupChatID)
	}

	logger := a.Logger()
	engine := conversation.NewEngine(conversation.Options{
		Categories:      a.registry.Names(),
		NoPhotoCategory: a.cfg.NoPhotoCategory,
		Registry:        a.registry,
		Records:         a.repo,
		Photos:          telegram.NewPhotoFetcher(api, nil),
		Placeholder:     placeholder.Renderer{},
		Notifier:        notifier,
		Logger:          logger,
	})

	bot, err := telegram.NewBot(telegram.Options{
		API:         api,
		Engine:      engine,
		Records:     a.repo,
		Categories:  a.registry,
		GroupChatID: a.cfg.Telegram.GroupChatID,
		Reminder:    a.cfg.Reminder,
		Location:    a.loc,
		Clock:       a.clock,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	return bot.Run(ctx)
}

// Close logs the outcome of the operation and releases resources.
func (a *App) Close() error {
	a.logger.Info("operation finished", "operation", a.op.Name, "status", a.op.Status,
		"duration", a.op.Duration(a.clock.Now()).Truncate(time.Millisecond).String())
	return a.closeResources()
}

func (a *App) closeResources() error {
	var firstErr error
	if c, ok := a.vault.(io.Closer); ok {
		if err := c.Close(); err != nil {
			firstErr = fmt.Errorf("closing vault: %w", err)
		}
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}
