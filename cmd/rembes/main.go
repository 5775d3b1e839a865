package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rembes-go/internal/app"
	"rembes-go/internal/config"
	"rembes-go/internal/rembes"
	"rembes-go/internal/report"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and overlays .env files and the environment.
func loadConfig() (*config.Config, app.Paths, error) {
	paths, err := app.DefaultPaths()
	if err != nil {
		return nil, app.Paths{}, fmt.Errorf("getting defaults: %w", err)
	}

	if err := config.LoadEnv(paths.EnvFiles()...); err != nil {
		return nil, app.Paths{}, err
	}

	cfg, err := config.ReadFromFile(paths.ConfigPath)
	if err != nil {
		return nil, app.Paths{}, fmt.Errorf("reading config: %w", err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, app.Paths{}, fmt.Errorf("reading environment: %w", err)
	}
	return cfg, paths, nil
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Serve", "Recover").
func newApp(ctx context.Context, operation string) (*app.App, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// withApp runs fn with a fresh App and records failures in the operation log.
func withApp(cmd *cobra.Command, operation string, fn func(context.Context, *app.App) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, operation)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		a.Fail()
		return err
	}
	return nil
}

// readPassphrase prompts on the terminal without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

// output opens path for writing, or returns stdout for "" and "-".
func output(path string) (*os.File, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, f.Close, nil
}

var rootCmd = &cobra.Command{
	Use:          "rembes",
	Short:        "Group expense reimbursement bot",
	SilenceUsage: true,
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Serve(ctx); err != nil {
			a.Fail()
			return err
		}
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(paths.BaseDir)
		if err := config.Init(paths.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", paths.ConfigPath)
		fmt.Printf("Base Dir: %s\n", paths.BaseDir)
		fmt.Printf("Set %s (and optionally %s) in the environment or in %s\n",
			config.EnvBotToken, config.EnvGroupChatID, paths.EnvFile())
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, paths, err := loadConfig()
		if err != nil {
			return err
		}

		token := "(not set)"
		if cfg.Telegram.Token != "" {
			token = "(set)"
		}
		fmt.Printf("Configuration from %s:\n\n", paths.ConfigPath)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Timezone:     %s\n", cfg.Timezone)
		fmt.Printf("Categories:   %s\n", cfg.CategoriesPath)
		fmt.Printf("No-photo:     %s\n", cfg.NoPhotoCategory)
		fmt.Printf("Vault:        %s (%s)\n", cfg.Vault.Name, cfg.Vault.Type)
		fmt.Printf("Staging:      %s\n", cfg.Staging.Type)
		fmt.Printf("Encryption:   %s\n", cfg.Encryption.Type)
		fmt.Printf("Bot token:    %s\n", token)
		fmt.Printf("Group chat:   %d\n", cfg.Telegram.GroupChatID)
		if cfg.Reminder.Enabled {
			fmt.Printf("Reminder:     day %d at %02d:%02d\n", cfg.Reminder.Day, cfg.Reminder.Hour, cfg.Reminder.Minute)
		} else {
			fmt.Printf("Reminder:     off\n")
		}
		return nil
	},
}

// category command
var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Manage expense categories",
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "ListCategories", func(_ context.Context, a *app.App) error {
			for _, name := range a.Registry().Names() {
				fmt.Println(name)
			}
			return nil
		})
	},
}

var categoryAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "AddCategory", func(_ context.Context, a *app.App) error {
			name, err := a.Registry().Add(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Added %s. Restart the bot to enable /%s.\n", name, name)
			return nil
		})
	},
}

var categoryRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Remove a category (records are kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "RemoveCategory", func(_ context.Context, a *app.App) error {
			name, err := a.Registry().Remove(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Removed %s.\n", name)
			return nil
		})
	},
}

// period command
var periodCmd = &cobra.Command{
	Use:   "period [YYYY-MM-DD]",
	Short: "Show the reimbursement period of a date (default today)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		loc, err := cfg.Location()
		if err != nil {
			return err
		}

		t := time.Now().In(loc)
		if len(args) == 1 {
			t, err = time.ParseInLocation("2006-01-02", args[0], loc)
			if err != nil {
				return fmt.Errorf("date must look like 2024-01-31: %w", err)
			}
		}
		p := rembes.PeriodOf(t)
		fmt.Printf("%s (%s)\n", p, p.Label())
		return nil
	},
}

// summary, list and export commands
func reportCommand(use, short, operation string, render func(rembes.Period, []report.CategoryRecords) string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			periodFlag, _ := cmd.Flags().GetString("period")
			return withApp(cmd, operation, func(ctx context.Context, a *app.App) error {
				period, err := a.ResolvePeriod(periodFlag)
				if err != nil {
					return err
				}
				groups, err := a.Report(ctx, period)
				if err != nil {
					return err
				}
				fmt.Println(render(period, groups))
				return nil
			})
		},
	}
}

var summaryCmd = reportCommand("summary", "Show totals per category", "Summary", report.SummaryText)

var listCmd = reportCommand("list", "List every record", "List", report.ListText)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a period's records as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		periodFlag, _ := cmd.Flags().GetString("period")
		outPath, _ := cmd.Flags().GetString("output")

		return withApp(cmd, "Export", func(ctx context.Context, a *app.App) error {
			period, err := a.ResolvePeriod(periodFlag)
			if err != nil {
				return err
			}
			groups, err := a.Report(ctx, period)
			if err != nil {
				return err
			}

			if outPath == "" {
				outPath = report.ExportFilename(period)
			}
			w, closeOut, err := output(outPath)
			if err != nil {
				return err
			}
			if err := report.WriteCSV(w, period, groups); err != nil {
				closeOut()
				return err
			}
			if err := closeOut(); err != nil {
				return err
			}
			if w != os.Stdout {
				fmt.Fprintf(os.Stderr, "Wrote %s\n", outPath)
			}
			return nil
		})
	},
}

// fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch CATEGORY INDEX",
	Short: "Download the receipt of a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		periodFlag, _ := cmd.Flags().GetString("period")
		outPath, _ := cmd.Flags().GetString("output")

		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("index must be a number: %w", err)
		}

		return withApp(cmd, "Fetch", func(ctx context.Context, a *app.App) error {
			period, err := a.ResolvePeriod(periodFlag)
			if err != nil {
				return err
			}

			var passphrase string
			if a.Encrypted() {
				passphrase, err = readPassphrase("Passphrase: ")
				if err != nil {
					return err
				}
			}

			if outPath == "" {
				outPath = "-"
			}
			w, closeOut, err := output(outPath)
			if err != nil {
				return err
			}
			sel := rembes.Selection{Category: strings.ToLower(args[0]), Period: period, Index: index}
			rec, err := a.Fetch(ctx, sel, w, passphrase)
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Fetched %s\n", rec.Path())
			return nil
		})
	},
}

// recover command
var recoverCmd = &cobra.Command{
	Use:   "recover --from FILE CATEGORY/YYYY-MM/KEY",
	Short: "Re-upload a record kept locally after a failed edit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		return withApp(cmd, "Recover", func(ctx context.Context, a *app.App) error {
			rec, err := a.Recover(ctx, from, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Recovered %s\n", rec.Path())
			return nil
		})
	},
}

// vault command
var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage the object store",
}

var vaultCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the object store is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "CheckVault", func(ctx context.Context, a *app.App) error {
			if err := a.CheckVault(ctx); err != nil {
				return err
			}
			fmt.Printf("Vault %s (%s) is reachable\n", a.Config().Vault.Name, a.Config().Vault.Type)
			return nil
		})
	},
}

// encryption command
var encryptionCmd = &cobra.Command{
	Use:   "encryption",
	Short: "Manage receipt encryption",
}

var encryptionInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "InitEncryption", func(_ context.Context, a *app.App) error {
			pass, err := readPassphrase("New passphrase: ")
			if err != nil {
				return err
			}
			confirm, err := readPassphrase("Repeat passphrase: ")
			if err != nil {
				return err
			}
			if pass != confirm {
				return fmt.Errorf("passphrases do not match")
			}
			if pass == "" {
				return fmt.Errorf("passphrase must not be empty")
			}
			if err := a.InitEncryption(pass); err != nil {
				return err
			}
			fmt.Printf("Keys written to %s and %s\n", a.Config().Encryption.PublicKeyPath, a.Config().Encryption.PrivateKeyPath)
			return nil
		})
	},
}

var encryptionAddTreasurerCmd = &cobra.Command{
	Use:   "add-treasurer AGE_PUBLIC_KEY",
	Short: "Seal new receipts to another treasurer's age key as well",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "AddTreasurer", func(_ context.Context, a *app.App) error {
			n, err := a.AddTreasurer(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("New receipts are sealed to %d keys. Receipts sealed earlier keep their old keys.\n", n)
			return nil
		})
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// category subcommands
	categoryCmd.AddCommand(categoryListCmd)
	categoryCmd.AddCommand(categoryAddCmd)
	categoryCmd.AddCommand(categoryRemoveCmd)

	vaultCmd.AddCommand(vaultCheckCmd)
	encryptionCmd.AddCommand(encryptionInitCmd)
	encryptionCmd.AddCommand(encryptionAddTreasurerCmd)

	for _, c := range []*cobra.Command{summaryCmd, listCmd, exportCmd, fetchCmd} {
		c.Flags().StringP("period", "p", "", "Period as YYYY-MM (default current)")
	}
	exportCmd.Flags().StringP("output", "o", "", "Output file, - for stdout (default rembes-YYYY-MM.csv)")
	fetchCmd.Flags().StringP("output", "o", "-", "Output file, - for stdout")
	recoverCmd.Flags().String("from", "", "Local copy to upload")
	recoverCmd.MarkFlagRequired("from")

	// root commands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(categoryCmd)
	rootCmd.AddCommand(periodCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(vaultCmd)
	rootCmd.AddCommand(encryptionCmd)
}
