package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rembes-go/internal/category"
	"rembes-go/internal/conversation"
	"rembes-go/internal/rembes"
	"rembes-go/internal/report"
)

// command answers the commands that do not start a conversation.
func (b *Bot) command(ctx context.Context, chatID int64, ev conversation.Event) []tgbotapi.Chattable {
	switch ev.Command {
	case "start", "help":
		return text(chatID, b.helpText())
	case "status":
		return text(chatID, b.statusText(ctx))
	case "summary", "list", "export":
		return b.report(ctx, chatID, ev.Command, ev.Text)
	case "addcategory", "tambah_kategori":
		return text(chatID, b.addCategory(ev.Text))
	case "removecategory", "hapus_kategori":
		return text(chatID, b.removeCategory(ev.Text))
	default:
		return text(chatID, fmt.Sprintf("Unknown command /%s. Send /help for the list.", ev.Command))
	}
}

func text(chatID int64, s string) []tgbotapi.Chattable {
	return []tgbotapi.Chattable{tgbotapi.NewMessage(chatID, s)}
}

func (b *Bot) helpText() string {
	entries := b.engine.EntryCategories()
	sort.Strings(entries)

	var sb strings.Builder
	sb.WriteString("Add a record:\n")
	for _, c := range entries {
		fmt.Fprintf(&sb, "/%s\n", c)
	}
	sb.WriteString("\nOther commands:\n")
	sb.WriteString("/delete (/hapus) - delete a record\n")
	sb.WriteString("/edit - change a record's note or amount\n")
	sb.WriteString("/cancel (/batal) - stop the current action\n")
	sb.WriteString("/summary [YYYY-MM] - totals per category\n")
	sb.WriteString("/list [YYYY-MM] - every record\n")
	sb.WriteString("/export [YYYY-MM] - CSV file\n")
	sb.WriteString("/addcategory NAME (/tambah_kategori)\n")
	sb.WriteString("/removecategory NAME (/hapus_kategori)\n")
	sb.WriteString("/status - bot health")
	return sb.String()
}

func (b *Bot) statusText(ctx context.Context) string {
	storage := "OK"
	if err := b.records.Ping(ctx); err != nil {
		b.logger.Warn("status ping failed", "error", err)
		storage = "unreachable"
	}
	period := b.records.CurrentPeriod()
	uptime := b.clock.Now().Sub(b.started).Truncate(time.Second)

	return fmt.Sprintf("Uptime: %s\nStorage: %s\nCategories: %d registered, %d active\nCurrent period: %s (%s)\nActive conversations: %d",
		uptime, storage, len(b.categories.Names()), len(b.engine.EntryCategories()),
		period, period.Label(), b.engine.ActiveSessions())
}

func (b *Bot) report(ctx context.Context, chatID int64, kind, arg string) []tgbotapi.Chattable {
	period := b.records.CurrentPeriod()
	if arg != "" {
		p, err := rembes.ParsePeriod(arg)
		if err != nil {
			return text(chatID, "Period must look like 2024-01.")
		}
		period = p
	}

	groups, err := report.Collect(ctx, b.records, b.categories.Names(), period)
	if err != nil {
		b.logger.Error("collecting report", "kind", kind, "period", period.String(), "error", err)
		return text(chatID, "Storage is not reachable right now. Please try again later.")
	}

	switch kind {
	case "summary":
		return text(chatID, report.SummaryText(period, groups))
	case "list":
		return text(chatID, report.ListText(period, groups))
	}

	if countRecords(groups) == 0 {
		return text(chatID, report.NoData)
	}
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, period, groups); err != nil {
		b.logger.Error("writing export", "period", period.String(), "error", err)
		return text(chatID, "Could not build the export.")
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: report.ExportFilename(period), Bytes: buf.Bytes()})
	doc.Caption = fmt.Sprintf("Export for %s. Grand total %s.", period.Label(), report.FormatAmount(report.GrandTotal(groups)))
	return []tgbotapi.Chattable{doc}
}

func countRecords(groups []report.CategoryRecords) int {
	n := 0
	for _, g := range groups {
		n += len(g.Records)
	}
	return n
}

func (b *Bot) addCategory(arg string) string {
	if arg == "" {
		return "Usage: /addcategory NAME"
	}
	name, err := b.categories.Add(arg)
	switch {
	case errors.Is(err, category.ErrInvalidName):
		return "Category names may only contain letters a-z."
	case errors.Is(err, category.ErrReserved):
		return fmt.Sprintf("%q is a built-in command and cannot be a category.", arg)
	case errors.Is(err, category.ErrExists):
		return fmt.Sprintf("Category %s already exists.", strings.ToUpper(arg))
	case err != nil:
		b.logger.Error("adding category", "name", arg, "error", err)
		return "Could not save the category list."
	}
	b.logger.Info("category added", "name", name)
	return fmt.Sprintf("Category %s added. Restart the bot to enable /%s.", strings.ToUpper(name), name)
}

func (b *Bot) removeCategory(arg string) string {
	if arg == "" {
		return "Usage: /removecategory NAME"
	}
	name, err := b.categories.Remove(arg)
	switch {
	case errors.Is(err, category.ErrNotFound):
		return fmt.Sprintf("There is no category %s.", strings.ToUpper(arg))
	case err != nil:
		b.logger.Error("removing category", "name", arg, "error", err)
		return "Could not save the category list."
	}
	b.logger.Info("category removed", "name", name)
	return fmt.Sprintf("Category %s removed. Its records are kept. Restart the bot to drop /%s.", strings.ToUpper(name), name)
}
