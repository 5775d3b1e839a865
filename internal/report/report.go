// Package report renders period summaries, detailed listings, CSV exports
// and the monthly reminder from repository reads.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"rembes-go/internal/rembes"
)

var printer = message.NewPrinter(language.English)

// FormatAmount renders an amount in the smallest currency unit with
// thousands separators, e.g. "Rp 45,000".
func FormatAmount(amount int64) string {
	return printer.Sprintf("Rp %d", amount)
}

// Source is the read side of the repository.
type Source interface {
	ListRecords(ctx context.Context, category string, period rembes.Period) ([]rembes.Record, error)
}

// CategoryRecords groups one category's records for a period.
type CategoryRecords struct {
	Category string
	Records  []rembes.Record
}

// Total sums the group's amounts.
func (c CategoryRecords) Total() int64 {
	var total int64
	for _, r := range c.Records {
		total += r.Amount
	}
	return total
}

// Collect lists every category for period, in the given order. Categories
// without records are kept so callers can decide whether to show them.
func Collect(ctx context.Context, src Source, categories []string, period rembes.Period) ([]CategoryRecords, error) {
	out := make([]CategoryRecords, 0, len(categories))
	for _, cat := range categories {
		records, err := src.ListRecords(ctx, cat, period)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", cat, err)
		}
		out = append(out, CategoryRecords{Category: cat, Records: records})
	}
	return out, nil
}

// GrandTotal sums every group.
func GrandTotal(groups []CategoryRecords) int64 {
	var total int64
	for _, g := range groups {
		total += g.Total()
	}
	return total
}

func empty(groups []CategoryRecords) bool {
	for _, g := range groups {
		if len(g.Records) > 0 {
			return false
		}
	}
	return true
}

// NoData is the reply when a period holds no records at all.
const NoData = "No records to show for this period."

// SummaryText renders per-category totals and the grand total.
func SummaryText(period rembes.Period, groups []CategoryRecords) string {
	if empty(groups) {
		return NoData
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Summary for period %s (%s)\n\n", period, period.Label())
	for _, g := range groups {
		if len(g.Records) == 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", strings.ToUpper(g.Category), FormatAmount(g.Total()))
	}
	fmt.Fprintf(&b, "\nGrand total: %s", FormatAmount(GrandTotal(groups)))
	return b.String()
}

// ListText renders every record grouped by category, numbered in listing order.
func ListText(period rembes.Period, groups []CategoryRecords) string {
	if empty(groups) {
		return NoData
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Records for period %s (%s)\n", period, period.Label())
	for _, g := range groups {
		if len(g.Records) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s\n", strings.ToUpper(g.Category))
		b.WriteString(RecordLines(g.Records))
		fmt.Fprintf(&b, "Subtotal: %s\n", FormatAmount(g.Total()))
	}
	fmt.Fprintf(&b, "\nGrand total: %s", FormatAmount(GrandTotal(groups)))
	return b.String()
}

// RecordLines renders "N. Note - Rp X" lines, one per record, 1-based.
func RecordLines(records []rembes.Record) string {
	var b strings.Builder
	for i, r := range records {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, r.DisplayNote(), FormatAmount(r.Amount))
	}
	return b.String()
}

// csvHeader is the first row of every export.
var csvHeader = []string{"category", "period", "created_at", "note", "amount", "key"}

// WriteCSV writes one row per record. Amounts are plain integers so
// spreadsheets can sum them.
func WriteCSV(w io.Writer, period rembes.Period, groups []CategoryRecords) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, g := range groups {
		for _, r := range g.Records {
			row := []string{
				g.Category,
				period.String(),
				r.CreatedAt.Format("2006-01-02 15:04:05"),
				r.DisplayNote(),
				strconv.FormatInt(r.Amount, 10),
				r.Key,
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("writing csv row: %w", err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// ExportFilename names the CSV document for a period.
func ExportFilename(period rembes.Period) string {
	return "rembes-" + period.String() + ".csv"
}

// ReminderText is posted to the group a few days before the period closes.
func ReminderText(period rembes.Period) string {
	return fmt.Sprintf(
		"Reminder: period %s (%s) closes on the %dth. Please submit any remaining receipts before then.",
		period, period.Label(), rembes.CutoffDay,
	)
}
