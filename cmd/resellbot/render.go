package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"ResellBot/internal/domain"
	"ResellBot/internal/usecase"
)

func colorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func paint(colorize bool, attr color.Attribute, s string) string {
	c := color.New(attr)
	if colorize {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

func printReport(out io.Writer, r usecase.RunReport, colorize bool) {
	fmt.Fprintf(out, "%s %s (%s)\n", paint(colorize, color.Bold, "Session"), r.SessionID, r.Mode)

	rows := [][]string{
		{"fetched", strconv.Itoa(r.Fetched)},
		{"already known", strconv.Itoa(r.Skipped)},
		{"passed", strconv.Itoa(r.Passed())},
		{"rejected", strconv.Itoa(r.Rejected())},
		{"rule fallback batches", strconv.Itoa(r.Fallbacks)},
		{"persisted", strconv.Itoa(r.Persisted)},
		{"persist failed", strconv.Itoa(r.PersistFailed)},
	}
	if r.Mode != usecase.ModeScrape {
		rows = append(rows,
			[]string{"dispatch eligible", strconv.Itoa(r.Dispatch.Eligible)},
			[]string{"sent", strconv.Itoa(r.Dispatch.Sent)},
			[]string{"send failed", strconv.Itoa(r.Dispatch.Failed)},
			[]string{"send skipped", strconv.Itoa(r.Dispatch.Skipped)},
			[]string{"removed", strconv.Itoa(r.Dispatch.Removed)},
		)
	}
	fmt.Fprintln(out, renderTable([]string{"Metric", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))

	if len(r.Matches) == 0 {
		return
	}
	fmt.Fprintln(out, paint(colorize, color.FgGreen, fmt.Sprintf("%d new matches", len(r.Matches))))
	for _, m := range r.Matches {
		fmt.Fprintf(out, "  %s  %.2f €  %s\n", m.Title, m.Price, m.Link)
	}
}

func printStats(out io.Writer, s domain.Stats, colorize bool) {
	fmt.Fprintf(out, "%s %d listings\n", paint(colorize, color.Bold, "Store:"), s.Listings)

	rows := make([][]string, 0, len(s.ByFilterStatus))
	for _, status := range domain.AllFilterStatuses() {
		n, ok := s.ByFilterStatus[status]
		if !ok {
			continue
		}
		label := string(status)
		switch {
		case status == domain.StatusPassed:
			label = paint(colorize, color.FgGreen, label)
		case status.Rejected():
			label = paint(colorize, color.FgYellow, label)
		}
		rows = append(rows, []string{label, strconv.Itoa(n)})
	}
	fmt.Fprintln(out, renderTable([]string{"Filter status", "Listings"}, rows, []columnAlignment{alignLeft, alignRight}))

	rows = rows[:0]
	for _, category := range []domain.Category{domain.CategoryNormal, domain.CategoryPickup, domain.CategoryDefect} {
		rows = append(rows, []string{string(category), strconv.Itoa(s.ByCategory[category])})
	}
	fmt.Fprintln(out, renderTable([]string{"Category", "Listings"}, rows, []columnAlignment{alignLeft, alignRight}))

	rows = [][]string{
		{"sent attempts", strconv.Itoa(s.BySendStatus[domain.SendStatusSent])},
		{"failed attempts", paint(colorize, color.FgRed, strconv.Itoa(s.BySendStatus[domain.SendStatusFailed]))},
		{"listings messaged", strconv.Itoa(s.MessagesSent)},
		{"listings removed", strconv.Itoa(s.Deleted)},
	}
	fmt.Fprintln(out, renderTable([]string{"Outreach", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}
