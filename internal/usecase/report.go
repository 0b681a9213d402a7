package usecase

import (
	"fmt"
	"strings"

	"ResellBot/internal/domain"
)

// Match is a new listing that passed every stage and is dispatch-eligible.
type Match struct {
	ID    string
	Title string
	Price float64
	Link  string
}

// RunReport is the user-visible outcome of one session.
type RunReport struct {
	SessionID     string
	Mode          Mode
	Fetched       int
	Skipped       int
	StatusCounts  map[domain.FilterStatus]int
	Fallbacks     int
	Persisted     int
	PersistFailed int
	Matches       []Match
	Dispatch      DispatchReport
}

func newRunReport(sessionID string, mode Mode) RunReport {
	return RunReport{
		SessionID:    sessionID,
		Mode:         mode,
		StatusCounts: make(map[domain.FilterStatus]int),
	}
}

// Passed counts listings that ended in the passed state.
func (r RunReport) Passed() int {
	return r.StatusCounts[domain.StatusPassed]
}

// Rejected counts listings that ended in any rejected state.
func (r RunReport) Rejected() int {
	total := 0
	for status, n := range r.StatusCounts {
		if status.Rejected() {
			total += n
		}
	}
	return total
}

// LogAttrs flattens the report for structured logging.
func (r RunReport) LogAttrs() []any {
	attrs := []any{
		"fetched", r.Fetched,
		"skipped", r.Skipped,
		"passed", r.Passed(),
		"rejected", r.Rejected(),
		"fallback_batches", r.Fallbacks,
		"persisted", r.Persisted,
		"persist_failed", r.PersistFailed,
		"dispatch_eligible", r.Dispatch.Eligible,
		"sent", r.Dispatch.Sent,
		"send_failed", r.Dispatch.Failed,
		"send_skipped", r.Dispatch.Skipped,
		"removed", r.Dispatch.Removed,
	}
	for _, status := range domain.AllFilterStatuses() {
		if n := r.StatusCounts[status]; n > 0 {
			attrs = append(attrs, "status_"+string(status), n)
		}
	}
	return attrs
}

// FormatDigest renders the Telegram summary of a run.
func FormatDigest(r RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ResellBot: %d neue Treffer (%d geladen, %d bekannt, %d abgelehnt)\n",
		len(r.Matches), r.Fetched, r.Skipped, r.Rejected())
	for _, m := range r.Matches {
		fmt.Fprintf(&b, "\n%s\n%.2f €\n%s\n", m.Title, m.Price, m.Link)
	}
	return strings.TrimRight(b.String(), "\n")
}
