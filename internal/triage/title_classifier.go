package triage

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"ResellBot/internal/domain"
	"ResellBot/internal/ports"
	"ResellBot/internal/textutil"
)

const defaultBatchSize = 40

var bracketList = regexp.MustCompile(`\[[^\[\]]*\]`)

// TitleClassifier asks the AI service which titles in a batch are genuine matches.
// Any service or parse failure falls back to the prefilter's keyword rules for that batch.
type TitleClassifier struct {
	classifier ports.Classifier
	prefilter  *Prefilter
	profile    Profile
	batchSize  int
	logger     *slog.Logger
}

// NewTitleClassifier wires the classification port; a nil classifier always uses the fallback.
func NewTitleClassifier(classifier ports.Classifier, prefilter *Prefilter, profile Profile, batchSize int, logger *slog.Logger) *TitleClassifier {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &TitleClassifier{
		classifier: classifier,
		prefilter:  prefilter,
		profile:    profile,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Apply classifies every passed_prefilter item, one request per batch, and returns
// how many batches had to fall back to rules.
func (c *TitleClassifier) Apply(ctx context.Context, items []*domain.Triage) int {
	eligible := make([]*domain.Triage, 0, len(items))
	for _, t := range items {
		if t.Status == domain.StatusPassedPrefilter {
			eligible = append(eligible, t)
		}
	}

	fallbacks := 0
	for start := 0; start < len(eligible); start += c.batchSize {
		if ctx.Err() != nil {
			return fallbacks
		}
		end := min(start+c.batchSize, len(eligible))
		if err := c.classifyBatch(ctx, eligible[start:end]); err != nil {
			if ctx.Err() != nil {
				return fallbacks
			}
			fallbacks++
			c.warn("title classifier failed, using rule fallback", "batch_start", start, "batch_size", end-start, "error", err)
			for _, t := range eligible[start:end] {
				c.prefilter.ApplyFallback(t, "classifier unavailable")
			}
		}
	}
	return fallbacks
}

func (c *TitleClassifier) classifyBatch(ctx context.Context, batch []*domain.Triage) error {
	if c.classifier == nil {
		return fmt.Errorf("%w: classifier not configured", domain.ErrClassification)
	}

	reply, err := c.classifier.ClassifyBatch(ctx, BuildTitlePrompt(c.profile, batch))
	if err != nil {
		return err
	}
	indices, err := ParseIndexList(reply)
	if err != nil {
		return err
	}

	selected := make(map[int]bool, len(indices))
	for _, idx := range indices {
		selected[idx] = true
	}
	for i, t := range batch {
		if selected[i+1] {
			t.Advance(domain.StatusPassedAITitle, "title classifier selected")
		} else {
			t.Advance(domain.StatusRejectedAITitle, "title classifier did not select")
		}
	}
	return nil
}

// ParseIndexList extracts the authoritative 1-based index list from a free-form reply.
// Every bracketed list is considered and the last non-empty valid one wins. A reply whose
// only valid lists are empty selects nothing.
func ParseIndexList(reply string) ([]int, error) {
	matches := bracketList.FindAllString(reply, -1)
	sawEmpty := false
	for i := len(matches) - 1; i >= 0; i-- {
		indices, ok := parseBracketed(matches[i])
		if !ok {
			continue
		}
		if len(indices) > 0 {
			return indices, nil
		}
		sawEmpty = true
	}
	if sawEmpty {
		return []int{}, nil
	}
	return nil, fmt.Errorf("%w: no index list in reply %q", domain.ErrParse, snippet(reply))
}

func parseBracketed(raw string) ([]int, bool) {
	inner := strings.TrimSpace(raw[1 : len(raw)-1])
	if inner == "" {
		return []int{}, true
	}
	parts := strings.Split(inner, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if cut := textutil.Truncate(s, 120); cut != s {
		return cut + "..."
	}
	return s
}

func (c *TitleClassifier) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
