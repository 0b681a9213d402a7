package triage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"ResellBot/internal/domain"
	"ResellBot/internal/ports"
	"ResellBot/internal/textutil"
)

const defaultDescriptionPrefix = 800

// DescriptionClassifier confirms title matches against the long-form description.
// Service failures pass the listing; losing a real lead costs more than one extra message.
type DescriptionClassifier struct {
	classifier ports.Classifier
	profile    Profile
	prefix     int
	logger     *slog.Logger
}

// NewDescriptionClassifier wires the classification port and the description prefix bound.
func NewDescriptionClassifier(classifier ports.Classifier, profile Profile, prefix int, logger *slog.Logger) *DescriptionClassifier {
	if prefix <= 0 {
		prefix = defaultDescriptionPrefix
	}
	return &DescriptionClassifier{classifier: classifier, profile: profile, prefix: prefix, logger: logger}
}

// Apply classifies one passed_ai_title listing. Context cancellation leaves it untouched.
func (c *DescriptionClassifier) Apply(ctx context.Context, t *domain.Triage) {
	if t.Status != domain.StatusPassedAITitle {
		return
	}

	description := t.Description
	if strings.TrimSpace(description) == "" {
		description = t.Candidate.Snippet
	}
	prompt := BuildDescriptionPrompt(c.profile, t, textutil.Truncate(description, c.prefix))

	reply, err := c.ask(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if c.logger != nil {
			c.logger.Warn("description classifier failed, passing listing",
				"listing_id", t.Candidate.ID, "error", err)
		}
		t.Advance(domain.StatusPassed, fmt.Sprintf("classifier error fallback: %v", err))
		return
	}

	if Affirmative(reply, c.profile.AffirmativeTokens) {
		t.Advance(domain.StatusPassed, "confirmed by description classifier")
		return
	}
	t.Advance(domain.StatusRejectedAIDesc, "description classifier reply: "+snippet(reply))
}

func (c *DescriptionClassifier) ask(ctx context.Context, prompt string) (string, error) {
	if c.classifier == nil {
		return "", fmt.Errorf("%w: classifier not configured", domain.ErrClassification)
	}
	return c.classifier.ClassifyYesNo(ctx, prompt)
}

// Affirmative reports whether any affirmative token appears as a word in the reply.
func Affirmative(reply string, tokens []string) bool {
	words := strings.FieldsFunc(strings.ToUpper(reply), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		for _, tok := range tokens {
			if w == strings.ToUpper(strings.TrimSpace(tok)) {
				return true
			}
		}
	}
	return false
}
