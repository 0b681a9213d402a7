package triage

import (
	"fmt"
	"strings"

	"ResellBot/internal/domain"
	"ResellBot/internal/textutil"
)

// Prefilter is the deterministic first pass over candidate titles.
type Prefilter struct {
	phrase   string
	tokens   []string
	synonyms []string
	profile  Profile
}

// NewPrefilter binds a search phrase to its rule profile.
func NewPrefilter(phrase string, profile Profile) *Prefilter {
	normalized := textutil.Normalize(phrase)
	synonyms := append([]string{}, profile.Synonyms...)
	if compact := strings.ReplaceAll(normalized, " ", ""); compact != normalized && compact != "" {
		synonyms = append(synonyms, compact)
	}
	return &Prefilter{
		phrase:   normalized,
		tokens:   strings.Fields(normalized),
		synonyms: synonyms,
		profile:  profile,
	}
}

// Apply runs the match test and the exclusion tests on a pending candidate.
// Order: name match, inquiry marker, exclusion keywords. The first failing check wins.
func (p *Prefilter) Apply(t *domain.Triage) {
	if t.Status != domain.StatusPending {
		return
	}
	title := textutil.Normalize(t.Candidate.Title)

	if !p.matches(title) {
		t.Advance(domain.StatusRejectedNameMismatch, fmt.Sprintf("title does not match %q", p.phrase))
		return
	}
	if p.inquiry(t, title) {
		t.Advance(domain.StatusRejectedKeyword, "inquiry detected")
		return
	}
	if kw, ok := p.excluded(title, p.profile.ExcludeKeywords); ok {
		t.Advance(domain.StatusRejectedKeyword, "keyword: "+kw)
		return
	}
	t.Advance(domain.StatusPassedPrefilter, "prefilter passed")
}

// ApplyFallback is the authoritative title decision used when the title classifier is unavailable.
// It reuses the exclusion logic with the stricter fallback keyword list appended.
func (p *Prefilter) ApplyFallback(t *domain.Triage, cause string) {
	if t.Status != domain.StatusPassedPrefilter {
		return
	}
	title := textutil.Normalize(t.Candidate.Title)
	keywords := append(append([]string{}, p.profile.ExcludeKeywords...), p.profile.FallbackKeywords...)
	if kw, ok := p.excluded(title, keywords); ok && !p.keepDespite(title) {
		t.Advance(domain.StatusRejectedKeyword, "fallback keyword: "+kw)
		return
	}
	t.Advance(domain.StatusPassedAITitle, "rule fallback: "+cause)
}

func (p *Prefilter) matches(title string) bool {
	if len(p.tokens) > 0 {
		all := true
		for _, tok := range p.tokens {
			if !strings.Contains(title, tok) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	_, ok := textutil.ContainsAny(title, p.synonyms)
	return ok
}

func (p *Prefilter) inquiry(t *domain.Triage, title string) bool {
	if t.Candidate.IsInquiry {
		return true
	}
	if _, ok := textutil.ContainsWordPrefix(title, p.profile.InquiryMarkers); ok {
		return true
	}
	tags := textutil.Normalize(strings.Join(t.Candidate.Tags, " "))
	_, ok := textutil.ContainsWordPrefix(tags, p.profile.InquiryMarkers)
	return ok
}

// keepDespite reports whether a fallback keyword hit is overridden: the title names the
// product itself and nothing from the accessory list.
func (p *Prefilter) keepDespite(title string) bool {
	if _, ok := textutil.ContainsAny(title, p.profile.FallbackKeep); !ok {
		return false
	}
	_, accessory := textutil.ContainsAny(title, p.profile.FallbackRejectAlways)
	return !accessory
}

// excluded returns the first keyword found in title, skipping keywords that are part of
// the search phrase itself.
func (p *Prefilter) excluded(title string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		n := textutil.Normalize(kw)
		if n == "" || strings.Contains(p.phrase, n) {
			continue
		}
		if strings.Contains(title, n) {
			return kw, true
		}
	}
	return "", false
}
