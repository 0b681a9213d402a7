package triage

import (
	"fmt"
	"strings"

	"ResellBot/internal/domain"
)

// BuildTitlePrompt enumerates a batch as "n. title | price" and asks for the index list only.
func BuildTitlePrompt(profile Profile, batch []*domain.Triage) string {
	var b strings.Builder
	b.WriteString("Du bist ein strenger Einkaufsprüfer.\n")
	fmt.Fprintf(&b, "Aufgabe: Finde die Anzeigen, die %s verkaufen.\n\n", profile.Subject)
	if len(profile.TitleRules) > 0 {
		b.WriteString("SORTIERE AUS (NEIN):\n")
		for _, rule := range profile.TitleRules {
			fmt.Fprintf(&b, "- %s\n", rule)
		}
		b.WriteString("\n")
	}
	b.WriteString("ANZEIGEN:\n")
	for i, t := range batch {
		fmt.Fprintf(&b, "%d. %s | %.2f\n", i+1, strings.TrimSpace(t.Candidate.Title), t.Price)
	}
	b.WriteString("\nAntworte NUR mit einem JSON-Array der passenden Nummern, z.B. [1, 3, 5].")
	return b.String()
}

// BuildDescriptionPrompt asks a yes/no question over a bounded description prefix.
func BuildDescriptionPrompt(profile Profile, t *domain.Triage, description string) string {
	var b strings.Builder
	b.WriteString(profile.DescriptionPrompt)
	b.WriteString("\n")
	fmt.Fprintf(&b, "TITEL: %s\n", strings.TrimSpace(t.Candidate.Title))
	fmt.Fprintf(&b, "PREIS: %s\n", strings.TrimSpace(t.Candidate.RawPrice))
	fmt.Fprintf(&b, "BESCHREIBUNG: %s\n\n", description)
	fmt.Fprintf(&b, "Antworte NUR mit: %s oder NEIN", firstOr(profile.AffirmativeTokens, "JA"))
	return b.String()
}

func firstOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return values[0]
}
