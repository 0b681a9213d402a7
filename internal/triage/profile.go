// Package triage implements the listing filter stages and the content categorizer.
package triage

import (
	"strings"

	"ResellBot/internal/textutil"
)

// Profile carries the product-specific rules for one search.
type Profile struct {
	Name             string
	Match            []string
	Synonyms         []string
	ExcludeKeywords  []string
	FallbackKeywords []string
	// FallbackKeep overrides a fallback keyword hit when the title also contains one of these
	// terms and none of FallbackRejectAlways.
	FallbackKeep         []string
	FallbackRejectAlways []string
	InquiryMarkers       []string
	Subject              string
	TitleRules           []string
	DescriptionPrompt    string
	AffirmativeTokens    []string
	DefectKeywords       []string
	PickupKeywords       []string
}

var (
	defaultInquiryMarkers    = []string{"suche", "gesuch", "kaufe", "ankauf"}
	defaultAffirmativeTokens = []string{"JA", "YES"}
	defaultDefectKeywords    = []string{
		"defekt", "kaputt", "bastler", "funktioniert nicht", "ohne funktion", "beschädigt", "für teile",
	}
	defaultPickupKeywords = []string{
		"nur abholung", "nur selbstabholung", "kein versand", "keinen versand", "versand nicht möglich",
	}
)

// PlayStation5Profile is the built-in profile for console searches.
func PlayStation5Profile() Profile {
	return Profile{
		Name:     "playstation-5",
		Match:    []string{"ps5", "playstation 5", "playstation5"},
		Synonyms: []string{"ps5", "playstation 5", "playstation5"},
		ExcludeKeywords: []string{
			"portal", "remote player", "ständer", "halterung", "scuf", "edge controller",
			"ps4", "playstation 4", "laufwerk", "miete", "verleih",
		},
		FallbackKeywords: []string{
			"controller", "dualsense", "headset", "spiel", "game", "defekt", "kaputt", "bastler",
		},
		FallbackKeep:         []string{"ps5", "playstation 5", "playstation5"},
		FallbackRejectAlways: []string{"controller", "dualsense"},
		InquiryMarkers:       defaultInquiryMarkers,
		Subject:              "eine funktionierende PlayStation 5 Konsole (Disc oder Digital)",
		TitleRules: []string{
			"alles was PS4 oder PS3 ist",
			"PlayStation Portal oder Remote Player",
			"nur Controller, Headset, Spiele, OVP oder Zubehör",
			"defekte Konsolen",
			"Miete oder Verleih",
		},
		DescriptionPrompt: "Ist das ein Verkauf einer PS5-KONSOLE?",
		AffirmativeTokens: defaultAffirmativeTokens,
		DefectKeywords:    defaultDefectKeywords,
		PickupKeywords:    defaultPickupKeywords,
	}
}

// GenericProfile derives a profile from the configured search alone.
func GenericProfile(phrase string, synonyms, exclude []string) Profile {
	return Profile{
		Name:              "generic",
		Match:             []string{phrase},
		Synonyms:          synonyms,
		ExcludeKeywords:   exclude,
		FallbackKeywords:  []string{"defekt", "kaputt", "bastler"},
		InquiryMarkers:    defaultInquiryMarkers,
		Subject:           phrase,
		TitleRules:        []string{"Zubehör, Ersatzteile oder leere Verpackungen", "defekte Artikel", "Miete oder Verleih"},
		DescriptionPrompt: "Wird hier wirklich " + phrase + " verkauft?",
		AffirmativeTokens: defaultAffirmativeTokens,
		DefectKeywords:    defaultDefectKeywords,
		PickupKeywords:    defaultPickupKeywords,
	}
}

// ResolveProfile picks the first profile whose match terms occur in the search phrase.
// The configured synonyms and exclusions are appended to whichever profile wins.
func ResolveProfile(phrase string, synonyms, exclude []string, profiles []Profile) Profile {
	normalized := textutil.Normalize(phrase)
	chosen := GenericProfile(phrase, nil, nil)
	for _, p := range profiles {
		if _, ok := textutil.ContainsAny(normalized, p.Match); ok {
			chosen = p
			break
		}
	}

	chosen.Synonyms = appendUnique(chosen.Synonyms, synonyms...)
	chosen.ExcludeKeywords = appendUnique(chosen.ExcludeKeywords, exclude...)
	if len(chosen.InquiryMarkers) == 0 {
		chosen.InquiryMarkers = defaultInquiryMarkers
	}
	if len(chosen.AffirmativeTokens) == 0 {
		chosen.AffirmativeTokens = defaultAffirmativeTokens
	}
	if len(chosen.DefectKeywords) == 0 {
		chosen.DefectKeywords = defaultDefectKeywords
	}
	if len(chosen.PickupKeywords) == 0 {
		chosen.PickupKeywords = defaultPickupKeywords
	}
	if strings.TrimSpace(chosen.Subject) == "" {
		chosen.Subject = phrase
	}
	return chosen
}

func appendUnique(base []string, extra ...string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, v := range append(append([]string{}, base...), extra...) {
		key := textutil.Normalize(v)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
