// Package textutil holds the pure text and price parsing helpers used by triage.
package textutil

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds text for keyword matching: NFKC, German lower-casing and collapsed whitespace.
func Normalize(text string) string {
	folded := cases.Lower(language.German).String(norm.NFKC.String(text))
	return strings.Join(strings.Fields(folded), " ")
}

// ContainsAny returns the first needle found in the normalized haystack.
func ContainsAny(haystack string, needles []string) (string, bool) {
	for _, needle := range needles {
		n := Normalize(needle)
		if n == "" {
			continue
		}
		if strings.Contains(haystack, n) {
			return needle, true
		}
	}
	return "", false
}

// ContainsWordPrefix is ContainsAny anchored at word starts: "kaufe" matches
// "kaufe" and "kaufen" but not "verkaufe".
func ContainsWordPrefix(haystack string, needles []string) (string, bool) {
	padded := " " + strings.Join(words(haystack), " ")
	for _, needle := range needles {
		n := strings.Join(words(Normalize(needle)), " ")
		if n == "" {
			continue
		}
		if strings.Contains(padded, " "+n) {
			return needle, true
		}
	}
	return "", false
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

var priceNoise = strings.NewReplacer(
	"€", "",
	"eur", "",
	"vb", "",
	"\u00a0", "",
	" ", "",
)

// ParsePrice converts a marketplace price string ("1.200,50 €", "150 € VB") to a number.
// Strings that do not contain a parsable amount yield 0.
func ParsePrice(raw string) float64 {
	clean := priceNoise.Replace(strings.ToLower(strings.TrimSpace(raw)))
	clean = strings.TrimFunc(clean, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.' && r != ','
	})
	if clean == "" {
		return 0
	}

	if strings.Contains(clean, ",") {
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.Replace(clean, ",", ".", 1)
	} else if strings.Count(clean, ".") > 0 {
		clean = normalizeDots(clean)
	}

	value, err := strconv.ParseFloat(clean, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

// normalizeDots resolves a comma-free amount: groups of exactly three digits after each dot
// are thousands ("1.200"), anything else makes the last dot the decimal point ("320.01").
func normalizeDots(s string) string {
	parts := strings.Split(s, ".")
	thousands := true
	for _, p := range parts[1:] {
		if len(p) != 3 {
			thousands = false
			break
		}
	}
	if thousands {
		return strings.Join(parts, "")
	}
	last := len(parts) - 1
	return strings.Join(parts[:last], "") + "." + parts[last]
}
