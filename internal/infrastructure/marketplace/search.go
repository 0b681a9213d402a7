package marketplace

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ResellBot/internal/domain"
	"ResellBot/internal/textutil"
)

var adIDExpr = regexp.MustCompile(`/(\d+)-\d+-\d+/?$`)

// FetchCandidates loads one search result page and extracts its listings.
func (c *Connector) FetchCandidates(ctx context.Context, search domain.SearchConfig, page int) ([]domain.CandidateListing, error) {
	pageURL, err := buildSearchURL(c.baseURL, search, page)
	if err != nil {
		return nil, err
	}
	c.debug("fetch search page", "url", pageURL, "page", page)

	doc, _, err := c.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("search page %d: %w", page, err)
	}
	return c.extractCandidates(doc), nil
}

func (c *Connector) extractCandidates(doc *goquery.Document) []domain.CandidateListing {
	var out []domain.CandidateListing
	seen := make(map[string]struct{})

	doc.Find(c.sel.Item).Each(func(_ int, item *goquery.Selection) {
		listing, ok := c.parseItem(item)
		if !ok {
			return
		}
		if _, dup := seen[listing.ID]; dup {
			return
		}
		seen[listing.ID] = struct{}{}
		out = append(out, listing)
	})
	return out
}

func (c *Connector) parseItem(item *goquery.Selection) (domain.CandidateListing, bool) {
	link := item.Find(c.sel.Title).First()
	title := cleanText(link.Text())
	href, _ := link.Attr("href")
	if href == "" {
		href, _ = item.Attr("data-href")
	}
	if title == "" || href == "" {
		return domain.CandidateListing{}, false
	}

	id, _ := item.Attr("data-adid")
	if id == "" {
		if m := adIDExpr.FindStringSubmatch(href); m != nil {
			id = m[1]
		}
	}
	if id == "" {
		return domain.CandidateListing{}, false
	}

	var tags []string
	inquiry := false
	item.Find(c.sel.Tag).Each(func(_ int, tag *goquery.Selection) {
		text := cleanText(tag.Text())
		if text == "" {
			return
		}
		tags = append(tags, text)
		if textutil.Normalize(text) == "gesuch" {
			inquiry = true
		}
	})

	return domain.CandidateListing{
		ID:        id,
		Title:     title,
		RawPrice:  cleanText(item.Find(c.sel.Price).First().Text()),
		Link:      c.absolute(href),
		Location:  cleanText(item.Find(c.sel.Location).First().Text()),
		Tags:      tags,
		IsInquiry: inquiry,
		Snippet:   cleanText(item.Find(c.sel.Snippet).First().Text()),
	}, true
}

// buildSearchURL renders /s-[preis:MIN:MAX/][seite:N/]<slug>/k0.
func buildSearchURL(base string, search domain.SearchConfig, page int) (string, error) {
	base = strings.TrimSuffix(base, "/")
	if _, err := url.Parse(base); err != nil {
		return "", fmt.Errorf("invalid base url %s: %w", base, err)
	}
	slug := url.PathEscape(strings.Join(strings.Fields(textutil.Normalize(search.Phrase)), "-"))
	if slug == "" {
		return "", fmt.Errorf("empty search phrase")
	}

	var segments []string
	if search.MinPrice > 0 || search.MaxPrice > 0 {
		segments = append(segments, "preis:"+priceBound(search.MinPrice)+":"+priceBound(search.MaxPrice))
	}
	if page > 1 {
		segments = append(segments, "seite:"+strconv.Itoa(page))
	}
	segments = append(segments, slug, "k0")
	segments[0] = "s-" + segments[0]

	return base + "/" + strings.Join(segments, "/"), nil
}

func priceBound(v int) string {
	if v <= 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
