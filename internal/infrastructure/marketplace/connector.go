package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ResellBot/internal/config"
	"ResellBot/internal/domain"
	"ResellBot/internal/ports"
)

const (
	defaultBaseURL   = "https://www.kleinanzeigen.de"
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Selectors locate listing data in marketplace pages.
type Selectors struct {
	Item        string
	Title       string
	Price       string
	Location    string
	Snippet     string
	Tag         string
	Description string
	Seller      string
	StatusBadge string
	LoggedIn    string
	LoginForm   string
	MessageForm string
	MessageBody string
}

// DefaultSelectors match the current marketplace markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Item:        "article.aditem",
		Title:       "h2 a.ellipsis, .text-module-begin a",
		Price:       ".aditem-main--middle--price-shipping--price",
		Location:    ".aditem-main--top--left",
		Snippet:     ".aditem-main--middle--description",
		Tag:         ".simpletag",
		Description: "#viewad-description-text",
		Seller:      "#viewad-contact .text-body-regular-strong",
		StatusBadge: "span.pvap-reserved-title:not(.is-hidden)",
		LoggedIn:    "a#user-logout, a#site-mainnav-my-link, span.user-profile-badge",
		LoginForm:   "form#login-form",
		MessageForm: "form#viewad-contact-form",
		MessageBody: "#message-textarea-input",
	}
}

// Connector talks plain HTTP to the marketplace and implements both the
// listing source and the messenger used by dispatch.
type Connector struct {
	client    *http.Client
	baseURL   string
	email     string
	password  string
	userAgent string
	sel       Selectors
	logger    *slog.Logger
}

var (
	_ ports.ListingSource = (*Connector)(nil)
	_ ports.Messenger     = (*Connector)(nil)
)

// NewConnector wires an HTTP client with a cookie jar. A nil client gets a default one.
func NewConnector(cfg config.MarketplaceConfig, client *http.Client, logger *slog.Logger) (*Connector, error) {
	if client == nil {
		timeout := 30 * time.Second
		if cfg.TimeoutSeconds > 0 {
			timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		client.Jar = jar
	}

	base := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &Connector{
		client:    client,
		baseURL:   base,
		email:     cfg.Email,
		password:  cfg.Password,
		userAgent: ua,
		sel:       mergeSelectors(DefaultSelectors(), cfg.Selectors),
		logger:    logger,
	}, nil
}

func mergeSelectors(base Selectors, override map[string]string) Selectors {
	for key, value := range override {
		if value == "" {
			continue
		}
		switch strings.ToLower(key) {
		case "item":
			base.Item = value
		case "title":
			base.Title = value
		case "price":
			base.Price = value
		case "location":
			base.Location = value
		case "snippet":
			base.Snippet = value
		case "tag":
			base.Tag = value
		case "description":
			base.Description = value
		case "seller":
			base.Seller = value
		case "statusbadge":
			base.StatusBadge = value
		case "loggedin":
			base.LoggedIn = value
		case "loginform":
			base.LoginForm = value
		case "messageform":
			base.MessageForm = value
		case "messagebody":
			base.MessageBody = value
		}
	}
	return base
}

// FetchDescription loads the detail page. A page without a description yields ErrParse.
func (c *Connector) FetchDescription(ctx context.Context, listing domain.CandidateListing) (domain.ListingDetails, error) {
	if !strings.HasPrefix(listing.Link, "http") {
		return domain.ListingDetails{}, fmt.Errorf("%w: invalid link %q", domain.ErrParse, listing.Link)
	}
	doc, _, err := c.fetchDocument(ctx, listing.Link)
	if err != nil {
		return domain.ListingDetails{}, err
	}

	details := domain.ListingDetails{
		Description: strings.TrimSpace(doc.Find(c.sel.Description).First().Text()),
		SellerName:  cleanText(doc.Find(c.sel.Seller).First().Text()),
	}
	if details.SellerName == "" {
		details.SellerName = "Privat"
	}
	if details.Description == "" {
		return details, fmt.Errorf("%w: no description on %s", domain.ErrParse, listing.Link)
	}
	return details, nil
}

func (c *Connector) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	c.decorate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: request %s: %w", domain.ErrConnector, pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, statusErr(resp)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: parse document: %w", domain.ErrParse, err)
	}
	return doc, resp.StatusCode, nil
}

func (c *Connector) decorate(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")
}

func (c *Connector) absolute(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func (c *Connector) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

var errRemoved = errors.New("listing removed")

func statusErr(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: marketplace returned %s", domain.ErrAuthentication, resp.Status)
	case http.StatusNotFound, http.StatusGone:
		return fmt.Errorf("%w: marketplace returned %s", errRemoved, resp.Status)
	default:
		return fmt.Errorf("%w: marketplace returned %s", domain.ErrConnector, resp.Status)
	}
}
