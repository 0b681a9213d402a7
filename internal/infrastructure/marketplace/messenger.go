package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ResellBot/internal/domain"
)

const loginPath = "/m-einloggen.html"

// EnsureAuthenticated reuses the current session when the logged-in marker is present,
// otherwise it submits the login form with the configured credentials.
func (c *Connector) EnsureAuthenticated(ctx context.Context) error {
	loggedIn, err := c.loggedIn(ctx)
	if err != nil {
		return err
	}
	if loggedIn {
		return nil
	}
	if c.email == "" || c.password == "" {
		return fmt.Errorf("%w: no marketplace credentials configured", domain.ErrAuthentication)
	}

	doc, _, err := c.fetchDocument(ctx, c.baseURL+loginPath)
	if err != nil {
		return fmt.Errorf("load login page: %w", err)
	}
	form := doc.Find(c.sel.LoginForm).First()
	if form.Length() == 0 {
		return fmt.Errorf("%w: login form not found", domain.ErrAuthentication)
	}
	values := hiddenInputs(form)
	values.Set(inputName(form, "input[type=email], #login-email", "loginMail"), c.email)
	values.Set(inputName(form, "input[type=password], #login-password", "password"), c.password)

	if err := c.postForm(ctx, c.formAction(form, c.baseURL+loginPath), values); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}

	loggedIn, err = c.loggedIn(ctx)
	if err != nil {
		return err
	}
	if !loggedIn {
		return fmt.Errorf("%w: logged-in marker missing after login", domain.ErrAuthentication)
	}
	c.debug("marketplace login succeeded")
	return nil
}

func (c *Connector) loggedIn(ctx context.Context) (bool, error) {
	doc, _, err := c.fetchDocument(ctx, c.baseURL+"/")
	if err != nil {
		if errors.Is(err, domain.ErrAuthentication) {
			return false, nil
		}
		return false, fmt.Errorf("load start page: %w", err)
	}
	return doc.Find(c.sel.LoggedIn).Length() > 0, nil
}

// CheckRemoved reports whether the seller deleted the listing. Reserved listings are live.
func (c *Connector) CheckRemoved(ctx context.Context, listing domain.TriageRecord) (bool, error) {
	doc, _, err := c.fetchDocument(ctx, listing.Link)
	if err != nil {
		if errors.Is(err, errRemoved) {
			return true, nil
		}
		return false, err
	}
	return c.removedBadge(doc), nil
}

func (c *Connector) removedBadge(doc *goquery.Document) bool {
	removed := false
	doc.Find(c.sel.StatusBadge).Each(func(_ int, badge *goquery.Selection) {
		text := strings.ToLower(badge.Text())
		if strings.Contains(text, "gelöscht") || strings.Contains(text, "deleted") {
			removed = true
		}
	})
	return removed
}

// SubmitMessage posts text through the listing's contact form.
func (c *Connector) SubmitMessage(ctx context.Context, listing domain.TriageRecord, text string) error {
	doc, _, err := c.fetchDocument(ctx, listing.Link)
	if err != nil {
		return err
	}
	form := doc.Find(c.sel.MessageForm).First()
	if form.Length() == 0 {
		return fmt.Errorf("%w: message form not found on %s", domain.ErrConnector, listing.Link)
	}

	values := hiddenInputs(form)
	values.Set(inputName(form, c.sel.MessageBody, "message"), text)
	if err := c.postForm(ctx, c.formAction(form, listing.Link), values); err != nil {
		return fmt.Errorf("submit message %s: %w", listing.ID, err)
	}
	return nil
}

func (c *Connector) postForm(ctx context.Context, action string, values url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action, strings.NewReader(values.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.decorate(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: post %s: %w", domain.ErrConnector, action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return statusErr(resp)
	}
	return nil
}

func (c *Connector) formAction(form *goquery.Selection, fallback string) string {
	action, ok := form.Attr("action")
	if !ok || strings.TrimSpace(action) == "" {
		return fallback
	}
	return c.absolute(action)
}

func hiddenInputs(form *goquery.Selection) url.Values {
	values := url.Values{}
	form.Find("input[type=hidden]").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		value, _ := input.Attr("value")
		values.Set(name, value)
	})
	return values
}

func inputName(form *goquery.Selection, selector, fallback string) string {
	if name, ok := form.Find(selector).First().Attr("name"); ok && name != "" {
		return name
	}
	return fallback
}
