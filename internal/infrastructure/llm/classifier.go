package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ResellBot/internal/config"
	"ResellBot/internal/domain"
	"ResellBot/internal/ports"
)

const (
	defaultHTTPTimeout    = 20 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = 10 * time.Second

	batchMaxTokens   = 500
	yesNoMaxTokens   = 10
	yesNoTemperature = 0.1
)

// ChatClassifier implements ports.Classifier backed by OpenAI-compatible chat APIs.
type ChatClassifier struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client

	retryAttempts int
	retryBase     time.Duration
	retryMax      time.Duration
	sleeper       func(time.Duration)
}

var _ ports.Classifier = (*ChatClassifier)(nil)

// Option customizes the classifier client.
type Option func(*ChatClassifier)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *ChatClassifier) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(base, maxDelay time.Duration) Option {
	return func(c *ChatClassifier) {
		c.retryBase = base
		c.retryMax = maxDelay
	}
}

// WithSleeper replaces time-based waiting between retries (tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *ChatClassifier) {
		c.sleeper = sleeper
	}
}

// NewChatClassifier builds a client from configuration.
func NewChatClassifier(cfg config.ClassifierConfig, opts ...Option) *ChatClassifier {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	attempts := defaultRetryAttempts
	if cfg.MaxRetries > 0 {
		attempts = cfg.MaxRetries
	}
	c := &ChatClassifier{
		endpoint:      strings.TrimSpace(cfg.Endpoint),
		model:         strings.TrimSpace(cfg.Model),
		apiKey:        strings.TrimSpace(cfg.APIKey),
		httpClient:    &http.Client{Timeout: timeout},
		retryAttempts: attempts,
		retryBase:     defaultRetryBaseDelay,
		retryMax:      defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClassifyBatch asks for the index list of genuine matches.
func (c *ChatClassifier) ClassifyBatch(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt, batchMaxTokens, 0)
}

// ClassifyYesNo asks a short yes/no question.
func (c *ChatClassifier) ClassifyYesNo(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt, yesNoMaxTokens, yesNoTemperature)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
		Text    string      `json:"text"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type statusError struct {
	code       int
	body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.code, e.body)
}

func (c *ChatClassifier) complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	if c == nil {
		return "", fmt.Errorf("%w: client is nil", domain.ErrClassification)
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("%w: client misconfigured", domain.ErrClassification)
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %w", domain.ErrClassification, err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		reply, err := c.send(ctx, body)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		delay, retry := c.retryDelay(ctx, err, attempt)
		if !retry {
			break
		}
		if err := c.sleep(ctx, delay); err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrClassification, err)
		}
	}
	return "", fmt.Errorf("%w: %w", domain.ErrClassification, lastErr)
}

func (c *ChatClassifier) send(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet := payload
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return "", &statusError{
			code:       resp.StatusCode,
			body:       strings.TrimSpace(string(snippet)),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var decoded chatResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	for _, choice := range decoded.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
		if text := strings.TrimSpace(choice.Text); text != "" {
			return text, nil
		}
	}
	return "", errors.New("empty completion")
}

func (c *ChatClassifier) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if attempt >= c.retryAttempts || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.code == http.StatusTooManyRequests,
			se.code == http.StatusRequestTimeout,
			se.code >= http.StatusInternalServerError:
			if se.retryAfter > 0 {
				return min(se.retryAfter, c.retryMax), true
			}
			return c.backoff(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoff(attempt), true
	}
	return 0, false
}

// backoff doubles from the base delay: attempt 1 -> base, 2 -> 2*base, capped at max.
func (c *ChatClassifier) backoff(attempt int) time.Duration {
	delay := c.retryBase
	for i := 1; i < attempt && delay < c.retryMax; i++ {
		delay *= 2
	}
	return min(delay, c.retryMax)
}

func (c *ChatClassifier) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}
