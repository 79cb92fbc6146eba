package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-resty/resty/v2"
)

// poster is the HTTP delivery shared by Webhook and Discord: JSON POST,
// retried with exponential backoff on transport errors, 429 and 5xx.
type poster struct {
	url      string
	client   *resty.Client
	maxTries uint
	interval time.Duration
	logger   *slog.Logger
}

// WebhookOption configures a Webhook or Discord notifier.
type WebhookOption func(*poster)

// WithRetries sets the maximum number of delivery attempts. Default: 4.
func WithRetries(n uint) WebhookOption {
	return func(p *poster) { p.maxTries = n }
}

// WithRetryInterval sets the first backoff interval. Default: 1s.
func WithRetryInterval(d time.Duration) WebhookOption {
	return func(p *poster) { p.interval = d }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(p *poster) { p.logger = l }
}

func newPoster(url string, opts []WebhookOption) poster {
	p := poster{
		url:      url,
		client:   resty.New().SetTimeout(10 * time.Second),
		maxTries: 4,
		interval: time.Second,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(&p)
	}
	return p
}

func (p *poster) post(ctx context.Context, body any) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.interval

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		resp, err := p.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(body).
			Post(p.url)
		if err != nil {
			p.logger.Warn("notify: request failed", "attempt", attempt, "error", err)
			return struct{}{}, err
		}

		code := resp.StatusCode()
		if code >= 200 && code < 300 {
			return struct{}{}, nil
		}
		p.logger.Warn("notify: bad status", "attempt", attempt, "status", code)

		switch {
		case code == http.StatusTooManyRequests:
			if secs, err := strconv.Atoi(resp.Header().Get("Retry-After")); err == nil && secs > 0 {
				return struct{}{}, backoff.RetryAfter(secs)
			}
			return struct{}{}, fmt.Errorf("status %d", code)
		case code >= 500:
			return struct{}{}, fmt.Errorf("status %d", code)
		default:
			return struct{}{}, backoff.Permanent(fmt.Errorf("status %d", code))
		}
	}, backoff.WithBackOff(exp), backoff.WithMaxTries(p.maxTries))
	if err != nil {
		return fmt.Errorf("notify: deliver to webhook after %d attempt(s): %w", attempt, err)
	}
	return nil
}

// Webhook POSTs each event as JSON: {"type":"change","data":{...}}.
type Webhook struct {
	p poster
}

// NewWebhook creates a generic JSON webhook notifier.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	return &Webhook{p: newPoster(url, opts)}
}

func (w *Webhook) Notify(ctx context.Context, ev Event) error {
	return w.p.post(ctx, envelope{Type: "change", Data: ev})
}

func (w *Webhook) Close() error { return nil }

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
