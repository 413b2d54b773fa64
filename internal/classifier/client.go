// Package classifier talks to the remote fraud classification service.
//
// A Client sends one JSON POST per attempt and turns the response into either
// a model.ClassificationResult or an *Error with a user-facing message. The
// free hosting tier puts the backend to sleep, so a 503 is treated as a cold
// start: the same body is resubmitted after a fixed delay until the service
// answers, the optional attempt limit trips, or the context is canceled.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/Veraticus/fraudwatch/internal/metrics"
	"github.com/Veraticus/fraudwatch/internal/model"
)

// Variant selects the endpoint flavor.
type Variant string

// Endpoint variants.
const (
	// VariantDashboard posts flat feature vectors to /predict.
	VariantDashboard Variant = "dashboard"
	// VariantManual posts form payloads to /api/v1/classify with X-API-Key.
	VariantManual Variant = "manual"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRetryDelay = 2 * time.Second
	maxResponseBytes  = 1 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Variant Variant
	// Endpoint overrides the variant's default path.
	Endpoint string
	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration
	// RetryDelay is the fixed wait between cold-start retries.
	RetryDelay time.Duration
	// MaxAttempts caps attempts including the first; zero retries until the
	// service wakes up or the context ends.
	MaxAttempts uint
	// RequestsPerMinute throttles attempts client-side; zero disables it.
	RequestsPerMinute int
}

// endpoint returns the request path for the configured variant.
func (c Config) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	if c.Variant == VariantManual {
		return "/api/v1/classify"
	}
	return "/predict"
}

// Timer abstracts the delay between retries.
type Timer interface {
	After(time.Duration) <-chan time.Time
}

type realTimer struct{}

func (realTimer) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// RetryFunc is invoked before each cold-start retry with the 1-based retry
// number.
type RetryFunc func(attempt uint)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimer replaces the wall-clock retry timer.
func WithTimer(t Timer) Option {
	return func(c *Client) {
		c.timer = t
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithClock sets the clock used when the service omits a timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// Client submits classification requests.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	timer      Timer
	logger     *slog.Logger
	now        func() time.Time
	url        string
	cfg        Config
}

// New creates a client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("classifier base URL is required")
	}
	switch cfg.Variant {
	case "":
		cfg.Variant = VariantDashboard
	case VariantDashboard, VariantManual:
	default:
		return nil, errors.Newf("unknown classifier variant %q", cfg.Variant)
	}
	if cfg.Variant == VariantManual && cfg.APIKey == "" {
		return nil, errors.New("API key is required for the manual classifier")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	c := &Client{
		cfg:        cfg,
		url:        strings.TrimRight(cfg.BaseURL, "/") + cfg.endpoint(),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		timer:      realTimer{},
		logger:     slog.Default(),
		now:        time.Now,
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute)
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Variant returns the configured endpoint variant.
func (c *Client) Variant() Variant {
	return c.cfg.Variant
}

// URL returns the full endpoint URL.
func (c *Client) URL() string {
	return c.url
}

// Classify submits payload and waits for a verdict, retrying cold starts.
func (c *Client) Classify(ctx context.Context, payload any) (model.ClassificationResult, error) {
	return c.ClassifyNotify(ctx, payload, nil)
}

// ClassifyNotify is Classify with a callback fired before every cold-start
// retry.
func (c *Client) ClassifyNotify(ctx context.Context, payload any, onRetry RetryFunc) (model.ClassificationResult, error) {
	start := time.Now()
	variant := string(c.cfg.Variant)

	result, err := c.classify(ctx, payload, onRetry)

	metrics.ClassifyDuration.WithLabelValues(variant).Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		metrics.ClassifyOutcomesTotal.WithLabelValues(variant, string(KindOf(err))).Inc()
	case result.Fraud:
		metrics.ClassifyOutcomesTotal.WithLabelValues(variant, string(model.StatusFlagged)).Inc()
	default:
		metrics.ClassifyOutcomesTotal.WithLabelValues(variant, string(model.StatusApproved)).Inc()
	}
	return result, err
}

func (c *Client) classify(ctx context.Context, payload any, onRetry RetryFunc) (model.ClassificationResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return model.ClassificationResult{}, newError(KindUnexpected, 0, MsgUnexpected,
			errors.Wrap(err, "failed to marshal request"))
	}

	if err := ctx.Err(); err != nil {
		return model.ClassificationResult{}, newError(KindCanceled, 0, MsgCanceled, err)
	}

	var result model.ClassificationResult
	attempt := func() error {
		res, err := c.attempt(ctx, body)
		if err != nil {
			return err
		}
		result = res
		return nil
	}

	maxAttempts := c.cfg.MaxAttempts
	err = retry.Do(attempt,
		retry.Attempts(maxAttempts),
		retry.Delay(c.cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.WithTimer(c.timer),
		retry.RetryIf(isColdStart),
		retry.OnRetry(func(n uint, err error) {
			// The callback also fires after the final bounded attempt, which
			// is not followed by a retry.
			if maxAttempts != 0 && n+1 >= maxAttempts {
				return
			}
			metrics.ColdStartRetriesTotal.WithLabelValues(string(c.cfg.Variant)).Inc()
			c.logger.Info("Classifier is waking up, retrying",
				"url", c.url,
				"retry", n+1,
				"delay", c.cfg.RetryDelay)
			if onRetry != nil {
				onRetry(n + 1)
			}
		}),
	)
	if err == nil {
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return model.ClassificationResult{}, newError(KindCanceled, 0, MsgCanceled, ctxErr)
	}
	if isColdStart(err) {
		c.logger.Warn("Classifier still unavailable after retry limit",
			"url", c.url,
			"max_attempts", maxAttempts)
		return model.ClassificationResult{}, newError(KindServer, http.StatusServiceUnavailable, MsgServer, err)
	}

	var cerr *Error
	if !errors.As(err, &cerr) {
		return model.ClassificationResult{}, newError(KindUnexpected, 0, MsgUnexpected, err)
	}
	return model.ClassificationResult{}, cerr
}

// attempt performs one HTTP round trip.
func (c *Client) attempt(ctx context.Context, body []byte) (model.ClassificationResult, error) {
	variant := string(c.cfg.Variant)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return model.ClassificationResult{}, newError(KindCanceled, 0, MsgCanceled,
				errors.Wrap(err, "rate limiter wait"))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return model.ClassificationResult{}, newError(KindUnexpected, 0, MsgUnexpected,
			errors.Wrap(err, "failed to create request"))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ClassifyAttemptsTotal.WithLabelValues(variant, metrics.StatusBucket(0)).Inc()
		if ctx.Err() != nil {
			return model.ClassificationResult{}, newError(KindCanceled, 0, MsgCanceled, err)
		}
		c.logger.Debug("Classifier request failed", "url", c.url, "error", err)
		return model.ClassificationResult{}, newError(KindNetwork, 0, MsgNetwork,
			errors.Wrap(err, "request failed"))
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.ClassifyAttemptsTotal.WithLabelValues(variant, metrics.StatusBucket(resp.StatusCode)).Inc()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return model.ClassificationResult{}, newError(KindCanceled, 0, MsgCanceled, err)
		}
		return model.ClassificationResult{}, newError(KindNetwork, resp.StatusCode, MsgNetwork,
			errors.Wrap(err, "failed to read response"))
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		cerr := newError(KindServer, resp.StatusCode, MsgServer, nil)
		cerr.coldStart = true
		return model.ClassificationResult{}, cerr
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		n := normalizer{logger: c.logger, now: c.now}
		return n.normalize(respBody)
	default:
		cerr := errorForStatus(resp.StatusCode, respBody)
		c.logger.Debug("Classifier returned an error status",
			"url", c.url,
			"status", resp.StatusCode,
			"kind", cerr.Kind)
		return model.ClassificationResult{}, cerr
	}
}
