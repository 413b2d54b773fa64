// Package simulation drives submissions through the feed: it builds a request,
// records the pending entry, classifies it in the background and resolves the
// entry with the outcome.
package simulation

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/Veraticus/fraudwatch/internal/catalog"
	"github.com/Veraticus/fraudwatch/internal/classifier"
	"github.com/Veraticus/fraudwatch/internal/feed"
	"github.com/Veraticus/fraudwatch/internal/model"
	"github.com/Veraticus/fraudwatch/internal/request"
)

// Session errors.
var (
	ErrClosed         = errors.New("session closed")
	ErrManualDisabled = errors.New("manual classification is not configured")
)

// persistTimeout bounds a single history write.
const persistTimeout = 5 * time.Second

// Classifier submits a payload and reports cold-start retries.
type Classifier interface {
	ClassifyNotify(ctx context.Context, payload any, onRetry classifier.RetryFunc) (model.ClassificationResult, error)
}

// Recorder persists resolved entries.
type Recorder interface {
	SaveEntry(ctx context.Context, entry model.FeedEntry) error
}

// Option customizes a Session.
type Option func(*Session)

// WithManualClassifier enables form submissions against c.
func WithManualClassifier(c Classifier) Option {
	return func(s *Session) {
		s.manual = c
	}
}

// WithRecorder persists every resolved entry to r.
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		s.recorder = r
	}
}

// WithSubmissionTimeout bounds each submission, retries included. Zero means
// no bound beyond the session lifetime.
func WithSubmissionTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithRand sets the source used to pick fraud examples.
func WithRand(r *rand.Rand) Option {
	return func(s *Session) {
		s.rng = r
	}
}

// Session owns the in-flight submissions of one dashboard run.
type Session struct {
	ctx       context.Context
	dashboard Classifier
	manual    Classifier
	recorder  Recorder
	feed      *feed.Feed
	builder   *request.Builder
	catalog   *catalog.Catalog
	logger    *slog.Logger
	rng       *rand.Rand
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	timeout   time.Duration
	mu        sync.Mutex
	closed    bool
}

// New creates a session bound to ctx. Dashboard submissions go to dashboard.
func New(ctx context.Context, f *feed.Feed, b *request.Builder, c *catalog.Catalog, dashboard Classifier, opts ...Option) (*Session, error) {
	if f == nil || b == nil || c == nil {
		return nil, errors.New("feed, builder and catalog are required")
	}
	if dashboard == nil {
		return nil, errors.New("dashboard classifier is required")
	}

	s := &Session{
		feed:      f,
		builder:   b,
		catalog:   c,
		dashboard: dashboard,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		seed := uint64(time.Now().UnixNano()) //nolint:gosec // not security sensitive
		s.rng = rand.New(rand.NewPCG(seed, seed>>3))
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	return s, nil
}

// Feed returns the feed the session writes to.
func (s *Session) Feed() *feed.Feed {
	return s.feed
}

// ManualEnabled reports whether form submissions are possible.
func (s *Session) ManualEnabled() bool {
	return s.manual != nil
}

// SimulateLegit submits the legitimate template.
func (s *Session) SimulateLegit() (feed.Handle, error) {
	return s.simulate(model.SourceLegit, s.catalog.Legit())
}

// SimulateFraud submits a randomly chosen fraud example.
func (s *Session) SimulateFraud() (feed.Handle, error) {
	s.mu.Lock()
	example, err := s.catalog.RandomFraud(s.rng)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return s.simulate(model.SourceFraud, example)
}

func (s *Session) simulate(source model.Source, template model.FeaturePayload) (feed.Handle, error) {
	req, err := s.builder.Synthetic(source, template)
	if err != nil {
		return "", err
	}
	return s.start(source, req.DisplayAmount, req.Payload, s.dashboard)
}

// SubmitForm validates raw form input and submits it. Invalid input returns
// a *request.ValidationError and nothing is submitted.
func (s *Session) SubmitForm(form request.Form) (feed.Handle, error) {
	if s.manual == nil {
		return "", ErrManualDisabled
	}
	payload, err := s.builder.Manual(form)
	if err != nil {
		return "", err
	}
	return s.start(model.SourceManual, payload.Amount, payload, s.manual)
}

// SubmitManual validates and submits an already typed payload.
func (s *Session) SubmitManual(payload model.ManualPayload) (feed.Handle, error) {
	if s.manual == nil {
		return "", ErrManualDisabled
	}
	if err := s.builder.ValidateManual(payload); err != nil {
		return "", err
	}
	return s.start(model.SourceManual, payload.Amount, payload, s.manual)
}

func (s *Session) start(source model.Source, displayAmount float64, payload any, c Classifier) (feed.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}

	h := s.feed.Submit(source, displayAmount)
	s.wg.Add(1)
	go s.run(h, payload, c)
	return h, nil
}

func (s *Session) run(h feed.Handle, payload any, c Classifier) {
	defer s.wg.Done()

	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := c.ClassifyNotify(ctx, payload, func(attempt uint) {
		if markErr := s.feed.MarkRetrying(h, attempt); markErr != nil {
			s.logger.Debug("Could not mark entry as retrying", "id", h, "error", markErr)
		}
	})

	var transitionErr error
	if err != nil {
		transitionErr = s.feed.Fail(h, err)
	} else {
		transitionErr = s.feed.Resolve(h, result)
	}
	switch {
	case errors.Is(transitionErr, feed.ErrUnknownHandle):
		// The feed was cleared while this submission was in flight.
		s.logger.Debug("Dropping outcome for cleared entry", "id", h)
		return
	case transitionErr != nil && !errors.Is(transitionErr, feed.ErrInvariantViolated):
		s.logger.Error("Failed to record classification outcome", "id", h, "error", transitionErr)
		return
	}

	s.persist(h)
}

func (s *Session) persist(h feed.Handle) {
	if s.recorder == nil {
		return
	}
	entry, ok := s.feed.Get(h)
	if !ok || !entry.Status.IsTerminal() {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), persistTimeout)
	defer cancel()
	if err := s.recorder.SaveEntry(ctx, entry); err != nil {
		s.logger.Error("Failed to persist feed entry", "id", entry.ID, "error", err)
	}
}

// Wait blocks until every in-flight submission has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close cancels in-flight submissions, waits for them and rejects new ones.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
