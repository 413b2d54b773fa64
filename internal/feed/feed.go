// Package feed implements the transaction feed state machine.
//
// Every submission becomes a pending entry in the full feed. It is resolved
// exactly once, to approved, flagged or errored, and never returns to
// pending. Flagged entries are also copied into the alert feed. Both views
// are ordered newest first.
package feed

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/Veraticus/fraudwatch/internal/classifier"
	"github.com/Veraticus/fraudwatch/internal/metrics"
	"github.com/Veraticus/fraudwatch/internal/model"
)

// Feed errors.
var (
	ErrUnknownHandle     = errors.New("unknown feed entry")
	ErrAlreadyTerminal   = errors.New("feed entry already resolved")
	ErrInvariantViolated = errors.New("feed invariant violated")
)

// Handle identifies a submitted entry.
type Handle string

// EventType describes a feed change.
type EventType string

// Event types.
const (
	EventSubmitted EventType = "submitted"
	EventRetrying  EventType = "retrying"
	EventResolved  EventType = "resolved"
	EventFailed    EventType = "failed"
	EventCleared   EventType = "cleared"
)

// Event is published to subscribers after every change. Entry is a copy and
// is zero for EventCleared.
type Event struct {
	At    time.Time       `json:"at"`
	Type  EventType       `json:"type"`
	Entry model.FeedEntry `json:"entry"`
}

// Stats counts entries per status.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Flagged  int `json:"flagged"`
	Errored  int `json:"errored"`
}

// Option customizes a Feed.
type Option func(*Feed)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Feed) {
		f.logger = l
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(f *Feed) {
		f.now = now
	}
}

// WithIDGenerator sets how entry ids are generated.
func WithIDGenerator(gen func() string) Option {
	return func(f *Feed) {
		f.newID = gen
	}
}

// Feed holds the full feed and the alert feed. It is safe for concurrent use.
type Feed struct {
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
	index   map[Handle]*model.FeedEntry
	subs    map[int]chan Event
	entries []*model.FeedEntry // oldest first
	alerts  []model.FeedEntry  // newest first
	nextSub int
	mu      sync.RWMutex
}

// New creates an empty feed.
func New(opts ...Option) *Feed {
	f := &Feed{
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
		index:  make(map[Handle]*model.FeedEntry),
		subs:   make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Submit records a new pending entry and returns its handle.
func (f *Feed) Submit(source model.Source, displayAmount float64) Handle {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry := &model.FeedEntry{
		ID:            f.newID(),
		Source:        source,
		Status:        model.StatusPending,
		DisplayAmount: displayAmount,
		SubmittedAt:   f.now(),
	}
	h := Handle(entry.ID)
	f.entries = append(f.entries, entry)
	f.index[h] = entry

	f.logger.Debug("Transaction submitted",
		"id", entry.ID,
		"source", source,
		"amount", displayAmount)

	f.publishLocked(EventSubmitted, entry.Clone())
	f.updateGaugesLocked()
	return h
}

// MarkRetrying records a cold-start retry on a pending entry.
func (f *Feed) MarkRetrying(h Handle, attempt uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, err := f.pendingLocked(h)
	if err != nil {
		return err
	}
	entry.Retries++

	f.logger.Debug("Transaction waiting for classifier",
		"id", entry.ID,
		"attempt", attempt)

	f.publishLocked(EventRetrying, entry.Clone())
	return nil
}

// Resolve moves a pending entry to flagged or approved.
func (f *Feed) Resolve(h Handle, result model.ClassificationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, err := f.pendingLocked(h)
	if err != nil {
		return err
	}

	res := result
	entry.Result = &res
	entry.ResolvedAt = f.now()
	if result.Fraud {
		entry.Status = model.StatusFlagged
		f.alerts = slices.Insert(f.alerts, 0, entry.Clone())
		f.logger.Info("Transaction flagged",
			"id", entry.ID,
			"amount", entry.DisplayAmount,
			"score", result.FraudScore)
	} else {
		entry.Status = model.StatusApproved
		f.logger.Debug("Transaction approved",
			"id", entry.ID,
			"score", result.FraudScore)
	}

	f.publishLocked(EventResolved, entry.Clone())
	f.updateGaugesLocked()
	return f.checkLocked()
}

// Fail moves a pending entry to errored. The user-facing message and kind
// come from cause.
func (f *Feed) Fail(h Handle, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, err := f.pendingLocked(h)
	if err != nil {
		return err
	}

	kind := classifier.KindOf(cause)
	if kind == "" {
		kind = classifier.KindUnexpected
	}
	entry.Status = model.StatusErrored
	entry.Error = classifier.Message(cause)
	entry.ErrorKind = string(kind)
	entry.ResolvedAt = f.now()

	f.logger.Warn("Transaction failed",
		"id", entry.ID,
		"kind", kind,
		"error", cause)

	f.publishLocked(EventFailed, entry.Clone())
	f.updateGaugesLocked()
	return f.checkLocked()
}

// Get returns a copy of the entry for h.
func (f *Feed) Get(h Handle) (model.FeedEntry, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entry, ok := f.index[h]
	if !ok {
		return model.FeedEntry{}, false
	}
	return entry.Clone(), true
}

// Entries returns copies of all entries, newest first.
func (f *Feed) Entries() []model.FeedEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]model.FeedEntry, 0, len(f.entries))
	for i := len(f.entries) - 1; i >= 0; i-- {
		out = append(out, f.entries[i].Clone())
	}
	return out
}

// Alerts returns copies of the flagged entries, newest first.
func (f *Feed) Alerts() []model.FeedEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]model.FeedEntry, 0, len(f.alerts))
	for _, a := range f.alerts {
		out = append(out, a.Clone())
	}
	return out
}

// Stats counts the entries per status.
func (f *Feed) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.statsLocked()
}

// Clear drops every entry from both views. Handles issued before Clear
// become unknown.
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = nil
	f.alerts = nil
	f.index = make(map[Handle]*model.FeedEntry)

	f.logger.Debug("Feed cleared")
	f.publishLocked(EventCleared, model.FeedEntry{})
	f.updateGaugesLocked()
}

// Subscribe returns a channel receiving every subsequent event and a cancel
// function that closes it. Events are dropped when the buffer is full.
func (f *Feed) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}

	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	ch := make(chan Event, buffer)
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (f *Feed) pendingLocked(h Handle) (*model.FeedEntry, error) {
	entry, ok := f.index[h]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownHandle, "entry %s", h)
	}
	if entry.Status.IsTerminal() {
		return nil, errors.Wrapf(ErrAlreadyTerminal, "entry %s is %s", h, entry.Status)
	}
	return entry, nil
}

func (f *Feed) publishLocked(typ EventType, entry model.FeedEntry) {
	ev := Event{Type: typ, Entry: entry, At: f.now()}
	for id, ch := range f.subs {
		select {
		case ch <- ev:
		default:
			f.logger.Debug("Dropping feed event for slow subscriber", "subscriber", id, "type", typ)
		}
	}
}

// checkLocked verifies that every alert is a flagged entry of the full feed
// and that every flagged entry has an alert.
func (f *Feed) checkLocked() error {
	flagged := 0
	for _, e := range f.entries {
		if e.Status == model.StatusFlagged {
			flagged++
		}
	}

	var problem string
	switch {
	case flagged != len(f.alerts):
		problem = "alert count does not match flagged entries"
	default:
		for _, a := range f.alerts {
			entry, ok := f.index[Handle(a.ID)]
			if !ok {
				problem = "alert " + a.ID + " missing from feed"
				break
			}
			if entry.Status != model.StatusFlagged {
				problem = "alert " + a.ID + " is " + string(entry.Status) + " in feed"
				break
			}
		}
	}
	if problem == "" {
		return nil
	}

	f.logger.Error("Feed invariant violated",
		"problem", problem,
		"entries", len(f.entries),
		"alerts", len(f.alerts))
	return errors.Wrap(ErrInvariantViolated, problem)
}

func (f *Feed) statsLocked() Stats {
	s := Stats{Total: len(f.entries)}
	for _, e := range f.entries {
		switch e.Status {
		case model.StatusPending:
			s.Pending++
		case model.StatusApproved:
			s.Approved++
		case model.StatusFlagged:
			s.Flagged++
		case model.StatusErrored:
			s.Errored++
		}
	}
	return s
}

func (f *Feed) updateGaugesLocked() {
	s := f.statsLocked()
	metrics.FeedEntries.WithLabelValues(string(model.StatusPending)).Set(float64(s.Pending))
	metrics.FeedEntries.WithLabelValues(string(model.StatusApproved)).Set(float64(s.Approved))
	metrics.FeedEntries.WithLabelValues(string(model.StatusFlagged)).Set(float64(s.Flagged))
	metrics.FeedEntries.WithLabelValues(string(model.StatusErrored)).Set(float64(s.Errored))
}
