package storage

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/Veraticus/fraudwatch/internal/model"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrInvalidEntry = errors.New("invalid feed entry")
	ErrNotTerminal  = errors.New("feed entry is not resolved")
	ErrNotFound     = errors.New("feed entry not found")
	ErrInvalidLimit = errors.New("limit must not be negative")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return errors.Wrap(ErrEmptyString, paramName)
	}
	return nil
}

// validateEntry checks that an entry is complete and resolved.
func validateEntry(entry model.FeedEntry) error {
	if strings.TrimSpace(entry.ID) == "" {
		return errors.Wrap(ErrInvalidEntry, "missing ID")
	}
	switch entry.Source {
	case model.SourceLegit, model.SourceFraud, model.SourceManual:
	default:
		return errors.Wrapf(ErrInvalidEntry, "unknown source %q", entry.Source)
	}
	if entry.SubmittedAt.IsZero() {
		return errors.Wrap(ErrInvalidEntry, "missing submission time")
	}
	if !entry.Status.IsTerminal() {
		return errors.Wrapf(ErrNotTerminal, "entry %s is %s", entry.ID, entry.Status)
	}
	if entry.Status == model.StatusErrored {
		return nil
	}
	if entry.Result == nil {
		return errors.Wrapf(ErrInvalidEntry, "entry %s has no result", entry.ID)
	}
	if entry.Result.FraudScore < 0 || entry.Result.FraudScore > 1 {
		return errors.Wrap(ErrInvalidEntry, "fraud score must be between 0 and 1")
	}
	if (entry.Status == model.StatusFlagged) != entry.Result.Fraud {
		return errors.Wrapf(ErrInvalidEntry, "status %s disagrees with result", entry.Status)
	}
	return nil
}

// validateStatus accepts the empty filter or a known status.
func validateStatus(status model.FeedStatus) error {
	switch status {
	case "", model.StatusPending, model.StatusApproved, model.StatusFlagged, model.StatusErrored:
		return nil
	default:
		return errors.Wrapf(ErrInvalidEntry, "unknown status %q", status)
	}
}
