// Package common provides shared utilities used by the commands.
package common

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/Veraticus/fraudwatch/internal/classifier"
	"github.com/Veraticus/fraudwatch/internal/request"
)

// Configuration errors.
var (
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// Describe renders err the way it is shown on screen.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var verr *request.ValidationError
	if errors.As(err, &verr) {
		lines := make([]string, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			lines = append(lines, fmt.Sprintf("%s: %s", f.Field, f.Message))
		}
		return strings.Join(lines, "\n")
	}

	var uerr *UserError
	if errors.As(err, &uerr) {
		return uerr.UserMessage
	}

	var cerr *classifier.Error
	if errors.As(err, &cerr) {
		return cerr.Message
	}

	return err.Error()
}

// IsRetryable reports whether resubmitting the same request could succeed.
func IsRetryable(err error) bool {
	switch classifier.KindOf(err) {
	case classifier.KindNetwork, classifier.KindRateLimit, classifier.KindServer:
		return true
	default:
		return false
	}
}
