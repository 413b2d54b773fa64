package classifier

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/Veraticus/fraudwatch/internal/model"
)

// Kind classifies a failed classification.
type Kind string

// Error kinds. Every failure surfaced by the client carries exactly one.
const (
	KindAuth        Kind = "auth"
	KindRateLimit   Kind = "rate_limit"
	KindServer      Kind = "server"
	KindValidation  Kind = "validation"
	KindNetwork     Kind = "network"
	KindApplication Kind = model.ApplicationErrorKind
	KindUnexpected  Kind = "unexpected"
	KindCanceled    Kind = "canceled"
)

// User-facing messages.
const (
	MsgAuth            = "API Key inválida"
	MsgRateLimit       = "Muitas requisições. Tente novamente mais tarde."
	MsgServer          = "Erro no servidor. Tente novamente mais tarde."
	MsgValidation      = "Dados inválidos"
	MsgNetwork         = "Sem conexão com o servidor. Verifique sua internet."
	MsgUnexpected      = "Erro ao processar requisição"
	MsgInvalidResponse = "Resposta inválida do servidor"
	MsgCanceled        = "Requisição cancelada"
)

// Error is a classification failure. Message is safe to show to users.
type Error struct {
	Err       error
	Kind      Kind
	Message   string
	Status    int
	coldStart bool
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%s, status %d)", e.Message, e.Kind, e.Status)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, status int, message string, cause error) *Error {
	return &Error{Kind: kind, Status: status, Message: message, Err: cause}
}

// KindOf returns the kind of a classification error, or "" when err is not
// one.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return ""
}

// Message returns the user-facing message for err.
func Message(err error) string {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Message
	}
	if err == nil {
		return ""
	}
	return MsgUnexpected
}

func isColdStart(err error) bool {
	var cerr *Error
	return errors.As(err, &cerr) && cerr.coldStart
}

// errorForStatus maps a non-2xx, non-503 response to an error.
func errorForStatus(status int, body []byte) *Error {
	switch {
	case status == 401:
		return newError(KindAuth, status, MsgAuth, nil)
	case status == 429:
		return newError(KindRateLimit, status, MsgRateLimit, nil)
	case status == 400 || status == 422:
		msg := validationDetail(body)
		if msg == "" {
			msg = MsgValidation
		}
		return newError(KindValidation, status, msg, nil)
	case status >= 500:
		return newError(KindServer, status, MsgServer, nil)
	default:
		return newError(KindUnexpected, status, MsgUnexpected, nil)
	}
}
