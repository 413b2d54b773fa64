package model

import (
	"fmt"
	"time"
)

// FeedStatus is the lifecycle state of a feed entry.
type FeedStatus string

// Feed entry states. Pending is the only non-terminal state.
const (
	StatusPending  FeedStatus = "pending"
	StatusApproved FeedStatus = "approved"
	StatusFlagged  FeedStatus = "flagged"
	StatusErrored  FeedStatus = "errored"
)

// IsTerminal reports whether no further transition may leave this state.
func (s FeedStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusFlagged || s == StatusErrored
}

// Source identifies how a feed entry was produced.
type Source string

// Entry sources.
const (
	SourceLegit  Source = "legit"
	SourceFraud  Source = "fraud"
	SourceManual Source = "manual"
)

// ApplicationErrorKind is the error kind of business errors reported by the
// classifier inside a successful response. Those are shown verbatim.
const ApplicationErrorKind = "application"

// FeedEntry is the display record of one submitted transaction.
type FeedEntry struct {
	SubmittedAt   time.Time             `json:"submitted_at"`
	ResolvedAt    time.Time             `json:"resolved_at,omitempty"`
	Result        *ClassificationResult `json:"result,omitempty"`
	ID            string                `json:"id"`
	Source        Source                `json:"source"`
	Status        FeedStatus            `json:"status"`
	Error         string                `json:"error,omitempty"`
	ErrorKind     string                `json:"error_kind,omitempty"`
	DisplayAmount float64               `json:"display_amount"`
	Retries       int                   `json:"retries"`
}

// Clone returns an independent copy of the entry.
func (e FeedEntry) Clone() FeedEntry {
	if e.Result != nil {
		result := *e.Result
		e.Result = &result
	}
	return e
}

// Describe renders the one-line feed text for the entry.
func (e FeedEntry) Describe() string {
	amount := FormatAmount(e.DisplayAmount)

	switch e.Status {
	case StatusPending:
		if e.Retries > 0 {
			return "[ACORDANDO API] O servidor gratuito estava dormindo. Tentando novamente..."
		}
		return fmt.Sprintf("[PENDENTE] Nova Transação de %s...", amount)
	case StatusFlagged:
		score := 0.0
		if e.Result != nil {
			score = e.Result.FraudScore
		}
		return fmt.Sprintf("[ALERTA] Transação de %s. Prob: %s", amount, FormatPercent(score))
	case StatusApproved:
		return fmt.Sprintf("[APROVADA] Transação de %s.", amount)
	case StatusErrored:
		if e.ErrorKind == ApplicationErrorKind {
			return fmt.Sprintf("[ERRO] %s", e.Error)
		}
		return fmt.Sprintf("[ERRO API] Falha ao processar %s: %s", amount, e.Error)
	default:
		return fmt.Sprintf("[%s] Transação de %s", e.Status, amount)
	}
}

// FormatAmount renders an amount in reais with two decimals.
func FormatAmount(amount float64) string {
	return fmt.Sprintf("R$ %.2f", amount)
}

// FormatPercent renders a [0,1] probability as a percentage with two decimals.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.2f%%", p*100)
}
