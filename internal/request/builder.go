// Package request builds classification requests from synthetic templates and
// from raw form input. Building is pure: randomness comes from an injected
// source and nothing here performs I/O.
package request

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"github.com/Veraticus/fraudwatch/internal/model"
)

// Config controls how requests are built.
type Config struct {
	// MinDisplayAmount and MaxDisplayAmount bound the randomized amount shown
	// for legitimate synthetic transactions.
	MinDisplayAmount float64
	MaxDisplayAmount float64
	// MaxAmount is the ceiling for manually entered amounts.
	MaxAmount float64
	// MaxTimeOffset is the exclusive upper bound of the random offset added
	// to the template time.
	MaxTimeOffset int
	// DisplayTransmittedAmount shows the transmitted template amount for
	// legitimate transactions instead of a randomized one.
	DisplayTransmittedAmount bool
}

// DefaultConfig returns the dashboard defaults.
func DefaultConfig() Config {
	return Config{
		MinDisplayAmount: 5,
		MaxDisplayAmount: 1000,
		MaxAmount:        100000,
		MaxTimeOffset:    10000,
	}
}

func (c Config) validate() error {
	if c.MinDisplayAmount <= 0 {
		return errors.Newf("min display amount must be positive, got %.2f", c.MinDisplayAmount)
	}
	if c.MaxDisplayAmount <= c.MinDisplayAmount {
		return errors.Newf("max display amount %.2f must exceed min %.2f", c.MaxDisplayAmount, c.MinDisplayAmount)
	}
	if c.MaxAmount <= 0 {
		return errors.Newf("max amount must be positive, got %.2f", c.MaxAmount)
	}
	if c.MaxTimeOffset < 0 {
		return errors.Newf("max time offset cannot be negative, got %d", c.MaxTimeOffset)
	}
	return nil
}

// SyntheticRequest is a built dashboard request. DisplayAmount is what the
// feed shows and may differ from Payload.Amount, which is what is sent.
type SyntheticRequest struct {
	Source        model.Source
	Payload       model.FeaturePayload
	DisplayAmount float64
}

// Builder produces classification requests.
type Builder struct {
	rng      *rand.Rand
	validate *validator.Validate
	cfg      Config
	mu       sync.Mutex
}

// NewBuilder creates a builder. A nil rng is replaced by a time-seeded source.
func NewBuilder(cfg Config, rng *rand.Rand) (*Builder, error) {
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid request builder configuration")
	}

	if rng == nil {
		seed := uint64(time.Now().UnixNano()) //nolint:gosec // not security sensitive
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}

	return &Builder{
		cfg:      cfg,
		rng:      rng,
		validate: newValidator(),
	}, nil
}

// Config returns the builder configuration.
func (b *Builder) Config() Config {
	return b.cfg
}

// Synthetic builds a dashboard request from a template.
//
// Legitimate transactions display a fresh random amount but transmit the
// template amount; fraud examples display and transmit their real amount.
// Time is pushed forward by a random offset so repeated simulations look
// like distinct transactions.
func (b *Builder) Synthetic(source model.Source, template model.FeaturePayload) (SyntheticRequest, error) {
	var errs fieldErrors
	if template.Amount <= 0 || math.IsNaN(template.Amount) {
		errs.add("Amount", "Valor deve ser maior que zero")
	}
	if source != model.SourceLegit && source != model.SourceFraud {
		errs.add("source", "Origem sintética inválida")
	}
	if err := errs.err(); err != nil {
		return SyntheticRequest{}, err
	}

	b.mu.Lock()
	offset := 0
	if b.cfg.MaxTimeOffset > 0 {
		offset = b.rng.IntN(b.cfg.MaxTimeOffset)
	}
	randomAmount := b.cfg.MinDisplayAmount + b.rng.Float64()*(b.cfg.MaxDisplayAmount-b.cfg.MinDisplayAmount)
	b.mu.Unlock()

	payload := template
	payload.Time = template.Time + float64(offset)

	display := template.Amount
	if source == model.SourceLegit && !b.cfg.DisplayTransmittedAmount {
		display = roundCents(randomAmount)
		// Rounding may land exactly on the exclusive upper bound.
		if display >= b.cfg.MaxDisplayAmount {
			display = roundCents(b.cfg.MaxDisplayAmount - 0.01)
		}
	}

	return SyntheticRequest{
		Source:        source,
		Payload:       payload,
		DisplayAmount: display,
	}, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
