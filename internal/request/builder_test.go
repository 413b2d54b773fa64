package request

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/fraudwatch/internal/catalog"
	"github.com/Veraticus/fraudwatch/internal/model"
)

func newTestBuilder(t *testing.T, cfg Config) *Builder {
	t.Helper()
	b, err := NewBuilder(cfg, rand.New(rand.NewPCG(42, 7)))
	require.NoError(t, err)
	return b
}

func TestNewBuilder_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero min", func(c *Config) { c.MinDisplayAmount = 0 }},
		{"max below min", func(c *Config) { c.MaxDisplayAmount = 1 }},
		{"zero ceiling", func(c *Config) { c.MaxAmount = 0 }},
		{"negative offset", func(c *Config) { c.MaxTimeOffset = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewBuilder(cfg, nil)
			require.Error(t, err)
		})
	}
}

func TestSynthetic_Legit(t *testing.T) {
	b := newTestBuilder(t, DefaultConfig())
	template := catalog.LegitTemplate

	for i := 0; i < 500; i++ {
		req, err := b.Synthetic(model.SourceLegit, template)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, req.DisplayAmount, 5.0)
		assert.Less(t, req.DisplayAmount, 1000.0)
		assert.InDelta(t, req.DisplayAmount, roundCents(req.DisplayAmount), 1e-9)

		assert.InDelta(t, template.Amount, req.Payload.Amount, 1e-9)
		assert.Equal(t, template.V, req.Payload.V)
		assert.GreaterOrEqual(t, req.Payload.Time, template.Time)
		assert.Less(t, req.Payload.Time, template.Time+10000)
	}
}

func TestSynthetic_LegitDisplayTransmitted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DisplayTransmittedAmount = true
	b := newTestBuilder(t, cfg)

	req, err := b.Synthetic(model.SourceLegit, catalog.LegitTemplate)
	require.NoError(t, err)
	assert.InDelta(t, catalog.LegitTemplate.Amount, req.DisplayAmount, 1e-9)
}

func TestSynthetic_Fraud(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)
	example, err := c.Fraud(0)
	require.NoError(t, err)

	b := newTestBuilder(t, DefaultConfig())
	req, err := b.Synthetic(model.SourceFraud, example)
	require.NoError(t, err)

	assert.Equal(t, model.SourceFraud, req.Source)
	assert.InDelta(t, 529.0, req.DisplayAmount, 1e-9)
	assert.InDelta(t, 529.0, req.Payload.Amount, 1e-9)
	assert.GreaterOrEqual(t, req.Payload.Time, 472.0)
	assert.Less(t, req.Payload.Time, 472.0+10000)
}

func TestSynthetic_ZeroOffset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTimeOffset = 0
	b := newTestBuilder(t, cfg)

	req, err := b.Synthetic(model.SourceLegit, catalog.LegitTemplate)
	require.NoError(t, err)
	assert.InDelta(t, catalog.LegitTemplate.Time, req.Payload.Time, 1e-9)
}

func TestSynthetic_RejectsNonPositiveAmount(t *testing.T) {
	b := newTestBuilder(t, DefaultConfig())
	template := catalog.LegitTemplate
	template.Amount = 0

	_, err := b.Synthetic(model.SourceFraud, template)
	require.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, messages(verr), "Amount")
}

func TestSynthetic_RejectsManualSource(t *testing.T) {
	b := newTestBuilder(t, DefaultConfig())
	_, err := b.Synthetic(model.SourceManual, catalog.LegitTemplate)
	require.ErrorIs(t, err, ErrValidation)
}
