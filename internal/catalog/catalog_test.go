package catalog

import (
	"encoding/json"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/fraudwatch/internal/model"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	require.Positive(t, c.FraudCount())

	first, err := c.Fraud(0)
	require.NoError(t, err)
	assert.InDelta(t, 472.0, first.Time, 1e-9)
	assert.InDelta(t, 529.0, first.Amount, 1e-9)

	assert.Equal(t, LegitTemplate, c.Legit())
}

func TestParse_DropsNonPositiveAmounts(t *testing.T) {
	good := LegitTemplate
	zero := LegitTemplate
	zero.Amount = 0

	data, err := json.Marshal([]model.FeaturePayload{zero, good})
	require.NoError(t, err)

	c, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 1, c.FraudCount())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte(`{"not":"a list"}`))
	require.Error(t, err)

	_, err = Parse([]byte(`[{"Time":1,"Amount":2}]`))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Run("empty path uses embedded examples", func(t *testing.T) {
		c, err := Load("")
		require.NoError(t, err)
		assert.Positive(t, c.FraudCount())
	})

	t.Run("reads file", func(t *testing.T) {
		example := LegitTemplate
		example.Amount = 99.9
		data, err := json.Marshal([]model.FeaturePayload{example})
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "fraud_examples.json")
		require.NoError(t, os.WriteFile(path, data, 0o600))

		c, err := Load(path)
		require.NoError(t, err)
		got, err := c.Fraud(0)
		require.NoError(t, err)
		assert.InDelta(t, 99.9, got.Amount, 1e-9)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read fraud examples")
	})
}

func TestRandomFraud(t *testing.T) {
	empty, err := Parse([]byte(`[]`))
	require.NoError(t, err)

	_, err = empty.RandomFraud(rand.New(rand.NewPCG(1, 2)))
	require.ErrorIs(t, err, ErrNoFraudExamples)

	c, err := Default()
	require.NoError(t, err)

	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 50; i++ {
		ex, err := c.RandomFraud(r)
		require.NoError(t, err)
		assert.Positive(t, ex.Amount)
	}

	_, err = c.Fraud(c.FraudCount())
	require.Error(t, err)
}
