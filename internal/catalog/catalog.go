// Package catalog holds the transaction templates the dashboard replays:
// one fixed legitimate feature vector and a set of real fraud examples.
package catalog

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/Veraticus/fraudwatch/internal/model"
)

//go:embed fraud_examples.json
var defaultFraudExamples []byte

// ErrNoFraudExamples is returned when the catalog has no usable fraud example.
var ErrNoFraudExamples = errors.New("no fraud examples loaded")

// LegitTemplate is the legitimate transaction the dashboard replays.
var LegitTemplate = model.FeaturePayload{
	Time: 18,
	V: [model.FeatureCount]float64{
		1.1666, 0.5021, -0.0673, 2.2615, 0.4288, 0.0894, 0.2411, 0.1380,
		-0.9891, 0.9221, 0.7447, -0.5313, -2.1053, 1.1268, 0.0030, 0.4244,
		-0.4544, -0.0988, -0.8165, -0.3071, 0.0187, -0.0619, -0.1038, -0.3704,
		0.6032, 0.1085, -0.0405, -0.0114,
	},
	Amount: 2.28,
}

// Catalog is an immutable set of transaction templates.
type Catalog struct {
	fraud []model.FeaturePayload
	legit model.FeaturePayload
}

// Default returns the catalog built from the embedded fraud examples.
func Default() (*Catalog, error) {
	return Parse(defaultFraudExamples)
}

// Load reads fraud examples from a JSON file (a list of flat Time/V1..V28/Amount
// records). An empty path falls back to the embedded examples.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read fraud examples from %s", path)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return c, nil
}

// Parse builds a catalog from raw JSON. Examples with a non-positive amount
// are dropped since they can never be submitted.
func Parse(data []byte) (*Catalog, error) {
	var examples []model.FeaturePayload
	if err := json.Unmarshal(data, &examples); err != nil {
		return nil, errors.Wrap(err, "failed to decode fraud examples")
	}

	usable := make([]model.FeaturePayload, 0, len(examples))
	for i, ex := range examples {
		if ex.Amount <= 0 {
			slog.Warn("Skipping fraud example with non-positive amount",
				"index", i,
				"amount", ex.Amount)
			continue
		}
		usable = append(usable, ex)
	}

	slog.Debug("Loaded fraud examples", "count", len(usable))

	return &Catalog{legit: LegitTemplate, fraud: usable}, nil
}

// Legit returns the legitimate template.
func (c *Catalog) Legit() model.FeaturePayload {
	return c.legit
}

// FraudCount returns the number of usable fraud examples.
func (c *Catalog) FraudCount() int {
	return len(c.fraud)
}

// Fraud returns the i-th fraud example.
func (c *Catalog) Fraud(i int) (model.FeaturePayload, error) {
	if i < 0 || i >= len(c.fraud) {
		return model.FeaturePayload{}, errors.Newf("fraud example %d out of range [0,%d)", i, len(c.fraud))
	}
	return c.fraud[i], nil
}

// RandomFraud picks a fraud example uniformly at random.
func (c *Catalog) RandomFraud(r *rand.Rand) (model.FeaturePayload, error) {
	if len(c.fraud) == 0 {
		return model.FeaturePayload{}, ErrNoFraudExamples
	}
	return c.fraud[r.IntN(len(c.fraud))], nil
}
