package classifier

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/fraudwatch/internal/model"
)

func testNormalizer(buf *bytes.Buffer) normalizer {
	return normalizer{
		logger: slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
		now:    func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func TestNormalize_FraudSignal(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantLabel string
		wantFraud bool
		wantWarn  bool
	}{
		{
			name:      "prediction flag",
			body:      `{"prediction": 1, "probability_fraud": 0.97}`,
			wantFraud: true,
			wantLabel: model.FraudLabel,
		},
		{
			name:      "classification flag",
			body:      `{"classification": 0, "fraud_score": 0.1}`,
			wantLabel: model.LegitimateLabel,
		},
		{
			name:      "boolean flag",
			body:      `{"prediction": true, "probability_fraud": 0.7}`,
			wantFraud: true,
			wantLabel: model.FraudLabel,
		},
		{
			name:      "label only",
			body:      `{"prediction_label": "Fraude", "probability_fraud": 0.9}`,
			wantFraud: true,
			wantLabel: "Fraude",
		},
		{
			name:      "flag wins over label",
			body:      `{"prediction": 0, "prediction_label": "Fraude", "probability_fraud": 0.45}`,
			wantLabel: "Fraude",
			wantWarn:  true,
		},
		{
			name:      "agreeing flag and label",
			body:      `{"prediction": 0, "prediction_label": "Legítimo", "probability_fraud": 0.05}`,
			wantLabel: "Legítimo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			result, err := testNormalizer(&buf).normalize([]byte(tt.body))
			require.NoError(t, err)

			assert.Equal(t, tt.wantFraud, result.Fraud)
			assert.Equal(t, tt.wantLabel, result.Label)
			if tt.wantWarn {
				assert.Contains(t, buf.String(), "disagree")
			} else {
				assert.NotContains(t, buf.String(), "disagree")
			}
		})
	}
}

func TestNormalize_DerivedTiers(t *testing.T) {
	var buf bytes.Buffer
	result, err := testNormalizer(&buf).normalize([]byte(`{"prediction": 1, "probability_fraud": 0.97}`))
	require.NoError(t, err)

	assert.Equal(t, model.ConfidenceHigh, result.Confidence)
	assert.Equal(t, model.RiskCritical, result.RiskLevel)
	assert.InDelta(t, 0.03, result.LegitimateProbability, 1e-9)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), result.Timestamp)
}

func TestNormalize_ServerTiersWin(t *testing.T) {
	var buf bytes.Buffer
	body := `{"classification": 1, "fraud_score": 0.65, "confidence": "low",
		"details": {"risk_level": "critical", "legitimate_probability": 0.3}}`
	result, err := testNormalizer(&buf).normalize([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, model.ConfidenceLow, result.Confidence)
	assert.Equal(t, model.RiskCritical, result.RiskLevel)
	assert.InDelta(t, 0.3, result.LegitimateProbability, 1e-9)
}

func TestNormalize_UnknownServerTiersIgnored(t *testing.T) {
	var buf bytes.Buffer
	body := `{"classification": 1, "fraud_score": 0.65, "confidence": 0.9,
		"details": {"risk_level": "extreme"}}`
	result, err := testNormalizer(&buf).normalize([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, model.ConfidenceMedium, result.Confidence)
	assert.Equal(t, model.RiskHigh, result.RiskLevel)
}

func TestNormalize_ApplicationErrorNotString(t *testing.T) {
	var buf bytes.Buffer
	_, err := testNormalizer(&buf).normalize([]byte(`{"error": {"code": 7}}`))
	assert.Equal(t, KindApplication, KindOf(err))
	assert.Equal(t, `{"code": 7}`, Message(err))
}

func TestNormalize_NullErrorIgnored(t *testing.T) {
	var buf bytes.Buffer
	result, err := testNormalizer(&buf).normalize([]byte(`{"error": null, "prediction": 0, "probability_fraud": 0.5}`))
	require.NoError(t, err)
	assert.Equal(t, model.ConfidenceLow, result.Confidence)
}

func TestValidationDetail(t *testing.T) {
	assert.Empty(t, validationDetail(nil))
	assert.Empty(t, validationDetail([]byte(`not json`)))
	assert.Equal(t, "bad", validationDetail([]byte(`{"detail":"bad"}`)))
	assert.Equal(t, "a; b", validationDetail([]byte(`{"detail":[{"msg":"a"},{"msg":"b"}]}`)))
}
