package classifier

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/Veraticus/fraudwatch/internal/model"
)

// errInvalidResponse marks a 2xx body that cannot be normalized.
var errInvalidResponse = errors.New("invalid classification response")

// rawResponse is the union of the fields both endpoint variants may return.
type rawResponse struct {
	Prediction       json.RawMessage `json:"prediction"`
	Classification   json.RawMessage `json:"classification"`
	PredictionLabel  *string         `json:"prediction_label"`
	ProbabilityFraud *float64        `json:"probability_fraud"`
	FraudScore       *float64        `json:"fraud_score"`
	Confidence       json.RawMessage `json:"confidence"`
	Details          *rawDetails     `json:"details"`
	TransactionID    string          `json:"transaction_id"`
	Timestamp        string          `json:"timestamp"`
	Error            json.RawMessage `json:"error"`
}

type rawDetails struct {
	LegitimateProbability *float64 `json:"legitimate_probability"`
	FraudProbability      *float64 `json:"fraud_probability"`
	RiskLevel             *string  `json:"risk_level"`
}

// normalizer turns a decoded success body into a ClassificationResult.
type normalizer struct {
	logger *slog.Logger
	now    func() time.Time
}

func (n normalizer) normalize(body []byte) (model.ClassificationResult, error) {
	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return model.ClassificationResult{}, newError(KindServer, 0, MsgInvalidResponse,
			errors.Wrap(err, "failed to decode response"))
	}

	if msg, ok := applicationError(raw.Error); ok {
		return model.ClassificationResult{}, newError(KindApplication, 0, msg, nil)
	}

	score, ok := raw.score()
	if !ok {
		return model.ClassificationResult{}, newError(KindServer, 0, MsgInvalidResponse,
			errors.Wrap(errInvalidResponse, "missing fraud score"))
	}
	if score < 0 || score > 1 || math.IsNaN(score) {
		return model.ClassificationResult{}, newError(KindServer, 0, MsgInvalidResponse,
			errors.Wrapf(errInvalidResponse, "fraud score %v outside [0,1]", score))
	}

	fraud, err := n.fraudSignal(raw)
	if err != nil {
		return model.ClassificationResult{}, newError(KindServer, 0, MsgInvalidResponse, err)
	}

	result := model.ClassificationResult{
		Fraud:                 fraud,
		FraudScore:            score,
		LegitimateProbability: 1 - score,
		Confidence:            model.ConfidenceFor(score),
		RiskLevel:             model.RiskLevelFor(score),
		TransactionID:         raw.TransactionID,
		Timestamp:             n.timestamp(raw.Timestamp),
	}

	if raw.PredictionLabel != nil && *raw.PredictionLabel != "" {
		result.Label = *raw.PredictionLabel
	} else if fraud {
		result.Label = model.FraudLabel
	} else {
		result.Label = model.LegitimateLabel
	}

	if conf, ok := confidenceTier(raw.Confidence); ok {
		result.Confidence = conf
	}
	if raw.Details != nil {
		if raw.Details.LegitimateProbability != nil {
			result.LegitimateProbability = *raw.Details.LegitimateProbability
		}
		if raw.Details.RiskLevel != nil {
			if risk, ok := model.ParseRiskLevel(*raw.Details.RiskLevel); ok {
				result.RiskLevel = risk
			}
		}
	}

	return result, nil
}

// score prefers probability_fraud, then fraud_score, then details.
func (r rawResponse) score() (float64, bool) {
	switch {
	case r.ProbabilityFraud != nil:
		return *r.ProbabilityFraud, true
	case r.FraudScore != nil:
		return *r.FraudScore, true
	case r.Details != nil && r.Details.FraudProbability != nil:
		return *r.Details.FraudProbability, true
	default:
		return 0, false
	}
}

// fraudSignal resolves the fraud decision. A binary flag wins over the
// textual label; the label is only consulted when no flag is present.
func (n normalizer) fraudSignal(raw rawResponse) (bool, error) {
	flag, hasFlag, err := parseFlag(raw.Prediction)
	if err != nil {
		return false, err
	}
	if !hasFlag {
		if flag, hasFlag, err = parseFlag(raw.Classification); err != nil {
			return false, err
		}
	}

	hasLabel := raw.PredictionLabel != nil && *raw.PredictionLabel != ""
	labelFraud := hasLabel && strings.EqualFold(*raw.PredictionLabel, model.FraudLabel)

	switch {
	case hasFlag:
		if hasLabel && labelFraud != flag {
			n.logger.Warn("Classifier flag and label disagree, using flag",
				"flag", flag,
				"label", *raw.PredictionLabel)
		}
		return flag, nil
	case hasLabel:
		return labelFraud, nil
	default:
		return false, errors.Wrap(errInvalidResponse, "no classification signal")
	}
}

// parseFlag reads a 0/1 number or a boolean. Absent and null are not flags.
func parseFlag(raw json.RawMessage) (flag, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, false, nil
	}

	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return b, true, nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return false, false, errors.Wrapf(errInvalidResponse, "unrecognized flag %s", string(raw))
	}
	switch f {
	case 0:
		return false, true, nil
	case 1:
		return true, true, nil
	default:
		return false, false, errors.Wrapf(errInvalidResponse, "flag %v is not binary", f)
	}
}

func confidenceTier(raw json.RawMessage) (model.Confidence, bool) {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return "", false
	}
	return model.ParseConfidence(s)
}

// applicationError reports a business error carried in a success body.
func applicationError(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		if s == "" {
			return "", false
		}
		return s, true
	}
	return string(raw), true
}

func (n normalizer) timestamp(s string) time.Time {
	if s == "" {
		return n.now()
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	n.logger.Debug("Unparsable classifier timestamp, using local time", "timestamp", s)
	return n.now()
}

// validationDetail extracts a message from a 400/422 body. It understands a
// plain {"detail": "..."} and a list of {"msg": "..."} items.
func validationDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var s string
	if json.Unmarshal(payload.Detail, &s) == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(payload.Detail, &items) != nil {
		return ""
	}
	msgs := make([]string, 0, len(items))
	for _, it := range items {
		if it.Msg != "" {
			msgs = append(msgs, it.Msg)
		}
	}
	return strings.Join(msgs, "; ")
}
