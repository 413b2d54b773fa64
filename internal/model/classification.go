// Package model defines the core domain models used throughout the application.
package model

import "time"

// Confidence is the coarse certainty tier of a classification.
type Confidence string

// Confidence tiers.
const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// RiskLevel is the display bucket derived from the fraud score.
type RiskLevel string

// Risk levels.
const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// FraudLabel is the textual label the classifier uses for a fraudulent verdict.
const FraudLabel = "Fraude"

// LegitimateLabel is the textual label for a legitimate verdict.
const LegitimateLabel = "Legítimo"

// ClassificationResult is the normalized outcome of a classification request.
type ClassificationResult struct {
	Timestamp             time.Time  `json:"timestamp"`
	TransactionID         string     `json:"transaction_id,omitempty"`
	Label                 string     `json:"label"`
	Confidence            Confidence `json:"confidence"`
	RiskLevel             RiskLevel  `json:"risk_level"`
	FraudScore            float64    `json:"fraud_score"`
	LegitimateProbability float64    `json:"legitimate_probability"`
	Fraud                 bool       `json:"fraud"`
}

// Classification returns the binary flag: 1 for fraud, 0 for legitimate.
func (r ClassificationResult) Classification() int {
	if r.Fraud {
		return 1
	}
	return 0
}

// ConfidenceFor derives the confidence tier from a fraud score.
// Scores near either extreme are high confidence, scores near 0.5 are low.
func ConfidenceFor(score float64) Confidence {
	switch {
	case score > 0.8 || score < 0.2:
		return ConfidenceHigh
	case score > 0.6 || score < 0.4:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// RiskLevelFor derives the risk bucket from a fraud score.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score >= 0.8:
		return RiskCritical
	case score >= 0.6:
		return RiskHigh
	case score >= 0.4:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ParseConfidence returns the tier named by s, if recognized.
func ParseConfidence(s string) (Confidence, bool) {
	switch c := Confidence(s); c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return c, true
	}
	return "", false
}

// ParseRiskLevel returns the risk level named by s, if recognized.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch r := RiskLevel(s); r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return r, true
	}
	return "", false
}
