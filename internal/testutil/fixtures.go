package testutil

import (
	"time"

	"github.com/Veraticus/fraudwatch/internal/model"
)

// FixtureTime is the submission time used by entry fixtures.
var FixtureTime = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

// FraudResult returns a fraud verdict with derived tiers.
func FraudResult(score float64) model.ClassificationResult {
	return model.ClassificationResult{
		Fraud:                 true,
		FraudScore:            score,
		LegitimateProbability: 1 - score,
		Label:                 model.FraudLabel,
		Confidence:            model.ConfidenceFor(score),
		RiskLevel:             model.RiskLevelFor(score),
		Timestamp:             FixtureTime,
	}
}

// LegitResult returns a legitimate verdict with derived tiers.
func LegitResult(score float64) model.ClassificationResult {
	r := FraudResult(score)
	r.Fraud = false
	r.Label = model.LegitimateLabel
	return r
}

// FlaggedEntry returns a resolved fraud entry.
func FlaggedEntry(id string, amount, score float64) model.FeedEntry {
	result := FraudResult(score)
	return model.FeedEntry{
		ID:            id,
		Source:        model.SourceFraud,
		Status:        model.StatusFlagged,
		DisplayAmount: amount,
		SubmittedAt:   FixtureTime,
		ResolvedAt:    FixtureTime.Add(time.Second),
		Result:        &result,
	}
}

// ApprovedEntry returns a resolved legitimate entry.
func ApprovedEntry(id string, amount, score float64) model.FeedEntry {
	result := LegitResult(score)
	return model.FeedEntry{
		ID:            id,
		Source:        model.SourceLegit,
		Status:        model.StatusApproved,
		DisplayAmount: amount,
		SubmittedAt:   FixtureTime,
		ResolvedAt:    FixtureTime.Add(time.Second),
		Result:        &result,
	}
}
