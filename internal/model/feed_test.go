package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeedEntry_Describe(t *testing.T) {
	tests := []struct {
		name  string
		want  string
		entry FeedEntry
	}{
		{
			name:  "pending",
			entry: FeedEntry{Status: StatusPending, DisplayAmount: 12.3},
			want:  "[PENDENTE] Nova Transação de R$ 12.30...",
		},
		{
			name:  "pending while backend wakes up",
			entry: FeedEntry{Status: StatusPending, DisplayAmount: 12.3, Retries: 2},
			want:  "[ACORDANDO API] O servidor gratuito estava dormindo. Tentando novamente...",
		},
		{
			name: "flagged",
			entry: FeedEntry{
				Status:        StatusFlagged,
				DisplayAmount: 529,
				Result:        &ClassificationResult{Fraud: true, FraudScore: 0.97},
			},
			want: "[ALERTA] Transação de R$ 529.00. Prob: 97.00%",
		},
		{
			name:  "approved",
			entry: FeedEntry{Status: StatusApproved, DisplayAmount: 87.5},
			want:  "[APROVADA] Transação de R$ 87.50.",
		},
		{
			name:  "application error shown verbatim",
			entry: FeedEntry{Status: StatusErrored, ErrorKind: ApplicationErrorKind, Error: "Modelo não carregado."},
			want:  "[ERRO] Modelo não carregado.",
		},
		{
			name:  "transport error",
			entry: FeedEntry{Status: StatusErrored, ErrorKind: "auth", Error: "API Key inválida", DisplayAmount: 10},
			want:  "[ERRO API] Falha ao processar R$ 10.00: API Key inválida",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.Describe())
		})
	}
}

func TestFeedEntry_Clone(t *testing.T) {
	original := FeedEntry{ID: "a", Result: &ClassificationResult{FraudScore: 0.5}}
	clone := original.Clone()
	clone.Result.FraudScore = 0.9

	assert.InDelta(t, 0.5, original.Result.FraudScore, 1e-9)
}

func TestFeedStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusApproved.IsTerminal())
	assert.True(t, StatusFlagged.IsTerminal())
	assert.True(t, StatusErrored.IsTerminal())
}
