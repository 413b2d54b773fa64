package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/fraudwatch/internal/classifier"
	"github.com/Veraticus/fraudwatch/internal/common"
	"github.com/Veraticus/fraudwatch/internal/feed"
	"github.com/Veraticus/fraudwatch/internal/model"
	"github.com/Veraticus/fraudwatch/internal/testutil"
)

func TestPrintFeed(t *testing.T) {
	f := feed.New()
	legit := f.Submit(model.SourceLegit, 120.5)
	fraud := f.Submit(model.SourceFraud, 529)
	require.NoError(t, f.Resolve(legit, testutil.LegitResult(0.02)))
	require.NoError(t, f.Resolve(fraud, testutil.FraudResult(0.97)))

	var out bytes.Buffer
	printFeed(&out, f)

	text := out.String()
	assert.Contains(t, text, "[APROVADA] Transação de R$ 120.50.")
	assert.Contains(t, text, "[ALERTA] Transação de R$ 529.00. Prob: 97.00%")
	assert.Contains(t, text, "critical")
	assert.Contains(t, text, "Total 2 · aprovadas 1 · alertas 1 · erros 0")
}

func TestPrintVerdict(t *testing.T) {
	result := testutil.FraudResult(0.91)
	result.TransactionID = "txn-1"
	entry := model.FeedEntry{
		Source:        model.SourceManual,
		Status:        model.StatusFlagged,
		DisplayAmount: 250.75,
		Result:        &result,
	}

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	require.NoError(t, printVerdict(cmd, entry))
	assert.Contains(t, out.String(), "Prob. fraude: 91.00%")
	assert.Contains(t, out.String(), "txn-1")
}

func TestPrintVerdict_Errored(t *testing.T) {
	entry := model.FeedEntry{
		Status:        model.StatusErrored,
		DisplayAmount: 10,
		Error:         classifier.MsgAuth,
		ErrorKind:     string(classifier.KindAuth),
	}

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	err := printVerdict(cmd, entry)
	require.Error(t, err)
	assert.Equal(t, "API Key inválida", common.Describe(err))
}

func TestPrintVerdict_RetryableHint(t *testing.T) {
	entry := model.FeedEntry{
		Status:        model.StatusErrored,
		DisplayAmount: 10,
		Error:         classifier.MsgNetwork,
		ErrorKind:     string(classifier.KindNetwork),
	}

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	err := printVerdict(cmd, entry)
	require.Error(t, err)
	assert.Equal(t, classifier.MsgNetwork+" Repita o comando para reenviar a transação.", common.Describe(err))
	assert.Equal(t, classifier.KindNetwork, classifier.KindOf(err))
}

func TestWriteHistory(t *testing.T) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	require.NoError(t, writeHistory(cmd, []model.FeedEntry{
		testutil.FlaggedEntry("a", 529, 0.97),
		testutil.ApprovedEntry("b", 12.3, 0.1),
	}))

	text := out.String()
	assert.Contains(t, text, "Submitted")
	assert.Contains(t, text, "R$ 529.00")
	assert.Contains(t, text, "97.00%")
	assert.Contains(t, text, "approved")
}

func TestSimulateCmd_RejectsEmptyBurst(t *testing.T) {
	cmd := simulateCmd()
	cmd.SetArgs([]string{"--legit", "0", "--fraud", "0"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to simulate")
}

func TestTrackProgress_CountsSettledEntriesWhenEventsDrop(t *testing.T) {
	f := feed.New()
	events, cancel := f.Subscribe(2)

	a := f.Submit(model.SourceLegit, 10)
	b := f.Submit(model.SourceFraud, 529)
	// The buffer is full; these events are dropped.
	for attempt := uint(1); attempt <= 5; attempt++ {
		require.NoError(t, f.MarkRetrying(a, attempt))
	}
	require.NoError(t, f.Resolve(a, testutil.LegitResult(0.02)))
	require.NoError(t, f.Fail(b, errors.New("boom")))
	cancel()

	bar := progressbar.NewOptions(2, progressbar.OptionSetWriter(io.Discard))
	trackProgress(events, f, bar)

	assert.EqualValues(t, 2, bar.State().CurrentNum)
}
