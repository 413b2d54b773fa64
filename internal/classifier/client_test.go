package classifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/fraudwatch/internal/catalog"
	"github.com/Veraticus/fraudwatch/internal/model"
)

const testBaseURL = "http://classifier.test"

// fakeTimer fires immediately and records every requested delay.
type fakeTimer struct {
	delays []time.Duration
	mu     sync.Mutex
}

func (f *fakeTimer) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	f.delays = append(f.delays, d)
	f.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func (f *fakeTimer) Delays() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.delays...)
}

func newTestClient(t *testing.T, cfg Config, timer Timer) *Client {
	t.Helper()
	if cfg.BaseURL == "" {
		cfg.BaseURL = testBaseURL
	}
	c, err := New(cfg, WithTimer(timer), WithClock(func() time.Time {
		return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	}))
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{BaseURL: testBaseURL, Variant: "other"})
	require.Error(t, err)

	_, err = New(Config{BaseURL: testBaseURL, Variant: VariantManual})
	require.Error(t, err)

	c, err := New(Config{BaseURL: testBaseURL + "/"})
	require.NoError(t, err)
	assert.Equal(t, VariantDashboard, c.Variant())
	assert.Equal(t, testBaseURL+"/predict", c.URL())

	c, err = New(Config{BaseURL: testBaseURL, Variant: VariantManual, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, testBaseURL+"/api/v1/classify", c.URL())
}

func TestClassify_ColdStartRetries(t *testing.T) {
	defer gock.Off()

	example, err := catalog.Default()
	require.NoError(t, err)
	payload, err := example.Fraud(0)
	require.NoError(t, err)

	// Every attempt must carry the same body.
	const retries = 3
	gock.New(testBaseURL).
		Post("/predict").
		JSON(payload).
		Times(retries).
		Reply(503)
	gock.New(testBaseURL).
		Post("/predict").
		JSON(payload).
		Reply(200).
		JSON(map[string]any{"prediction": 1, "probability_fraud": 0.97})

	timer := &fakeTimer{}
	c := newTestClient(t, Config{}, timer)

	var notified []uint

	result, err := c.ClassifyNotify(context.Background(), payload, func(attempt uint) {
		notified = append(notified, attempt)
	})
	require.NoError(t, err)

	assert.True(t, result.Fraud)
	assert.InDelta(t, 0.97, result.FraudScore, 1e-9)
	assert.Equal(t, []uint{1, 2, 3}, notified)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}, timer.Delays())
	assert.True(t, gock.IsDone())
}

func TestClassify_MaxAttemptsExhausted(t *testing.T) {
	defer gock.Off()

	gock.New(testBaseURL).
		Post("/predict").
		Times(3).
		Reply(503)

	timer := &fakeTimer{}
	c := newTestClient(t, Config{MaxAttempts: 3}, timer)

	var notified []uint
	_, err := c.ClassifyNotify(context.Background(), catalog.LegitTemplate, func(attempt uint) {
		notified = append(notified, attempt)
	})
	require.Error(t, err)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindServer, cerr.Kind)
	assert.Equal(t, MsgServer, cerr.Message)
	assert.Equal(t, 503, cerr.Status)
	assert.Equal(t, []uint{1, 2}, notified)
	assert.Len(t, timer.Delays(), 2)
	assert.True(t, gock.IsDone())
}

// blockingTimer never fires, so only cancellation ends the wait.
type blockingTimer struct {
	waiting chan struct{}
	once    sync.Once
}

func (b *blockingTimer) After(time.Duration) <-chan time.Time {
	b.once.Do(func() { close(b.waiting) })
	return make(chan time.Time)
}

func TestClassify_CanceledDuringColdStart(t *testing.T) {
	defer gock.Off()

	gock.New(testBaseURL).
		Post("/predict").
		Persist().
		Reply(503)

	timer := &blockingTimer{waiting: make(chan struct{})}
	c := newTestClient(t, Config{}, timer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Classify(ctx, catalog.LegitTemplate)
		done <- err
	}()

	select {
	case <-timer.waiting:
	case <-time.After(5 * time.Second):
		t.Fatal("client never started waiting for a retry")
	}
	cancel()

	select {
	case err := <-done:
		assert.Equal(t, KindCanceled, KindOf(err))
		assert.Equal(t, MsgCanceled, Message(err))
	case <-time.After(5 * time.Second):
		t.Fatal("classification did not stop after cancel")
	}
}

func TestClassify_AlreadyCanceled(t *testing.T) {
	defer gock.Off()

	c := newTestClient(t, Config{}, &fakeTimer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Classify(ctx, catalog.LegitTemplate)
	assert.Equal(t, KindCanceled, KindOf(err))
}

func TestClassify_ErrorStatuses(t *testing.T) {
	tests := []struct {
		body    any
		name    string
		kind    Kind
		message string
		status  int
	}{
		{name: "unauthorized", status: 401, kind: KindAuth, message: "API Key inválida"},
		{name: "rate limited", status: 429, kind: KindRateLimit, message: "Muitas requisições. Tente novamente mais tarde."},
		{name: "internal error", status: 500, kind: KindServer, message: "Erro no servidor. Tente novamente mais tarde."},
		{name: "bad gateway", status: 502, kind: KindServer, message: "Erro no servidor. Tente novamente mais tarde."},
		{
			name:    "bad request with detail",
			status:  400,
			body:    map[string]any{"detail": "Amount must be positive"},
			kind:    KindValidation,
			message: "Amount must be positive",
		},
		{name: "bad request without detail", status: 400, kind: KindValidation, message: "Dados inválidos"},
		{
			name:   "unprocessable entity",
			status: 422,
			body: map[string]any{"detail": []map[string]any{
				{"loc": []string{"body", "hour"}, "msg": "hour must be <= 23"},
				{"loc": []string{"body", "amount"}, "msg": "amount must be > 0"},
			}},
			kind:    KindValidation,
			message: "hour must be <= 23; amount must be > 0",
		},
		{name: "not found", status: 404, kind: KindUnexpected, message: "Erro ao processar requisição"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()

			mock := gock.New(testBaseURL).Post("/predict").Reply(tt.status)
			if tt.body != nil {
				mock.JSON(tt.body)
			}

			c := newTestClient(t, Config{}, &fakeTimer{})
			_, err := c.Classify(context.Background(), catalog.LegitTemplate)

			var cerr *Error
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.kind, cerr.Kind)
			assert.Equal(t, tt.message, cerr.Message)
			assert.Equal(t, tt.status, cerr.Status)
		})
	}
}

func TestClassify_NetworkError(t *testing.T) {
	defer gock.Off()

	gock.New(testBaseURL).
		Post("/predict").
		ReplyError(errors.New("connection refused"))

	c := newTestClient(t, Config{}, &fakeTimer{})
	_, err := c.Classify(context.Background(), catalog.LegitTemplate)

	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Equal(t, "Sem conexão com o servidor. Verifique sua internet.", Message(err))
}

func TestClassify_ApplicationError(t *testing.T) {
	defer gock.Off()

	gock.New(testBaseURL).
		Post("/predict").
		Reply(200).
		JSON(map[string]any{"error": "Modelo não carregado"})

	c := newTestClient(t, Config{}, &fakeTimer{})
	_, err := c.Classify(context.Background(), catalog.LegitTemplate)

	assert.Equal(t, KindApplication, KindOf(err))
	assert.Equal(t, "Modelo não carregado", Message(err))
}

func TestClassify_InvalidResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"score out of range", `{"prediction": 1, "probability_fraud": 1.5}`},
		{"missing score", `{"prediction": 0}`},
		{"missing signal", `{"probability_fraud": 0.2}`},
		{"non binary flag", `{"prediction": 2, "probability_fraud": 0.2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()

			gock.New(testBaseURL).Post("/predict").Reply(200).BodyString(tt.body)

			c := newTestClient(t, Config{}, &fakeTimer{})
			_, err := c.Classify(context.Background(), catalog.LegitTemplate)

			assert.Equal(t, KindServer, KindOf(err))
			assert.Equal(t, "Resposta inválida do servidor", Message(err))
		})
	}
}

func TestClassify_ManualVariantSendsAPIKey(t *testing.T) {
	defer gock.Off()

	gock.New(testBaseURL).
		Post("/api/v1/classify").
		MatchHeader("X-API-Key", "^secret$").
		MatchHeader("Content-Type", "application/json").
		Reply(200).
		JSON(map[string]any{
			"transaction_id":   "txn_123",
			"classification":   0,
			"prediction_label": "Legítimo",
			"fraud_score":      0.12,
			"confidence":       "high",
			"timestamp":        "2024-05-06T07:08:09Z",
			"details": map[string]any{
				"legitimate_probability": 0.88,
				"fraud_probability":      0.12,
				"risk_level":             "low",
			},
		})

	c := newTestClient(t, Config{Variant: VariantManual, APIKey: "secret"}, &fakeTimer{})
	payload := model.ManualPayload{
		Amount:           50,
		Hour:             12,
		DayOfWeek:        3,
		MerchantCategory: model.MerchantGrocery,
		Location:         model.Location{Country: "BR"},
	}

	result, err := c.Classify(context.Background(), payload)
	require.NoError(t, err)

	assert.False(t, result.Fraud)
	assert.Equal(t, "txn_123", result.TransactionID)
	assert.Equal(t, "Legítimo", result.Label)
	assert.Equal(t, model.ConfidenceHigh, result.Confidence)
	assert.Equal(t, model.RiskLow, result.RiskLevel)
	assert.InDelta(t, 0.88, result.LegitimateProbability, 1e-9)
	assert.Equal(t, time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC), result.Timestamp)
	assert.True(t, gock.IsDone())
}

func TestClassify_SendsFlatFeatureVector(t *testing.T) {
	defer gock.Off()

	gock.New(testBaseURL).
		Post("/predict").
		BodyString(`^\{"Time":18,"V1":1.1666,.*"V28":-0.0114,"Amount":2.28\}$`).
		Reply(200).
		JSON(map[string]any{"prediction": 0, "probability_fraud": 0.01})

	c := newTestClient(t, Config{}, &fakeTimer{})
	result, err := c.Classify(context.Background(), catalog.LegitTemplate)
	require.NoError(t, err)
	assert.False(t, result.Fraud)
	assert.Equal(t, model.LegitimateLabel, result.Label)
}

func TestClassify_ThrottleWaitsForToken(t *testing.T) {
	defer gock.Off()

	gock.New(testBaseURL).
		Post("/predict").
		Times(2).
		Reply(200).
		JSON(map[string]any{"prediction": 0, "probability_fraud": 0.05})

	c := newTestClient(t, Config{RequestsPerMinute: 1}, &fakeTimer{})

	_, err := c.Classify(context.Background(), model.FeaturePayload{Amount: 1})
	require.NoError(t, err)

	// The next token is a minute away, past this deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Classify(ctx, model.FeaturePayload{Amount: 1})
	require.Error(t, err)
	assert.Equal(t, KindCanceled, KindOf(err))
	assert.False(t, gock.IsDone(), "second request never sent")
}
