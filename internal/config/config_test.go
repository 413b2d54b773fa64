package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/fraudwatch/internal/classifier"
	"github.com/Veraticus/fraudwatch/internal/common"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIBaseURL, cfg.API.BaseURL)
	assert.Equal(t, DefaultAPIKey, cfg.API.Key)
	assert.Equal(t, DefaultPredictBaseURL, cfg.API.PredictBaseURL)
	assert.Equal(t, 10*time.Second, cfg.Client.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Client.RetryDelay)
	assert.Zero(t, cfg.Client.MaxAttempts)
	assert.InDelta(t, 100000.0, cfg.Request.MaxAmount, 1e-9)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NotContains(t, cfg.Database.Path, "$HOME")
}

func TestLoad_BareEnvironmentNames(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.test")
	t.Setenv("API_KEY", "secret")

	cfg, err := Load(newViper(t))
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.test", cfg.API.BaseURL)
	assert.Equal(t, "secret", cfg.API.Key)
}

func TestLoad_PrefixedEnvironmentWins(t *testing.T) {
	t.Setenv("API_KEY", "bare")
	t.Setenv("FRAUDWATCH_API_KEY", "prefixed")
	t.Setenv("FRAUDWATCH_CLIENT_MAX_ATTEMPTS", "4")

	cfg, err := Load(newViper(t))
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.API.Key)
	assert.Equal(t, uint(4), cfg.Client.MaxAttempts)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		val     any
		missing bool
	}{
		{"negative attempts", "client.max_attempts", -1, false},
		{"negative rate", "client.requests_per_minute", -5, false},
		{"empty predict url", "api.predict_base_url", "", true},
		{"empty api url", "api.base_url", "", true},
		{"negative timeout", "session.submission_timeout", -time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper(t)
			v.Set(tt.key, tt.val)
			_, err := Load(v)
			require.Error(t, err)
			assert.Equal(t, tt.missing, errors.Is(err, common.ErrMissingConfig))
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  predict_base_url: http://predict.local
client:
  retry_delay: 500ms
logging:
  level: debug
`), 0o600))

	v := newViper(t)
	require.NoError(t, ReadFile(v, path))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "http://predict.local", cfg.API.PredictBaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Client.RetryDelay)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestReadFile_MissingSearchIsNotAnError(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, ReadFile(newViper(t), ""))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("FRAUDWATCH_TEST_ONLY=from-file\nAPI_KEY=from-file\n"), 0o600))
	t.Setenv("API_KEY", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("FRAUDWATCH_TEST_ONLY") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("FRAUDWATCH_TEST_ONLY"))
	assert.Equal(t, "from-env", os.Getenv("API_KEY"))
}

func TestClientConfigs(t *testing.T) {
	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	dash := cfg.DashboardClient()
	assert.Equal(t, classifier.VariantDashboard, dash.Variant)
	assert.Equal(t, DefaultPredictBaseURL, dash.BaseURL)
	assert.Empty(t, dash.APIKey)

	manual := cfg.ManualClient()
	assert.Equal(t, classifier.VariantManual, manual.Variant)
	assert.Equal(t, DefaultAPIBaseURL, manual.BaseURL)
	assert.Equal(t, DefaultAPIKey, manual.APIKey)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "data"), ExpandPath("~/data"))
	assert.Empty(t, ExpandPath(""))

	t.Setenv("FRAUDWATCH_DIR", "/srv/fw")
	assert.Equal(t, "/srv/fw/history.db", ExpandPath("$FRAUDWATCH_DIR/history.db"))
}
