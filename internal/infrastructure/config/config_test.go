package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eshaffer321/receipt-reconciler/internal/domain/matcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault_MatchesDomainDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, matcher.DefaultConfig(), cfg.MatcherConfig())
	assert.True(t, cfg.Learning.Enabled)
	assert.Equal(t, "reconciler.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 8085, cfg.API.Port)
	assert.Equal(t, 10000, cfg.Classifier.CacheSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
matching:
  auto_accept_threshold: 0.9
  time_of_day_window: 90m
engine:
  workers: 4
storage:
  database_path: custom.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.9, cfg.Matching.AutoAcceptThreshold)
	assert.Equal(t, 90*time.Minute, cfg.Matching.TimeOfDayWindow)
	assert.Equal(t, 0.60, cfg.Matching.ReviewThreshold, "unset keys keep defaults")
	assert.Equal(t, 0.40, cfg.Matching.Weights.Amount)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, "custom.db", cfg.Storage.DatabasePath)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_RECONCILER_DB", "from-env.db")
	path := writeConfig(t, "storage:\n  database_path: ${TEST_RECONCILER_DB}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.Storage.DatabasePath)
}

func TestLoad_RejectsInvalidThresholds(t *testing.T) {
	path := writeConfig(t, `
matching:
  auto_accept_threshold: 0.5
  review_threshold: 0.7
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, matcher.ErrInvalidConfig)
}

func TestLoad_RejectsBadWeights(t *testing.T) {
	path := writeConfig(t, `
matching:
  weights:
    amount: 0.9
`)

	_, err := Load(path)
	assert.ErrorIs(t, err, matcher.ErrInvalidConfig)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "matching: [unterminated")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RECONCILER_DB_PATH", "test.db")
	t.Setenv("RECONCILER_WORKERS", "3")
	t.Setenv("RECONCILER_LEARNING", "false")
	t.Setenv("RECONCILER_RULES_PATH", "rules.yaml")
	t.Setenv("API_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := LoadFromEnv()
	assert.Equal(t, "test.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 3, cfg.Engine.Workers)
	assert.False(t, cfg.Learning.Enabled)
	assert.Equal(t, "rules.yaml", cfg.Classifier.RulesPath)
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
}

func TestLoadFromEnv_IgnoresUnparseable(t *testing.T) {
	t.Setenv("RECONCILER_WORKERS", "many")
	t.Setenv("RECONCILER_LEARNING", "maybe")

	cfg := LoadFromEnv()
	assert.Equal(t, 0, cfg.Engine.Workers)
	assert.True(t, cfg.Learning.Enabled)
}

func TestLoadOrEnv_FallsBackToEnv(t *testing.T) {
	t.Setenv("RECONCILER_DB_PATH", "fallback.db")

	cfg := LoadOrEnv_WithPath(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, "fallback.db", cfg.Storage.DatabasePath)
}

func TestLoadOrEnv_PrefersFile(t *testing.T) {
	t.Setenv("RECONCILER_DB_PATH", "fallback.db")
	path := writeConfig(t, "storage:\n  database_path: file.db\n")

	cfg := LoadOrEnv_WithPath(path)
	assert.Equal(t, "file.db", cfg.Storage.DatabasePath)
}

func TestEngineConfig(t *testing.T) {
	cfg := Default()
	cfg.Engine.Workers = 2
	cfg.Learning.Enabled = false
	cfg.Learning.SmoothingK = 3

	ec := cfg.EngineConfig()
	assert.Equal(t, 2, ec.Workers)
	assert.False(t, ec.Learning)
	assert.Equal(t, 3.0, ec.Merchant.SmoothingK)
	assert.Equal(t, cfg.MatcherConfig(), ec.Matcher)
}

func TestRules_BuiltinWhenUnset(t *testing.T) {
	cfg := Default()
	table, err := cfg.Rules()
	require.NoError(t, err)
	assert.NotEmpty(t, table.Rules)
}

func TestRules_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: test-1
rules:
  - pattern: bakery
    category: Bakeries
    weight: 1
`), 0644))

	cfg := Default()
	cfg.Classifier.RulesPath = path
	table, err := cfg.Rules()
	require.NoError(t, err)
	assert.Equal(t, "test-1", table.Version)
	require.Len(t, table.Rules, 1)
	assert.Equal(t, "Bakeries", table.Rules[0].Category)
}
