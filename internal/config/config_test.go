package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err, "missing file falls back to defaults")

	assert.Equal(t, "scamlens-investigations", cfg.Temporal.TaskQueue)
	assert.Equal(t, 60*time.Second, cfg.Temporal.RunTimeout)
	assert.Equal(t, 55*time.Second, cfg.Temporal.SoftTimeLimit)
	assert.Equal(t, 5*time.Second, cfg.LLM.Deadline)
	assert.Equal(t, DefaultHeuristic(), cfg.Heuristic)
	assert.False(t, cfg.Router.AgentDisabled)
	assert.Equal(t, 24*time.Hour, cfg.Router.DecisionRetention)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scamlens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
router:
  agent_disabled: true
heuristic:
  high_threshold: 80
llm:
  deadline: 3s
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Router.AgentDisabled)
	assert.Equal(t, float64(80), cfg.Heuristic.HighThreshold)
	assert.Equal(t, 3*time.Second, cfg.LLM.Deadline)
	// Untouched keys keep defaults.
	assert.Equal(t, float64(40), cfg.Heuristic.MediumThreshold)
}

func TestValidateRejectsInvertedLimits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scamlens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
temporal:
  run_timeout: 10s
  soft_time_limit: 20s
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	cfg.Heuristic.MediumThreshold = 90
	assert.Error(t, cfg.Validate())
}
