package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/fabric/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPopulatesAllFields(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, 150, cfg.ElectionTimeoutMinMs)
	assert.Equal(t, 300, cfg.ElectionTimeoutMaxMs)
	assert.Equal(t, 50, cfg.HeartbeatIntervalMs)
	assert.Equal(t, 50, cfg.WorkerPoolSize)
	assert.Equal(t, 10000, cfg.SubscriptionQueueCapacity)
	assert.Equal(t, 100000, cfg.TrainingBufferCapacity)
	assert.Equal(t, uint64(1000), cfg.ModelUpdateIntervalBlocks)
	assert.Equal(t, 0.9, cfg.AcceptAccuracyThreshold)
	assert.Equal(t, 1000.0, cfg.ConfidenceVarianceDivisor)
	assert.Equal(t, 0.01, cfg.InitialLearningRate)
	assert.Equal(t, int64(3600), cfg.BridgeDefaultTimeoutSeconds)
}

func TestElectionTimeoutRange(t *testing.T) {
	cfg := config.Default()
	min, max := cfg.ElectionTimeoutRange()
	assert.Equal(t, 150*time.Millisecond, min)
	assert.Equal(t, 300*time.Millisecond, max)
}

func TestHeartbeatInterval(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, 50*time.Millisecond, cfg.HeartbeatInterval())
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fabric.yaml")
	content := `
election_timeout_min_ms: 200
worker_pool_size: 10
accept_accuracy_threshold: 0.75
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.LoadYAML(path)
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.ElectionTimeoutMinMs)
	assert.Equal(t, 10, cfg.WorkerPoolSize)
	assert.Equal(t, 0.75, cfg.AcceptAccuracyThreshold)
	// untouched fields retain their defaults
	assert.Equal(t, 300, cfg.ElectionTimeoutMaxMs)
}

func TestLoadYAMLMissingFileReturnsDefaultsAndError(t *testing.T) {
	cfg, err := config.LoadYAML("/nonexistent/path/fabric.yaml")
	require.Error(t, err)
	assert.Equal(t, config.Default(), cfg)
}
