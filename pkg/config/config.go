// Package config holds the single configuration record every fabric
// collaborator is constructed from: one Config struct hoisted to the
// top level since its fields are shared by the consensus engine, the
// bridge coordinator, the streaming layer, and the ordering subsystem
// alike.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the recognized configuration surface for every component.
type Config struct {
	// RAFT consensus engine
	ElectionTimeoutMinMs int `yaml:"election_timeout_min_ms"`
	ElectionTimeoutMaxMs int `yaml:"election_timeout_max_ms"`
	HeartbeatIntervalMs  int `yaml:"heartbeat_interval_ms"`

	// worker pool shared by the bridge and ordering subsystems' async work
	WorkerPoolSize int `yaml:"worker_pool_size"`

	// streaming fan-out
	SubscriptionQueueCapacity int `yaml:"subscription_queue_capacity"`

	// ML ordering & online learner
	TrainingBufferCapacity    int     `yaml:"training_buffer_capacity"`
	ModelUpdateIntervalBlocks uint64  `yaml:"model_update_interval_blocks"`
	AcceptAccuracyThreshold   float64 `yaml:"accept_accuracy_threshold"`
	ConfidenceVarianceDivisor float64 `yaml:"confidence_variance_divisor"`
	InitialLearningRate       float64 `yaml:"initial_learning_rate"`

	// bridge oracle coordinator
	BridgeDefaultTimeoutSeconds int64 `yaml:"bridge_default_timeout_seconds"`
}

// Default returns sensible out-of-the-box defaults, tuned for LAN/edge
// deployments rather than WAN ones.
func Default() Config {
	return Config{
		ElectionTimeoutMinMs:        150,
		ElectionTimeoutMaxMs:        300,
		HeartbeatIntervalMs:         50,
		WorkerPoolSize:              50,
		SubscriptionQueueCapacity:   10000,
		TrainingBufferCapacity:      100000,
		ModelUpdateIntervalBlocks:   1000,
		AcceptAccuracyThreshold:     0.9,
		ConfidenceVarianceDivisor:   1000,
		InitialLearningRate:         0.01,
		BridgeDefaultTimeoutSeconds: 3600,
	}
}

// ElectionTimeoutRange returns the randomized-timeout bounds as durations.
func (c Config) ElectionTimeoutRange() (min, max time.Duration) {
	return time.Duration(c.ElectionTimeoutMinMs) * time.Millisecond,
		time.Duration(c.ElectionTimeoutMaxMs) * time.Millisecond
}

// HeartbeatInterval is the leader's AppendEntries heartbeat cadence.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMs) * time.Millisecond
}

// LoadYAML loads and merges a YAML config file over the defaults.
func LoadYAML(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
