package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWith(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.ListenAddr)
	assert.Equal(t, QueueBackendRedis, cfg.QueueBackend)
	assert.Equal(t, "job_queue", cfg.QueueKey)
	assert.Equal(t, 1, cfg.WorkerCount)
	assert.Equal(t, 5*time.Second, cfg.DequeueTimeout)
	assert.Equal(t, time.Second, cfg.WorkerRetryBackoff)
	assert.Equal(t, 16, cfg.BroadcastBuffer)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, time.Second, cfg.ExecutorMinDelay)
	assert.Equal(t, 10*time.Second, cfg.ExecutorMaxDelay)
	assert.Equal(t, "fail", cfg.ExecutorFailMarker)
	assert.True(t, cfg.DBAutoMigrate)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv(KeyListenAddr, "127.0.0.1:9000")
	t.Setenv(KeyQueueBackend, "MEMORY")
	t.Setenv(KeyWorkerCount, "3")
	t.Setenv(KeyDequeueTimeout, "250ms")
	t.Setenv(KeyExecutorFailMarker, "boom")
	t.Setenv(KeyDBAutoMigrate, "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, QueueBackendMemory, cfg.QueueBackend)
	assert.Equal(t, 3, cfg.WorkerCount)
	assert.Equal(t, 250*time.Millisecond, cfg.DequeueTimeout)
	assert.Equal(t, "boom", cfg.ExecutorFailMarker)
	assert.False(t, cfg.DBAutoMigrate)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "jobscheduler.yaml")
	require.NoError(t, os.WriteFile(file, []byte("QUEUE_KEY: other_queue\nWORKER_COUNT: 4\n"), 0o600))

	t.Setenv(KeyConfigFile, file)
	t.Setenv(KeyWorkerCount, "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "other_queue", cfg.QueueKey)
	assert.Equal(t, 2, cfg.WorkerCount, "environment wins over the file")
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv(KeyConfigFile, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadWith(viper.New())
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad backend", mutate: func(c *Config) { c.QueueBackend = "kafka" }, wantErr: KeyQueueBackend},
		{name: "negative workers", mutate: func(c *Config) { c.WorkerCount = -1 }, wantErr: KeyWorkerCount},
		{name: "zero dequeue timeout", mutate: func(c *Config) { c.DequeueTimeout = 0 }, wantErr: KeyDequeueTimeout},
		{name: "zero buffer", mutate: func(c *Config) { c.BroadcastBuffer = 0 }, wantErr: KeyBroadcastBuffer},
		{name: "zero heartbeat", mutate: func(c *Config) { c.HeartbeatInterval = 0 }, wantErr: KeyHeartbeatInterval},
		{name: "inverted delays", mutate: func(c *Config) { c.ExecutorMaxDelay = 0 }, wantErr: "executor delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWorkerIDs(t *testing.T) {
	cfg := &Config{WorkerCount: 1, WorkerID: "worker-1"}
	ids, err := cfg.WorkerIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"worker-1"}, ids)

	cfg = &Config{WorkerCount: 2, WorkerID: "node"}
	ids, err = cfg.WorkerIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"node-1", "node-2"}, ids)

	cfg = &Config{WorkerCount: 3}
	ids, err = cfg.WorkerIDs()
	require.NoError(t, err)
	require.Len(t, ids, 3)
	seen := map[string]bool{}
	for _, id := range ids {
		assert.True(t, strings.HasPrefix(id, "worker-"))
		assert.Len(t, id, len("worker-")+8)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
