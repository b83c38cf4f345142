package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return &cfg
}

func TestLoad_Defaults(t *testing.T) {
	// Load from an empty directory so only defaults apply.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5004, cfg.Server.StreamingPort)
	assert.Equal(t, 8080, cfg.Server.APIPort)
	assert.True(t, cfg.SSDP.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.SSDP.AnnounceInterval)
	assert.Equal(t, "12345678", cfg.Tuner.DeviceID)
	assert.Equal(t, 4, cfg.Tuner.TunerCount)
	assert.Equal(t, 5, cfg.Streams.MaxConcurrent)
	assert.Equal(t, 3, cfg.Streams.MaxConcurrentPerChannel)
	assert.Equal(t, 10*time.Second, cfg.Streams.GracePeriod)
	assert.Equal(t, 60*time.Second, cfg.EPG.FetchTimeout)
	assert.Equal(t, 1000, cfg.EPG.BatchSize)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  streaming_port: 5005
tuner:
  device_id: abcdef12
  friendly_name: Lounge Tuner
streams:
  max_concurrent: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5005, cfg.Server.StreamingPort)
	// Device IDs are uppercased on load.
	assert.Equal(t, "ABCDEF12", cfg.Tuner.DeviceID)
	assert.Equal(t, "Lounge Tuner", cfg.Tuner.FriendlyName)
	assert.Equal(t, 2, cfg.Streams.MaxConcurrent)
	// Untouched sections keep defaults.
	assert.Equal(t, 8080, cfg.Server.APIPort)
}

func TestLoad_UnknownSectionRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
sever:
  streaming_port: 5005
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown configuration section")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "streaming port out of range",
			mutate:  func(c *Config) { c.Server.StreamingPort = 0 },
			wantErr: "server.streaming_port",
		},
		{
			name: "ports collide",
			mutate: func(c *Config) {
				c.Server.StreamingPort = 8080
			},
			wantErr: "must differ",
		},
		{
			name:    "bad device id length",
			mutate:  func(c *Config) { c.Tuner.DeviceID = "ABC" },
			wantErr: "tuner.device_id",
		},
		{
			name:    "bad device id characters",
			mutate:  func(c *Config) { c.Tuner.DeviceID = "ZZZZZZZZ" },
			wantErr: "tuner.device_id",
		},
		{
			name:    "zero max concurrent",
			mutate:  func(c *Config) { c.Streams.MaxConcurrent = 0 },
			wantErr: "streams.max_concurrent",
		},
		{
			name:    "unknown database driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: "database.driver",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "announce interval too small",
			mutate:  func(c *Config) { c.SSDP.AnnounceInterval = time.Second },
			wantErr: "ssdp.announce_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
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

func TestTunerConfig_DeviceUUID(t *testing.T) {
	c := TunerConfig{DeviceID: "ABCDEF12"}
	assert.Equal(t, "2f402f80-da50-11e1-9b23-abcdef120000", c.DeviceUUID())
}

func TestServerConfig_Addresses(t *testing.T) {
	c := ServerConfig{Host: "0.0.0.0", StreamingPort: 5004, APIPort: 8080}
	assert.Equal(t, "0.0.0.0:5004", c.StreamingAddress())
	assert.Equal(t, "0.0.0.0:8080", c.APIAddress())
}
