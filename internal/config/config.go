// Package config provides configuration management for plexbridge using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultStreamingPort           = 5004
	defaultAPIPort                 = 8080
	defaultReadHeaderTimeout       = 10 * time.Second
	defaultShutdownTimeout         = 10 * time.Second
	defaultAnnounceInterval        = 30 * time.Minute
	defaultDiscoveryPort           = 1900
	defaultMulticastAddress        = "239.255.255.250"
	defaultTunerCount              = 4
	defaultMaxConcurrent           = 5
	defaultMaxConcurrentPerChannel = 3
	defaultStreamTimeout           = 30 * time.Second
	defaultGracePeriod             = 10 * time.Second
	defaultEPGFetchTimeout         = 60 * time.Second
	defaultEPGBatchSize            = 1000
	defaultEmissionPast            = 2 * time.Hour
	defaultEmissionFuture          = 7 * 24 * time.Hour
	defaultMaxOpenConns            = 25
	defaultMaxIdleConns            = 10
	defaultConnMaxIdleTime         = 30 * time.Minute
)

// deviceIDPattern matches the 8 hex character tuner device ID.
var deviceIDPattern = regexp.MustCompile(`^[0-9A-F]{8}$`)

// knownSections lists the accepted top-level configuration keys. Anything
// else in the config file is rejected so typos fail fast instead of being
// silently ignored.
var knownSections = map[string]bool{
	"server":   true,
	"ssdp":     true,
	"tuner":    true,
	"streams":  true,
	"epg":      true,
	"ffmpeg":   true,
	"database": true,
	"logging":  true,
}

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	SSDP     SSDPConfig     `mapstructure:"ssdp"`
	Tuner    TunerConfig    `mapstructure:"tuner"`
	Streams  StreamsConfig  `mapstructure:"streams"`
	EPG      EPGConfig      `mapstructure:"epg"`
	FFmpeg   FFmpegConfig   `mapstructure:"ffmpeg"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	// StreamingPort serves the HDHomeRun surface (discover.json, lineup,
	// stream endpoints). Plex expects this on its own port.
	StreamingPort int `mapstructure:"streaming_port"`
	// APIPort serves the operator API and metrics.
	APIPort int `mapstructure:"api_port"`
	// AdvertisedHost is the host placed into discovery payloads and the
	// SSDP LOCATION header. Empty means the server picks a local address.
	AdvertisedHost    string        `mapstructure:"advertised_host"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// SSDPConfig holds SSDP discovery responder configuration.
type SSDPConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	AnnounceInterval time.Duration `mapstructure:"announce_interval"`
	MulticastAddress string        `mapstructure:"multicast_address"`
	DiscoveryPort    int           `mapstructure:"discovery_port"`
}

// TunerConfig holds the emulated HDHomeRun device identity.
type TunerConfig struct {
	DeviceID        string `mapstructure:"device_id"` // 8 hex chars
	FriendlyName    string `mapstructure:"friendly_name"`
	Manufacturer    string `mapstructure:"manufacturer"`
	ModelName       string `mapstructure:"model_name"`
	FirmwareName    string `mapstructure:"firmware_name"`
	FirmwareVersion string `mapstructure:"firmware_version"`
	TunerCount      int    `mapstructure:"tuner_count"`
	DeviceAuth      string `mapstructure:"device_auth"`
}

// StreamsConfig holds streaming session limits and timing.
type StreamsConfig struct {
	MaxConcurrent           int           `mapstructure:"max_concurrent"`
	MaxConcurrentPerChannel int           `mapstructure:"max_concurrent_per_channel"`
	StreamTimeout           time.Duration `mapstructure:"stream_timeout"`
	GracePeriod             time.Duration `mapstructure:"grace_period"`
}

// EPGConfig holds EPG ingest and emission configuration.
type EPGConfig struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	// EmissionPast and EmissionFuture bound the programme window written
	// to the XMLTV endpoint, relative to now.
	EmissionPast   time.Duration `mapstructure:"emission_past"`
	EmissionFuture time.Duration `mapstructure:"emission_future"`
	BatchSize      int           `mapstructure:"batch_size"`
}

// FFmpegConfig holds FFmpeg binary configuration.
type FFmpegConfig struct {
	BinaryPath string `mapstructure:"binary_path"` // empty = search PATH
	ProbePath  string `mapstructure:"probe_path"`  // empty = search PATH
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with PLEXBRIDGE_ and use underscores
// for nesting. Example: PLEXBRIDGE_SERVER_STREAMING_PORT=5004.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/plexbridge")
		v.AddConfigPath("$HOME/.plexbridge")
	}

	v.SetEnvPrefix("PLEXBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	if err := checkUnknownSections(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Tuner.DeviceID = strings.ToUpper(cfg.Tuner.DeviceID)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// checkUnknownSections rejects top-level keys that are not part of the
// configuration schema.
func checkUnknownSections(v *viper.Viper) error {
	for key := range v.AllSettings() {
		if !knownSections[key] {
			return fmt.Errorf("unknown configuration section %q", key)
		}
	}
	return nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults
// are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.streaming_port", defaultStreamingPort)
	v.SetDefault("server.api_port", defaultAPIPort)
	v.SetDefault("server.advertised_host", "")
	v.SetDefault("server.read_header_timeout", defaultReadHeaderTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	// SSDP defaults
	v.SetDefault("ssdp.enabled", true)
	v.SetDefault("ssdp.announce_interval", defaultAnnounceInterval)
	v.SetDefault("ssdp.multicast_address", defaultMulticastAddress)
	v.SetDefault("ssdp.discovery_port", defaultDiscoveryPort)

	// Tuner defaults
	v.SetDefault("tuner.device_id", "12345678")
	v.SetDefault("tuner.friendly_name", "PlexBridge")
	v.SetDefault("tuner.manufacturer", "Silicondust")
	v.SetDefault("tuner.model_name", "HDHomeRun CONNECT")
	v.SetDefault("tuner.firmware_name", "hdhomerun4_atsc")
	v.SetDefault("tuner.firmware_version", "20200907")
	v.SetDefault("tuner.tuner_count", defaultTunerCount)
	v.SetDefault("tuner.device_auth", "plexbridge")

	// Streams defaults
	v.SetDefault("streams.max_concurrent", defaultMaxConcurrent)
	v.SetDefault("streams.max_concurrent_per_channel", defaultMaxConcurrentPerChannel)
	v.SetDefault("streams.stream_timeout", defaultStreamTimeout)
	v.SetDefault("streams.grace_period", defaultGracePeriod)

	// EPG defaults
	v.SetDefault("epg.fetch_timeout", defaultEPGFetchTimeout)
	v.SetDefault("epg.emission_past", defaultEmissionPast)
	v.SetDefault("epg.emission_future", defaultEmissionFuture)
	v.SetDefault("epg.batch_size", defaultEPGBatchSize)

	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "plexbridge.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535

	// Server validation
	if c.Server.StreamingPort < 1 || c.Server.StreamingPort > maxPort {
		return fmt.Errorf("server.streaming_port must be between 1 and %d", maxPort)
	}
	if c.Server.APIPort < 1 || c.Server.APIPort > maxPort {
		return fmt.Errorf("server.api_port must be between 1 and %d", maxPort)
	}
	if c.Server.StreamingPort == c.Server.APIPort {
		return fmt.Errorf("server.streaming_port and server.api_port must differ")
	}

	// SSDP validation
	if c.SSDP.DiscoveryPort < 1 || c.SSDP.DiscoveryPort > maxPort {
		return fmt.Errorf("ssdp.discovery_port must be between 1 and %d", maxPort)
	}
	if c.SSDP.AnnounceInterval < time.Minute {
		return fmt.Errorf("ssdp.announce_interval must be at least 1m")
	}

	// Tuner validation
	if !deviceIDPattern.MatchString(c.Tuner.DeviceID) {
		return fmt.Errorf("tuner.device_id must be exactly 8 hex characters")
	}
	if c.Tuner.TunerCount < 1 {
		return fmt.Errorf("tuner.tuner_count must be at least 1")
	}

	// Streams validation
	if c.Streams.MaxConcurrent < 1 {
		return fmt.Errorf("streams.max_concurrent must be at least 1")
	}
	if c.Streams.MaxConcurrentPerChannel < 1 {
		return fmt.Errorf("streams.max_concurrent_per_channel must be at least 1")
	}
	if c.Streams.GracePeriod < time.Second {
		return fmt.Errorf("streams.grace_period must be at least 1s")
	}

	// EPG validation
	if c.EPG.BatchSize < 1 {
		return fmt.Errorf("epg.batch_size must be at least 1")
	}
	if c.EPG.EmissionPast < 0 || c.EPG.EmissionFuture < 0 {
		return fmt.Errorf("epg.emission_past and epg.emission_future must not be negative")
	}

	// Database validation
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// StreamingAddress returns the HDHomeRun surface listen address.
func (c *ServerConfig) StreamingAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.StreamingPort)
}

// APIAddress returns the operator API listen address.
func (c *ServerConfig) APIAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.APIPort)
}

// DeviceUUID returns the stable UPnP UUID derived from the device ID,
// used in SSDP USN headers and device.xml.
func (c *TunerConfig) DeviceUUID() string {
	id := strings.ToLower(c.DeviceID)
	return fmt.Sprintf("2f402f80-da50-11e1-9b23-%s0000", id)
}
