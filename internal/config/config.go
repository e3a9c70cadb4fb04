// Package config handles configuration loading, validation, and
// persistence for the netpulse daemon.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
	DefaultAPIPort    = 5720

	// PrimaryEndpoint carries the full protocol, including maintenance
	// and uptime counters. SurvivalEndpoint speaks the minimal dialect.
	PrimaryEndpoint  = "minigames"
	SurvivalEndpoint = "survival"
)

// Config is the root configuration structure for netpulse.
type Config struct {
	mu   sync.RWMutex
	path string

	Network         NetworkData     `json:"network"`
	ApplicationData ApplicationData `json:"application_data"`
}

// NetworkData contains the upstream endpoints and reconnect behavior.
type NetworkData struct {
	// Endpoints maps endpoint name to WebSocket URL. The primary
	// endpoint must be present.
	Endpoints map[string]EndpointData `json:"endpoints"`

	// Reconnect behavior shared by all endpoints.
	BackoffSeconds    []int `json:"backoff_seconds"`
	MaxAttempts       int   `json:"max_attempts"`
	ConnectTimeoutSec int   `json:"connect_timeout_sec"`

	// TestServerID names the internal test server excluded from
	// aggregate player and server stats.
	TestServerID string `json:"test_server_id"`

	// IGNTTLSec bounds how long an unseen name cache entry survives.
	IGNTTLSec int `json:"ign_ttl_sec"`
}

// EndpointData describes one upstream WebSocket endpoint.
type EndpointData struct {
	URL                string `json:"url"`
	RequireVersion     bool   `json:"require_version"`
	MaintenanceCapable bool   `json:"maintenance_capable"`
	SurvivalFormat     bool   `json:"survival_format"`
}

// ApplicationData contains daemon application configuration.
type ApplicationData struct {
	Timers   TimerConfig    `json:"timers"`
	API      APIConfig      `json:"api"`
	MQTT     MQTTConfig     `json:"mqtt"`
	Webhook  WebhookConfig  `json:"webhook"`
	Security SecurityConfig `json:"security"`
	Logging  LoggingConfig  `json:"logging"`
}

// TimerConfig holds periodic task interval settings.
type TimerConfig struct {
	IGNSweepInterval    int `json:"ign_sweep_interval_sec"`
	StatsLogInterval    int `json:"stats_log_interval_sec"`
	TaskCleanupInterval int `json:"task_cleanup_interval_sec"`
}

// APIConfig holds the local HTTP API settings.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled   bool   `json:"enabled"`
	BrokerURL string `json:"broker_url"`
	Port      int    `json:"port"`
	UseTLS    bool   `json:"use_tls"`
	CertFile  string `json:"cert_file"`
	KeyFile   string `json:"key_file"`
	CAFile    string `json:"ca_file"`
	ClientID  string `json:"client_id"`
}

// WebhookConfig holds alert webhook settings.
type WebhookConfig struct {
	URL              string `json:"url"`
	NotifyOnMismatch bool   `json:"notify_on_mismatch"`
	NotifyOnFailure  bool   `json:"notify_on_failure"`
}

// SecurityConfig holds API security settings.
type SecurityConfig struct {
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxBackups int    `json:"max_backups"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Network: NetworkData{
			Endpoints: map[string]EndpointData{
				PrimaryEndpoint: {
					URL:                "wss://mc.example.net/ws/minigames",
					RequireVersion:     true,
					MaintenanceCapable: true,
				},
				SurvivalEndpoint: {
					URL:            "wss://mc.example.net/ws/survival",
					SurvivalFormat: true,
				},
			},
			BackoffSeconds:    []int{1, 2, 5, 10, 30},
			MaxAttempts:       10,
			ConnectTimeoutSec: 10,
			TestServerID:      "test",
			IGNTTLSec:         600,
		},
		ApplicationData: ApplicationData{
			Timers: TimerConfig{
				IGNSweepInterval:    60,
				StatsLogInterval:    300,
				TaskCleanupInterval: 1800,
			},
			API: APIConfig{
				Enabled: true,
				Host:    "127.0.0.1",
				Port:    DefaultAPIPort,
			},
			MQTT: MQTTConfig{
				BrokerURL: "localhost",
				Port:      1883,
			},
			Webhook: WebhookConfig{
				NotifyOnMismatch: true,
				NotifyOnFailure:  true,
			},
			Security: SecurityConfig{
				RateLimitRPS: 100,
			},
			Logging: LoggingConfig{
				Level:      "info",
				Directory:  "logs",
				MaxBackups: 5,
			},
		},
	}
}

// Load reads configuration from a JSON file.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig() // Start with defaults, then overlay
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Re-save config to persist any new default fields added in code updates.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetNetwork returns a copy of the network configuration.
func (c *Config) GetNetwork() NetworkData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Network
}

// GetApplicationData returns a copy of the application data configuration.
func (c *Config) GetApplicationData() ApplicationData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ApplicationData
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// BackoffTable converts the configured backoff seconds to durations.
func (n NetworkData) BackoffTable() []time.Duration {
	out := make([]time.Duration, 0, len(n.BackoffSeconds))
	for _, s := range n.BackoffSeconds {
		out = append(out, time.Duration(s)*time.Second)
	}
	return out
}

// ConnectTimeout returns the per-attempt dial timeout.
func (n NetworkData) ConnectTimeout() time.Duration {
	return time.Duration(n.ConnectTimeoutSec) * time.Second
}

// IGNTTL returns the name cache entry lifetime.
func (n NetworkData) IGNTTL() time.Duration {
	return time.Duration(n.IGNTTLSec) * time.Second
}
