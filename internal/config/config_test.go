package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	result := Validate(cfg)

	assert.True(t, result.IsValid(), "errors: %v", result.Errors)

	net := cfg.GetNetwork()
	require.Contains(t, net.Endpoints, PrimaryEndpoint)
	require.Contains(t, net.Endpoints, SurvivalEndpoint)
	assert.True(t, net.Endpoints[PrimaryEndpoint].RequireVersion)
	assert.True(t, net.Endpoints[PrimaryEndpoint].MaintenanceCapable)
	assert.True(t, net.Endpoints[SurvivalEndpoint].SurvivalFormat)
}

func TestLoadCreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	// The default file was written out.
	data, err := os.ReadFile(filepath.Join(dir, DefaultConfigFile))
	require.NoError(t, err)

	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Contains(t, onDisk, "network")
	assert.Contains(t, onDisk, "application_data")

	assert.Equal(t, DefaultAPIPort, cfg.GetApplicationData().API.Port)
}

func TestLoadOverlaysOnDefaults(t *testing.T) {
	dir := t.TempDir()

	partial := `{
		"network": {
			"max_attempts": 3
		},
		"application_data": {
			"api": {"enabled": true, "host": "0.0.0.0", "port": 8080}
		}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(partial), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	// Overridden fields take effect.
	assert.Equal(t, 3, cfg.GetNetwork().MaxAttempts)
	assert.Equal(t, 8080, cfg.GetApplicationData().API.Port)

	// Fields the file omits keep their defaults.
	assert.Equal(t, []int{1, 2, 5, 10, 30}, cfg.GetNetwork().BackoffSeconds)
	assert.Equal(t, "test", cfg.GetNetwork().TestServerID)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("{broken"), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestBackoffTableConversion(t *testing.T) {
	n := NetworkData{BackoffSeconds: []int{1, 2, 5}}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 5 * time.Second}, n.BackoffTable())
}

func TestValidateMissingPrimaryEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	delete(cfg.Network.Endpoints, PrimaryEndpoint)

	result := Validate(cfg)
	assert.False(t, result.IsValid())
}

func TestValidateRejectsBadScheme(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network.Endpoints[PrimaryEndpoint] = EndpointData{
		URL:            "https://mc.example.net/ws",
		RequireVersion: true,
	}

	result := Validate(cfg)
	require.False(t, result.IsValid())
	assert.Contains(t, result.Errors[0].Error(), "must be ws or wss")
}

func TestValidateWarnsOnUnencryptedEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network.Endpoints[SurvivalEndpoint] = EndpointData{
		URL:            "ws://mc.example.net/ws/survival",
		SurvivalFormat: true,
	}

	result := Validate(cfg)
	assert.True(t, result.IsValid())
	assert.NotEmpty(t, result.Warnings)
}

func TestValidateRejectsBadBackoff(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network.BackoffSeconds = []int{0, 5}

	result := Validate(cfg)
	assert.False(t, result.IsValid())

	cfg.Network.BackoffSeconds = nil
	result = Validate(cfg)
	assert.False(t, result.IsValid())
}

func TestValidateMQTTRequiresBroker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplicationData.MQTT.Enabled = true
	cfg.ApplicationData.MQTT.BrokerURL = ""

	result := Validate(cfg)
	assert.False(t, result.IsValid())
}

func TestValidateWebhookURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplicationData.Webhook.URL = "ftp://alerts.example.net"

	result := Validate(cfg)
	assert.False(t, result.IsValid())

	cfg.ApplicationData.Webhook.URL = "https://alerts.example.net/hook"
	result = Validate(cfg)
	assert.True(t, result.IsValid())
}
