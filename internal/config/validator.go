package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate performs comprehensive validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateNetwork(&cfg.Network, result)
	validateApplicationData(&cfg.ApplicationData, result)

	return result
}

func validateNetwork(data *NetworkData, result *ValidationResult) {
	if len(data.Endpoints) == 0 {
		result.AddError("network.endpoints", "at least one endpoint is required")
	}
	if _, ok := data.Endpoints[PrimaryEndpoint]; !ok {
		result.AddError("network.endpoints", fmt.Sprintf("the %q endpoint is required", PrimaryEndpoint))
	}

	for name, ep := range data.Endpoints {
		field := fmt.Sprintf("network.endpoints.%s.url", name)
		if strings.TrimSpace(ep.URL) == "" {
			result.AddError(field, "endpoint URL is required")
			continue
		}
		u, err := url.Parse(ep.URL)
		if err != nil {
			result.AddError(field, fmt.Sprintf("invalid URL: %v", err))
			continue
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			result.AddError(field, fmt.Sprintf("unsupported scheme %q (must be ws or wss)", u.Scheme))
		}
		if u.Scheme == "ws" {
			result.AddWarning(field, "unencrypted ws endpoint, traffic is visible on the wire")
		}
	}

	if len(data.BackoffSeconds) == 0 {
		result.AddError("network.backoff_seconds", "at least one backoff step is required")
	}
	for i, s := range data.BackoffSeconds {
		if s < 1 {
			result.AddError("network.backoff_seconds",
				fmt.Sprintf("step %d must be at least 1 second, got %d", i, s))
		}
		if i > 0 && s < data.BackoffSeconds[i-1] {
			result.AddWarning("network.backoff_seconds", "backoff steps are not monotonically increasing")
		}
	}

	if data.MaxAttempts < 1 {
		result.AddError("network.max_attempts", "must allow at least 1 reconnection attempt")
	}
	if data.ConnectTimeoutSec < 1 {
		result.AddError("network.connect_timeout_sec", "connect timeout must be at least 1 second")
	}
	if data.IGNTTLSec < 60 {
		result.AddWarning("network.ign_ttl_sec", "name cache TTL under 60s will evict active players")
	}
}

func validateApplicationData(data *ApplicationData, result *ValidationResult) {
	if data.Timers.IGNSweepInterval < 10 {
		result.AddWarning("timers.ign_sweep_interval_sec",
			"sweep interval less than 10s causes needless lock contention")
	}

	if data.API.Enabled {
		validatePort(data.API.Port, "application_data.api.port", result)
	}

	if data.MQTT.Enabled {
		if strings.TrimSpace(data.MQTT.BrokerURL) == "" {
			result.AddError("application_data.mqtt.broker_url", "MQTT broker URL is required when enabled")
		}
		if data.MQTT.Port < 1 || data.MQTT.Port > 65535 {
			result.AddError("application_data.mqtt.port", "invalid MQTT port")
		}
	}

	if data.Webhook.URL != "" {
		if u, err := url.Parse(data.Webhook.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			result.AddError("application_data.webhook.url", "webhook URL must be http or https")
		}
	}

	if data.Security.RateLimitRPS < 1 {
		result.AddWarning("application_data.security.rate_limit_rps",
			"rate limit is disabled (0 RPS), this may expose the API to abuse")
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}

// IsPortAvailable checks if a port is available for binding.
func IsPortAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
