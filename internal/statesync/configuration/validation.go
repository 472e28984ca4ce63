package configuration

import (
	"time"

	"github.com/pkg/errors"
)

// ApplyDefaults fills unset durations with the documented defaults.
func (c *SyncConfiguration) ApplyDefaults() {
	if c.MinimumRefreshInterval == 0 {
		c.MinimumRefreshInterval = 30 * time.Second
	}
	if c.FallbackPollInterval == 0 {
		c.FallbackPollInterval = 15 * time.Second
	}
	if c.BackstopPollInterval == 0 {
		c.BackstopPollInterval = 2 * time.Minute
	}
	if c.ReconnectInitialDelay == 0 {
		c.ReconnectInitialDelay = time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.SnapshotRetention == 0 {
		c.SnapshotRetention = time.Hour
	}
	if c.PublishBatchWindow == 0 {
		c.PublishBatchWindow = 50 * time.Millisecond
	}
}

func ValidateSlurmdashConfiguration(config SlurmdashConfiguration) error {
	if config.ApiBaseUrl == "" {
		return errors.Errorf("apiBaseUrl must be set")
	}
	if config.WebSocketUrl == "" {
		return errors.Errorf("webSocketUrl must be set")
	}
	if len(config.Hosts) == 0 {
		return errors.Errorf("at least one host must be configured")
	}
	seen := map[string]bool{}
	for _, host := range config.Hosts {
		if host == "" {
			return errors.Errorf("host names must not be empty")
		}
		if seen[host] {
			return errors.Errorf("host %q is configured more than once", host)
		}
		seen[host] = true
	}
	if config.Sync.ReconnectInitialDelay > config.Sync.ReconnectMaxDelay {
		return errors.Errorf("reconnectInitialDelay (%s) must not exceed reconnectMaxDelay (%s)",
			config.Sync.ReconnectInitialDelay, config.Sync.ReconnectMaxDelay)
	}
	if config.Sync.FallbackPollInterval < 0 || config.Sync.BackstopPollInterval < 0 || config.Sync.InactivePollInterval < 0 {
		return errors.Errorf("poll intervals must not be negative")
	}
	return nil
}
