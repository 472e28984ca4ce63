package configuration

import "time"

type SyncConfiguration struct {
	// Minimum time between non-forced refreshes of the same host.
	MinimumRefreshInterval time.Duration
	// Poll cadence while the push channel is down and the app is active.
	FallbackPollInterval time.Duration
	// Low-frequency correctness backstop while the push channel is healthy.
	BackstopPollInterval time.Duration
	// Poll cadence while the app is inactive. Zero disables polling entirely
	// until reactivation.
	InactivePollInterval time.Duration
	// Push channel reconnect backoff.
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	// Timeout for one status query.
	RequestTimeout time.Duration
	// How long cached host snapshots stay usable for cache-only display.
	SnapshotRetention time.Duration
	// How long republication of observable state is coalesced after a change.
	PublishBatchWindow time.Duration
}

type SlurmdashConfiguration struct {
	MetricsPort uint16
	// Gateway base URL for status queries, e.g. https://gateway.example.com/api.
	ApiBaseUrl string
	// Push channel endpoint, e.g. wss://gateway.example.com/api/push.
	WebSocketUrl string
	// Cluster hosts to monitor.
	Hosts []string
	// Interval for the daemon's periodic state summary log line.
	SummaryInterval time.Duration

	Sync SyncConfiguration
}
