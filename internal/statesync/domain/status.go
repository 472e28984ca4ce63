package domain

import "time"

// Source is the currently authoritative origin of job data.
type Source string

const (
	SourcePushChannel  Source = "push-channel"
	SourcePolling      Source = "polling"
	SourceCacheOnly    Source = "cache-only"
	SourceDisconnected Source = "disconnected"
)

// ConnectionStatus is published to UI consumers whenever the engine's
// relationship to its data sources changes.
type ConnectionStatus struct {
	Source    Source
	Connected bool
	TabActive bool
	Paused    bool
}

// SyncState summarises the engine for UI consumers.
type SyncState struct {
	TabActive     bool
	Paused        bool
	PollingActive bool
	Hosts         map[string]HostSyncState
}

// HostSyncState tracks per-host refresh bookkeeping. The InFlight flag
// prevents overlapping fetches for the same host.
type HostSyncState struct {
	LastSynced time.Time
	InFlight   bool
	LastError  string
}
