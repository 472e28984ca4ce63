package statesync

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/slurmdash/slurmdash/internal/common/util"
	"github.com/slurmdash/slurmdash/internal/statesync/configuration"
	"github.com/slurmdash/slurmdash/internal/statesync/domain"
	"github.com/slurmdash/slurmdash/internal/statesync/gate"
	"github.com/slurmdash/slurmdash/internal/statesync/job"
	"github.com/slurmdash/slurmdash/internal/statesync/poll"
	"github.com/slurmdash/slurmdash/pkg/api"
)

// PushChannel is the live connection feeding the manager. Satisfied by
// channel.Channel; faked in tests.
type PushChannel interface {
	Connect()
	Close()
	ResumeNow()
	OnMessage(func(*api.PushMessage))
	OnConnected(func())
	OnDisconnected(func())
}

// Manager keeps the in-memory view of all jobs across all hosts consistent
// and fresh. It decides at any instant which source is authoritative (push
// channel, polling or cache), merges updates into the job record store, and
// publishes the merged collection and connection status as observables.
//
// Lifecycle: NewManager -> Connect -> ... -> Destroy. One instance per
// consuming application; inject it, don't make it a global.
type Manager struct {
	config configuration.SyncConfiguration
	hosts  []string

	store      *job.Store
	gate       *gate.StalenessGate
	channel    PushChannel
	scheduler  *poll.Scheduler
	fetcher    poll.Fetcher
	snapshots  *poll.SnapshotCache
	visibility Activity
	clock      util.Clock

	mutex     sync.Mutex
	hostState map[string]*domain.HostSyncState
	status    domain.ConnectionStatus
	started   bool
	destroyed bool

	jobs         *Observable[[]*domain.JobRecord]
	statusObs    *Observable[domain.ConnectionStatus]
	syncStateObs *Observable[domain.SyncState]
	batcher      *notifyBatcher
}

// Activity is the visibility signal driving pause/resume behaviour.
type Activity interface {
	IsActive() bool
	OnActivate(func())
	OnDeactivate(func())
}

// NewManager wires the engine together. The snapshot cache is injected so an
// application that tears a manager down and builds a new one (a page remount)
// can hydrate the fresh instance from the previous one's last good data.
func NewManager(
	config configuration.SyncConfiguration,
	hosts []string,
	fetcher poll.Fetcher,
	pushChannel PushChannel,
	snapshots *poll.SnapshotCache,
	activity Activity,
	clock util.Clock,
) *Manager {
	m := &Manager{
		config:     config,
		hosts:      hosts,
		store:      job.NewStore(clock),
		gate:       gate.NewStalenessGate(config.MinimumRefreshInterval, clock),
		channel:    pushChannel,
		fetcher:    fetcher,
		snapshots:  snapshots,
		visibility: activity,
		clock:      clock,
		hostState:  map[string]*domain.HostSyncState{},
		status: domain.ConnectionStatus{
			Source:    domain.SourceDisconnected,
			TabActive: activity.IsActive(),
		},
	}
	for _, host := range hosts {
		m.hostState[host] = &domain.HostSyncState{}
	}

	m.jobs = NewObservable[[]*domain.JobRecord](nil)
	m.statusObs = NewObservable(m.status)
	m.syncStateObs = NewObservable(m.currentSyncState())
	m.batcher = newNotifyBatcher(config.PublishBatchWindow, m.publish)
	m.scheduler = poll.NewScheduler(m.backgroundPollTick, m.triggerHost)

	m.store.RegisterOnChange(m.batcher.MarkDirty)

	pushChannel.OnConnected(m.onChannelConnected)
	pushChannel.OnDisconnected(m.onChannelDisconnected)
	pushChannel.OnMessage(m.onPushMessage)

	activity.OnActivate(m.onActivated)
	activity.OnDeactivate(m.onDeactivated)

	return m
}

// Connect starts synchronization: the polling scheduler is the active source
// until the push channel reports connected. Idempotent.
func (m *Manager) Connect() {
	m.mutex.Lock()
	if m.destroyed || m.started {
		m.mutex.Unlock()
		return
	}
	m.started = true
	m.status.Source = domain.SourcePolling
	m.publishStatusLocked()
	m.mutex.Unlock()

	m.hydrateFromCache()
	m.scheduler.Start(m.config.FallbackPollInterval)
	m.channel.Connect()
	go func() {
		if err := m.SyncAllHosts(); err != nil {
			log.Warnf("initial refresh failed: %v", err)
		}
	}()
}

// SyncHost refreshes one host from the status endpoint. Non-forced calls are
// subject to the staleness gate; all calls respect the per-host in-flight
// guard. A failed refresh never clears existing data.
func (m *Manager) SyncHost(host string, force bool) error {
	m.mutex.Lock()
	if m.destroyed {
		m.mutex.Unlock()
		return errors.Errorf("job state manager has been destroyed")
	}
	state := m.hostStateLocked(host)
	if state.InFlight {
		m.mutex.Unlock()
		return nil
	}
	if !m.gate.ShouldSync(host, force) {
		m.mutex.Unlock()
		return nil
	}
	state.InFlight = true
	m.mutex.Unlock()
	m.publishSyncState()

	authority := domain.AuthorityBackgroundPoll
	if force {
		authority = domain.AuthorityForcedPoll
	}

	issuedAt := m.clock.Now()
	ctx, cancel := context.WithTimeout(context.Background(), m.config.RequestTimeout)
	response, err := m.fetcher.FetchHostStatus(ctx, host)
	cancel()

	m.mutex.Lock()
	if m.destroyed {
		// Result resolved after teardown: drop it.
		m.mutex.Unlock()
		return nil
	}
	state.InFlight = false
	if err != nil {
		state.LastError = err.Error()
		m.mutex.Unlock()
		m.publishSyncState()
		log.Warnf("status refresh for host %s failed: %v", host, err)
		return errors.Wrapf(err, "failed to refresh host %s", host)
	}
	now := m.clock.Now()
	state.LastError = ""
	state.LastSynced = now
	m.mutex.Unlock()

	m.gate.RecordSyncSuccess(host, now)
	m.snapshots.Store(host, response)
	m.store.ReplaceHostSnapshot(host, domain.FromWireAll(response.Jobs), authority, issuedAt)
	m.publishSyncState()
	return nil
}

// SyncAllHosts refreshes every configured host concurrently, subject to the
// staleness gate. Returns the first failure, if any.
func (m *Manager) SyncAllHosts() error {
	group, _ := errgroup.WithContext(context.Background())
	for _, host := range m.hosts {
		host := host
		group.Go(func() error {
			return m.SyncHost(host, false)
		})
	}
	return group.Wait()
}

// ForceRefresh refreshes every configured host, bypassing the staleness
// gate. Used for explicit user-initiated refreshes and on reactivation; all
// per-host failures are aggregated so the caller can surface them.
func (m *Manager) ForceRefresh() error {
	var wg sync.WaitGroup
	var mutex sync.Mutex
	var result *multierror.Error
	for _, host := range m.hosts {
		host := host
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.SyncHost(host, true); err != nil {
				mutex.Lock()
				result = multierror.Append(result, err)
				mutex.Unlock()
			}
		}()
	}
	wg.Wait()
	return result.ErrorOrNil()
}

// GetAllJobs exposes the merged job collection.
func (m *Manager) GetAllJobs() *Observable[[]*domain.JobRecord] {
	return m.jobs
}

// GetConnectionStatus exposes the current source of truth and liveness.
func (m *Manager) GetConnectionStatus() *Observable[domain.ConnectionStatus] {
	return m.statusObs
}

// GetState exposes per-host sync bookkeeping and pause state.
func (m *Manager) GetState() *Observable[domain.SyncState] {
	return m.syncStateObs
}

// Destroy releases timers and the channel. Idempotent; in-flight poll
// results resolving afterwards are dropped.
func (m *Manager) Destroy() {
	m.mutex.Lock()
	if m.destroyed {
		m.mutex.Unlock()
		return
	}
	m.destroyed = true
	m.status.Connected = false
	m.status.Source = domain.SourceDisconnected
	m.publishStatusLocked()
	m.mutex.Unlock()

	m.scheduler.Stop()
	m.channel.Close()
	m.batcher.Stop()
}

func (m *Manager) onChannelConnected() {
	m.mutex.Lock()
	if m.destroyed {
		m.mutex.Unlock()
		return
	}
	m.status.Connected = true
	m.status.Source = domain.SourcePushChannel
	m.publishStatusLocked()
	m.mutex.Unlock()

	// Polling drops to a low-frequency correctness backstop.
	m.scheduler.Start(m.config.BackstopPollInterval)
}

func (m *Manager) onChannelDisconnected() {
	m.mutex.Lock()
	if m.destroyed {
		m.mutex.Unlock()
		return
	}
	m.status.Connected = false
	active := m.status.TabActive
	if active {
		m.status.Source = domain.SourcePolling
	} else {
		m.status.Source = domain.SourceCacheOnly
	}
	m.publishStatusLocked()
	m.mutex.Unlock()

	if active {
		m.scheduler.Start(m.config.FallbackPollInterval)
		// Refresh promptly rather than waiting a full tick; the in-flight
		// guard de-duplicates if the close event fires twice.
		go func() {
			if err := m.SyncAllHosts(); err != nil {
				log.Warnf("fallback refresh after channel loss failed: %v", err)
			}
		}()
	} else {
		m.scheduler.Start(m.config.InactivePollInterval)
	}
}

func (m *Manager) onPushMessage(message *api.PushMessage) {
	m.mutex.Lock()
	if m.destroyed {
		m.mutex.Unlock()
		return
	}
	m.mutex.Unlock()

	switch message.Type {
	case api.MessageTypeJobUpdate:
		record := domain.FromWire(message.Job)
		m.store.Upsert(record, domain.AuthorityPushChannel)
		// A live delta proves the host is fresh; keep the fallback poller
		// from immediately re-fetching it.
		m.gate.RecordSyncSuccess(record.Hostname, m.clock.Now())
	case api.MessageTypeHostSnapshot:
		now := m.clock.Now()
		m.store.ReplaceHostSnapshot(message.Host, domain.FromWireAll(message.Jobs), domain.AuthorityPushChannel, now)
		m.gate.RecordSyncSuccess(message.Host, now)
		m.snapshots.Store(message.Host, &api.StatusResponse{
			Hostname:  message.Host,
			Jobs:      message.Jobs,
			Timestamp: message.Timestamp,
		})
		m.mutex.Lock()
		state := m.hostStateLocked(message.Host)
		state.LastSynced = now
		state.LastError = ""
		m.mutex.Unlock()
		m.publishSyncState()
	}
}

func (m *Manager) onActivated() {
	m.mutex.Lock()
	if m.destroyed || !m.started {
		m.mutex.Unlock()
		return
	}
	m.status.TabActive = true
	m.status.Paused = false
	if m.status.Connected {
		m.status.Source = domain.SourcePushChannel
	} else {
		m.status.Source = domain.SourcePolling
	}
	connected := m.status.Connected
	m.publishStatusLocked()
	m.mutex.Unlock()

	m.channel.ResumeNow()
	if connected {
		m.scheduler.Start(m.config.BackstopPollInterval)
	} else {
		m.scheduler.Start(m.config.FallbackPollInterval)
	}
	// A backgrounded dashboard must not show stale data on return.
	go func() {
		if err := m.ForceRefresh(); err != nil {
			log.Warnf("refresh on reactivation failed: %v", err)
		}
	}()
}

func (m *Manager) onDeactivated() {
	m.mutex.Lock()
	if m.destroyed || !m.started {
		m.mutex.Unlock()
		return
	}
	m.status.TabActive = false
	m.status.Paused = true
	if !m.status.Connected {
		m.status.Source = domain.SourceCacheOnly
	}
	m.publishStatusLocked()
	m.mutex.Unlock()

	m.scheduler.Start(m.config.InactivePollInterval)
}

func (m *Manager) backgroundPollTick() {
	m.mutex.Lock()
	if m.destroyed {
		m.mutex.Unlock()
		return
	}
	hosts := m.hosts
	m.mutex.Unlock()

	for _, host := range hosts {
		host := host
		go func() {
			if err := m.SyncHost(host, false); err != nil {
				log.Debugf("scheduled poll of %s failed: %v", host, err)
			}
		}()
	}
}

func (m *Manager) triggerHost(host string) {
	if host == "" {
		if err := m.ForceRefresh(); err != nil {
			log.Warnf("triggered refresh failed: %v", err)
		}
		return
	}
	if err := m.SyncHost(host, true); err != nil {
		log.Warnf("triggered refresh of %s failed: %v", host, err)
	}
}

func (m *Manager) hydrateFromCache() {
	for _, host := range m.hosts {
		snapshot, found := m.snapshots.Get(host)
		if !found {
			continue
		}
		for _, record := range domain.FromWireAll(snapshot.Jobs) {
			m.store.Upsert(record, domain.AuthorityCacheHydration)
		}
		log.Infof("hydrated %d cached job(s) for host %s", len(snapshot.Jobs), host)
	}
}

func (m *Manager) hostStateLocked(host string) *domain.HostSyncState {
	state, present := m.hostState[host]
	if !present {
		state = &domain.HostSyncState{}
		m.hostState[host] = state
	}
	return state
}

func (m *Manager) publish() {
	m.jobs.Publish(m.store.GetAll())
	m.publishSyncState()
}

func (m *Manager) publishStatusLocked() {
	m.statusObs.Publish(m.status)
}

func (m *Manager) publishSyncState() {
	m.syncStateObs.Publish(m.currentSyncState())
}

func (m *Manager) currentSyncState() domain.SyncState {
	m.mutex.Lock()
	hosts := make(map[string]domain.HostSyncState, len(m.hostState))
	for host, state := range m.hostState {
		hosts[host] = *state
	}
	state := domain.SyncState{
		TabActive: m.status.TabActive,
		Paused:    m.status.Paused,
		Hosts:     hosts,
	}
	m.mutex.Unlock()

	if m.scheduler != nil {
		state.PollingActive = m.scheduler.IsRunning()
	}
	return state
}

// FlushPublications delivers any batched observable updates immediately.
// Intended for consumers that need a synchronous view, such as one-shot CLI
// commands.
func (m *Manager) FlushPublications() {
	m.batcher.Flush()
}

// WaitForFirstSync blocks until every host has synced at least once or the
// timeout passes. Convenience for one-shot consumers.
func (m *Manager) WaitForFirstSync(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if m.allHostsSynced() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return m.allHostsSynced()
}

func (m *Manager) allHostsSynced() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, host := range m.hosts {
		state, present := m.hostState[host]
		if !present || state.LastSynced.IsZero() {
			return false
		}
	}
	return true
}
