package statesync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/slurmdash/slurmdash/internal/common/util"
	"github.com/slurmdash/slurmdash/internal/statesync/configuration"
	"github.com/slurmdash/slurmdash/internal/statesync/domain"
	"github.com/slurmdash/slurmdash/internal/statesync/poll"
	"github.com/slurmdash/slurmdash/internal/statesync/visibility"
	"github.com/slurmdash/slurmdash/pkg/api"
)

type fakeChannel struct {
	mutex          sync.Mutex
	connectCalls   int
	resumeCalls    int
	closeCalls     int
	onMessage      func(*api.PushMessage)
	onConnected    func()
	onDisconnected func()
}

func (c *fakeChannel) Connect() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.connectCalls++
}

func (c *fakeChannel) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.closeCalls++
}

func (c *fakeChannel) ResumeNow() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.resumeCalls++
}

func (c *fakeChannel) OnMessage(callback func(*api.PushMessage)) { c.onMessage = callback }
func (c *fakeChannel) OnConnected(callback func())               { c.onConnected = callback }
func (c *fakeChannel) OnDisconnected(callback func())            { c.onDisconnected = callback }

func (c *fakeChannel) emitConnected()                 { c.onConnected() }
func (c *fakeChannel) emitDisconnected()              { c.onDisconnected() }
func (c *fakeChannel) emitMessage(m *api.PushMessage) { c.onMessage(m) }

func (c *fakeChannel) connects() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.connectCalls
}

type fakeFetcher struct {
	mutex     sync.Mutex
	responses map[string]*api.StatusResponse
	err       error
	calls     []string
	block     chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{responses: map[string]*api.StatusResponse{}}
}

func (f *fakeFetcher) FetchHostStatus(ctx context.Context, host string) (*api.StatusResponse, error) {
	f.mutex.Lock()
	f.calls = append(f.calls, host)
	block := f.block
	err := f.err
	response := f.responses[host]
	f.mutex.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	if response == nil {
		return &api.StatusResponse{Hostname: host}, nil
	}
	return response, nil
}

func (f *fakeFetcher) callCount(host string) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	count := 0
	for _, called := range f.calls {
		if called == host {
			count++
		}
	}
	return count
}

func (f *fakeFetcher) setResponse(host string, jobs ...*api.JobRecordWire) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.responses[host] = &api.StatusResponse{Hostname: host, Jobs: jobs}
}

func (f *fakeFetcher) setError(err error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.err = err
}

func (f *fakeFetcher) setBlock(block chan struct{}) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.block = block
}

func wireJob(jobId string, host string, state string) *api.JobRecordWire {
	return &api.JobRecordWire{JobId: jobId, Hostname: host, State: state}
}

func testConfig() configuration.SyncConfiguration {
	return configuration.SyncConfiguration{
		MinimumRefreshInterval: 30 * time.Second,
		FallbackPollInterval:   time.Hour,
		BackstopPollInterval:   2 * time.Hour,
		InactivePollInterval:   0,
		ReconnectInitialDelay:  time.Millisecond,
		ReconnectMaxDelay:      time.Millisecond,
		RequestTimeout:         time.Second,
		SnapshotRetention:      time.Hour,
		// Synchronous publication keeps assertions deterministic.
		PublishBatchWindow: -1,
	}
}

type managerFixture struct {
	manager    *Manager
	channel    *fakeChannel
	fetcher    *fakeFetcher
	visibility *visibility.Controller
	clock      *util.DummyClock
	snapshots  *poll.SnapshotCache
}

func setup(t *testing.T, hosts ...string) *managerFixture {
	t.Helper()
	if len(hosts) == 0 {
		hosts = []string{"cluster1"}
	}
	ch := &fakeChannel{}
	fetcher := newFakeFetcher()
	controller := visibility.NewController()
	clock := &util.DummyClock{T: time.Now()}
	snapshots := poll.NewSnapshotCache(time.Hour)
	manager := NewManager(testConfig(), hosts, fetcher, ch, snapshots, controller, clock)
	t.Cleanup(manager.Destroy)
	return &managerFixture{
		manager:    manager,
		channel:    ch,
		fetcher:    fetcher,
		visibility: controller,
		clock:      clock,
		snapshots:  snapshots,
	}
}

func TestConnect_IsIdempotent(t *testing.T) {
	f := setup(t)

	f.manager.Connect()
	f.manager.Connect()
	f.manager.Connect()

	assert.Equal(t, 1, f.channel.connects())
	assert.True(t, f.manager.GetState().Get().PollingActive)
}

func TestConnect_PollingIsActiveSourceUntilChannelConnects(t *testing.T) {
	f := setup(t)

	f.manager.Connect()
	status := f.manager.GetConnectionStatus().Get()
	assert.Equal(t, domain.SourcePolling, status.Source)
	assert.False(t, status.Connected)

	f.channel.emitConnected()
	status = f.manager.GetConnectionStatus().Get()
	assert.Equal(t, domain.SourcePushChannel, status.Source)
	assert.True(t, status.Connected)
}

func TestFallbackToPollingOnChannelClose(t *testing.T) {
	f := setup(t)
	f.manager.Connect()
	f.channel.emitConnected()

	f.channel.emitDisconnected()

	status := f.manager.GetConnectionStatus().Get()
	assert.Equal(t, domain.SourcePolling, status.Source)
	assert.False(t, status.Connected)
	assert.True(t, f.manager.GetState().Get().PollingActive)

	// The fallback refresh fires promptly, not on the next tick.
	assert.Eventually(t, func() bool {
		return f.fetcher.callCount("cluster1") >= 1
	}, time.Second, time.Millisecond)
}

func TestStatusNeverClaimsPushChannelWhileDisconnected(t *testing.T) {
	f := setup(t)
	subscription := f.manager.GetConnectionStatus().Subscribe()
	defer subscription.Close()

	f.manager.Connect()
	f.channel.emitConnected()
	f.channel.emitDisconnected()
	f.channel.emitConnected()
	f.manager.Destroy()

	for {
		select {
		case status := <-subscription.C:
			if status.Source == domain.SourcePushChannel {
				assert.True(t, status.Connected)
			}
		default:
			return
		}
	}
}

func TestSyncHost_StalenessGateVetoesRepeatWithinInterval(t *testing.T) {
	f := setup(t)

	assert.NoError(t, f.manager.SyncHost("cluster1", false))
	assert.NoError(t, f.manager.SyncHost("cluster1", false))

	assert.Equal(t, 1, f.fetcher.callCount("cluster1"))
}

func TestSyncHost_ForcedAlwaysIssuesRequest(t *testing.T) {
	f := setup(t)

	assert.NoError(t, f.manager.SyncHost("cluster1", false))
	assert.NoError(t, f.manager.SyncHost("cluster1", true))
	assert.NoError(t, f.manager.SyncHost("cluster1", true))

	assert.Equal(t, 3, f.fetcher.callCount("cluster1"))
}

func TestSyncHost_AllowedAgainAfterMinimumInterval(t *testing.T) {
	f := setup(t)

	assert.NoError(t, f.manager.SyncHost("cluster1", false))
	f.clock.Advance(31 * time.Second)
	assert.NoError(t, f.manager.SyncHost("cluster1", false))

	assert.Equal(t, 2, f.fetcher.callCount("cluster1"))
}

func TestSyncHost_CommitsSnapshotToStore(t *testing.T) {
	f := setup(t)
	f.fetcher.setResponse("cluster1", wireJob("1", "cluster1", "R"), wireJob("2", "cluster1", "PD"))

	assert.NoError(t, f.manager.SyncHost("cluster1", false))

	jobs := f.manager.GetAllJobs().Get()
	assert.Len(t, jobs, 2)
	state := f.manager.GetState().Get()
	assert.Empty(t, state.Hosts["cluster1"].LastError)
	assert.False(t, state.Hosts["cluster1"].LastSynced.IsZero())
}

func TestSyncHost_SnapshotRemovesOmittedJobs(t *testing.T) {
	f := setup(t)
	f.fetcher.setResponse("cluster1", wireJob("1", "cluster1", "R"), wireJob("2", "cluster1", "R"))
	assert.NoError(t, f.manager.SyncHost("cluster1", false))
	assert.Len(t, f.manager.GetAllJobs().Get(), 2)

	f.fetcher.setResponse("cluster1", wireJob("2", "cluster1", "R"))
	assert.NoError(t, f.manager.SyncHost("cluster1", true))

	jobs := f.manager.GetAllJobs().Get()
	assert.Len(t, jobs, 1)
	assert.Equal(t, "2", jobs[0].JobId)
}

func TestSyncHost_FailureKeepsExistingData(t *testing.T) {
	f := setup(t)
	f.fetcher.setResponse("cluster1", wireJob("1", "cluster1", "R"))
	assert.NoError(t, f.manager.SyncHost("cluster1", false))

	f.fetcher.setError(errors.New("gateway timeout"))
	err := f.manager.SyncHost("cluster1", true)

	assert.Error(t, err)
	assert.Len(t, f.manager.GetAllJobs().Get(), 1)
	assert.Contains(t, f.manager.GetState().Get().Hosts["cluster1"].LastError, "gateway timeout")
}

func TestPushDelta_AppliedImmediately(t *testing.T) {
	f := setup(t)
	f.fetcher.setResponse("cluster1", wireJob("123", "cluster1", "R"))
	assert.NoError(t, f.manager.SyncHost("cluster1", false))

	f.channel.emitMessage(&api.PushMessage{
		Type: api.MessageTypeJobUpdate,
		Job:  wireJob("123", "cluster1", "CD"),
	})

	jobs := f.manager.GetAllJobs().Get()
	assert.Len(t, jobs, 1)
	assert.Equal(t, domain.Completed, jobs[0].State)
}

func TestPushDelta_NeverRemovesOtherJobs(t *testing.T) {
	f := setup(t)
	f.fetcher.setResponse("cluster1", wireJob("1", "cluster1", "R"), wireJob("2", "cluster1", "R"))
	assert.NoError(t, f.manager.SyncHost("cluster1", false))

	f.channel.emitMessage(&api.PushMessage{
		Type: api.MessageTypeJobUpdate,
		Job:  wireJob("99", "cluster1", "PD"),
	})

	assert.Len(t, f.manager.GetAllJobs().Get(), 3)
}

func TestPushDelta_RefreshesStalenessGate(t *testing.T) {
	f := setup(t)

	f.channel.emitMessage(&api.PushMessage{
		Type: api.MessageTypeJobUpdate,
		Job:  wireJob("1", "cluster1", "R"),
	})

	// A fallback poll moments after a live delta for the host is redundant.
	assert.NoError(t, f.manager.SyncHost("cluster1", false))
	assert.Equal(t, 0, f.fetcher.callCount("cluster1"))
}

func TestHostSnapshotMessage_ReplacesHostMembership(t *testing.T) {
	f := setup(t)
	f.fetcher.setResponse("cluster1", wireJob("1", "cluster1", "R"), wireJob("2", "cluster1", "R"))
	assert.NoError(t, f.manager.SyncHost("cluster1", false))

	f.channel.emitMessage(&api.PushMessage{
		Type:      api.MessageTypeHostSnapshot,
		Host:      "cluster1",
		Jobs:      []*api.JobRecordWire{wireJob("2", "cluster1", "CG")},
		Timestamp: f.clock.Now().Unix(),
	})

	jobs := f.manager.GetAllJobs().Get()
	assert.Len(t, jobs, 1)
	assert.Equal(t, "2", jobs[0].JobId)
	assert.Equal(t, domain.Completing, jobs[0].State)
}

func TestStalePollResultDoesNotClobberNewerPushUpdate(t *testing.T) {
	f := setup(t)
	release := make(chan struct{})
	f.fetcher.setBlock(release)
	f.fetcher.setResponse("cluster1", wireJob("1", "cluster1", "R"))

	done := make(chan error, 1)
	go func() { done <- f.manager.SyncHost("cluster1", false) }()

	// The push delta lands while the poll is still in flight.
	assert.Eventually(t, func() bool { return f.fetcher.callCount("cluster1") == 1 }, time.Second, time.Millisecond)
	f.channel.emitMessage(&api.PushMessage{
		Type: api.MessageTypeJobUpdate,
		Job:  wireJob("1", "cluster1", "CD"),
	})

	close(release)
	assert.NoError(t, <-done)

	jobs := f.manager.GetAllJobs().Get()
	assert.Equal(t, domain.Completed, jobs[0].State)
}

func TestDoubleDisconnect_SingleFetchPerHost(t *testing.T) {
	f := setup(t)
	f.manager.Connect()
	f.channel.emitConnected()
	assert.Eventually(t, func() bool { return f.fetcher.callCount("cluster1") == 1 }, time.Second, time.Millisecond)

	// Move past the staleness window so the fallback refresh is allowed.
	f.clock.Advance(31 * time.Second)
	release := make(chan struct{})
	f.fetcher.setBlock(release)

	f.channel.emitDisconnected()
	f.channel.emitDisconnected()

	assert.Eventually(t, func() bool { return f.fetcher.callCount("cluster1") >= 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, f.fetcher.callCount("cluster1"), "in-flight guard should de-duplicate")
	close(release)
}

func TestVisibility_DeactivationPausesAndReactivationForcesRefresh(t *testing.T) {
	f := setup(t)
	f.manager.Connect()
	assert.Eventually(t, func() bool { return f.fetcher.callCount("cluster1") == 1 }, time.Second, time.Millisecond)

	f.visibility.SetActive(false)
	state := f.manager.GetState().Get()
	assert.True(t, state.Paused)
	assert.False(t, state.TabActive)
	assert.False(t, state.PollingActive)

	// Reactivation forces a refresh although the gate would veto one.
	f.visibility.SetActive(true)
	assert.Eventually(t, func() bool { return f.fetcher.callCount("cluster1") == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, f.channel.resumeCalls)
	assert.True(t, f.manager.GetState().Get().PollingActive)
}

func TestVisibility_CacheOnlyWhileInactiveAndDisconnected(t *testing.T) {
	f := setup(t)
	f.manager.Connect()

	f.visibility.SetActive(false)

	status := f.manager.GetConnectionStatus().Get()
	assert.Equal(t, domain.SourceCacheOnly, status.Source)
	assert.False(t, status.Connected)
}

func TestVisibility_ConnectedChannelSurvivesDeactivation(t *testing.T) {
	f := setup(t)
	f.manager.Connect()
	f.channel.emitConnected()

	f.visibility.SetActive(false)

	status := f.manager.GetConnectionStatus().Get()
	assert.Equal(t, domain.SourcePushChannel, status.Source)
	assert.True(t, status.Connected)
	assert.True(t, status.Paused)
}

func TestSyncAllHosts_CoversEveryConfiguredHost(t *testing.T) {
	f := setup(t, "cluster1", "cluster2", "cluster3")

	assert.NoError(t, f.manager.SyncAllHosts())

	assert.Equal(t, 1, f.fetcher.callCount("cluster1"))
	assert.Equal(t, 1, f.fetcher.callCount("cluster2"))
	assert.Equal(t, 1, f.fetcher.callCount("cluster3"))
}

func TestForceRefresh_AggregatesFailures(t *testing.T) {
	f := setup(t, "cluster1", "cluster2")
	f.fetcher.setError(errors.New("unreachable"))

	err := f.manager.ForceRefresh()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cluster1")
	assert.Contains(t, err.Error(), "cluster2")
}

func TestCacheHydration_LowestAuthority(t *testing.T) {
	ch := &fakeChannel{}
	fetcher := newFakeFetcher()
	fetcher.setResponse("cluster1", wireJob("1", "cluster1", "CD"))
	release := make(chan struct{})
	fetcher.setBlock(release)
	controller := visibility.NewController()
	clock := &util.DummyClock{T: time.Now()}
	snapshots := poll.NewSnapshotCache(time.Hour)
	snapshots.Store("cluster1", &api.StatusResponse{
		Hostname: "cluster1",
		Jobs:     []*api.JobRecordWire{wireJob("1", "cluster1", "R")},
	})

	manager := NewManager(testConfig(), []string{"cluster1"}, fetcher, ch, snapshots, controller, clock)
	defer manager.Destroy()
	manager.Connect()

	// Cached data is visible before the first poll completes.
	jobs := manager.GetAllJobs().Get()
	assert.Len(t, jobs, 1)
	assert.Equal(t, domain.Running, jobs[0].State)

	// A live poll result must override hydrated data.
	close(release)
	assert.Eventually(t, func() bool {
		jobs := manager.GetAllJobs().Get()
		return len(jobs) == 1 && jobs[0].State == domain.Completed
	}, time.Second, time.Millisecond)
}

func TestDestroy_IsIdempotent(t *testing.T) {
	f := setup(t)
	f.manager.Connect()

	f.manager.Destroy()
	f.manager.Destroy()

	status := f.manager.GetConnectionStatus().Get()
	assert.Equal(t, domain.SourceDisconnected, status.Source)
	assert.False(t, status.Connected)
	assert.False(t, f.manager.GetState().Get().PollingActive)
	// The second Destroy is a no-op; the channel is closed once.
	assert.Equal(t, 1, f.channel.closeCalls)
}

func TestDestroy_DropsLateResults(t *testing.T) {
	f := setup(t)
	release := make(chan struct{})
	f.fetcher.setBlock(release)
	f.fetcher.setResponse("cluster1", wireJob("1", "cluster1", "R"))

	done := make(chan error, 1)
	go func() { done <- f.manager.SyncHost("cluster1", false) }()
	assert.Eventually(t, func() bool { return f.fetcher.callCount("cluster1") == 1 }, time.Second, time.Millisecond)

	f.manager.Destroy()
	close(release)

	assert.NoError(t, <-done)
	assert.Empty(t, f.manager.GetAllJobs().Get())
}

func TestSyncHost_RejectedAfterDestroy(t *testing.T) {
	f := setup(t)
	f.manager.Destroy()

	err := f.manager.SyncHost("cluster1", true)

	assert.Error(t, err)
	assert.Equal(t, 0, f.fetcher.callCount("cluster1"))
}

func TestObservable_SubscribersSeeUpdates(t *testing.T) {
	f := setup(t)
	subscription := f.manager.GetAllJobs().Subscribe()
	defer subscription.Close()

	// The initial (empty) value is delivered on subscribe.
	initial := <-subscription.C
	assert.Empty(t, initial)

	f.fetcher.setResponse("cluster1", wireJob("1", "cluster1", "R"))
	assert.NoError(t, f.manager.SyncHost("cluster1", false))

	select {
	case jobs := <-subscription.C:
		assert.Len(t, jobs, 1)
	case <-time.After(time.Second):
		t.Fatal("subscriber never notified")
	}
}
