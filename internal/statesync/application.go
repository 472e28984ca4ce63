package statesync

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/slurmdash/slurmdash/internal/common/util"
	"github.com/slurmdash/slurmdash/internal/statesync/channel"
	"github.com/slurmdash/slurmdash/internal/statesync/configuration"
	"github.com/slurmdash/slurmdash/internal/statesync/domain"
	"github.com/slurmdash/slurmdash/internal/statesync/poll"
	"github.com/slurmdash/slurmdash/internal/statesync/visibility"
)

// StartUp wires the synchronization engine for the daemon: fetcher, push
// channel, visibility controller, snapshot cache and the manager itself. It
// returns a stop function and a WaitGroup that is done once the engine has
// shut down.
func StartUp(config configuration.SlurmdashConfiguration) (func(), *sync.WaitGroup, *Manager) {
	wg := &sync.WaitGroup{}
	wg.Add(1)

	fetcher := poll.NewHTTPFetcher(config.ApiBaseUrl, config.Sync.RequestTimeout)
	controller := visibility.NewController()
	snapshots := poll.NewSnapshotCache(config.Sync.SnapshotRetention)

	backoff := channel.BackoffPolicy{
		InitialDelay:   config.Sync.ReconnectInitialDelay,
		MaxDelay:       config.Sync.ReconnectMaxDelay,
		JitterFraction: channel.DefaultJitterFraction,
	}
	pushChannel := channel.New(config.WebSocketUrl, channel.NewWebSocketDialer(), backoff, controller)

	manager := NewManager(
		config.Sync,
		config.Hosts,
		fetcher,
		pushChannel,
		snapshots,
		controller,
		&util.DefaultClock{},
	)
	manager.Connect()

	stopSummary := make(chan struct{})
	if config.SummaryInterval > 0 {
		go logStateSummary(manager, config.SummaryInterval, stopSummary)
	}

	stop := func() {
		close(stopSummary)
		manager.Destroy()
		wg.Done()
	}
	return stop, wg, manager
}

// logStateSummary periodically logs a one-line overview of tracked jobs and
// the active source, mainly for operators tailing the daemon log.
func logStateSummary(manager *Manager, interval time.Duration, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-time.After(interval):
			jobs := manager.GetAllJobs().Get()
			status := manager.GetConnectionStatus().Get()
			summary := domain.SummarizeStates(jobs)
			log.Infof("tracking %d job(s) (%s) via %s", len(jobs), summary, status.Source)
		}
	}
}
