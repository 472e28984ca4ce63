package gate

import (
	"sync"
	"time"

	"github.com/slurmdash/slurmdash/internal/common/util"
	"github.com/slurmdash/slurmdash/internal/statesync/metrics"
)

// StalenessGate suppresses refreshes for a host that synced successfully
// within the minimum refresh interval. It exists to stop a fallback poll
// firing right after a push update landed for the same host, and to stop
// stacked user-triggered refreshes from multiplying network load.
type StalenessGate struct {
	minimumRefreshInterval time.Duration
	clock                  util.Clock
	mutex                  sync.Mutex
	lastSynced             map[string]time.Time
}

func NewStalenessGate(minimumRefreshInterval time.Duration, clock util.Clock) *StalenessGate {
	return &StalenessGate{
		minimumRefreshInterval: minimumRefreshInterval,
		clock:                  clock,
		lastSynced:             map[string]time.Time{},
	}
}

// ShouldSync reports whether a refresh for host may proceed.
// Forced refreshes always proceed.
func (g *StalenessGate) ShouldSync(host string, force bool) bool {
	if force {
		return true
	}
	g.mutex.Lock()
	defer g.mutex.Unlock()

	last, synced := g.lastSynced[host]
	if !synced {
		return true
	}
	if g.clock.Now().Sub(last) < g.minimumRefreshInterval {
		metrics.StalenessVetoesTotal.Inc()
		return false
	}
	return true
}

func (g *StalenessGate) RecordSyncSuccess(host string, timestamp time.Time) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.lastSynced[host] = timestamp
}

func (g *StalenessGate) LastSynced(host string) (time.Time, bool) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	last, synced := g.lastSynced[host]
	return last, synced
}
