package poll

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Scheduler drives the pull-based fallback with a single repeating timer.
// The tick callbacks decide per host whether a fetch actually happens
// (staleness gate, in-flight guard); the scheduler only provides cadence.
type Scheduler struct {
	onTick    func()
	onTrigger func(host string)

	mutex    sync.Mutex
	interval time.Duration
	stopCh   chan bool
	running  bool
	wg       sync.WaitGroup
}

func NewScheduler(onTick func(), onTrigger func(host string)) *Scheduler {
	return &Scheduler{
		onTick:    onTick,
		onTrigger: onTrigger,
	}
}

// Start begins ticking at the given interval. Restarting with a new interval
// replaces the previous cadence; restarting with the same interval is a no-op.
func (s *Scheduler) Start(interval time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running && s.interval == interval {
		return
	}
	s.stopLocked()
	if interval <= 0 {
		return
	}

	s.interval = interval
	s.running = true
	stopCh := make(chan bool)
	s.stopCh = stopCh
	log.Infof("polling scheduler running with interval %s", interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-time.After(interval):
			case <-stopCh:
				return
			}
			s.onTick()
		}
	}()
}

func (s *Scheduler) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if !s.running {
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	s.running = false
}

func (s *Scheduler) IsRunning() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.running
}

func (s *Scheduler) Interval() time.Duration {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.running {
		return 0
	}
	return s.interval
}

// TriggerNow requests an immediate refresh outside the regular cadence,
// for one host or, with an empty host, for all of them. Unlike a tick it is
// not subject to the minimum-interval veto.
func (s *Scheduler) TriggerNow(host string) {
	s.onTrigger(host)
}

// Wait blocks until the tick goroutine has exited after Stop.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
