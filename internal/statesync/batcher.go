package statesync

import (
	"sync"
	"time"
)

// notifyBatcher coalesces bursts of change notifications into one callback
// per window, so a snapshot commit of hundreds of jobs produces a single
// republication instead of one per upsert.
type notifyBatcher struct {
	window time.Duration
	notify func()

	mutex   sync.Mutex
	timer   *time.Timer
	pending bool
	stopped bool
}

func newNotifyBatcher(window time.Duration, notify func()) *notifyBatcher {
	return &notifyBatcher{
		window: window,
		notify: notify,
	}
}

func (b *notifyBatcher) MarkDirty() {
	b.mutex.Lock()
	if b.stopped || b.pending {
		b.mutex.Unlock()
		return
	}
	if b.window <= 0 {
		b.mutex.Unlock()
		b.notify()
		return
	}
	b.pending = true
	b.timer = time.AfterFunc(b.window, b.fire)
	b.mutex.Unlock()
}

func (b *notifyBatcher) fire() {
	b.mutex.Lock()
	if b.stopped || !b.pending {
		b.mutex.Unlock()
		return
	}
	b.pending = false
	b.mutex.Unlock()
	b.notify()
}

// Flush delivers a pending notification immediately.
func (b *notifyBatcher) Flush() {
	b.mutex.Lock()
	if b.stopped || !b.pending {
		b.mutex.Unlock()
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.pending = false
	b.mutex.Unlock()
	b.notify()
}

func (b *notifyBatcher) Stop() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.stopped = true
	b.pending = false
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
