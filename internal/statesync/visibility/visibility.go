package visibility

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Controller tracks whether the hosting application is in the foreground.
// The embedding layer (browser shim, terminal UI, suspend handler) drives it
// through SetActive; the sync engine registers callbacks for the transitions.
//
// Callbacks fire only on actual transitions, so repeated SetActive(true)
// calls are harmless.
type Controller struct {
	mutex        sync.Mutex
	active       bool
	onActivate   []func()
	onDeactivate []func()
}

func NewController() *Controller {
	return &Controller{active: true}
}

func (c *Controller) OnActivate(callback func()) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.onActivate = append(c.onActivate, callback)
}

func (c *Controller) OnDeactivate(callback func()) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.onDeactivate = append(c.onDeactivate, callback)
}

func (c *Controller) IsActive() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.active
}

func (c *Controller) SetActive(active bool) {
	c.mutex.Lock()
	if c.active == active {
		c.mutex.Unlock()
		return
	}
	c.active = active
	var callbacks []func()
	if active {
		callbacks = append(callbacks, c.onActivate...)
	} else {
		callbacks = append(callbacks, c.onDeactivate...)
	}
	c.mutex.Unlock()

	if active {
		log.Info("application became active, resuming synchronization")
	} else {
		log.Info("application became inactive, suspending non-essential synchronization")
	}
	for _, callback := range callbacks {
		callback()
	}
}
