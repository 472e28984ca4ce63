package channel

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/slurmdash/slurmdash/internal/statesync/metrics"
	"github.com/slurmdash/slurmdash/pkg/api"
)

type State int

const (
	Closed State = iota
	Connecting
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	}
	return "unknown"
}

// Conn is one open push-channel connection.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens push-channel connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Activity reports whether the hosting application is in the foreground.
// While inactive no new connection attempts are made; an already open
// connection is left alone.
type Activity interface {
	IsActive() bool
}

// Channel owns the single push-channel connection for the process.
// Lifecycle: Closed -> Connecting -> Open -> Closed; a dropped connection
// returns to Closed before a reconnect attempt is scheduled.
type Channel struct {
	url      string
	dialer   Dialer
	backoff  BackoffPolicy
	activity Activity

	dialTimeout time.Duration

	mutex            sync.Mutex
	state            State
	conn             Conn
	attempt          int
	reconnectTimer   *time.Timer
	reconnectPending bool
	wantConnected    bool
	destroyed        bool

	onMessage      func(*api.PushMessage)
	onConnected    func()
	onDisconnected func()
}

func New(url string, dialer Dialer, backoff BackoffPolicy, activity Activity) *Channel {
	return &Channel{
		url:         url,
		dialer:      dialer,
		backoff:     backoff,
		activity:    activity,
		dialTimeout: 10 * time.Second,
		state:       Closed,
	}
}

// Handlers must be registered before the first Connect call.
func (c *Channel) OnMessage(callback func(*api.PushMessage)) { c.onMessage = callback }
func (c *Channel) OnConnected(callback func())               { c.onConnected = callback }
func (c *Channel) OnDisconnected(callback func())            { c.onDisconnected = callback }

func (c *Channel) State() State {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state
}

// Connect starts the connection attempt. It is a no-op while the channel is
// already connecting or open.
func (c *Channel) Connect() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.wantConnected = true
	if c.destroyed || c.state == Connecting || c.state == Open {
		return
	}
	c.stopReconnectTimerLocked()
	c.state = Connecting
	go c.run()
}

func (c *Channel) run() {
	ctx, cancel := context.WithTimeout(context.Background(), c.dialTimeout)
	conn, err := c.dialer.Dial(ctx, c.url)
	cancel()

	c.mutex.Lock()
	if c.destroyed || !c.wantConnected {
		c.state = Closed
		c.mutex.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.state = Closed
		c.mutex.Unlock()
		log.Warnf("push channel connection to %s failed: %v", c.url, err)
		c.notifyDisconnected()
		c.scheduleReconnect()
		return
	}

	c.conn = conn
	c.state = Open
	c.attempt = 0
	c.mutex.Unlock()

	log.Infof("push channel connected to %s", c.url)
	metrics.ChannelConnectsTotal.Inc()
	metrics.ChannelConnected.Set(1)
	if c.onConnected != nil {
		c.onConnected()
	}

	c.readLoop(conn)
}

func (c *Channel) readLoop(conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.mutex.Lock()
			intentional := c.destroyed || !c.wantConnected
			c.state = Closed
			c.conn = nil
			c.mutex.Unlock()

			metrics.ChannelConnected.Set(0)
			if intentional {
				return
			}
			log.Warnf("push channel closed: %v", err)
			metrics.ChannelDisconnectsTotal.Inc()
			c.notifyDisconnected()
			c.scheduleReconnect()
			return
		}

		message, err := api.DecodePushMessage(data)
		if err != nil {
			metrics.DecodeFailuresTotal.Inc()
			log.Warnf("dropping malformed push message: %v", err)
			continue
		}
		if c.onMessage != nil {
			c.onMessage(message)
		}
	}
}

func (c *Channel) scheduleReconnect() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.destroyed || !c.wantConnected || c.state != Closed {
		return
	}
	if !c.activity.IsActive() {
		// Deferred until the application becomes active again.
		c.reconnectPending = true
		return
	}
	c.attempt++
	delay := c.backoff.Delay(c.attempt)
	log.Infof("push channel reconnect attempt %d in %s", c.attempt, delay)
	c.reconnectTimer = time.AfterFunc(delay, c.tryReconnect)
}

func (c *Channel) tryReconnect() {
	c.mutex.Lock()
	if c.destroyed || !c.wantConnected || c.state != Closed {
		c.mutex.Unlock()
		return
	}
	c.state = Connecting
	c.mutex.Unlock()
	c.run()
}

// ResumeNow makes an immediate connection attempt, bypassing any backoff
// delay. Called when the application returns to the foreground.
func (c *Channel) ResumeNow() {
	c.mutex.Lock()
	if c.destroyed || !c.wantConnected || c.state != Closed {
		c.mutex.Unlock()
		return
	}
	c.stopReconnectTimerLocked()
	c.reconnectPending = false
	c.attempt = 0
	c.state = Connecting
	c.mutex.Unlock()
	go c.run()
}

// Close tears the channel down. Safe to call multiple times.
func (c *Channel) Close() {
	c.mutex.Lock()
	c.destroyed = true
	c.wantConnected = false
	c.stopReconnectTimerLocked()
	conn := c.conn
	c.conn = nil
	c.state = Closed
	c.mutex.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	metrics.ChannelConnected.Set(0)
}

func (c *Channel) stopReconnectTimerLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Channel) notifyDisconnected() {
	if c.onDisconnected != nil {
		c.onDisconnected()
	}
}
