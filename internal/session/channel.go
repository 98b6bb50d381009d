package session

import (
	"sync"
	"sync/atomic"
	"time"

	"mt4bridge/internal/ports"
)

// Role identifies one of the three logical channels of a session.
type Role string

const (
	RoleCommand Role = "command" // PUSH, host -> terminal
	RoleReply   Role = "reply"   // PULL, terminal -> host
	RoleFeed    Role = "feed"    // SUB, terminal -> host broadcast
)

func roles() []Role { return []Role{RoleCommand, RoleReply, RoleFeed} }

// ChannelStatus is a point-in-time snapshot of one channel's health.
type ChannelStatus struct {
	Role        Role
	Connected   bool
	LastEvent   string
	LastEventAt time.Time
	Retries     int
	Received    uint64
}

// Channel is one logical directional path bound to a transport endpoint.
// The socket handle is swapped only by the channel's monitor goroutine; the
// dispatcher and callers read it through socket(), so a swap is a short
// critical section and a half-valid handle is never observed.
type Channel struct {
	role     Role
	kind     ports.SocketKind
	endpoint string

	mu          sync.RWMutex
	sock        ports.Socket
	connected   bool
	lastEvent   ports.ConnEvent
	hasEvent    bool
	lastEventAt time.Time
	retries     int
	topics      map[string]struct{} // feed only, re-applied after reconnect

	received atomic.Uint64

	// kick requests a channel-scoped reconnect from the monitor goroutine.
	// Capacity 1: repeated nudges while a reconnect is pending collapse.
	kick chan struct{}
}

func newChannel(role Role, kind ports.SocketKind, endpoint string) *Channel {
	return &Channel{
		role:     role,
		kind:     kind,
		endpoint: endpoint,
		topics:   make(map[string]struct{}),
		kick:     make(chan struct{}, 1),
	}
}

// socket returns the current handle, or nil when the channel is down.
func (c *Channel) socket() ports.Socket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sock
}

func (c *Channel) swap(s ports.Socket) {
	c.mu.Lock()
	c.sock = s
	c.mu.Unlock()
}

// Connected reports channel health without touching the socket.
func (c *Channel) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Channel) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *Channel) noteEvent(ev ports.ConnEvent) {
	c.mu.Lock()
	c.lastEvent = ev
	c.hasEvent = true
	c.lastEventAt = time.Now()
	c.mu.Unlock()
}

func (c *Channel) noteRetry() {
	c.mu.Lock()
	c.retries++
	c.mu.Unlock()
}

func (c *Channel) resetRetries() {
	c.mu.Lock()
	c.retries = 0
	c.mu.Unlock()
}

func (c *Channel) trackTopic(topic string) {
	c.mu.Lock()
	c.topics[topic] = struct{}{}
	c.mu.Unlock()
}

func (c *Channel) forgetTopic(topic string) {
	c.mu.Lock()
	delete(c.topics, topic)
	c.mu.Unlock()
}

func (c *Channel) topicsSnapshot() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	return out
}

// nudge asks the monitor goroutine for a reconnect without blocking the
// caller. Used by Send and the dispatcher on persistent transport errors.
func (c *Channel) nudge() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func (c *Channel) statusSnapshot() ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := ChannelStatus{
		Role:        c.role,
		Connected:   c.connected,
		LastEventAt: c.lastEventAt,
		Retries:     c.retries,
		Received:    c.received.Load(),
	}
	if c.hasEvent {
		st.LastEvent = c.lastEvent.String()
	}
	return st
}
