// Package zmqtransport implements the transport port on ZeroMQ. Each socket
// carries an attached monitor pair that translates libzmq connection events
// into the port-level event stream consumed by the session monitors.
package zmqtransport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	zmq "github.com/pebbe/zmq4"

	"mt4bridge/internal/ports"
)

const monitorRecvTimeout = 250 * time.Millisecond

var monitorSeq atomic.Uint64

// Transport owns one ZeroMQ context shared by all sockets it dials.
type Transport struct {
	mu     sync.Mutex
	ctx    *zmq.Context
	closed bool
}

// New creates a transport backed by a fresh ZeroMQ context.
func New() (*Transport, error) {
	ctx, err := zmq.NewContext()
	if err != nil {
		return nil, fmt.Errorf("creating zmq context: %w", err)
	}
	return &Transport{ctx: ctx}, nil
}

// Dial opens a connecting socket of the given kind and starts its monitor.
func (t *Transport) Dial(kind ports.SocketKind, endpoint string) (ports.Socket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ports.ErrTransportClosed
	}

	var ztype zmq.Type
	switch kind {
	case ports.KindPush:
		ztype = zmq.PUSH
	case ports.KindPull:
		ztype = zmq.PULL
	case ports.KindSub:
		ztype = zmq.SUB
	default:
		return nil, fmt.Errorf("socket kind %s: %w", kind, ports.ErrUnsupportedSocket)
	}

	raw, err := t.ctx.NewSocket(ztype)
	if err != nil {
		return nil, fmt.Errorf("creating %s socket: %w: %w", kind, ports.ErrConnectFailed, err)
	}
	// Linger 0 so Close never blocks on undelivered frames.
	if err := raw.SetLinger(0); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("configuring %s socket: %w: %w", kind, ports.ErrConnectFailed, err)
	}
	if kind == ports.KindSub {
		// Start with a match-all filter; callers narrow it via Subscribe.
		if err := raw.SetSubscribe(""); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("configuring sub socket: %w: %w", ports.ErrConnectFailed, err)
		}
	}

	s := &socket{
		kind:   kind,
		raw:    raw,
		events: make(chan ports.ConnEvent, 8),
	}
	if err := s.startMonitor(t.ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("monitoring %s socket: %w: %w", kind, ports.ErrConnectFailed, err)
	}

	if err := raw.Connect(endpoint); err != nil {
		s.stopMonitor()
		_ = raw.Close()
		return nil, fmt.Errorf("connecting %s to %s: %w: %w", kind, endpoint, ports.ErrConnectFailed, err)
	}
	return s, nil
}

// NewPoller returns a poll set over sockets dialed by this transport.
func (t *Transport) NewPoller() ports.Poller {
	return &poller{members: make(map[*socket]struct{})}
}

// Close terminates the ZeroMQ context. Sockets must be closed first or the
// termination will wait for them.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.ctx.Term(); err != nil {
		return fmt.Errorf("terminating zmq context: %w", err)
	}
	return nil
}

type socket struct {
	kind   ports.SocketKind
	events chan ports.ConnEvent

	mu     sync.Mutex
	raw    *zmq.Socket
	mon    *zmq.Socket
	closed bool

	monStop chan struct{}
	monDone chan struct{}
}

// Send is non-blocking. A full outbound queue surfaces as ErrBusy so the
// caller can retry with its own bounded budget.
func (s *socket) Send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ports.ErrTransportClosed
	}
	if _, err := s.raw.Send(msg, zmq.DONTWAIT); err != nil {
		if isEAGAIN(err) {
			return ports.ErrBusy
		}
		return fmt.Errorf("sending on %s socket: %w", s.kind, err)
	}
	return nil
}

// Recv is non-blocking. An empty inbound queue surfaces as ErrNoMessage;
// readiness is established by the poller, not by blocking here.
func (s *socket) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ports.ErrTransportClosed
	}
	msg, err := s.raw.Recv(zmq.DONTWAIT)
	if err != nil {
		if isEAGAIN(err) {
			return "", ports.ErrNoMessage
		}
		return "", fmt.Errorf("receiving on %s socket: %w", s.kind, err)
	}
	return msg, nil
}

func (s *socket) Subscribe(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ports.ErrTransportClosed
	}
	if s.kind != ports.KindSub {
		return ports.ErrUnsupportedSocket
	}
	if err := s.raw.SetSubscribe(topic); err != nil {
		return fmt.Errorf("subscribing %q: %w", topic, err)
	}
	return nil
}

func (s *socket) Unsubscribe(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ports.ErrTransportClosed
	}
	if s.kind != ports.KindSub {
		return ports.ErrUnsupportedSocket
	}
	if err := s.raw.SetUnsubscribe(topic); err != nil {
		return fmt.Errorf("unsubscribing %q: %w", topic, err)
	}
	return nil
}

func (s *socket) Events() <-chan ports.ConnEvent { return s.events }

func (s *socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	raw := s.raw
	s.mu.Unlock()

	s.stopMonitor()
	if err := raw.Close(); err != nil {
		return fmt.Errorf("closing %s socket: %w", s.kind, err)
	}
	return nil
}

// startMonitor attaches a libzmq monitor to the socket and pumps its events
// into the port-level channel. The monitor pair lives on an inproc endpoint
// unique to this socket.
func (s *socket) startMonitor(ctx *zmq.Context) error {
	addr := fmt.Sprintf("inproc://monitor-%s-%d", s.kind, monitorSeq.Add(1))
	mask := zmq.EVENT_CONNECTED | zmq.EVENT_CONNECT_RETRIED | zmq.EVENT_DISCONNECTED | zmq.EVENT_CLOSED | zmq.EVENT_MONITOR_STOPPED
	if err := s.raw.Monitor(addr, mask); err != nil {
		return err
	}

	mon, err := ctx.NewSocket(zmq.PAIR)
	if err != nil {
		return err
	}
	if err := mon.SetRcvtimeo(monitorRecvTimeout); err != nil {
		_ = mon.Close()
		return err
	}
	if err := mon.Connect(addr); err != nil {
		_ = mon.Close()
		return err
	}

	s.mon = mon
	s.monStop = make(chan struct{})
	s.monDone = make(chan struct{})
	go s.monitorPump()
	return nil
}

func (s *socket) stopMonitor() {
	if s.monStop == nil {
		return
	}
	select {
	case <-s.monStop:
	default:
		close(s.monStop)
	}
	<-s.monDone
}

func (s *socket) monitorPump() {
	defer close(s.monDone)
	defer close(s.events)
	defer s.mon.Close()

	for {
		select {
		case <-s.monStop:
			return
		default:
		}

		ev, _, _, err := s.mon.RecvEvent(0)
		if err != nil {
			if isEAGAIN(err) {
				continue
			}
			// Context termination or a closed pair; the event stream ends.
			return
		}

		var out ports.ConnEvent
		switch ev {
		case zmq.EVENT_CONNECTED:
			out = ports.EventConnected
		case zmq.EVENT_CONNECT_RETRIED:
			out = ports.EventConnectRetried
		case zmq.EVENT_DISCONNECTED:
			out = ports.EventDisconnected
		case zmq.EVENT_CLOSED:
			out = ports.EventClosed
		case zmq.EVENT_MONITOR_STOPPED:
			return
		default:
			continue
		}

		select {
		case s.events <- out:
		default:
			// Slow consumer; connection events are level-style signals and
			// dropping one is recoverable.
		}
	}
}

// poller tracks registered sockets and builds a fresh libzmq poll set per
// call. Registration changes between polls are cheap and race free.
type poller struct {
	mu      sync.Mutex
	members map[*socket]struct{}
}

func (p *poller) Register(s ports.Socket) {
	zs, ok := s.(*socket)
	if !ok {
		return
	}
	p.mu.Lock()
	p.members[zs] = struct{}{}
	p.mu.Unlock()
}

func (p *poller) Unregister(s ports.Socket) {
	zs, ok := s.(*socket)
	if !ok {
		return
	}
	p.mu.Lock()
	delete(p.members, zs)
	p.mu.Unlock()
}

func (p *poller) Poll(timeout time.Duration) ([]ports.Socket, error) {
	p.mu.Lock()
	members := make([]*socket, 0, len(p.members))
	for m := range p.members {
		members = append(members, m)
	}
	p.mu.Unlock()

	if len(members) == 0 {
		time.Sleep(timeout)
		return nil, nil
	}

	zp := zmq.NewPoller()
	for _, m := range members {
		m.mu.Lock()
		if !m.closed {
			zp.Add(m.raw, zmq.POLLIN)
		}
		m.mu.Unlock()
	}

	polled, err := zp.Poll(timeout)
	if err != nil {
		if isEINTR(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("polling sockets: %w", err)
	}

	ready := make([]ports.Socket, 0, len(polled))
	for _, pe := range polled {
		for _, m := range members {
			m.mu.Lock()
			match := !m.closed && m.raw == pe.Socket
			m.mu.Unlock()
			if match {
				ready = append(ready, m)
				break
			}
		}
	}
	return ready, nil
}

func isEAGAIN(err error) bool {
	return zmq.AsErrno(err) == zmq.Errno(syscall.EAGAIN)
}

func isEINTR(err error) bool {
	return zmq.AsErrno(err) == zmq.Errno(syscall.EINTR)
}
