package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mt4bridge/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// fakeSocket is a scriptable in-memory socket. Tests inject inbound messages
// with push and connection events through the events channel.
type fakeSocket struct {
	kind     ports.SocketKind
	endpoint string
	events   chan ports.ConnEvent

	mu       sync.Mutex
	inbox    []string
	sent     []string
	subs     map[string]struct{}
	closed   bool
	sendErr  error
	busyLeft int
}

func newFakeSocket(kind ports.SocketKind, endpoint string) *fakeSocket {
	return &fakeSocket{
		kind:     kind,
		endpoint: endpoint,
		events:   make(chan ports.ConnEvent, 8),
		subs:     make(map[string]struct{}),
	}
}

func (s *fakeSocket) push(msg string) {
	s.mu.Lock()
	s.inbox = append(s.inbox, msg)
	s.mu.Unlock()
}

func (s *fakeSocket) hasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && len(s.inbox) > 0
}

func (s *fakeSocket) sentMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *fakeSocket) subscribed(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[topic]
	return ok
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSocket) Send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ports.ErrTransportClosed
	}
	if s.busyLeft > 0 {
		s.busyLeft--
		return ports.ErrBusy
	}
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSocket) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ports.ErrTransportClosed
	}
	if len(s.inbox) == 0 {
		return "", ports.ErrNoMessage
	}
	msg := s.inbox[0]
	s.inbox = s.inbox[1:]
	return msg, nil
}

func (s *fakeSocket) Subscribe(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[topic] = struct{}{}
	return nil
}

func (s *fakeSocket) Unsubscribe(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, topic)
	return nil
}

func (s *fakeSocket) Events() <-chan ports.ConnEvent { return s.events }

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ports.ErrTransportClosed
	}
	s.closed = true
	close(s.events)
	return nil
}

// fakeTransport hands out fakeSockets and can be scripted to fail dials.
type fakeTransport struct {
	mu        sync.Mutex
	dialFails map[ports.SocketKind]int // remaining dial failures per kind
	dialCount map[ports.SocketKind]int
	sockets   []*fakeSocket
	closed    bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		dialFails: make(map[ports.SocketKind]int),
		dialCount: make(map[ports.SocketKind]int),
	}
}

func (t *fakeTransport) failNextDials(kind ports.SocketKind, n int) {
	t.mu.Lock()
	t.dialFails[kind] = n
	t.mu.Unlock()
}

func (t *fakeTransport) Dial(kind ports.SocketKind, endpoint string) (ports.Socket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dialCount[kind]++
	if t.dialFails[kind] > 0 {
		t.dialFails[kind]--
		return nil, fmt.Errorf("scripted dial failure for %s", kind)
	}
	s := newFakeSocket(kind, endpoint)
	t.sockets = append(t.sockets, s)
	return s, nil
}

func (t *fakeTransport) NewPoller() ports.Poller {
	return &fakePoller{members: make(map[*fakeSocket]struct{})}
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// latest returns the most recently dialed socket of a kind.
func (t *fakeTransport) latest(kind ports.SocketKind) *fakeSocket {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.sockets) - 1; i >= 0; i-- {
		if t.sockets[i].kind == kind {
			return t.sockets[i]
		}
	}
	return nil
}

func (t *fakeTransport) dials(kind ports.SocketKind) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dialCount[kind]
}

// fakePoller reports members with pending inbox entries, checking every
// millisecond up to the poll timeout.
type fakePoller struct {
	mu      sync.Mutex
	members map[*fakeSocket]struct{}
}

func (p *fakePoller) Register(s ports.Socket) {
	fs, ok := s.(*fakeSocket)
	if !ok {
		return
	}
	p.mu.Lock()
	p.members[fs] = struct{}{}
	p.mu.Unlock()
}

func (p *fakePoller) Unregister(s ports.Socket) {
	fs, ok := s.(*fakeSocket)
	if !ok {
		return
	}
	p.mu.Lock()
	delete(p.members, fs)
	p.mu.Unlock()
}

func (p *fakePoller) Poll(timeout time.Duration) ([]ports.Socket, error) {
	deadline := time.Now().Add(timeout)
	for {
		p.mu.Lock()
		var ready []ports.Socket
		for m := range p.members {
			if m.hasPending() {
				ready = append(ready, m)
			}
		}
		p.mu.Unlock()
		if len(ready) > 0 || !time.Now().Before(deadline) {
			return ready, nil
		}
		time.Sleep(time.Millisecond)
	}
}
