package ports

import "time"

// SocketKind selects the messaging pattern of a dialed socket.
type SocketKind int

const (
	KindPush SocketKind = iota // command channel, host -> terminal
	KindPull                   // reply channel, terminal -> host
	KindSub                    // feed channel, terminal -> host broadcast
)

func (k SocketKind) String() string {
	switch k {
	case KindPush:
		return "push"
	case KindPull:
		return "pull"
	case KindSub:
		return "sub"
	default:
		return "unknown"
	}
}

// ConnEvent is a connection lifecycle notification observed on a socket.
type ConnEvent int

const (
	EventConnected ConnEvent = iota
	EventConnectRetried
	EventDisconnected
	EventClosed
)

func (e ConnEvent) String() string {
	switch e {
	case EventConnected:
		return "CONNECTED"
	case EventConnectRetried:
		return "CONNECT_RETRIED"
	case EventDisconnected:
		return "DISCONNECTED"
	case EventClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Socket is one directional message path bound to a transport endpoint.
// Send and Recv never block: they report ErrBusy / ErrNoMessage instead so
// callers own all waiting and retry policy.
type Socket interface {
	Send(msg string) error
	Recv() (string, error)
	// Subscribe and Unsubscribe manage topic filters on KindSub sockets and
	// return ErrUnsupportedSocket on other kinds.
	Subscribe(topic string) error
	Unsubscribe(topic string) error
	// Events exposes connection lifecycle notifications. The channel is
	// closed when the socket is closed.
	Events() <-chan ConnEvent
	Close() error
}

// Poller waits on a set of sockets for readability.
type Poller interface {
	Register(s Socket)
	Unregister(s Socket)
	// Poll blocks up to timeout and returns the sockets with pending
	// messages, or an empty slice when the timeout elapses.
	Poll(timeout time.Duration) ([]Socket, error)
}

// Transport owns the underlying messaging context and creates sockets.
type Transport interface {
	Dial(kind SocketKind, endpoint string) (Socket, error)
	NewPoller() Poller
	Close() error
}
