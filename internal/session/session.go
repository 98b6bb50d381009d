package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"mt4bridge/internal/ports"
)

// MessageHandler observes reply traffic drained by the dispatcher.
type MessageHandler func(msg string)

// StreamHandler consumes tick feed frames drained by the dispatcher.
type StreamHandler func(msg string)

// Config holds the session-scoped settings and collaborator callbacks.
type Config struct {
	CommandEndpoint string
	ReplyEndpoint   string
	FeedEndpoint    string

	MaxRetries   int           // bounded retries for connect, reconnect and send
	RetryDelay   time.Duration // delay between attempts
	PollInterval time.Duration // dispatcher poll timeout
	JoinTimeout  time.Duration // shutdown goroutine join budget
	ReplyQueue   int           // buffered replies awaiting Receive

	Logger ports.Logger

	// OnMessage, when set, observes every reply message in addition to the
	// Receive queue. OnStream consumes feed frames; without it they are
	// dropped with a debug log.
	OnMessage MessageHandler
	OnStream  StreamHandler
}

func (cfg *Config) withDefaults() Config {
	out := *cfg
	if out.MaxRetries <= 0 {
		out.MaxRetries = 3
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = time.Second
	}
	if out.PollInterval <= 0 {
		out.PollInterval = time.Second
	}
	if out.JoinTimeout <= 0 {
		out.JoinTimeout = 2 * time.Second
	}
	if out.ReplyQueue <= 0 {
		out.ReplyQueue = 64
	}
	return out
}

// Status is a snapshot of the whole session's health.
type Status struct {
	Active   bool
	Channels map[Role]ChannelStatus
}

// Session owns the three channels, one monitor goroutine per channel and a
// single dispatcher goroutine. It is created once via Open and torn down
// once (idempotently) via Shutdown.
type Session struct {
	cfg       Config
	log       ports.Logger
	transport ports.Transport
	poller    ports.Poller
	channels  map[Role]*Channel

	active     atomic.Bool
	shutdownFl atomic.Bool
	done       chan struct{}
	wg         sync.WaitGroup

	replyQ chan string
}

// Open dials all three channels with bounded retries and starts the monitor
// and dispatcher goroutines. A connect failure after exhausting the retry
// budget is fatal and returned to the caller.
func Open(transport ports.Transport, cfg Config) (*Session, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for session: %w", ports.ErrConfigurationError)
	}
	if transport == nil {
		return nil, fmt.Errorf("transport is required for session: %w", ports.ErrConfigurationError)
	}
	if cfg.CommandEndpoint == "" || cfg.ReplyEndpoint == "" || cfg.FeedEndpoint == "" {
		return nil, fmt.Errorf("all three channel endpoints are required: %w", ports.ErrConfigurationError)
	}

	s := &Session{
		cfg:       cfg.withDefaults(),
		log:       cfg.Logger,
		transport: transport,
		done:      make(chan struct{}),
	}
	s.replyQ = make(chan string, s.cfg.ReplyQueue)
	s.channels = map[Role]*Channel{
		RoleCommand: newChannel(RoleCommand, ports.KindPush, s.cfg.CommandEndpoint),
		RoleReply:   newChannel(RoleReply, ports.KindPull, s.cfg.ReplyEndpoint),
		RoleFeed:    newChannel(RoleFeed, ports.KindSub, s.cfg.FeedEndpoint),
	}

	ctx := context.Background()
	var lastErr error
	connected := false
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		if err := s.dialAll(); err != nil {
			lastErr = err
			s.log.Error(ctx, err, "session connect attempt failed", map[string]interface{}{
				"attempt": attempt, "maxRetries": s.cfg.MaxRetries,
			})
			s.closeSockets()
			if attempt < s.cfg.MaxRetries {
				time.Sleep(s.cfg.RetryDelay)
			}
			continue
		}
		connected = true
		break
	}
	if !connected {
		return nil, fmt.Errorf("session open failed after %d attempts: %w: %w", s.cfg.MaxRetries, ports.ErrConnectFailed, lastErr)
	}

	s.poller = transport.NewPoller()
	// Only reply and feed are multiplexed; the command channel is write-only.
	s.poller.Register(s.channels[RoleReply].socket())
	s.poller.Register(s.channels[RoleFeed].socket())

	s.active.Store(true)

	for _, role := range roles() {
		s.wg.Add(1)
		go s.monitorLoop(s.channels[role])
	}
	s.wg.Add(1)
	go s.dispatchLoop()

	s.log.Info(ctx, "session established", map[string]interface{}{
		"command": s.cfg.CommandEndpoint,
		"reply":   s.cfg.ReplyEndpoint,
		"feed":    s.cfg.FeedEndpoint,
	})
	return s, nil
}

func (s *Session) dialAll() error {
	for _, role := range roles() {
		ch := s.channels[role]
		sock, err := s.transport.Dial(ch.kind, ch.endpoint)
		if err != nil {
			return fmt.Errorf("dialing %s channel %s: %w", ch.role, ch.endpoint, err)
		}
		ch.swap(sock)
		ch.setConnected(true)
	}
	return nil
}

func (s *Session) channel(role Role) *Channel { return s.channels[role] }

func (s *Session) closing() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Active reports whether the session is up and not shut down.
func (s *Session) Active() bool { return s.active.Load() }

// Connected reports the health of one channel.
func (s *Session) Connected(role Role) bool {
	ch := s.channel(role)
	if ch == nil {
		return false
	}
	return ch.Connected()
}

// Status returns a snapshot of all channel states.
func (s *Session) Status() Status {
	st := Status{Active: s.Active(), Channels: make(map[Role]ChannelStatus, 3)}
	for _, role := range roles() {
		st.Channels[role] = s.channel(role).statusSnapshot()
	}
	return st
}

// Send pushes one command message to the terminal. It returns false when the
// command channel is unhealthy or after bounded retries on transient
// transport errors; a persistent error nudges the channel's reconnect.
// Expected failures are return values, never panics or errors.
func (s *Session) Send(msg string) bool {
	ctx := context.Background()
	ch := s.channel(RoleCommand)
	if !s.Active() || !ch.Connected() {
		s.log.Warn(ctx, "send skipped, command channel unhealthy", map[string]interface{}{"message": msg})
		return false
	}

	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		sock := ch.socket()
		if sock == nil {
			break
		}
		err := sock.Send(msg)
		if err == nil {
			s.log.Debug(ctx, "command sent", map[string]interface{}{"message": msg})
			return true
		}
		if errors.Is(err, ports.ErrBusy) {
			s.log.Warn(ctx, "send busy, retrying", map[string]interface{}{
				"attempt": attempt, "maxRetries": s.cfg.MaxRetries,
			})
			if attempt < s.cfg.MaxRetries {
				time.Sleep(s.cfg.RetryDelay)
			}
			continue
		}
		// Persistent transport error: escalate to channel-scoped reconnect.
		s.log.Error(ctx, err, "send failed, requesting command channel reconnect")
		ch.setConnected(false)
		ch.nudge()
		return false
	}

	s.log.Warn(ctx, "send retries exhausted", map[string]interface{}{"message": msg})
	return false
}

// Receive waits up to timeout for the next reply message. The boolean is
// false on timeout, which is an expected outcome, not an error. A reply
// already queued by the dispatcher is returned immediately.
func (s *Session) Receive(timeout time.Duration) (string, bool) {
	select {
	case msg := <-s.replyQ:
		return msg, true
	default:
	}
	if timeout <= 0 {
		return "", false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-s.replyQ:
		return msg, true
	case <-timer.C:
		return "", false
	case <-s.done:
		return "", false
	}
}

// Subscribe adds a topic filter on the feed channel. The topic is recorded
// so a feed reconnect re-subscribes it.
func (s *Session) Subscribe(topic string) error {
	ch := s.channel(RoleFeed)
	sock := ch.socket()
	if sock == nil {
		return ports.ErrChannelUnhealthy
	}
	if err := sock.Subscribe(topic); err != nil {
		return fmt.Errorf("subscribing %q: %w", topic, err)
	}
	ch.trackTopic(topic)
	s.log.Info(context.Background(), "subscribed to feed topic", map[string]interface{}{"topic": topic})
	return nil
}

// Unsubscribe removes a topic filter on the feed channel.
func (s *Session) Unsubscribe(topic string) error {
	ch := s.channel(RoleFeed)
	sock := ch.socket()
	if sock == nil {
		return ports.ErrChannelUnhealthy
	}
	if err := sock.Unsubscribe(topic); err != nil {
		return fmt.Errorf("unsubscribing %q: %w", topic, err)
	}
	ch.forgetTopic(topic)
	s.log.Info(context.Background(), "unsubscribed from feed topic", map[string]interface{}{"topic": topic})
	return nil
}

// Shutdown stops the goroutines, closes all sockets and releases the
// transport context. Safe to call multiple times.
func (s *Session) Shutdown() {
	if !s.shutdownFl.CompareAndSwap(false, true) {
		return
	}
	ctx := context.Background()
	s.log.Info(ctx, "session shutdown initiated")
	s.active.Store(false)
	close(s.done)

	joined := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(joined)
	}()
	select {
	case <-joined:
	case <-time.After(s.cfg.JoinTimeout):
		s.log.Warn(ctx, "session goroutines did not stop within join timeout", map[string]interface{}{
			"timeout": s.cfg.JoinTimeout.String(),
		})
	}

	for _, role := range roles() {
		ch := s.channel(role)
		if sock := ch.socket(); sock != nil {
			if err := sock.Close(); err != nil {
				// Already-closed handles are tolerated at shutdown.
				s.log.Debug(ctx, "closing channel socket", map[string]interface{}{
					"role": ch.role, "error": err.Error(),
				})
			}
		}
		ch.setConnected(false)
	}

	if err := s.transport.Close(); err != nil {
		s.log.Warn(ctx, "transport close reported error", map[string]interface{}{"error": err.Error()})
	}
	s.log.Info(ctx, "session shutdown complete")
}

func (s *Session) sleepInterruptible(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-s.done:
	}
}

func (s *Session) closeSockets() {
	for _, role := range roles() {
		ch := s.channels[role]
		if sock := ch.socket(); sock != nil {
			_ = sock.Close()
			ch.swap(nil)
		}
		ch.setConnected(false)
	}
}
