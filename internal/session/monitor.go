package session

import (
	"context"

	"github.com/jpillora/backoff"

	"mt4bridge/internal/ports"
)

// monitorLoop observes connection events for one channel and owns that
// channel's reconnection. No other goroutine ever swaps the socket handle,
// so the unregister -> close -> dial -> re-subscribe -> register sequence
// is race free with respect to the dispatcher.
func (s *Session) monitorLoop(ch *Channel) {
	defer s.wg.Done()
	ctx := context.Background()
	s.log.Debug(ctx, "channel monitor started", map[string]interface{}{"role": ch.role})

	for {
		sock := ch.socket()
		if sock == nil {
			// Reconnect exhausted its budget; stay alive to honor later
			// nudges from Send or the dispatcher.
			select {
			case <-s.done:
				s.log.Debug(ctx, "channel monitor stopped", map[string]interface{}{"role": ch.role})
				return
			case <-ch.kick:
				s.reconnect(ctx, ch)
			}
			continue
		}

		select {
		case <-s.done:
			s.log.Debug(ctx, "channel monitor stopped", map[string]interface{}{"role": ch.role})
			return

		case <-ch.kick:
			s.reconnect(ctx, ch)

		case ev, ok := <-sock.Events():
			if !ok {
				// The socket was closed underneath us. During shutdown that
				// is expected; otherwise treat it as a disconnect, unless
				// the handle was already swapped by a kick-driven reconnect.
				if s.closing() {
					continue
				}
				if ch.socket() != sock {
					continue
				}
				ch.setConnected(false)
				s.reconnect(ctx, ch)
				continue
			}

			ch.noteEvent(ev)
			s.log.Debug(ctx, "channel event", map[string]interface{}{"role": ch.role, "event": ev.String()})

			switch ev {
			case ports.EventConnected:
				ch.setConnected(true)
			case ports.EventDisconnected, ports.EventClosed:
				ch.setConnected(false)
				if s.closing() {
					continue
				}
				s.log.Warn(ctx, "channel disconnected, reconnecting", map[string]interface{}{"role": ch.role})
				s.reconnect(ctx, ch)
			}
		}
	}
}

// reconnect swaps the channel's socket for a fresh one with bounded retries.
// The old handle is unregistered from the poll set (reply/feed only; the
// command channel is not multiplexed) before it is closed, and the new one
// registered only once fully connected and re-subscribed. Exhausting the
// budget leaves the channel unhealthy; callers observe that only through
// health accessors.
func (s *Session) reconnect(ctx context.Context, ch *Channel) bool {
	delay := &backoff.Backoff{
		Min:    s.cfg.RetryDelay,
		Max:    4 * s.cfg.RetryDelay,
		Factor: 2,
		Jitter: true,
	}

	if old := ch.socket(); old != nil {
		if ch.role != RoleCommand {
			s.poller.Unregister(old)
		}
		_ = old.Close()
		ch.swap(nil)
	}

	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		if s.closing() {
			return false
		}
		s.log.Info(ctx, "reconnecting channel", map[string]interface{}{
			"role": ch.role, "attempt": attempt, "maxRetries": s.cfg.MaxRetries,
		})

		sock, err := s.transport.Dial(ch.kind, ch.endpoint)
		if err != nil {
			ch.noteRetry()
			s.log.Error(ctx, err, "channel reconnect attempt failed", map[string]interface{}{
				"role": ch.role, "attempt": attempt,
			})
			if attempt < s.cfg.MaxRetries {
				s.sleepInterruptible(delay.Duration())
			}
			continue
		}

		if ch.role == RoleFeed {
			for _, topic := range ch.topicsSnapshot() {
				if err := sock.Subscribe(topic); err != nil {
					s.log.Warn(ctx, "re-subscribe failed after reconnect", map[string]interface{}{
						"topic": topic, "error": err.Error(),
					})
				}
			}
		}

		ch.swap(sock)
		if ch.role != RoleCommand {
			s.poller.Register(sock)
		}
		ch.setConnected(true)
		ch.resetRetries()
		s.log.Info(ctx, "channel reconnected", map[string]interface{}{"role": ch.role})
		return true
	}

	ch.setConnected(false)
	s.log.Error(ctx, ports.ErrChannelUnhealthy, "channel reconnect budget exhausted", map[string]interface{}{
		"role": ch.role, "maxRetries": s.cfg.MaxRetries,
	})
	return false
}
