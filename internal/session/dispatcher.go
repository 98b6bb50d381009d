package session

import (
	"context"
	"errors"

	"mt4bridge/internal/ports"
)

// dispatchLoop is the single thread multiplexing the reply and feed
// channels. It polls with a bounded timeout, drains one message per ready
// socket per iteration and routes it to the matching handler. Transient
// errors are logged and followed by a short backoff; persistent per-channel
// errors feed that channel's reconnect path via its monitor.
func (s *Session) dispatchLoop() {
	defer s.wg.Done()
	ctx := context.Background()
	s.log.Debug(ctx, "dispatcher started")

	for {
		if s.closing() {
			s.log.Debug(ctx, "dispatcher stopped")
			return
		}

		ready, err := s.poller.Poll(s.cfg.PollInterval)
		if err != nil {
			if s.closing() {
				return
			}
			s.log.Error(ctx, err, "dispatcher poll failed, backing off")
			s.sleepInterruptible(s.cfg.RetryDelay)
			continue
		}

		for _, sock := range ready {
			// Resolve readiness against the channels' current handles. A
			// socket mid-swap matches no role and its stale readiness is
			// dropped; the new handle is picked up next iteration.
			switch {
			case sock == s.channel(RoleReply).socket():
				s.drainReply(ctx, sock)
			case sock == s.channel(RoleFeed).socket():
				s.drainFeed(ctx, sock)
			}
		}
	}
}

func (s *Session) drainReply(ctx context.Context, sock ports.Socket) {
	msg, err := sock.Recv()
	if err != nil {
		s.recvError(ctx, RoleReply, err)
		return
	}
	s.channel(RoleReply).received.Add(1)

	if s.cfg.OnMessage != nil {
		s.cfg.OnMessage(msg)
	}
	select {
	case s.replyQ <- msg:
	default:
		// Queue full: drop the oldest so the most recent reply wins.
		select {
		case dropped := <-s.replyQ:
			s.log.Warn(ctx, "reply queue full, dropping oldest", map[string]interface{}{"dropped": dropped})
		default:
		}
		select {
		case s.replyQ <- msg:
		default:
		}
	}
}

func (s *Session) drainFeed(ctx context.Context, sock ports.Socket) {
	msg, err := sock.Recv()
	if err != nil {
		s.recvError(ctx, RoleFeed, err)
		return
	}
	s.channel(RoleFeed).received.Add(1)

	if s.cfg.OnStream != nil {
		s.cfg.OnStream(msg)
		return
	}
	s.log.Debug(ctx, "feed frame dropped, no stream handler", map[string]interface{}{"frame": msg})
}

func (s *Session) recvError(ctx context.Context, role Role, err error) {
	if errors.Is(err, ports.ErrNoMessage) {
		// Readiness raced with the actual read; nothing to do.
		return
	}
	s.log.Error(ctx, err, "channel receive failed, requesting reconnect", map[string]interface{}{"role": role})
	ch := s.channel(role)
	ch.setConnected(false)
	ch.nudge()
}
