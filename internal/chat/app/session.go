package app

import (
	"context"
	"sync"
	"time"

	"hiresphere/internal/chat/domain"
	"hiresphere/internal/chat/repository"
	"hiresphere/pkg/logger"

	"go.uber.org/zap"
)

// DefaultRetryDelay is the fixed wait between reconnect attempts. There is
// no backoff growth and no attempt ceiling; reconnection timing stays
// observable and constant.
const DefaultRetryDelay = 5 * time.Second

// TransportSession owns the single persistent connection. It walks
// disconnected → connecting → connected, falls back to disconnected on any
// handshake failure or drop, and schedules one fixed-delay retry at a time.
type TransportSession struct {
	channel     repository.Channel
	tokenSource func() string
	retryDelay  time.Duration

	mu           sync.Mutex
	state        domain.ConnState
	onState      func(domain.ConnState)
	retryPending bool
	closed       bool
}

// NewTransportSession create TransportSession
func NewTransportSession(ch repository.Channel, tokenSource func() string, retryDelay time.Duration) *TransportSession {
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	s := &TransportSession{
		channel:     ch,
		tokenSource: tokenSource,
		retryDelay:  retryDelay,
		state:       domain.StateDisconnected,
	}
	ch.OnDisconnect(s.handleDrop)
	return s
}

// OnStateChange installs the connectivity callback. Must be set before
// Connect; transitions are the sole trigger for the re-subscribe pass.
func (s *TransportSession) OnStateChange(cb func(domain.ConnState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = cb
}

// State returns the current connectivity state.
func (s *TransportSession) State() domain.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect performs one connection attempt. A no-op while an attempt is
// already in flight or the session is connected or closed.
func (s *TransportSession) Connect(ctx context.Context) {
	s.mu.Lock()
	if s.closed || s.state != domain.StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.state = domain.StateConnecting
	s.mu.Unlock()
	s.notify(domain.StateConnecting)

	err := s.channel.Connect(ctx, s.tokenSource())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.state = domain.StateDisconnected
		s.mu.Unlock()
		logger.Log.Errorf("session connect failed:", err)
		s.notify(domain.StateDisconnected)
		s.scheduleRetry(ctx)
		return
	}
	s.state = domain.StateConnected
	s.mu.Unlock()
	logger.Log.Info("session connected")
	s.notify(domain.StateConnected)
}

// handleDrop is invoked by the channel on mid-session loss.
func (s *TransportSession) handleDrop(err error) {
	s.mu.Lock()
	if s.closed || s.state != domain.StateConnected {
		s.mu.Unlock()
		return
	}
	s.state = domain.StateDisconnected
	s.mu.Unlock()

	logger.Log.Warn("session dropped", zap.Error(err))
	s.notify(domain.StateDisconnected)
	s.scheduleRetry(context.Background())
}

// scheduleRetry arms the fixed-delay reconnect timer. At most one retry is
// pending at any time.
func (s *TransportSession) scheduleRetry(ctx context.Context) {
	s.mu.Lock()
	if s.retryPending || s.closed {
		s.mu.Unlock()
		return
	}
	s.retryPending = true
	s.mu.Unlock()

	go func() {
		timer := time.NewTimer(s.retryDelay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			s.mu.Lock()
			s.retryPending = false
			s.mu.Unlock()
			return
		}

		s.mu.Lock()
		s.retryPending = false
		skip := s.closed || s.state != domain.StateDisconnected
		s.mu.Unlock()
		if skip {
			return
		}
		s.Connect(ctx)
	}()
}

// Send publishes payload to destination. Silently a no-op unless connected;
// callers check connectivity before composing.
func (s *TransportSession) Send(destination string, payload interface{}) {
	s.mu.Lock()
	connected := s.state == domain.StateConnected
	s.mu.Unlock()
	if !connected {
		return
	}
	if err := s.channel.Publish(destination, payload); err != nil {
		logger.Log.Errorf("publish failed:", err, zap.String("destination", destination))
	}
}

// Disconnect closes the session for good. The disconnected notification
// fires first so subscriptions are cancelled before the channel closes.
// Idempotent.
func (s *TransportSession) Disconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.state = domain.StateDisconnected
	s.mu.Unlock()

	s.notify(domain.StateDisconnected)
	if err := s.channel.Close(); err != nil {
		logger.Log.Errorf("channel close:", err)
	}
	logger.Log.Info("session closed")
}

func (s *TransportSession) notify(state domain.ConnState) {
	s.mu.Lock()
	cb := s.onState
	s.mu.Unlock()
	if cb != nil {
		cb(state)
	}
}
