// Package spectator implements component B: the per-connection state
// machine that bridges the asynchronous reactor (reading/writing frames
// over a Transport) and the synchronous game worker (blocking on GetSync
// and SendSync).
package spectator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/open-tabletop/server/internal/transport"
	"github.com/open-tabletop/server/internal/types"
)

// Interceptor consumes an inbound frame before it reaches the normal
// answer queue. It returns true if it handled the frame (in which case
// the frame is NOT appended to the inbound queue). Used by the chat
// fan-out (component D) to steal `/`-prefixed frames.
type Interceptor func(frame string) (handled bool)

// Spectator is a single connection's state machine. Exactly one mutex
// guards the three fields the spec calls out as shared across the
// reactor/worker boundary: the inbound queue, the state, and the
// "listening" flag. The outbound queue is a separate, reactor-native
// channel requiring no additional locking.
type Spectator struct {
	log *zap.Logger

	mu        sync.Mutex
	cond      *sync.Cond
	state     types.State
	inbound   []string
	listening bool

	interceptor Interceptor

	outbound chan any
	tr       transport.Transport
}

// New constructs a Spectator in StateFree; ad-hoc (non-Session) spectators
// should immediately call Claim() since they begin life at connect time.
func New(log *zap.Logger) *Spectator {
	s := &Spectator{
		log:      log,
		state:    types.StateFree,
		outbound: make(chan any, 64),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// State returns the current state under lock.
func (s *Spectator) State() types.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Claim transitions FREE -> CLAIMED: a client has passed HTTP routing and
// is about to have its transport upgraded. Panics if not FREE, matching
// the Python source's assertion (a claim precondition violation is a
// programming error in the caller, which must check state first).
func (s *Spectator) Claim() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != types.StateFree {
		panic("spectator.Claim: state is not FREE")
	}
	s.state = types.StateClaimed
}

// OnConnect stores the (already upgraded) transport and transitions
// CLAIMED -> CONNECTED, signaling any blocked consumer.
func (s *Spectator) OnConnect(tr transport.Transport) {
	s.mu.Lock()
	if s.state != types.StateClaimed {
		s.mu.Unlock()
		panic("spectator.OnConnect: state is not CLAIMED")
	}
	s.tr = tr
	s.state = types.StateConnected
	s.cond.Broadcast()
	s.mu.Unlock()
}

// SetInterceptor installs the chat message interceptor. At most one
// interceptor may be installed at a time; installing a second one while
// the first is active is a programming error (the slot, not a stack).
func (s *Spectator) SetInterceptor(i Interceptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i != nil && s.interceptor != nil {
		panic("spectator: interceptor slot already occupied")
	}
	s.interceptor = i
}

// Run reads frames from the transport until it closes, dispatching each
// one either to the active interceptor or the inbound queue. It also
// starts the outbound pump and waits for both to finish. Run returns once
// the connection has fully ended; callers typically invoke it in its own
// goroutine per connection.
func (s *Spectator) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Each Run owns its pump, so a Session can Run again after a reconnect.
	sendDone := make(chan struct{}) // closed when this Run's outbound pump exits
	go func() {
		defer close(sendDone)
		s.pumpOutbound(ctx)
	}()

	for {
		frame, err := s.tr.Recv(ctx)
		if err != nil {
			break
		}
		s.handleInbound(frame)
	}

	s.mu.Lock()
	if s.state == types.StateConnected {
		s.state = types.StateFree
	}
	s.cond.Broadcast()
	s.mu.Unlock()

	cancel()
	<-sendDone
}

func (s *Spectator) handleInbound(frame string) {
	s.mu.Lock()
	interceptor := s.interceptor
	listening := s.listening
	s.mu.Unlock()

	if interceptor != nil && interceptor(frame) {
		return
	}

	s.mu.Lock()
	if !listening && frame == types.ClientLostTrackMessage {
		// Discarded: nothing is waiting on it and it carries no new
		// information when not listening.
		s.mu.Unlock()
		return
	}
	s.inbound = append(s.inbound, frame)
	s.cond.Broadcast()
	s.mu.Unlock()

	if !listening {
		// Out-of-band hint so the client UI can suppress further input
		// until the next question arrives.
		_ = s.tr.Send(context.Background(), "!Not listening")
	}
}

func (s *Spectator) pumpOutbound(ctx context.Context) {
	for {
		select {
		case frame := <-s.outbound:
			if err := s.tr.Send(ctx, frame); err != nil && s.log != nil {
				s.log.Debug("outbound send failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Interrupt transitions to the terminal INTERRUPTED_BY_SERVER state and
// wakes any blocked GetSync. Idempotent.
func (s *Spectator) Interrupt() {
	s.mu.Lock()
	s.state = types.StateInterrupted
	s.cond.Broadcast()
	s.mu.Unlock()
	if s.tr != nil {
		_ = s.tr.Close()
	}
}

// SendSync enqueues a frame onto the outbound queue; actual transmission
// happens on the reactor-driven outbound pump goroutine. While the bounded
// queue has room this is a plain hand-off; when it is full, SendSync
// blocks until the pump has taken a frame.
func (s *Spectator) SendSync(frame any) {
	select {
	case s.outbound <- frame:
	default:
		// Outbound is a bounded channel; spec requires waiting rather
		// than dropping except during teardown, so fall back to a
		// blocking send once the fast path is full.
		s.outbound <- frame
	}
}

// GetSync blocks until the inbound queue is non-empty or the state leaves
// CONNECTED, returning the oldest queued frame. On a state change away
// from CONNECTED with an empty queue it fails with a *DisconnectedError
// carrying the observed state.
func (s *Spectator) GetSync() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listening = true
	if len(s.inbound) == 0 {
		if s.state != types.StateConnected {
			s.listening = false
			return "", &types.DisconnectedError{State: s.state}
		}
		for len(s.inbound) == 0 && s.state == types.StateConnected {
			s.cond.Wait()
		}
		if len(s.inbound) == 0 && s.state != types.StateConnected {
			s.listening = false
			return "", &types.DisconnectedError{State: s.state}
		}
	}

	s.listening = false
	frame := s.inbound[0]
	s.inbound = s.inbound[1:]
	return frame, nil
}
