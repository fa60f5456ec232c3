// Package session implements component C: a seat-bound Spectator that
// survives disconnects and blocks the game worker until reconnected.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/open-tabletop/server/internal/spectator"
	"github.com/open-tabletop/server/internal/transport"
	"github.com/open-tabletop/server/internal/types"
)

// DefaultReconnectTimeout matches the source's 3-minute default.
const DefaultReconnectTimeout = 3 * time.Minute

// Session wraps a Spectator with a SeatID, a reconnect timeout, and the
// claim-rule bookkeeping that binds a username to the seat on first
// successful connect.
type Session struct {
	*spectator.Spectator

	Seat    types.SeatID
	Timeout time.Duration

	mu       sync.Mutex
	username types.Username
	bound    bool

	reconnectSignal chan struct{}
}

// New constructs a Session in state FREE for the given seat.
func New(seat types.SeatID, log *zap.Logger) *Session {
	return &Session{
		Spectator:       spectator.New(log),
		Seat:            seat,
		Timeout:         DefaultReconnectTimeout,
		reconnectSignal: make(chan struct{}, 1),
	}
}

// Username returns the bound username, or "" if no client has ever
// successfully claimed the seat.
func (s *Session) Username() types.Username {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// CheckClaim validates a claim attempt against the binding rules (§4.3):
// it succeeds iff the Session is FREE and either no username has been
// bound yet or the requesting username matches the bound one. The
// username mismatch is checked before the FREE-state check: a wrong user
// claiming a seat that is still CONNECTED must see ErrWrongUser, not
// ErrSeatTaken, regardless of the seat's current state.
func (s *Session) CheckClaim(username types.Username) error {
	s.mu.Lock()
	wrongUser := s.bound && s.username != username
	s.mu.Unlock()
	if wrongUser {
		return types.ErrWrongUser
	}
	if s.State() != types.StateFree {
		return types.ErrSeatTaken
	}
	return nil
}

// Bind records the username on first successful claim. Subsequent calls
// with the same username are no-ops; the binding is immutable otherwise.
func (s *Session) Bind(username types.Username) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.bound {
		s.username = username
		s.bound = true
	}
}

// Claim reserves the seat for an incoming connection, transitioning
// FREE -> CLAIMED, and notifies anyone blocked in ReconnectSync once the
// handshake later completes via OnConnect.
func (s *Session) Claim() {
	s.Spectator.Claim()
}

// OnConnect completes the handshake and wakes any worker blocked in
// ReconnectSync.
func (s *Session) OnConnect(tr transport.Transport) {
	s.Spectator.OnConnect(tr)
	select {
	case s.reconnectSignal <- struct{}{}:
	default:
	}
}

// ReconnectSync blocks the worker until the Session is CONNECTED again,
// the configured timeout elapses, or the Session is interrupted. The
// timeout resets on every call (an Open Question in the source spec,
// resolved as per-reconnect-call, not per-session-lifetime — see
// DESIGN.md).
func (s *Session) ReconnectSync(ctx context.Context) error {
	if s.State() == types.StateConnected {
		return nil
	}
	if s.State() == types.StateInterrupted {
		return &types.DisconnectedError{State: types.StateInterrupted}
	}

	timer := time.NewTimer(s.Timeout)
	defer timer.Stop()

	for {
		select {
		case <-s.reconnectSignal:
			switch st := s.State(); st {
			case types.StateConnected:
				return nil
			case types.StateInterrupted:
				return &types.DisconnectedError{State: types.StateInterrupted}
			default:
				continue
			}
		case <-timer.C:
			return types.ErrReconnectTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Interrupt transitions to INTERRUPTED_BY_SERVER and wakes any blocked
// ReconnectSync in addition to the embedded Spectator's GetSync waiters.
func (s *Session) Interrupt() {
	s.Spectator.Interrupt()
	select {
	case s.reconnectSignal <- struct{}{}:
	default:
	}
}

// GetSync refines Spectator.GetSync: on Disconnected(FREE) it retries by
// calling ReconnectSync(); Disconnected(INTERRUPTED_BY_SERVER) propagates.
func (s *Session) GetSync(ctx context.Context) (string, error) {
	for {
		frame, err := s.Spectator.GetSync()
		if err == nil {
			return frame, nil
		}
		var disc *types.DisconnectedError
		if ok := asDisconnected(err, &disc); !ok {
			return "", err
		}
		if disc.State == types.StateInterrupted {
			return "", err
		}
		if rerr := s.ReconnectSync(ctx); rerr != nil {
			return "", rerr
		}
	}
}

func asDisconnected(err error, target **types.DisconnectedError) bool {
	d, ok := err.(*types.DisconnectedError)
	if !ok {
		return false
	}
	*target = d
	return true
}
