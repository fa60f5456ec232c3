// Package game defines the opaque GameLogic contract the core drives and
// a closed, compile-time registry of constructible games (component H).
// The rules of any particular game are an external collaborator; this
// package only fixes the shape the core needs to drive them correctly.
package game

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/open-tabletop/server/internal/agent"
	"github.com/open-tabletop/server/internal/types"
)

// Logic is the opaque interface the core consumes: two entry points,
// Play and RenderView, plus the seat-binding step performed once before
// Play begins.
type Logic interface {
	// SetAgents binds one Agent per seat, in seat order, before Play runs.
	SetAgents(agents []agent.Agent) error
	// Play drives the game to completion, blocking the calling worker
	// goroutine. It returns when the game ends, normally or by error; ctx
	// is cancelled when the Room is interrupted.
	Play(ctx context.Context) error
	// RenderView renders the current state for the given viewer (nil for
	// an anonymous/"watch" viewer) as an opaque payload (e.g. HTML).
	RenderView(viewerID *types.SeatID) ([]byte, error)
}

// Result is an optional capability a Logic may implement to report which
// seat won once Play returns, so component I can tally wins/losses instead
// of only counting a game played. Checked with a type assertion; a Logic
// that doesn't implement it is recorded as a draw for every seat.
type Result interface {
	// Winner returns the winning seat, or nil for a draw/no-decision.
	Winner() *types.SeatID
}

// Constructor builds a Logic instance from a room-creation request body's
// game-specific arguments and the number of seats requested.
type Constructor func(args json.RawMessage, seats int) (Logic, error)

// Registry is the closed set of games a Server can construct. It is
// populated at process start (Register) and never mutated afterward by
// client requests — there is no dynamic plugin loading.
type Registry struct {
	mu    sync.RWMutex
	games map[string]Constructor
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{games: make(map[string]Constructor)}
}

// Register adds a game under name. Intended to be called during process
// initialization, not at request time.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[name] = ctor
}

// Names returns the registered game names, for `OPTIONS /room`.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.games))
	for n := range r.games {
		names = append(names, n)
	}
	return names
}

// Construct builds a Logic instance for the named game, or an error if
// the name is unregistered or construction fails.
func (r *Registry) Construct(name string, args json.RawMessage, seats int) (Logic, error) {
	r.mu.RLock()
	ctor, ok := r.games[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown game %q", name)
	}
	logic, err := ctor(args, seats)
	if err != nil {
		return nil, fmt.Errorf("constructing game %q: %w", name, err)
	}
	return logic, nil
}
