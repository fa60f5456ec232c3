// Package room implements component E: one running game instance plus its
// attached Sessions and Spectators, the worker goroutine that drives
// GameLogic.Play, and the `/r/{roomID}/...` HTTP sub-routes.
package room

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/open-tabletop/server/internal/agent"
	"github.com/open-tabletop/server/internal/chat"
	"github.com/open-tabletop/server/internal/game"
	"github.com/open-tabletop/server/internal/session"
	"github.com/open-tabletop/server/internal/spectator"
	"github.com/open-tabletop/server/internal/stats"
	"github.com/open-tabletop/server/internal/transport"
	"github.com/open-tabletop/server/internal/types"
)

// AgentKind selects how a seat's Agent is bound.
type AgentKind string

const (
	AgentNetwork AgentKind = "network"
	AgentHuman   AgentKind = "human"
)

// AgentSpec describes one seat's agent binding, supplied at room creation.
type AgentSpec struct {
	Kind AgentKind `json:"kind"`
}

// CloseNotifier is invoked once a Room has fully closed, so the owning
// Server can remove it from its room index and notify watchers.
type CloseNotifier func(roomID types.RoomID)

// Room owns one GameLogic instance, its seat Sessions, its ad-hoc
// Spectators, and the worker goroutine driving Play.
type Room struct {
	ID       types.RoomID
	GameName string
	log      *zap.Logger
	recorder stats.Recorder

	mu          sync.Mutex
	sessions    map[types.SeatID]*session.Session
	spectators  map[*spectator.Spectator]struct{}
	usernames   map[types.SeatID]types.Username
	activeChats []*chat.Chat
	closed      bool

	logic     game.Logic
	specs     []AgentSpec
	startedAt time.Time

	onClose CloseNotifier

	workerCtx    context.Context
	workerCancel context.CancelFunc
	eg           *errgroup.Group
}

// New constructs a Room with seats in FREE state and does NOT yet start
// the worker; call Start once the Room has been indexed by the Server so
// that a game finishing instantly cannot race the index insertion.
func New(id types.RoomID, gameName string, logic game.Logic, specs []AgentSpec, onClose CloseNotifier, recorder stats.Recorder, log *zap.Logger) *Room {
	r := &Room{
		ID:         id,
		GameName:   gameName,
		log:        log,
		recorder:   recorder,
		sessions:   make(map[types.SeatID]*session.Session),
		spectators: make(map[*spectator.Spectator]struct{}),
		usernames:  make(map[types.SeatID]types.Username),
		logic:      logic,
		specs:      specs,
		onClose:    onClose,
		eg:         &errgroup.Group{},
	}
	for i := range specs {
		seat := types.SeatID(i + 1)
		r.sessions[seat] = session.New(seat, log)
	}
	return r
}

// Session returns the Session bound to seat, or nil if out of range.
func (r *Room) Session(seat types.SeatID) *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[seat]
}

// Snapshot serializes the room for `/room/list` and watch events.
func (r *Room) Snapshot() types.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	seats := make(map[types.SeatID]string, len(r.sessions))
	for seat, s := range r.sessions {
		seats[seat] = s.State().String()
	}
	return types.RoomSnapshot{Spectators: len(r.spectators), Seats: seats}
}

// addSpectator registers an ad-hoc (non-seat) spectator for bookkeeping;
// it is removed once its transport ends.
func (r *Room) addSpectator(s *spectator.Spectator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spectators[s] = struct{}{}
}

func (r *Room) removeSpectator(s *spectator.Spectator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.spectators, s)
}

// ClaimSeat validates and records a seat claim attempt (§4.3 claim rules),
// then transitions the Session to CLAIMED.
func (r *Room) ClaimSeat(seat types.SeatID, username types.Username) (*session.Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[seat]
	r.mu.Unlock()
	if !ok {
		return nil, types.ErrUnknownSeat
	}
	if err := s.CheckClaim(username); err != nil {
		return nil, err
	}
	s.Claim()
	return s, nil
}

// ConfirmSeat is called once the transport handshake has completed: it
// binds the username (first time only) and transitions to CONNECTED.
func (r *Room) ConfirmSeat(s *session.Session, username types.Username, tr transport.Transport) {
	s.Bind(username)
	r.mu.Lock()
	r.usernames[s.Seat] = username
	r.mu.Unlock()
	s.OnConnect(tr)
}

// TrackConnection runs a connection's Run loop under the room's errgroup
// so Close can await every outstanding per-connection task before
// reporting the room fully shut down, mirroring the source's nt_close
// awaiting each spectator's run_handle.
func (r *Room) TrackConnection(ctx context.Context, run func(context.Context)) {
	r.eg.Go(func() error {
		run(ctx)
		return nil
	})
}

// Start launches the game worker goroutine. It must be called at most
// once, after the Room has been indexed by its Server.
func (r *Room) Start(parent context.Context) {
	r.workerCtx, r.workerCancel = context.WithCancel(parent)
	go r.runWorker()
}

func (r *Room) runWorker() {
	defer r.handlePanic()

	agents := make([]agent.Agent, len(r.specs))
	for i, spec := range r.specs {
		seat := types.SeatID(i + 1)
		s := r.Session(seat)
		if err := s.ReconnectSync(r.workerCtx); err != nil {
			r.log.Warn("seat never connected, aborting room", zap.Int("seat", int(seat)), zap.Error(err))
			r.Close("a seat failed to connect")
			return
		}
		switch spec.Kind {
		case AgentHuman:
			agents[i] = agent.NewLocalAgent(string(r.usernames[seat]), nil)
		default:
			agents[i] = agent.NewNetworkAgent(s)
		}
	}

	if err := r.logic.SetAgents(agents); err != nil {
		r.log.Error("SetAgents failed", zap.Error(err))
		r.Close("game setup failed")
		return
	}

	r.startedAt = time.Now()
	err := r.logic.Play(r.workerCtx)
	if err != nil {
		r.log.Info("game ended with error", zap.Error(err))
	}

	r.recordMatch(err == nil)
	r.Close("game ended")
}

func (r *Room) handlePanic() {
	if rec := recover(); rec != nil {
		r.log.Error("worker panic", zap.Any("recover", rec))
		r.Close("internal error")
	}
}

func (r *Room) recordMatch(normalCompletion bool) {
	if r.recorder == nil || !normalCompletion {
		return
	}
	r.mu.Lock()
	if r.closed {
		// Close already ran (interrupt or shutdown): not a normal completion.
		r.mu.Unlock()
		return
	}
	record := stats.MatchRecord{
		RoomID:    int(r.ID),
		Game:      r.GameName,
		StartedAt: r.startedAt,
		EndedAt:   time.Now(),
	}
	for seat, username := range r.usernames {
		record.Seats = append(record.Seats, stats.SeatRecord{Seat: int(seat), Username: string(username)})
	}
	r.mu.Unlock()

	if result, ok := r.logic.(game.Result); ok {
		if winner := result.Winner(); winner != nil {
			seat := int(*winner)
			record.WinnerSeat = &seat
		}
	}

	if err := r.recorder.Record(context.Background(), record); err != nil {
		r.log.Warn("stats recording failed", zap.Error(err))
	}
}

// Close interrupts every Session and Spectator, awaits outstanding
// per-connection tasks, and removes the room from its Server. It is
// idempotent and safe to call from the worker goroutine or the reactor.
func (r *Room) Close(reason string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	sessions := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	spectators := make([]*spectator.Spectator, 0, len(r.spectators))
	for s := range r.spectators {
		spectators = append(spectators, s)
	}
	chats := r.activeChats
	r.activeChats = nil
	r.mu.Unlock()

	r.log.Info("closing room", zap.Int("room", int(r.ID)), zap.String("reason", reason))

	for _, c := range chats {
		c.Close(context.Background())
	}
	for _, s := range sessions {
		s.Interrupt()
	}
	for _, s := range spectators {
		s.Interrupt()
	}

	if r.workerCancel != nil {
		r.workerCancel()
	}

	_ = r.eg.Wait()

	if r.onClose != nil {
		r.onClose(r.ID)
	}
}

// Interrupt is the Server-initiated shutdown path: it has the same effect
// as Close but is named distinctly so callers can tell which direction
// triggered it (game completion vs. server shutdown), matching the
// source's nt_interrupt/nt_close split.
func (r *Room) Interrupt() {
	r.Close("server shutting down")
}

// OpenChat installs a chat fan-out across the given seats, tracked so
// Close() tears it down along with everything else.
func (r *Room) OpenChat(seats []types.SeatID) (*chat.Chat, error) {
	r.mu.Lock()
	members := make([]chat.Member, 0, len(seats))
	for _, seat := range seats {
		s, ok := r.sessions[seat]
		if !ok {
			r.mu.Unlock()
			return nil, fmt.Errorf("open chat: %w: seat %d", types.ErrUnknownSeat, seat)
		}
		members = append(members, s)
	}
	r.mu.Unlock()

	c := chat.Open(members)
	r.mu.Lock()
	r.activeChats = append(r.activeChats, c)
	r.mu.Unlock()
	return c, nil
}

// RenderHTML renders the current view for viewerID (nil = anonymous).
func (r *Room) RenderHTML(viewerID *types.SeatID) ([]byte, error) {
	return r.logic.RenderView(viewerID)
}
