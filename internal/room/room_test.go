package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/open-tabletop/server/internal/agent"
	"github.com/open-tabletop/server/internal/game"
	"github.com/open-tabletop/server/internal/stats"
	"github.com/open-tabletop/server/internal/transport"
	"github.com/open-tabletop/server/internal/types"
)

type fakeTransport struct {
	inbound chan string
	sent    chan any
	closed  chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbound: make(chan string, 16), sent: make(chan any, 16), closed: make(chan struct{})}
}

func (f *fakeTransport) Recv(ctx context.Context) (string, error) {
	select {
	case frame := <-f.inbound:
		return frame, nil
	case <-f.closed:
		return "", errors.New("closed")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeTransport) Send(ctx context.Context, v any) error {
	select {
	case f.sent <- v:
		return nil
	case <-f.closed:
		return errors.New("closed")
	}
}

func (f *fakeTransport) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

var _ transport.Transport = (*fakeTransport)(nil)

type blockingLogic struct {
	setAgentsCalled chan []agent.Agent
	playErr         error
}

func (l *blockingLogic) SetAgents(agents []agent.Agent) error {
	l.setAgentsCalled <- agents
	return nil
}

func (l *blockingLogic) Play(ctx context.Context) error {
	<-ctx.Done()
	return l.playErr
}

func (l *blockingLogic) RenderView(viewerID *types.SeatID) ([]byte, error) {
	return []byte("view"), nil
}

func newTestRoom(t *testing.T, logic game.Logic, seats int) (*Room, chan types.RoomID) {
	t.Helper()
	closed := make(chan types.RoomID, 1)
	specs := make([]AgentSpec, seats)
	for i := range specs {
		specs[i] = AgentSpec{Kind: AgentNetwork}
	}
	r := New(1, "teststub", logic, specs, func(id types.RoomID) { closed <- id }, stats.NullRecorder{}, zap.NewNop())
	return r, closed
}

func TestRoomClaimSeatUnknownSeat(t *testing.T) {
	logic := &blockingLogic{setAgentsCalled: make(chan []agent.Agent, 1)}
	r, _ := newTestRoom(t, logic, 2)

	_, err := r.ClaimSeat(99, "alice")
	assert.ErrorIs(t, err, types.ErrUnknownSeat)
}

func TestRoomClaimAndConfirmSeat(t *testing.T) {
	logic := &blockingLogic{setAgentsCalled: make(chan []agent.Agent, 1)}
	r, _ := newTestRoom(t, logic, 2)

	s, err := r.ClaimSeat(1, "alice")
	require.NoError(t, err)

	tr := newFakeTransport()
	r.ConfirmSeat(s, "alice", tr)

	assert.Equal(t, types.Username("alice"), s.Username())
	assert.Equal(t, types.StateConnected, s.State())
}

func TestRoomSnapshotReflectsSeatStates(t *testing.T) {
	logic := &blockingLogic{setAgentsCalled: make(chan []agent.Agent, 1)}
	r, _ := newTestRoom(t, logic, 2)

	snap := r.Snapshot()
	require.Len(t, snap.Seats, 2)
	for _, state := range snap.Seats {
		assert.Equal(t, types.StateFree.String(), state)
	}
}

func TestRoomStartDrivesWorkerAndCloseOnSeatTimeout(t *testing.T) {
	logic := &blockingLogic{setAgentsCalled: make(chan []agent.Agent, 1)}
	r, closed := newTestRoom(t, logic, 1)
	r.Session(1).Timeout = 30 * time.Millisecond

	r.Start(context.Background())

	select {
	case id := <-closed:
		assert.Equal(t, types.RoomID(1), id)
	case <-time.After(2 * time.Second):
		t.Fatal("expected room to close after seat reconnect timeout")
	}
}

func TestRoomStartPlaysOnceAllSeatsConnect(t *testing.T) {
	logic := &blockingLogic{setAgentsCalled: make(chan []agent.Agent, 1)}
	r, closed := newTestRoom(t, logic, 1)

	s, err := r.ClaimSeat(1, "alice")
	require.NoError(t, err)
	tr := newFakeTransport()
	r.ConfirmSeat(s, "alice", tr)

	r.Start(context.Background())

	select {
	case agents := <-logic.setAgentsCalled:
		assert.Len(t, agents, 1)
	case <-time.After(time.Second):
		t.Fatal("expected SetAgents to be called once the seat connected")
	}

	r.Close("test teardown")

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("expected room to report closed")
	}
}

func TestRoomCloseIsIdempotent(t *testing.T) {
	logic := &blockingLogic{setAgentsCalled: make(chan []agent.Agent, 1)}
	r, closed := newTestRoom(t, logic, 1)
	r.Start(context.Background())

	r.Close("first")
	r.Close("second")

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("expected exactly one close notification")
	}
	select {
	case <-closed:
		t.Fatal("expected Close to be idempotent, got a second notification")
	default:
	}
}

func TestRoomOpenChatRejectsUnknownSeat(t *testing.T) {
	logic := &blockingLogic{setAgentsCalled: make(chan []agent.Agent, 1)}
	r, _ := newTestRoom(t, logic, 1)

	_, err := r.OpenChat([]types.SeatID{5})
	assert.ErrorIs(t, err, types.ErrUnknownSeat)
}
