package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/open-tabletop/server/internal/agent"
	"github.com/open-tabletop/server/internal/game"
	"github.com/open-tabletop/server/internal/room"
	"github.com/open-tabletop/server/internal/stats"
	"github.com/open-tabletop/server/internal/types"
)

type stubLogic struct{}

func (stubLogic) SetAgents(agents []agent.Agent) error { return nil }
func (stubLogic) Play(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
func (stubLogic) RenderView(viewerID *types.SeatID) ([]byte, error) { return []byte("ok"), nil }

func newTestServer() *Server {
	registry := game.NewRegistry()
	registry.Register("stub", func(args json.RawMessage, seats int) (game.Logic, error) {
		return stubLogic{}, nil
	})
	return New(registry, stats.NullRecorder{}, []string{"*"}, zap.NewNop())
}

func TestCreateRoomAndListRooms(t *testing.T) {
	s := newTestServer()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})

	body, _ := json.Marshal(map[string]any{
		"game":   "stub",
		"agents": []room.AgentSpec{{Kind: room.AgentHuman}},
	})
	req := httptest.NewRequest(http.MethodPost, "/room", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created createRoomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	req2 := httptest.NewRequest(http.MethodGet, "/room/list", nil)
	w2 := httptest.NewRecorder()
	s.Engine().ServeHTTP(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)

	var snapshot map[string]types.RoomSnapshot
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &snapshot))
	assert.Len(t, snapshot, 1)
}

func TestCreateRoomRejectsUnknownGame(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(map[string]any{
		"game":   "does-not-exist",
		"agents": []room.AgentSpec{{Kind: room.AgentHuman}},
	})
	req := httptest.NewRequest(http.MethodPost, "/room", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDispatchUnknownRoomIs404(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/r/42/html", nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListGamesOptions(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodOptions, "/room", nil)
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "POST", w.Header().Get("Allow"))
}

func TestLoginSetsCookie(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(map[string]string{"username": "alice"})
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Len(t, w.Result().Cookies(), 1)
}

func TestCloseWaitsForRoomsToDrain(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(map[string]any{
		"game":   "stub",
		"agents": []room.AgentSpec{{Kind: room.AgentHuman}},
	})
	req := httptest.NewRequest(http.MethodPost, "/room", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, s.Close(ctx))
}
