// Package server implements component F: the process-wide HTTP/WebSocket
// host. A single *Server value is constructed explicitly and passed
// through (no package-level global), per spec.md §9's guidance against a
// singleton, except for the one process-wide HTTP listener it starts.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/open-tabletop/server/internal/game"
	"github.com/open-tabletop/server/internal/health"
	"github.com/open-tabletop/server/internal/metrics"
	"github.com/open-tabletop/server/internal/middleware"
	"github.com/open-tabletop/server/internal/room"
	"github.com/open-tabletop/server/internal/stats"
	"github.com/open-tabletop/server/internal/types"
)

// Server owns the room index and the HTTP engine. It is the single
// cooperative reactor: the Gin engine's request-handling goroutines, the
// watch-subscriber fan-out and onRoomClosed (run by whichever goroutine
// closes a room) are the only code that touches the room index, always
// under mu; everything else crosses through Room/Session methods which
// take their own locks.
type Server struct {
	log      *zap.Logger
	registry *game.Registry
	recorder stats.Recorder

	mu        sync.Mutex
	rooms     map[types.RoomID]*room.Room
	nextRoom  types.RoomID
	watchers  map[string]chan types.RoomWatchEvent
	closed    bool

	engine *gin.Engine
	health *health.Handler
}

// New constructs a Server. Call Engine() to obtain the Gin engine to run
// (e.g. via http.Server.ListenAndServe), and Close() to shut down.
func New(registry *game.Registry, recorder stats.Recorder, allowedOrigins []string, log *zap.Logger) *Server {
	s := &Server{
		log:      log,
		registry: registry,
		recorder: recorder,
		rooms:    make(map[types.RoomID]*room.Room),
		watchers: make(map[string]chan types.RoomWatchEvent),
		health:   health.NewHandler(),
	}
	s.engine = s.buildEngine(allowedOrigins)
	return s
}

// Engine returns the Gin engine that serves all HTTP routes.
func (s *Server) Engine() *gin.Engine { return s.engine }

// MarkReady flips the readiness probe once the listener is accepting
// connections.
func (s *Server) MarkReady() { s.health.MarkReady() }

func (s *Server) buildEngine(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.CorrelationID())

	r.GET("/healthz", s.health.Liveness)
	r.GET("/readyz", s.health.Readiness)

	r.POST("/login", s.handleLogin)
	r.POST("/room", s.handleCreateRoom)
	r.OPTIONS("/room", s.handleListGames)
	r.GET("/room/list", s.handleListRooms)
	r.GET("/room/list/watch", s.handleWatchRooms)

	r.GET("/stats/rankings", s.handleStatsRankings)
	r.GET("/stats/summary", s.handleStatsSummary)

	roomGroup := r.Group("/r/:roomID")
	roomGroup.Use(s.dispatchRoom())
	roomGroup.GET("/ws/:seat", func(c *gin.Context) {
		currentRoom(c).ServeSeatWS(c, s.log)
	})
	roomGroup.GET("/ws/watch", func(c *gin.Context) {
		currentRoom(c).ServeWatchWS(c, s.log)
	})
	roomGroup.GET("/html", func(c *gin.Context) {
		currentRoom(c).ServeHTML(c)
	})

	return r
}

const roomContextKey = "room"

// dispatchRoom is the `room_dispatcher` middleware: it looks up the
// RoomID path parameter in the room index and binds the matching Room
// instance into the request context; a missing room is a 404.
func (s *Server) dispatchRoom() gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.Param("roomID")
		var id int
		if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "roomID must be an integer"})
			return
		}

		s.mu.Lock()
		r, ok := s.rooms[types.RoomID(id)]
		s.mu.Unlock()
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("room %d not found", id)})
			return
		}

		c.Set(roomContextKey, r)
		c.Next()
	}
}

func currentRoom(c *gin.Context) *room.Room {
	return c.MustGet(roomContextKey).(*room.Room)
}

// handleLogin sets the opaque username cookie, per the Non-goal that
// authentication never goes beyond this.
func (s *Server) handleLogin(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}
	c.SetCookie(room.CookieName, body.Username, 0, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

type createRoomRequest struct {
	Game   string           `json:"game"`
	Args   json.RawMessage  `json:"args"`
	Agents []room.AgentSpec `json:"agents"`
}

type createRoomResponse struct {
	RoomID types.RoomID `json:"roomID"`
}

// handleCreateRoom implements `POST /room`: selects a game from the
// closed registry, constructs it, allocates seats, and starts the worker.
func (s *Server) handleCreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Agents) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agents must not be empty"})
		return
	}

	logic, err := s.registry.Construct(req.Game, req.Args, len(req.Agents))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is shutting down"})
		return
	}
	id := s.nextRoom
	s.nextRoom++
	r := room.New(id, req.Game, logic, req.Agents, s.onRoomClosed, s.recorder, s.log)
	s.rooms[id] = r
	s.mu.Unlock()

	metrics.ActiveRooms.Inc()
	r.Start(context.Background())
	s.publish(types.RoomWatchEvent{Kind: types.RoomWatchAdd, RoomID: id, Value: ptr(r.Snapshot())})

	c.JSON(http.StatusCreated, createRoomResponse{RoomID: id})
}

func ptr[T any](v T) *T { return &v }

// onRoomClosed is the room.CloseNotifier: it removes the room from the
// index and publishes a remove-event to watchers.
func (s *Server) onRoomClosed(id types.RoomID) {
	s.mu.Lock()
	_, existed := s.rooms[id]
	delete(s.rooms, id)
	s.mu.Unlock()

	if existed {
		metrics.ActiveRooms.Dec()
		s.publish(types.RoomWatchEvent{Kind: types.RoomWatchRemove, RoomID: id})
	}
}

// handleListGames implements `OPTIONS /room`: introspection of available
// games.
func (s *Server) handleListGames(c *gin.Context) {
	c.Header("Allow", "POST")
	c.JSON(http.StatusOK, gin.H{"enum": s.registry.Names()})
}

// handleListRooms implements `GET /room/list`.
func (s *Server) handleListRooms(c *gin.Context) {
	s.mu.Lock()
	snapshot := make(map[types.RoomID]types.RoomSnapshot, len(s.rooms))
	for id, r := range s.rooms {
		snapshot[id] = r.Snapshot()
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleStatsRankings(c *gin.Context) {
	game := c.Query("game")
	resp, err := s.recorder.Rankings(c.Request.Context(), game)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStatsSummary(c *gin.Context) {
	game := c.Query("game")
	resp, err := s.recorder.Summary(c.Request.Context(), game)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Close schedules interrupt-then-close of every room, waits for them to
// finish removing themselves, and marks the server closed. Post-condition:
// zero live rooms.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	rooms := make([]*room.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	for _, ch := range s.watchers {
		close(ch)
	}
	s.watchers = make(map[string]chan types.RoomWatchEvent)
	s.mu.Unlock()

	for _, r := range rooms {
		r.Interrupt()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			s.mu.Lock()
			n := len(s.rooms)
			s.mu.Unlock()
			if n == 0 {
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	select {
	case <-done:
		s.mu.Lock()
		n := len(s.rooms)
		s.mu.Unlock()
		if n > 0 {
			return ctx.Err()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

