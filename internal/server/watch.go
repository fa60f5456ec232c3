package server

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/open-tabletop/server/internal/types"
)

// publish fans a room-watch event out to every subscriber, dropping it
// for any subscriber whose channel is currently full rather than
// blocking the request path.
func (s *Server) publish(evt types.RoomWatchEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// handleWatchRooms implements `GET /room/list/watch`: a Server-Sent
// Events stream of add/remove events, seeded with the current snapshot
// so a subscriber never misses a room that existed before it connected.
func (s *Server) handleWatchRooms(c *gin.Context) {
	id := uuid.New().String()
	ch := make(chan types.RoomWatchEvent, 16)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		c.Status(503)
		return
	}
	s.watchers[id] = ch
	seed := make([]types.RoomWatchEvent, 0, len(s.rooms))
	for roomID, r := range s.rooms {
		snap := r.Snapshot()
		seed = append(seed, types.RoomWatchEvent{Kind: types.RoomWatchAdd, RoomID: roomID, Value: &snap})
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}()

	for _, evt := range seed {
		c.SSEvent(string(evt.Kind), evt)
	}
	c.Writer.Flush()

	clientGone := c.Writer.CloseNotify()
	c.Stream(func(w io.Writer) bool {
		select {
		case evt, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(string(evt.Kind), evt)
			return true
		case <-clientGone:
			return false
		}
	})
}
