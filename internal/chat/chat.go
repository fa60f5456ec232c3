// Package chat implements component D: a room-scoped chat fan-out that
// intercepts `/`-prefixed inbound frames from its member sessions and
// broadcasts them verbatim (minus the slash) to every other member.
package chat

import (
	"container/list"
	"context"
	"strings"
	"sync"

	"github.com/open-tabletop/server/internal/spectator"
	"github.com/open-tabletop/server/internal/types"
)

// Member is the subset of *session.Session the chat needs: sending frames
// and installing/removing its own interceptor.
type Member interface {
	SendSync(frame any)
	SetInterceptor(i spectator.Interceptor)
	Username() types.Username
}

// Stream is a channel of chat lines with the leading `/` stripped, handed
// to roles that consume chat as a coroutine stream (e.g. a spectator-only
// channel), mirroring the source's ChatStream abstraction.
type Stream <-chan string

// Chat is a transient, room-scoped fan-out object. Construct one with
// Open, read from Lines() if desired, and call Close when done.
type Chat struct {
	mu      sync.Mutex
	members map[Member]struct{}
	history *list.List
	maxHist int

	lines chan string
}

// Open installs the interceptor on every member and returns the active
// Chat. Each member may have at most one interceptor installed at a time;
// Open panics (via Session.SetInterceptor) if a member is already in a
// chat.
func Open(members []Member) *Chat {
	c := &Chat{
		members: make(map[Member]struct{}, len(members)),
		history: list.New(),
		maxHist: 200,
		lines:   make(chan string, 64),
	}
	for _, m := range members {
		c.members[m] = struct{}{}
	}
	for _, m := range members {
		member := m
		member.SetInterceptor(func(frame string) bool {
			return c.onMessage(member, frame)
		})
		member.SendSync(types.NewChatControlFrame(true, "Start chatting..."))
	}
	return c
}

// Lines returns the stream of chat lines (slash stripped) seen by this
// Chat, for roles that consume chat as a coroutine stream.
func (c *Chat) Lines() Stream { return c.lines }

func (c *Chat) onMessage(sender Member, frame string) bool {
	if !strings.HasPrefix(frame, "/") {
		return false
	}
	line := strings.TrimPrefix(frame, "/")

	c.mu.Lock()
	c.history.PushBack(line)
	if c.history.Len() > c.maxHist {
		c.history.Remove(c.history.Front())
	}
	c.mu.Unlock()

	select {
	case c.lines <- line:
	default:
	}

	msg := types.NewMessageFrame(line, string(sender.Username()), false)
	c.mu.Lock()
	defer c.mu.Unlock()
	for m := range c.members {
		if m == sender {
			continue
		}
		m.SendSync(msg)
	}
	return true
}

// Close removes every member's interceptor and notifies each client's UI
// via chatcontrol:off.
func (c *Chat) Close(_ context.Context) {
	c.mu.Lock()
	members := make([]Member, 0, len(c.members))
	for m := range c.members {
		members = append(members, m)
	}
	c.members = nil
	c.mu.Unlock()

	for _, m := range members {
		m.SetInterceptor(nil)
		m.SendSync(types.NewChatControlFrame(false, ""))
	}
	close(c.lines)
}
