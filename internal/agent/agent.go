// Package agent implements component G: the Agent contract GameLogic
// consumes, binding synchronous Tell/Ask calls onto Session queues framed
// as question/answer JSON frames.
package agent

import (
	"context"

	"github.com/open-tabletop/server/internal/chat"
	"github.com/open-tabletop/server/internal/types"
)

// Agent is the worker-facing capability set a game uses to message and
// question one seat. The surface is a capability set, not a class
// hierarchy — represented here as a plain interface.
type Agent interface {
	// Tell enqueues a message frame and returns immediately.
	Tell(ctx context.Context, text string, sender string, highlight bool)
	// Update enqueues a view-update frame carrying an opaque ordered
	// diff list.
	Update(ctx context.Context, diffs []types.DiffOp)
	// Ask exposes the blocking question/answer operations.
	Ask() Ask
	// Chat opens the chat interceptor for this agent's underlying
	// connection and returns a stream of chat lines.
	Chat(ctx context.Context) (*chat.Chat, chat.Stream)
}

// Ask is the blocking question/answer surface.
type Ask interface {
	IntChoice(ctx context.Context, min, max *int) (int, error)
	TextChoice(ctx context.Context, options []string) (string, error)
	SlotChoice(ctx context.Context, slots []string, indices []any, specials []string) (any, error)
	BooleanChoice(ctx context.Context, prompt string) (bool, error)
}
