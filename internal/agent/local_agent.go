package agent

import (
	"context"
	"fmt"

	"github.com/open-tabletop/server/internal/chat"
	"github.com/open-tabletop/server/internal/types"
)

// LocalAgent is an in-process Agent implementation driven by a scripted
// or programmatic answer source, used for `human`-kind seats and for
// tests that exercise GameLogic without a network round trip.
type LocalAgent struct {
	Name    string
	Answers <-chan string
	Sent    []string
}

// NewLocalAgent constructs a LocalAgent whose Ask.* calls are satisfied by
// values read from answers, in order.
func NewLocalAgent(name string, answers <-chan string) *LocalAgent {
	return &LocalAgent{Name: name, Answers: answers}
}

func (a *LocalAgent) Tell(_ context.Context, text string, sender string, _ bool) {
	a.Sent = append(a.Sent, fmt.Sprintf("[%s] %s", sender, text))
}

func (a *LocalAgent) Update(_ context.Context, diffs []types.DiffOp) {
	a.Sent = append(a.Sent, fmt.Sprintf("update: %d diffs", len(diffs)))
}

func (a *LocalAgent) Ask() Ask { return (*localAsk)(a) }

func (a *LocalAgent) Chat(_ context.Context) (*chat.Chat, chat.Stream) {
	return nil, nil
}

type localAsk LocalAgent

func (a *localAsk) next(ctx context.Context) (string, error) {
	select {
	case v, ok := <-a.Answers:
		if !ok {
			return "", types.ErrDisconnected
		}
		return v, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (a *localAsk) IntChoice(ctx context.Context, min, max *int) (int, error) {
	for {
		v, err := a.next(ctx)
		if err != nil {
			return 0, err
		}
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
			continue
		}
		if min != nil && n < *min {
			continue
		}
		if max != nil && n > *max {
			continue
		}
		return n, nil
	}
}

func (a *localAsk) TextChoice(ctx context.Context, options []string) (string, error) {
	for {
		v, err := a.next(ctx)
		if err != nil {
			return "", err
		}
		for _, o := range options {
			if o == v {
				return v, nil
			}
		}
	}
}

func (a *localAsk) SlotChoice(ctx context.Context, slots []string, indices []any, specials []string) (any, error) {
	v, err := a.next(ctx)
	if err != nil {
		return nil, err
	}
	for i, addr := range slots {
		if addr == v {
			if indices != nil {
				return indices[i], nil
			}
			return addr, nil
		}
	}
	for _, sp := range specials {
		if sp == v {
			return sp, nil
		}
	}
	return nil, &types.InvalidAnswerError{Message: "invalid choice"}
}

func (a *localAsk) BooleanChoice(ctx context.Context, _ string) (bool, error) {
	v, err := a.TextChoice(ctx, []string{"yes", "no"})
	if err != nil {
		return false, err
	}
	return v == "yes", nil
}
