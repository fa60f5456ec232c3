package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/open-tabletop/server/internal/chat"
	"github.com/open-tabletop/server/internal/session"
	"github.com/open-tabletop/server/internal/types"
)

// NetworkAgent binds the Agent contract onto a Session: every Tell/Update
// is a SendSync, and every Ask.* is exactly one question frame followed by
// a question_with_validation loop (send question, GetSync, handle the
// "?" sentinel, validate, re-prompt on InvalidAnswerError).
type NetworkAgent struct {
	session *session.Session
}

// NewNetworkAgent wraps an already-connected Session.
func NewNetworkAgent(s *session.Session) *NetworkAgent {
	return &NetworkAgent{session: s}
}

func (a *NetworkAgent) Tell(_ context.Context, text string, sender string, highlight bool) {
	a.session.SendSync(types.NewMessageFrame(text, sender, highlight))
}

func (a *NetworkAgent) Update(_ context.Context, diffs []types.DiffOp) {
	// The wire contract sends the diff list bare (no {type:...} wrapper),
	// so SendSync is given the slice itself.
	a.session.SendSync(diffs)
}

func (a *NetworkAgent) Ask() Ask { return (*networkAsk)(a) }

func (a *NetworkAgent) Chat(_ context.Context) (*chat.Chat, chat.Stream) {
	c := chat.Open([]chat.Member{a.session})
	return c, c.Lines()
}

type networkAsk NetworkAgent

// questionWithValidation sends question once, then loops: receive answer,
// re-send on the "?" sentinel, validate, send an error frame and re-block
// on InvalidAnswerError, return on success. Apart from a GetSync error,
// it never returns without a valid answer.
func questionWithValidation[T any](ctx context.Context, s *session.Session, question any, validate func(string) (T, error)) (T, error) {
	var zero T
	s.SendSync(question)
	for {
		answer, err := s.GetSync(ctx)
		if err != nil {
			return zero, err
		}
		if answer == types.ClientLostTrackMessage {
			s.SendSync(question)
			continue
		}
		value, verr := validate(answer)
		if verr != nil {
			s.SendSync(types.NewErrorFrame(verr.Error()))
			continue
		}
		return value, nil
	}
}

func (a *networkAsk) IntChoice(ctx context.Context, min, max *int) (int, error) {
	schema := &jsonschema.Schema{Type: "integer"}
	if min != nil {
		v := float64(*min)
		schema.Minimum = &v
	}
	if max != nil {
		v := float64(*max)
		schema.Maximum = &v
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return 0, err
	}
	question := types.ChoiceFrame{Type: types.FrameChoice, Schema: raw}

	return questionWithValidation(ctx, a.session, question, func(answer string) (int, error) {
		n, err := strconv.Atoi(answer)
		if err != nil {
			return 0, &types.InvalidAnswerError{Message: fmt.Sprintf("%q is not an integer", answer)}
		}
		if min != nil && n < *min {
			return 0, &types.InvalidAnswerError{Message: fmt.Sprintf("please choose a number higher than %d", *min)}
		}
		if max != nil && n > *max {
			return 0, &types.InvalidAnswerError{Message: fmt.Sprintf("please choose a number lower than %d", *max)}
		}
		return n, nil
	})
}

func (a *networkAsk) TextChoice(ctx context.Context, options []string) (string, error) {
	enum := make([]any, len(options))
	for i, o := range options {
		enum[i] = o
	}
	schema := &jsonschema.Schema{Type: "string", Enum: enum}
	raw, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}
	question := types.ChoiceFrame{Type: types.FrameChoice, Schema: raw}

	return questionWithValidation(ctx, a.session, question, func(answer string) (string, error) {
		for _, o := range options {
			if o == answer {
				return answer, nil
			}
		}
		return "", &types.InvalidAnswerError{Message: fmt.Sprintf("value %q not allowed", answer)}
	})
}

func (a *networkAsk) SlotChoice(ctx context.Context, slots []string, indices []any, specials []string) (any, error) {
	if indices == nil {
		indices = make([]any, len(slots))
		for i, s := range slots {
			indices[i] = s
		}
	}
	byAddress := make(map[string]any, len(slots))
	for i, addr := range slots {
		byAddress[addr] = indices[i]
	}
	question := types.ChoiceFrame{Type: types.FrameChoice, Slots: slots, SpecialOptions: specials}

	return questionWithValidation(ctx, a.session, question, func(answer string) (any, error) {
		if idx, ok := byAddress[answer]; ok {
			return idx, nil
		}
		for _, sp := range specials {
			if sp == answer {
				return sp, nil
			}
		}
		return nil, &types.InvalidAnswerError{Message: "invalid choice, please try again!"}
	})
}

func (a *networkAsk) BooleanChoice(ctx context.Context, prompt string) (bool, error) {
	(*NetworkAgent)(a).Tell(ctx, prompt, "", false)
	answer, err := a.TextChoice(ctx, []string{"yes", "no"})
	if err != nil {
		return false, err
	}
	return answer == "yes", nil
}
