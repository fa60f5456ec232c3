package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalAgentIntChoiceSkipsOutOfRange(t *testing.T) {
	answers := make(chan string, 4)
	answers <- "not a number"
	answers <- "99"
	answers <- "3"
	a := NewLocalAgent("p1", answers)

	min, max := 0, 8
	v, err := a.Ask().IntChoice(context.Background(), &min, &max)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestLocalAgentBooleanChoice(t *testing.T) {
	answers := make(chan string, 1)
	answers <- "yes"
	a := NewLocalAgent("p1", answers)

	v, err := a.Ask().BooleanChoice(context.Background(), "play again?")
	require.NoError(t, err)
	assert.True(t, v)
}

func TestLocalAgentSlotChoiceInvalidAnswer(t *testing.T) {
	answers := make(chan string, 1)
	answers <- "bogus"
	a := NewLocalAgent("p1", answers)

	_, err := a.Ask().SlotChoice(context.Background(), []string{"a1", "a2"}, nil, nil)
	assert.Error(t, err)
}

func TestLocalAgentTellRecordsSentMessages(t *testing.T) {
	a := NewLocalAgent("p1", nil)
	a.Tell(context.Background(), "hello", "dealer", false)
	assert.Len(t, a.Sent, 1)
}
