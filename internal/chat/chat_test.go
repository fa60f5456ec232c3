package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-tabletop/server/internal/spectator"
	"github.com/open-tabletop/server/internal/types"
)

type fakeMember struct {
	name        types.Username
	interceptor spectator.Interceptor
	sent        chan any
}

func newFakeMember(name string) *fakeMember {
	return &fakeMember{name: types.Username(name), sent: make(chan any, 16)}
}

func (m *fakeMember) SendSync(frame any)                    { m.sent <- frame }
func (m *fakeMember) SetInterceptor(i spectator.Interceptor) { m.interceptor = i }
func (m *fakeMember) Username() types.Username               { return m.name }

func TestChatOpenSendsChatControlOn(t *testing.T) {
	a := newFakeMember("alice")
	b := newFakeMember("bob")
	c := Open([]Member{a, b})
	defer c.Close(nil)

	for _, m := range []*fakeMember{a, b} {
		select {
		case frame := <-m.sent:
			cc, ok := frame.(types.ChatControlFrame)
			require.True(t, ok, "unexpected frame: %#v", frame)
			assert.Equal(t, "on", cc.Set)
		default:
			t.Fatal("expected a chatcontrol frame on open")
		}
	}
}

func TestChatFansOutSlashPrefixedFrames(t *testing.T) {
	a := newFakeMember("alice")
	b := newFakeMember("bob")
	c := Open([]Member{a, b})
	defer c.Close(nil)

	<-a.sent
	<-b.sent

	assert.True(t, a.interceptor("/hello there"), "expected slash-prefixed frame to be intercepted")

	select {
	case frame := <-b.sent:
		msg, ok := frame.(types.MessageFrame)
		require.True(t, ok, "unexpected fanned-out frame: %#v", frame)
		assert.Equal(t, "hello there", msg.Text)
		assert.Equal(t, "alice", msg.Sender)
	case <-time.After(time.Second):
		t.Fatal("expected the other member to receive the chat line")
	}

	select {
	case frame := <-a.sent:
		t.Fatalf("sender should not receive its own message back, got %#v", frame)
	default:
	}
}

func TestChatIgnoresNonSlashFrames(t *testing.T) {
	a := newFakeMember("alice")
	b := newFakeMember("bob")
	c := Open([]Member{a, b})
	defer c.Close(nil)

	<-a.sent
	<-b.sent

	assert.False(t, a.interceptor("not a chat line"), "expected non-slash frame to be left unhandled")
}

func TestChatCloseRemovesInterceptorsAndSendsOff(t *testing.T) {
	a := newFakeMember("alice")
	c := Open([]Member{a})
	<-a.sent

	c.Close(nil)

	select {
	case frame := <-a.sent:
		cc, ok := frame.(types.ChatControlFrame)
		require.True(t, ok, "unexpected frame: %#v", frame)
		assert.Equal(t, "off", cc.Set)
	case <-time.After(time.Second):
		t.Fatal("expected a chatcontrol off frame on close")
	}

	assert.Nil(t, a.interceptor, "expected interceptor to be cleared on close")
}
