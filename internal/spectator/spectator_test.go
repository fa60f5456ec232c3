package spectator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-tabletop/server/internal/types"
)

// fakeTransport is an in-memory Transport double for exercising Spectator
// without a real network connection.
type fakeTransport struct {
	inbound chan string
	sent    chan any
	closed  chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan string, 16),
		sent:    make(chan any, 16),
		closed:  make(chan struct{}),
	}
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

func TestSpectatorClaimPanicsWhenNotFree(t *testing.T) {
	s := New(nil)
	s.Claim()
	assert.Panics(t, func() { s.Claim() })
}

func TestSpectatorRunAndGetSync(t *testing.T) {
	s := New(nil)
	s.Claim()
	tr := newFakeTransport()
	s.OnConnect(tr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	tr.inbound <- "hello"
	frame, err := s.GetSync()
	require.NoError(t, err)
	assert.Equal(t, "hello", frame)
}

func TestSpectatorSendSyncDeliversToTransport(t *testing.T) {
	s := New(nil)
	s.Claim()
	tr := newFakeTransport()
	s.OnConnect(tr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.SendSync(types.NewMessageFrame("hi", "", false))
	select {
	case v := <-tr.sent:
		frame, ok := v.(types.MessageFrame)
		require.True(t, ok, "unexpected sent frame: %#v", v)
		assert.Equal(t, "hi", frame.Text)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound send")
	}
}

func TestSpectatorInterruptUnblocksGetSync(t *testing.T) {
	s := New(nil)
	s.Claim()
	tr := newFakeTransport()
	s.OnConnect(tr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	done := make(chan error, 1)
	go func() {
		_, err := s.GetSync()
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	s.Interrupt()

	select {
	case err := <-done:
		var de *types.DisconnectedError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, types.StateInterrupted, de.State)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for GetSync to unblock")
	}
}

func TestSpectatorDiscardsLostTrackSentinelWhenNotListening(t *testing.T) {
	s := New(nil)
	s.Claim()
	tr := newFakeTransport()
	s.OnConnect(tr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	tr.inbound <- types.ClientLostTrackMessage
	time.Sleep(20 * time.Millisecond)

	select {
	case v := <-tr.sent:
		t.Fatalf("sentinel frame should be discarded silently, got %#v", v)
	default:
	}
}

func TestSpectatorHintsWhenUnsolicitedFrameArrives(t *testing.T) {
	s := New(nil)
	s.Claim()
	tr := newFakeTransport()
	s.OnConnect(tr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	tr.inbound <- "unsolicited"

	select {
	case v := <-tr.sent:
		assert.Equal(t, "!Not listening", v)
	case <-time.After(time.Second):
		t.Fatal("expected a 'not listening' hint to be sent")
	}
}
