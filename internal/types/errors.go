package types

import "errors"

// Sentinel errors surfaced across the reactor/worker boundary. Game code
// and transport handlers compare against these with errors.Is.
var (
	// ErrDisconnected is returned by GetSync when the Spectator left
	// StateConnected with an empty inbound queue. Callers inspect the
	// paired state (see DisconnectedError) to decide how to react.
	ErrDisconnected = errors.New("spectator disconnected")

	// ErrInterrupted is the terminal form of ErrDisconnected: the Room
	// or Server told this connection to stop. No further reconnect.
	ErrInterrupted = errors.New("connection interrupted by server")

	// ErrReconnectTimeout is raised by Session.ReconnectSync when the
	// configured timeout elapses before the client rejoins.
	ErrReconnectTimeout = errors.New("reconnect timeout")

	// ErrSeatTaken means a seat claim was rejected because another live
	// connection already holds that Session (state != FREE).
	ErrSeatTaken = errors.New("seat already claimed")

	// ErrWrongUser means a seat claim was rejected because the seat is
	// already bound to a different username.
	ErrWrongUser = errors.New("seat owned by a different user")

	// ErrUnknownSeat means the requested SeatID does not exist in the room.
	ErrUnknownSeat = errors.New("unknown seat")

	// ErrInvalidAnswer is returned by an Ask.* validator to request a
	// re-prompt with an error frame; it carries a client-facing message.
	ErrInvalidAnswer = errors.New("invalid answer")
)

// DisconnectedError pairs ErrDisconnected/ErrInterrupted with the state
// observed at the moment of failure, matching the Python source's
// DisconnectedException(state).
type DisconnectedError struct {
	State State
}

func (e *DisconnectedError) Error() string {
	return "disconnected: state=" + e.State.String()
}

func (e *DisconnectedError) Unwrap() error {
	if e.State == StateInterrupted {
		return ErrInterrupted
	}
	return ErrDisconnected
}

// InvalidAnswerError is raised by an Ask.* validator; the Message is sent
// to the client verbatim in an error frame.
type InvalidAnswerError struct {
	Message string
}

func (e *InvalidAnswerError) Error() string { return e.Message }

func (e *InvalidAnswerError) Unwrap() error { return ErrInvalidAnswer }
