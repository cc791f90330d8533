package room

import (
	"errors"
	"fmt"
	"time"
)

// Error strings are sent to clients verbatim.
var (
	ErrRoomNotFound = errors.New("Room not found")
	ErrRoomFull     = errors.New("Room is full")
	ErrUnauthorized = errors.New("Unauthorized")
	ErrInvalidInput = errors.New("Invalid input")
	ErrNotInRoom    = fmt.Errorf("%w: Not in a room", ErrInvalidInput)

	// ErrCodeSpaceExhausted is returned when Create cannot find a free code.
	ErrCodeSpaceExhausted = errors.New("failed to generate unique room code")
)

// Reply is the synchronous result of a request. A nil *Reply means the request was
// dropped and nothing should be sent back.
type Reply struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	*Snapshot
	Room      *Info      `json:"room,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`

	err error
}

// Err returns the error the reply was built from, if any.
func (r *Reply) Err() error {
	if r == nil {
		return nil
	}
	return r.err
}

// OK builds a successful reply without payload.
func OK() *Reply {
	return &Reply{Success: true}
}

// Fail builds a failed reply carrying err's message.
func Fail(err error) *Reply {
	return &Reply{Success: false, Error: err.Error(), err: err}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}
