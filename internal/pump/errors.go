package pump

import "errors"

var (
	ErrNoSource = errors.New("pump: direction has no source")
	ErrNoSink   = errors.New("pump: direction has no sink")
	ErrBadTick  = errors.New("pump: tick duration must be positive")
)

// Error is a fatal failure of one direction.
type Error struct {
	Direction string
	Err       error
}

func (e *Error) Error() string {
	return e.Direction + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
