package ring

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

var (
	ErrWouldBlock  = errors.New("ring: operation would block")
	ErrInterrupted = errors.New("ring: operation interrupted")
)

// IOError is a fatal error from a source or sink.
type IOError struct {
	Op  string // "fill" or "drain"
	Err error
}

func (e *IOError) Error() string {
	return "ring: " + e.Op + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err only means "nothing happened, try again".
func IsTransient(err error) bool {
	return errors.Is(err, ErrWouldBlock) || errors.Is(err, ErrInterrupted)
}

// Classify maps an endpoint error onto the package taxonomy. op names the
// operation in the resulting IOError.
func Classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return io.EOF
	case errors.Is(err, ErrWouldBlock), errors.Is(err, ErrInterrupted):
		return err
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EWOULDBLOCK),
		errors.Is(err, os.ErrDeadlineExceeded):
		return ErrWouldBlock
	case errors.Is(err, unix.EINTR):
		return ErrInterrupted
	default:
		return &IOError{Op: op, Err: err}
	}
}
