//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package terminal

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sys/unix"
)

// FD is a raw file descriptor used as a relay source or sink. Reads and
// writes go straight to read(2) and write(2): on a non-blocking descriptor
// they return EAGAIN instead of waiting, and Write may return a short
// count without an error.
type FD struct {
	fd       int
	name     string
	eioIsEOF bool

	mu        sync.Mutex
	flags     int
	haveFlags bool
}

// FDOption configures an FD.
type FDOption func(*FD)

// WithEIOAsEOF reports EIO from read as end of stream. A Linux pty master
// fails with EIO once every slave descriptor is closed.
func WithEIOAsEOF() FDOption {
	return func(f *FD) { f.eioIsEOF = true }
}

// NewFD wraps fd. The descriptor is not owned and never closed.
func NewFD(fd int, name string, opts ...FDOption) *FD {
	f := &FD{fd: fd, name: name}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fd returns the underlying descriptor
func (f *FD) Fd() int {
	return f.fd
}

// Name returns the descriptor's name for logs
func (f *FD) Name() string {
	return f.name
}

func (f *FD) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := unix.Read(f.fd, p)
	return f.readResult(n, err)
}

func (f *FD) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := unix.Write(f.fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

func (f *FD) readResult(n int, err error) (int, error) {
	if n < 0 {
		n = 0
	}
	switch {
	case err == nil && n == 0:
		return 0, io.EOF
	case f.eioIsEOF && errors.Is(err, unix.EIO):
		return n, io.EOF
	}
	return n, err
}

// SetNonblock puts the descriptor into non-blocking mode, remembering the
// flags it had the first time for RestoreFlags.
func (f *FD) SetNonblock() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	flags, err := unix.FcntlInt(uintptr(f.fd), unix.F_GETFL, 0)
	if err != nil {
		return fmt.Errorf("failed to get %s flags: %w", f.name, err)
	}
	if !f.haveFlags {
		f.flags, f.haveFlags = flags, true
	}
	if _, err := unix.FcntlInt(uintptr(f.fd), unix.F_SETFL, flags|unix.O_NONBLOCK); err != nil {
		return fmt.Errorf("failed to set %s non-blocking: %w", f.name, err)
	}
	return nil
}

// RestoreFlags reapplies the flags saved by SetNonblock. It is a no-op if
// SetNonblock was never called.
func (f *FD) RestoreFlags() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.haveFlags {
		return nil
	}
	if _, err := unix.FcntlInt(uintptr(f.fd), unix.F_SETFL, f.flags); err != nil {
		return fmt.Errorf("failed to restore %s flags: %w", f.name, err)
	}
	return nil
}
