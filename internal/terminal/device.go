//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package terminal

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/GriffinCanCode/slowtty/internal/pacing"
)

// ErrNotTerminal is returned for raw-mode operations on a non-terminal fd.
var ErrNotTerminal = errors.New("terminal: not a terminal")

// Device is a terminal device addressed by file descriptor.
type Device struct {
	fd int
}

// NewDevice wraps fd. The descriptor is not owned and never closed.
func NewDevice(fd int) *Device {
	return &Device{fd: fd}
}

// Fd returns the underlying descriptor
func (d *Device) Fd() int {
	return d.fd
}

// IsTerminal reports whether the descriptor refers to a terminal
func (d *Device) IsTerminal() bool {
	return term.IsTerminal(d.fd)
}

// Termios returns a copy of the current terminal attributes.
func (d *Device) Termios() (*unix.Termios, error) {
	t, err := unix.IoctlGetTermios(d.fd, ioctlGetTermios)
	if err != nil {
		return nil, fmt.Errorf("failed to get terminal attributes: %w", err)
	}
	return t, nil
}

// SetTermios applies t immediately.
func (d *Device) SetTermios(t *unix.Termios) error {
	if err := unix.IoctlSetTermios(d.fd, ioctlSetTermios, t); err != nil {
		return fmt.Errorf("failed to set terminal attributes: %w", err)
	}
	return nil
}

// LineConfig reads the line's framing parameters. Unsupported speeds are
// reported as-is and normalized by the rate model.
func (d *Device) LineConfig() (pacing.LineConfig, error) {
	t, err := d.Termios()
	if err != nil {
		return pacing.LineConfig{}, err
	}
	return LineConfigOf(t), nil
}

// LineConfigOf decodes the framing parameters held in t.
func LineConfigOf(t *unix.Termios) pacing.LineConfig {
	cfg := pacing.LineConfig{
		Speed:       lineSpeed(t),
		Parity:      t.Cflag&unix.PARENB != 0,
		TwoStopBits: t.Cflag&unix.CSTOPB != 0,
	}
	switch t.Cflag & unix.CSIZE {
	case unix.CS5:
		cfg.CharSize = 5
	case unix.CS6:
		cfg.CharSize = 6
	case unix.CS7:
		cfg.CharSize = 7
	default:
		cfg.CharSize = 8
	}
	return cfg
}

// SetLineConfig encodes cfg into t. It fails for speeds the platform
// cannot express.
func SetLineConfig(t *unix.Termios, cfg pacing.LineConfig) error {
	if err := setLineSpeed(t, cfg.Speed); err != nil {
		return err
	}
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB
	switch cfg.CharSize {
	case 5:
		t.Cflag |= unix.CS5
	case 6:
		t.Cflag |= unix.CS6
	case 7:
		t.Cflag |= unix.CS7
	default:
		t.Cflag |= unix.CS8
	}
	if cfg.Parity {
		t.Cflag |= unix.PARENB
	}
	if cfg.TwoStopBits {
		t.Cflag |= unix.CSTOPB
	}
	return nil
}

// State is a saved terminal mode.
type State struct {
	termios unix.Termios
}

// Save captures the current terminal mode for Restore.
func (d *Device) Save() (*State, error) {
	t, err := d.Termios()
	if err != nil {
		return nil, err
	}
	return &State{termios: *t}, nil
}

// Termios returns a copy of the saved attributes.
func (s *State) Termios() *unix.Termios {
	t := s.termios
	return &t
}

// MakeRaw puts the terminal into raw mode and returns the previous mode.
// On top of cfmakeraw it disables software flow control and the start and
// stop characters, so ^S and ^Q reach the child, and makes reads return
// after a single byte.
func (d *Device) MakeRaw() (*State, error) {
	if !d.IsTerminal() {
		return nil, ErrNotTerminal
	}
	saved, err := d.Save()
	if err != nil {
		return nil, err
	}
	if _, err := term.MakeRaw(d.fd); err != nil {
		return nil, fmt.Errorf("failed to enter raw mode: %w", err)
	}

	t, err := d.Termios()
	if err == nil {
		t.Iflag &^= unix.IXON | unix.IXOFF | unix.IXANY
		t.Cc[unix.VMIN] = 1
		t.Cc[unix.VTIME] = 0
		t.Cc[unix.VSTOP] = vdisable
		t.Cc[unix.VSTART] = vdisable
		err = d.SetTermios(t)
	}
	if err != nil {
		_ = d.Restore(saved)
		return nil, err
	}
	return saved, nil
}

// Restore reapplies a saved mode once pending output has been transmitted.
func (d *Device) Restore(s *State) error {
	if s == nil {
		return nil
	}
	if err := unix.IoctlSetTermios(d.fd, ioctlDrainSetTermios, &s.termios); err != nil {
		return fmt.Errorf("failed to restore terminal attributes: %w", err)
	}
	return nil
}
