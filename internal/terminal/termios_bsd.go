//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package terminal

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const (
	ioctlGetTermios      = unix.TIOCGETA
	ioctlSetTermios      = unix.TIOCSETA
	ioctlDrainSetTermios = unix.TIOCSETAW

	vdisable = 0xff
)

// lineSpeed returns the output speed, which BSD termios stores in bits per
// second.
func lineSpeed(t *unix.Termios) int {
	return int(t.Ospeed)
}

func setLineSpeed(t *unix.Termios, bps int) error {
	if bps < 0 {
		return fmt.Errorf("terminal: invalid speed %d bps", bps)
	}
	setSpeed(&t.Ispeed, bps)
	setSpeed(&t.Ospeed, bps)
	return nil
}

func setSpeed[T ~uint32 | ~uint64](field *T, bps int) {
	*field = T(bps)
}
