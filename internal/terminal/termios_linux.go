package terminal

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const (
	ioctlGetTermios      = unix.TCGETS
	ioctlSetTermios      = unix.TCSETS
	ioctlDrainSetTermios = unix.TCSETSW

	vdisable = 0
)

var baudRates = map[uint32]int{
	unix.B0:       0,
	unix.B50:      50,
	unix.B75:      75,
	unix.B110:     110,
	unix.B134:     134,
	unix.B150:     150,
	unix.B200:     200,
	unix.B300:     300,
	unix.B600:     600,
	unix.B1200:    1200,
	unix.B1800:    1800,
	unix.B2400:    2400,
	unix.B4800:    4800,
	unix.B9600:    9600,
	unix.B19200:   19200,
	unix.B38400:   38400,
	unix.B57600:   57600,
	unix.B115200:  115200,
	unix.B230400:  230400,
	unix.B460800:  460800,
	unix.B500000:  500000,
	unix.B576000:  576000,
	unix.B921600:  921600,
	unix.B1000000: 1000000,
	unix.B1152000: 1152000,
	unix.B1500000: 1500000,
	unix.B2000000: 2000000,
	unix.B2500000: 2500000,
	unix.B3000000: 3000000,
	unix.B3500000: 3500000,
	unix.B4000000: 4000000,
}

// lineSpeed decodes the output speed held in the CBAUD bits. Unknown codes
// decode to 0.
func lineSpeed(t *unix.Termios) int {
	return baudRates[t.Cflag&unix.CBAUD]
}

func setLineSpeed(t *unix.Termios, bps int) error {
	for code, speed := range baudRates {
		if speed == bps {
			t.Cflag = t.Cflag&^unix.CBAUD | code
			t.Ispeed = uint32(bps)
			t.Ospeed = uint32(bps)
			return nil
		}
	}
	return fmt.Errorf("terminal: no baud code for %d bps", bps)
}
