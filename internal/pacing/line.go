package pacing

import "fmt"

// DefaultSpeed is used for line speeds the terminal reports but that are
// not in the supported table.
const DefaultSpeed = 300

// DefaultCharSize is used when the character size is not one of 5, 6, 7 or 8.
const DefaultCharSize = 8

// supportedSpeeds holds the line speeds in bits per second that a terminal
// device may report.
var supportedSpeeds = map[int]struct{}{
	50: {}, 75: {}, 110: {}, 134: {}, 150: {}, 200: {}, 300: {}, 600: {},
	1200: {}, 1800: {}, 2400: {}, 4800: {}, 9600: {}, 19200: {}, 38400: {},
	57600: {}, 115200: {}, 230400: {}, 460800: {}, 500000: {}, 576000: {},
	921600: {}, 1000000: {}, 1152000: {}, 1500000: {}, 2000000: {},
	2500000: {}, 3000000: {}, 3500000: {}, 4000000: {},
}

// LineConfig is a snapshot of a terminal line's framing parameters.
type LineConfig struct {
	Speed       int  `json:"speed"`         // bits per second
	CharSize    int  `json:"char_size"`     // data bits, 5..8
	Parity      bool `json:"parity"`        // parity bit enabled
	TwoStopBits bool `json:"two_stop_bits"` // two stop bits instead of one
}

// String returns the conventional notation, e.g. "9600 8N1".
func (c LineConfig) String() string {
	parity := "N"
	if c.Parity {
		parity = "P"
	}
	stop := 1
	if c.TwoStopBits {
		stop = 2
	}
	return fmt.Sprintf("%d %d%s%d", c.Speed, c.CharSize, parity, stop)
}

// IsSupportedSpeed reports whether bps is a known line speed.
func IsSupportedSpeed(bps int) bool {
	_, ok := supportedSpeeds[bps]
	return ok
}

// Normalize replaces an unsupported speed with DefaultSpeed and an
// out-of-range character size with DefaultCharSize.
func Normalize(c LineConfig) LineConfig {
	if !IsSupportedSpeed(c.Speed) {
		c.Speed = DefaultSpeed
	}
	if c.CharSize < 5 || c.CharSize > 8 {
		c.CharSize = DefaultCharSize
	}
	return c
}

// BitsPerChar returns the width in bits of one character frame.
func BitsPerChar(c LineConfig) int {
	c = Normalize(c)
	bits := 1 + c.CharSize + 1
	if c.Parity {
		bits++
	}
	if c.TwoStopBits {
		bits++
	}
	return bits
}
