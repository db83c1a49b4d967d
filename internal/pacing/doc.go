// Package pacing converts a serial line configuration into a per-tick
// character quota.
//
// A line running at S bits per second with F bits per character frame
// carries S/F characters per second. Divided over T ticks per second that
// is a rational number of characters per tick, which is rarely whole.
// Rate keeps the fraction num/den reduced and carries the remainder in an
// accumulator from one tick to the next, so that over any den consecutive
// ticks exactly num characters are released and no rounding error ever
// builds up.
//
// Frame width:
//
//	start bit + data bits (5..8) + parity bit (optional) + stop bits (1 or 2)
//
// Example Usage:
//
//	rate := pacing.NewRate(25)
//	cfg := pacing.LineConfig{Speed: 9600, CharSize: 8}
//	for {
//		n := rate.Quota(cfg) // 38, 39, 38, 39, 38, ...
//		...
//	}
package pacing
