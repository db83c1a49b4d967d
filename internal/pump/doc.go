// Package pump implements the paced, flow-controlled relay between a user
// terminal and a child's pseudo-terminal.
//
// A Pump moves bytes in one direction. On every tick it asks its
// pacing.Rate how many characters the line may carry, refills its ring
// buffer from the source and drains at most that many bytes to the sink.
// When the buffer backs up to two ticks' worth of characters the pump asks
// its peer (the pump running the opposite direction) to emit XOFF on the
// peer's own sink; once the backlog falls under one tick's worth it asks
// for XON.
//
// Architecture:
//
//	stdin ──▶ [reader pump] ──▶ pty master ──▶ child
//	stdout ◀── [writer pump] ◀── pty master ◀── child
//	              │   ▲
//	              └───┘ XON/XOFF requests through each other's Inbox
//
// Ticks are scheduled on absolute deadlines, so the cadence never drifts
// no matter how long a tick takes to process. The writer's deadlines are
// offset by half a tick from the reader's.
//
// Lifecycle:
//   - Running: refill and drain every tick
//   - Draining: stop refilling, flush what is buffered, then stop
//   - Stopped: no more I/O, Run returns
//
// Example Usage:
//
//	h, err := pump.Start(ctx, pump.Options{
//		Reader: pump.Direction{Source: stdin, Sink: ptmx, Line: dev},
//		Writer: pump.Direction{Source: ptmx, Sink: stdout, Line: dev},
//		Tick:   40 * time.Millisecond,
//	})
//	...
//	<-childExited
//	h.Drain()
//	res := h.Wait()
package pump
