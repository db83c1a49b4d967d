// Package terminal wraps the terminal devices slowtty relays between.
//
// Features:
//   - Line configuration query over termios (speed, character size, parity,
//     stop bits), so a speed changed with stty inside the child takes
//     effect on the next tick
//   - Raw mode with software flow control disabled and ^S/^Q passed
//     through, restored with drain semantics on exit
//   - Non-blocking raw file descriptors usable as relay sources and sinks,
//     with vectored I/O on Linux
//   - Optional end-of-stream mapping for EIO on a pty master whose slave
//     has closed
//
// Architecture:
//   - Device holds a terminal fd for termios operations
//   - FD holds any fd for reads and writes and keeps its original file
//     status flags for RestoreFlags
//   - Platform files select the termios ioctls and speed encoding
//
// Example Usage:
//
//	dev := terminal.NewDevice(int(os.Stdin.Fd()))
//	state, err := dev.MakeRaw()
//	if err != nil {
//	    return err
//	}
//	defer dev.Restore(state)
//
//	line, err := dev.LineConfig()
//	// → 38400 8N1
package terminal
