// Package logging provides structured logging using uber/zap.
//
// This package offers two modes:
//   - Production: JSON output for machine parsing
//   - Development: console output for human readability
//
// Logs go to stderr by default, never stdout, which carries the child's
// output. While the user's terminal is in raw mode a bare "\n" does not
// return the cursor, so RawTerminal switches the line ending to "\r\n".
//
// Example Usage:
//
//	logger, err := logging.New(logging.DefaultConfig().WithFile("/tmp/slowtty.log"))
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//	logger.Info("relay started", zap.Duration("tick", tick))
package logging
