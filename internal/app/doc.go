// Package app wires slowtty together.
//
// An App puts the user's terminal into raw mode, starts the child behind a
// pseudo-terminal, runs the paced relay between the two and restores
// everything once the child has exited and the relay has drained. It
// optionally serves metrics and a status snapshot over HTTP.
//
// Example Usage:
//
//	a, err := app.New(app.Options{Config: cfg, Command: args, Logger: log})
//	if err != nil {
//	    return err
//	}
//	code, err := a.Run(ctx)
package app
