// Package session runs the child process behind a pseudo-terminal.
//
// Features:
//   - PTY allocation with the user's terminal attributes and window size
//     applied to the slave before the child starts
//   - The child becomes a session leader with the slave as its
//     controlling terminal
//   - Shell selection when no command is given: configured shell, then
//     $SHELL, then the user's /etc/passwd entry, then /bin/sh
//   - Login shells (argv0 prefixed with "-")
//   - SIGWINCH propagation from the user's terminal to the pty
//   - Exit status reporting, 128+n for a child killed by signal n
//
// Example Usage:
//
//	sess, err := session.Start(session.Config{
//	    Command: []string{"vi", "notes.txt"},
//	    Termios: saved.Termios(),
//	    Size:    size,
//	})
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
//	stop := sess.WatchResize(ctx, os.Stdin)
//	defer stop()
//
//	code, err := sess.Wait()
package session
