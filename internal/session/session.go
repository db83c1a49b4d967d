package session

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/slowtty/internal/shared/id"
	"github.com/GriffinCanCode/slowtty/internal/terminal"
)

// Signals used to end a child that outlives its relay.
const (
	HangupSignal = syscall.SIGHUP
	KillSignal   = syscall.SIGKILL
)

// Config describes the child to start.
type Config struct {
	// Command is the argv to run. Empty runs the resolved shell.
	Command []string
	// Shell overrides $SHELL when Command is empty.
	Shell string
	// Login prefixes the shell's argv0 with "-".
	Login bool

	// Termios is applied to the slave before the child starts. Nil keeps
	// the pty defaults.
	Termios *unix.Termios
	// Size is applied to the pty before the child starts. Nil keeps the
	// pty default.
	Size *pty.Winsize
	// Speed overrides the slave's line speed after Termios is applied.
	// Zero keeps whatever speed the slave already has.
	Speed int

	Env []string // defaults to the current environment
	Dir string

	Lookup *ShellLookup // defaults to DefaultShellLookup
	Logger *zap.Logger
}

// Info is the public representation of a session
type Info struct {
	ID        id.SessionID `json:"id"`
	Path      string       `json:"path"`
	Args      []string     `json:"args"`
	Pid       int          `json:"pid"`
	StartedAt time.Time    `json:"started_at"`
	Active    bool         `json:"active"`
}

// Session is a running child behind a pty
type Session struct {
	ID        id.SessionID
	Path      string
	Args      []string
	StartedAt time.Time

	cmd  *exec.Cmd
	ptmx *os.File
	log  *zap.Logger

	done      chan struct{}
	code      int
	err       error
	closeOnce sync.Once
	closeErr  error
}

// Start opens a pty, configures its slave and starts the child on it with
// the slave as controlling terminal.
func Start(cfg Config) (*Session, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	sid := id.NewSessionID()
	log := cfg.Logger.With(zap.Stringer("session", sid))
	startedAt, err := sid.Started()
	if err != nil {
		startedAt = time.Now()
	}

	name, argv := command(cfg, log)

	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open pty: %w", err)
	}
	// The parent keeps only the master, so its reads end once the child
	// and everything it spawned have closed the slave.
	defer tty.Close()

	if err := configure(ptmx, tty, cfg); err != nil {
		ptmx.Close()
		return nil, err
	}

	cmd := exec.Command(name, argv[1:]...)
	cmd.Args = argv
	cmd.Env = cfg.Env
	cmd.Dir = cfg.Dir
	cmd.Stdin, cmd.Stdout, cmd.Stderr = tty, tty, tty
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}

	if err := cmd.Start(); err != nil {
		ptmx.Close()
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	s := &Session{
		ID:        sid,
		Path:      cmd.Path,
		Args:      argv,
		StartedAt: startedAt,
		cmd:       cmd,
		ptmx:      ptmx,
		log:       log,
		done:      make(chan struct{}),
	}
	log.Debug("child started",
		zap.Int("pid", cmd.Process.Pid),
		zap.String("path", s.Path),
		zap.Strings("args", argv),
		zap.String("pty", tty.Name()))

	go s.wait()
	return s, nil
}

// command returns the program and its argv.
func command(cfg Config, log *zap.Logger) (string, []string) {
	if len(cfg.Command) > 0 {
		return cfg.Command[0], append([]string(nil), cfg.Command...)
	}

	lookup := DefaultShellLookup()
	if cfg.Lookup != nil {
		lookup = *cfg.Lookup
	}
	shell, source := lookup.Resolve(cfg.Shell)
	log.Debug("selected shell", zap.String("shell", shell), zap.String("source", source))

	argv0 := shell
	if cfg.Login {
		argv0 = "-" + shell
	}
	return shell, []string{argv0}
}

func configure(ptmx, tty *os.File, cfg Config) error {
	slave := terminal.NewDevice(int(tty.Fd()))
	if cfg.Termios != nil {
		if err := slave.SetTermios(cfg.Termios); err != nil {
			return fmt.Errorf("failed to configure pty slave: %w", err)
		}
	}
	if cfg.Speed > 0 {
		if err := setSpeed(slave, cfg.Speed); err != nil {
			return fmt.Errorf("failed to set pty speed to %d: %w", cfg.Speed, err)
		}
	}
	if cfg.Size != nil {
		if err := pty.Setsize(ptmx, cfg.Size); err != nil {
			return fmt.Errorf("failed to set pty size: %w", err)
		}
	}
	return nil
}

// setSpeed changes the line speed and keeps the rest of the framing.
func setSpeed(dev *terminal.Device, bps int) error {
	t, err := dev.Termios()
	if err != nil {
		return err
	}
	line := terminal.LineConfigOf(t)
	line.Speed = bps
	if err := terminal.SetLineConfig(t, line); err != nil {
		return err
	}
	return dev.SetTermios(t)
}

func (s *Session) wait() {
	defer close(s.done)
	s.code, s.err = exitCode(s.cmd.Wait())
	s.log.Debug("child exited", zap.Int("code", s.code), zap.Error(s.err))
}

// exitCode maps a wait result to a shell-style exit status.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1, err
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal()), nil
	}
	return exitErr.ExitCode(), nil
}

// Master returns the pty master
func (s *Session) Master() *os.File {
	return s.ptmx
}

// Pid returns the child's process id
func (s *Session) Pid() int {
	return s.cmd.Process.Pid
}

// Done is closed once the child has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the child exits and returns its exit status. The
// error is non-nil only if the child could not be waited for.
func (s *Session) Wait() (int, error) {
	<-s.done
	return s.code, s.err
}

// Signal sends sig to the child
func (s *Session) Signal(sig os.Signal) error {
	select {
	case <-s.done:
		return nil // already exited
	default:
	}
	return s.cmd.Process.Signal(sig)
}

// Close releases the pty master. It does not wait for the child.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.ptmx.Close()
	})
	return s.closeErr
}

// Info returns a snapshot of the session
func (s *Session) Info() Info {
	active := true
	select {
	case <-s.done:
		active = false
	default:
	}
	return Info{
		ID:        s.ID,
		Path:      s.Path,
		Args:      append([]string(nil), s.Args...),
		Pid:       s.cmd.Process.Pid,
		StartedAt: s.StartedAt,
		Active:    active,
	}
}
