package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/slowtty/internal/infrastructure/config"
	"github.com/GriffinCanCode/slowtty/internal/infrastructure/logging"
	"github.com/GriffinCanCode/slowtty/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/slowtty/internal/infrastructure/server"
	"github.com/GriffinCanCode/slowtty/internal/pump"
	"github.com/GriffinCanCode/slowtty/internal/session"
	"github.com/GriffinCanCode/slowtty/internal/terminal"
)

const (
	// ShutdownTimeout bounds how long the status listener may take to close.
	ShutdownTimeout = 2 * time.Second
	// KillTimeout is how long a hung-up child has before it is killed.
	KillTimeout = 5 * time.Second
)

// ErrNoConfig is returned by New without a configuration.
var ErrNoConfig = errors.New("app: no configuration")

// Options configures an App.
type Options struct {
	Config  *config.Config
	Command []string // empty runs the user's shell

	// Stdin and Stdout default to os.Stdin and os.Stdout.
	Stdin  *os.File
	Stdout *os.File

	Logger *zap.Logger
}

// App is one slowtty run.
type App struct {
	cfg     *config.Config
	command []string
	stdin   *os.File
	stdout  *os.File
	log     *zap.Logger
	metrics *monitoring.Metrics

	mu     sync.RWMutex
	sess   *session.Session
	handle *pump.Handle
}

// New validates opts and prepares an App.
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, ErrNoConfig
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	a := &App{
		cfg:     opts.Config,
		command: append([]string(nil), opts.Command...),
		stdin:   opts.Stdin,
		stdout:  opts.Stdout,
		log:     opts.Logger,
	}
	if a.cfg.Metrics.Address != "" {
		a.metrics = monitoring.NewMetrics()
	}
	return a, nil
}

// NewLogger builds the logger described by cfg. Lines end in "\r\n" when
// stdin is a terminal that will be switched to raw mode.
func NewLogger(cfg *config.Config, stdin *os.File) (*logging.Logger, error) {
	lc := logging.DefaultConfig()
	if cfg.Logging.Development {
		lc = logging.DevelopmentConfig()
	}
	if cfg.Logging.Level != "" {
		lc.Level = cfg.Logging.Level
	}
	lc.RawTerminal = cfg.Terminal.Raw && terminal.NewDevice(int(stdin.Fd())).IsTerminal()
	return logging.New(lc.WithFile(cfg.Logging.File))
}

// Run relays between the user's terminal and the child until the child
// has exited and both directions have drained, then returns the child's
// exit status. Cancelling ctx stops the relay and hangs up the child.
func (a *App) Run(ctx context.Context) (int, error) {
	// Fd switches the files to blocking mode, so take them before
	// setting O_NONBLOCK ourselves.
	stdinFd, stdoutFd := int(a.stdin.Fd()), int(a.stdout.Fd())
	user := terminal.NewDevice(stdinFd)
	interactive := user.IsTerminal()

	scfg := session.Config{
		Command: a.command,
		Shell:   a.cfg.Terminal.Shell,
		Login:   a.cfg.Terminal.Login,
		Speed:   a.cfg.Terminal.Speed,
		Logger:  a.log,
	}
	if interactive {
		saved, err := user.Save()
		if err != nil {
			return -1, err
		}
		scfg.Termios = saved.Termios()
		if ws, err := pty.GetsizeFull(a.stdin); err == nil {
			scfg.Size = ws
		} else {
			a.log.Warn("cannot read window size", zap.Error(err))
		}
	}

	sess, err := session.Start(scfg)
	if err != nil {
		return -1, err
	}
	defer sess.Close()
	log := a.log.With(zap.Stringer("session", sess.ID))

	if interactive && a.cfg.Terminal.Raw {
		state, err := user.MakeRaw()
		if err != nil {
			_ = sess.Signal(session.HangupSignal)
			return -1, err
		}
		defer func() {
			if err := user.Restore(state); err != nil {
				log.Warn("cannot restore terminal", zap.Error(err))
			}
		}()
	}

	masterFd := int(sess.Master().Fd())
	in := terminal.NewFD(stdinFd, "stdin")
	if err := in.SetNonblock(); err != nil {
		_ = sess.Signal(session.HangupSignal)
		return -1, err
	}
	defer func() {
		if err := in.RestoreFlags(); err != nil {
			log.Warn("cannot restore stdin flags", zap.Error(err))
		}
	}()
	master := terminal.NewFD(masterFd, "pty")
	if err := master.SetNonblock(); err != nil {
		_ = sess.Signal(session.HangupSignal)
		return -1, err
	}
	line := terminal.NewDevice(masterFd)

	opts := pump.Options{
		Reader: pump.Direction{Source: in, Sink: master, Line: line},
		Writer: pump.Direction{
			Source: terminal.NewFD(masterFd, "pty", terminal.WithEIOAsEOF()),
			Sink:   terminal.NewFD(stdoutFd, "stdout"),
			Line:   line,
		},
		Tick:           a.cfg.Relay.Tick.Duration,
		TicksPerSecond: a.cfg.Relay.EffectiveTicksPerSecond(),
		BufferSize:     a.cfg.Relay.BufferSize,
		DrainTicks:     a.cfg.Relay.DrainTicks,
		MaxLag:         a.cfg.Relay.MaxLag.Duration,
		Logger:         log,
	}
	if a.metrics != nil {
		opts.Recorder = a.metrics
	}

	relayCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	handle, err := pump.Start(relayCtx, opts)
	if err != nil {
		_ = sess.Signal(session.HangupSignal)
		return -1, err
	}

	a.mu.Lock()
	a.sess, a.handle = sess, handle
	a.mu.Unlock()

	if interactive && a.cfg.Terminal.Winch {
		stop := sess.WatchResize(relayCtx, a.stdin)
		defer stop()
	}

	if a.metrics != nil {
		srv := server.NewServer(a.metrics, a.Snapshot, log)
		if err := srv.Start(a.cfg.Metrics.Address); err != nil {
			log.Warn("status listener disabled", zap.Error(err))
		} else {
			defer func() {
				sctx, scancel := context.WithTimeout(context.Background(), ShutdownTimeout)
				defer scancel()
				if err := srv.Close(sctx); err != nil {
					log.Warn("status listener shutdown", zap.Error(err))
				}
			}()
		}
	}

	return a.supervise(ctx, log, sess, handle)
}

// supervise waits for the child, then drains the relay. A relay that
// fails or is cancelled first hangs up the child.
func (a *App) supervise(ctx context.Context, log *zap.Logger, sess *session.Session, handle *pump.Handle) (int, error) {
	select {
	case <-sess.Done():
		handle.Drain()
	case <-handle.Done():
		if !handle.Wait().OK() {
			hangup(log, sess)
		}
	case <-ctx.Done():
		handle.Stop()
		hangup(log, sess)
	}

	res := handle.Wait()
	code, werr := sess.Wait()
	log.Debug("session finished", zap.Int("code", code))

	if werr != nil {
		return code, fmt.Errorf("failed to wait for child: %w", werr)
	}
	if !res.OK() {
		return code, fmt.Errorf("relay failed: %w", res.Err)
	}
	return code, nil
}

// hangup sends SIGHUP to the child and kills it if it is still running
// after KillTimeout.
func hangup(log *zap.Logger, sess *session.Session) {
	if err := sess.Signal(session.HangupSignal); err != nil {
		log.Warn("cannot hang up child", zap.Error(err))
	}
	timer := time.NewTimer(KillTimeout)
	defer timer.Stop()
	select {
	case <-sess.Done():
	case <-timer.C:
		log.Warn("child ignored hangup, killing", zap.Int("pid", sess.Pid()))
		_ = sess.Signal(session.KillSignal)
	}
}

// Snapshot reports the running session and both directions.
func (a *App) Snapshot() monitoring.Snapshot {
	a.mu.RLock()
	sess, handle := a.sess, a.handle
	a.mu.RUnlock()

	if sess == nil {
		return monitoring.Snapshot{}
	}
	info := sess.Info()
	snap := monitoring.Snapshot{
		Session:     info.ID.String(),
		StartedAt:   info.StartedAt,
		Uptime:      time.Since(info.StartedAt).Round(time.Second).String(),
		Pid:         info.Pid,
		Command:     info.Args,
		ChildActive: info.Active,
	}
	if handle != nil {
		snap.Directions = handle.Snapshot()
	}
	return snap
}
