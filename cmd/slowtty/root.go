package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/slowtty/internal/app"
	"github.com/GriffinCanCode/slowtty/internal/infrastructure/config"
)

// cli holds the root command's flags and the child's exit status.
type cli struct {
	configPath  string
	debug       bool
	login       bool
	noTcset     bool
	noWinch     bool
	bufferSize  int
	tick        time.Duration
	speed       int
	metricsAddr string

	code int
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}
	root := &cobra.Command{
		Use:   "slowtty [flags] [command [args...]]",
		Short: "Run a command behind a terminal throttled to its line speed",
		Long: `slowtty runs a command, or your shell, behind a pseudo-terminal and ` +
			`relays keystrokes and output at the character rate of the terminal's ` +
			`line speed, with XON/XOFF flow control between the two directions.`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          c.runE,
	}

	flags := root.Flags()
	// Everything after the command belongs to it.
	flags.SetInterspersed(false)
	flags.StringVar(&c.configPath, "config", "", "TOML configuration file (default $SLOWTTY_CONFIG)")
	flags.BoolVarP(&c.debug, "debug", "d", false, "verbose development logging")
	flags.BoolVarP(&c.login, "login", "l", false, "run the shell as a login shell")
	flags.BoolVarP(&c.noTcset, "no-tcset", "t", false, "leave the user terminal's mode alone")
	flags.BoolVarP(&c.noWinch, "no-winch", "w", false, "do not propagate window size changes")
	flags.IntVarP(&c.bufferSize, "buffer-size", "s", config.DefaultBufferSize,
		fmt.Sprintf("per-direction buffer in bytes (%d..%d)", config.MinBufferSize, config.MaxBufferSize))
	flags.DurationVar(&c.tick, "tick", 40*time.Millisecond, "pacing tick")
	flags.IntVar(&c.speed, "speed", 0, "set the pty line speed in bits per second (default: the terminal's)")
	flags.StringVar(&c.metricsAddr, "metrics-addr", "", "serve /metrics, /healthz and /status on this address")

	root.AddCommand(newRateCmd())
	return root, c
}

func (c *cli) runE(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	warnings := c.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	warnings = append(warnings, cfg.Warnings()...)

	logger, err := app.NewLogger(cfg, os.Stdin)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()
	for _, w := range warnings {
		logger.Warn(w)
	}

	a, err := app.New(app.Options{Config: cfg, Command: args, Logger: logger.Logger})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	code, err := a.Run(ctx)
	if err != nil {
		logger.Error("slowtty failed", zap.Error(err))
		if code < 0 {
			code = 1
		}
	}
	c.code = code
	return nil
}

// apply overlays the flags the user set on cfg and returns warnings for
// values that were ignored.
func (c *cli) apply(cmd *cobra.Command, cfg *config.Config) []string {
	var warnings []string
	changed := cmd.Flags().Changed

	if c.debug {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}
	if c.login {
		cfg.Terminal.Login = true
	}
	if c.noTcset {
		cfg.Terminal.Raw = false
	}
	if c.noWinch {
		cfg.Terminal.Winch = false
	}
	if changed("buffer-size") {
		if c.bufferSize < config.MinBufferSize || c.bufferSize > config.MaxBufferSize {
			warnings = append(warnings, fmt.Sprintf("invalid buffer size %d, using %d",
				c.bufferSize, cfg.Relay.BufferSize))
		} else {
			cfg.Relay.BufferSize = c.bufferSize
		}
	}
	if changed("tick") {
		cfg.Relay.Tick = config.Duration{Duration: c.tick}
		// The tick rate follows the new tick.
		cfg.Relay.TicksPerSecond = 0
	}
	if changed("speed") {
		cfg.Terminal.Speed = c.speed
	}
	if changed("metrics-addr") {
		cfg.Metrics.Address = c.metricsAddr
	}
	return warnings
}
