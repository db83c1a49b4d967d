// Package config provides layered configuration for slowtty.
//
// Configuration starts from Default, is overlaid by an optional TOML file
// and then by environment variables. CLI flags override all of them.
//
// Configuration Sections:
//   - Relay: tick length, ticks per second, buffer size, drain hysteresis,
//     maximum schedule lag
//   - Terminal: raw mode, window-size propagation, login shell, shell
//   - Logging: level, format and optional log file
//   - Metrics: status listener address
//
// Example Usage:
//
//	cfg, err := config.Load(*configPath)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("ticking every %s\n", cfg.Relay.Tick)
//
// Example File:
//
//	[relay]
//	tick = "20ms"
//	buffer_size = 4096
//
//	[logging]
//	level = "debug"
//	file = "/tmp/slowtty.log"
//
// Environment Variables:
//   - SLOWTTY_CONFIG (file path)
//   - SLOWTTY_RELAY_TICK, SLOWTTY_RELAY_TICKS_PER_SECOND,
//     SLOWTTY_RELAY_BUFFER_SIZE, SLOWTTY_RELAY_DRAIN_TICKS,
//     SLOWTTY_RELAY_MAX_LAG
//   - SLOWTTY_TERMINAL_RAW, SLOWTTY_TERMINAL_WINCH, SLOWTTY_TERMINAL_LOGIN,
//     SLOWTTY_TERMINAL_SHELL
//   - SLOWTTY_LOGGING_LEVEL, SLOWTTY_LOGGING_DEVELOPMENT,
//     SLOWTTY_LOGGING_FILE
//   - SLOWTTY_METRICS_ADDRESS
package config
