// Package main is the entry point for slowtty, a slow serial terminal
// emulator.
//
// slowtty runs a command (the user's shell by default) behind a
// pseudo-terminal and relays between it and the user's terminal at the
// character rate of the configured line speed, so output scrolls the way
// it did on a 9600 baud terminal.
//
// Configuration:
//   - Defaults
//   - TOML file (--config or SLOWTTY_CONFIG)
//   - Environment variables (SLOWTTY_RELAY_TICK, SLOWTTY_TERMINAL_LOGIN, ...)
//   - CLI flags (override everything else)
//
// Usage:
//
//	# Shell at the speed of the current terminal
//	stty 9600 && slowtty
//
//	# A single command, verbose logs, metrics on :9100
//	slowtty -d --metrics-addr 127.0.0.1:9100 top
//
//	# Inspect the pacing schedule for a line
//	slowtty rate --speed 300 --bits 7 --parity
//
// Exit status is the child's exit status, 128+n when it was killed by
// signal n.
package main
