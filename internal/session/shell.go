package session

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// DefaultShell is the last resort when nothing names a shell.
const DefaultShell = "/bin/sh"

// PasswdFile is the user database consulted for the login shell.
const PasswdFile = "/etc/passwd"

// ShellLookup resolves the shell to run when no command is given.
type ShellLookup struct {
	Getenv     func(string) string
	PasswdPath string
	UID        int
}

// DefaultShellLookup reads the process environment and the system user
// database for the current user.
func DefaultShellLookup() ShellLookup {
	return ShellLookup{Getenv: os.Getenv, PasswdPath: PasswdFile, UID: os.Getuid()}
}

// Resolve returns configured when set, then $SHELL, then the shell of
// the user's passwd entry, then DefaultShell. The second result names the
// source for logs.
func (l ShellLookup) Resolve(configured string) (shell, source string) {
	if configured != "" {
		return configured, "config"
	}
	if l.Getenv != nil {
		if s := l.Getenv("SHELL"); s != "" {
			return s, "environment"
		}
	}
	if s, ok := passwdShell(l.PasswdPath, l.UID); ok {
		return s, "passwd"
	}
	return DefaultShell, "default"
}

// passwdShell returns the shell field of the first entry for uid.
func passwdShell(path string, uid int) (string, bool) {
	if path == "" {
		return "", false
	}
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	want := strconv.Itoa(uid)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// name:password:uid:gid:gecos:home:shell
		fields := strings.Split(line, ":")
		if len(fields) != 7 || fields[2] != want {
			continue
		}
		if fields[6] == "" {
			return "", false
		}
		return fields[6], true
	}
	return "", false
}
