// Package id generates sortable identifiers for relay sessions.
//
// A session id is a ULID behind a type prefix, e.g.
// "sess_01J9Z3K6Q7V8W9X0Y1Z2A3B4C5". The ULID's millisecond timestamp is
// the session start, so ids sort by start time in logs and status output.
package id

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies one slowtty run
type SessionID string

// SessionPrefix marks session ids
const SessionPrefix = "sess"

// ErrMalformed is returned for ids without a prefix or a valid ULID.
var ErrMalformed = errors.New("id: malformed identifier")

// Generator generates ULIDs with optional prefixes
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand with
// monotonic entropy, so ids generated within the same millisecond still
// sort in generation order.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(ulid.Monotonic(rand.Reader, 0), time.Now)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source
// and clock, for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader, now func() time.Time) *Generator {
	return &Generator{entropy: entropy, now: now}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate())
}

// NewSessionID generates a new session ID
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

func (id SessionID) String() string { return string(id) }

// ULID returns the id's ULID part.
func (id SessionID) ULID() (ulid.ULID, error) {
	prefix, raw, ok := strings.Cut(string(id), "_")
	if !ok || prefix != SessionPrefix {
		return ulid.ULID{}, fmt.Errorf("%w: %q", ErrMalformed, string(id))
	}
	u, err := ulid.Parse(raw)
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("%w: %q: %v", ErrMalformed, string(id), err)
	}
	return u, nil
}

// Started returns the time the session id was generated.
func (id SessionID) Started() (time.Time, error) {
	u, err := id.ULID()
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
