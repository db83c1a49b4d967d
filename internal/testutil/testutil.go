// Package testutil provides endpoint fakes and mocks shared by the relay
// tests.
package testutil

import (
	"bytes"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"
	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/slowtty/internal/pacing"
)

// Source is a non-blocking byte source. Reads return EAGAIN while it is
// empty and open, and io.EOF once it is empty and closed.
type Source struct {
	mu     sync.Mutex
	data   []byte
	closed bool
	chunk  int
	reads  int
	err    error
}

// NewSource creates a source preloaded with data.
func NewSource(data []byte) *Source {
	return &Source{data: append([]byte(nil), data...)}
}

// SetChunk limits every read to at most n bytes. Zero means unlimited.
func (s *Source) SetChunk(n int) {
	s.mu.Lock()
	s.chunk = n
	s.mu.Unlock()
}

// Feed appends data to the source.
func (s *Source) Feed(data []byte) {
	s.mu.Lock()
	s.data = append(s.data, data...)
	s.mu.Unlock()
}

// Close marks the end of stream.
func (s *Source) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Fail makes every following read return err.
func (s *Source) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Reads returns the number of Read calls.
func (s *Source) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Pending returns the number of bytes not yet read.
func (s *Source) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func (s *Source) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads++
	if s.err != nil {
		return 0, s.err
	}
	if len(s.data) == 0 {
		if s.closed {
			return 0, io.EOF
		}
		return 0, unix.EAGAIN
	}
	n := len(p)
	if s.chunk > 0 && n > s.chunk {
		n = s.chunk
	}
	n = copy(p[:n], s.data)
	s.data = s.data[n:]
	return n, nil
}

// Sink collects written bytes. It is safe for concurrent use.
type Sink struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	writes  []int
	blocked bool
	limit   int
	err     error
}

// NewSink creates an empty, accepting sink.
func NewSink() *Sink {
	return &Sink{}
}

// Block makes writes return EAGAIN while blocked is true.
func (s *Sink) Block(blocked bool) {
	s.mu.Lock()
	s.blocked = blocked
	s.mu.Unlock()
}

// SetLimit accepts at most n bytes per write. Zero means unlimited.
func (s *Sink) SetLimit(n int) {
	s.mu.Lock()
	s.limit = n
	s.mu.Unlock()
}

// Fail makes every following write return err.
func (s *Sink) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Bytes returns a copy of everything written.
func (s *Sink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf.Bytes()...)
}

// Len returns the number of bytes written.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

// Writes returns the size of every successful write, in order.
func (s *Sink) Writes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.writes...)
}

// Count returns how many times c was written.
func (s *Sink) Count(c byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Count(s.buf.Bytes(), []byte{c})
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return 0, s.err
	}
	if s.blocked {
		return 0, unix.EAGAIN
	}
	n := len(p)
	if s.limit > 0 && n > s.limit {
		n = s.limit
	}
	s.buf.Write(p[:n])
	s.writes = append(s.writes, n)
	return n, nil
}

// VecSource wraps a Source with a Readv method and counts vectored calls.
type VecSource struct {
	*Source
	Calls int
}

func (v *VecSource) Readv(bufs [][]byte) (int, error) {
	v.Calls++
	total := 0
	for _, b := range bufs {
		n, err := v.Source.Read(b)
		total += n
		if err != nil {
			if total > 0 {
				return total, nil
			}
			return 0, err
		}
		if n < len(b) {
			break
		}
	}
	return total, nil
}

// VecSink wraps a Sink with a Writev method and counts vectored calls.
type VecSink struct {
	*Sink
	Calls int
}

func (v *VecSink) Writev(bufs [][]byte) (int, error) {
	v.Calls++
	return v.Sink.Write(bytes.Join(bufs, nil))
}

// MockLineSource is a testify mock of a terminal line configuration query.
type MockLineSource struct {
	mock.Mock
}

// LineConfig mocks the LineConfig method.
func (m *MockLineSource) LineConfig() (pacing.LineConfig, error) {
	args := m.Called()
	return args.Get(0).(pacing.LineConfig), args.Error(1)
}

// StaticLine is a fixed line configuration.
type StaticLine pacing.LineConfig

// LineConfig returns the configuration.
func (l StaticLine) LineConfig() (pacing.LineConfig, error) {
	return pacing.LineConfig(l), nil
}
