package pump

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/slowtty/internal/pacing"
	"github.com/GriffinCanCode/slowtty/internal/ring"
	"github.com/GriffinCanCode/slowtty/internal/testutil"
)

var line9600 = testutil.StaticLine{Speed: 9600, CharSize: 8}

func newTestPump(t *testing.T, src *testutil.Source, sink *testutil.Sink, peer *Inbox) *Pump {
	t.Helper()
	cfg := Config{
		Name:           "test",
		Source:         src,
		Sink:           sink,
		Line:           line9600,
		TicksPerSecond: 25,
		BufferSize:     1024,
		Logger:         zaptest.NewLogger(t),
	}
	if peer != nil {
		cfg.Peer = peer
	}
	return New(cfg)
}

func drainInbox(in *Inbox) []byte {
	var out []byte
	for {
		b, ok := in.next()
		if !ok {
			return out
		}
		out = append(out, b)
	}
}

func payload(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = 'a' + byte(i%26)
	}
	return out
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestSignalName(t *testing.T) {
	assert.Equal(t, "xon", SignalName(XON))
	assert.Equal(t, "xoff", SignalName(XOFF))
	assert.Equal(t, "unknown", SignalName('a'))
}

func TestInboxIsBounded(t *testing.T) {
	in := NewInbox()
	for i := 0; i < inboxSize; i++ {
		assert.True(t, in.Signal(XOFF))
	}
	assert.False(t, in.Signal(XON), "full inbox rejects")
	assert.Len(t, drainInbox(in), inboxSize)
}

func TestBurstThenCloseDeliversEverything(t *testing.T) {
	input := payload(10000)
	src := testutil.NewSource(input)
	src.Close()
	sink := testutil.NewSink()
	p := newTestPump(t, src, sink, nil)

	ticks := 0
	for p.State() != StateStopped {
		require.Less(t, ticks, 1000, "pump never stopped")
		before := sink.Len()
		require.NoError(t, p.Tick())
		ticks++

		sent := sink.Len() - before
		assert.LessOrEqual(t, sent, 39, "never more than one tick's quota")
		if p.State() == StateStopped {
			assert.Zero(t, p.Buffered(), "stopped only after the buffer drained")
		}
	}

	assert.Equal(t, input, sink.Bytes())
	// 10000 characters at 38.4 per tick.
	assert.InDelta(t, 10000/38.4, ticks, 2)

	stats := p.Stats()
	assert.Equal(t, "stopped", stats.State)
	assert.Equal(t, uint64(10000), stats.BytesIn)
	assert.Equal(t, uint64(10000), stats.BytesOut)
	assert.Equal(t, uint64(192), stats.Num)
	assert.Equal(t, uint64(5), stats.Den)
	assert.Equal(t, "9600 8N1", stats.Line)
}

func TestQuotaAlternatesPerTick(t *testing.T) {
	src := testutil.NewSource(payload(5000))
	sink := testutil.NewSink()
	p := newTestPump(t, src, sink, nil)

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Tick())
	}
	assert.Equal(t, []int{38, 39, 38, 39, 38, 38, 39, 38, 39, 38}, sink.Writes())
}

func TestBlockedSinkSignalsStopOnce(t *testing.T) {
	src := testutil.NewSource(payload(100000))
	sink := testutil.NewSink()
	sink.Block(true)
	peer := NewInbox()
	p := newTestPump(t, src, sink, peer)

	var signals []byte
	for i := 0; i < 50; i++ {
		require.NoError(t, p.Tick())
		require.LessOrEqual(t, p.Buffered(), 1024, "fill never exceeds capacity")
		signals = append(signals, drainInbox(peer)...)
	}

	assert.Equal(t, []byte{XOFF}, signals)
	assert.Equal(t, 1024, p.Buffered())
	assert.Zero(t, sink.Len())
	assert.Equal(t, 100000-1024, src.Pending())
	assert.True(t, p.Stats().PeerStopped)
}

func TestFlowControlHysteresis(t *testing.T) {
	src := testutil.NewSource(payload(200))
	sink := testutil.NewSink()
	peer := NewInbox()
	p := newTestPump(t, src, sink, peer)

	var signals []byte
	tick := func() {
		require.NoError(t, p.Tick())
		signals = append(signals, drainInbox(peer)...)
	}

	tick()
	assert.Equal(t, []byte{XOFF}, signals, "162 bytes left is over two ticks' worth")

	for p.Buffered() >= 38 {
		tick()
	}
	tick()
	assert.Equal(t, []byte{XOFF, XON}, signals, "exactly one resume once under a tick's worth")

	for i := 0; i < 5; i++ {
		tick()
	}
	assert.Equal(t, []byte{XOFF, XON}, signals, "no repeats while idle")

	src.Feed(payload(300))
	tick()
	assert.Equal(t, []byte{XOFF, XON, XOFF}, signals)
	assert.Equal(t, 500, sink.Len()+p.Buffered())
}

func TestFullInboxRetriesSignal(t *testing.T) {
	src := testutil.NewSource(payload(500))
	sink := testutil.NewSink()
	peer := NewInbox()
	for peer.Signal(XON) {
	}
	p := newTestPump(t, src, sink, peer)

	require.NoError(t, p.Tick())
	assert.False(t, p.Stats().PeerStopped, "undelivered signal does not flip the flag")

	drainInbox(peer)
	require.NoError(t, p.Tick())
	assert.Equal(t, []byte{XOFF}, drainInbox(peer))
	assert.True(t, p.Stats().PeerStopped)
}

func TestControlBytePrecedesTraffic(t *testing.T) {
	src := testutil.NewSource([]byte("abc"))
	sink := testutil.NewSink()
	p := newTestPump(t, src, sink, nil)

	require.True(t, p.Inbox().Signal(XOFF))
	require.NoError(t, p.Tick())

	assert.Equal(t, []byte("\x13abc"), sink.Bytes())
	assert.Equal(t, []int{1, 3}, sink.Writes(), "control byte is its own single-byte write")
	assert.Equal(t, uint64(1), p.Stats().ControlBytes)
}

func TestControlByteRetriedWhenSinkBlocks(t *testing.T) {
	src := testutil.NewSource(nil)
	sink := testutil.NewSink()
	sink.Block(true)
	p := newTestPump(t, src, sink, nil)

	require.True(t, p.Inbox().Signal(XON))
	require.NoError(t, p.Tick())
	require.NoError(t, p.Tick())
	assert.Zero(t, sink.Len())

	sink.Block(false)
	require.NoError(t, p.Tick())
	require.NoError(t, p.Tick())
	assert.Equal(t, []byte{XON}, sink.Bytes(), "delivered once, never duplicated")
}

func TestHaltReleasesPausedSink(t *testing.T) {
	src := testutil.NewSource([]byte("ab"))
	src.Close()
	sink := testutil.NewSink()
	p := newTestPump(t, src, sink, nil)

	require.True(t, p.Inbox().Signal(XOFF))
	for i := 0; i < 3 && p.State() != StateStopped; i++ {
		require.NoError(t, p.Tick())
	}

	require.Equal(t, StateStopped, p.State())
	assert.Equal(t, []byte("\x13ab\x11"), sink.Bytes(), "xon follows the stranded xoff")
	assert.Equal(t, uint64(2), p.Stats().ControlBytes)
}

func TestHaltLeavesResumedSinkAlone(t *testing.T) {
	src := testutil.NewSource(nil)
	src.Close()
	sink := testutil.NewSink()
	p := newTestPump(t, src, sink, nil)

	require.True(t, p.Inbox().Signal(XOFF))
	require.True(t, p.Inbox().Signal(XON))
	require.NoError(t, p.Tick())

	require.Equal(t, StateStopped, p.State())
	assert.Equal(t, []byte{XOFF, XON}, sink.Bytes())
}

func TestSlowLineReleasesSingleCharacters(t *testing.T) {
	src := testutil.NewSource(payload(100))
	sink := testutil.NewSink()
	peer := NewInbox()
	p := New(Config{
		Name:           "slow",
		Source:         src,
		Sink:           sink,
		Line:           testutil.StaticLine{Speed: 50, CharSize: 8},
		TicksPerSecond: 25,
		Peer:           peer,
	})

	for i := 0; i < 25; i++ {
		require.NoError(t, p.Tick())
	}
	// 50 bps 8N1 is 5 characters per second.
	assert.Equal(t, 5, sink.Len())
	for _, w := range sink.Writes() {
		assert.Equal(t, 1, w)
	}
	assert.Equal(t, []byte{XOFF}, drainInbox(peer))
}

func TestDrainStopsRefillingAndWaitsForEmptyTicks(t *testing.T) {
	src := testutil.NewSource(payload(50))
	sink := testutil.NewSink()
	p := newTestPump(t, src, sink, nil)

	require.NoError(t, p.Tick())
	require.Equal(t, 12, p.Buffered())

	p.RequestDrain()
	reads := src.Reads()
	src.Feed(payload(100))

	require.NoError(t, p.Tick())
	assert.Equal(t, StateDraining, p.State())
	assert.Zero(t, p.Buffered())
	assert.Equal(t, reads, src.Reads(), "draining pump does not read")

	for i := 2; i < DefaultDrainTicks; i++ {
		require.NoError(t, p.Tick())
		assert.Equal(t, StateDraining, p.State(), "tick %d", i)
	}
	require.NoError(t, p.Tick())
	assert.Equal(t, StateStopped, p.State())
	assert.Equal(t, 50, sink.Len())
}

func TestFinishKeepsReadingUntilIdle(t *testing.T) {
	src := testutil.NewSource(payload(100))
	sink := testutil.NewSink()
	p := newTestPump(t, src, sink, nil)

	p.RequestFinish()
	for i := 0; i < 10 && p.State() != StateStopped; i++ {
		require.NoError(t, p.Tick())
	}

	assert.Equal(t, StateStopped, p.State())
	assert.Equal(t, payload(100), sink.Bytes())
}

func TestStopAbandonsBufferedBytes(t *testing.T) {
	src := testutil.NewSource(payload(500))
	sink := testutil.NewSink()
	peer := NewInbox()
	p := newTestPump(t, src, sink, peer)

	require.NoError(t, p.Tick())
	require.Equal(t, []byte{XOFF}, drainInbox(peer))
	written := sink.Len()

	p.Stop()
	p.Stop()
	require.NoError(t, p.Tick())
	require.NoError(t, p.Tick())

	assert.Equal(t, StateStopped, p.State())
	assert.Equal(t, written, sink.Len())
	assert.Equal(t, []byte{XON}, drainInbox(peer), "stopping releases the paused peer")
}

func TestFatalSinkErrorStops(t *testing.T) {
	src := testutil.NewSource(payload(10))
	sink := testutil.NewSink()
	sink.Fail(unix.EPIPE)
	p := newTestPump(t, src, sink, nil)

	err := p.Tick()
	require.Error(t, err)
	var ioErr *ring.IOError
	assert.ErrorAs(t, err, &ioErr)
	assert.ErrorIs(t, err, unix.EPIPE)
	assert.Equal(t, StateStopped, p.State())

	assert.NoError(t, p.Tick(), "a stopped pump does nothing")
}

func TestFatalSourceErrorStops(t *testing.T) {
	src := testutil.NewSource(nil)
	src.Fail(unix.EBADF)
	p := newTestPump(t, src, testutil.NewSink(), nil)

	err := p.Tick()
	assert.ErrorIs(t, err, unix.EBADF)
	assert.Equal(t, StateStopped, p.State())
}

func TestInterruptedReadIsRetried(t *testing.T) {
	src := testutil.NewSource(payload(10))
	src.Fail(unix.EINTR)
	sink := testutil.NewSink()
	p := newTestPump(t, src, sink, nil)

	require.NoError(t, p.Tick())
	assert.Equal(t, StateRunning, p.State())

	src.Fail(nil)
	require.NoError(t, p.Tick())
	assert.Equal(t, 10, sink.Len())
}

func TestLineQueryFailureKeepsLastConfig(t *testing.T) {
	line := new(testutil.MockLineSource)
	line.On("LineConfig").Return(pacing.LineConfig{Speed: 9600, CharSize: 8}, nil).Once()
	line.On("LineConfig").Return(pacing.LineConfig{}, errors.New("device gone"))

	core, logs := observer.New(zap.WarnLevel)
	src := testutil.NewSource(payload(1000))
	sink := testutil.NewSink()
	p := New(Config{
		Name:           "mock",
		Source:         src,
		Sink:           sink,
		Line:           line,
		TicksPerSecond: 25,
		Logger:         zap.New(core),
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Tick())
	}
	assert.Equal(t, 192, sink.Len())
	line.AssertNumberOfCalls(t, "LineConfig", 5)
	line.AssertExpectations(t)

	warnings := logs.FilterMessageSnippet("line configuration query failed").All()
	require.Len(t, warnings, 1, "repeated failures are throttled")
	assert.Equal(t, "mock", warnings[0].LoggerName)
	assert.Equal(t, "9600 8N1", warnings[0].ContextMap()["line"])

	stats := p.Stats()
	assert.Equal(t, uint64(192), stats.Num)
	assert.Equal(t, uint64(5), stats.Den)
}

func TestLineChangeIsPickedUpBetweenTicks(t *testing.T) {
	line := new(testutil.MockLineSource)
	line.On("LineConfig").Return(pacing.LineConfig{Speed: 9600, CharSize: 8}, nil).Times(5)
	line.On("LineConfig").Return(pacing.LineConfig{Speed: 1200, CharSize: 8}, nil)

	src := testutil.NewSource(payload(1000))
	sink := testutil.NewSink()
	p := New(Config{Name: "change", Source: src, Sink: sink, Line: line, TicksPerSecond: 25})

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Tick())
	}
	// 192 at 9600 8N1, then 4.8 per tick at 1200 8N1 starting from acc = den/2.
	assert.Equal(t, 192+24, sink.Len())
	line.AssertExpectations(t)
	line.AssertCalled(t, "LineConfig")
}

// fakeClock fires every timer immediately and reports a time slightly
// past the requested deadline, as a busy system would.
type fakeClock struct {
	mu        sync.Mutex
	now       time.Time
	late      time.Duration
	deadlines []time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Until(deadline time.Time) (<-chan time.Time, func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadlines = append(c.deadlines, deadline)
	if deadline.After(c.now) {
		c.now = deadline
	}
	c.now = c.now.Add(c.late)
	ch := make(chan time.Time, 1)
	ch <- deadline
	return ch, func() bool { return false }
}

func TestRunUsesAbsoluteDeadlines(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start, late: 7 * time.Millisecond}
	tick := 40 * time.Millisecond

	src := testutil.NewSource(payload(1000))
	src.Close()
	p := newTestPump(t, src, testutil.NewSink(), nil)

	require.NoError(t, p.Run(testContext(t), clock, start.Add(tick), tick, time.Second))
	require.NotEmpty(t, clock.deadlines)

	for i, d := range clock.deadlines {
		assert.Equal(t, start.Add(time.Duration(i+1)*tick), d, "deadline %d does not drift", i)
	}
}

func TestRunReanchorsWhenFarBehind(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start, late: 5 * time.Second}
	tick := 40 * time.Millisecond

	src := testutil.NewSource(payload(100))
	src.Close()
	p := newTestPump(t, src, testutil.NewSink(), nil)

	require.NoError(t, p.Run(testContext(t), clock, start.Add(tick), tick, time.Second))
	require.GreaterOrEqual(t, len(clock.deadlines), 2)
	assert.Equal(t, start.Add(tick).Add(5*time.Second), clock.deadlines[1])
}

func TestRunReturnsDirectionError(t *testing.T) {
	sink := testutil.NewSink()
	sink.Fail(unix.EIO)
	src := testutil.NewSource(payload(10))
	p := newTestPump(t, src, sink, nil)

	clock := &fakeClock{now: time.Now()}
	err := p.Run(testContext(t), clock, clock.now, time.Millisecond, 0)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "test", perr.Direction)
	assert.ErrorIs(t, err, unix.EIO)
	assert.Contains(t, err.Error(), "test: ")
}

func TestSinkOrderingIsFIFO(t *testing.T) {
	input := payload(3000)
	src := testutil.NewSource(nil)
	src.SetChunk(17)
	sink := testutil.NewSink()
	sink.SetLimit(11)
	p := newTestPump(t, src, sink, nil)

	fed := 0
	for i := 0; i < 1000 && sink.Len() < len(input); i++ {
		if fed < len(input) {
			n := min(len(input)-fed, 97)
			src.Feed(input[fed : fed+n])
			fed += n
		}
		require.NoError(t, p.Tick())
	}

	assert.True(t, bytes.Equal(input, sink.Bytes()))
}
