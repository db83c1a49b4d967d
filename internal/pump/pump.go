package pump

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/slowtty/internal/pacing"
	"github.com/GriffinCanCode/slowtty/internal/ring"
)

// DefaultDrainTicks is the number of consecutive empty ticks a draining
// pump waits before it stops.
const DefaultDrainTicks = 6

// LineSource reports the current line configuration of a terminal device.
type LineSource interface {
	LineConfig() (pacing.LineConfig, error)
}

// Recorder receives pump activity for metrics.
type Recorder interface {
	ObserveTick(direction string, quota, buffered int)
	AddBytes(direction string, in, out int)
	FlowSignal(direction string, b byte)
	SetState(direction string, state State)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTick(string, int, int) {}
func (nopRecorder) AddBytes(string, int, int)    {}
func (nopRecorder) FlowSignal(string, byte)      {}
func (nopRecorder) SetState(string, State)       {}

// Config configures one pump.
type Config struct {
	Name           string
	Source         io.Reader
	Sink           io.Writer
	Line           LineSource
	TicksPerSecond int
	BufferSize     int
	DrainTicks     int

	// Inbox receives flow-control requests addressed to this pump.
	Inbox *Inbox
	// Peer is the opposite pump's inbox. Nil disables flow control.
	Peer Peer

	Logger   *zap.Logger
	Recorder Recorder
}

// Stats is a point-in-time view of a pump.
type Stats struct {
	Name         string `json:"name"`
	State        string `json:"state"`
	Line         string `json:"line"`
	Ticks        uint64 `json:"ticks"`
	BytesIn      uint64 `json:"bytes_in"`
	BytesOut     uint64 `json:"bytes_out"`
	ControlBytes uint64 `json:"control_bytes"`
	Buffered     int    `json:"buffered"`
	Capacity     int    `json:"capacity"`
	Quota        int    `json:"quota"`
	Num          uint64 `json:"num"`
	Den          uint64 `json:"den"`
	PeerStopped  bool   `json:"peer_stopped"`
}

// Pump relays bytes from Source to Sink at the line's character rate.
// Tick and Run must be called from a single goroutine; the request methods
// and Stats are safe to call from any goroutine.
type Pump struct {
	name  string
	src   io.Reader
	dst   io.Writer
	line  LineSource
	rate  *pacing.Rate
	buf   *ring.Buffer
	inbox *Inbox
	peer  Peer

	drainTicks int

	state        State
	sourceDone   bool
	finishOnIdle bool
	peerStopped  bool
	sinkPaused   bool // last control byte written to the sink was XOFF
	idle         int
	pending      []byte // control byte awaiting a writable sink
	lastLine     pacing.LineConfig
	haveLine     bool

	req     atomic.Int32
	stopCh  chan struct{}
	stopped sync.Once

	mu    sync.Mutex
	stats Stats

	log      *zap.Logger
	rec      Recorder
	lineWarn rate.Sometimes
	lagWarn  rate.Sometimes
}

// New creates a pump in the Running state
func New(cfg Config) *Pump {
	if cfg.Inbox == nil {
		cfg.Inbox = NewInbox()
	}
	if cfg.DrainTicks <= 0 {
		cfg.DrainTicks = DefaultDrainTicks
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}

	p := &Pump{
		name:       cfg.Name,
		src:        cfg.Source,
		dst:        cfg.Sink,
		line:       cfg.Line,
		rate:       pacing.NewRate(cfg.TicksPerSecond),
		buf:        ring.New(cfg.BufferSize),
		inbox:      cfg.Inbox,
		peer:       cfg.Peer,
		drainTicks: cfg.DrainTicks,
		state:      StateRunning,
		stopCh:     make(chan struct{}),
		log:        cfg.Logger.Named(cfg.Name),
		rec:        cfg.Recorder,
		lineWarn:   rate.Sometimes{First: 1, Interval: 10 * time.Second},
		lagWarn:    rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	p.stats = Stats{Name: p.name, State: p.state.String(), Capacity: p.buf.Cap()}
	p.rec.SetState(p.name, p.state)
	return p
}

// Name returns the direction name
func (p *Pump) Name() string {
	return p.name
}

// Inbox returns the inbox other pumps use to reach this one
func (p *Pump) Inbox() *Inbox {
	return p.inbox
}

// RequestDrain stops refilling; the pump stops once its buffer has stayed
// empty for the configured number of ticks.
func (p *Pump) RequestDrain() {
	p.raise(requestDrain)
}

// RequestFinish keeps the pump refilling but stops it the first time its
// source runs dry with nothing left buffered.
func (p *Pump) RequestFinish() {
	p.raise(requestFinish)
}

// Stop abandons buffered bytes and stops the pump, waking it if it is
// waiting for its next tick.
func (p *Pump) Stop() {
	p.raise(requestStop)
	p.stopped.Do(func() { close(p.stopCh) })
}

// raise records r unless a stronger request is already pending.
func (p *Pump) raise(r request) {
	for {
		cur := p.req.Load()
		if request(cur) >= r {
			return
		}
		if p.req.CompareAndSwap(cur, int32(r)) {
			return
		}
	}
}

// State returns the lifecycle state. It must be called from the pump's
// goroutine; use Stats elsewhere.
func (p *Pump) State() State {
	return p.state
}

// Buffered returns the number of bytes waiting in the ring buffer.
func (p *Pump) Buffered() int {
	return p.buf.Len()
}

// Stats returns a snapshot of the pump's counters.
func (p *Pump) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Tick runs one pacing quantum. It returns a non-nil error only for a
// fatal source or sink failure, after which the pump is Stopped.
func (p *Pump) Tick() error {
	if p.state == StateStopped {
		return nil
	}
	p.applyRequest()
	if p.state == StateStopped {
		p.halt("stop requested")
		return nil
	}

	var in, out int
	p.mu.Lock()
	p.stats.Ticks++
	p.mu.Unlock()
	defer func() { p.publish(in, out) }()

	if err := p.flushControl(); err != nil {
		return p.fail(err)
	}

	quota := p.rate.Quota(p.lineConfig())
	p.rec.ObserveTick(p.name, quota, p.buf.Len())
	p.mu.Lock()
	p.stats.Quota = quota
	p.mu.Unlock()

	tried := false
	if quota > 0 {
		if p.state == StateRunning {
			tried = p.buf.Free() > 0
			n, err := p.buf.Fill(p.src, p.buf.Free())
			in = n
			switch {
			case err == nil:
			case errors.Is(err, io.EOF):
				p.log.Debug("source reached end of stream", zap.Int("buffered", p.buf.Len()))
				p.sourceDone = true
				p.setState(StateDraining)
			case ring.IsTransient(err):
			default:
				return p.fail(err)
			}
		}

		if toWrite := min(p.buf.Len(), quota); toWrite > 0 {
			n, err := p.buf.Drain(p.dst, toWrite)
			out = n
			if err != nil && !ring.IsTransient(err) {
				return p.fail(err)
			}
		}
	}

	p.flowControl(quota)

	if p.buf.Len() > 0 {
		p.idle = 0
		return nil
	}
	switch {
	case p.state == StateDraining && p.sourceDone:
		p.halt("drained after end of stream")
	case p.state == StateDraining:
		p.idle++
		if p.idle >= p.drainTicks {
			p.halt("drained")
		}
	case p.finishOnIdle && tried && in == 0:
		p.halt("source idle")
	}
	return nil
}

// Run ticks the pump on absolute deadlines first, first+tick, first+2*tick
// and so on until it stops, ctx is done or Stop is called. A deadline
// that has fallen more than maxLag behind the clock is re-anchored on the
// current time. A fatal I/O error is returned as *Error.
func (p *Pump) Run(ctx context.Context, clock Clock, first time.Time, tick, maxLag time.Duration) error {
	if clock == nil {
		clock = SystemClock{}
	}
	deadline := first

	for p.state != StateStopped {
		fire, release := clock.Until(deadline)
		select {
		case <-ctx.Done():
			release()
			p.halt("context done")
			return nil
		case <-p.stopCh:
			release()
		case <-fire:
		}

		if err := p.Tick(); err != nil {
			return &Error{Direction: p.name, Err: err}
		}

		deadline = deadline.Add(tick)
		if now := clock.Now(); maxLag > 0 && now.Sub(deadline) > maxLag {
			behind := now.Sub(deadline)
			p.lagWarn.Do(func() {
				p.log.Warn("tick deadline fell behind, re-anchoring", zap.Duration("behind", behind))
			})
			deadline = now
		}
	}
	return nil
}

func (p *Pump) applyRequest() {
	switch request(p.req.Load()) {
	case requestStop:
		p.setState(StateStopped)
	case requestDrain:
		if p.state == StateRunning {
			p.log.Debug("drain requested", zap.Int("buffered", p.buf.Len()))
			p.setState(StateDraining)
		}
	case requestFinish:
		if !p.finishOnIdle {
			p.log.Debug("finish requested", zap.Int("buffered", p.buf.Len()))
			p.finishOnIdle = true
		}
	}
}

// lineConfig queries the line, keeping the last good answer on failure.
func (p *Pump) lineConfig() pacing.LineConfig {
	if p.line == nil {
		return p.lastLine
	}
	cfg, err := p.line.LineConfig()
	if err != nil {
		p.lineWarn.Do(func() {
			p.log.Warn("line configuration query failed, keeping last", zap.Error(err),
				zap.Stringer("line", p.lastLine))
		})
		return p.lastLine
	}
	if !p.haveLine || cfg != p.lastLine {
		p.log.Debug("line configuration", zap.Stringer("line", cfg))
	}
	p.lastLine = cfg
	p.haveLine = true
	return cfg
}

// flushControl writes queued flow-control bytes ahead of regular traffic,
// one single-byte write each.
func (p *Pump) flushControl() error {
	for {
		if len(p.pending) == 0 {
			b, ok := p.inbox.next()
			if !ok {
				return nil
			}
			p.pending = append(p.pending[:0], b)
		}

		n, err := p.dst.Write(p.pending)
		if err != nil {
			err = ring.Classify("control", err)
			if ring.IsTransient(err) {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}

		p.sinkPaused = p.pending[0] == XOFF
		p.rec.FlowSignal(p.name, p.pending[0])
		p.mu.Lock()
		p.stats.ControlBytes++
		p.mu.Unlock()
		p.pending = p.pending[:0]
	}
}

// flowControl asks the peer for XOFF once the backlog reaches two ticks'
// worth and for XON once it is back under one tick's worth.
func (p *Pump) flowControl(quota int) {
	if p.peer == nil {
		return
	}
	window := max(quota, 1)
	size := p.buf.Len()

	switch {
	case !p.peerStopped && size >= 2*window:
		if p.peer.Signal(XOFF) {
			p.peerStopped = true
			p.log.Debug("requested xoff", zap.Int("buffered", size), zap.Int("quota", quota))
		}
	case p.peerStopped && size < window:
		if p.peer.Signal(XON) {
			p.peerStopped = false
			p.log.Debug("requested xon", zap.Int("buffered", size), zap.Int("quota", quota))
		}
	}
}

func (p *Pump) setState(s State) {
	if p.state == s {
		return
	}
	p.state = s
	p.rec.SetState(p.name, s)
	p.mu.Lock()
	p.stats.State = s.String()
	p.mu.Unlock()
}

// halt moves to Stopped, releasing the peer if this pump had paused it
// and its own sink if it last wrote XOFF there. Nobody would deliver the
// matching XON once this pump stops ticking.
func (p *Pump) halt(reason string) {
	if p.peerStopped && p.peer != nil && p.peer.Signal(XON) {
		p.peerStopped = false
	}
	if p.sinkPaused {
		if n, err := p.dst.Write([]byte{XON}); err == nil && n == 1 {
			p.sinkPaused = false
			p.rec.FlowSignal(p.name, XON)
			p.mu.Lock()
			p.stats.ControlBytes++
			p.mu.Unlock()
		}
	}
	if p.state != StateStopped {
		p.log.Debug("stopped", zap.String("reason", reason), zap.Int("abandoned", p.buf.Len()))
	}
	p.setState(StateStopped)
	p.publish(0, 0)
}

func (p *Pump) fail(err error) error {
	p.log.Error("fatal i/o error", zap.Error(err))
	p.halt("fatal error")
	return err
}

func (p *Pump) publish(in, out int) {
	if in > 0 || out > 0 {
		p.rec.AddBytes(p.name, in, out)
	}
	num, den := p.rate.Fraction()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.BytesIn += uint64(in)
	p.stats.BytesOut += uint64(out)
	p.stats.Buffered = p.buf.Len()
	p.stats.Num, p.stats.Den = num, den
	p.stats.PeerStopped = p.peerStopped
	if p.haveLine {
		p.stats.Line = p.lastLine.String()
	}
}
