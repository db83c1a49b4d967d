package pump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Direction names.
const (
	DirectionReader = "reader"
	DirectionWriter = "writer"
)

// DefaultMaxLag bounds how far a pump replays missed ticks before
// re-anchoring its schedule.
const DefaultMaxLag = time.Second

// Direction is one side of the relay.
type Direction struct {
	Source io.Reader
	Sink   io.Writer
	Line   LineSource
}

// Options configures a relay.
type Options struct {
	// Reader carries the user's input to the child.
	Reader Direction
	// Writer carries the child's output to the user.
	Writer Direction

	Tick           time.Duration
	TicksPerSecond int // derived from Tick when zero
	BufferSize     int
	DrainTicks     int
	MaxLag         time.Duration

	Clock    Clock
	Logger   *zap.Logger
	Recorder Recorder
}

// Result is the outcome of a relay.
type Result struct {
	// Direction names the failed direction, empty on success.
	Direction string
	Err       error
}

// OK reports whether both directions finished without a fatal error.
func (r Result) OK() bool {
	return r.Err == nil
}

// Handle controls a running relay.
type Handle struct {
	reader *Pump
	writer *Pump
	done   chan struct{}
	result Result
}

// Start runs both pumps until they stop, ctx is done or the handle is
// told to stop. A fatal error in either direction stops the other.
func Start(ctx context.Context, opts Options) (*Handle, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.defaults()

	readerInbox, writerInbox := NewInbox(), NewInbox()
	newPump := func(name string, d Direction, own, peer *Inbox) *Pump {
		return New(Config{
			Name:           name,
			Source:         d.Source,
			Sink:           d.Sink,
			Line:           d.Line,
			TicksPerSecond: opts.TicksPerSecond,
			BufferSize:     opts.BufferSize,
			DrainTicks:     opts.DrainTicks,
			Inbox:          own,
			Peer:           peer,
			Logger:         opts.Logger,
			Recorder:       opts.Recorder,
		})
	}

	h := &Handle{
		reader: newPump(DirectionReader, opts.Reader, readerInbox, writerInbox),
		writer: newPump(DirectionWriter, opts.Writer, writerInbox, readerInbox),
		done:   make(chan struct{}),
	}

	now := opts.Clock.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.reader.Run(gctx, opts.Clock, now.Add(opts.Tick), opts.Tick, opts.MaxLag)
	})
	g.Go(func() error {
		// Half a tick out of phase with the reader.
		return h.writer.Run(gctx, opts.Clock, now.Add(opts.Tick+opts.Tick/2), opts.Tick, opts.MaxLag)
	})

	opts.Logger.Debug("relay started",
		zap.Duration("tick", opts.Tick),
		zap.Int("ticks_per_second", opts.TicksPerSecond),
		zap.Int("buffer_size", opts.BufferSize))

	go func() {
		defer close(h.done)
		err := g.Wait()
		if err == nil {
			opts.Logger.Debug("relay finished")
			return
		}
		h.result.Err = err
		var perr *Error
		if errors.As(err, &perr) {
			h.result.Direction = perr.Direction
		}
		opts.Logger.Error("relay failed", zap.String("direction", h.result.Direction), zap.Error(err))
	}()

	return h, nil
}

// Control requests lifecycle changes of one direction. It is safe to use
// from any goroutine.
type Control interface {
	Name() string
	RequestDrain()
	RequestFinish()
	Stop()
	Stats() Stats
}

// Reader controls the direction carrying input to the child.
func (h *Handle) Reader() Control {
	return h.reader
}

// Writer controls the direction carrying output to the user.
func (h *Handle) Writer() Control {
	return h.writer
}

// Drain flushes and stops both directions: the reader stops taking input
// and empties its buffer, the writer keeps forwarding output until its
// source runs dry.
func (h *Handle) Drain() {
	h.Reader().RequestDrain()
	h.Writer().RequestFinish()
}

// Stop stops both directions at once, abandoning buffered bytes.
func (h *Handle) Stop() {
	h.Reader().Stop()
	h.Writer().Stop()
}

// Done is closed once both directions have stopped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until both directions have stopped and returns the outcome.
func (h *Handle) Wait() Result {
	<-h.done
	return h.result
}

// Snapshot returns the stats of the reader and the writer, in that order.
func (h *Handle) Snapshot() []Stats {
	return []Stats{h.reader.Stats(), h.writer.Stats()}
}

var _ Control = (*Pump)(nil)

func (o *Options) validate() error {
	for _, d := range []struct {
		name string
		dir  Direction
	}{{DirectionReader, o.Reader}, {DirectionWriter, o.Writer}} {
		if d.dir.Source == nil {
			return fmt.Errorf("%s: %w", d.name, ErrNoSource)
		}
		if d.dir.Sink == nil {
			return fmt.Errorf("%s: %w", d.name, ErrNoSink)
		}
	}
	if o.Tick <= 0 {
		return ErrBadTick
	}
	return nil
}

func (o *Options) defaults() {
	if o.TicksPerSecond <= 0 {
		o.TicksPerSecond = int(time.Second / o.Tick)
		if o.TicksPerSecond == 0 {
			o.TicksPerSecond = 1
		}
	}
	if o.DrainTicks <= 0 {
		o.DrainTicks = DefaultDrainTicks
	}
	if o.MaxLag == 0 {
		o.MaxLag = DefaultMaxLag
	}
	if o.Clock == nil {
		o.Clock = SystemClock{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
}
