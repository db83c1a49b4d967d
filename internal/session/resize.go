package session

import (
	"context"
	"os"
	"os/signal"

	"github.com/creack/pty"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// WatchResize copies the window size of from to the pty on every SIGWINCH
// until ctx is done or stop is called. The first failure is logged and
// ends propagation.
func (s *Session) WatchResize(ctx context.Context, from *os.File) (stop func()) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, unix.SIGWINCH)
	return s.watch(ctx, sig, from, func() { signal.Stop(sig) })
}

func (s *Session) watch(ctx context.Context, sig <-chan os.Signal, from *os.File, release func()) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer release()
		s.propagateResize(ctx, sig, from)
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *Session) propagateResize(ctx context.Context, sig <-chan os.Signal, from *os.File) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
		}

		if err := pty.InheritSize(from, s.ptmx); err != nil {
			s.log.Warn("cannot propagate window size, disabling", zap.Error(err))
			return
		}
		if ws, err := pty.GetsizeFull(s.ptmx); err == nil {
			s.log.Debug("window size changed", zap.Uint16("rows", ws.Rows), zap.Uint16("cols", ws.Cols))
		}
	}
}
