package orchestration

import (
	"context"
	"sync"
)

// eventLoop runs posted handlers one at a time, in posting order, on the
// goroutine that calls run. Posting never blocks.
type eventLoop struct {
	mu      sync.Mutex
	pending []func()
	closed  bool

	wake chan struct{}
	done chan struct{}
}

func newEventLoop() *eventLoop {
	return &eventLoop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// post queues handler and reports whether it was accepted. Handlers posted
// after close are dropped.
func (l *eventLoop) post(handler func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.pending = append(l.pending, handler)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

func (l *eventLoop) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.done)
}

// run drains handlers until ctx is done or the loop is closed. A handler that
// panics is logged and the loop carries on with the next one.
func (l *eventLoop) run(ctx context.Context) error {
	for {
		for {
			handler, ok := l.next()
			if !ok {
				break
			}
			if err := panicSafeNamedWorker("event handler", func(context.Context) error {
				handler()
				return nil
			})(ctx); err != nil {
				logger.Error("event handler failed", "error", err)
				metricHandlerPanics.Inc()
			}
		}

		select {
		case <-ctx.Done():
			l.close()
			return ctx.Err()
		case <-l.done:
			return nil
		case <-l.wake:
		}
	}
}

func (l *eventLoop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || len(l.pending) == 0 {
		return nil, false
	}
	handler := l.pending[0]
	l.pending[0] = nil
	l.pending = l.pending[1:]
	return handler, true
}
