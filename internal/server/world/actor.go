package world

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned for messages sent to a stopped actor.
var ErrClosed = errors.New("actor closed")

// Actor runs closures one at a time, in the order they were sent. The
// mailbox is unbounded so actors can message each other without
// deadlocking on a full queue.
type Actor struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func NewActor() *Actor {
	return &Actor{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Send enqueues fn. It reports false once the actor is stopped.
func (a *Actor) Send(fn func()) bool {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return false
	}
	a.queue = append(a.queue, fn)
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the actor and waits for it to finish.
func (a *Actor) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !a.Send(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Stop refuses further messages. Run returns once the queue is drained.
func (a *Actor) Stop() {
	a.mu.Lock()
	a.stopped = true
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Done is closed when Run returns.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}

// Run processes the mailbox until Stop drains it or ctx is cancelled.
func (a *Actor) Run(ctx context.Context) {
	defer close(a.done)
	for {
		a.mu.Lock()
		if len(a.queue) == 0 {
			stopped := a.stopped
			a.mu.Unlock()
			if stopped {
				return
			}
			select {
			case <-a.wake:
				continue
			case <-ctx.Done():
				a.Stop()
				return
			}
		}
		fn := a.queue[0]
		a.queue[0] = nil
		a.queue = a.queue[1:]
		a.mu.Unlock()

		fn()
	}
}
