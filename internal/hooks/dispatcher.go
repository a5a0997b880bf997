package hooks

import (
	"context"
	"sync"
)

type item struct {
	payload Payload
	barrier chan struct{}
}

// Dispatcher delivers payloads to a Manager from a single goroutine in the
// order they were posted, so handlers never run concurrently with each other.
// Post never blocks; the queue is unbounded.
type Dispatcher struct {
	mgr *Manager

	mu     sync.Mutex
	queue  []item
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// NewDispatcher starts a dispatcher feeding mgr.
func NewDispatcher(mgr *Manager) *Dispatcher {
	d := &Dispatcher{
		mgr:  mgr,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go d.loop()
	return d
}

// Post enqueues p for delivery. It reports false once the dispatcher is closed.
func (d *Dispatcher) Post(p Payload) bool {
	return d.enqueue(item{payload: p})
}

func (d *Dispatcher) enqueue(it item) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, it)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

// Drain waits until everything posted before the call has been delivered.
func (d *Dispatcher) Drain(ctx context.Context) error {
	barrier := make(chan struct{})
	if !d.enqueue(item{barrier: barrier}) {
		return d.wait(ctx)
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting payloads, delivers what is queued and waits for the
// delivery goroutine to exit or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return d.wait(ctx)
}

func (d *Dispatcher) wait(ctx context.Context) error {
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.mu.Unlock()
			<-d.wake
			d.mu.Lock()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		it := d.queue[0]
		d.queue[0] = item{}
		d.queue = d.queue[1:]
		d.mu.Unlock()

		if it.barrier != nil {
			close(it.barrier)
			continue
		}
		d.mgr.Emit(context.Background(), it.payload)
	}
}
