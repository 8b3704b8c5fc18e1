package core

import (
	"sync"
	"sync/atomic"
)

// DefaultSubscriberBuffer is the per-subscriber event backlog capacity.
const DefaultSubscriberBuffer = 64

// EmitterOptions configures an Emitter.
type EmitterOptions struct {
	// SubscriberBuffer sets the bounded backlog per subscriber. When a slow
	// subscriber's backlog is full the oldest entry is dropped and counted;
	// the producer never blocks.
	SubscriberBuffer int
}

// Emitter is an ordered, in-process broadcast mechanism for build progress
// events. Emit is non-blocking from the producer's perspective and delivers
// to all current subscribers in emission order. Each subscriber owns an
// independent bounded buffer; there is no replay of events emitted before
// subscription.
type Emitter struct {
	mu      sync.Mutex
	subs    []*Subscription
	closed  bool
	bufSize int
}

// NewEmitter creates an Emitter with optional overrides.
func NewEmitter(optFns ...func(o *EmitterOptions)) *Emitter {
	opts := EmitterOptions{SubscriberBuffer: DefaultSubscriberBuffer}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SubscriberBuffer < 1 {
		opts.SubscriberBuffer = 1
	}
	return &Emitter{bufSize: opts.SubscriberBuffer}
}

// Subscription is a per-subscriber ordered event stream starting from the
// point of subscription.
type Subscription struct {
	ch      chan Event
	dropped atomic.Int64
	once    sync.Once
	emitter *Emitter
}

// Events returns the subscriber's ordered event stream. The channel is
// closed when the emitter closes or the subscriber unsubscribes.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Dropped returns the number of events discarded because the subscriber's
// backlog overflowed.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Unsubscribe detaches the subscriber and closes its stream. Safe to call
// multiple times.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.emitter.remove(s)
		close(s.ch)
	})
}

// Subscribe registers a new subscriber. Subscribing on a closed emitter
// returns an already-closed stream.
func (e *Emitter) Subscribe() *Subscription {
	sub := &Subscription{ch: make(chan Event, e.bufSize), emitter: e}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		close(sub.ch)
		sub.once.Do(func() {})
		return sub
	}
	e.subs = append(e.subs, sub)
	return sub
}

// Emit broadcasts the event to all current subscribers without blocking.
// When a subscriber's buffer is full its oldest pending event is dropped and
// the subscriber's dropped counter is incremented.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	for _, sub := range e.subs {
		select {
		case sub.ch <- ev:
		default:
			// Backlog full: drop the oldest entry to make room. The inner
			// default covers the race where the subscriber drained the
			// channel between the two selects.
			select {
			case <-sub.ch:
				sub.dropped.Add(1)
			default:
			}
			select {
			case sub.ch <- ev:
			default:
				sub.dropped.Add(1)
			}
		}
	}
}

// Close ends all subscriber streams. Subsequent Emit calls are no-ops.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for _, sub := range e.subs {
		sub.once.Do(func() { close(sub.ch) })
	}
	e.subs = nil
}

func (e *Emitter) remove(sub *Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.subs {
		if s == sub {
			e.subs = append(e.subs[:i], e.subs[i+1:]...)
			return
		}
	}
}
