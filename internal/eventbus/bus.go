// Package eventbus delivers stream state transitions to slow subscribers
// (ledger writes, cache invalidation) off the controller's goroutine.
package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huestream/internal/stream"
)

// DefaultQueueSize bounds transitions waiting for delivery.
const DefaultQueueSize = 64

// Handler receives one transition.
type Handler func(stream.StateChange)

// Bus fans transitions out to subscribers on a single worker, so every
// subscriber observes them in publish order.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	closed   bool

	queue chan stream.StateChange
	done  chan struct{}
}

// New creates a bus with the default queue size.
func New() *Bus {
	return NewWithQueueSize(DefaultQueueSize)
}

// NewWithQueueSize creates a bus and starts its worker.
func NewWithQueueSize(size int) *Bus {
	b := &Bus{
		queue: make(chan stream.StateChange, size),
		done:  make(chan struct{}),
	}
	go b.worker()
	return b
}

func (b *Bus) worker() {
	defer close(b.done)

	for change := range b.queue {
		b.mu.RLock()
		handlers := b.handlers
		b.mu.RUnlock()

		for _, h := range handlers {
			b.deliver(h, change)
		}
	}
}

func (b *Bus) deliver(h Handler, change stream.StateChange) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("session", change.SessionID).
				Str("to", change.To.String()).
				Msg("State change handler panicked")
		}
	}()
	h(change)
}

// Subscribe registers a handler for every later transition.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = append(b.handlers, h)
}

// Publish queues a transition. It never blocks: when the queue is full or the
// bus is closed the transition is dropped with a warning.
func (b *Bus) Publish(change stream.StateChange) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		log.Warn().Str("to", change.To.String()).Msg("Event bus closed, dropping state change")
		return
	}

	select {
	case b.queue <- change:
	default:
		log.Warn().
			Str("session", change.SessionID).
			Str("to", change.To.String()).
			Msg("Event bus queue full, dropping state change")
	}
}

// Close stops accepting transitions and waits for queued ones to be delivered,
// bounded by ctx.
func (b *Bus) Close(ctx context.Context) {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()

	select {
	case <-b.done:
		log.Debug().Msg("Event bus drained")
	case <-ctx.Done():
		log.Warn().Msg("Event bus shutdown timed out, some state changes may be lost")
	}
}
