// Package notify is the process-wide publish/subscribe stream of trade
// confirmations. Subscriptions are explicit handles with deterministic teardown.
package notify

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"market-chart-lab/internal/observability"
)

// DefaultBuffer is the subscription buffer used when Subscribe is given a non-positive size.
const DefaultBuffer = 256

// Publisher publishes notifications.
type Publisher interface {
	Publish(msg Message) int
}

// BusOptions configures the bus.
type BusOptions struct {
	Logger *zerolog.Logger
}

// Bus fans messages out to subscriptions without blocking publishers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	logger zerolog.Logger
}

// Compile-time interface check.
var _ Publisher = (*Bus)(nil)

// NewBus creates an empty bus.
func NewBus(opts *BusOptions) *Bus {
	logger := log.Logger
	if opts != nil && opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Bus{
		subs:   make(map[uint64]*Subscription),
		logger: logger.With().Str("component", "bus").Logger(),
	}
}

// Publish delivers msg to every subscription and returns the number of
// deliveries. A subscription whose buffer is full misses the message.
func (b *Bus) Publish(msg Message) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered, dropped := 0, 0
	for id, sub := range b.subs {
		select {
		case sub.ch <- msg:
			delivered++
		default:
			dropped++
			b.logger.Warn().
				Uint64("subscription", id).
				Str("market", msg.MarketID).
				Str("provenance", msg.Provenance).
				Msg("subscriber buffer full, message dropped")
		}
	}
	observability.RecordBusPublish(dropped)
	return delivered
}

// Subscribe registers a new subscription with the given buffer size.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		bus: b,
		id:  b.nextID,
		ch:  make(chan Message, buffer),
	}
	b.subs[sub.id] = sub
	return sub
}

// Subscribers returns the number of open subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.id]; ok {
		delete(b.subs, sub.id)
		close(sub.ch)
	}
}

// Subscription is a handle on the bus. Close detaches it and closes C.
type Subscription struct {
	bus  *Bus
	id   uint64
	ch   chan Message
	once sync.Once
}

// C returns the delivery channel. It is closed by Close.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// ID returns the subscription's bus-local identifier.
func (s *Subscription) ID() uint64 {
	return s.id
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.remove(s)
	})
}
