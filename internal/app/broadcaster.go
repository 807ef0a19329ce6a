package app

import (
	"errors"
	"io"
	"sync"

	"team-quiz-service/internal/domain"
	"team-quiz-service/internal/metrics"

	"github.com/sirupsen/logrus"
)

// ErrSinkClosed is returned by a sink that can no longer accept events.
var ErrSinkClosed = errors.New("sink closed")

// ErrSinkFull is returned by a buffered sink whose reader has fallen behind.
var ErrSinkFull = errors.New("sink buffer full")

// Sink receives broadcast events for one live client. Deliver must not block.
type Sink interface {
	Deliver(ev domain.Event) error
}

// Handle identifies a registered sink.
type Handle uint64

// Broadcaster fans events out to every registered sink. Delivery is best effort:
// a sink that fails is removed and the broadcast carries on with the others.
type Broadcaster struct {
	mu    sync.RWMutex
	next  Handle
	sinks map[Handle]Sink

	// sendMu keeps each sink's delivery order equal to Broadcast call order.
	sendMu sync.Mutex

	log     *logrus.Logger
	metrics *metrics.Metrics
}

func NewBroadcaster(log *logrus.Logger, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{
		sinks:   make(map[Handle]Sink),
		log:     log,
		metrics: m,
	}
}

// Register adds a sink and returns its handle.
func (b *Broadcaster) Register(s Sink) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	h := b.next
	b.sinks[h] = s
	b.metrics.SetLiveClients(len(b.sinks))
	return h
}

// Unregister removes a sink. It reports whether the handle was still registered.
func (b *Broadcaster) Unregister(h Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sinks[h]; !ok {
		return false
	}
	delete(b.sinks, h)
	b.metrics.SetLiveClients(len(b.sinks))
	return true
}

// Len returns the number of registered sinks.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sinks)
}

// Broadcast delivers ev to every sink registered at call time and returns how many
// accepted it.
func (b *Broadcaster) Broadcast(ev domain.Event) int {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	b.mu.RLock()
	targets := make(map[Handle]Sink, len(b.sinks))
	for h, s := range b.sinks {
		targets[h] = s
	}
	b.mu.RUnlock()

	b.metrics.Broadcast(ev.Msg)

	delivered := 0
	for h, s := range targets {
		if err := s.Deliver(ev); err != nil {
			b.drop(h, s, err)
			continue
		}
		delivered++
	}
	return delivered
}

func (b *Broadcaster) drop(h Handle, s Sink, cause error) {
	if !b.Unregister(h) {
		return
	}
	b.metrics.ClientDropped()
	if b.log != nil {
		b.log.WithFields(logrus.Fields{"handle": h, "error": cause.Error()}).Debug("dropping live client")
	}
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
}

// Subscribe registers an in-process channel sink with the given buffer size.
// The returned cancel function unregisters it and closes the channel.
func (b *Broadcaster) Subscribe(buffer int) (<-chan domain.Event, func()) {
	sink := NewChanSink(buffer)
	h := b.Register(sink)
	cancel := func() {
		b.Unregister(h)
		_ = sink.Close()
	}
	return sink.C(), cancel
}

// ChanSink is a Sink backed by a buffered channel.
type ChanSink struct {
	mu     sync.Mutex
	ch     chan domain.Event
	closed bool
}

func NewChanSink(buffer int) *ChanSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChanSink{ch: make(chan domain.Event, buffer)}
}

// C returns the receive side of the sink.
func (s *ChanSink) C() <-chan domain.Event {
	return s.ch
}

func (s *ChanSink) Deliver(ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.ch <- ev:
		return nil
	default:
		return ErrSinkFull
	}
}

// Close closes the channel. It is safe to call more than once.
func (s *ChanSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}
