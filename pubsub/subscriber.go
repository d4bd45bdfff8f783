package pubsub

import (
	"log"
	"sync"
	"time"
)

// Subscriber is a connected pub/sub client: an id, its set of subscription
// patterns, and a bounded outbound queue drained by a single writer
// activation (spec.md §3, §4.6). The Broker tracks every subscribed
// Subscriber; the wire connection handler that created one holds the
// same *Subscriber pointer and passes it to Broker calls.
type Subscriber struct {
	ID string

	mu       sync.Mutex
	patterns map[string]struct{}

	queueMu      sync.Mutex
	queue        []BrokerMessage
	queueMax     int
	notify       chan struct{}
	destroyed    bool
	lastActivity time.Time
}

// NewSubscriber constructs a Subscriber with the given outbound queue
// bound.
func NewSubscriber(id string, queueSize int) *Subscriber {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Subscriber{
		ID:           id,
		patterns:     make(map[string]struct{}),
		queueMax:     queueSize,
		notify:       make(chan struct{}, 1),
		lastActivity: time.Now(),
	}
}

func (s *Subscriber) addPattern(pattern string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[pattern] = struct{}{}
}

func (s *Subscriber) removePattern(pattern string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.patterns, pattern)
}

func (s *Subscriber) patternList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.patterns))
	for p := range s.patterns {
		out = append(out, p)
	}
	return out
}

// enqueue appends msg to the subscriber's queue under policy, returning
// true if the message (or an older one, under DropOldest) was dropped.
func (s *Subscriber) enqueue(msg BrokerMessage, policy OverflowPolicy) (dropped bool) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if s.destroyed {
		return true
	}
	s.lastActivity = time.Now()
	if len(s.queue) >= s.queueMax {
		switch policy {
		case Disconnect:
			log.Printf("[pubsub] subscriber %s overflowed queue (%d), disconnecting", s.ID, s.queueMax)
			return true
		default: // DropOldest
			log.Printf("[pubsub] subscriber %s overflowed queue (%d), dropping oldest", s.ID, s.queueMax)
			s.queue = append(s.queue[1:], msg)
			s.signal()
			return true
		}
	}
	s.queue = append(s.queue, msg)
	s.signal()
	return false
}

func (s *Subscriber) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a message is available or destroy is called, returning
// ok=false in the latter case. Intended to be called from the subscriber's
// single writer activation.
func (s *Subscriber) Next() (BrokerMessage, bool) {
	for {
		s.queueMu.Lock()
		if len(s.queue) > 0 {
			msg := s.queue[0]
			s.queue = s.queue[1:]
			s.queueMu.Unlock()
			return msg, true
		}
		if s.destroyed {
			s.queueMu.Unlock()
			return BrokerMessage{}, false
		}
		s.queueMu.Unlock()
		<-s.notify
	}
}

func (s *Subscriber) destroy() {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.signal()
}

// Destroyed reports whether the subscriber has been torn down.
func (s *Subscriber) Destroyed() bool {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return s.destroyed
}
