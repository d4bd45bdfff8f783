// Package pubsub implements the broker described in spec.md §4.6: a
// topic-trie routing index with wildcard subscriptions, per-subscriber
// bounded fan-out queues, and an at-most-once in-memory delivery contract.
// Grounded on the teacher's per-client bounded-queue + single-writer-drain
// discipline (room.go) and internal/core/channel_state.go's buffered
// per-user channel pattern.
package pubsub

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// OverflowPolicy controls what happens when a subscriber's outbound queue
// is full at publish time.
type OverflowPolicy int

const (
	// DropOldest discards the oldest queued message to make room (default).
	DropOldest OverflowPolicy = iota
	// Disconnect destroys the subscriber on overflow.
	Disconnect
)

// DefaultQueueSize is the default bound on a subscriber's outbound queue.
const DefaultQueueSize = 1024

// BrokerMessage is an immutable published message, delivered to every
// subscriber whose pattern matches Topic.
type BrokerMessage struct {
	Topic       string
	Payload     []byte
	Metadata    map[string]any
	PublisherID string
	Seq         uint64
}

// Persistence is the optional record/replay extension point named in
// spec.md §4.6. The zero value (no adapter configured) is a no-op,
// preserving the core's at-most-once in-memory contract.
type Persistence interface {
	Record(msg BrokerMessage)
	Replay(pattern string, since uint64) ([]BrokerMessage, error)
}

// Config configures a Broker. Zero values fall back to the documented
// defaults.
type Config struct {
	QueueSize        int
	Overflow         OverflowPolicy
	Persistence      Persistence
	PublishLimiter   *rate.Limiter // nil = unlimited
	SubscribeLimiter *rate.Limiter
}

// Broker routes published messages to matching subscribers.
type Broker struct {
	cfg Config

	mu   sync.RWMutex // guards trie; publish takes RLock, subscribe/unsubscribe take Lock
	root *trieNode

	subMu sync.Mutex
	subs  map[*Subscriber]struct{}

	nextSeq atomic.Uint64

	dropCount atomic.Uint64
}

// New constructs a Broker.
func New(cfg Config) *Broker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Broker{cfg: cfg, root: newTrieNode(), subs: make(map[*Subscriber]struct{})}
}

// Subscribe registers sub for pattern. Takes the trie write lock.
func (b *Broker) Subscribe(sub *Subscriber, pattern string) {
	if b.cfg.SubscribeLimiter != nil {
		_ = b.cfg.SubscribeLimiter.Wait(context.Background())
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	sub.addPattern(pattern)
	b.root.insert(splitTopic(pattern), sub)

	b.subMu.Lock()
	b.subs[sub] = struct{}{}
	b.subMu.Unlock()
}

// Unsubscribe removes sub's registration for pattern.
func (b *Broker) Unsubscribe(sub *Subscriber, pattern string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub.removePattern(pattern)
	b.root.remove(splitTopic(pattern), sub)
}

// Publish routes msg to every subscriber whose pattern matches msg.Topic,
// enqueuing onto each match's fan-out queue under the broker's overflow
// policy. Takes the trie read lock only; per-subscriber queue mutation is
// independently synchronized so one slow subscriber never blocks
// publication to the others (spec.md §8 property 5).
func (b *Broker) Publish(msg BrokerMessage) {
	if b.cfg.PublishLimiter != nil {
		_ = b.cfg.PublishLimiter.Wait(context.Background())
	}
	msg.Seq = b.nextSeq.Add(1)

	matched := make(map[*Subscriber]struct{})
	b.mu.RLock()
	b.root.match(splitTopic(msg.Topic), matched)
	b.mu.RUnlock()

	if b.cfg.Persistence != nil {
		b.cfg.Persistence.Record(msg)
	}

	for sub := range matched {
		if dropped := sub.enqueue(msg, b.cfg.Overflow); dropped {
			b.dropCount.Add(1)
			if b.cfg.Overflow == Disconnect {
				b.removeSubscriberLocked(sub)
			}
		}
	}
}

// removeSubscriberLocked destroys sub and removes all of its patterns from
// the trie. Used on Disconnect-overflow and on connection close.
func (b *Broker) removeSubscriberLocked(sub *Subscriber) {
	b.mu.Lock()
	for _, pattern := range sub.patternList() {
		b.root.remove(splitTopic(pattern), sub)
	}
	b.mu.Unlock()

	b.subMu.Lock()
	delete(b.subs, sub)
	b.subMu.Unlock()

	sub.destroy()
}

// RemoveSubscriber is the public entry point for connection-close cleanup.
func (b *Broker) RemoveSubscriber(sub *Subscriber) {
	b.removeSubscriberLocked(sub)
}

// DropCount reports the cumulative number of messages dropped to overflow,
// for metrics.
func (b *Broker) DropCount() uint64 { return b.dropCount.Load() }

// SubscriberCount reports the number of subscribers that have ever
// subscribed to at least one pattern and have not since been removed, for
// adminhttp's /api/topics.
func (b *Broker) SubscriberCount() int {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	return len(b.subs)
}

// TopicCount reports the number of distinct subscription patterns
// currently registered across all subscribers.
func (b *Broker) TopicCount() int {
	b.subMu.Lock()
	subs := make([]*Subscriber, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.subMu.Unlock()

	patterns := make(map[string]struct{})
	for _, s := range subs {
		for _, p := range s.patternList() {
			patterns[p] = struct{}{}
		}
	}
	return len(patterns)
}
