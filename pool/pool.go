// Package pool implements a bounded pool of reusable dialed connections
// with idle eviction, grounded on the mutex-guarded shared-state style used
// throughout the teacher's Room (one mutex per shared structure, no
// callbacks invoked while holding it) and its circuit-breaker's explicit
// state machine for backpressure.
package pool

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"netkit/transport"
)

// ErrPoolClosed is returned by Acquire once CloseAll has run.
var ErrPoolClosed = errors.New("pool: closed")

// ErrAcquireTimeout is returned when Acquire's timeout elapses before a
// connection becomes available.
var ErrAcquireTimeout = errors.New("pool: acquire timeout")

// DefaultIdleTimeout is how long an unused pooled connection may sit idle
// before the sweeper closes it.
const DefaultIdleTimeout = 30 * time.Second

// Conn is a connection borrowed from the pool. Callers must call Release
// exactly once, passing ok=false if the connection is known to be corrupt
// (e.g. after a framing/protocol error) so it is destroyed rather than
// returned to the idle set.
type Conn struct {
	net.Conn
	entry *entry
	pool  *Pool
}

// Release returns the connection to the pool (ok=true) or destroys it
// (ok=false). Safe to call once; subsequent calls are no-ops.
func (c *Conn) Release(ok bool) {
	c.pool.release(c.entry, ok)
}

type entry struct {
	conn     net.Conn
	idleSince time.Time
	inUse    bool
	elem     *list.Element // position in idleList while idle; nil while in use
}

// Pool dials connections to a single endpoint on demand, up to maxSize
// concurrently live, reusing idle ones and evicting those idle longer than
// idleTimeout.
type Pool struct {
	ep          transport.Endpoint
	maxSize     int
	idleTimeout time.Duration

	mu        sync.Mutex
	cond      *sync.Cond
	idleList  *list.List // of *entry, idle connections, front = most recently released
	liveCount int
	closed    bool

	dialCount int // test/observability hook: total successful dials

	stopSweep chan struct{}
}

// New constructs a Pool. idleTimeout <= 0 uses DefaultIdleTimeout.
func New(ep transport.Endpoint, maxSize int, idleTimeout time.Duration) *Pool {
	if maxSize <= 0 {
		maxSize = 1
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	p := &Pool{
		ep:          ep,
		maxSize:     maxSize,
		idleTimeout: idleTimeout,
		idleList:    list.New(),
		stopSweep:   make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.sweepLoop()
	return p
}

// Acquire returns a pooled connection, reusing an idle one if available,
// dialing a new one if under maxSize, or blocking up to timeout otherwise.
// timeout <= 0 blocks indefinitely (until CloseAll is called).
func (p *Pool) Acquire(ctx context.Context, timeout time.Duration) (*Conn, error) {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	p.mu.Lock()
	for {
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		if e := p.popIdleLocked(); e != nil {
			e.inUse = true
			p.mu.Unlock()
			return &Conn{Conn: e.conn, entry: e, pool: p}, nil
		}
		if p.liveCount < p.maxSize {
			p.liveCount++
			p.mu.Unlock()
			conn, err := transport.DialStream(ctx, p.ep, 0)
			if err != nil {
				p.mu.Lock()
				p.liveCount--
				p.mu.Unlock()
				return nil, fmt.Errorf("pool: dial: %w", err)
			}
			p.mu.Lock()
			p.dialCount++
			p.mu.Unlock()
			e := &entry{conn: conn, inUse: true}
			return &Conn{Conn: conn, entry: e, pool: p}, nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			p.mu.Unlock()
			return nil, ErrAcquireTimeout
		}
		if deadline.IsZero() {
			p.cond.Wait()
			continue
		}
		waitDone := make(chan struct{})
		timer := time.AfterFunc(time.Until(deadline), func() {
			p.mu.Lock()
			close(waitDone)
			p.cond.Broadcast()
			p.mu.Unlock()
		})
		p.cond.Wait()
		timer.Stop()
		select {
		case <-waitDone:
			p.mu.Unlock()
			return nil, ErrAcquireTimeout
		default:
		}
	}
}

// popIdleLocked removes and returns the most-recently-released idle entry,
// or nil. Caller must hold p.mu.
func (p *Pool) popIdleLocked() *entry {
	front := p.idleList.Front()
	if front == nil {
		return nil
	}
	p.idleList.Remove(front)
	e := front.Value.(*entry)
	e.elem = nil
	return e
}

func (p *Pool) release(e *entry, ok bool) {
	p.mu.Lock()
	if !e.inUse {
		p.mu.Unlock()
		return
	}
	e.inUse = false
	if p.closed || !ok {
		p.mu.Unlock()
		e.conn.Close()
		p.mu.Lock()
		p.liveCount--
		p.cond.Broadcast()
		p.mu.Unlock()
		return
	}
	e.idleSince = time.Now()
	e.elem = p.idleList.PushFront(e)
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Len reports the current number of live connections (idle + in-use).
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.liveCount
}

// DialCount reports the cumulative number of successful dials, for tests
// verifying reuse behavior.
func (p *Pool) DialCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dialCount
}

// CloseAll closes every idle connection and makes every subsequent Acquire
// return ErrPoolClosed. Waiters blocked in Acquire are woken immediately.
// Connections currently borrowed are not closed here: each is closed when
// its holder calls Release.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.stopSweep)
	for e := p.idleList.Front(); e != nil; e = e.Next() {
		e.Value.(*entry).conn.Close()
	}
	p.idleList.Init()
	p.liveCount = 0
	p.cond.Broadcast()
	p.mu.Unlock()
}

func (p *Pool) sweepLoop() {
	ticker := time.NewTicker(p.idleTimeout / 2)
	if p.idleTimeout < 2*time.Millisecond {
		ticker = time.NewTicker(time.Millisecond)
	}
	defer ticker.Stop()
	for {
		select {
		case <-p.stopSweep:
			return
		case <-ticker.C:
			p.sweepOnce()
		}
	}
}

func (p *Pool) sweepOnce() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	cutoff := time.Now().Add(-p.idleTimeout)
	var next *list.Element
	for e := p.idleList.Front(); e != nil; e = next {
		next = e.Next()
		entry := e.Value.(*entry)
		if entry.idleSince.Before(cutoff) {
			p.idleList.Remove(e)
			entry.conn.Close()
			p.liveCount--
		}
	}
}
