package pool

import (
	"context"
	"net"
	"testing"
	"time"

	"netkit/transport"
)

func startEchoServer(t *testing.T) transport.Endpoint {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go copyDiscard(conn)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	addr := ln.Addr().(*net.TCPAddr)
	return transport.Endpoint{Host: "127.0.0.1", Port: addr.Port}
}

func copyDiscard(conn net.Conn) {
	buf := make([]byte, 1024)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

func TestPoolBoundAndReuse(t *testing.T) {
	ep := startEchoServer(t)
	p := New(ep, 2, time.Second)
	defer p.CloseAll()

	ctx := context.Background()

	c1, err := p.Acquire(ctx, time.Second)
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	c2, err := p.Acquire(ctx, time.Second)
	if err != nil {
		t.Fatalf("acquire 2: %v", err)
	}
	if got := p.DialCount(); got != 2 {
		t.Fatalf("dial count = %d, want 2", got)
	}

	_, err = p.Acquire(ctx, 100*time.Millisecond)
	if err != ErrAcquireTimeout {
		t.Fatalf("expected ErrAcquireTimeout, got %v", err)
	}

	c1.Release(true)

	c3, err := p.Acquire(ctx, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if got := p.DialCount(); got != 2 {
		t.Fatalf("dial count after reuse = %d, want still 2", got)
	}
	c3.Release(true)
	c2.Release(true)
}

func TestPoolIdleEviction(t *testing.T) {
	ep := startEchoServer(t)
	p := New(ep, 2, 100*time.Millisecond)
	defer p.CloseAll()

	ctx := context.Background()
	c, err := p.Acquire(ctx, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	c.Release(true)

	time.Sleep(400 * time.Millisecond)

	if got := p.Len(); got != 0 {
		t.Fatalf("pool len after idle eviction = %d, want 0", got)
	}
}

func TestPoolCloseAllRejectsFurtherAcquire(t *testing.T) {
	ep := startEchoServer(t)
	p := New(ep, 2, time.Second)

	ctx := context.Background()
	c, err := p.Acquire(ctx, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	c.Release(true)

	p.CloseAll()

	_, err = p.Acquire(ctx, time.Second)
	if err != ErrPoolClosed {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestPoolReleaseNotOkDestroys(t *testing.T) {
	ep := startEchoServer(t)
	p := New(ep, 2, time.Second)
	defer p.CloseAll()

	ctx := context.Background()
	c, err := p.Acquire(ctx, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	c.Release(false)

	if got := p.Len(); got != 0 {
		t.Fatalf("len after corrupt release = %d, want 0", got)
	}
}
