package transport

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"
)

func TestListenStreamEchoAndShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handled := make(chan struct{}, 1)
	addr, err := ListenStream(ctx, Endpoint{Host: "127.0.0.1", Port: 0}, time.Second, func(ctx context.Context, conn net.Conn, remote net.Addr, shutdown <-chan struct{}) {
		defer close(handled)
		line, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil {
			return
		}
		conn.Write([]byte(line))
	})
	if err != nil {
		t.Fatalf("ListenStream: %v", err)
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.Write([]byte("ping\n"))

	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply != "ping\n" {
		t.Fatalf("got %q want %q", reply, "ping\n")
	}

	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
}

// TestListenStreamRecoversHandlerPanic covers spec.md §7's per-connection
// isolation: a handler panic on one connection must not take down the
// listener or stall unrelated connections.
func TestListenStreamRecoversHandlerPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, err := ListenStream(ctx, Endpoint{Host: "127.0.0.1", Port: 0}, time.Second, func(ctx context.Context, conn net.Conn, remote net.Addr, shutdown <-chan struct{}) {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("ListenStream: %v", err)
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()

	// The listener must still be accepting after the panicking handler
	// returns — a second connection gets served normally.
	conn2, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial after panic: %v", err)
	}
	defer conn2.Close()
}

func TestDialStreamRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	_, err = DialStream(context.Background(), Endpoint{Host: "127.0.0.1", Port: addr.Port}, time.Second)
	if err == nil {
		t.Fatal("expected dial error against closed port")
	}
}

func TestListenDatagram(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 1)
	addr, err := ListenDatagram(ctx, Endpoint{Host: "127.0.0.1", Port: 0}, func(data []byte, source net.Addr, socket net.PacketConn) {
		received <- string(data)
	})
	if err != nil {
		t.Fatalf("ListenDatagram: %v", err)
	}

	conn, err := net.Dial("udp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.Write([]byte("hello"))

	select {
	case msg := <-received:
		if msg != "hello" {
			t.Fatalf("got %q want hello", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("datagram never received")
	}
}
