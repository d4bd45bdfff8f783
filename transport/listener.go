package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

// DefaultGracePeriod bounds how long a graceful shutdown waits for in-flight
// stream handlers before force-closing their connections.
const DefaultGracePeriod = 5 * time.Second

// StreamHandler is invoked once per accepted stream connection, on its own
// activation (goroutine). shutdown is closed when the listener begins a
// graceful shutdown; handlers should use it to unwind promptly.
type StreamHandler func(ctx context.Context, conn net.Conn, remote net.Addr, shutdown <-chan struct{})

// DatagramHandler is invoked for every datagram received by a datagram
// listener, on the listener's single activation. Handlers that need to do
// blocking work must spawn their own workers — the listener does not spawn
// per-message activations.
type DatagramHandler func(data []byte, source net.Addr, socket net.PacketConn)

// ListenStream accepts connections on endpoint until ctx is canceled,
// spawning one activation per connection. It returns as soon as the
// listener is bound; accepting runs in the background. On ctx cancellation
// the listener closes and in-flight handlers get up to grace to return,
// after which their connections are force-closed. The returned string is
// the bound address (useful when Endpoint.Port == 0).
func ListenStream(ctx context.Context, ep Endpoint, grace time.Duration, handler StreamHandler) (string, error) {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	ln, err := newStreamListener(ep)
	if err != nil {
		return "", err
	}

	addr := ln.Addr().String()
	shutdown := make(chan struct{})
	var wg sync.WaitGroup
	var connsMu sync.Mutex
	conns := make(map[net.Conn]struct{})

	go func() {
		<-ctx.Done()
		close(shutdown)
		ln.Close()
	}()

	go func() {
		defer func() {
			done := make(chan struct{})
			go func() { wg.Wait(); close(done) }()
			select {
			case <-done:
			case <-time.After(grace):
				log.Printf("[transport] grace period elapsed on %s, forcing close", addr)
				connsMu.Lock()
				for c := range conns {
					c.Close()
				}
				connsMu.Unlock()
			}
		}()
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-shutdown:
					return
				default:
					log.Printf("[transport] accept error on %s: %v", addr, err)
					return
				}
			}
			wg.Add(1)
			connsMu.Lock()
			conns[conn] = struct{}{}
			connsMu.Unlock()
			go func() {
				defer wg.Done()
				defer func() {
					connsMu.Lock()
					delete(conns, conn)
					connsMu.Unlock()
				}()
				defer conn.Close()
				defer func() {
					if r := recover(); r != nil {
						log.Printf("[transport] handler panic on %s (remote %s): %v", addr, conn.RemoteAddr(), r)
					}
				}()
				handler(ctx, conn, conn.RemoteAddr(), shutdown)
			}()
		}
	}()

	return addr, nil
}

func newStreamListener(ep Endpoint) (net.Listener, error) {
	ln, err := net.Listen("tcp", ep.Addr())
	if err != nil {
		return nil, fmt.Errorf("transport: listen stream %s: %w", ep.Addr(), err)
	}
	if cfg := ep.TLS.BuildTLSConfig(); cfg != nil {
		ln = tls.NewListener(ln, cfg)
	}
	return ln, nil
}

// ListenDatagram receives datagrams on endpoint until ctx is canceled,
// dispatching each to handler on a single activation.
func ListenDatagram(ctx context.Context, ep Endpoint, handler DatagramHandler) (string, error) {
	pc, err := net.ListenPacket("udp", ep.Addr())
	if err != nil {
		return "", fmt.Errorf("transport: listen datagram %s: %w", ep.Addr(), err)
	}

	go func() {
		<-ctx.Done()
		pc.Close()
	}()

	go func() {
		buf := make([]byte, 64*1024)
		for {
			n, addr, err := pc.ReadFrom(buf)
			if err != nil {
				select {
				case <-ctx.Done():
				default:
					log.Printf("[transport] datagram read error on %s: %v", ep.Addr(), err)
				}
				return
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			handler(data, addr, pc)
		}
	}()

	return pc.LocalAddr().String(), nil
}

// Transport errors surfaced by DialStream.
var (
	ErrDialTimeout = errors.New("transport: dial timeout")
	ErrRefused     = errors.New("transport: connection refused")
)

// DialStream connects to endpoint, wrapping the dial in TLS per
// endpoint.TLS when configured. timeout <= 0 means no deadline.
func DialStream(ctx context.Context, ep Endpoint, timeout time.Duration) (net.Conn, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", ep.Addr())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrDialTimeout
		}
		if isRefused(err) {
			return nil, ErrRefused
		}
		return nil, fmt.Errorf("transport: dial %s: %w", ep.Addr(), err)
	}
	if cfg := ep.TLS.BuildTLSConfig(); cfg != nil {
		tlsConn := tls.Client(conn, cfg)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("transport: tls handshake %s: %w", ep.Addr(), err)
		}
		return tlsConn, nil
	}
	return conn, nil
}

func isRefused(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
