package transport

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
)

// DefaultMulticastTTL is the outgoing TTL used by multicast senders unless
// overridden.
const DefaultMulticastTTL = 1

// ListenMulticast joins a multicast group on the given interface (nil for
// the system default) and dispatches received datagrams to handler, same
// contract as ListenDatagram.
func ListenMulticast(ctx context.Context, group net.IP, port int, iface *net.Interface, handler DatagramHandler) (string, error) {
	addr := &net.UDPAddr{IP: group, Port: port}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return "", fmt.Errorf("transport: listen multicast %s:%d: %w", group, port, err)
	}

	pconn := ipv4.NewPacketConn(conn)
	if err := pconn.JoinGroup(iface, addr); err != nil {
		conn.Close()
		return "", fmt.Errorf("transport: join group %s: %w", group, err)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		buf := make([]byte, 64*1024)
		for {
			n, src, err := conn.ReadFrom(buf)
			if err != nil {
				select {
				case <-ctx.Done():
				default:
				}
				return
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			handler(data, src, conn)
		}
	}()

	return conn.LocalAddr().String(), nil
}

// DialMulticastSender returns a UDP connection suitable for sending to a
// multicast group with the given outgoing TTL (default 1) and optional
// source interface.
func DialMulticastSender(group net.IP, port int, ttl int, iface *net.Interface) (*net.UDPConn, error) {
	if ttl <= 0 {
		ttl = DefaultMulticastTTL
	}
	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: group, Port: port})
	if err != nil {
		return nil, fmt.Errorf("transport: dial multicast sender %s:%d: %w", group, port, err)
	}
	pconn := ipv4.NewPacketConn(conn)
	if err := pconn.SetMulticastTTL(ttl); err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: set multicast ttl: %w", err)
	}
	if iface != nil {
		if err := pconn.SetMulticastInterface(iface); err != nil {
			conn.Close()
			return nil, fmt.Errorf("transport: set multicast interface: %w", err)
		}
	}
	return conn, nil
}
