package conference

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"netkit/framing"
	"netkit/transport"
)

func dialEndpointFor(t *testing.T, addr string) transport.Endpoint {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split addr %q: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port %q: %v", portStr, err)
	}
	return transport.Endpoint{Host: host, Port: port, Kind: transport.KindStream}
}

// TestWireTextRoomIsolation mirrors spec scenario S5 over real connections:
// Alice and Bob join room "m"'s text channel, Carol joins room "n"'s; Alice's
// message reaches Bob and not Carol.
func TestWireTextRoomIsolation(t *testing.T) {
	reg := NewRegistry()
	srv := NewServer(reg, framing.DefaultMaxFrameSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addr, err := srv.Listen(ctx, transport.Endpoint{Host: "127.0.0.1", Port: 0, Kind: transport.KindStream}, 0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ep := dialEndpointFor(t, addr)

	alice, err := Dial(ctx, ep, time.Second, framing.DefaultMaxFrameSize, JoinFrame{Room: "m", Nickname: "Alice", Channel: ChannelText})
	if err != nil {
		t.Fatalf("dial alice: %v", err)
	}
	defer alice.Close()
	bob, err := Dial(ctx, ep, time.Second, framing.DefaultMaxFrameSize, JoinFrame{Room: "m", Nickname: "Bob", Channel: ChannelText})
	if err != nil {
		t.Fatalf("dial bob: %v", err)
	}
	defer bob.Close()
	carol, err := Dial(ctx, ep, time.Second, framing.DefaultMaxFrameSize, JoinFrame{Room: "n", Nickname: "Carol", Channel: ChannelText})
	if err != nil {
		t.Fatalf("dial carol: %v", err)
	}
	defer carol.Close()

	time.Sleep(50 * time.Millisecond) // let joins land before the send

	if err := alice.SendText(TextMessage{From: "alice", Text: "hi", Ts: 1}); err != nil {
		t.Fatalf("send: %v", err)
	}

	done := make(chan struct{})
	var got TextMessage
	go func() {
		defer close(done)
		got, _ = bob.ReceiveText()
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bob to receive alice's message")
	}
	if got.Text != "hi" {
		t.Fatalf("bob got %+v, want text 'hi'", got)
	}

	carolDone := make(chan error, 1)
	go func() {
		carol.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		_, err := carol.ReceiveText()
		carolDone <- err
	}()
	if err := <-carolDone; err == nil {
		t.Fatal("expected carol (room n) to receive nothing from room m, got a frame")
	}
}
