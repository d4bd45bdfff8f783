package rpc

import (
	"context"
	"testing"
	"time"

	"netkit/transport"
)

func TestRateLimitRejectsExcessRequests(t *testing.T) {
	e := New()
	e.Register("ping", func(ctx context.Context, params []any, kwargs map[string]any) (any, error) {
		return "pong", nil
	})

	limiter := NewLimiter(1, 1) // 1 req/sec, burst 1
	srv := NewServer(e, limiter, 4096)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ep := transport.Endpoint{Host: "127.0.0.1", Port: 0, Kind: transport.KindStream}
	addr, err := srv.Listen(ctx, ep, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	dialEp := dialEndpointFor(t, addr)

	client, err := Dial(context.Background(), dialEp, time.Second, 4096)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	first, err := client.Call("ping", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Error != "" {
		t.Fatalf("expected first call to succeed, got %+v", first)
	}

	second, err := client.Call("ping", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if second.Error != "rate limit exceeded" {
		t.Fatalf("expected rate limit rejection, got %+v", second)
	}
}
