package rpc

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"netkit/transport"
)

func dialEndpointFor(t *testing.T, addr string) transport.Endpoint {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	return transport.Endpoint{Host: host, Port: port, Kind: transport.KindStream}
}

func TestServerClientRoundTrip(t *testing.T) {
	e := New()
	e.Register("add", func(ctx context.Context, params []any, kwargs map[string]any) (any, error) {
		return params[0].(float64) + params[1].(float64), nil
	})
	e.Register("div", func(ctx context.Context, params []any, kwargs map[string]any) (any, error) {
		a, b := params[0].(float64), params[1].(float64)
		if b == 0 {
			return nil, errors.New("division by zero")
		}
		return a / b, nil
	})

	srv := NewServer(e, nil, 4096)
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

	resp, err := client.Call("add", []any{2.0, 3.0}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Error != "" || resp.Result.(float64) != 5 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	resp, err = client.Call("div", []any{1.0, 0.0}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Error == "" {
		t.Fatal("expected division-by-zero error")
	}

	resp, err = client.Call("missing", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Error != "method not found: missing" {
		t.Fatalf("unexpected error: %q", resp.Error)
	}
}
