package wsproto

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handle func(*Conn)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := Accept(w, r, Options{})
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		handle(conn)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestEchoTextRoundTrip(t *testing.T) {
	srv := newTestServer(t, func(conn *Conn) {
		defer conn.Close(1000, "")
		kind, data, err := conn.Recv()
		if err != nil {
			return
		}
		_ = conn.Send(kind, data)
	})

	client, err := Dial(wsURL(srv), nil, Options{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close(1000, "bye")

	if err := client.Send(Text, []byte("hello")); err != nil {
		t.Fatalf("send: %v", err)
	}
	kind, data, err := client.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if kind != Text || string(data) != "hello" {
		t.Fatalf("got kind=%v data=%q, want Text 'hello'", kind, data)
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	srv := newTestServer(t, func(conn *Conn) {
		defer conn.Close(1000, "")
		kind, data, err := conn.Recv()
		if err != nil {
			return
		}
		_ = conn.Send(kind, data)
	})

	client, err := Dial(wsURL(srv), nil, Options{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close(1000, "bye")

	payload := []byte{0x00, 0x01, 0xFF, 0xAB}
	if err := client.Send(Binary, payload); err != nil {
		t.Fatalf("send: %v", err)
	}
	kind, data, err := client.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if kind != Binary || string(data) != string(payload) {
		t.Fatalf("got kind=%v data=%v, want Binary %v", kind, data, payload)
	}
}

func TestMaxMessageSizeRejectsOversizedFrame(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := Accept(w, r, Options{MaxMessageSize: 8})
		if err != nil {
			return
		}
		defer conn.Close(1000, "")
		if _, _, err := conn.Recv(); err == nil {
			t.Error("expected oversized message to be rejected")
		}
	})
	limitedSrv := httptest.NewServer(mux)
	defer limitedSrv.Close()

	client, err := Dial(wsURL(limitedSrv), nil, Options{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close(1000, "bye")

	if err := client.Send(Text, []byte("this message is much longer than eight bytes")); err != nil {
		t.Fatalf("send: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
}
