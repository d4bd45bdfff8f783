package rpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"netkit/jsoncodec"
	"netkit/transport"
)

// Server serves an Engine's methods over dialed stream connections, one
// request decoded and one response written per round trip.
type Server struct {
	engine   *Engine
	limiter  *Limiter
	maxFrame uint32
}

// NewServer wraps engine in a Transport-facing stream handler. limiter is
// one token bucket shared by all of the Server's connections; it may be nil
// for no rate limiting.
func NewServer(engine *Engine, limiter *Limiter, maxFrame uint32) *Server {
	return &Server{engine: engine, limiter: limiter, maxFrame: maxFrame}
}

// Listen starts accepting connections on ep until ctx is canceled.
func (s *Server) Listen(ctx context.Context, ep transport.Endpoint, grace time.Duration) (string, error) {
	return transport.ListenStream(ctx, ep, grace, s.handleConn)
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn, remote net.Addr, shutdown <-chan struct{}) {
	for {
		select {
		case <-shutdown:
			return
		default:
		}
		var req Request
		if err := jsoncodec.ReadJSON(conn, s.maxFrame, &req); err != nil {
			return
		}
		var resp Response
		if !s.limiter.Allow() {
			resp = Response{Error: "rate limit exceeded"}
		} else {
			resp = s.engine.Dispatch(ctx, req)
		}
		if err := jsoncodec.WriteJSON(conn, s.maxFrame, resp); err != nil {
			return
		}
	}
}

// Client issues requests against a dialed RPC connection.
type Client struct {
	conn     net.Conn
	maxFrame uint32
}

// Dial connects to an RPC server.
func Dial(ctx context.Context, ep transport.Endpoint, timeout time.Duration, maxFrame uint32) (*Client, error) {
	conn, err := transport.DialStream(ctx, ep, timeout)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial: %w", err)
	}
	return &Client{conn: conn, maxFrame: maxFrame}, nil
}

// Call sends a request and blocks for its response.
func (c *Client) Call(method string, params []any, kwargs map[string]any) (Response, error) {
	if err := jsoncodec.WriteJSON(c.conn, c.maxFrame, Request{Method: method, Params: params, Kwargs: kwargs}); err != nil {
		return Response{}, fmt.Errorf("rpc: write request: %w", err)
	}
	var resp Response
	if err := jsoncodec.ReadJSON(c.conn, c.maxFrame, &resp); err != nil {
		return Response{}, fmt.Errorf("rpc: read response: %w", err)
	}
	return resp, nil
}

// Close closes the client's underlying connection.
func (c *Client) Close() error { return c.conn.Close() }
