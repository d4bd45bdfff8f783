// Package wsproto is a thin RFC-6455 adapter exposing the spec's
// send(text|bytes)/recv()/close(code,reason) interface over
// github.com/gorilla/websocket, grounded on the teacher's
// internal/ws/handler.go: read-limit + deadline discipline, automatic
// ping/pong, and a single reader/single writer per connection.
package wsproto

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultMaxMessageSize bounds a single reassembled message, matching
// spec.md §4.10's 1 MiB default.
const DefaultMaxMessageSize = 1 << 20

// DefaultPingInterval is the ping cadence the read deadline (pongWait) is
// sized for. A Conn sends periodic pings only when Options.PingInterval is
// set, at that interval.
const DefaultPingInterval = 30 * time.Second

const pongWait = DefaultPingInterval + 10*time.Second
const writeWait = 5 * time.Second

// FrameKind distinguishes a text frame from a binary one.
type FrameKind int

const (
	Text FrameKind = iota
	Binary
)

// Options configures a Conn at construction time.
type Options struct {
	MaxMessageSize int64         // 0 uses DefaultMaxMessageSize
	PingInterval   time.Duration // 0 disables periodic pings
}

func (o Options) withDefaults() Options {
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = DefaultMaxMessageSize
	}
	return o
}

// Conn wraps one upgraded websocket connection, gorilla's ping/pong
// machinery wired so recv() never surfaces a bare control frame to the
// caller — only text/binary application messages.
type Conn struct {
	ws   *websocket.Conn
	opts Options

	pingDone chan struct{}
}

func newConn(ws *websocket.Conn, opts Options) *Conn {
	opts = opts.withDefaults()
	ws.SetReadLimit(opts.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	c := &Conn{ws: ws, opts: opts}
	if opts.PingInterval > 0 {
		c.pingDone = make(chan struct{})
		go c.pingLoop()
	}
	return c
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.pingDone:
			return
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send writes one application message. gorilla reassembles and emits
// fragmented writes transparently per call; it never fragments outgoing
// messages on our behalf, so one Send is one wire message.
func (c *Conn) Send(kind FrameKind, data []byte) error {
	wireType := websocket.TextMessage
	if kind == Binary {
		wireType = websocket.BinaryMessage
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(wireType, data); err != nil {
		return fmt.Errorf("wsproto: send: %w", err)
	}
	return nil
}

// Recv blocks for the next text/binary application message. Gorilla
// reassembles fragmented frames into one message before ReadMessage
// returns, and dispatches ping/pong/close control frames to their
// handlers internally rather than returning them here.
func (c *Conn) Recv() (FrameKind, []byte, error) {
	wireType, data, err := c.ws.ReadMessage()
	if err != nil {
		return 0, nil, fmt.Errorf("wsproto: recv: %w", err)
	}
	if wireType == websocket.BinaryMessage {
		return Binary, data, nil
	}
	return Text, data, nil
}

// Close sends a close frame with the given code/reason and tears down the
// underlying connection.
func (c *Conn) Close(code int, reason string) error {
	if c.pingDone != nil {
		close(c.pingDone)
	}
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
	return c.ws.Close()
}

// IsUnexpectedClose reports whether err represents an abnormal close
// (anything other than going-away or normal closure), matching the
// teacher's IsUnexpectedCloseError usage.
func IsUnexpectedClose(err error) bool {
	return websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure)
}

// ErrNotUpgrade is returned by Accept when the incoming request is not a
// websocket upgrade request.
var ErrNotUpgrade = errors.New("wsproto: request is not a websocket upgrade")

// Accept upgrades an HTTP request/response pair to a websocket connection.
// CheckOrigin always allows, matching the teacher's permissive default
// (origin policy is an external collaborator's concern per spec.md §1).
func Accept(w http.ResponseWriter, r *http.Request, opts Options) (*Conn, error) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(_ *http.Request) bool { return true },
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if !websocket.IsWebSocketUpgrade(r) {
			return nil, fmt.Errorf("%w: %v", ErrNotUpgrade, err)
		}
		return nil, fmt.Errorf("wsproto: upgrade: %w", err)
	}
	return newConn(ws, opts), nil
}

// Dial performs the client-side handshake against url, with optional extra
// request headers.
func Dial(url string, headers http.Header, opts Options) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.Dial(url, headers)
	if err != nil {
		return nil, fmt.Errorf("wsproto: dial: %w", err)
	}
	return newConn(ws, opts), nil
}
