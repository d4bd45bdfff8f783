package conference

import (
	"context"
	"fmt"
	"net"
	"time"

	"netkit/framing"
	"netkit/jsoncodec"
	"netkit/transport"
)

// JoinFrame is the first frame a client sends on each of its three
// connections, per spec.md §4.9: "A client connects three times; initial
// frame on each carries {room, nickname, channel}".
type JoinFrame struct {
	Room     string  `json:"room"`
	Nickname string  `json:"nickname"`
	Channel  Channel `json:"channel"`
}

// BinaryFrame carries an opaque video or audio payload.
type BinaryFrame struct {
	Data []byte `json:"data"`
}

// Server accepts a member's per-channel connections and relays frames
// through a Registry. One Server instance is shared across the video,
// audio, and text listeners; the channel a given connection serves is
// determined entirely by the client's JoinFrame, not by which endpoint it
// dialed, mirroring the teacher's single ws.Handler dispatching on a
// client-declared message kind.
type Server struct {
	registry *Registry
	maxFrame uint32
}

// NewServer wraps registry in a Transport-facing stream handler.
func NewServer(registry *Registry, maxFrame uint32) *Server {
	return &Server{registry: registry, maxFrame: maxFrame}
}

// Listen starts accepting connections on ep until ctx is canceled. The
// caller typically calls Listen three times against three endpoints (one
// per channel), though a single endpoint handling all three channels also
// works since the channel is carried in the join handshake.
func (s *Server) Listen(ctx context.Context, ep transport.Endpoint, grace time.Duration) (string, error) {
	return transport.ListenStream(ctx, ep, grace, s.handleConn)
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn, remote net.Addr, shutdown <-chan struct{}) {
	var join JoinFrame
	if err := jsoncodec.ReadJSON(conn, s.maxFrame, &join); err != nil {
		return
	}
	if join.Room == "" || join.Channel == "" {
		return
	}

	memberID := remote.String() + ":" + string(join.Channel)
	room, member := s.registry.JoinRoom(join.Room, memberID, join.Nickname)
	defer func() {
		room.NotifyDisconnect(memberID)
		s.registry.LeaveRoom(join.Room, memberID)
		member.Close()
	}()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		s.readLoop(conn, room, member, join.Channel)
	}()

	s.writeLoop(conn, member, join.Channel, shutdown, readerDone)
}

func (s *Server) readLoop(conn net.Conn, room *Room, member *Member, channel Channel) {
	for {
		switch channel {
		case ChannelText:
			var msg TextMessage
			if err := jsoncodec.ReadJSON(conn, s.maxFrame, &msg); err != nil {
				return
			}
			room.HandleTextFrame(member.ID, msg)
		case ChannelVideo:
			var frame BinaryFrame
			if err := jsoncodec.ReadJSON(conn, s.maxFrame, &frame); err != nil {
				return
			}
			room.RelayVideo(member.ID, frame.Data)
		case ChannelAudio:
			var frame BinaryFrame
			if err := jsoncodec.ReadJSON(conn, s.maxFrame, &frame); err != nil {
				return
			}
			room.RelayAudio(member.ID, frame.Data)
		default:
			return
		}
	}
}

func (s *Server) writeLoop(conn net.Conn, member *Member, channel Channel, shutdown <-chan struct{}, readerDone <-chan struct{}) {
	type result struct {
		frame []byte
		ok    bool
	}
	next := make(chan result, 1)
	go func() {
		for {
			frame, ok := member.NextFrame(channel)
			next <- result{frame, ok}
			if !ok {
				return
			}
		}
	}()

	for {
		select {
		case <-shutdown:
			member.Close()
			return
		case <-readerDone:
			return
		case r := <-next:
			if !r.ok {
				return
			}
			var err error
			if channel == ChannelText {
				// Text frames are already JSON-encoded TextMessage/SystemMessage
				// bytes (see encodeText/encodeSystem); forward as-is rather than
				// re-wrapping.
				err = framing.WriteFrame(conn, r.frame, s.maxFrame)
			} else {
				err = jsoncodec.WriteJSON(conn, s.maxFrame, BinaryFrame{Data: r.frame})
			}
			if err != nil {
				return
			}
		}
	}
}

// Client is a thin conference client over one dialed connection serving a
// single channel.
type Client struct {
	conn     net.Conn
	channel  Channel
	maxFrame uint32
}

// Dial connects to a conference server and sends the join handshake for one
// channel. The caller dials three times (once per channel) to fully
// participate in a room.
func Dial(ctx context.Context, ep transport.Endpoint, timeout time.Duration, maxFrame uint32, join JoinFrame) (*Client, error) {
	conn, err := transport.DialStream(ctx, ep, timeout)
	if err != nil {
		return nil, fmt.Errorf("conference: dial: %w", err)
	}
	if err := jsoncodec.WriteJSON(conn, maxFrame, join); err != nil {
		conn.Close()
		return nil, fmt.Errorf("conference: join: %w", err)
	}
	return &Client{conn: conn, channel: join.Channel, maxFrame: maxFrame}, nil
}

// SendText sends a text frame. Only valid on a text-channel client.
func (c *Client) SendText(msg TextMessage) error {
	return jsoncodec.WriteJSON(c.conn, c.maxFrame, msg)
}

// SendBinary sends a video/audio payload. Only valid on a video- or
// audio-channel client.
func (c *Client) SendBinary(data []byte) error {
	return jsoncodec.WriteJSON(c.conn, c.maxFrame, BinaryFrame{Data: data})
}

// ReceiveText blocks for the next frame on a text-channel client.
func (c *Client) ReceiveText() (TextMessage, error) {
	var msg TextMessage
	err := jsoncodec.ReadJSON(c.conn, c.maxFrame, &msg)
	return msg, err
}

// ReceiveBinary blocks for the next frame on a video- or audio-channel
// client.
func (c *Client) ReceiveBinary() ([]byte, error) {
	var frame BinaryFrame
	if err := jsoncodec.ReadJSON(c.conn, c.maxFrame, &frame); err != nil {
		return nil, err
	}
	return frame.Data, nil
}

// Close closes the client's underlying connection.
func (c *Client) Close() error { return c.conn.Close() }
