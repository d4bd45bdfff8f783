package livestream

import (
	"context"
	"fmt"
	"net"
	"time"

	"netkit/framing"
	"netkit/jsoncodec"
	"netkit/transport"
)

// ClientHello is the first frame a client sends on each of its three plain
// stream connections. On the control connection SourceID is empty; on the
// video/audio connections it names the source already selected over
// control, since each connection is accepted independently and has no
// other way to learn which subscription queue to drain.
type ClientHello struct {
	ClientID string `json:"client_id"`
	SourceID string `json:"source_id,omitempty"`
}

// CatalogFrame is sent once by the server immediately after a control
// connection's ClientHello, listing every currently published source.
type CatalogFrame struct {
	Sources []CatalogEntry `json:"sources"`
}

const mediaPollInterval = drainPollInterval

// Server serves LiveStream's three plain-stream endpoints (video, audio,
// control) named in spec.md §4.8, alongside the QUIC/WebTransport session
// path in session.go: any number of clients connect all three, receive the
// catalog on the control connection, select a source, and begin receiving
// its video/audio frames. Grounded on the same reader/writer connection
// shape as conference.Server and pubsub.Server.
type Server struct {
	catalog  *Catalog
	maxFrame uint32
}

// NewServer wraps catalog in Transport-facing stream handlers.
func NewServer(catalog *Catalog, maxFrame uint32) *Server {
	return &Server{catalog: catalog, maxFrame: maxFrame}
}

// ListenControl accepts control connections on ep: each client sends a
// ClientHello, receives the current catalog, selects a source, and then
// feeds periodic FeedbackMessage frames to the ABR controller until it
// disconnects.
func (s *Server) ListenControl(ctx context.Context, ep transport.Endpoint, grace time.Duration) (string, error) {
	return transport.ListenStream(ctx, ep, grace, s.handleControl)
}

// ListenVideo accepts video connections on ep: each client sends a
// ClientHello naming its already-selected source, then receives framed
// video payloads (see EncodeVideoFrame) as they drain from its pacing
// queue.
func (s *Server) ListenVideo(ctx context.Context, ep transport.Endpoint, grace time.Duration) (string, error) {
	return transport.ListenStream(ctx, ep, grace, s.handleMedia(mediaVideo))
}

// ListenAudio accepts audio connections on ep, mirroring ListenVideo for
// the audio pacing queue.
func (s *Server) ListenAudio(ctx context.Context, ep transport.Endpoint, grace time.Duration) (string, error) {
	return transport.ListenStream(ctx, ep, grace, s.handleMedia(mediaAudio))
}

func (s *Server) catalogFrame() CatalogFrame {
	sources := s.catalog.List()
	entries := make([]CatalogEntry, 0, len(sources))
	for _, src := range sources {
		entries = append(entries, CatalogEntry{ID: src.ID, Name: src.Name, HasVideo: src.HasVideo, HasAudio: src.HasAudio})
	}
	return CatalogFrame{Sources: entries}
}

func (s *Server) handleControl(ctx context.Context, conn net.Conn, remote net.Addr, shutdown <-chan struct{}) {
	var hello ClientHello
	if err := jsoncodec.ReadJSON(conn, s.maxFrame, &hello); err != nil || hello.ClientID == "" {
		return
	}
	if err := jsoncodec.WriteJSON(conn, s.maxFrame, s.catalogFrame()); err != nil {
		return
	}

	var source *Source
	for source == nil {
		var req SelectRequest
		if err := jsoncodec.ReadJSON(conn, s.maxFrame, &req); err != nil {
			return
		}
		selected, err := s.catalog.Select(req.SourceID, hello.ClientID)
		if err != nil {
			if err := jsoncodec.WriteJSON(conn, s.maxFrame, SelectResponse{OK: false, Error: err.Error()}); err != nil {
				return
			}
			continue
		}
		if err := jsoncodec.WriteJSON(conn, s.maxFrame, SelectResponse{OK: true}); err != nil {
			return
		}
		source = selected
	}
	defer source.Deselect(hello.ClientID)

	for {
		select {
		case <-shutdown:
			return
		case <-ctx.Done():
			return
		default:
		}
		var fb FeedbackMessage
		if err := jsoncodec.ReadJSON(conn, s.maxFrame, &fb); err != nil {
			return
		}
		source.ObserveBufferLevel(hello.ClientID, fb.BufferLevel)
	}
}

type mediaKind int

const (
	mediaVideo mediaKind = iota
	mediaAudio
)

func (s *Server) handleMedia(kind mediaKind) transport.StreamHandler {
	return func(ctx context.Context, conn net.Conn, remote net.Addr, shutdown <-chan struct{}) {
		var hello ClientHello
		if err := jsoncodec.ReadJSON(conn, s.maxFrame, &hello); err != nil || hello.ClientID == "" || hello.SourceID == "" {
			return
		}
		source, ok := s.catalog.Get(hello.SourceID)
		if !ok {
			return
		}

		ticker := time.NewTicker(mediaPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-shutdown:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			q, ok := queueFor(kind, source, hello.ClientID)
			if !ok {
				return
			}
			for {
				f, ok := q.Pop()
				if !ok {
					break
				}
				if err := framing.WriteFrame(conn, f, s.maxFrame); err != nil {
					return
				}
			}
		}
	}
}

func queueFor(kind mediaKind, source *Source, clientID string) (*PacingQueue, bool) {
	if kind == mediaVideo {
		return source.VideoQueue(clientID)
	}
	return source.AudioQueue(clientID)
}

// ControlClient drives the control connection's handshake/select/feedback
// exchange from the client side.
type ControlClient struct {
	conn     net.Conn
	maxFrame uint32
}

// DialControl connects to a control endpoint, sends the ClientHello, and
// returns the catalog the server replies with.
func DialControl(ctx context.Context, ep transport.Endpoint, timeout time.Duration, maxFrame uint32, clientID string) (*ControlClient, []CatalogEntry, error) {
	conn, err := transport.DialStream(ctx, ep, timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("livestream: dial control: %w", err)
	}
	if err := jsoncodec.WriteJSON(conn, maxFrame, ClientHello{ClientID: clientID}); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("livestream: send hello: %w", err)
	}
	var cat CatalogFrame
	if err := jsoncodec.ReadJSON(conn, maxFrame, &cat); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("livestream: read catalog: %w", err)
	}
	return &ControlClient{conn: conn, maxFrame: maxFrame}, cat.Sources, nil
}

// Select sends a SelectRequest and blocks for its SelectResponse.
func (c *ControlClient) Select(sourceID string) (SelectResponse, error) {
	if err := jsoncodec.WriteJSON(c.conn, c.maxFrame, SelectRequest{SourceID: sourceID}); err != nil {
		return SelectResponse{}, err
	}
	var resp SelectResponse
	err := jsoncodec.ReadJSON(c.conn, c.maxFrame, &resp)
	return resp, err
}

// SendFeedback reports a buffer-level sample to the ABR controller.
func (c *ControlClient) SendFeedback(fb FeedbackMessage) error {
	return jsoncodec.WriteJSON(c.conn, c.maxFrame, fb)
}

// Close closes the control connection.
func (c *ControlClient) Close() error { return c.conn.Close() }

// MediaClient is a dialed video or audio connection receiving framed media
// for one already-selected source.
type MediaClient struct {
	conn     net.Conn
	maxFrame uint32
}

// DialMedia connects to a video or audio endpoint and identifies the
// client and its selected source.
func DialMedia(ctx context.Context, ep transport.Endpoint, timeout time.Duration, maxFrame uint32, clientID, sourceID string) (*MediaClient, error) {
	conn, err := transport.DialStream(ctx, ep, timeout)
	if err != nil {
		return nil, fmt.Errorf("livestream: dial media: %w", err)
	}
	if err := jsoncodec.WriteJSON(conn, maxFrame, ClientHello{ClientID: clientID, SourceID: sourceID}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("livestream: send hello: %w", err)
	}
	return &MediaClient{conn: conn, maxFrame: maxFrame}, nil
}

// ReceiveFrame blocks for the next framed video/audio payload, decodable
// with DecodeVideoFrame or DecodeAudioFrame as appropriate.
func (c *MediaClient) ReceiveFrame() ([]byte, error) {
	return framing.ReadFrame(c.conn, c.maxFrame)
}

// Close closes the media connection.
func (c *MediaClient) Close() error { return c.conn.Close() }
