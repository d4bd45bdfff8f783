// Package qdatagram provides a QUIC/WebTransport-backed session transport:
// one reliable bidirectional stream (for control/JSON framing) plus
// unreliable datagrams (for media). LiveStream's ServeClientSession uses it
// for its video/audio channels because lossy, low-latency, unordered
// delivery suits real-time media better than a length-prefixed TCP stream;
// package transport's generic datagram listener remains available for
// plain fire-and-forget messaging.
package qdatagram

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"
)

// DefaultDialTimeout bounds the WebTransport handshake when dialing.
const DefaultDialTimeout = 10 * time.Second

// Session wraps a *webtransport.Session with the minimal surface netkit's
// media engines need: one control stream plus datagram send/receive.
type Session struct {
	raw *webtransport.Session
}

// SendDatagram sends an unreliable datagram; livestream's session drain
// loops send video/audio frames through it.
func (s *Session) SendDatagram(b []byte) error { return s.raw.SendDatagram(b) }

// ReceiveDatagram blocks until a datagram arrives or ctx is canceled.
func (s *Session) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	return s.raw.ReceiveDatagram(ctx)
}

// AcceptControlStream waits for the peer to open the first bidirectional
// stream, used as the control channel.
func (s *Session) AcceptControlStream(ctx context.Context) (webtransport.Stream, error) {
	return s.raw.AcceptStream(ctx)
}

// OpenControlStream opens a new bidirectional stream to serve as the
// control channel.
func (s *Session) OpenControlStream() (webtransport.Stream, error) {
	return s.raw.OpenStream()
}

// Close terminates the session.
func (s *Session) Close() error { return s.raw.CloseWithError(0, "") }

// Server accepts incoming WebTransport sessions over an HTTP/3 endpoint.
type Server struct {
	wt  webtransport.Server
	mux *http.ServeMux
}

// NewServer constructs a Server bound to addr with the given TLS config
// (required — WebTransport runs over HTTP/3, which mandates TLS).
func NewServer(addr string, tlsConfig *tls.Config) *Server {
	mux := http.NewServeMux()
	return &Server{
		wt: webtransport.Server{
			H3: http3.Server{
				Addr:      addr,
				TLSConfig: tlsConfig,
				Handler:   mux,
			},
		},
		mux: mux,
	}
}

// OnSession registers a handler invoked for each accepted session at path.
func (srv *Server) OnSession(path string, handler func(ctx context.Context, sess *Session)) {
	srv.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		sess, err := srv.wt.Upgrade(w, r)
		if err != nil {
			http.Error(w, "webtransport upgrade failed", http.StatusInternalServerError)
			return
		}
		handler(r.Context(), &Session{raw: sess})
	})
}

// Serve runs the underlying HTTP/3 listener until it errors or is closed.
func (srv *Server) Serve() error {
	return srv.wt.ListenAndServe()
}

// Close shuts down the server and any in-flight sessions.
func (srv *Server) Close() error {
	return srv.wt.Close()
}

// Dial opens a WebTransport session against a netkit qdatagram server.
// insecureSkipVerify should only be set for local development against a
// self-signed certificate (mirrors the teacher's dev-mode client dialer).
func Dial(ctx context.Context, url string, insecureSkipVerify bool, timeout time.Duration) (*Session, error) {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d := webtransport.Dialer{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: insecureSkipVerify},
		QUICConfig: &quic.Config{
			EnableDatagrams: true,
		},
	}
	_, sess, err := d.Dial(dialCtx, url, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("qdatagram: dial %s: %w", url, err)
	}
	return &Session{raw: sess}, nil
}
