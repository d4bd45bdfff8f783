// Package framing implements the length-prefixed message format shared by
// every stream-based protocol in netkit: a 4-byte big-endian length header
// followed by exactly that many payload bytes.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxFrameSize is the default policy cap on a single frame's payload
// length, enforced before any payload buffer is allocated.
const DefaultMaxFrameSize = 16 << 20 // 16 MiB

const headerSize = 4

// ErrClosedByPeer is returned when the peer closes the connection before any
// header bytes are read.
var ErrClosedByPeer = errors.New("framing: closed by peer")

// ErrTruncatedFrame is returned when the peer closes the connection after the
// header but before the full payload arrives.
var ErrTruncatedFrame = errors.New("framing: truncated frame")

// ProtocolError reports a frame that violates the wire contract, e.g. a
// length header exceeding the configured policy maximum.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "framing: protocol error: " + e.Reason }

// NewProtocolError builds a ProtocolError with a formatted reason.
func NewProtocolError(format string, args ...any) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// WriteFrame writes length-prefixed payload p to w in a single call, after
// validating len(p) against maxSize (0 uses DefaultMaxFrameSize) — an
// oversized frame is rejected with a ProtocolError before any bytes reach
// the wire, mirroring ReadFrame's policy check on the receive side. It
// does not synchronize concurrent writers; callers sharing a connection
// across goroutines must serialize their own writes (see transport's
// single-writer discipline).
func WriteFrame(w io.Writer, p []byte, maxSize uint32) error {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}
	if uint64(len(p)) > uint64(maxSize) {
		return NewProtocolError("frame length %d exceeds policy max %d", len(p), maxSize)
	}
	var header [headerSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(p)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("framing: write header: %w", err)
	}
	if len(p) == 0 {
		return nil
	}
	if _, err := w.Write(p); err != nil {
		return fmt.Errorf("framing: write payload: %w", err)
	}
	return nil
}

// ReadFrame reads exactly one length-prefixed frame from r, validating the
// declared length against maxSize before allocating the payload buffer.
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}
	var header [headerSize]byte
	if err := recvExact(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrClosedByPeer
		}
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > maxSize {
		return nil, NewProtocolError("frame length %d exceeds policy max %d", length, maxSize)
	}
	if length == 0 {
		return []byte{}, nil
	}
	payload := make([]byte, length)
	if err := recvExact(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncatedFrame
		}
		return nil, err
	}
	return payload, nil
}

// RecvExact loops until exactly len(buf) bytes have been read into buf, or
// the connection closes. It is the shared primitive behind ReadFrame and is
// also exposed for protocols that read fixed-size headers directly (video
// and audio wire framing in package livestream).
func RecvExact(r io.Reader, buf []byte) error {
	return recvExact(r, buf)
}

func recvExact(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}
