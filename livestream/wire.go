// Package livestream implements the catalog/select/stream engine described
// in spec.md §4.8: a source catalog, a select handshake, per-(source,
// client) ABR quality control, pacing queues, and an optional recorder.
// Grounded on the teacher's client.go datagram relay path (sequence-stamped
// media framing, circuit breaker for unreachable peers) and
// client/transport.go's EWMA-smoothed quality classification, adapted from
// voice-chat datagram relay to a one-to-many catalog/stream model.
package livestream

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Video frames are framed as: 8-byte big-endian timestamp (ms) + 4-byte
// big-endian length + payload.
const videoHeaderSize = 8 + 4

// Audio frames are framed as: 4-byte magic + 8-byte big-endian timestamp
// (ms) + 4-byte big-endian length + payload, so a receiver that lost sync
// can resynchronize by scanning for the magic.
const (
	audioMagic      uint32 = 0xA5A5A5A5
	audioHeaderSize        = 4 + 8 + 4
)

var ErrShortFrame = errors.New("livestream: short frame")

// EncodeVideoFrame serializes a video frame.
func EncodeVideoFrame(tsMillis int64, payload []byte) []byte {
	buf := make([]byte, videoHeaderSize+len(payload))
	binary.BigEndian.PutUint64(buf[0:8], uint64(tsMillis))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(payload)))
	copy(buf[12:], payload)
	return buf
}

// DecodeVideoFrame parses a video frame produced by EncodeVideoFrame.
func DecodeVideoFrame(data []byte) (tsMillis int64, payload []byte, err error) {
	if len(data) < videoHeaderSize {
		return 0, nil, ErrShortFrame
	}
	ts := int64(binary.BigEndian.Uint64(data[0:8]))
	n := binary.BigEndian.Uint32(data[8:12])
	if len(data)-videoHeaderSize < int(n) {
		return 0, nil, ErrShortFrame
	}
	return ts, data[12 : 12+n], nil
}

// EncodeAudioFrame serializes an audio frame.
func EncodeAudioFrame(tsMillis int64, payload []byte) []byte {
	buf := make([]byte, audioHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], audioMagic)
	binary.BigEndian.PutUint64(buf[4:12], uint64(tsMillis))
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(payload)))
	copy(buf[16:], payload)
	return buf
}

// DecodeAudioFrame parses an audio frame produced by EncodeAudioFrame,
// resynchronizing by scanning forward for the magic if the buffer does not
// start aligned.
func DecodeAudioFrame(data []byte) (tsMillis int64, payload []byte, rest []byte, err error) {
	i := resyncAudio(data)
	if i < 0 {
		return 0, nil, nil, ErrShortFrame
	}
	data = data[i:]
	if len(data) < audioHeaderSize {
		return 0, nil, nil, ErrShortFrame
	}
	ts := int64(binary.BigEndian.Uint64(data[4:12]))
	n := binary.BigEndian.Uint32(data[12:16])
	if len(data)-audioHeaderSize < int(n) {
		return 0, nil, nil, ErrShortFrame
	}
	payload = data[16 : 16+n]
	rest = data[16+int(n):]
	return ts, payload, rest, nil
}

func resyncAudio(data []byte) int {
	for i := 0; i+4 <= len(data); i++ {
		if binary.BigEndian.Uint32(data[i:i+4]) == audioMagic {
			return i
		}
	}
	return -1
}

// SelectRequest is the catalog/select handshake client->server message.
type SelectRequest struct {
	SourceID string `json:"source_id"`
}

// SelectResponse acknowledges a SelectRequest, or reports an error if the
// source id is unknown.
type SelectResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ErrUnknownSource is returned (and reflected into SelectResponse.Error)
// when a client selects a source id not present in the catalog.
func ErrUnknownSource(id string) error {
	return fmt.Errorf("livestream: unknown source %q", id)
}

// FeedbackMessage is the periodic client->server control message driving
// the ABR controller: {buffer_level, net_quality?, ts}.
type FeedbackMessage struct {
	BufferLevel float64 `json:"buffer_level"`
	NetQuality  string  `json:"net_quality,omitempty"`
	Ts          float64 `json:"ts"`
}

// CatalogEntry describes one published source for a catalog listing.
type CatalogEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	HasVideo bool   `json:"has_video"`
	HasAudio bool   `json:"has_audio"`
}
