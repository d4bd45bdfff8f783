// Package jsoncodec layers frame-delimited JSON on top of package framing,
// grounded on the teacher's ControlMsg convention: one JSON object per
// length-prefixed frame, decoded into a caller-supplied value. There is no
// newline-delimited mode.
package jsoncodec

import (
	"encoding/json"
	"fmt"
	"io"

	"netkit/framing"
)

// InvalidJSONError wraps a JSON decode failure for a single frame.
type InvalidJSONError struct {
	Err error
}

func (e *InvalidJSONError) Error() string { return "jsoncodec: invalid JSON: " + e.Err.Error() }
func (e *InvalidJSONError) Unwrap() error { return e.Err }

// WriteJSON marshals v and writes it as one length-prefixed frame, rejecting
// the write with a framing.ProtocolError if the encoded size exceeds
// maxFrame (0 uses framing.DefaultMaxFrameSize).
func WriteJSON(w io.Writer, maxFrame uint32, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("jsoncodec: marshal: %w", err)
	}
	return framing.WriteFrame(w, data, maxFrame)
}

// ReadJSON reads one frame and decodes it into v.
func ReadJSON(r io.Reader, maxFrame uint32, v any) error {
	data, err := framing.ReadFrame(r, maxFrame)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &InvalidJSONError{Err: err}
	}
	return nil
}

// SendResponse is a one-shot helper for handlers replying to a single
// request frame with an arbitrary JSON value.
func SendResponse(w io.Writer, maxFrame uint32, v any) error {
	return WriteJSON(w, maxFrame, v)
}
