// Package filetransfer implements netkit's file-sending protocol: one JSON
// metadata header frame followed by the raw payload streamed in chunks,
// written to a sandboxed directory using only the basename of the sender's
// filename (path traversal defense). Grounded on the teacher's
// internal/blob storage discipline and api.go's streamed-upload handling.
package filetransfer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"netkit/framing"
	"netkit/internal/blobstore"
)

// DefaultChunkSize is the default streaming chunk size.
const DefaultChunkSize = 64 * 1024

// Header is the JSON metadata frame sent before the payload.
type Header struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum,omitempty"` // hex sha256, optional
}

// Error reports a file-transfer failure: truncation, checksum mismatch, or
// a disk failure on the receiving side.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return "filetransfer: " + e.Reason }

// ProgressFunc is invoked after each chunk is written/read, with the number
// of bytes transferred so far and the declared total.
type ProgressFunc func(transferred, total int64)

// Send writes the header frame then streams exactly header.Size bytes from
// r in chunkSize pieces, invoking progress after each chunk. maxFrame caps
// the header frame's size (0 uses framing.DefaultMaxFrameSize); the payload
// itself is streamed raw and is not subject to this cap.
func Send(w io.Writer, header Header, r io.Reader, chunkSize int, maxFrame uint32, progress ProgressFunc) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("filetransfer: marshal header: %w", err)
	}
	if err := framing.WriteFrame(w, headerJSON, maxFrame); err != nil {
		return fmt.Errorf("filetransfer: write header: %w", err)
	}

	buf := make([]byte, chunkSize)
	var sent int64
	for sent < header.Size {
		want := int64(chunkSize)
		if remaining := header.Size - sent; remaining < want {
			want = remaining
		}
		n, err := io.ReadFull(r, buf[:want])
		if err != nil {
			return fmt.Errorf("filetransfer: read payload: %w", err)
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return fmt.Errorf("filetransfer: write payload: %w", err)
		}
		sent += int64(n)
		if progress != nil {
			progress(sent, header.Size)
		}
	}
	return nil
}

// Receive reads one header frame and exactly header.Size payload bytes from
// r, storing them via store (sandboxed to header.Filename's basename) and
// invoking progress after each chunk. If header.Checksum is set, the
// received bytes' sha256 must match or Receive returns *Error.
func Receive(r io.Reader, store *blobstore.Store, maxFrame uint32, chunkSize int, progress ProgressFunc) (blobstore.Metadata, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	headerJSON, err := framing.ReadFrame(r, maxFrame)
	if err != nil {
		return blobstore.Metadata{}, fmt.Errorf("filetransfer: read header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return blobstore.Metadata{}, fmt.Errorf("filetransfer: decode header: %w", err)
	}

	pr, pw := io.Pipe()
	hasher := sha256.New()
	result := make(chan error, 1)
	go func() {
		var received int64
		buf := make([]byte, chunkSize)
		for received < header.Size {
			want := int64(chunkSize)
			if remaining := header.Size - received; remaining < want {
				want = remaining
			}
			n, err := io.ReadFull(r, buf[:want])
			if err != nil {
				truncErr := &Error{Reason: fmt.Sprintf("truncated after %s of %s", humanize.Bytes(uint64(received)), humanize.Bytes(uint64(header.Size)))}
				pw.CloseWithError(truncErr)
				result <- truncErr
				return
			}
			hasher.Write(buf[:n])
			if _, err := pw.Write(buf[:n]); err != nil {
				result <- err
				return
			}
			received += int64(n)
			if progress != nil {
				progress(received, header.Size)
			}
		}
		pw.Close()
		result <- nil
	}()

	meta, putErr := store.Put(header.Filename, "", pr)
	if err := <-result; err != nil {
		return blobstore.Metadata{}, err
	}
	if putErr != nil {
		return blobstore.Metadata{}, &Error{Reason: fmt.Sprintf("store payload: %v", putErr)}
	}

	if header.Checksum != "" {
		sum := hex.EncodeToString(hasher.Sum(nil))
		if sum != header.Checksum {
			return blobstore.Metadata{}, &Error{Reason: fmt.Sprintf("checksum mismatch: got %s want %s", sum, header.Checksum)}
		}
	}
	return meta, nil
}
