package livestream

import (
	"context"
	"time"

	"netkit/jsoncodec"
	"netkit/transport/qdatagram"
)

// controlStream is the subset of qdatagram's control stream used here,
// narrowed to keep this file testable without a real QUIC session.
type controlStream interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// ServeClientSession drives one client's catalog/select/feedback control
// channel and its video/audio pacing drain loops over a QUIC/WebTransport
// session. It returns when ctx is canceled, or earlier if the control
// stream fails before a source is selected; a datagram send failure after
// selection stops that drain loop but does not end ServeClientSession.
// Grounded on the
// teacher's readDatagrams/client control-stream split in client.go: one
// goroutine relays media, a separate control-stream reader handles
// JSON control messages.
func ServeClientSession(ctx context.Context, sess *qdatagram.Session, catalog *Catalog, clientID string, maxFrame uint32) error {
	ctrlStream, err := sess.AcceptControlStream(ctx)
	if err != nil {
		return err
	}
	ctrl := controlStream(ctrlStream)

	selected := make(chan *Source, 1)
	go drainControl(ctx, ctrl, catalog, clientID, maxFrame, selected)

	var source *Source
	select {
	case source = <-selected:
	case <-ctx.Done():
		return ctx.Err()
	}
	if source == nil {
		return nil
	}
	go drainVideo(ctx, sess, source, clientID)
	go drainAudio(ctx, sess, source, clientID)
	<-ctx.Done()
	source.Deselect(clientID)
	return ctx.Err()
}

func drainControl(ctx context.Context, ctrl controlStream, catalog *Catalog, clientID string, maxFrame uint32, selected chan<- *Source) {
	for {
		var req SelectRequest
		if err := jsoncodec.ReadJSON(ctrl, maxFrame, &req); err != nil {
			close(selected)
			return
		}
		source, err := catalog.Select(req.SourceID, clientID)
		if err != nil {
			jsoncodec.WriteJSON(ctrl, maxFrame, SelectResponse{OK: false, Error: err.Error()})
			continue
		}
		jsoncodec.WriteJSON(ctrl, maxFrame, SelectResponse{OK: true})
		selected <- source
		go drainFeedback(ctx, ctrl, source, clientID, maxFrame)
		return
	}
}

func drainFeedback(ctx context.Context, ctrl controlStream, source *Source, clientID string, maxFrame uint32) {
	for {
		var fb FeedbackMessage
		if err := jsoncodec.ReadJSON(ctrl, maxFrame, &fb); err != nil {
			return
		}
		source.ObserveBufferLevel(clientID, fb.BufferLevel)
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

const drainPollInterval = 10 * time.Millisecond

func drainVideo(ctx context.Context, sess *qdatagram.Session, source *Source, clientID string) {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		q, ok := source.VideoQueue(clientID)
		if !ok {
			return
		}
		for {
			frame, ok := q.Pop()
			if !ok {
				break
			}
			if err := sess.SendDatagram(frame); err != nil {
				return
			}
		}
	}
}

func drainAudio(ctx context.Context, sess *qdatagram.Session, source *Source, clientID string) {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		q, ok := source.AudioQueue(clientID)
		if !ok {
			return
		}
		for {
			frame, ok := q.Pop()
			if !ok {
				break
			}
			if err := sess.SendDatagram(frame); err != nil {
				return
			}
		}
	}
}
