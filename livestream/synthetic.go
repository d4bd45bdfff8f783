package livestream

import (
	"context"
	"encoding/binary"
	"time"
)

// synthFrameInterval mirrors the teacher's testbot.go 20ms cadence (50 fps,
// consistent with a ~50 frame/sec voice/video tick).
const synthFrameInterval = 20 * time.Millisecond

// RunSyntheticSource publishes a source on catalog that emits framed,
// deterministic placeholder payloads on a fixed cadence until ctx is
// canceled — useful for exercising the catalog/select/pacing/ABR path
// without a real capture pipeline. Grounded on the teacher's testbot.go
// (RunTestBot): a virtual publisher driven by a ticker, using an
// incrementing sequence number as the payload rather than pre-encoded
// audio, since codec integration is out of scope.
func RunSyntheticSource(ctx context.Context, catalog *Catalog, id, name string, video, audio bool) {
	source := catalog.Publish(id, name, video, audio)
	defer catalog.Unpublish(id)

	ticker := time.NewTicker(synthFrameInterval)
	defer ticker.Stop()

	var seq uint32
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		ts := time.Since(start).Milliseconds()
		payload := make([]byte, 4)
		binary.BigEndian.PutUint32(payload, seq)
		seq++

		if video {
			source.PushVideo(EncodeVideoFrame(ts, payload))
		}
		if audio {
			source.PushAudio(EncodeAudioFrame(ts, payload))
		}
	}
}
