package livestream

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// MaxRecordingDuration bounds how long a single recording runs before it is
// auto-stopped, mirroring the teacher's recording.go safety cap.
const MaxRecordingDuration = 2 * time.Hour

// Info reports metadata about a completed or in-progress recording.
type Info struct {
	ID         string
	SourceID   string
	StartedAt  time.Time
	StoppedAt  time.Time
	FileName   string
	FileSize   int64
	VideoCount uint64
	AudioCount uint64
}

// Recorder captures a source's pushed video/audio frames to a single flat
// file, writing each frame's bytes exactly as pushed (the EncodeVideoFrame /
// EncodeAudioFrame wire encoding, not a codec container — codec
// integration is out of scope). Grounded on the
// teacher's recording.go ChannelRecorder: mutex-guarded writer, a
// max-duration timer, Stop idempotency, and an Info snapshot.
type Recorder struct {
	mu         sync.Mutex
	sourceID   string
	startedAt  time.Time
	file       *os.File
	stopped    bool
	maxTimer   *time.Timer
	videoCount uint64
	audioCount uint64
}

// StartRecording begins recording sourceID's frames to dataDir, auto-stopping
// after MaxRecordingDuration and invoking stopFn (if non-nil) when that
// happens.
func StartRecording(sourceID, dataDir string, stopFn func()) (*Recorder, error) {
	dir := filepath.Join(dataDir, "recordings")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("livestream: create recordings dir: %w", err)
	}
	now := time.Now()
	filename := fmt.Sprintf("%s_%s.frames", sourceID, now.Format("20060102_150405"))
	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("livestream: create recording file: %w", err)
	}

	r := &Recorder{sourceID: sourceID, startedAt: now, file: f}
	r.maxTimer = time.AfterFunc(MaxRecordingDuration, func() {
		log.Printf("[livestream] source %s: max recording duration reached, auto-stopping", sourceID)
		r.Stop()
		if stopFn != nil {
			stopFn()
		}
	})
	log.Printf("[livestream] source %s: recording started, file=%s", sourceID, filename)
	return r, nil
}

// FeedVideo appends an already-framed video frame to the recording.
func (r *Recorder) FeedVideo(framed []byte) { r.feed(framed, true) }

// FeedAudio appends an already-framed audio frame to the recording.
func (r *Recorder) FeedAudio(framed []byte) { r.feed(framed, false) }

func (r *Recorder) feed(framed []byte, video bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	if _, err := r.file.Write(framed); err != nil {
		log.Printf("[livestream] source %s: write error: %v", r.sourceID, err)
		return
	}
	if video {
		r.videoCount++
	} else {
		r.audioCount++
	}
}

// Stop ends the recording and closes the file. Safe to call more than once.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	if r.maxTimer != nil {
		r.maxTimer.Stop()
	}
	if r.file != nil {
		r.file.Close()
	}
	log.Printf("[livestream] source %s: recording stopped, %d video / %d audio frames",
		r.sourceID, r.videoCount, r.audioCount)
}

// Info returns a snapshot of the recording's metadata.
func (r *Recorder) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := Info{
		ID:         filepath.Base(r.file.Name()),
		SourceID:   r.sourceID,
		StartedAt:  r.startedAt,
		FileName:   filepath.Base(r.file.Name()),
		VideoCount: r.videoCount,
		AudioCount: r.audioCount,
	}
	if r.stopped {
		info.StoppedAt = time.Now()
		if fi, err := os.Stat(r.file.Name()); err == nil {
			info.FileSize = fi.Size()
		}
	}
	return info
}
