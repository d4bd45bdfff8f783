package livestream

import (
	"sync"
	"time"
)

// Source is a published live source a client can select by id.
type Source struct {
	ID       string
	Name     string
	HasVideo bool
	HasAudio bool

	mu          sync.Mutex
	subscribers map[string]*subscription // client id -> subscription
	recorder    *Recorder
}

type subscription struct {
	video *PacingQueue
	audio *PacingQueue
	abr   *ABRController
}

// Catalog is the registry of available sources, keyed by id. Grounded on
// the teacher's Room client registry (room.go) — a mutex-guarded map with
// add/remove/list operations — generalized from connected clients to
// published sources.
type Catalog struct {
	mu      sync.RWMutex
	sources map[string]*Source
}

// NewCatalog constructs an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{sources: make(map[string]*Source)}
}

// Publish registers a source in the catalog, replacing any existing entry
// with the same id.
func (c *Catalog) Publish(id, name string, hasVideo, hasAudio bool) *Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &Source{ID: id, Name: name, HasVideo: hasVideo, HasAudio: hasAudio, subscribers: make(map[string]*subscription)}
	c.sources[id] = s
	return s
}

// Unpublish removes a source from the catalog.
func (c *Catalog) Unpublish(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sources, id)
}

// Get looks up a source by id.
func (c *Catalog) Get(id string) (*Source, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sources[id]
	return s, ok
}

// List returns a snapshot of published sources.
func (c *Catalog) List() []*Source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Source, 0, len(c.sources))
	for _, s := range c.sources {
		out = append(out, s)
	}
	return out
}

// SourceNames returns the ids of currently published sources, for
// adminhttp's /api/sources.
func (c *Catalog) SourceNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.sources))
	for id := range c.sources {
		out = append(out, id)
	}
	return out
}

// Select implements the catalog/select handshake: it returns the matching
// Source and registers a per-client subscription with its own pacing
// queues and ABR controller, or an error if id is unpublished.
func (c *Catalog) Select(id, clientID string) (*Source, error) {
	c.mu.RLock()
	s, ok := c.sources[id]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownSource(id)
	}
	s.mu.Lock()
	s.subscribers[clientID] = &subscription{
		video: NewVideoPacingQueue(),
		audio: NewAudioPacingQueue(),
		abr:   NewABRController(),
	}
	s.mu.Unlock()
	return s, nil
}

// Deselect removes a client's subscription from a source.
func (s *Source) Deselect(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, clientID)
}

// PushVideo enqueues an already-encoded video frame onto every subscriber's
// video pacing queue and, if recording, feeds the recorder.
func (s *Source) PushVideo(encoded []byte) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subscribers {
		sub.video.Push(encoded, now)
	}
	if s.recorder != nil {
		s.recorder.FeedVideo(encoded)
	}
}

// PushAudio enqueues an already-encoded audio frame onto every subscriber's
// audio pacing queue and, if recording, feeds the recorder.
func (s *Source) PushAudio(encoded []byte) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subscribers {
		sub.audio.Push(encoded, now)
	}
	if s.recorder != nil {
		s.recorder.FeedAudio(encoded)
	}
}

// ObserveBufferLevel reports a subscriber's latest buffer_level feedback to
// its ABR controller and returns the resulting quality level.
func (s *Source) ObserveBufferLevel(clientID string, bufferLevel float64) (int, bool) {
	s.mu.Lock()
	sub, ok := s.subscribers[clientID]
	s.mu.Unlock()
	if !ok {
		return 0, false
	}
	return sub.abr.Observe(bufferLevel, time.Now()), true
}

// VideoQueue returns a subscriber's video pacing queue for draining by its
// send loop.
func (s *Source) VideoQueue(clientID string) (*PacingQueue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscribers[clientID]
	if !ok {
		return nil, false
	}
	return sub.video, true
}

// AudioQueue returns a subscriber's audio pacing queue for draining by its
// send loop.
func (s *Source) AudioQueue(clientID string) (*PacingQueue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscribers[clientID]
	if !ok {
		return nil, false
	}
	return sub.audio, true
}

// StartRecording attaches a Recorder to the source; subsequent pushes are
// also written to disk until StopRecording is called.
func (s *Source) StartRecording(rec *Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = rec
}

// StopRecording detaches and stops the source's recorder, if any.
func (s *Source) StopRecording() {
	s.mu.Lock()
	rec := s.recorder
	s.recorder = nil
	s.mu.Unlock()
	if rec != nil {
		rec.Stop()
	}
}
