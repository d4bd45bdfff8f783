package conference

// NextFrame blocks until a frame is available on channel for this member,
// returning ok=false if the member's queue has been closed (disconnect).
func (m *Member) NextFrame(channel Channel) ([]byte, bool) {
	q := m.queueFor(channel)
	for {
		if f, ok := q.pop(); ok {
			return f, true
		}
		q.wait()
		if f, ok := q.pop(); ok {
			return f, true
		}
		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}
	}
}

// Close tears down all three of the member's outbound queues, unblocking
// any NextFrame callers. Called by Room.Leave's caller once the three
// physical connections are torn down.
func (m *Member) Close() {
	m.videoOut.close()
	m.audioOut.close()
	m.textOut.close()
}
