package conference

import (
	"encoding/json"
	"testing"
	"time"
)

func popText(t *testing.T, m *Member) TextMessage {
	t.Helper()
	frame, ok := m.queueFor(ChannelText).pop()
	if !ok {
		t.Fatalf("expected a text frame for %s", m.ID)
	}
	var msg TextMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		t.Fatalf("not a text message: %v (%s)", err, frame)
	}
	return msg
}

// TestScenarioRoomIsolationAndMute mirrors spec scenario S5: Alice and Bob
// join room "m", Carol joins room "n". Alice's chat reaches Bob but not
// Carol. Alice's /mute gates her audio rebroadcast until /unmute.
func TestScenarioRoomIsolationAndMute(t *testing.T) {
	reg := NewRegistry()
	roomM, alice := reg.JoinRoom("m", "alice", "Alice")
	_, bob := reg.JoinRoom("m", "bob", "Bob")
	roomN, carol := reg.JoinRoom("n", "carol", "Carol")

	roomM.HandleTextFrame(alice.ID, TextMessage{From: "alice", Text: "hi", Ts: 1})

	got := popText(t, bob)
	if got.Text != "hi" {
		t.Fatalf("bob expected to receive 'hi', got %+v", got)
	}
	if _, ok := carol.queueFor(ChannelText).pop(); ok {
		t.Fatal("carol (room n) should not receive room m's chat")
	}
	_ = roomN

	roomM.RelayAudio(alice.ID, []byte("voice1"))
	if _, ok := bob.queueFor(ChannelAudio).pop(); !ok {
		t.Fatal("expected bob to receive alice's audio before mute")
	}

	roomM.HandleTextFrame(alice.ID, TextMessage{From: "alice", Text: "/mute", Ts: 2})
	if !alice.Muted() {
		t.Fatal("expected alice to be muted")
	}
	roomM.RelayAudio(alice.ID, []byte("voice2"))
	if _, ok := bob.queueFor(ChannelAudio).pop(); ok {
		t.Fatal("expected no audio rebroadcast while alice is muted")
	}

	roomM.HandleTextFrame(alice.ID, TextMessage{From: "alice", Text: "/unmute", Ts: 3})
	if alice.Muted() {
		t.Fatal("expected alice to be unmuted")
	}
	roomM.RelayAudio(alice.ID, []byte("voice3"))
	if _, ok := bob.queueFor(ChannelAudio).pop(); !ok {
		t.Fatal("expected audio rebroadcast to resume after unmute")
	}
}

func TestTextEchoIncludesSender(t *testing.T) {
	reg := NewRegistry()
	room, alice := reg.JoinRoom("m", "alice", "Alice")
	room.HandleTextFrame(alice.ID, TextMessage{From: "alice", Text: "hello", Ts: 1})
	got := popText(t, alice)
	if got.Text != "hello" {
		t.Fatalf("expected sender to receive echo of own message, got %+v", got)
	}
}

func TestVideoOffGatesRelay(t *testing.T) {
	reg := NewRegistry()
	room, alice := reg.JoinRoom("m", "alice", "Alice")
	_, bob := reg.JoinRoom("m", "bob", "Bob")

	room.HandleTextFrame(alice.ID, TextMessage{From: "alice", Text: "/video_off", Ts: 1})
	room.RelayVideo(alice.ID, []byte("frame1"))
	if _, ok := bob.queueFor(ChannelVideo).pop(); ok {
		t.Fatal("expected no video rebroadcast while camera is off")
	}

	room.HandleTextFrame(alice.ID, TextMessage{From: "alice", Text: "/video_on", Ts: 2})
	room.RelayVideo(alice.ID, []byte("frame2"))
	if _, ok := bob.queueFor(ChannelVideo).pop(); !ok {
		t.Fatal("expected video rebroadcast to resume")
	}
}

func TestDisconnectRemovesMemberAndDestroysEmptyRoom(t *testing.T) {
	reg := NewRegistry()
	_, alice := reg.JoinRoom("m", "alice", "Alice")
	if reg.RoomCount() != 1 {
		t.Fatalf("expected 1 live room, got %d", reg.RoomCount())
	}
	reg.LeaveRoom("m", alice.ID)
	if reg.RoomCount() != 0 {
		t.Fatalf("expected room destroyed once empty, got %d rooms", reg.RoomCount())
	}
}

func TestSlowModeThrottlesSender(t *testing.T) {
	reg := NewRegistry()
	room, alice := reg.JoinRoom("m", "alice", "Alice")
	_, bob := reg.JoinRoom("m", "bob", "Bob")
	room.SetSlowMode(60)

	room.HandleTextFrame(alice.ID, TextMessage{From: "alice", Text: "first", Ts: 1})
	if _, ok := bob.queueFor(ChannelText).pop(); !ok {
		t.Fatal("expected first message to go through")
	}
	room.HandleTextFrame(alice.ID, TextMessage{From: "alice", Text: "second", Ts: 2})
	if _, ok := bob.queueFor(ChannelText).pop(); ok {
		t.Fatal("expected second message to be throttled by slow mode")
	}
}

func TestOwnershipTransfersOnOwnerLeave(t *testing.T) {
	reg := NewRegistry()
	room, alice := reg.JoinRoom("m", "alice", "Alice")
	_, bob := reg.JoinRoom("m", "bob", "Bob")
	if room.OwnerID() != alice.ID {
		t.Fatalf("expected alice to be initial owner, got %s", room.OwnerID())
	}
	reg.LeaveRoom("m", alice.ID)
	if room.OwnerID() != bob.ID {
		t.Fatalf("expected ownership to transfer to bob, got %s", room.OwnerID())
	}
}

func TestReactionsAddRemoveIdempotent(t *testing.T) {
	reg := NewRegistry()
	room, _ := reg.JoinRoom("m", "alice", "Alice")
	room.AddReaction("msg1", "bob", "+1")
	room.AddReaction("msg1", "bob", "+1") // duplicate, no-op
	if got := room.Reactions("msg1"); len(got) != 1 {
		t.Fatalf("expected 1 reaction, got %d", len(got))
	}
	room.RemoveReaction("msg1", "bob", "+1")
	if got := room.Reactions("msg1"); len(got) != 0 {
		t.Fatalf("expected 0 reactions after remove, got %d", len(got))
	}
}

func TestPinUnpin(t *testing.T) {
	reg := NewRegistry()
	room, _ := reg.JoinRoom("m", "alice", "Alice")
	room.Pin("msg1", "alice")
	pins := room.PinnedMessages()
	if len(pins) != 1 || pins[0].MsgID != "msg1" {
		t.Fatalf("unexpected pins: %+v", pins)
	}
	room.Unpin("msg1")
	if len(room.PinnedMessages()) != 0 {
		t.Fatal("expected no pins after unpin")
	}
}

func TestRenameRequiresOwner(t *testing.T) {
	reg := NewRegistry()
	room, alice := reg.JoinRoom("m", "alice", "Alice")
	_, bob := reg.JoinRoom("m", "bob", "Bob")

	if room.Rename(bob.ID, "new-name") {
		t.Fatal("expected non-owner rename to fail")
	}
	if !room.Rename(alice.ID, "new-name") {
		t.Fatal("expected owner rename to succeed")
	}
	if room.Name != "new-name" {
		t.Fatalf("expected room renamed, got %q", room.Name)
	}
}

func TestKickRequiresOwner(t *testing.T) {
	reg := NewRegistry()
	room, alice := reg.JoinRoom("m", "alice", "Alice")
	_, bob := reg.JoinRoom("m", "bob", "Bob")

	if room.Kick(bob.ID, alice.ID) {
		t.Fatal("expected non-owner kick to fail")
	}
	if !room.Kick(alice.ID, bob.ID) {
		t.Fatal("expected owner kick to succeed")
	}
	if _, ok := room.Member(bob.ID); ok {
		t.Fatal("expected bob removed after kick")
	}
	_ = time.Now()
}
