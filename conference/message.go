package conference

import (
	"encoding/json"
	"strings"
	"time"
)

// TextMessage is the JSON frame carried on a member's text channel, per
// spec.md §4.9.
type TextMessage struct {
	From string `json:"from"`
	Text string `json:"text"`
	Ts   int64  `json:"ts"`
}

// SystemMessage announces a mute/camera state change or membership event
// to the room.
type SystemMessage struct {
	Event string `json:"event"`
	From  string `json:"from"`
	Ts    int64  `json:"ts"`
}

// HandleTextFrame implements the text channel's control-operation and
// rebroadcast rules: a reserved "/"-prefixed command gates the sender's
// mute/video state and announces it; anything else is rebroadcast to every
// member including the sender (echo), subject to per-channel slow mode.
func (r *Room) HandleTextFrame(senderID string, msg TextMessage) {
	sender, ok := r.Member(senderID)
	if !ok {
		return
	}

	if cmd, ok := parseCommand(msg.Text); ok {
		r.applyCommand(sender, cmd)
		return
	}

	if !r.checkSlowMode(senderID) {
		return
	}
	r.broadcastAll(ChannelText, encodeText(msg))
}

func parseCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	return strings.TrimPrefix(text, "/"), true
}

func (r *Room) applyCommand(sender *Member, cmd string) {
	var event string
	switch cmd {
	case "mute":
		sender.setMuted(true)
		event = "muted"
	case "unmute":
		sender.setMuted(false)
		event = "unmuted"
	case "video_off":
		sender.setVideoOff(true)
		event = "video_off"
	case "video_on":
		sender.setVideoOff(false)
		event = "video_on"
	default:
		return
	}
	r.broadcastAll(ChannelText, encodeSystem(SystemMessage{Event: event, From: sender.ID, Ts: time.Now().UnixMilli()}))
}

// RelayVideo rebroadcasts a video frame from senderID to every other
// member, unless the sender's camera is off.
func (r *Room) RelayVideo(senderID string, frame []byte) {
	sender, ok := r.Member(senderID)
	if !ok || sender.VideoOff() {
		return
	}
	r.broadcastExcept(ChannelVideo, frame, senderID)
}

// RelayAudio rebroadcasts an audio frame from senderID to every other
// member, unless the sender is muted.
func (r *Room) RelayAudio(senderID string, frame []byte) {
	sender, ok := r.Member(senderID)
	if !ok || sender.Muted() {
		return
	}
	r.broadcastExcept(ChannelAudio, frame, senderID)
}

// NotifyDisconnect announces a member's departure as a system message to
// the remaining members.
func (r *Room) NotifyDisconnect(memberID string) {
	r.broadcastAll(ChannelText, encodeSystem(SystemMessage{Event: "left", From: memberID, Ts: time.Now().UnixMilli()}))
}

func encodeText(msg TextMessage) []byte {
	b, _ := json.Marshal(msg)
	return b
}

func encodeSystem(msg SystemMessage) []byte {
	b, _ := json.Marshal(msg)
	return b
}
