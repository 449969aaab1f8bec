package wire

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Event websocket frame event name
type Event string

const (
	// EventJoin client requests room membership
	EventJoin Event = "chat:join"
	// EventLeave client drops room membership
	EventLeave Event = "chat:leave"
	// EventSend client submits a message, acked by EventAck
	EventSend Event = "chat:send"
	// EventAck server ack for EventSend (delivery-to-server, not to peers)
	EventAck Event = "chat:ack"
	// EventMessage server fan-out of a persisted message
	EventMessage Event = "chat:message"
	// EventTyping ephemeral typing signal, both directions
	EventTyping Event = "chat:typing"
	// EventPresence server broadcast of a user going online/offline
	EventPresence Event = "presence:state"
)

// AckCode result code carried by EventAck
type AckCode string

const (
	// AckOK message accepted and persisted
	AckOK AckCode = "ok"
	// AckInvalidMessage empty or oversized content
	AckInvalidMessage AckCode = "invalid_message"
	// AckRoomRejected room name refused by the server
	AckRoomRejected AckCode = "room_rejected"
	// AckInternal persistence or fan-out failure
	AckInternal AckCode = "internal"
)

const (
	// MaxContentLen message content limit in characters
	MaxContentLen = 1000
	// MaxRoomLen room name length limit
	MaxRoomLen = 64
)

var roomPattern = regexp.MustCompile(fmt.Sprintf(`^[a-zA-Z0-9_.:-]{1,%d}$`, MaxRoomLen))

// ValidRoom report whether a room name is acceptable for join/send
func ValidRoom(room string) bool {
	return roomPattern.MatchString(room)
}

// ValidContent trim content and report whether it is sendable
func ValidContent(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || len([]rune(trimmed)) > MaxContentLen {
		return trimmed, false
	}
	return trimmed, true
}

// Attachment optional single file reference carried by a message
type Attachment struct {
	URL      string `bson:"url" json:"url"`
	Name     string `bson:"name" json:"name"`
	Size     int64  `bson:"size" json:"size"`
	MimeType string `bson:"mime_type,omitempty" json:"mime_type,omitempty"`
}

// Message one persisted chat utterance as it travels on the wire
type Message struct {
	ID         string      `bson:"_id" json:"id"`
	Room       string      `bson:"room" json:"room"`
	UserID     string      `bson:"user_id" json:"user_id"`
	UserName   string      `bson:"user_name,omitempty" json:"user_name,omitempty"`
	Content    string      `bson:"content" json:"content"`
	Attachment *Attachment `bson:"attachment,omitempty" json:"attachment,omitempty"`
	// CreatedAt unix milliseconds, server assigned, non-decreasing per room
	CreatedAt int64 `bson:"created_at" json:"created_at"`
}

// Typing ephemeral typing tuple, latest value wins per (room, user)
type Typing struct {
	Room     string `json:"room"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
	Typing   bool   `json:"typing"`
}

// Presence user online/offline announcement
type Presence struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// Envelope one websocket frame
type Envelope struct {
	Event Event `json:"event"`
	// Seq client correlation id for EventSend / EventAck
	Seq  string `json:"seq,omitempty"`
	Room string `json:"room,omitempty"`

	// EventSend fields
	Content    string      `json:"content,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`

	// EventAck fields
	Code      AckCode `json:"code,omitempty"`
	Error     string  `json:"error,omitempty"`
	MessageID string  `json:"message_id,omitempty"`

	// server to client payloads
	Message  *Message  `json:"message,omitempty"`
	Typing   *Typing   `json:"typing,omitempty"`
	Presence *Presence `json:"presence,omitempty"`
}

// Encode marshal the envelope for the transport
func (e Envelope) Encode() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Decode unmarshal one frame
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}
