package models

// Event types fanned out to a chat's room. A client that reconnects must
// catch up over REST; the gateway keeps no per-connection backlog.
const (
	EventMessageNew     = "message.new"
	EventMessageRead    = "message.read"
	EventMemberAdded    = "member.added"
	EventMemberRemoved  = "member.removed"
	EventMemberPromoted = "member.promoted"
	EventChatLeft       = "chat.left"
	// EventResubscribe is pushed to a user's own connections when their
	// membership changed mid-session and the gateway re-mapped their rooms.
	EventResubscribe = "chat.resubscribe"
	EventError       = "error"
)

// Event is broadcast through websockets.
type Event struct {
	Type          string       `json:"type"`
	ChatID        int64        `json:"chat_id,omitempty"`
	Message       *Message     `json:"message,omitempty"`
	UserID        int64        `json:"user_id,omitempty"`
	UpToMessageID int64        `json:"up_to_message_id,omitempty"`
	Members       []Membership `json:"members,omitempty"`
	Error         string       `json:"error,omitempty"`
}
