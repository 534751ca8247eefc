package models

import "time"

// ChatKind discriminates conversation behavior: membership rules, read
// tracking shape and posting rights all key off it.
type ChatKind string

const (
	ChatKindDirect       ChatKind = "direct"
	ChatKindGroup        ChatKind = "group"
	ChatKindSpace        ChatKind = "space"
	ChatKindAnnouncement ChatKind = "announcement"
)

// Valid reports whether the kind is one of the persisted values.
func (k ChatKind) Valid() bool {
	switch k {
	case ChatKindDirect, ChatKindGroup, ChatKindSpace, ChatKindAnnouncement:
		return true
	}
	return false
}

// RequiresName reports whether a chat of this kind must carry a name.
func (k ChatKind) RequiresName() bool {
	return k == ChatKindGroup || k == ChatKindSpace || k == ChatKindAnnouncement
}

// UsesReaderSet reports whether read tracking is a per-user set rather than
// the single boolean used by direct chats.
func (k ChatKind) UsesReaderSet() bool {
	return k != ChatKindDirect
}

// Chat represents a persistent conversation.
type Chat struct {
	ID          int64     `db:"id" json:"id"`
	Kind        ChatKind  `db:"kind" json:"kind"`
	Name        *string   `db:"name" json:"name,omitempty"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedBy   int64     `db:"created_by" json:"created_by"`
	DirectKey   *string   `db:"direct_key" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Membership is one user's row in a chat.
type Membership struct {
	ChatID   int64     `db:"chat_id" json:"chat_id"`
	UserID   int64     `db:"user_id" json:"user_id"`
	IsAdmin  bool      `db:"is_admin" json:"is_admin"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// ChatSummary is the API view of a chat in the caller's list: the chat plus
// its latest message preview and the caller's unread count.
type ChatSummary struct {
	Chat
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int64    `json:"unread_count"`
}
