package models

import (
	"time"

	"github.com/lib/pq"
)

// SenderType distinguishes human messages from system and bot generated ones.
// System and bot messages carry no sender reference.
type SenderType string

const (
	SenderUser   SenderType = "user"
	SenderSystem SenderType = "system"
	SenderBot    SenderType = "bot"
)

// Message is one append-only row in a chat. Content is immutable once
// written; only the read-tracking columns may change afterwards.
type Message struct {
	ID             int64         `db:"id" json:"id"`
	ChatID         int64         `db:"chat_id" json:"chat_id"`
	SenderID       *int64        `db:"sender_id" json:"sender_id,omitempty"`
	SenderType     SenderType    `db:"sender_type" json:"sender_type"`
	Content        *string       `db:"content" json:"content,omitempty"`
	AttachmentURL  *string       `db:"attachment_url" json:"attachment_url,omitempty"`
	AttachmentType *string       `db:"attachment_type" json:"attachment_type,omitempty"`
	IsRead         bool          `db:"is_read" json:"is_read"`
	ReadBy         pq.Int64Array `db:"read_by" json:"read_by"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// SentBy reports whether the message was authored by the given user.
func (m Message) SentBy(userID int64) bool {
	return m.SenderID != nil && *m.SenderID == userID
}

// ReadStateKind tags the shape of a message's read tracking.
type ReadStateKind int

const (
	// ReadFlag is the direct-chat shape: a single boolean meaning the one
	// other participant has read the message.
	ReadFlag ReadStateKind = iota
	// ReadSet is the group/space/announcement shape: the set of user ids
	// that have acknowledged the message.
	ReadSet
)

// ReadState is the tagged read-tracking variant selected by the chat kind.
type ReadState struct {
	Kind    ReadStateKind `json:"kind"`
	Read    bool          `json:"read,omitempty"`
	Readers []int64       `json:"readers,omitempty"`
}

// ReadState projects the persisted columns into the variant for the kind.
func (m Message) ReadState(kind ChatKind) ReadState {
	if kind.UsesReaderSet() {
		return ReadState{Kind: ReadSet, Readers: m.ReadBy}
	}
	return ReadState{Kind: ReadFlag, Read: m.IsRead}
}

// ReadByUser reports whether the given user has acknowledged the message.
func (s ReadState) ReadByUser(userID int64) bool {
	if s.Kind == ReadFlag {
		return s.Read
	}
	for _, id := range s.Readers {
		if id == userID {
			return true
		}
	}
	return false
}
