package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"hrchat-service/internal/chaterr"
	"hrchat-service/internal/models"
)

const messageColumns = `id, chat_id, sender_id, sender_type, content, attachment_url, attachment_type, is_read, read_by, created_at`

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// NewMessage carries the fields of a message about to be appended.
type NewMessage struct {
	ChatID         int64
	SenderID       *int64
	SenderType     models.SenderType
	Content        *string
	AttachmentURL  *string
	AttachmentType *string
}

// MessageRepository defines interactions for messages. Messages are
// append-only; only the read-tracking columns change after insert.
type MessageRepository interface {
	CreateMessage(ctx context.Context, in NewMessage) (models.Message, error)
	ListMessages(ctx context.Context, chatID, callerID, beforeID int64, limit int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	MarkRead(ctx context.Context, chat models.Chat, readerID, upToID int64) (int64, error)
	UnreadCount(ctx context.Context, chat models.Chat, userID int64) (int64, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB, timeout time.Duration) *MessageRepo {
	return &MessageRepo{db: db, timeout: timeout}
}

func (r *MessageRepo) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// CreateMessage appends a message. Order within the chat is fixed at insert
// by (created_at, id); the id is store-assigned so ties are serialized.
func (r *MessageRepo) CreateMessage(ctx context.Context, in NewMessage) (models.Message, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	senderType := in.SenderType
	if senderType == "" {
		senderType = models.SenderUser
	}

	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (chat_id, sender_id, sender_type, content, attachment_url, attachment_type)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING `+messageColumns,
		in.ChatID, in.SenderID, senderType, in.Content, in.AttachmentURL, in.AttachmentType).StructScan(&msg)
	return msg, chaterr.FromStore(err)
}

// ListMessages returns one descending page of the chat's messages older than
// the before cursor (newest page when beforeID is zero). The caller must be
// a current member.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID, callerID, beforeID int64, limit int) ([]models.Message, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var isMember bool
	if err := r.db.GetContext(ctx, &isMember,
		`SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id=$1 AND user_id=$2)`, chatID, callerID); err != nil {
		return nil, chaterr.FromStore(err)
	}
	if !isMember {
		return nil, chaterr.ErrNotAMember
	}

	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var msgs []models.Message
	if beforeID == 0 {
		err := r.db.SelectContext(ctx, &msgs,
			`SELECT `+messageColumns+` FROM messages WHERE chat_id=$1
             ORDER BY created_at DESC, id DESC LIMIT $2`, chatID, limit)
		return msgs, chaterr.FromStore(err)
	}

	cursor, err := r.GetMessage(ctx, beforeID)
	if err != nil {
		return nil, err
	}
	if cursor.ChatID != chatID {
		return nil, fmt.Errorf("%w: cursor message %d is not in chat %d", chaterr.ErrNotFound, beforeID, chatID)
	}

	err = r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages
         WHERE chat_id=$1 AND (created_at, id) < ($2, $3)
         ORDER BY created_at DESC, id DESC LIMIT $4`,
		chatID, cursor.CreatedAt, cursor.ID, limit)
	return msgs, chaterr.FromStore(err)
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, fmt.Errorf("%w: message %d", chaterr.ErrNotFound, messageID)
	}
	return msg, chaterr.FromStore(err)
}

// MarkRead records the reader's acknowledgment of every message up to and
// including upToID that the reader did not author. Direct chats flip the
// boolean flag; group-shaped chats add the reader to the read set. Both are
// idempotent; the return value counts only newly-marked messages.
func (r *MessageRepo) MarkRead(ctx context.Context, chat models.Chat, readerID, upToID int64) (int64, error) {
	upTo, err := r.GetMessage(ctx, upToID)
	if err != nil {
		return 0, err
	}
	if upTo.ChatID != chat.ID {
		return 0, fmt.Errorf("%w: message %d is not in chat %d", chaterr.ErrNotFound, upToID, chat.ID)
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	var res sql.Result
	if chat.Kind.UsesReaderSet() {
		res, err = r.db.ExecContext(ctx,
			`UPDATE messages SET read_by = array_append(read_by, $2)
             WHERE chat_id=$1
               AND (sender_id IS NULL OR sender_id <> $2)
               AND NOT ($2 = ANY(read_by))
               AND (created_at, id) <= ($3, $4)`,
			chat.ID, readerID, upTo.CreatedAt, upTo.ID)
	} else {
		res, err = r.db.ExecContext(ctx,
			`UPDATE messages SET is_read = TRUE
             WHERE chat_id=$1
               AND (sender_id IS NULL OR sender_id <> $2)
               AND is_read = FALSE
               AND (created_at, id) <= ($3, $4)`,
			chat.ID, readerID, upTo.CreatedAt, upTo.ID)
	}
	if err != nil {
		return 0, chaterr.FromStore(err)
	}

	n, err := res.RowsAffected()
	return n, chaterr.FromStore(err)
}

// UnreadCount counts messages in the chat not authored by the user and not
// yet acknowledged by them.
func (r *MessageRepo) UnreadCount(ctx context.Context, chat models.Chat, userID int64) (int64, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var (
		count int64
		err   error
	)
	if chat.Kind.UsesReaderSet() {
		err = r.db.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM messages
             WHERE chat_id=$1 AND (sender_id IS NULL OR sender_id <> $2) AND NOT ($2 = ANY(read_by))`,
			chat.ID, userID)
	} else {
		err = r.db.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM messages
             WHERE chat_id=$1 AND (sender_id IS NULL OR sender_id <> $2) AND is_read = FALSE`,
			chat.ID, userID)
	}
	return count, chaterr.FromStore(err)
}
