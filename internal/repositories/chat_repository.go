package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"hrchat-service/internal/authz"
	"hrchat-service/internal/chaterr"
	"hrchat-service/internal/models"
)

const chatColumns = `id, kind, name, description, created_by, direct_key, created_at, updated_at`

// ChatRepository owns persistence and invariants for chats and memberships.
// It is the only component allowed to mutate those tables.
type ChatRepository interface {
	GetChat(ctx context.Context, chatID int64) (models.Chat, error)
	ListChatsForUser(ctx context.Context, userID int64) ([]models.ChatSummary, error)
	ListChatIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	GetOrCreateDirectChat(ctx context.Context, userID, otherID int64) (models.Chat, error)
	CreateChat(ctx context.Context, creatorID int64, kind models.ChatKind, name, description string, memberIDs []int64) (models.Chat, error)
	ListMembers(ctx context.Context, chatID int64) ([]models.Membership, error)
	IsMember(ctx context.Context, chatID, userID int64) (bool, error)
	AddMembers(ctx context.Context, chatID, actorID int64, newIDs []int64) ([]models.Membership, error)
	RemoveMember(ctx context.Context, chatID, actorID, targetID int64) ([]models.Membership, error)
	MakeAdmin(ctx context.Context, chatID, actorID, targetID int64) ([]models.Membership, error)
	LeaveChat(ctx context.Context, chatID, actorID int64) (bool, []models.Membership, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewChatRepo constructs a ChatRepo. Every store call runs under the given
// bounded timeout.
func NewChatRepo(db *sqlx.DB, timeout time.Duration) *ChatRepo {
	return &ChatRepo{db: db, timeout: timeout}
}

func (r *ChatRepo) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int64) (models.Chat, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, fmt.Errorf("%w: chat %d", chaterr.ErrNotFound, chatID)
	}
	return chat, chaterr.FromStore(err)
}

// ListChatsForUser returns the user's chats annotated with the latest message
// preview and the user's unread count, most recent activity first.
func (r *ChatRepo) ListChatsForUser(ctx context.Context, userID int64) ([]models.ChatSummary, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `SELECT c.id, c.kind, c.name, c.description, c.created_by, c.direct_key, c.created_at, c.updated_at,
            lm.id, lm.sender_id, lm.sender_type, lm.content, lm.attachment_url, lm.attachment_type, lm.is_read, lm.read_by, lm.created_at,
            (SELECT COUNT(*) FROM messages u
              WHERE u.chat_id = c.id
                AND (u.sender_id IS NULL OR u.sender_id <> $1)
                AND CASE WHEN c.kind = 'direct' THEN u.is_read = FALSE
                         ELSE NOT ($1 = ANY(u.read_by)) END) AS unread
        FROM chats c
        INNER JOIN chat_members cm ON cm.chat_id = c.id AND cm.user_id = $1
        LEFT JOIN LATERAL (
            SELECT m.id, m.sender_id, m.sender_type, m.content, m.attachment_url, m.attachment_type, m.is_read, m.read_by, m.created_at
            FROM messages m
            WHERE m.chat_id = c.id
            ORDER BY m.created_at DESC, m.id DESC
            LIMIT 1
        ) lm ON TRUE
        ORDER BY COALESCE(lm.created_at, c.created_at) DESC`

	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, chaterr.FromStore(err)
	}
	defer rows.Close()

	var result []models.ChatSummary
	for rows.Next() {
		var (
			s          models.ChatSummary
			lastID     sql.NullInt64
			senderID   sql.NullInt64
			senderType sql.NullString
			content    sql.NullString
			attURL     sql.NullString
			attType    sql.NullString
			isRead     sql.NullBool
			readBy     pq.Int64Array
			lastAt     sql.NullTime
		)
		if err := rows.Scan(
			&s.ID, &s.Kind, &s.Name, &s.Description, &s.CreatedBy, &s.DirectKey, &s.CreatedAt, &s.UpdatedAt,
			&lastID, &senderID, &senderType, &content, &attURL, &attType, &isRead, &readBy, &lastAt,
			&s.UnreadCount,
		); err != nil {
			return nil, chaterr.FromStore(err)
		}
		if lastID.Valid {
			msg := models.Message{
				ID:         lastID.Int64,
				ChatID:     s.ID,
				SenderType: models.SenderType(senderType.String),
				IsRead:     isRead.Bool,
				ReadBy:     readBy,
				CreatedAt:  lastAt.Time,
			}
			if senderID.Valid {
				msg.SenderID = &senderID.Int64
			}
			if content.Valid {
				msg.Content = &content.String
			}
			if attURL.Valid {
				msg.AttachmentURL = &attURL.String
			}
			if attType.Valid {
				msg.AttachmentType = &attType.String
			}
			s.LastMessage = &msg
		}
		result = append(result, s)
	}
	return result, chaterr.FromStore(rows.Err())
}

// ListChatIDsForUser returns the ids of every chat the user belongs to. Used
// by the gateway to compute room assignment at connect time.
func (r *ChatRepo) ListChatIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `SELECT chat_id FROM chat_members WHERE user_id=$1`, userID)
	return ids, chaterr.FromStore(err)
}

// GetOrCreateDirectChat returns the existing direct chat between the pair or
// atomically creates it together with both membership rows. Concurrent calls
// from both ends converge on one chat through the unique direct_key.
func (r *ChatRepo) GetOrCreateDirectChat(ctx context.Context, userID, otherID int64) (models.Chat, error) {
	if userID == otherID {
		return models.Chat{}, fmt.Errorf("%w: direct chat requires two distinct users", chaterr.ErrInvalidChatKind)
	}
	ctx, cancel := r.bound(ctx)
	defer cancel()

	low, high := userID, otherID
	if low > high {
		low, high = high, low
	}
	key := fmt.Sprintf("%d:%d", low, high)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, chaterr.FromStore(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var chat models.Chat
	err = tx.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE direct_key=$1`, key)
	if err == nil {
		err = tx.Commit()
		return chat, chaterr.FromStore(err)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, chaterr.FromStore(err)
	}

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO chats (kind, created_by, direct_key) VALUES ('direct', $1, $2)
         ON CONFLICT (direct_key) DO NOTHING
         RETURNING `+chatColumns, userID, key).StructScan(&chat)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race: the other end's insert committed first.
		if err = tx.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE direct_key=$1`, key); err != nil {
			return models.Chat{}, chaterr.FromStore(err)
		}
		err = tx.Commit()
		return chat, chaterr.FromStore(err)
	}
	if err != nil {
		return models.Chat{}, chaterr.FromStore(err)
	}

	for _, id := range []int64{low, high} {
		if _, err = tx.ExecContext(ctx, `INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)`, chat.ID, id); err != nil {
			return models.Chat{}, chaterr.FromStore(err)
		}
	}

	err = tx.Commit()
	return chat, chaterr.FromStore(err)
}

// CreateChat creates a group, space or announcement chat with the creator as
// the sole initial admin.
func (r *ChatRepo) CreateChat(ctx context.Context, creatorID int64, kind models.ChatKind, name, description string, memberIDs []int64) (models.Chat, error) {
	if !kind.Valid() || kind == models.ChatKindDirect {
		return models.Chat{}, fmt.Errorf("%w: %q", chaterr.ErrInvalidChatKind, kind)
	}
	if kind.RequiresName() && name == "" {
		return models.Chat{}, fmt.Errorf("%w: %s chat requires a name", chaterr.ErrInvalidChatKind, kind)
	}
	if (kind == models.ChatKindGroup || kind == models.ChatKindSpace) && len(memberIDs) == 0 {
		return models.Chat{}, chaterr.ErrEmptyMembership
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, chaterr.FromStore(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var desc *string
	if description != "" {
		desc = &description
	}

	var chat models.Chat
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO chats (kind, name, description, created_by) VALUES ($1, $2, $3, $4) RETURNING `+chatColumns,
		kind, name, desc, creatorID).StructScan(&chat)
	if err != nil {
		return models.Chat{}, chaterr.FromStore(err)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO chat_members (chat_id, user_id, is_admin) VALUES ($1, $2, TRUE)`, chat.ID, creatorID); err != nil {
		return models.Chat{}, chaterr.FromStore(err)
	}
	for _, id := range dedupe(memberIDs) {
		if id == creatorID {
			continue
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)`, chat.ID, id); err != nil {
			return models.Chat{}, chaterr.FromStore(err)
		}
	}

	err = tx.Commit()
	return chat, chaterr.FromStore(err)
}

// ListMembers returns the chat's membership rows.
func (r *ChatRepo) ListMembers(ctx context.Context, chatID int64) ([]models.Membership, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var members []models.Membership
	err := r.db.SelectContext(ctx, &members,
		`SELECT chat_id, user_id, is_admin, joined_at FROM chat_members WHERE chat_id=$1 ORDER BY joined_at, user_id`, chatID)
	return members, chaterr.FromStore(err)
}

// IsMember checks whether a user belongs to the chat.
func (r *ChatRepo) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id=$1 AND user_id=$2)`, chatID, userID)
	return exists, chaterr.FromStore(err)
}

// AddMembers adds the given users to the chat. Users that are already
// members are a no-op, not an error.
func (r *ChatRepo) AddMembers(ctx context.Context, chatID, actorID int64, newIDs []int64) ([]models.Membership, error) {
	return r.mutateMembership(ctx, chatID, func(ctx context.Context, tx *sqlx.Tx, chat models.Chat, members []models.Membership) error {
		if err := authz.Decide(chat.Kind, members, actorID, authz.ActionAddMembers, 0); err != nil {
			return err
		}
		for _, id := range dedupe(newIDs) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)
                 ON CONFLICT (chat_id, user_id) DO NOTHING`, chatID, id); err != nil {
				return chaterr.FromStore(err)
			}
		}
		return nil
	})
}

// RemoveMember removes the target from the chat.
func (r *ChatRepo) RemoveMember(ctx context.Context, chatID, actorID, targetID int64) ([]models.Membership, error) {
	return r.mutateMembership(ctx, chatID, func(ctx context.Context, tx *sqlx.Tx, chat models.Chat, members []models.Membership) error {
		if err := authz.Decide(chat.Kind, members, actorID, authz.ActionRemoveMember, targetID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM chat_members WHERE chat_id=$1 AND user_id=$2`, chatID, targetID)
		return chaterr.FromStore(err)
	})
}

// MakeAdmin grants the admin flag to the target. Idempotent.
func (r *ChatRepo) MakeAdmin(ctx context.Context, chatID, actorID, targetID int64) ([]models.Membership, error) {
	return r.mutateMembership(ctx, chatID, func(ctx context.Context, tx *sqlx.Tx, chat models.Chat, members []models.Membership) error {
		if err := authz.Decide(chat.Kind, members, actorID, authz.ActionMakeAdmin, targetID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE chat_members SET is_admin = TRUE WHERE chat_id=$1 AND user_id=$2`, chatID, targetID)
		return chaterr.FromStore(err)
	})
}

// LeaveChat removes the actor. Leaving a direct chat, or leaving as the last
// member, deletes the chat and its messages; the first return value reports
// that case.
func (r *ChatRepo) LeaveChat(ctx context.Context, chatID, actorID int64) (bool, []models.Membership, error) {
	var deleted bool
	members, err := r.mutateMembership(ctx, chatID, func(ctx context.Context, tx *sqlx.Tx, chat models.Chat, members []models.Membership) error {
		if err := authz.Decide(chat.Kind, members, actorID, authz.ActionLeave, 0); err != nil {
			return err
		}
		if chat.Kind == models.ChatKindDirect || len(members) <= 1 {
			deleted = true
			_, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id=$1`, chatID)
			return chaterr.FromStore(err)
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM chat_members WHERE chat_id=$1 AND user_id=$2`, chatID, actorID)
		return chaterr.FromStore(err)
	})
	return deleted, members, err
}

// mutateMembership runs one membership mutation inside a transaction that
// locks the chat row and re-reads the membership snapshot used for
// authorization, so a stale approval cannot survive a concurrent change.
func (r *ChatRepo) mutateMembership(ctx context.Context, chatID int64, fn func(ctx context.Context, tx *sqlx.Tx, chat models.Chat, members []models.Membership) error) ([]models.Membership, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, chaterr.FromStore(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var chat models.Chat
	err = tx.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1 FOR UPDATE`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%w: chat %d", chaterr.ErrNotFound, chatID)
		return nil, err
	}
	if err != nil {
		return nil, chaterr.FromStore(err)
	}

	var members []models.Membership
	if err = tx.SelectContext(ctx, &members,
		`SELECT chat_id, user_id, is_admin, joined_at FROM chat_members WHERE chat_id=$1 ORDER BY joined_at, user_id FOR UPDATE`, chatID); err != nil {
		return nil, chaterr.FromStore(err)
	}

	if err = fn(ctx, tx, chat, members); err != nil {
		return nil, err
	}

	var updated []models.Membership
	if err = tx.SelectContext(ctx, &updated,
		`SELECT chat_id, user_id, is_admin, joined_at FROM chat_members WHERE chat_id=$1 ORDER BY joined_at, user_id`, chatID); err != nil {
		return nil, chaterr.FromStore(err)
	}

	if err = tx.Commit(); err != nil {
		return nil, chaterr.FromStore(err)
	}
	return updated, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
