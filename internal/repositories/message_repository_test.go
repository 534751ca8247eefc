package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrchat-service/internal/chaterr"
	"hrchat-service/internal/models"
)

func newMessageRepoMock(t *testing.T) (*MessageRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMessageRepo(sqlx.NewDb(db, "sqlmock"), time.Second), mock
}

func messageRows(id, chatID, senderID int64, at time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "chat_id", "sender_id", "sender_type", "content",
		"attachment_url", "attachment_type", "is_read", "read_by", "created_at",
	}).AddRow(id, chatID, senderID, "user", "hello", nil, nil, false, []byte("{}"), at)
}

func expectGetMessage(mock sqlmock.Sqlmock, id, chatID, senderID int64, at time.Time) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+messageColumns+` FROM messages WHERE id=$1`)).
		WithArgs(id).
		WillReturnRows(messageRows(id, chatID, senderID, at))
}

func TestMarkReadGroupAppendsReaderOnce(t *testing.T) {
	repo, mock := newMessageRepoMock(t)
	chat := models.Chat{ID: 5, Kind: models.ChatKindGroup}
	at := time.Now()

	// First acknowledgment marks three rows; repeating it matches nothing
	// because the reader is already in every read set.
	expectGetMessage(mock, 42, 5, 1, at)
	mock.ExpectExec(regexp.QuoteMeta(`NOT ($2 = ANY(read_by))`)).
		WithArgs(int64(5), int64(2), at, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	expectGetMessage(mock, 42, 5, 1, at)
	mock.ExpectExec(regexp.QuoteMeta(`NOT ($2 = ANY(read_by))`)).
		WithArgs(int64(5), int64(2), at, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.MarkRead(context.Background(), chat, 2, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = repo.MarkRead(context.Background(), chat, 2, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadDirectFlipsUnreadFlag(t *testing.T) {
	repo, mock := newMessageRepoMock(t)
	chat := models.Chat{ID: 7, Kind: models.ChatKindDirect}
	at := time.Now()

	expectGetMessage(mock, 42, 7, 1, at)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE messages SET is_read = TRUE`)).
		WithArgs(int64(7), int64(2), at, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.MarkRead(context.Background(), chat, 2, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadRejectsForeignCursor(t *testing.T) {
	repo, mock := newMessageRepoMock(t)

	expectGetMessage(mock, 42, 9, 1, time.Now())

	_, err := repo.MarkRead(context.Background(), models.Chat{ID: 5, Kind: models.ChatKindGroup}, 2, 42)
	require.ErrorIs(t, err, chaterr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListMessagesNonMember(t *testing.T) {
	repo, mock := newMessageRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id=$1 AND user_id=$2)`)).
		WithArgs(int64(5), int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := repo.ListMessages(context.Background(), 5, 9, 0, 50)
	require.ErrorIs(t, err, chaterr.ErrNotAMember)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListMessagesNewestPageDefaultsLimit(t *testing.T) {
	repo, mock := newMessageRepoMock(t)
	at := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id=$1 AND user_id=$2)`)).
		WithArgs(int64(5), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC, id DESC LIMIT $2`)).
		WithArgs(int64(5), defaultPageSize).
		WillReturnRows(messageRows(42, 5, 1, at))

	msgs, err := repo.ListMessages(context.Background(), 5, 2, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(42), msgs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListMessagesPagesBeforeCursor(t *testing.T) {
	repo, mock := newMessageRepoMock(t)
	at := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id=$1 AND user_id=$2)`)).
		WithArgs(int64(5), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	expectGetMessage(mock, 42, 5, 1, at)
	// The page is keyed on the cursor's (created_at, id), not on the id
	// alone, so equal-timestamp rows page correctly.
	mock.ExpectQuery(regexp.QuoteMeta(`(created_at, id) < ($2, $3)`)).
		WithArgs(int64(5), at, int64(42), 10).
		WillReturnRows(messageRows(41, 5, 1, at.Add(-time.Minute)))

	msgs, err := repo.ListMessages(context.Background(), 5, 2, 42, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(41), msgs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListMessagesRejectsCursorFromOtherChat(t *testing.T) {
	repo, mock := newMessageRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id=$1 AND user_id=$2)`)).
		WithArgs(int64(5), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	expectGetMessage(mock, 42, 9, 1, time.Now())

	_, err := repo.ListMessages(context.Background(), 5, 2, 42, 10)
	require.ErrorIs(t, err, chaterr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
