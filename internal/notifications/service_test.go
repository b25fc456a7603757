package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
	"github.com/angelmondragon/sitestock-backend/pkg/pagination"
)

type stubInbox struct {
	rows     []models.Notification
	next     *pagination.Cursor
	unread   int64
	found    bool
	marked   int64
	err      error
	lastList listQuery
}

func (s *stubInbox) List(_ context.Context, q listQuery) ([]models.Notification, *pagination.Cursor, error) {
	s.lastList = q
	return s.rows, s.next, s.err
}

func (s *stubInbox) CountUnread(context.Context, uuid.UUID) (int64, error) {
	return s.unread, s.err
}

func (s *stubInbox) MarkRead(context.Context, uuid.UUID, uuid.UUID, time.Time) (bool, error) {
	return s.found, s.err
}

func (s *stubInbox) MarkAllRead(context.Context, uuid.UUID, time.Time) (int64, error) {
	return s.marked, s.err
}

func newInbox(t *testing.T, store inboxStore) Service {
	t.Helper()
	svc, err := NewService(store)
	require.NoError(t, err)
	return svc
}

func TestListReturnsPageCursorAndUnreadCount(t *testing.T) {
	userID := uuid.New()
	row := models.Notification{ID: uuid.New(), UserID: userID, CreatedAt: time.Now().UTC()}
	store := &stubInbox{
		rows:   []models.Notification{row},
		next:   &pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID},
		unread: 4,
	}

	res, err := newInbox(t, store).List(context.Background(), ListParams{UserID: userID, Limit: 1, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.EqualValues(t, 4, res.Unread)
	assert.True(t, store.lastList.UnreadOnly)
	assert.Equal(t, 1, store.lastList.Limit)

	decoded, err := pagination.ParseCursor(res.Cursor)
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.Equal(t, row.ID, decoded.ID)
}

func TestListEmptyInboxRendersEmptySlice(t *testing.T) {
	res, err := newInbox(t, &stubInbox{}).List(context.Background(), ListParams{UserID: uuid.New()})
	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Cursor)
}

func TestListRejectsBadInput(t *testing.T) {
	svc := newInbox(t, &stubInbox{})

	_, err := svc.List(context.Background(), ListParams{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "not-a-cursor"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMarkRead(t *testing.T) {
	err := newInbox(t, &stubInbox{found: true}).MarkRead(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)

	err = newInbox(t, &stubInbox{}).MarkRead(context.Background(), uuid.New(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	err = newInbox(t, &stubInbox{}).MarkRead(context.Background(), uuid.New(), uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMarkAllRead(t *testing.T) {
	n, err := newInbox(t, &stubInbox{marked: 3}).MarkAllRead(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	_, err = newInbox(t, &stubInbox{err: errors.New("boom")}).MarkAllRead(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
