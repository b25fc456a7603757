package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/pagination"
)

// Repository persists notification rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type listQuery struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

func (r *Repository) Create(ctx context.Context, n *models.Notification) error {
	if !n.Type.IsValid() {
		return fmt.Errorf("invalid notification type %q", n.Type)
	}
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *Repository) mine(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
}

// List returns one newest-first page and the cursor of the following page.
func (r *Repository) List(ctx context.Context, q listQuery) ([]models.Notification, *pagination.Cursor, error) {
	stmt := r.mine(ctx, q.UserID)
	if q.UnreadOnly {
		stmt = stmt.Where("read_at IS NULL")
	}
	var rows []models.Notification
	if err := pagination.Keyset(stmt, q.Cursor, q.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, q.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return page, next, nil
}

func (r *Repository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.mine(ctx, userID).Where("read_at IS NULL").Count(&n).Error
	return n, err
}

// MarkRead keeps the first read_at. The bool is false when the user owns no
// such notification.
func (r *Repository) MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) (bool, error) {
	res := r.mine(ctx, userID).
		Where("id = ?", id).
		Update("read_at", gorm.Expr("COALESCE(read_at, ?)", at))
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res := r.mine(ctx, userID).Where("read_at IS NULL").Update("read_at", at)
	return res.RowsAffected, res.Error
}

// DeleteOlderThan drops notifications created before cutoff whether read or not.
func (r *Repository) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	res := tx.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
