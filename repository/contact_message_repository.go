package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jashub/parcelhub/models"
	"github.com/jashub/parcelhub/utils"
	"gorm.io/gorm"
)

// ContactMessageRepositoryImpl implements ContactMessageRepository interface
type ContactMessageRepositoryImpl struct {
	*BaseRepository[models.ContactMessage, models.ContactMessageFilter]
}

// NewContactMessageRepository creates a new contact message repository
func NewContactMessageRepository(db *gorm.DB) ContactMessageRepository {
	return &ContactMessageRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ContactMessage, models.ContactMessageFilter](db),
	}
}

func (r *ContactMessageRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.ContactMessage, error) {
	parsed, err := utils.ParseUUID(uuidStr)
	if err != nil {
		return nil, err
	}
	rows, err := r.ByFilter(ctx, models.ContactMessageFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// MarkRead stamps read_at once; already-read messages keep their original timestamp
func (r *ContactMessageRepositoryImpl) MarkRead(ctx context.Context, id uint, at time.Time) error {
	_, err := r.updateColumns(ctx, map[string]any{"read_at": at.UTC()}, "id = ? AND read_at IS NULL", id)
	return err
}

func (r *ContactMessageRepositoryImpl) Delete(ctx context.Context, id uint) (bool, error) {
	n, err := r.deleteWhere(ctx, "id = ?", id)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *ContactMessageRepositoryImpl) applyFilter(query *gorm.DB, filter models.ContactMessageFilter) *gorm.DB {
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Email != nil {
		query = query.Where("LOWER(email) = LOWER(?)", *filter.Email)
	}
	if filter.Unread != nil {
		if *filter.Unread {
			query = query.Where("read_at IS NULL")
		} else {
			query = query.Where("read_at IS NOT NULL")
		}
	}
	return query
}

func (r *ContactMessageRepositoryImpl) ByFilter(ctx context.Context, filter models.ContactMessageFilter, orderBy string, limit, offset int) ([]*models.ContactMessage, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ContactMessage{}), filter)
	query = paginate(query, orderBy, "created_at DESC, id DESC", limit, offset)

	var rows []*models.ContactMessage
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list contact messages: %w", err)
	}
	return rows, nil
}

func (r *ContactMessageRepositoryImpl) Count(ctx context.Context, filter models.ContactMessageFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.ContactMessage{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count contact messages: %w", err)
	}
	return count, nil
}

func (r *ContactMessageRepositoryImpl) Exists(ctx context.Context, filter models.ContactMessageFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
