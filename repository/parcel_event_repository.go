package repository

import (
	"context"
	"fmt"

	"github.com/jashub/parcelhub/models"
	"gorm.io/gorm"
)

// ParcelEventRepositoryImpl implements ParcelEventRepository interface
type ParcelEventRepositoryImpl struct {
	*BaseRepository[models.ParcelEvent, struct{}]
}

// NewParcelEventRepository creates a new parcel event repository
func NewParcelEventRepository(db *gorm.DB) ParcelEventRepository {
	return &ParcelEventRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ParcelEvent, struct{}](db),
	}
}

// ListByParcel returns a parcel's timeline in chronological order
func (r *ParcelEventRepositoryImpl) ListByParcel(ctx context.Context, parcelID uint) ([]*models.ParcelEvent, error) {
	db := r.getDB(ctx)
	var rows []*models.ParcelEvent
	if err := db.Where("parcel_id = ?", parcelID).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list parcel events: %w", err)
	}
	return rows, nil
}
