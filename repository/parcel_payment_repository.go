package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jashub/parcelhub/models"
	"gorm.io/gorm"
)

// ParcelPaymentRepositoryImpl implements ParcelPaymentRepository interface
type ParcelPaymentRepositoryImpl struct {
	*BaseRepository[models.ParcelPayment, models.ParcelPaymentFilter]
}

// NewParcelPaymentRepository creates a new parcel payment repository
func NewParcelPaymentRepository(db *gorm.DB) ParcelPaymentRepository {
	return &ParcelPaymentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ParcelPayment, models.ParcelPaymentFilter](db),
	}
}

func (r *ParcelPaymentRepositoryImpl) ByParcelID(ctx context.Context, parcelID uint) (*models.ParcelPayment, error) {
	db := r.getDB(ctx)
	var row models.ParcelPayment
	if err := db.Where("parcel_id = ?", parcelID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find payment by parcel: %w", err)
	}
	return &row, nil
}

// ByParcelIDs loads payments for a page of parcels keyed by parcel ID
func (r *ParcelPaymentRepositoryImpl) ByParcelIDs(ctx context.Context, parcelIDs []uint) (map[uint]*models.ParcelPayment, error) {
	out := make(map[uint]*models.ParcelPayment, len(parcelIDs))
	if len(parcelIDs) == 0 {
		return out, nil
	}
	db := r.getDB(ctx)
	var rows []*models.ParcelPayment
	if err := db.Where("parcel_id IN ?", parcelIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	for _, p := range rows {
		out[p.ParcelID] = p
	}
	return out, nil
}

// Totals sums the collected revenue matching filter
func (r *ParcelPaymentRepositoryImpl) Totals(ctx context.Context, filter models.ParcelPaymentFilter) (*models.RevenueTotals, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ParcelPayment{}), filter)

	var totals models.RevenueTotals
	err := query.Select(
		"COUNT(*) AS count, " +
			"COALESCE(SUM(base_price), 0) AS base_total, " +
			"COALESCE(SUM(overdue_charge), 0) AS overdue_total, " +
			"COALESCE(SUM(total_price), 0) AS revenue_total",
	).Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum payments: %w", err)
	}
	return &totals, nil
}

func (r *ParcelPaymentRepositoryImpl) applyFilter(query *gorm.DB, filter models.ParcelPaymentFilter) *gorm.DB {
	if filter.ParcelID != nil {
		query = query.Where("parcel_id = ?", *filter.ParcelID)
	}
	if filter.TrackingNumber != nil {
		query = query.Where("tracking_number = ?", *filter.TrackingNumber)
	}
	if filter.Method != nil {
		query = query.Where("method = ?", *filter.Method)
	}
	if filter.PaidAfter != nil {
		query = query.Where("paid_at >= ?", *filter.PaidAfter)
	}
	if filter.PaidBefore != nil {
		query = query.Where("paid_at <= ?", *filter.PaidBefore)
	}
	return query
}

func (r *ParcelPaymentRepositoryImpl) ByFilter(ctx context.Context, filter models.ParcelPaymentFilter, orderBy string, limit, offset int) ([]*models.ParcelPayment, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ParcelPayment{}), filter)
	query = paginate(query, orderBy, "paid_at DESC, id DESC", limit, offset)

	var rows []*models.ParcelPayment
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return rows, nil
}

func (r *ParcelPaymentRepositoryImpl) Count(ctx context.Context, filter models.ParcelPaymentFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.ParcelPayment{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return count, nil
}

func (r *ParcelPaymentRepositoryImpl) Exists(ctx context.Context, filter models.ParcelPaymentFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
