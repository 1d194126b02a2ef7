package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jashub/parcelhub/models"
	"github.com/jashub/parcelhub/utils"
	"gorm.io/gorm"
)

// ParcelRepositoryImpl implements ParcelRepository interface
type ParcelRepositoryImpl struct {
	*BaseRepository[models.Parcel, models.ParcelFilter]
}

// NewParcelRepository creates a new parcel repository
func NewParcelRepository(db *gorm.DB) ParcelRepository {
	return &ParcelRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Parcel, models.ParcelFilter](db),
	}
}

// ByUUID retrieves a parcel by UUID
func (r *ParcelRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.Parcel, error) {
	parsed, err := utils.ParseUUID(uuidStr)
	if err != nil {
		return nil, err
	}
	rows, err := r.ByFilter(ctx, models.ParcelFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ByTrackingNumber retrieves a parcel by its (normalized) tracking number
func (r *ParcelRepositoryImpl) ByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Parcel, error) {
	db := r.getDB(ctx)
	var row models.Parcel
	err := db.Where("tracking_number = ?", utils.NormalizeTrackingNumber(trackingNumber)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find parcel by tracking number: %w", err)
	}
	return &row, nil
}

// Update persists the descriptive fields of a parcel.
// Status, collection and pickup code columns have their own guarded updates.
// A collected parcel is left untouched and reported as not updated.
func (r *ParcelRepositoryImpl) Update(ctx context.Context, parcel *models.Parcel) (bool, error) {
	n, err := r.updateColumns(ctx, map[string]any{
		"recipient_name":  parcel.RecipientName,
		"recipient_email": parcel.RecipientEmail,
		"recipient_phone": parcel.RecipientPhone,
		"student_id":      parcel.StudentID,
		"courier_name":    parcel.CourierName,
		"categories":      parcel.Categories,
		"base_price":      parcel.BasePrice,
		"shelf_location":  parcel.ShelfLocation,
		"remarks":         parcel.Remarks,
		"updated_at":      utils.UTCNow(),
	}, "id = ? AND status <> ?", parcel.ID, models.ParcelStatusCollected)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *ParcelRepositoryImpl) UpdateStatus(ctx context.Context, id uint, from, to string) (bool, error) {
	n, err := r.updateColumns(ctx, map[string]any{
		"status":     to,
		"updated_at": utils.UTCNow(),
	}, "id = ? AND status = ?", id, from)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkCollected is the single conditional update that closes a parcel.
// Only a Received parcel can be collected, so concurrent payers race on this row.
func (r *ParcelRepositoryImpl) MarkCollected(ctx context.Context, id uint, collectedBy string, collectedAt time.Time) (bool, error) {
	n, err := r.updateColumns(ctx, map[string]any{
		"status":       models.ParcelStatusCollected,
		"collected_by": collectedBy,
		"collected_at": collectedAt.UTC(),
		"updated_at":   collectedAt.UTC(),
	}, "id = ? AND status = ?", id, models.ParcelStatusReceived)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *ParcelRepositoryImpl) UpdatePickupCodeHash(ctx context.Context, id uint, hash string) error {
	_, err := r.updateColumns(ctx, map[string]any{
		"pickup_code_hash": hash,
		"updated_at":       utils.UTCNow(),
	}, "id = ?", id)
	return err
}

func (r *ParcelRepositoryImpl) UpdateReminderMonths(ctx context.Context, id uint, months int) error {
	_, err := r.updateColumns(ctx, map[string]any{
		"reminder_months": months,
	}, "id = ? AND reminder_months < ?", id, months)
	return err
}

func (r *ParcelRepositoryImpl) DeleteUncollected(ctx context.Context, id uint) (bool, error) {
	n, err := r.deleteWhere(ctx, "id = ? AND status <> ?", id, models.ParcelStatusCollected)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListOverdueCandidates returns one page of Received parcels taken in before the cutoff, oldest first.
// Pages are keyed on (created_at, id) so rows already seen in a run are never read again.
func (r *ParcelRepositoryImpl) ListOverdueCandidates(ctx context.Context, receivedBefore time.Time, after *models.ParcelCursor, limit int) ([]*models.Parcel, error) {
	status := models.ParcelStatusReceived
	before := receivedBefore.UTC()
	query := r.applyFilter(r.getDB(ctx).Model(&models.Parcel{}), models.ParcelFilter{Status: &status, CreatedBefore: &before})
	if after != nil {
		query = query.Where("(created_at, id) > (?, ?)", after.CreatedAt.UTC(), after.ID)
	}
	query = paginate(query, "", "created_at ASC, id ASC", limit, 0)

	var rows []*models.Parcel
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list overdue candidates: %w", err)
	}
	return rows, nil
}

func (r *ParcelRepositoryImpl) StatusCounts(ctx context.Context, from, to *time.Time) ([]models.ParcelStatusCount, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Parcel{}), models.ParcelFilter{CreatedAfter: from, CreatedBefore: to})

	var rows []models.ParcelStatusCount
	if err := query.Select("status, COUNT(*) AS count").Group("status").Order("status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count parcels by status: %w", err)
	}
	return rows, nil
}

func (r *ParcelRepositoryImpl) CourierCounts(ctx context.Context, from, to *time.Time) ([]models.CourierCount, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Parcel{}), models.ParcelFilter{CreatedAfter: from, CreatedBefore: to})

	var rows []models.CourierCount
	if err := query.Select("courier_name, COUNT(*) AS count").Group("courier_name").Order("count DESC, courier_name").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count parcels by courier: %w", err)
	}
	return rows, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *ParcelRepositoryImpl) applyFilter(query *gorm.DB, filter models.ParcelFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.TrackingNumber != nil {
		query = query.Where("tracking_number = ?", utils.NormalizeTrackingNumber(*filter.TrackingNumber))
	}
	if filter.TrackingNumberPrefix != nil {
		prefix := strings.NewReplacer("%", `\%`, "_", `\_`).Replace(utils.NormalizeTrackingNumber(*filter.TrackingNumberPrefix))
		query = query.Where("tracking_number LIKE ?", prefix+"%")
	}
	if filter.RecipientEmail != nil {
		query = query.Where("LOWER(recipient_email) = LOWER(?)", *filter.RecipientEmail)
	}
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.CourierName != nil {
		query = query.Where("courier_name = ?", *filter.CourierName)
	}
	if filter.Category != nil {
		query = query.Where("? = ANY(categories)", *filter.Category)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ExcludeStatus != nil {
		query = query.Where("status <> ?", *filter.ExcludeStatus)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves parcels based on filter criteria
func (r *ParcelRepositoryImpl) ByFilter(ctx context.Context, filter models.ParcelFilter, orderBy string, limit, offset int) ([]*models.Parcel, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Parcel{}), filter)
	query = paginate(query, orderBy, "created_at DESC, id DESC", limit, offset)

	var rows []*models.Parcel
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list parcels: %w", err)
	}
	return rows, nil
}

// Count returns number of parcels matching filter
func (r *ParcelRepositoryImpl) Count(ctx context.Context, filter models.ParcelFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Parcel{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count parcels: %w", err)
	}
	return count, nil
}

// Exists checks if any parcel matches the filter
func (r *ParcelRepositoryImpl) Exists(ctx context.Context, filter models.ParcelFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
