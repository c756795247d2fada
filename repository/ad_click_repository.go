package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/click-sentinel/models"
	"gorm.io/gorm"
)

// AdClickRepositoryImpl implements AdClickRepository
type AdClickRepositoryImpl struct {
	*BaseRepository[models.AdClick, models.AdClickFilter]
}

func NewAdClickRepository(db *gorm.DB) AdClickRepository {
	return &AdClickRepositoryImpl{BaseRepository: NewBaseRepository[models.AdClick, models.AdClickFilter](db)}
}

// Append persists a click and returns its surrogate id. The insert is a single
// statement so it never joins a caller's blocking transaction.
func (r *AdClickRepositoryImpl) Append(ctx context.Context, click *models.AdClick) (uint, error) {
	if click.CreatedAt.IsZero() {
		return 0, fmt.Errorf("click arrival time is required")
	}
	db := r.getDB(ctx)
	if err := db.Create(click).Error; err != nil {
		return 0, fmt.Errorf("failed to append click: %w", err)
	}
	return click.ID, nil
}

func (r *AdClickRepositoryImpl) CountInWindow(ctx context.Context, advertiserID uint, clientIP string, from, to time.Time) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.AdClick{}).
		Where("advertiser_id = ? AND client_ip = ?", advertiserID, clientIP).
		Where("created_at >= ? AND created_at <= ?", from.UTC(), to.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count clicks in window: %w", err)
	}
	return count, nil
}

func (r *AdClickRepositoryImpl) applyFilter(db *gorm.DB, f models.AdClickFilter) *gorm.DB {
	if f.AdvertiserID != nil {
		db = db.Where("advertiser_id = ?", *f.AdvertiserID)
	}
	if f.ClientIP != nil {
		db = db.Where("client_ip = ?", *f.ClientIP)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", f.CreatedAfter.UTC())
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", f.CreatedBefore.UTC())
	}
	return db
}

func (r *AdClickRepositoryImpl) ByFilter(ctx context.Context, filter models.AdClickFilter, orderBy string, limit, offset int) ([]*models.AdClick, error) {
	db := r.getDB(ctx)
	query := paginate(r.applyFilter(db.Model(&models.AdClick{}), filter), orderBy, limit, offset)
	var rows []*models.AdClick
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AdClickRepositoryImpl) Count(ctx context.Context, filter models.AdClickFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.AdClick{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AdClickRepositoryImpl) Exists(ctx context.Context, filter models.AdClickFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
