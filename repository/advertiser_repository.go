package repository

import (
	"context"

	"github.com/amirphl/click-sentinel/models"
	"gorm.io/gorm"
)

// AdvertiserRepositoryImpl implements AdvertiserRepository
type AdvertiserRepositoryImpl struct {
	*BaseRepository[models.Advertiser, models.AdvertiserFilter]
}

func NewAdvertiserRepository(db *gorm.DB) AdvertiserRepository {
	return &AdvertiserRepositoryImpl{BaseRepository: NewBaseRepository[models.Advertiser, models.AdvertiserFilter](db)}
}

func (r *AdvertiserRepositoryImpl) ByNaverCustomerID(ctx context.Context, customerID int64) (*models.Advertiser, error) {
	rows, err := r.ByFilter(ctx, models.AdvertiserFilter{NaverCustomerID: &customerID}, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *AdvertiserRepositoryImpl) applyFilter(db *gorm.DB, f models.AdvertiserFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.NaverCustomerID != nil {
		db = db.Where("naver_customer_id = ?", *f.NaverCustomerID)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	return db
}

func (r *AdvertiserRepositoryImpl) ByFilter(ctx context.Context, filter models.AdvertiserFilter, orderBy string, limit, offset int) ([]*models.Advertiser, error) {
	db := r.getDB(ctx)
	query := paginate(r.applyFilter(db.Model(&models.Advertiser{}), filter), orderBy, limit, offset)
	var rows []*models.Advertiser
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AdvertiserRepositoryImpl) Count(ctx context.Context, filter models.AdvertiserFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.Advertiser{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AdvertiserRepositoryImpl) Exists(ctx context.Context, filter models.AdvertiserFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
