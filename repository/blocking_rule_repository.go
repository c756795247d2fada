package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/click-sentinel/models"
	"github.com/amirphl/click-sentinel/utils"
	"gorm.io/gorm"
)

// BlockingRuleRepositoryImpl implements BlockingRuleRepository
type BlockingRuleRepositoryImpl struct {
	*BaseRepository[models.BlockingRule, models.BlockingRuleFilter]
}

func NewBlockingRuleRepository(db *gorm.DB) BlockingRuleRepository {
	return &BlockingRuleRepositoryImpl{BaseRepository: NewBaseRepository[models.BlockingRule, models.BlockingRuleFilter](db)}
}

// ActiveByAdvertiser returns the most recently updated active rule, or nil when none is active
func (r *BlockingRuleRepositoryImpl) ActiveByAdvertiser(ctx context.Context, advertiserID uint) (*models.BlockingRule, error) {
	rows, err := r.ByFilter(ctx, models.BlockingRuleFilter{
		AdvertiserID: &advertiserID,
		IsActive:     utils.ToPtr(true),
	}, "updated_at DESC, id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *BlockingRuleRepositoryImpl) ByIDAndAdvertiser(ctx context.Context, id, advertiserID uint) (*models.BlockingRule, error) {
	db := r.getDB(ctx)
	var row models.BlockingRule
	if err := db.Where("id = ? AND advertiser_id = ?", id, advertiserID).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Update persists all mutable columns of the rule
func (r *BlockingRuleRepositoryImpl) Update(ctx context.Context, rule *models.BlockingRule) error {
	db := r.getDB(ctx)
	rule.UpdatedAt = utils.UTCNow()
	err := db.Model(&models.BlockingRule{}).
		Where("id = ? AND advertiser_id = ?", rule.ID, rule.AdvertiserID).
		Updates(map[string]any{
			"name":                rule.Name,
			"time_window_minutes": rule.TimeWindowMinutes,
			"max_clicks":          rule.MaxClicks,
			"is_active":           utils.IsTrue(rule.IsActive),
			"updated_at":          rule.UpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update blocking rule %d: %w", rule.ID, err)
	}
	return nil
}

func (r *BlockingRuleRepositoryImpl) Delete(ctx context.Context, id, advertiserID uint) (bool, error) {
	db := r.getDB(ctx)
	res := db.Where("id = ? AND advertiser_id = ?", id, advertiserID).Delete(&models.BlockingRule{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete blocking rule %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *BlockingRuleRepositoryImpl) applyFilter(db *gorm.DB, f models.BlockingRuleFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.AdvertiserID != nil {
		db = db.Where("advertiser_id = ?", *f.AdvertiserID)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	return db
}

func (r *BlockingRuleRepositoryImpl) ByFilter(ctx context.Context, filter models.BlockingRuleFilter, orderBy string, limit, offset int) ([]*models.BlockingRule, error) {
	db := r.getDB(ctx)
	query := paginate(r.applyFilter(db.Model(&models.BlockingRule{}), filter), orderBy, limit, offset)
	var rows []*models.BlockingRule
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BlockingRuleRepositoryImpl) Count(ctx context.Context, filter models.BlockingRuleFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.BlockingRule{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *BlockingRuleRepositoryImpl) Exists(ctx context.Context, filter models.BlockingRuleFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
