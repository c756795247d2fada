package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/click-sentinel/models"
	"github.com/amirphl/click-sentinel/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BlockedIPRepositoryImpl implements BlockedIPRepository.
// Exclusivity per (advertiser, ip) is enforced by uk_blocked_ip_logs_advertiser_ip,
// so it holds across process instances.
type BlockedIPRepositoryImpl struct {
	*BaseRepository[models.BlockedIP, models.BlockedIPFilter]
}

func NewBlockedIPRepository(db *gorm.DB) BlockedIPRepository {
	return &BlockedIPRepositoryImpl{BaseRepository: NewBaseRepository[models.BlockedIP, models.BlockedIPFilter](db)}
}

func (r *BlockedIPRepositoryImpl) ExistsConfirmed(ctx context.Context, advertiserID uint, ipAddress string) (bool, error) {
	status := models.BlockStatusConfirmed
	return r.Exists(ctx, models.BlockedIPFilter{
		AdvertiserID: &advertiserID,
		IPAddress:    &ipAddress,
		Status:       &status,
	})
}

// Reserve inserts a pending row claiming the (advertiser, ip) key.
// Returns ErrDuplicateReservation when another row already holds the key.
func (r *BlockedIPRepositoryImpl) Reserve(ctx context.Context, advertiserID uint, ipAddress string, memo string) (*models.BlockedIP, error) {
	row := &models.BlockedIP{
		AdvertiserID:     advertiserID,
		IPAddress:        ipAddress,
		Memo:             utils.NilIfEmpty(memo),
		Status:           models.BlockStatusPending,
		ReservationToken: uuid.New(),
		CreatedAt:        utils.UTCNowMicro(),
	}
	db := r.getDB(ctx)
	if err := db.Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateReservation
		}
		return nil, fmt.Errorf("failed to reserve blocked ip: %w", err)
	}
	return row, nil
}

// Confirm turns the pending row identified by token into a visible block
func (r *BlockedIPRepositoryImpl) Confirm(ctx context.Context, token uuid.UUID, blockedAt time.Time) error {
	db := r.getDB(ctx)
	res := db.Model(&models.BlockedIP{}).
		Where("reservation_token = ? AND status = ?", token, models.BlockStatusPending).
		Updates(map[string]any{
			"status":     models.BlockStatusConfirmed,
			"blocked_at": blockedAt.UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to confirm reservation %s: %w", token, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// Discard removes the pending row identified by token
func (r *BlockedIPRepositoryImpl) Discard(ctx context.Context, token uuid.UUID) error {
	db := r.getDB(ctx)
	res := db.Where("reservation_token = ? AND status = ?", token, models.BlockStatusPending).
		Delete(&models.BlockedIP{})
	if res.Error != nil {
		return fmt.Errorf("failed to discard reservation %s: %w", token, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// MarkUnconfirmed moves the pending row identified by token out of the reaper's reach
func (r *BlockedIPRepositoryImpl) MarkUnconfirmed(ctx context.Context, token uuid.UUID) error {
	db := r.getDB(ctx)
	res := db.Model(&models.BlockedIP{}).
		Where("reservation_token = ? AND status = ?", token, models.BlockStatusPending).
		Update("status", models.BlockStatusUnconfirmed)
	if res.Error != nil {
		return fmt.Errorf("failed to mark reservation %s unconfirmed: %w", token, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// DeleteStalePending removes reservations created before olderThan that were never confirmed
func (r *BlockedIPRepositoryImpl) DeleteStalePending(ctx context.Context, olderThan time.Time) (int64, error) {
	db := r.getDB(ctx)
	res := db.Where("status = ? AND created_at < ?", models.BlockStatusPending, olderThan.UTC()).
		Delete(&models.BlockedIP{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete stale reservations: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *BlockedIPRepositoryImpl) applyFilter(db *gorm.DB, f models.BlockedIPFilter) *gorm.DB {
	if f.AdvertiserID != nil {
		db = db.Where("advertiser_id = ?", *f.AdvertiserID)
	}
	if f.IPAddress != nil {
		db = db.Where("ip_address = ?", *f.IPAddress)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", f.CreatedBefore.UTC())
	}
	return db
}

func (r *BlockedIPRepositoryImpl) ByFilter(ctx context.Context, filter models.BlockedIPFilter, orderBy string, limit, offset int) ([]*models.BlockedIP, error) {
	db := r.getDB(ctx)
	query := paginate(r.applyFilter(db.Model(&models.BlockedIP{}), filter), orderBy, limit, offset)
	var rows []*models.BlockedIP
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BlockedIPRepositoryImpl) Count(ctx context.Context, filter models.BlockedIPFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.BlockedIP{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *BlockedIPRepositoryImpl) Exists(ctx context.Context, filter models.BlockedIPFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
