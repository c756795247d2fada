package testing

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/click-sentinel/models"
	"github.com/amirphl/click-sentinel/repository"
	"github.com/amirphl/click-sentinel/utils"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateAdvertiser inserts an active advertiser with a random upstream customer id
func (tf *TestFixtures) CreateAdvertiser() (*models.Advertiser, error) {
	now := utils.UTCNow()
	customerID := int64(rand.Intn(900000000) + 100000000)
	advertiser := &models.Advertiser{
		CompanyName:     fmt.Sprintf("Advertiser %d", customerID),
		NaverCustomerID: customerID,
		IsActive:        utils.ToPtr(true),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := tf.DB.DB.Create(advertiser).Error; err != nil {
		return nil, fmt.Errorf("failed to create advertiser: %w", err)
	}
	return advertiser, nil
}

// DeactivateAdvertiser flips the advertiser to inactive
func (tf *TestFixtures) DeactivateAdvertiser(advertiser *models.Advertiser) error {
	advertiser.IsActive = utils.ToPtr(false)
	return tf.DB.DB.Model(advertiser).Update("is_active", false).Error
}

// CreateRule inserts an active rule. updatedAt orders competing active rules.
func (tf *TestFixtures) CreateRule(advertiserID uint, windowMinutes, maxClicks int, updatedAt time.Time) (*models.BlockingRule, error) {
	rule := &models.BlockingRule{
		AdvertiserID:      advertiserID,
		Name:              fmt.Sprintf("%d clicks / %d min", maxClicks, windowMinutes),
		TimeWindowMinutes: windowMinutes,
		MaxClicks:         maxClicks,
		IsActive:          utils.ToPtr(true),
		CreatedAt:         updatedAt,
		UpdatedAt:         updatedAt,
	}
	if err := tf.DB.DB.Create(rule).Error; err != nil {
		return nil, fmt.Errorf("failed to create blocking rule: %w", err)
	}
	return rule, nil
}

// CreateClicks inserts one click per timestamp for the given source
func (tf *TestFixtures) CreateClicks(advertiserID uint, clientIP string, at ...time.Time) error {
	clicks := make([]*models.AdClick, 0, len(at))
	for _, t := range at {
		clicks = append(clicks, &models.AdClick{
			AdvertiserID: advertiserID,
			ClientIP:     clientIP,
			CreatedAt:    t.UTC(),
		})
	}
	if err := repository.NewAdClickRepository(tf.DB.DB).SaveBatch(context.Background(), clicks); err != nil {
		return fmt.Errorf("failed to create clicks: %w", err)
	}
	return nil
}

// CreateConfirmedBlock inserts a confirmed block row directly
func (tf *TestFixtures) CreateConfirmedBlock(advertiserID uint, ipAddress string, blockedAt time.Time) (*models.BlockedIP, error) {
	row := &models.BlockedIP{
		AdvertiserID:     advertiserID,
		IPAddress:        ipAddress,
		Memo:             utils.ToPtr(utils.DefaultBlockMemo),
		Status:           models.BlockStatusConfirmed,
		ReservationToken: uuid.New(),
		BlockedAt:        utils.ToPtr(blockedAt.UTC()),
		CreatedAt:        blockedAt.UTC(),
	}
	if err := tf.DB.DB.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create blocked ip: %w", err)
	}
	return row, nil
}
