package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/click-sentinel/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

var (
	// ErrDuplicateReservation is returned when the (advertiser, ip) key is already
	// held by a pending or confirmed row.
	ErrDuplicateReservation = errors.New("blocked ip already reserved")
	// ErrReservationNotFound is returned when no pending row matches a reservation token
	ErrReservationNotFound = errors.New("reservation not found")
)

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// AdvertiserRepository defines operations for advertisers
type AdvertiserRepository interface {
	Repository[models.Advertiser, models.AdvertiserFilter]
	ByNaverCustomerID(ctx context.Context, customerID int64) (*models.Advertiser, error)
}

// AdClickRepository is the append-only click log
type AdClickRepository interface {
	Repository[models.AdClick, models.AdClickFilter]
	Append(ctx context.Context, click *models.AdClick) (uint, error)
	// CountInWindow counts clicks with from <= created_at <= to
	CountInWindow(ctx context.Context, advertiserID uint, clientIP string, from, to time.Time) (int64, error)
}

// BlockingRuleRepository defines operations for blocking rules
type BlockingRuleRepository interface {
	Repository[models.BlockingRule, models.BlockingRuleFilter]
	ActiveByAdvertiser(ctx context.Context, advertiserID uint) (*models.BlockingRule, error)
	ByIDAndAdvertiser(ctx context.Context, id, advertiserID uint) (*models.BlockingRule, error)
	Update(ctx context.Context, rule *models.BlockingRule) error
	Delete(ctx context.Context, id, advertiserID uint) (bool, error)
}

// BlockedIPRepository stores block reservations and confirmed blocks
type BlockedIPRepository interface {
	Repository[models.BlockedIP, models.BlockedIPFilter]
	ExistsConfirmed(ctx context.Context, advertiserID uint, ipAddress string) (bool, error)
	Reserve(ctx context.Context, advertiserID uint, ipAddress string, memo string) (*models.BlockedIP, error)
	Confirm(ctx context.Context, token uuid.UUID, blockedAt time.Time) error
	Discard(ctx context.Context, token uuid.UUID) error
	MarkUnconfirmed(ctx context.Context, token uuid.UUID) error
	DeleteStalePending(ctx context.Context, olderThan time.Time) (int64, error)
}
