package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/click-sentinel/cache"
	"github.com/amirphl/click-sentinel/repository"
	"github.com/amirphl/click-sentinel/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reservation is the handle of a staged, not yet visible block
type Reservation struct {
	AdvertiserID uint
	IPAddress    string
	Memo         string
	Token        uuid.UUID
	CreatedAt    time.Time
}

// BlockRegistry records which sources are blocked per advertiser.
// Exists is advisory; exclusivity comes from Reserve, which fails with
// repository.ErrDuplicateReservation when the key is already held.
type BlockRegistry interface {
	Exists(ctx context.Context, advertiserID uint, ipAddress string) (bool, error)
	Reserve(ctx context.Context, advertiserID uint, ipAddress, memo string) (*Reservation, error)
	Confirm(ctx context.Context, r *Reservation) error
	Discard(ctx context.Context, r *Reservation) error
	// MarkUnconfirmed keeps the key held for a block the upstream accepted but Confirm could not record
	MarkUnconfirmed(ctx context.Context, r *Reservation) error
}

type BlockRegistryImpl struct {
	repo  repository.BlockedIPRepository
	cache cache.Store
	ttl   time.Duration
	log   *zap.Logger
}

func NewBlockRegistry(repo repository.BlockedIPRepository, store cache.Store, blockedCacheTTL time.Duration, log *zap.Logger) BlockRegistry {
	if store == nil {
		store = cache.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BlockRegistryImpl{
		repo:  repo,
		cache: store,
		ttl:   blockedCacheTTL,
		log:   log.Named("block_registry"),
	}
}

func blockedCacheKey(advertiserID uint, ipAddress string) string {
	return fmt.Sprintf(utils.BlockedIPCacheKey, advertiserID, ipAddress)
}

// Exists reports whether a confirmed block is recorded. Only positive answers are cached;
// blocks are never removed by the pipeline.
func (r *BlockRegistryImpl) Exists(ctx context.Context, advertiserID uint, ipAddress string) (bool, error) {
	ipAddress = strings.TrimSpace(ipAddress)
	key := blockedCacheKey(advertiserID, ipAddress)

	_, hit, err := r.cache.Get(ctx, key)
	if err != nil {
		r.log.Warn("Blocked cache read failed", zap.String("key", key), zap.Error(err))
	}
	if hit {
		return true, nil
	}

	exists, err := r.repo.ExistsConfirmed(ctx, advertiserID, ipAddress)
	if err != nil {
		return false, NewBusinessError("BLOCK_LOOKUP_FAILED", "Failed to check blocked source", err)
	}
	if exists {
		r.remember(ctx, advertiserID, ipAddress)
	}
	return exists, nil
}

func (r *BlockRegistryImpl) Reserve(ctx context.Context, advertiserID uint, ipAddress, memo string) (*Reservation, error) {
	ipAddress = strings.TrimSpace(ipAddress)
	if ipAddress == "" {
		return nil, ErrClientIPRequired
	}

	row, err := r.repo.Reserve(ctx, advertiserID, ipAddress, memo)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateReservation) {
			return nil, err
		}
		return nil, NewBusinessError("BLOCK_RESERVE_FAILED", "Failed to reserve blocked source", err)
	}

	return &Reservation{
		AdvertiserID: row.AdvertiserID,
		IPAddress:    row.IPAddress,
		Memo:         memo,
		Token:        row.ReservationToken,
		CreatedAt:    row.CreatedAt,
	}, nil
}

// Confirm makes the reservation a visible block
func (r *BlockRegistryImpl) Confirm(ctx context.Context, res *Reservation) error {
	if res == nil {
		return NewBusinessError("BLOCK_CONFIRM_FAILED", "Failed to confirm blocked source", repository.ErrReservationNotFound)
	}
	if err := r.repo.Confirm(ctx, res.Token, utils.UTCNow()); err != nil {
		return NewBusinessError("BLOCK_CONFIRM_FAILED", "Failed to confirm blocked source", err)
	}
	r.remember(ctx, res.AdvertiserID, res.IPAddress)
	return nil
}

// Discard removes the reservation without leaving a trace
func (r *BlockRegistryImpl) Discard(ctx context.Context, res *Reservation) error {
	if res == nil {
		return nil
	}
	if err := r.repo.Discard(ctx, res.Token); err != nil {
		return NewBusinessError("BLOCK_DISCARD_FAILED", "Failed to discard reservation", err)
	}
	return nil
}

func (r *BlockRegistryImpl) MarkUnconfirmed(ctx context.Context, res *Reservation) error {
	if res == nil {
		return nil
	}
	if err := r.repo.MarkUnconfirmed(ctx, res.Token); err != nil {
		return NewBusinessError("BLOCK_MARK_UNCONFIRMED_FAILED", "Failed to mark reservation unconfirmed", err)
	}
	return nil
}

func (r *BlockRegistryImpl) remember(ctx context.Context, advertiserID uint, ipAddress string) {
	if err := r.cache.Set(ctx, blockedCacheKey(advertiserID, ipAddress), []byte{1}, r.ttl); err != nil {
		r.log.Warn("Blocked cache write failed",
			zap.Uint("advertiser_id", advertiserID),
			zap.String("ip", ipAddress),
			zap.Error(err))
	}
}
