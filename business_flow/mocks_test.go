package businessflow

import (
	"context"
	"sync"
	"time"

	"github.com/amirphl/click-sentinel/models"
	"github.com/amirphl/click-sentinel/repository"
	"github.com/stretchr/testify/mock"
)

var (
	anyCtx  = mock.Anything
	liveCtx = mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })
)

type mockBlockRegistry struct {
	mock.Mock
}

func (m *mockBlockRegistry) Exists(ctx context.Context, advertiserID uint, ipAddress string) (bool, error) {
	args := m.Called(ctx, advertiserID, ipAddress)
	return args.Bool(0), args.Error(1)
}

func (m *mockBlockRegistry) Reserve(ctx context.Context, advertiserID uint, ipAddress, memo string) (*Reservation, error) {
	args := m.Called(ctx, advertiserID, ipAddress, memo)
	res, _ := args.Get(0).(*Reservation)
	return res, args.Error(1)
}

func (m *mockBlockRegistry) Confirm(ctx context.Context, r *Reservation) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockBlockRegistry) Discard(ctx context.Context, r *Reservation) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockBlockRegistry) MarkUnconfirmed(ctx context.Context, r *Reservation) error {
	return m.Called(ctx, r).Error(0)
}

// cancellingUpstream cancels the caller's context while the call is in flight
type cancellingUpstream struct {
	cancel context.CancelFunc
}

func (u *cancellingUpstream) BlockSource(ctx context.Context, customerID int64, ipAddress, memo string) error {
	u.cancel()
	return ctx.Err()
}

// pausingRuleRepo holds the first ActiveByAdvertiser call after its query has run
// until release is closed
type pausingRuleRepo struct {
	repository.BlockingRuleRepository
	once    sync.Once
	fetched chan struct{}
	release chan struct{}
}

func newPausingRuleRepo(inner repository.BlockingRuleRepository) *pausingRuleRepo {
	return &pausingRuleRepo{
		BlockingRuleRepository: inner,
		fetched:                make(chan struct{}),
		release:                make(chan struct{}),
	}
}

func (r *pausingRuleRepo) ActiveByAdvertiser(ctx context.Context, advertiserID uint) (*models.BlockingRule, error) {
	rule, err := r.BlockingRuleRepository.ActiveByAdvertiser(ctx, advertiserID)
	r.once.Do(func() {
		close(r.fetched)
		<-r.release
	})
	return rule, err
}

// gatedCoordinator records every evaluation and blocks on gate before returning
type gatedCoordinator struct {
	gate    chan struct{}
	started chan struct{}

	mu    sync.Mutex
	calls map[string][]time.Time
}

func newGatedCoordinator() *gatedCoordinator {
	return &gatedCoordinator{
		gate:    make(chan struct{}),
		started: make(chan struct{}, 16),
		calls:   make(map[string][]time.Time),
	}
}

func (c *gatedCoordinator) Evaluate(ctx context.Context, advertiser *models.Advertiser, clientIP string, asOf time.Time) (BlockOutcome, error) {
	c.mu.Lock()
	c.calls[clientIP] = append(c.calls[clientIP], asOf)
	c.mu.Unlock()
	c.started <- struct{}{}
	<-c.gate
	return NoAction, nil
}

func (c *gatedCoordinator) AttemptBlock(ctx context.Context, advertiser *models.Advertiser, clientIP string) (BlockOutcome, error) {
	return NoAction, nil
}

func (c *gatedCoordinator) evaluations(clientIP string) []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Time(nil), c.calls[clientIP]...)
}
