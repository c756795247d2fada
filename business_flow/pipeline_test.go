package businessflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirphl/click-sentinel/app/services"
	"github.com/amirphl/click-sentinel/cache"
	"github.com/amirphl/click-sentinel/models"
	"github.com/amirphl/click-sentinel/repository"
	testutil "github.com/amirphl/click-sentinel/testing"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpstream struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (f *fakeUpstream) BlockSource(ctx context.Context, customerID int64, ipAddress, memo string) error {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.err
}

type pipeline struct {
	db          *testutil.TestDB
	fx          *testutil.TestFixtures
	clickRepo   repository.AdClickRepository
	ruleRepo    repository.BlockingRuleRepository
	blockedRepo repository.BlockedIPRepository
	evaluator   RuleEvaluator
	registry    BlockRegistry
	coordinator BlockingCoordinator
	upstream    *fakeUpstream
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	db, err := testutil.SetupSQLiteDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.TeardownTestDB() })

	p := &pipeline{
		db:          db,
		fx:          testutil.NewTestFixtures(db),
		clickRepo:   repository.NewAdClickRepository(db.DB),
		ruleRepo:    repository.NewBlockingRuleRepository(db.DB),
		blockedRepo: repository.NewBlockedIPRepository(db.DB),
		upstream:    &fakeUpstream{},
	}
	store, err := cache.NewMemoryStore(128)
	require.NoError(t, err)

	p.evaluator = NewRuleEvaluator(p.clickRepo, p.ruleRepo, store, time.Minute, nil)
	p.registry = NewBlockRegistry(p.blockedRepo, store, time.Minute, nil)
	p.coordinator = NewBlockingCoordinator(p.evaluator, p.registry, p.upstream, "", nil)
	return p
}

// click appends one click and evaluates it the way AdClickFlow does
func (p *pipeline) click(t *testing.T, adv *models.Advertiser, ip string, at time.Time) (BlockOutcome, error) {
	t.Helper()
	_, err := p.clickRepo.Append(context.Background(), &models.AdClick{
		AdvertiserID: adv.ID,
		ClientIP:     ip,
		CreatedAt:    at,
	})
	require.NoError(t, err)
	return p.coordinator.Evaluate(context.Background(), adv, ip, at)
}

func (p *pipeline) confirmedBlocks(t *testing.T, advertiserID uint, ip string) int64 {
	t.Helper()
	status := models.BlockStatusConfirmed
	count, err := p.blockedRepo.Count(context.Background(), models.BlockedIPFilter{
		AdvertiserID: &advertiserID,
		IPAddress:    &ip,
		Status:       &status,
	})
	require.NoError(t, err)
	return count
}

func (p *pipeline) allBlockRows(t *testing.T, advertiserID uint) int64 {
	t.Helper()
	count, err := p.blockedRepo.Count(context.Background(), models.BlockedIPFilter{AdvertiserID: &advertiserID})
	require.NoError(t, err)
	return count
}

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestCoordinator_TriggersOnClickAfterMaxClicks(t *testing.T) {
	for _, maxClicks := range []int{1, 3, 5} {
		p := newPipeline(t)
		adv, err := p.fx.CreateAdvertiser()
		require.NoError(t, err)
		_, err = p.fx.CreateRule(adv.ID, 60, maxClicks, baseTime)
		require.NoError(t, err)

		for i := 1; i <= maxClicks; i++ {
			outcome, err := p.click(t, adv, "10.0.0.1", baseTime.Add(time.Duration(i)*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, NoAction, outcome, "click %d of max %d", i, maxClicks)
		}
		assert.Zero(t, p.upstream.calls.Load())

		outcome, err := p.click(t, adv, "10.0.0.1", baseTime.Add(time.Duration(maxClicks+1)*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, Blocked, outcome, "max %d", maxClicks)
		assert.Equal(t, int32(1), p.upstream.calls.Load())
	}
}

func TestCoordinator_WindowSlides(t *testing.T) {
	p := newPipeline(t)
	adv, err := p.fx.CreateAdvertiser()
	require.NoError(t, err)
	_, err = p.fx.CreateRule(adv.ID, 10, 2, baseTime)
	require.NoError(t, err)

	// three clicks, but the first has left the window when the third arrives
	for _, at := range []time.Time{baseTime, baseTime.Add(5 * time.Minute), baseTime.Add(10*time.Minute + time.Second)} {
		outcome, err := p.click(t, adv, "10.0.0.2", at)
		require.NoError(t, err)
		assert.Equal(t, NoAction, outcome)
	}

	// lower bound is inclusive: 5m, 10m1s and 15m are all within [5m, 15m]
	outcome, err := p.click(t, adv, "10.0.0.2", baseTime.Add(15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, Blocked, outcome)
}

func TestCoordinator_NoActiveRuleNeverBlocks(t *testing.T) {
	p := newPipeline(t)
	adv, err := p.fx.CreateAdvertiser()
	require.NoError(t, err)

	inactive, err := p.fx.CreateRule(adv.ID, 60, 1, baseTime)
	require.NoError(t, err)
	require.NoError(t, p.db.DB.Model(inactive).Update("is_active", false).Error)

	for i := 0; i < 50; i++ {
		outcome, err := p.click(t, adv, "10.0.0.3", baseTime.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.Equal(t, NoAction, outcome)
	}
	assert.Zero(t, p.upstream.calls.Load())
	assert.Zero(t, p.allBlockRows(t, adv.ID))
}

func TestCoordinator_Idempotent(t *testing.T) {
	p := newPipeline(t)
	adv, err := p.fx.CreateAdvertiser()
	require.NoError(t, err)
	ctx := context.Background()

	outcome, err := p.coordinator.AttemptBlock(ctx, adv, "10.0.0.4")
	require.NoError(t, err)
	assert.Equal(t, Blocked, outcome)

	for i := 0; i < 2; i++ {
		outcome, err = p.coordinator.AttemptBlock(ctx, adv, "10.0.0.4")
		require.NoError(t, err)
		assert.Equal(t, AlreadyBlocked, outcome)
	}
	assert.Equal(t, int32(1), p.upstream.calls.Load())
	assert.Equal(t, int64(1), p.confirmedBlocks(t, adv.ID, "10.0.0.4"))
}

func TestCoordinator_ConcurrentAttemptsBlockOnce(t *testing.T) {
	p := newPipeline(t)
	p.upstream.delay = 20 * time.Millisecond
	adv, err := p.fx.CreateAdvertiser()
	require.NoError(t, err)
	_, err = p.fx.CreateRule(adv.ID, 60, 5, baseTime)
	require.NoError(t, err)

	asOf := baseTime.Add(30 * time.Minute)
	clicks := make([]time.Time, 0, 6)
	for i := 0; i < 6; i++ {
		clicks = append(clicks, asOf.Add(-time.Duration(i)*time.Minute))
	}
	require.NoError(t, p.fx.CreateClicks(adv.ID, "10.0.0.5", clicks...))

	const n = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[BlockOutcome]int{}
		start    = make(chan struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			outcome, err := p.coordinator.Evaluate(context.Background(), adv, "10.0.0.5", asOf)
			assert.NoError(t, err)
			mu.Lock()
			outcomes[outcome]++
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, outcomes[Blocked])
	assert.Equal(t, n-1, outcomes[AlreadyBlocked])
	assert.Equal(t, int32(1), p.upstream.calls.Load())
	assert.Equal(t, int64(1), p.confirmedBlocks(t, adv.ID, "10.0.0.5"))
}

func TestCoordinator_UpstreamFailureLeavesNoRecord(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"rejected", &services.UpstreamRejectedError{StatusCode: 500, Body: "boom"}},
		{"unreachable", &services.UpstreamUnreachableError{Err: context.DeadlineExceeded}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t)
			p.upstream.err = tt.err
			adv, err := p.fx.CreateAdvertiser()
			require.NoError(t, err)

			outcome, err := p.coordinator.AttemptBlock(context.Background(), adv, "10.0.0.6")
			assert.Equal(t, BlockFailed, outcome)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Zero(t, p.allBlockRows(t, adv.ID), "reservation must be discarded")

			// the key is free again, so a later attempt reaches the upstream
			p.upstream.err = nil
			outcome, err = p.coordinator.AttemptBlock(context.Background(), adv, "10.0.0.6")
			require.NoError(t, err)
			assert.Equal(t, Blocked, outcome)
			assert.Equal(t, int32(2), p.upstream.calls.Load())
		})
	}
}

func TestCoordinator_SixClicksExample(t *testing.T) {
	p := newPipeline(t)
	adv, err := p.fx.CreateAdvertiser()
	require.NoError(t, err)
	_, err = p.fx.CreateRule(adv.ID, 60, 5, baseTime)
	require.NoError(t, err)

	var outcomes []BlockOutcome
	for i := 0; i < 6; i++ {
		outcome, err := p.click(t, adv, "1.2.3.4", baseTime.Add(time.Duration(i*10)*time.Minute))
		require.NoError(t, err)
		outcomes = append(outcomes, outcome)
	}
	assert.Equal(t, []BlockOutcome{NoAction, NoAction, NoAction, NoAction, NoAction, Blocked}, outcomes)
	assert.Equal(t, int64(1), p.confirmedBlocks(t, adv.ID, "1.2.3.4"))

	outcome, err := p.click(t, adv, "1.2.3.4", baseTime.Add(55*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, AlreadyBlocked, outcome)
	assert.Equal(t, int32(1), p.upstream.calls.Load())
	assert.Equal(t, int64(1), p.allBlockRows(t, adv.ID))
}

func TestCoordinator_SixClicksUpstream500(t *testing.T) {
	p := newPipeline(t)
	p.upstream.err = &services.UpstreamRejectedError{StatusCode: 500, Body: "internal error"}
	adv, err := p.fx.CreateAdvertiser()
	require.NoError(t, err)
	_, err = p.fx.CreateRule(adv.ID, 60, 5, baseTime)
	require.NoError(t, err)

	var last BlockOutcome
	for i := 0; i < 6; i++ {
		last, _ = p.click(t, adv, "1.2.3.4", baseTime.Add(time.Duration(i*10)*time.Minute))
	}
	assert.Equal(t, BlockFailed, last)
	assert.Zero(t, p.allBlockRows(t, adv.ID))

	ip := "1.2.3.4"
	clicks, err := p.clickRepo.Count(context.Background(), models.AdClickFilter{AdvertiserID: &adv.ID, ClientIP: &ip})
	require.NoError(t, err)
	assert.Equal(t, int64(6), clicks, "the triggering click stays in the log")
}

func TestCoordinator_StorageFaultBeforeReservation(t *testing.T) {
	registry := new(mockBlockRegistry)
	upstream := &fakeUpstream{}
	c := NewBlockingCoordinator(nil, registry, upstream, "memo", nil)
	adv := &models.Advertiser{ID: 7, NaverCustomerID: 1234}

	fault := errors.New("connection refused")
	registry.On("Exists", anyCtx, uint(7), "10.0.0.7").Return(false, fault)

	outcome, err := c.AttemptBlock(context.Background(), adv, "10.0.0.7")
	assert.Equal(t, BlockFailed, outcome)
	assert.ErrorIs(t, err, fault)
	assert.Zero(t, upstream.calls.Load())
	registry.AssertNumberOfCalls(t, "Reserve", 0)
}

func TestCoordinator_ConfirmFault(t *testing.T) {
	registry := new(mockBlockRegistry)
	upstream := &fakeUpstream{}
	c := NewBlockingCoordinator(nil, registry, upstream, "memo", nil)
	adv := &models.Advertiser{ID: 7, NaverCustomerID: 1234}

	res := &Reservation{AdvertiserID: 7, IPAddress: "10.0.0.8", Memo: "memo"}
	registry.On("Exists", anyCtx, uint(7), "10.0.0.8").Return(false, nil)
	registry.On("Reserve", anyCtx, uint(7), "10.0.0.8", "memo").Return(res, nil)
	registry.On("Confirm", anyCtx, res).Return(errors.New("disk full"))
	registry.On("MarkUnconfirmed", liveCtx, res).Return(nil)

	faultsBefore := promtest.ToFloat64(confirmFaultsTotal)
	blockedBefore := promtest.ToFloat64(blockOutcomesTotal.WithLabelValues(Blocked.String()))

	outcome, err := c.AttemptBlock(context.Background(), adv, "10.0.0.8")
	assert.Equal(t, Blocked, outcome, "the upstream holds the block")
	assert.True(t, IsConfirmFault(err))
	assert.Equal(t, faultsBefore+1, promtest.ToFloat64(confirmFaultsTotal))
	assert.Equal(t, blockedBefore+1, promtest.ToFloat64(blockOutcomesTotal.WithLabelValues(Blocked.String())))
	assert.Equal(t, int32(1), upstream.calls.Load())
	registry.AssertNumberOfCalls(t, "Discard", 0)
	registry.AssertNumberOfCalls(t, "MarkUnconfirmed", 1)
}

func TestCoordinator_FinishesAfterCallerCancels(t *testing.T) {
	registry := new(mockBlockRegistry)
	ctx, cancel := context.WithCancel(context.Background())
	upstream := &cancellingUpstream{cancel: cancel}
	c := NewBlockingCoordinator(nil, registry, upstream, "memo", nil)
	adv := &models.Advertiser{ID: 3, NaverCustomerID: 99}

	res := &Reservation{AdvertiserID: 3, IPAddress: "10.0.0.9"}
	registry.On("Exists", anyCtx, uint(3), "10.0.0.9").Return(false, nil)
	registry.On("Reserve", anyCtx, uint(3), "10.0.0.9", "memo").Return(res, nil)
	registry.On("Confirm", liveCtx, res).Return(nil)

	outcome, err := c.AttemptBlock(ctx, adv, "10.0.0.9")
	require.NoError(t, err)
	assert.Equal(t, Blocked, outcome)
	registry.AssertExpectations(t)
}

func TestCoordinator_DuplicateReservationIsAlreadyBlocked(t *testing.T) {
	registry := new(mockBlockRegistry)
	upstream := &fakeUpstream{}
	c := NewBlockingCoordinator(nil, registry, upstream, "memo", nil)
	adv := &models.Advertiser{ID: 4}

	registry.On("Exists", anyCtx, uint(4), "10.0.0.10").Return(false, nil)
	registry.On("Reserve", anyCtx, uint(4), "10.0.0.10", "memo").Return(nil, repository.ErrDuplicateReservation)

	outcome, err := c.AttemptBlock(context.Background(), adv, "10.0.0.10")
	require.NoError(t, err)
	assert.Equal(t, AlreadyBlocked, outcome)
	assert.Zero(t, upstream.calls.Load())
}

func TestBlockOutcome_String(t *testing.T) {
	assert.Equal(t, "no_action", NoAction.String())
	assert.Equal(t, "already_blocked", AlreadyBlocked.String())
	assert.Equal(t, "blocked", Blocked.String())
	assert.Equal(t, "block_failed", BlockFailed.String())
	assert.Equal(t, "unknown", BlockOutcome(42).String())
}

func TestRuleEvaluator_InvalidationDuringLookup(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	adv, err := p.fx.CreateAdvertiser()
	require.NoError(t, err)
	rule, err := p.fx.CreateRule(adv.ID, 60, 5, baseTime)
	require.NoError(t, err)

	store, err := cache.NewMemoryStore(16)
	require.NoError(t, err)
	repo := newPausingRuleRepo(p.ruleRepo)
	evaluator := NewRuleEvaluator(p.clickRepo, repo, store, time.Hour, nil)

	done := make(chan *models.BlockingRule, 1)
	go func() {
		r, err := evaluator.ActiveRule(ctx, adv.ID)
		assert.NoError(t, err)
		done <- r
	}()
	<-repo.fetched

	rule.MaxClicks = 10
	require.NoError(t, p.ruleRepo.Update(ctx, rule))
	evaluator.InvalidateRule(ctx, adv.ID)
	close(repo.release)

	stale := <-done
	require.NotNil(t, stale)
	assert.Equal(t, 5, stale.MaxClicks, "the lookup read the rule before the change")

	fresh, err := evaluator.ActiveRule(ctx, adv.ID)
	require.NoError(t, err)
	require.NotNil(t, fresh)
	assert.Equal(t, 10, fresh.MaxClicks, "the stale lookup must not repopulate the cache")
}
