package businessflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amirphl/click-sentinel/cache"
	"github.com/amirphl/click-sentinel/models"
	"github.com/amirphl/click-sentinel/repository"
	"github.com/amirphl/click-sentinel/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Evaluation is the result of checking one source against the active rule
type Evaluation struct {
	Rule      *models.BlockingRule
	Count     int64
	Triggered bool
}

// RuleEvaluator counts recent clicks of a source and decides whether the active rule is exceeded.
// The window is [asOf - window, asOf], both ends inclusive, so the triggering click stamped
// asOf is part of the count.
type RuleEvaluator interface {
	ActiveRule(ctx context.Context, advertiserID uint) (*models.BlockingRule, error)
	CountInWindow(ctx context.Context, advertiserID uint, clientIP string, windowMinutes int, asOf time.Time) (int64, error)
	Evaluate(ctx context.Context, advertiserID uint, clientIP string, asOf time.Time) (*Evaluation, error)
	InvalidateRule(ctx context.Context, advertiserID uint)
}

// cachedRule wraps the lookup so that "no active rule" is cached too
type cachedRule struct {
	Rule *models.BlockingRule `json:"rule"`
}

type RuleEvaluatorImpl struct {
	clickRepo repository.AdClickRepository
	ruleRepo  repository.BlockingRuleRepository
	cache     cache.Store
	ttl       time.Duration
	group     singleflight.Group
	gens      sync.Map // advertiser id -> *atomic.Uint64, bumped on every invalidation
	log       *zap.Logger
}

func NewRuleEvaluator(
	clickRepo repository.AdClickRepository,
	ruleRepo repository.BlockingRuleRepository,
	store cache.Store,
	ruleCacheTTL time.Duration,
	log *zap.Logger,
) RuleEvaluator {
	if store == nil {
		store = cache.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RuleEvaluatorImpl{
		clickRepo: clickRepo,
		ruleRepo:  ruleRepo,
		cache:     store,
		ttl:       ruleCacheTTL,
		log:       log.Named("rule_evaluator"),
	}
}

func (e *RuleEvaluatorImpl) generation(advertiserID uint) *atomic.Uint64 {
	g, _ := e.gens.LoadOrStore(advertiserID, new(atomic.Uint64))
	return g.(*atomic.Uint64)
}

func ruleCacheKey(advertiserID uint) string {
	return fmt.Sprintf(utils.ActiveRuleCacheKey, advertiserID)
}

// ActiveRule returns the advertiser's active rule or nil. Concurrent lookups for the same
// advertiser share one storage query.
func (e *RuleEvaluatorImpl) ActiveRule(ctx context.Context, advertiserID uint) (*models.BlockingRule, error) {
	key := ruleCacheKey(advertiserID)

	var hit cachedRule
	ok, err := cache.GetJSON(ctx, e.cache, key, &hit)
	if err != nil {
		e.log.Warn("Rule cache read failed", zap.Uint("advertiser_id", advertiserID), zap.Error(err))
	}
	if ok {
		return hit.Rule, nil
	}

	gen := e.generation(advertiserID)
	v, err, _ := e.group.Do(key, func() (any, error) {
		started := gen.Load()
		rule, err := e.ruleRepo.ActiveByAdvertiser(ctx, advertiserID)
		if err != nil {
			return nil, err
		}
		// A rule change during the query makes this result stale; it must not outlive the invalidation.
		if gen.Load() != started {
			return rule, nil
		}
		if err := cache.SetJSON(ctx, e.cache, key, cachedRule{Rule: rule}, e.ttl); err != nil {
			e.log.Warn("Rule cache write failed", zap.Uint("advertiser_id", advertiserID), zap.Error(err))
		}
		if gen.Load() != started {
			_ = e.cache.Delete(ctx, key)
		}
		return rule, nil
	})
	if err != nil {
		return nil, NewBusinessError("RULE_LOOKUP_FAILED", "Failed to load active blocking rule", err)
	}
	rule, _ := v.(*models.BlockingRule)
	return rule, nil
}

func (e *RuleEvaluatorImpl) CountInWindow(ctx context.Context, advertiserID uint, clientIP string, windowMinutes int, asOf time.Time) (int64, error) {
	if windowMinutes <= 0 {
		return 0, models.ErrRuleWindowInvalid
	}
	from := asOf.Add(-models.BlockingRule{TimeWindowMinutes: windowMinutes}.Window())
	count, err := e.clickRepo.CountInWindow(ctx, advertiserID, strings.TrimSpace(clientIP), from, asOf)
	if err != nil {
		return 0, NewBusinessError("CLICK_COUNT_FAILED", "Failed to count clicks in window", err)
	}
	return count, nil
}

// Evaluate loads the active rule and counts the source's clicks in its window.
// Triggered is false when the advertiser has no active rule.
func (e *RuleEvaluatorImpl) Evaluate(ctx context.Context, advertiserID uint, clientIP string, asOf time.Time) (*Evaluation, error) {
	rule, err := e.ActiveRule(ctx, advertiserID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return &Evaluation{}, nil
	}

	count, err := e.CountInWindow(ctx, advertiserID, clientIP, rule.TimeWindowMinutes, asOf)
	if err != nil {
		return nil, err
	}

	return &Evaluation{
		Rule:      rule,
		Count:     count,
		Triggered: rule.Exceeded(count),
	}, nil
}

// InvalidateRule drops the cached rule after a rule change. Lookups already in flight
// skip or undo their cache write. Other processes using the memory provider keep their
// copy until RuleCacheTTL expires.
func (e *RuleEvaluatorImpl) InvalidateRule(ctx context.Context, advertiserID uint) {
	e.generation(advertiserID).Add(1)
	e.group.Forget(ruleCacheKey(advertiserID))
	if err := e.cache.Delete(ctx, ruleCacheKey(advertiserID)); err != nil {
		e.log.Warn("Rule cache invalidation failed", zap.Uint("advertiser_id", advertiserID), zap.Error(err))
	}
}
