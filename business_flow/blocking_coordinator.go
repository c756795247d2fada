package businessflow

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/click-sentinel/app/services"
	"github.com/amirphl/click-sentinel/models"
	"github.com/amirphl/click-sentinel/repository"
	"github.com/amirphl/click-sentinel/utils"
	"go.uber.org/zap"
)

// BlockOutcome is the terminal state of one block sequence
type BlockOutcome int

const (
	NoAction BlockOutcome = iota
	AlreadyBlocked
	Blocked
	BlockFailed
)

func (o BlockOutcome) String() string {
	switch o {
	case NoAction:
		return "no_action"
	case AlreadyBlocked:
		return "already_blocked"
	case Blocked:
		return "blocked"
	case BlockFailed:
		return "block_failed"
	default:
		return "unknown"
	}
}

// BlockingCoordinator runs evaluate -> check -> reserve -> upstream -> confirm|discard.
// A block becomes visible locally only after the upstream accepted it.
type BlockingCoordinator interface {
	// Evaluate checks the source against the active rule and attempts a block when it is exceeded
	Evaluate(ctx context.Context, advertiser *models.Advertiser, clientIP string, asOf time.Time) (BlockOutcome, error)
	// AttemptBlock runs the block sequence without evaluating the rule
	AttemptBlock(ctx context.Context, advertiser *models.Advertiser, clientIP string) (BlockOutcome, error)
}

type BlockingCoordinatorImpl struct {
	evaluator RuleEvaluator
	registry  BlockRegistry
	upstream  services.UpstreamBlocklistClient
	memo      string
	log       *zap.Logger
}

func NewBlockingCoordinator(
	evaluator RuleEvaluator,
	registry BlockRegistry,
	upstream services.UpstreamBlocklistClient,
	memo string,
	log *zap.Logger,
) BlockingCoordinator {
	if memo == "" {
		memo = utils.DefaultBlockMemo
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BlockingCoordinatorImpl{
		evaluator: evaluator,
		registry:  registry,
		upstream:  upstream,
		memo:      memo,
		log:       log.Named("blocking_coordinator"),
	}
}

func (c *BlockingCoordinatorImpl) Evaluate(ctx context.Context, advertiser *models.Advertiser, clientIP string, asOf time.Time) (BlockOutcome, error) {
	if advertiser == nil {
		return NoAction, ErrAdvertiserNotFound
	}

	eval, err := c.evaluator.Evaluate(ctx, advertiser.ID, clientIP, asOf)
	if err != nil {
		blockOutcomesTotal.WithLabelValues(BlockFailed.String()).Inc()
		return BlockFailed, err
	}
	if !eval.Triggered {
		blockOutcomesTotal.WithLabelValues(NoAction.String()).Inc()
		return NoAction, nil
	}

	c.log.Info("Blocking rule exceeded",
		zap.Uint("advertiser_id", advertiser.ID),
		zap.String("ip", clientIP),
		zap.Uint("rule_id", eval.Rule.ID),
		zap.Int64("count", eval.Count),
		zap.Int("max_clicks", eval.Rule.MaxClicks),
		zap.Int("window_minutes", eval.Rule.TimeWindowMinutes))

	return c.AttemptBlock(ctx, advertiser, clientIP)
}

func (c *BlockingCoordinatorImpl) AttemptBlock(ctx context.Context, advertiser *models.Advertiser, clientIP string) (outcome BlockOutcome, err error) {
	if advertiser == nil {
		return NoAction, ErrAdvertiserNotFound
	}
	defer func() {
		blockOutcomesTotal.WithLabelValues(outcome.String()).Inc()
	}()

	fields := []zap.Field{
		zap.Uint("advertiser_id", advertiser.ID),
		zap.Int64("customer_id", advertiser.NaverCustomerID),
		zap.String("ip", clientIP),
	}

	exists, err := c.registry.Exists(ctx, advertiser.ID, clientIP)
	if err != nil {
		return BlockFailed, err
	}
	if exists {
		return AlreadyBlocked, nil
	}

	reservation, err := c.registry.Reserve(ctx, advertiser.ID, clientIP, c.memo)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateReservation) {
			c.log.Debug("Reservation held by a concurrent attempt", fields...)
			return AlreadyBlocked, nil
		}
		return BlockFailed, err
	}

	// the reservation must end confirmed or discarded even if the caller goes away
	ctx = context.WithoutCancel(ctx)
	fields = append(fields, zap.String("reservation_token", reservation.Token.String()))

	start := time.Now()
	upstreamErr := c.upstream.BlockSource(ctx, advertiser.NaverCustomerID, reservation.IPAddress, c.memo)
	if upstreamErr != nil {
		upstreamCallDuration.WithLabelValues("failure").Observe(time.Since(start).Seconds())
		c.log.Warn("Upstream block failed, discarding reservation", append(fields, zap.Error(upstreamErr))...)

		if err := c.registry.Discard(ctx, reservation); err != nil {
			discardFaultsTotal.Inc()
			c.log.Error("Failed to discard reservation", append(fields, zap.Error(err))...)
		}
		return BlockFailed, NewBusinessError("UPSTREAM_BLOCK_FAILED", "Upstream block failed", upstreamErr)
	}
	upstreamCallDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())

	if err := c.registry.Confirm(ctx, reservation); err != nil {
		confirmFaultsTotal.Inc()
		c.log.Error("Upstream accepted block but local confirmation failed", append(fields, zap.Error(err))...)
		if markErr := c.registry.MarkUnconfirmed(ctx, reservation); markErr != nil {
			c.log.Error("Failed to mark reservation unconfirmed; the reaper will release it",
				append(fields, zap.Error(markErr))...)
		}
		return Blocked, errors.Join(ErrConfirmFault, err)
	}

	c.log.Info("Source blocked", fields...)
	return Blocked, nil
}
