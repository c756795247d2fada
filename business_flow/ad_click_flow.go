package businessflow

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/click-sentinel/app/dto"
	"github.com/amirphl/click-sentinel/models"
	"github.com/amirphl/click-sentinel/repository"
	"github.com/amirphl/click-sentinel/utils"
	"go.uber.org/zap"
)

// AdClickFlow records landing clicks and hands them to the blocking pipeline.
// Public flow, no authentication required.
type AdClickFlow interface {
	TrackClick(ctx context.Context, req *dto.TrackClickRequest, metadata *ClientMetadata) (*dto.TrackClickResponse, error)
	// Wait blocks until background evaluations dispatched so far have finished
	Wait()
}

type AdClickFlowImpl struct {
	advertiserRepo repository.AdvertiserRepository
	clickRepo      repository.AdClickRepository
	coordinator    BlockingCoordinator
	log            *zap.Logger

	sem     chan struct{}
	timeout time.Duration
	wg      sync.WaitGroup
	now     func() time.Time

	mu     sync.Mutex
	queued map[sourceKey]queuedEvaluation
}

type sourceKey struct {
	advertiserID uint
	ip           string
}

// queuedEvaluation is an evaluation waiting for a semaphore slot
type queuedEvaluation struct {
	asOf      time.Time
	requestID string
}

func NewAdClickFlow(
	advertiserRepo repository.AdvertiserRepository,
	clickRepo repository.AdClickRepository,
	coordinator BlockingCoordinator,
	concurrency int,
	evaluationTimeout time.Duration,
	log *zap.Logger,
) AdClickFlow {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AdClickFlowImpl{
		advertiserRepo: advertiserRepo,
		clickRepo:      clickRepo,
		coordinator:    coordinator,
		log:            log.Named("ad_click_flow"),
		sem:            make(chan struct{}, concurrency),
		timeout:        evaluationTimeout,
		now:            utils.UTCNowMicro,
		queued:         make(map[sourceKey]queuedEvaluation),
	}
}

// TrackClick validates the advertiser, appends the click and schedules its evaluation.
// Once the click is stored the caller gets the destination regardless of what the
// evaluation does.
func (f *AdClickFlowImpl) TrackClick(ctx context.Context, req *dto.TrackClickRequest, metadata *ClientMetadata) (*dto.TrackClickResponse, error) {
	if metadata == nil || strings.TrimSpace(metadata.IPAddress) == "" {
		return nil, ErrClientIPRequired
	}
	if strings.TrimSpace(req.DestinationURL) == "" {
		return nil, ErrDestinationRequired
	}

	advertiser, err := f.advertiserRepo.ByID(ctx, req.AdvertiserID)
	if err != nil {
		return nil, NewBusinessErrorf("ADVERTISER_LOOKUP_FAILED", "Failed to lookup advertiser %d", err, req.AdvertiserID)
	}
	if advertiser == nil {
		return nil, ErrAdvertiserNotFound
	}
	if !utils.IsTrue(advertiser.IsActive) {
		return nil, ErrAdvertiserInactive
	}
	if advertiser.NaverCustomerID != req.CustomerID {
		return nil, ErrCustomerIDMismatch
	}

	clientIP := strings.TrimSpace(metadata.IPAddress)
	click := &models.AdClick{
		AdvertiserID:   advertiser.ID,
		ClientIP:       clientIP,
		DestinationURL: utils.NilIfEmpty(req.DestinationURL),
		Keyword:        utils.NilIfEmpty(req.Keyword),
		MatchType:      utils.NilIfEmpty(req.MatchType),
		NetworkType:    utils.NilIfEmpty(req.NetworkType),
		DeviceType:     utils.NilIfEmpty(req.DeviceType),
		AdGroupID:      utils.NilIfEmpty(req.AdGroupID),
		AdID:           utils.NilIfEmpty(req.AdID),
		KeywordID:      utils.NilIfEmpty(req.KeywordID),
		CreativeID:     utils.NilIfEmpty(req.CreativeID),
		Query:          utils.NilIfEmpty(req.Query),
		CreatedAt:      f.now(),
	}

	id, err := f.clickRepo.Append(ctx, click)
	if err != nil {
		return nil, NewBusinessError("CLICK_APPEND_FAILED", "Failed to record click", err)
	}
	clicksRecordedTotal.Inc()

	f.dispatch(advertiser, clientIP, click.CreatedAt, metadata.RequestID)

	return &dto.TrackClickResponse{
		ClickID:        id,
		DestinationURL: req.DestinationURL,
	}, nil
}

// dispatch evaluates the click on its own goroutine, detached from the request.
// The semaphore bounds how many evaluations reach storage and upstream at once.
// A click whose source already has an evaluation waiting for a slot joins it, and the
// waiting evaluation runs as of the newest click.
func (f *AdClickFlowImpl) dispatch(advertiser *models.Advertiser, clientIP string, asOf time.Time, requestID string) {
	key := sourceKey{advertiserID: advertiser.ID, ip: clientIP}

	f.mu.Lock()
	if waiting, ok := f.queued[key]; ok {
		if asOf.After(waiting.asOf) {
			f.queued[key] = queuedEvaluation{asOf: asOf, requestID: requestID}
		}
		f.mu.Unlock()
		evaluationsCoalescedTotal.Inc()
		return
	}
	f.queued[key] = queuedEvaluation{asOf: asOf, requestID: requestID}
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()

		f.sem <- struct{}{}
		defer func() { <-f.sem }()

		f.mu.Lock()
		next := f.queued[key]
		delete(f.queued, key)
		f.mu.Unlock()
		asOf, requestID := next.asOf, next.requestID

		evaluationsInFlight.Inc()
		defer evaluationsInFlight.Dec()

		ctx := context.Background()
		if f.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, f.timeout)
			defer cancel()
		}

		defer func() {
			if r := recover(); r != nil {
				f.log.Error("Click evaluation panicked",
					zap.Uint("advertiser_id", advertiser.ID),
					zap.String("ip", clientIP),
					zap.Any("panic", r))
			}
		}()

		outcome, err := f.coordinator.Evaluate(ctx, advertiser, clientIP, asOf)
		fields := []zap.Field{
			zap.Uint("advertiser_id", advertiser.ID),
			zap.String("ip", clientIP),
			zap.String("outcome", outcome.String()),
			zap.String("request_id", requestID),
		}
		switch {
		case IsConfirmFault(err):
			// already logged at error level by the coordinator
		case err != nil:
			f.log.Warn("Click evaluation failed", append(fields, zap.Error(err))...)
		case outcome != NoAction:
			f.log.Info("Click evaluated", fields...)
		}
	}()
}

func (f *AdClickFlowImpl) Wait() {
	f.wg.Wait()
}
