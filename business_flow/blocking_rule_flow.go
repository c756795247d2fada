package businessflow

import (
	"context"
	"errors"
	"strings"

	"github.com/amirphl/click-sentinel/app/dto"
	"github.com/amirphl/click-sentinel/models"
	"github.com/amirphl/click-sentinel/repository"
	"github.com/amirphl/click-sentinel/utils"
	"gorm.io/gorm"
)

// BlockingRuleFlow manages an advertiser's blocking rules.
// Every change drops the cached active rule so the pipeline sees it on the next click.
type BlockingRuleFlow interface {
	Create(ctx context.Context, advertiserID uint, req *dto.CreateBlockingRuleRequest) (*dto.BlockingRuleItem, error)
	List(ctx context.Context, advertiserID uint) (*dto.ListBlockingRulesResponse, error)
	Update(ctx context.Context, advertiserID, ruleID uint, req *dto.UpdateBlockingRuleRequest) (*dto.BlockingRuleItem, error)
	Delete(ctx context.Context, advertiserID, ruleID uint) error
}

type BlockingRuleFlowImpl struct {
	db        *gorm.DB
	ruleRepo  repository.BlockingRuleRepository
	evaluator RuleEvaluator
}

func NewBlockingRuleFlow(db *gorm.DB, ruleRepo repository.BlockingRuleRepository, evaluator RuleEvaluator) BlockingRuleFlow {
	return &BlockingRuleFlowImpl{db: db, ruleRepo: ruleRepo, evaluator: evaluator}
}

func (f *BlockingRuleFlowImpl) Create(ctx context.Context, advertiserID uint, req *dto.CreateBlockingRuleRequest) (*dto.BlockingRuleItem, error) {
	now := utils.UTCNow()
	rule := &models.BlockingRule{
		AdvertiserID:      advertiserID,
		Name:              strings.TrimSpace(req.Name),
		TimeWindowMinutes: utils.DefaultRuleWindowMinutes,
		MaxClicks:         utils.DefaultRuleMaxClicks,
		IsActive:          utils.ToPtr(true),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.TimeWindowMinutes != nil {
		rule.TimeWindowMinutes = *req.TimeWindowMinutes
	}
	if req.MaxClicks != nil {
		rule.MaxClicks = *req.MaxClicks
	}
	if req.IsActive != nil {
		rule.IsActive = utils.ToPtr(*req.IsActive)
	}
	if err := rule.Validate(); err != nil {
		return nil, NewBusinessError("BLOCKING_RULE_INVALID", err.Error(), err)
	}

	if err := f.ruleRepo.Save(ctx, rule); err != nil {
		return nil, NewBusinessError("BLOCKING_RULE_CREATE_FAILED", "Failed to create blocking rule", err)
	}
	f.evaluator.InvalidateRule(ctx, advertiserID)

	item := ToBlockingRuleDTO(*rule)
	return &item, nil
}

func (f *BlockingRuleFlowImpl) List(ctx context.Context, advertiserID uint) (*dto.ListBlockingRulesResponse, error) {
	rows, err := f.ruleRepo.ByFilter(ctx, models.BlockingRuleFilter{AdvertiserID: &advertiserID}, "updated_at DESC, id DESC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("BLOCKING_RULE_LIST_FAILED", "Failed to list blocking rules", err)
	}
	items := make([]dto.BlockingRuleItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, ToBlockingRuleDTO(*r))
	}
	return &dto.ListBlockingRulesResponse{Items: items}, nil
}

func (f *BlockingRuleFlowImpl) Update(ctx context.Context, advertiserID, ruleID uint, req *dto.UpdateBlockingRuleRequest) (*dto.BlockingRuleItem, error) {
	if req.Name == nil && req.TimeWindowMinutes == nil && req.MaxClicks == nil && req.IsActive == nil {
		return nil, ErrBlockingRuleUpdateMissing
	}

	// The read-back runs in the same transaction so the response is the stored row
	var saved *models.BlockingRule
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		rule, err := f.ruleRepo.ByIDAndAdvertiser(txCtx, ruleID, advertiserID)
		if err != nil {
			return NewBusinessError("BLOCKING_RULE_LOOKUP_FAILED", "Failed to lookup blocking rule", err)
		}
		if rule == nil {
			return ErrBlockingRuleNotFound
		}

		if req.Name != nil {
			rule.Name = strings.TrimSpace(*req.Name)
		}
		if req.TimeWindowMinutes != nil {
			rule.TimeWindowMinutes = *req.TimeWindowMinutes
		}
		if req.MaxClicks != nil {
			rule.MaxClicks = *req.MaxClicks
		}
		if req.IsActive != nil {
			rule.IsActive = utils.ToPtr(*req.IsActive)
		}
		if err := rule.Validate(); err != nil {
			return NewBusinessError("BLOCKING_RULE_INVALID", err.Error(), err)
		}

		if err := f.ruleRepo.Update(txCtx, rule); err != nil {
			return err
		}

		saved, err = f.ruleRepo.ByIDAndAdvertiser(txCtx, ruleID, advertiserID)
		if err != nil {
			return err
		}
		if saved == nil {
			return ErrBlockingRuleNotFound
		}
		return nil
	})
	if err != nil {
		var be *BusinessError
		if errors.As(err, &be) || errors.Is(err, ErrBlockingRuleNotFound) {
			return nil, err
		}
		return nil, NewBusinessError("BLOCKING_RULE_UPDATE_FAILED", "Failed to update blocking rule", err)
	}
	f.evaluator.InvalidateRule(ctx, advertiserID)

	item := ToBlockingRuleDTO(*saved)
	return &item, nil
}

func (f *BlockingRuleFlowImpl) Delete(ctx context.Context, advertiserID, ruleID uint) error {
	deleted, err := f.ruleRepo.Delete(ctx, ruleID, advertiserID)
	if err != nil {
		return NewBusinessError("BLOCKING_RULE_DELETE_FAILED", "Failed to delete blocking rule", err)
	}
	if !deleted {
		return ErrBlockingRuleNotFound
	}
	f.evaluator.InvalidateRule(ctx, advertiserID)
	return nil
}
