package handlers

import (
	"strconv"

	"github.com/amirphl/click-sentinel/app/dto"
	"github.com/amirphl/click-sentinel/app/middleware"
	businessflow "github.com/amirphl/click-sentinel/business_flow"
	"github.com/amirphl/click-sentinel/models"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// BlockingRuleHandlerInterface defines the rule management endpoints
type BlockingRuleHandlerInterface interface {
	Create(c fiber.Ctx) error
	List(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
}

type BlockingRuleHandler struct {
	baseHandler
	flow businessflow.BlockingRuleFlow
}

func NewBlockingRuleHandler(flow businessflow.BlockingRuleFlow, log *zap.Logger) BlockingRuleHandlerInterface {
	return &BlockingRuleHandler{
		baseHandler: newBaseHandler(log, "blocking_rule_handler"),
		flow:        flow,
	}
}

// Create adds a blocking rule
// @Summary Create blocking rule
// @Tags Blocking Rules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateBlockingRuleRequest true "Rule"
// @Success 201 {object} dto.APIResponse{data=dto.BlockingRuleItem}
// @Failure 400 {object} dto.APIResponse
// @Failure 401 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/blocking-rules [post]
func (h *BlockingRuleHandler) Create(c fiber.Ctx) error {
	advertiserID, ok := middleware.GetAdvertiserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Advertiser not found in context", "UNAUTHORIZED", nil)
	}

	var req dto.CreateBlockingRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if messages := h.validate(&req); messages != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/blocking-rules")
	defer cancel()

	item, err := h.flow.Create(ctx, advertiserID, &req)
	if err != nil {
		return h.handleError(c, err, "Failed to create blocking rule", "BLOCKING_RULE_CREATE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Blocking rule created", item)
}

// List returns every rule of the advertiser
// @Summary List blocking rules
// @Tags Blocking Rules
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ListBlockingRulesResponse}
// @Failure 401 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/blocking-rules [get]
func (h *BlockingRuleHandler) List(c fiber.Ctx) error {
	advertiserID, ok := middleware.GetAdvertiserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Advertiser not found in context", "UNAUTHORIZED", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/blocking-rules")
	defer cancel()

	res, err := h.flow.List(ctx, advertiserID)
	if err != nil {
		return h.handleError(c, err, "Failed to list blocking rules", "BLOCKING_RULE_LIST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Blocking rules retrieved", res)
}

// Update changes the provided fields of a rule
// @Summary Update blocking rule
// @Tags Blocking Rules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Rule ID"
// @Param request body dto.UpdateBlockingRuleRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.BlockingRuleItem}
// @Failure 400 {object} dto.APIResponse
// @Failure 401 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/blocking-rules/{id} [put]
func (h *BlockingRuleHandler) Update(c fiber.Ctx) error {
	advertiserID, ok := middleware.GetAdvertiserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Advertiser not found in context", "UNAUTHORIZED", nil)
	}
	ruleID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || ruleID == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid rule ID", "INVALID_RULE_ID", nil)
	}

	var req dto.UpdateBlockingRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if messages := h.validate(&req); messages != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/blocking-rules/:id")
	defer cancel()

	item, err := h.flow.Update(ctx, advertiserID, uint(ruleID), &req)
	if err != nil {
		return h.handleError(c, err, "Failed to update blocking rule", "BLOCKING_RULE_UPDATE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Blocking rule updated", item)
}

// Delete removes a rule
// @Summary Delete blocking rule
// @Tags Blocking Rules
// @Produce json
// @Security BearerAuth
// @Param id path int true "Rule ID"
// @Success 200 {object} dto.APIResponse
// @Failure 400 {object} dto.APIResponse
// @Failure 401 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/blocking-rules/{id} [delete]
func (h *BlockingRuleHandler) Delete(c fiber.Ctx) error {
	advertiserID, ok := middleware.GetAdvertiserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Advertiser not found in context", "UNAUTHORIZED", nil)
	}
	ruleID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || ruleID == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid rule ID", "INVALID_RULE_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/blocking-rules/:id")
	defer cancel()

	if err := h.flow.Delete(ctx, advertiserID, uint(ruleID)); err != nil {
		return h.handleError(c, err, "Failed to delete blocking rule", "BLOCKING_RULE_DELETE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Blocking rule deleted", nil)
}

func (h *BlockingRuleHandler) handleError(c fiber.Ctx, err error, message, code string) error {
	switch {
	case businessflow.IsBlockingRuleNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Blocking rule not found", "BLOCKING_RULE_NOT_FOUND", nil)
	case businessflow.IsBlockingRuleUpdateMissing(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "NO_FIELDS_TO_UPDATE", nil)
	case models.IsRuleInvalid(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid blocking rule", "BLOCKING_RULE_INVALID", err.Error())
	}
	h.log.Error(message, zap.Error(err))
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, code, nil)
}
