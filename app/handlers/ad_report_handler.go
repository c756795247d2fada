package handlers

import (
	"github.com/amirphl/click-sentinel/app/dto"
	"github.com/amirphl/click-sentinel/app/middleware"
	businessflow "github.com/amirphl/click-sentinel/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdReportHandlerInterface defines the click log and blocked source endpoints
type AdReportHandlerInterface interface {
	ListClicks(c fiber.Ctx) error
	ListBlockedIPs(c fiber.Ctx) error
	ExportBlockedIPs(c fiber.Ctx) error
}

type AdReportHandler struct {
	baseHandler
	flow businessflow.AdReportFlow
}

func NewAdReportHandler(flow businessflow.AdReportFlow, log *zap.Logger) AdReportHandlerInterface {
	return &AdReportHandler{
		baseHandler: newBaseHandler(log, "ad_report_handler"),
		flow:        flow,
	}
}

// ListClicks returns the advertiser's click log, newest first
// @Summary List ad clicks
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param start_date query string false "RFC3339 timestamp or YYYY-MM-DD"
// @Param end_date query string false "RFC3339 timestamp or YYYY-MM-DD (whole day included)"
// @Param client_ip query string false "Filter by source IP"
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} dto.APIResponse{data=dto.ListAdClicksResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 401 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/ads/clicks [get]
func (h *AdReportHandler) ListClicks(c fiber.Ctx) error {
	advertiserID, ok := middleware.GetAdvertiserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Advertiser not found in context", "UNAUTHORIZED", nil)
	}

	var req dto.ListAdClicksRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if messages := h.validate(&req); messages != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/ads/clicks")
	defer cancel()

	res, err := h.flow.ListClicks(ctx, advertiserID, &req)
	if err != nil {
		if businessflow.IsInvalidDateRange(err) || businessflow.IsInvalidDateFormat(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_DATE", nil)
		}
		h.log.Error("List ad clicks failed", zap.Uint("advertiser_id", advertiserID), zap.Error(err))
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list ad clicks", "CLICK_LIST_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Ad clicks retrieved", res)
}

// ListBlockedIPs returns the advertiser's confirmed blocks, newest first
// @Summary List blocked IPs
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} dto.APIResponse{data=dto.ListBlockedIPsResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 401 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/blocked-ips [get]
func (h *AdReportHandler) ListBlockedIPs(c fiber.Ctx) error {
	advertiserID, ok := middleware.GetAdvertiserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Advertiser not found in context", "UNAUTHORIZED", nil)
	}

	var req dto.ListBlockedIPsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if messages := h.validate(&req); messages != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/blocked-ips")
	defer cancel()

	res, err := h.flow.ListBlockedIPs(ctx, advertiserID, &req)
	if err != nil {
		h.log.Error("List blocked ips failed", zap.Uint("advertiser_id", advertiserID), zap.Error(err))
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list blocked IPs", "BLOCKED_IP_LIST_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Blocked IPs retrieved", res)
}

// ExportBlockedIPs downloads every confirmed block as an Excel workbook
// @Summary Export blocked IPs
// @Tags Reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {file} file "XLSX file"
// @Failure 401 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/blocked-ips/export [get]
func (h *AdReportHandler) ExportBlockedIPs(c fiber.Ctx) error {
	advertiserID, ok := middleware.GetAdvertiserIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Advertiser not found in context", "UNAUTHORIZED", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/blocked-ips/export")
	defer cancel()

	filename, data, err := h.flow.ExportBlockedIPs(ctx, advertiserID)
	if err != nil {
		h.log.Error("Export blocked ips failed", zap.Uint("advertiser_id", advertiserID), zap.Error(err))
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate Excel file", "EXPORT_FAILED", nil)
	}
	c.Set("Content-Type", xlsxContentType)
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}
