package handlers

import (
	"strconv"
	"strings"

	"github.com/amirphl/click-sentinel/app/dto"
	businessflow "github.com/amirphl/click-sentinel/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// AdTrackingHandlerInterface defines the public click landing endpoint
type AdTrackingHandlerInterface interface {
	Landing(c fiber.Ctx) error
}

type AdTrackingHandler struct {
	baseHandler
	flow businessflow.AdClickFlow
}

func NewAdTrackingHandler(flow businessflow.AdClickFlow, log *zap.Logger) AdTrackingHandlerInterface {
	return &AdTrackingHandler{
		baseHandler: newBaseHandler(log, "ad_tracking_handler"),
		flow:        flow,
	}
}

// naverQueryAliases maps the parameter names of the upstream tracking template onto
// TrackClickRequest fields; they are used when the canonical name is absent.
var naverQueryAliases = map[string]func(*dto.TrackClickRequest) *string{
	"final_url":    func(r *dto.TrackClickRequest) *string { return &r.DestinationURL },
	"n_keyword":    func(r *dto.TrackClickRequest) *string { return &r.Keyword },
	"n_match":      func(r *dto.TrackClickRequest) *string { return &r.MatchType },
	"n_network":    func(r *dto.TrackClickRequest) *string { return &r.NetworkType },
	"n_media":      func(r *dto.TrackClickRequest) *string { return &r.DeviceType },
	"n_ad_group":   func(r *dto.TrackClickRequest) *string { return &r.AdGroupID },
	"n_ad":         func(r *dto.TrackClickRequest) *string { return &r.AdID },
	"n_keyword_id": func(r *dto.TrackClickRequest) *string { return &r.KeywordID },
	"n_creative":   func(r *dto.TrackClickRequest) *string { return &r.CreativeID },
	"n_query":      func(r *dto.TrackClickRequest) *string { return &r.Query },
}

func applyNaverAliases(c fiber.Ctx, req *dto.TrackClickRequest) {
	for alias, field := range naverQueryAliases {
		if dst := field(req); *dst == "" {
			*dst = c.Query(alias)
		}
	}
	if req.CustomerID == 0 {
		if id, err := strconv.ParseInt(c.Query("customerid"), 10, 64); err == nil {
			req.CustomerID = id
		}
	}
}

// Landing records an ad click and redirects the visitor to the advertiser's page
// @Summary Ad click landing
// @Description Public tracking link placed in ads. Records the click, schedules fraud evaluation and redirects.
// @Tags Ad Tracking
// @Param advertiser_id path int true "Advertiser ID"
// @Param customer_id query int true "Upstream customer ID of the advertiser"
// @Param destination_url query string true "Landing page URL"
// @Param keyword query string false "Keyword"
// @Param match_type query string false "Match type"
// @Param network_type query string false "Network type"
// @Param device_type query string false "Device type"
// @Param ad_group_id query string false "Ad group ID"
// @Param ad_id query string false "Ad ID"
// @Param keyword_id query string false "Keyword ID"
// @Param creative_id query string false "Creative ID"
// @Param query query string false "Search query"
// @Success 302 {string} string "Redirect"
// @Failure 400 {object} dto.APIResponse "Invalid tracking link"
// @Failure 404 {object} dto.APIResponse "Advertiser not found or inactive"
// @Router /ads/landing/{advertiser_id} [get]
func (h *AdTrackingHandler) Landing(c fiber.Ctx) error {
	advertiserID, err := strconv.ParseUint(c.Params("advertiser_id"), 10, 64)
	if err != nil || advertiserID == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid advertiser ID", "INVALID_ADVERTISER_ID", nil)
	}

	var req dto.TrackClickRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tracking parameters", "INVALID_REQUEST", err.Error())
	}
	applyNaverAliases(c, &req)
	req.AdvertiserID = uint(advertiserID)
	req.DestinationURL = strings.TrimSpace(req.DestinationURL)

	if messages := h.validate(&req); messages != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(requestID(c))

	ctx, cancel := h.createRequestContext(c, "/ads/landing/:advertiser_id")
	defer cancel()

	resp, err := h.flow.TrackClick(ctx, &req, metadata)
	if err != nil {
		switch {
		case businessflow.IsAdvertiserNotFound(err), businessflow.IsAdvertiserInactive(err):
			return h.ErrorResponse(c, fiber.StatusNotFound, "Advertiser not found or not active", "ADVERTISER_NOT_FOUND", nil)
		case businessflow.IsCustomerIDMismatch(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid customer ID for this tracking link", "CUSTOMER_ID_MISMATCH", nil)
		case businessflow.IsClientIPRequired(err), businessflow.IsDestinationRequired(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_REQUEST", nil)
		}
		// the visitor still lands; only the click record is lost
		h.log.Error("Failed to record ad click",
			zap.Uint64("advertiser_id", advertiserID),
			zap.String("ip", metadata.IPAddress),
			zap.String("request_id", metadata.RequestID),
			zap.Error(err))
		return c.Redirect().Status(fiber.StatusFound).To(req.DestinationURL)
	}

	return c.Redirect().Status(fiber.StatusFound).To(resp.DestinationURL)
}
