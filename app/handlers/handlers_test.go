package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/click-sentinel/app/dto"
	"github.com/amirphl/click-sentinel/app/middleware"
	"github.com/amirphl/click-sentinel/app/services"
	businessflow "github.com/amirphl/click-sentinel/business_flow"
	"github.com/amirphl/click-sentinel/models"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClickFlow struct {
	err  error
	got  *dto.TrackClickRequest
	meta *businessflow.ClientMetadata
}

func (s *stubClickFlow) TrackClick(_ context.Context, req *dto.TrackClickRequest, metadata *businessflow.ClientMetadata) (*dto.TrackClickResponse, error) {
	s.got = req
	s.meta = metadata
	if s.err != nil {
		return nil, s.err
	}
	return &dto.TrackClickResponse{ClickID: 1, DestinationURL: req.DestinationURL}, nil
}

func (s *stubClickFlow) Wait() {}

type stubRuleFlow struct {
	err error
}

func (s *stubRuleFlow) Create(_ context.Context, advertiserID uint, req *dto.CreateBlockingRuleRequest) (*dto.BlockingRuleItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.BlockingRuleItem{ID: 1, Name: req.Name, TimeWindowMinutes: 60, MaxClicks: 5, IsActive: true}, nil
}

func (s *stubRuleFlow) List(context.Context, uint) (*dto.ListBlockingRulesResponse, error) {
	return &dto.ListBlockingRulesResponse{Items: []dto.BlockingRuleItem{}}, s.err
}

func (s *stubRuleFlow) Update(_ context.Context, _, ruleID uint, _ *dto.UpdateBlockingRuleRequest) (*dto.BlockingRuleItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.BlockingRuleItem{ID: ruleID}, nil
}

func (s *stubRuleFlow) Delete(context.Context, uint, uint) error {
	return s.err
}

type stubReportFlow struct {
	advertiserID uint
}

func (s *stubReportFlow) ListClicks(_ context.Context, advertiserID uint, req *dto.ListAdClicksRequest) (*dto.ListAdClicksResponse, error) {
	s.advertiserID = advertiserID
	if req.StartDate == "bad" {
		return nil, businessflow.ErrInvalidDateFormat
	}
	return &dto.ListAdClicksResponse{Items: []dto.AdClickItem{}}, nil
}

func (s *stubReportFlow) ListBlockedIPs(_ context.Context, advertiserID uint, _ *dto.ListBlockedIPsRequest) (*dto.ListBlockedIPsResponse, error) {
	s.advertiserID = advertiserID
	return &dto.ListBlockedIPsResponse{Items: []dto.BlockedIPItem{}}, nil
}

func (s *stubReportFlow) ExportBlockedIPs(_ context.Context, advertiserID uint) (string, []byte, error) {
	s.advertiserID = advertiserID
	return "blocked_ips.xlsx", []byte("PK"), nil
}

func decode(t *testing.T, resp *http.Response) dto.APIResponse {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out dto.APIResponse
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	out := decode(t, resp)
	detail, _ := out.Error.(map[string]any)
	code, _ := detail["code"].(string)
	return code
}

func landingApp(flow businessflow.AdClickFlow) *fiber.App {
	app := fiber.New()
	h := NewAdTrackingHandler(flow, nil)
	app.Get("/ads/landing/:advertiser_id", h.Landing)
	return app
}

func TestLanding(t *testing.T) {
	query := url.Values{
		"customer_id":     {"1234"},
		"destination_url": {"https://shop.example.com/p?id=1"},
		"keyword":         {"shoes"},
	}.Encode()

	tests := []struct {
		name       string
		path       string
		flowErr    error
		wantStatus int
		wantCode   string
	}{
		{"redirects", "/ads/landing/7?" + query, nil, fiber.StatusFound, ""},
		{"unknown advertiser", "/ads/landing/7?" + query, businessflow.ErrAdvertiserNotFound, fiber.StatusNotFound, "ADVERTISER_NOT_FOUND"},
		{"inactive advertiser", "/ads/landing/7?" + query, businessflow.ErrAdvertiserInactive, fiber.StatusNotFound, "ADVERTISER_NOT_FOUND"},
		{"customer mismatch", "/ads/landing/7?" + query, businessflow.ErrCustomerIDMismatch, fiber.StatusBadRequest, "CUSTOMER_ID_MISMATCH"},
		{"storage fault still redirects", "/ads/landing/7?" + query, errors.New("db down"), fiber.StatusFound, ""},
		{"bad advertiser id", "/ads/landing/abc?" + query, nil, fiber.StatusBadRequest, "INVALID_ADVERTISER_ID"},
		{"missing destination", "/ads/landing/7?customer_id=1234", nil, fiber.StatusBadRequest, "VALIDATION_ERROR"},
		{"relative destination", "/ads/landing/7?customer_id=1234&destination_url=%2Fhome", nil, fiber.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := &stubClickFlow{err: tt.flowErr}
			resp, err := landingApp(flow).Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == fiber.StatusFound {
				assert.Equal(t, "https://shop.example.com/p?id=1", resp.Header.Get("Location"))
				require.NotNil(t, flow.got)
				assert.Equal(t, uint(7), flow.got.AdvertiserID)
				assert.Equal(t, int64(1234), flow.got.CustomerID)
				assert.Equal(t, "shoes", flow.got.Keyword)
				assert.NotEmpty(t, flow.meta.IPAddress)
				return
			}
			assert.Equal(t, tt.wantCode, errorCode(t, resp))
		})
	}
}

func TestLanding_UpstreamTemplateParameters(t *testing.T) {
	query := url.Values{
		"customerid":   {"555"},
		"final_url":    {"https://shop.example.com/"},
		"n_keyword":    {"boots"},
		"n_match":      {"exact"},
		"n_network":    {"search"},
		"n_media":      {"mobile"},
		"n_ad_group":   {"grp-1"},
		"n_ad":         {"ad-1"},
		"n_keyword_id": {"kw-1"},
		"n_creative":   {"cr-1"},
		"n_query":      {"winter boots"},
	}.Encode()

	flow := &stubClickFlow{}
	resp, err := landingApp(flow).Test(httptest.NewRequest(http.MethodGet, "/ads/landing/3?"+query, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)

	require.NotNil(t, flow.got)
	assert.Equal(t, int64(555), flow.got.CustomerID)
	assert.Equal(t, "https://shop.example.com/", flow.got.DestinationURL)
	assert.Equal(t, "boots", flow.got.Keyword)
	assert.Equal(t, "exact", flow.got.MatchType)
	assert.Equal(t, "search", flow.got.NetworkType)
	assert.Equal(t, "mobile", flow.got.DeviceType)
	assert.Equal(t, "grp-1", flow.got.AdGroupID)
	assert.Equal(t, "ad-1", flow.got.AdID)
	assert.Equal(t, "kw-1", flow.got.KeywordID)
	assert.Equal(t, "cr-1", flow.got.CreativeID)
	assert.Equal(t, "winter boots", flow.got.Query)
}

func authedApp(t *testing.T, ruleFlow businessflow.BlockingRuleFlow, reportFlow businessflow.AdReportFlow) (*fiber.App, string) {
	t.Helper()
	tokens, err := services.NewTokenService(time.Hour, "click-sentinel", "", strings.Repeat("k", 32))
	require.NoError(t, err)
	token, err := tokens.GenerateToken(42)
	require.NoError(t, err)

	app := fiber.New()
	api := app.Group("/api/v1", middleware.NewAuthMiddleware(tokens).Authenticate())

	rules := NewBlockingRuleHandler(ruleFlow, nil)
	api.Post("/blocking-rules", rules.Create)
	api.Get("/blocking-rules", rules.List)
	api.Put("/blocking-rules/:id", rules.Update)
	api.Delete("/blocking-rules/:id", rules.Delete)

	reports := NewAdReportHandler(reportFlow, nil)
	api.Get("/ads/clicks", reports.ListClicks)
	api.Get("/blocked-ips", reports.ListBlockedIPs)
	api.Get("/blocked-ips/export", reports.ExportBlockedIPs)

	return app, token
}

func request(method, target, token, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestBlockingRuleHandler(t *testing.T) {
	app, token := authedApp(t, &stubRuleFlow{}, &stubReportFlow{})

	resp, err := app.Test(request(http.MethodGet, "/api/v1/blocking-rules", "", ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MISSING_AUTHORIZATION_HEADER", errorCode(t, resp))

	resp, err = app.Test(request(http.MethodGet, "/api/v1/blocking-rules", "not-a-jwt", ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "TOKEN_INVALID", errorCode(t, resp))

	resp, err = app.Test(request(http.MethodPost, "/api/v1/blocking-rules", token, `{"name":"default","max_clicks":5}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	out := decode(t, resp)
	assert.True(t, out.Success)

	resp, err = app.Test(request(http.MethodPost, "/api/v1/blocking-rules", token, `{"name":"bad","max_clicks":0}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, resp))

	resp, err = app.Test(request(http.MethodPut, "/api/v1/blocking-rules/zero", token, `{"max_clicks":3}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_RULE_ID", errorCode(t, resp))

	resp, err = app.Test(request(http.MethodPut, "/api/v1/blocking-rules/9", token, `{"max_clicks":3}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestBlockingRuleHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", businessflow.ErrBlockingRuleNotFound, fiber.StatusNotFound, "BLOCKING_RULE_NOT_FOUND"},
		{"nothing to update", businessflow.ErrBlockingRuleUpdateMissing, fiber.StatusBadRequest, "NO_FIELDS_TO_UPDATE"},
		{"invalid rule", models.ErrRuleWindowInvalid, fiber.StatusBadRequest, "BLOCKING_RULE_INVALID"},
		{"storage", errors.New("db down"), fiber.StatusInternalServerError, "BLOCKING_RULE_UPDATE_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, token := authedApp(t, &stubRuleFlow{err: tt.err}, &stubReportFlow{})
			resp, err := app.Test(request(http.MethodPut, "/api/v1/blocking-rules/9", token, `{"name":"x"}`))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, errorCode(t, resp))
		})
	}

	app, token := authedApp(t, &stubRuleFlow{err: businessflow.ErrBlockingRuleNotFound}, &stubReportFlow{})
	resp, err := app.Test(request(http.MethodDelete, "/api/v1/blocking-rules/9", token, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAdReportHandler(t *testing.T) {
	reports := &stubReportFlow{}
	app, token := authedApp(t, &stubRuleFlow{}, reports)

	resp, err := app.Test(request(http.MethodGet, "/api/v1/ads/clicks?start_date=2026-03-01&page=1&page_size=10", token, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, uint(42), reports.advertiserID)

	resp, err = app.Test(request(http.MethodGet, "/api/v1/ads/clicks?start_date=bad", token, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_DATE", errorCode(t, resp))

	resp, err = app.Test(request(http.MethodGet, "/api/v1/ads/clicks?page_size=1000", token, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(request(http.MethodGet, "/api/v1/blocked-ips", token, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(request(http.MethodGet, "/api/v1/blocked-ips/export", token, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "blocked_ips.xlsx")
}
