// Package businessflow contains the click evaluation pipeline and the advertiser-facing use cases
package businessflow

import (
	"github.com/amirphl/click-sentinel/app/dto"
	"github.com/amirphl/click-sentinel/models"
	"github.com/amirphl/click-sentinel/utils"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client information captured with a click
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToBlockingRuleDTO converts a rule model to its API view
func ToBlockingRuleDTO(rule models.BlockingRule) dto.BlockingRuleItem {
	return dto.BlockingRuleItem{
		ID:                rule.ID,
		Name:              rule.Name,
		TimeWindowMinutes: rule.TimeWindowMinutes,
		MaxClicks:         rule.MaxClicks,
		IsActive:          utils.IsTrue(rule.IsActive),
		CreatedAt:         rule.CreatedAt,
		UpdatedAt:         rule.UpdatedAt,
	}
}

// ToAdClickDTO converts a click model to its API view
func ToAdClickDTO(click models.AdClick) dto.AdClickItem {
	return dto.AdClickItem{
		ID:             click.ID,
		ClientIP:       click.ClientIP,
		DestinationURL: click.DestinationURL,
		Keyword:        click.Keyword,
		MatchType:      click.MatchType,
		NetworkType:    click.NetworkType,
		DeviceType:     click.DeviceType,
		AdGroupID:      click.AdGroupID,
		AdID:           click.AdID,
		KeywordID:      click.KeywordID,
		CreativeID:     click.CreativeID,
		Query:          click.Query,
		CreatedAt:      click.CreatedAt,
	}
}

// ToBlockedIPDTO converts a confirmed block to its API view
func ToBlockedIPDTO(row models.BlockedIP) dto.BlockedIPItem {
	return dto.BlockedIPItem{
		ID:        row.ID,
		IPAddress: row.IPAddress,
		Memo:      row.Memo,
		BlockedAt: row.BlockedAt,
		CreatedAt: row.CreatedAt,
	}
}

// normalizePage clamps page and size to the supported range
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = utils.DefaultPageSize
	}
	if pageSize > utils.MaxPageSize {
		pageSize = utils.MaxPageSize
	}
	return page, pageSize
}

func newPagination(page, pageSize int, total int64) dto.Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return dto.Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}
