package dto

import "time"

// TrackClickRequest is bound from the landing redirect query string
type TrackClickRequest struct {
	AdvertiserID   uint   `json:"advertiser_id" validate:"required,gt=0"`
	CustomerID     int64  `query:"customer_id" json:"customer_id" validate:"required,gt=0"`
	DestinationURL string `query:"destination_url" json:"destination_url" validate:"required,url,max=2048"`
	Keyword        string `query:"keyword" json:"keyword,omitempty" validate:"omitempty,max=255"`
	MatchType      string `query:"match_type" json:"match_type,omitempty" validate:"omitempty,max=50"`
	NetworkType    string `query:"network_type" json:"network_type,omitempty" validate:"omitempty,max=50"`
	DeviceType     string `query:"device_type" json:"device_type,omitempty" validate:"omitempty,max=50"`
	AdGroupID      string `query:"ad_group_id" json:"ad_group_id,omitempty" validate:"omitempty,max=64"`
	AdID           string `query:"ad_id" json:"ad_id,omitempty" validate:"omitempty,max=64"`
	KeywordID      string `query:"keyword_id" json:"keyword_id,omitempty" validate:"omitempty,max=64"`
	CreativeID     string `query:"creative_id" json:"creative_id,omitempty" validate:"omitempty,max=64"`
	Query          string `query:"query" json:"query,omitempty" validate:"omitempty,max=255"`
}

// TrackClickResponse tells the handler where to redirect
type TrackClickResponse struct {
	ClickID        uint   `json:"click_id"`
	DestinationURL string `json:"destination_url"`
}

// ListAdClicksRequest filters the click log of the authenticated advertiser
type ListAdClicksRequest struct {
	// StartDate and EndDate accept RFC3339 or YYYY-MM-DD; a bare EndDate date includes that whole day
	StartDate string `query:"start_date" json:"start_date,omitempty"`
	EndDate   string `query:"end_date" json:"end_date,omitempty"`
	ClientIP  string `query:"client_ip" json:"client_ip,omitempty" validate:"omitempty,ip"`
	Page      int    `query:"page" json:"page" validate:"omitempty,min=1"`
	PageSize  int    `query:"page_size" json:"page_size" validate:"omitempty,min=1,max=100"`
}

// AdClickItem is one click log row
type AdClickItem struct {
	ID             uint      `json:"id"`
	ClientIP       string    `json:"client_ip"`
	DestinationURL *string   `json:"destination_url,omitempty"`
	Keyword        *string   `json:"keyword,omitempty"`
	MatchType      *string   `json:"match_type,omitempty"`
	NetworkType    *string   `json:"network_type,omitempty"`
	DeviceType     *string   `json:"device_type,omitempty"`
	AdGroupID      *string   `json:"ad_group_id,omitempty"`
	AdID           *string   `json:"ad_id,omitempty"`
	KeywordID      *string   `json:"keyword_id,omitempty"`
	CreativeID     *string   `json:"creative_id,omitempty"`
	Query          *string   `json:"query,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListAdClicksResponse is a page of clicks
type ListAdClicksResponse struct {
	Items      []AdClickItem `json:"items"`
	Pagination Pagination    `json:"pagination"`
}

// Pagination describes the returned page
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}
