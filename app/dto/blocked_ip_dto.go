package dto

import "time"

// ListBlockedIPsRequest pages through confirmed blocks
type ListBlockedIPsRequest struct {
	Page     int `query:"page" json:"page" validate:"omitempty,min=1"`
	PageSize int `query:"page_size" json:"page_size" validate:"omitempty,min=1,max=100"`
}

// BlockedIPItem is one confirmed block
type BlockedIPItem struct {
	ID        uint       `json:"id"`
	IPAddress string     `json:"ip_address"`
	Memo      *string    `json:"memo,omitempty"`
	BlockedAt *time.Time `json:"blocked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ListBlockedIPsResponse is a page of blocks
type ListBlockedIPsResponse struct {
	Items      []BlockedIPItem `json:"items"`
	Pagination Pagination      `json:"pagination"`
}
