package dto

import "time"

// CreateBlockingRuleRequest creates a rule for the authenticated advertiser
type CreateBlockingRuleRequest struct {
	Name              string `json:"name" validate:"required,max=255"`
	TimeWindowMinutes *int   `json:"time_window_minutes,omitempty" validate:"omitempty,gt=0"`
	MaxClicks         *int   `json:"max_clicks,omitempty" validate:"omitempty,min=1"`
	IsActive          *bool  `json:"is_active,omitempty"`
}

// UpdateBlockingRuleRequest updates the provided fields only
type UpdateBlockingRuleRequest struct {
	Name              *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	TimeWindowMinutes *int    `json:"time_window_minutes,omitempty" validate:"omitempty,gt=0"`
	MaxClicks         *int    `json:"max_clicks,omitempty" validate:"omitempty,min=1"`
	IsActive          *bool   `json:"is_active,omitempty"`
}

// BlockingRuleItem is the API view of a rule
type BlockingRuleItem struct {
	ID                uint      `json:"id"`
	Name              string    `json:"name"`
	TimeWindowMinutes int       `json:"time_window_minutes"`
	MaxClicks         int       `json:"max_clicks"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ListBlockingRulesResponse lists all rules of an advertiser
type ListBlockingRulesResponse struct {
	Items []BlockingRuleItem `json:"items"`
}
