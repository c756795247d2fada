package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBlockingRule_Window(t *testing.T) {
	assert.Equal(t, 90*time.Minute, BlockingRule{TimeWindowMinutes: 90}.Window())
	assert.Zero(t, BlockingRule{}.Window())
}

func TestBlockingRule_ValidateAndExceeded(t *testing.T) {
	tests := []struct {
		name    string
		rule    BlockingRule
		wantErr error
	}{
		{"valid", BlockingRule{TimeWindowMinutes: 60, MaxClicks: 5}, nil},
		{"zero window", BlockingRule{TimeWindowMinutes: 0, MaxClicks: 5}, ErrRuleWindowInvalid},
		{"zero max clicks", BlockingRule{TimeWindowMinutes: 60, MaxClicks: 0}, ErrRuleMaxClicksInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsRuleInvalid(err))
		})
	}

	rule := BlockingRule{TimeWindowMinutes: 60, MaxClicks: 5}
	assert.False(t, rule.Exceeded(5))
	assert.True(t, rule.Exceeded(6))
}
