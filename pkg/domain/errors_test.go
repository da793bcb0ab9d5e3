package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorCodes(t *testing.T) {
	t.Run("Invalid range is detected through wrapping", func(t *testing.T) {
		err := fmt.Errorf("filter: %w", NewInvalidRangeError("2024-06-01", "2024-01-01"))
		assert.True(t, IsInvalidRange(err))
		assert.False(t, IsSchemaViolation(err))
		assert.Equal(t, ErrCodeInvalidRange, GetErrorCode(err))
	})

	t.Run("Schema violation names the field", func(t *testing.T) {
		err := NewSchemaViolationError("orders", "order_date")
		assert.True(t, IsSchemaViolation(err))
		assert.Contains(t, err.Error(), "missing required field: order_date")
	})

	t.Run("Missing source keeps the cause", func(t *testing.T) {
		cause := errors.New("open sales.csv: no such file")
		err := NewMissingSourceError("orders", cause)
		assert.True(t, IsMissingSource(err))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("Plain errors map to internal", func(t *testing.T) {
		assert.Equal(t, ErrCodeInternal, GetErrorCode(errors.New("boom")))
	})
}

func TestAssignSegment(t *testing.T) {
	tests := []struct {
		name   string
		clv    float64
		orders int
		want   Segment
	}{
		{"Premium at both thresholds", 300, 10, SegmentPremium},
		{"High CLV but few orders", 450, 3, SegmentBasic},
		{"Standard lower bound", 150, 5, SegmentStandard},
		{"Standard upper edge", 299.99, 9, SegmentStandard},
		{"Standard CLV with premium order count", 200, 12, SegmentBasic},
		{"Low CLV", 40, 15, SegmentBasic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssignSegment(tt.clv, tt.orders))
		})
	}
}

func TestCampaignActiveInclusive(t *testing.T) {
	c := Campaign{
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, c.Active(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, c.Active(time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, c.Active(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)))
	assert.False(t, c.Active(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestCampaignROI(t *testing.T) {
	assert.Equal(t, 0.0, Campaign{Conversions: 10}.ROI())
	assert.InDelta(t, 2.5, Campaign{Spend: 400, Conversions: 10}.ROI(), 0.0001)
}
