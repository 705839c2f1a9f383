package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/promoserve/promoserve/internal/models"
)

func TestDerivedRates(t *testing.T) {
	testCases := []struct {
		name         string
		counters     models.Analytics
		expectedCTR  float64
		expectedConv float64
	}{
		{
			name:         "zero everything",
			counters:     models.Analytics{},
			expectedCTR:  0,
			expectedConv: 0,
		},
		{
			name:         "impressions without clicks",
			counters:     models.Analytics{Impressions: 500},
			expectedCTR:  0,
			expectedConv: 0,
		},
		{
			name:         "ten impressions three clicks",
			counters:     models.Analytics{Impressions: 10, Clicks: 3},
			expectedCTR:  30,
			expectedConv: 0,
		},
		{
			name:         "full funnel",
			counters:     models.Analytics{Impressions: 1000, Clicks: 50, Conversions: 7},
			expectedCTR:  5,
			expectedConv: 14,
		},
		{
			name:         "rounds half up",
			counters:     models.Analytics{Impressions: 800, Clicks: 1},
			expectedCTR:  0.13, // 0.125 rounds up
			expectedConv: 0,
		},
		{
			name:         "repeating decimal",
			counters:     models.Analytics{Impressions: 3, Clicks: 1},
			expectedCTR:  33.33,
			expectedConv: 0,
		},
		{
			name:         "clicks without impressions still rate conversions",
			counters:     models.Analytics{Clicks: 4, Conversions: 1},
			expectedCTR:  0,
			expectedConv: 25,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctr, conv := DerivedRates(tc.counters)
			assert.InDelta(t, tc.expectedCTR, ctr, 1e-9)
			assert.InDelta(t, tc.expectedConv, conv, 1e-9)
		})
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 0.13, round2(0.125))
	assert.Equal(t, 0.12, round2(0.1249))
	assert.Equal(t, 100.0, round2(99.999))
	assert.Equal(t, 0.0, round2(0))
}
