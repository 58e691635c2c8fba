package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeltaFor(t *testing.T) {
	assert.Equal(t, Credit(100), DeltaFor(100))
	assert.Equal(t, Debit(50), DeltaFor(-50))
	assert.Equal(t, Credit(0), DeltaFor(0))
}

func TestDeltaString(t *testing.T) {
	tests := []struct {
		delta    Delta
		expected string
	}{
		{Credit(100), "+100"},
		{Debit(50), "-50"},
		{SetTo(500), "=500"},
		{SetTo(0), "=0"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.delta.String())
		})
	}
}

func TestDeltaValid(t *testing.T) {
	assert.True(t, Credit(1).Valid())
	assert.True(t, SetTo(0).Valid())
	assert.False(t, Debit(-1).Valid())
	assert.False(t, Delta{Kind: "bonus", Amount: 5}.Valid())
}

func TestDescriptions(t *testing.T) {
	assert.Equal(t, "Money added", DescribeAdjustment("", Credit(5)))
	assert.Equal(t, "Money subtracted", DescribeAdjustment("", Debit(5)))
	assert.Equal(t, "Rent", DescribeAdjustment("Rent", Debit(5)))

	assert.Equal(t, "Balance set (was 1700)", DescribeSet("", 1700))
	assert.Equal(t, "Auction (was 20)", DescribeSet("Auction", 20))
}
