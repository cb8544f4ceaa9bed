package payments

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGatewayFeeEstimate(t *testing.T) {
	tests := []struct {
		amount float64
		want   float64
	}{
		{100.00, 3.20},
		{1.00, 0.33},
		{50.00, 1.75},
		{33.33, 1.27},  // 0.96657 + 0.30 = 1.26657 -> 1.27
		{10.17, 0.59},  // 0.294930 + 0.30 = 0.59493 -> 0.59
		{250.00, 7.55}, // 7.25 + 0.30
	}
	for _, tt := range tests {
		require.InDelta(t, tt.want, GatewayFeeEstimate(tt.amount), 1e-9,
			"fee estimate for %.2f", tt.amount)
	}
}

func TestPlatformFee(t *testing.T) {
	tests := []struct {
		amount float64
		want   float64
	}{
		{100.00, 5.00},
		{1.00, 0.05},
		{20.00, 1.00},
		{0.10, 0.01}, // 0.005 rounds up, not to even
	}
	for _, tt := range tests {
		require.InDelta(t, tt.want, PlatformFee(tt.amount), 1e-9,
			"platform fee for %.2f", tt.amount)
	}
}

func TestNetAmount(t *testing.T) {
	require.InDelta(t, 96.80, NetAmount(100.00, 3.20), 1e-9)
	require.InDelta(t, 0.67, NetAmount(1.00, 0.33), 1e-9)
}

func TestRoundMinorHalfAwayFromZero(t *testing.T) {
	// 0.125 is exactly representable, so the half case is genuine.
	require.InDelta(t, 0.13, RoundMinor(0.125), 1e-9)
	require.InDelta(t, -0.13, RoundMinor(-0.125), 1e-9)
	require.InDelta(t, 3.14, RoundMinor(3.14159), 1e-9)
}
