package payments

import "math"

// Fee model: the gateway charges a fixed-plus-percentage fee per settled
// payment; the platform takes a flat percentage of the pledge. The gateway
// estimate is provisional and is replaced by the fee derived from the
// gateway's actual settled amount when the settlement event reports one.
const (
	gatewayFeeRate  = 0.029
	gatewayFeeFixed = 0.30
	platformFeeRate = 0.05
)

// RoundMinor rounds to two decimal places (the currency's minor unit),
// half away from zero.
func RoundMinor(v float64) float64 {
	return math.Round(v*100) / 100
}

// GatewayFeeEstimate returns the estimated gateway fee for a pledge amount.
func GatewayFeeEstimate(amount float64) float64 {
	return RoundMinor(amount*gatewayFeeRate + gatewayFeeFixed)
}

// PlatformFee returns the platform's cut of a pledge amount.
func PlatformFee(amount float64) float64 {
	return RoundMinor(amount * platformFeeRate)
}

// NetAmount returns what remains of a pledge after gateway fees.
func NetAmount(amount, fees float64) float64 {
	return RoundMinor(amount - fees)
}
