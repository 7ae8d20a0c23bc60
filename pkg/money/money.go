// Package money keeps all amount arithmetic in integer minor units.
// Floating point never touches stored amounts; the one configured
// currency conversion happens through decimal math at checkout time.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorUnitsPerMajor is the scale shared by every currency this platform
// charges in (cents for USD, kobo for NGN).
const MinorUnitsPerMajor = 100

// ConvertMinor converts an amount in minor units of the source currency
// into minor units of the target currency at an integer major-unit rate.
// 9900 USD cents at rate 1600 becomes 15_840_000 kobo.
func ConvertMinor(amountMinor int64, rate int64) (int64, error) {
	if amountMinor < 0 {
		return 0, fmt.Errorf("amount must be non-negative, got %d", amountMinor)
	}
	if rate <= 0 {
		return 0, fmt.Errorf("conversion rate must be positive, got %d", rate)
	}
	return amountMinor * rate, nil
}

// UnconvertMinor re-derives the original minor amount from a converted one.
// It errors if the converted amount is not an exact multiple of the rate,
// which would mean the stored metadata was tampered with or drifted.
func UnconvertMinor(convertedMinor int64, rate int64) (int64, error) {
	if rate <= 0 {
		return 0, fmt.Errorf("conversion rate must be positive, got %d", rate)
	}
	if convertedMinor%rate != 0 {
		return 0, fmt.Errorf("amount %d is not divisible by rate %d", convertedMinor, rate)
	}
	return convertedMinor / rate, nil
}

// CommissionMinor computes rate×amount in minor units, rounding half up.
func CommissionMinor(amountMinor int64, rate float64) (int64, error) {
	if amountMinor < 0 {
		return 0, fmt.Errorf("amount must be non-negative, got %d", amountMinor)
	}
	if rate < 0 || rate > 1 {
		return 0, fmt.Errorf("commission rate must be within [0,1], got %v", rate)
	}
	amount := decimal.NewFromInt(amountMinor)
	result := amount.Mul(decimal.NewFromFloat(rate)).Round(0)
	return result.IntPart(), nil
}

// MajorToMinor scales a major-unit amount to minor units.
func MajorToMinor(amountMajor int64) int64 {
	return amountMajor * MinorUnitsPerMajor
}

// MinorToMajorString renders a minor amount as a major-unit decimal string
// for display, e.g. 9900 -> "99.00".
func MinorToMajorString(amountMinor int64) string {
	return decimal.NewFromInt(amountMinor).
		Div(decimal.NewFromInt(MinorUnitsPerMajor)).
		StringFixed(2)
}
