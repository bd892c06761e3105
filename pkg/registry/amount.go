package registry

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ConvertDecimals rescales a base-unit amount between tokens with differing
// decimal places (scale by 10^Δdecimals). Shrinking truncates toward zero;
// the dust below the coarser token's precision is unrepresentable anyway.
func ConvertDecimals(amount string, fromDecimals, toDecimals int) (string, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if fromDecimals == toDecimals {
		return d.Truncate(0).String(), nil
	}
	return d.Shift(int32(toDecimals - fromDecimals)).Truncate(0).String(), nil
}
