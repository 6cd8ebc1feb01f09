package reputation

import (
	"math"
	"math/big"
)

var hundred = big.NewInt(100)

// Delta converts a settled amount into a reputation step: amount/100 with a
// floor of one for any positive amount. Non-positive amounts yield zero and
// very large amounts saturate at math.MaxInt64.
func Delta(amount *big.Int) int64 {
	if amount == nil || amount.Sign() <= 0 {
		return 0
	}
	step := new(big.Int).Quo(amount, hundred)
	if !step.IsInt64() {
		return math.MaxInt64
	}
	if v := step.Int64(); v > 1 {
		return v
	}
	return 1
}

// addSaturating returns a+b pinned to the int64 range.
func addSaturating(a, b int64) int64 {
	sum := a + b
	if b > 0 && sum < a {
		return math.MaxInt64
	}
	if b < 0 && sum > a {
		return math.MinInt64
	}
	return sum
}

// negate flips the sign of v without overflowing on math.MinInt64.
func negate(v int64) int64 {
	if v == math.MinInt64 {
		return math.MaxInt64
	}
	return -v
}
