package ordereddatastore

import (
	"math"
	"math/big"
)

var (
	minValue = big.NewInt(math.MinInt64)
	maxValue = big.NewInt(math.MaxInt64)
)

// CheckValue returns v as an int64, or a *ValueRangeError when v is nil or
// outside [math.MinInt64, math.MaxInt64]. Both bounds are inclusive.
func CheckValue(v *big.Int) (int64, error) {
	if v == nil {
		return 0, &ValueRangeError{}
	}
	if v.Cmp(maxValue) > 0 || v.Cmp(minValue) < 0 {
		return 0, &ValueRangeError{Value: new(big.Int).Set(v)}
	}
	return v.Int64(), nil
}
