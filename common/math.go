package common

import "github.com/shopspring/decimal"

// DecimalToFixed rounds num to precision decimal places (half away from zero).
func DecimalToFixed(num float64, precision int) float64 {
	return decimal.NewFromFloat(num).Round(int32(precision)).InexactFloat64()
}
