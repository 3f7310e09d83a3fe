package domain

import (
	"math"
	"strings"
)

const (
	PriceCheap    = "cheap price"
	PriceMidRange = "mid-range price"
	PricePremium  = "premium price"
	PriceUnknown  = "unknown price"

	unknownCondition = "unknown condition"
)

// PriceBucket переводит цену в текстовый диапазон: <25, [25, 100), >=100.
func PriceBucket(price float64) string {
	switch {
	case math.IsNaN(price) || math.IsInf(price, 0):
		return PriceUnknown
	case price < 25:
		return PriceCheap
	case price < 100:
		return PriceMidRange
	default:
		return PricePremium
	}
}

// ListingEmbeddingText собирает "<title>, <condition>, <price bucket>".
func ListingEmbeddingText(title, condition string, price float64) string {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		condition = unknownCondition
	}
	return strings.TrimSpace(title) + ", " + condition + ", " + PriceBucket(price)
}
