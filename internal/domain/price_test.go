package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPriceBucket(t *testing.T) {
	tests := []struct {
		price float64
		want  string
	}{
		{10, PriceCheap},
		{0, PriceCheap},
		{24.99, PriceCheap},
		{25, PriceMidRange},
		{50, PriceMidRange},
		{99.99, PriceMidRange},
		{100, PricePremium},
		{150, PricePremium},
		{math.NaN(), PriceUnknown},
		{math.Inf(1), PriceUnknown},
	}

	for _, tt := range tests {
		if got := PriceBucket(tt.price); got != tt.want {
			t.Errorf("PriceBucket(%v) = %q, want %q", tt.price, got, tt.want)
		}
	}
}

func TestListingEmbeddingText(t *testing.T) {
	l := NewListing("123", "Vintage Levi's 501", "Pre-owned",
		decimal.NewNullDecimal(decimal.RequireFromString("45.00")), "USD", "img", PlatformEbay, "https://example.com")

	if got, want := l.EmbeddingText(), "Vintage Levi's 501, Pre-owned, mid-range price"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	l.Condition = ""
	l.Price = decimal.NullDecimal{}
	if got, want := l.EmbeddingText(), "Vintage Levi's 501, unknown condition, unknown price"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform("depop")
	if err != nil || p != PlatformDepop {
		t.Errorf("got %q, %v", p, err)
	}

	if _, err := ParsePlatform("vinted"); err == nil {
		t.Error("expected error for unknown platform")
	}
}
