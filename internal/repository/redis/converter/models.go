package converter

import "github.com/shopspring/decimal"

type ListingInfoRedisModel struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	Condition string              `json:"condition"`
	Price     decimal.NullDecimal `json:"price"`
	Currency  string              `json:"currency"`
	Image     string              `json:"image"`
	Platform  string              `json:"platform"`
	URL       string              `json:"url"`
	Saves     int64               `json:"saves"`
}

type RecommendedListingRedisModel struct {
	ListingID  string                 `json:"listing_id"`
	Similarity float64                `json:"similarity"`
	Listing    *ListingInfoRedisModel `json:"listing,omitempty"`
}

type RecommendationsRedisModel struct {
	Results []RecommendedListingRedisModel `json:"results"`
	Source  string                         `json:"source"`
}
