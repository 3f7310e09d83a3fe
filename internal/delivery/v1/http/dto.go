package http

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/DRSN-tech/thrift-backend/internal/usecase"
	"github.com/google/uuid"
)

// looseString принимает и строку, и число: площадки присылают цену по-разному.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = looseString(str)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = looseString(num.String())
	return nil
}

type listingRequest struct {
	ID             string      `json:"id" validate:"required"`
	Title          string      `json:"title" validate:"required"`
	Condition      string      `json:"condition"`
	Price          looseString `json:"price" validate:"required"`
	Currency       string      `json:"currency" validate:"required"`
	Image          string      `json:"image" validate:"required"`
	Platform       string      `json:"platform" validate:"required"`
	URL            string      `json:"url" validate:"required,url"`
	SellerUsername string      `json:"seller_username"`
	SellerFeedback string      `json:"seller_feedback"`
}

func (r *listingRequest) toInput() usecase.ListingInput {
	return usecase.ListingInput{
		ID:             r.ID,
		Title:          r.Title,
		Condition:      r.Condition,
		Price:          string(r.Price),
		Currency:       r.Currency,
		Image:          r.Image,
		Platform:       r.Platform,
		URL:            r.URL,
		SellerUsername: r.SellerUsername,
		SellerFeedback: r.SellerFeedback,
	}
}

type likeResponse struct {
	ListingID string `json:"listing_id"`
	Liked     bool   `json:"liked"`
	Message   string `json:"message"`
}

type saveResponse struct {
	ListingID string `json:"listing_id"`
	Saved     bool   `json:"saved"`
	Message   string `json:"message"`
}

type listingsResponse struct {
	Listings []usecase.ListingInfo `json:"listings"`
	NotFound []string              `json:"not_found"`
}

type uploadItemResponse struct {
	ItemID   uuid.UUID `json:"item_id"`
	ImageURL string    `json:"image_url"`
}

type wardrobeItemResponse struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	Embedded    bool      `json:"embedded"`
	CreatedAt   time.Time `json:"created_at"`
}

type wardrobeItemsResponse struct {
	Items []wardrobeItemResponse `json:"items"`
}

func newWardrobeItemsResponse(items []usecase.WardrobeItemInfo) *wardrobeItemsResponse {
	res := &wardrobeItemsResponse{Items: make([]wardrobeItemResponse, 0, len(items))}
	for _, it := range items {
		res.Items = append(res.Items, wardrobeItemResponse{
			ID:          it.ID,
			Type:        string(it.Type),
			Description: it.Description,
			ImageURL:    it.ImageURL,
			Embedded:    it.Embedded,
			CreatedAt:   it.CreatedAt,
		})
	}
	return res
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
