package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/shopspring/decimal"
)

// Platform — маркетплейс, с которого пришло объявление.
type Platform string

const (
	PlatformEbay    Platform = "eBay"
	PlatformEtsy    Platform = "Etsy"
	PlatformDepop   Platform = "Depop"
	PlatformGrailed Platform = "Grailed"
	PlatformThredUp Platform = "ThredUp"
)

var platforms = []Platform{PlatformEbay, PlatformEtsy, PlatformDepop, PlatformGrailed, PlatformThredUp}

// ParsePlatform сопоставляет строку с платформой без учёта регистра.
func ParsePlatform(s string) (Platform, error) {
	s = strings.TrimSpace(s)
	for _, p := range platforms {
		if strings.EqualFold(string(p), s) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", e.ErrInvalidPlatform, s)
}

// Listing описывает объявление о продаже вещи. ID присваивается платформой.
type Listing struct {
	ID             string
	Title          string
	Condition      string
	Price          decimal.NullDecimal
	Currency       string
	Image          string
	Platform       Platform
	URL            string
	SellerUsername string
	SellerFeedback string
	EmbeddedAt     *time.Time // nil, пока эмбеддинг не сохранён
	CreatedAt      time.Time
}

func NewListing(id, title, condition string, price decimal.NullDecimal, currency, image string, platform Platform, url string) *Listing {
	return &Listing{
		ID:        id,
		Title:     title,
		Condition: condition,
		Price:     price,
		Currency:  currency,
		Image:     image,
		Platform:  platform,
		URL:       url,
	}
}

// PriceValue возвращает цену как float64; NaN, если цена неизвестна.
func (l *Listing) PriceValue() float64 {
	if !l.Price.Valid {
		return math.NaN()
	}
	return l.Price.Decimal.InexactFloat64()
}

// EmbeddingText — текст, по которому строится эмбеддинг объявления.
func (l *Listing) EmbeddingText() string {
	return ListingEmbeddingText(l.Title, l.Condition, l.PriceValue())
}

// Ref возвращает ссылку на объявление как на элемент векторного хранилища.
func (l *Listing) Ref() ItemRef {
	return ItemRef{Kind: KindListing, ID: l.ID}
}

// LikedItem — отметка «нравится» пользователя.
type LikedItem struct {
	UserID    string
	ListingID string
	LikedAt   time.Time
}

// SavedItem — объявление, сохранённое пользователем.
type SavedItem struct {
	UserID    string
	ListingID string
	SavedAt   time.Time
}
