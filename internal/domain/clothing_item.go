package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClothingType — категория вещи гардероба.
type ClothingType string

const (
	TypeTops      ClothingType = "Tops"
	TypeBottoms   ClothingType = "Bottoms"
	TypeOuterwear ClothingType = "Outerwear"
	TypeFootwear  ClothingType = "Footwear"
	TypeOther     ClothingType = "Other"
)

// ParseClothingType нормализует регистр; неизвестные значения становятся Other.
func ParseClothingType(s string) ClothingType {
	for _, t := range []ClothingType{TypeTops, TypeBottoms, TypeOuterwear, TypeFootwear, TypeOther} {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t
		}
	}
	return TypeOther
}

// Wardrobe — гардероб пользователя, один на пользователя.
type Wardrobe struct {
	ID        uuid.UUID
	UserID    string
	CreatedAt time.Time
}

// ClothingItem — вещь, загруженная пользователем в гардероб.
type ClothingItem struct {
	ID          uuid.UUID
	WardrobeID  uuid.UUID
	UserID      string
	ImageKey    string
	Type        ClothingType
	Description string
	EmbeddedAt  *time.Time
	CreatedAt   time.Time
}

func NewClothingItem(wardrobeID uuid.UUID, userID, imageKey string) *ClothingItem {
	return &ClothingItem{
		ID:         uuid.New(),
		WardrobeID: wardrobeID,
		UserID:     userID,
		ImageKey:   imageKey,
		Type:       TypeOther,
	}
}

func (c *ClothingItem) Ref() ItemRef {
	return ItemRef{Kind: KindWardrobeItem, ID: c.ID.String()}
}
