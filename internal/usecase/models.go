package usecase

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/DRSN-tech/thrift-backend/internal/domain"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LISTING USECASE

// ListingInput — данные объявления, присланные клиентом вместе с лайком или сохранением.
type ListingInput struct {
	ID             string
	Title          string
	Condition      string
	Price          string // как прислал клиент; нечисловое значение даёт "unknown price"
	Currency       string
	Image          string
	Platform       string
	URL            string
	SellerUsername string
	SellerFeedback string
}

// ListingActionReq — запрос на лайк или сохранение объявления.
type ListingActionReq struct {
	UserID  string
	Listing ListingInput
}

// ListingActionRes — итог действия. Changed=false, если состояние уже было таким.
type ListingActionRes struct {
	ListingID string
	Active    bool
	Changed   bool
}

type GetListingsReq struct {
	IDs []string
}

type GetListingsRes struct {
	Listings         []ListingInfo
	NotFoundListings []string
}

// ListingInfo — DTO с информацией об объявлении для внешнего использования.
type ListingInfo struct {
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

// WARDROBE USECASE

// WardrobeImage представляет изображение, загруженное через multipart/form-data.
type WardrobeImage struct {
	Data     []byte // байты изображения
	MimeType string // Content-Type из multipart (image/jpeg)
	Size     int64  // фактический размер в байтах
	Name     string // оригинальное имя файла (для логов)
}

type UploadWardrobeImageReq struct {
	UserID string
	Image  WardrobeImage
}

type UploadWardrobeImageRes struct {
	ItemID   uuid.UUID
	ImageURL string
}

type WardrobeItemInfo struct {
	ID          uuid.UUID
	Type        domain.ClothingType
	Description string
	ImageURL    string
	Embedded    bool
	CreatedAt   time.Time
}

// RECOMMENDATION USECASE

type RecommendReq struct {
	UserID string
	Limit  int
}

type RecommendedListing struct {
	ListingID  string       `json:"listing_id"`
	Similarity float64      `json:"similarity"`
	Listing    *ListingInfo `json:"listing,omitempty"`
}

type RecommendationsRes struct {
	Results []RecommendedListing        `json:"results"`
	Source  domain.RecommendationSource `json:"source"`
}

// Clone возвращает глубокую копию выдачи.
func (r *RecommendationsRes) Clone() *RecommendationsRes {
	out := &RecommendationsRes{Source: r.Source}
	if r.Results == nil {
		return out
	}

	out.Results = make([]RecommendedListing, len(r.Results))
	for i, item := range r.Results {
		if item.Listing != nil {
			listing := *item.Listing
			item.Listing = &listing
		}
		out.Results[i] = item
	}
	return out
}

// INFRASTRUCTURE

// UploadImagesRes — результат загрузки изображений (ключи в MinIO).
type UploadImagesRes struct {
	ImagesKeys []string
}

// UploadImagesReq — запрос на загрузку изображений пользователя.
type UploadImagesReq struct {
	Prefix string
	Images []WardrobeImage
}

// WriteRawMessageReq — готовое к отправке сообщение. Key — user id, чтобы события одного
// пользователя шли в одну партицию по порядку.
type WriteRawMessageReq struct {
	Key       string
	EventType EventType
	Payload   []byte
}

// OUTBOX

type OutboxStatus string

const (
	Pending    OutboxStatus = "pending"
	Processing OutboxStatus = "processing"
	Processed  OutboxStatus = "processed"
	Failed     OutboxStatus = "failed"
)

type EventType string

const (
	EventListingLiked         EventType = "listing.liked"
	EventListingSaved         EventType = "listing.saved"
	EventListingUnliked       EventType = "listing.unliked"
	EventWardrobeItemUploaded EventType = "wardrobe_item.uploaded"
)

// OutboxEvent — событие, записанное в одной транзакции с действием пользователя.
type OutboxEvent struct {
	ID          int64
	EventID     uuid.UUID
	EventType   EventType
	UserID      string
	Payload     []byte
	Status      OutboxStatus
	Attempts    int
	AvailableAt time.Time
	LastError   string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// StyleEvent — полезная нагрузка события обновления style-вектора.
type StyleEvent struct {
	EventID        uuid.UUID `json:"event_id"`
	Type           EventType `json:"type"`
	UserID         string    `json:"user_id"`
	ListingID      string    `json:"listing_id,omitempty"`
	ClothingItemID string    `json:"clothing_item_id,omitempty"`
	ImageKey       string    `json:"image_key,omitempty"`
	MimeType       string    `json:"mime_type,omitempty"`
	Attempt        int       `json:"attempt"`
}

// MAPPERS

func NewListingStyleEvent(eventType EventType, userID, listingID string) *StyleEvent {
	return &StyleEvent{
		EventID:   uuid.New(),
		Type:      eventType,
		UserID:    userID,
		ListingID: listingID,
	}
}

func NewWardrobeStyleEvent(userID string, item *domain.ClothingItem, mimeType string) *StyleEvent {
	return &StyleEvent{
		EventID:        uuid.New(),
		Type:           EventWardrobeItemUploaded,
		UserID:         userID,
		ClothingItemID: item.ID.String(),
		ImageKey:       item.ImageKey,
		MimeType:       mimeType,
	}
}

// NewOutboxEvent упаковывает событие в запись outbox со статусом pending.
func NewOutboxEvent(ev *StyleEvent) (*OutboxEvent, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &OutboxEvent{
		EventID:     ev.EventID,
		EventType:   ev.Type,
		UserID:      ev.UserID,
		Payload:     payload,
		Status:      Pending,
		Attempts:    ev.Attempt,
		AvailableAt: now,
		CreatedAt:   now,
	}, nil
}

// DecodeStyleEvent восстанавливает событие из payload. Attempts берутся из записи outbox.
func (o *OutboxEvent) DecodeStyleEvent() (*StyleEvent, error) {
	var ev StyleEvent
	if err := json.Unmarshal(o.Payload, &ev); err != nil {
		return nil, err
	}
	ev.Attempt = o.Attempts
	return &ev, nil
}

func NewWriteRawMessageReq(key string, eventType EventType, payload []byte) *WriteRawMessageReq {
	return &WriteRawMessageReq{
		Key:       key,
		EventType: eventType,
		Payload:   payload,
	}
}

// MessagePayload сериализует событие с актуальным числом попыток из записи outbox.
func (o *OutboxEvent) MessagePayload() ([]byte, error) {
	ev, err := o.DecodeStyleEvent()
	if err != nil {
		return nil, err
	}
	return json.Marshal(ev)
}

func NewListingFromInput(in ListingInput) (*domain.Listing, error) {
	platform, err := domain.ParsePlatform(in.Platform)
	if err != nil {
		return nil, err
	}

	var price decimal.NullDecimal
	if d, err := decimal.NewFromString(strings.TrimSpace(in.Price)); err == nil {
		if d.IsNegative() {
			return nil, e.ErrInvalidPrice
		}
		price = decimal.NewNullDecimal(d)
	}

	l := domain.NewListing(in.ID, in.Title, in.Condition, price, in.Currency, in.Image, platform, in.URL)
	l.SellerUsername = in.SellerUsername
	l.SellerFeedback = in.SellerFeedback
	return l, nil
}

func NewListingInfo(l *domain.Listing) ListingInfo {
	return ListingInfo{
		ID:        l.ID,
		Title:     l.Title,
		Condition: l.Condition,
		Price:     l.Price,
		Currency:  l.Currency,
		Image:     l.Image,
		Platform:  string(l.Platform),
		URL:       l.URL,
	}
}

func NewGetListingsRes(listings []ListingInfo, notFound []string) *GetListingsRes {
	return &GetListingsRes{
		Listings:         listings,
		NotFoundListings: notFound,
	}
}

func NewUploadImagesReq(prefix string, images []WardrobeImage) *UploadImagesReq {
	return &UploadImagesReq{
		Prefix: prefix,
		Images: images,
	}
}

func NewUploadImagesRes(imagesKeys []string) *UploadImagesRes {
	return &UploadImagesRes{
		ImagesKeys: imagesKeys,
	}
}
