package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/thrift-backend/internal/domain"
	"github.com/google/uuid"
)

type ListingRepository interface {
	// Upsert создаёт объявление, если его ещё нет. Существующая запись не перезаписывается.
	Upsert(ctx context.Context, listing *domain.Listing) (*domain.Listing, error)
	GetByID(ctx context.Context, id string) (*domain.Listing, error)
	GetListingsInfo(ctx context.Context, ids []string) ([]ListingInfo, error)
	MarkEmbedded(ctx context.Context, id string) error
	ListUnembedded(ctx context.Context, limit int) ([]*domain.Listing, error)
	MostSaved(ctx context.Context, exclude []string, limit int) ([]string, error)
	MostRecent(ctx context.Context, exclude []string, limit int) ([]string, error)
}

// LikeRepository и SavedRepository хранят пары (пользователь, объявление).
// Create возвращает false, если пара уже существует; Delete возвращает false, если её не было.
type LikeRepository interface {
	Create(ctx context.Context, userID, listingID string) (bool, error)
	Delete(ctx context.Context, userID, listingID string) (bool, error)
	Exists(ctx context.Context, userID, listingID string) (bool, error)
	ListListingIDs(ctx context.Context, userID string) ([]string, error)
}

type SavedRepository interface {
	Create(ctx context.Context, userID, listingID string) (bool, error)
	Delete(ctx context.Context, userID, listingID string) (bool, error)
	Exists(ctx context.Context, userID, listingID string) (bool, error)
	ListListingIDs(ctx context.Context, userID string) ([]string, error)
}

type WardrobeRepository interface {
	GetOrCreate(ctx context.Context, userID string) (*domain.Wardrobe, error)
}

type ClothingItemRepository interface {
	Create(ctx context.Context, item *domain.ClothingItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ClothingItem, error)
	UpdateCaption(ctx context.Context, id uuid.UUID, caption domain.Caption) error
	MarkEmbedded(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID string) ([]*domain.ClothingItem, error)
}

// StyleVectorRepository — хранилище style-векторов с оптимистичной блокировкой.
type StyleVectorRepository interface {
	// Get возвращает e.ErrNotFound, если записи нет. После Delete Vector равен nil, а версия сохраняется.
	Get(ctx context.Context, userID string) (*domain.StyleVector, error)
	// CompareAndSwap записывает вектор, если текущая версия равна expectedVersion
	// (0, если записи ещё нет). Иначе e.ErrVersionConflict.
	CompareAndSwap(ctx context.Context, userID string, vector []float32, expectedVersion int64) (int64, error)
	// Delete очищает вектор (холодный старт), продолжая счётчик версий.
	Delete(ctx context.Context, userID string, expectedVersion int64) error
}

type ContributionRepository interface {
	Get(ctx context.Context, userID string, item domain.ItemRef) (*domain.StyleContribution, error)
	Upsert(ctx context.Context, c *domain.StyleContribution) error
	Deactivate(ctx context.Context, userID string, item domain.ItemRef) (bool, error)
	// ListActive возвращает активные вклады в порядке Seq.
	ListActive(ctx context.Context, userID string) ([]*domain.StyleContribution, error)
}

// EmbeddingRepository — векторное хранилище эмбеддингов.
type EmbeddingRepository interface {
	Get(ctx context.Context, item domain.ItemRef) ([]float32, error)
	Put(ctx context.Context, embedding *domain.Embedding) error
	QuerySimilar(ctx context.Context, vector []float32, exclude []string, limit int) ([]domain.ScoredListing, error)
}

type ImageRepository interface {
	Upload(ctx context.Context, image *domain.Image) (string, error)
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type OutboxEventRepository interface {
	Create(ctx context.Context, event *OutboxEvent) (*OutboxEvent, error)
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
	Reschedule(ctx context.Context, eventID uuid.UUID, attempts int, availableAt time.Time, lastErr string) error
	MarkAsFailed(ctx context.Context, eventID uuid.UUID, attempts int, lastErr string) error
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

type CacheRepository interface {
	GetListings(ctx context.Context, ids []string) (map[string]ListingInfo, error)
	SetListings(ctx context.Context, listings []ListingInfo) error
	DeleteListings(ctx context.Context, ids []string) error
	GetRecommendations(ctx context.Context, userID string, limit int) (*RecommendationsRes, error)
	SetRecommendations(ctx context.Context, userID string, limit int, res *RecommendationsRes) error
	InvalidateRecommendations(ctx context.Context, userID string) error
}
