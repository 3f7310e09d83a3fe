package usecase

import (
	"context"

	"github.com/google/uuid"
)

type ListingUC interface {
	LikeListing(ctx context.Context, req *ListingActionReq) (*ListingActionRes, error)
	UnlikeListing(ctx context.Context, userID, listingID string) (*ListingActionRes, error)
	SaveListing(ctx context.Context, req *ListingActionReq) (*ListingActionRes, error)
	UnsaveListing(ctx context.Context, userID, listingID string) (*ListingActionRes, error)
	GetListingsInfo(ctx context.Context, req *GetListingsReq) (*GetListingsRes, error)
}

type WardrobeUC interface {
	UploadImage(ctx context.Context, req *UploadWardrobeImageReq) (*UploadWardrobeImageRes, error)
	ListItems(ctx context.Context, userID string) ([]WardrobeItemInfo, error)
}

type StyleUC interface {
	OnItemLiked(ctx context.Context, userID, listingID string) error
	OnItemSaved(ctx context.Context, userID, listingID string) error
	OnItemUnliked(ctx context.Context, userID, listingID string) error
	OnItemUploaded(ctx context.Context, userID string, itemID uuid.UUID, image []byte, mimeType string) error
	RebuildStyleVector(ctx context.Context, userID string) error
	EnsureListingEmbedding(ctx context.Context, listingID string) ([]float32, error)
}

type RecommendationUC interface {
	Recommend(ctx context.Context, req *RecommendReq) (*RecommendationsRes, error)
}

type IngestionUC interface {
	Handle(ctx context.Context, event *StyleEvent) error
}
