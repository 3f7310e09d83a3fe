package converter

import (
	"github.com/DRSN-tech/thrift-backend/internal/domain"
	"github.com/DRSN-tech/thrift-backend/internal/usecase"
)

func ListingInfoToRedisModel(info *usecase.ListingInfo) *ListingInfoRedisModel {
	return &ListingInfoRedisModel{
		ID:        info.ID,
		Title:     info.Title,
		Condition: info.Condition,
		Price:     info.Price,
		Currency:  info.Currency,
		Image:     info.Image,
		Platform:  info.Platform,
		URL:       info.URL,
		Saves:     info.Saves,
	}
}

func ListingInfoToUseCase(m *ListingInfoRedisModel) *usecase.ListingInfo {
	return &usecase.ListingInfo{
		ID:        m.ID,
		Title:     m.Title,
		Condition: m.Condition,
		Price:     m.Price,
		Currency:  m.Currency,
		Image:     m.Image,
		Platform:  m.Platform,
		URL:       m.URL,
		Saves:     m.Saves,
	}
}

func RecommendationsToRedisModel(res *usecase.RecommendationsRes) *RecommendationsRedisModel {
	out := &RecommendationsRedisModel{
		Results: make([]RecommendedListingRedisModel, 0, len(res.Results)),
		Source:  string(res.Source),
	}
	for _, r := range res.Results {
		item := RecommendedListingRedisModel{ListingID: r.ListingID, Similarity: r.Similarity}
		if r.Listing != nil {
			item.Listing = ListingInfoToRedisModel(r.Listing)
		}
		out.Results = append(out.Results, item)
	}
	return out
}

func RecommendationsToUseCase(m *RecommendationsRedisModel) *usecase.RecommendationsRes {
	out := &usecase.RecommendationsRes{
		Results: make([]usecase.RecommendedListing, 0, len(m.Results)),
		Source:  domain.RecommendationSource(m.Source),
	}
	for _, r := range m.Results {
		item := usecase.RecommendedListing{ListingID: r.ListingID, Similarity: r.Similarity}
		if r.Listing != nil {
			item.Listing = ListingInfoToUseCase(r.Listing)
		}
		out.Results = append(out.Results, item)
	}
	return out
}
