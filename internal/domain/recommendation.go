package domain

import "sort"

// RecommendationSource — откуда взялась выдача.
type RecommendationSource string

const (
	SourceSimilarity RecommendationSource = "similarity"
	SourceFallback   RecommendationSource = "fallback"
)

// ScoredListing — объявление с косинусной близостью к style-вектору.
// Для fallback-выдачи Score равен 0.
type ScoredListing struct {
	ListingID string
	Score     float64
}

// SortByScoreDesc стабильно сортирует по убыванию близости.
func SortByScoreDesc(items []ScoredListing) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
}

// FilterExcluded убирает из выдачи исключённые объявления, сохраняя порядок.
func FilterExcluded(items []ScoredListing, exclude map[string]struct{}) []ScoredListing {
	if len(exclude) == 0 {
		return items
	}
	out := items[:0:0]
	for _, it := range items {
		if _, skip := exclude[it.ListingID]; !skip {
			out = append(out, it)
		}
	}
	return out
}
