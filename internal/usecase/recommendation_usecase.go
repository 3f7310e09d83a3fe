package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/DRSN-tech/thrift-backend/internal/domain"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
)

type RecsConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// RecommendationUseCase подбирает объявления, ближайшие к style-вектору пользователя.
// Без вектора или при пустой выдаче отдаёт неперсонализированный список.
type RecommendationUseCase struct {
	styleRepo     StyleVectorRepository
	embeddingRepo EmbeddingRepository
	listingRepo   ListingRepository
	likeRepo      LikeRepository
	savedRepo     SavedRepository
	cacheRepo     CacheRepository
	listings      ListingUC
	metrics       Metrics
	logger        logger.Logger
	cfg           RecsConfig
}

func NewRecommendationUC(
	styleRepo StyleVectorRepository,
	embeddingRepo EmbeddingRepository,
	listingRepo ListingRepository,
	likeRepo LikeRepository,
	savedRepo SavedRepository,
	cacheRepo CacheRepository,
	listings ListingUC,
	metrics Metrics,
	logger logger.Logger,
	cfg RecsConfig,
) *RecommendationUseCase {
	return &RecommendationUseCase{
		styleRepo:     styleRepo,
		embeddingRepo: embeddingRepo,
		listingRepo:   listingRepo,
		likeRepo:      likeRepo,
		savedRepo:     savedRepo,
		cacheRepo:     cacheRepo,
		listings:      listings,
		metrics:       metrics,
		logger:        logger,
		cfg:           cfg,
	}
}

// Recommend возвращает до limit объявлений, исключая лайкнутые и сохранённые пользователем.
func (r *RecommendationUseCase) Recommend(ctx context.Context, req *RecommendReq) (*RecommendationsRes, error) {
	const op = "RecommendationUseCase.Recommend"

	start := time.Now()

	if strings.TrimSpace(req.UserID) == "" {
		return nil, e.Wrap(op, e.ErrInvalidUserID)
	}

	limit, err := r.normalizeLimit(req.Limit)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	cached, err := r.cacheRepo.GetRecommendations(ctx, req.UserID, limit)
	if err != nil {
		r.logger.Warnf("recommendations cache unavailable: %v", e.Wrap(op, err))
	} else if cached != nil {
		return cached, nil
	}

	exclude, err := r.exclusions(ctx, req.UserID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	scored, source := r.personalized(ctx, req.UserID, exclude, limit)
	if len(scored) == 0 {
		scored, err = r.fallback(ctx, exclude, limit)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		source = domain.SourceFallback
	}

	res := &RecommendationsRes{
		Results: r.hydrate(ctx, scored),
		Source:  source,
	}

	// кэш пишется в фоне из копии: res уходит вызывающему и может быть изменён
	toCache := res.Clone()
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		if err := r.cacheRepo.SetRecommendations(bgCtx, req.UserID, limit, toCache); err != nil {
			r.logger.Warnf("failed to cache recommendations in background: %v", e.Wrap(op, err))
		}
	}()

	r.metrics.RecommendationServed(string(source), time.Since(start))
	return res, nil
}

// Retrieve ищет ближайшие к вектору объявления. Результат не содержит исключённых id
// и отсортирован по убыванию близости.
func (r *RecommendationUseCase) Retrieve(ctx context.Context, vector []float32, exclude []string, limit int) ([]domain.ScoredListing, error) {
	const op = "RecommendationUseCase.Retrieve"

	if limit <= 0 {
		return nil, nil
	}

	found, err := r.embeddingRepo.QuerySimilar(ctx, vector, exclude, limit)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	found = domain.FilterExcluded(found, toSet(exclude))
	domain.SortByScoreDesc(found)
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

// personalized возвращает пустую выдачу во всех случаях, когда нужен fallback.
func (r *RecommendationUseCase) personalized(ctx context.Context, userID string, exclude []string, limit int) ([]domain.ScoredListing, domain.RecommendationSource) {
	sv, err := r.styleRepo.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, e.ErrNotFound) {
			r.logger.Warnf("failed to load style vector of %s, using fallback: %v", userID, err)
		}
		return nil, domain.SourceFallback
	}

	if domain.IsZeroVector(sv.Vector) {
		return nil, domain.SourceFallback
	}

	scored, err := r.Retrieve(ctx, sv.Vector, exclude, limit)
	if err != nil {
		r.logger.Warnf("similarity query failed for %s, using fallback: %v", userID, err)
		return nil, domain.SourceFallback
	}

	return scored, domain.SourceSimilarity
}

// fallback: самые сохраняемые, затем самые новые объявления. Если с исключениями
// ничего не нашлось, повторяет запрос без них, чтобы при непустом каталоге выдача не была пустой.
func (r *RecommendationUseCase) fallback(ctx context.Context, exclude []string, limit int) ([]domain.ScoredListing, error) {
	ids, err := r.popular(ctx, exclude, limit)
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 && len(exclude) > 0 {
		ids, err = r.popular(ctx, nil, limit)
		if err != nil {
			return nil, err
		}
	}

	out := make([]domain.ScoredListing, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.ScoredListing{ListingID: id})
	}
	return out, nil
}

func (r *RecommendationUseCase) popular(ctx context.Context, exclude []string, limit int) ([]string, error) {
	ids, err := r.listingRepo.MostSaved(ctx, exclude, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) >= limit {
		return ids[:limit], nil
	}

	recent, err := r.listingRepo.MostRecent(ctx, append(append([]string{}, exclude...), ids...), limit-len(ids))
	if err != nil {
		return nil, err
	}

	return append(ids, recent...), nil
}

func (r *RecommendationUseCase) exclusions(ctx context.Context, userID string) ([]string, error) {
	liked, err := r.likeRepo.ListListingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	saved, err := r.savedRepo.ListListingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(liked)+len(saved))
	out := make([]string, 0, len(liked)+len(saved))
	for _, id := range append(liked, saved...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// hydrate добавляет к выдаче карточки объявлений. Ошибка загрузки карточек не ломает выдачу.
func (r *RecommendationUseCase) hydrate(ctx context.Context, scored []domain.ScoredListing) []RecommendedListing {
	out := make([]RecommendedListing, 0, len(scored))
	if len(scored) == 0 {
		return out
	}

	ids := make([]string, 0, len(scored))
	for _, s := range scored {
		ids = append(ids, s.ListingID)
	}

	infos := make(map[string]ListingInfo, len(ids))
	res, err := r.listings.GetListingsInfo(ctx, &GetListingsReq{IDs: ids})
	if err != nil {
		r.logger.Warnf("failed to hydrate recommendations: %v", err)
	} else {
		for _, info := range res.Listings {
			infos[info.ID] = info
		}
	}

	for _, s := range scored {
		item := RecommendedListing{ListingID: s.ListingID, Similarity: s.Score}
		if info, ok := infos[s.ListingID]; ok {
			item.Listing = &info
		}
		out = append(out, item)
	}
	return out
}

func (r *RecommendationUseCase) normalizeLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, e.ErrInvalidLimit
	case limit == 0:
		return r.cfg.DefaultLimit, nil
	case limit > r.cfg.MaxLimit:
		return r.cfg.MaxLimit, nil
	default:
		return limit, nil
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
