package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
)

// ListingUseCase реализует лайки и сохранения объявлений. Обновление style-вектора
// уходит в outbox в той же транзакции, поэтому сбой эмбеддинга не ломает сам лайк.
type ListingUseCase struct {
	listingRepo ListingRepository
	likeRepo    LikeRepository
	savedRepo   SavedRepository
	outboxRepo  OutboxEventRepository
	cacheRepo   CacheRepository
	txManager   TxManager
	logger      logger.Logger
}

func NewListingUC(
	listingRepo ListingRepository,
	likeRepo LikeRepository,
	savedRepo SavedRepository,
	outboxRepo OutboxEventRepository,
	cacheRepo CacheRepository,
	txManager TxManager,
	logger logger.Logger,
) *ListingUseCase {
	return &ListingUseCase{
		listingRepo: listingRepo,
		likeRepo:    likeRepo,
		savedRepo:   savedRepo,
		outboxRepo:  outboxRepo,
		cacheRepo:   cacheRepo,
		txManager:   txManager,
		logger:      logger,
	}
}

// pairRepository — общее у лайков и сохранений.
type pairRepository interface {
	Create(ctx context.Context, userID, listingID string) (bool, error)
	Delete(ctx context.Context, userID, listingID string) (bool, error)
}

// LikeListing сохраняет объявление (если его ещё нет), ставит лайк и ставит в очередь обновление вектора.
func (l *ListingUseCase) LikeListing(ctx context.Context, req *ListingActionReq) (*ListingActionRes, error) {
	const op = "ListingUseCase.LikeListing"

	res, err := l.addPair(ctx, req, l.likeRepo, EventListingLiked)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return res, nil
}

// SaveListing — то же, что LikeListing, но для сохранённых объявлений.
func (l *ListingUseCase) SaveListing(ctx context.Context, req *ListingActionReq) (*ListingActionRes, error) {
	const op = "ListingUseCase.SaveListing"

	res, err := l.addPair(ctx, req, l.savedRepo, EventListingSaved)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return res, nil
}

// UnlikeListing снимает лайк. Повторный вызов ничего не делает.
func (l *ListingUseCase) UnlikeListing(ctx context.Context, userID, listingID string) (*ListingActionRes, error) {
	const op = "ListingUseCase.UnlikeListing"

	res, err := l.removePair(ctx, userID, listingID, l.likeRepo, EventListingUnliked)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return res, nil
}

// UnsaveListing убирает объявление из сохранённых. На style-вектор не влияет.
func (l *ListingUseCase) UnsaveListing(ctx context.Context, userID, listingID string) (*ListingActionRes, error) {
	const op = "ListingUseCase.UnsaveListing"

	res, err := l.removePair(ctx, userID, listingID, l.savedRepo, "")
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return res, nil
}

func (l *ListingUseCase) addPair(ctx context.Context, req *ListingActionReq, repo pairRepository, eventType EventType) (*ListingActionRes, error) {
	if err := validateListingAction(req); err != nil {
		return nil, err
	}

	listing, err := NewListingFromInput(req.Listing)
	if err != nil {
		return nil, err
	}

	var created bool
	err = l.txManager.Do(ctx, func(ctx context.Context) error {
		var err error
		if _, err = l.listingRepo.Upsert(ctx, listing); err != nil {
			return err
		}

		created, err = repo.Create(ctx, req.UserID, listing.ID)
		if err != nil || !created {
			return err
		}

		return l.enqueue(ctx, NewListingStyleEvent(eventType, req.UserID, listing.ID))
	})
	if err != nil {
		return nil, err
	}

	if created {
		l.invalidate(ctx, req.UserID, listing.ID)
	}

	return &ListingActionRes{ListingID: listing.ID, Active: true, Changed: created}, nil
}

func (l *ListingUseCase) removePair(ctx context.Context, userID, listingID string, repo pairRepository, eventType EventType) (*ListingActionRes, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, e.ErrInvalidUserID
	}
	if strings.TrimSpace(listingID) == "" {
		return nil, e.ErrListingIDRequired
	}

	var deleted bool
	err := l.txManager.Do(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = repo.Delete(ctx, userID, listingID)
		if err != nil || !deleted || eventType == "" {
			return err
		}

		return l.enqueue(ctx, NewListingStyleEvent(eventType, userID, listingID))
	})
	if err != nil {
		return nil, err
	}

	if deleted {
		l.invalidate(ctx, userID, listingID)
	}

	return &ListingActionRes{ListingID: listingID, Active: false, Changed: deleted}, nil
}

func (l *ListingUseCase) enqueue(ctx context.Context, ev *StyleEvent) error {
	event, err := NewOutboxEvent(ev)
	if err != nil {
		return err
	}

	_, err = l.outboxRepo.Create(ctx, event)
	return err
}

// invalidate сбрасывает кэш выдачи пользователя и карточки объявления (меняется счётчик сохранений).
func (l *ListingUseCase) invalidate(ctx context.Context, userID, listingID string) {
	if err := l.cacheRepo.InvalidateRecommendations(ctx, userID); err != nil {
		l.logger.Warnf("failed to invalidate recommendations cache for user %s: %v", userID, err)
	}
	if err := l.cacheRepo.DeleteListings(ctx, []string{listingID}); err != nil {
		l.logger.Warnf("failed to delete listing %s from cache: %v", listingID, err)
	}
}

// GetListingsInfo возвращает информацию об объявлениях: сначала из кэша, затем из БД.
func (l *ListingUseCase) GetListingsInfo(ctx context.Context, req *GetListingsReq) (*GetListingsRes, error) {
	const op = "ListingUseCase.GetListingsInfo"

	if len(req.IDs) == 0 {
		return nil, e.Wrap(op, e.ErrListingIDRequired)
	}

	cached, err := l.cacheRepo.GetListings(ctx, req.IDs)
	if err != nil {
		l.logger.Warnf("listing cache unavailable: %v", e.Wrap(op, err))
		cached = nil
	}

	var missing []string
	for _, id := range req.IDs {
		if _, ok := cached[id]; !ok {
			missing = append(missing, id)
		}
	}

	fromDB := make(map[string]ListingInfo, len(missing))
	if len(missing) > 0 {
		listings, err := l.listingRepo.GetListingsInfo(ctx, missing)
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		for _, info := range listings {
			fromDB[info.ID] = info
		}

		// Фоновое добавление объявлений в кэш
		if len(listings) > 0 {
			go func() {
				bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
				defer cancel()

				if err := l.cacheRepo.SetListings(bgCtx, listings); err != nil {
					l.logger.Warnf("failed to cache listings in background: %v", e.Wrap(op, err))
				}
			}()
		}
	}

	result := make([]ListingInfo, 0, len(req.IDs))
	notFound := make([]string, 0)
	for _, id := range req.IDs {
		if info, ok := cached[id]; ok {
			result = append(result, info)
		} else if info, ok := fromDB[id]; ok {
			result = append(result, info)
		} else {
			notFound = append(notFound, id)
		}
	}

	return NewGetListingsRes(result, notFound), nil
}

// validateListingAction проверяет обязательные поля объявления.
func validateListingAction(req *ListingActionReq) error {
	if strings.TrimSpace(req.UserID) == "" {
		return e.ErrInvalidUserID
	}

	in := req.Listing
	if strings.TrimSpace(in.ID) == "" {
		return e.ErrListingIDRequired
	}

	for _, v := range []string{in.Title, in.Price, in.Currency, in.Image, in.Platform, in.URL} {
		if strings.TrimSpace(v) == "" {
			return e.ErrMissingFields
		}
	}

	return nil
}
