package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/DRSN-tech/thrift-backend/internal/domain"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/jitter"
	"github.com/DRSN-tech/thrift-backend/pkg/keylock"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
	"github.com/google/uuid"
)

const (
	styleOutcomeApplied  = "applied"
	styleOutcomeSkipped  = "skipped"
	styleOutcomeRebuilt  = "rebuilt"
	styleOutcomeFailed   = "failed"
	styleOutcomeConflict = "conflict_exhausted"
)

// StyleConfig — параметры обновления style-векторов.
type StyleConfig struct {
	Alpha            float64
	Dimension        int
	MaxUpdateRetries int
	RetryBaseBackoff time.Duration
	UnlikePolicy     domain.UnlikePolicy
}

// StyleUseCase переводит пару (пользователь, вещь) из NO_EMBEDDING через EMBEDDED в STYLE_UPDATED.
type StyleUseCase struct {
	listingRepo   ListingRepository
	likeRepo      LikeRepository
	savedRepo     SavedRepository
	clothingRepo  ClothingItemRepository
	styleRepo     StyleVectorRepository
	contribRepo   ContributionRepository
	embeddingRepo EmbeddingRepository
	cacheRepo     CacheRepository
	embedder      Embedder
	captioner     Captioner
	imagesInfra   ImagesInfra
	txManager     TxManager
	metrics       Metrics
	locks         *keylock.KeyLock
	logger        logger.Logger
	cfg           StyleConfig
}

func NewStyleUC(
	listingRepo ListingRepository,
	likeRepo LikeRepository,
	savedRepo SavedRepository,
	clothingRepo ClothingItemRepository,
	styleRepo StyleVectorRepository,
	contribRepo ContributionRepository,
	embeddingRepo EmbeddingRepository,
	cacheRepo CacheRepository,
	embedder Embedder,
	captioner Captioner,
	imagesInfra ImagesInfra,
	txManager TxManager,
	metrics Metrics,
	logger logger.Logger,
	cfg StyleConfig,
) *StyleUseCase {
	if cfg.MaxUpdateRetries <= 0 {
		cfg.MaxUpdateRetries = 1
	}

	return &StyleUseCase{
		listingRepo:   listingRepo,
		likeRepo:      likeRepo,
		savedRepo:     savedRepo,
		clothingRepo:  clothingRepo,
		styleRepo:     styleRepo,
		contribRepo:   contribRepo,
		embeddingRepo: embeddingRepo,
		cacheRepo:     cacheRepo,
		embedder:      embedder,
		captioner:     captioner,
		imagesInfra:   imagesInfra,
		txManager:     txManager,
		metrics:       metrics,
		locks:         keylock.New(),
		logger:        logger,
		cfg:           cfg,
	}
}

// OnItemLiked гарантирует эмбеддинг объявления и учитывает его в векторе пользователя.
func (s *StyleUseCase) OnItemLiked(ctx context.Context, userID, listingID string) error {
	const op = "StyleUseCase.OnItemLiked"

	if err := s.onListingSignal(ctx, userID, listingID); err != nil {
		return e.Wrap(op, err)
	}
	return nil
}

// OnItemSaved обрабатывает сохранение так же, как лайк.
func (s *StyleUseCase) OnItemSaved(ctx context.Context, userID, listingID string) error {
	const op = "StyleUseCase.OnItemSaved"

	if err := s.onListingSignal(ctx, userID, listingID); err != nil {
		return e.Wrap(op, err)
	}
	return nil
}

func (s *StyleUseCase) onListingSignal(ctx context.Context, userID, listingID string) error {
	if userID == "" {
		return e.ErrInvalidUserID
	}

	embedding, err := s.EnsureListingEmbedding(ctx, listingID)
	if err != nil {
		return err
	}

	return s.applyContribution(ctx, userID, domain.ItemRef{Kind: domain.KindListing, ID: listingID}, embedding)
}

// OnItemUnliked: в режиме append_only ничего не делает, в режиме reversible
// деактивирует вклад и пересобирает вектор из оставшихся.
func (s *StyleUseCase) OnItemUnliked(ctx context.Context, userID, listingID string) error {
	const op = "StyleUseCase.OnItemUnliked"

	if s.cfg.UnlikePolicy != domain.UnlikeReversible {
		s.logger.Debugf("unlike of %s by %s ignored by %s policy", listingID, userID, s.cfg.UnlikePolicy)
		s.metrics.StyleUpdate(styleOutcomeSkipped)
		return nil
	}

	ref := domain.ItemRef{Kind: domain.KindListing, ID: listingID}
	err := s.withUserLock(ctx, userID, func(ctx context.Context) (string, error) {
		var outcome string
		err := s.txManager.Do(ctx, func(ctx context.Context) error {
			deactivated, err := s.contribRepo.Deactivate(ctx, userID, ref)
			if err != nil {
				return e.Persistence("deactivate contribution", err)
			}
			if !deactivated {
				outcome = styleOutcomeSkipped
				return nil
			}

			outcome = styleOutcomeRebuilt
			return s.rebuild(ctx, userID)
		})
		return outcome, err
	})
	if err != nil {
		return e.Wrap(op, err)
	}
	return nil
}

// OnItemUploaded подписывает фото вещи, сохраняет тип и описание, эмбеддит описание
// и учитывает вещь в векторе. image может быть nil, тогда фото скачивается из хранилища.
func (s *StyleUseCase) OnItemUploaded(ctx context.Context, userID string, itemID uuid.UUID, image []byte, mimeType string) error {
	const op = "StyleUseCase.OnItemUploaded"

	item, err := s.clothingRepo.GetByID(ctx, itemID)
	if err != nil {
		return e.Wrap(op, err)
	}
	if item.UserID != userID {
		return e.Wrap(op, e.ErrNotFound)
	}

	embedding, err := s.ensureWardrobeEmbedding(ctx, item, image, mimeType)
	if err != nil {
		return e.Wrap(op, err)
	}

	if err := s.applyContribution(ctx, userID, item.Ref(), embedding); err != nil {
		return e.Wrap(op, err)
	}
	return nil
}

// RebuildStyleVector пересобирает вектор пользователя из активных вкладов в порядке их фиксации.
func (s *StyleUseCase) RebuildStyleVector(ctx context.Context, userID string) error {
	const op = "StyleUseCase.RebuildStyleVector"

	err := s.withUserLock(ctx, userID, func(ctx context.Context) (string, error) {
		err := s.txManager.Do(ctx, func(ctx context.Context) error {
			return s.rebuild(ctx, userID)
		})
		return styleOutcomeRebuilt, err
	})
	if err != nil {
		return e.Wrap(op, err)
	}
	return nil
}

// EnsureListingEmbedding возвращает эмбеддинг объявления, при необходимости вычисляя и сохраняя его.
func (s *StyleUseCase) EnsureListingEmbedding(ctx context.Context, listingID string) ([]float32, error) {
	const op = "StyleUseCase.EnsureListingEmbedding"

	if listingID == "" {
		return nil, e.ErrListingIDRequired
	}

	ref := domain.ItemRef{Kind: domain.KindListing, ID: listingID}
	vector, err := s.getEmbedding(ctx, ref)
	if err == nil {
		return vector, nil
	}
	if !errors.Is(err, e.ErrNotFound) {
		return nil, e.Wrap(op, err)
	}

	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	vector, err = s.embedAndStore(ctx, ref, listing.EmbeddingText())
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if err := s.listingRepo.MarkEmbedded(ctx, listingID); err != nil {
		s.logger.Warnf("failed to mark listing %s as embedded: %v", listingID, e.Wrap(op, err))
	}

	return vector, nil
}

func (s *StyleUseCase) ensureWardrobeEmbedding(ctx context.Context, item *domain.ClothingItem, image []byte, mimeType string) ([]float32, error) {
	vector, err := s.getEmbedding(ctx, item.Ref())
	if err == nil {
		return vector, nil
	}
	if !errors.Is(err, e.ErrNotFound) {
		return nil, err
	}

	if len(image) == 0 {
		image, mimeType, err = s.imagesInfra.DownloadImage(ctx, item.ImageKey)
		if err != nil {
			return nil, e.Persistence("download image", err)
		}
	}

	text, err := s.captioner.CaptionImage(ctx, image, mimeType)
	if err != nil {
		return nil, err
	}

	caption := domain.ParseCaption(text)
	if err := s.clothingRepo.UpdateCaption(ctx, item.ID, caption); err != nil {
		return nil, e.Persistence("update caption", err)
	}

	vector, err = s.embedAndStore(ctx, item.Ref(), caption.Description)
	if err != nil {
		return nil, err
	}

	if err := s.clothingRepo.MarkEmbedded(ctx, item.ID); err != nil {
		s.logger.Warnf("failed to mark clothing item %s as embedded: %v", item.ID, err)
	}

	return vector, nil
}

// getEmbedding читает эмбеддинг и проверяет размерность. Несовпадение не ретраится.
func (s *StyleUseCase) getEmbedding(ctx context.Context, ref domain.ItemRef) ([]float32, error) {
	vector, err := s.embeddingRepo.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, e.Persistence("get embedding", err)
	}

	if s.cfg.Dimension > 0 && len(vector) != s.cfg.Dimension {
		return nil, e.NewDimensionMismatchError(s.cfg.Dimension, len(vector))
	}
	return vector, nil
}

func (s *StyleUseCase) embedAndStore(ctx context.Context, ref domain.ItemRef, text string) ([]float32, error) {
	vector, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}

	if s.cfg.Dimension > 0 && len(vector) != s.cfg.Dimension {
		return nil, e.Provider("embed text", e.NewDimensionMismatchError(s.cfg.Dimension, len(vector)))
	}

	if err := s.embeddingRepo.Put(ctx, domain.NewEmbedding(ref, vector)); err != nil {
		return nil, e.Persistence("put embedding", err)
	}

	return vector, nil
}

// applyContribution — шаг EMBEDDED → STYLE_UPDATED для пары (пользователь, вещь).
func (s *StyleUseCase) applyContribution(ctx context.Context, userID string, ref domain.ItemRef, embedding []float32) error {
	return s.withUserLock(ctx, userID, func(ctx context.Context) (string, error) {
		var outcome string
		err := s.txManager.Do(ctx, func(ctx context.Context) error {
			var err error
			outcome, err = s.tryApply(ctx, userID, ref, embedding)
			return err
		})
		return outcome, err
	})
}

func (s *StyleUseCase) tryApply(ctx context.Context, userID string, ref domain.ItemRef, embedding []float32) (string, error) {
	contrib, err := s.contribRepo.Get(ctx, userID, ref)
	switch {
	case err == nil:
		if contrib.Active || s.cfg.UnlikePolicy != domain.UnlikeReversible {
			s.logger.Debugf("item %s already contributed to style of %s", ref, userID)
			return styleOutcomeSkipped, nil
		}
	case !errors.Is(err, e.ErrNotFound):
		return "", e.Persistence("get contribution", err)
	}

	if ref.Kind == domain.KindListing && s.cfg.UnlikePolicy == domain.UnlikeReversible {
		// отложенное событие могло прийти уже после снятия лайка
		present, err := s.hasListingSignal(ctx, userID, ref.ID)
		if err != nil {
			return "", err
		}
		if !present {
			s.logger.Debugf("listing %s is no longer liked or saved by %s, skipping", ref.ID, userID)
			return styleOutcomeSkipped, nil
		}
	}

	current, version, err := s.currentVector(ctx, userID)
	if err != nil {
		return "", err
	}

	next, err := domain.UpdateStyleVector(current, embedding, s.cfg.Alpha)
	if err != nil {
		return "", err
	}

	newVersion, err := s.styleRepo.CompareAndSwap(ctx, userID, next, version)
	if err != nil {
		return "", casError(err)
	}

	if err := s.contribRepo.Upsert(ctx, domain.NewStyleContribution(userID, ref, newVersion)); err != nil {
		return "", e.Persistence("upsert contribution", err)
	}

	return styleOutcomeApplied, nil
}

func (s *StyleUseCase) hasListingSignal(ctx context.Context, userID, listingID string) (bool, error) {
	liked, err := s.likeRepo.Exists(ctx, userID, listingID)
	if err != nil {
		return false, e.Persistence("check like", err)
	}
	if liked {
		return true, nil
	}

	saved, err := s.savedRepo.Exists(ctx, userID, listingID)
	if err != nil {
		return false, e.Persistence("check saved", err)
	}
	return saved, nil
}

// rebuild сворачивает активные вклады заново. Должен вызываться внутри транзакции.
func (s *StyleUseCase) rebuild(ctx context.Context, userID string) error {
	contribs, err := s.contribRepo.ListActive(ctx, userID)
	if err != nil {
		return e.Persistence("list contributions", err)
	}

	embeddings := make([][]float32, 0, len(contribs))
	for _, c := range contribs {
		vector, err := s.getEmbedding(ctx, c.Item)
		if errors.Is(err, e.ErrNotFound) {
			s.logger.Warnf("embedding of %s is missing, skipping it in rebuild for %s", c.Item, userID)
			continue
		}
		if err != nil {
			return err
		}
		embeddings = append(embeddings, vector)
	}

	folded, err := domain.FoldStyleVector(embeddings, s.cfg.Alpha)
	if err != nil {
		return err
	}

	current, version, err := s.currentVector(ctx, userID)
	if err != nil {
		return err
	}

	if folded == nil {
		if current == nil {
			return nil
		}
		if err := s.styleRepo.Delete(ctx, userID, version); err != nil {
			return casError(err)
		}
		return nil
	}

	if _, err := s.styleRepo.CompareAndSwap(ctx, userID, folded, version); err != nil {
		return casError(err)
	}
	return nil
}

// currentVector возвращает вектор и версию; nil-вектор означает холодный старт.
func (s *StyleUseCase) currentVector(ctx context.Context, userID string) ([]float32, int64, error) {
	sv, err := s.styleRepo.Get(ctx, userID)
	if errors.Is(err, e.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, e.Persistence("get style vector", err)
	}
	return sv.Vector, sv.Version, nil
}

// withUserLock сериализует обновления вектора пользователя внутри процесса и повторяет
// попытку при конфликте версий с другим экземпляром сервиса.
func (s *StyleUseCase) withUserLock(ctx context.Context, userID string, fn func(ctx context.Context) (string, error)) error {
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	for attempt := 0; attempt < s.cfg.MaxUpdateRetries; attempt++ {
		outcome, err := fn(ctx)
		if err == nil {
			s.metrics.StyleUpdate(outcome)
			if outcome != styleOutcomeSkipped {
				s.invalidateRecommendations(ctx, userID)
			}
			return nil
		}

		if !errors.Is(err, e.ErrVersionConflict) {
			s.metrics.StyleUpdate(styleOutcomeFailed)
			return err
		}

		s.metrics.VersionConflict()
		s.logger.Debugf("style vector of %s changed concurrently, retry %d", userID, attempt+1)

		if err := jitter.Sleep(ctx, jitter.ExponentialBackoff(s.cfg.RetryBaseBackoff, time.Second, attempt, jitter.DefaultJitter)); err != nil {
			return err
		}
	}

	s.metrics.StyleUpdate(styleOutcomeConflict)
	return e.ErrVersionConflict
}

func (s *StyleUseCase) invalidateRecommendations(ctx context.Context, userID string) {
	if err := s.cacheRepo.InvalidateRecommendations(ctx, userID); err != nil {
		s.logger.Warnf("failed to invalidate recommendations of %s: %v", userID, err)
	}
}

func casError(err error) error {
	if errors.Is(err, e.ErrVersionConflict) {
		return err
	}
	return e.Persistence("write style vector", err)
}
