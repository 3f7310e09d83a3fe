package usecase

import (
	"context"
	"strings"

	"github.com/DRSN-tech/thrift-backend/internal/domain"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
)

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// WardrobeUseCase принимает фото вещей пользователя. Подпись и эмбеддинг строятся асинхронно через outbox.
type WardrobeUseCase struct {
	wardrobeRepo WardrobeRepository
	clothingRepo ClothingItemRepository
	outboxRepo   OutboxEventRepository
	imagesInfra  ImagesInfra
	txManager    TxManager
	logger       logger.Logger
	maxImageSize int64
}

func NewWardrobeUC(
	wardrobeRepo WardrobeRepository,
	clothingRepo ClothingItemRepository,
	outboxRepo OutboxEventRepository,
	imagesInfra ImagesInfra,
	txManager TxManager,
	logger logger.Logger,
	maxImageSize int64,
) *WardrobeUseCase {
	return &WardrobeUseCase{
		wardrobeRepo: wardrobeRepo,
		clothingRepo: clothingRepo,
		outboxRepo:   outboxRepo,
		imagesInfra:  imagesInfra,
		txManager:    txManager,
		logger:       logger,
		maxImageSize: maxImageSize,
	}
}

// UploadImage сохраняет фото в объектное хранилище, создаёт вещь и событие wardrobe_item.uploaded.
// Если транзакция не удалась, загруженный объект удаляется.
func (w *WardrobeUseCase) UploadImage(ctx context.Context, req *UploadWardrobeImageReq) (*UploadWardrobeImageRes, error) {
	const op = "WardrobeUseCase.UploadImage"

	var err error
	if err = w.validateImage(req); err != nil {
		return nil, e.Wrap(op, err)
	}

	wardrobe, err := w.wardrobeRepo.GetOrCreate(ctx, req.UserID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	uploaded, err := w.imagesInfra.UploadImages(ctx, NewUploadImagesReq(wardrobe.ID.String(), []WardrobeImage{req.Image}))
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if len(uploaded.ImagesKeys) != 1 {
		w.imagesInfra.CleanupImages(uploaded.ImagesKeys)
		return nil, e.Wrap(op, e.ErrInternalServerError)
	}

	item := domain.NewClothingItem(wardrobe.ID, req.UserID, uploaded.ImagesKeys[0])

	err = w.txManager.Do(ctx, func(ctx context.Context) error {
		if err := w.clothingRepo.Create(ctx, item); err != nil {
			return err
		}

		event, err := NewOutboxEvent(NewWardrobeStyleEvent(req.UserID, item, req.Image.MimeType))
		if err != nil {
			return err
		}

		_, err = w.outboxRepo.Create(ctx, event)
		return err
	})
	if err != nil {
		w.logger.Warnf(
			"cleaning up orphaned image after transaction failure. user: %s, key: %s, error: %v",
			req.UserID,
			item.ImageKey,
			e.Wrap(op, err),
		)
		w.imagesInfra.CleanupImages(uploaded.ImagesKeys)
		return nil, e.Wrap(op, err)
	}

	url, err := w.imagesInfra.PresignedURL(ctx, item.ImageKey)
	if err != nil {
		w.logger.Warnf("failed to presign image %s: %v", item.ImageKey, e.Wrap(op, err))
	}

	return &UploadWardrobeImageRes{ItemID: item.ID, ImageURL: url}, nil
}

// ListItems возвращает вещи гардероба пользователя со ссылками на фото.
func (w *WardrobeUseCase) ListItems(ctx context.Context, userID string) ([]WardrobeItemInfo, error) {
	const op = "WardrobeUseCase.ListItems"

	if strings.TrimSpace(userID) == "" {
		return nil, e.Wrap(op, e.ErrInvalidUserID)
	}

	items, err := w.clothingRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	out := make([]WardrobeItemInfo, 0, len(items))
	for _, it := range items {
		url, err := w.imagesInfra.PresignedURL(ctx, it.ImageKey)
		if err != nil {
			w.logger.Warnf("failed to presign image %s: %v", it.ImageKey, e.Wrap(op, err))
		}

		out = append(out, WardrobeItemInfo{
			ID:          it.ID,
			Type:        it.Type,
			Description: it.Description,
			ImageURL:    url,
			Embedded:    it.EmbeddedAt != nil,
			CreatedAt:   it.CreatedAt,
		})
	}
	return out, nil
}

func (w *WardrobeUseCase) validateImage(req *UploadWardrobeImageReq) error {
	if strings.TrimSpace(req.UserID) == "" {
		return e.ErrInvalidUserID
	}

	if len(req.Image.Data) == 0 {
		return e.ErrNoImages
	}

	if _, ok := allowedImageTypes[req.Image.MimeType]; !ok {
		return e.ErrUnsupportedMediaType
	}

	if w.maxImageSize > 0 && int64(len(req.Image.Data)) > w.maxImageSize {
		return e.ErrFileTooLarge
	}

	return nil
}
