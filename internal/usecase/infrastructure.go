package usecase

import (
	"context"
	"time"
)

// Embedder переводит текст в вектор фиксированной размерности.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Captioner описывает фото вещи строкой вида "<Type>: <Description>".
type Captioner interface {
	CaptionImage(ctx context.Context, image []byte, mimeType string) (string, error)
}

type ImagesInfra interface {
	UploadImages(ctx context.Context, req *UploadImagesReq) (*UploadImagesRes, error)
	CleanupImages(keys []string)
	DownloadImage(ctx context.Context, key string) ([]byte, string, error)
	PresignedURL(ctx context.Context, key string) (string, error)
}

// MessageProducer публикует сообщения в брокер. Ключ определяет партицию.
type MessageProducer interface {
	WriteRawMessage(ctx context.Context, req *WriteRawMessageReq) error
}

type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type Metrics interface {
	IngestionOutcome(eventType, outcome string)
	StyleUpdate(outcome string)
	VersionConflict()
	RecommendationServed(source string, dur time.Duration)
}
