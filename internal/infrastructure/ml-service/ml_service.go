package ml_service

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/thrift-backend/internal/cfg"
	"github.com/DRSN-tech/thrift-backend/internal/usecase"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
	gobreaker "github.com/sony/gobreaker/v2"
)

// MLService клиент для взаимодействия с внешними моделями (эмбеддинги и описание фото).
// Сами модели подключаются через usecase.Embedder и usecase.Captioner, MLService добавляет к ним защиту.
type MLService struct {
	embedder     usecase.Embedder
	captioner    usecase.Captioner
	embedGuard   *Guard[[]float32]
	captionGuard *Guard[string]
	dimension    int
	logger       logger.Logger
}

func NewMLService(
	embedder usecase.Embedder,
	captioner usecase.Captioner,
	dimension int,
	cfg *cfg.MLServiceCfg,
	metrics ProviderMetrics,
	logger logger.Logger,
) *MLService {
	return &MLService{
		embedder:     embedder,
		captioner:    captioner,
		embedGuard:   NewGuard[[]float32]("embedder", cfg, metrics, logger),
		captionGuard: NewGuard[string]("captioner", cfg, metrics, logger),
		dimension:    dimension,
		logger:       logger,
	}
}

// EmbedText возвращает эмбеддинг текста. Вектор чужой размерности считается ошибкой провайдера.
func (m *MLService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	const op = "MLService.EmbedText"

	vector, err := m.embedGuard.Do(ctx, func(ctx context.Context) ([]float32, error) {
		v, err := m.embedder.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		if len(v) == 0 {
			return nil, Permanent(e.ErrVectorEmbeddingEmpty)
		}
		if m.dimension > 0 && len(v) != m.dimension {
			return nil, Permanent(e.NewDimensionMismatchError(m.dimension, len(v)))
		}
		return v, nil
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return vector, nil
}

// CaptionImage возвращает сырой ответ модели вида "<Type>: <Description>".
func (m *MLService) CaptionImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	const op = "MLService.CaptionImage"

	if len(image) == 0 {
		return "", e.Wrap(op, e.Provider("captioner", Permanent(fmt.Errorf("empty image"))))
	}

	caption, err := m.captionGuard.Do(ctx, func(ctx context.Context) (string, error) {
		return m.captioner.CaptionImage(ctx, image, mimeType)
	})
	if err != nil {
		return "", e.Wrap(op, err)
	}

	return caption, nil
}

// Healthy сообщает false, если хотя бы один breaker разомкнут.
func (m *MLService) Healthy() bool {
	return m.embedGuard.State() != gobreaker.StateOpen && m.captionGuard.State() != gobreaker.StateOpen
}
