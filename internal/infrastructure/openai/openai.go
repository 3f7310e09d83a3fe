package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/DRSN-tech/thrift-backend/internal/cfg"
	"github.com/DRSN-tech/thrift-backend/internal/domain"
	ml_service "github.com/DRSN-tech/thrift-backend/internal/infrastructure/ml-service"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	oai "github.com/sashabaranov/go-openai"
)

const captionMaxTokens = 300

// Client — адаптер OpenAI API: эмбеддинги текста и описание фото vision-моделью.
// Ретраи и breaker навешивает MLService, здесь только один вызов.
type Client struct {
	client         *oai.Client
	embeddingModel oai.EmbeddingModel
	visionModel    string
}

func NewClient(cfg *cfg.OpenAICfg) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	config := oai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &Client{
		client:         oai.NewClientWithConfig(config),
		embeddingModel: oai.EmbeddingModel(cfg.EmbeddingModel),
		visionModel:    cfg.VisionModel,
	}, nil
}

func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	const op = "openai.EmbedText"

	resp, err := c.client.CreateEmbeddings(ctx, oai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: c.embeddingModel,
	})
	if err != nil {
		return nil, e.Wrap(op, classify(err))
	}

	if len(resp.Data) == 0 {
		return nil, e.Wrap(op, fmt.Errorf("no embeddings returned"))
	}

	return resp.Data[0].Embedding, nil
}

func (c *Client) CaptionImage(ctx context.Context, image []byte, mimeType string) (string, error) {
	const op = "openai.CaptionImage"

	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	resp, err := c.client.CreateChatCompletion(ctx, oai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []oai.ChatCompletionMessage{
			{
				Role: oai.ChatMessageRoleUser,
				MultiContent: []oai.ChatMessagePart{
					{Type: oai.ChatMessagePartTypeText, Text: domain.CaptionPrompt},
					{Type: oai.ChatMessagePartTypeImageURL, ImageURL: &oai.ChatMessageImageURL{
						URL:    dataURL,
						Detail: oai.ImageURLDetailLow,
					}},
				},
			},
		},
		MaxTokens:   captionMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return "", e.Wrap(op, classify(err))
	}

	if len(resp.Choices) == 0 {
		return "", e.Wrap(op, fmt.Errorf("no completion choices returned"))
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// classify помечает клиентские ошибки API как Permanent. 408 и 429 повторяемы.
func classify(err error) error {
	var apiErr *oai.APIError
	if errors.As(err, &apiErr) && isPermanentStatus(apiErr.HTTPStatusCode) {
		return ml_service.Permanent(err)
	}

	var reqErr *oai.RequestError
	if errors.As(err, &reqErr) && isPermanentStatus(reqErr.HTTPStatusCode) {
		return ml_service.Permanent(err)
	}

	return err
}

func isPermanentStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return false
	}
	return code >= 400 && code < 500
}
