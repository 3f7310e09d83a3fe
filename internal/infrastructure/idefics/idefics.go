package idefics

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/DRSN-tech/thrift-backend/internal/cfg"
	ml_service "github.com/DRSN-tech/thrift-backend/internal/infrastructure/ml-service"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
)

const maxErrorBody = 512

type generateRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type generateResponse struct {
	Success       bool   `json:"success"`
	GeneratedText string `json:"generated_text"`
	Error         string `json:"error,omitempty"`
}

// Captioner — клиент сервиса описаний IDEFICS. Промпт формирует сам сервис.
type Captioner struct {
	baseURL string
	client  *http.Client
}

func NewCaptioner(cfg *cfg.CaptionerCfg) *Captioner {
	return &Captioner{
		baseURL: strings.TrimRight(cfg.IdeficsURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Captioner) CaptionImage(ctx context.Context, image []byte, _ string) (string, error) {
	const op = "idefics.CaptionImage"

	body, err := json.Marshal(generateRequest{ImageBase64: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		return "", e.Wrap(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate_from_base64", bytes.NewReader(body))
	if err != nil {
		return "", e.Wrap(op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", e.Wrap(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", e.Wrap(op, err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("idefics returned status %d: %s", resp.StatusCode, truncate(raw))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", e.Wrap(op, ml_service.Permanent(err))
		}
		return "", e.Wrap(op, err)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", e.Wrap(op, fmt.Errorf("non-JSON response (%s): %w", truncate(raw), err))
	}

	if !out.Success {
		return "", e.Wrap(op, fmt.Errorf("idefics generation failed: %s", out.Error))
	}

	return strings.TrimSpace(out.GeneratedText), nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody])
	}
	return string(b)
}
