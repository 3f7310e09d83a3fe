package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DRSN-tech/thrift-backend/internal/cfg"
	ml_service "github.com/DRSN-tech/thrift-backend/internal/infrastructure/ml-service"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(&cfg.OpenAICfg{
		APIKey:         "test-key",
		BaseURL:        srv.URL + "/",
		EmbeddingModel: "text-embedding-3-small",
		VisionModel:    "gpt-4o-mini",
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(&cfg.OpenAICfg{}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestEmbedText(t *testing.T) {
	var gotInput []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotInput = req.Input

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.25,-0.5,1]}],"model":"text-embedding-3-small"}`)
	})

	vector, err := c.EmbedText(context.Background(), "Wool coat, Good, premium price")
	if err != nil {
		t.Fatal(err)
	}
	if len(vector) != 3 || vector[0] != 0.25 || vector[1] != -0.5 {
		t.Errorf("vector = %v", vector)
	}
	if len(gotInput) != 1 || gotInput[0] != "Wool coat, Good, premium price" {
		t.Errorf("input = %v", gotInput)
	}
}

func TestEmbedTextClassifiesErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantPermanent bool
	}{
		{name: "bad request", status: http.StatusBadRequest, wantPermanent: true},
		{name: "unauthorized", status: http.StatusUnauthorized, wantPermanent: true},
		{name: "rate limited", status: http.StatusTooManyRequests, wantPermanent: false},
		{name: "server error", status: http.StatusInternalServerError, wantPermanent: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":{"message":"nope","type":"invalid_request_error"}}`)
			})

			_, err := c.EmbedText(context.Background(), "text")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := ml_service.IsPermanent(err); got != tt.wantPermanent {
				t.Errorf("permanent = %v, want %v (err %v)", got, tt.wantPermanent, err)
			}
		})
	}
}

func TestCaptionImage(t *testing.T) {
	var body string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  Tops: striped linen shirt \n"}}]}`)
	})

	got, err := c.CaptionImage(context.Background(), []byte("img"), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Tops: striped linen shirt" {
		t.Errorf("caption = %q", got)
	}
	if !strings.Contains(body, "data:image/png;base64,aW1n") {
		t.Errorf("request does not carry the image: %s", body)
	}
	if !strings.Contains(body, "Footwear, or Other") {
		t.Errorf("request does not carry the prompt: %s", body)
	}
}

func TestCaptionImageNoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[]}`)
	})

	_, err := c.CaptionImage(context.Background(), []byte("img"), "image/jpeg")
	if err == nil || ml_service.IsPermanent(err) {
		t.Fatalf("err = %v, want transient error", err)
	}
	if errors.Unwrap(err) == nil {
		t.Error("error should be wrapped with op")
	}
}
