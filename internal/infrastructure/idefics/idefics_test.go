package idefics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DRSN-tech/thrift-backend/internal/cfg"
	ml_service "github.com/DRSN-tech/thrift-backend/internal/infrastructure/ml-service"
)

func newTestCaptioner(t *testing.T, handler http.HandlerFunc) *Captioner {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewCaptioner(&cfg.CaptionerCfg{IdeficsURL: srv.URL + "/", Timeout: time.Second})
}

func TestCaptionImage(t *testing.T) {
	c := newTestCaptioner(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/generate_from_base64" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.ImageBase64 != "aW1n" {
			t.Errorf("image_base64 = %q", req.ImageBase64)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"generated_text":" Outerwear: navy wool peacoat "}`)
	})

	got, err := c.CaptionImage(context.Background(), []byte("img"), "image/jpeg")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Outerwear: navy wool peacoat" {
		t.Errorf("caption = %q", got)
	}
}

func TestCaptionImageErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantPermanent bool
	}{
		{name: "missing field", status: http.StatusBadRequest, body: `{"error":"Missing image_base64 in request"}`, wantPermanent: true},
		{name: "generation failed", status: http.StatusInternalServerError, body: `{"success":false,"error":"model overloaded"}`},
		{name: "unsuccessful 200", status: http.StatusOK, body: `{"success":false,"error":"oops"}`},
		{name: "html", status: http.StatusOK, body: `<html>gateway</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCaptioner(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.CaptionImage(context.Background(), []byte("img"), "image/jpeg")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := ml_service.IsPermanent(err); got != tt.wantPermanent {
				t.Errorf("permanent = %v, want %v (err %v)", got, tt.wantPermanent, err)
			}
		})
	}
}
