package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()

	m.IngestionOutcome("listing.liked", "processed")
	m.IngestionOutcome("listing.liked", "processed")
	m.IngestionOutcome("listing.liked", "failed")
	m.StyleUpdate("applied")
	m.VersionConflict()
	m.RecommendationServed("fallback", 10*time.Millisecond)
	m.ProviderCall("openai_embed", "ok", time.Second)
	m.OutboxPublished("ok")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"processed", testutil.ToFloat64(m.ingestionEvents.WithLabelValues("listing.liked", "processed")), 2},
		{"failed", testutil.ToFloat64(m.ingestionEvents.WithLabelValues("listing.liked", "failed")), 1},
		{"style", testutil.ToFloat64(m.styleUpdates.WithLabelValues("applied")), 1},
		{"conflicts", testutil.ToFloat64(m.versionConflicts), 1},
		{"recs", testutil.ToFloat64(m.recommendations.WithLabelValues("fallback")), 1},
		{"provider", testutil.ToFloat64(m.providerCalls.WithLabelValues("openai_embed", "ok")), 1},
		{"outbox", testutil.ToFloat64(m.outboxPublished.WithLabelValues("ok")), 1},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/users/{userID}/recommendations", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodGet, "/users/"+id+"/recommendations", nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/users/{userID}/recommendations", "418"))
	if got != 3 {
		t.Errorf("requests = %v, want 3", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.VersionConflict()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "thrift_style_version_conflicts_total 1") {
		t.Errorf("metric not exposed:\n%s", body)
	}
}
