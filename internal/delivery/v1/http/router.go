package http

import (
	"net/http"

	_ "github.com/DRSN-tech/thrift-backend/docs" // Импорт сгенерированных файлов
	"github.com/DRSN-tech/thrift-backend/internal/usecase"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// HTTPMetrics — метрики запросов и эндпоинт для Prometheus.
type HTTPMetrics interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

type Router struct {
	router  *chi.Mux
	logger  logger.Logger
	metrics HTTPMetrics
}

func NewRouter(router *chi.Mux, logger logger.Logger, metrics HTTPMetrics) *Router {
	return &Router{router: router, logger: logger, metrics: metrics}
}

type Deps struct {
	ListingUC        usecase.ListingUC
	WardrobeUC       usecase.WardrobeUC
	RecommendationUC usecase.RecommendationUC
	MaxImageSize     int64
	HealthChecks     map[string]HealthCheck
}

func (r *Router) Init(deps Deps) {
	r.router.Use(middleware.Recoverer)
	r.router.Use(r.metrics.Middleware)

	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"), // ссылка на JSON
	))
	r.router.Method(http.MethodGet, "/metrics", r.metrics.Handler())
	r.router.Get("/healthz", NewHealthHandler(deps.HealthChecks, r.logger).healthz)

	r.router.Route("/api/v1", func(v1 chi.Router) {
		registerListingRoutes(v1, NewListingHandler(deps.ListingUC, r.logger))
		registerRecommendationRoutes(v1, NewRecommendationHandler(deps.RecommendationUC, r.logger))
		registerWardrobeRoutes(v1, NewWardrobeHandler(deps.WardrobeUC, deps.MaxImageSize, r.logger))
	})
}

func registerListingRoutes(router chi.Router, h *ListingHandler) {
	router.Get("/listings", h.getListings)
	router.Route("/users/{userID}", func(u chi.Router) {
		u.Put("/likes", h.likeListing)
		u.Delete("/likes/{listingID}", h.unlikeListing)
		u.Put("/saved", h.saveListing)
		u.Delete("/saved/{listingID}", h.unsaveListing)
	})
}

func registerRecommendationRoutes(router chi.Router, h *RecommendationHandler) {
	router.Get("/users/{userID}/recommendations", h.getRecommendations)
}

func registerWardrobeRoutes(router chi.Router, h *WardrobeHandler) {
	router.Route("/users/{userID}/wardrobe/items", func(wr chi.Router) {
		wr.Post("/", h.uploadItem)
		wr.Get("/", h.listItems)
	})
}
