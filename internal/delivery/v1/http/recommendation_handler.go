package http

import (
	"net/http"
	"strconv"

	"github.com/DRSN-tech/thrift-backend/internal/usecase"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type RecommendationHandler struct {
	recsUsecase usecase.RecommendationUC
	logger      logger.Logger
}

func NewRecommendationHandler(recsUsecase usecase.RecommendationUC, logger logger.Logger) *RecommendationHandler {
	return &RecommendationHandler{recsUsecase: recsUsecase, logger: logger}
}

// getRecommendations
//
//	@Summary		Рекомендации для пользователя
//	@Description	Ближайшие к вектору стиля объявления без лайкнутых и сохранённых. Без вектора отдаёт популярное
//	@Tags			recommendations
//	@Produce		json
//	@Param			userID	path		string	true	"ID пользователя"
//	@Param			limit	query		int		false	"Сколько объявлений вернуть"
//	@Success		200		{object}	usecase.RecommendationsRes
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/users/{userID}/recommendations [get]
func (h *RecommendationHandler) getRecommendations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			WriteError(w, e.Wrap(raw, e.ErrInvalidLimit))
			return
		}
		limit = n
	}

	res, err := h.recsUsecase.Recommend(r.Context(), &usecase.RecommendReq{UserID: chi.URLParam(r, "userID"), Limit: limit})
	if err != nil {
		logRequestError(h.logger, r, err)
		WriteError(w, err)
		return
	}

	if res.Results == nil {
		res.Results = []usecase.RecommendedListing{}
	}
	WriteSuccess(w, http.StatusOK, res)
}
