package http

import (
	"net/http"

	"github.com/DRSN-tech/thrift-backend/internal/usecase"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type ListingHandler struct {
	listingUsecase usecase.ListingUC
	logger         logger.Logger
}

func NewListingHandler(listingUsecase usecase.ListingUC, logger logger.Logger) *ListingHandler {
	return &ListingHandler{listingUsecase: listingUsecase, logger: logger}
}

// likeListing
//
//	@Summary		Лайк объявления
//	@Description	Сохраняет объявление и отмечает его как понравившееся. Повторный лайк ничего не меняет
//	@Tags			listings
//	@Accept			json
//	@Produce		json
//	@Param			userID	path		string			true	"ID пользователя"
//	@Param			listing	body		listingRequest	true	"Объявление"
//	@Success		200		{object}	likeResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		500		{object}	ErrorResponse
//	@Router			/users/{userID}/likes [put]
func (h *ListingHandler) likeListing(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseActionReq(w, r)
	if err != nil {
		WriteError(w, err)
		return
	}

	res, err := h.listingUsecase.LikeListing(r.Context(), req)
	if err != nil {
		logRequestError(h.logger, r, err)
		WriteError(w, err)
		return
	}

	msg := "Listing liked"
	if !res.Changed {
		msg = "Listing already liked"
	}
	WriteSuccess(w, http.StatusOK, likeResponse{ListingID: res.ListingID, Liked: res.Active, Message: msg})
}

// unlikeListing
//
//	@Summary		Снять лайк
//	@Description	Идемпотентно: для незнакомого объявления вернёт liked=false
//	@Tags			listings
//	@Produce		json
//	@Param			userID		path		string	true	"ID пользователя"
//	@Param			listingID	path		string	true	"ID объявления"
//	@Success		200			{object}	likeResponse
//	@Failure		400			{object}	ErrorResponse
//	@Router			/users/{userID}/likes/{listingID} [delete]
func (h *ListingHandler) unlikeListing(w http.ResponseWriter, r *http.Request) {
	res, err := h.listingUsecase.UnlikeListing(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "listingID"))
	if err != nil {
		logRequestError(h.logger, r, err)
		WriteError(w, err)
		return
	}

	msg := "Listing unliked"
	if !res.Changed {
		msg = "Listing was not liked"
	}
	WriteSuccess(w, http.StatusOK, likeResponse{ListingID: res.ListingID, Liked: res.Active, Message: msg})
}

// saveListing
//
//	@Summary		Сохранить объявление
//	@Tags			listings
//	@Accept			json
//	@Produce		json
//	@Param			userID	path		string			true	"ID пользователя"
//	@Param			listing	body		listingRequest	true	"Объявление"
//	@Success		200		{object}	saveResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Router			/users/{userID}/saved [put]
func (h *ListingHandler) saveListing(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseActionReq(w, r)
	if err != nil {
		WriteError(w, err)
		return
	}

	res, err := h.listingUsecase.SaveListing(r.Context(), req)
	if err != nil {
		logRequestError(h.logger, r, err)
		WriteError(w, err)
		return
	}

	msg := "Listing saved"
	if !res.Changed {
		msg = "Listing already saved"
	}
	WriteSuccess(w, http.StatusOK, saveResponse{ListingID: res.ListingID, Saved: res.Active, Message: msg})
}

// unsaveListing
//
//	@Summary	Убрать объявление из сохранённых
//	@Tags		listings
//	@Produce	json
//	@Param		userID		path		string	true	"ID пользователя"
//	@Param		listingID	path		string	true	"ID объявления"
//	@Success	200			{object}	saveResponse
//	@Router		/users/{userID}/saved/{listingID} [delete]
func (h *ListingHandler) unsaveListing(w http.ResponseWriter, r *http.Request) {
	res, err := h.listingUsecase.UnsaveListing(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "listingID"))
	if err != nil {
		logRequestError(h.logger, r, err)
		WriteError(w, err)
		return
	}

	msg := "Listing removed from saved"
	if !res.Changed {
		msg = "Listing was not saved"
	}
	WriteSuccess(w, http.StatusOK, saveResponse{ListingID: res.ListingID, Saved: res.Active, Message: msg})
}

// getListings
//
//	@Summary	Информация об объявлениях
//	@Tags		listings
//	@Produce	json
//	@Param		ids	query		string	true	"ID через запятую"
//	@Success	200	{object}	listingsResponse
//	@Failure	400	{object}	ErrorResponse
//	@Router		/listings [get]
func (h *ListingHandler) getListings(w http.ResponseWriter, r *http.Request) {
	ids := splitIDs(r.URL.Query().Get("ids"))
	if len(ids) == 0 {
		WriteError(w, e.ErrListingIDRequired)
		return
	}

	res, err := h.listingUsecase.GetListingsInfo(r.Context(), &usecase.GetListingsReq{IDs: ids})
	if err != nil {
		logRequestError(h.logger, r, err)
		WriteError(w, err)
		return
	}

	out := listingsResponse{Listings: res.Listings, NotFound: res.NotFoundListings}
	if out.Listings == nil {
		out.Listings = []usecase.ListingInfo{}
	}
	if out.NotFound == nil {
		out.NotFound = []string{}
	}
	WriteSuccess(w, http.StatusOK, out)
}

func (h *ListingHandler) parseActionReq(w http.ResponseWriter, r *http.Request) (*usecase.ListingActionReq, error) {
	var body listingRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		return nil, err
	}

	return &usecase.ListingActionReq{UserID: chi.URLParam(r, "userID"), Listing: body.toInput()}, nil
}
