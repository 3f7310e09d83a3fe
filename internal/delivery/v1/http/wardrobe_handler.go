package http

import (
	"net/http"

	"github.com/DRSN-tech/thrift-backend/internal/usecase"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

const (
	multipartOverhead = 1 << 20
	maxFormMemory     = 32 << 20
)

type WardrobeHandler struct {
	wardrobeUsecase usecase.WardrobeUC
	maxImageSize    int64
	logger          logger.Logger
}

func NewWardrobeHandler(wardrobeUsecase usecase.WardrobeUC, maxImageSize int64, logger logger.Logger) *WardrobeHandler {
	return &WardrobeHandler{wardrobeUsecase: wardrobeUsecase, maxImageSize: maxImageSize, logger: logger}
}

// uploadItem
//
//	@Summary		Загрузка вещи в гардероб
//	@Description	Сохраняет фото вещи. Подпись и эмбеддинг считаются асинхронно
//	@Tags			wardrobe
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			userID	path		string	true	"ID пользователя"
//	@Param			image	formData	file	true	"Фото вещи (jpeg, png, webp)"
//	@Success		201		{object}	uploadItemResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		413		{object}	ErrorResponse	"Файл слишком большой"
//	@Failure		415		{object}	ErrorResponse	"Неподдерживаемый тип"
//	@Router			/users/{userID}/wardrobe/items [post]
func (h *WardrobeHandler) uploadItem(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageSize+multipartOverhead)

	if err := ensureMultipartForm(r, maxFormMemory); err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), r.Header.Get("Content-Type"))
		WriteError(w, err)
		return
	}

	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		WriteError(w, e.ErrNoImages)
		return
	}

	data, mimeType, err := readFile(files[0], h.maxImageSize)
	if err != nil {
		logRequestError(h.logger, r, err)
		WriteError(w, err)
		return
	}

	res, err := h.wardrobeUsecase.UploadImage(r.Context(), &usecase.UploadWardrobeImageReq{
		UserID: chi.URLParam(r, "userID"),
		Image: usecase.WardrobeImage{
			Data:     data,
			MimeType: mimeType,
			Size:     int64(len(data)),
			Name:     files[0].Filename,
		},
	})
	if err != nil {
		logRequestError(h.logger, r, err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, uploadItemResponse{ItemID: res.ItemID, ImageURL: res.ImageURL})
}

// listItems
//
//	@Summary	Вещи гардероба
//	@Tags		wardrobe
//	@Produce	json
//	@Param		userID	path		string	true	"ID пользователя"
//	@Success	200		{object}	wardrobeItemsResponse
//	@Router		/users/{userID}/wardrobe/items [get]
func (h *WardrobeHandler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.wardrobeUsecase.ListItems(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		logRequestError(h.logger, r, err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, newWardrobeItemsResponse(items))
}
