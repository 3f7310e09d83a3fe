package e

import (
	"errors"
	"fmt"
)

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Таксономия ошибок рекомендательного ядра
	ErrProvider          = errors.New("provider error")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrNotFound          = errors.New("not found")
	ErrPersistence       = errors.New("persistence error")
	ErrVersionConflict   = errors.New("version conflict")
	ErrInvalidAlpha      = errors.New("alpha must be within [0, 1]")

	// Внутренние ошибки с векторами
	ErrEmptyVectors         = fmt.Errorf("empty vectors")
	ErrVectorEmbeddingEmpty = fmt.Errorf("vector embedding is empty")

	// 400 Bad Request
	ErrStatusBadRequest     = fmt.Errorf("bad request")
	ErrInvalidUserID        = fmt.Errorf("invalid user id")
	ErrListingIDRequired    = fmt.Errorf("listing id is required")
	ErrMissingFields        = fmt.Errorf("missing required fields")
	ErrInvalidPrice         = fmt.Errorf("invalid price")
	ErrInvalidPlatform      = fmt.Errorf("invalid platform")
	ErrPricePrecision       = fmt.Errorf("price must have at most 2 decimal places")
	ErrInvalidLimit         = fmt.Errorf("invalid limit")
	ErrNoImages             = fmt.Errorf("no images provided")
	ErrExpectedMultipart    = fmt.Errorf("expected multipart/form-data")
	ErrFileTooLarge         = fmt.Errorf("file too large")
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")

	// 404 Not Found
	ErrListingNotFound = fmt.Errorf("listing not found")

	// 500
	ErrInternalServerError = fmt.Errorf("internal server error")
)

// DimensionMismatchError нарушение инварианта размерности векторов. Фатальная ошибка, повтор бессмыслен.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (d *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: want %d, got %d", d.Want, d.Got)
}

func (d *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

func NewDimensionMismatchError(want, got int) error {
	return &DimensionMismatchError{Want: want, Got: got}
}

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}

// Provider помечает ошибку внешнего inference-сервиса, сохраняя исходную причину.
func Provider(msg string, err error) error {
	return fmt.Errorf("%s: %w: %w", msg, ErrProvider, err)
}

// Persistence помечает ошибку записи/чтения хранилища.
func Persistence(msg string, err error) error {
	return fmt.Errorf("%s: %w: %w", msg, ErrPersistence, err)
}
