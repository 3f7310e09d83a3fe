package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/DRSN-tech/thrift-backend/pkg/e"
)

// StyleVector — экспоненциальное скользящее среднее эмбеддингов вещей, с которыми взаимодействовал пользователь.
// Version растёт на каждой записи и служит токеном оптимистичной блокировки.
type StyleVector struct {
	UserID    string
	Vector    []float32
	Version   int64
	UpdatedAt time.Time
}

// UpdateStyleVector применяет одно наблюдение: alpha*e + (1-alpha)*c.
// current == nil означает холодный старт, тогда возвращается копия embedding.
// Результат всегда новый слайс, входные не изменяются.
func UpdateStyleVector(current, embedding []float32, alpha float64) ([]float32, error) {
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return nil, e.ErrInvalidAlpha
	}

	if current == nil {
		out := make([]float32, len(embedding))
		copy(out, embedding)
		return out, nil
	}

	if len(current) != len(embedding) {
		return nil, e.NewDimensionMismatchError(len(current), len(embedding))
	}

	out := make([]float32, len(current))
	for i := range current {
		out[i] = float32(alpha*float64(embedding[i]) + (1-alpha)*float64(current[i]))
	}
	return out, nil
}

// FoldStyleVector сворачивает последовательность эмбеддингов слева направо, начиная с холодного старта.
// Пустая последовательность даёт nil.
func FoldStyleVector(embeddings [][]float32, alpha float64) ([]float32, error) {
	var current []float32
	for _, emb := range embeddings {
		next, err := UpdateStyleVector(current, emb, alpha)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// UnlikePolicy определяет, как снятие лайка влияет на style-вектор.
type UnlikePolicy string

const (
	// UnlikeAppendOnly: вектор хранит затухающую историю, снятие лайка ничего не меняет,
	// а пара (пользователь, вещь) учитывается не более одного раза.
	UnlikeAppendOnly UnlikePolicy = "append_only"
	// UnlikeReversible: вклад деактивируется, вектор пересобирается из оставшихся вкладов.
	UnlikeReversible UnlikePolicy = "reversible"
)

// ParseUnlikePolicy разбирает STYLE_UNLIKE_POLICY без учёта регистра. Пустое значение даёт append_only.
func ParseUnlikePolicy(s string) (UnlikePolicy, error) {
	switch UnlikePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", UnlikeAppendOnly:
		return UnlikeAppendOnly, nil
	case UnlikeReversible:
		return UnlikeReversible, nil
	default:
		return "", fmt.Errorf("%w: unknown unlike policy %q", e.ErrIncorrectEnvVariable, s)
	}
}
