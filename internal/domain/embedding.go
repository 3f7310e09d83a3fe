package domain

import (
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/google/uuid"
)

// ItemKind — вид элемента, у которого есть эмбеддинг.
type ItemKind string

const (
	KindListing      ItemKind = "listing"
	KindWardrobeItem ItemKind = "wardrobe_item"
)

func (k ItemKind) Valid() bool {
	return k == KindListing || k == KindWardrobeItem
}

// ItemRef однозначно адресует элемент: объявление или вещь гардероба.
type ItemRef struct {
	Kind ItemKind
	ID   string
}

func (r ItemRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// pointNamespace — пространство имён UUIDv5 для id точек векторного хранилища.
var pointNamespace = uuid.MustParse("5b1c7c1e-3f0e-4d8a-9f57-8f1d2a6c9e41")

// PointID детерминированно переводит ссылку на элемент в UUID точки. Id объявлений
// приходят от платформ в произвольном формате, а хранилище принимает только UUID или целые.
func PointID(ref ItemRef) uuid.UUID {
	return uuid.NewSHA1(pointNamespace, []byte(ref.String()))
}

// Embedding — вектор фиксированной размерности, привязанный к элементу.
type Embedding struct {
	Item   ItemRef
	Vector []float32
}

func NewEmbedding(item ItemRef, vector []float32) *Embedding {
	return &Embedding{Item: item, Vector: vector}
}

// IsZeroVector сообщает, что вектор пуст или состоит из одних нулей.
func IsZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// CheckDimension проверяет, что вектор имеет ожидаемую размерность.
func CheckDimension(v []float32, dim int) error {
	if len(v) != dim {
		return e.NewDimensionMismatchError(dim, len(v))
	}
	return nil
}
