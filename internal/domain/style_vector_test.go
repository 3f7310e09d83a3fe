package domain

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/DRSN-tech/thrift-backend/pkg/e"
)

func approxEqual(a, b []float32, eps float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(float64(a[i]-b[i])) > eps {
			return false
		}
	}
	return true
}

func TestUpdateStyleVector(t *testing.T) {
	tests := []struct {
		name      string
		current   []float32
		embedding []float32
		alpha     float64
		want      []float32
	}{
		{
			name:      "cold start returns embedding",
			current:   nil,
			embedding: []float32{1, 0, 0},
			alpha:     0.3,
			want:      []float32{1, 0, 0},
		},
		{
			name:      "second like blends with alpha",
			current:   []float32{1, 0, 0},
			embedding: []float32{0, 1, 0},
			alpha:     0.3,
			want:      []float32{0.7, 0.3, 0},
		},
		{
			name:      "alpha one replaces",
			current:   []float32{0.2, 0.4},
			embedding: []float32{1, 1},
			alpha:     1,
			want:      []float32{1, 1},
		},
		{
			name:      "alpha zero keeps current",
			current:   []float32{0.2, 0.4},
			embedding: []float32{1, 1},
			alpha:     0,
			want:      []float32{0.2, 0.4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UpdateStyleVector(tt.current, tt.embedding, tt.alpha)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !approxEqual(got, tt.want, 1e-6) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpdateStyleVectorColdStartCopies(t *testing.T) {
	emb := []float32{0.5, 0.5}
	got, err := UpdateStyleVector(nil, emb, 0.9)
	if err != nil {
		t.Fatal(err)
	}

	got[0] = 42
	if emb[0] != 0.5 {
		t.Errorf("result must not alias the embedding")
	}
}

func TestUpdateStyleVectorDimensionMismatch(t *testing.T) {
	_, err := UpdateStyleVector([]float32{1, 0}, []float32{1, 0, 0}, 0.3)
	if !errors.Is(err, e.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}

	var dm *e.DimensionMismatchError
	if !errors.As(err, &dm) || dm.Want != 2 || dm.Got != 3 {
		t.Errorf("unexpected mismatch details: %v", err)
	}
}

func TestUpdateStyleVectorInvalidAlpha(t *testing.T) {
	for _, alpha := range []float64{-0.1, 1.1, math.NaN()} {
		if _, err := UpdateStyleVector(nil, []float32{1}, alpha); !errors.Is(err, e.ErrInvalidAlpha) {
			t.Errorf("alpha %v: expected ErrInvalidAlpha, got %v", alpha, err)
		}
	}
}

func TestUpdateStyleVectorBoundedAndDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for n := 0; n < 200; n++ {
		dim := 1 + rng.Intn(16)
		current := make([]float32, dim)
		emb := make([]float32, dim)
		for i := 0; i < dim; i++ {
			current[i] = rng.Float32()*2 - 1
			emb[i] = rng.Float32()*2 - 1
		}
		alpha := rng.Float64()

		first, err := UpdateStyleVector(current, emb, alpha)
		if err != nil {
			t.Fatal(err)
		}
		second, _ := UpdateStyleVector(current, emb, alpha)

		for i := range first {
			lo := math.Min(float64(current[i]), float64(emb[i])) - 1e-6
			hi := math.Max(float64(current[i]), float64(emb[i])) + 1e-6
			if v := float64(first[i]); v < lo || v > hi {
				t.Fatalf("component %d = %v outside [%v, %v]", i, v, lo, hi)
			}
			if first[i] != second[i] {
				t.Fatalf("update is not deterministic at %d", i)
			}
		}
	}
}

func TestFoldStyleVectorMatchesSequentialUpdates(t *testing.T) {
	embs := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

	got, err := FoldStyleVector(embs, 0.3)
	if err != nil {
		t.Fatal(err)
	}

	var want []float32
	for _, emb := range embs {
		want, _ = UpdateStyleVector(want, emb, 0.3)
	}
	if !approxEqual(got, want, 0) {
		t.Errorf("fold %v != sequential %v", got, want)
	}

	empty, err := FoldStyleVector(nil, 0.3)
	if err != nil || empty != nil {
		t.Errorf("empty fold must be nil, got %v (%v)", empty, err)
	}
}

func TestParseUnlikePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    UnlikePolicy
		wantErr bool
	}{
		{in: "", want: UnlikeAppendOnly},
		{in: "append_only", want: UnlikeAppendOnly},
		{in: " Reversible ", want: UnlikeReversible},
		{in: "undo", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseUnlikePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.in, got, tt.want)
		}
	}
}
