package ml_service

import (
	"context"
	"errors"
	"testing"

	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
)

type stubEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (s *stubEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	s.calls++
	return s.vector, s.err
}

type stubCaptioner struct {
	caption string
	calls   int
}

func (s *stubCaptioner) CaptionImage(context.Context, []byte, string) (string, error) {
	s.calls++
	return s.caption, nil
}

func TestMLServiceEmbedText(t *testing.T) {
	emb := &stubEmbedder{vector: []float32{1, 0, 0}}
	svc := NewMLService(emb, &stubCaptioner{}, 3, testCfg(), newFakeMetrics(), logger.NewNopLogger())

	got, err := svc.EmbedText(context.Background(), "Wool coat, Good, premium price")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("vector = %v", got)
	}
}

func TestMLServiceRejectsWrongDimension(t *testing.T) {
	emb := &stubEmbedder{vector: []float32{1, 0}}
	svc := NewMLService(emb, &stubCaptioner{}, 3, testCfg(), newFakeMetrics(), logger.NewNopLogger())

	_, err := svc.EmbedText(context.Background(), "text")
	if !errors.Is(err, e.ErrProvider) || !errors.Is(err, e.ErrDimensionMismatch) {
		t.Fatalf("err = %v", err)
	}

	var dm *e.DimensionMismatchError
	if !errors.As(err, &dm) || dm.Want != 3 || dm.Got != 2 {
		t.Errorf("mismatch detail = %+v", dm)
	}
	if emb.calls != 1 {
		t.Errorf("wrong dimension must not be retried, calls = %d", emb.calls)
	}
}

func TestMLServiceRejectsEmptyVector(t *testing.T) {
	emb := &stubEmbedder{vector: nil}
	svc := NewMLService(emb, &stubCaptioner{}, 3, testCfg(), newFakeMetrics(), logger.NewNopLogger())

	if _, err := svc.EmbedText(context.Background(), "text"); !errors.Is(err, e.ErrVectorEmbeddingEmpty) {
		t.Fatalf("err = %v", err)
	}
}

func TestMLServiceCaptionImage(t *testing.T) {
	capt := &stubCaptioner{caption: "Footwear: red sneakers"}
	svc := NewMLService(&stubEmbedder{}, capt, 3, testCfg(), newFakeMetrics(), logger.NewNopLogger())

	got, err := svc.CaptionImage(context.Background(), []byte{0xff, 0xd8}, "image/jpeg")
	if err != nil || got != "Footwear: red sneakers" {
		t.Fatalf("got %q, %v", got, err)
	}

	if _, err := svc.CaptionImage(context.Background(), nil, "image/jpeg"); !errors.Is(err, e.ErrProvider) {
		t.Errorf("empty image err = %v", err)
	}
	if capt.calls != 1 {
		t.Errorf("calls = %d, want 1", capt.calls)
	}
	if !svc.Healthy() {
		t.Error("service should be healthy")
	}
}
