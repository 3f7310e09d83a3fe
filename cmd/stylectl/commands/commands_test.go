package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/DRSN-tech/thrift-backend/internal/domain"
)

type fakeListings struct {
	unembedded []string
	marked     []string
	queries    int
}

func (f *fakeListings) ListUnembedded(_ context.Context, limit int) ([]*domain.Listing, error) {
	f.queries++
	var out []*domain.Listing
	for _, id := range f.unembedded {
		if len(out) == limit {
			break
		}
		out = append(out, &domain.Listing{ID: id})
	}
	return out, nil
}

func (f *fakeListings) MarkEmbedded(_ context.Context, id string) error {
	f.marked = append(f.marked, id)
	for i, u := range f.unembedded {
		if u == id {
			f.unembedded = append(f.unembedded[:i], f.unembedded[i+1:]...)
			break
		}
	}
	return nil
}

type fakeEmbedder struct {
	failFor map[string]bool
}

func (f *fakeEmbedder) EnsureListingEmbedding(_ context.Context, id string) ([]float32, error) {
	if f.failFor[id] {
		return nil, errors.New("provider unavailable")
	}
	return []float32{1, 0}, nil
}

func TestBackfillEmbedsAllAndSkipsFailures(t *testing.T) {
	listings := &fakeListings{unembedded: []string{"a", "b", "c", "d", "e"}}
	emb := &fakeEmbedder{failFor: map[string]bool{"b": true}}

	steps := 0
	res, err := backfill(context.Background(), listings, emb, 2, 0, func() { steps++ })
	if err != nil {
		t.Fatal(err)
	}

	if res.Embedded != 4 || len(res.Failed) != 1 {
		t.Fatalf("embedded = %d, failed = %v", res.Embedded, res.Failed)
	}
	if _, ok := res.Failed["b"]; !ok {
		t.Errorf("failed = %v, want b", res.Failed)
	}
	if steps != 5 {
		t.Errorf("progress steps = %d, want 5", steps)
	}
	if len(listings.unembedded) != 1 || listings.unembedded[0] != "b" {
		t.Errorf("left unembedded = %v", listings.unembedded)
	}
}

func TestBackfillRespectsLimit(t *testing.T) {
	listings := &fakeListings{unembedded: []string{"a", "b", "c", "d"}}

	res, err := backfill(context.Background(), listings, &fakeEmbedder{}, 10, 3, func() {})
	if err != nil {
		t.Fatal(err)
	}
	if res.Embedded != 3 || len(listings.marked) != 3 {
		t.Errorf("embedded = %d, marked = %v", res.Embedded, listings.marked)
	}
}

func TestBackfillStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := backfill(ctx, &fakeListings{unembedded: []string{"a"}}, &fakeEmbedder{}, 10, 0, func() {})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

type fakeRebuilder struct {
	failFor map[string]bool
	calls   []string
}

func (f *fakeRebuilder) RebuildStyleVector(_ context.Context, userID string) error {
	f.calls = append(f.calls, userID)
	if f.failFor[userID] {
		return errors.New("version conflict")
	}
	return nil
}

func TestRebuildReportsEveryUser(t *testing.T) {
	style := &fakeRebuilder{failFor: map[string]bool{"u2": true}}

	reported := map[string]error{}
	failed := rebuild(context.Background(), style, []string{"u1", "u2", "u3"}, func(id string, err error) {
		reported[id] = err
	})

	if failed != 1 || len(style.calls) != 3 {
		t.Errorf("failed = %d, calls = %v", failed, style.calls)
	}
	if reported["u1"] != nil || reported["u2"] == nil {
		t.Errorf("reported = %v", reported)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"backfill-embeddings", "rebuild-style"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %s not found: %v", name, err)
		}
	}
}
