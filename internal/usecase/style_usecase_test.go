package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/thrift-backend/internal/domain"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type styleFixture struct {
	uc         *StyleUseCase
	listings   *fakeListingRepo
	likes      *fakePairRepo
	saved      *fakePairRepo
	clothing   *fakeClothingRepo
	styles     *fakeStyleRepo
	contribs   *fakeContribRepo
	embeddings *fakeEmbeddingRepo
	cache      *fakeCache
	embedder   *fakeEmbedder
	captioner  *fakeCaptioner
	images     *fakeImages
	metrics    *fakeMetrics
}

func newStyleFixture(policy domain.UnlikePolicy) *styleFixture {
	f := &styleFixture{
		listings:   newFakeListingRepo(),
		likes:      newFakePairRepo(),
		saved:      newFakePairRepo(),
		clothing:   newFakeClothingRepo(),
		styles:     newFakeStyleRepo(),
		contribs:   newFakeContribRepo(),
		embeddings: newFakeEmbeddingRepo(),
		cache:      newFakeCache(),
		embedder:   &fakeEmbedder{vectors: make(map[string][]float32)},
		captioner:  &fakeCaptioner{},
		images:     newFakeImages(),
		metrics:    newFakeMetrics(),
	}

	f.uc = NewStyleUC(
		f.listings,
		f.likes,
		f.saved,
		f.clothing,
		f.styles,
		f.contribs,
		f.embeddings,
		f.cache,
		f.embedder,
		f.captioner,
		f.images,
		&fakeTxManager{},
		f.metrics,
		nopLog,
		StyleConfig{
			Alpha:            0.3,
			Dimension:        3,
			MaxUpdateRetries: 5,
			RetryBaseBackoff: time.Millisecond,
			UnlikePolicy:     policy,
		},
	)
	return f
}

func (f *styleFixture) embedListing(id string, v []float32) {
	f.embeddings.vectors[domain.ItemRef{Kind: domain.KindListing, ID: id}] = v
}

// like записывает лайк так же, как ListingUseCase, и сразу обрабатывает событие.
func (f *styleFixture) like(t *testing.T, userID, listingID string) {
	t.Helper()
	_, _ = f.likes.Create(context.Background(), userID, listingID)
	if err := f.uc.OnItemLiked(context.Background(), userID, listingID); err != nil {
		t.Fatalf("OnItemLiked(%s): %v", listingID, err)
	}
}

func (f *styleFixture) unlike(t *testing.T, userID, listingID string) {
	t.Helper()
	_, _ = f.likes.Delete(context.Background(), userID, listingID)
	if err := f.uc.OnItemUnliked(context.Background(), userID, listingID); err != nil {
		t.Fatalf("OnItemUnliked(%s): %v", listingID, err)
	}
}

func assertVector(t *testing.T, got, want []float32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("vector = %v, want %v", got, want)
	}
	for i := range got {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Fatalf("vector = %v, want %v", got, want)
		}
	}
}

func TestOnItemLikedColdStart(t *testing.T) {
	f := newStyleFixture(domain.UnlikeAppendOnly)
	f.embedListing("A", []float32{1, 0, 0})

	if err := f.uc.OnItemLiked(context.Background(), "u1", "A"); err != nil {
		t.Fatalf("OnItemLiked: %v", err)
	}

	assertVector(t, f.styles.vector("u1"), []float32{1, 0, 0})
	if len(f.cache.invalidated) != 1 {
		t.Errorf("expected recommendations cache invalidation")
	}
}

func TestOnItemLikedBlendsWithAlpha(t *testing.T) {
	f := newStyleFixture(domain.UnlikeAppendOnly)
	f.styles.set("u1", []float32{1, 0, 0})
	f.embedListing("B", []float32{0, 1, 0})

	if err := f.uc.OnItemLiked(context.Background(), "u1", "B"); err != nil {
		t.Fatalf("OnItemLiked: %v", err)
	}

	assertVector(t, f.styles.vector("u1"), []float32{0.7, 0.3, 0})
}

func TestOnItemLikedEmbedsMissingListing(t *testing.T) {
	f := newStyleFixture(domain.UnlikeAppendOnly)
	f.listings.listings["A"] = domain.NewListing("A", "Wool coat", "Good",
		decimal.NewNullDecimal(decimal.NewFromInt(120)), "USD", "img", domain.PlatformEtsy, "https://etsy.example/A")
	f.embedder.vectors["Wool coat, Good, premium price"] = []float32{0, 0, 1}

	if err := f.uc.OnItemLiked(context.Background(), "u1", "A"); err != nil {
		t.Fatalf("OnItemLiked: %v", err)
	}

	if _, ok := f.embeddings.vectors[domain.ItemRef{Kind: domain.KindListing, ID: "A"}]; !ok {
		t.Error("embedding was not stored")
	}
	if !f.listings.embedded["A"] {
		t.Error("listing was not marked as embedded")
	}
	assertVector(t, f.styles.vector("u1"), []float32{0, 0, 1})

	if err := f.uc.OnItemLiked(context.Background(), "u2", "A"); err != nil {
		t.Fatalf("second user like: %v", err)
	}
	if len(f.embedder.texts) != 1 {
		t.Errorf("embedding must be reused across users, embedder called %d times", len(f.embedder.texts))
	}
}

func TestOnItemLikedProviderFailureKeepsState(t *testing.T) {
	f := newStyleFixture(domain.UnlikeAppendOnly)
	f.listings.listings["A"] = domain.NewListing("A", "Tee", "", decimal.NullDecimal{}, "USD", "img", domain.PlatformDepop, "u")
	f.embedder.err = e.Provider("embed", errors.New("503"))

	err := f.uc.OnItemLiked(context.Background(), "u1", "A")
	if !errors.Is(err, e.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}

	if f.styles.vector("u1") != nil {
		t.Error("style vector must not change on provider failure")
	}
	if len(f.embeddings.vectors) != 0 {
		t.Error("nothing must be stored on provider failure")
	}
	if _, err := f.contribs.Get(context.Background(), "u1", domain.ItemRef{Kind: domain.KindListing, ID: "A"}); !errors.Is(err, e.ErrNotFound) {
		t.Error("contribution must not be recorded on provider failure")
	}
}

func TestOnItemLikedWrongProviderDimension(t *testing.T) {
	f := newStyleFixture(domain.UnlikeAppendOnly)
	f.listings.listings["A"] = domain.NewListing("A", "Tee", "", decimal.NullDecimal{}, "USD", "img", domain.PlatformDepop, "u")
	f.embedder.vectors["Tee, unknown condition, unknown price"] = []float32{1, 0}

	err := f.uc.OnItemLiked(context.Background(), "u1", "A")
	if !errors.Is(err, e.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if len(f.embeddings.vectors) != 0 {
		t.Error("embedding of wrong dimension must not be stored")
	}
}

func TestOnItemLikedIsIdempotent(t *testing.T) {
	f := newStyleFixture(domain.UnlikeAppendOnly)
	f.styles.set("u1", []float32{1, 0, 0})
	f.embedListing("B", []float32{0, 1, 0})

	for i := 0; i < 3; i++ {
		if err := f.uc.OnItemLiked(context.Background(), "u1", "B"); err != nil {
			t.Fatalf("like %d: %v", i, err)
		}
	}

	assertVector(t, f.styles.vector("u1"), []float32{0.7, 0.3, 0})
	if f.metrics.styles[styleOutcomeSkipped] != 2 {
		t.Errorf("expected 2 skipped updates, got %v", f.metrics.styles)
	}
}

func TestOnItemLikedDimensionMismatchIsFatal(t *testing.T) {
	f := newStyleFixture(domain.UnlikeAppendOnly)
	f.styles.set("u1", []float32{1, 0})
	f.embedListing("A", []float32{0, 1, 0})

	err := f.uc.OnItemLiked(context.Background(), "u1", "A")
	if !errors.Is(err, e.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
	if f.styles.casCalls != 0 {
		t.Errorf("mismatch must abort before writing, got %d writes", f.styles.casCalls)
	}
}

func TestOnItemLikedRetriesVersionConflicts(t *testing.T) {
	f := newStyleFixture(domain.UnlikeAppendOnly)
	f.embedListing("A", []float32{1, 0, 0})
	f.styles.conflicts = 2

	if err := f.uc.OnItemLiked(context.Background(), "u1", "A"); err != nil {
		t.Fatalf("OnItemLiked: %v", err)
	}

	assertVector(t, f.styles.vector("u1"), []float32{1, 0, 0})
	if f.metrics.conflicts != 2 {
		t.Errorf("conflicts = %d, want 2", f.metrics.conflicts)
	}
}

func TestOnItemLikedGivesUpAfterMaxRetries(t *testing.T) {
	f := newStyleFixture(domain.UnlikeAppendOnly)
	f.embedListing("A", []float32{1, 0, 0})
	f.styles.conflicts = 100

	err := f.uc.OnItemLiked(context.Background(), "u1", "A")
	if !errors.Is(err, e.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	if f.styles.casCalls != 5 {
		t.Errorf("cas calls = %d, want 5", f.styles.casCalls)
	}
}

func TestUnlikeAppendOnly(t *testing.T) {
	f := newStyleFixture(domain.UnlikeAppendOnly)
	f.embedListing("A", []float32{1, 0, 0})
	f.embedListing("B", []float32{0, 1, 0})
	ctx := context.Background()

	for _, id := range []string{"A", "B"} {
		if err := f.uc.OnItemLiked(ctx, "u1", id); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.uc.OnItemUnliked(ctx, "u1", "B"); err != nil {
		t.Fatal(err)
	}
	assertVector(t, f.styles.vector("u1"), []float32{0.7, 0.3, 0})

	// повторный лайк после снятия не учитывается второй раз
	if err := f.uc.OnItemLiked(ctx, "u1", "B"); err != nil {
		t.Fatal(err)
	}
	assertVector(t, f.styles.vector("u1"), []float32{0.7, 0.3, 0})
}

func TestUnlikeReversible(t *testing.T) {
	f := newStyleFixture(domain.UnlikeReversible)
	f.embedListing("A", []float32{1, 0, 0})
	f.embedListing("B", []float32{0, 1, 0})

	f.like(t, "u1", "A")
	f.like(t, "u1", "B")

	f.unlike(t, "u1", "B")
	assertVector(t, f.styles.vector("u1"), []float32{1, 0, 0})

	f.unlike(t, "u1", "A")
	if v := f.styles.vector("u1"); v != nil {
		t.Fatalf("vector must be cleared after last unlike, got %v", v)
	}

	f.like(t, "u1", "B")
	assertVector(t, f.styles.vector("u1"), []float32{0, 1, 0})

	f.unlike(t, "u1", "A")
	assertVector(t, f.styles.vector("u1"), []float32{0, 1, 0})
}

func TestUnlikeReversibleSkipsLikeAppliedAfterUnlike(t *testing.T) {
	f := newStyleFixture(domain.UnlikeReversible)
	f.embedListing("A", []float32{1, 0, 0})
	f.embedListing("B", []float32{0, 1, 0})
	ctx := context.Background()

	f.like(t, "u1", "A")

	// лайк B отложен в outbox, снятие лайка обработано раньше него
	_, _ = f.likes.Create(ctx, "u1", "B")
	f.unlike(t, "u1", "B")

	if err := f.uc.OnItemLiked(ctx, "u1", "B"); err != nil {
		t.Fatalf("deferred OnItemLiked: %v", err)
	}
	assertVector(t, f.styles.vector("u1"), []float32{1, 0, 0})

	if err := f.uc.RebuildStyleVector(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	assertVector(t, f.styles.vector("u1"), []float32{1, 0, 0})
}

func TestUnlikeReversibleKeepsSavedListing(t *testing.T) {
	f := newStyleFixture(domain.UnlikeReversible)
	f.embedListing("A", []float32{1, 0, 0})
	ctx := context.Background()

	_, _ = f.saved.Create(ctx, "u1", "A")
	if err := f.uc.OnItemSaved(ctx, "u1", "A"); err != nil {
		t.Fatal(err)
	}
	assertVector(t, f.styles.vector("u1"), []float32{1, 0, 0})
}

func TestRebuildStyleVectorReplaysInCommitOrder(t *testing.T) {
	f := newStyleFixture(domain.UnlikeReversible)
	f.embedListing("A", []float32{1, 0, 0})
	f.embedListing("B", []float32{0, 1, 0})
	f.embedListing("C", []float32{0, 0, 1})
	ctx := context.Background()

	for _, id := range []string{"A", "B", "C"} {
		f.like(t, "u1", id)
	}
	before := f.styles.vector("u1")

	if err := f.uc.RebuildStyleVector(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	assertVector(t, f.styles.vector("u1"), before)
}

func TestConcurrentLikesMatchSequentialCommitOrder(t *testing.T) {
	f := newStyleFixture(domain.UnlikeAppendOnly)
	ids := []string{"A", "B", "C", "D"}
	vectors := map[string][]float32{
		"A": {1, 0, 0},
		"B": {0, 1, 0},
		"C": {0, 0, 1},
		"D": {0.5, 0.5, 0},
	}
	for id, v := range vectors {
		f.embedListing(id, v)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.uc.OnItemLiked(context.Background(), "u1", id); err != nil {
				t.Errorf("like %s: %v", id, err)
			}
		}()
	}
	wg.Wait()

	active, _ := f.contribs.ListActive(context.Background(), "u1")
	if len(active) != len(ids) {
		t.Fatalf("expected %d contributions, got %d", len(ids), len(active))
	}

	var ordered [][]float32
	for _, c := range active {
		ordered = append(ordered, vectors[c.Item.ID])
	}
	want, err := domain.FoldStyleVector(ordered, 0.3)
	if err != nil {
		t.Fatal(err)
	}
	assertVector(t, f.styles.vector("u1"), want)
}

func TestOnItemUploaded(t *testing.T) {
	f := newStyleFixture(domain.UnlikeAppendOnly)
	item := domain.NewClothingItem(uuid.New(), "u1", "wardrobe/photo.jpg")
	f.clothing.items[item.ID] = item
	f.images.stored[item.ImageKey] = []byte{0xff, 0xd8}
	f.captioner.text = "Footwear: red sneakers with white soles"
	f.embedder.vectors["red sneakers with white soles"] = []float32{0, 0, 1}

	if err := f.uc.OnItemUploaded(context.Background(), "u1", item.ID, nil, ""); err != nil {
		t.Fatalf("OnItemUploaded: %v", err)
	}

	if len(f.images.downloaded) != 1 {
		t.Errorf("image must be downloaded when bytes are not provided")
	}
	if f.captioner.gotMime != "image/jpeg" {
		t.Errorf("captioner mime = %q", f.captioner.gotMime)
	}
	if item.Type != domain.TypeFootwear || item.Description != "red sneakers with white soles" {
		t.Errorf("caption not stored: %+v", item)
	}
	if item.EmbeddedAt == nil {
		t.Error("item must be marked embedded")
	}
	if _, ok := f.embeddings.vectors[item.Ref()]; !ok {
		t.Error("wardrobe embedding not stored")
	}
	assertVector(t, f.styles.vector("u1"), []float32{0, 0, 1})
}

func TestOnItemUploadedRejectsForeignItem(t *testing.T) {
	f := newStyleFixture(domain.UnlikeAppendOnly)
	item := domain.NewClothingItem(uuid.New(), "owner", "k")
	f.clothing.items[item.ID] = item

	err := f.uc.OnItemUploaded(context.Background(), "intruder", item.ID, []byte{1}, "image/png")
	if !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
