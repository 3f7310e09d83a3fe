package usecase

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/DRSN-tech/thrift-backend/internal/domain"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
	"github.com/google/uuid"
)

var nopLog = logger.NewNopLogger()

type fakeTxManager struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	f.calls++
	err := f.err
	f.mu.Unlock()

	if err != nil {
		return err
	}
	return fn(ctx)
}

type fakeStyleRepo struct {
	mu        sync.Mutex
	vectors   map[string]*domain.StyleVector
	conflicts int
	casCalls  int
	getErr    error
}

func newFakeStyleRepo() *fakeStyleRepo {
	return &fakeStyleRepo{vectors: make(map[string]*domain.StyleVector)}
}

func (f *fakeStyleRepo) Get(_ context.Context, userID string) (*domain.StyleVector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}
	sv, ok := f.vectors[userID]
	if !ok {
		return nil, e.ErrNotFound
	}
	cp := *sv
	cp.Vector = append([]float32(nil), sv.Vector...)
	return &cp, nil
}

func (f *fakeStyleRepo) CompareAndSwap(_ context.Context, userID string, vector []float32, expected int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.casCalls++
	if f.conflicts > 0 {
		f.conflicts--
		return 0, e.ErrVersionConflict
	}

	var version int64
	if sv, ok := f.vectors[userID]; ok {
		version = sv.Version
	}
	if version != expected {
		return 0, e.ErrVersionConflict
	}

	f.vectors[userID] = &domain.StyleVector{
		UserID:  userID,
		Vector:  append([]float32(nil), vector...),
		Version: version + 1,
	}
	return version + 1, nil
}

func (f *fakeStyleRepo) Delete(_ context.Context, userID string, expected int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sv, ok := f.vectors[userID]
	if !ok || sv.Version != expected {
		return e.ErrVersionConflict
	}
	f.vectors[userID] = &domain.StyleVector{UserID: userID, Version: sv.Version + 1}
	return nil
}

func (f *fakeStyleRepo) set(userID string, vector []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var version int64
	if sv, ok := f.vectors[userID]; ok {
		version = sv.Version
	}
	f.vectors[userID] = &domain.StyleVector{UserID: userID, Vector: vector, Version: version + 1}
}

func (f *fakeStyleRepo) vector(userID string) []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if sv, ok := f.vectors[userID]; ok {
		return sv.Vector
	}
	return nil
}

type fakeContribRepo struct {
	mu      sync.Mutex
	records map[string]*domain.StyleContribution
}

func newFakeContribRepo() *fakeContribRepo {
	return &fakeContribRepo{records: make(map[string]*domain.StyleContribution)}
}

func contribKey(userID string, item domain.ItemRef) string {
	return userID + "|" + item.String()
}

func (f *fakeContribRepo) Get(_ context.Context, userID string, item domain.ItemRef) (*domain.StyleContribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.records[contribKey(userID, item)]
	if !ok {
		return nil, e.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeContribRepo) Upsert(_ context.Context, c *domain.StyleContribution) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := *c
	f.records[contribKey(c.UserID, c.Item)] = &cp
	return nil
}

func (f *fakeContribRepo) Deactivate(_ context.Context, userID string, item domain.ItemRef) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.records[contribKey(userID, item)]
	if !ok || !c.Active {
		return false, nil
	}
	c.Active = false
	return true, nil
}

func (f *fakeContribRepo) ListActive(_ context.Context, userID string) ([]*domain.StyleContribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*domain.StyleContribution
	for _, c := range f.records {
		if c.UserID == userID && c.Active {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

type fakeEmbeddingRepo struct {
	mu          sync.Mutex
	vectors     map[domain.ItemRef][]float32
	similar     []domain.ScoredListing
	queryErr    error
	lastExclude []string
	queries     int
}

func newFakeEmbeddingRepo() *fakeEmbeddingRepo {
	return &fakeEmbeddingRepo{vectors: make(map[domain.ItemRef][]float32)}
}

func (f *fakeEmbeddingRepo) Get(_ context.Context, item domain.ItemRef) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.vectors[item]
	if !ok {
		return nil, e.ErrNotFound
	}
	return append([]float32(nil), v...), nil
}

func (f *fakeEmbeddingRepo) Put(_ context.Context, emb *domain.Embedding) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.vectors[emb.Item] = append([]float32(nil), emb.Vector...)
	return nil
}

func (f *fakeEmbeddingRepo) QuerySimilar(_ context.Context, _ []float32, exclude []string, limit int) ([]domain.ScoredListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries++
	f.lastExclude = exclude
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	// хранилище отдаёт top-K, уже упорядоченный по близости
	out := append([]domain.ScoredListing(nil), f.similar...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit+len(exclude) {
		out = out[:limit+len(exclude)]
	}
	return out, nil
}

type fakeListingRepo struct {
	mu         sync.Mutex
	listings   map[string]*domain.Listing
	upserts    int
	embedded   map[string]bool
	mostSaved  []string
	mostRecent []string
}

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{
		listings: make(map[string]*domain.Listing),
		embedded: make(map[string]bool),
	}
}

func (f *fakeListingRepo) Upsert(_ context.Context, l *domain.Listing) (*domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.upserts++
	if existing, ok := f.listings[l.ID]; ok {
		return existing, nil
	}
	f.listings[l.ID] = l
	return l, nil
}

func (f *fakeListingRepo) GetByID(_ context.Context, id string) (*domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.listings[id]
	if !ok {
		return nil, e.ErrListingNotFound
	}
	return l, nil
}

func (f *fakeListingRepo) GetListingsInfo(_ context.Context, ids []string) ([]ListingInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []ListingInfo
	for _, id := range ids {
		if l, ok := f.listings[id]; ok {
			out = append(out, NewListingInfo(l))
		}
	}
	return out, nil
}

func (f *fakeListingRepo) MarkEmbedded(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.embedded[id] = true
	return nil
}

func (f *fakeListingRepo) ListUnembedded(_ context.Context, limit int) ([]*domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*domain.Listing
	for id, l := range f.listings {
		if !f.embedded[id] && len(out) < limit {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeListingRepo) MostSaved(_ context.Context, exclude []string, limit int) ([]string, error) {
	return pickExcluding(f.mostSaved, exclude, limit), nil
}

func (f *fakeListingRepo) MostRecent(_ context.Context, exclude []string, limit int) ([]string, error) {
	return pickExcluding(f.mostRecent, exclude, limit), nil
}

func pickExcluding(ids, exclude []string, limit int) []string {
	skip := toSet(exclude)
	var out []string
	for _, id := range ids {
		if _, ok := skip[id]; ok {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, id)
	}
	return out
}

type fakePairRepo struct {
	mu    sync.Mutex
	pairs map[string]map[string]bool
}

func newFakePairRepo() *fakePairRepo {
	return &fakePairRepo{pairs: make(map[string]map[string]bool)}
}

func (f *fakePairRepo) Create(_ context.Context, userID, listingID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pairs[userID] == nil {
		f.pairs[userID] = make(map[string]bool)
	}
	if f.pairs[userID][listingID] {
		return false, nil
	}
	f.pairs[userID][listingID] = true
	return true, nil
}

func (f *fakePairRepo) Delete(_ context.Context, userID, listingID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.pairs[userID][listingID] {
		return false, nil
	}
	delete(f.pairs[userID], listingID)
	return true, nil
}

func (f *fakePairRepo) Exists(_ context.Context, userID, listingID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.pairs[userID][listingID], nil
}

func (f *fakePairRepo) ListListingIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for id := range f.pairs[userID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

type fakeClothingRepo struct {
	mu       sync.Mutex
	items    map[uuid.UUID]*domain.ClothingItem
	createFn func(item *domain.ClothingItem) error
}

func newFakeClothingRepo() *fakeClothingRepo {
	return &fakeClothingRepo{items: make(map[uuid.UUID]*domain.ClothingItem)}
}

func (f *fakeClothingRepo) Create(_ context.Context, item *domain.ClothingItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createFn != nil {
		if err := f.createFn(item); err != nil {
			return err
		}
	}
	f.items[item.ID] = item
	return nil
}

func (f *fakeClothingRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ClothingItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	it, ok := f.items[id]
	if !ok {
		return nil, e.ErrNotFound
	}
	return it, nil
}

func (f *fakeClothingRepo) UpdateCaption(_ context.Context, id uuid.UUID, caption domain.Caption) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	it, ok := f.items[id]
	if !ok {
		return e.ErrNotFound
	}
	it.Type = caption.Type
	it.Description = caption.Description
	return nil
}

func (f *fakeClothingRepo) MarkEmbedded(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if it, ok := f.items[id]; ok {
		now := time.Now()
		it.EmbeddedAt = &now
	}
	return nil
}

func (f *fakeClothingRepo) ListByUser(_ context.Context, userID string) ([]*domain.ClothingItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*domain.ClothingItem
	for _, it := range f.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, nil
}

type fakeWardrobeRepo struct {
	wardrobes map[string]*domain.Wardrobe
}

func (f *fakeWardrobeRepo) GetOrCreate(_ context.Context, userID string) (*domain.Wardrobe, error) {
	if f.wardrobes == nil {
		f.wardrobes = make(map[string]*domain.Wardrobe)
	}
	if w, ok := f.wardrobes[userID]; ok {
		return w, nil
	}
	w := &domain.Wardrobe{ID: uuid.New(), UserID: userID}
	f.wardrobes[userID] = w
	return w, nil
}

type fakeCache struct {
	mu            sync.Mutex
	listings      map[string]ListingInfo
	recs          map[string]*RecommendationsRes
	invalidated   []string
	deleted       []string
	setRecsCalled chan struct{}
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		listings: make(map[string]ListingInfo),
		recs:     make(map[string]*RecommendationsRes),
	}
}

func (f *fakeCache) GetListings(_ context.Context, ids []string) (map[string]ListingInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]ListingInfo)
	for _, id := range ids {
		if l, ok := f.listings[id]; ok {
			out[id] = l
		}
	}
	return out, nil
}

func (f *fakeCache) SetListings(_ context.Context, listings []ListingInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, l := range listings {
		f.listings[l.ID] = l
	}
	return nil
}

func (f *fakeCache) DeleteListings(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, ids...)
	for _, id := range ids {
		delete(f.listings, id)
	}
	return nil
}

func recsKey(userID string, limit int) string {
	return userID + "|" + strconv.Itoa(limit)
}

func (f *fakeCache) GetRecommendations(_ context.Context, userID string, limit int) (*RecommendationsRes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.recs[recsKey(userID, limit)], nil
}

func (f *fakeCache) SetRecommendations(_ context.Context, userID string, limit int, res *RecommendationsRes) error {
	f.mu.Lock()
	f.recs[recsKey(userID, limit)] = res
	ch := f.setRecsCalled
	f.mu.Unlock()

	if ch != nil {
		ch <- struct{}{}
	}
	return nil
}

func (f *fakeCache) InvalidateRecommendations(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.invalidated = append(f.invalidated, userID)
	return nil
}

type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	texts   []string
}

func (f *fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.vectors[text]
	if !ok {
		return nil, e.Provider("embed", errors.New("no vector for text"))
	}
	return v, nil
}

type fakeCaptioner struct {
	text     string
	err      error
	gotImage []byte
	gotMime  string
}

func (f *fakeCaptioner) CaptionImage(_ context.Context, image []byte, mimeType string) (string, error) {
	f.gotImage = image
	f.gotMime = mimeType
	return f.text, f.err
}

type fakeImages struct {
	mu         sync.Mutex
	stored     map[string][]byte
	cleaned    []string
	uploadErr  error
	downloaded []string
}

func newFakeImages() *fakeImages {
	return &fakeImages{stored: make(map[string][]byte)}
}

func (f *fakeImages) UploadImages(_ context.Context, req *UploadImagesReq) (*UploadImagesRes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	var keys []string
	for _, img := range req.Images {
		key := req.Prefix + "/" + uuid.NewString()
		f.stored[key] = img.Data
		keys = append(keys, key)
	}
	return NewUploadImagesRes(keys), nil
}

func (f *fakeImages) CleanupImages(keys []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cleaned = append(f.cleaned, keys...)
	for _, k := range keys {
		delete(f.stored, k)
	}
}

func (f *fakeImages) DownloadImage(_ context.Context, key string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.downloaded = append(f.downloaded, key)
	data, ok := f.stored[key]
	if !ok {
		return nil, "", e.ErrNotFound
	}
	return data, "image/jpeg", nil
}

func (f *fakeImages) PresignedURL(_ context.Context, key string) (string, error) {
	return "https://minio.local/" + key, nil
}

type rescheduled struct {
	eventID     uuid.UUID
	attempts    int
	availableAt time.Time
}

type fakeOutbox struct {
	mu          sync.Mutex
	created     []*OutboxEvent
	rescheduled []rescheduled
	failed      []uuid.UUID
}

func (f *fakeOutbox) Create(_ context.Context, ev *OutboxEvent) (*OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ev.ID = int64(len(f.created) + 1)
	f.created = append(f.created, ev)
	return ev, nil
}

func (f *fakeOutbox) GetAndMarkAsProcessing(context.Context, int) ([]*OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutbox) MarkAsProcessed(context.Context, int64) error { return nil }

func (f *fakeOutbox) Reschedule(_ context.Context, eventID uuid.UUID, attempts int, availableAt time.Time, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rescheduled = append(f.rescheduled, rescheduled{eventID: eventID, attempts: attempts, availableAt: availableAt})
	return nil
}

func (f *fakeOutbox) MarkAsFailed(_ context.Context, eventID uuid.UUID, _ int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failed = append(f.failed, eventID)
	return nil
}

func (f *fakeOutbox) ReleaseStale(context.Context, time.Duration) (int64, error) { return 0, nil }

type fakeMetrics struct {
	mu        sync.Mutex
	styles    map[string]int
	ingest    map[string]int
	conflicts int
	sources   map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		styles:  make(map[string]int),
		ingest:  make(map[string]int),
		sources: make(map[string]int),
	}
}

func (f *fakeMetrics) IngestionOutcome(eventType, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingest[eventType+"/"+outcome]++
}

func (f *fakeMetrics) StyleUpdate(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.styles[outcome]++
}

func (f *fakeMetrics) VersionConflict() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflicts++
}

func (f *fakeMetrics) RecommendationServed(source string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources[source]++
}
