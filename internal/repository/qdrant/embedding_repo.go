package qdrant

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/thrift-backend/internal/cfg"
	"github.com/DRSN-tech/thrift-backend/internal/domain"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

const (
	payloadKind   = "kind"
	payloadItemID = "item_id"
)

// EmbeddingRepo хранит эмбеддинги объявлений и вещей гардероба в двух коллекциях Qdrant.
// Id точки детерминированно выводится из (kind, id), поэтому повторная запись идемпотентна.
type EmbeddingRepo struct {
	client *qdrant.Client
	cfg    *cfg.QdrantCfg
}

func NewEmbeddingRepo(client *qdrant.Client, cfg *cfg.QdrantCfg) *EmbeddingRepo {
	return &EmbeddingRepo{
		client: client,
		cfg:    cfg,
	}
}

// Get возвращает e.ErrNotFound, если эмбеддинг ещё не сохранён.
func (q *EmbeddingRepo) Get(ctx context.Context, item domain.ItemRef) ([]float32, error) {
	collection, err := q.collectionFor(item.Kind)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(domain.PointID(item).String())},
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if len(points) == 0 {
		return nil, e.ErrNotFound
	}

	vector := pointVector(points[0])
	if len(vector) == 0 {
		return nil, e.ErrNotFound
	}
	return vector, nil
}

// Put сохраняет или перезаписывает эмбеддинг вещи.
func (q *EmbeddingRepo) Put(ctx context.Context, embedding *domain.Embedding) error {
	collection, err := q.collectionFor(embedding.Item.Kind)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := domain.CheckDimension(embedding.Vector, int(q.cfg.VectorSize)); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(domain.PointID(embedding.Item).String()),
			Vectors: qdrant.NewVectors(embedding.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadKind:   string(embedding.Item.Kind),
				payloadItemID: embedding.Item.ID,
			}),
		}},
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// QuerySimilar ищет ближайшие объявления по косинусной близости. Исключения передаются
// в фильтр must_not пачками по ExcludeBatch id.
func (q *EmbeddingRepo) QuerySimilar(ctx context.Context, vector []float32, exclude []string, limit int) ([]domain.ScoredListing, error) {
	if limit <= 0 {
		return nil, nil
	}

	req := &qdrant.QueryPoints{
		CollectionName: q.cfg.ListingsCollection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayloadInclude(payloadItemID),
	}
	if conds := excludeConditions(exclude, q.cfg.ExcludeBatch); len(conds) > 0 {
		req.Filter = &qdrant.Filter{MustNot: conds}
	}

	points, err := q.client.Query(ctx, req)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	result := make([]domain.ScoredListing, 0, len(points))
	for _, p := range points {
		id := p.GetPayload()[payloadItemID].GetStringValue()
		if id == "" {
			continue
		}
		result = append(result, domain.ScoredListing{ListingID: id, Score: float64(p.GetScore())})
	}

	return result, nil
}

func (q *EmbeddingRepo) collectionFor(kind domain.ItemKind) (string, error) {
	switch kind {
	case domain.KindListing:
		return q.cfg.ListingsCollection, nil
	case domain.KindWardrobeItem:
		return q.cfg.WardrobeCollection, nil
	default:
		return "", fmt.Errorf("unknown item kind %q", kind)
	}
}

func excludeConditions(exclude []string, batch int) []*qdrant.Condition {
	if len(exclude) == 0 {
		return nil
	}
	if batch <= 0 {
		batch = len(exclude)
	}

	conds := make([]*qdrant.Condition, 0, (len(exclude)+batch-1)/batch)
	for start := 0; start < len(exclude); start += batch {
		end := min(start+batch, len(exclude))

		ids := make([]*qdrant.PointId, 0, end-start)
		for _, id := range exclude[start:end] {
			ids = append(ids, qdrant.NewIDUUID(domain.PointID(domain.ItemRef{Kind: domain.KindListing, ID: id}).String()))
		}
		conds = append(conds, qdrant.NewHasID(ids...))
	}
	return conds
}

func pointVector(p *qdrant.RetrievedPoint) []float32 {
	v := p.GetVectors().GetVector()
	if dense := v.GetDense().GetData(); len(dense) > 0 {
		return dense
	}
	return v.GetData()
}
