package clients

import (
	"context"
	"fmt"

	config "github.com/DRSN-tech/thrift-backend/internal/cfg"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

type QdrantClient struct {
	Client *qdrant.Client
	cfg    *config.QdrantCfg
}

func NewQdrantClient(cfg *config.QdrantCfg) (*QdrantClient, error) {
	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.ApiKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &QdrantClient{
		Client: qdrantClient,
		cfg:    cfg,
	}, nil
}

func (c *QdrantClient) Close() error {
	return c.Client.Close()
}

// EnsureCollections создаёт коллекции объявлений и гардероба с косинусной метрикой.
// Существующая коллекция другой размерности считается ошибкой конфигурации.
func EnsureCollections(ctx context.Context, client *QdrantClient) error {
	for _, name := range []string{client.cfg.ListingsCollection, client.cfg.WardrobeCollection} {
		if err := ensureCollection(ctx, client, name); err != nil {
			return err
		}
	}
	return nil
}

func ensureCollection(ctx context.Context, client *QdrantClient, name string) error {
	exists, err := client.Client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s existence: %w", name, err)
	}

	if !exists {
		if err := client.Client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     client.cfg.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
		return nil
	}

	info, err := client.Client.GetCollectionInfo(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to get collection %s info: %w", name, err)
	}

	size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if size != 0 && size != client.cfg.VectorSize {
		return fmt.Errorf("collection %s: %w", name, e.NewDimensionMismatchError(int(client.cfg.VectorSize), int(size)))
	}

	return nil
}
