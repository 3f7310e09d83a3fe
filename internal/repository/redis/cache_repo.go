package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/DRSN-tech/thrift-backend/internal/cfg"
	"github.com/DRSN-tech/thrift-backend/internal/repository/redis/converter"
	"github.com/DRSN-tech/thrift-backend/internal/usecase"
	"github.com/DRSN-tech/thrift-backend/pkg/clients"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

type CacheRepo struct {
	client *clients.RedisClient
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// GetListings возвращает закэшированные объявления по ID, игнорируя промахи и логируя их
func (c *CacheRepo) GetListings(ctx context.Context, ids []string) (map[string]usecase.ListingInfo, error) {
	keys := buildListingCacheKeys(ids)

	values, err := c.client.Client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warnf("Redis MGET failed: %v", e.Wrap(whereami.WhereAmI(), err))
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	result := make(map[string]usecase.ListingInfo, len(values))
	for i, val := range values {
		data, err := redisValueToBytes(val, keys[i])
		if err != nil {
			c.logger.Warnf("%v", e.Wrap(whereami.WhereAmI(), err))
		}

		if data == nil {
			continue // cache miss
		}

		var model converter.ListingInfoRedisModel
		if err := json.Unmarshal(data, &model); err != nil {
			c.logger.Warnf("Redis unmarshal failed: %v", e.Wrap(whereami.WhereAmI(), err))
			continue
		}

		if model.ID != ids[i] {
			c.logger.Warnf("Cache ID mismatch: key_id: %s, model_id: %s", ids[i], model.ID)
			if err := c.client.Client.Del(context.Background(), keys[i]).Err(); err != nil {
				c.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), err))
			}
			continue // cache miss
		}
		result[ids[i]] = *converter.ListingInfoToUseCase(&model)
	}

	return result, nil
}

// SetListings кэширует несколько объявлений одним pipeline с TTL.
// Ошибки сериализации/записи логируются и не возвращаются.
func (c *CacheRepo) SetListings(ctx context.Context, listings []usecase.ListingInfo) error {
	pipeline := c.client.Client.Pipeline()
	for i := range listings {
		data, err := json.Marshal(converter.ListingInfoToRedisModel(&listings[i]))
		if err != nil {
			c.logger.Warnf("Failed to marshal listing for caching (Listing ID: %s): %v", listings[i].ID, e.Wrap(whereami.WhereAmI(), err))
			continue
		}

		pipeline.Set(ctx, listingKey(listings[i].ID), data, c.cfg.ListingTTL)
	}

	if _, err := pipeline.Exec(ctx); err != nil {
		c.logger.Warnf("Cache pipeline failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}

	return nil
}

// DeleteListings удаляет объявления из кэша по ID
func (c *CacheRepo) DeleteListings(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := c.client.Client.Del(ctx, buildListingCacheKeys(ids)...).Err(); err != nil {
		c.logger.Warnf("Redis DEL failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}

	return nil
}

// GetRecommendations возвращает nil без ошибки при промахе.
func (c *CacheRepo) GetRecommendations(ctx context.Context, userID string, limit int) (*usecase.RecommendationsRes, error) {
	data, err := c.client.Client.HGet(ctx, recsKey(userID), strconv.Itoa(limit)).Bytes()
	if err != nil {
		if errors.Is(err, r.Nil) {
			return nil, nil
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var model converter.RecommendationsRedisModel
	if err := json.Unmarshal(data, &model); err != nil {
		c.logger.Warnf("Redis unmarshal failed: %v", e.Wrap(whereami.WhereAmI(), err))
		return nil, nil
	}

	return converter.RecommendationsToUseCase(&model), nil
}

// SetRecommendations хранит выдачи пользователя в одном hash (поле на каждый limit),
// чтобы инвалидация была одним DEL.
func (c *CacheRepo) SetRecommendations(ctx context.Context, userID string, limit int, res *usecase.RecommendationsRes) error {
	data, err := json.Marshal(converter.RecommendationsToRedisModel(res))
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	key := recsKey(userID)
	pipeline := c.client.Client.TxPipeline()
	pipeline.HSet(ctx, key, strconv.Itoa(limit), data)
	pipeline.Expire(ctx, key, c.cfg.RecsTTL)

	if _, err := pipeline.Exec(ctx); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (c *CacheRepo) InvalidateRecommendations(ctx context.Context, userID string) error {
	if err := c.client.Client.Del(ctx, recsKey(userID)).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	return nil
}

// buildListingCacheKeys формирует Redis-ключи из ID объявлений
func buildListingCacheKeys(ids []string) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = listingKey(id)
	}

	return keys
}

func listingKey(id string) string {
	return "listing:" + id
}

func recsKey(userID string) string {
	return "recs:" + userID
}

// redisValueToBytes конвертирует значение из Redis в []byte.
// Поддерживает string и []byte, возвращает ошибку для неизвестных типов.
func redisValueToBytes(val interface{}, key string) ([]byte, error) {
	switch v := val.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case nil:
		return nil, nil // cache miss
	default:
		return nil, fmt.Errorf("unexpected Redis value type for key %s: %T", key, val)
	}
}
