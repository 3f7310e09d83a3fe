package app

import (
	"context"
	"time"

	config "github.com/DRSN-tech/thrift-backend/internal/cfg"
	"github.com/DRSN-tech/thrift-backend/internal/infrastructure/idefics"
	minioInfra "github.com/DRSN-tech/thrift-backend/internal/infrastructure/minio"
	ml_service "github.com/DRSN-tech/thrift-backend/internal/infrastructure/ml-service"
	"github.com/DRSN-tech/thrift-backend/internal/infrastructure/openai"
	"github.com/DRSN-tech/thrift-backend/internal/metrics"
	s3Repo "github.com/DRSN-tech/thrift-backend/internal/repository/minio"
	"github.com/DRSN-tech/thrift-backend/internal/repository/pgdb"
	qdrantRepo "github.com/DRSN-tech/thrift-backend/internal/repository/qdrant"
	"github.com/DRSN-tech/thrift-backend/internal/repository/redis"
	"github.com/DRSN-tech/thrift-backend/internal/usecase"
	"github.com/DRSN-tech/thrift-backend/pkg/clients"
	"github.com/DRSN-tech/thrift-backend/pkg/closer"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
	"github.com/DRSN-tech/thrift-backend/pkg/postgres"
	"github.com/DRSN-tech/thrift-backend/pkg/tr"
	"github.com/jimlawless/whereami"
)

const (
	initTimeout           = 10 * time.Second
	cleanupWaitTimeout    = 5 * time.Second
	shutdownForcedTimeout = 2 * time.Second
)

// Core — хранилища, провайдеры и usecase'ы. Общая часть сервиса и stylectl.
type Core struct {
	Cfg     *config.Config
	Logger  logger.Logger
	Closer  *closer.Closer
	Metrics *metrics.Metrics

	DB          *postgres.PgDatabase
	Qdrant      *clients.QdrantClient
	Redis       *clients.RedisClient
	ImagesInfra *minioInfra.MinioInfrastructure
	ML          *ml_service.MLService

	ListingRepo *pgdb.ListingRepo
	OutboxRepo  *pgdb.OutboxEventRepo

	ListingUC   *usecase.ListingUseCase
	WardrobeUC  *usecase.WardrobeUseCase
	StyleUC     *usecase.StyleUseCase
	RecsUC      *usecase.RecommendationUseCase
	IngestionUC *usecase.IngestionUseCase
}

// NewCore поднимает подключения и собирает usecase'ы. При ошибке уже открытые ресурсы закрываются.
func NewCore(cfg *config.Config, log logger.Logger) (_ *Core, err error) {
	c := &Core{
		Cfg:     cfg,
		Logger:  log,
		Closer:  closer.NewCloser(shutdownForcedTimeout),
		Metrics: metrics.New(),
	}
	defer func() {
		if err != nil {
			ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
			defer cancel()
			if cerr := c.Closer.Close(ctx); cerr != nil {
				log.Warnf("partial init cleanup: %v", cerr)
			}
		}
	}()

	if err := c.initStorage(); err != nil {
		return nil, err
	}
	if err := c.initUsecases(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Core) initStorage() error {
	db, err := initPGDB(c.Logger, c.Cfg)
	if err != nil {
		return err
	}
	c.DB = db
	c.Closer.AddSimple("postgres", db.Close)

	qdrantClient, err := clients.NewQdrantClient(c.Cfg.Qdrant)
	if err != nil {
		return e.Wrap("failed to initialize qdrant", err)
	}
	c.Qdrant = qdrantClient
	c.Closer.Add("qdrant", func(context.Context) error { return qdrantClient.Close() })

	qdrantCtx, qdrantCancel := context.WithTimeout(context.Background(), initTimeout)
	defer qdrantCancel()
	if err := clients.EnsureCollections(qdrantCtx, qdrantClient); err != nil {
		return e.Wrap("failed to initialize qdrant collections", err)
	}

	redisClient := clients.NewRedisClient(c.Cfg.Redis)
	c.Redis = redisClient
	c.Closer.Add("redis", func(context.Context) error { return redisClient.Close() })

	redisCtx, redisCancel := context.WithTimeout(context.Background(), initTimeout)
	defer redisCancel()
	if err := redisClient.Ping(redisCtx); err != nil {
		return e.Wrap("failed to connect to redis", err)
	}

	minioClient, err := clients.NewMinIOClient(c.Cfg)
	if err != nil {
		return e.Wrap("failed to initialize minio client", err)
	}

	minioCtx, minioCancel := context.WithTimeout(context.Background(), initTimeout)
	defer minioCancel()
	if err := clients.EnsureBucket(minioCtx, minioClient, c.Cfg.Minio.BucketName); err != nil {
		return e.Wrap("failed to initialize MinIO bucket", err)
	}

	// фоновая очистка MinIO живёт до остановки сервиса
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	c.ImagesInfra = minioInfra.NewMinioInfrastructure(s3Repo.NewImageRepo(minioClient, c.Cfg.Minio), c.Cfg.Minio, c.Logger, cleanupCtx)
	c.Closer.Add("minio cleanup", func(ctx context.Context) error {
		defer cleanupCancel()
		waitCtx, cancel := context.WithTimeout(ctx, cleanupWaitTimeout)
		defer cancel()
		if err := c.ImagesInfra.WaitForCleanup(waitCtx); err != nil {
			c.Logger.Warnf("MinIO cleanup did not finish before shutdown, some temporary objects may remain")
			return err
		}
		return nil
	})

	return nil
}

func (c *Core) initUsecases() error {
	embedder, captioner, err := newProviders(c.Cfg)
	if err != nil {
		return err
	}
	dimension := int(c.Cfg.Qdrant.VectorSize)
	c.ML = ml_service.NewMLService(embedder, captioner, dimension, c.Cfg.Ml, c.Metrics, c.Logger)

	pool := c.DB.Pool
	txManager := tr.NewManager(pool)

	c.ListingRepo = pgdb.NewListingRepo(pool)
	c.OutboxRepo = pgdb.NewOutboxEventRepo(pool)
	likeRepo := pgdb.NewLikeRepo(pool)
	savedRepo := pgdb.NewSavedRepo(pool)
	wardrobeRepo := pgdb.NewWardrobeRepo(pool)
	clothingRepo := pgdb.NewClothingItemRepo(pool)
	styleRepo := pgdb.NewStyleVectorRepo(pool)
	contribRepo := pgdb.NewContributionRepo(pool)
	embRepo := qdrantRepo.NewEmbeddingRepo(c.Qdrant.Client, c.Cfg.Qdrant)
	cacheRepo := redis.NewCacheRepo(c.Redis, c.Cfg.Redis, c.Logger)

	c.ListingUC = usecase.NewListingUC(c.ListingRepo, likeRepo, savedRepo, c.OutboxRepo, cacheRepo, txManager, c.Logger)

	c.WardrobeUC = usecase.NewWardrobeUC(wardrobeRepo, clothingRepo, c.OutboxRepo, c.ImagesInfra, txManager, c.Logger, c.Cfg.Minio.MaxImageSize)

	c.StyleUC = usecase.NewStyleUC(
		c.ListingRepo,
		likeRepo,
		savedRepo,
		clothingRepo,
		styleRepo,
		contribRepo,
		embRepo,
		cacheRepo,
		c.ML,
		c.ML,
		c.ImagesInfra,
		txManager,
		c.Metrics,
		c.Logger,
		usecase.StyleConfig{
			Alpha:            c.Cfg.Style.Alpha,
			Dimension:        dimension,
			MaxUpdateRetries: c.Cfg.Style.MaxUpdateRetries,
			RetryBaseBackoff: c.Cfg.Style.RetryBaseBackoff,
			UnlikePolicy:     c.Cfg.Style.UnlikePolicy,
		},
	)

	c.RecsUC = usecase.NewRecommendationUC(
		styleRepo,
		embRepo,
		c.ListingRepo,
		likeRepo,
		savedRepo,
		cacheRepo,
		c.ListingUC,
		c.Metrics,
		c.Logger,
		usecase.RecsConfig{DefaultLimit: c.Cfg.Recs.DefaultLimit, MaxLimit: c.Cfg.Recs.MaxLimit},
	)

	c.IngestionUC = usecase.NewIngestionUC(c.StyleUC, c.OutboxRepo, c.Metrics, c.Logger, usecase.IngestionConfig{
		MaxAttempts: c.Cfg.Outbox.MaxAttempts,
		RetryBase:   c.Cfg.Outbox.RetryBase,
		RetryMax:    c.Cfg.Outbox.RetryMax,
	})

	return nil
}

// newProviders: эмбеддинги всегда через OpenAI-совместимый API, подписи через него же или IDEFICS.
func newProviders(cfg *config.Config) (usecase.Embedder, usecase.Captioner, error) {
	client, err := openai.NewClient(cfg.OpenAI)
	if err != nil {
		return nil, nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var captioner usecase.Captioner = client
	if cfg.Captioner.Provider == config.CaptionerIdefics {
		captioner = idefics.NewCaptioner(cfg.Captioner)
	}

	return client, captioner, nil
}

func initPGDB(logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		logger.Errorf(err, "failed to run migrations")
		db.Close()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.Ping(); err != nil {
		logger.Errorf(err, "failed to ping database")
		db.Close()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
