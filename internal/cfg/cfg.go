package cfg

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/thrift-backend/internal/domain"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
	"github.com/jimlawless/whereami"
)

type Config struct {
	Minio     *MinIOCfg
	Http      *HTTPConfig
	Grpc      *GRPCConfig
	Db        *PGDBCfg
	Qdrant    *QdrantCfg
	Redis     *RedisCfg
	Ml        *MLServiceCfg
	Kafka     *KafkaCfg
	OpenAI    *OpenAICfg
	Captioner *CaptionerCfg
	Style     *StyleCfg
	Recs      *RecsCfg
	Outbox    *OutboxCfg
}

type KafkaCfg struct {
	Topic             string
	Brokers           []string
	GroupID           string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

type MinIOCfg struct {
	MinioEndpoint     string        // Адрес конечной точки Minio
	BucketName        string        // Бакет для фотографий гардероба
	MinioRootUser     string        // Имя пользователя для доступа к Minio
	MinioRootPassword string        // Пароль для доступа к Minio
	MinioUseSSL       bool          // Подключение по TLS
	UploadImagesLimit int           // Лимит на количество одновременных загрузок в S3
	MaxImageSize      int64         // Максимальный размер одного изображения в байтах
	PresignExpiry     time.Duration // Время жизни presigned URL
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type GRPCConfig struct {
	Port        string
	NetworkMode string
}

type PGDBCfg struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxConns       int32
	MigrationsPath string // source URL для golang-migrate
}

type QdrantCfg struct {
	Port               int
	Host               string
	ApiKey             string
	UseTLS             bool
	VectorSize         uint64 // размерность эмбеддингов, общая для всех коллекций и style-векторов
	ListingsCollection string // коллекция эмбеддингов объявлений
	WardrobeCollection string // коллекция эмбеддингов вещей гардероба
	ExcludeBatch       int    // сколько id исключений кладём в одно условие HasId
}

type RedisCfg struct {
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
	ListingTTL  time.Duration
	RecsTTL     time.Duration
}

// MLServiceCfg — настройки защиты вызовов inference-провайдера.
type MLServiceCfg struct {
	MaxConcurrent      int
	MaxRetries         int
	Timeout            time.Duration
	BaseBackoff        time.Duration
	MaxBackoff         time.Duration
	RateLimit          float64 // запросов в секунду; 0 отключает ограничение
	RateBurst          int
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

type OpenAICfg struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	VisionModel    string
}

const (
	CaptionerOpenAI  = "openai"
	CaptionerIdefics = "idefics"
)

type CaptionerCfg struct {
	Provider   string // CaptionerOpenAI | CaptionerIdefics
	IdeficsURL string
	Timeout    time.Duration
}

type StyleCfg struct {
	Alpha            float64
	MaxUpdateRetries int
	RetryBaseBackoff time.Duration
	UnlikePolicy     domain.UnlikePolicy
}

type RecsCfg struct {
	DefaultLimit int
	MaxLimit     int
}

type OutboxCfg struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	RetryBase    time.Duration
	RetryMax     time.Duration
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	db, err := loadPGDBCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ml, err := loadMLServiceCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	captioner, err := loadCaptionerCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	style, err := loadStyleCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	recs, err := loadRecsCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	outbox, err := loadOutboxCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Minio:     minio,
		Http:      http,
		Grpc:      loadGRPCConfig(),
		Db:        db,
		Qdrant:    qdrant,
		Redis:     redis,
		Ml:        ml,
		Kafka:     kafka,
		OpenAI:    loadOpenAICfg(),
		Captioner: captioner,
		Style:     style,
		Recs:      recs,
		Outbox:    outbox,
	}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
		defaultGroupID           = "style-ingestion"
	)

	brokerStr := os.Getenv("KAFKA_BROKERS")
	if brokerStr == "" {
		return nil, fmt.Errorf("KAFKA_BROKERS environment variable is required")
	}
	brokers := strings.Split(brokerStr, ",")

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		return nil, fmt.Errorf("KAFKA_TOPIC environment variable is required")
	}

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Brokers:           brokers,
		Topic:             topic,
		GroupID:           getEnvOrDefault("KAFKA_GROUP_ID", defaultGroupID),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL        = false
		defaultEndpoint      = "minio:9000"
		defaultBucket        = "wardrobe"
		defaultUploadLimit   = 10
		defaultMaxImageSize  = 10 << 20
		defaultPresignExpiry = time.Hour
	)

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	maxImageSize, err := parseIntEnv("MAX_IMAGE_SIZE", defaultMaxImageSize)
	if err != nil || maxImageSize <= 0 {
		log.Errorf(e.ErrIncorrectEnvVariable, "invalid MAX_IMAGE_SIZE")
		return nil, e.ErrIncorrectEnvVariable
	}

	uploadLimit, err := parseIntEnv("UPLOAD_IMAGES_LIMIT", defaultUploadLimit)
	if err != nil {
		log.Errorf(err, "invalid UPLOAD_IMAGES_LIMIT")
		return nil, err
	}

	presignExpiry, err := parseDurationEnv("PRESIGN_EXPIRY", defaultPresignExpiry)
	if err != nil {
		log.Errorf(err, "invalid PRESIGN_EXPIRY")
		return nil, err
	}

	return &MinIOCfg{
		MinioEndpoint:     getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint),
		BucketName:        getEnvOrDefault("BUCKET_NAME", defaultBucket),
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		UploadImagesLimit: uploadLimit,
		MaxImageSize:      int64(maxImageSize),
		PresignExpiry:     presignExpiry,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 5 * time.Second
		defaultWriteTimeout = 10 * time.Second
		defaultIdleTimeout  = 60 * time.Second
	)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	return &HTTPConfig{
		Port:         getEnvOrDefault("HTTP_PORT", defaultPort),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}, nil
}

func loadGRPCConfig() *GRPCConfig {
	const (
		defaultPort        = "8091"
		defaultNetworkMode = "tcp"
	)

	return &GRPCConfig{
		Port:        getEnvOrDefault("GRPC_PORT", defaultPort),
		NetworkMode: getEnvOrDefault("GRPC_NETWORK_MODE", defaultNetworkMode),
	}
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode        = "disable"
		defaultMaxConns       = 10
		defaultMigrationsPath = "file://db/migrations"
	)

	for _, key := range []string{"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB"} {
		if getEnv(key) == "" {
			err := fmt.Errorf("%s is required", key)
			log.Errorf(err, "missing %s", key)
			return nil, err
		}
	}

	maxConns, err := parseIntEnv("POSTGRES_MAX_CONNS", defaultMaxConns)
	if err != nil || maxConns <= 0 {
		log.Errorf(e.ErrIncorrectEnvVariable, "invalid POSTGRES_MAX_CONNS")
		return nil, e.ErrIncorrectEnvVariable
	}

	return &PGDBCfg{
		Host:           getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:           getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:           getEnv("POSTGRES_USER"),
		Password:       getEnv("POSTGRES_PASSWORD"),
		DBName:         getEnv("POSTGRES_DB"),
		SSLMode:        getEnvOrDefault("SSL_MODE", defaultSSLMode),
		MaxConns:       int32(maxConns),
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", defaultMigrationsPath),
	}, nil
}

func loadQdrantCfg(logger logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantHost         = "localhost"
		defaultQdrantGRPCPort     = 6334
		defaultUseTLS             = false
		defaultVectorSize         = "1536"
		defaultListingsCollection = "listings"
		defaultWardrobeCollection = "wardrobe_items"
		defaultExcludeBatch       = 1000
	)

	port, err := parseIntEnv("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := strconv.ParseBool(getEnvOrDefault("QDRANT_USE_TLS", strconv.FormatBool(defaultUseTLS)))
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	vectorSize, err := strconv.ParseUint(getEnvOrDefault("VECTOR_SIZE", defaultVectorSize), 10, 64)
	if err != nil || vectorSize == 0 {
		logger.Errorf(e.ErrIncorrectEnvVariable, "invalid VECTOR_SIZE")
		return nil, e.ErrIncorrectEnvVariable
	}

	excludeBatch, err := parseIntEnv("QDRANT_EXCLUDE_BATCH", defaultExcludeBatch)
	if err != nil || excludeBatch <= 0 {
		logger.Errorf(e.ErrIncorrectEnvVariable, "invalid QDRANT_EXCLUDE_BATCH")
		return nil, e.ErrIncorrectEnvVariable
	}

	return &QdrantCfg{
		Host:               getEnvOrDefault("QDRANT_HOST", defaultQdrantHost),
		Port:               port,
		ApiKey:             getEnv("QDRANT__SERVICE__API_KEY"),
		UseTLS:             useTLS,
		VectorSize:         vectorSize,
		ListingsCollection: getEnvOrDefault("QDRANT_LISTINGS_COLLECTION", defaultListingsCollection),
		WardrobeCollection: getEnvOrDefault("QDRANT_WARDROBE_COLLECTION", defaultWardrobeCollection),
		ExcludeBatch:       excludeBatch,
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultListingTTL   = 3 * time.Minute
		defaultRecsTTL      = 2 * time.Minute
	)

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	listingTTL, err := parseDurationEnv("LISTING_TTL", defaultListingTTL)
	if err != nil {
		log.Errorf(err, "invalid LISTING_TTL")
		return nil, err
	}

	recsTTL, err := parseDurationEnv("RECS_CACHE_TTL", defaultRecsTTL)
	if err != nil {
		log.Errorf(err, "invalid RECS_CACHE_TTL")
		return nil, err
	}

	return &RedisCfg{
		Addr:        getEnvOrDefault("REDIS_ADDR", defaultAddr),
		Password:    getEnv("REDIS_PASSWORD"),
		User:        getEnv("REDIS_USER"),
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
		Timeout:     max(readTimeout, writeTimeout),
		ListingTTL:  listingTTL,
		RecsTTL:     recsTTL,
	}, nil
}

func loadMLServiceCfg(log logger.Logger) (*MLServiceCfg, error) {
	const (
		defaultMaxConcurrent      = 8
		defaultMaxRetries         = 3
		defaultTimeout            = 20 * time.Second
		defaultBaseBackoff        = 200 * time.Millisecond
		defaultMaxBackoff         = 5 * time.Second
		defaultRateLimit          = "10"
		defaultRateBurst          = 20
		defaultBreakerMaxFailures = 5
		defaultBreakerOpenTimeout = 30 * time.Second
	)

	maxConcurrent, err := parseIntEnv("ML_MAX_CONCURRENT", defaultMaxConcurrent)
	if err != nil {
		log.Errorf(err, "invalid ML_MAX_CONCURRENT")
		return nil, err
	}

	maxRetries, err := parseIntEnv("ML_MAX_RETRIES", defaultMaxRetries)
	if err != nil || maxRetries < 0 {
		log.Errorf(e.ErrIncorrectEnvVariable, "invalid ML_MAX_RETRIES")
		return nil, e.ErrIncorrectEnvVariable
	}

	timeout, err := parseDurationEnv("ML_TIMEOUT", defaultTimeout)
	if err != nil {
		log.Errorf(err, "invalid ML_TIMEOUT")
		return nil, err
	}

	baseBackoff, err := parseDurationEnv("ML_BASE_BACKOFF", defaultBaseBackoff)
	if err != nil {
		log.Errorf(err, "invalid ML_BASE_BACKOFF")
		return nil, err
	}

	maxBackoff, err := parseDurationEnv("ML_MAX_BACKOFF", defaultMaxBackoff)
	if err != nil {
		log.Errorf(err, "invalid ML_MAX_BACKOFF")
		return nil, err
	}

	rateLimit, err := strconv.ParseFloat(getEnvOrDefault("ML_RATE_LIMIT", defaultRateLimit), 64)
	if err != nil || rateLimit < 0 {
		log.Errorf(e.ErrIncorrectEnvVariable, "invalid ML_RATE_LIMIT")
		return nil, e.ErrIncorrectEnvVariable
	}

	rateBurst, err := parseIntEnv("ML_RATE_BURST", defaultRateBurst)
	if err != nil {
		log.Errorf(err, "invalid ML_RATE_BURST")
		return nil, err
	}

	breakerMaxFailures, err := parseIntEnv("ML_BREAKER_MAX_FAILURES", defaultBreakerMaxFailures)
	if err != nil || breakerMaxFailures <= 0 {
		log.Errorf(e.ErrIncorrectEnvVariable, "invalid ML_BREAKER_MAX_FAILURES")
		return nil, e.ErrIncorrectEnvVariable
	}

	breakerOpenTimeout, err := parseDurationEnv("ML_BREAKER_OPEN_TIMEOUT", defaultBreakerOpenTimeout)
	if err != nil {
		log.Errorf(err, "invalid ML_BREAKER_OPEN_TIMEOUT")
		return nil, err
	}

	return &MLServiceCfg{
		MaxConcurrent:      maxConcurrent,
		MaxRetries:         maxRetries,
		Timeout:            timeout,
		BaseBackoff:        baseBackoff,
		MaxBackoff:         maxBackoff,
		RateLimit:          rateLimit,
		RateBurst:          rateBurst,
		BreakerMaxFailures: uint32(breakerMaxFailures),
		BreakerOpenTimeout: breakerOpenTimeout,
	}, nil
}

func loadOpenAICfg() *OpenAICfg {
	const (
		defaultEmbeddingModel = "text-embedding-3-small"
		defaultVisionModel    = "gpt-4o-mini"
	)

	return &OpenAICfg{
		APIKey:         getEnv("OPENAI_API_KEY"),
		BaseURL:        getEnv("OPENAI_BASE_URL"),
		EmbeddingModel: getEnvOrDefault("OPENAI_EMBEDDING_MODEL", defaultEmbeddingModel),
		VisionModel:    getEnvOrDefault("OPENAI_VISION_MODEL", defaultVisionModel),
	}
}

func loadCaptionerCfg(log logger.Logger) (*CaptionerCfg, error) {
	const (
		defaultProvider = CaptionerOpenAI
		defaultTimeout  = 60 * time.Second
	)

	provider := strings.ToLower(getEnvOrDefault("CAPTIONER_PROVIDER", defaultProvider))
	if provider != CaptionerOpenAI && provider != CaptionerIdefics {
		err := fmt.Errorf("%w: CAPTIONER_PROVIDER=%q", e.ErrIncorrectEnvVariable, provider)
		log.Errorf(err, "invalid CAPTIONER_PROVIDER")
		return nil, err
	}

	ideficsURL := getEnv("IDEFICS_URL")
	if provider == CaptionerIdefics && ideficsURL == "" {
		err := fmt.Errorf("IDEFICS_URL is required when CAPTIONER_PROVIDER=idefics")
		log.Errorf(err, "missing IDEFICS_URL")
		return nil, err
	}

	timeout, err := parseDurationEnv("CAPTIONER_TIMEOUT", defaultTimeout)
	if err != nil {
		log.Errorf(err, "invalid CAPTIONER_TIMEOUT")
		return nil, err
	}

	return &CaptionerCfg{
		Provider:   provider,
		IdeficsURL: strings.TrimRight(ideficsURL, "/"),
		Timeout:    timeout,
	}, nil
}

func loadStyleCfg(log logger.Logger) (*StyleCfg, error) {
	const (
		defaultAlpha            = "0.3"
		defaultMaxUpdateRetries = 5
		defaultRetryBaseBackoff = 20 * time.Millisecond
	)

	alpha, err := strconv.ParseFloat(getEnvOrDefault("STYLE_ALPHA", defaultAlpha), 64)
	if err != nil || math.IsNaN(alpha) || alpha <= 0 || alpha > 1 {
		err = fmt.Errorf("%w: STYLE_ALPHA must be in (0, 1]", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid STYLE_ALPHA")
		return nil, err
	}

	maxRetries, err := parseIntEnv("STYLE_MAX_UPDATE_RETRIES", defaultMaxUpdateRetries)
	if err != nil || maxRetries <= 0 {
		log.Errorf(e.ErrIncorrectEnvVariable, "invalid STYLE_MAX_UPDATE_RETRIES")
		return nil, e.ErrIncorrectEnvVariable
	}

	baseBackoff, err := parseDurationEnv("STYLE_RETRY_BASE_BACKOFF", defaultRetryBaseBackoff)
	if err != nil {
		log.Errorf(err, "invalid STYLE_RETRY_BASE_BACKOFF")
		return nil, err
	}

	policy, err := domain.ParseUnlikePolicy(getEnv("STYLE_UNLIKE_POLICY"))
	if err != nil {
		log.Errorf(err, "invalid STYLE_UNLIKE_POLICY")
		return nil, err
	}

	return &StyleCfg{
		Alpha:            alpha,
		MaxUpdateRetries: maxRetries,
		RetryBaseBackoff: baseBackoff,
		UnlikePolicy:     policy,
	}, nil
}

func loadRecsCfg() (*RecsCfg, error) {
	const (
		defaultLimit    = 20
		defaultMaxLimit = 100
	)

	limit, err := parseIntEnv("RECS_DEFAULT_LIMIT", defaultLimit)
	if err != nil {
		return nil, e.Wrap("RECS_DEFAULT_LIMIT", err)
	}

	maxLimit, err := parseIntEnv("RECS_MAX_LIMIT", defaultMaxLimit)
	if err != nil {
		return nil, e.Wrap("RECS_MAX_LIMIT", err)
	}

	if limit <= 0 || maxLimit <= 0 || limit > maxLimit {
		return nil, fmt.Errorf("%w: RECS_DEFAULT_LIMIT must be in [1, RECS_MAX_LIMIT]", e.ErrIncorrectEnvVariable)
	}

	return &RecsCfg{DefaultLimit: limit, MaxLimit: maxLimit}, nil
}

func loadOutboxCfg(log logger.Logger) (*OutboxCfg, error) {
	const (
		defaultPollInterval = 5 * time.Second
		defaultBatchSize    = 10
		defaultMaxAttempts  = 8
		defaultRetryBase    = time.Second
		defaultRetryMax     = 5 * time.Minute
	)

	pollInterval, err := parseDurationEnv("OUTBOX_POLL_INTERVAL", defaultPollInterval)
	if err != nil {
		log.Errorf(err, "invalid OUTBOX_POLL_INTERVAL")
		return nil, err
	}

	batchSize, err := parseIntEnv("OUTBOX_BATCH_SIZE", defaultBatchSize)
	if err != nil || batchSize <= 0 {
		log.Errorf(e.ErrIncorrectEnvVariable, "invalid OUTBOX_BATCH_SIZE")
		return nil, e.ErrIncorrectEnvVariable
	}

	maxAttempts, err := parseIntEnv("INGEST_MAX_ATTEMPTS", defaultMaxAttempts)
	if err != nil || maxAttempts <= 0 {
		log.Errorf(e.ErrIncorrectEnvVariable, "invalid INGEST_MAX_ATTEMPTS")
		return nil, e.ErrIncorrectEnvVariable
	}

	retryBase, err := parseDurationEnv("INGEST_RETRY_BASE", defaultRetryBase)
	if err != nil {
		log.Errorf(err, "invalid INGEST_RETRY_BASE")
		return nil, err
	}

	retryMax, err := parseDurationEnv("INGEST_RETRY_MAX", defaultRetryMax)
	if err != nil {
		log.Errorf(err, "invalid INGEST_RETRY_MAX")
		return nil, err
	}

	return &OutboxCfg{
		PollInterval: pollInterval,
		BatchSize:    batchSize,
		MaxAttempts:  maxAttempts,
		RetryBase:    retryBase,
		RetryMax:     retryMax,
	}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}
