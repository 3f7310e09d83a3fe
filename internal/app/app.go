package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/thrift-backend/internal/cfg"
	v1Grpc "github.com/DRSN-tech/thrift-backend/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/thrift-backend/internal/delivery/v1/http"
	"github.com/DRSN-tech/thrift-backend/internal/infrastructure/kafka"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

const (
	shutdownTimeout    = 15 * time.Second
	ensureTopicTimeout = 10 * time.Second
)

var errProviderCircuitOpen = errors.New("provider circuit breaker is open")

// App — HTTP и gRPC серверы, outbox worker и консьюмер событий стиля поверх Core.
type App struct {
	*Core

	httpSrv  *v1Http.Server
	grpcSrv  *v1Grpc.GRPCServer
	outbox   *kafka.OutboxWorker
	consumer *kafka.Consumer

	workersCtx    context.Context
	cancelWorkers context.CancelFunc
}

func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	core, err := NewCore(cfg, log)
	if err != nil {
		return nil, err
	}

	a := &App{Core: core}
	a.workersCtx, a.cancelWorkers = context.WithCancel(context.Background())

	if err := a.initBroker(); err != nil {
		a.cancelWorkers()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = a.Closer.Close(ctx)
		return nil, err
	}
	a.initServers()

	return a, nil
}

func (a *App) initBroker() error {
	producer, err := kafka.NewProducer(a.Logger, a.Cfg.Kafka)
	if err != nil {
		a.Logger.Errorf(err, "failed to initialize kafka producer")
		return err
	}
	a.Closer.Add("kafka producer", func(context.Context) error { return producer.Close() })

	if err := producer.EnsureTopic(ensureTopicTimeout); err != nil {
		// топик мог быть создан заранее без прав на создание
		a.Logger.Warnf("ensure kafka topic %s: %v", a.Cfg.Kafka.Topic, err)
	}

	a.outbox = kafka.NewOutboxWorker(a.OutboxRepo, a.Logger, producer, a.Metrics, a.Cfg.Outbox, a.DB.Dsn)
	a.Closer.AddSimple("outbox worker", a.outbox.Stop)

	a.consumer = kafka.NewConsumer(a.Cfg.Kafka, a.IngestionUC, a.Logger)
	a.Closer.Add("kafka consumer", func(context.Context) error {
		a.cancelWorkers()
		return a.consumer.Stop()
	})

	return nil
}

func (a *App) initServers() {
	a.grpcSrv = v1Grpc.NewGRPCServer(a.Cfg.Grpc, a.Logger)
	a.grpcSrv.RegisterServices(a.ListingUC, a.RecsUC)
	a.Closer.Add("grpc server", a.grpcSrv.Stop)

	r := chi.NewRouter()
	v1Http.NewRouter(r, a.Logger, a.Metrics).Init(v1Http.Deps{
		ListingUC:        a.ListingUC,
		WardrobeUC:       a.WardrobeUC,
		RecommendationUC: a.RecsUC,
		MaxImageSize:     a.Cfg.Minio.MaxImageSize,
		HealthChecks:     a.healthChecks(),
	})

	a.httpSrv = v1Http.NewServer(r, a.Cfg.Http)
	a.Closer.Add("http server", a.httpSrv.Stop)
}

func (a *App) healthChecks() map[string]v1Http.HealthCheck {
	return map[string]v1Http.HealthCheck{
		"postgres": func(ctx context.Context) error { return a.DB.Pool.Ping(ctx) },
		"redis":    a.Redis.Ping,
		"qdrant": func(ctx context.Context) error {
			_, err := a.Qdrant.Client.HealthCheck(ctx)
			return err
		},
		"providers": func(context.Context) error {
			if !a.ML.Healthy() {
				return errProviderCircuitOpen
			}
			return nil
		},
	}
}

// Run блокируется до сигнала остановки или падения одного из серверов.
func (a *App) Run() error {
	a.outbox.Start(a.workersCtx)
	a.consumer.Start(a.workersCtx)

	grpcErrCh := make(chan error, 1)
	go func() {
		a.Logger.Infof("gRPC server starting on %s:%s", a.Cfg.Grpc.NetworkMode, a.Cfg.Grpc.Port)
		if err := a.grpcSrv.Start(); err != nil {
			a.Logger.Errorf(err, "gRPC server failed")
			grpcErrCh <- err
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Infof("HTTP server started on port %s", a.Cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Errorf(err, "HTTP server failed: %v", err)
			errCh <- err
		}
	}()

	// === Ожидание сигнала или ошибки ===
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var appErr error
	select {
	case appErr = <-errCh:
		a.Logger.Errorf(appErr, "HTTP server fatal error")
	case appErr = <-grpcErrCh:
		a.Logger.Errorf(appErr, "gRPC server fatal error")
	case <-shutdown:
		a.Logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	// === Graceful shutdown ===
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := a.Closer.Close(shutdownCtx); err != nil {
		a.Logger.Errorf(err, "shutdown finished with errors")
	}

	a.Logger.Infof("Application shutdown complete")
	return appErr
}
