package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DRSN-tech/thrift-backend/internal/cfg"
	"github.com/DRSN-tech/thrift-backend/internal/repository/pgdb"
	"github.com/DRSN-tech/thrift-backend/internal/usecase"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/jitter"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
)

const (
	staleProcessingTimeout = 2 * time.Minute
	notificationWait       = 30 * time.Second
	reconnectBase          = 2 * time.Second
	reconnectMax           = time.Minute
)

var errInvalidPayload = errors.New("invalid outbox payload")

const (
	publishOutcomePublished   = "published"
	publishOutcomeRescheduled = "rescheduled"
	publishOutcomeFailed      = "failed"
)

type OutboxMetrics interface {
	OutboxPublished(outcome string)
}

// OutboxWorker переносит события из outbox в Kafka. Просыпается по NOTIFY и по таймеру,
// таймер также возвращает в очередь события, зависшие в processing.
type OutboxWorker struct {
	repo      usecase.OutboxEventRepository
	logger    logger.Logger
	producer  usecase.MessageProducer
	metrics   OutboxMetrics
	cfg       *cfg.OutboxCfg
	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	dbConnStr string
	now       func() time.Time
}

func NewOutboxWorker(
	repo usecase.OutboxEventRepository,
	logger logger.Logger,
	producer usecase.MessageProducer,
	metrics OutboxMetrics,
	cfg *cfg.OutboxCfg,
	dbConnStr string,
) *OutboxWorker {
	return &OutboxWorker{
		repo:      repo,
		logger:    logger,
		producer:  producer,
		metrics:   metrics,
		cfg:       cfg,
		stop:      make(chan struct{}),
		dbConnStr: dbConnStr,
		now:       time.Now,
	}
}

func (w *OutboxWorker) Start(ctx context.Context) {
	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()

	// Запускаем слушатель уведомлений
	go func() {
		defer w.wg.Done()
		w.listenOutboxNotifications(ctx)
	}()
}

func (w *OutboxWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.wg.Wait()
}

func (w *OutboxWorker) run(ctx context.Context) {
	// Обрабатываем "остатки" при старте
	w.logger.Infof("Draining pending outbox events on startup...")
	w.drain(ctx)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Infof("Worker stopped by context cancellation")
			return
		case <-w.stop:
			return
		case <-ticker.C:
			if n, err := w.repo.ReleaseStale(ctx, staleProcessingTimeout); err != nil {
				w.logger.Warnf("release stale outbox events failed: %v", err)
			} else if n > 0 {
				w.logger.Warnf("released %d stale outbox event(s)", n)
			}
			w.drain(ctx)
		}
	}
}

func (w *OutboxWorker) listenOutboxNotifications(ctx context.Context) {
	var conn *pgx.Conn

	connect := func() error {
		c, err := pgx.Connect(ctx, w.dbConnStr)
		if err != nil {
			return e.Wrap("failed to connect for LISTEN", err)
		}

		if _, err := c.Exec(ctx, "LISTEN "+pgdb.OutboxChannel); err != nil {
			_ = c.Close(ctx)
			return e.Wrap("failed to LISTEN", err)
		}

		conn = c
		w.logger.Infof("Subscribed to '%s' channel", pgdb.OutboxChannel)
		return nil
	}

	for attempt := 0; conn == nil; attempt++ {
		if err := connect(); err != nil {
			// без LISTEN события всё равно подберёт таймер
			w.logger.Warnf("LISTEN connect failed: %v", err)
			if w.sleep(ctx, jitter.ExponentialBackoff(reconnectBase, reconnectMax, attempt, jitter.DefaultJitter)) != nil {
				return
			}
		}
	}
	defer func() { _ = conn.Close(context.Background()) }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		default:
		}

		waitCtx, cancel := context.WithTimeout(ctx, notificationWait)
		notif, err := conn.WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}

			w.logger.Warnf("Connection lost: %v. Reconnecting...", err)
			_ = conn.Close(ctx)
			for attempt := 0; ; attempt++ {
				if w.sleep(ctx, jitter.ExponentialBackoff(reconnectBase, reconnectMax, attempt, jitter.DefaultJitter)) != nil {
					return
				}
				err := connect()
				if err == nil {
					break
				}
				w.logger.Warnf("Reconnect failed: %v", err)
			}
			continue
		}

		if notif != nil && notif.Channel == pgdb.OutboxChannel {
			w.logger.Debugf("Received outbox notification, draining outbox events")
			w.drain(ctx)
		}
	}
}

// sleep прерывается и по ctx, и по Stop.
func (w *OutboxWorker) sleep(ctx context.Context, d time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	return jitter.Sleep(ctx, d)
}

func (w *OutboxWorker) drain(ctx context.Context) {
	for {
		hasMore, err := w.processBatch(ctx)
		if err != nil {
			w.logger.Warnf("Batch processing failed: %v", err)
			return
		}
		if !hasMore {
			return
		}
	}
}

func (w *OutboxWorker) processBatch(ctx context.Context) (bool, error) {
	events, err := w.repo.GetAndMarkAsProcessing(ctx, w.cfg.BatchSize)
	if err != nil {
		return false, err
	}

	if len(events) == 0 {
		return false, nil
	}

	for _, event := range events {
		if err := w.processEvent(ctx, event); err != nil {
			w.handlePublishError(ctx, event, err)
			continue
		}

		w.metrics.OutboxPublished(publishOutcomePublished)
		if err := w.repo.MarkAsProcessed(ctx, event.ID); err != nil {
			w.logger.Warnf("mark processed failed: %v", err)
		}
	}

	return len(events) == w.cfg.BatchSize, nil
}

func (w *OutboxWorker) processEvent(ctx context.Context, event *usecase.OutboxEvent) error {
	payload, err := event.MessagePayload()
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidPayload, err)
	}

	return w.producer.WriteRawMessage(ctx, usecase.NewWriteRawMessageReq(event.UserID, event.EventType, payload))
}

// handlePublishError возвращает событие в pending. Попытки публикации не расходуют
// бюджет попыток применения, поэтому attempts не меняется.
func (w *OutboxWorker) handlePublishError(ctx context.Context, event *usecase.OutboxEvent, err error) {
	if !isRetryableError(err) {
		w.logger.Errorf(err, "permanent publish failure for outbox event %s", event.EventID)
		w.metrics.OutboxPublished(publishOutcomeFailed)
		if ferr := w.repo.MarkAsFailed(ctx, event.EventID, event.Attempts, err.Error()); ferr != nil {
			w.logger.Warnf("mark failed failed: %v", ferr)
		}
		return
	}

	delay := jitter.ExponentialBackoff(w.cfg.RetryBase, w.cfg.RetryMax, 0, jitter.DefaultJitter)
	w.logger.Warnf("Temporary Kafka failure for event %s, retry in %v: %v", event.EventID, delay, err)
	w.metrics.OutboxPublished(publishOutcomeRescheduled)
	if rerr := w.repo.Reschedule(ctx, event.EventID, event.Attempts, w.now().Add(delay), err.Error()); rerr != nil {
		w.logger.Warnf("reschedule failed, event %s will be released as stale: %v", event.EventID, rerr)
	}
}

// isRetryableError: битый payload и постоянные ошибки брокера не повторяем, сетевые повторяем.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var werr kafka.WriteErrors
	if errors.As(err, &werr) {
		for _, we := range werr {
			if we != nil && !isRetryableError(we) {
				return false
			}
		}
		return true
	}

	var kerr kafka.Error
	if errors.As(err, &kerr) {
		return kerr.Temporary()
	}

	return !errors.Is(err, errInvalidPayload)
}
