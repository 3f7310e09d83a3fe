package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/DRSN-tech/thrift-backend/internal/cfg"
	"github.com/DRSN-tech/thrift-backend/internal/usecase"
	"github.com/DRSN-tech/thrift-backend/pkg/jitter"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	handleRetryBase = 500 * time.Millisecond
	handleRetryMax  = 30 * time.Second
)

// MessageReader — часть kafka.Reader, нужная консьюмеру.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer читает события стиля и передаёт их в IngestionUC. Сообщение подтверждается
// только после того, как событие применено либо переотложено в outbox.
type Consumer struct {
	reader    MessageReader
	ingestion usecase.IngestionUC
	logger    logger.Logger
	retryBase time.Duration
	retryMax  time.Duration
	wg        sync.WaitGroup
}

func NewConsumer(cfg *cfg.KafkaCfg, ingestion usecase.IngestionUC, logger logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		StartOffset: kafka.FirstOffset,
	})

	return newConsumer(reader, ingestion, logger)
}

func newConsumer(reader MessageReader, ingestion usecase.IngestionUC, logger logger.Logger) *Consumer {
	return &Consumer{
		reader:    reader,
		ingestion: ingestion,
		logger:    logger,
		retryBase: handleRetryBase,
		retryMax:  handleRetryMax,
	}
}

func (c *Consumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
}

// Stop закрывает reader и ждёт выхода из цикла. ctx, переданный в Start, должен быть отменён раньше.
func (c *Consumer) Stop() error {
	c.wg.Wait()
	return c.reader.Close()
}

func (c *Consumer) run(ctx context.Context) {
	c.logger.Infof("style event consumer started")

	for attempt := 0; ; {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.logger.Infof("style event consumer stopped")
				return
			}

			c.logger.Warnf("kafka fetch failed: %v", err)
			if jitter.Sleep(ctx, jitter.ExponentialBackoff(c.retryBase, c.retryMax, attempt, jitter.DefaultJitter)) != nil {
				return
			}
			attempt++
			continue
		}
		attempt = 0

		if err := c.handle(ctx, msg); err != nil {
			// сообщение не подтверждено и придёт снова после ребаланса
			c.logger.Warnf("message at %s/%d@%d left uncommitted: %v", msg.Topic, msg.Partition, msg.Offset, err)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// handle повторяет обработку, пока она не пройдёт, чтобы не нарушать порядок событий пользователя.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	ev, err := decodeStyleEvent(msg.Value)
	if err != nil {
		c.logger.Errorf(err, "dropping malformed style event at %s/%d@%d", msg.Topic, msg.Partition, msg.Offset)
		return c.reader.CommitMessages(ctx, msg)
	}

	for attempt := 0; ; attempt++ {
		err := c.ingestion.Handle(ctx, ev)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return err
		}

		delay := jitter.ExponentialBackoff(c.retryBase, c.retryMax, attempt, jitter.DefaultJitter)
		c.logger.Warnf("style event %s not handled, retry in %v: %v", ev.EventID, delay, err)
		if serr := jitter.Sleep(ctx, delay); serr != nil {
			return err
		}
	}

	return c.reader.CommitMessages(ctx, msg)
}

func decodeStyleEvent(data []byte) (*usecase.StyleEvent, error) {
	var ev usecase.StyleEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}

	if ev.EventID == uuid.Nil || ev.UserID == "" || ev.Type == "" {
		return nil, fmt.Errorf("incomplete style event %q", data)
	}

	return &ev, nil
}
