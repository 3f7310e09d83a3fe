package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/jitter"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
	"github.com/google/uuid"
)

const (
	ingestOutcomeProcessed   = "processed"
	ingestOutcomeRescheduled = "rescheduled"
	ingestOutcomeFailed      = "failed"
)

var errUnknownEvent = errors.New("unknown event type")

type IngestionConfig struct {
	MaxAttempts int
	RetryBase   time.Duration
	RetryMax    time.Duration
}

// IngestionUseCase применяет события из очереди к style-векторам. Неудачное событие
// возвращается в outbox с отложенным available_at либо помечается failed.
type IngestionUseCase struct {
	style      StyleUC
	outboxRepo OutboxEventRepository
	metrics    Metrics
	logger     logger.Logger
	cfg        IngestionConfig
	now        func() time.Time
}

func NewIngestionUC(style StyleUC, outboxRepo OutboxEventRepository, metrics Metrics, logger logger.Logger, cfg IngestionConfig) *IngestionUseCase {
	return &IngestionUseCase{
		style:      style,
		outboxRepo: outboxRepo,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Handle возвращает ошибку только если событие не удалось ни применить, ни переотложить.
// В этом случае сообщение нельзя подтверждать в брокере.
func (i *IngestionUseCase) Handle(ctx context.Context, ev *StyleEvent) error {
	const op = "IngestionUseCase.Handle"

	err := i.dispatch(ctx, ev)
	if err == nil {
		i.metrics.IngestionOutcome(string(ev.Type), ingestOutcomeProcessed)
		return nil
	}

	if ctx.Err() != nil {
		return e.Wrap(op, err)
	}

	attempts := ev.Attempt + 1
	if !retryable(err) || attempts >= i.cfg.MaxAttempts {
		i.logger.Errorf(err, "style event %s (%s) for user %s failed after %d attempt(s)", ev.EventID, ev.Type, ev.UserID, attempts)
		i.metrics.IngestionOutcome(string(ev.Type), ingestOutcomeFailed)

		if ferr := i.outboxRepo.MarkAsFailed(ctx, ev.EventID, attempts, err.Error()); ferr != nil {
			return e.Wrap(op, ferr)
		}
		return nil
	}

	delay := jitter.ExponentialBackoff(i.cfg.RetryBase, i.cfg.RetryMax, ev.Attempt, jitter.DefaultJitter)
	i.logger.Warnf("style event %s (%s) for user %s deferred for %s: %v", ev.EventID, ev.Type, ev.UserID, delay, err)
	i.metrics.IngestionOutcome(string(ev.Type), ingestOutcomeRescheduled)

	if rerr := i.outboxRepo.Reschedule(ctx, ev.EventID, attempts, i.now().Add(delay), err.Error()); rerr != nil {
		return e.Wrap(op, rerr)
	}
	return nil
}

func (i *IngestionUseCase) dispatch(ctx context.Context, ev *StyleEvent) error {
	switch ev.Type {
	case EventListingLiked:
		return i.style.OnItemLiked(ctx, ev.UserID, ev.ListingID)
	case EventListingSaved:
		return i.style.OnItemSaved(ctx, ev.UserID, ev.ListingID)
	case EventListingUnliked:
		return i.style.OnItemUnliked(ctx, ev.UserID, ev.ListingID)
	case EventWardrobeItemUploaded:
		itemID, err := uuid.Parse(ev.ClothingItemID)
		if err != nil {
			return fmt.Errorf("%w: clothing item id %q", e.ErrStatusBadRequest, ev.ClothingItemID)
		}
		return i.style.OnItemUploaded(ctx, ev.UserID, itemID, nil, ev.MimeType)
	default:
		return fmt.Errorf("%w: %q", errUnknownEvent, ev.Type)
	}
}

// retryable: сбои провайдера, хранилища и конфликты версий стоит повторить;
// нарушение размерности и битые события не повторяются.
func retryable(err error) bool {
	switch {
	case errors.Is(err, e.ErrDimensionMismatch),
		errors.Is(err, e.ErrNotFound),
		errors.Is(err, e.ErrListingNotFound),
		errors.Is(err, e.ErrInvalidUserID),
		errors.Is(err, e.ErrListingIDRequired),
		errors.Is(err, e.ErrStatusBadRequest),
		errors.Is(err, errUnknownEvent):
		return false
	default:
		return true
	}
}
