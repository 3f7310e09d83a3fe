package ml_service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/thrift-backend/internal/cfg"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/jitter"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	outcomeSuccess   = "success"
	outcomeError     = "error"
	outcomePermanent = "permanent"
	outcomeRejected  = "rejected"
)

// ProviderMetrics — счётчики вызовов внешних моделей.
type ProviderMetrics interface {
	ProviderCall(provider, outcome string, dur time.Duration)
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent помечает ошибку, повтор которой не поможет (невалидный запрос, отказ модели).
// Такие ошибки не ретраятся и не размыкают breaker.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Guard защищает вызовы одного провайдера: лимит частоты, ограничение параллелизма,
// таймаут на попытку, ретраи с jitter и circuit breaker.
type Guard[T any] struct {
	name    string
	cfg     *cfg.MLServiceCfg
	breaker *gobreaker.CircuitBreaker[T]
	limiter *rate.Limiter
	sem     chan struct{}
	metrics ProviderMetrics
	logger  logger.Logger
}

func NewGuard[T any](name string, cfg *cfg.MLServiceCfg, metrics ProviderMetrics, log logger.Logger) *Guard[T] {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	log = log.With("provider", name)
	breaker := gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Guard[T]{
		name:    name,
		cfg:     cfg,
		breaker: breaker,
		limiter: rate.NewLimiter(limit, max(cfg.RateBurst, 1)),
		sem:     make(chan struct{}, maxConcurrent),
		metrics: metrics,
		logger:  log,
	}
}

// Do выполняет fn с защитой. Любая итоговая ошибка оборачивается в e.ErrProvider.
func (g *Guard[T]) Do(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		res, err := g.call(ctx, fn)
		if err == nil {
			return res, nil
		}

		if !g.shouldRetry(ctx, err) || attempt >= g.cfg.MaxRetries {
			return zero, e.Provider(g.name, fmt.Errorf("attempt %d: %w", attempt+1, err))
		}

		delay := jitter.ExponentialBackoff(g.cfg.BaseBackoff, g.cfg.MaxBackoff, attempt, jitter.DefaultJitter)
		g.logger.Warnf("%s call failed, retrying in %v (attempt %d): %v", g.name, delay, attempt+1, err)
		if err := jitter.Sleep(ctx, delay); err != nil {
			return zero, e.Provider(g.name, err)
		}
	}
}

func (g *Guard[T]) call(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if err := g.limiter.Wait(ctx); err != nil {
		return zero, err
	}

	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	defer func() { <-g.sem }()

	start := time.Now()
	res, err := g.breaker.Execute(func() (T, error) {
		callCtx := ctx
		if g.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
			defer cancel()
		}
		return fn(callCtx)
	})
	g.metrics.ProviderCall(g.name, callOutcome(err), time.Since(start))

	return res, err
}

func (g *Guard[T]) shouldRetry(ctx context.Context, err error) bool {
	switch {
	case ctx.Err() != nil:
		return false
	case IsPermanent(err):
		return false
	case errors.Is(err, e.ErrDimensionMismatch):
		return false
	case errors.Is(err, gobreaker.ErrOpenState):
		// breaker не закроется раньше BreakerOpenTimeout, отдаём ошибку outbox-ретраю
		return false
	default:
		return true
	}
}

// State возвращает текущее состояние breaker, используется в healthz.
func (g *Guard[T]) State() gobreaker.State {
	return g.breaker.State()
}

func callOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case IsPermanent(err):
		return outcomePermanent
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return outcomeRejected
	default:
		return outcomeError
	}
}
