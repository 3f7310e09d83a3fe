package ml_service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DRSN-tech/thrift-backend/internal/cfg"
	"github.com/DRSN-tech/thrift-backend/pkg/e"
	"github.com/DRSN-tech/thrift-backend/pkg/logger"
	gobreaker "github.com/sony/gobreaker/v2"
)

type fakeMetrics struct {
	mu    sync.Mutex
	calls map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{calls: make(map[string]int)}
}

func (f *fakeMetrics) ProviderCall(provider, outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[provider+"/"+outcome]++
}

func (f *fakeMetrics) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func testCfg() *cfg.MLServiceCfg {
	return &cfg.MLServiceCfg{
		MaxConcurrent:      4,
		MaxRetries:         3,
		Timeout:            time.Second,
		BaseBackoff:        time.Millisecond,
		MaxBackoff:         5 * time.Millisecond,
		BreakerMaxFailures: 100,
		BreakerOpenTimeout: time.Minute,
	}
}

var errTransient = errors.New("connection reset")

func TestGuardRetriesTransientErrors(t *testing.T) {
	m := newFakeMetrics()
	g := NewGuard[string]("captioner", testCfg(), m, logger.NewNopLogger())

	var calls int
	got, err := g.Do(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "Tops: shirt", nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "Tops: shirt" || calls != 3 {
		t.Errorf("got %q after %d calls", got, calls)
	}
	if m.count("captioner/error") != 2 || m.count("captioner/success") != 1 {
		t.Errorf("metrics = %v", m.calls)
	}
}

func TestGuardGivesUpAfterMaxRetries(t *testing.T) {
	g := NewGuard[string]("captioner", testCfg(), newFakeMetrics(), logger.NewNopLogger())

	var calls int
	_, err := g.Do(context.Background(), func(context.Context) (string, error) {
		calls++
		return "", errTransient
	})
	if !errors.Is(err, e.ErrProvider) || !errors.Is(err, errTransient) {
		t.Fatalf("err = %v, want provider error wrapping cause", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestGuardDoesNotRetryPermanentErrors(t *testing.T) {
	m := newFakeMetrics()
	g := NewGuard[string]("captioner", testCfg(), m, logger.NewNopLogger())

	var calls int
	_, err := g.Do(context.Background(), func(context.Context) (string, error) {
		calls++
		return "", Permanent(errors.New("bad request"))
	})
	if !errors.Is(err, e.ErrProvider) || !IsPermanent(err) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if m.count("captioner/permanent") != 1 {
		t.Errorf("metrics = %v", m.calls)
	}
}

func TestGuardBreakerOpens(t *testing.T) {
	c := testCfg()
	c.MaxRetries = 0
	c.BreakerMaxFailures = 2
	m := newFakeMetrics()
	g := NewGuard[string]("embedder", c, m, logger.NewNopLogger())

	var calls int
	fail := func(context.Context) (string, error) {
		calls++
		return "", errTransient
	}

	for i := 0; i < 2; i++ {
		if _, err := g.Do(context.Background(), fail); err == nil {
			t.Fatal("expected error")
		}
	}
	if g.State() != gobreaker.StateOpen {
		t.Fatalf("state = %s, want open", g.State())
	}

	_, err := g.Do(context.Background(), fail)
	if !errors.Is(err, gobreaker.ErrOpenState) || !errors.Is(err, e.ErrProvider) {
		t.Fatalf("err = %v, want open state", err)
	}
	if calls != 2 {
		t.Errorf("provider called %d times, want 2", calls)
	}
	if m.count("embedder/rejected") != 1 {
		t.Errorf("metrics = %v", m.calls)
	}
}

func TestGuardPerCallTimeout(t *testing.T) {
	c := testCfg()
	c.MaxRetries = 0
	c.Timeout = 10 * time.Millisecond
	g := NewGuard[string]("captioner", c, newFakeMetrics(), logger.NewNopLogger())

	_, err := g.Do(context.Background(), func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestGuardStopsOnCancelledContext(t *testing.T) {
	g := NewGuard[string]("captioner", testCfg(), newFakeMetrics(), logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	_, err := g.Do(ctx, func(context.Context) (string, error) {
		calls++
		cancel()
		return "", errTransient
	})
	if !errors.Is(err, e.ErrProvider) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestGuardLimitsConcurrency(t *testing.T) {
	c := testCfg()
	c.MaxConcurrent = 2
	g := NewGuard[int]("embedder", c, newFakeMetrics(), logger.NewNopLogger())

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = g.Do(context.Background(), func(context.Context) (int, error) {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return 1, nil
			})
		}()
	}
	wg.Wait()

	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}
