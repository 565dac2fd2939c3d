package resilience

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cnpj-finder/pkg/serper"
)

func failing(_ context.Context) (int, error) { return 0, errors.New("fail") }

func succeeding(_ context.Context) (int, error) { return 1, nil }

func TestCircuitBreaker_ClosedPassesThrough(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	v, err := ExecuteVal(context.Background(), cb, succeeding)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		_, _ = ExecuteVal(context.Background(), cb, failing)
	}
	assert.Equal(t, CircuitOpen, cb.State())

	_, err := ExecuteVal(context.Background(), cb, func(context.Context) (int, error) {
		t.Error("should not be called when circuit is open")
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsCounter(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	_, _ = ExecuteVal(context.Background(), cb, failing)
	_, _ = ExecuteVal(context.Background(), cb, failing)
	failures, state := cb.Counters()
	assert.Equal(t, 2, failures)
	assert.Equal(t, CircuitClosed, state)

	_, _ = ExecuteVal(context.Background(), cb, succeeding)
	failures, _ = cb.Counters()
	assert.Equal(t, 0, failures)
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})
	cb.nowFunc = func() time.Time { return now }

	_, _ = ExecuteVal(context.Background(), cb, failing)
	assert.Equal(t, CircuitOpen, cb.State())

	now = now.Add(11 * time.Second)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	_, err := ExecuteVal(context.Background(), cb, succeeding)
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})
	cb.nowFunc = func() time.Time { return now }

	_, _ = ExecuteVal(context.Background(), cb, failing)
	now = now.Add(11 * time.Second)

	_, err := ExecuteVal(context.Background(), cb, failing)
	require.Error(t, err)
	_, state := cb.Counters()
	assert.Equal(t, CircuitOpen, state)
}

func TestCircuitBreaker_CancellationDoesNotTrip(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	_, err := ExecuteVal(context.Background(), cb, func(context.Context) (int, error) {
		return 0, context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_CancelledCallerNotCounted(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExecuteVal(ctx, cb, failing)
	require.Error(t, err)
	assert.Equal(t, CircuitClosed, cb.State())
	failures, _ := cb.Counters()
	assert.Equal(t, 0, failures)
}

func TestCircuitBreaker_CancelledSearchDoesNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := serper.NewClient("test-key", serper.WithBaseURL(srv.URL))
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExecuteVal(ctx, cb, func(ctx context.Context) (*serper.SearchResponse, error) {
		return client.Search(ctx, "site:cnpj.biz Acme SP CNPJ", 3)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, CircuitClosed, cb.State())

	// A real outage still trips the breaker.
	srv.Close()
	_, err = ExecuteVal(context.Background(), cb, func(ctx context.Context) (*serper.SearchResponse, error) {
		return client.Search(ctx, "site:cnpj.biz Acme SP CNPJ", 3)
	})
	assert.ErrorIs(t, err, serper.ErrUnavailable)
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_, _ = ExecuteVal(context.Background(), cb, failing)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1000, ResetTimeout: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = ExecuteVal(context.Background(), cb, failing)
				return
			}
			_, _ = ExecuteVal(context.Background(), cb, succeeding)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestNewSearchBreaker(t *testing.T) {
	assert.Nil(t, NewSearchBreaker(0, 30))
	assert.Nil(t, NewSearchBreaker(-1, 30))

	cb := NewSearchBreaker(4, 12)
	require.NotNil(t, cb)
	assert.Equal(t, 4, cb.cfg.FailureThreshold)
	assert.Equal(t, 12*time.Second, cb.cfg.ResetTimeout)
	assert.NotNil(t, cb.cfg.OnStateChange)

	cb = NewSearchBreaker(2, 0)
	assert.Equal(t, 30*time.Second, cb.cfg.ResetTimeout)
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(99).String())
}
