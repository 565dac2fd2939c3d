package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"github.com/sells-group/cnpj-finder/internal/model"
	"github.com/sells-group/cnpj-finder/pkg/serper"
	"github.com/sells-group/cnpj-finder/pkg/serper/mocks"
)

func TestRunParallel_PreservesOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig()
	cfg.CandidateSites = []string{"cnpj.biz"}
	cfg.Workers = 4
	cfg.RateLimitRPS = 1000

	client := mocks.NewMockClient(t)
	client.On("Search", mock.Anything, mock.Anything, 2).Return(
		func(_ context.Context, q string, _ int) (*serper.SearchResponse, error) {
			// "site:cnpj.biz Company07 SP CNPJ" -> 00.000.000/0001-07
			fields := strings.Fields(q)
			n := strings.TrimPrefix(fields[1], "Company")
			if n == "03" {
				return &serper.SearchResponse{}, nil
			}
			return hits(fields[1], fmt.Sprintf("00.000.000/0001-%s", n)), nil
		},
		nil,
	)

	var records []model.InputRecord
	for i := 0; i < 20; i++ {
		records = append(records, model.InputRecord{Company: fmt.Sprintf("Company%02d", i)})
	}
	records[5].Company = ""

	var mu sync.Mutex
	var seen []int
	obs := ObserverFunc(func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 20, total)
		seen = append(seen, done)
	})

	p, err := New(client, cfg)
	require.NoError(t, err)

	out, summary, err := p.Run(context.Background(), testPrincipal, records, obs)
	require.NoError(t, err)
	require.Len(t, out, 20)

	for i, rec := range out {
		switch i {
		case 3:
			assert.Equal(t, model.StatusNotFound, rec.Status)
		case 5:
			assert.Equal(t, model.StatusMissingInput, rec.Status)
		default:
			assert.Equal(t, fmt.Sprintf("Company%02d", i), rec.Company)
			assert.Equal(t, fmt.Sprintf("00.000.000/0001-%02d", i), rec.Identifier)
			assert.Equal(t, model.StatusFound, rec.Status)
		}
	}

	want := make([]int, 20)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, seen)
	assert.Equal(t, 19, summary.SearchCalls)
	assert.Equal(t, 18, summary.Found)
}

func TestRunParallel_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig()
	cfg.CandidateSites = []string{"cnpj.biz"}
	cfg.Workers = 2

	client := mocks.NewMockClient(t)
	p, err := New(client, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = p.Run(ctx, testPrincipal, []model.InputRecord{{Company: "A"}, {Company: "B"}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewLimiter(t *testing.T) {
	t.Parallel()

	assert.Equal(t, rate.Inf, newLimiter(Config{}).Limit())
	assert.InDelta(t, 2.0, float64(newLimiter(Config{Delay: 500 * time.Millisecond}).Limit()), 0.0001)
	assert.InDelta(t, 5.0, float64(newLimiter(Config{Delay: time.Second, RateLimitRPS: 5}).Limit()), 0.0001)
}
