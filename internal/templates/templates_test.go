package templates

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PhishSim/internal/models"
)

type countingSource struct {
	calls int
	tmpl  map[int64]models.Template
}

func (s *countingSource) TemplateByScenarioID(_ context.Context, id int64) (*models.Template, error) {
	s.calls++
	t, ok := s.tmpl[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &t, nil
}

func TestCache_HitsSourceOnce(t *testing.T) {
	src := &countingSource{tmpl: map[int64]models.Template{1: {ID: 3, ScenarioID: 1, Subject: "Hi"}}}
	c := NewCache(src, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tmpl, err := c.TemplateByScenarioID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Hi", tmpl.Subject)
	}
	assert.Equal(t, 1, src.calls)

	c.Invalidate(1)
	_, err := c.TemplateByScenarioID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestCache_MissIsNotCached(t *testing.T) {
	src := &countingSource{tmpl: map[int64]models.Template{}}
	c := NewCache(src, time.Minute)

	_, err := c.TemplateByScenarioID(context.Background(), 9)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = c.TemplateByScenarioID(context.Background(), 9)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, 2, src.calls)
}

type gatedSource struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (s *gatedSource) TemplateByScenarioID(_ context.Context, id int64) (*models.Template, error) {
	s.calls.Add(1)
	<-s.gate
	return &models.Template{ScenarioID: id, Subject: "Hi"}, nil
}

func TestCache_ConcurrentMissesShareLookup(t *testing.T) {
	src := &gatedSource{gate: make(chan struct{})}
	c := NewCache(src, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tmpl, err := c.TemplateByScenarioID(context.Background(), 4)
			assert.NoError(t, err)
			assert.Equal(t, int64(4), tmpl.ScenarioID)
		}()
	}

	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
}

type cancelAwareSource struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (s *cancelAwareSource) TemplateByScenarioID(ctx context.Context, id int64) (*models.Template, error) {
	s.calls.Add(1)
	select {
	case <-s.gate:
		return &models.Template{ScenarioID: id, Subject: "Hi"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCache_FirstCallerCancelDoesNotFailOthers(t *testing.T) {
	src := &cancelAwareSource{gate: make(chan struct{})}
	c := NewCache(src, time.Minute)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.TemplateByScenarioID(firstCtx, 5)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		tmpl *models.Template
		err  error
	}
	second := make(chan result, 1)
	go func() {
		tmpl, err := c.TemplateByScenarioID(context.Background(), 5)
		second <- result{tmpl, err}
	}()

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(src.gate)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, int64(5), res.tmpl.ScenarioID)
	assert.Equal(t, int32(1), src.calls.Load())
}
