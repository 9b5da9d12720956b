package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"PhishSim/internal/memstore"
	"PhishSim/internal/models"
	"PhishSim/internal/worker"
)

type fakeScheduler struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (f *fakeScheduler) Submit(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, id)
	return nil
}

var tmpl = models.Template{ID: 7, ScenarioID: 1, Subject: "Hi", Content: "Click {{tracking_key}}"}

func newCampaign(t *testing.T, store *memstore.Store) int64 {
	t.Helper()
	c := &models.Campaign{Name: "c", StartedBy: "admin", ScenarioID: 1}
	require.NoError(t, store.CreateCampaign(context.Background(), c))
	return c.ID
}

func TestDispatch_CreatesPendingRecords(t *testing.T) {
	store := memstore.New()
	sched := &fakeScheduler{}
	e := NewEngine(store, sched, "http://t.local/open", zap.NewNop())
	cid := newCampaign(t, store)

	res, err := e.Dispatch(context.Background(), cid, []string{"a@x.com", "b@x.com"}, tmpl)
	require.NoError(t, err)
	e.Wait()
	require.Len(t, res.CreatedIDs, 2)
	assert.Empty(t, res.FailedRecipients)
	assert.ElementsMatch(t, res.CreatedIDs, sched.ids)

	emails, err := store.ListEmailsByCampaign(context.Background(), cid)
	require.NoError(t, err)
	require.Len(t, emails, 2)

	assert.NotEqual(t, emails[0].TrackingToken, emails[1].TrackingToken)
	for _, rec := range emails {
		assert.Equal(t, models.StatusPending, rec.Status)
		assert.Equal(t, "Hi", rec.Subject)
		assert.Equal(t, int64(7), rec.TemplateID)
		assert.True(t, strings.HasPrefix(rec.Body, "Click "+rec.TrackingToken))
		assert.Contains(t, rec.Body, "<img src=\"http://t.local/open/"+rec.TrackingToken+".png\"")
		assert.NotContains(t, rec.Body, models.TrackingPlaceholder)
	}
}

func TestDispatch_PartialFailureIsIsolated(t *testing.T) {
	store := memstore.New()
	store.FailCreateEmail = func(rec *models.EmailRecord) error {
		if rec.RecipientEmail == "bad@x.com" {
			return errors.New("disk full")
		}
		return nil
	}
	sched := &fakeScheduler{}
	e := NewEngine(store, sched, "http://t.local/open", zap.NewNop())
	cid := newCampaign(t, store)

	res, err := e.Dispatch(context.Background(), cid, []string{"a@x.com", "bad@x.com", "c@x.com"}, tmpl)
	require.NoError(t, err)
	e.Wait()
	assert.Len(t, res.CreatedIDs, 2)
	assert.Equal(t, []string{"bad@x.com"}, res.FailedRecipients)
	assert.Len(t, sched.ids, 2)
}

func TestDispatch_AllFailedIsOperationFailure(t *testing.T) {
	store := memstore.New()
	store.FailCreateEmail = func(*models.EmailRecord) error { return errors.New("db down") }
	sched := &fakeScheduler{}
	e := NewEngine(store, sched, "http://t.local/open", zap.NewNop())
	cid := newCampaign(t, store)

	res, err := e.Dispatch(context.Background(), cid, []string{"a@x.com", "b@x.com"}, tmpl)
	require.ErrorIs(t, err, models.ErrOperation)
	assert.Empty(t, res.CreatedIDs)
	assert.Len(t, res.FailedRecipients, 2)
	assert.Empty(t, sched.ids)
}

func TestDispatch_SchedulingFailureMarksFailed(t *testing.T) {
	store := memstore.New()
	sched := &fakeScheduler{err: errors.New("pool closed")}
	e := NewEngine(store, sched, "http://t.local/open", zap.NewNop())
	cid := newCampaign(t, store)

	res, err := e.Dispatch(context.Background(), cid, []string{"a@x.com"}, tmpl)
	require.NoError(t, err)
	e.Wait()
	require.Len(t, res.CreatedIDs, 1)

	rec, err := store.GetEmail(context.Background(), res.CreatedIDs[0])
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMsg, "pool closed")
}

type gatedTransport struct {
	gate chan struct{}
}

func (g *gatedTransport) Send(ctx context.Context, _, _, _ string) error {
	select {
	case <-g.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestDispatch_FullQueueDoesNotHoldOrFailCaller(t *testing.T) {
	store := memstore.New()
	tr := &gatedTransport{gate: make(chan struct{})}
	pool := worker.NewPool(store, tr, zap.NewNop(), worker.Options{Workers: 1, QueueSize: 1, SendTimeout: 5 * time.Second})
	pool.Start(context.Background())
	defer pool.Stop()

	e := NewEngine(store, pool, "http://t.local/open", zap.NewNop())
	cid := newCampaign(t, store)

	recipients := []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com", "e@x.com", "f@x.com"}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan Result, 1)
	go func() {
		res, err := e.Dispatch(ctx, cid, recipients, tmpl)
		assert.NoError(t, err)
		done <- res
	}()

	var res Result
	select {
	case res = <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch blocked on a full send queue")
	}
	require.Len(t, res.CreatedIDs, len(recipients))

	// the request is gone before most records could be queued
	cancel()
	close(tr.gate)
	e.Wait()

	require.Eventually(t, func() bool {
		emails, err := store.ListEmailsByCampaign(context.Background(), cid)
		if err != nil {
			return false
		}
		return models.CountStatuses(emails).Sent == len(recipients)
	}, 2*time.Second, 5*time.Millisecond)

	emails, err := store.ListEmailsByCampaign(context.Background(), cid)
	require.NoError(t, err)
	assert.Zero(t, models.CountStatuses(emails).Failed)
}

func TestDispatch_ClosedPoolLeavesRecordsPending(t *testing.T) {
	store := memstore.New()
	pool := worker.NewPool(store, &gatedTransport{gate: make(chan struct{})}, zap.NewNop(), worker.Options{})
	pool.Stop()

	e := NewEngine(store, pool, "http://t.local/open", zap.NewNop())
	cid := newCampaign(t, store)

	res, err := e.Dispatch(context.Background(), cid, []string{"a@x.com", "b@x.com"}, tmpl)
	require.NoError(t, err)
	e.Wait()

	for _, id := range res.CreatedIDs {
		rec, err := store.GetEmail(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, rec.Status)
		assert.Empty(t, rec.ErrorMsg)
	}
}
