package db

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"PhishSim/internal/models"
)

// These tests need a disposable PostgreSQL database.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Migrate(ctx, false, zap.NewNop()))
	return s
}

func seedEmail(t *testing.T, s *Store) (*models.Campaign, *models.EmailRecord) {
	t.Helper()
	ctx := context.Background()

	tmpl := &models.Template{ScenarioID: time.Now().UnixNano(), Subject: "Hi", Content: "Click {{tracking_key}}"}
	require.NoError(t, s.UpsertTemplate(ctx, tmpl))

	c := &models.Campaign{Name: "it", StartedBy: "admin@corp.test", ScenarioID: tmpl.ScenarioID}
	require.NoError(t, s.CreateCampaign(ctx, c))

	rec := &models.EmailRecord{
		RecipientEmail: "a@x.com",
		CampaignID:     c.ID,
		TemplateID:     tmpl.ID,
		TrackingToken:  uuid.NewString(),
		Subject:        tmpl.Subject,
		Body:           "body",
	}
	require.NoError(t, s.CreateEmail(ctx, rec))
	return c, rec
}

func TestStore_EmailLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c, rec := seedEmail(t, s)

	id, err := s.EmailIDByToken(ctx, rec.TrackingToken)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, id)

	ok, err := s.MarkSent(ctx, rec.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AdvanceStatus(ctx, rec.ID, models.StatusClicked)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AdvanceStatus(ctx, rec.ID, models.StatusOpened)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetEmail(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClicked, got.Status)
	assert.NotNil(t, got.SentAt)

	require.NoError(t, s.DeleteCampaign(ctx, c.ID))
	_, err = s.GetCampaign(ctx, c.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.GetEmail(ctx, rec.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStore_DuplicateTokenConflicts(t *testing.T) {
	s := newTestStore(t)
	_, rec := seedEmail(t, s)

	dup := *rec
	dup.ID = 0
	err := s.CreateEmail(context.Background(), &dup)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestStore_ConcurrentAdvanceKeepsHighest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, rec := seedEmail(t, s)

	var wg sync.WaitGroup
	for _, to := range []models.EmailStatus{models.StatusOpened, models.StatusClicked, models.StatusOpened} {
		wg.Add(1)
		go func(to models.EmailStatus) {
			defer wg.Done()
			_, _ = s.AdvanceStatus(ctx, rec.ID, to)
		}(to)
	}
	wg.Wait()

	got, err := s.GetEmail(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClicked, got.Status)
}

func TestStore_InteractionsOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	token := uuid.NewString()

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, kind := range []models.InteractionKind{models.InteractionClick, models.InteractionOpen} {
		in := &models.Interaction{
			TrackingToken: token,
			Kind:          kind,
			IPAddress:     "10.0.0.1",
			Timestamp:     base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.AppendInteraction(ctx, in))
	}

	log, err := s.ListInteractions(ctx, token)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, models.InteractionClick, log[0].Kind)
	assert.Equal(t, models.InteractionOpen, log[1].Kind)
}
