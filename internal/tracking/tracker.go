package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"PhishSim/internal/metrics"
	"PhishSim/internal/models"
)

// Store is the persistence the tracker needs.
type Store interface {
	AppendInteraction(ctx context.Context, in *models.Interaction) error
	ListInteractions(ctx context.Context, token string) ([]models.Interaction, error)
	ListAllInteractions(ctx context.Context) ([]models.Interaction, error)
	AdvanceStatus(ctx context.Context, emailID int64, to models.EmailStatus) (bool, error)
}

// Index resolves a tracking token to its email record id.
// A token with no record yields models.ErrNotFound.
type Index interface {
	EmailIDByToken(ctx context.Context, token string) (int64, error)
}

type Tracker struct {
	store Store
	index Index
	log   *zap.Logger
	now   func() time.Time
}

func NewTracker(store Store, index Index, logger *zap.Logger) *Tracker {
	return &Tracker{
		store: store,
		index: index,
		log:   logger,
		now:   time.Now,
	}
}

// Event is one inbound engagement observed by an HTTP endpoint.
type Event struct {
	Token     string
	Kind      models.InteractionKind
	IPAddress string
	UserAgent string
	Metadata  map[string]string
}

// RecordInteraction appends the event to the interaction log and advances the
// matching email's status when the transition is a forward one. Unknown tokens
// are logged and still recorded. The returned error is informational only;
// callers serving a target must not surface it.
func (t *Tracker) RecordInteraction(ctx context.Context, ev Event) error {
	if ev.Token == "" {
		return fmt.Errorf("%w: empty tracking token", models.ErrValidation)
	}
	if !ev.Kind.Valid() {
		return fmt.Errorf("%w: unknown interaction kind %q", models.ErrValidation, ev.Kind)
	}

	metrics.Interactions.WithLabelValues(string(ev.Kind)).Inc()

	in := &models.Interaction{
		TrackingToken: ev.Token,
		Kind:          ev.Kind,
		IPAddress:     ev.IPAddress,
		UserAgent:     ev.UserAgent,
		Timestamp:     t.now().UTC(),
	}
	if len(ev.Metadata) > 0 {
		b, err := json.Marshal(ev.Metadata)
		if err != nil {
			t.log.Warn("failed to encode interaction metadata",
				zap.String("token", ev.Token),
				zap.Error(err),
			)
		} else {
			in.Metadata = string(b)
		}
	}

	var errs []error

	if err := t.store.AppendInteraction(ctx, in); err != nil {
		t.fail("failed to record interaction", ev, err)
		errs = append(errs, fmt.Errorf("append interaction: %w", err))
	}

	emailID, err := t.index.EmailIDByToken(ctx, ev.Token)
	if errors.Is(err, models.ErrNotFound) {
		t.log.Warn("interaction for unknown tracking token",
			zap.String("token", ev.Token),
			zap.String("kind", string(ev.Kind)),
		)
		return errors.Join(errs...)
	}
	if err != nil {
		t.fail("failed to resolve tracking token", ev, err)
		return errors.Join(append(errs, fmt.Errorf("resolve token: %w", err))...)
	}

	advanced, err := t.store.AdvanceStatus(ctx, emailID, ev.Kind.Status())
	if err != nil {
		t.fail("failed to advance email status", ev, err)
		return errors.Join(append(errs, fmt.Errorf("advance status: %w", err))...)
	}

	t.log.Info("interaction recorded",
		zap.Int64("email_id", emailID),
		zap.String("kind", string(ev.Kind)),
		zap.Bool("status_advanced", advanced),
	)
	return errors.Join(errs...)
}

func (t *Tracker) fail(msg string, ev Event, err error) {
	metrics.TrackingFailures.Inc()
	t.log.Error(msg,
		zap.String("token", ev.Token),
		zap.String("kind", string(ev.Kind)),
		zap.Error(err),
	)
}

// Interactions returns the log for one token, oldest first.
func (t *Tracker) Interactions(ctx context.Context, token string) ([]models.Interaction, error) {
	return t.store.ListInteractions(ctx, token)
}

func (t *Tracker) AllInteractions(ctx context.Context) ([]models.Interaction, error) {
	return t.store.ListAllInteractions(ctx)
}
