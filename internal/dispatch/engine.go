package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"PhishSim/internal/metrics"
	"PhishSim/internal/models"
	"PhishSim/internal/tracking"
	"PhishSim/internal/worker"
)

type Store interface {
	CreateEmail(ctx context.Context, rec *models.EmailRecord) error
	MarkFailed(ctx context.Context, id int64, reason string) (bool, error)
}

// Scheduler queues an email record for asynchronous delivery.
type Scheduler interface {
	Submit(ctx context.Context, emailID int64) error
}

type Engine struct {
	store       Store
	scheduler   Scheduler
	trackingURL string
	log         *zap.Logger
	now         func() time.Time

	wg sync.WaitGroup
}

func NewEngine(store Store, scheduler Scheduler, trackingURL string, logger *zap.Logger) *Engine {
	return &Engine{
		store:       store,
		scheduler:   scheduler,
		trackingURL: trackingURL,
		log:         logger,
		now:         time.Now,
	}
}

type Result struct {
	CreatedIDs       []int64  `json:"created_ids"`
	FailedRecipients []string `json:"failed_recipients"`
}

// Dispatch creates one pending email record per recipient with its content
// already rendered and returns. Created records are handed to the scheduler
// in the background, detached from ctx, so a full queue or an ended request
// never holds the caller or fails a record.
//
// A recipient whose record cannot be created is reported in FailedRecipients
// and skipped. When no record at all could be created the error wraps
// models.ErrOperation.
func (e *Engine) Dispatch(ctx context.Context, campaignID int64, recipients []string, tmpl models.Template) (Result, error) {
	var res Result

	for _, to := range recipients {
		rec, err := e.create(ctx, campaignID, to, tmpl)
		if err != nil {
			e.log.Error("failed to create email record",
				zap.Int64("campaign_id", campaignID),
				zap.String("to", to),
				zap.Error(err),
			)
			metrics.EmailCreateFailures.Inc()
			res.FailedRecipients = append(res.FailedRecipients, to)
			continue
		}
		res.CreatedIDs = append(res.CreatedIDs, rec.ID)
	}

	if len(res.CreatedIDs) == 0 {
		return res, fmt.Errorf("%w: no email records created for campaign %d (%d recipients)",
			models.ErrOperation, campaignID, len(recipients))
	}

	e.wg.Add(1)
	go e.schedule(context.WithoutCancel(ctx), campaignID, res.CreatedIDs)

	e.log.Info("campaign dispatched",
		zap.Int64("campaign_id", campaignID),
		zap.Int("created", len(res.CreatedIDs)),
		zap.Int("failed", len(res.FailedRecipients)),
	)
	return res, nil
}

func (e *Engine) create(ctx context.Context, campaignID int64, to string, tmpl models.Template) (*models.EmailRecord, error) {
	token, err := tracking.Mint()
	if err != nil {
		return nil, err
	}

	rec := &models.EmailRecord{
		RecipientEmail: to,
		CampaignID:     campaignID,
		TemplateID:     tmpl.ID,
		TrackingToken:  token,
		Subject:        tmpl.Subject,
		Body:           tracking.RenderBody(tmpl.Content, token, e.trackingURL),
		Status:         models.StatusPending,
		CreatedAt:      e.now().UTC(),
	}
	if err := e.store.CreateEmail(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (e *Engine) schedule(ctx context.Context, campaignID int64, ids []int64) {
	defer e.wg.Done()

	for i, id := range ids {
		err := e.scheduler.Submit(ctx, id)
		if errors.Is(err, worker.ErrPoolClosed) {
			e.log.Warn("send pool closed, leaving emails pending",
				zap.Int64("campaign_id", campaignID),
				zap.Int("unscheduled", len(ids)-i),
			)
			return
		}
		if err != nil {
			e.unschedulable(ctx, id, err)
		}
	}
}

// Wait blocks until every background scheduling run has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// unschedulable fails a record that will never reach a worker so it does not
// sit in pending forever.
func (e *Engine) unschedulable(ctx context.Context, id int64, cause error) {
	e.log.Error("failed to schedule email",
		zap.Int64("email_id", id),
		zap.Error(cause),
	)

	if _, err := e.store.MarkFailed(ctx, id, "scheduling failed: "+cause.Error()); err != nil {
		e.log.Error("failed to update failure status",
			zap.Int64("email_id", id),
			zap.Error(err),
		)
	}
	metrics.EmailFailures.Inc()
}
