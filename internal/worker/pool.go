package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"PhishSim/internal/metrics"
	"PhishSim/internal/models"
)

var ErrPoolClosed = errors.New("send pool is closed")

// Store is the email persistence a send task touches. Each task only ever
// writes the one record it was scheduled for.
type Store interface {
	GetEmail(ctx context.Context, id int64) (*models.EmailRecord, error)
	MarkSent(ctx context.Context, id int64, sentAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64, reason string) (bool, error)
}

type Transport interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Options struct {
	Workers     int
	QueueSize   int
	Limiter     *rate.Limiter
	SendTimeout time.Duration
	SendDelay   time.Duration
}

// Pool delivers scheduled emails with a fixed number of goroutines reading a
// bounded queue. Submit blocks while the queue is full.
type Pool struct {
	store     Store
	transport Transport
	log       *zap.Logger
	opts      Options

	jobs chan int64
	done chan struct{}
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	once   sync.Once

	ctx context.Context
	now func() time.Time
}

func NewPool(store Store, transport Transport, logger *zap.Logger, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 30 * time.Second
	}

	return &Pool{
		store:     store,
		transport: transport,
		log:       logger,
		opts:      opts,
		jobs:      make(chan int64, opts.QueueSize),
		done:      make(chan struct{}),
		now:       time.Now,
	}
}

// Start launches the workers. Tasks run under ctx, never under the context of
// the request that scheduled them.
func (p *Pool) Start(ctx context.Context) {
	p.ctx = ctx

	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)

		go func(id int) {
			defer p.wg.Done()

			p.log.Info("worker started", zap.Int("worker_id", id))

			for {
				select {

				case <-ctx.Done():
					p.log.Info("worker shutting down", zap.Int("worker_id", id))
					return

				case emailID, ok := <-p.jobs:
					if !ok {
						p.log.Info("job channel closed", zap.Int("worker_id", id))
						return
					}
					p.process(id, emailID)
				}
			}
		}(i)
	}
}

// Submit schedules delivery of one email record.
func (p *Pool) Submit(ctx context.Context, emailID int64) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- emailID:
		return nil
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop refuses new work, lets workers drain the queue and waits for them.
// Cancelling the Start context first makes workers abandon queued records,
// which then stay pending.
func (p *Pool) Stop() {
	p.once.Do(func() {
		close(p.done)

		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

func (p *Pool) process(workerID int, emailID int64) {
	ctx := p.ctx

	// ----------------------------
	// Rate Limit
	// ----------------------------
	if err := p.opts.Limiter.Wait(ctx); err != nil {
		p.log.Warn("rate limiter stopped by context",
			zap.Int("worker_id", workerID),
			zap.Int64("email_id", emailID),
			zap.Error(err),
		)
		return
	}

	if p.opts.SendDelay > 0 {
		select {
		case <-time.After(p.opts.SendDelay):
		case <-ctx.Done():
			return
		}
	}

	// ----------------------------
	// Load Record
	// ----------------------------
	rec, err := p.store.GetEmail(ctx, emailID)
	if errors.Is(err, models.ErrNotFound) {
		p.log.Info("email record not found, skipping", zap.Int64("email_id", emailID))
		return
	}
	if err != nil {
		p.log.Error("failed to load email record",
			zap.Int64("email_id", emailID),
			zap.Error(err),
		)
		return
	}
	if rec.Status != models.StatusPending {
		p.log.Info("email not pending, skipping",
			zap.Int64("email_id", emailID),
			zap.String("status", string(rec.Status)),
		)
		return
	}

	// ----------------------------
	// Send Email
	// ----------------------------
	sendCtx, cancel := context.WithTimeout(ctx, p.opts.SendTimeout)
	start := time.Now()
	err = p.transport.Send(sendCtx, rec.RecipientEmail, rec.Subject, rec.Body)
	cancel()
	metrics.SendDuration.Observe(time.Since(start).Seconds())

	// status writes outlive shutdown so a finished send is not lost
	storeCtx, storeCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer storeCancel()

	if err != nil {
		p.log.Error("email send failed",
			zap.Int("worker_id", workerID),
			zap.Int64("email_id", emailID),
			zap.String("to", rec.RecipientEmail),
			zap.Error(err),
		)

		if _, dbErr := p.store.MarkFailed(storeCtx, emailID, err.Error()); dbErr != nil {
			p.log.Error("failed to update failure status",
				zap.Int64("email_id", emailID),
				zap.Error(dbErr),
			)
		}

		metrics.EmailFailures.Inc()
		return
	}

	// ----------------------------
	// Mark as Sent
	// ----------------------------
	if _, err := p.store.MarkSent(storeCtx, emailID, p.now().UTC()); err != nil {
		p.log.Error("failed to update sent status",
			zap.Int64("email_id", emailID),
			zap.Error(err),
		)
	}

	p.log.Info("email sent successfully",
		zap.Int("worker_id", workerID),
		zap.Int64("email_id", emailID),
		zap.String("to", rec.RecipientEmail),
	)

	metrics.EmailsSent.Inc()
}
