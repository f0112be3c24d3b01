package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/aradsms/sms_bridge/internal/platform/messagebroker"
)

// RetryPolicy decides what happens to a failed delivery.
type RetryPolicy struct {
	// MaxAttempts is the total number of deliveries; 1 means no retry.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Backoff returns the delay before the delivery following attempt (1-based):
// BaseDelay doubled for every earlier attempt, capped at MaxDelay when set and
// never past the largest representable duration.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if delay > math.MaxInt64/2 {
			delay = math.MaxInt64
			break
		}
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Exhausted reports whether attempt was the last one allowed.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return p.MaxAttempts <= 1 || attempt >= p.MaxAttempts
}

// JobRunner decodes queued jobs of type T, runs them and settles the delivery:
// ack on success, delayed nak while attempts remain, term afterwards.
type JobRunner[T any] struct {
	name     string
	process  func(context.Context, T) error
	policy   RetryPolicy
	validate *validator.Validate
	logger   *slog.Logger
}

// NewJobRunner creates a JobRunner named after the job type it handles.
func NewJobRunner[T any](name string, process func(context.Context, T) error, policy RetryPolicy, logger *slog.Logger) *JobRunner[T] {
	return &JobRunner[T]{
		name:     name,
		process:  process,
		policy:   policy,
		validate: validator.New(),
		logger:   logger.With("component", "job_runner", "job", name),
	}
}

// Handle processes one delivery. It satisfies messagebroker.Handler.
func (r *JobRunner[T]) Handle(ctx context.Context, d messagebroker.Delivery) {
	attempt := 1
	if md, err := d.Metadata(); err == nil && md != nil && md.NumDelivered > 0 {
		attempt = int(md.NumDelivered)
	}

	var job T
	if err := json.Unmarshal(d.Data(), &job); err != nil {
		r.drop(ctx, d, "Discarding undecodable job", err)
		return
	}
	if err := r.validate.StructCtx(ctx, job); err != nil {
		r.drop(ctx, d, "Discarding invalid job", err)
		return
	}

	start := time.Now()
	err := r.process(ctx, job)
	jobDurationHist.WithLabelValues(r.name).Observe(time.Since(start).Seconds())

	if err == nil {
		if ackErr := d.Ack(); ackErr != nil {
			r.logger.ErrorContext(ctx, "Failed to ack job", "error", ackErr)
		}
		jobsCounter.WithLabelValues(r.name, "acked").Inc()
		return
	}

	if r.policy.Exhausted(attempt) {
		r.logger.ErrorContext(ctx, "Job failed", "attempt", attempt, "error", err)
		if termErr := d.Term(); termErr != nil {
			r.logger.ErrorContext(ctx, "Failed to terminate job", "error", termErr)
		}
		jobsCounter.WithLabelValues(r.name, "failed").Inc()
		return
	}

	delay := r.policy.Backoff(attempt)
	r.logger.WarnContext(ctx, "Job failed, retrying", "attempt", attempt, "retry_in", delay, "error", err)
	if nakErr := d.NakWithDelay(delay); nakErr != nil {
		r.logger.ErrorContext(ctx, "Failed to nak job", "error", nakErr)
	}
	jobsCounter.WithLabelValues(r.name, "retried").Inc()
}

func (r *JobRunner[T]) drop(ctx context.Context, d messagebroker.Delivery, msg string, err error) {
	r.logger.ErrorContext(ctx, msg, "subject", d.Subject(), "error", err)
	if termErr := d.Term(); termErr != nil {
		r.logger.ErrorContext(ctx, "Failed to terminate job", "error", termErr)
	}
	jobsCounter.WithLabelValues(r.name, "malformed").Inc()
}
