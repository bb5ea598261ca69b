package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dailypoll/backend/internal/eventlog"
	"github.com/dailypoll/backend/pkg/queue"
)

// EventQueue is the queue side the shipper consumes.
type EventQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// EventShipper drains queued poll events into the remote log.
type EventShipper struct {
	queue   EventQueue
	sink    eventlog.Sink
	timeout time.Duration
	backoff time.Duration
	logger  *zap.Logger
}

// NewEventShipper creates a shipper. timeout bounds each remote append.
func NewEventShipper(q EventQueue, sink eventlog.Sink, timeout time.Duration, logger *zap.Logger) *EventShipper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventShipper{queue: q, sink: sink, timeout: timeout, backoff: queue.RetryBackoff, logger: logger}
}

// Process ships one job.
func (p *EventShipper) Process(ctx context.Context, job *queue.Job) error {
	sctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.sink.AppendEvent(sctx, job.Event)
}

// Run starts the worker loop: dequeue, process, retry on error. It returns when ctx is done.
func (p *EventShipper) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("event shipper stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("shipping event", zap.String("job_id", job.ID), zap.String("type", string(job.Event.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("ship event failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *EventShipper) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
