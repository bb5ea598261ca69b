// Package eventlog mirrors poll events to an optional remote log without letting the
// remote slow down or fail the caller.
package eventlog

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dailypoll/backend/internal/models"
)

// Sink receives mirrored events.
type Sink interface {
	AppendEvent(ctx context.Context, evt models.Event) error
}

// Mirror sends events to a sink in the background. A nil *Mirror or a Mirror without a sink
// drops everything.
type Mirror struct {
	sink    Sink
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewMirror returns a mirror that gives each send up to timeout. sink may be nil.
func NewMirror(sink Sink, timeout time.Duration, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Mirror{sink: sink, timeout: timeout, logger: logger}
}

// Enabled reports whether events go anywhere.
func (m *Mirror) Enabled() bool {
	return m != nil && m.sink != nil
}

// Record ships evt and waits at most wait for it to finish; with wait <= 0 it returns
// immediately. The send itself keeps running after Record returns, bounded by the
// mirror's own timeout. Failures are logged only.
func (m *Mirror) Record(evt models.Event, wait time.Duration) {
	if !m.Enabled() {
		return
	}
	if evt.Timestamp == "" {
		evt.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	done := make(chan struct{})
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		if err := m.sink.AppendEvent(ctx, evt); err != nil {
			m.logger.Warn("event mirror failed",
				zap.String("type", string(evt.Type)),
				zap.Int64("poll_id", evt.PollID),
				zap.Error(err))
		}
	}()

	if wait <= 0 {
		return
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		m.logger.Debug("event mirror still running, not waiting", zap.String("type", string(evt.Type)))
	}
}

// Wait blocks until every in-flight send has finished.
func (m *Mirror) Wait() {
	if m == nil {
		return
	}
	m.wg.Wait()
}
