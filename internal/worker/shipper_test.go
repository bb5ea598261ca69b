package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dailypoll/backend/internal/models"
	"github.com/dailypoll/backend/pkg/queue"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type flakySink struct {
	mu       sync.Mutex
	failures int
	got      []models.Event
}

func (s *flakySink) AppendEvent(_ context.Context, evt models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("sheets unavailable")
	}
	s.got = append(s.got, evt)
	return nil
}

func (s *flakySink) shipped() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Event(nil), s.got...)
}

func TestShipperRetriesUntilDelivered(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), ContextTimeoutEnabled: true})
	defer client.Close()

	q := queue.NewQueue(client, nil)
	sink := &flakySink{failures: 1}
	shipper := NewEventShipper(q, sink, time.Second, nil)
	shipper.backoff = 10 * time.Millisecond

	require.NoError(t, q.AppendEvent(context.Background(), models.Event{Type: models.EventPollClosed, PollID: 9}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		shipper.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(sink.shipped()) == 1 }, 3*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	got := sink.shipped()
	assert.EqualValues(t, 9, got[0].PollID)
	assert.False(t, mr.Exists(queue.QueueDLQ))
}

type sliceQueue struct {
	mu      sync.Mutex
	jobs    []*queue.Job
	retried []*queue.Job
}

func (q *sliceQueue) Dequeue(ctx context.Context) (*queue.Job, error) {
	q.mu.Lock()
	if len(q.jobs) > 0 {
		j := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()
		return j, nil
	}
	q.mu.Unlock()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, nil
	}
}

func (q *sliceQueue) Retry(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.Attempt++
	q.retried = append(q.retried, job)
	return nil
}

func TestShipperRetryOnFailure(t *testing.T) {
	q := &sliceQueue{jobs: []*queue.Job{{ID: "a", Event: models.Event{Type: models.EventVote}}}}
	sink := &flakySink{failures: 100}
	shipper := NewEventShipper(q, sink, time.Second, nil)
	shipper.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		shipper.Run(ctx)
		close(done)
	}()
	assert.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.retried) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Empty(t, sink.shipped())
}
