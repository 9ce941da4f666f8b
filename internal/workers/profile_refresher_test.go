package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalog/vitalog-api/internal/queue"
)

type fakeProfiles struct {
	err   error
	calls int
	last  uuid.UUID
}

func (f *fakeProfiles) Generate(_ context.Context, userID uuid.UUID) (string, error) {
	f.calls++
	f.last = userID
	if f.err != nil {
		return "", f.err
	}
	return "profile text", nil
}

type fakeMessage struct {
	job     *queue.Job
	acked   int
	nacked  int
	requeue bool
}

func (m *fakeMessage) Ack() error { m.acked++; return nil }
func (m *fakeMessage) Nack(requeue bool) error {
	m.nacked++
	m.requeue = requeue
	return nil
}
func (m *fakeMessage) GetJob() *queue.Job { return m.job }

type fakeQueue struct {
	enqueued []*queue.Job
	err      error
}

func (q *fakeQueue) Enqueue(_ context.Context, job *queue.Job) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, job)
	return nil
}

func (q *fakeQueue) Consume(context.Context, int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, nil
}
func (q *fakeQueue) Close() error                      { return nil }
func (q *fakeQueue) HealthCheck(context.Context) error { return nil }

func TestProcessJobSuccess(t *testing.T) {
	t.Parallel()

	profiles := &fakeProfiles{}
	msg := &fakeMessage{job: queue.NewJob(queue.JobTypeProfileRefresh, uuid.New())}
	w := NewProfileRefresher(profiles, &fakeQueue{}, zap.NewNop())

	if err := w.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob failed: %v", err)
	}
	if profiles.calls != 1 {
		t.Errorf("expected 1 generate call, got %d", profiles.calls)
	}
	if profiles.last != msg.job.UserID {
		t.Errorf("expected generate for %s, got %s", msg.job.UserID, profiles.last)
	}
	if msg.acked != 1 {
		t.Errorf("expected 1 ack, got %d", msg.acked)
	}
	if msg.nacked != 0 {
		t.Errorf("expected 0 nacks, got %d", msg.nacked)
	}
}

func TestProcessJobUnknownTypeGoesToDLQ(t *testing.T) {
	t.Parallel()

	msg := &fakeMessage{job: queue.NewJob(queue.JobType("unknown_type"), uuid.New())}
	w := NewProfileRefresher(&fakeProfiles{}, &fakeQueue{}, zap.NewNop())

	if err := w.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("expected error for unknown job type")
	}
	if msg.nacked != 1 || msg.requeue {
		t.Errorf("expected nack without requeue, got nacked=%d requeue=%v", msg.nacked, msg.requeue)
	}
}

func TestProcessJobDeferredWhenNotBefore(t *testing.T) {
	t.Parallel()

	job := queue.NewJob(queue.JobTypeProfileRefresh, uuid.New())
	notBefore := time.Now().Add(time.Hour)
	job.NotBefore = &notBefore
	msg := &fakeMessage{job: job}
	profiles := &fakeProfiles{}
	w := NewProfileRefresher(profiles, &fakeQueue{}, zap.NewNop())

	if err := w.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob failed: %v", err)
	}
	if profiles.calls != 0 {
		t.Errorf("expected no generate calls for deferred job, got %d", profiles.calls)
	}
	if msg.acked != 1 {
		t.Errorf("expected deferred job to be acked, got %d", msg.acked)
	}
}

func TestProcessJobFailureRetries(t *testing.T) {
	t.Parallel()

	profiles := &fakeProfiles{err: errors.New("boom")}
	msg := &fakeMessage{job: queue.NewJob(queue.JobTypeProfileRefresh, uuid.New())}
	w := NewProfileRefresher(profiles, &fakeQueue{}, zap.NewNop())

	if err := w.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("expected error from failed job")
	}
	if msg.nacked != 1 || !msg.requeue {
		t.Errorf("expected nack with requeue, got nacked=%d requeue=%v", msg.nacked, msg.requeue)
	}
	if msg.job.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", msg.job.RetryCount)
	}
}

func TestProcessJobFailureMaxRetriesGoesToDLQ(t *testing.T) {
	t.Parallel()

	profiles := &fakeProfiles{err: errors.New("boom")}
	job := queue.NewJob(queue.JobTypeProfileRefresh, uuid.New())
	job.RetryCount = job.MaxRetries
	msg := &fakeMessage{job: job}
	w := NewProfileRefresher(profiles, &fakeQueue{}, zap.NewNop())

	if err := w.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("expected error after max retries")
	}
	if msg.nacked != 1 || msg.requeue {
		t.Errorf("expected nack without requeue, got nacked=%d requeue=%v", msg.nacked, msg.requeue)
	}
}

func TestProcessJobRateLimitReEnqueuesWithDelay(t *testing.T) {
	t.Parallel()

	profiles := &fakeProfiles{err: errors.New("rate limit exceeded: 429")}
	q := &fakeQueue{}
	msg := &fakeMessage{job: queue.NewJob(queue.JobTypeProfileRefresh, uuid.New())}
	w := NewProfileRefresher(profiles, q, zap.NewNop())

	if err := w.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("expected rate limited job to be handled, got %v", err)
	}
	if msg.acked != 1 {
		t.Errorf("expected ack before re-enqueue, got %d", msg.acked)
	}
	if len(q.enqueued) != 1 {
		t.Fatalf("expected 1 re-enqueued job, got %d", len(q.enqueued))
	}
	retry := q.enqueued[0]
	if retry.NotBefore == nil || !retry.NotBefore.After(time.Now()) {
		t.Error("expected re-enqueued job to carry a future NotBefore")
	}
	if retry.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", retry.RetryCount)
	}
}
