package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type args struct {
	AccountID string `json:"account_id"`
}

type recordingJob struct {
	mu       sync.Mutex
	seen     []string
	failures int32
	done     chan struct{}
}

func (j *recordingJob) Name() string { return "recording" }
func (j *recordingJob) Type() string { return "record" }

func (j *recordingJob) Handle(_ context.Context, payload interface{}) error {
	if atomic.AddInt32(&j.failures, -1) >= 0 {
		return errors.New("transient")
	}
	p, err := ParsePayload[args](payload)
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.seen = append(j.seen, p.AccountID)
	j.mu.Unlock()
	j.done <- struct{}{}
	return nil
}

func TestLocalQueueRunsJobs(t *testing.T) {
	job := &recordingJob{done: make(chan struct{}, 1)}
	var observed int32
	q := NewLocalQueue(nil, QueueConfig{Workers: 1, RetryLimit: 2, RetryDelay: 10 * time.Millisecond},
		WithLocalObserver(func(string, time.Duration, error) { atomic.AddInt32(&observed, 1) }))
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	defer q.Stop(context.Background())

	job.failures = 1
	require.NoError(t, q.Enqueue(context.Background(), "record", args{AccountID: "A1"}))

	select {
	case <-job.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.Equal(t, []string{"A1"}, job.seen)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&observed) == 2 }, time.Second, 5*time.Millisecond)
}

func TestLocalQueueRejectsUnknownType(t *testing.T) {
	q := NewLocalQueue(nil, QueueConfig{})
	require.NoError(t, q.Start())
	defer q.Stop(context.Background())
	assert.Error(t, q.Enqueue(context.Background(), "missing", nil))
}

func TestLocalQueueNotRunning(t *testing.T) {
	q := NewLocalQueue(nil, QueueConfig{})
	q.RegisterJob(&recordingJob{})
	assert.Error(t, q.Enqueue(context.Background(), "record", nil))
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload[args](json.RawMessage(`{"account_id":"X"}`))
	require.NoError(t, err)
	assert.Equal(t, "X", p.AccountID)

	p, err = ParsePayload[args](map[string]interface{}{"account_id": "Y"})
	require.NoError(t, err)
	assert.Equal(t, "Y", p.AccountID)

	p, err = ParsePayload[args](nil)
	require.NoError(t, err)
	assert.Equal(t, "", p.AccountID)

	_, err = ParsePayload[args](42)
	assert.Error(t, err)
}

func TestNewJobAdapter(t *testing.T) {
	done := make(chan string, 1)
	job := NewJob("settlement-job", "settlement", func(_ context.Context, payload interface{}) error {
		p, err := ParsePayload[args](payload)
		if err != nil {
			return err
		}
		done <- p.AccountID
		return nil
	})
	assert.Equal(t, "settlement-job", job.Name())
	assert.Equal(t, "settlement", job.Type())

	q := NewLocalQueue(nil, QueueConfig{Workers: 1})
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	defer q.Stop(context.Background())
	require.NoError(t, q.Enqueue(context.Background(), "settlement", map[string]interface{}{"account_id": "A7"}))

	select {
	case id := <-done:
		assert.Equal(t, "A7", id)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}
