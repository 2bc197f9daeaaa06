package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"Pasture/pkg/logger"

	"github.com/google/uuid"
)

// LocalQueue runs jobs on in-process workers. Retries are re-enqueued after
// RetryDelay; messages over the limit are dropped with an error log.
type LocalQueue struct {
	logger   *logger.Logger
	config   QueueConfig
	observer Observer

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	msgs    chan Message
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

type LocalQueueOption func(*LocalQueue)

func WithLocalObserver(o Observer) LocalQueueOption {
	return func(q *LocalQueue) { q.observer = o }
}

func NewLocalQueue(lgr *logger.Logger, config QueueConfig, opts ...LocalQueueOption) *LocalQueue {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 64
	}
	if lgr == nil {
		lgr = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &LocalQueue{
		logger: lgr,
		config: config,
		jobs:   make(map[string]Job),
		msgs:   make(chan Message, config.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

func (q *LocalQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.jobs[job.Type()]; exists {
		q.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	q.jobs[job.Type()] = job
	q.logger.Debug("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

func (q *LocalQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return fmt.Errorf("queue already running")
	}
	q.running = true
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.logger.Info("local queue started", logger.Int("workers", q.config.Workers))
	return nil
}

// Stop cancels in-flight jobs and waits for workers up to ctx.
func (q *LocalQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		q.logger.Info("local queue stopped")
		return nil
	}
}

func (q *LocalQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	running := q.running
	_, known := q.jobs[msgType]
	q.mu.RUnlock()
	if !running {
		return fmt.Errorf("queue not running")
	}
	if !known {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}
	msg := Message{ID: uuid.NewString(), Type: msgType, Payload: payload, Timestamp: time.Now()}
	select {
	case q.msgs <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.ctx.Done():
		return fmt.Errorf("queue stopped")
	}
}

func (q *LocalQueue) worker(id int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case msg := <-q.msgs:
			q.process(msg)
		}
	}
}

func (q *LocalQueue) process(msg Message) {
	q.mu.RLock()
	job, ok := q.jobs[msg.Type]
	q.mu.RUnlock()
	if !ok {
		q.logger.Error("no job found", logger.String("type", msg.Type), logger.String("id", msg.ID))
		return
	}

	start := time.Now()
	err := job.Handle(q.ctx, msg.Payload)
	if q.observer != nil {
		q.observer(job.Name(), time.Since(start), err)
	}
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	q.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))
	if msg.Attempts >= q.config.RetryLimit {
		q.logger.Error("max retries reached", logger.String("id", msg.ID), logger.String("job", job.Name()))
		return
	}
	msg.Attempts++
	time.AfterFunc(q.config.RetryDelay, func() {
		select {
		case q.msgs <- msg:
		case <-q.ctx.Done():
		}
	})
}
