package queue

import "context"

// Job handles every message of one Type. Name identifies it in logs.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload interface{}) error
}

// HandlerFunc is the body of a job.
type HandlerFunc func(ctx context.Context, payload interface{}) error

type funcJob struct {
	name, typ string
	fn        HandlerFunc
}

// NewJob adapts fn to Job.
func NewJob(name, msgType string, fn HandlerFunc) Job {
	return &funcJob{name: name, typ: msgType, fn: fn}
}

func (j *funcJob) Name() string { return j.name }
func (j *funcJob) Type() string { return j.typ }

func (j *funcJob) Handle(ctx context.Context, payload interface{}) error {
	return j.fn(ctx, payload)
}
