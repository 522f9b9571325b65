package queue

import (
	"context"
	"errors"
	"time"
)

// ErrSkipRetry, wrapped into a handler error, marks the task as failed for good.
var ErrSkipRetry = errors.New("skip retry")

// Task is a background job: a stable type name and an opaque payload.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. A non-nil error asks the backend to retry, so
// handlers must be idempotent.
type Handler func(ctx context.Context, task Task) error

// EnqueueOption is mapped best-effort onto the backend; zero values mean unspecified.
type EnqueueOption struct {
	Queue    string
	MaxRetry int
	Timeout  time.Duration
}

type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (id string, err error)
	Close() error
}

// Server runs workers. Run blocks until ctx is cancelled, then drains
// in-flight tasks.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
}
