// Package plugin implements the post-write enrichment-callback registry:
// a bounded worker pool that invokes registered Enrichers after a log
// append or document change, with a retry budget and non-propagating
// failure handling surfaced into the caller's warnings.
package plugin

import (
	"context"
	"fmt"
	"time"

	"github.com/kdlbs/scribe-mcp/internal/storage"
)

// Enricher is a post-write callback (e.g. a vector indexer). Either method
// may be a no-op for enrichers that only care about one event kind.
type Enricher interface {
	Name() string
	PostAppend(ctx context.Context, entry storage.LogEntry) error
	PostDocChange(ctx context.Context, change storage.DocumentChange, newContent string) error
}

// Kind discriminates a queued Job's payload.
type Kind string

const (
	KindAppend     Kind = "append"
	KindDocChange  Kind = "doc_change"
)

// Job is one unit of enrichment work.
type Job struct {
	Kind       Kind
	Entry      storage.LogEntry
	Change     storage.DocumentChange
	NewContent string

	done chan []string // per-job completion signal carrying failure warnings
}

// Registry runs a bounded pool of workers that invoke every registered
// Enricher for each submitted Job, retrying failures with exponential
// backoff up to a fixed attempt budget.
type Registry struct {
	enrichers   []Enricher
	queue       chan Job
	workers     int
	maxAttempts int
	baseBackoff time.Duration
}

// NewRegistry constructs a Registry with the given worker count and queue
// depth. Call Start before Submit.
func NewRegistry(workers, queueDepth int) *Registry {
	if workers <= 0 {
		workers = 2
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Registry{
		queue:       make(chan Job, queueDepth),
		workers:     workers,
		maxAttempts: 3,
		baseBackoff: 200 * time.Millisecond,
	}
}

// Register adds an Enricher. Not safe to call concurrently with Start.
func (r *Registry) Register(e Enricher) {
	r.enrichers = append(r.enrichers, e)
}

// Start launches the worker pool. Workers run until ctx is cancelled.
func (r *Registry) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		go r.worker(ctx)
	}
}

func (r *Registry) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-r.queue:
			warnings := r.runJob(ctx, job)
			if job.done != nil {
				select {
				case job.done <- warnings:
				default:
					// Submit already gave up waiting; drop.
				}
			}
		}
	}
}

func (r *Registry) runJob(ctx context.Context, job Job) []string {
	var warnings []string
	for _, e := range r.enrichers {
		if err := r.runWithRetry(ctx, e, job); err != nil {
			warnings = append(warnings, fmt.Sprintf("enrichment %q failed: %v", e.Name(), err))
		}
	}
	return warnings
}

func (r *Registry) runWithRetry(ctx context.Context, e Enricher, job Job) error {
	var lastErr error
	backoff := r.baseBackoff
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		var err error
		switch job.Kind {
		case KindAppend:
			err = e.PostAppend(ctx, job.Entry)
		case KindDocChange:
			err = e.PostDocChange(ctx, job.Change, job.NewContent)
		}
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == r.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}

// Submit enqueues job and waits up to waitTimeout for it to complete,
// returning any enricher failure messages gathered within that window. If
// the queue is full the job is dropped and a single warning is returned.
// If processing does not finish within waitTimeout, the job keeps running
// in the background (per spec, enrichment is asynchronous) and a
// "still processing" note is appended.
func (r *Registry) Submit(job Job, waitTimeout time.Duration) []string {
	if len(r.enrichers) == 0 {
		return nil
	}
	job.done = make(chan []string, 1)

	select {
	case r.queue <- job:
	default:
		return []string{"enrichment queue full, job dropped"}
	}

	if waitTimeout <= 0 {
		return nil
	}
	select {
	case warnings := <-job.done:
		return warnings
	case <-time.After(waitTimeout):
		return []string{"enrichment still processing in background"}
	}
}
