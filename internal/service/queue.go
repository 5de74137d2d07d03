package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/infrastructure/logger"
	"github.com/bnema/reel/internal/metrics"
	"github.com/bnema/reel/internal/port"
	"github.com/bnema/reel/internal/validation"
)

var ErrQueueClosed = errors.New("queue is shut down")

const (
	outcomeCompleted = "completed"
	outcomeRetried   = "retried"
	outcomeFailed    = "failed"
)

type QueueConfig struct {
	Concurrency    int
	MaxRetries     int
	RetryBaseDelay time.Duration
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Concurrency:    2,
		MaxRetries:     domain.DefaultMaxRetries,
		RetryBaseDelay: 5 * time.Second,
	}
}

type QueueStatus struct {
	QueueLength    int  `json:"queue_length"`
	Processing     bool `json:"processing"`
	Active         int  `json:"active"`
	PendingRetries int  `json:"pending_retries"`
}

// Queue is an in-memory job list drained in batches of at most Concurrency
// jobs. Failed jobs go back to the head of the list after a linear backoff.
// Only the status of each video is persisted.
type Queue struct {
	processor Processor
	store     port.VideoStore
	events    port.EventPublisher
	metrics   *metrics.Metrics
	cfg       QueueConfig

	runCtx    context.Context
	cancelRun context.CancelFunc

	mu       sync.Mutex
	jobs     []*domain.Job
	draining bool
	active   int
	closed   bool
	retries  map[string]*time.Timer
	idle     chan struct{}
}

func NewQueue(processor Processor, store port.VideoStore, events port.EventPublisher, m *metrics.Metrics, cfg QueueConfig) *Queue {
	defaults := DefaultQueueConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.Concurrency
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.RetryBaseDelay < 0 {
		cfg.RetryBaseDelay = defaults.RetryBaseDelay
	}

	runCtx, cancel := context.WithCancel(context.Background())
	return &Queue{
		processor: processor,
		store:     store,
		events:    events,
		metrics:   m,
		cfg:       cfg,
		runCtx:    runCtx,
		cancelRun: cancel,
		retries:   make(map[string]*time.Timer),
	}
}

// AddJob appends a fresh job to the tail and starts draining if the queue is
// idle. Blob keys default to videos/<videoID>.
func (q *Queue) AddJob(videoID, sourceURL string, opts domain.ProcessingOptions) (*domain.Job, error) {
	if opts.OutputPrefix == "" {
		opts.OutputPrefix = validation.JoinKey("videos", videoID)
	}
	job := domain.NewJob(videoID, sourceURL, opts, q.cfg.MaxRetries)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}
	q.jobs = append(q.jobs, job)
	q.startDrainLocked()

	logger.Info.Printf("job admitted: id=%s video=%s queued=%d", job.ID, videoID, len(q.jobs))
	return job, nil
}

func (q *Queue) Status() QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	return QueueStatus{
		QueueLength:    len(q.jobs),
		Processing:     q.draining,
		Active:         q.active,
		PendingRetries: len(q.retries),
	}
}

// Wait blocks until nothing is queued, running or waiting for a retry.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	if !q.busyLocked() {
		q.mu.Unlock()
		return nil
	}
	idle := q.idleLocked()
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops admission and drops scheduled retries; their videos stay
// pending until the next reconciliation. Running jobs are awaited. If ctx
// expires first they are canceled.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	for id, t := range q.retries {
		t.Stop()
		delete(q.retries, id)
	}
	left := len(q.jobs)
	q.signalIdleLocked()
	q.mu.Unlock()

	if left > 0 {
		logger.Info.Printf("queue shutting down with %d jobs left pending", left)
	}

	if err := q.Wait(ctx); err != nil {
		q.cancelRun()
		return err
	}
	q.cancelRun()
	return nil
}

func (q *Queue) startDrainLocked() {
	q.metrics.SetQueueLength(len(q.jobs))
	if q.draining {
		return
	}
	q.draining = true
	go q.drain()
}

// drain takes up to Concurrency jobs from the head, runs them together and
// waits for all of them to settle before taking the next batch.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if q.closed || len(q.jobs) == 0 {
			q.draining = false
			q.signalIdleLocked()
			q.mu.Unlock()
			return
		}

		n := min(q.cfg.Concurrency, len(q.jobs))
		batch := make([]*domain.Job, n)
		copy(batch, q.jobs[:n])
		q.jobs = q.jobs[n:]
		q.active += n
		q.metrics.SetQueueLength(len(q.jobs))
		q.mu.Unlock()

		var wg sync.WaitGroup
		for _, job := range batch {
			wg.Add(1)
			go func() {
				defer wg.Done()
				q.runJob(job)
			}()
		}
		wg.Wait()
	}
}

func (q *Queue) runJob(job *domain.Job) {
	defer func() {
		q.mu.Lock()
		q.active--
		q.mu.Unlock()
	}()

	// Store writes outlive a canceled run so the final status is recorded.
	storeCtx := context.WithoutCancel(q.runCtx)
	started := time.Now()
	q.metrics.JobStarted()

	q.setStatus(storeCtx, job, domain.StatusProcessing, "")
	logger.Info.Printf("processing job %s (video=%s, attempt=%d/%d)", job.ID, job.VideoID, job.RetryCount+1, job.MaxRetries)

	result, err := q.processor.ProcessVideo(q.runCtx, job.SourceURL, job.Options)
	if err == nil {
		if storeErr := q.store.MarkCompleted(storeCtx, job.VideoID, result); storeErr != nil {
			logger.Error.Printf("failed to persist result for video %s: %v", job.VideoID, storeErr)
		}
		q.publish(job, domain.StatusCompleted, "")
		q.metrics.JobFinished(outcomeCompleted, time.Since(started))
		logger.Info.Printf("job %s completed: %d formats, %d thumbnails", job.ID, len(result.Formats), len(result.Thumbnails))
		return
	}

	job.RetryCount++
	if job.RetryCount < job.MaxRetries {
		delay := q.cfg.RetryBaseDelay * time.Duration(job.RetryCount)
		logger.Warn.Printf("job %s failed (attempt %d/%d), retrying in %s: %v", job.ID, job.RetryCount, job.MaxRetries, delay, err)
		q.setStatus(storeCtx, job, domain.StatusPending, err.Error())
		q.scheduleRetry(job, delay)
		q.metrics.JobFinished(outcomeRetried, time.Since(started))
		return
	}

	logger.Error.Printf("job %s failed permanently after %d attempts: %v", job.ID, job.RetryCount, err)
	q.setStatus(storeCtx, job, domain.StatusFailed, err.Error())
	q.metrics.JobFinished(outcomeFailed, time.Since(started))
}

// scheduleRetry puts job back at the head of the queue once delay elapses.
func (q *Queue) scheduleRetry(job *domain.Job, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		logger.Info.Printf("retry of job %s dropped, queue is shut down", job.ID)
		return
	}

	q.retries[job.ID] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()

		if _, ok := q.retries[job.ID]; !ok {
			return
		}
		delete(q.retries, job.ID)
		if q.closed {
			q.signalIdleLocked()
			return
		}
		q.jobs = append([]*domain.Job{job}, q.jobs...)
		q.startDrainLocked()
	})
}

func (q *Queue) setStatus(ctx context.Context, job *domain.Job, status domain.ProcessingStatus, errMsg string) {
	if err := q.store.UpdateStatus(ctx, job.VideoID, status, errMsg); err != nil {
		logger.Error.Printf("failed to set video %s to %s: %v", job.VideoID, status, err)
	}
	q.publish(job, status, errMsg)
}

func (q *Queue) publish(job *domain.Job, status domain.ProcessingStatus, message string) {
	if q.events == nil {
		return
	}
	q.events.Publish(job.VideoID, domain.NewStatusEvent(job.VideoID, status, message, job.RetryCount))
}

func (q *Queue) busyLocked() bool {
	return q.draining || q.active > 0 || len(q.retries) > 0 || (!q.closed && len(q.jobs) > 0)
}

// idleLocked returns the channel closed when the queue next becomes idle.
func (q *Queue) idleLocked() chan struct{} {
	if q.idle == nil {
		q.idle = make(chan struct{})
	}
	return q.idle
}

func (q *Queue) signalIdleLocked() {
	if q.idle != nil && !q.busyLocked() {
		close(q.idle)
		q.idle = nil
	}
}
