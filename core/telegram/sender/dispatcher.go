// Package sender runs outbound Telegram calls off the update goroutine.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/coffeebot/core/logger"
	"github.com/m3rciful/coffeebot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was dropped.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

const component = "tg.sender"

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on a single job including retries.
	MaxDuration time.Duration
}

// Job is a single outbound call. Run must be safe to repeat when retries are enabled.
type Job struct {
	Action string
	ChatID int64
	Run    func(ctx context.Context) error
}

type queued struct {
	ctx context.Context
	job Job
}

// Dispatcher executes jobs on a fixed worker pool with bounded retries.
type Dispatcher struct {
	opts Options
	jobs chan queued

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	done atomic.Uint64
	errs atomic.Uint64
}

// NewDispatcher starts the workers; zero options fall back to defaults.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 10 * time.Second
	}

	d := &Dispatcher{opts: opts, jobs: make(chan queued, opts.QueueSize)}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue schedules job without blocking. The context is used for log
// correlation only; cancellation of the caller does not cancel the job.
func (d *Dispatcher) Enqueue(ctx context.Context, job Job) error {
	if job.Run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- queued{ctx: context.WithoutCancel(ctx), job: job}:
		return nil
	default:
		d.errs.Add(1)
		logger.Warn(ctx, component, "send.drop", slog.String("action", job.Action), slog.String("error", ErrQueueFull.Error()))
		return ErrQueueFull
	}
}

// ErrorCount returns the number of jobs that ultimately failed or were dropped.
func (d *Dispatcher) ErrorCount() uint64 { return d.errs.Load() }

// DoneCount returns the number of jobs that completed successfully.
func (d *Dispatcher) DoneCount() uint64 { return d.done.Load() }

// Close stops accepting jobs and waits for queued ones to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for q := range d.jobs {
		d.run(q.ctx, q.job)
	}
}

func (d *Dispatcher) run(ctx context.Context, job Job) {
	runCtx, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = job.Run(runCtx); err == nil {
			d.done.Add(1)
			attrs := jobAttrs(job, start)
			if attempt > 1 {
				attrs = append(attrs, slog.Int("attempt", attempt))
			}
			logger.Debug(ctx, component, "send.success", attrs...)
			return
		}
		if attempt == attempts || !netutil.ShouldRetry(err) {
			break
		}
		delay := d.opts.RetryBackoff * time.Duration(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-runCtx.Done():
			timer.Stop()
			err = runCtx.Err()
			attempt = attempts
		case <-timer.C:
			logger.Debug(ctx, component, "send.retry", append(jobAttrs(job, start),
				slog.Int("attempt", attempt), slog.Duration("delay", delay))...)
		}
	}

	d.errs.Add(1)
	logger.Warn(ctx, component, "send.fail", append(jobAttrs(job, start),
		slog.String("error", netutil.Redact(err)),
		slog.String("error_kind", netutil.Kind(err)),
		slog.Int("attempts", attempts),
	)...)
}

func jobAttrs(job Job, start time.Time) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", job.Action)}
	if job.ChatID != 0 {
		attrs = append(attrs, slog.Int64("target_chat_id", job.ChatID))
	}
	return append(attrs, slog.Duration("elapsed", time.Since(start)))
}
