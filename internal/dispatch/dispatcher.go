package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rshade/graphbatch/internal/logging"
	"github.com/rshade/graphbatch/internal/record"
)

// Common dispatch errors.
var (
	ErrInvalidWorkerCount = errors.New("worker count must be >= 1")
	ErrInvalidOptions     = errors.New("invalid dispatch options")
	ErrNilProcessor       = errors.New("processor cannot be nil")
	ErrPoolClosed         = errors.New("dispatcher already used")
	ErrTaskTimeout        = errors.New("task timed out")
	ErrTaskPanic          = errors.New("task panicked")

	// ErrNotStarted marks a queued task that was dropped because the batch
	// was cancelled before a worker picked it up.
	ErrNotStarted = errors.New("not started")
)

// maxBackoff caps the exponential retry delay.
const maxBackoff = 30 * time.Second

// Processor handles a single record. Implementations must honour ctx; the
// per-task timeout is delivered through it.
type Processor interface {
	Process(ctx context.Context, rec record.Record) error
}

// ProcessorFunc adapts a plain function to Processor.
type ProcessorFunc func(ctx context.Context, rec record.Record) error

// Process calls f(ctx, rec).
func (f ProcessorFunc) Process(ctx context.Context, rec record.Record) error {
	return f(ctx, rec)
}

// ProgressCallback is invoked on the draining goroutine after every outcome.
// It must not block for long.
type ProgressCallback func(snapshot ProgressSnapshot)

// CompletionCallback receives the batch summary when the completion event fires.
type CompletionCallback func(summary Summary)

// Options sizes the pool and sets the per-task policy.
type Options struct {
	// Workers is the fixed number of worker goroutines. Zero means runtime.NumCPU().
	Workers int

	// QueueSize bounds the task queue. Zero means 2*Workers.
	QueueSize int

	// TaskTimeout limits each attempt. Zero means no timeout.
	TaskTimeout time.Duration

	// MaxRetries is the number of extra attempts after a failure.
	MaxRetries int

	// RetryBackoff is the delay before the first retry; it doubles per retry.
	RetryBackoff time.Duration
}

// DefaultOptions returns options sized to the host.
func DefaultOptions() Options {
	return Options{
		Workers:      runtime.NumCPU(),
		RetryBackoff: time.Second,
	}
}

func (o Options) normalize() (Options, error) {
	if o.Workers < 0 {
		return o, fmt.Errorf("%w: got %d", ErrInvalidWorkerCount, o.Workers)
	}
	if o.Workers == 0 {
		o.Workers = runtime.NumCPU()
	}

	var errs []error
	if o.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("queue size must be >= 0, got %d", o.QueueSize))
	}
	if o.TaskTimeout < 0 {
		errs = append(errs, fmt.Errorf("task timeout must be >= 0, got %s", o.TaskTimeout))
	}
	if o.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max retries must be >= 0, got %d", o.MaxRetries))
	}
	if o.RetryBackoff < 0 {
		errs = append(errs, fmt.Errorf("retry backoff must be >= 0, got %s", o.RetryBackoff))
	}
	if len(errs) > 0 {
		return o, fmt.Errorf("%w: %w", ErrInvalidOptions, errors.Join(errs...))
	}

	if o.QueueSize == 0 {
		o.QueueSize = 2 * o.Workers
	}
	return o, nil
}

// Dispatcher fans records out to a Processor.
type Dispatcher struct {
	processor Processor
	opts      Options

	onProgress ProgressCallback
	onComplete CompletionCallback

	used atomic.Bool
	once sync.Once
}

// New validates opts and returns a Dispatcher ready for one Run.
func New(processor Processor, opts Options) (*Dispatcher, error) {
	if processor == nil {
		return nil, ErrNilProcessor
	}
	normalized, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		processor: processor,
		opts:      normalized,
	}, nil
}

// WithProgressCallback sets a progress callback for the dispatcher.
func (d *Dispatcher) WithProgressCallback(callback ProgressCallback) *Dispatcher {
	d.onProgress = callback
	return d
}

// WithCompletionCallback sets the handler invoked when the completion event fires.
func (d *Dispatcher) WithCompletionCallback(callback CompletionCallback) *Dispatcher {
	d.onComplete = callback
	return d
}

// Options returns the effective (defaulted) options.
func (d *Dispatcher) Options() Options {
	return d.opts
}

// outcome is what a worker reports for one task.
type outcome struct {
	task     record.Task
	err      error
	attempts int
}

// Run processes every record and blocks until the pool has drained.
// Per-task failures are reported in Result.Failures, not as an error. When ctx
// is cancelled, submission stops, in-flight tasks observe the cancellation, and
// Run returns the partial Result together with ctx.Err().
func (d *Dispatcher) Run(ctx context.Context, records []record.Record) (*Result, error) {
	if !d.used.CompareAndSwap(false, true) {
		return nil, ErrPoolClosed
	}

	log := logging.ComponentLogger(*logging.FromContext(ctx), "dispatch")
	tasks := record.Tasks(records)
	progress := NewProgress(len(tasks))

	log.Info().
		Ctx(ctx).
		Str("operation", "run").
		Int("tasks", len(tasks)).
		Int("workers", d.opts.Workers).
		Int("queue_size", d.opts.QueueSize).
		Msg("dispatching batch")

	queue := make(chan record.Task, d.opts.QueueSize)
	outcomes := make(chan outcome, d.opts.Workers)

	var submitted atomic.Int64
	var g errgroup.Group

	g.Go(func() error {
		defer close(queue)
		for _, t := range tasks {
			if ctx.Err() != nil {
				return nil
			}
			select {
			case queue <- t:
				submitted.Add(1)
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})

	for range d.opts.Workers {
		g.Go(func() error {
			for t := range queue {
				outcomes <- d.execute(ctx, t)
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(outcomes)
	}()

	result := &Result{Completed: make([]int64, 0, len(tasks))}
	interrupted := 0
	for o := range outcomes {
		if o.err != nil {
			if errors.Is(o.err, ErrNotStarted) || errors.Is(o.err, context.Canceled) {
				interrupted++
			}
			result.Failures = append(result.Failures, Failure{
				ID:       o.task.Record.ID,
				Group:    o.task.Record.Group,
				Err:      o.err,
				Attempts: o.attempts,
			})
			progress.AddFailed()
			log.Warn().
				Ctx(ctx).
				Int64("record_id", o.task.Record.ID).
				Str("group", o.task.Record.Group).
				Int("attempt", o.attempts).
				Err(o.err).
				Msg("task failed")
		} else {
			result.Completed = append(result.Completed, o.task.Record.ID)
			progress.AddCompleted()
			log.Debug().
				Ctx(ctx).
				Int64("record_id", o.task.Record.ID).
				Str("group", o.task.Record.Group).
				Int("attempt", o.attempts).
				Msg("task completed")
		}

		if d.onProgress != nil {
			d.onProgress(progress.Snapshot())
		}
	}

	result.Submitted = int(submitted.Load())
	result.Elapsed = progress.ElapsedTime()
	// A cancel that lands after the last outcome did not cut anything short.
	result.Cancelled = ctx.Err() != nil && (result.Submitted < len(tasks) || interrupted > 0)

	d.fire(result.Summary(len(tasks)))

	log.Info().
		Ctx(ctx).
		Str("operation", "run").
		Int("submitted", result.Submitted).
		Int("completed", len(result.Completed)).
		Int("failed", len(result.Failures)).
		Bool("cancelled", result.Cancelled).
		Dur("elapsed", result.Elapsed).
		Msg("batch drained")

	if result.Cancelled {
		return result, ctx.Err()
	}
	return result, nil
}

// fire publishes the completion event exactly once.
func (d *Dispatcher) fire(summary Summary) {
	d.once.Do(func() {
		if d.onComplete != nil {
			d.onComplete(summary)
		}
	})
}

// execute runs one task with retries, timeouts and panic recovery.
func (d *Dispatcher) execute(ctx context.Context, t record.Task) outcome {
	if err := ctx.Err(); err != nil {
		return outcome{task: t, err: fmt.Errorf("%w: %w", ErrNotStarted, err)}
	}

	var err error
	attempt := 0
	for attempt < d.opts.MaxRetries+1 {
		attempt++
		err = d.attempt(ctx, t.Record)
		if err == nil || ctx.Err() != nil || attempt > d.opts.MaxRetries {
			break
		}
		if waitErr := sleepCtx(ctx, backoff(d.opts.RetryBackoff, attempt)); waitErr != nil {
			break
		}
	}
	return outcome{task: t, err: err, attempts: attempt}
}

// attempt calls the processor once, bounding it with TaskTimeout and turning
// a panic into ErrTaskPanic.
func (d *Dispatcher) attempt(ctx context.Context, rec record.Record) (err error) {
	tctx := ctx
	if d.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, d.opts.TaskTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()

	err = d.processor.Process(tctx, rec)
	if err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrTaskTimeout, d.opts.TaskTimeout, err)
	}
	return err
}

// backoff returns base * 2^(attempt-1), capped at maxBackoff.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return min(delay, maxBackoff)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
