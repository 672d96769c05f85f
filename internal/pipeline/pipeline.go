// Package pipeline implements the bounded producer/consumer transfer
// pipeline (spec §4.H): a single producer emits FileJob values onto a
// capacity-bounded channel, a consumer invokes a caller-supplied
// process function per job, retryable failures go onto a local FIFO
// drained after the channel closes, and cooperative cancellation plus
// atomic progress counters are visible through a Handle.
//
// Grounded on the teacher's internal/receiver/do.go Do, which races a
// generator/receiver pair under golang.org/x/sync/errgroup with a
// context.Context for cancellation; generalized from that fixed two-task
// shape into a configurable-capacity job channel plus a retry queue the
// teacher's version never had.
package pipeline

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultJobChannelCapacity is the baseline channel size before clamping,
// per spec §4.H.
const DefaultJobChannelCapacity = 32

// clampCapacity enforces the spec's [1, 8*DefaultJobChannelCapacity] bound.
func clampCapacity(requested int) int {
	const max = 8 * DefaultJobChannelCapacity
	switch {
	case requested <= 0:
		return DefaultJobChannelCapacity
	case requested > max:
		return max
	default:
		return requested
	}
}

// FileJob is one unit of work handed to process_fn.
type FileJob struct {
	Ndx     int
	Name    string
	Payload any // executor-defined per-file context (e.g. *localcopy.Entry)
	retries int
}

// retry increments the job's attempt count and reports whether another
// attempt is allowed under maxRetries; when exhausted it returns false and
// the caller must convert the outcome to PermanentError.
func (j *FileJob) retry(maxRetries int) bool {
	j.retries++
	return j.retries <= maxRetries
}

// OutcomeKind distinguishes the four TransferOutcome shapes.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeSkipped
	OutcomeRetryableError
	OutcomePermanentError
)

// TransferOutcome is the tagged result of processing one FileJob.
type TransferOutcome struct {
	Kind             OutcomeKind
	Ndx              int
	BytesTransferred int64
	Job              FileJob // valid for OutcomeRetryableError
	Err              error   // valid for OutcomeRetryableError/OutcomePermanentError
}

// ProcessFunc performs the actual transfer (or delta application) for one
// job. It returns a TransferOutcome describing the result; for
// OutcomeRetryableError/OutcomePermanentError the outcome's Err field
// carries the failure detail.
type ProcessFunc func(ctx context.Context, job FileJob) TransferOutcome

// Stats holds the pipeline's atomically-updated progress counters, read
// through Handle.Stats. Run hands out the Handle only after the run has
// finished, so the counters it reports are final (partial if the run was
// cancelled).
type Stats struct {
	FilesCompleted  int64
	BytesTransferred int64
	FilesSkipped    int64
	FilesFailed     int64
}

// Handle carries the counters of a Run. Run returns it together with the
// run's error once the run is over; a run still in flight is cancelled
// through the ctx passed to Run, not through its Handle.
type Handle struct {
	stats  Stats
	cancel context.CancelFunc
}

// Stats returns a point-in-time snapshot of the progress counters.
func (h *Handle) Stats() Stats {
	return Stats{
		FilesCompleted:   atomic.LoadInt64(&h.stats.FilesCompleted),
		BytesTransferred: atomic.LoadInt64(&h.stats.BytesTransferred),
		FilesSkipped:     atomic.LoadInt64(&h.stats.FilesSkipped),
		FilesFailed:      atomic.LoadInt64(&h.stats.FilesFailed),
	}
}

// Cancel cancels the context Run derived for the run. Run has already
// returned by the time a caller holds the Handle, so this releases that
// context and does not interrupt any work.
func (h *Handle) Cancel() { h.cancel() }

// Config bounds and tunes a Run.
type Config struct {
	ChannelCapacity int
	MaxRetries      int
}

// Run drives jobs through process in FileList order: a single producer
// feeds a bounded channel, a single consumer invokes process per job and
// pushes retryable failures to a local FIFO that is drained only after the
// channel is closed (so retries never re-enter the producer channel and
// cannot deadlock against it). It returns once every job — including every
// retry — has reached a terminal outcome, or the context is cancelled.
func Run(ctx context.Context, jobs []FileJob, process ProcessFunc, cfg Config) (*Handle, error) {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel}

	capacity := clampCapacity(cfg.ChannelCapacity)
	ch := make(chan FileJob, capacity)

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		defer close(ch)
		for _, j := range jobs {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ch <- j:
			}
		}
		return nil
	})

	eg.Go(func() error {
		var retryQueue []FileJob
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case job, ok := <-ch:
				if !ok {
				return drainRetries(ctx, &retryQueue, process, h, cfg.MaxRetries)
			}
				applyOutcome(h, process(ctx, job), &retryQueue, cfg.MaxRetries)
			}
		}
	})

	err := eg.Wait()
	return h, err
}

// drainRetries processes the local retry FIFO after the producer channel
// has closed, re-invoking process for each entry until it either succeeds
// or exhausts job.retry's cap.
func drainRetries(ctx context.Context, queue *[]FileJob, process ProcessFunc, h *Handle, maxRetries int) error {
	for len(*queue) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		job := (*queue)[0]
		*queue = (*queue)[1:]
		applyOutcome(h, process(ctx, job), queue, maxRetries)
	}
	return nil
}

func applyOutcome(h *Handle, out TransferOutcome, retryQueue *[]FileJob, maxRetries int) {
	switch out.Kind {
	case OutcomeSuccess:
		atomic.AddInt64(&h.stats.FilesCompleted, 1)
		atomic.AddInt64(&h.stats.BytesTransferred, out.BytesTransferred)
	case OutcomeSkipped:
		atomic.AddInt64(&h.stats.FilesSkipped, 1)
	case OutcomeRetryableError:
		job := out.Job
		if maxRetries <= 0 {
			maxRetries = 8
		}
		if job.retry(maxRetries) {
			*retryQueue = append(*retryQueue, job)
		} else {
			atomic.AddInt64(&h.stats.FilesFailed, 1)
		}
	case OutcomePermanentError:
		atomic.AddInt64(&h.stats.FilesFailed, 1)
	}
}
