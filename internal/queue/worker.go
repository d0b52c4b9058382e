package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gramvault/gramvault/internal/pkg/logger"
	"github.com/gramvault/gramvault/internal/refresher"
)

// Source yields refresh jobs. Satisfied by RedisQueue.
type Source interface {
	Dequeue(ctx context.Context, wait time.Duration) (*Job, error)
}

// Locker guards a profile against concurrent refreshes. Satisfied by
// RedisLocker; a nil Locker disables locking.
type Locker interface {
	Acquire(ctx context.Context, profileID string) (bool, error)
	Release(ctx context.Context, profileID string) error
}

// Runner executes a single refresh. Satisfied by *refresher.Refresher.
type Runner interface {
	Refresh(ctx context.Context, profileID string, force bool) (refresher.Outcome, error)
}

// Pool drains the queue with a fixed number of workers.
type Pool struct {
	source  Source
	locks   Locker
	runner  Runner
	workers int
	wait    time.Duration
}

func NewPool(source Source, locks Locker, runner Runner, workers int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	return &Pool{
		source:  source,
		locks:   locks,
		runner:  runner,
		workers: workers,
		wait:    5 * time.Second,
	}
}

// Run blocks until ctx is cancelled and all workers have drained.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) work(ctx context.Context, id int) {
	log := logger.With("worker", id)
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := p.source.Dequeue(ctx, p.wait)
		if err != nil {
			if errors.Is(err, ErrEmpty) || ctx.Err() != nil {
				continue
			}
			log.Error("dequeue failed", "error", err)
			if !sleepUnlessDone(ctx, time.Second) {
				return
			}
			continue
		}
		p.process(ctx, log, job)
	}
}

func (p *Pool) process(ctx context.Context, log *slog.Logger, job *Job) {
	if p.locks != nil {
		ok, err := p.locks.Acquire(ctx, job.ProfileID)
		if err != nil {
			log.Error("lock acquire failed", "profile_id", job.ProfileID, "error", err)
			return
		}
		if !ok {
			log.Info("profile already being refreshed, dropping job", "profile_id", job.ProfileID)
			return
		}
		defer func() {
			if err := p.locks.Release(context.Background(), job.ProfileID); err != nil {
				log.Warn("lock release failed", "profile_id", job.ProfileID, "error", err)
			}
		}()
	}

	outcome, err := p.runner.Refresh(ctx, job.ProfileID, job.Force)
	if err != nil {
		log.Warn("refresh finished with error",
			"profile_id", job.ProfileID,
			"outcome", string(outcome),
			"error", err,
		)
		return
	}
	log.Info("refresh finished",
		"profile_id", job.ProfileID,
		"outcome", string(outcome),
		"queued_for", time.Since(job.EnqueuedAt).Round(time.Millisecond).String(),
	)
}

func sleepUnlessDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
