package queue

import (
	"context"
	"time"

	"github.com/gramvault/gramvault/internal/model"
	"github.com/gramvault/gramvault/internal/pkg/logger"
)

// Sink accepts refresh jobs. Satisfied by RedisQueue.
type Sink interface {
	Enqueue(ctx context.Context, job Job) error
}

// ProfileLister returns the profiles enrolled in automatic refreshes.
type ProfileLister interface {
	ListAutoUpdate(ctx context.Context) ([]*model.Profile, error)
}

// Scheduler periodically sweeps auto-update profiles onto the queue.
type Scheduler struct {
	profiles ProfileLister
	sink     Sink
	interval time.Duration
}

func NewScheduler(profiles ProfileLister, sink Sink, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{profiles: profiles, sink: sink, interval: interval}
}

// Run performs an immediate sweep, then one per interval until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.sweep(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	profiles, err := s.profiles.ListAutoUpdate(ctx)
	if err != nil {
		logger.Error("scheduler: list auto-update profiles failed", "error", err)
		return
	}
	enqueued := 0
	for _, p := range profiles {
		if ctx.Err() != nil {
			return
		}
		job := Job{ProfileID: p.ID, EnqueuedAt: time.Now().UTC()}
		if err := s.sink.Enqueue(ctx, job); err != nil {
			logger.Warn("scheduler: enqueue failed", "profile_id", p.ID, "error", err)
			continue
		}
		enqueued++
	}
	logger.Info("scheduler: sweep complete", "candidates", len(profiles), "enqueued", enqueued)
}
