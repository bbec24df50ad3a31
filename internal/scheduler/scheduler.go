package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	DefaultInterval    = 15 * time.Minute
	DefaultSyncTimeout = 2 * time.Minute
)

// Refresher reloads the catalog snapshots of the given subjects.
type Refresher interface {
	RefreshAll(ctx context.Context, subjectIDs []string) error
}

// Scheduler keeps the configured subjects' catalog snapshots warm so the
// portal rarely pays for a cold fetch.
type Scheduler struct {
	refresher   Refresher
	subjects    []string
	interval    time.Duration
	syncTimeout time.Duration

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = d
	}
}

func WithSyncTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.syncTimeout = d
	}
}

func New(r Refresher, subjects []string, opts ...Option) *Scheduler {
	sch := &Scheduler{
		refresher:   r,
		subjects:    subjects,
		interval:    DefaultInterval,
		syncTimeout: DefaultSyncTimeout,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(sch)
	}
	return sch
}

// Start runs the scheduler: immediate sync on startup, then every interval.
func (sch *Scheduler) Start(ctx context.Context) {
	sch.startOnce.Do(func() {
		ctx, sch.cancel = context.WithCancel(ctx)
		go sch.run(ctx)
	})
}

func (sch *Scheduler) Stop() {
	if sch.cancel != nil {
		sch.cancel()
		<-sch.done
	}
}

func (sch *Scheduler) run(ctx context.Context) {
	defer close(sch.done)

	if err := sch.SyncAll(ctx); err != nil {
		log.Printf("scheduler: initial sync failed: %v", err)
	}

	ticker := time.NewTicker(sch.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sch.SyncAll(ctx); err != nil {
				log.Printf("scheduler: periodic sync failed: %v", err)
			}
		}
	}
}

func (sch *Scheduler) SyncAll(ctx context.Context) error {
	if len(sch.subjects) == 0 {
		return nil
	}
	startTime := time.Now().UTC()

	syncCtx, cancel := context.WithTimeout(ctx, sch.syncTimeout)
	defer cancel()
	if err := sch.refresher.RefreshAll(syncCtx, sch.subjects); err != nil {
		return err
	}

	log.Printf("scheduler: refreshed %d subjects (took %v)",
		len(sch.subjects), time.Since(startTime).Round(time.Millisecond))
	return nil
}
