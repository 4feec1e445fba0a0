package tasksync

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/flowtask/taskd/internal/metrics"
	"github.com/flowtask/taskd/internal/models"
	"github.com/flowtask/taskd/internal/repositories"
)

type Options struct {
	Interval    time.Duration
	BatchSize   int
	Concurrency int
	// RateLimit is the number of pushes per second across all mappings.
	RateLimit float64
}

type Worker struct {
	changes   repositories.ChangeRepository
	mappings  repositories.MappingRepository
	tasks     repositories.TaskRepository
	providers map[string]Provider
	limiter   *rate.Limiter
	opts      Options
	now       func() time.Time
}

func NewWorker(
	changes repositories.ChangeRepository,
	mappings repositories.MappingRepository,
	tasks repositories.TaskRepository,
	providers []Provider,
	opts Options,
) *Worker {
	bySource := make(map[string]Provider, len(providers))
	for _, p := range providers {
		bySource[p.Source()] = p
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	return &Worker{
		changes:   changes,
		mappings:  mappings,
		tasks:     tasks,
		providers: bySource,
		limiter:   rate.NewLimiter(limit, 1),
		opts:      opts,
		now:       time.Now,
	}
}

// Run syncs every interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log.Printf("[sync] worker started interval=%s batch=%d concurrency=%d", w.opts.Interval, w.opts.BatchSize, w.opts.Concurrency)
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()
	for {
		if err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[sync][err] %v", err)
		}
		select {
		case <-ctx.Done():
			log.Printf("[sync] worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce pushes one batch for every active mapping. Mapping failures are
// logged and do not affect the others.
func (w *Worker) RunOnce(ctx context.Context) error {
	mappings, err := w.mappings.ListActive(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Concurrency)
	for _, m := range mappings {
		g.Go(func() error {
			n, err := w.syncMapping(gctx, m)
			if err != nil {
				log.Printf("[sync][mapping][err] mapping=%s user=%s: %v", m.ID, m.UserID, err)
				return nil
			}
			if n > 0 {
				log.Printf("[sync][mapping] mapping=%s synced=%d", m.ID, n)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (w *Worker) syncMapping(ctx context.Context, m models.TaskListMapping) (int, error) {
	provider, ok := w.providers[m.Source]
	if !ok {
		return 0, nil
	}
	pending, err := w.changes.ListPending(ctx, m.UserID, m.ID, w.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	var synced []string
	var pushErr error
	for _, change := range pending {
		if err := w.limiter.Wait(ctx); err != nil {
			pushErr = err
			break
		}
		if err := w.push(ctx, provider, m, change); err != nil {
			metrics.Pushes.WithLabelValues(m.Source, "error").Inc()
			pushErr = err
			break
		}
		metrics.Pushes.WithLabelValues(m.Source, "ok").Inc()
		synced = append(synced, change.ID)
	}

	if len(synced) > 0 {
		now := w.now()
		if err := w.changes.MarkSynced(ctx, m.UserID, synced, m.ProviderID, now); err != nil {
			return 0, err
		}
		if err := w.mappings.TouchSynced(ctx, m.UserID, m.ID, now); err != nil {
			log.Printf("[sync][mapping][warn] touch mapping=%s: %v", m.ID, err)
		}
	}
	return len(synced), pushErr
}

func (w *Worker) push(ctx context.Context, provider Provider, m models.TaskListMapping, change models.TaskChange) error {
	var task *models.Task
	if change.ChangeType != models.ChangeDelete {
		var err error
		task, err = w.tasks.FindByID(ctx, m.UserID, change.TaskID)
		if err != nil {
			return err
		}
		if task == nil {
			// removed since; its DELETE entry follows
			return nil
		}
	}

	ref, err := provider.Push(ctx, m, change, task)
	if err != nil {
		return err
	}
	if ref == nil || task == nil {
		return nil
	}
	ref.SyncedAt = w.now()
	return w.tasks.SetExternalRef(ctx, m.UserID, task.ID, *ref)
}
