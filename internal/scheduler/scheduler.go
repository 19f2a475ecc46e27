package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"mangamirror/internal/bulk"
	"mangamirror/internal/failover"
	"mangamirror/internal/reconcile"
	"mangamirror/internal/slug"
	"mangamirror/internal/store"
	"mangamirror/internal/sync"
)

// ErrBusy is returned by Trigger when another maintenance pass is still
// running.
var ErrBusy = errors.New("another maintenance pass is running")

// Scheduler owns the recurring catalog maintenance. All store-writing
// passes (sync, migration, dedup, domain rewrite, deep clean) are
// serialized through one mutex-like gate: none of them is safe to run
// concurrently against the same slug and the store takes no locks of its
// own.
type Scheduler struct {
	Store      *store.Store
	Engine     *sync.Engine
	Detector   *failover.Detector
	Migrator   *slug.Migrator
	Reconciler *reconcile.Pass

	SyncInterval      time.Duration
	DeepCleanInterval time.Duration
	MigrateSlugs      bool

	gate chan struct{}
}

func New(st *store.Store, engine *sync.Engine, det *failover.Detector, mig *slug.Migrator, rec *reconcile.Pass) *Scheduler {
	return &Scheduler{
		Store:             st,
		Engine:            engine,
		Detector:          det,
		Migrator:          mig,
		Reconciler:        rec,
		SyncInterval:      30 * time.Minute,
		DeepCleanInterval: 7 * 24 * time.Hour,
		gate:              make(chan struct{}, 1),
	}
}

// Run blocks until ctx is canceled, executing the pipeline immediately
// and then on every tick, plus the deep clean on its own slower tick.
// No error from a pass ever propagates out of the loop; the scheduler
// logs and waits for the next tick.
func (s *Scheduler) Run(ctx context.Context) {
	syncTicker := time.NewTicker(s.SyncInterval)
	defer syncTicker.Stop()
	cleanTicker := time.NewTicker(s.DeepCleanInterval)
	defer cleanTicker.Stop()

	if err := s.RunPipeline(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[scheduler] pipeline: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-syncTicker.C:
			if err := s.RunPipeline(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[scheduler] pipeline: %v", err)
			}
		case <-cleanTicker.C:
			if err := s.RunDeepClean(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[scheduler] deep clean: %v", err)
			}
		}
	}
}

func (s *Scheduler) acquire(ctx context.Context) error {
	select {
	case s.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) tryAcquire() bool {
	select {
	case s.gate <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Scheduler) release() { <-s.gate }

// RunPipeline executes one full maintenance cycle in order: domain
// check, slug migration (when enabled), sync pass, dedup pass. It waits
// for any in-flight pass to finish first.
func (s *Scheduler) RunPipeline(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return s.pipeline(ctx)
}

func (s *Scheduler) pipeline(ctx context.Context) error {
	if newDomain, err := s.Detector.Check(ctx); err != nil {
		log.Printf("[scheduler] domain check: %v", err)
	} else if newDomain != "" {
		s.Engine.Site.SetDomain(newDomain)
	}

	if s.MigrateSlugs {
		if _, _, err := s.Migrator.Run(ctx); err != nil {
			log.Printf("[scheduler] slug migration: %v", err)
		}
	}

	if _, err := s.Engine.Run(ctx); err != nil {
		return err
	}

	if _, err := s.Reconciler.Run(ctx); err != nil {
		return err
	}
	return nil
}

// Pass names accepted by Trigger.
const (
	PassSync         = "sync"
	PassReconcile    = "reconcile"
	PassMigrateSlugs = "migrate-slugs"
	PassCheckDomain  = "check-domain"
	PassDeepClean    = "deep-clean"
)

// Trigger starts the named pass in the background and returns as soon as
// the gate is held. It returns ErrBusy without starting anything when
// another pass is already running, so the admin surface can answer 409.
func (s *Scheduler) Trigger(name string) error {
	var pass func(ctx context.Context) error
	switch name {
	case PassSync:
		pass = s.pipeline
	case PassReconcile:
		pass = func(ctx context.Context) error {
			_, err := s.Reconciler.Run(ctx)
			return err
		}
	case PassMigrateSlugs:
		pass = func(ctx context.Context) error {
			_, _, err := s.Migrator.Run(ctx)
			return err
		}
	case PassCheckDomain:
		pass = func(ctx context.Context) error {
			newDomain, err := s.Detector.Check(ctx)
			if err == nil && newDomain != "" {
				s.Engine.Site.SetDomain(newDomain)
			}
			return err
		}
	case PassDeepClean:
		pass = s.deepClean
	default:
		return errors.New("unknown pass " + name)
	}

	if !s.tryAcquire() {
		return ErrBusy
	}
	go func() {
		defer s.release()
		if err := pass(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[scheduler] %s: %v", name, err)
		}
	}()
	return nil
}

// RunDeepClean sweeps orphaned chapter content through the rate-limited
// mutator. Orphans accumulate when dedup deletes a title whose content
// writes raced an aborted pass.
func (s *Scheduler) RunDeepClean(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return s.deepClean(ctx)
}

func (s *Scheduler) deepClean(ctx context.Context) error {
	orphans, err := s.Store.OrphanContentKeys(ctx)
	if err != nil {
		return err
	}
	if len(orphans) == 0 {
		log.Printf("[scheduler] deep clean: nothing to sweep")
		return nil
	}

	keys := make([]string, 0, len(orphans))
	for _, k := range orphans {
		keys = append(keys, k.String())
	}

	mut := bulk.NewMutator()
	_, err = mut.Run(ctx, keys, func(ctx context.Context, raw string) error {
		k, err := store.ParseKey(raw)
		if err != nil {
			return err
		}
		return s.Store.DeleteKey(ctx, k)
	})
	return err
}
