package main

import (
	"context"
	"database/sql"
	"fmt"

	"mangamirror/internal/events"
	"mangamirror/internal/failover"
	"mangamirror/internal/reconcile"
	"mangamirror/internal/scheduler"
	"mangamirror/internal/scraper"
	"mangamirror/internal/slug"
	"mangamirror/internal/store"
	"mangamirror/internal/sync"
	"mangamirror/pkg/database"
	"mangamirror/pkg/utils"
)

// app bundles everything the commands share. Every command builds one,
// uses what it needs and closes it.
type app struct {
	cfg     utils.Config
	db      *sql.DB
	store   *store.Store
	site    *scraper.Themesia
	hub     *events.Hub
	engine  *sync.Engine
	sched   *scheduler.Scheduler
	migrate *slug.Migrator
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := utils.LoadConfig()
	if err != nil {
		return nil, err
	}

	dbCfg := database.DefaultConfig()
	if cfg.DBPath != "" {
		dbCfg.Path = cfg.DBPath
	}
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migrate failed: %w", err)
	}

	st := store.New(db)

	// seed the stored domain from config on first run; afterwards the
	// failover detector owns it
	domain, err := st.SourceDomain(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if domain == "" {
		domain = cfg.SourceDomain
		if domain == "" {
			_ = db.Close()
			return nil, fmt.Errorf("no source domain configured")
		}
		if err := st.SetSourceDomain(ctx, domain); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	site := scraper.NewThemesia(domain)
	hub := events.NewHub()
	engine := &sync.Engine{Store: st, Site: site, Events: hub, ResolveContent: true}
	detector := failover.NewDetector(st, hub)
	migrator := &slug.Migrator{Store: st}
	reconciler := &reconcile.Pass{Store: st}

	sched := scheduler.New(st, engine, detector, migrator, reconciler)
	sched.SyncInterval = cfg.SyncInterval
	sched.DeepCleanInterval = cfg.DeepCleanInterval
	sched.MigrateSlugs = cfg.MigrateSlugs

	return &app{
		cfg:     cfg,
		db:      db,
		store:   st,
		site:    site,
		hub:     hub,
		engine:  engine,
		sched:   sched,
		migrate: migrator,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
