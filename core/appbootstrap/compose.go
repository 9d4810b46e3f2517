package appbootstrap

import (
	"database/sql"

	"kestrel-irp/api"
	"kestrel-irp/config"
	"kestrel-irp/core/rbac"
	"kestrel-irp/core/store"
	"kestrel-irp/core/timeline"
	"kestrel-irp/core/utils"
)

// BackgroundWorker is anything started alongside the HTTP server and
// stopped on shutdown.
type BackgroundWorker interface {
	Start()
	Stop()
}

type runtimeComposition struct {
	serverDeps api.ServerDeps
	workers    []BackgroundWorker
}

func composeRuntime(cfg *config.AppConfig, db *sql.DB, logger *utils.Logger) (*runtimeComposition, error) {
	events := store.NewEventsStore(db, cfg.DBDriver)
	analysis := store.NewAnalysisStore(db, cfg.DBDriver)
	timelineSvc := timeline.NewService(cfg, events, analysis, logger)
	retention := timeline.NewRetentionScheduler(cfg.Timeline, analysis, logger)
	policy, err := rbac.NewPolicy()
	if err != nil {
		return nil, err
	}

	return &runtimeComposition{
		serverDeps: api.ServerDeps{
			Events:   events,
			Analysis: analysis,
			Timeline: timelineSvc,
			Policy:   policy,
		},
		workers: []BackgroundWorker{retention},
	}, nil
}
