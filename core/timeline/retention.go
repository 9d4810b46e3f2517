package timeline

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"kestrel-irp/config"
	"kestrel-irp/core/store"
	"kestrel-irp/core/utils"
)

// RetentionScheduler prunes persisted analysis artifacts (patterns,
// gaps, clusters) older than the configured window. Events themselves
// are never touched.
type RetentionScheduler struct {
	cfg      config.TimelineConfig
	analysis store.AnalysisStore
	logger   *utils.Logger
	cron     *cron.Cron
}

func NewRetentionScheduler(cfg config.TimelineConfig, analysis store.AnalysisStore, logger *utils.Logger) *RetentionScheduler {
	return &RetentionScheduler{cfg: cfg, analysis: analysis, logger: logger}
}

func (s *RetentionScheduler) Start() {
	if s.cfg.RetentionDays <= 0 {
		return
	}
	schedule := s.cfg.RetentionSchedule
	if schedule == "" {
		schedule = "@daily"
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		if s.logger != nil {
			s.logger.Errorf("retention schedule %q: %v", schedule, err)
		}
		s.cron = nil
		return
	}
	s.cron.Start()
}

func (s *RetentionScheduler) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cron = nil
}

func (s *RetentionScheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)
	n, err := s.analysis.PruneBefore(ctx, cutoff)
	if err != nil {
		if s.logger != nil {
			s.logger.Errorf("analysis retention sweep: %v", err)
		}
		return
	}
	if n > 0 && s.logger != nil {
		s.logger.Infof("analysis retention: pruned %d rows older than %s", n, cutoff.Format(time.RFC3339))
	}
}
