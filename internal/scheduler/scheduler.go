package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mbodje/shelfwatch/internal/config"
	"github.com/mbodje/shelfwatch/internal/domain/models"
	"github.com/mbodje/shelfwatch/internal/service/pipeline"
	"github.com/mbodje/shelfwatch/pkg/clients/notify"
)

// Scheduler runs the analytics pipeline on a cron schedule, once per night
// for the previous day's snapshot.
type Scheduler struct {
	cron     *cron.Cron
	pipeline *pipeline.Service
	notifier notify.Client
	cfg      config.SchedulerConfig
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler instance. The notifier may be nil when
// no webhook is configured.
func NewScheduler(cfg config.SchedulerConfig, pipelineSvc *pipeline.Service, notifier notify.Client, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("unknown timezone, falling back to UTC", zap.String("timezone", cfg.Timezone))
		location = time.UTC
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(location)),
		pipeline: pipelineSvc,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start registers the nightly run and starts the cron loop.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.String("schedule", s.cfg.CronSchedule))

	_, err := s.cron.AddFunc(s.cfg.CronSchedule, s.runNightly)
	if err != nil {
		s.logger.Error("failed to schedule nightly pipeline run", zap.Error(err))
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

func (s *Scheduler) runNightly() {
	snapshotDate := models.DateOf(time.Now().AddDate(0, 0, -1))
	s.logger.Info("nightly pipeline run triggered", zap.Time("snapshot_date", snapshotDate))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	summary, err := s.pipeline.Run(ctx, snapshotDate)
	if err != nil {
		s.logger.Error("nightly pipeline run failed", zap.Error(err))
		return
	}

	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendRunSummary(ctx, summary); err != nil {
		s.logger.Error("failed to send run summary", zap.Error(err))
	}
}
