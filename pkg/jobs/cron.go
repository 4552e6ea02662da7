package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jordanlanch/contactsync/pkg/activity"
	"github.com/jordanlanch/contactsync/pkg/logger"
	"github.com/jordanlanch/contactsync/pkg/metrics"
)

// Sweeper drops expired entries and reports how many were removed
type Sweeper interface {
	Sweep() int
}

// Config holds job schedules in standard cron syntax
type Config struct {
	ActivityRetention time.Duration
	ActivitySchedule  string
	SweepSchedule     string
}

// CronManager manages scheduled jobs
type CronManager struct {
	cron     *cron.Cron
	activity activity.Store
	receipts Sweeper
	metrics  *metrics.Metrics
	logger   logger.Logger
	cfg      Config
	now      func() time.Time
}

// NewCronManager creates a new cron manager. receipts may be nil when
// duplicate detection is off or backed by Redis expiry.
func NewCronManager(activityStore activity.Store, receipts Sweeper, m *metrics.Metrics, log logger.Logger, cfg Config) *CronManager {
	if cfg.ActivitySchedule == "" {
		cfg.ActivitySchedule = "0 3 * * *"
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = "@every 10m"
	}

	return &CronManager{
		cron:     cron.New(),
		activity: activityStore,
		receipts: receipts,
		metrics:  m,
		logger:   logger.Component(log, "jobs"),
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	if cm.activity != nil && cm.cfg.ActivityRetention > 0 {
		if _, err := cm.cron.AddFunc(cm.cfg.ActivitySchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			_, _ = cm.PruneActivity(ctx)
		}); err != nil {
			return err
		}
		cm.logger.Info("scheduled activity retention",
			"schedule", cm.cfg.ActivitySchedule, "retention", cm.cfg.ActivityRetention.String())
	}

	if cm.receipts != nil {
		if _, err := cm.cron.AddFunc(cm.cfg.SweepSchedule, func() {
			cm.SweepReceipts()
		}); err != nil {
			return err
		}
		cm.logger.Info("scheduled webhook receipt sweep", "schedule", cm.cfg.SweepSchedule)
	}

	return nil
}

// PruneActivity deletes activity entries older than the retention window
func (cm *CronManager) PruneActivity(ctx context.Context) (int64, error) {
	cutoff := cm.now().Add(-cm.cfg.ActivityRetention)

	n, err := cm.activity.Prune(ctx, cutoff)
	if err != nil {
		cm.logger.Error("activity retention failed", "error", err.Error())
		return 0, err
	}

	cm.metrics.RecordActivityPruned(n)
	cm.logger.Info("activity retention completed", "removed", n, "cutoff", cutoff.Format(time.RFC3339))
	return n, nil
}

// SweepReceipts drops expired webhook receipts
func (cm *CronManager) SweepReceipts() int {
	n := cm.receipts.Sweep()
	if n > 0 {
		cm.logger.Debug("webhook receipts swept", "removed", n)
	}
	return n
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Info("starting cron scheduler", "jobs", len(cm.cron.Entries()))
	cm.cron.Start()
}

// Stop stops the cron scheduler and waits for running jobs
func (cm *CronManager) Stop() {
	cm.logger.Info("stopping cron scheduler")
	<-cm.cron.Stop().Done()
}
