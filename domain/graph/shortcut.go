package graph

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/richardhadden/pangloss/internal/config"
	"github.com/richardhadden/pangloss/internal/jobs"
	"github.com/richardhadden/pangloss/pkg/logger"
)

const shortcutJobsTable = "pg.shortcut_jobs"

// ShortcutWorker drains the deferred shortcut-edge queue. Each job carries
// one ShortcutSpec; execution is best-effort with exponential backoff and
// never reaches the caller whose write produced the spec. A cron schedule
// recovers jobs stuck in 'processing' after a crash.
type ShortcutWorker struct {
	queue  *jobs.Queue
	worker *jobs.Worker
	repo   *Repository
	cron   *cron.Cron
	log    *slog.Logger
}

// NewShortcutWorker creates the worker over the shortcut queue table.
func NewShortcutWorker(db bun.IDB, repo *Repository, cfg *config.Config, log *slog.Logger) *ShortcutWorker {
	log = log.With(logger.Scope("graph.shortcuts"))

	queue := jobs.NewQueue(db, jobs.QueueConfig{
		TableName:         shortcutJobsTable,
		MaxAttempts:       cfg.Shortcuts.MaxAttempts,
		BaseRetryDelaySec: cfg.Shortcuts.BaseRetryDelaySec,
		MaxRetryDelaySec:  cfg.Shortcuts.MaxRetryDelaySec,
		BatchSize:         cfg.Shortcuts.BatchSize,
	}, log)

	sw := &ShortcutWorker{
		queue: queue,
		repo:  repo,
		cron:  cron.New(),
		log:   log,
	}

	sw.worker = jobs.NewWorker(jobs.WorkerConfig{
		Name:                  "shortcut-edges",
		PollInterval:          cfg.Shortcuts.PollInterval,
		BatchSize:             cfg.Shortcuts.BatchSize,
		StaleThresholdMinutes: cfg.Shortcuts.StaleThresholdMinutes,
		RecoverStaleOnStart:   true,
	}, log, sw.processBatch)

	if cfg.Shortcuts.StaleRecoverySchedule != "" {
		_, err := sw.cron.AddFunc(cfg.Shortcuts.StaleRecoverySchedule, func() {
			if _, err := queue.RecoverStaleJobs(context.Background(), cfg.Shortcuts.StaleThresholdMinutes); err != nil {
				log.Error("stale shortcut job recovery failed", logger.Error(err))
			}
		})
		if err != nil {
			log.Error("invalid stale recovery schedule",
				slog.String("schedule", cfg.Shortcuts.StaleRecoverySchedule),
				logger.Error(err))
		}
	}

	return sw
}

// Start begins polling and the recovery schedule.
func (sw *ShortcutWorker) Start(ctx context.Context) error {
	if _, err := sw.queue.RecoverStaleJobs(ctx, 0); err != nil {
		sw.log.Warn("startup stale job recovery failed", logger.Error(err))
	}
	sw.cron.Start()
	return sw.worker.Start(ctx)
}

// Stop halts polling, waiting for the in-flight batch.
func (sw *ShortcutWorker) Stop(ctx context.Context) error {
	sw.cron.Stop()
	return sw.worker.Stop(ctx)
}

func (sw *ShortcutWorker) processBatch(ctx context.Context) error {
	ids, err := sw.queue.Dequeue(ctx, 0)
	if err != nil {
		return err
	}

	for _, id := range ids {
		job := new(ShortcutJob)
		if err := sw.queue.GetJobByID(ctx, id, job); err != nil {
			sw.log.Error("failed to load shortcut job",
				slog.String("job_id", id),
				logger.Error(err))
			continue
		}

		if err := sw.repo.WriteShortcutEdges(ctx, job.Payload); err != nil {
			sw.worker.IncrementFailure()
			sw.log.Warn("shortcut edge write failed",
				slog.String("job_id", id),
				slog.Int("attempt", job.AttemptCount+1),
				logger.Error(err))
			if err := sw.queue.MarkFailed(ctx, id, job.AttemptCount, err.Error()); err != nil {
				sw.log.Error("failed to mark shortcut job failed",
					slog.String("job_id", id),
					logger.Error(err))
			}
			continue
		}

		sw.worker.IncrementSuccess()
		if err := sw.queue.MarkCompleted(ctx, id); err != nil {
			sw.log.Error("failed to mark shortcut job completed",
				slog.String("job_id", id),
				logger.Error(err))
		}
	}
	return nil
}

// registerWorkerLifecycle ties the worker to the fx application lifecycle.
// The polling loop outlives the startup context.
func registerWorkerLifecycle(lc fx.Lifecycle, sw *ShortcutWorker) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return sw.Start(context.Background())
		},
		OnStop: sw.Stop,
	})
}
