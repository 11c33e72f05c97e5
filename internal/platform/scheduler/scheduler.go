// Package scheduler は定期ジョブを robfig/cron で実行します。
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job は定期実行する処理です。
type Job struct {
	Name string
	// Spec はcron式（秒フィールド付き）または "@every 5m" 形式です。
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler は登録されたジョブを実行します。同じジョブの多重実行はスキップします。
type Scheduler struct {
	cron *cron.Cron
}

// New は Scheduler を生成し、jobs を登録します。
func New(jobs ...Job) (*Scheduler, error) {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	for _, j := range jobs {
		if _, err := c.AddJob(j.Spec, newRunner(j)); err != nil {
			return nil, fmt.Errorf("failed to register job %s: %w", j.Name, err)
		}
	}
	return &Scheduler{cron: c}, nil
}

// Run はctxが終了するまでジョブを実行し、実行中のジョブの終了を待って戻ります。
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(s.cron.Entries()))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	slog.Info("scheduler stopped")
	return nil
}

type runner struct {
	job Job
}

func newRunner(j Job) cron.Job {
	return runner{job: j}
}

func (r runner) Run() {
	ctx := context.Background()
	if r.job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.job.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := r.job.Run(ctx); err != nil {
		slog.Error("scheduled job failed", "job", r.job.Name, "error", err)
		return
	}
	slog.Debug("scheduled job finished", "job", r.job.Name, "elapsed", time.Since(start))
}
