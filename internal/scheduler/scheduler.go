// Package scheduler drives the reminder engine from cron: a per-minute tick
// fanned out across tenants and a daily summary job.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pathakanu/medguardian/internal/activity"
	"github.com/pathakanu/medguardian/internal/clock"
	"github.com/pathakanu/medguardian/internal/medicine"
	"github.com/pathakanu/medguardian/internal/notify"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine is the per-tenant work run on each tick.
type Engine interface {
	Tick(ctx context.Context, tenantID string) error
	Housekeeping(ctx context.Context) (int64, error)
}

// TenantSource lists the tenants to serve.
type TenantSource interface {
	Tenants(ctx context.Context) ([]string, error)
}

// Config holds the cron specs and fan-out width.
type Config struct {
	TickSpec    string
	SummarySpec string
	Location    *time.Location
	// Concurrency bounds how many tenants tick at once.
	Concurrency int
	TickTimeout time.Duration
}

// Scheduler owns the cron loop.
type Scheduler struct {
	cron      *cron.Cron
	cfg       Config
	tenants   TenantSource
	engine    Engine
	log       *activity.Log
	medicines *medicine.Repo
	notifier  notify.Notifier
	clock     clock.Clock
	logger    *zap.Logger
}

// New creates a Scheduler. Jobs are registered by Start.
func New(cfg Config, tenants TenantSource, engine Engine, log *activity.Log, meds *medicine.Repo, n notify.Notifier, c clock.Clock, logger *zap.Logger) *Scheduler {
	if cfg.TickSpec == "" {
		cfg.TickSpec = "* * * * *"
	}
	if cfg.SummarySpec == "" {
		cfg.SummarySpec = "0 21 * * *"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 8
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = 50 * time.Second
	}

	logger = logger.Named("scheduler")
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		cfg:       cfg,
		tenants:   tenants,
		engine:    engine,
		log:       log,
		medicines: meds,
		notifier:  n,
		clock:     c,
		logger:    logger,
	}
}

// Start registers the tick and summary jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.cfg.TickSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.TickTimeout)
		defer cancel()
		if err := s.RunTick(ctx); err != nil {
			s.logger.Error("scheduler: tick", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("tick schedule %q: %w", s.cfg.TickSpec, err)
	}
	_, err = s.cron.AddFunc(s.cfg.SummarySpec, func() {
		if err := s.RunDailySummary(context.Background()); err != nil {
			s.logger.Error("scheduler: daily summary", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("summary schedule %q: %w", s.cfg.SummarySpec, err)
	}
	s.cron.Start()
	s.logger.Info("scheduler: started", zap.String("tick", s.cfg.TickSpec), zap.String("summary", s.cfg.SummarySpec))
	return nil
}

// Stop stops the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunTick ticks every tenant, several at a time, then purges old deadlines.
// A failing tenant does not stop the others; the first failure is returned.
func (s *Scheduler) RunTick(ctx context.Context) error {
	tenants, err := s.tenants.Tenants(ctx)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, tenantID := range tenants {
		g.Go(func() error {
			if err := s.engine.Tick(ctx, tenantID); err != nil {
				s.logger.Error("scheduler: tenant tick", zap.String("tenant", tenantID), zap.Error(err))
				return fmt.Errorf("tenant %s: %w", tenantID, err)
			}
			return nil
		})
	}
	tickErr := g.Wait()

	if n, err := s.engine.Housekeeping(ctx); err != nil {
		s.logger.Error("scheduler: purge deadlines", zap.Error(err))
	} else if n > 0 {
		s.logger.Debug("scheduler: purged deadlines", zap.Int64("rows", n))
	}
	return tickErr
}

// RunDailySummary sends each tenant's summary for its current local date to
// its trackers. Tenants without trackers are skipped.
func (s *Scheduler) RunDailySummary(ctx context.Context) error {
	tenants, err := s.tenants.Tenants(ctx)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, tenantID := range tenants {
		g.Go(func() error {
			if err := s.summarize(ctx, tenantID); err != nil {
				s.logger.Error("scheduler: tenant summary", zap.String("tenant", tenantID), zap.Error(err))
				return fmt.Errorf("tenant %s: %w", tenantID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) summarize(ctx context.Context, tenantID string) error {
	settings, err := s.medicines.Settings(ctx, tenantID)
	if err != nil {
		return err
	}
	if len(settings.Trackers) == 0 {
		return nil
	}
	loc := settings.Location()
	date := s.clock.Now().In(loc).Format(time.DateOnly)
	summary, err := s.log.DailySummary(ctx, tenantID, date, loc)
	if err != nil {
		return err
	}
	return s.notifier.SendSummary(ctx, tenantID, settings.Trackers, summary)
}
