package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/karloscodes/cartridge"

	"linblog/internal/config"
	"linblog/internal/pkg/geoip"
)

const retentionInterval = 24 * time.Hour

// Scheduler is responsible for running background jobs
type Scheduler struct {
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	enabled   bool
	isRunning bool
	cfg       *config.Config

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool

	retentionJob *RetentionJob
	geoReloadJob *GeoIPReloadJob

	retentionTicker *time.Ticker
	geoReloadTicker *time.Ticker
}

// NewScheduler creates the scheduler. resolver may be nil when country lookup is off.
func NewScheduler(dbManager cartridge.DBManager, resolver *geoip.Resolver, logger *slog.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := config.GetConfig()

	s := &Scheduler{
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		enabled:   true,
		isRunning: false,
		cfg:       cfg,
	}

	s.retentionJob = NewRetentionJob(dbManager, logger, cfg)
	s.geoReloadJob = NewGeoIPReloadJob(resolver, logger)

	return s, nil
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func() error) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

// Start begins all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...")
	s.isRunning = true

	s.startRetentionJob()
	s.startGeoReloadJob()

	s.logger.Info("Background jobs started",
		slog.Bool("enabled", s.enabled),
		slog.Bool("isRunning", s.isRunning))

	return nil
}

func (s *Scheduler) runRetention() error {
	_, err := s.retentionJob.Run(s.ctx)
	return err
}

func (s *Scheduler) startRetentionJob() {
	s.logger.Info("Starting view retention job", slog.Duration("interval", retentionInterval))
	s.retentionTicker = time.NewTicker(retentionInterval)

	go func() {
		s.executeJobSafely("view_retention", s.runRetention)

		for {
			select {
			case <-s.retentionTicker.C:
				s.executeJobSafely("view_retention", s.runRetention)
			case <-s.ctx.Done():
				s.logger.Info("View retention job stopped")
				return
			}
		}
	}()
}

func (s *Scheduler) startGeoReloadJob() {
	interval := time.Duration(s.cfg.JobIntervalSeconds) * time.Second
	if interval <= 0 {
		return
	}
	s.logger.Info("Starting GeoLite reload job", slog.Duration("interval", interval))
	s.geoReloadTicker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-s.geoReloadTicker.C:
				s.executeJobSafely("geoip_reload", func() error {
					s.geoReloadJob.Run()
					return nil
				})
			case <-s.ctx.Done():
				s.logger.Info("GeoLite reload job stopped")
				return
			}
		}
	}()
}

// Stop halts all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.enabled = false

	if s.retentionTicker != nil {
		s.retentionTicker.Stop()
	}
	if s.geoReloadTicker != nil {
		s.geoReloadTicker.Stop()
	}

	s.cancel()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}

// RunRetention triggers the retention job immediately, outside the schedule.
func (s *Scheduler) RunRetention(ctx context.Context) (int64, error) {
	return s.retentionJob.Run(ctx)
}
