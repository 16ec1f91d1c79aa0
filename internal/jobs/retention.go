package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"linblog/internal/config"
	"linblog/internal/pageviews"
)

const defaultRetentionBatchSize = 1000

// RetentionJob soft-deletes view events older than the configured retention.
// Soft-deleted rows drop out of every count and listing.
type RetentionJob struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	cfg       *config.Config
	now       func() time.Time
	batchSize int
	pause     time.Duration
}

// RetentionOption configures a RetentionJob.
type RetentionOption func(*RetentionJob)

// WithRetentionClock overrides the wall clock used to compute the cutoff.
func WithRetentionClock(now func() time.Time) RetentionOption {
	return func(j *RetentionJob) { j.now = now }
}

// WithRetentionBatch sets the batch size and the pause between batches.
func WithRetentionBatch(size int, pause time.Duration) RetentionOption {
	return func(j *RetentionJob) {
		if size > 0 {
			j.batchSize = size
		}
		j.pause = pause
	}
}

func NewRetentionJob(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config, opts ...RetentionOption) *RetentionJob {
	j := &RetentionJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		batchSize: defaultRetentionBatchSize,
		pause:     100 * time.Millisecond,
	}
	if cfg.RetentionBatchSize > 0 {
		j.batchSize = cfg.RetentionBatchSize
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run removes expired events in batches. It returns the number of rows removed.
func (j *RetentionJob) Run(ctx context.Context) (int64, error) {
	retentionDays := j.cfg.ViewRetentionDays
	if retentionDays <= 0 {
		j.logger.Debug("View retention disabled")
		return 0, nil
	}

	db := j.dbManager.GetConnection().WithContext(ctx)
	cutoff := j.now().UTC().AddDate(0, 0, -retentionDays)

	j.logger.Info("Starting view retention",
		slog.Int("retention_days", retentionDays),
		slog.Time("cutoff", cutoff))

	var total int64
	for {
		var ids []string
		err := db.Model(&pageviews.ViewEvent{}).
			Where("viewed_at < ?", cutoff).
			Order("viewed_at ASC").
			Limit(j.batchSize).
			Pluck("id", &ids).Error
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			break
		}

		err = sqlite.PerformWrite(j.logger, db, func(tx *gorm.DB) error {
			return tx.Where("id IN ?", ids).Delete(&pageviews.ViewEvent{}).Error
		})
		if err != nil {
			j.logger.Error("Failed to expire view events",
				slog.Any("error", err),
				slog.Int64("deleted_so_far", total))
			return total, err
		}
		total += int64(len(ids))

		if len(ids) < j.batchSize {
			break
		}

		// let ingestion writes through between batches
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case <-time.After(j.pause):
		}
	}

	if total > 0 {
		j.logger.Info("Expired old view events",
			slog.Int64("deleted_count", total),
			slog.Int("retention_days", retentionDays))
	}
	return total, nil
}
