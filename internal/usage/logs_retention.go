package usage

import (
	"context"
	"time"

	"github.com/mono-ai/aiproxy/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultLogsRetentionInterval = time.Hour
	defaultLogsDeleteBatchSize   = 5000
	maxDeleteBatchesPerRun       = 2000
)

// LogRetentionCleaner periodically deletes consumption logs older than LogStorageHours.
type LogRetentionCleaner struct {
	db        *gorm.DB
	settings  *settings.Holder
	interval  time.Duration
	batchSize int
}

// NewLogRetentionCleaner returns nil when db is nil.
func NewLogRetentionCleaner(db *gorm.DB, holder *settings.Holder) *LogRetentionCleaner {
	if db == nil {
		return nil
	}
	return &LogRetentionCleaner{
		db:        db,
		settings:  holder,
		interval:  defaultLogsRetentionInterval,
		batchSize: defaultLogsDeleteBatchSize,
	}
}

// Start launches the cleanup loop in a background goroutine.
func (c *LogRetentionCleaner) Start(ctx context.Context) {
	if c == nil {
		return
	}
	go c.run(ctx)
	log.Infof("logs retention cleaner started (interval=%s)", c.interval)
}

func (c *LogRetentionCleaner) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.CleanupOnce(ctx)
		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

// CleanupOnce deletes expired logs in batches and returns the number of rows removed.
func (c *LogRetentionCleaner) CleanupOnce(ctx context.Context) int64 {
	if c == nil || c.db == nil {
		return 0
	}
	hours := c.settings.Load().LogStorageHours
	if hours <= 0 {
		return 0
	}
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	deletedTotal := int64(0)
	for i := 0; i < maxDeleteBatchesPerRun; i++ {
		if ctx.Err() != nil {
			break
		}
		n, err := c.deleteBatch(ctx, cutoff)
		if err != nil {
			log.WithError(err).Warn("logs retention cleaner: delete batch failed")
			break
		}
		if n <= 0 {
			break
		}
		deletedTotal += n
	}

	if deletedTotal > 0 {
		log.Infof("logs retention cleaner: deleted %d rows (cutoff=%s storage_hours=%d)", deletedTotal, cutoff.Format(time.RFC3339), hours)
	}
	return deletedTotal
}

func (c *LogRetentionCleaner) deleteBatch(ctx context.Context, cutoff time.Time) (int64, error) {
	limit := c.batchSize
	if limit <= 0 {
		limit = defaultLogsDeleteBatchSize
	}
	// Bounded subquery keeps each transaction short.
	res := c.db.WithContext(ctx).Exec(`
		DELETE FROM logs
		WHERE id IN (
			SELECT id FROM logs
			WHERE created_at < ?
			ORDER BY created_at ASC
			LIMIT ?
		)
	`, cutoff, limit)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
