package usage

import (
	"context"
	"testing"
	"time"

	"github.com/mono-ai/aiproxy/internal/models"
	"github.com/mono-ai/aiproxy/internal/settings"
)

func TestLogRetentionCleanerDeletesExpiredRows(t *testing.T) {
	conn := openTestDB(t)
	now := time.Now().UTC()
	rows := []models.Log{
		{RequestID: "old-1", RequestAt: now, GroupID: "g", Model: "m", CreatedAt: now.Add(-48 * time.Hour)},
		{RequestID: "old-2", RequestAt: now, GroupID: "g", Model: "m", CreatedAt: now.Add(-30 * time.Hour)},
		{RequestID: "fresh", RequestAt: now, GroupID: "g", Model: "m", CreatedAt: now.Add(-time.Hour)},
	}
	if err := conn.Create(&rows).Error; err != nil {
		t.Fatalf("seed logs: %v", err)
	}

	opts := settings.Defaults()
	opts.LogStorageHours = 24
	cleaner := NewLogRetentionCleaner(conn, settings.NewHolder(opts))
	cleaner.batchSize = 1

	if deleted := cleaner.CleanupOnce(context.Background()); deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}
	var left []models.Log
	if err := conn.Find(&left).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(left) != 1 || left[0].RequestID != "fresh" {
		t.Fatalf("remaining = %+v", left)
	}
}

func TestLogRetentionCleanerDisabled(t *testing.T) {
	conn := openTestDB(t)
	opts := settings.Defaults()
	opts.LogStorageHours = 0
	cleaner := NewLogRetentionCleaner(conn, settings.NewHolder(opts))
	if deleted := cleaner.CleanupOnce(context.Background()); deleted != 0 {
		t.Fatalf("deleted = %d, want 0", deleted)
	}
	if NewLogRetentionCleaner(nil, nil) != nil {
		t.Fatalf("nil db must yield nil cleaner")
	}
}
