package seeder_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linblog/internal/pageviews"
	"linblog/internal/posts"
	"linblog/internal/seeder"
	"linblog/internal/testsupport"
)

func TestSeederRun(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	now := time.Date(2024, 9, 10, 18, 0, 0, 0, time.UTC)
	s := seeder.NewSeeder(dbManager, logger, 12, 400).WithSeed(7, now)

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, report.Posts)
	assert.Positive(t, report.Recorded)
	assert.Positive(t, report.Ignored[pageviews.IgnoredBot], "bot user agents are in the pool")

	total := report.Recorded
	for _, n := range report.Ignored {
		total += n
	}
	assert.Equal(t, 400, total)

	var stored int64
	require.NoError(t, db.Model(&pageviews.ViewEvent{}).Count(&stored).Error)
	assert.Equal(t, int64(report.Recorded), stored)

	var outside int64
	require.NoError(t, db.Model(&pageviews.ViewEvent{}).
		Where("viewed_at < ? OR viewed_at > ?", now.AddDate(0, 0, -30), now).
		Count(&outside).Error)
	assert.Zero(t, outside)

	// only published posts collect views
	var ineligible int64
	require.NoError(t, db.Table("view_events AS v").
		Joins("JOIN posts p ON p.id = v.post_id").
		Where("p.status <> ?", posts.StatusPublished).
		Count(&ineligible).Error)
	assert.Zero(t, ineligible)

	t.Run("re-running reuses existing posts", func(t *testing.T) {
		again, err := seeder.NewSeeder(dbManager, logger, 12, 0).WithSeed(8, now).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 12, again.Posts)

		var count int64
		require.NoError(t, db.Model(&posts.Post{}).Count(&count).Error)
		assert.Equal(t, int64(12), count)
	})
}
